// Package shingle computes MinHash signatures over word shingles so that
// near-duplicate pages can be detected from a fixed-size sketch instead of
// their full shingle sets.
package shingle

import (
	"math"
	"regexp"
	"strings"

	"github.com/cespare/xxhash/v2"
)

// DefaultSize is the number of words per shingle.
const DefaultSize = 4

// permutations are XOR masks applied to the base hash, one per band. The
// leading zero keeps the unpermuted hash as the first band.
var permutations = [...]uint64{
	0, 4802, 13141, 14983, 30154, 32405, 38072, 45076, 49468, 66908, 67640, 91805,
	92348, 101340, 117576, 136386, 158413, 177209, 188886, 191622, 198389, 210814,
	212454, 229998, 237159, 241705, 249384, 259169, 268630, 288216, 300560, 308363,
	310212, 313209, 347849, 349290, 351820, 364728, 395416, 406279, 415501, 420265,
	435041, 438955, 439908, 445912, 447049, 456450, 456566, 487710, 522429, 533080,
	541473, 601154, 627797, 628013, 629235, 635953, 638823, 652239, 666039, 672211,
	675746, 713862, 719511, 724720, 761905, 771157, 775618, 784789, 795263, 818805,
	821227, 835269, 877328, 881412, 881813, 908477, 921111, 930163, 951340, 974627,
	984774, 987052, 995589,
}

// Bands is the length of every signature.
const Bands = len(permutations)

// Signature holds the per-band minimum hash of a document's shingles. A
// document without shingles has every band set to math.MaxUint64.
type Signature [Bands]uint64

var nonAlphaNumeric = regexp.MustCompile(`[^a-z0-9 ]`)

// Shinglify returns every window of n consecutive words joined by a space,
// max(0, len(words)-n+1) in total.
func Shinglify(words []string, n int) []string {
	if n <= 0 {
		return nil
	}
	count := len(words) - n + 1
	if count <= 0 {
		return []string{}
	}
	shingles := make([]string, 0, count)
	for i := 0; i < count; i++ {
		shingles = append(shingles, strings.Join(words[i:i+n], " "))
	}
	return shingles
}

// ShinglifyText lower-cases text, strips anything but letters, digits and
// spaces and shinglifies the remaining words.
func ShinglifyText(text string, n int) []string {
	clean := nonAlphaNumeric.ReplaceAllString(strings.ToLower(text), "")
	return Shinglify(strings.Fields(clean), n)
}

// Sign computes the MinHash signature of tokens using shingles of n words.
func Sign(tokens []string, n int) Signature {
	return SignShingles(Shinglify(tokens, n))
}

func SignShingles(shingles []string) Signature {
	var sig Signature
	for i := range sig {
		sig[i] = math.MaxUint64
	}
	for _, shingle := range shingles {
		base := xxhash.Sum64String(shingle)
		for i, perm := range permutations {
			if h := base ^ perm; h < sig[i] {
				sig[i] = h
			}
		}
	}
	return sig
}

// Empty reports whether the signature was built from zero shingles.
func (s Signature) Empty() bool {
	for _, band := range s {
		if band != math.MaxUint64 {
			return false
		}
	}
	return true
}

// Similarity is the fraction of bands two signatures agree on, an estimate of
// the Jaccard similarity of the underlying shingle sets.
func Similarity(a, b Signature) float64 {
	equal := 0
	for i := range a {
		if a[i] == b[i] {
			equal++
		}
	}
	return float64(equal) / float64(Bands)
}

// Jaccard is the exact Jaccard similarity of two sets given as slices.
// Duplicates within a slice are ignored; two empty sets have similarity 0.
func Jaccard(a, b []string) float64 {
	setA := make(map[string]struct{}, len(a))
	for _, s := range a {
		setA[s] = struct{}{}
	}
	union := make(map[string]struct{}, len(a)+len(b))
	for s := range setA {
		union[s] = struct{}{}
	}
	overlap := 0
	seen := make(map[string]struct{}, len(b))
	for _, s := range b {
		if _, dup := seen[s]; dup {
			continue
		}
		seen[s] = struct{}{}
		if _, ok := setA[s]; ok {
			overlap++
		}
		union[s] = struct{}{}
	}
	if len(union) == 0 {
		return 0
	}
	return float64(overlap) / float64(len(union))
}

// CompareDocuments returns the exact shingle Jaccard similarity of two texts.
func CompareDocuments(doc1, doc2 string, n int) float64 {
	return Jaccard(ShinglifyText(doc1, n), ShinglifyText(doc2, n))
}

// CompareSigned estimates the similarity of two texts through their signatures.
func CompareSigned(doc1, doc2 string, n int) float64 {
	return Similarity(SignShingles(ShinglifyText(doc1, n)), SignShingles(ShinglifyText(doc2, n)))
}
