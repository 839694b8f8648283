// Package registry owns the crawled documents and the structures derived from
// them: the inverted index and the PageRank scores. Both are rebuilt lazily,
// only when read after the document set changed.
package registry

import (
	"math/rand"
	"sort"
	"sync"
	"time"

	"golang.org/x/xerrors"

	"webcrawler/analysis"
	"webcrawler/shingle"
)

// ErrNotFound is returned when a document id is not registered.
var ErrNotFound = xerrors.New("not found")

type cacheState int

const (
	stale cacheState = iota
	fresh
)

type cached[T any] struct {
	state cacheState
	value T
}

func (c *cached[T]) set(v T) {
	c.value = v
	c.state = fresh
}

func (c *cached[T]) invalidate() {
	c.state = stale
}

// Match is a near-duplicate candidate returned by Registry.Duplicates.
type Match struct {
	ID         int     `json:"id"`
	Address    string  `json:"address"`
	Similarity float64 `json:"similarity"`
}

// Registry assigns ids to documents and serves the derived index and
// PageRank caches. It is safe for concurrent use.
type Registry struct {
	mu sync.RWMutex

	lastID    int
	documents map[int]*Document
	addresses map[string]int

	index       cached[*Index]
	ranks       cached[map[int]float64]
	indexBuilds int
	rankBuilds  int

	rnd *rand.Rand
}

func New() *Registry {
	return &Registry{
		documents: map[int]*Document{},
		addresses: map[string]int{},
		rnd:       rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// AddDocument registers doc under the next id. A document whose address is
// already registered is not added again; the existing id is returned with
// added set to false.
func (r *Registry) AddDocument(doc *Document) (id int, added bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if existing, ok := r.addresses[doc.Address]; ok {
		return existing, false
	}

	r.lastID++
	doc.id = r.lastID
	r.documents[doc.id] = doc
	r.addresses[doc.Address] = doc.id
	r.index.invalidate()
	r.ranks.invalidate()
	return doc.id, true
}

// Document returns a copy of document id, so readers never race with Clean.
func (r *Registry) Document(id int) (*Document, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	doc, ok := r.documents[id]
	if !ok {
		return nil, xerrors.Errorf("document %d: %w", id, ErrNotFound)
	}
	return doc.clone(), nil
}

// Lookup returns the id registered for address.
func (r *Registry) Lookup(address string) (int, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	id, ok := r.addresses[address]
	return id, ok
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.documents)
}

func (r *Registry) LastID() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.lastID
}

// Documents returns copies of every registered document ordered by id.
func (r *Registry) Documents() []*Document {
	r.mu.RLock()
	defer r.mu.RUnlock()

	docs := make([]*Document, 0, len(r.documents))
	for _, id := range sortedIDs(r.documents) {
		docs = append(docs, r.documents[id].clone())
	}
	return docs
}

// Clean re-derives every document through analyzer and marks the caches stale.
func (r *Registry) Clean(analyzer *analysis.Analyzer) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, doc := range r.documents {
		doc.Clean(analyzer)
	}
	r.index.invalidate()
	r.ranks.invalidate()
}

// Index returns the inverted index, rebuilding it first if documents were
// added or cleaned since the last build.
func (r *Registry) Index() *Index {
	r.mu.RLock()
	if r.index.state == fresh {
		idx := r.index.value
		r.mu.RUnlock()
		return idx
	}
	r.mu.RUnlock()

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.index.state != fresh {
		r.index.set(buildIndex(r.documents))
		r.indexBuilds++
	}
	return r.index.value
}

// PageRanks returns a copy of the PageRank score of every document,
// recomputing them first if the document set changed.
func (r *Registry) PageRanks() map[int]float64 {
	r.mu.RLock()
	if r.ranks.state == fresh {
		ranks := copyRanks(r.ranks.value)
		r.mu.RUnlock()
		return ranks
	}
	r.mu.RUnlock()

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.ranks.state != fresh {
		r.ranks.set(computePageRank(r.documents, r.addresses, r.rnd))
		r.rankBuilds++
	}
	return copyRanks(r.ranks.value)
}

func (r *Registry) PageRank(id int) (float64, error) {
	rank, ok := r.PageRanks()[id]
	if !ok {
		return 0, xerrors.Errorf("document %d: %w", id, ErrNotFound)
	}
	return rank, nil
}

// IndexBuilds reports how many times the inverted index has been built.
func (r *Registry) IndexBuilds() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.indexBuilds
}

// RankBuilds reports how many times PageRank has been computed.
func (r *Registry) RankBuilds() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.rankBuilds
}

// Duplicates compares the signature of document id against every other
// document and returns those whose estimated similarity is at least
// threshold, most similar first. Documents too short to have a signature
// never match.
func (r *Registry) Duplicates(id int, threshold float64) ([]Match, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	doc, ok := r.documents[id]
	if !ok {
		return nil, xerrors.Errorf("document %d: %w", id, ErrNotFound)
	}
	if doc.Signature.Empty() {
		return nil, nil
	}

	var matches []Match
	for _, other := range sortedIDs(r.documents) {
		candidate := r.documents[other]
		if other == id || candidate.Signature.Empty() {
			continue
		}
		sim := shingle.Similarity(doc.Signature, candidate.Signature)
		if sim >= threshold {
			matches = append(matches, Match{ID: other, Address: candidate.Address, Similarity: sim})
		}
	}
	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].Similarity > matches[j].Similarity
	})
	return matches, nil
}

func copyRanks(ranks map[int]float64) map[int]float64 {
	out := make(map[int]float64, len(ranks))
	for id, rank := range ranks {
		out[id] = rank
	}
	return out
}
