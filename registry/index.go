package registry

import (
	"bufio"
	"fmt"
	"io"
	"sort"
)

// Posting records how often a term occurs in one document.
type Posting struct {
	DocumentID int `json:"document_id"`
	Frequency  int `json:"frequency"`
}

// Index is an immutable inverted index built from a registry. A rebuild
// produces a new Index, so a reader holding one always sees a consistent view.
type Index struct {
	postings  map[string][]Posting
	documents int
}

func buildIndex(docs map[int]*Document) *Index {
	idx := &Index{
		postings:  map[string][]Posting{},
		documents: len(docs),
	}
	for _, id := range sortedIDs(docs) {
		for term, count := range docs[id].Keywords {
			idx.postings[term] = append(idx.postings[term], Posting{DocumentID: id, Frequency: count})
		}
	}
	return idx
}

// Postings returns the posting list of term ordered by document id, or nil
// for an unknown term.
func (i *Index) Postings(term string) []Posting {
	list, ok := i.postings[term]
	if !ok {
		return nil
	}
	return append([]Posting(nil), list...)
}

func (i *Index) DocumentFrequency(term string) int {
	return len(i.postings[term])
}

// Len returns the number of documents the index was built from.
func (i *Index) Len() int {
	return i.documents
}

func (i *Index) TermCount() int {
	return len(i.postings)
}

func (i *Index) Terms() []string {
	terms := make([]string, 0, len(i.postings))
	for term := range i.postings {
		terms = append(terms, term)
	}
	sort.Strings(terms)
	return terms
}

// WriteTo dumps the index one term per line as "term -> id:freq id:freq".
func (i *Index) WriteTo(w io.Writer) (int64, error) {
	bw := bufio.NewWriter(w)
	var written int64
	for _, term := range i.Terms() {
		n, err := fmt.Fprintf(bw, "%s ->", term)
		written += int64(n)
		if err != nil {
			return written, err
		}
		for _, p := range i.postings[term] {
			n, err = fmt.Fprintf(bw, " %d:%d", p.DocumentID, p.Frequency)
			written += int64(n)
			if err != nil {
				return written, err
			}
		}
		n, err = bw.WriteString("\n")
		written += int64(n)
		if err != nil {
			return written, err
		}
	}
	return written, bw.Flush()
}

func sortedIDs(docs map[int]*Document) []int {
	ids := make([]int, 0, len(docs))
	for id := range docs {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	return ids
}
