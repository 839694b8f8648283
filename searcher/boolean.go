package searcher

import (
	"sort"

	"webcrawler/registry"
)

// Source is what queries are evaluated against. *registry.Registry
// satisfies it.
type Source interface {
	Index() *registry.Index
	PageRanks() map[int]float64
}

type idSet map[int]struct{}

// Execute evaluates a parsed boolean query and returns the matching document
// ids in ascending order. Terms missing from the index match nothing.
func Execute(node *Node, source Source) []int {
	if node == nil {
		return []int{}
	}
	idx := source.Index()

	removals := idSet{}
	entries := evaluate(node, idx, removals)
	for id := range removals {
		delete(entries, id)
	}

	ids := make([]int, 0, len(entries))
	for id := range entries {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	return ids
}

// evaluate resolves a Not directly below an And as a set difference. Any
// other Not only adds to removals, which Execute subtracts at the end.
func evaluate(n *Node, idx *registry.Index, removals idSet) idSet {
	switch n.Kind {
	case Word:
		return containing(idx, n.Term)
	case Not:
		for id := range containing(idx, n.Term) {
			removals[id] = struct{}{}
		}
		return idSet{}
	case And:
		left := evaluate(n.Left, idx, removals)
		if n.Right.Kind == Not {
			for id := range containing(idx, n.Right.Term) {
				delete(left, id)
			}
			return left
		}
		right := evaluate(n.Right, idx, removals)
		for id := range left {
			if _, ok := right[id]; !ok {
				delete(left, id)
			}
		}
		return left
	case Or:
		left := evaluate(n.Left, idx, removals)
		for id := range evaluate(n.Right, idx, removals) {
			left[id] = struct{}{}
		}
		return left
	}
	return idSet{}
}

func containing(idx *registry.Index, term string) idSet {
	set := idSet{}
	for _, p := range idx.Postings(term) {
		set[p.DocumentID] = struct{}{}
	}
	return set
}
