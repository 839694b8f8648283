package searcher

import (
	"math"
	"sort"
)

// DefaultMaxResults caps ranked results when no explicit limit is given.
const DefaultMaxResults = 25

type Result struct {
	ID    int     `json:"id"`
	Score float64 `json:"score"`
}

// Rank scores every document containing at least one of terms with TF-IDF.
// Query weights are log10(N/df), normalized over the query; document weights
// are 1+log10(tf), normalized over the matching terms only. Results are
// sorted by score, cut to maxResults and, when usePageRank is set, stably
// reordered by PageRank.
func Rank(terms []string, source Source, maxResults int, usePageRank bool) []Result {
	if maxResults <= 0 {
		maxResults = DefaultMaxResults
	}
	idx := source.Index()
	total := float64(idx.Len())

	var query []string
	weights := map[string]float64{}
	norm := 0.0
	for _, term := range terms {
		if _, seen := weights[term]; seen {
			continue
		}
		query = append(query, term)

		df := idx.DocumentFrequency(term)
		if df == 0 {
			weights[term] = -1
			continue
		}
		w := math.Log10(total / float64(df))
		weights[term] = w
		norm += w * w
	}
	norm = math.Sqrt(norm)

	docs := map[int]map[string]float64{}
	for _, term := range query {
		if weights[term] < 0 {
			continue
		}
		if norm > 0 {
			weights[term] /= norm
		} else {
			weights[term] = 0
		}
		for _, p := range idx.Postings(term) {
			if docs[p.DocumentID] == nil {
				docs[p.DocumentID] = map[string]float64{}
			}
			docs[p.DocumentID][term] = 1 + math.Log10(float64(p.Frequency))
		}
	}

	results := make([]Result, 0, len(docs))
	for id, vector := range docs {
		length := 0.0
		for _, w := range vector {
			length += w * w
		}
		length = math.Sqrt(length)

		score := 0.0
		for term, w := range vector {
			score += w / length * weights[term]
		}
		results = append(results, Result{ID: id, Score: score})
	}

	sort.Slice(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return results[i].ID < results[j].ID
	})
	if len(results) > maxResults {
		results = results[:maxResults]
	}

	if usePageRank && len(results) > 1 {
		ranks := source.PageRanks()
		sort.SliceStable(results, func(i, j int) bool {
			return ranks[results[i].ID] > ranks[results[j].ID]
		})
	}
	return results
}
