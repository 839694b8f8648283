package registry

import (
	"math"
	"math/rand"
)

const (
	// Alpha is the teleport probability of the random surfer.
	Alpha = 0.1
	// convergence is the total absolute rank change at which power iteration
	// stops. It is deliberately loose; ranks are only used to reorder results.
	convergence   = 0.05
	maxIterations = 1000
)

// computePageRank runs power iteration over the damped transition matrix of
// the documents' link graph. Links to addresses outside the registry are
// ignored; a document without known outlinks teleports uniformly.
func computePageRank(docs map[int]*Document, addresses map[string]int, rnd *rand.Rand) map[int]float64 {
	ranks := map[int]float64{}
	ids := sortedIDs(docs)
	n := len(ids)
	if n == 0 {
		return ranks
	}

	row := make(map[int]int, n)
	for i, id := range ids {
		row[id] = i
	}

	teleport := 1.0 / float64(n)
	matrix := make([][]float64, n)
	for i, id := range ids {
		matrix[i] = make([]float64, n)

		var targets []int
		for _, link := range docs[id].Links {
			if target, ok := addresses[link]; ok {
				targets = append(targets, row[target])
			}
		}

		if len(targets) == 0 {
			for j := range matrix[i] {
				matrix[i][j] = teleport
			}
			continue
		}

		share := (1 - Alpha) / float64(len(targets))
		for j := range matrix[i] {
			matrix[i][j] = Alpha * teleport
		}
		for _, j := range targets {
			matrix[i][j] += share
		}
	}

	rank := make([]float64, n)
	rank[rnd.Intn(n)] = 1
	for iter := 0; iter < maxIterations; iter++ {
		next := make([]float64, n)
		for j, mass := range rank {
			if mass == 0 {
				continue
			}
			for i, p := range matrix[j] {
				next[i] += mass * p
			}
		}

		delta := 0.0
		for i := range next {
			delta += math.Abs(next[i] - rank[i])
		}
		rank = next
		if delta < convergence {
			break
		}
	}

	for i, id := range ids {
		ranks[id] = rank[i]
	}
	return ranks
}
