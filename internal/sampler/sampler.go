// Package sampler draws an ordered pair of systems for a battle from a
// weighted directed matchup distribution, restricted to the systems
// capable of serving a given prompt.
package sampler

import (
	"math/rand"
	"sort"

	"github.com/gclef-cmu/music-arena/internal/arena"
)

// Pair is an ordered directed edge in the matchup weight graph.
type Pair struct {
	A arena.SystemKey
	B arena.SystemKey
}

// Weights is the unnormalized directed matchup weight table, keyed by
// ordered pair. The source's weights table is treated as already
// directional: "a/b" and "b/a" are distinct entries and are never
// summed.
type Weights map[Pair]float64

type weightedPair struct {
	pair   Pair
	weight float64
}

// Sample draws one ordered pair from candidates according to weights,
// restricted to pairs where both ends are in candidates. If the
// restricted weight table is empty, falls back to a uniform draw over
// every ordered distinct pair from candidates. Ties in cumulative weight
// are broken by ascending (A, B) lexicographic order, which is also the
// enumeration order used to build the cumulative distribution, so the
// draw is fully deterministic given rng's stream.
//
// Returns arena.NewNoEligibleSystemsError if fewer than two candidates
// are eligible.
func Sample(candidates []arena.SystemKey, weights Weights, rng *rand.Rand) (arena.SystemKey, arena.SystemKey, error) {
	if len(candidates) < 2 {
		return arena.SystemKey{}, arena.SystemKey{}, arena.NewNoEligibleSystemsError("fewer than two eligible systems for this prompt")
	}

	eligible := make(map[arena.SystemKey]bool, len(candidates))
	for _, c := range candidates {
		eligible[c] = true
	}

	var restricted []weightedPair
	for pair, w := range weights {
		if w <= 0 || pair.A == pair.B {
			continue
		}
		if eligible[pair.A] && eligible[pair.B] {
			restricted = append(restricted, weightedPair{pair: pair, weight: w})
		}
	}

	if len(restricted) == 0 {
		restricted = uniformPairs(candidates)
	}

	sort.Slice(restricted, func(i, j int) bool {
		if restricted[i].pair.A != restricted[j].pair.A {
			return restricted[i].pair.A.Less(restricted[j].pair.A)
		}
		return restricted[i].pair.B.Less(restricted[j].pair.B)
	})

	var total float64
	for _, w := range restricted {
		total += w.weight
	}

	draw := rng.Float64() * total
	var cumulative float64
	for _, w := range restricted {
		cumulative += w.weight
		if draw < cumulative {
			return w.pair.A, w.pair.B, nil
		}
	}
	// floating point edge case: draw landed exactly on total.
	last := restricted[len(restricted)-1]
	return last.pair.A, last.pair.B, nil
}

func uniformPairs(candidates []arena.SystemKey) []weightedPair {
	var out []weightedPair
	for _, a := range candidates {
		for _, b := range candidates {
			if a == b {
				continue
			}
			out = append(out, weightedPair{pair: Pair{A: a, B: b}, weight: 1})
		}
	}
	return out
}
