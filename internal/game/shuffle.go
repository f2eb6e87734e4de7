package game

import (
	"math/rand"
	"slices"
)

// shuffledIDs returns a fresh Fisher-Yates permutation of ids. The rand
// source is injected so role and turn-order deals are seedable in tests.
func shuffledIDs(ids []string, rng *rand.Rand) []string {
	out := slices.Clone(ids)
	rng.Shuffle(len(out), func(i, j int) {
		out[i], out[j] = out[j], out[i]
	})
	return out
}
