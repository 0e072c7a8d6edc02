package domain

import "math/rand/v2"

// PickBrewer chooses who makes the round. It is a pure function over the
// roster: one brewer is picked uniformly at random, marked Brewing, and set
// as the brew's Brewer. An empty roster returns the brew unchanged with
// HasBrewer false.
//
// Each call draws fresh randomness; there is no persisted PRNG state, so
// repeated picks over fresh rosters are independent and uniform.
func PickBrewer(b Brew) Brew {
	n := len(b.Brewers)
	b.HasBrewer = n > 0
	if n == 0 {
		return b
	}

	i := rand.IntN(n)
	b.Brewers[i].Brewing = true
	b.Brewer = &b.Brewers[i]
	return b
}
