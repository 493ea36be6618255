// Package dice is the local quick-decision mode: one random draw, no
// session, no network.
package dice

import "math/rand"

const DefaultSides = 6

// Roll returns a uniform draw in [1, sides].
func Roll(sides int) int {
	if sides < 1 {
		sides = DefaultSides
	}
	return rand.Intn(sides) + 1
}
