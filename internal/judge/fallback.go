package judge

import (
	"fmt"
	"math/rand"
)

// Fallback picks a winner locally when the judge fails: longest
// justification with a small randomized tiebreak. It always returns an
// identifier from the contender set, so a failed judge call still
// leaves the session able to terminate.
func Fallback(contenders []Contender, rng *rand.Rand) Ruling {
	if len(contenders) == 0 {
		return Ruling{}
	}
	winner := contenders[0]
	best := -1.0
	for _, c := range contenders {
		score := float64(len(c.Justification)) + rng.Float64()*50
		if score > best {
			best = score
			winner = c
		}
	}
	return Ruling{
		WinnerID: winner.ID,
		Reason:   fmt.Sprintf("The court rules for %s, whose case simply carried the most weight.", winner.Name),
	}
}
