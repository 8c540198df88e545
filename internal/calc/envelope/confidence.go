package envelope

import "Pylon/internal/calc/units"

// Category classifies a warning and fixes its confidence penalty.
type Category string

const (
	Generic     Category = "generic"
	NeedsReview Category = "needs_review"
	NoFeasible  Category = "no_feasible"
	Abstain     Category = "abstain"
)

// Penalties subtracted from a starting confidence of 1.0.
var penalties = map[Category]float64{
	Generic:     0.1,
	NeedsReview: 0.3,
	NoFeasible:  0.4,
	Abstain:     0.5,
}

// NoFeasibleThreshold is the highest confidence a result with no feasible
// option can carry.
const NoFeasibleThreshold = 0.6

// Warning is a penalized note attached to a result.
type Warning struct {
	Category Category `json:"category"`
	Message  string   `json:"message"`
}

func Warn(c Category, msg string) Warning {
	return Warning{Category: c, Message: msg}
}

// Penalty returns the documented penalty; unknown categories count as generic.
func Penalty(c Category) float64 {
	if p, ok := penalties[c]; ok {
		return p
	}
	return penalties[Generic]
}

// Confidence is a pure function of the warning list, clamped to [0,1].
func Confidence(ws []Warning) float64 {
	c := 1.0
	for _, w := range ws {
		c -= Penalty(w.Category)
	}
	if c < 0 {
		c = 0
	}
	if c > 1 {
		c = 1
	}
	return units.Round(c)
}
