package domain

// Round is a named judging category with a maximum achievable point value.
// Rounds are reference data and never change after startup.
type Round struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	MaxPoints   int    `json:"maxPoints"`
	Description string `json:"description"`
}

// MaxTotal returns the sum of MaxPoints across rounds
func MaxTotal(rounds []Round) int {
	total := 0
	for _, r := range rounds {
		total += r.MaxPoints
	}
	return total
}

// FindRound returns the round with the given ID
func FindRound(rounds []Round, roundID string) (Round, bool) {
	for _, r := range rounds {
		if r.ID == roundID {
			return r, true
		}
	}
	return Round{}, false
}
