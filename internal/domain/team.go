package domain

import (
	"encoding/json"
	"time"
)

// Trend is a static directional indicator shown next to a team
type Trend string

const (
	TrendUp     Trend = "up"
	TrendDown   Trend = "down"
	TrendStable Trend = "stable"
)

// IsValid checks if the trend is a known value
func (t Trend) IsValid() bool {
	switch t {
	case TrendUp, TrendDown, TrendStable:
		return true
	default:
		return false
	}
}

// LastUpdateJustNow is the display value stamped on a team after an edit
const LastUpdateJustNow = "Just now"

// Score is one team's awarded points for one round, with who/when metadata
type Score struct {
	RoundID   string    `json:"roundId"`
	RoundName string    `json:"roundName"`
	Points    int       `json:"points"`
	MaxPoints int       `json:"maxPoints"`
	Timestamp time.Time `json:"timestamp"`
	UpdatedBy string    `json:"updatedBy"`
}

// Team is a competing team together with its per-round scores.
// Points is a cached sum of Scores and Rank is assigned by the ranking engine;
// neither is authoritative on its own.
type Team struct {
	ID         string  `json:"id"`
	Rank       int     `json:"rank"`
	Name       string  `json:"name"`
	Points     int     `json:"points"`
	Mascot     string  `json:"mascot"`
	Members    int     `json:"members"`
	LastUpdate string  `json:"lastUpdate"`
	Trend      Trend   `json:"trend"`
	Scores     []Score `json:"scores"`
}

// Clone returns a deep copy of the team
func (t Team) Clone() Team {
	c := t
	if t.Scores != nil {
		c.Scores = make([]Score, len(t.Scores))
		copy(c.Scores, t.Scores)
	}
	return c
}

// ScoreIndex returns the position of the score for roundID, or -1
func (t Team) ScoreIndex(roundID string) int {
	for i, s := range t.Scores {
		if s.RoundID == roundID {
			return i
		}
	}
	return -1
}

// Podium returns the podium marker for the top three ranks
func (t Team) Podium() string {
	switch t.Rank {
	case 1:
		return "gold"
	case 2:
		return "silver"
	case 3:
		return "bronze"
	default:
		return ""
	}
}

// MarshalJSON adds the podium marker to the wire form
func (t Team) MarshalJSON() ([]byte, error) {
	type plain Team
	return json.Marshal(struct {
		plain
		Podium string `json:"podium,omitempty"`
	}{plain(t), t.Podium()})
}

// CloneTeams deep-copies a team collection
func CloneTeams(teams []Team) []Team {
	if teams == nil {
		return nil
	}
	out := make([]Team, len(teams))
	for i, t := range teams {
		out[i] = t.Clone()
	}
	return out
}

// Breakdown is a team's per-round detail along with the achievable total
type Breakdown struct {
	Team     Team `json:"team"`
	MaxTotal int  `json:"maxTotal"`
}

// CreateTeamRequest represents a request to register a new team
type CreateTeamRequest struct {
	Name    string `json:"name"`
	Mascot  string `json:"mascot,omitempty"`
	Members int    `json:"members"`
}

// Mascots is the palette assigned to teams in creation order
var Mascots = []string{
	"🦊", "🐺", "🦁", "🐯", "🦄", "🐉", "🦅", "🐙",
	"🐧", "🦉", "🦋", "🐢", "🦒", "🦓", "🐘", "🐼",
}

// MascotFor returns the palette entry for the n-th team
func MascotFor(n int) string {
	if n < 0 {
		n = -n
	}
	return Mascots[n%len(Mascots)]
}
