package domain

import "time"

// DashboardStats is an aggregate over the current team collection
type DashboardStats struct {
	TotalTeams   int       `json:"totalTeams"`
	TotalPoints  int       `json:"totalPoints"`
	AvgPoints    int       `json:"avgPoints"`
	ActiveRounds int       `json:"activeRounds"`
	LastUpdate   time.Time `json:"lastUpdate,omitzero"`
}

// ScoreUpdateRequest is the body of a score edit
type ScoreUpdateRequest struct {
	Points *int `json:"points"`
}

// StandingEntry is one row of the mirrored standings
type StandingEntry struct {
	Rank   int    `json:"rank"`
	TeamID string `json:"teamId"`
	Name   string `json:"name"`
	Mascot string `json:"mascot"`
	Points int    `json:"points"`
	Trend  Trend  `json:"trend"`
}

// MirroredStandings is the standings projection as last published
type MirroredStandings struct {
	Entries     []StandingEntry `json:"entries"`
	TotalTeams  int             `json:"totalTeams"`
	PublishedAt time.Time       `json:"publishedAt"`
}
