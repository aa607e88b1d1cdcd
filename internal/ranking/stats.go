package ranking

import (
	"math"

	"github.com/hackathon-leaderboard/internal/domain"
)

// ComputeStats aggregates the team collection. AvgPoints is 0 for an empty
// collection.
func ComputeStats(teams []domain.Team, rounds []domain.Round) domain.DashboardStats {
	stats := domain.DashboardStats{
		TotalTeams:   len(teams),
		ActiveRounds: len(rounds),
	}
	for _, t := range teams {
		stats.TotalPoints += t.Points
		for _, s := range t.Scores {
			if s.Timestamp.After(stats.LastUpdate) {
				stats.LastUpdate = s.Timestamp
			}
		}
	}
	if stats.TotalTeams > 0 {
		stats.AvgPoints = int(math.Round(float64(stats.TotalPoints) / float64(stats.TotalTeams)))
	}
	return stats
}
