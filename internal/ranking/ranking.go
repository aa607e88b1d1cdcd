// Package ranking holds the pure leaderboard computations: totals, dense
// ranks, filtered/sorted views and dashboard aggregates. Nothing in here keeps
// state between calls or mutates its inputs.
package ranking

import (
	"cmp"
	"slices"

	"github.com/hackathon-leaderboard/internal/domain"
)

// RecomputeTotal returns a copy of team with Points set to the sum of its scores.
func RecomputeTotal(team domain.Team) domain.Team {
	out := team.Clone()
	total := 0
	for _, s := range out.Scores {
		total += s.Points
	}
	out.Points = total
	return out
}

// ReassignRanks returns a new collection ordered by descending points with
// Rank set to 1+index. Teams with equal points keep their input order.
func ReassignRanks(teams []domain.Team) []domain.Team {
	ranked := domain.CloneTeams(teams)
	if ranked == nil {
		ranked = []domain.Team{}
	}
	slices.SortStableFunc(ranked, func(a, b domain.Team) int {
		return cmp.Compare(b.Points, a.Points)
	})
	for i := range ranked {
		ranked[i].Rank = i + 1
	}
	return ranked
}
