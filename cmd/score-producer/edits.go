package main

import (
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/hackathon-leaderboard/internal/domain"
	"github.com/hackathon-leaderboard/internal/kafka"
)

// editGenerator produces random but plausible judge edits for the demo teams
type editGenerator struct {
	faker    *gofakeit.Faker
	teamIDs  []string
	rounds   []domain.Round
	actor    string
	hotTeams int
}

func newEditGenerator(seed int64, actor string) *editGenerator {
	s := domain.DefaultSeed()
	teamIDs := make([]string, len(s.Teams))
	for i, t := range s.Teams {
		teamIDs[i] = t.ID
	}
	return &editGenerator{
		faker:    gofakeit.New(uint64(seed)),
		teamIDs:  teamIDs,
		rounds:   s.Rounds,
		actor:    actor,
		hotTeams: 3,
	}
}

// Next returns an edit. Lower-ranked teams are picked more often so the
// board keeps reshuffling.
func (g *editGenerator) Next() kafka.ScoreEdit {
	var teamID string
	if g.faker.Number(1, 100) <= 70 && len(g.teamIDs) > g.hotTeams {
		teamID = g.faker.RandomString(g.teamIDs[g.hotTeams:])
	} else {
		teamID = g.faker.RandomString(g.teamIDs)
	}

	round := g.rounds[g.faker.Number(0, len(g.rounds)-1)]

	// Skew towards the upper half of the range
	low := 0
	if g.faker.Bool() {
		low = round.MaxPoints / 2
	}

	return kafka.ScoreEdit{
		TeamID:      teamID,
		RoundID:     round.ID,
		Points:      g.faker.Number(low, round.MaxPoints),
		ActorEmail:  g.actor,
		SubmittedAt: time.Now().UTC(),
	}
}
