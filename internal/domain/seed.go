package domain

import "time"

// Seed is the reference data a board starts from
type Seed struct {
	Rounds []Round
	Teams  []Team
	Users  []User
}

const defaultJudge = "Sarah Johnson"

// DefaultRounds returns the five judging rounds
func DefaultRounds() []Round {
	return []Round{
		{ID: "round-1", Name: "Problem Statement", MaxPoints: 500, Description: "Initial problem identification and solution approach"},
		{ID: "round-2", Name: "Technical Implementation", MaxPoints: 800, Description: "Code quality, architecture, and functionality"},
		{ID: "round-3", Name: "Innovation & Creativity", MaxPoints: 600, Description: "Originality and creative problem solving"},
		{ID: "round-4", Name: "Presentation", MaxPoints: 400, Description: "Communication and demo effectiveness"},
		{ID: "round-5", Name: "Business Viability", MaxPoints: 700, Description: "Market potential and scalability"},
	}
}

// DefaultUsers returns the demo admin and team member
func DefaultUsers() []User {
	return []User{
		{ID: "user-admin-1", Name: defaultJudge, Email: "admin@manipal.edu", Role: RoleAdmin},
		{ID: "user-team-1", Name: "Alex Chen", Email: "alex@team1.com", Role: RoleTeam, TeamID: "team-001"},
	}
}

type seedTeam struct {
	id         string
	name       string
	members    int
	lastUpdate string
	trend      Trend
	points     [5]int
	stamps     [5]string
}

var seedTeams = []seedTeam{
	{"team-001", "Code Wizards", 4, "2 min ago", TrendUp,
		[5]int{450, 750, 580, 380, 690},
		[5]string{"10:30", "14:20", "16:45", "18:10", "19:30"}},
	{"team-002", "Tech Innovators", 5, "5 min ago", TrendStable,
		[5]int{420, 720, 550, 350, 680},
		[5]string{"10:35", "14:25", "16:50", "18:15", "19:35"}},
	{"team-003", "Digital Pioneers", 3, "8 min ago", TrendUp,
		[5]int{400, 680, 520, 320, 660},
		[5]string{"10:40", "14:30", "16:55", "18:20", "19:40"}},
	{"team-004", "Future Builders", 4, "12 min ago", TrendDown,
		[5]int{380, 620, 480, 300, 560},
		[5]string{"10:45", "14:35", "17:00", "18:25", "19:45"}},
	{"team-005", "Code Crafters", 4, "15 min ago", TrendUp,
		[5]int{360, 580, 460, 280, 500},
		[5]string{"10:50", "14:40", "17:05", "18:30", "19:50"}},
}

// DefaultSeed returns the demo hackathon: five rounds, five teams, two users.
// Team points and ranks are filled in consistently with the scores.
func DefaultSeed() Seed {
	rounds := DefaultRounds()
	teams := make([]Team, 0, len(seedTeams))
	for i, st := range seedTeams {
		scores := make([]Score, len(rounds))
		total := 0
		for j, r := range rounds {
			ts, _ := time.Parse(time.RFC3339, "2024-01-15T"+st.stamps[j]+":00Z")
			scores[j] = Score{
				RoundID:   r.ID,
				RoundName: r.Name,
				Points:    st.points[j],
				MaxPoints: r.MaxPoints,
				Timestamp: ts,
				UpdatedBy: defaultJudge,
			}
			total += st.points[j]
		}
		teams = append(teams, Team{
			ID:         st.id,
			Rank:       i + 1,
			Name:       st.name,
			Points:     total,
			Mascot:     MascotFor(i),
			Members:    st.members,
			LastUpdate: st.lastUpdate,
			Trend:      st.trend,
			Scores:     scores,
		})
	}
	return Seed{Rounds: rounds, Teams: teams, Users: DefaultUsers()}
}

// NewTeamScores builds a zeroed score sheet for a newly created team
func NewTeamScores(rounds []Round, at time.Time, by string) []Score {
	scores := make([]Score, len(rounds))
	for i, r := range rounds {
		scores[i] = Score{
			RoundID:   r.ID,
			RoundName: r.Name,
			MaxPoints: r.MaxPoints,
			Timestamp: at,
			UpdatedBy: by,
		}
	}
	return scores
}
