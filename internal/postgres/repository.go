package postgres

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/hackathon-leaderboard/internal/config"
	"github.com/hackathon-leaderboard/internal/domain"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository loads the hackathon reference data (rounds, teams, their
// starting scores and users) from PostgreSQL. Score edits made during a
// session are never written back.
type Repository struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

// NewRepository creates a new PostgreSQL repository
func NewRepository(cfg *config.PostgresConfig, logger *slog.Logger) (*Repository, error) {
	poolConfig, err := pgxpool.ParseConfig(cfg.ConnectionString())
	if err != nil {
		return nil, fmt.Errorf("parsing connection string: %w", err)
	}

	poolConfig.MaxConns = int32(cfg.MaxConnections)
	poolConfig.MinConns = int32(cfg.MinConnections)
	poolConfig.MaxConnLifetime = cfg.MaxConnLifetime
	poolConfig.MaxConnIdleTime = cfg.MaxConnIdleTime

	pool, err := pgxpool.NewWithConfig(context.Background(), poolConfig)
	if err != nil {
		return nil, fmt.Errorf("creating connection pool: %w", err)
	}

	// Test connection
	if err := pool.Ping(context.Background()); err != nil {
		pool.Close()
		return nil, fmt.Errorf("connecting to database: %w", err)
	}

	return &Repository{
		pool:   pool,
		logger: logger,
	}, nil
}

// Close closes the database connection pool
func (r *Repository) Close() {
	r.pool.Close()
}

// Ping checks the database connection
func (r *Repository) Ping(ctx context.Context) error {
	return r.pool.Ping(ctx)
}

// RunMigrations executes database migrations
func (r *Repository) RunMigrations(ctx context.Context) error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS rounds (
			id VARCHAR(64) PRIMARY KEY,
			name VARCHAR(255) NOT NULL,
			max_points INT NOT NULL CHECK (max_points > 0),
			description TEXT NOT NULL DEFAULT '',
			position INT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS teams (
			id VARCHAR(64) PRIMARY KEY,
			name VARCHAR(255) NOT NULL UNIQUE,
			mascot VARCHAR(16) NOT NULL DEFAULT '',
			members INT NOT NULL DEFAULT 0,
			last_update VARCHAR(64) NOT NULL DEFAULT '',
			trend VARCHAR(10) NOT NULL DEFAULT 'stable',
			position INT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS team_scores (
			team_id VARCHAR(64) NOT NULL REFERENCES teams(id) ON DELETE CASCADE,
			round_id VARCHAR(64) NOT NULL REFERENCES rounds(id) ON DELETE CASCADE,
			points INT NOT NULL DEFAULT 0,
			updated_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
			updated_by VARCHAR(255) NOT NULL DEFAULT '',
			PRIMARY KEY (team_id, round_id)
		)`,
		`CREATE TABLE IF NOT EXISTS users (
			id VARCHAR(64) PRIMARY KEY,
			name VARCHAR(255) NOT NULL,
			email VARCHAR(255) NOT NULL UNIQUE,
			role VARCHAR(10) NOT NULL,
			team_id VARCHAR(64) REFERENCES teams(id) ON DELETE SET NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_rounds_position ON rounds(position)`,
		`CREATE INDEX IF NOT EXISTS idx_teams_position ON teams(position)`,
	}

	for _, migration := range migrations {
		_, err := r.pool.Exec(ctx, migration)
		if err != nil {
			return fmt.Errorf("executing migration: %w", err)
		}
	}

	r.logger.Info("database migrations completed")
	return nil
}

// IsEmpty reports whether no rounds have been loaded yet
func (r *Repository) IsEmpty(ctx context.Context) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM rounds)`).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("checking rounds: %w", err)
	}
	return !exists, nil
}

// SeedIfEmpty writes seed into an empty database. It reports whether
// anything was written.
func (r *Repository) SeedIfEmpty(ctx context.Context, seed domain.Seed) (bool, error) {
	empty, err := r.IsEmpty(ctx)
	if err != nil {
		return false, err
	}
	if !empty {
		return false, nil
	}
	if err := r.InsertSeed(ctx, seed); err != nil {
		return false, err
	}
	r.logger.Info("database seeded",
		"rounds", len(seed.Rounds),
		"teams", len(seed.Teams),
		"users", len(seed.Users),
	)
	return true, nil
}

// InsertSeed writes seed in a single transaction, skipping rows that exist
func (r *Repository) InsertSeed(ctx context.Context, seed domain.Seed) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	batch := seedBatch(seed)
	br := tx.SendBatch(ctx, batch)
	for i := 0; i < batch.Len(); i++ {
		if _, err := br.Exec(); err != nil {
			br.Close()
			return fmt.Errorf("inserting seed: %w", err)
		}
	}
	if err := br.Close(); err != nil {
		return fmt.Errorf("inserting seed: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("committing seed: %w", err)
	}
	return nil
}

func seedBatch(seed domain.Seed) *pgx.Batch {
	batch := &pgx.Batch{}
	for i, round := range seed.Rounds {
		batch.Queue(`
			INSERT INTO rounds (id, name, max_points, description, position)
			VALUES ($1, $2, $3, $4, $5)
			ON CONFLICT (id) DO NOTHING`,
			round.ID, round.Name, round.MaxPoints, round.Description, i,
		)
	}
	for i, team := range seed.Teams {
		batch.Queue(`
			INSERT INTO teams (id, name, mascot, members, last_update, trend, position)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
			ON CONFLICT (id) DO NOTHING`,
			team.ID, team.Name, team.Mascot, team.Members, team.LastUpdate, string(team.Trend), i,
		)
		for _, score := range team.Scores {
			batch.Queue(`
				INSERT INTO team_scores (team_id, round_id, points, updated_at, updated_by)
				VALUES ($1, $2, $3, $4, $5)
				ON CONFLICT (team_id, round_id) DO NOTHING`,
				team.ID, score.RoundID, score.Points, score.Timestamp, score.UpdatedBy,
			)
		}
	}
	for _, user := range seed.Users {
		var teamID *string
		if user.TeamID != "" {
			teamID = &user.TeamID
		}
		batch.Queue(`
			INSERT INTO users (id, name, email, role, team_id)
			VALUES ($1, $2, $3, $4, $5)
			ON CONFLICT (id) DO NOTHING`,
			user.ID, user.Name, user.Email, string(user.Role), teamID,
		)
	}
	return batch
}

// scoreRow is one row of team_scores
type scoreRow struct {
	TeamID    string
	RoundID   string
	Points    int
	UpdatedAt time.Time
	UpdatedBy string
}

// LoadSeed reads the reference data. Teams are returned with a score for
// every round; a missing row counts as zero points.
func (r *Repository) LoadSeed(ctx context.Context) (domain.Seed, error) {
	rounds, err := r.listRounds(ctx)
	if err != nil {
		return domain.Seed{}, err
	}
	teams, err := r.listTeams(ctx)
	if err != nil {
		return domain.Seed{}, err
	}
	scores, err := r.listScores(ctx)
	if err != nil {
		return domain.Seed{}, err
	}
	users, err := r.listUsers(ctx)
	if err != nil {
		return domain.Seed{}, err
	}

	return domain.Seed{
		Rounds: rounds,
		Teams:  assembleTeams(rounds, teams, scores),
		Users:  users,
	}, nil
}

func (r *Repository) listRounds(ctx context.Context) ([]domain.Round, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, name, max_points, description
		FROM rounds
		ORDER BY position, id
	`)
	if err != nil {
		return nil, fmt.Errorf("listing rounds: %w", err)
	}
	defer rows.Close()

	var rounds []domain.Round
	for rows.Next() {
		var round domain.Round
		if err := rows.Scan(&round.ID, &round.Name, &round.MaxPoints, &round.Description); err != nil {
			return nil, fmt.Errorf("scanning round: %w", err)
		}
		rounds = append(rounds, round)
	}
	return rounds, rows.Err()
}

func (r *Repository) listTeams(ctx context.Context) ([]domain.Team, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, name, mascot, members, last_update, trend
		FROM teams
		ORDER BY position, id
	`)
	if err != nil {
		return nil, fmt.Errorf("listing teams: %w", err)
	}
	defer rows.Close()

	var teams []domain.Team
	for rows.Next() {
		var team domain.Team
		var trend string
		if err := rows.Scan(&team.ID, &team.Name, &team.Mascot, &team.Members, &team.LastUpdate, &trend); err != nil {
			return nil, fmt.Errorf("scanning team: %w", err)
		}
		team.Trend = domain.Trend(trend)
		if !team.Trend.IsValid() {
			team.Trend = domain.TrendStable
		}
		teams = append(teams, team)
	}
	return teams, rows.Err()
}

func (r *Repository) listScores(ctx context.Context) ([]scoreRow, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT team_id, round_id, points, updated_at, updated_by
		FROM team_scores
	`)
	if err != nil {
		return nil, fmt.Errorf("listing scores: %w", err)
	}
	defer rows.Close()

	var scores []scoreRow
	for rows.Next() {
		var s scoreRow
		if err := rows.Scan(&s.TeamID, &s.RoundID, &s.Points, &s.UpdatedAt, &s.UpdatedBy); err != nil {
			return nil, fmt.Errorf("scanning score: %w", err)
		}
		scores = append(scores, s)
	}
	return scores, rows.Err()
}

func (r *Repository) listUsers(ctx context.Context) ([]domain.User, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, name, email, role, COALESCE(team_id, '')
		FROM users
		ORDER BY id
	`)
	if err != nil {
		return nil, fmt.Errorf("listing users: %w", err)
	}
	defer rows.Close()

	var users []domain.User
	for rows.Next() {
		var user domain.User
		var role string
		if err := rows.Scan(&user.ID, &user.Name, &user.Email, &role, &user.TeamID); err != nil {
			return nil, fmt.Errorf("scanning user: %w", err)
		}
		user.Role = domain.Role(role)
		if !user.Role.IsValid() {
			r.logger.Warn("skipping user with unknown role", "user_id", user.ID, "role", role)
			continue
		}
		users = append(users, user)
	}
	return users, rows.Err()
}

// assembleTeams attaches scores to teams in round order
func assembleTeams(rounds []domain.Round, teams []domain.Team, scores []scoreRow) []domain.Team {
	byTeam := make(map[string]map[string]scoreRow, len(teams))
	for _, s := range scores {
		if byTeam[s.TeamID] == nil {
			byTeam[s.TeamID] = make(map[string]scoreRow)
		}
		byTeam[s.TeamID][s.RoundID] = s
	}

	out := make([]domain.Team, len(teams))
	for i, team := range teams {
		team.Scores = make([]domain.Score, len(rounds))
		for j, round := range rounds {
			row := byTeam[team.ID][round.ID]
			team.Scores[j] = domain.Score{
				RoundID:   round.ID,
				RoundName: round.Name,
				Points:    row.Points,
				MaxPoints: round.MaxPoints,
				Timestamp: row.UpdatedAt.UTC(),
				UpdatedBy: row.UpdatedBy,
			}
		}
		out[i] = team
	}
	return out
}
