package redis

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strconv"
	"time"

	"github.com/hackathon-leaderboard/internal/config"
	"github.com/hackathon-leaderboard/internal/domain"
	"github.com/redis/go-redis/v9"
)

// StandingsMirror keeps a read-only projection of the standings in Redis:
// a sorted set of team points, one hash per team and a meta hash.
// The in-memory board remains the source of truth.
type StandingsMirror struct {
	client *redis.Client
	prefix string
	logger *slog.Logger
	now    func() time.Time
}

// NewStandingsMirror creates a new Redis standings mirror
func NewStandingsMirror(cfg *config.RedisConfig, logger *slog.Logger) (*StandingsMirror, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     cfg.PoolSize,
		MinIdleConns: cfg.MinIdleConns,
		DialTimeout:  cfg.DialTimeout,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	})

	// Test connection
	ctx := context.Background()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("connecting to redis: %w", err)
	}

	return newStandingsMirror(client, cfg.KeyPrefix, logger), nil
}

func newStandingsMirror(client *redis.Client, prefix string, logger *slog.Logger) *StandingsMirror {
	return &StandingsMirror{
		client: client,
		prefix: prefix,
		logger: logger,
		now:    time.Now,
	}
}

// Close closes the Redis connection
func (m *StandingsMirror) Close() error {
	return m.client.Close()
}

// Ping checks the Redis connection
func (m *StandingsMirror) Ping(ctx context.Context) error {
	return m.client.Ping(ctx).Err()
}

// standingsKey returns the Redis key for the points sorted set
func (m *StandingsMirror) standingsKey() string {
	return fmt.Sprintf("%s:standings", m.prefix)
}

// teamKey returns the Redis key for a team's hash
func (m *StandingsMirror) teamKey(teamID string) string {
	return fmt.Sprintf("%s:team:%s", m.prefix, teamID)
}

// metaKey returns the Redis key for publish metadata
func (m *StandingsMirror) metaKey() string {
	return fmt.Sprintf("%s:standings:meta", m.prefix)
}

// PublishStandings replaces the mirrored standings with teams in one
// transaction, so readers never see a half-written projection.
func (m *StandingsMirror) PublishStandings(ctx context.Context, teams []domain.Team) error {
	key := m.standingsKey()
	publishedAt := m.now().UTC()

	_, err := m.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, key)
		for _, t := range teams {
			pipe.ZAdd(ctx, key, redis.Z{
				Score:  float64(t.Points),
				Member: t.ID,
			})
			pipe.HSet(ctx, m.teamKey(t.ID), teamFields(t)...)
		}
		pipe.HSet(ctx, m.metaKey(),
			"published_at", publishedAt.Format(time.RFC3339Nano),
			"total_teams", len(teams),
		)
		return nil
	})
	if err != nil {
		return fmt.Errorf("publishing standings: %w", err)
	}

	m.logger.Debug("standings mirrored", "teams", len(teams))
	return nil
}

// Top returns the first n mirrored teams by rank. n <= 0 returns all.
func (m *StandingsMirror) Top(ctx context.Context, n int) (*domain.MirroredStandings, error) {
	meta, err := m.client.HGetAll(ctx, m.metaKey()).Result()
	if err != nil {
		return nil, fmt.Errorf("getting standings meta: %w", err)
	}
	if len(meta) == 0 {
		return nil, domain.ErrStandingsNotPublished
	}

	results, err := m.rangeWithTies(ctx, n)
	if err != nil {
		return nil, err
	}

	// Use pipeline to fetch all team hashes in one round trip
	pipe := m.client.Pipeline()
	cmds := make([]*redis.MapStringStringCmd, len(results))
	for i, result := range results {
		cmds[i] = pipe.HGetAll(ctx, m.teamKey(result.Member.(string)))
	}
	if len(cmds) > 0 {
		if _, err := pipe.Exec(ctx); err != nil {
			return nil, fmt.Errorf("getting team info: %w", err)
		}
	}

	entries := make([]domain.StandingEntry, len(results))
	for i, result := range results {
		entries[i] = parseEntry(result.Member.(string), int(result.Score), cmds[i].Val())
	}
	entries = selectTop(entries, n)

	total, _ := strconv.Atoi(meta["total_teams"])
	publishedAt, _ := time.Parse(time.RFC3339Nano, meta["published_at"])

	return &domain.MirroredStandings{
		Entries:     entries,
		TotalTeams:  total,
		PublishedAt: publishedAt,
	}, nil
}

// rangeWithTies returns the first n members by score plus every member tied
// with the nth, so the cut can be made by rank instead of by member name.
func (m *StandingsMirror) rangeWithTies(ctx context.Context, n int) ([]redis.Z, error) {
	stop := int64(-1)
	if n > 0 {
		stop = int64(n - 1)
	}
	results, err := m.client.ZRevRangeWithScores(ctx, m.standingsKey(), 0, stop).Result()
	if err != nil {
		return nil, fmt.Errorf("getting top n: %w", err)
	}
	if n <= 0 || len(results) < n {
		return results, nil
	}

	cutoff := strconv.FormatFloat(results[n-1].Score, 'f', -1, 64)
	results, err = m.client.ZRevRangeByScoreWithScores(ctx, m.standingsKey(), &redis.ZRangeBy{
		Max: "+inf",
		Min: cutoff,
	}).Result()
	if err != nil {
		return nil, fmt.Errorf("getting tied entries: %w", err)
	}
	return results, nil
}

// selectTop orders entries by the board's rank and keeps the first n.
// n <= 0 keeps all.
func selectTop(entries []domain.StandingEntry, n int) []domain.StandingEntry {
	slices.SortStableFunc(entries, func(a, b domain.StandingEntry) int {
		return a.Rank - b.Rank
	})
	if n > 0 && len(entries) > n {
		entries = entries[:n]
	}
	return entries
}

func teamFields(t domain.Team) []interface{} {
	return []interface{}{
		"name", t.Name,
		"mascot", t.Mascot,
		"rank", t.Rank,
		"points", t.Points,
		"trend", string(t.Trend),
	}
}

func parseEntry(teamID string, score int, fields map[string]string) domain.StandingEntry {
	rank, _ := strconv.Atoi(fields["rank"])
	return domain.StandingEntry{
		Rank:   rank,
		TeamID: teamID,
		Name:   fields["name"],
		Mascot: fields["mascot"],
		Points: score,
		Trend:  domain.Trend(fields["trend"]),
	}
}
