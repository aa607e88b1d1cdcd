package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/hackathon-leaderboard/internal/config"
	"github.com/hackathon-leaderboard/internal/domain"
	"github.com/hackathon-leaderboard/internal/notify"
	"github.com/hackathon-leaderboard/internal/ranking"
)

// Broadcaster pushes the current standings to connected dashboards
type Broadcaster interface {
	BroadcastStandings(teams []domain.Team, stats domain.DashboardStats)
}

// StandingsMirror receives a copy of the standings after each change
type StandingsMirror interface {
	PublishStandings(ctx context.Context, teams []domain.Team) error
}

// Recorder collects operational metrics
type Recorder interface {
	RecordScoreUpdate(outcome string)
	RecordNotification(kind string, err error)
	SetTeamCount(n int)
}

// Score update outcomes reported to the Recorder
const (
	OutcomeApplied      = "applied"
	OutcomeDenied       = "denied"
	OutcomeInvalid      = "invalid"
	OutcomeNotFound     = "not_found"
	OutcomeNotifyFailed = "notify_failed"
)

// Board owns the canonical team collection for the session. All reads return
// copies; all writes go through UpdateScore or CreateTeam, which re-rank the
// whole collection before releasing the lock. Concurrent edits of the same
// score are last-writer-wins.
//
// Every commit bumps version. Standings are fanned out under publishMu and a
// commit older than the last one published is dropped, so the hub and the
// mirror always end on the newest collection.
type Board struct {
	mu      sync.RWMutex
	teams   []domain.Team
	rounds  []domain.Round
	users   []domain.User
	version uint64

	publishMu sync.Mutex
	published uint64

	notifier      notify.Notifier
	notifyTimeout time.Duration
	hub           Broadcaster
	mirror        StandingsMirror
	metrics       Recorder
	config        *config.LeaderboardConfig
	logger        *slog.Logger
	now           func() time.Time
}

// NewBoard creates a board from seed data. Totals and ranks are recomputed
// so the collection is consistent regardless of where the seed came from.
func NewBoard(
	seed domain.Seed,
	notifier notify.Notifier,
	notifyTimeout time.Duration,
	cfg *config.LeaderboardConfig,
	logger *slog.Logger,
) *Board {
	teams := make([]domain.Team, len(seed.Teams))
	for i, t := range seed.Teams {
		teams[i] = ranking.RecomputeTotal(t)
	}
	if notifier == nil {
		notifier = notify.Nop{}
	}
	if notifyTimeout <= 0 {
		notifyTimeout = 5 * time.Second
	}
	return &Board{
		teams:         ranking.ReassignRanks(teams),
		rounds:        append([]domain.Round(nil), seed.Rounds...),
		users:         append([]domain.User(nil), seed.Users...),
		notifier:      notifier,
		notifyTimeout: notifyTimeout,
		config:        cfg,
		logger:        logger,
		now:           time.Now,
	}
}

// SetHub sets the broadcaster used after every change
func (b *Board) SetHub(hub Broadcaster) {
	b.hub = hub
}

// SetMirror sets the standings mirror
func (b *Board) SetMirror(mirror StandingsMirror) {
	b.mirror = mirror
}

// SetRecorder sets the metrics recorder
func (b *Board) SetRecorder(r Recorder) {
	b.metrics = r
	if r != nil {
		b.mu.RLock()
		r.SetTeamCount(len(b.teams))
		b.mu.RUnlock()
	}
}

// Rounds returns the judging rounds
func (b *Board) Rounds() []domain.Round {
	return append([]domain.Round(nil), b.rounds...)
}

// change is a committed collection and its position in commit order
type change struct {
	version uint64
	teams   []domain.Team
}

// Teams returns the ranked team collection
func (b *Board) Teams() []domain.Team {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return domain.CloneTeams(b.teams)
}

// Team returns a team by ID
func (b *Board) Team(teamID string) (domain.Team, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	idx := b.indexOf(teamID)
	if idx < 0 {
		return domain.Team{}, domain.ErrTeamNotFound
	}
	return b.teams[idx].Clone(), nil
}

// Breakdown returns a team's per-round scores with the achievable total
func (b *Board) Breakdown(teamID string) (domain.Breakdown, error) {
	team, err := b.Team(teamID)
	if err != nil {
		return domain.Breakdown{}, err
	}
	return domain.Breakdown{Team: team, MaxTotal: domain.MaxTotal(b.rounds)}, nil
}

// View returns the filtered and sorted teams for the given display controls
func (b *Board) View(opts ranking.ViewOptions) []domain.Team {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return opts.Apply(b.teams)
}

// Stats returns the dashboard aggregates
func (b *Board) Stats() domain.DashboardStats {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return ranking.ComputeStats(b.teams, b.rounds)
}

// Snapshot returns the teams and stats under a single read lock
func (b *Board) Snapshot() ([]domain.Team, domain.DashboardStats) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return domain.CloneTeams(b.teams), ranking.ComputeStats(b.teams, b.rounds)
}

// UserByEmail looks up a dashboard user, ignoring case and surrounding space
func (b *Board) UserByEmail(email string) (domain.User, error) {
	email = strings.TrimSpace(email)
	for _, u := range b.users {
		if strings.EqualFold(u.Email, email) {
			return u, nil
		}
	}
	return domain.User{}, domain.ErrUserNotFound
}

// UpdateScore sets one round's points for one team on behalf of actor.
//
// Non-admin actors get ErrPermissionDenied and nothing changes. The edit is
// committed and the collection re-ranked before the remote notification is
// sent; if that notification fails the updated team is still returned along
// with an error wrapping ErrRemoteNotificationFailed.
func (b *Board) UpdateScore(ctx context.Context, teamID, roundID string, points int, actor domain.User) (domain.Team, error) {
	if !actor.IsAdmin() {
		b.record(OutcomeDenied)
		b.logger.WarnContext(ctx, "score update denied",
			"user_id", actor.ID,
			"role", actor.Role,
			"team_id", teamID,
			"round_id", roundID,
		)
		return domain.Team{}, domain.ErrPermissionDenied
	}

	round, ok := domain.FindRound(b.rounds, roundID)
	if !ok {
		b.record(OutcomeNotFound)
		return domain.Team{}, fmt.Errorf("%w: %s", domain.ErrRoundNotFound, roundID)
	}

	if !b.config.AllowOutOfRangeScores && (points < 0 || points > round.MaxPoints) {
		b.record(OutcomeInvalid)
		return domain.Team{}, fmt.Errorf("%w: points %d outside 0..%d for %s",
			domain.ErrValidationFailed, points, round.MaxPoints, round.ID)
	}

	updated, committed, err := b.applyScore(teamID, roundID, points, actor)
	if err != nil {
		b.record(OutcomeNotFound)
		return domain.Team{}, err
	}

	b.logger.InfoContext(ctx, "score updated",
		"team_id", teamID,
		"round_id", roundID,
		"points", points,
		"team_points", updated.Points,
		"rank", updated.Rank,
		"updated_by", actor.Name,
	)
	b.afterChange(ctx, committed)

	err = b.notify(ctx, "score_update", func(nctx context.Context) error {
		return b.notifier.NotifyScoreUpdate(nctx, notify.ScoreNotification{
			TeamID:  teamID,
			RoundID: roundID,
			Points:  points,
			Actor:   actor,
		})
	})
	if err != nil {
		b.record(OutcomeNotifyFailed)
		return updated, err
	}

	b.record(OutcomeApplied)
	return updated, nil
}

// applyScore mutates the canonical collection and returns the updated team
// and the re-ranked collection.
func (b *Board) applyScore(teamID, roundID string, points int, actor domain.User) (domain.Team, change, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	idx := b.indexOf(teamID)
	if idx < 0 {
		return domain.Team{}, change{}, fmt.Errorf("%w: %s", domain.ErrTeamNotFound, teamID)
	}

	team := b.teams[idx].Clone()
	si := team.ScoreIndex(roundID)
	if si < 0 {
		return domain.Team{}, change{}, fmt.Errorf("%w: team %s round %s", domain.ErrScoreNotFound, teamID, roundID)
	}

	team.Scores[si].Points = points
	team.Scores[si].Timestamp = b.now().UTC()
	team.Scores[si].UpdatedBy = actor.Name
	team.LastUpdate = domain.LastUpdateJustNow

	next := make([]domain.Team, len(b.teams))
	copy(next, b.teams)
	next[idx] = ranking.RecomputeTotal(team)
	b.teams = ranking.ReassignRanks(next)

	return b.teams[b.indexOf(teamID)].Clone(), b.commit(), nil
}

// CreateTeam registers a new team with a zeroed score sheet
func (b *Board) CreateTeam(ctx context.Context, req domain.CreateTeamRequest, actor domain.User) (domain.Team, error) {
	if !actor.IsAdmin() {
		return domain.Team{}, domain.ErrPermissionDenied
	}

	name := strings.TrimSpace(req.Name)
	if name == "" {
		return domain.Team{}, fmt.Errorf("%w: team name is required", domain.ErrValidationFailed)
	}
	if req.Members < 0 {
		return domain.Team{}, fmt.Errorf("%w: members must not be negative", domain.ErrValidationFailed)
	}

	created, committed, err := b.insertTeam(name, req, actor)
	if err != nil {
		return domain.Team{}, err
	}

	b.logger.InfoContext(ctx, "team created",
		"team_id", created.ID,
		"name", created.Name,
		"rank", created.Rank,
		"created_by", actor.Name,
	)
	if b.metrics != nil {
		b.metrics.SetTeamCount(len(committed.teams))
	}
	b.afterChange(ctx, committed)

	err = b.notify(ctx, "team_created", func(nctx context.Context) error {
		return b.notifier.NotifyTeamCreated(nctx, notify.TeamNotification{Team: created, Actor: actor})
	})
	return created, err
}

func (b *Board) insertTeam(name string, req domain.CreateTeamRequest, actor domain.User) (domain.Team, change, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for _, t := range b.teams {
		if strings.EqualFold(t.Name, name) {
			return domain.Team{}, change{}, fmt.Errorf("%w: %s", domain.ErrTeamExists, name)
		}
	}

	mascot := req.Mascot
	if mascot == "" {
		mascot = domain.MascotFor(len(b.teams))
	}

	team := domain.Team{
		ID:         "team-" + uuid.New().String(),
		Name:       name,
		Mascot:     mascot,
		Members:    req.Members,
		LastUpdate: domain.LastUpdateJustNow,
		Trend:      domain.TrendStable,
		Scores:     domain.NewTeamScores(b.rounds, b.now().UTC(), actor.Name),
	}

	next := make([]domain.Team, 0, len(b.teams)+1)
	next = append(next, b.teams...)
	next = append(next, ranking.RecomputeTotal(team))
	b.teams = ranking.ReassignRanks(next)

	return b.teams[b.indexOf(team.ID)].Clone(), b.commit(), nil
}

// commit must be called with mu held
func (b *Board) commit() change {
	b.version++
	return change{version: b.version, teams: domain.CloneTeams(b.teams)}
}

// afterChange fans the new standings out to the hub and the mirror. A change
// that a newer one has already overtaken is skipped.
func (b *Board) afterChange(ctx context.Context, c change) {
	b.publishMu.Lock()
	defer b.publishMu.Unlock()

	if c.version <= b.published {
		b.logger.DebugContext(ctx, "standings superseded", "version", c.version, "published", b.published)
		return
	}
	b.published = c.version

	if b.hub != nil {
		b.hub.BroadcastStandings(c.teams, ranking.ComputeStats(c.teams, b.rounds))
	}
	if b.mirror != nil {
		if err := b.mirror.PublishStandings(ctx, c.teams); err != nil {
			// The mirror is a projection; the board stays authoritative.
			b.logger.WarnContext(ctx, "failed to mirror standings", "error", err)
		}
	}
}

// RepublishStandings writes the current standings to the mirror again,
// unless a newer commit has been published since they were read.
func (b *Board) RepublishStandings(ctx context.Context) error {
	if b.mirror == nil {
		return nil
	}

	b.mu.RLock()
	c := change{version: b.version, teams: domain.CloneTeams(b.teams)}
	b.mu.RUnlock()

	b.publishMu.Lock()
	defer b.publishMu.Unlock()

	if c.version < b.published {
		return nil
	}
	b.published = c.version
	return b.mirror.PublishStandings(ctx, c.teams)
}

// notify runs fn with a timeout that is detached from the caller's
// cancellation, so a client hanging up does not abort the notification.
func (b *Board) notify(ctx context.Context, kind string, fn func(context.Context) error) error {
	nctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), b.notifyTimeout)
	defer cancel()

	err := fn(nctx)
	if b.metrics != nil {
		b.metrics.RecordNotification(kind, err)
	}
	if err != nil {
		b.logger.ErrorContext(ctx, "remote notification failed", "kind", kind, "error", err)
		return errors.Join(domain.ErrRemoteNotificationFailed, err)
	}
	return nil
}

func (b *Board) record(outcome string) {
	if b.metrics != nil {
		b.metrics.RecordScoreUpdate(outcome)
	}
}

// indexOf must be called with mu held
func (b *Board) indexOf(teamID string) int {
	for i, t := range b.teams {
		if t.ID == teamID {
			return i
		}
	}
	return -1
}
