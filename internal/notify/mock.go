package notify

import (
	"context"
	"log/slog"
	"net/http"
	"time"
)

// Mock logs the request it would have sent and waits for delay, imitating a
// slow upstream. It never fails unless the context ends first.
type Mock struct {
	delay  time.Duration
	logger *slog.Logger
}

// NewMock creates a logging notifier
func NewMock(delay time.Duration, logger *slog.Logger) *Mock {
	return &Mock{delay: delay, logger: logger}
}

// MockToken is the placeholder credential the mock sends for a user
func MockToken(userID string) string {
	return "mock-admin-token-" + userID
}

// NotifyScoreUpdate logs a PATCH of the score
func (m *Mock) NotifyScoreUpdate(ctx context.Context, n ScoreNotification) error {
	m.logger.InfoContext(ctx, "API call",
		"endpoint", scorePath(n.TeamID, n.RoundID),
		"method", http.MethodPatch,
		"authorization", "Bearer "+MockToken(n.Actor.ID),
		"points", n.Points,
	)
	return m.wait(ctx)
}

// NotifyTeamCreated logs a POST of the team
func (m *Mock) NotifyTeamCreated(ctx context.Context, n TeamNotification) error {
	m.logger.InfoContext(ctx, "API call",
		"endpoint", teamsPath,
		"method", http.MethodPost,
		"authorization", "Bearer "+MockToken(n.Actor.ID),
		"team_id", n.Team.ID,
		"name", n.Team.Name,
	)
	return m.wait(ctx)
}

func (m *Mock) wait(ctx context.Context) error {
	if m.delay <= 0 {
		return nil
	}
	timer := time.NewTimer(m.delay)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
