// Package notify sends the remote update notifications that follow a local
// score edit or team creation.
package notify

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/hackathon-leaderboard/internal/config"
	"github.com/hackathon-leaderboard/internal/domain"
)

// ScoreNotification describes a committed score edit
type ScoreNotification struct {
	TeamID  string
	RoundID string
	Points  int
	Actor   domain.User
}

// TeamNotification describes a newly created team
type TeamNotification struct {
	Team  domain.Team
	Actor domain.User
}

// Notifier delivers notifications to the remote scoring API
type Notifier interface {
	NotifyScoreUpdate(ctx context.Context, n ScoreNotification) error
	NotifyTeamCreated(ctx context.Context, n TeamNotification) error
}

// TokenIssuer mints the bearer credential sent with each notification
type TokenIssuer interface {
	GenerateToken(user domain.User, ttl time.Duration) (string, error)
}

// New builds the notifier selected by cfg.Mode
func New(cfg *config.NotifyConfig, tokens TokenIssuer, logger *slog.Logger) (Notifier, error) {
	switch cfg.Mode {
	case config.NotifyModeMock:
		return NewMock(cfg.Delay, logger), nil
	case config.NotifyModeHTTP:
		return NewHTTPNotifier(cfg.BaseURL, nil, tokens, cfg.Timeout, logger), nil
	case config.NotifyModeDisabled:
		return Nop{}, nil
	default:
		return nil, fmt.Errorf("unknown notify mode %q", cfg.Mode)
	}
}

// Nop discards notifications
type Nop struct{}

func (Nop) NotifyScoreUpdate(context.Context, ScoreNotification) error { return nil }
func (Nop) NotifyTeamCreated(context.Context, TeamNotification) error  { return nil }

func scorePath(teamID, roundID string) string {
	return fmt.Sprintf("/api/teams/%s/scores/%s", teamID, roundID)
}

const teamsPath = "/api/teams"
