package service

import (
	"context"

	"github.com/hackathon-leaderboard/internal/domain"
	"github.com/hackathon-leaderboard/internal/notify"
	"github.com/stretchr/testify/mock"
)

type MockNotifier struct {
	mock.Mock
}

func (m *MockNotifier) NotifyScoreUpdate(ctx context.Context, n notify.ScoreNotification) error {
	args := m.Called(ctx, n)
	return args.Error(0)
}

func (m *MockNotifier) NotifyTeamCreated(ctx context.Context, n notify.TeamNotification) error {
	args := m.Called(ctx, n)
	return args.Error(0)
}

type MockBroadcaster struct {
	mock.Mock
}

func (m *MockBroadcaster) BroadcastStandings(teams []domain.Team, stats domain.DashboardStats) {
	m.Called(teams, stats)
}

type MockStandingsMirror struct {
	mock.Mock
}

func (m *MockStandingsMirror) PublishStandings(ctx context.Context, teams []domain.Team) error {
	args := m.Called(ctx, teams)
	return args.Error(0)
}

type MockRecorder struct {
	mock.Mock
}

func (m *MockRecorder) RecordScoreUpdate(outcome string) {
	m.Called(outcome)
}

func (m *MockRecorder) RecordNotification(kind string, err error) {
	m.Called(kind, err)
}

func (m *MockRecorder) SetTeamCount(n int) {
	m.Called(n)
}
