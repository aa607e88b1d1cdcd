package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/hackathon-leaderboard/internal/auth"
	"github.com/hackathon-leaderboard/internal/config"
	"github.com/hackathon-leaderboard/internal/domain"
	"github.com/hackathon-leaderboard/internal/metrics"
	"github.com/hackathon-leaderboard/internal/notify"
	"github.com/hackathon-leaderboard/internal/service"
	"github.com/hackathon-leaderboard/internal/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type response struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   string          `json:"error"`
	Message string          `json:"message"`
	TeamID  string          `json:"teamId"`
}

type fakeMirror struct {
	standings *domain.MirroredStandings
	err       error
	pingErr   error
	limit     int
}

func (f *fakeMirror) Top(_ context.Context, n int) (*domain.MirroredStandings, error) {
	f.limit = n
	return f.standings, f.err
}

func (f *fakeMirror) Ping(context.Context) error { return f.pingErr }

type failingNotifier struct {
	err error
}

func (f failingNotifier) NotifyScoreUpdate(context.Context, notify.ScoreNotification) error {
	return f.err
}

func (f failingNotifier) NotifyTeamCreated(context.Context, notify.TeamNotification) error {
	return f.err
}

type testServer struct {
	handler *Handler
	router  http.Handler
	board   *service.Board
	tokens  auth.Provider
}

func newTestServer(t *testing.T, notifier notify.Notifier) *testServer {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	cfg := config.DefaultConfig()

	board := service.NewBoard(domain.DefaultSeed(), notifier, time.Second, &cfg.Leaderboard, logger)
	tokens := auth.NewProvider(cfg.Auth.JWTSecret)
	hub := websocket.NewHub(board, logger)

	h := NewHandler(board, tokens, hub, cfg, logger)
	return &testServer{handler: h, router: h.Router(), board: board, tokens: tokens}
}

func (s *testServer) token(t *testing.T, email string) string {
	t.Helper()
	user, err := s.board.UserByEmail(email)
	require.NoError(t, err)
	token, err := s.tokens.GenerateToken(user, time.Hour)
	require.NoError(t, err)
	return token
}

func (s *testServer) do(t *testing.T, method, path, token string, body interface{}) (int, response) {
	t.Helper()
	var reader io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		reader = bytes.NewBufferString(b)
	default:
		data, err := json.Marshal(b)
		require.NoError(t, err)
		reader = bytes.NewBuffer(data)
	}

	req := httptest.NewRequest(method, path, reader)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)

	var resp response
	if rec.Header().Get("Content-Type") == "application/json" {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	}
	return rec.Code, resp
}

const (
	adminEmail  = "admin@manipal.edu"
	memberEmail = "alex@team1.com"
)

func TestHealthAndReady(t *testing.T) {
	s := newTestServer(t, notify.Nop{})

	code, resp := s.do(t, http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, code)
	assert.True(t, resp.Success)

	code, _ = s.do(t, http.MethodGet, "/ready", "", nil)
	assert.Equal(t, http.StatusOK, code)

	s.handler.SetMirror(&fakeMirror{pingErr: errors.New("connection refused")})
	code, resp = s.do(t, http.MethodGet, "/ready", "", nil)
	assert.Equal(t, http.StatusServiceUnavailable, code)
	assert.False(t, resp.Success)
}

func TestLogin(t *testing.T) {
	s := newTestServer(t, notify.Nop{})

	code, resp := s.do(t, http.MethodPost, "/api/login", "", domain.LoginRequest{Email: adminEmail, Password: "anything"})
	require.Equal(t, http.StatusOK, code)

	var login domain.LoginResponse
	require.NoError(t, json.Unmarshal(resp.Data, &login))
	assert.NotEmpty(t, login.Token)
	assert.Equal(t, "Sarah Johnson", login.User.Name)
	assert.Equal(t, domain.RoleAdmin, login.User.Role)

	code, resp = s.do(t, http.MethodGet, "/api/me", login.Token, nil)
	require.Equal(t, http.StatusOK, code)
	var me domain.User
	require.NoError(t, json.Unmarshal(resp.Data, &me))
	assert.Equal(t, "user-admin-1", me.ID)

	code, _ = s.do(t, http.MethodPost, "/api/login", "", domain.LoginRequest{Email: "nobody@example.com"})
	assert.Equal(t, http.StatusUnauthorized, code)

	code, _ = s.do(t, http.MethodPost, "/api/login", "", "{not json")
	assert.Equal(t, http.StatusBadRequest, code)

	code, _ = s.do(t, http.MethodPost, "/api/login", "", domain.LoginRequest{})
	assert.Equal(t, http.StatusBadRequest, code)
}

func TestAuthentication(t *testing.T) {
	s := newTestServer(t, notify.Nop{})

	code, resp := s.do(t, http.MethodGet, "/api/teams", "", nil)
	assert.Equal(t, http.StatusUnauthorized, code)
	assert.Equal(t, domain.ErrUnauthorized.Error(), resp.Error)

	code, _ = s.do(t, http.MethodGet, "/api/teams", "not-a-token", nil)
	assert.Equal(t, http.StatusUnauthorized, code)

	code, _ = s.do(t, http.MethodGet, "/api/teams", s.token(t, memberEmail), nil)
	assert.Equal(t, http.StatusOK, code)
}

func TestListTeams(t *testing.T) {
	s := newTestServer(t, notify.Nop{})
	token := s.token(t, memberEmail)

	tests := []struct {
		name     string
		query    string
		wantCode int
		wantIDs  []string
	}{
		{
			name:     "default view",
			query:    "",
			wantCode: http.StatusOK,
			wantIDs:  []string{"team-001", "team-002", "team-003", "team-004", "team-005"},
		},
		{
			name:     "search by name",
			query:    "?search=code&sort=name",
			wantCode: http.StatusOK,
			wantIDs:  []string{"team-005", "team-001"},
		},
		{
			name:     "top three",
			query:    "?filter=top3",
			wantCode: http.StatusOK,
			wantIDs:  []string{"team-001", "team-002", "team-003"},
		},
		{
			name:     "trending by points",
			query:    "?filter=trending&sort=points",
			wantCode: http.StatusOK,
			wantIDs:  []string{"team-001", "team-003", "team-005"},
		},
		{
			name:     "no match",
			query:    "?search=zzz",
			wantCode: http.StatusOK,
			wantIDs:  []string{},
		},
		{
			name:     "unknown sort",
			query:    "?sort=mascot",
			wantCode: http.StatusBadRequest,
		},
		{
			name:     "unknown filter",
			query:    "?filter=bottom",
			wantCode: http.StatusBadRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, resp := s.do(t, http.MethodGet, "/api/teams"+tt.query, token, nil)
			require.Equal(t, tt.wantCode, code)
			if tt.wantCode != http.StatusOK {
				assert.False(t, resp.Success)
				return
			}

			var teams []domain.Team
			require.NoError(t, json.Unmarshal(resp.Data, &teams))
			ids := make([]string, len(teams))
			for i, team := range teams {
				ids[i] = team.ID
			}
			assert.Equal(t, tt.wantIDs, ids)
		})
	}
}

func TestGetTeamRoundsAndStats(t *testing.T) {
	s := newTestServer(t, notify.Nop{})
	token := s.token(t, memberEmail)

	code, resp := s.do(t, http.MethodGet, "/api/teams/team-003", token, nil)
	require.Equal(t, http.StatusOK, code)
	var breakdown struct {
		Team     map[string]interface{} `json:"team"`
		MaxTotal int                    `json:"maxTotal"`
	}
	require.NoError(t, json.Unmarshal(resp.Data, &breakdown))
	assert.Equal(t, 3000, breakdown.MaxTotal)
	assert.Equal(t, "bronze", breakdown.Team["podium"])
	assert.Len(t, breakdown.Team["scores"], 5)

	code, _ = s.do(t, http.MethodGet, "/api/teams/team-404", token, nil)
	assert.Equal(t, http.StatusNotFound, code)

	code, resp = s.do(t, http.MethodGet, "/api/rounds", token, nil)
	require.Equal(t, http.StatusOK, code)
	var rounds []domain.Round
	require.NoError(t, json.Unmarshal(resp.Data, &rounds))
	assert.Len(t, rounds, 5)

	code, resp = s.do(t, http.MethodGet, "/api/stats", token, nil)
	require.Equal(t, http.StatusOK, code)
	var stats domain.DashboardStats
	require.NoError(t, json.Unmarshal(resp.Data, &stats))
	assert.Equal(t, domain.DashboardStats{
		TotalTeams:   5,
		TotalPoints:  12670,
		AvgPoints:    2534,
		ActiveRounds: 5,
		LastUpdate:   time.Date(2024, 1, 15, 19, 50, 0, 0, time.UTC),
	}, stats)
}

func TestUpdateScore(t *testing.T) {
	s := newTestServer(t, notify.Nop{})
	admin := s.token(t, adminEmail)
	member := s.token(t, memberEmail)

	tests := []struct {
		name     string
		token    string
		path     string
		body     interface{}
		wantCode int
	}{
		{"member is forbidden", member, "/api/teams/team-005/scores/round-1", map[string]int{"points": 560}, http.StatusForbidden},
		{"missing points", admin, "/api/teams/team-005/scores/round-1", map[string]int{}, http.StatusBadRequest},
		{"malformed body", admin, "/api/teams/team-005/scores/round-1", "{", http.StatusBadRequest},
		{"out of range", admin, "/api/teams/team-005/scores/round-1", map[string]int{"points": 501}, http.StatusUnprocessableEntity},
		{"unknown team", admin, "/api/teams/team-404/scores/round-1", map[string]int{"points": 1}, http.StatusNotFound},
		{"unknown round", admin, "/api/teams/team-005/scores/round-9", map[string]int{"points": 1}, http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, resp := s.do(t, http.MethodPatch, tt.path, tt.token, tt.body)
			assert.Equal(t, tt.wantCode, code)
			assert.False(t, resp.Success)
			assert.NotEmpty(t, resp.Error)
		})
	}

	code, resp := s.do(t, http.MethodPatch, "/api/teams/team-005/scores/round-1", admin, map[string]int{"points": 560})
	require.Equal(t, http.StatusOK, code)
	assert.True(t, resp.Success)
	assert.Equal(t, "Score updated successfully", resp.Message)

	var team domain.Team
	require.NoError(t, json.Unmarshal(resp.Data, &team))
	assert.Equal(t, 2380, team.Points)
	assert.Equal(t, 4, team.Rank)
	assert.Equal(t, domain.LastUpdateJustNow, team.LastUpdate)
}

func TestUpdateScore_NotificationFailure(t *testing.T) {
	s := newTestServer(t, failingNotifier{err: errors.New("remote unavailable")})

	code, resp := s.do(t, http.MethodPatch, "/api/teams/team-002/scores/round-2", s.token(t, adminEmail), map[string]int{"points": 800})
	require.Equal(t, http.StatusAccepted, code)
	assert.True(t, resp.Success)
	assert.Contains(t, resp.Message, "remote notification failed")

	team, err := s.board.Team("team-002")
	require.NoError(t, err)
	assert.Equal(t, 2800, team.Points)
}

func TestCreateTeam(t *testing.T) {
	s := newTestServer(t, notify.Nop{})
	admin := s.token(t, adminEmail)

	code, _ := s.do(t, http.MethodPost, "/api/teams", s.token(t, memberEmail), domain.CreateTeamRequest{Name: "Byte Me", Members: 2})
	assert.Equal(t, http.StatusForbidden, code)

	code, resp := s.do(t, http.MethodPost, "/api/teams", admin, domain.CreateTeamRequest{Name: "Byte Me", Members: 2})
	require.Equal(t, http.StatusCreated, code)
	assert.NotEmpty(t, resp.TeamID)

	var team domain.Team
	require.NoError(t, json.Unmarshal(resp.Data, &team))
	assert.Equal(t, resp.TeamID, team.ID)
	assert.Equal(t, 6, team.Rank)

	code, _ = s.do(t, http.MethodPost, "/api/teams", admin, domain.CreateTeamRequest{Name: "byte me"})
	assert.Equal(t, http.StatusConflict, code)

	code, _ = s.do(t, http.MethodPost, "/api/teams", admin, domain.CreateTeamRequest{})
	assert.Equal(t, http.StatusUnprocessableEntity, code)

	code, _ = s.do(t, http.MethodGet, "/api/teams/"+resp.TeamID, admin, nil)
	assert.Equal(t, http.StatusOK, code)
}

func TestMirroredStandings(t *testing.T) {
	s := newTestServer(t, notify.Nop{})
	token := s.token(t, memberEmail)

	code, _ := s.do(t, http.MethodGet, "/api/standings/mirror", token, nil)
	assert.Equal(t, http.StatusNotFound, code)

	mirror := &fakeMirror{standings: &domain.MirroredStandings{
		Entries:    []domain.StandingEntry{{Rank: 1, TeamID: "team-001", Name: "Code Wizards", Points: 2850}},
		TotalTeams: 5,
	}}
	s.handler.SetMirror(mirror)

	code, resp := s.do(t, http.MethodGet, "/api/standings/mirror?limit=1", token, nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, 1, mirror.limit)
	var got domain.MirroredStandings
	require.NoError(t, json.Unmarshal(resp.Data, &got))
	assert.Equal(t, 5, got.TotalTeams)
	require.Len(t, got.Entries, 1)

	code, _ = s.do(t, http.MethodGet, "/api/standings/mirror?limit=abc", token, nil)
	assert.Equal(t, http.StatusBadRequest, code)

	mirror.err = domain.ErrStandingsNotPublished
	code, _ = s.do(t, http.MethodGet, "/api/standings/mirror", token, nil)
	assert.Equal(t, http.StatusNotFound, code)
	assert.Equal(t, 10, mirror.limit)

	mirror.err = errors.New("i/o timeout")
	code, resp = s.do(t, http.MethodGet, "/api/standings/mirror", token, nil)
	assert.Equal(t, http.StatusInternalServerError, code)
	assert.Equal(t, domain.ErrInternalError.Error(), resp.Error)
}

func TestMetricsEndpoint(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	cfg := config.DefaultConfig()
	board := service.NewBoard(domain.DefaultSeed(), notify.Nop{}, time.Second, &cfg.Leaderboard, logger)
	h := NewHandler(board, auth.NewProvider(cfg.Auth.JWTSecret), websocket.NewHub(board, logger), cfg, logger)
	h.SetMetrics(metrics.New())
	router := h.Router()

	router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/health", nil))

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `hackathon_leaderboard_http_requests_total{method="GET",route="/health",status="200"} 1`)
}

func TestStatusFor(t *testing.T) {
	assert.Equal(t, http.StatusBadRequest, statusFor(domain.ErrInvalidRequest))
	assert.Equal(t, http.StatusUnauthorized, statusFor(domain.ErrUnauthorized))
	assert.Equal(t, http.StatusForbidden, statusFor(domain.ErrPermissionDenied))
	assert.Equal(t, http.StatusNotFound, statusFor(domain.ErrScoreNotFound))
	assert.Equal(t, http.StatusConflict, statusFor(domain.ErrTeamExists))
	assert.Equal(t, http.StatusUnprocessableEntity, statusFor(domain.ErrValidationFailed))
	assert.Equal(t, http.StatusInternalServerError, statusFor(errors.New("boom")))
}
