package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/hackathon-leaderboard/internal/auth"
	"github.com/hackathon-leaderboard/internal/config"
	"github.com/hackathon-leaderboard/internal/domain"
	"github.com/hackathon-leaderboard/internal/metrics"
	"github.com/hackathon-leaderboard/internal/ranking"
	"github.com/hackathon-leaderboard/internal/service"
	"github.com/hackathon-leaderboard/internal/websocket"
)

// StandingsReader reads the mirrored standings
type StandingsReader interface {
	Top(ctx context.Context, n int) (*domain.MirroredStandings, error)
	Ping(ctx context.Context) error
}

// Handler provides HTTP handlers for the leaderboard API
type Handler struct {
	board       *service.Board
	tokens      auth.Provider
	tokenTTL    time.Duration
	hub         *websocket.Hub
	mirror      StandingsReader
	metrics     *metrics.Metrics
	metricsPath string
	logger      *slog.Logger
}

// NewHandler creates a new HTTP handler
func NewHandler(board *service.Board, tokens auth.Provider, hub *websocket.Hub, cfg *config.Config, logger *slog.Logger) *Handler {
	return &Handler{
		board:       board,
		tokens:      tokens,
		tokenTTL:    cfg.Auth.TokenTTL,
		hub:         hub,
		metricsPath: cfg.Metrics.Path,
		logger:      logger,
	}
}

// SetMirror enables the mirrored standings endpoint and the readiness probe
func (h *Handler) SetMirror(mirror StandingsReader) {
	h.mirror = mirror
}

// SetMetrics enables request instrumentation and the metrics endpoint
func (h *Handler) SetMetrics(m *metrics.Metrics) {
	h.metrics = m
}

// APIResponse represents a standard API response
type APIResponse struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
	Message string      `json:"message,omitempty"`
	TeamID  string      `json:"teamId,omitempty"`
}

// Router creates and configures the HTTP router
func (h *Handler) Router() http.Handler {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	if h.metrics != nil {
		r.Use(h.metrics.Middleware)
	}
	r.Use(middleware.Compress(5))
	r.Use(corsMiddleware)

	// Health check
	r.Get("/health", h.HealthCheck)
	r.Get("/ready", h.ReadyCheck)

	if h.metrics != nil {
		r.Method(http.MethodGet, h.metricsPath, h.metrics.Handler())
	}

	// WebSocket endpoint
	r.Get("/ws", h.HandleWebSocket)

	r.Route("/api", func(r chi.Router) {
		r.Post("/login", h.Login)

		r.Group(func(r chi.Router) {
			r.Use(h.Authenticate)

			r.Get("/me", h.Me)
			r.Get("/rounds", h.ListRounds)
			r.Get("/stats", h.GetStats)
			r.Get("/standings/mirror", h.GetMirroredStandings)
			r.Get("/ws/stats", h.GetWebSocketStats)

			r.Route("/teams", func(r chi.Router) {
				r.Get("/", h.ListTeams)
				r.With(h.RequireAdmin).Post("/", h.CreateTeam)

				r.Route("/{teamID}", func(r chi.Router) {
					r.Get("/", h.GetTeam)
					r.Patch("/scores/{roundID}", h.UpdateScore)
				})
			})
		})
	})

	return r
}

// corsMiddleware adds CORS headers
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PATCH, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Accept, Authorization, Content-Type, X-Request-ID")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// writeJSON writes a JSON response
func (h *Handler) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// writeSuccess writes a successful JSON response
func (h *Handler) writeSuccess(w http.ResponseWriter, data interface{}) {
	h.writeJSON(w, http.StatusOK, APIResponse{
		Success: true,
		Data:    data,
	})
}

// writeError writes an error JSON response
func (h *Handler) writeError(w http.ResponseWriter, status int, err error) {
	h.writeJSON(w, status, APIResponse{
		Success: false,
		Error:   err.Error(),
	})
}

// writeServiceError maps a service error to its status. Unexpected errors
// are logged and reported as a generic internal error.
func (h *Handler) writeServiceError(w http.ResponseWriter, r *http.Request, op string, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		h.logger.ErrorContext(r.Context(), "request failed",
			"op", op,
			"error", err,
			"request_id", middleware.GetReqID(r.Context()),
		)
		h.writeError(w, status, domain.ErrInternalError)
		return
	}
	h.writeError(w, status, err)
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrInvalidRequest):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, domain.ErrPermissionDenied):
		return http.StatusForbidden
	case domain.IsNotFoundError(err):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrTeamExists):
		return http.StatusConflict
	case errors.Is(err, domain.ErrValidationFailed):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

// HandleWebSocket handles WebSocket upgrade requests
func (h *Handler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	websocket.ServeWs(h.hub, h.logger, w, r)
}

// GetWebSocketStats returns WebSocket connection statistics
func (h *Handler) GetWebSocketStats(w http.ResponseWriter, r *http.Request) {
	h.writeSuccess(w, map[string]interface{}{
		"total_connections": h.hub.GetTotalConnections(),
	})
}

// HealthCheck returns service health status
func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	h.writeSuccess(w, map[string]string{"status": "healthy"})
}

// ReadyCheck returns service readiness status
func (h *Handler) ReadyCheck(w http.ResponseWriter, r *http.Request) {
	if h.mirror != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := h.mirror.Ping(ctx); err != nil {
			h.logger.Warn("readiness check failed", "error", err)
			h.writeError(w, http.StatusServiceUnavailable, errors.New("standings mirror unavailable"))
			return
		}
	}
	h.writeSuccess(w, map[string]string{"status": "ready"})
}

// Login issues a session token for a known user
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req domain.LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, domain.ErrInvalidRequest)
		return
	}
	if strings.TrimSpace(req.Email) == "" {
		h.writeError(w, http.StatusBadRequest, domain.ErrInvalidRequest)
		return
	}

	user, err := h.board.UserByEmail(req.Email)
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			h.writeError(w, http.StatusUnauthorized, domain.ErrUnauthorized)
			return
		}
		h.writeServiceError(w, r, "login", err)
		return
	}

	token, err := h.tokens.GenerateToken(user, h.tokenTTL)
	if err != nil {
		h.writeServiceError(w, r, "login", err)
		return
	}

	h.logger.Info("user logged in", "user_id", user.ID, "role", user.Role)
	h.writeSuccess(w, domain.LoginResponse{Token: token, User: user})
}

// Me returns the authenticated user
func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	user, _ := UserFromContext(r.Context())
	h.writeSuccess(w, user)
}

// ListRounds returns the judging rounds
func (h *Handler) ListRounds(w http.ResponseWriter, r *http.Request) {
	h.writeSuccess(w, h.board.Rounds())
}

// ListTeams returns the teams filtered and sorted by the query parameters
func (h *Handler) ListTeams(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	sortKey, err := ranking.ParseSortKey(q.Get("sort"))
	if err != nil {
		h.writeError(w, http.StatusBadRequest, err)
		return
	}
	filterKey, err := ranking.ParseFilterKey(q.Get("filter"))
	if err != nil {
		h.writeError(w, http.StatusBadRequest, err)
		return
	}

	h.writeSuccess(w, h.board.View(ranking.ViewOptions{
		Search: q.Get("search"),
		Sort:   sortKey,
		Filter: filterKey,
	}))
}

// GetTeam returns a team's score breakdown
func (h *Handler) GetTeam(w http.ResponseWriter, r *http.Request) {
	teamID := chi.URLParam(r, "teamID")
	if teamID == "" {
		h.writeError(w, http.StatusBadRequest, domain.ErrInvalidRequest)
		return
	}

	breakdown, err := h.board.Breakdown(teamID)
	if err != nil {
		h.writeServiceError(w, r, "get team", err)
		return
	}

	h.writeSuccess(w, breakdown)
}

// GetStats returns the dashboard aggregates
func (h *Handler) GetStats(w http.ResponseWriter, r *http.Request) {
	h.writeSuccess(w, h.board.Stats())
}

// UpdateScore handles a score edit by the authenticated user
func (h *Handler) UpdateScore(w http.ResponseWriter, r *http.Request) {
	teamID := chi.URLParam(r, "teamID")
	roundID := chi.URLParam(r, "roundID")

	var req domain.ScoreUpdateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, domain.ErrInvalidRequest)
		return
	}
	if req.Points == nil {
		h.writeError(w, http.StatusBadRequest, errors.New("invalid request: points is required"))
		return
	}

	user, _ := UserFromContext(r.Context())
	team, err := h.board.UpdateScore(r.Context(), teamID, roundID, *req.Points, user)
	if err != nil {
		if errors.Is(err, domain.ErrRemoteNotificationFailed) {
			h.writeJSON(w, http.StatusAccepted, APIResponse{
				Success: true,
				Message: "Score updated locally; remote notification failed",
				Data:    team,
			})
			return
		}
		h.writeServiceError(w, r, "update score", err)
		return
	}

	h.writeJSON(w, http.StatusOK, APIResponse{
		Success: true,
		Message: "Score updated successfully",
		Data:    team,
	})
}

// CreateTeam registers a new team
func (h *Handler) CreateTeam(w http.ResponseWriter, r *http.Request) {
	var req domain.CreateTeamRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, domain.ErrInvalidRequest)
		return
	}

	user, _ := UserFromContext(r.Context())
	team, err := h.board.CreateTeam(r.Context(), req, user)
	if err != nil {
		if errors.Is(err, domain.ErrRemoteNotificationFailed) {
			h.writeJSON(w, http.StatusAccepted, APIResponse{
				Success: true,
				Message: "Team created locally; remote notification failed",
				TeamID:  team.ID,
				Data:    team,
			})
			return
		}
		h.writeServiceError(w, r, "create team", err)
		return
	}

	h.writeJSON(w, http.StatusCreated, APIResponse{
		Success: true,
		Message: "Team created successfully",
		TeamID:  team.ID,
		Data:    team,
	})
}

// GetMirroredStandings returns the standings as last published to Redis
func (h *Handler) GetMirroredStandings(w http.ResponseWriter, r *http.Request) {
	if h.mirror == nil {
		h.writeError(w, http.StatusNotFound, errors.New("standings mirror is disabled"))
		return
	}

	limit := 10
	if s := r.URL.Query().Get("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 0 {
			h.writeError(w, http.StatusBadRequest, domain.ErrInvalidRequest)
			return
		}
		limit = n
	}

	standings, err := h.mirror.Top(r.Context(), limit)
	if err != nil {
		h.writeServiceError(w, r, "mirrored standings", err)
		return
	}

	h.writeSuccess(w, standings)
}
