package websocket

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/hackathon-leaderboard/internal/domain"
	"github.com/hackathon-leaderboard/internal/ranking"
)

// Message types
const (
	MessageTypeStandingsUpdate = "standings_update"
	MessageTypeView            = "view"
	MessageTypePing            = "ping"
	MessageTypePong            = "pong"
	MessageTypeError           = "error"
)

// Message represents a WebSocket message
type Message struct {
	Type      string      `json:"type"`
	Data      interface{} `json:"data,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
}

// StandingsUpdate is a client's recomputed view along with the dashboard stats
type StandingsUpdate struct {
	View  ranking.ViewOptions   `json:"view"`
	Teams []domain.Team         `json:"teams"`
	Stats domain.DashboardStats `json:"stats"`
}

// StandingsSource provides the current standings
type StandingsSource interface {
	Snapshot() ([]domain.Team, domain.DashboardStats)
}

type standings struct {
	teams []domain.Team
	stats domain.DashboardStats
}

// Hub maintains the set of active clients and pushes each of them its own
// view of the standings
type Hub struct {
	// Connected clients and their display controls
	clients map[*Client]ranking.ViewOptions

	// Register requests from clients
	register chan *Client

	// Unregister requests from clients
	unregister chan *Client

	// Latest standings not yet pushed. A newer broadcast replaces an older
	// one that the run loop has not picked up.
	pending   *standings
	pendingMu sync.Mutex
	wake      chan struct{}

	// View change requests
	views chan *viewRequest

	source StandingsSource

	// Mutex for thread-safe operations
	mu sync.RWMutex

	logger *slog.Logger

	// Context for shutdown
	ctx    context.Context
	cancel context.CancelFunc
}

type viewRequest struct {
	client *Client
	opts   ranking.ViewOptions
}

// NewHub creates a new Hub
func NewHub(source StandingsSource, logger *slog.Logger) *Hub {
	ctx, cancel := context.WithCancel(context.Background())
	return &Hub{
		clients:    make(map[*Client]ranking.ViewOptions),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		wake:       make(chan struct{}, 1),
		views:      make(chan *viewRequest, 64),
		source:     source,
		logger:     logger,
		ctx:        ctx,
		cancel:     cancel,
	}
}

// Run starts the hub's main loop
func (h *Hub) Run() {
	h.logger.Info("WebSocket hub started")
	for {
		select {
		case <-h.ctx.Done():
			h.logger.Info("WebSocket hub stopping")
			h.closeAll()
			return

		case client := <-h.register:
			opts := ranking.ViewOptions{Sort: ranking.SortByRank, Filter: ranking.FilterAll}
			h.mu.Lock()
			h.clients[client] = opts
			h.mu.Unlock()
			h.logger.Debug("client registered", "client_id", client.id)
			h.sendCurrent(client, opts)

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
			}
			h.mu.Unlock()
			h.logger.Debug("client unregistered", "client_id", client.id)

		case req := <-h.views:
			h.mu.Lock()
			_, ok := h.clients[req.client]
			if ok {
				h.clients[req.client] = req.opts
			}
			h.mu.Unlock()
			if ok {
				h.logger.Debug("client view changed",
					"client_id", req.client.id,
					"search", req.opts.Search,
					"sort", req.opts.Sort,
					"filter", req.opts.Filter,
				)
				h.sendCurrent(req.client, req.opts)
			}

		case <-h.wake:
			if s := h.takePending(); s != nil {
				h.broadcastStandings(s)
			}
		}
	}
}

// Stop stops the hub
func (h *Hub) Stop() {
	h.cancel()
}

func (h *Hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for client := range h.clients {
		delete(h.clients, client)
		close(client.send)
	}
}

// broadcastStandings sends every client the standings filtered and sorted by
// its own view. Clients sharing a view share one encoded payload.
func (h *Hub) broadcastStandings(s *standings) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	encoded := make(map[ranking.ViewOptions][]byte)
	for client, opts := range h.clients {
		data, ok := encoded[opts]
		if !ok {
			var err error
			data, err = encodeUpdate(opts, s.teams, s.stats)
			if err != nil {
				h.logger.Error("failed to marshal message", "error", err)
				return
			}
			encoded[opts] = data
		}
		h.offer(client, data)
	}
}

// sendCurrent pushes the latest standings to a single client
func (h *Hub) sendCurrent(client *Client, opts ranking.ViewOptions) {
	if h.source == nil {
		return
	}
	teams, stats := h.source.Snapshot()
	data, err := encodeUpdate(opts, teams, stats)
	if err != nil {
		h.logger.Error("failed to marshal message", "error", err)
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	if _, ok := h.clients[client]; !ok {
		return
	}
	h.offer(client, data)
}

// offer queues standings for a client. When its buffer is full the oldest
// queued frame is dropped so the newest standings still get through. Must be
// called with mu held.
func (h *Hub) offer(client *Client, data []byte) {
	select {
	case client.send <- data:
		return
	default:
	}

	select {
	case <-client.send:
	default:
	}

	select {
	case client.send <- data:
		h.logger.Warn("client buffer full, dropped oldest frame", "client_id", client.id)
	default:
		h.logger.Warn("client buffer full, skipping", "client_id", client.id)
	}
}

func encodeUpdate(opts ranking.ViewOptions, teams []domain.Team, stats domain.DashboardStats) ([]byte, error) {
	return json.Marshal(&Message{
		Type: MessageTypeStandingsUpdate,
		Data: StandingsUpdate{
			View:  opts,
			Teams: opts.Apply(teams),
			Stats: stats,
		},
		Timestamp: time.Now(),
	})
}

// BroadcastStandings queues new standings for every connected client. It
// never blocks; standings still queued are replaced by the newer ones.
func (h *Hub) BroadcastStandings(teams []domain.Team, stats domain.DashboardStats) {
	h.pendingMu.Lock()
	h.pending = &standings{teams: teams, stats: stats}
	h.pendingMu.Unlock()

	select {
	case h.wake <- struct{}{}:
	default:
	}
}

func (h *Hub) takePending() *standings {
	h.pendingMu.Lock()
	defer h.pendingMu.Unlock()
	s := h.pending
	h.pending = nil
	return s
}

// Register adds a client to the hub
func (h *Hub) Register(client *Client) {
	select {
	case h.register <- client:
	case <-h.ctx.Done():
	}
}

// Unregister removes a client from the hub
func (h *Hub) Unregister(client *Client) {
	select {
	case h.unregister <- client:
	case <-h.ctx.Done():
	}
}

// SetView changes a client's display controls and sends it a fresh view
func (h *Hub) SetView(client *Client, opts ranking.ViewOptions) {
	select {
	case h.views <- &viewRequest{client: client, opts: opts}:
	case <-h.ctx.Done():
	}
}

// GetTotalConnections returns the total number of connected clients
func (h *Hub) GetTotalConnections() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}
