package websocket

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/hackathon-leaderboard/internal/domain"
	"github.com/hackathon-leaderboard/internal/ranking"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type staticSource struct {
	teams []domain.Team
}

func (s staticSource) Snapshot() ([]domain.Team, domain.DashboardStats) {
	return domain.CloneTeams(s.teams), ranking.ComputeStats(s.teams, domain.DefaultRounds())
}

type received struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

func startHub(t *testing.T) (*Hub, string) {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	hub := NewHub(staticSource{teams: domain.DefaultSeed().Teams}, logger)
	go hub.Run()
	t.Cleanup(hub.Stop)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ServeWs(hub, logger, w, r)
	}))
	t.Cleanup(srv.Close)

	return hub, "ws" + strings.TrimPrefix(srv.URL, "http")
}

func dial(t *testing.T, url string) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readMessage(t *testing.T, conn *websocket.Conn) received {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var msg received
	require.NoError(t, conn.ReadJSON(&msg))
	return msg
}

func readStandings(t *testing.T, conn *websocket.Conn) StandingsUpdate {
	t.Helper()
	msg := readMessage(t, conn)
	require.Equal(t, MessageTypeStandingsUpdate, msg.Type)
	var update StandingsUpdate
	require.NoError(t, json.Unmarshal(msg.Data, &update))
	return update
}

func teamNames(teams []domain.Team) []string {
	names := make([]string, len(teams))
	for i, t := range teams {
		names[i] = t.Name
	}
	return names
}

func TestHub_InitialStandingsOnConnect(t *testing.T) {
	_, url := startHub(t)
	conn := dial(t, url)

	update := readStandings(t, conn)
	assert.Equal(t, ranking.SortByRank, update.View.Sort)
	assert.Equal(t, ranking.FilterAll, update.View.Filter)
	assert.Equal(t, []string{
		"Code Wizards", "Tech Innovators", "Digital Pioneers", "Future Builders", "Code Crafters",
	}, teamNames(update.Teams))
	assert.Equal(t, 5, update.Stats.TotalTeams)
	assert.Equal(t, 12670, update.Stats.TotalPoints)
}

func TestHub_ViewChangeAppliesToBroadcasts(t *testing.T) {
	hub, url := startHub(t)
	conn := dial(t, url)
	readStandings(t, conn)

	require.NoError(t, conn.WriteJSON(ClientMessage{Type: MessageTypeView, Search: "CODE", Sort: "name"}))
	update := readStandings(t, conn)
	assert.Equal(t, []string{"Code Crafters", "Code Wizards"}, teamNames(update.Teams))

	teams := domain.DefaultSeed().Teams
	teams[4].Scores[0].Points = 1000
	teams[4] = ranking.RecomputeTotal(teams[4])
	hub.BroadcastStandings(ranking.ReassignRanks(teams), domain.DashboardStats{TotalTeams: 5})

	update = readStandings(t, conn)
	require.Len(t, update.Teams, 2)
	assert.Equal(t, "Code Crafters", update.Teams[0].Name)
	assert.Equal(t, 2820, update.Teams[0].Points)
	assert.Equal(t, 2, update.Teams[0].Rank)
	assert.Equal(t, 5, update.Stats.TotalTeams)
}

func TestHub_ClientsKeepIndependentViews(t *testing.T) {
	hub, url := startHub(t)
	top := dial(t, url)
	trending := dial(t, url)
	readStandings(t, top)
	readStandings(t, trending)

	require.NoError(t, top.WriteJSON(ClientMessage{Type: MessageTypeView, Filter: "top3"}))
	readStandings(t, top)
	require.NoError(t, trending.WriteJSON(ClientMessage{Type: MessageTypeView, Filter: "trending", Sort: "points"}))
	readStandings(t, trending)

	hub.BroadcastStandings(domain.DefaultSeed().Teams, domain.DashboardStats{})

	assert.Equal(t, []string{"Code Wizards", "Tech Innovators", "Digital Pioneers"}, teamNames(readStandings(t, top).Teams))
	assert.Equal(t, []string{"Code Wizards", "Digital Pioneers", "Code Crafters"}, teamNames(readStandings(t, trending).Teams))
}

func TestHub_ClientMessages(t *testing.T) {
	_, url := startHub(t)
	conn := dial(t, url)
	readStandings(t, conn)

	require.NoError(t, conn.WriteJSON(ClientMessage{Type: MessageTypePing}))
	assert.Equal(t, MessageTypePong, readMessage(t, conn).Type)

	require.NoError(t, conn.WriteJSON(ClientMessage{Type: MessageTypeView, Sort: "bogus"}))
	msg := readMessage(t, conn)
	assert.Equal(t, MessageTypeError, msg.Type)
	assert.Contains(t, string(msg.Data), "bogus")

	require.NoError(t, conn.WriteJSON(ClientMessage{Type: "subscribe"}))
	assert.Equal(t, MessageTypeError, readMessage(t, conn).Type)

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("not json")))
	assert.Equal(t, MessageTypeError, readMessage(t, conn).Type)
}

func TestHub_UnregisterOnDisconnect(t *testing.T) {
	hub, url := startHub(t)
	conn := dial(t, url)
	readStandings(t, conn)
	assert.Equal(t, 1, hub.GetTotalConnections())

	require.NoError(t, conn.Close())
	assert.Eventually(t, func() bool {
		return hub.GetTotalConnections() == 0
	}, 2*time.Second, 10*time.Millisecond)
}

func TestHub_BurstOfBroadcastsKeepsLatest(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	hub := NewHub(nil, logger)

	teams := domain.DefaultSeed().Teams
	for i := 0; i < 1000; i++ {
		hub.BroadcastStandings(teams, domain.DashboardStats{TotalPoints: i})
	}

	assert.Len(t, hub.wake, 1)
	s := hub.takePending()
	require.NotNil(t, s)
	assert.Equal(t, 999, s.stats.TotalPoints)
	assert.Nil(t, hub.takePending())
}

func TestHub_LastBroadcastReachesClient(t *testing.T) {
	hub, url := startHub(t)
	conn := dial(t, url)
	readStandings(t, conn)

	teams := domain.DefaultSeed().Teams
	for i := 1; i <= 500; i++ {
		hub.BroadcastStandings(teams, domain.DashboardStats{TotalPoints: i})
	}

	deadline := time.Now().Add(5 * time.Second)
	last := 0
	for last != 500 && time.Now().Before(deadline) {
		update := readStandings(t, conn)
		require.GreaterOrEqual(t, update.Stats.TotalPoints, last, "standings arrive in order")
		last = update.Stats.TotalPoints
	}
	assert.Equal(t, 500, last)
}

func TestHub_FullClientBufferKeepsNewestFrame(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	hub := NewHub(nil, logger)
	client := &Client{id: "slow", send: make(chan []byte, 2), logger: logger}

	for _, frame := range []string{"a", "b", "c"} {
		hub.offer(client, []byte(frame))
	}

	require.Len(t, client.send, 2)
	assert.Equal(t, "b", string(<-client.send))
	assert.Equal(t, "c", string(<-client.send))
}
