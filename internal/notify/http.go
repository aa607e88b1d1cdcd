package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/hackathon-leaderboard/internal/domain"
)

// HTTPError is returned for non-2xx responses from the remote API.
type HTTPError struct {
	StatusCode int
	Message    string
	URL        string
	Method     string
}

func (e *HTTPError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("HTTP error %d %s from %s %s: %s", e.StatusCode, http.StatusText(e.StatusCode), e.Method, e.URL, e.Message)
	}
	return fmt.Sprintf("HTTP error %d %s from %s %s", e.StatusCode, http.StatusText(e.StatusCode), e.Method, e.URL)
}

// ErrRejected is returned when the remote API answers success=false.
var ErrRejected = errors.New("remote API rejected the update")

// NewDefaultHTTPClient creates an http.Client with conservative timeouts.
func NewDefaultHTTPClient() *http.Client {
	return &http.Client{
		Timeout: 10 * time.Second,
		Transport: &http.Transport{
			Proxy: http.ProxyFromEnvironment,
			DialContext: (&net.Dialer{
				Timeout:   5 * time.Second,
				KeepAlive: 30 * time.Second,
			}).DialContext,
			MaxIdleConns:          20,
			IdleConnTimeout:       90 * time.Second,
			TLSHandshakeTimeout:   5 * time.Second,
			ExpectContinueTimeout: 1 * time.Second,
		},
	}
}

// HTTPNotifier sends notifications to a real scoring API.
type HTTPNotifier struct {
	httpClient *http.Client
	baseURL    string
	tokens     TokenIssuer
	tokenTTL   time.Duration
	logger     *slog.Logger
}

// NewHTTPNotifier creates a notifier for baseURL. A nil httpClient selects
// NewDefaultHTTPClient bounded by timeout. The bearer credential lives for timeout.
func NewHTTPNotifier(baseURL string, httpClient *http.Client, tokens TokenIssuer, timeout time.Duration, logger *slog.Logger) *HTTPNotifier {
	if httpClient == nil {
		httpClient = NewDefaultHTTPClient()
		if timeout > 0 {
			httpClient.Timeout = timeout
		}
	}
	tokenTTL := timeout
	if tokenTTL <= 0 {
		tokenTTL = time.Minute
	}
	return &HTTPNotifier{
		httpClient: httpClient,
		baseURL:    strings.TrimRight(baseURL, "/"),
		tokens:     tokens,
		tokenTTL:   tokenTTL,
		logger:     logger,
	}
}

type scoreUpdateBody struct {
	Points int `json:"points"`
}

type createTeamBody struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Mascot  string `json:"mascot"`
	Members int    `json:"members"`
}

// remoteResponse is the body shape of both remote endpoints
type remoteResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
	TeamID  string `json:"teamId,omitempty"`
}

// NotifyScoreUpdate sends PATCH /api/teams/{teamId}/scores/{roundId}
func (c *HTTPNotifier) NotifyScoreUpdate(ctx context.Context, n ScoreNotification) error {
	var resp remoteResponse
	if err := c.doRequest(ctx, http.MethodPatch, scorePath(n.TeamID, n.RoundID), n.Actor, scoreUpdateBody{Points: n.Points}, &resp); err != nil {
		return err
	}
	if !resp.Success {
		return fmt.Errorf("%w: %s", ErrRejected, resp.Message)
	}
	c.logger.DebugContext(ctx, "score notification delivered",
		"team_id", n.TeamID,
		"round_id", n.RoundID,
		"message", resp.Message,
	)
	return nil
}

// NotifyTeamCreated sends POST /api/teams
func (c *HTTPNotifier) NotifyTeamCreated(ctx context.Context, n TeamNotification) error {
	body := createTeamBody{
		ID:      n.Team.ID,
		Name:    n.Team.Name,
		Mascot:  n.Team.Mascot,
		Members: n.Team.Members,
	}
	var resp remoteResponse
	if err := c.doRequest(ctx, http.MethodPost, teamsPath, n.Actor, body, &resp); err != nil {
		return err
	}
	if !resp.Success {
		return fmt.Errorf("%w: %s", ErrRejected, resp.Message)
	}
	c.logger.DebugContext(ctx, "team notification delivered",
		"team_id", n.Team.ID,
		"remote_team_id", resp.TeamID,
	)
	return nil
}

// doRequest is a helper for common request logic
func (c *HTTPNotifier) doRequest(ctx context.Context, method, path string, actor domain.User, body, result any) error {
	url := c.baseURL + path

	token, err := c.tokens.GenerateToken(actor, c.tokenTTL)
	if err != nil {
		return fmt.Errorf("issuing credential for %s %s: %w", method, url, err)
	}

	jsonData, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to marshal request body for %s %s: %w", method, url, err)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, bytes.NewReader(jsonData))
	if err != nil {
		return fmt.Errorf("failed to create %s request for %s: %w", method, url, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if errors.Is(ctx.Err(), context.Canceled) {
			return fmt.Errorf("%s request to %s cancelled: %w", method, url, ctx.Err())
		}
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return fmt.Errorf("%s request to %s timed out: %w", method, url, ctx.Err())
		}
		return fmt.Errorf("failed to send %s request to %s: %w", method, url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		var errorResponse remoteResponse
		msg := ""
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		if json.Unmarshal(raw, &errorResponse) == nil && errorResponse.Message != "" {
			msg = errorResponse.Message
		} else {
			msg = strings.TrimSpace(string(raw))
		}
		return &HTTPError{
			StatusCode: resp.StatusCode,
			Message:    msg,
			URL:        url,
			Method:     method,
		}
	}

	if result != nil {
		if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
			return fmt.Errorf("failed to decode response from %s %s: %w", method, url, err)
		}
	}
	return nil
}
