// Package clashapi provides a minimal client for the Clash Royale API: the
// global ranked leaderboard and per-player battle logs.
package clashapi

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/pable/go-cr-meta/internal/model"
)

const (
	// DefaultBaseURL is the root endpoint of the public API.
	DefaultBaseURL = "https://api.clashroyale.com/v1"
	// DefaultRankingPath lists the global Path of Legends leaderboard.
	DefaultRankingPath = "/locations/global/pathoflegend/players"

	requestTimeout = 30 * time.Second
	maxRetries     = 3
	initialBackoff = time.Second
	maxBackoff     = 16 * time.Second
)

// APIError is a non-retryable (or retries exhausted) HTTP failure.
type APIError struct {
	Path   string
	Status int
	Reason string
}

func (e *APIError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("GET %s: HTTP %d: %s", e.Path, e.Status, e.Reason)
	}
	return fmt.Sprintf("GET %s: HTTP %d", e.Path, e.Status)
}

// Options configures a Client. Zero fields take defaults.
type Options struct {
	BaseURL     string
	RankingPath string
	// RequestsPerSecond caps outgoing requests; 0 means 10.
	RequestsPerSecond float64
	// Backoff is the first retry delay; it doubles up to 16s.
	Backoff time.Duration
	HTTP    *http.Client
	Log     *zap.Logger
}

// Client is a rate-limited Clash Royale API client.
type Client struct {
	token       string
	baseURL     string
	rankingPath string
	http        *http.Client
	limiter     *rate.Limiter
	backoff     time.Duration
	log         *zap.Logger
}

// NewClient returns an API client authenticated with the given bearer token.
func NewClient(token string, opts Options) *Client {
	c := &Client{
		token:       token,
		baseURL:     strings.TrimRight(opts.BaseURL, "/"),
		rankingPath: opts.RankingPath,
		http:        opts.HTTP,
		backoff:     opts.Backoff,
		log:         opts.Log,
	}
	if c.baseURL == "" {
		c.baseURL = DefaultBaseURL
	}
	if c.rankingPath == "" {
		c.rankingPath = DefaultRankingPath
	}
	if c.http == nil {
		c.http = &http.Client{Timeout: requestTimeout}
	}
	if c.backoff <= 0 {
		c.backoff = initialBackoff
	}
	if c.log == nil {
		c.log = zap.NewNop()
	}
	rps := opts.RequestsPerSecond
	if rps <= 0 {
		rps = 10
	}
	c.limiter = rate.NewLimiter(rate.Limit(rps), 1)
	return c
}

// rankedPlayer is one leaderboard entry.
type rankedPlayer struct {
	Tag       string `json:"tag"`
	Name      string `json:"name"`
	Trophies  int    `json:"trophies"`
	EloRating int    `json:"eloRating"`
	Rank      int    `json:"rank"`
}

// TopPlayers returns up to limit leaderboard entries in rank order.
func (c *Client) TopPlayers(ctx context.Context, limit int) ([]model.Player, error) {
	var resp struct {
		Items []rankedPlayer `json:"items"`
	}
	path := fmt.Sprintf("%s?limit=%d", c.rankingPath, limit)
	if err := c.get(ctx, path, &resp); err != nil {
		return nil, err
	}

	out := make([]model.Player, 0, len(resp.Items))
	for _, it := range resp.Items {
		trophies := it.Trophies
		if trophies == 0 {
			trophies = it.EloRating
		}
		out = append(out, model.Player{Tag: it.Tag, Name: it.Name, Trophies: trophies, Rank: it.Rank})
	}
	return out, nil
}

// BattleLog returns the player's recent battles, newest first.
func (c *Client) BattleLog(ctx context.Context, tag string) ([]model.RawBattle, error) {
	var battles []model.RawBattle
	if err := c.get(ctx, "/players/"+EscapeTag(tag)+"/battlelog", &battles); err != nil {
		return nil, err
	}
	return battles, nil
}

// EscapeTag encodes a player tag for use in a URL path ("#ABC" -> "%23ABC").
func EscapeTag(tag string) string {
	tag = strings.ToUpper(strings.TrimSpace(tag))
	if !strings.HasPrefix(tag, "#") {
		tag = "#" + tag
	}
	return url.PathEscape(tag)
}

// get performs an authenticated GET against the API and JSON-decodes the
// response body into out. 429 and 5xx responses and transport errors are
// retried with exponential backoff.
func (c *Client) get(ctx context.Context, path string, out any) error {
	backoff := c.backoff
	var lastErr error

	for attempt := 0; attempt <= maxRetries; attempt++ {
		if attempt > 0 {
			c.log.Debug("retrying request", zap.String("path", path), zap.Int("attempt", attempt), zap.Error(lastErr))
			if err := sleep(ctx, backoff); err != nil {
				return err
			}
			backoff = min(backoff*2, maxBackoff)
		}
		if err := c.limiter.Wait(ctx); err != nil {
			return fmt.Errorf("rate limiter: %w", err)
		}

		retry, err := c.do(ctx, path, out, &backoff)
		if err == nil {
			return nil
		}
		if !retry {
			return err
		}
		lastErr = err
	}
	return lastErr
}

func (c *Client) do(ctx context.Context, path string, out any, backoff *time.Duration) (retry bool, err error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return false, err
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return false, ctx.Err()
		}
		return true, fmt.Errorf("GET %s: %w", path, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK:
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return false, fmt.Errorf("decode %s: %w", path, err)
		}
		return false, nil
	case resp.StatusCode == http.StatusTooManyRequests:
		if secs, err := strconv.Atoi(resp.Header.Get("Retry-After")); err == nil && secs > 0 {
			*backoff = time.Duration(secs) * time.Second
		}
		return true, &APIError{Path: path, Status: resp.StatusCode, Reason: apiReason(resp)}
	case resp.StatusCode >= 500:
		return true, &APIError{Path: path, Status: resp.StatusCode, Reason: apiReason(resp)}
	default:
		return false, &APIError{Path: path, Status: resp.StatusCode, Reason: apiReason(resp)}
	}
}

// apiReason extracts the "reason" field of an API error body, if any.
func apiReason(resp *http.Response) string {
	var body struct {
		Reason string `json:"reason"`
	}
	_ = json.NewDecoder(resp.Body).Decode(&body)
	return body.Reason
}

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
