// Package remote fetches messages from the chat server's REST API. It is the
// engine's Remote Message Fetcher: retries, timeouts and rate limiting live
// here, not in the reconciliation engine.
package remote

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/bhandras/msgsync/internal/filter"
	"github.com/bhandras/msgsync/internal/wire"
	"github.com/bhandras/msgsync/pkg/logger"
	"golang.org/x/time/rate"
	"resty.dev/v3"
)

const (
	// defaultTimeout is the per-request timeout.
	defaultTimeout = 15 * time.Second
	// defaultRetries is how often a failed request is retried.
	defaultRetries = 2
	// defaultWindow is the number of messages fetched on each side of an
	// anchor.
	defaultWindow = 50

	messagesPath      = "/json/messages"
	matchesNarrowPath = "/json/messages/matches_narrow"

	anchorNewest = "newest"
)

// Config configures a Client.
type Config struct {
	// ServerURL is the server base URL, without a trailing slash.
	ServerURL string
	// Token is sent as a bearer token.
	Token   string
	Timeout time.Duration
	Retries int
	// RPS and Burst limit the request rate. RPS <= 0 disables limiting.
	RPS   float64
	Burst int
	// WindowBefore and WindowAfter size the window fetched for a new list.
	WindowBefore int
	WindowAfter  int
}

// Client talks to the server's message endpoints.
type Client struct {
	cfg     Config
	http    *resty.Client
	limiter *rate.Limiter
}

// New returns a client for cfg.
func New(cfg Config) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if cfg.Retries < 0 {
		cfg.Retries = 0
	}
	if cfg.WindowBefore <= 0 {
		cfg.WindowBefore = defaultWindow
	}
	if cfg.WindowAfter <= 0 {
		cfg.WindowAfter = defaultWindow
	}

	hc := resty.New().
		SetBaseURL(strings.TrimRight(cfg.ServerURL, "/")).
		SetTimeout(cfg.Timeout).
		SetRetryCount(cfg.Retries).
		SetRetryWaitTime(200 * time.Millisecond).
		SetRetryMaxWaitTime(2 * time.Second).
		SetHeader("Accept", "application/json")
	if cfg.Token != "" {
		hc.SetAuthToken(cfg.Token)
	}

	limiter := rate.NewLimiter(rate.Inf, 0)
	if cfg.RPS > 0 {
		burst := cfg.Burst
		if burst <= 0 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(cfg.RPS), burst)
	}

	return &Client{cfg: cfg, http: hc, limiter: limiter}
}

// Close releases the underlying HTTP client.
func (c *Client) Close() error {
	return c.http.Close()
}

// apiError is the body of a failed request.
type apiError struct {
	Result string `json:"result"`
	Msg    string `json:"msg"`
	Code   string `json:"code"`
}

// matchesResponse is the body of GET /json/messages/matches_narrow.
type matchesResponse struct {
	Result   string                     `json:"result"`
	Messages map[string]json.RawMessage `json:"messages"`
}

// windowResponse is the body of an anchored GET /json/messages.
type windowResponse struct {
	wire.MessagesResponse
	FoundOldest bool `json:"found_oldest"`
	FoundNewest bool `json:"found_newest"`
}

// Window is the answer to FetchWindow.
type Window struct {
	Messages    []wire.RawMessage
	FoundOldest bool
	FoundNewest bool
}

// FetchMessages loads messages by id. A non-nil narrow restricts the
// answer to the ids matching it; ids not returned were not found or did not
// match.
func (c *Client) FetchMessages(ctx context.Context, ids []int64, narrow *filter.Filter) ([]wire.RawMessage, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	params := map[string]string{"message_ids": idsParam(ids)}
	if err := addNarrow(params, narrow); err != nil {
		return nil, err
	}

	var out wire.MessagesResponse
	if err := c.get(ctx, messagesPath, params, &out); err != nil {
		return nil, fmt.Errorf("fetch messages: %w", err)
	}
	return out.Messages, nil
}

// MatchesNarrow returns the subset of ids matching narrow.
func (c *Client) MatchesNarrow(ctx context.Context, ids []int64, narrow *filter.Filter) ([]int64, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	params := map[string]string{"msg_ids": idsParam(ids)}
	if err := addNarrow(params, narrow); err != nil {
		return nil, err
	}

	var out matchesResponse
	if err := c.get(ctx, matchesNarrowPath, params, &out); err != nil {
		return nil, fmt.Errorf("matches narrow: %w", err)
	}
	matched := make([]int64, 0, len(out.Messages))
	for key := range out.Messages {
		id, err := strconv.ParseInt(key, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("matches narrow: message id %q: %w", key, wire.ErrMalformedEvent)
		}
		matched = append(matched, id)
	}
	return matched, nil
}

// FetchWindow loads the messages of narrow around anchor. A zero anchor
// means the newest message.
func (c *Client) FetchWindow(ctx context.Context, anchor int64, narrow *filter.Filter) (Window, error) {
	params := map[string]string{
		"anchor":     anchorNewest,
		"num_before": strconv.Itoa(c.cfg.WindowBefore),
		"num_after":  strconv.Itoa(c.cfg.WindowAfter),
	}
	if anchor != 0 {
		params["anchor"] = strconv.FormatInt(anchor, 10)
	}
	if err := addNarrow(params, narrow); err != nil {
		return Window{}, err
	}

	var out windowResponse
	if err := c.get(ctx, messagesPath, params, &out); err != nil {
		return Window{}, fmt.Errorf("fetch window: %w", err)
	}
	return Window{
		Messages:    out.Messages,
		FoundOldest: out.FoundOldest,
		FoundNewest: out.FoundNewest,
	}, nil
}

func (c *Client) get(ctx context.Context, path string, params map[string]string, result any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}

	var failure apiError
	resp, err := c.http.R().
		SetContext(ctx).
		SetQueryParams(params).
		SetResult(result).
		SetError(&failure).
		Get(path)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	status := resp.StatusCode()
	logger.Tracef("remote: GET %s -> %d", path, status)
	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return fmt.Errorf("%w: %s", ErrUnauthorized, failure.Msg)
	case status >= http.StatusInternalServerError:
		return fmt.Errorf("%w: status %d", ErrUnavailable, status)
	case status >= http.StatusBadRequest:
		return fmt.Errorf("%w: %s", ErrBadRequest, failure.Msg)
	}
	return nil
}

// idsParam encodes ids as the JSON array the server expects.
func idsParam(ids []int64) string {
	raw, _ := json.Marshal(ids)
	return string(raw)
}

func addNarrow(params map[string]string, narrow *filter.Filter) error {
	if narrow == nil {
		return nil
	}
	raw, err := json.Marshal(narrow)
	if err != nil {
		return fmt.Errorf("encode narrow: %w", err)
	}
	params["narrow"] = string(raw)
	return nil
}
