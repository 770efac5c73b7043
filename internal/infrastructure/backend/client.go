// Package backend is the HTTP adapter for the filing REST API. Every call is
// normalized into a Result so callers never see transport errors directly.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/taxdesk/filing-client/internal/core/domain"
)

// RequestIDHeader carries a per-call correlation id.
const RequestIDHeader = "X-Request-ID"

// TokenSource yields the bearer token attached to authenticated calls. It is
// asked for a token on every call so refreshed tokens are picked up.
type TokenSource interface {
	IDToken(ctx context.Context) (string, error)
}

// Result is the normalized outcome of one backend call. Status is 0 when no
// response was received.
type Result struct {
	OK      bool
	Status  int
	Message string
	Data    json.RawMessage
}

// Err returns nil for a successful result and a *domain.APIError otherwise.
func (r Result) Err() error {
	if r.OK {
		return nil
	}
	return &domain.APIError{Status: r.Status, Message: r.Message}
}

// Decode unmarshals Data into dst after checking the result.
func (r Result) Decode(dst any) error {
	if err := r.Err(); err != nil {
		return err
	}
	if dst == nil || len(r.Data) == 0 {
		return nil
	}
	if err := json.Unmarshal(r.Data, dst); err != nil {
		return &domain.APIError{Status: r.Status, Message: fmt.Sprintf("unexpected response: %v", err)}
	}
	return nil
}

// Client calls the backend REST API.
type Client struct {
	baseURL    string
	httpClient *http.Client
	tokens     TokenSource
	log        zerolog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the default http.Client.
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) { c.httpClient = h }
}

// WithLogger sets the client logger.
func WithLogger(l zerolog.Logger) Option {
	return func(c *Client) { c.log = l }
}

// New returns a Client for baseURL. tokens may be nil when only anonymous
// endpoints are used.
func New(baseURL string, tokens TokenSource, opts ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{},
		tokens:     tokens,
		log:        zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// call describes one request.
type call struct {
	method      string
	path        string
	body        io.Reader
	contentType string
	authed      bool
}

// JSON performs a request with an optional JSON body.
func (c *Client) JSON(ctx context.Context, method, path string, in any, authed bool) Result {
	cl := call{method: method, path: path, authed: authed}
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return Result{Status: 0, Message: fmt.Sprintf("encode request: %v", err)}
		}
		cl.body = bytes.NewReader(data)
		cl.contentType = "application/json"
	}
	return c.do(ctx, cl)
}

func (c *Client) do(ctx context.Context, cl call) Result {
	req, err := http.NewRequestWithContext(ctx, cl.method, c.baseURL+cl.path, cl.body)
	if err != nil {
		return Result{Message: fmt.Sprintf("create request: %v", err)}
	}
	reqID := uuid.NewString()
	req.Header.Set(RequestIDHeader, reqID)
	req.Header.Set("Accept", "application/json")
	if cl.contentType != "" {
		req.Header.Set("Content-Type", cl.contentType)
	}

	if cl.authed {
		if c.tokens == nil {
			return Result{Status: http.StatusUnauthorized, Message: "not signed in"}
		}
		token, err := c.tokens.IDToken(ctx)
		if err != nil {
			c.log.Debug().Err(err).Str("path", cl.path).Msg("no token for authenticated call")
			return Result{Status: http.StatusUnauthorized, Message: "not signed in"}
		}
		req.Header.Set("Authorization", "Bearer "+token)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return Result{Message: ctxErr.Error()}
		}
		c.log.Error().Err(err).
			Str("method", cl.method).
			Str("path", cl.path).
			Str("request_id", reqID).
			Msg("backend unreachable")
		return Result{Message: domain.NetworkMessage}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		c.log.Error().Err(err).Str("path", cl.path).Msg("read backend response")
		return Result{Message: domain.NetworkMessage}
	}

	c.log.Debug().
		Str("method", cl.method).
		Str("path", cl.path).
		Int("status", resp.StatusCode).
		Dur("latency", time.Since(start)).
		Str("request_id", reqID).
		Msg("backend call")

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return Result{OK: true, Status: resp.StatusCode, Data: body}
	}
	return Result{Status: resp.StatusCode, Message: errorMessage(resp.StatusCode, body)}
}

// errorMessage extracts the server message from an error envelope.
func errorMessage(status int, body []byte) string {
	var env struct {
		Error   string `json:"error"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal(body, &env); err == nil {
		if env.Error != "" {
			return env.Error
		}
		if env.Message != "" {
			return env.Message
		}
	}
	if text := strings.TrimSpace(string(body)); text != "" && len(text) < 200 && !strings.HasPrefix(text, "<") {
		return text
	}
	if t := http.StatusText(status); t != "" {
		return t
	}
	return fmt.Sprintf("request failed with status %d", status)
}
