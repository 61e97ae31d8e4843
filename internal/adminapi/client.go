// Package adminapi is the REST client for the MagicPic admin API.
package adminapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"magicpic_admin/internal/logger"
	"magicpic_admin/internal/session"

	"golang.org/x/time/rate"
)

const maxBodyBytes = 1 << 20

// Client talks to the upstream admin API on behalf of one session.
type Client struct {
	baseURL    string
	session    *session.Session
	httpClient *http.Client
	limiter    *rate.Limiter
	log        *slog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the default http.Client.
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) { c.httpClient = h }
}

// WithTimeout sets the per-request timeout of the default http.Client.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.httpClient.Timeout = d }
}

// WithRateLimit paces outbound requests. rps <= 0 disables pacing.
func WithRateLimit(rps float64, burst int) Option {
	return func(c *Client) {
		if rps <= 0 {
			c.limiter = nil
			return
		}
		if burst < 1 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(rps), burst)
	}
}

// New creates a client for baseURL (e.g. http://host/api/admin).
func New(baseURL string, sess *session.Session, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		session: sess,
		httpClient: &http.Client{
			Timeout: 15 * time.Second,
		},
		log: logger.Component("adminapi"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Session returns the session the client authenticates with.
func (c *Client) Session() *session.Session { return c.session }

// WithSession returns a client bound to sess that shares the transport and
// rate limiter of c.
func (c *Client) WithSession(sess *session.Session) *Client {
	cp := *c
	cp.session = sess
	return &cp
}

// call describes one upstream request.
type call struct {
	op        string
	method    string
	path      string
	query     url.Values
	body      any
	header    http.Header
	anonymous bool
}

type envelope struct {
	Success *bool           `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
	Message string          `json:"message"`
	Detail  json.RawMessage `json:"detail"`
}

func (c *Client) do(ctx context.Context, cl call, out any) error {
	start := time.Now()
	err := c.send(ctx, cl, out)
	requestDuration.WithLabelValues(cl.op).Observe(time.Since(start).Seconds())

	outcome := "ok"
	var appErr *ApplicationError
	var trErr *TransportError
	switch {
	case err == nil:
	case errors.Is(err, ErrUnauthorized):
		outcome = "unauthorized"
	case errors.As(err, &appErr):
		outcome = "app_error"
	case errors.As(err, &trErr):
		outcome = "transport_error"
		c.log.Error("admin api request failed", "op", cl.op, "error", err)
	default:
		outcome = "error"
	}
	requestsTotal.WithLabelValues(cl.op, outcome).Inc()
	return err
}

func (c *Client) send(ctx context.Context, cl call, out any) error {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return &TransportError{Op: cl.op, Err: err}
		}
	}

	u := c.baseURL + cl.path
	if len(cl.query) > 0 {
		u += "?" + cl.query.Encode()
	}

	var body io.Reader
	if cl.body != nil {
		b, err := json.Marshal(cl.body)
		if err != nil {
			return fmt.Errorf("%s: encode request: %w", cl.op, err)
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, cl.method, u, body)
	if err != nil {
		return fmt.Errorf("%s: build request: %w", cl.op, err)
	}
	req.Header.Set("Accept", "application/json")
	if cl.body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, vs := range cl.header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	if !cl.anonymous && c.session != nil {
		if token, ok := c.session.Token(ctx); ok {
			req.Header.Set("Authorization", "Bearer "+token)
		}
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &TransportError{Op: cl.op, Err: err}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return &TransportError{Op: cl.op, Status: resp.StatusCode, Err: err}
	}

	if resp.StatusCode == http.StatusUnauthorized && !cl.anonymous {
		if c.session != nil {
			c.session.Expire(ctx, "rejected by upstream")
		}
		return fmt.Errorf("%s: %w", cl.op, ErrUnauthorized)
	}

	var env envelope
	structured := len(raw) > 0 && json.Unmarshal(raw, &env) == nil

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		if structured {
			if appErr := env.applicationError(cl.op, resp.StatusCode); appErr != nil {
				return appErr
			}
		}
		return &TransportError{Op: cl.op, Status: resp.StatusCode, Body: snippet(raw)}
	}

	if !structured {
		if out == nil || len(bytes.TrimSpace(raw)) == 0 {
			return nil
		}
		return &TransportError{Op: cl.op, Status: resp.StatusCode, Err: errors.New("response is not JSON")}
	}

	if env.Success != nil && !*env.Success {
		if appErr := env.applicationError(cl.op, resp.StatusCode); appErr != nil {
			return appErr
		}
		return &ApplicationError{Op: cl.op, Status: resp.StatusCode, Code: "UNKNOWN", Message: env.Message}
	}

	if out == nil {
		return nil
	}
	data := env.Data
	if env.Success == nil && len(data) == 0 {
		data = raw
	}
	if len(data) == 0 || string(data) == "null" {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return &TransportError{Op: cl.op, Status: resp.StatusCode, Err: fmt.Errorf("decode response: %w", err)}
	}
	return nil
}

// applicationError extracts a structured error, or nil if the body has none.
func (e *envelope) applicationError(op string, status int) *ApplicationError {
	if e.Error != nil && (e.Error.Code != "" || e.Error.Message != "") {
		return &ApplicationError{Op: op, Status: status, Code: e.Error.Code, Message: e.Error.Message}
	}
	if msg := detailMessage(e.Detail); msg != "" {
		return &ApplicationError{Op: op, Status: status, Code: "HTTP_" + strconv.Itoa(status), Message: msg}
	}
	return nil
}

// detailMessage reads FastAPI's "detail", which is either a string or a list
// of validation errors.
func detailMessage(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var s string
	if json.Unmarshal(raw, &s) == nil {
		return s
	}
	var items []struct {
		Msg string `json:"msg"`
	}
	if json.Unmarshal(raw, &items) == nil {
		msgs := make([]string, 0, len(items))
		for _, it := range items {
			if it.Msg != "" {
				msgs = append(msgs, it.Msg)
			}
		}
		return strings.Join(msgs, "; ")
	}
	return ""
}

func snippet(b []byte) string {
	s := strings.TrimSpace(string(b))
	if len(s) > 200 {
		s = s[:200] + "..."
	}
	return s
}

type ctxKey struct{}

// NewContext returns ctx carrying c.
func NewContext(ctx context.Context, c *Client) context.Context {
	return context.WithValue(ctx, ctxKey{}, c)
}

// FromContext returns the client stored by NewContext.
func FromContext(ctx context.Context) (*Client, bool) {
	c, ok := ctx.Value(ctxKey{}).(*Client)
	return c, ok && c != nil
}
