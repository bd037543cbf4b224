// Package transport performs single calls against the remote
// spreadsheet-backed API.
//
// Every call is a form-encoded POST carrying the shared token and the action
// name. Form encoding keeps the request "simple" so browsers and proxies in
// front of the sheet never issue a CORS preflight.
package transport

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/tidwall/gjson"

	"github.com/fintrack/fintrack/internal/ledger"
	"github.com/fintrack/fintrack/internal/logging"
	"github.com/fintrack/fintrack/internal/status"
)

// DefaultTimeout is the request deadline when Config.Timeout is zero.
const DefaultTimeout = 15 * time.Second

// maxBodySize caps how much of a response is read.
const maxBodySize = 8 << 20

// Config configures a Client.
type Config struct {
	// Endpoint is the target URL of the remote API.
	Endpoint string

	// AuthToken is the shared secret sent as the "token" form field.
	AuthToken string

	// Timeout aborts a call with no response (default: 15s).
	Timeout time.Duration
}

// Validate checks that the endpoint is an absolute http(s) URL.
func (c Config) Validate() error {
	if c.Endpoint == "" {
		return fmt.Errorf("endpoint is required")
	}
	u, err := url.Parse(c.Endpoint)
	if err != nil {
		return fmt.Errorf("invalid endpoint: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("endpoint must be http or https (got %q)", u.Scheme)
	}
	if u.Host == "" {
		return fmt.Errorf("endpoint %q has no host", c.Endpoint)
	}
	if c.Timeout < 0 {
		return fmt.Errorf("timeout must not be negative")
	}
	return nil
}

// Client issues calls to the remote API.
type Client struct {
	cfg    Config
	http   *http.Client
	busy   status.Reporter
	logger logrus.FieldLogger
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the default http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithBusyReporter sets where busy/idle transitions are reported.
func WithBusyReporter(r status.Reporter) Option {
	return func(c *Client) { c.busy = r }
}

// WithLogger sets the logger.
func WithLogger(l logrus.FieldLogger) Option {
	return func(c *Client) { c.logger = l }
}

// New creates a Client from cfg.
func New(cfg Config, opts ...Option) (*Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultTimeout
	}

	c := &Client{
		cfg:  cfg,
		http: &http.Client{},
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = logging.OrDiscard(c.logger).WithField("component", "transport")
	return c, nil
}

// Timeout returns the effective request deadline.
func (c *Client) Timeout() time.Duration {
	return c.cfg.Timeout
}

// Call sends one request for action with payload as extra form fields.
//
// The response passes through, in order: HTTP status check, HTML detection,
// JSON parsing and the explicit error field. Any failure is returned as a
// *ledger.RemoteError.
func (c *Client) Call(ctx context.Context, action ledger.Action, payload ledger.Payload) (Result, error) {
	if c.busy != nil {
		c.busy.SetBusy(true)
		defer c.busy.SetBusy(false)
	}

	ctx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	form := encodeForm(c.cfg.AuthToken, action, payload)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.Endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return Result{}, fmt.Errorf("failed to build %s request: %w", action, err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	log := c.logger.WithField("action", action)
	log.Debug("calling remote")

	resp, err := c.http.Do(req)
	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return Result{}, &ledger.RemoteError{
				Kind:    ledger.KindTransient,
				Action:  action,
				Message: fmt.Sprintf("request timed out after %s", c.cfg.Timeout),
				Err:     context.DeadlineExceeded,
			}
		}
		return Result{}, &ledger.RemoteError{
			Kind:    ledger.KindTransient,
			Action:  action,
			Message: fmt.Sprintf("request failed: %v", err),
			Err:     err,
		}
	}
	defer resp.Body.Close()

	log.WithField("status", resp.StatusCode).Debug("remote responded")

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxBodySize))
		return Result{}, &ledger.RemoteError{
			Kind:       ledger.KindTransient,
			Action:     action,
			StatusCode: resp.StatusCode,
			Message:    fmt.Sprintf("HTTP %d: %s", resp.StatusCode, http.StatusText(resp.StatusCode)),
		}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return Result{}, &ledger.RemoteError{
			Kind:    ledger.KindTransient,
			Action:  action,
			Message: fmt.Sprintf("failed to read response: %v", err),
			Err:     err,
		}
	}

	return validate(action, body)
}

// encodeForm builds the request body. The token and action fields cannot be
// overridden by payload keys.
func encodeForm(token string, action ledger.Action, payload ledger.Payload) url.Values {
	form := url.Values{}
	form.Set("token", token)
	form.Set("action", string(action))

	keys := make([]string, 0, len(payload))
	for k := range payload {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		if k == "token" || k == "action" {
			continue
		}
		form.Add(k, payload[k])
	}
	return form
}

// validate runs the body checks that follow a successful HTTP status.
func validate(action ledger.Action, body []byte) (Result, error) {
	trimmed := bytes.TrimSpace(body)

	if isHTML(trimmed) {
		return Result{}, &ledger.RemoteError{
			Kind:    ledger.KindProtocol,
			Action:  action,
			Message: "remote returned an HTML page instead of JSON; check the deployment and its access settings",
		}
	}

	if len(trimmed) == 0 || !gjson.ValidBytes(trimmed) {
		return Result{}, &ledger.RemoteError{
			Kind:    ledger.KindProtocol,
			Action:  action,
			Message: "invalid JSON response from remote",
		}
	}

	parsed := gjson.ParseBytes(trimmed)
	if parsed.IsObject() {
		if msg, ok := errorField(parsed.Get("error")); ok {
			return Result{}, &ledger.RemoteError{
				Kind:    ledger.KindRejection,
				Action:  action,
				Message: msg,
			}
		}
	}

	return Result{Action: action, Body: append([]byte(nil), trimmed...)}, nil
}

func isHTML(body []byte) bool {
	head := strings.ToLower(string(body[:min(len(body), 16)]))
	return strings.HasPrefix(head, "<!doctype") || strings.HasPrefix(head, "<html")
}

// errorField reports whether an error field is set to a truthy value and
// returns its message.
func errorField(r gjson.Result) (string, bool) {
	switch r.Type {
	case gjson.Null, gjson.False:
		return "", false
	case gjson.String:
		if r.Str == "" {
			return "", false
		}
		return r.Str, true
	case gjson.Number:
		if r.Num == 0 {
			return "", false
		}
		return r.Raw, true
	case gjson.True:
		return "remote reported an error", true
	case gjson.JSON:
		if m := r.Get("message"); m.Type == gjson.String && m.Str != "" {
			return m.Str, true
		}
		return r.Raw, true
	default:
		return "", false
	}
}
