// Package dataservice is the JSON-over-HTTP client for the external data
// service. Every response is shaped {success, data | error}; the client
// unwraps that envelope, classifies failures with the apperr taxonomy and
// applies the single normalization pass (see Normalize) before any domain
// code decodes the payload.
package dataservice

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/kolbymanginohealthcraft/market-mover-sub006/internal/platform/apperr"
	"github.com/kolbymanginohealthcraft/market-mover-sub006/internal/platform/telemetry"
)

// HTTPDoer is satisfied by *http.Client and by test doubles.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithHTTPClient overrides the HTTP client used for requests.
func WithHTTPClient(d HTTPDoer) ClientOption {
	return func(c *Client) { c.http = d }
}

// WithRateLimit throttles outbound requests to rps with the given burst.
// A non-positive rps disables throttling.
func WithRateLimit(rps float64, burst int) ClientOption {
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

// WithLogger attaches a logger.
func WithLogger(l zerolog.Logger) ClientOption {
	return func(c *Client) { c.logger = l }
}

// Client talks to the data service rooted at a base URL.
type Client struct {
	baseURL *url.URL
	http    HTTPDoer
	limiter *rate.Limiter
	logger  zerolog.Logger
}

// NewClient creates a Client for baseURL.
func NewClient(baseURL string, opts ...ClientOption) (*Client, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("parse data service url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("data service url scheme must be http or https, got %q", u.Scheme)
	}
	if !strings.HasSuffix(u.Path, "/") {
		u.Path += "/"
	}
	c := &Client{
		baseURL: u,
		http:    &http.Client{Timeout: 60 * time.Second},
		logger:  zerolog.Nop(),
	}
	for _, o := range opts {
		o(c)
	}
	return c, nil
}

// envelope is the wire shape of every data-service response.
type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   json.RawMessage `json:"error"`
	Message string          `json:"message"`
}

// Get issues a GET for path with the query and decodes data into out.
func (c *Client) Get(ctx context.Context, path string, query url.Values, out interface{}) error {
	return c.do(ctx, http.MethodGet, path, query, nil, out)
}

// Post issues a POST with a JSON body and decodes data into out.
func (c *Client) Post(ctx context.Context, path string, body, out interface{}) error {
	return c.do(ctx, http.MethodPost, path, nil, body, out)
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, body, out interface{}) error {
	op := endpointName(path)

	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return c.transportError(ctx, op, err)
		}
	}

	target := c.baseURL.ResolveReference(&url.URL{Path: strings.TrimPrefix(path, "/")})
	if len(query) > 0 {
		target.RawQuery = query.Encode()
	}

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("%s: encode request: %w", op, err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, target.String(), reader)
	if err != nil {
		return fmt.Errorf("%s: build request: %w", op, err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		telemetry.UpstreamDuration.WithLabelValues(op, "network_error").Observe(time.Since(start).Seconds())
		return c.transportError(ctx, op, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		telemetry.UpstreamDuration.WithLabelValues(op, "network_error").Observe(time.Since(start).Seconds())
		return c.transportError(ctx, op, err)
	}

	err = c.decode(op, resp.StatusCode, raw, out)
	outcome := "success"
	if err != nil {
		outcome = "upstream_error"
	}
	telemetry.UpstreamDuration.WithLabelValues(op, outcome).Observe(time.Since(start).Seconds())
	if err != nil {
		c.logger.Error().Err(err).Str("endpoint", op).Int("status", resp.StatusCode).Msg("data service request failed")
	}
	return err
}

// transportError classifies a failure that happened before a response was
// read. Cancellations keep their context error so callers can tell a
// superseded call from a real outage.
func (c *Client) transportError(ctx context.Context, op string, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return fmt.Errorf("%s: %w", op, ctxErr)
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%s: %w", op, err)
	}
	return apperr.Network(op, err)
}

func (c *Client) decode(op string, status int, raw []byte, out interface{}) error {
	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		if status >= 400 {
			return apperr.Upstream(op, status, http.StatusText(status))
		}
		return apperr.Upstream(op, status, "malformed response: "+err.Error())
	}
	if status >= 400 || !env.Success {
		msg := errorMessage(env)
		if msg == "" {
			msg = http.StatusText(status)
		}
		if msg == "" {
			msg = "request was not successful"
		}
		return apperr.Upstream(op, status, msg)
	}
	if out == nil || len(env.Data) == 0 || string(env.Data) == "null" {
		return nil
	}
	normalized, err := Normalize(env.Data)
	if err != nil {
		return apperr.Upstream(op, status, "malformed data: "+err.Error())
	}
	if err := json.Unmarshal(normalized, out); err != nil {
		return apperr.Upstream(op, status, "unexpected data shape: "+err.Error())
	}
	return nil
}

// errorMessage extracts the error text, which arrives either as a string
// or as an object carrying a message.
func errorMessage(env envelope) string {
	if len(env.Error) > 0 && string(env.Error) != "null" {
		var s string
		if err := json.Unmarshal(env.Error, &s); err == nil {
			return s
		}
		var obj struct {
			Message string `json:"message"`
		}
		if err := json.Unmarshal(env.Error, &obj); err == nil && obj.Message != "" {
			return obj.Message
		}
		return string(env.Error)
	}
	return env.Message
}

// endpointName turns "referral-pathways/facility-location/123" into a
// bounded metric label.
func endpointName(path string) string {
	p := strings.Trim(path, "/")
	if strings.HasPrefix(p, "referral-pathways/facility-location") {
		return "referral-pathways/facility-location"
	}
	return p
}
