// Package graphql forwards GraphQL request descriptors to LeetCode.
//
// The client sends each descriptor verbatim, passes the upstream status and
// body back unchanged, and consults an optional Limiter so a 429 from
// LeetCode pauses all further traffic for the Retry-After window.
package graphql

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/leetleague/leetleague/pkg/ratelimit"
	"github.com/leetleague/leetleague/pkg/requestcache"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const (
	// DefaultEndpoint is LeetCode's public GraphQL endpoint.
	DefaultEndpoint = "https://leetcode.com/graphql"

	// DefaultUserAgent identifies the tracker to LeetCode.
	DefaultUserAgent = "LeetCode-Friends-Tracker/1.0"
)

// Prometheus metrics for LeetCode calls.
var (
	leetcodeRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "leetleague_leetcode_requests_total",
		Help: "Total requests forwarded to LeetCode by status",
	}, []string{"status"})

	leetcodeRequestDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "leetleague_leetcode_request_duration_seconds",
		Help:    "LeetCode GraphQL request duration in seconds",
		Buckets: []float64{0.1, 0.25, 0.5, 1, 2, 5, 10},
	})
)

// Limiter gates outgoing requests and learns from responses.
// *ratelimit.Tracker implements it.
type Limiter interface {
	ShouldAllowRequest(ctx context.Context) (bool, error)
	UpdateFromResponse(ctx context.Context, statusCode int, headers http.Header) error
}

// Config holds the client configuration.
type Config struct {
	// Endpoint is the GraphQL URL
	Endpoint string

	// UserAgent is sent with every request
	UserAgent string

	// Timeout bounds each round trip
	Timeout time.Duration
}

// DefaultConfig returns the configuration used against leetcode.com.
func DefaultConfig() Config {
	return Config{
		Endpoint:  DefaultEndpoint,
		UserAgent: DefaultUserAgent,
		Timeout:   15 * time.Second,
	}
}

// Response is an upstream reply, success or not.
type Response struct {
	StatusCode int
	// StatusText is the reason phrase, e.g. "Too Many Requests"
	StatusText string
	Header     http.Header
	Body       []byte
}

// OK reports a 2xx status.
func (r *Response) OK() bool {
	return r.StatusCode >= 200 && r.StatusCode <= 299
}

// Option configures a Client.
type Option func(*Client)

// WithLimiter installs a cooldown gate.
func WithLimiter(l Limiter) Option {
	return func(c *Client) {
		c.limiter = l
	}
}

// WithLogger overrides the component logger.
func WithLogger(logger zerolog.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

// WithHTTPClient replaces the HTTP client (for testing).
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// Client forwards descriptors to LeetCode.
type Client struct {
	httpClient *http.Client
	limiter    Limiter
	config     Config
	logger     zerolog.Logger
}

// New creates a new LeetCode client.
func New(cfg Config, opts ...Option) (*Client, error) {
	if cfg.Endpoint == "" {
		return nil, fmt.Errorf("endpoint is required")
	}
	if cfg.UserAgent == "" {
		return nil, fmt.Errorf("user-agent is required")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}

	c := &Client{
		httpClient: &http.Client{Timeout: cfg.Timeout},
		config:     cfg,
		logger:     log.With().Str("component", "leetcode-client").Logger(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Forward posts one descriptor to LeetCode and returns whatever came back.
// A non-2xx status is not an error here; errors mean no response was
// received, or ratelimit.ErrCooldown when the limiter refused the call.
func (c *Client) Forward(ctx context.Context, req requestcache.Request) (*Response, error) {
	if c.limiter != nil {
		allowed, err := c.limiter.ShouldAllowRequest(ctx)
		if err != nil {
			// Redis trouble should not take the proxy down with it
			c.logger.Warn().Err(err).Msg("Cooldown check failed, allowing request")
		} else if !allowed {
			leetcodeRequestsTotal.WithLabelValues("cooldown").Inc()
			return nil, ratelimit.ErrCooldown
		}
	}

	payload, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.config.Endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("User-Agent", c.config.UserAgent)

	start := time.Now()
	resp, err := c.httpClient.Do(httpReq)
	leetcodeRequestDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		leetcodeRequestsTotal.WithLabelValues("network_error").Inc()
		return nil, fmt.Errorf("leetcode request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		leetcodeRequestsTotal.WithLabelValues("network_error").Inc()
		return nil, fmt.Errorf("read leetcode response: %w", err)
	}

	leetcodeRequestsTotal.WithLabelValues(strconv.Itoa(resp.StatusCode)).Inc()

	if c.limiter != nil {
		if err := c.limiter.UpdateFromResponse(ctx, resp.StatusCode, resp.Header); err != nil {
			c.logger.Warn().Err(err).Msg("Failed to record cooldown state")
		}
	}

	out := &Response{
		StatusCode: resp.StatusCode,
		StatusText: statusText(resp),
		Header:     resp.Header,
		Body:       body,
	}

	if !out.OK() {
		c.logger.Warn().
			Int("status", resp.StatusCode).
			Str("body", string(body)).
			Msg("LeetCode API request failed")
	}
	return out, nil
}

// statusText extracts the reason phrase from "429 Too Many Requests".
func statusText(resp *http.Response) string {
	if text, ok := strings.CutPrefix(resp.Status, strconv.Itoa(resp.StatusCode)+" "); ok && text != "" {
		return text
	}
	return http.StatusText(resp.StatusCode)
}
