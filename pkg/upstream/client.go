// Package upstream provides the HTTP transport that carries request cache
// misses to the LeetCode GraphQL proxy.
package upstream

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/leetleague/leetleague/pkg/requestcache"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Prometheus metrics for proxy transport operations.
var (
	proxyRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "leetleague_proxy_requests_total",
		Help: "Total requests sent to the GraphQL proxy by kind and status",
	}, []string{"kind", "status"})

	proxyRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "leetleague_proxy_request_duration_seconds",
		Help:    "GraphQL proxy request duration in seconds by kind",
		Buckets: []float64{0.1, 0.5, 1, 2, 5, 10},
	}, []string{"kind"})

	proxyErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "leetleague_proxy_errors_total",
		Help: "Total GraphQL proxy errors by class",
	}, []string{"class"})
)

// maxErrorBody bounds how much of a failed response is kept in the error.
const maxErrorBody = 512

// Config holds the transport configuration.
type Config struct {
	// URL is the proxy endpoint, e.g. "https://example.com/api/leetcode"
	URL string

	// UserAgent is sent with every request
	UserAgent string

	// Timeout bounds each HTTP round trip
	Timeout time.Duration
}

// DefaultConfig returns a default configuration.
func DefaultConfig(url, userAgent string) Config {
	return Config{
		URL:       url,
		UserAgent: userAgent,
		Timeout:   30 * time.Second,
	}
}

// Client posts GraphQL request descriptors to the proxy.
// It implements requestcache.Transport and never retries.
type Client struct {
	httpClient *http.Client
	config     Config
	logger     zerolog.Logger
}

var _ requestcache.Transport = (*Client)(nil)

// New creates a new proxy transport.
func New(cfg Config) (*Client, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("proxy url is required")
	}
	if cfg.UserAgent == "" {
		return nil, fmt.Errorf("user-agent is required")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}

	return &Client{
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
		config: cfg,
		logger: log.With().Str("component", "proxy-transport").Logger(),
	}, nil
}

// Do sends a single request object and returns the response object.
func (c *Client) Do(ctx context.Context, req requestcache.Request) (json.RawMessage, error) {
	body, err := c.post(ctx, "single", req)
	if err != nil {
		return nil, err
	}

	if !json.Valid(body) {
		return nil, c.decodeError(http.StatusOK, fmt.Errorf("response is not valid JSON"))
	}
	return json.RawMessage(body), nil
}

// DoBatch sends an array of requests and returns the response array.
func (c *Client) DoBatch(ctx context.Context, reqs []requestcache.Request) ([]json.RawMessage, error) {
	body, err := c.post(ctx, "batch", reqs)
	if err != nil {
		return nil, err
	}

	var out []json.RawMessage
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, c.decodeError(http.StatusOK, fmt.Errorf("decode batch response: %w", err))
	}
	if len(out) != len(reqs) {
		return nil, c.decodeError(http.StatusOK,
			fmt.Errorf("batch response has %d items, want %d", len(out), len(reqs)))
	}
	return out, nil
}

// post performs one POST round trip and returns the body of a 2xx response.
func (c *Client) post(ctx context.Context, kind string, payload any) ([]byte, error) {
	start := time.Now()
	defer func() {
		proxyRequestDuration.WithLabelValues(kind).Observe(time.Since(start).Seconds())
	}()

	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal %s request: %w", kind, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.config.URL, bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.config.UserAgent)

	c.logger.Debug().
		Str("kind", kind).
		Int("bytes", len(data)).
		Msg("Posting to GraphQL proxy")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		errClass := c.classifyError(nil, err)
		proxyErrorsTotal.WithLabelValues(string(errClass)).Inc()
		proxyRequestsTotal.WithLabelValues(kind, "network_error").Inc()
		c.logger.Error().Err(err).Str("kind", kind).Msg("HTTP request failed")
		return nil, &Error{
			ErrorClass: errClass,
			Message:    "request failed",
			Err:        err,
		}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		proxyErrorsTotal.WithLabelValues(string(ErrorClassNetwork)).Inc()
		return nil, &Error{
			StatusCode: resp.StatusCode,
			ErrorClass: ErrorClassNetwork,
			Message:    "read response body",
			Err:        err,
		}
	}

	proxyRequestsTotal.WithLabelValues(kind, strconv.Itoa(resp.StatusCode)).Inc()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		errClass := c.classifyError(resp, nil)
		proxyErrorsTotal.WithLabelValues(string(errClass)).Inc()

		c.logger.Warn().
			Str("kind", kind).
			Int("status", resp.StatusCode).
			Str("error_class", string(errClass)).
			Msg("GraphQL proxy request error")

		return nil, &Error{
			StatusCode: resp.StatusCode,
			ErrorClass: errClass,
			Message:    resp.Status,
			Err:        errors.New(truncate(body, maxErrorBody)),
		}
	}

	return body, nil
}

// classifyError categorizes an error for observability.
func (c *Client) classifyError(resp *http.Response, err error) ErrorClass {
	if err != nil {
		return ErrorClassNetwork
	}

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return ErrorClassRateLimit
	case resp.StatusCode >= 400 && resp.StatusCode < 500:
		return ErrorClassClient
	case resp.StatusCode >= 500:
		return ErrorClassServer
	default:
		// 1xx/3xx are not usable responses either
		return ErrorClassServer
	}
}

func (c *Client) decodeError(status int, err error) error {
	proxyErrorsTotal.WithLabelValues(string(ErrorClassDecode)).Inc()
	c.logger.Warn().Err(err).Msg("Malformed GraphQL proxy response")
	return &Error{
		StatusCode: status,
		ErrorClass: ErrorClassDecode,
		Message:    "malformed response",
		Err:        err,
	}
}

// SetHTTPClient sets a custom HTTP client (for testing).
func (c *Client) SetHTTPClient(client *http.Client) {
	c.httpClient = client
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}
