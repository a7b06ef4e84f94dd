// Package proxy is the server side of the GraphQL transport: it accepts one
// request descriptor or an array of them, forwards each to LeetCode and
// answers with a single document or an array in input order.
package proxy

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/leetleague/leetleague/pkg/fanout"
	"github.com/leetleague/leetleague/pkg/graphql"
	"github.com/leetleague/leetleague/pkg/requestcache"
	"github.com/leetleague/leetleague/pkg/sharedcache"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Forwarder sends one descriptor upstream. *graphql.Client implements it.
type Forwarder interface {
	Forward(ctx context.Context, req requestcache.Request) (*graphql.Response, error)
}

// StatusError is a non-2xx LeetCode reply inside a batch or an in-process call.
type StatusError struct {
	StatusCode int
	StatusText string
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("LeetCode API Error: %s", e.StatusText)
}

// HTTPStatus returns the upstream status code.
func (e *StatusError) HTTPStatus() int {
	return e.StatusCode
}

// ErrInvalidResponse means LeetCode answered 2xx with a body that is not JSON.
var ErrInvalidResponse = errors.New("invalid JSON from LeetCode")

// Option configures a Service.
type Option func(*Service)

// WithSharedCache serves successful responses from Redis for ttl.
func WithSharedCache(m *sharedcache.Manager, ttl time.Duration) Option {
	return func(s *Service) {
		s.shared = m
		s.sharedTTL = ttl
	}
}

// WithLogger overrides the component logger.
func WithLogger(logger zerolog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

// Service forwards descriptors singly or as fanned-out batches.
type Service struct {
	forwarder Forwarder
	executor  *fanout.Executor
	shared    *sharedcache.Manager
	sharedTTL time.Duration
	logger    zerolog.Logger
}

// NewService creates a proxy service.
func NewService(forwarder Forwarder, executor *fanout.Executor, opts ...Option) *Service {
	if executor == nil {
		executor = fanout.NewExecutor(fanout.DefaultConfig())
	}
	s := &Service{
		forwarder: forwarder,
		executor:  executor,
		logger:    log.With().Str("component", "graphql-proxy").Logger(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Forward sends one descriptor, consulting the shared cache first.
// Non-2xx replies are returned, not turned into errors.
func (s *Service) Forward(ctx context.Context, req requestcache.Request) (*graphql.Response, error) {
	key, cacheable := s.sharedKey(req)
	if cacheable {
		entry, err := s.shared.Get(ctx, key)
		if err == nil {
			s.logger.Debug().Str("key", key.String()).Msg("Shared cache hit")
			return &graphql.Response{StatusCode: entry.StatusCode, StatusText: "OK", Body: entry.Data}, nil
		}
		if !errors.Is(err, sharedcache.ErrCacheMiss) {
			s.logger.Warn().Err(err).Msg("Shared cache get error")
		}
	}

	resp, err := s.forwarder.Forward(ctx, req)
	if err != nil {
		return nil, err
	}

	if cacheable && resp.OK() && json.Valid(resp.Body) {
		if err := s.shared.Set(ctx, key, sharedcache.NewEntry(resp.StatusCode, resp.Body, s.sharedTTL)); err != nil {
			s.logger.Warn().Err(err).Msg("Shared cache set error")
		}
	}
	return resp, nil
}

// ForwardJSON forwards one descriptor and requires a 2xx JSON reply.
func (s *Service) ForwardJSON(ctx context.Context, req requestcache.Request) (json.RawMessage, error) {
	resp, err := s.Forward(ctx, req)
	if err != nil {
		return nil, err
	}
	if !resp.OK() {
		return nil, &StatusError{
			StatusCode: resp.StatusCode,
			StatusText: resp.StatusText,
			Body:       string(resp.Body),
		}
	}
	if !json.Valid(resp.Body) {
		return nil, ErrInvalidResponse
	}
	return json.RawMessage(resp.Body), nil
}

// ForwardBatch forwards every descriptor in parallel. The result has the
// same length and order as reqs; any failure fails the whole batch with a
// *fanout.TaskError.
func (s *Service) ForwardBatch(ctx context.Context, reqs []requestcache.Request) ([]json.RawMessage, error) {
	tasks := make([]fanout.Task, len(reqs))
	for i, req := range reqs {
		tasks[i] = func(ctx context.Context) ([]byte, error) {
			return s.ForwardJSON(ctx, req)
		}
	}

	results, err := s.executor.Run(ctx, tasks)
	if err != nil {
		return nil, err
	}

	out := make([]json.RawMessage, len(results))
	for i, r := range results {
		out[i] = json.RawMessage(r)
	}
	return out, nil
}

func (s *Service) sharedKey(req requestcache.Request) (sharedcache.CacheKey, bool) {
	if s.shared == nil || s.sharedTTL <= 0 {
		return sharedcache.CacheKey{}, false
	}
	key, err := sharedcache.KeyFor(req)
	if err != nil {
		s.logger.Debug().Err(err).Msg("Request not cacheable")
		return sharedcache.CacheKey{}, false
	}
	return key, true
}
