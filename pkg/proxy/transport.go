package proxy

import (
	"context"
	"encoding/json"

	"github.com/leetleague/leetleague/pkg/requestcache"
)

// Transport adapts a Service to requestcache.Transport, so the dashboard
// can resolve requests in-process without an HTTP hop to itself.
type Transport struct {
	service *Service
}

var _ requestcache.Transport = (*Transport)(nil)

// NewTransport creates an in-process transport.
func NewTransport(service *Service) *Transport {
	return &Transport{service: service}
}

// Do forwards one descriptor.
func (t *Transport) Do(ctx context.Context, req requestcache.Request) (json.RawMessage, error) {
	return t.service.ForwardJSON(ctx, req)
}

// DoBatch forwards a batch all-or-nothing.
func (t *Transport) DoBatch(ctx context.Context, reqs []requestcache.Request) ([]json.RawMessage, error) {
	return t.service.ForwardBatch(ctx, reqs)
}
