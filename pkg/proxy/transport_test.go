package proxy

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/leetleague/leetleague/internal/testutil"
	"github.com/leetleague/leetleague/pkg/fanout"
	"github.com/leetleague/leetleague/pkg/graphql"
	"github.com/leetleague/leetleague/pkg/requestcache"
	"github.com/leetleague/leetleague/pkg/sharedcache"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

func profileReq(username string) requestcache.Request {
	return requestcache.Request{Query: profileQuery, Variables: map[string]any{"username": username}}
}

func TestTransport_WithRequestCache(t *testing.T) {
	mock, service := setupProxy(t)
	mock.SetOperationFunc("userPublicProfile", profiles)

	cache, err := requestcache.New(NewTransport(service), requestcache.DefaultConfig(), requestcache.WithLogger(zerolog.Nop()))
	if err != nil {
		t.Fatalf("requestcache.New() error = %v", err)
	}
	ctx := context.Background()

	results, err := cache.ResolveBatch(ctx, []requestcache.Request{profileReq("alice"), profileReq("bob"), profileReq("alice")})
	if err != nil {
		t.Fatalf("ResolveBatch() error = %v", err)
	}
	if string(results[0]) != string(results[2]) {
		t.Error("duplicate descriptors resolved differently")
	}
	if mock.GetRequestCount() != 2 {
		t.Errorf("upstream requests = %d, want 2", mock.GetRequestCount())
	}

	if _, err := cache.Resolve(ctx, profileReq("bob")); err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if mock.GetRequestCount() != 2 {
		t.Errorf("cached Resolve reached upstream (%d requests)", mock.GetRequestCount())
	}
}

func TestTransport_StatusErrorBecomesUpstreamError(t *testing.T) {
	mock, service := setupProxy(t)
	mock.SetOperationFunc("userPublicProfile", profiles)

	cache, err := requestcache.New(NewTransport(service), requestcache.DefaultConfig(), requestcache.WithLogger(zerolog.Nop()))
	if err != nil {
		t.Fatalf("requestcache.New() error = %v", err)
	}
	ctx := context.Background()

	_, err = cache.ResolveBatch(ctx, []requestcache.Request{profileReq("alice"), profileReq("broken")})
	var upErr *requestcache.UpstreamError
	if !errors.As(err, &upErr) {
		t.Fatalf("ResolveBatch() error = %v, want UpstreamError", err)
	}
	if upErr.StatusCode != 500 {
		t.Errorf("StatusCode = %d, want 500", upErr.StatusCode)
	}
	var taskErr *fanout.TaskError
	if !errors.As(err, &taskErr) || taskErr.Index != 1 {
		t.Errorf("TaskError = %v, want index 1", taskErr)
	}
	if cache.Len() != 0 {
		t.Errorf("failed batch left %d entries", cache.Len())
	}
}

func TestService_ForwardJSON(t *testing.T) {
	mock, service := setupProxy(t)
	mock.SetOperationFunc("userPublicProfile", profiles)
	ctx := context.Background()

	body, err := service.ForwardJSON(ctx, profileReq("alice"))
	if err != nil || !strings.Contains(string(body), `"alice"`) {
		t.Errorf("ForwardJSON() = %s, %v", body, err)
	}

	_, err = service.ForwardJSON(ctx, profileReq("broken"))
	var statusErr *StatusError
	if !errors.As(err, &statusErr) || statusErr.HTTPStatus() != 500 {
		t.Errorf("ForwardJSON() error = %v, want StatusError 500", err)
	}
}

func TestService_SharedCache(t *testing.T) {
	client := redis.NewClient(&redis.Options{Addr: "localhost:6379", DB: 12})
	ctx := context.Background()
	if err := client.Ping(ctx).Err(); err != nil {
		t.Skipf("Redis not available for testing: %v", err)
	}
	client.FlushDB(ctx)
	t.Cleanup(func() {
		client.FlushDB(context.Background())
		client.Close()
	})

	mock := testutil.NewMockGraphQL()
	defer mock.Close()
	mock.SetOperationFunc("userPublicProfile", profiles)

	cfg := graphql.DefaultConfig()
	cfg.Endpoint = mock.URL()
	gql, err := graphql.New(cfg, graphql.WithLogger(zerolog.Nop()))
	if err != nil {
		t.Fatalf("graphql.New() error = %v", err)
	}

	// Two services stand in for two proxy instances
	manager := sharedcache.NewManager(client)
	first := NewService(gql, nil, WithSharedCache(manager, time.Minute), WithLogger(zerolog.Nop()))
	second := NewService(gql, nil, WithSharedCache(manager, time.Minute), WithLogger(zerolog.Nop()))

	if _, err := first.ForwardJSON(ctx, profileReq("alice")); err != nil {
		t.Fatalf("first ForwardJSON() error = %v", err)
	}
	body, err := second.ForwardJSON(ctx, profileReq("alice"))
	if err != nil {
		t.Fatalf("second ForwardJSON() error = %v", err)
	}
	if !strings.Contains(string(body), `"alice"`) {
		t.Errorf("cached body = %s", body)
	}
	if mock.GetRequestCount() != 1 {
		t.Errorf("upstream requests = %d, want 1", mock.GetRequestCount())
	}

	// Failures are never shared
	for i := 0; i < 2; i++ {
		if _, err := second.ForwardJSON(ctx, profileReq("broken")); err == nil {
			t.Error("ForwardJSON(broken) error = nil")
		}
	}
	if mock.GetRequestCount() != 3 {
		t.Errorf("upstream requests = %d, want 3", mock.GetRequestCount())
	}
}
