package requestcache

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

// fakeTransport echoes each request back as {"data":{"query":..,"variables":..}}
// and records every upstream call.
type fakeTransport struct {
	mu      sync.Mutex
	single  []Request
	batches [][]Request

	err error
	// short drops the last item of batch responses
	short bool
	// block, when set, is waited on before answering
	block   chan struct{}
	started chan struct{}
}

func (f *fakeTransport) Do(ctx context.Context, req Request) (json.RawMessage, error) {
	f.mu.Lock()
	f.single = append(f.single, req)
	block, started, err := f.block, f.started, f.err
	f.mu.Unlock()

	if started != nil {
		started <- struct{}{}
	}
	if block != nil {
		<-block
	}
	if err != nil {
		return nil, err
	}
	return echo(req), nil
}

func (f *fakeTransport) DoBatch(ctx context.Context, reqs []Request) ([]json.RawMessage, error) {
	f.mu.Lock()
	f.batches = append(f.batches, append([]Request(nil), reqs...))
	block, started, err, short := f.block, f.started, f.err, f.short
	f.mu.Unlock()

	if started != nil {
		started <- struct{}{}
	}
	if block != nil {
		<-block
	}
	if err != nil {
		return nil, err
	}

	out := make([]json.RawMessage, 0, len(reqs))
	for _, req := range reqs {
		out = append(out, echo(req))
	}
	if short {
		out = out[:len(out)-1]
	}
	return out, nil
}

func (f *fakeTransport) calls() (single int, batches [][]Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.single), f.batches
}

func (f *fakeTransport) setErr(err error) {
	f.mu.Lock()
	f.err = err
	f.mu.Unlock()
}

func echo(req Request) json.RawMessage {
	data, _ := json.Marshal(map[string]any{"data": req})
	return data
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func userReq(username string) Request {
	return Request{
		Query:     "query userPublicProfile($username: String!) { matchedUser(username: $username) { username } }",
		Variables: map[string]any{"username": username},
	}
}

func newTestCache(t *testing.T, capacity int, ttl time.Duration) (*Cache, *fakeTransport, *fakeClock) {
	t.Helper()

	transport := &fakeTransport{}
	clock := newFakeClock()
	c, err := New(transport, Config{Capacity: capacity, TTL: ttl},
		WithClock(clock.Now),
		WithLogger(zerolog.Nop()),
	)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return c, transport, clock
}

func TestNew_Validation(t *testing.T) {
	tests := []struct {
		name      string
		transport Transport
		config    Config
		errorMsg  string
	}{
		{
			name:      "valid config",
			transport: &fakeTransport{},
			config:    DefaultConfig(),
		},
		{
			name:     "nil transport",
			config:   DefaultConfig(),
			errorMsg: "transport is required",
		},
		{
			name:      "zero capacity",
			transport: &fakeTransport{},
			config:    Config{Capacity: 0, TTL: time.Minute},
			errorMsg:  "capacity must be > 0 (got 0)",
		},
		{
			name:      "negative ttl",
			transport: &fakeTransport{},
			config:    Config{Capacity: 10, TTL: -time.Second},
			errorMsg:  "ttl must be > 0 (got -1s)",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, err := New(tt.transport, tt.config)
			if tt.errorMsg != "" {
				if err == nil {
					t.Fatal("Expected error but got nil")
				}
				if err.Error() != tt.errorMsg {
					t.Errorf("Error message = %q, want %q", err.Error(), tt.errorMsg)
				}
				return
			}
			if err != nil {
				t.Fatalf("Unexpected error: %v", err)
			}
			if c == nil {
				t.Error("Cache is nil")
			}
		})
	}
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	if cfg.Capacity != 500 {
		t.Errorf("Capacity = %d, want 500", cfg.Capacity)
	}
	if cfg.TTL != 5*time.Minute {
		t.Errorf("TTL = %v, want 5m", cfg.TTL)
	}
}

func TestCache_Resolve_HitWithinTTL(t *testing.T) {
	c, transport, clock := newTestCache(t, 10, 5*time.Minute)
	ctx := context.Background()

	first, err := c.Resolve(ctx, userReq("alice"))
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}

	clock.Advance(4 * time.Minute)

	second, err := c.Resolve(ctx, userReq("alice"))
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}

	if single, _ := transport.calls(); single != 1 {
		t.Errorf("upstream calls = %d, want 1", single)
	}
	if !bytes.Equal(first, second) {
		t.Errorf("responses differ: %s vs %s", first, second)
	}
}

func TestCache_Resolve_RefetchAfterTTL(t *testing.T) {
	c, transport, clock := newTestCache(t, 10, 5*time.Minute)
	ctx := context.Background()

	if _, err := c.Resolve(ctx, userReq("alice")); err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}

	clock.Advance(5*time.Minute + time.Second)

	if _, ok := c.Peek(userReq("alice")); ok {
		t.Error("Peek() found an expired entry")
	}

	if _, err := c.Resolve(ctx, userReq("alice")); err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}

	if single, _ := transport.calls(); single != 2 {
		t.Errorf("upstream calls = %d, want 2", single)
	}
}

func TestCache_Resolve_FailureNotCached(t *testing.T) {
	c, transport, _ := newTestCache(t, 10, 5*time.Minute)
	ctx := context.Background()

	transport.setErr(&statusErr{code: 502})

	_, err := c.Resolve(ctx, userReq("alice"))
	var upErr *UpstreamError
	if !errors.As(err, &upErr) {
		t.Fatalf("Resolve() error = %v, want *UpstreamError", err)
	}
	if upErr.StatusCode != 502 {
		t.Errorf("StatusCode = %d, want 502", upErr.StatusCode)
	}
	if c.Len() != 0 {
		t.Errorf("Len() = %d after failure, want 0", c.Len())
	}

	transport.setErr(nil)
	if _, err := c.Resolve(ctx, userReq("alice")); err != nil {
		t.Fatalf("Resolve() after recovery error = %v", err)
	}
	if single, _ := transport.calls(); single != 2 {
		t.Errorf("upstream calls = %d, want 2", single)
	}
}

func TestCache_Resolve_KeyOrderInsensitive(t *testing.T) {
	c, transport, _ := newTestCache(t, 10, 5*time.Minute)
	ctx := context.Background()

	a := Request{Query: "q", Variables: map[string]any{"username": "alice", "limit": 20}}
	b := Request{Query: "q", Variables: json.RawMessage(`{"limit":20,"username":"alice"}`)}

	if _, err := c.Resolve(ctx, a); err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if _, err := c.Resolve(ctx, b); err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}

	if single, _ := transport.calls(); single != 1 {
		t.Errorf("upstream calls = %d, want 1", single)
	}
}

func TestCache_Resolve_CoalescesConcurrentCallers(t *testing.T) {
	c, transport, _ := newTestCache(t, 10, 5*time.Minute)
	transport.block = make(chan struct{})
	transport.started = make(chan struct{}, 16)
	ctx := context.Background()

	const callers = 8
	var wg sync.WaitGroup
	errs := make(chan error, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := c.Resolve(ctx, userReq("alice")); err != nil {
				errs <- err
			}
		}()
	}

	<-transport.started
	time.Sleep(20 * time.Millisecond)
	close(transport.block)
	wg.Wait()
	close(errs)

	for err := range errs {
		t.Errorf("Resolve() error = %v", err)
	}
	if single, _ := transport.calls(); single != 1 {
		t.Errorf("upstream calls = %d, want 1", single)
	}
}

func TestCache_Resolve_AbandonedCallerStillCaches(t *testing.T) {
	c, transport, _ := newTestCache(t, 10, 5*time.Minute)
	transport.block = make(chan struct{})
	transport.started = make(chan struct{}, 1)

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() {
		_, err := c.Resolve(ctx, userReq("alice"))
		errCh <- err
	}()

	<-transport.started
	cancel()
	if err := <-errCh; !errors.Is(err, context.Canceled) {
		t.Fatalf("Resolve() error = %v, want context.Canceled", err)
	}

	close(transport.block)

	deadline := time.Now().Add(2 * time.Second)
	for {
		if _, ok := c.Peek(userReq("alice")); ok {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("result of abandoned call was not cached")
		}
		time.Sleep(5 * time.Millisecond)
	}

	if _, err := c.Resolve(context.Background(), userReq("alice")); err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if single, _ := transport.calls(); single != 1 {
		t.Errorf("upstream calls = %d, want 1", single)
	}
}

func TestCache_ResolveBatch_DeduplicatesUncached(t *testing.T) {
	c, transport, _ := newTestCache(t, 10, 5*time.Minute)
	r1, r2 := userReq("alice"), userReq("bob")

	results, err := c.ResolveBatch(context.Background(), []Request{r1, r2, r1})
	if err != nil {
		t.Fatalf("ResolveBatch() error = %v", err)
	}

	single, batches := transport.calls()
	if single != 0 || len(batches) != 1 {
		t.Fatalf("upstream calls = %d single, %d batch; want 0, 1", single, len(batches))
	}
	if len(batches[0]) != 2 {
		t.Fatalf("batch carried %d requests, want 2", len(batches[0]))
	}
	if !sameRequest(t, batches[0][0], r1) || !sameRequest(t, batches[0][1], r2) {
		t.Errorf("batch = %+v, want [alice bob]", batches[0])
	}

	if len(results) != 3 {
		t.Fatalf("len(results) = %d, want 3", len(results))
	}
	if !bytes.Equal(results[0], results[2]) {
		t.Errorf("results[0] = %s, results[2] = %s; want equal", results[0], results[2])
	}
	if !bytes.Equal(results[0], echo(r1)) || !bytes.Equal(results[1], echo(r2)) {
		t.Errorf("results out of order: %s", results)
	}
}

func TestCache_ResolveBatch_Empty(t *testing.T) {
	c, transport, _ := newTestCache(t, 10, 5*time.Minute)

	results, err := c.ResolveBatch(context.Background(), nil)
	if err != nil {
		t.Fatalf("ResolveBatch() error = %v", err)
	}
	if results == nil || len(results) != 0 {
		t.Errorf("ResolveBatch(nil) = %v, want empty slice", results)
	}
	if single, batches := transport.calls(); single != 0 || len(batches) != 0 {
		t.Errorf("upstream calls = %d single, %d batch; want none", single, len(batches))
	}
}

func TestCache_ResolveBatch_PartialHit(t *testing.T) {
	c, transport, _ := newTestCache(t, 10, 5*time.Minute)
	ctx := context.Background()
	r1, r2 := userReq("alice"), userReq("bob")

	if _, err := c.Resolve(ctx, r1); err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}

	results, err := c.ResolveBatch(ctx, []Request{r1, r2})
	if err != nil {
		t.Fatalf("ResolveBatch() error = %v", err)
	}

	_, batches := transport.calls()
	if len(batches) != 1 {
		t.Fatalf("batch calls = %d, want 1", len(batches))
	}
	if len(batches[0]) != 1 || !sameRequest(t, batches[0][0], r2) {
		t.Errorf("batch = %+v, want [bob]", batches[0])
	}
	if !bytes.Equal(results[0], echo(r1)) || !bytes.Equal(results[1], echo(r2)) {
		t.Errorf("results = %s", results)
	}
}

func TestCache_ResolveBatch_AllHits(t *testing.T) {
	c, transport, _ := newTestCache(t, 10, 5*time.Minute)
	ctx := context.Background()
	reqs := []Request{userReq("alice"), userReq("bob")}

	if _, err := c.ResolveBatch(ctx, reqs); err != nil {
		t.Fatalf("ResolveBatch() error = %v", err)
	}
	if _, err := c.ResolveBatch(ctx, append(reqs, reqs[0])); err != nil {
		t.Fatalf("ResolveBatch() error = %v", err)
	}

	if _, batches := transport.calls(); len(batches) != 1 {
		t.Errorf("batch calls = %d, want 1", len(batches))
	}
}

func TestCache_ResolveBatch_FailureLeavesCacheUnchanged(t *testing.T) {
	c, transport, _ := newTestCache(t, 10, 5*time.Minute)
	ctx := context.Background()

	if _, err := c.Resolve(ctx, userReq("alice")); err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}

	transport.setErr(errors.New("connection refused"))

	_, err := c.ResolveBatch(ctx, []Request{userReq("alice"), userReq("bob"), userReq("carol")})
	if !errors.Is(err, ErrUpstream) {
		t.Fatalf("ResolveBatch() error = %v, want ErrUpstream", err)
	}
	if c.Len() != 1 {
		t.Errorf("Len() = %d, want 1", c.Len())
	}
	if _, ok := c.Peek(userReq("bob")); ok {
		t.Error("bob was cached after a failed batch")
	}
}

func TestCache_ResolveBatch_LengthMismatch(t *testing.T) {
	c, transport, _ := newTestCache(t, 10, 5*time.Minute)
	transport.short = true

	_, err := c.ResolveBatch(context.Background(), []Request{userReq("alice"), userReq("bob")})
	var upErr *UpstreamError
	if !errors.As(err, &upErr) {
		t.Fatalf("ResolveBatch() error = %v, want *UpstreamError", err)
	}
	if c.Len() != 0 {
		t.Errorf("Len() = %d, want 0", c.Len())
	}
}

func TestCache_ResolveBatch_LargerThanCapacity(t *testing.T) {
	c, _, _ := newTestCache(t, 1, 5*time.Minute)
	reqs := []Request{userReq("alice"), userReq("bob"), userReq("alice")}

	results, err := c.ResolveBatch(context.Background(), reqs)
	if err != nil {
		t.Fatalf("ResolveBatch() error = %v", err)
	}
	for i, req := range reqs {
		if !bytes.Equal(results[i], echo(req)) {
			t.Errorf("results[%d] = %s, want %s", i, results[i], echo(req))
		}
	}
}

func TestCache_LRUEviction(t *testing.T) {
	const capacity = 3
	c, transport, _ := newTestCache(t, capacity, 5*time.Minute)
	ctx := context.Background()

	for i := 0; i < capacity; i++ {
		if _, err := c.Resolve(ctx, userReq(fmt.Sprintf("user%d", i))); err != nil {
			t.Fatalf("Resolve() error = %v", err)
		}
	}

	// Touch the oldest so user1 becomes least recently used
	if _, err := c.Resolve(ctx, userReq("user0")); err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if single, _ := transport.calls(); single != capacity {
		t.Fatalf("upstream calls = %d, want %d", single, capacity)
	}

	if _, err := c.Resolve(ctx, userReq("extra")); err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}

	if _, ok := c.Peek(userReq("user1")); ok {
		t.Error("user1 should have been evicted")
	}
	for _, name := range []string{"user0", "user2", "extra"} {
		if _, ok := c.Peek(userReq(name)); !ok {
			t.Errorf("%s should still be cached", name)
		}
	}
}

// TestCache_Scenario walks through capacity 2, TTL 5 minutes: A, B, C, B
func TestCache_Scenario(t *testing.T) {
	c, transport, _ := newTestCache(t, 2, 5*time.Minute)
	ctx := context.Background()
	a, b, cc := userReq("A"), userReq("B"), userReq("C")

	steps := []struct {
		req       Request
		wantCalls int
	}{
		{a, 1},
		{b, 2},
		{cc, 3},
		{b, 3},
	}

	for i, step := range steps {
		if _, err := c.Resolve(ctx, step.req); err != nil {
			t.Fatalf("step %d: Resolve() error = %v", i, err)
		}
		if single, _ := transport.calls(); single != step.wantCalls {
			t.Errorf("step %d: upstream calls = %d, want %d", i, single, step.wantCalls)
		}
	}

	if _, ok := c.Peek(a); ok {
		t.Error("A should have been evicted")
	}
	if c.Len() != 2 {
		t.Errorf("Len() = %d, want 2", c.Len())
	}
}

func TestCache_Purge(t *testing.T) {
	c, transport, _ := newTestCache(t, 10, 5*time.Minute)
	ctx := context.Background()

	if _, err := c.Resolve(ctx, userReq("alice")); err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	c.Purge()
	if c.Len() != 0 {
		t.Errorf("Len() = %d after Purge, want 0", c.Len())
	}
	if _, err := c.Resolve(ctx, userReq("alice")); err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if single, _ := transport.calls(); single != 2 {
		t.Errorf("upstream calls = %d, want 2", single)
	}
}

func sameRequest(t *testing.T, got, want Request) bool {
	t.Helper()
	a, err := Fingerprint(got)
	if err != nil {
		t.Fatalf("Fingerprint() error = %v", err)
	}
	b, err := Fingerprint(want)
	if err != nil {
		t.Fatalf("Fingerprint() error = %v", err)
	}
	return a == b
}
