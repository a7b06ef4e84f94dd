// Package testutil provides testing utilities for the LeetLeague packages.
package testutil

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"time"

	"github.com/leetleague/leetleague/pkg/requestcache"
)

// MockResponse defines the behavior for a mock GraphQL operation response.
type MockResponse struct {
	StatusCode int
	Body       string
	Headers    map[string]string
	Delay      time.Duration
}

// MockRequest is a request descriptor as received by the mock.
type MockRequest struct {
	Query     string         `json:"query"`
	Variables map[string]any `json:"variables"`
}

// OperationFunc computes a response from the request variables.
type OperationFunc func(vars map[string]any) MockResponse

// MockGraphQL is a configurable mock GraphQL endpoint for testing.
// It answers a single request object with one response and a request array
// with an array, so it can stand in for both LeetCode and the proxy.
type MockGraphQL struct {
	server     *httptest.Server
	mu         sync.RWMutex
	operations map[string]OperationFunc

	// Tracking
	RequestCount      int
	BatchCount        int
	Requests          []MockRequest
	LastRequestHeader http.Header
}

// NewMockGraphQL creates a new mock GraphQL server.
func NewMockGraphQL() *MockGraphQL {
	mock := &MockGraphQL{
		operations: make(map[string]OperationFunc),
	}

	mock.server = httptest.NewServer(http.HandlerFunc(mock.serve))
	return mock
}

// URL returns the mock server URL.
func (m *MockGraphQL) URL() string {
	return m.server.URL
}

// Close shuts down the mock server.
func (m *MockGraphQL) Close() {
	m.server.Close()
}

// Reset clears all tracking counters.
func (m *MockGraphQL) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.RequestCount = 0
	m.BatchCount = 0
	m.Requests = nil
	m.LastRequestHeader = nil
}

// SetOperationFunc sets a custom handler for an operation name.
func (m *MockGraphQL) SetOperationFunc(name string, fn OperationFunc) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.operations[name] = fn
}

// SetOperation configures a fixed response for an operation name.
func (m *MockGraphQL) SetOperation(name string, resp MockResponse) {
	m.SetOperationFunc(name, func(map[string]any) MockResponse {
		return resp
	})
}

// GetRequestCount returns the number of HTTP requests made to the server.
func (m *MockGraphQL) GetRequestCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.RequestCount
}

// GetBatchCount returns the number of HTTP requests that carried an array.
func (m *MockGraphQL) GetBatchCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.BatchCount
}

// GetRequests returns a copy of every descriptor received.
func (m *MockGraphQL) GetRequests() []MockRequest {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]MockRequest(nil), m.Requests...)
}

// GetLastRequestHeader returns the headers of the most recent request.
func (m *MockGraphQL) GetLastRequestHeader() http.Header {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.LastRequestHeader
}

func (m *MockGraphQL) serve(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	trimmed := strings.TrimSpace(string(body))

	if strings.HasPrefix(trimmed, "[") {
		var reqs []MockRequest
		if err := json.Unmarshal(body, &reqs); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		m.track(r, true, reqs...)
		m.serveBatch(w, reqs)
		return
	}

	var req MockRequest
	if err := json.Unmarshal(body, &req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	m.track(r, false, req)
	m.write(w, m.respond(req))
}

func (m *MockGraphQL) track(r *http.Request, batch bool, reqs ...MockRequest) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.RequestCount++
	if batch {
		m.BatchCount++
	}
	m.Requests = append(m.Requests, reqs...)
	m.LastRequestHeader = r.Header.Clone()
}

func (m *MockGraphQL) serveBatch(w http.ResponseWriter, reqs []MockRequest) {
	items := make([]json.RawMessage, 0, len(reqs))
	for _, req := range reqs {
		resp := m.respond(req)
		if resp.StatusCode >= 300 {
			// One failed item fails the whole batch
			m.write(w, resp)
			return
		}
		if resp.Delay > 0 {
			time.Sleep(resp.Delay)
		}
		items = append(items, json.RawMessage(resp.Body))
	}

	data, _ := json.Marshal(items)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write(data)
}

func (m *MockGraphQL) respond(req MockRequest) MockResponse {
	m.mu.RLock()
	fn, exists := m.operations[requestcache.OperationName(req.Query)]
	m.mu.RUnlock()

	if exists {
		return fn(req.Variables)
	}
	// Default: LeetCode answers unknown data with a null payload
	return NewHealthyResponse(`{"data":null}`)
}

func (m *MockGraphQL) write(w http.ResponseWriter, resp MockResponse) {
	if resp.Delay > 0 {
		time.Sleep(resp.Delay)
	}
	for key, value := range resp.Headers {
		w.Header().Set(key, value)
	}
	if w.Header().Get("Content-Type") == "" {
		w.Header().Set("Content-Type", "application/json")
	}
	w.WriteHeader(resp.StatusCode)
	if resp.Body != "" {
		w.Write([]byte(resp.Body))
	}
}

// NewHealthyResponse creates a standard 200 OK response.
func NewHealthyResponse(data string) MockResponse {
	return MockResponse{
		StatusCode: http.StatusOK,
		Body:       data,
		Headers: map[string]string{
			"Content-Type": "application/json; charset=utf-8",
		},
	}
}

// NewRateLimitResponse creates a 429 Too Many Requests response.
func NewRateLimitResponse(retryAfter string) MockResponse {
	headers := map[string]string{
		"Content-Type": "application/json; charset=utf-8",
	}
	if retryAfter != "" {
		headers["Retry-After"] = retryAfter
	}
	return MockResponse{
		StatusCode: http.StatusTooManyRequests,
		Body:       `{"error": "Rate limit exceeded"}`,
		Headers:    headers,
	}
}

// NewServerErrorResponse creates a 500 Internal Server Error response.
func NewServerErrorResponse() MockResponse {
	return MockResponse{
		StatusCode: http.StatusInternalServerError,
		Body:       `{"error": "Internal server error"}`,
		Headers: map[string]string{
			"Content-Type": "application/json; charset=utf-8",
		},
	}
}

// UserNotFoundBody is LeetCode's answer for an unknown username.
const UserNotFoundBody = `{"errors":[{"message":"User matching query does not exist.","locations":[{"line":3,"column":5}],"path":["matchedUser"]}],"data":{"matchedUser":null}}`

// ProfileBody builds a userPublicProfile response.
func ProfileBody(username, realName, avatar string, ranking, solved int) string {
	return fmt.Sprintf(`{"data":{"matchedUser":{"username":%q,"profile":{"realName":%q,"userAvatar":%q,"ranking":%d},"submitStatsGlobal":{"acSubmissionNum":[{"difficulty":"All","count":%d},{"difficulty":"Easy","count":0}]}}}}`,
		username, realName, avatar, ranking, solved)
}

// CalendarBody builds a userProfileCalendar response from day-timestamp counts.
func CalendarBody(days map[int64]int) string {
	cal := make(map[string]int, len(days))
	for ts, n := range days {
		cal[fmt.Sprintf("%d", ts)] = n
	}
	calJSON, _ := json.Marshal(cal)
	return fmt.Sprintf(`{"data":{"matchedUser":{"userCalendar":{"submissionCalendar":%q}}}}`, string(calJSON))
}

// Submission is one accepted submission for RecentSubmissionsBody.
type Submission struct {
	ID        string `json:"id"`
	Title     string `json:"title"`
	TitleSlug string `json:"titleSlug"`
	Timestamp string `json:"timestamp"`
}

// RecentSubmissionsBody builds a recentAcSubmissions response.
func RecentSubmissionsBody(subs ...Submission) string {
	if subs == nil {
		subs = []Submission{}
	}
	data, _ := json.Marshal(subs)
	return fmt.Sprintf(`{"data":{"recentAcSubmissionList":%s}}`, data)
}

// DifficultyBody builds a getQuestionDifficulty response.
func DifficultyBody(difficulty string) string {
	return fmt.Sprintf(`{"data":{"question":{"difficulty":%q}}}`, difficulty)
}
