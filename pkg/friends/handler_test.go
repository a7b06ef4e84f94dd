package friends

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

type verifierFunc func(ctx context.Context, username string) (bool, error)

func (f verifierFunc) UserExists(ctx context.Context, username string) (bool, error) {
	return f(ctx, username)
}

func newTestMux(t *testing.T, opts ...HandlerOption) (*http.ServeMux, Store) {
	t.Helper()
	store := newSQLiteStore(t)
	mux := http.NewServeMux()
	NewHandler(store, opts...).Register(mux, nil)
	return mux, store
}

func do(mux http.Handler, method, target, body string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	mux.ServeHTTP(w, httptest.NewRequest(method, target, strings.NewReader(body)))
	return w
}

func errorOf(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	var body map[string]string
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("body %q is not an error document: %v", w.Body.String(), err)
	}
	return body["error"]
}

func TestHandler_Lifecycle(t *testing.T) {
	mux, _ := newTestMux(t)

	w := do(mux, http.MethodGet, "/api/friends", "")
	if w.Code != http.StatusOK || strings.TrimSpace(w.Body.String()) != "[]" {
		t.Fatalf("GET empty = %d %s, want 200 []", w.Code, w.Body.String())
	}

	w = do(mux, http.MethodPost, "/api/friends", `{"username":"  alice "}`)
	if w.Code != http.StatusCreated {
		t.Fatalf("POST status = %d, want 201 (body %s)", w.Code, w.Body.String())
	}
	var added AddResponse
	if err := json.Unmarshal(w.Body.Bytes(), &added); err != nil || added.Username != "alice" || !added.Added {
		t.Errorf("POST body = %s", w.Body.String())
	}

	w = do(mux, http.MethodPost, "/api/friends", `{"username":"alice"}`)
	if w.Code != http.StatusConflict {
		t.Errorf("duplicate POST status = %d, want 409", w.Code)
	}

	do(mux, http.MethodPost, "/api/friends", `{"username":"bob"}`)
	w = do(mux, http.MethodGet, "/api/friends", "")
	var names []string
	if err := json.Unmarshal(w.Body.Bytes(), &names); err != nil || strings.Join(names, ",") != "alice,bob" {
		t.Errorf("GET = %s, want [alice bob]", w.Body.String())
	}

	w = do(mux, http.MethodDelete, "/api/friends/alice", "")
	if w.Code != http.StatusNoContent {
		t.Errorf("DELETE status = %d, want 204", w.Code)
	}
	w = do(mux, http.MethodDelete, "/api/friends/alice", "")
	if w.Code != http.StatusNotFound || errorOf(t, w) != "Friend not found" {
		t.Errorf("second DELETE = %d %s, want 404", w.Code, w.Body.String())
	}
}

func TestHandler_AddValidation(t *testing.T) {
	mux, _ := newTestMux(t)

	tests := []struct {
		name       string
		body       string
		wantStatus int
		wantError  string
	}{
		{"invalid json", `{"username":`, http.StatusBadRequest, "Invalid JSON body"},
		{"empty", `{"username":"  "}`, http.StatusBadRequest, "Invalid username"},
		{"bad characters", `{"username":"a b"}`, http.StatusBadRequest, "Invalid username"},
		{"too large", `{"username":"` + strings.Repeat("a", maxAddBodyBytes) + `"}`, http.StatusRequestEntityTooLarge, "Request body too large"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := do(mux, http.MethodPost, "/api/friends", tt.body)
			if w.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d", w.Code, tt.wantStatus)
			}
			if got := errorOf(t, w); got != tt.wantError {
				t.Errorf("error = %q, want %q", got, tt.wantError)
			}
		})
	}
}

func TestHandler_AddVerifies(t *testing.T) {
	var checked []string
	verifier := verifierFunc(func(_ context.Context, username string) (bool, error) {
		checked = append(checked, username)
		switch username {
		case "ghost":
			return false, nil
		case "flaky":
			return false, errors.New("upstream down")
		}
		return true, nil
	})
	mux, store := newTestMux(t, WithVerifier(verifier))

	tests := []struct {
		username   string
		wantStatus int
	}{
		{"alice", http.StatusCreated},
		{"ghost", http.StatusNotFound},
		{"flaky", http.StatusBadGateway},
	}
	for _, tt := range tests {
		w := do(mux, http.MethodPost, "/api/friends", `{"username":"`+tt.username+`"}`)
		if w.Code != tt.wantStatus {
			t.Errorf("POST %s status = %d, want %d", tt.username, w.Code, tt.wantStatus)
		}
	}

	// Duplicates are rejected before any upstream lookup
	do(mux, http.MethodPost, "/api/friends", `{"username":"alice"}`)
	if len(checked) != 3 {
		t.Errorf("verifier called %d times, want 3", len(checked))
	}

	names, _ := store.List(context.Background())
	if strings.Join(names, ",") != "alice" {
		t.Errorf("stored = %v, want only alice", names)
	}
}

func TestHandler_MethodRouting(t *testing.T) {
	mux, _ := newTestMux(t)

	w := do(mux, http.MethodPut, "/api/friends", "")
	if w.Code != http.StatusMethodNotAllowed {
		t.Errorf("PUT status = %d, want 405", w.Code)
	}
	w = do(mux, http.MethodDelete, "/api/friends/bad%20name", "")
	if w.Code != http.StatusBadRequest {
		t.Errorf("DELETE invalid status = %d, want 400", w.Code)
	}
}
