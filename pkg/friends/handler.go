package friends

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/leetleague/leetleague/pkg/httpapi"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const maxAddBodyBytes = 4 << 10

// Verifier reports whether a username exists on LeetCode.
type Verifier interface {
	UserExists(ctx context.Context, username string) (bool, error)
}

// Handler serves the friend list endpoints.
type Handler struct {
	store    Store
	verifier Verifier
	logger   zerolog.Logger
}

// HandlerOption configures a Handler.
type HandlerOption func(*Handler)

// WithVerifier checks every added username against LeetCode first.
func WithVerifier(v Verifier) HandlerOption {
	return func(h *Handler) {
		h.verifier = v
	}
}

// WithLogger sets the handler logger.
func WithLogger(logger zerolog.Logger) HandlerOption {
	return func(h *Handler) {
		h.logger = logger
	}
}

// NewHandler creates friend handlers over store.
func NewHandler(store Store, opts ...HandlerOption) *Handler {
	h := &Handler{
		store:  store,
		logger: log.With().Str("component", "friends").Logger(),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// AddRequest is the POST /api/friends body.
type AddRequest struct {
	Username string `json:"username"`
}

// AddResponse reports the outcome of an add.
type AddResponse struct {
	Username string `json:"username"`
	Added    bool   `json:"added"`
}

// List serves GET /api/friends.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	names, err := h.store.List(r.Context())
	if err != nil {
		h.logger.Error().Err(err).Msg("Failed to list friends")
		httpapi.WriteError(w, http.StatusInternalServerError, "Could not fetch friends", "")
		return
	}
	httpapi.WriteJSON(w, http.StatusOK, names)
}

// Add serves POST /api/friends.
func (h *Handler) Add(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxAddBodyBytes))
	if err != nil {
		httpapi.WriteError(w, http.StatusRequestEntityTooLarge, "Request body too large", "")
		return
	}

	var req AddRequest
	if err := json.Unmarshal(body, &req); err != nil {
		httpapi.WriteError(w, http.StatusBadRequest, "Invalid JSON body", err.Error())
		return
	}

	name, err := NormalizeUsername(req.Username)
	if err != nil {
		httpapi.WriteError(w, http.StatusBadRequest, "Invalid username", err.Error())
		return
	}

	names, err := h.store.List(r.Context())
	if err != nil {
		h.logger.Error().Err(err).Msg("Failed to list friends")
		httpapi.WriteError(w, http.StatusInternalServerError, "Could not update friends", "")
		return
	}
	for _, existing := range names {
		if existing == name {
			httpapi.WriteError(w, http.StatusConflict, "User is already in your friends list", "")
			return
		}
	}

	if h.verifier != nil {
		exists, err := h.verifier.UserExists(r.Context(), name)
		if err != nil {
			h.logger.Warn().Err(err).Str("username", name).Msg("User verification failed")
			httpapi.WriteError(w, http.StatusBadGateway, "Could not verify user", err.Error())
			return
		}
		if !exists {
			httpapi.WriteError(w, http.StatusNotFound, "User not found on LeetCode", "")
			return
		}
	}

	added, err := h.store.Add(r.Context(), name)
	if err != nil {
		h.logger.Error().Err(err).Str("username", name).Msg("Failed to add friend")
		httpapi.WriteError(w, http.StatusInternalServerError, "Could not update friends", "")
		return
	}
	if !added {
		httpapi.WriteError(w, http.StatusConflict, "User is already in your friends list", "")
		return
	}

	h.logger.Info().Str("username", name).Msg("Friend added")
	httpapi.WriteJSON(w, http.StatusCreated, AddResponse{Username: name, Added: true})
}

// Remove serves DELETE /api/friends/{username}.
func (h *Handler) Remove(w http.ResponseWriter, r *http.Request) {
	removed, err := h.store.Remove(r.Context(), r.PathValue("username"))
	if err != nil {
		if errors.Is(err, ErrInvalidUsername) {
			httpapi.WriteError(w, http.StatusBadRequest, "Invalid username", err.Error())
			return
		}
		h.logger.Error().Err(err).Msg("Failed to remove friend")
		httpapi.WriteError(w, http.StatusInternalServerError, "Could not update friends", "")
		return
	}
	if !removed {
		httpapi.WriteError(w, http.StatusNotFound, "Friend not found", "")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Register mounts the handlers on mux.
func (h *Handler) Register(mux *http.ServeMux, wrap func(name string, next http.Handler) http.Handler) {
	if wrap == nil {
		wrap = func(_ string, next http.Handler) http.Handler { return next }
	}
	mux.Handle("GET /api/friends", wrap("friends_list", http.HandlerFunc(h.List)))
	mux.Handle("POST /api/friends", wrap("friends_add", http.HandlerFunc(h.Add)))
	mux.Handle("DELETE /api/friends/{username}", wrap("friends_remove", http.HandlerFunc(h.Remove)))
}
