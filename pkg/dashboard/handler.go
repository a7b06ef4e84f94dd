package dashboard

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/leetleague/leetleague/pkg/httpapi"
	"github.com/leetleague/leetleague/pkg/ratelimit"
	"github.com/leetleague/leetleague/pkg/requestcache"
)

// Handler serves the dashboard views as JSON.
type Handler struct {
	service *Service
}

// NewHandler creates dashboard handlers.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// FriendCards serves GET /api/dashboard/friends.
func (h *Handler) FriendCards(w http.ResponseWriter, r *http.Request) {
	cards, err := h.service.FriendCards(r.Context())
	if err != nil {
		h.writeError(w, "Could not fetch friends", err)
		return
	}
	httpapi.WriteJSON(w, http.StatusOK, cards)
}

// Leaderboard serves GET /api/dashboard/leaderboard.
func (h *Handler) Leaderboard(w http.ResponseWriter, r *http.Request) {
	board, err := h.service.Leaderboard(r.Context())
	if err != nil {
		h.writeError(w, "Could not fetch leaderboard", err)
		return
	}
	httpapi.WriteJSON(w, http.StatusOK, board)
}

// Activity serves GET /api/dashboard/activity?page=N.
func (h *Handler) Activity(w http.ResponseWriter, r *http.Request) {
	page := 1
	if raw := r.URL.Query().Get("page"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			httpapi.WriteError(w, http.StatusBadRequest, "Invalid page parameter", raw)
			return
		}
		page = n
	}

	feed, err := h.service.ActivityFeed(r.Context(), page)
	if err != nil {
		h.writeError(w, "Could not fetch activity", err)
		return
	}
	httpapi.WriteJSON(w, http.StatusOK, feed)
}

// Stats serves GET /api/dashboard/stats.
func (h *Handler) Stats(w http.ResponseWriter, r *http.Request) {
	st, err := h.service.Stats(r.Context())
	if err != nil {
		h.writeError(w, "Could not fetch stats", err)
		return
	}
	httpapi.WriteJSON(w, http.StatusOK, st)
}

// writeError maps upstream trouble to 429 or 502 and anything else to 500.
func (h *Handler) writeError(w http.ResponseWriter, msg string, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, ratelimit.ErrCooldown):
		status = http.StatusTooManyRequests
	case errors.Is(err, requestcache.ErrUpstream):
		status = http.StatusBadGateway
	}
	if status == http.StatusInternalServerError {
		h.service.logger.Error().Err(err).Msg(msg)
	} else {
		h.service.logger.Warn().Err(err).Msg(msg)
	}
	httpapi.WriteError(w, status, msg, err.Error())
}

// Register mounts the handlers on mux.
func (h *Handler) Register(mux *http.ServeMux, wrap func(name string, next http.Handler) http.Handler) {
	if wrap == nil {
		wrap = func(_ string, next http.Handler) http.Handler { return next }
	}
	mux.Handle("GET /api/dashboard/friends", wrap("dashboard_friends", http.HandlerFunc(h.FriendCards)))
	mux.Handle("GET /api/dashboard/leaderboard", wrap("dashboard_leaderboard", http.HandlerFunc(h.Leaderboard)))
	mux.Handle("GET /api/dashboard/activity", wrap("dashboard_activity", http.HandlerFunc(h.Activity)))
	mux.Handle("GET /api/dashboard/stats", wrap("dashboard_stats", http.HandlerFunc(h.Stats)))
}
