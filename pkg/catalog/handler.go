package catalog

import (
	"errors"
	"net/http"

	"github.com/leetleague/leetleague/pkg/httpapi"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Handler serves the catalog endpoints.
type Handler struct {
	store  *Store
	logger zerolog.Logger
}

// NewHandler creates catalog handlers over store.
func NewHandler(store *Store) *Handler {
	return &Handler{
		store:  store,
		logger: log.With().Str("component", "catalog").Logger(),
	}
}

// Companies serves GET /api/companies.
func (h *Handler) Companies(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httpapi.MethodNotAllowed(w, http.MethodGet)
		return
	}
	data, err := h.store.Companies()
	if err != nil {
		h.logger.Error().Err(err).Msg("Failed to read companies")
		httpapi.WriteError(w, http.StatusInternalServerError, "Could not fetch companies", "")
		return
	}
	httpapi.WriteRaw(w, http.StatusOK, data)
}

// Topics serves GET /api/topics.
func (h *Handler) Topics(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httpapi.MethodNotAllowed(w, http.MethodGet)
		return
	}
	data, err := h.store.Topics()
	if err != nil {
		h.logger.Error().Err(err).Msg("Failed to read topics")
		httpapi.WriteError(w, http.StatusInternalServerError, "Could not fetch topics", "")
		return
	}
	httpapi.WriteRaw(w, http.StatusOK, data)
}

// Questions serves GET /api/questions?company=<name>. Optional timeframe,
// difficulty, topic and search parameters filter the list.
func (h *Handler) Questions(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httpapi.MethodNotAllowed(w, http.MethodGet)
		return
	}

	query := r.URL.Query()
	company := query.Get("company")
	if company == "" {
		httpapi.WriteError(w, http.StatusBadRequest, "Company parameter is required", "")
		return
	}

	filter := FilterFromQuery(query)
	if filter.IsZero() {
		data, err := h.store.QuestionsRaw(company)
		if err != nil {
			h.questionsError(w, company, err)
			return
		}
		httpapi.WriteRaw(w, http.StatusOK, data)
		return
	}

	questions, err := h.store.Questions(company, filter)
	if err != nil {
		h.questionsError(w, company, err)
		return
	}
	httpapi.WriteJSON(w, http.StatusOK, questions)
}

func (h *Handler) questionsError(w http.ResponseWriter, company string, err error) {
	if !errors.Is(err, ErrNotFound) {
		h.logger.Warn().Err(err).Str("company", company).Msg("Failed to read questions")
	}
	httpapi.WriteError(w, http.StatusNotFound, "Questions not found for the specified company", "")
}
