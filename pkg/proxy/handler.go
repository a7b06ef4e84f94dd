package proxy

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/leetleague/leetleague/pkg/fanout"
	"github.com/leetleague/leetleague/pkg/httpapi"
	"github.com/leetleague/leetleague/pkg/ratelimit"
	"github.com/leetleague/leetleague/pkg/requestcache"
)

// MaxBodyBytes bounds an incoming request document.
const MaxBodyBytes = 1 << 20

// Handler serves POST /api/leetcode.
type Handler struct {
	service *Service
}

// NewHandler creates the proxy endpoint handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		httpapi.MethodNotAllowed(w, http.MethodPost)
		return
	}

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, MaxBodyBytes))
	if err != nil {
		httpapi.WriteError(w, http.StatusRequestEntityTooLarge, "Request body too large", err.Error())
		return
	}
	body = bytes.TrimSpace(body)
	if len(body) == 0 {
		httpapi.WriteError(w, http.StatusBadRequest, "Request body is required", "")
		return
	}

	if body[0] == '[' {
		var reqs []requestcache.Request
		if err := decodeStrict(body, &reqs); err != nil {
			httpapi.WriteError(w, http.StatusBadRequest, "Invalid JSON body", err.Error())
			return
		}
		h.serveBatch(w, r, reqs)
		return
	}

	var req requestcache.Request
	if err := decodeStrict(body, &req); err != nil {
		httpapi.WriteError(w, http.StatusBadRequest, "Invalid JSON body", err.Error())
		return
	}
	h.serveSingle(w, r, req)
}

func (h *Handler) serveSingle(w http.ResponseWriter, r *http.Request, req requestcache.Request) {
	logger := h.service.logger.With().Str("operation", requestcache.OperationName(req.Query)).Logger()

	resp, err := h.service.Forward(r.Context(), req)
	if err != nil {
		if errors.Is(err, ratelimit.ErrCooldown) {
			httpapi.WriteError(w, http.StatusTooManyRequests,
				"LeetCode API Error: "+http.StatusText(http.StatusTooManyRequests), err.Error())
			return
		}
		logger.Error().Err(err).Msg("Error forwarding to LeetCode")
		httpapi.WriteError(w, http.StatusInternalServerError, "Internal Server Error", err.Error())
		return
	}

	if !resp.OK() {
		logger.Warn().
			Int("status", resp.StatusCode).
			Msg("LeetCode API request failed")
		httpapi.WriteError(w, resp.StatusCode, "LeetCode API Error: "+resp.StatusText, string(resp.Body))
		return
	}

	if !json.Valid(resp.Body) {
		logger.Error().Msg("LeetCode returned a non-JSON body")
		httpapi.WriteError(w, http.StatusInternalServerError, "Internal Server Error", ErrInvalidResponse.Error())
		return
	}

	httpapi.WriteRaw(w, http.StatusOK, resp.Body)
}

func (h *Handler) serveBatch(w http.ResponseWriter, r *http.Request, reqs []requestcache.Request) {
	if len(reqs) == 0 {
		httpapi.WriteRaw(w, http.StatusOK, []byte("[]"))
		return
	}

	results, err := h.service.ForwardBatch(r.Context(), reqs)
	if err != nil {
		h.service.logger.Warn().
			Err(err).
			Int("batch_size", len(reqs)).
			Msg("Batch forwarding failed")
		httpapi.WriteError(w, http.StatusBadGateway, batchErrorMessage(err), batchErrorDetails(err))
		return
	}

	httpapi.WriteJSON(w, http.StatusOK, results)
}

func batchErrorMessage(err error) string {
	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		return statusErr.Error()
	}
	return "Bad Gateway"
}

func batchErrorDetails(err error) string {
	var statusErr *StatusError
	var taskErr *fanout.TaskError
	switch {
	case errors.As(err, &statusErr) && errors.As(err, &taskErr):
		return fmt.Sprintf("request %d: %s", taskErr.Index, statusErr.Body)
	case errors.As(err, &taskErr) && taskErr.Index >= 0:
		return fmt.Sprintf("request %d: %v", taskErr.Index, taskErr.Err)
	default:
		return err.Error()
	}
}

// decodeStrict decodes exactly one JSON value, keeping numbers as written.
func decodeStrict(data []byte, v any) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(v); err != nil {
		return err
	}
	if dec.More() {
		return errors.New("unexpected data after JSON value")
	}
	return nil
}
