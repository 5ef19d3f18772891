package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/fastprodman/pulsecards/internal/infra/logging"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
)

var errBadRequest = errors.New("bad request")

const maxBodyBytes = 1 << 20

// HandlerProvider exposes the services as HTTP handlers.
type HandlerProvider struct {
	svc Services
	log *slog.Logger
}

func NewHandler(svc Services) *HandlerProvider {
	return &HandlerProvider{svc: svc, log: logging.Component("api")}
}

// --- Helpers ---

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	err := json.NewEncoder(w).Encode(v)
	if err != nil {
		slog.Error("failed to encode JSON response", logging.Err(err))
	}
}

type errorBody struct {
	Error     string `json:"error"`
	Code      string `json:"code"`
	Retryable bool   `json:"retryable,omitempty"`
}

// writeError maps err onto its HTTP class. Server-side failures are logged
// with the request id; client errors are not.
func (h *HandlerProvider) writeError(w http.ResponseWriter, r *http.Request, err error) {
	class, matched := classify(err)

	if class.status >= http.StatusInternalServerError {
		h.log.Error("request failed",
			"request_id", middleware.GetReqID(r.Context()),
			"method", r.Method, "path", r.URL.Path,
			"code", class.code, logging.Err(err))
	}

	if class.retryable {
		w.Header().Set("Retry-After", "1")
	}

	writeJSON(w, class.status, errorBody{
		Error:     publicMessage(err, matched, class),
		Code:      class.code,
		Retryable: class.retryable,
	})
}

func badRequest(format string, args ...any) error {
	return fmt.Errorf("%w: %s", errBadRequest, fmt.Sprintf(format, args...))
}

// decodeJSON reads a single JSON object, rejecting unknown fields.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	defer r.Body.Close()

	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()

	err := dec.Decode(dst)
	if errors.Is(err, io.EOF) {
		return badRequest("empty body")
	}
	if err != nil {
		return badRequest("invalid JSON")
	}

	return nil
}

func uuidParam(r *http.Request, name string) (uuid.UUID, error) {
	id, err := uuid.Parse(chi.URLParam(r, name))
	if err != nil {
		return uuid.Nil, badRequest("invalid %s", name)
	}

	return id, nil
}

func intQuery(r *http.Request, name string, def int) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def, nil
	}

	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, badRequest("invalid %s", name)
	}

	return n, nil
}

// recordAction advances daily challenges after a successful operation. It
// never fails the request.
func (h *HandlerProvider) recordAction(ctx context.Context, userID, action string) {
	if h.svc.Challenges == nil {
		return
	}

	err := h.svc.Challenges.RecordAction(ctx, userID, action)
	if err != nil {
		h.log.Warn("challenge progress failed", "user_id", userID, "action", action, logging.Err(err))
	}
}
