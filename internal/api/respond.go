package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/Spok95/school-erp/internal/apperr"
	"github.com/Spok95/school-erp/internal/ctxutil"
	"github.com/Spok95/school-erp/internal/ledger"
	"github.com/Spok95/school-erp/internal/logging"
	"github.com/Spok95/school-erp/internal/observability"
)

type errorBody struct {
	Error  string            `json:"error"`
	Fields map[string]string `json:"fields,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

// fail maps service errors onto status codes. Anything unclassified is a 500 and goes
// to Sentry.
func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error) {
	if v, ok := apperr.AsValidation(err); ok {
		body := errorBody{Error: v.Error(), Fields: map[string]string{}}
		for _, f := range v.Fields {
			body.Fields[f.Field] = f.Error
		}
		writeJSON(w, http.StatusBadRequest, body)
		return
	}

	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, errUnauthorized):
		status = http.StatusUnauthorized
	case errors.Is(err, errBadRequest):
		status = http.StatusBadRequest
	case errors.Is(err, apperr.ErrForbidden):
		status = http.StatusForbidden
	case errors.Is(err, apperr.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, apperr.ErrConflict), errors.Is(err, ledger.ErrSequenceExhausted):
		status = http.StatusConflict
	}
	if status != http.StatusInternalServerError {
		writeJSON(w, status, errorBody{Error: err.Error()})
		return
	}

	logging.FromContext(r.Context(), s.log).Error("request failed",
		zap.String("method", r.Method), zap.String("path", r.URL.Path), zap.Error(err))
	tags := map[string]string{"path": r.URL.Path}
	if id, ok := ctxutil.RequestID(r.Context()); ok {
		tags["request_id"] = id
	}
	observability.CaptureWithTags(err, tags)
	writeJSON(w, status, errorBody{Error: "internal error"})
}

var errBadRequest = errors.New("bad request")

func badRequest(format string, args ...any) error {
	return fmt.Errorf(format+": %w", append(args, errBadRequest)...)
}

func decodeJSON(r *http.Request, out any) error {
	dec := json.NewDecoder(http.MaxBytesReader(nil, r.Body, 1<<20))
	dec.DisallowUnknownFields()
	if err := dec.Decode(out); err != nil {
		return badRequest("decode body: %v", err)
	}
	return nil
}

func pathID(r *http.Request, name string) (int64, error) {
	id, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	if err != nil || id <= 0 {
		return 0, badRequest("invalid %s", name)
	}
	return id, nil
}

// queryID parses an optional positive id from the query string.
func queryID(r *http.Request, name string) (*int64, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return nil, nil
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return nil, badRequest("invalid %s", name)
	}
	return &id, nil
}

func requiredQueryID(r *http.Request, name string) (int64, error) {
	id, err := queryID(r, name)
	if err != nil {
		return 0, err
	}
	if id == nil {
		return 0, badRequest("%s is required", name)
	}
	return *id, nil
}

func queryBool(r *http.Request, name string) (bool, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return false, nil
	}
	b, err := strconv.ParseBool(raw)
	if err != nil {
		return false, badRequest("invalid %s", name)
	}
	return b, nil
}

func queryYear(r *http.Request, now time.Time) (int, error) {
	raw := r.URL.Query().Get("year")
	if raw == "" {
		return now.Year(), nil
	}
	y, err := strconv.Atoi(raw)
	if err != nil || y < 1900 || y > 9999 {
		return 0, badRequest("invalid year")
	}
	return y, nil
}
