package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/alem-hub/alem-quest/internal/domain/shared"
	"github.com/alem-hub/alem-quest/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// RESPONSE HELPERS
// ══════════════════════════════════════════════════════════════════════════════

// JSONResponse is the standard JSON response envelope.
type JSONResponse struct {
	Success   bool          `json:"success"`
	Data      interface{}   `json:"data,omitempty"`
	Error     *APIError     `json:"error,omitempty"`
	Meta      *ResponseMeta `json:"meta,omitempty"`
	RequestID string        `json:"request_id,omitempty"`
}

// APIError represents an API error.
type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// ResponseMeta contains paging metadata.
type ResponseMeta struct {
	Total     int  `json:"total"`
	Limit     int  `json:"limit"`
	Offset    int  `json:"offset"`
	FromCache bool `json:"from_cache"`
}

// retryAfterSeconds is sent with 503 responses for transient store failures.
const retryAfterSeconds = 1

// writeJSON writes a JSON response.
func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// writeData wraps data in a success envelope.
func writeData(w http.ResponseWriter, r *http.Request, status int, data interface{}, meta *ResponseMeta) {
	writeJSON(w, status, JSONResponse{
		Success:   true,
		Data:      data,
		Meta:      meta,
		RequestID: getRequestID(r.Context()),
	})
}

// writeJSONError writes an error envelope.
func writeJSONError(w http.ResponseWriter, r *http.Request, status int, code, message string) {
	writeJSON(w, status, JSONResponse{
		Success:   false,
		Error:     &APIError{Code: code, Message: message},
		RequestID: getRequestID(r.Context()),
	})
}

// writeDomainError maps an application error to a status code. Messages of
// unclassified errors are not exposed.
func writeDomainError(w http.ResponseWriter, r *http.Request, err error) {
	status, code := classify(err)
	message := errorMessage(err)

	switch {
	case status == http.StatusServiceUnavailable:
		w.Header().Set("Retry-After", strconv.Itoa(retryAfterSeconds))
		logger.FromContext(r.Context()).Warn("store unavailable", logger.Err(err))
	case status >= http.StatusInternalServerError:
		logger.FromContext(r.Context()).Error("request failed", logger.Err(err))
		if code == "internal_error" {
			message = "An unexpected error occurred"
		}
	}

	writeJSONError(w, r, status, code, message)
}

func classify(err error) (int, string) {
	switch {
	case shared.IsValidation(err):
		return http.StatusBadRequest, "validation_error"
	case shared.IsNotFound(err):
		return http.StatusNotFound, "not_found"
	case shared.IsConflict(err):
		return http.StatusConflict, "conflict"
	case shared.IsPreconditionNotMet(err):
		return http.StatusUnprocessableEntity, "precondition_not_met"
	case shared.IsRetryable(err):
		return http.StatusServiceUnavailable, "store_unavailable"
	case shared.IsInvariantViolation(err):
		return http.StatusInternalServerError, "invariant_violation"
	default:
		return http.StatusInternalServerError, "internal_error"
	}
}

func errorMessage(err error) string {
	var de *shared.DomainError
	if errors.As(err, &de) && de.Message != "" {
		return de.Message
	}
	return err.Error()
}

// ══════════════════════════════════════════════════════════════════════════════
// REQUEST HELPERS
// ══════════════════════════════════════════════════════════════════════════════

// errEmptyBody is returned by decodeJSON for an empty body when one is required.
var errEmptyBody = errors.New("request body is empty")

// decodeJSON reads a size-limited JSON body into dst. An empty body is
// accepted when optional is true.
func (s *Server) decodeJSON(w http.ResponseWriter, r *http.Request, dst interface{}, optional bool) error {
	r.Body = http.MaxBytesReader(w, r.Body, s.config.MaxBodyBytes)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()

	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			if optional {
				return nil
			}
			return errEmptyBody
		}
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			return fmt.Errorf("request body exceeds %d bytes", maxErr.Limit)
		}
		return fmt.Errorf("invalid JSON: %w", err)
	}
	return nil
}

// queryInt parses an optional integer query parameter.
func queryInt(r *http.Request, name string) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%s must be an integer", name)
	}
	return n, nil
}

// sideEffectDTO exposes a side effect with its failure text.
type sideEffectDTO struct {
	Name   string                  `json:"name"`
	Status shared.SideEffectStatus `json:"status"`
	Error  string                  `json:"error,omitempty"`
}

func toSideEffects(effects []shared.SideEffect) []sideEffectDTO {
	out := make([]sideEffectDTO, 0, len(effects))
	for _, e := range effects {
		out = append(out, sideEffectDTO{Name: e.Name, Status: e.Status, Error: e.Error()})
	}
	return out
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}
