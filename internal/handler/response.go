package handler

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog"

	"lucky-draw/internal/pkg/apperr"
)

// errorResponse is the JSON body of every failed request.
type errorResponse struct {
	Error   apperr.Kind `json:"error"`
	Message string      `json:"message"`
}

// statusOf maps an error kind to its HTTP status code.
func statusOf(kind apperr.Kind) int {
	switch kind {
	case apperr.KindNotFound:
		return http.StatusNotFound
	case apperr.KindInvalidArgument:
		return http.StatusBadRequest
	case apperr.KindUnauthenticated:
		return http.StatusUnauthorized
	case apperr.KindForbidden:
		return http.StatusForbidden
	case apperr.KindInsufficientFunds:
		return http.StatusPaymentRequired
	case apperr.KindDrawUnavailable,
		apperr.KindDrawFull,
		apperr.KindEntryLimit,
		apperr.KindNoParticipants,
		apperr.KindAlreadyCompleted,
		apperr.KindAlreadyCheckedIn,
		apperr.KindConflict:
		return http.StatusConflict
	case apperr.KindUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// writeError classifies err and writes it. Internal failures are logged and
// answered with a generic message.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	kind := apperr.KindOf(err)
	status := statusOf(kind)

	message := err.Error()
	if status >= http.StatusInternalServerError {
		zerolog.Ctx(r.Context()).Error().
			Err(err).
			Str("kind", string(kind)).
			Msg("Request failed")
		switch kind {
		case apperr.KindInternal:
			message = "internal error"
		case apperr.KindUnavailable:
			message = "service temporarily unavailable"
		}
	}

	writeJSON(w, status, errorResponse{Error: kind, Message: message})
}

// decodeJSON reads a JSON request body into dst. An empty body leaves dst
// untouched.
func decodeJSON(r *http.Request, dst any) error {
	defer r.Body.Close()
	err := json.NewDecoder(r.Body).Decode(dst)
	if err == nil || errors.Is(err, io.EOF) {
		return nil
	}
	return apperr.Invalid("malformed request body: %v", err)
}

// pathID parses a numeric route variable.
func pathID(r *http.Request, name string) (int64, error) {
	raw := mux.Vars(r)[name]
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, apperr.Invalid("invalid %s %q", name, raw)
	}
	return id, nil
}

// queryLimit parses the optional limit query parameter; 0 means absent.
func queryLimit(r *http.Request) (int, error) {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return 0, nil
	}
	limit, err := strconv.Atoi(raw)
	if err != nil || limit < 0 {
		return 0, apperr.Invalid("invalid limit %q", raw)
	}
	return limit, nil
}

// nonNil keeps empty lists encoded as [] rather than null.
func nonNil[T any](items []T) []T {
	if items == nil {
		return []T{}
	}
	return items
}
