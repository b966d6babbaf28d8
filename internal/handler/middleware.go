package handler

import (
	"context"
	"fmt"
	"net/http"
	"runtime/debug"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/cors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"lucky-draw/internal/model"
	"lucky-draw/internal/pkg/apperr"
)

// Headers set by the upstream identity proxy.
const (
	HeaderUserID       = "X-User-ID"
	HeaderEmail        = "X-User-Email"
	HeaderFirstName    = "X-User-First-Name"
	HeaderLastName     = "X-User-Last-Name"
	HeaderProfileImage = "X-User-Profile-Image"
	HeaderRequestID    = "X-Request-ID"
)

type ctxKey int

const userIDKey ctxKey = iota

// UserID returns the authenticated user id stored by requireUser.
func UserID(ctx context.Context) string {
	id, _ := ctx.Value(userIDKey).(string)
	return id
}

// profileFromHeaders builds the identity-provider profile of the caller.
func profileFromHeaders(r *http.Request, id string) *model.User {
	optional := func(name string) *string {
		v := strings.TrimSpace(r.Header.Get(name))
		if v == "" {
			return nil
		}
		return &v
	}
	return &model.User{
		ID:              id,
		Email:           optional(HeaderEmail),
		FirstName:       optional(HeaderFirstName),
		LastName:        optional(HeaderLastName),
		ProfileImageURL: optional(HeaderProfileImage),
	}
}

// requestID tags the request with an id and attaches a request-scoped logger.
func requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(HeaderRequestID)
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set(HeaderRequestID, id)

		logger := log.With().Str("request_id", id).Logger()
		next.ServeHTTP(w, r.WithContext(logger.WithContext(r.Context())))
	})
}

// recoverer turns a panic into a 500 response.
func recoverer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if v := recover(); v != nil {
				if v == http.ErrAbortHandler {
					panic(v)
				}
				zerolog.Ctx(r.Context()).Error().
					Str("panic", fmt.Sprint(v)).
					Bytes("stack", debug.Stack()).
					Msg("Handler panicked")
				writeError(w, r, fmt.Errorf("panic: %v", v))
			}
		}()
		next.ServeHTTP(w, r)
	})
}

// accessLog logs one line per request.
func accessLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec := &responseRecorder{ResponseWriter: w, status: http.StatusOK}
		start := time.Now()

		next.ServeHTTP(rec, r)

		zerolog.Ctx(r.Context()).Debug().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", rec.status).
			Dur("duration", time.Since(start)).
			Msg("Request served")
	})
}

type responseRecorder struct {
	http.ResponseWriter
	status int
}

func (r *responseRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// corsHandler allows the configured browser origins to call the API.
func corsHandler(origins []string, next http.Handler) http.Handler {
	if len(origins) == 0 {
		return next
	}
	return cors.New(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPatch, http.MethodOptions},
		AllowedHeaders:   []string{"Content-Type", HeaderUserID, HeaderRequestID},
		ExposedHeaders:   []string{HeaderRequestID},
		AllowCredentials: true,
	}).Handler(next)
}

// requireUser rejects requests without an identity header.
func requireUser(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := strings.TrimSpace(r.Header.Get(HeaderUserID))
		if id == "" {
			writeError(w, r, apperr.ErrUnauthenticated)
			return
		}
		zerolog.Ctx(r.Context()).UpdateContext(func(c zerolog.Context) zerolog.Context {
			return c.Str("user_id", id)
		})
		next(w, r.WithContext(context.WithValue(r.Context(), userIDKey, id)))
	}
}

// requireAdmin is requireUser restricted to the ids accepted by isAdmin.
func requireAdmin(isAdmin func(string) bool, next http.HandlerFunc) http.HandlerFunc {
	return requireUser(func(w http.ResponseWriter, r *http.Request) {
		if !isAdmin(UserID(r.Context())) {
			writeError(w, r, apperr.ErrForbidden)
			return
		}
		next(w, r)
	})
}
