package handler

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/golang-jwt/jwt/v5"
	"github.com/ulule/limiter/v3"
	"github.com/ulule/limiter/v3/drivers/middleware/stdlib"
	"github.com/ulule/limiter/v3/drivers/store/memory"
)

type ctxKey int

const (
	userKey ctxKey = iota
	strictKey
)

// UserHeader carries the acting user when bearer auth is disabled.
const UserHeader = "X-User-ID"

// WithUser returns a context carrying the acting user id.
func WithUser(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, userKey, userID)
}

// actingUser returns the authenticated user id, or "" for anonymous requests.
func actingUser(r *http.Request) string {
	id, _ := r.Context().Value(userKey).(string)
	return id
}

// strictAuth reports whether bearer authentication is enforced, in which
// case anonymous requests may not act for any user.
func strictAuth(r *http.Request) bool {
	strict, _ := r.Context().Value(strictKey).(bool)
	return strict
}

func requireUser(w http.ResponseWriter, r *http.Request) (string, bool) {
	id := actingUser(r)
	if id == "" {
		writeError(w, http.StatusUnauthorized, "authentication required")
		return "", false
	}
	return id, true
}

// Authenticate resolves the acting user. With a secret, the subject of a
// valid HS256 bearer token becomes the user; a missing or invalid token
// leaves the request anonymous, and routes that act for a user reject it.
// Without a secret, the X-User-ID header is trusted.
func Authenticate(secret string) func(http.Handler) http.Handler {
	key := []byte(secret)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if secret == "" {
				if id := strings.TrimSpace(r.Header.Get(UserHeader)); id != "" {
					r = r.WithContext(WithUser(r.Context(), id))
				}
				next.ServeHTTP(w, r)
				return
			}

			r = r.WithContext(context.WithValue(r.Context(), strictKey, true))
			if subject := bearerSubject(r.Header.Get("Authorization"), key); subject != "" {
				r = r.WithContext(WithUser(r.Context(), subject))
			}
			next.ServeHTTP(w, r)
		})
	}
}

// bearerSubject returns the sub claim of a valid HS256 bearer token, or "".
func bearerSubject(header string, key []byte) string {
	raw, ok := strings.CutPrefix(header, "Bearer ")
	if !ok {
		return ""
	}
	claims := &jwt.RegisteredClaims{}
	_, err := jwt.ParseWithClaims(raw, claims, func(*jwt.Token) (any, error) {
		return key, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return ""
	}
	return claims.Subject
}

// RateLimit limits requests per client IP using a formatted rate such as
// "100-M".
func RateLimit(formatted string) (func(http.Handler) http.Handler, error) {
	rate, err := limiter.NewRateFromFormatted(formatted)
	if err != nil {
		return nil, fmt.Errorf("rate limit %q: %w", formatted, err)
	}
	instance := limiter.New(memory.NewStore(), rate)
	return stdlib.NewMiddleware(instance).Handler, nil
}

// Logger writes one structured access log line per request.
func Logger(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := chimiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)

			logger.Info("http request",
				slog.String("request_id", chimiddleware.GetReqID(r.Context())),
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
				slog.Int("status", ww.Status()),
				slog.Int("bytes", ww.BytesWritten()),
				slog.Duration("duration", time.Since(start)),
			)
		})
	}
}

// CORS allows any origin. Preflight requests are answered directly.
func CORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := w.Header()
		h.Set("Access-Control-Allow-Origin", "*")
		h.Set("Access-Control-Allow-Methods", "GET, POST, PATCH, DELETE, OPTIONS")
		h.Set("Access-Control-Allow-Headers", "Authorization, Content-Type, "+UserHeader)
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}
