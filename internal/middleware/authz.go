package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"zohobooks-mcp/server/internal/auth"
	"zohobooks-mcp/server/internal/observability"
)

// ContextKey is the type for context keys
type ContextKey string

const (
	// RequestIDKey is the context key for request tracing ID
	RequestIDKey ContextKey = "requestID"
	// SubjectKey is the context key for the authenticated caller
	SubjectKey ContextKey = "subject"
)

// TokenVerifier checks a bearer token and returns its claims.
type TokenVerifier interface {
	VerifyToken(ctx context.Context, token string) (*auth.GatewayClaims, error)
}

// WithRequestID returns a context carrying the given request ID.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, RequestIDKey, id)
}

// GetRequestID extracts request ID from context
func GetRequestID(ctx context.Context) string {
	id, _ := ctx.Value(RequestIDKey).(string)
	return id
}

// GetSubject returns the authenticated caller, or "" when the request was not authenticated.
func GetSubject(ctx context.Context) string {
	s, _ := ctx.Value(SubjectKey).(string)
	return s
}

// Authenticate assigns a request ID and, when verifier is non-nil, requires a
// valid bearer token. With a nil verifier every request passes through.
func Authenticate(verifier TokenVerifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			requestID := r.Header.Get("X-Request-ID")
			if requestID == "" {
				requestID = uuid.NewString()
			}
			w.Header().Set("X-Request-ID", requestID)
			ctx := WithRequestID(r.Context(), requestID)

			if verifier != nil {
				token, ok := bearerToken(r)
				if !ok {
					observability.LogSecurityEvent(requestID, "", "missing_token", map[string]any{
						"remote_addr": r.RemoteAddr,
					})
					writeAuthError(w, "Missing bearer token")
					return
				}
				claims, err := verifier.VerifyToken(ctx, token)
				if err != nil {
					observability.LogSecurityEvent(requestID, "", "invalid_token", map[string]any{
						"remote_addr": r.RemoteAddr,
						"error":       err.Error(),
					})
					writeAuthError(w, "Invalid bearer token")
					return
				}
				ctx = context.WithValue(ctx, SubjectKey, claims.Subject)
			}

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func bearerToken(r *http.Request) (string, bool) {
	h := r.Header.Get("Authorization")
	scheme, token, ok := strings.Cut(h, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

func writeAuthError(w http.ResponseWriter, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("WWW-Authenticate", "Bearer")
	w.WriteHeader(http.StatusUnauthorized)
	json.NewEncoder(w).Encode(map[string]string{
		"error":   "UNAUTHORIZED",
		"message": message,
	})
}
