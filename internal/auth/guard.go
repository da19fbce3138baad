package auth

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
)

// unauthorizedMessage is the only body a rejected request ever sees.
const unauthorizedMessage = "Unauthorized"

// Verifier validates a raw token.
type Verifier interface {
	Verify(token string) (Claims, error)
}

// subjectContextKey is the context key for the verified subject.
type subjectContextKey struct{}

// WithSubject stores a verified subject id in context.
func WithSubject(ctx context.Context, subjectID string) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, subjectContextKey{}, subjectID)
}

// SubjectFromContext returns the verified subject id, or "" when the request was not guarded.
func SubjectFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	value, _ := ctx.Value(subjectContextKey{}).(string)
	return value
}

// Guard rejects requests without a valid bearer token and annotates the rest with
// the token subject.
func Guard(verifier Verifier, logger *slog.Logger) func(http.Handler) http.Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, ok := BearerToken(r.Header.Get("Authorization"))
			if !ok {
				logger.DebugContext(r.Context(), "rejected request", "path", r.URL.Path, "reason", "missing token")
				writeUnauthorized(w)
				return
			}
			claims, err := verifier.Verify(token)
			if err != nil {
				logger.DebugContext(r.Context(), "rejected request", "path", r.URL.Path, "reason", err.Error())
				writeUnauthorized(w)
				return
			}
			next.ServeHTTP(w, r.WithContext(WithSubject(r.Context(), claims.Subject)))
		})
	}
}

// BearerToken extracts the token from an Authorization header value.
func BearerToken(header string) (string, bool) {
	scheme, token, found := strings.Cut(strings.TrimSpace(header), " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	if token == "" {
		return "", false
	}
	return token, true
}

func writeUnauthorized(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("WWW-Authenticate", `Bearer realm="api"`)
	w.WriteHeader(http.StatusUnauthorized)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": unauthorizedMessage})
}
