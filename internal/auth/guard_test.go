package auth

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestGuardStates(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	issuer := newTestIssuer(t, "secret-a", &now)
	foreign := newTestIssuer(t, "secret-b", &now)

	valid, err := issuer.Issue("user-1", "a@x.com")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	forged, err := foreign.Issue("user-1", "a@x.com")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	expiring, err := newTestIssuer(t, "secret-a", ptrTime(now.Add(-8*24*time.Hour))).Issue("user-1", "a@x.com")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	var seen string
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = SubjectFromContext(r.Context())
		w.WriteHeader(http.StatusNoContent)
	})
	handler := Guard(issuer, slog.New(slog.NewTextHandler(io.Discard, nil)))(next)

	tests := []struct {
		name   string
		header string
		status int
	}{
		{"no token", "", http.StatusUnauthorized},
		{"wrong scheme", "Basic " + valid, http.StatusUnauthorized},
		{"empty bearer", "Bearer ", http.StatusUnauthorized},
		{"malformed", "Bearer not-a-jwt", http.StatusUnauthorized},
		{"foreign signature", "Bearer " + forged, http.StatusUnauthorized},
		{"expired", "Bearer " + expiring, http.StatusUnauthorized},
		{"valid", "Bearer " + valid, http.StatusNoContent},
		{"valid lowercase scheme", "bearer " + valid, http.StatusNoContent},
	}

	var rejectedBody string
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			seen = ""
			req := httptest.NewRequest(http.MethodGet, "/api/tasks", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)

			if rec.Code != tt.status {
				t.Fatalf("expected status %d, got %d", tt.status, rec.Code)
			}
			if tt.status == http.StatusNoContent {
				if seen != "user-1" {
					t.Fatalf("expected subject 'user-1', got %q", seen)
				}
				return
			}
			if seen != "" {
				t.Fatalf("expected next handler not to run")
			}
			var body map[string]string
			if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
				t.Fatalf("decode body: %v", err)
			}
			if len(body) != 1 || body["error"] == "" {
				t.Fatalf("expected single error field, got %v", body)
			}
			if rejectedBody == "" {
				rejectedBody = rec.Body.String()
			} else if rec.Body.String() != rejectedBody {
				t.Fatalf("expected identical rejection bodies, got %q and %q", rejectedBody, rec.Body.String())
			}
		})
	}
}

func TestSubjectFromContext(t *testing.T) {
	if got := SubjectFromContext(context.Background()); got != "" {
		t.Fatalf("expected empty subject, got %q", got)
	}
	ctx := WithSubject(context.Background(), "user-42")
	if got := SubjectFromContext(ctx); got != "user-42" {
		t.Fatalf("SubjectFromContext = %q, want %q", got, "user-42")
	}
}

func ptrTime(t time.Time) *time.Time {
	return &t
}
