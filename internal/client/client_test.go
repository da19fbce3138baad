package client

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"golang.org/x/crypto/bcrypt"

	"github.com/Joseda-hg/taskflow/internal/auth"
	"github.com/Joseda-hg/taskflow/internal/db"
	"github.com/Joseda-hg/taskflow/internal/model"
	"github.com/Joseda-hg/taskflow/internal/tasks"
	"github.com/Joseda-hg/taskflow/internal/web"
)

func TestClientRoundTrip(t *testing.T) {
	baseURL := newTestServer(t)
	ctx := context.Background()

	c := New(baseURL, "")
	if err := c.Health(ctx); err != nil {
		t.Fatalf("health: %v", err)
	}

	resp, err := c.Register(ctx, "a@x.com", "p", "A")
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if resp.Token == "" {
		t.Fatalf("expected a token")
	}
	if resp.User.Email != "a@x.com" || resp.User.ID == "" {
		t.Fatalf("unexpected user %+v", resp.User)
	}

	tags := []string{"work"}
	created, err := c.CreateTask(ctx, TaskFields{Title: ptr("Write spec"), Tags: &tags})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if created.Status != model.StatusTodo {
		t.Fatalf("expected default status, got %q", created.Status)
	}

	updated, err := c.UpdateTask(ctx, created.ID, TaskFields{Status: ptr(model.StatusCompleted)})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if updated.Status != model.StatusCompleted || updated.Title != "Write spec" {
		t.Fatalf("unexpected update result %+v", updated)
	}

	got, err := c.GetTask(ctx, created.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.ID != created.ID {
		t.Fatalf("expected %s, got %s", created.ID, got.ID)
	}

	list, err := c.ListTasks(ctx, model.Filter{Status: model.StatusCompleted, Tag: "work"})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 1 {
		t.Fatalf("expected 1 task, got %d", len(list))
	}

	if err := c.DeleteTask(ctx, created.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	err = c.DeleteTask(ctx, created.ID)
	var apiErr *APIError
	if !errors.As(err, &apiErr) || apiErr.Status != http.StatusNotFound || apiErr.Message != "Task not found" {
		t.Fatalf("expected 404 Task not found, got %v", err)
	}
}

func TestClientSurfacesErrorField(t *testing.T) {
	baseURL := newTestServer(t)
	ctx := context.Background()

	c := New(baseURL, "")
	if _, err := c.Register(ctx, "a@x.com", "p", "A"); err != nil {
		t.Fatalf("register: %v", err)
	}

	other := New(baseURL, "")
	_, err := other.Register(ctx, "a@x.com", "q", "B")
	var apiErr *APIError
	if !errors.As(err, &apiErr) || apiErr.Status != http.StatusBadRequest || apiErr.Message != "Email already in use" {
		t.Fatalf("expected duplicate email error, got %v", err)
	}

	_, err = other.Login(ctx, "a@x.com", "wrong")
	if !IsUnauthorized(err) {
		t.Fatalf("expected unauthorized, got %v", err)
	}
	if _, err := other.ListTasks(ctx, model.Filter{}); !IsUnauthorized(err) {
		t.Fatalf("failed login must not leave a usable token, got %v", err)
	}

	if _, err := New(baseURL, "not-a-token").ListTasks(ctx, model.Filter{}); !IsUnauthorized(err) {
		t.Fatalf("expected unauthorized for a bad token, got %v", err)
	}
}

func TestSessionFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "taskflow", "session.json")

	if _, err := LoadSession(path); !errors.Is(err, ErrNoSession) {
		t.Fatalf("expected ErrNoSession, got %v", err)
	}

	session := Session{BaseURL: "http://localhost:5000/api", Token: "tok", User: model.User{ID: "u1", Email: "a@x.com", Name: "A"}}
	if err := SaveSession(path, session); err != nil {
		t.Fatalf("save: %v", err)
	}
	loaded, err := LoadSession(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if loaded != session {
		t.Fatalf("expected %+v, got %+v", session, loaded)
	}

	if err := ClearSession(path); err != nil {
		t.Fatalf("clear: %v", err)
	}
	if err := ClearSession(path); err != nil {
		t.Fatalf("second clear: %v", err)
	}
	if _, err := LoadSession(path); !errors.Is(err, ErrNoSession) {
		t.Fatalf("expected ErrNoSession after clear, got %v", err)
	}
}

func TestCountAndFilter(t *testing.T) {
	list := []model.Task{
		{Title: "Write release notes", Status: model.StatusTodo, Tags: []string{"Work"}},
		{Title: "Fix login bug", Status: model.StatusInProgress, Tags: []string{"work", "bug"}},
		{Title: "Buy milk", Status: model.StatusCompleted},
		{Title: "Release party", Status: model.StatusCompleted, Tags: []string{"fun"}},
	}

	stats := CountByStatus(list)
	want := Stats{Total: 4, Todo: 1, InProgress: 1, Completed: 2}
	if stats != want {
		t.Fatalf("expected %+v, got %+v", want, stats)
	}

	cases := map[string]struct {
		filter model.Filter
		titles []string
	}{
		"no filter":   {model.Filter{}, []string{"Write release notes", "Fix login bug", "Buy milk", "Release party"}},
		"title query": {model.Filter{Query: "RELEASE"}, []string{"Write release notes", "Release party"}},
		"status":      {model.Filter{Status: model.StatusCompleted}, []string{"Buy milk", "Release party"}},
		"tag":         {model.Filter{Tag: "work"}, []string{"Write release notes", "Fix login bug"}},
		"combined":    {model.Filter{Query: "release", Status: model.StatusTodo}, []string{"Write release notes"}},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			got := FilterTasks(list, tc.filter)
			if len(got) != len(tc.titles) {
				t.Fatalf("expected %d tasks, got %d", len(tc.titles), len(got))
			}
			for i, task := range got {
				if task.Title != tc.titles[i] {
					t.Fatalf("position %d: expected %q, got %q", i, tc.titles[i], task.Title)
				}
			}
		})
	}
}

func newTestServer(t *testing.T) string {
	t.Helper()
	sqlDB, err := db.Open(":memory:")
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { _ = sqlDB.Close() })

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	issuer, err := auth.NewTokenIssuer(auth.TokenConfig{Secret: []byte("client-test-secret")})
	if err != nil {
		t.Fatalf("issuer: %v", err)
	}
	store := db.NewStore(sqlDB)
	server := web.NewServer(
		auth.NewService(store, issuer, logger, auth.WithBcryptCost(bcrypt.MinCost)),
		issuer,
		tasks.NewController(store, logger),
		web.Options{Logger: logger},
	)

	ts := httptest.NewServer(server.Handler())
	t.Cleanup(ts.Close)
	return ts.URL + "/api"
}

func ptr(value string) *string {
	return &value
}
