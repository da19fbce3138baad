package web

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/Joseda-hg/taskflow/internal/apperr"
	"github.com/Joseda-hg/taskflow/internal/auth"
	"github.com/Joseda-hg/taskflow/internal/model"
	"github.com/Joseda-hg/taskflow/internal/tasks"
)

// maxBodyBytes bounds every JSON request body.
const maxBodyBytes = 1 << 20

type Server struct {
	auth        *auth.Service
	tasks       *tasks.Controller
	verifier    auth.Verifier
	logger      *slog.Logger
	health      func(context.Context) error
	corsOrigins []string
}

type Options struct {
	Logger      *slog.Logger
	CORSOrigins []string
	// Health reports whether the backing store is reachable. Nil means always healthy.
	Health func(context.Context) error
}

func NewServer(authService *auth.Service, verifier auth.Verifier, controller *tasks.Controller, opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		auth:        authService,
		tasks:       controller,
		verifier:    verifier,
		logger:      logger,
		health:      opts.Health,
		corsOrigins: opts.CORSOrigins,
	}
}

func (s *Server) Handler() http.Handler {
	guard := auth.Guard(s.verifier, s.logger)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/health", s.healthHandler)
	mux.HandleFunc("POST /api/auth/register", s.registerHandler)
	mux.HandleFunc("POST /api/auth/login", s.loginHandler)
	mux.Handle("GET /api/tasks", guard(http.HandlerFunc(s.listTasksHandler)))
	mux.Handle("POST /api/tasks", guard(http.HandlerFunc(s.createTaskHandler)))
	mux.Handle("GET /api/tasks/{id}", guard(http.HandlerFunc(s.getTaskHandler)))
	mux.Handle("PUT /api/tasks/{id}", guard(http.HandlerFunc(s.updateTaskHandler)))
	mux.Handle("DELETE /api/tasks/{id}", guard(http.HandlerFunc(s.deleteTaskHandler)))

	return s.recoverPanics(s.logRequests(s.cors(jsonFallback(mux))))
}

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	if s.health != nil {
		if err := s.health(r.Context()); err != nil {
			s.logger.ErrorContext(r.Context(), "health check failed", "error", err)
			writeJSONStatus(w, http.StatusServiceUnavailable, map[string]string{"error": "Store unavailable"})
			return
		}
	}
	writeJSON(w, map[string]string{"status": "OK", "message": "Server is running"})
}

// jsonFallback serves unmatched requests with JSON bodies, keeping the mux's
// distinction between an unknown path (404) and a known path with the wrong method (405).
func jsonFallback(mux *http.ServeMux) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		handler, pattern := mux.Handler(r)
		if pattern != "" {
			mux.ServeHTTP(w, r)
			return
		}

		rec := &unmatchedWriter{header: http.Header{}}
		handler.ServeHTTP(rec, r)
		if rec.status == http.StatusMethodNotAllowed {
			w.Header().Set("Allow", rec.header.Get("Allow"))
			writeJSONStatus(w, http.StatusMethodNotAllowed, map[string]string{"error": "Method not allowed"})
			return
		}
		writeJSONStatus(w, http.StatusNotFound, map[string]string{"error": "Not found"})
	})
}

// unmatchedWriter records what the mux's built-in error handlers would send.
type unmatchedWriter struct {
	header http.Header
	status int
}

func (u *unmatchedWriter) Header() http.Header { return u.header }

func (u *unmatchedWriter) Write(b []byte) (int, error) { return len(b), nil }

func (u *unmatchedWriter) WriteHeader(status int) { u.status = status }

func filterFromRequest(r *http.Request) model.Filter {
	query := strings.TrimSpace(r.URL.Query().Get("q"))
	status := strings.TrimSpace(r.URL.Query().Get("status"))
	tag := strings.TrimSpace(r.URL.Query().Get("tag"))
	if status == "all" {
		status = ""
	}
	return model.Filter{Query: query, Status: status, Tag: tag}
}

func readBody(w http.ResponseWriter, r *http.Request) ([]byte, error) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return nil, apperr.Validation("Request body too large")
		}
		return nil, apperr.Validation("Invalid request body")
	}
	return body, nil
}

func writeJSON(w http.ResponseWriter, payload any) {
	writeJSONStatus(w, http.StatusOK, payload)
}

func writeJSONStatus(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

// writeError translates err into its status and a single error field. Details of
// server-side failures are logged and never sent.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := apperr.HTTPStatus(err)
	if status >= http.StatusInternalServerError {
		s.logger.ErrorContext(r.Context(), "request failed",
			"method", r.Method,
			"path", r.URL.Path,
			"kind", string(apperr.KindOf(err)),
			"error", err,
		)
	}
	writeJSONStatus(w, status, map[string]string{"error": apperr.PublicMessage(err)})
}
