package web

import (
	"net/http"

	"github.com/Joseda-hg/taskflow/internal/auth"
	"github.com/Joseda-hg/taskflow/internal/model"
)

type credentialsRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Name     string `json:"name"`
}

type sessionResponse struct {
	Message string     `json:"message"`
	Token   string     `json:"token"`
	User    model.User `json:"user"`
}

func (s *Server) registerHandler(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if !s.decode(w, r, &req) {
		return
	}

	session, err := s.auth.Register(r.Context(), req.Email, req.Password, req.Name)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSONStatus(w, http.StatusCreated, newSessionResponse("User registered successfully", session))
}

func (s *Server) loginHandler(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if !s.decode(w, r, &req) {
		return
	}

	session, err := s.auth.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, newSessionResponse("Login successful", session))
}

func newSessionResponse(message string, session auth.Session) sessionResponse {
	return sessionResponse{Message: message, Token: session.Token, User: session.User}
}

// decode reads a credentials body, writing the error response itself on failure.
func (s *Server) decode(w http.ResponseWriter, r *http.Request, req *credentialsRequest) bool {
	body, err := readBody(w, r)
	if err != nil {
		s.writeError(w, r, err)
		return false
	}
	if err := decodeBody(body, credentialsSchema, req); err != nil {
		s.writeError(w, r, err)
		return false
	}
	return true
}
