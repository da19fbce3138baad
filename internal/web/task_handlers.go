package web

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/Joseda-hg/taskflow/internal/apperr"
	"github.com/Joseda-hg/taskflow/internal/auth"
	"github.com/Joseda-hg/taskflow/internal/tasks"
)

// taskRequest is the allow-list of client-settable task fields. Anything else in
// the body, such as id or userId, is ignored.
type taskRequest struct {
	Title       *string   `json:"title"`
	Description *string   `json:"description"`
	Status      *string   `json:"status"`
	Priority    *string   `json:"priority"`
	DueDate     *string   `json:"dueDate"`
	Tags        *[]string `json:"tags"`
}

type deleteResponse struct {
	Message string `json:"message"`
	ID      string `json:"id"`
}

var dueDateLayouts = []string{time.RFC3339Nano, "2006-01-02T15:04", "2006-01-02"}

func (s *Server) listTasksHandler(w http.ResponseWriter, r *http.Request) {
	list, err := s.tasks.List(r.Context(), auth.SubjectFromContext(r.Context()), filterFromRequest(r))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, list)
}

func (s *Server) getTaskHandler(w http.ResponseWriter, r *http.Request) {
	task, err := s.tasks.Get(r.Context(), auth.SubjectFromContext(r.Context()), r.PathValue("id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, task)
}

func (s *Server) createTaskHandler(w http.ResponseWriter, r *http.Request) {
	req, _, err := s.decodeTask(w, r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	draft := tasks.Draft{
		Title:       deref(req.Title),
		Description: deref(req.Description),
		Status:      deref(req.Status),
		Priority:    deref(req.Priority),
	}
	if req.Tags != nil {
		draft.Tags = *req.Tags
	}
	if req.DueDate != nil {
		if draft.DueDate, err = parseDueDate(*req.DueDate); err != nil {
			s.writeError(w, r, err)
			return
		}
	}

	task, err := s.tasks.Create(r.Context(), auth.SubjectFromContext(r.Context()), draft)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSONStatus(w, http.StatusCreated, task)
}

func (s *Server) updateTaskHandler(w http.ResponseWriter, r *http.Request) {
	req, keys, err := s.decodeTask(w, r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	patch := tasks.Patch{
		Title:       req.Title,
		Description: req.Description,
		Status:      req.Status,
		Priority:    req.Priority,
		Tags:        req.Tags,
	}
	if sentField(keys, "dueDate") {
		due, err := parseDueDate(deref(req.DueDate))
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		patch.DueDate = due
		patch.ClearDue = due == nil
	}

	task, err := s.tasks.Update(r.Context(), auth.SubjectFromContext(r.Context()), r.PathValue("id"), patch)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, task)
}

func (s *Server) deleteTaskHandler(w http.ResponseWriter, r *http.Request) {
	confirmation, err := s.tasks.Delete(r.Context(), auth.SubjectFromContext(r.Context()), r.PathValue("id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, deleteResponse{Message: confirmation.Message, ID: confirmation.ID})
}

// decodeTask validates the body and returns the top-level keys that were sent.
func (s *Server) decodeTask(w http.ResponseWriter, r *http.Request) (taskRequest, []string, error) {
	var req taskRequest
	body, err := readBody(w, r)
	if err != nil {
		return req, nil, err
	}
	if err := decodeBody(body, taskSchema, &req); err != nil {
		return req, nil, err
	}

	var keys map[string]json.RawMessage
	if err := json.Unmarshal(body, &keys); err != nil {
		return req, nil, apperr.Validation("Invalid JSON body")
	}
	sent := make([]string, 0, len(keys))
	for key := range keys {
		sent = append(sent, key)
	}
	return req, sent, nil
}

// sentField reports whether any key would decode into field. encoding/json
// matches field names case-insensitively, so presence must too.
func sentField(keys []string, field string) bool {
	for _, key := range keys {
		if strings.EqualFold(key, field) {
			return true
		}
	}
	return false
}

// parseDueDate accepts RFC 3339 timestamps and plain dates. An empty string means no due date.
func parseDueDate(value string) (*time.Time, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil, nil
	}
	for _, layout := range dueDateLayouts {
		if parsed, err := time.Parse(layout, value); err == nil {
			utc := parsed.UTC()
			return &utc, nil
		}
	}
	return nil, apperr.Validation("Invalid dueDate")
}

func deref(value *string) string {
	if value == nil {
		return ""
	}
	return *value
}
