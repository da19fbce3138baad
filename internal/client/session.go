package client

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/Joseda-hg/taskflow/internal/model"
)

// ErrNoSession is returned by LoadSession when nobody is logged in.
var ErrNoSession = errors.New("not logged in")

type Session struct {
	BaseURL string     `json:"baseUrl"`
	Token   string     `json:"token"`
	User    model.User `json:"user"`
}

func DefaultSessionPath() (string, error) {
	configDir, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(configDir, "taskflow", "session.json"), nil
}

func LoadSession(path string) (Session, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return Session{}, ErrNoSession
	}
	if err != nil {
		return Session{}, err
	}

	var session Session
	if err := json.Unmarshal(data, &session); err != nil {
		return Session{}, fmt.Errorf("parse session: %w", err)
	}
	if session.Token == "" {
		return Session{}, ErrNoSession
	}
	return session, nil
}

// SaveSession writes the session readable only by the current user.
func SaveSession(path string, session Session) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return err
	}
	data, err := json.MarshalIndent(session, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o600)
}

// ClearSession removes the session file. A missing file is not an error.
func ClearSession(path string) error {
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

// Stats counts tasks per status.
type Stats struct {
	Total      int
	Todo       int
	InProgress int
	Completed  int
}

func CountByStatus(list []model.Task) Stats {
	stats := Stats{Total: len(list)}
	for _, task := range list {
		switch task.Status {
		case model.StatusTodo:
			stats.Todo++
		case model.StatusInProgress:
			stats.InProgress++
		case model.StatusCompleted:
			stats.Completed++
		}
	}
	return stats
}

// FilterTasks applies filter locally, keeping order.
func FilterTasks(list []model.Task, filter model.Filter) []model.Task {
	out := make([]model.Task, 0, len(list))
	for _, task := range list {
		if filter.Match(task) {
			out = append(out, task)
		}
	}
	return out
}
