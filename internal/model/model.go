package model

import (
	"strings"
	"time"
)

const (
	StatusTodo       = "todo"
	StatusInProgress = "in-progress"
	StatusCompleted  = "completed"

	PriorityLow    = "low"
	PriorityMedium = "medium"
	PriorityHigh   = "high"
)

var (
	Statuses   = []string{StatusTodo, StatusInProgress, StatusCompleted}
	Priorities = []string{PriorityLow, PriorityMedium, PriorityHigh}
)

type User struct {
	ID           string    `json:"id"`
	Email        string    `json:"email"`
	Name         string    `json:"name"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"-"`
}

type Task struct {
	ID          string     `json:"id"`
	UserID      string     `json:"userId"`
	Title       string     `json:"title"`
	Description string     `json:"description"`
	Status      string     `json:"status"`
	Priority    string     `json:"priority"`
	DueDate     *time.Time `json:"dueDate"`
	Tags        []string   `json:"tags"`
	CreatedAt   time.Time  `json:"createdAt"`
	UpdatedAt   time.Time  `json:"updatedAt"`
}

// Filter narrows a task listing. Zero values match everything.
type Filter struct {
	Query  string `json:"query"`
	Status string `json:"status"`
	Tag    string `json:"tag"`
}

func (f Filter) Match(task Task) bool {
	if f.Status != "" && task.Status != f.Status {
		return false
	}
	if q := strings.TrimSpace(f.Query); q != "" {
		if !strings.Contains(strings.ToLower(task.Title), strings.ToLower(q)) {
			return false
		}
	}
	if f.Tag != "" {
		found := false
		for _, tag := range task.Tags {
			if strings.EqualFold(tag, f.Tag) {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

func ValidStatus(status string) bool {
	return contains(Statuses, status)
}

func ValidPriority(priority string) bool {
	return contains(Priorities, priority)
}

func contains(values []string, value string) bool {
	for _, v := range values {
		if v == value {
			return true
		}
	}
	return false
}
