// Package tasks scopes every task read and write to the verified owner.
package tasks

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/Joseda-hg/taskflow/internal/apperr"
	"github.com/Joseda-hg/taskflow/internal/db"
	"github.com/Joseda-hg/taskflow/internal/model"
)

// Store is the task persistence used by Controller. Every method takes the owner
// alongside the task id so lookups are always a combined filter.
type Store interface {
	CreateTask(ctx context.Context, ownerID string, input db.TaskInput) (model.Task, error)
	UpdateTask(ctx context.Context, ownerID, taskID string, patch db.TaskPatch) (model.Task, error)
	DeleteTask(ctx context.Context, ownerID, taskID string) error
	GetTask(ctx context.Context, ownerID, taskID string) (model.Task, error)
	ListTasks(ctx context.Context, ownerID string, filter model.Filter) ([]model.Task, error)
}

// Draft is the input of Create.
type Draft struct {
	Title       string
	Description string
	Status      string
	Priority    string
	DueDate     *time.Time
	Tags        []string
}

// Patch is the input of Update. Nil fields are left untouched; ClearDue removes the due date.
type Patch struct {
	Title       *string
	Description *string
	Status      *string
	Priority    *string
	DueDate     *time.Time
	ClearDue    bool
	Tags        *[]string
}

// Confirmation acknowledges a delete.
type Confirmation struct {
	ID      string
	Message string
}

var errNoSubject = errors.New("request reached task controller without a verified subject")

const notFoundMessage = "Task not found"

type Controller struct {
	store  Store
	logger *slog.Logger
}

func NewController(store Store, logger *slog.Logger) *Controller {
	if logger == nil {
		logger = slog.Default()
	}
	return &Controller{store: store, logger: logger}
}

// List returns the subject's tasks, newest first.
func (c *Controller) List(ctx context.Context, subjectID string, filter model.Filter) ([]model.Task, error) {
	if err := requireSubject(subjectID); err != nil {
		return nil, err
	}
	if filter.Status != "" && !model.ValidStatus(filter.Status) {
		return nil, apperr.Validation(fmt.Sprintf("Invalid status %q", filter.Status))
	}
	tasks, err := c.store.ListTasks(ctx, subjectID, filter)
	if err != nil {
		return nil, apperr.StoreUnavailable(err)
	}
	return tasks, nil
}

func (c *Controller) Get(ctx context.Context, subjectID, taskID string) (model.Task, error) {
	if err := requireSubject(subjectID); err != nil {
		return model.Task{}, err
	}
	task, err := c.store.GetTask(ctx, subjectID, taskID)
	if err != nil {
		return model.Task{}, mapStoreError(err)
	}
	return task, nil
}

// Create validates draft and stores it owned by subjectID.
func (c *Controller) Create(ctx context.Context, subjectID string, draft Draft) (model.Task, error) {
	if err := requireSubject(subjectID); err != nil {
		return model.Task{}, err
	}
	title := strings.TrimSpace(draft.Title)
	if title == "" {
		return model.Task{}, apperr.Validation("Title is required")
	}
	status, err := validateStatus(draft.Status, false)
	if err != nil {
		return model.Task{}, err
	}
	priority, err := validatePriority(draft.Priority, false)
	if err != nil {
		return model.Task{}, err
	}

	task, err := c.store.CreateTask(ctx, subjectID, db.TaskInput{
		Title:       title,
		Description: draft.Description,
		Status:      status,
		Priority:    priority,
		DueDate:     draft.DueDate,
		Tags:        draft.Tags,
	})
	if err != nil {
		return model.Task{}, apperr.StoreUnavailable(err)
	}
	c.logger.InfoContext(ctx, "task created", "user_id", subjectID, "task_id", task.ID)
	return task, nil
}

// Update applies patch to the task matching both taskID and subjectID.
func (c *Controller) Update(ctx context.Context, subjectID, taskID string, patch Patch) (model.Task, error) {
	if err := requireSubject(subjectID); err != nil {
		return model.Task{}, err
	}
	update := db.TaskPatch{
		Description: patch.Description,
		DueDate:     patch.DueDate,
		ClearDue:    patch.ClearDue && patch.DueDate == nil,
		Tags:        patch.Tags,
	}
	if patch.Title != nil {
		title := strings.TrimSpace(*patch.Title)
		if title == "" {
			return model.Task{}, apperr.Validation("Title is required")
		}
		update.Title = &title
	}
	if patch.Status != nil {
		status, err := validateStatus(*patch.Status, true)
		if err != nil {
			return model.Task{}, err
		}
		update.Status = &status
	}
	if patch.Priority != nil {
		priority, err := validatePriority(*patch.Priority, true)
		if err != nil {
			return model.Task{}, err
		}
		update.Priority = &priority
	}

	task, err := c.store.UpdateTask(ctx, subjectID, taskID, update)
	if err != nil {
		return model.Task{}, mapStoreError(err)
	}
	c.logger.InfoContext(ctx, "task updated", "user_id", subjectID, "task_id", task.ID)
	return task, nil
}

// Delete removes the task matching both taskID and subjectID.
func (c *Controller) Delete(ctx context.Context, subjectID, taskID string) (Confirmation, error) {
	if err := requireSubject(subjectID); err != nil {
		return Confirmation{}, err
	}
	if err := c.store.DeleteTask(ctx, subjectID, taskID); err != nil {
		return Confirmation{}, mapStoreError(err)
	}
	c.logger.InfoContext(ctx, "task deleted", "user_id", subjectID, "task_id", taskID)
	return Confirmation{ID: taskID, Message: "Task deleted successfully"}, nil
}

func requireSubject(subjectID string) error {
	if subjectID == "" {
		return apperr.Wrap(apperr.KindInternal, "missing subject", errNoSubject)
	}
	return nil
}

func mapStoreError(err error) error {
	if errors.Is(err, db.ErrNotFound) {
		return apperr.NotFound(notFoundMessage)
	}
	return apperr.StoreUnavailable(err)
}

// validateStatus normalizes value. An empty value falls back to the default unless
// the caller set it explicitly.
func validateStatus(value string, explicit bool) (string, error) {
	status := strings.TrimSpace(strings.ToLower(value))
	if status == "" && !explicit {
		return model.StatusTodo, nil
	}
	if !model.ValidStatus(status) {
		return "", apperr.Validation(fmt.Sprintf("Invalid status %q", value))
	}
	return status, nil
}

func validatePriority(value string, explicit bool) (string, error) {
	priority := strings.TrimSpace(strings.ToLower(value))
	if priority == "" && !explicit {
		return model.PriorityMedium, nil
	}
	if !model.ValidPriority(priority) {
		return "", apperr.Validation(fmt.Sprintf("Invalid priority %q", value))
	}
	return priority, nil
}
