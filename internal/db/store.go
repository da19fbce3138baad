package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/Joseda-hg/taskflow/internal/model"
)

var (
	// ErrNotFound is returned when no row matches both the record id and its owner.
	ErrNotFound   = errors.New("not found")
	ErrEmailTaken = errors.New("email already in use")
)

type Store struct {
	DB    *sql.DB
	now   func() time.Time
	newID func() string
}

type TaskInput struct {
	Title       string
	Description string
	Status      string
	Priority    string
	DueDate     *time.Time
	Tags        []string
}

// TaskPatch carries the fields of a partial update. Nil fields are left untouched.
type TaskPatch struct {
	Title       *string
	Description *string
	Status      *string
	Priority    *string
	DueDate     *time.Time
	ClearDue    bool
	Tags        *[]string
}

func NewStore(db *sql.DB) *Store {
	return &Store{DB: db, now: time.Now, newID: uuid.NewString}
}

// WithClock returns a copy of the store that stamps records using now.
func (s *Store) WithClock(now func() time.Time) *Store {
	clone := *s
	clone.now = now
	return &clone
}

const taskColumns = "id, user_id, title, description, status, priority, due_at, tags, created_at, updated_at"

func (s *Store) CreateTask(ctx context.Context, ownerID string, input TaskInput) (model.Task, error) {
	now := formatTime(s.now())

	tags, err := encodeTags(input.Tags)
	if err != nil {
		return model.Task{}, err
	}

	row := s.DB.QueryRowContext(ctx,
		"INSERT INTO tasks ("+taskColumns+") VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?) RETURNING "+taskColumns,
		s.newID(),
		ownerID,
		input.Title,
		input.Description,
		normalizeStatus(input.Status),
		normalizePriority(input.Priority),
		nullableTime(input.DueDate),
		tags,
		now,
		now,
	)
	task, err := scanTask(row)
	if err != nil {
		return model.Task{}, fmt.Errorf("insert task: %w", err)
	}
	return task, nil
}

// UpdateTask applies patch to the task matching both taskID and ownerID in one statement.
func (s *Store) UpdateTask(ctx context.Context, ownerID, taskID string, patch TaskPatch) (model.Task, error) {
	var tags *string
	if patch.Tags != nil {
		encoded, err := encodeTags(*patch.Tags)
		if err != nil {
			return model.Task{}, err
		}
		tags = &encoded
	}

	setDue := patch.ClearDue || patch.DueDate != nil
	var status, priority *string
	if patch.Status != nil {
		value := normalizeStatus(*patch.Status)
		status = &value
	}
	if patch.Priority != nil {
		value := normalizePriority(*patch.Priority)
		priority = &value
	}

	row := s.DB.QueryRowContext(ctx, `UPDATE tasks SET
		title = COALESCE(?, title),
		description = COALESCE(?, description),
		status = COALESCE(?, status),
		priority = COALESCE(?, priority),
		due_at = CASE WHEN ? THEN ? ELSE due_at END,
		tags = COALESCE(?, tags),
		updated_at = ?
		WHERE id = ? AND user_id = ?
		RETURNING `+taskColumns,
		patch.Title,
		patch.Description,
		status,
		priority,
		setDue,
		nullableTime(patch.DueDate),
		tags,
		formatTime(s.now()),
		taskID,
		ownerID,
	)
	task, err := scanTask(row)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Task{}, ErrNotFound
	}
	if err != nil {
		return model.Task{}, fmt.Errorf("update task: %w", err)
	}
	return task, nil
}

func (s *Store) DeleteTask(ctx context.Context, ownerID, taskID string) error {
	result, err := s.DB.ExecContext(ctx, "DELETE FROM tasks WHERE id = ? AND user_id = ?", taskID, ownerID)
	if err != nil {
		return fmt.Errorf("delete task: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete task: %w", err)
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *Store) GetTask(ctx context.Context, ownerID, taskID string) (model.Task, error) {
	row := s.DB.QueryRowContext(ctx,
		"SELECT "+taskColumns+" FROM tasks WHERE id = ? AND user_id = ?", taskID, ownerID)
	task, err := scanTask(row)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Task{}, ErrNotFound
	}
	if err != nil {
		return model.Task{}, fmt.Errorf("get task: %w", err)
	}
	return task, nil
}

// ListTasks returns the owner's tasks, newest first.
func (s *Store) ListTasks(ctx context.Context, ownerID string, filter model.Filter) ([]model.Task, error) {
	query := strings.TrimSpace(filter.Query)
	status := strings.TrimSpace(filter.Status)
	tag := strings.TrimSpace(filter.Tag)

	rows, err := s.DB.QueryContext(ctx, `SELECT `+taskColumns+` FROM tasks
		WHERE user_id = ?
		AND (? = '' OR status = ?)
		AND (? = '' OR instr(lower(title), lower(?)) > 0)
		AND (? = '' OR EXISTS (SELECT 1 FROM json_each(tasks.tags) WHERE lower(json_each.value) = lower(?)))
		ORDER BY created_at DESC, seq DESC`,
		ownerID,
		status, status,
		query, query,
		tag, tag,
	)
	if err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	defer rows.Close()

	result := make([]model.Task, 0)
	for rows.Next() {
		task, err := scanTask(rows)
		if err != nil {
			return nil, fmt.Errorf("list tasks: %w", err)
		}
		result = append(result, task)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}

	return result, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTask(row rowScanner) (model.Task, error) {
	var (
		task                 model.Task
		dueAt                sql.NullString
		tags                 string
		createdAt, updatedAt string
	)
	if err := row.Scan(
		&task.ID,
		&task.UserID,
		&task.Title,
		&task.Description,
		&task.Status,
		&task.Priority,
		&dueAt,
		&tags,
		&createdAt,
		&updatedAt,
	); err != nil {
		return model.Task{}, err
	}

	var err error
	if task.CreatedAt, err = parseTime(createdAt); err != nil {
		return model.Task{}, err
	}
	if task.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return model.Task{}, err
	}
	if dueAt.Valid {
		due, err := parseTime(dueAt.String)
		if err != nil {
			return model.Task{}, err
		}
		task.DueDate = &due
	}
	if err := json.Unmarshal([]byte(tags), &task.Tags); err != nil {
		return model.Task{}, fmt.Errorf("decode tags: %w", err)
	}
	if task.Tags == nil {
		task.Tags = []string{}
	}

	return task, nil
}

func nullableTime(value *time.Time) sql.NullString {
	if value == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: formatTime(*value), Valid: true}
}

func encodeTags(tags []string) (string, error) {
	data, err := json.Marshal(normalizeTags(tags))
	if err != nil {
		return "", fmt.Errorf("encode tags: %w", err)
	}
	return string(data), nil
}

func normalizeStatus(status string) string {
	value := strings.TrimSpace(strings.ToLower(status))
	if value == "" {
		return model.StatusTodo
	}
	return value
}

func normalizePriority(priority string) string {
	value := strings.TrimSpace(strings.ToLower(priority))
	if value == "" {
		return model.PriorityMedium
	}
	return value
}

func normalizeTags(tags []string) []string {
	seen := make(map[string]struct{})
	result := make([]string, 0, len(tags))
	for _, tag := range tags {
		trimmed := strings.TrimSpace(tag)
		if trimmed == "" {
			continue
		}
		lower := strings.ToLower(trimmed)
		if _, ok := seen[lower]; ok {
			continue
		}
		seen[lower] = struct{}{}
		result = append(result, trimmed)
	}
	return result
}
