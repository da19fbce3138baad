package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/Joseda-hg/taskflow/internal/model"
)

type UserInput struct {
	Email        string
	Name         string
	PasswordHash string
}

// CreateUser inserts a user. The unique index on email decides concurrent duplicates:
// exactly one insert wins and the others get ErrEmailTaken.
func (s *Store) CreateUser(ctx context.Context, input UserInput) (model.User, error) {
	user := model.User{
		ID:           s.newID(),
		Email:        input.Email,
		Name:         input.Name,
		PasswordHash: input.PasswordHash,
		CreatedAt:    s.now().UTC(),
	}

	_, err := s.DB.ExecContext(ctx,
		"INSERT INTO users (id, email, name, password_hash, created_at) VALUES (?, ?, ?, ?, ?)",
		user.ID, user.Email, user.Name, user.PasswordHash, formatTime(user.CreatedAt),
	)
	if isUniqueViolation(err) {
		return model.User{}, ErrEmailTaken
	}
	if err != nil {
		return model.User{}, fmt.Errorf("insert user: %w", err)
	}
	return user, nil
}

// GetUserByEmail matches email exactly as stored.
func (s *Store) GetUserByEmail(ctx context.Context, email string) (model.User, error) {
	var (
		user      model.User
		createdAt string
	)
	err := s.DB.QueryRowContext(ctx,
		"SELECT id, email, name, password_hash, created_at FROM users WHERE email = ?", email,
	).Scan(&user.ID, &user.Email, &user.Name, &user.PasswordHash, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return model.User{}, ErrNotFound
	}
	if err != nil {
		return model.User{}, fmt.Errorf("get user: %w", err)
	}
	if user.CreatedAt, err = parseTime(createdAt); err != nil {
		return model.User{}, err
	}
	return user, nil
}
