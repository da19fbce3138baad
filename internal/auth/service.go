package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/Joseda-hg/taskflow/internal/apperr"
	"github.com/Joseda-hg/taskflow/internal/db"
	"github.com/Joseda-hg/taskflow/internal/model"
)

// maxPasswordBytes is the bcrypt input limit.
const maxPasswordBytes = 72

// UserStore is the credential store used by Service.
type UserStore interface {
	CreateUser(ctx context.Context, input db.UserInput) (model.User, error)
	GetUserByEmail(ctx context.Context, email string) (model.User, error)
}

// Session is the result of a successful register or login.
type Session struct {
	Token string
	User  model.User
}

type Service struct {
	users      UserStore
	issuer     *TokenIssuer
	logger     *slog.Logger
	bcryptCost int
}

type ServiceOption func(*Service)

// WithBcryptCost overrides the hashing cost; tests use bcrypt.MinCost.
func WithBcryptCost(cost int) ServiceOption {
	return func(s *Service) {
		s.bcryptCost = cost
	}
}

func NewService(users UserStore, issuer *TokenIssuer, logger *slog.Logger, opts ...ServiceOption) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Service{users: users, issuer: issuer, logger: logger}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Service) Register(ctx context.Context, email, password, name string) (Session, error) {
	if email == "" || password == "" || strings.TrimSpace(name) == "" {
		return Session{}, apperr.Validation("Missing required fields")
	}
	if len(password) > maxPasswordBytes {
		return Session{}, apperr.Validation("Password is too long")
	}

	hash, err := HashPassword(password, s.bcryptCost)
	if err != nil {
		return Session{}, apperr.Wrap(apperr.KindInternal, "hash password", err)
	}

	user, err := s.users.CreateUser(ctx, db.UserInput{Email: email, Name: name, PasswordHash: hash})
	if errors.Is(err, db.ErrEmailTaken) {
		return Session{}, apperr.Validation("Email already in use")
	}
	if err != nil {
		return Session{}, apperr.StoreUnavailable(err)
	}
	s.logger.InfoContext(ctx, "user registered", "user_id", user.ID)

	return s.session(user)
}

func (s *Service) Login(ctx context.Context, email, password string) (Session, error) {
	if email == "" || password == "" {
		return Session{}, apperr.Validation("Missing email or password")
	}
	// bcrypt compares only the first 72 bytes.
	if len(password) > maxPasswordBytes {
		return Session{}, apperr.Unauthenticated("Invalid credentials")
	}

	user, err := s.users.GetUserByEmail(ctx, email)
	if errors.Is(err, db.ErrNotFound) {
		return Session{}, apperr.Unauthenticated("Invalid credentials")
	}
	if err != nil {
		return Session{}, apperr.StoreUnavailable(err)
	}

	ok, err := ComparePassword(user.PasswordHash, password)
	if err != nil {
		return Session{}, apperr.Wrap(apperr.KindInternal, "compare password", err)
	}
	if !ok {
		return Session{}, apperr.Unauthenticated("Invalid credentials")
	}

	return s.session(user)
}

func (s *Service) session(user model.User) (Session, error) {
	token, err := s.issuer.Issue(user.ID, user.Email)
	if err != nil {
		return Session{}, apperr.Wrap(apperr.KindInternal, "issue token", fmt.Errorf("user %s: %w", user.ID, err))
	}
	return Session{Token: token, User: user}, nil
}
