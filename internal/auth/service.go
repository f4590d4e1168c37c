package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/hibiken/asynq"
	"golang.org/x/crypto/bcrypt"

	"github.com/favum/favum/internal/authz"
	"github.com/favum/favum/internal/token"
	"github.com/favum/favum/jobs"
)

// ErrInvalidCredentials indicates login failure. The caller is told
// nothing about whether the account exists or is disabled.
var ErrInvalidCredentials = errors.New("auth: invalid credentials")

// Notifier enqueues transactional email jobs. Satisfied by jobs.Client;
// nil disables notifications.
type Notifier interface {
	EnqueueSendEmail(ctx context.Context, payload jobs.SendEmailPayload) (*asynq.TaskInfo, error)
}

// Service wraps authentication business rules.
type Service struct {
	repo     Repository
	issuer   token.Issuer
	revoker  token.Revoker
	notifier Notifier
	logger   *slog.Logger
}

// NewService constructs a new Service.
func NewService(repo Repository, issuer token.Issuer, revoker token.Revoker, notifier Notifier, logger *slog.Logger) *Service {
	return &Service{repo: repo, issuer: issuer, revoker: revoker, notifier: notifier, logger: logger}
}

// Login validates credentials and issues a signed token.
func (s *Service) Login(ctx context.Context, username, password string) (string, *token.Claims, error) {
	user, err := s.authenticate(ctx, username, password)
	if err != nil {
		return "", nil, err
	}
	raw, claims, err := s.issuer.Issue(ctx, user.ID, user.Username, user.Role)
	if err != nil {
		return "", nil, fmt.Errorf("auth: issue token: %w", err)
	}
	if s.notifier != nil {
		if _, err := s.notifier.EnqueueSendEmail(ctx, jobs.SendEmailPayload{
			To:      user.Email,
			Subject: "New login to your account",
			Body:    fmt.Sprintf("Hi %s, your account was just used to sign in.", user.Username),
		}); err != nil && s.logger != nil {
			s.logger.Warn("enqueue login email", slog.Any("error", err))
		}
	}
	return raw, claims, nil
}

// Logout revokes the presented token for the remainder of its lifetime.
func (s *Service) Logout(ctx context.Context, claims *token.Claims) error {
	if s.revoker == nil || claims == nil {
		return nil
	}
	return s.revoker.Revoke(ctx, claims)
}

// Register creates an account with the default role. Role assignment is
// deliberately not caller-controlled.
func (s *Service) Register(ctx context.Context, username, email, password string) (*User, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("auth: hash password: %w", err)
	}
	return s.repo.Create(ctx, username, email, string(hash), string(authz.RoleUser))
}

func (s *Service) authenticate(ctx context.Context, username, password string) (*User, error) {
	user, err := s.repo.FindByUsername(ctx, username)
	if err != nil {
		return nil, ErrInvalidCredentials
	}
	if !user.IsActive {
		return nil, ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}
	return user, nil
}
