package auth

import (
	"context"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/odyssey-erp/odyssey-access/internal/shared"
)

// Service wraps authentication business rules.
type Service struct {
	repo   Repository
	issuer *TokenIssuer
}

// NewService constructs a new Service.
func NewService(repo Repository, issuer *TokenIssuer) *Service {
	return &Service{repo: repo, issuer: issuer}
}

// Authenticate validates email/password credentials.
func (s *Service) Authenticate(ctx context.Context, email, password string) (*User, error) {
	user, err := s.repo.FindByEmail(ctx, email)
	if err != nil {
		return nil, shared.ErrInvalidCredentials
	}
	if !user.IsActive {
		return nil, shared.ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, shared.ErrInvalidCredentials
	}
	return user, nil
}

// Login authenticates and issues a bearer token.
func (s *Service) Login(ctx context.Context, email, password string) (string, time.Time, error) {
	user, err := s.Authenticate(ctx, email, password)
	if err != nil {
		return "", time.Time{}, err
	}
	return s.issuer.Issue(user.Principal())
}
