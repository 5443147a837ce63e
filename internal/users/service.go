package users

import (
	"context"
	"errors"

	"github.com/odyssey-erp/odyssey-access/internal/access"
	"github.com/odyssey-erp/odyssey-access/internal/shared"
)

// RepositoryPort defines data access methods for users.
type RepositoryPort interface {
	CountUsers(ctx context.Context, organizationID int64) (int, error)
	ListUsers(ctx context.Context, organizationID int64, limit, offset int) ([]User, error)
	GetUser(ctx context.Context, id int64) (User, error)
}

// Service handles user business logic.
type Service struct {
	repo RepositoryPort
}

// NewService builds Service instance.
func NewService(repo RepositoryPort) *Service {
	return &Service{repo: repo}
}

// ListUsers returns one page of the users of the granted organization.
func (s *Service) ListUsers(ctx context.Context, grant access.Grant, page, perPage int) ([]User, shared.Pagination, error) {
	orgID, err := grant.Scope.Require()
	if err != nil {
		return nil, shared.Pagination{}, err
	}
	total, err := s.repo.CountUsers(ctx, orgID)
	if err != nil {
		return nil, shared.Pagination{}, err
	}
	paging := shared.NewPagination(page, perPage, total)
	if paging.Offset() >= total {
		return []User{}, paging, nil
	}
	users, err := s.repo.ListUsers(ctx, orgID, paging.PerPage, paging.Offset())
	if err != nil {
		return nil, shared.Pagination{}, err
	}
	return users, paging, nil
}

// GetUser fetches a user visible to grant. Users of other tenants are
// reported exactly like missing ones.
func (s *Service) GetUser(ctx context.Context, grant access.Grant, id int64) (User, error) {
	if _, err := grant.Scope.Require(); err != nil {
		return User{}, err
	}
	user, err := s.repo.GetUser(ctx, id)
	if err != nil {
		return User{}, err
	}
	if err := access.EnsureOwned(grant, user.OrganizationID); err != nil {
		return User{}, err
	}
	return user, nil
}

// IsMember reports whether the user belongs to the organization.
func (s *Service) IsMember(ctx context.Context, organizationID, userID int64) (bool, error) {
	user, err := s.repo.GetUser(ctx, userID)
	if errors.Is(err, shared.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return user.OrganizationID == organizationID, nil
}
