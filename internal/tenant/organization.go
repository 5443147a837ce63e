package tenant

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/odyssey-erp/odyssey-access/internal/shared"
)

// ErrNotFound indicates that the organization does not exist.
var ErrNotFound = errors.New("tenant: organization not found")

// Organization is a boundary of data isolation.
type Organization struct {
	ID             int64    `json:"id"`
	Name           string   `json:"name"`
	EnabledModules []string `json:"enabled_modules"`
}

// Store reads and writes tenant licensing data.
type Store interface {
	GetOrganization(ctx context.Context, id int64) (Organization, error)
	SetEnabledModules(ctx context.Context, id int64, modules []string) error
}

// CanonicalModules lower-cases, trims, deduplicates and sorts module names.
func CanonicalModules(modules []string) []string {
	seen := make(map[string]struct{}, len(modules))
	out := make([]string, 0, len(modules))
	for _, m := range modules {
		m = shared.Fold(m)
		if m == "" {
			continue
		}
		if _, ok := seen[m]; ok {
			continue
		}
		seen[m] = struct{}{}
		out = append(out, m)
	}
	sort.Strings(out)
	return out
}

// PGStore implements Store using PostgreSQL.
type PGStore struct {
	pool *pgxpool.Pool
}

// NewPGStore constructs a PostgreSQL backed store.
func NewPGStore(pool *pgxpool.Pool) *PGStore {
	return &PGStore{pool: pool}
}

// GetOrganization loads an organization with its enabled modules.
func (s *PGStore) GetOrganization(ctx context.Context, id int64) (Organization, error) {
	var org Organization
	err := s.pool.QueryRow(ctx, `SELECT id, name, enabled_modules FROM organizations WHERE id = $1`, id).
		Scan(&org.ID, &org.Name, &org.EnabledModules)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Organization{}, ErrNotFound
		}
		return Organization{}, fmt.Errorf("tenant: get organization: %w", err)
	}
	org.EnabledModules = CanonicalModules(org.EnabledModules)
	return org, nil
}

// SetEnabledModules replaces the licensed module set of an organization.
func (s *PGStore) SetEnabledModules(ctx context.Context, id int64, modules []string) error {
	tag, err := s.pool.Exec(ctx, `UPDATE organizations SET enabled_modules = $2, updated_at = NOW() WHERE id = $1`, id, CanonicalModules(modules))
	if err != nil {
		return fmt.Errorf("tenant: set enabled modules: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

var _ Store = (*PGStore)(nil)
