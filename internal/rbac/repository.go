package rbac

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/odyssey-erp/odyssey-access/internal/platform/db"
	"github.com/odyssey-erp/odyssey-access/internal/shared"
)

var (
	// ErrNotFound indicates that the requested record does not exist.
	ErrNotFound = errors.New("rbac: not found")
	// ErrDuplicateRole indicates the role name is already taken in the organization.
	ErrDuplicateRole = errors.New("rbac: role name already exists")
	// ErrUnknownPermission indicates a grant referencing an undefined permission.
	ErrUnknownPermission = errors.New("rbac: unknown permission")
)

// Repository defines persistence operations for roles and grants.
type Repository interface {
	DeclaredRolePermissions(ctx context.Context, organizationID int64, roleName string) ([]string, error)
	AssignedRolePermissions(ctx context.Context, userID, organizationID int64) ([]string, error)
	ResolvedRoles(ctx context.Context, userID, organizationID int64, roleName string) ([]Role, error)

	ListRoles(ctx context.Context, organizationID int64) ([]Role, error)
	GetRole(ctx context.Context, organizationID, roleID int64) (Role, error)
	CreateRole(ctx context.Context, in NewRoleInput) (Role, error)
	SetRoleActive(ctx context.Context, organizationID, roleID int64, active bool) error
	RolePermissions(ctx context.Context, roleID int64) ([]string, error)
	ReplaceRolePermissions(ctx context.Context, roleID int64, names []string) error
	AssignRole(ctx context.Context, userID, roleID int64) error
	RevokeRole(ctx context.Context, userID, roleID int64) error

	ListPermissions(ctx context.Context) ([]Permission, error)
	EnsurePermission(ctx context.Context, perm Permission) (Permission, error)
	ProvisionRoles(ctx context.Context, organizationID int64, seeds []RoleSeed) error

	// PermissionVersion returns the counter every grant mutation above bumps
	// in its own transaction.
	PermissionVersion(ctx context.Context, organizationID int64) (int64, error)
}

// PGRepository implements Repository using PostgreSQL.
type PGRepository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a PostgreSQL repository.
func NewRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

const declaredRolePermissionsSQL = `SELECT p.name
FROM roles r
JOIN role_permissions rp ON rp.role_id = r.id
JOIN permissions p ON p.id = rp.permission_id
WHERE r.organization_id = $1 AND r.name = $2 AND r.is_active`

// DeclaredRolePermissions returns the grants of the active role named roleName in the organization.
func (r *PGRepository) DeclaredRolePermissions(ctx context.Context, organizationID int64, roleName string) ([]string, error) {
	return r.queryNames(ctx, declaredRolePermissionsSQL, organizationID, shared.Fold(roleName))
}

const assignedRolePermissionsSQL = `SELECT p.name
FROM user_roles ur
JOIN roles r ON r.id = ur.role_id
JOIN role_permissions rp ON rp.role_id = r.id
JOIN permissions p ON p.id = rp.permission_id
WHERE ur.user_id = $1 AND ur.is_active AND r.organization_id = $2 AND r.is_active`

// AssignedRolePermissions returns the grants of every active explicit assignment inside the organization.
func (r *PGRepository) AssignedRolePermissions(ctx context.Context, userID, organizationID int64) ([]string, error) {
	return r.queryNames(ctx, assignedRolePermissionsSQL, userID, organizationID)
}

const roleColumns = `r.id, r.organization_id, r.name, r.description, r.is_active, r.created_at, r.updated_at`

// ResolvedRoles lists the roles reachable by both resolution paths.
func (r *PGRepository) ResolvedRoles(ctx context.Context, userID, organizationID int64, roleName string) ([]Role, error) {
	return r.queryRoles(ctx, `SELECT `+roleColumns+`
FROM roles r
WHERE r.organization_id = $2 AND r.is_active AND (
	r.name = $3
	OR EXISTS (SELECT 1 FROM user_roles ur WHERE ur.role_id = r.id AND ur.user_id = $1 AND ur.is_active)
)
ORDER BY r.name`, userID, organizationID, shared.Fold(roleName))
}

// ListRoles returns every role of the organization, including disabled ones.
func (r *PGRepository) ListRoles(ctx context.Context, organizationID int64) ([]Role, error) {
	return r.queryRoles(ctx, `SELECT `+roleColumns+` FROM roles r WHERE r.organization_id = $1 ORDER BY r.name`, organizationID)
}

// GetRole fetches a role by id inside the organization.
func (r *PGRepository) GetRole(ctx context.Context, organizationID, roleID int64) (Role, error) {
	roles, err := r.queryRoles(ctx, `SELECT `+roleColumns+` FROM roles r WHERE r.organization_id = $1 AND r.id = $2`, organizationID, roleID)
	if err != nil {
		return Role{}, err
	}
	if len(roles) == 0 {
		return Role{}, ErrNotFound
	}
	return roles[0], nil
}

// CreateRole inserts a new active role. A new role can match a user's
// declared role name, so it counts as a grant change.
func (r *PGRepository) CreateRole(ctx context.Context, in NewRoleInput) (Role, error) {
	var role Role
	err := db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		err := tx.QueryRow(ctx, `INSERT INTO roles (organization_id, name, description, is_active)
VALUES ($1, $2, $3, TRUE)
RETURNING id, organization_id, name, description, is_active, created_at, updated_at`,
			in.OrganizationID, shared.Fold(in.Name), in.Description).
			Scan(&role.ID, &role.OrganizationID, &role.Name, &role.Description, &role.IsActive, &role.CreatedAt, &role.UpdatedAt)
		if err != nil {
			return err
		}
		return bumpVersion(ctx, tx, in.OrganizationID)
	})
	if err != nil {
		if isUniqueViolation(err) {
			return Role{}, ErrDuplicateRole
		}
		return Role{}, fmt.Errorf("rbac: create role: %w", err)
	}
	return role, nil
}

// SetRoleActive toggles the soft-disable flag.
func (r *PGRepository) SetRoleActive(ctx context.Context, organizationID, roleID int64, active bool) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, `UPDATE roles SET is_active = $3, updated_at = NOW() WHERE organization_id = $1 AND id = $2`, organizationID, roleID, active)
		if err != nil {
			return fmt.Errorf("rbac: set role active: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return ErrNotFound
		}
		return bumpVersion(ctx, tx, organizationID)
	})
}

// RolePermissions lists permission names granted to a role.
func (r *PGRepository) RolePermissions(ctx context.Context, roleID int64) ([]string, error) {
	return r.queryNames(ctx, `SELECT p.name FROM role_permissions rp JOIN permissions p ON p.id = rp.permission_id WHERE rp.role_id = $1 ORDER BY p.name`, roleID)
}

// ReplaceRolePermissions makes names the exact grant set of the role.
func (r *PGRepository) ReplaceRolePermissions(ctx context.Context, roleID int64, names []string) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		ids, err := permissionIDs(ctx, tx, names)
		if err != nil {
			return err
		}
		if _, err := tx.Exec(ctx, `DELETE FROM role_permissions WHERE role_id = $1 AND NOT (permission_id = ANY($2))`, roleID, ids); err != nil {
			return fmt.Errorf("rbac: detach permissions: %w", err)
		}
		if _, err := tx.Exec(ctx, `INSERT INTO role_permissions (role_id, permission_id)
SELECT $1, unnest($2::bigint[])
ON CONFLICT (role_id, permission_id) DO NOTHING`, roleID, ids); err != nil {
			return fmt.Errorf("rbac: attach permissions: %w", err)
		}
		return bumpRoleVersion(ctx, tx, roleID)
	})
}

// AssignRole links a user to a role, reactivating a revoked assignment.
func (r *PGRepository) AssignRole(ctx context.Context, userID, roleID int64) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, `INSERT INTO user_roles (user_id, role_id, is_active)
VALUES ($1, $2, TRUE)
ON CONFLICT (user_id, role_id) DO UPDATE SET is_active = TRUE`, userID, roleID)
		if err != nil {
			return fmt.Errorf("rbac: assign role: %w", err)
		}
		return bumpRoleVersion(ctx, tx, roleID)
	})
}

// RevokeRole deactivates an assignment, keeping the row for audit history.
func (r *PGRepository) RevokeRole(ctx context.Context, userID, roleID int64) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, `UPDATE user_roles SET is_active = FALSE WHERE user_id = $1 AND role_id = $2 AND is_active`, userID, roleID)
		if err != nil {
			return fmt.Errorf("rbac: revoke role: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return ErrNotFound
		}
		return bumpRoleVersion(ctx, tx, roleID)
	})
}

// ListPermissions returns all permissions ordered by name.
func (r *PGRepository) ListPermissions(ctx context.Context) ([]Permission, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, name, module, action, description FROM permissions ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("rbac: list permissions: %w", err)
	}
	defer rows.Close()
	var perms []Permission
	for rows.Next() {
		var p Permission
		if err := rows.Scan(&p.ID, &p.Name, &p.Module, &p.Action, &p.Description); err != nil {
			return nil, err
		}
		perms = append(perms, p)
	}
	return perms, rows.Err()
}

// EnsurePermission upserts a permission by canonical name.
func (r *PGRepository) EnsurePermission(ctx context.Context, perm Permission) (Permission, error) {
	err := r.pool.QueryRow(ctx, `INSERT INTO permissions (name, module, action, description)
VALUES ($1, $2, $3, $4)
ON CONFLICT (name) DO UPDATE SET description = EXCLUDED.description
RETURNING id, name, module, action, description`, perm.Name, perm.Module, perm.Action, perm.Description).
		Scan(&perm.ID, &perm.Name, &perm.Module, &perm.Action, &perm.Description)
	if err != nil {
		return Permission{}, fmt.Errorf("rbac: ensure permission: %w", err)
	}
	return perm, nil
}

// ProvisionRoles creates the seed roles and grants in one transaction.
// Existing roles keep their grants untouched.
func (r *PGRepository) ProvisionRoles(ctx context.Context, organizationID int64, seeds []RoleSeed) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		for _, seed := range seeds {
			var roleID int64
			err := tx.QueryRow(ctx, `INSERT INTO roles (organization_id, name, description, is_active)
VALUES ($1, $2, $3, TRUE)
ON CONFLICT (organization_id, name) DO NOTHING
RETURNING id`, organizationID, shared.Fold(seed.Name), seed.Description).Scan(&roleID)
			if errors.Is(err, pgx.ErrNoRows) {
				continue
			}
			if err != nil {
				return fmt.Errorf("rbac: provision role %s: %w", seed.Name, err)
			}
			ids, err := permissionIDs(ctx, tx, seed.Permissions)
			if err != nil {
				return err
			}
			if _, err := tx.Exec(ctx, `INSERT INTO role_permissions (role_id, permission_id) SELECT $1, unnest($2::bigint[])`, roleID, ids); err != nil {
				return fmt.Errorf("rbac: provision grants %s: %w", seed.Name, err)
			}
		}
		return bumpVersion(ctx, tx, organizationID)
	})
}

// PermissionVersion returns the organization's grant version, zero when
// nothing was ever changed.
func (r *PGRepository) PermissionVersion(ctx context.Context, organizationID int64) (int64, error) {
	var version int64
	err := r.pool.QueryRow(ctx, `SELECT version FROM permission_versions WHERE organization_id = $1`, organizationID).Scan(&version)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return version, nil
}

const bumpVersionSQL = `INSERT INTO permission_versions (organization_id, version)
VALUES ($1, 1)
ON CONFLICT (organization_id) DO UPDATE SET version = permission_versions.version + 1, updated_at = NOW()`

func bumpVersion(ctx context.Context, tx pgx.Tx, organizationID int64) error {
	if _, err := tx.Exec(ctx, bumpVersionSQL, organizationID); err != nil {
		return fmt.Errorf("rbac: bump permission version: %w", err)
	}
	return nil
}

func bumpRoleVersion(ctx context.Context, tx pgx.Tx, roleID int64) error {
	var organizationID int64
	err := tx.QueryRow(ctx, `SELECT organization_id FROM roles WHERE id = $1`, roleID).Scan(&organizationID)
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("rbac: role organization: %w", err)
	}
	return bumpVersion(ctx, tx, organizationID)
}

func permissionIDs(ctx context.Context, tx pgx.Tx, names []string) ([]int64, error) {
	wanted := NewPermissionSet(names...).Names()
	if len(wanted) == 0 {
		return []int64{}, nil
	}
	rows, err := tx.Query(ctx, `SELECT id, name FROM permissions WHERE name = ANY($1)`, wanted)
	if err != nil {
		return nil, fmt.Errorf("rbac: resolve permissions: %w", err)
	}
	defer rows.Close()
	found := make(map[string]int64, len(wanted))
	for rows.Next() {
		var id int64
		var name string
		if err := rows.Scan(&id, &name); err != nil {
			return nil, err
		}
		found[name] = id
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	ids := make([]int64, 0, len(wanted))
	for _, name := range wanted {
		id, ok := found[name]
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrUnknownPermission, name)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func (r *PGRepository) queryNames(ctx context.Context, sql string, args ...any) ([]string, error) {
	rows, err := r.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	names, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, err
	}
	return names, nil
}

func (r *PGRepository) queryRoles(ctx context.Context, sql string, args ...any) ([]Role, error) {
	rows, err := r.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var roles []Role
	for rows.Next() {
		var role Role
		if err := rows.Scan(&role.ID, &role.OrganizationID, &role.Name, &role.Description, &role.IsActive, &role.CreatedAt, &role.UpdatedAt); err != nil {
			return nil, err
		}
		roles = append(roles, role)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return roles, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

var _ Repository = (*PGRepository)(nil)
