package cli

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/odyssey-erp/odyssey-access/internal/access"
	"github.com/odyssey-erp/odyssey-access/internal/auth"
	"github.com/odyssey-erp/odyssey-access/internal/me"
	"github.com/odyssey-erp/odyssey-access/internal/shared"
	"github.com/odyssey-erp/odyssey-access/internal/tenant"
)

// Accounts looks up users by email.
type Accounts interface {
	FindByEmail(ctx context.Context, email string) (*auth.User, error)
}

// Reporter builds the access report of a grant.
type Reporter interface {
	Report(ctx context.Context, grant access.Grant) (me.AccessReport, error)
}

// Provisioner seeds the default roles of a tenant.
type Provisioner interface {
	ProvisionTenant(ctx context.Context, organizationID int64) error
}

// CatalogueSyncer upserts the permission catalogue.
type CatalogueSyncer interface {
	SyncCatalogue(ctx context.Context) (int, error)
}

// AccessCLI offers operational helpers around access control.
type AccessCLI struct {
	accounts    Accounts
	reporter    Reporter
	provisioner Provisioner
	catalogue   CatalogueSyncer
}

// NewAccessCLI constructs the helper. Every dependency is required.
func NewAccessCLI(accounts Accounts, reporter Reporter, provisioner Provisioner, catalogue CatalogueSyncer) (*AccessCLI, error) {
	if accounts == nil || reporter == nil || provisioner == nil || catalogue == nil {
		return nil, errors.New("access cli: missing dependency")
	}
	return &AccessCLI{accounts: accounts, reporter: reporter, provisioner: provisioner, catalogue: catalogue}, nil
}

// ExplainOptions defines the flags of access explain.
type ExplainOptions struct {
	Email          string
	OrganizationID int64
	JSONOutput     bool
	Stdout         io.Writer
	Stderr         io.Writer
}

// ExplainCommand prints what a user may do inside an organization. Denials
// exit with 3 so scripts can tell them apart from failures.
func (c *AccessCLI) ExplainCommand(ctx context.Context, opts ExplainOptions) int {
	opts.Stdout, opts.Stderr = writers(opts.Stdout, opts.Stderr)
	email := strings.TrimSpace(opts.Email)
	if email == "" {
		_, _ = fmt.Fprintln(opts.Stderr, "access explain: --email is required")
		return 1
	}
	if opts.OrganizationID < 0 {
		_, _ = fmt.Fprintln(opts.Stderr, "access explain: --org must be positive")
		return 1
	}
	user, err := c.accounts.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			_, _ = fmt.Fprintf(opts.Stderr, "access explain: no user with email %s\n", email)
			return 1
		}
		_, _ = fmt.Fprintf(opts.Stderr, "access explain: %v\n", err)
		return 1
	}
	principal := user.Principal()
	var requested *int64
	if opts.OrganizationID > 0 {
		requested = shared.OrgID(opts.OrganizationID)
	}
	scope, err := tenant.Resolve(principal, requested)
	if err != nil {
		_, _ = fmt.Fprintf(opts.Stderr, "access explain: denied: %v\n", err)
		return 3
	}
	report, err := c.reporter.Report(ctx, access.Grant{Principal: principal, Scope: scope})
	if err != nil {
		_, _ = fmt.Fprintf(opts.Stderr, "access explain: %v\n", err)
		return 1
	}
	if opts.JSONOutput {
		if err := json.NewEncoder(opts.Stdout).Encode(report); err != nil {
			_, _ = fmt.Fprintf(opts.Stderr, "access explain: encode json: %v\n", err)
			return 1
		}
		return 0
	}
	renderExplainHuman(opts.Stdout, email, scope, report)
	return 0
}

func renderExplainHuman(out io.Writer, email string, scope tenant.Scope, report me.AccessReport) {
	_, _ = fmt.Fprintf(out, "Access for %s (user %d) in %s\n", email, report.UserID, scope)
	if report.IsSuperAdmin {
		_, _ = fmt.Fprintln(out, "Platform super admin: every permission is granted.")
	}
	if len(report.Roles) > 0 {
		_, _ = fmt.Fprintf(out, "Roles: %s\n", strings.Join(report.Roles, ", "))
	}
	_, _ = fmt.Fprintf(out, "Enabled modules: %s\n", joinOrNone(report.EnabledModules))
	_, _ = fmt.Fprintf(out, "Accessible modules: %s\n", joinOrNone(report.Modules))
	_, _ = fmt.Fprintf(out, "%d permission(s):\n", len(report.Permissions))
	for _, name := range report.Permissions {
		_, _ = fmt.Fprintf(out, " - %s\n", name)
	}
}

// SeedOptions defines the flags of access seed.
type SeedOptions struct {
	OrganizationID int64
	Stdout         io.Writer
	Stderr         io.Writer
}

// SeedCommand provisions the default roles of an organization.
func (c *AccessCLI) SeedCommand(ctx context.Context, opts SeedOptions) int {
	opts.Stdout, opts.Stderr = writers(opts.Stdout, opts.Stderr)
	if opts.OrganizationID <= 0 {
		_, _ = fmt.Fprintln(opts.Stderr, "access seed: --org is required and must be positive")
		return 1
	}
	if err := c.provisioner.ProvisionTenant(ctx, opts.OrganizationID); err != nil {
		_, _ = fmt.Fprintf(opts.Stderr, "access seed: %v\n", err)
		return 1
	}
	_, _ = fmt.Fprintf(opts.Stdout, "Default roles provisioned for organization %d.\n", opts.OrganizationID)
	return 0
}

// CatalogueOptions defines the flags of access catalogue.
type CatalogueOptions struct {
	Stdout io.Writer
	Stderr io.Writer
}

// CatalogueCommand upserts every permission of the vocabulary.
func (c *AccessCLI) CatalogueCommand(ctx context.Context, opts CatalogueOptions) int {
	opts.Stdout, opts.Stderr = writers(opts.Stdout, opts.Stderr)
	n, err := c.catalogue.SyncCatalogue(ctx)
	if err != nil {
		_, _ = fmt.Fprintf(opts.Stderr, "access catalogue: %v\n", err)
		return 1
	}
	_, _ = fmt.Fprintf(opts.Stdout, "%d permission(s) synced.\n", n)
	return 0
}

// Run dispatches `access <command> [flags]`.
func (c *AccessCLI) Run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	stdout, stderr = writers(stdout, stderr)
	if len(args) == 0 {
		_, _ = fmt.Fprintln(stderr, "usage: access explain|seed|catalogue [flags]")
		return 2
	}
	switch args[0] {
	case "explain":
		fs := flag.NewFlagSet("access explain", flag.ContinueOnError)
		fs.SetOutput(stderr)
		opts := ExplainOptions{Stdout: stdout, Stderr: stderr}
		fs.StringVar(&opts.Email, "email", "", "user email")
		fs.Int64Var(&opts.OrganizationID, "org", 0, "organization id (super admins only may omit or vary it)")
		fs.BoolVar(&opts.JSONOutput, "json", false, "print JSON")
		if err := fs.Parse(args[1:]); err != nil {
			return 2
		}
		return c.ExplainCommand(ctx, opts)
	case "seed":
		fs := flag.NewFlagSet("access seed", flag.ContinueOnError)
		fs.SetOutput(stderr)
		opts := SeedOptions{Stdout: stdout, Stderr: stderr}
		fs.Int64Var(&opts.OrganizationID, "org", 0, "organization id")
		if err := fs.Parse(args[1:]); err != nil {
			return 2
		}
		return c.SeedCommand(ctx, opts)
	case "catalogue":
		return c.CatalogueCommand(ctx, CatalogueOptions{Stdout: stdout, Stderr: stderr})
	default:
		_, _ = fmt.Fprintf(stderr, "access: unknown command %q\n", args[0])
		return 2
	}
}

func writers(stdout, stderr io.Writer) (io.Writer, io.Writer) {
	if stdout == nil {
		stdout = os.Stdout
	}
	if stderr == nil {
		stderr = os.Stderr
	}
	return stdout, stderr
}

func joinOrNone(values []string) string {
	if len(values) == 0 {
		return "none"
	}
	return strings.Join(values, ", ")
}
