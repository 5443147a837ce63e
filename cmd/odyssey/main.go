package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"

	"github.com/odyssey-erp/odyssey-access/cmd/odyssey/cli"
	"github.com/odyssey-erp/odyssey-access/internal/access"
	"github.com/odyssey-erp/odyssey-access/internal/app"
	"github.com/odyssey-erp/odyssey-access/internal/audit"
	audithttp "github.com/odyssey-erp/odyssey-access/internal/audit/http"
	"github.com/odyssey-erp/odyssey-access/internal/auth"
	"github.com/odyssey-erp/odyssey-access/internal/me"
	"github.com/odyssey-erp/odyssey-access/internal/observability"
	"github.com/odyssey-erp/odyssey-access/internal/orgs"
	"github.com/odyssey-erp/odyssey-access/internal/platform/cache"
	"github.com/odyssey-erp/odyssey-access/internal/platform/db"
	"github.com/odyssey-erp/odyssey-access/internal/rbac"
	"github.com/odyssey-erp/odyssey-access/internal/roles"
	"github.com/odyssey-erp/odyssey-access/internal/shared"
	"github.com/odyssey-erp/odyssey-access/internal/tenant"
	"github.com/odyssey-erp/odyssey-access/internal/users"
	"github.com/odyssey-erp/odyssey-access/jobs"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping runtime startup")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := app.NewLogger(cfg)

	dbpool, err := db.New(ctx, cfg.PGDSN, db.PoolOptions{MaxConns: cfg.PGMaxConns})
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer dbpool.Close()

	redisOpts := cache.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword, DB: cfg.RedisDB}
	redisClient, err := cache.New(ctx, redisOpts)
	if err != nil {
		// Rate limiting state, the audit queue and job inspection all live in Redis.
		logger.Error("connect redis", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	permissionCache := rbac.NewPermissionCache(redisClient, cfg.PermissionCacheTTL, cfg.PermissionCacheSize, logger)
	rbacService := rbac.NewService(rbac.NewRepository(dbpool), permissionCache)
	tenantStore := tenant.NewPGStore(dbpool)
	authRepo := auth.NewRepository(dbpool)

	metrics := observability.NewMetrics()

	var auditRecorder shared.AuditRecorder = shared.NewAuditLogger(dbpool)
	if cfg.AuditAsync {
		queueClient, err := jobs.NewClient(cache.AsynqOpt(redisOpts))
		if err != nil {
			logger.Error("init job client", slog.Any("error", err))
			os.Exit(1)
		}
		defer func() {
			if err := queueClient.Close(); err != nil {
				logger.Warn("job client close", slog.Any("error", err))
			}
		}()
		auditRecorder = jobs.NewAuditPublisher(queueClient)
	}

	gate := access.NewGate(access.GateConfig{
		Principals:  auth.NewTokenVerifier(cfg.JWTSecret, cfg.JWTIssuer),
		Permissions: rbacService,
		Logger:      logger,
		Audit:       auditRecorder,
		Observer:    metrics,
	})
	guard := access.Middleware{Gate: gate, Idempotency: shared.NewIdempotencyStore(dbpool)}

	authService := auth.NewService(authRepo, auth.NewTokenIssuer(cfg.JWTSecret, cfg.JWTIssuer, cfg.JWTTTL))
	authHandler := auth.NewHandler(logger, authService)

	usersService := users.NewService(users.NewRepository(dbpool))
	usersHandler := users.NewHandler(logger, usersService, guard)

	rolesService := roles.NewService(rbacService, usersService, auditRecorder, logger)
	rolesHandler := roles.NewHandler(logger, rolesService, guard)
	permissionsHandler := roles.NewPermissionsHandler(logger, rolesService, guard)

	orgsService := orgs.NewService(tenantStore, rbacService, auditRecorder, logger)
	orgsHandler := orgs.NewHandler(logger, orgsService, guard)

	auditHandler := audithttp.NewHandler(logger, audit.NewService(audit.NewRepository(dbpool)), guard)

	meHandler := me.NewHandler(logger, rbacService, tenantStore, guard)

	if len(os.Args) > 1 {
		code := runCommand(ctx, os.Args[1:], redisOpts, authRepo, meHandler, rbacService)
		dbpool.Close()
		os.Exit(code)
	}

	inspector := asynq.NewInspector(cache.AsynqOpt(redisOpts))
	defer func() {
		if err := inspector.Close(); err != nil {
			logger.Warn("inspector close", slog.Any("error", err))
		}
	}()
	jobHandler := jobs.NewHandler(inspector, logger)

	router := app.NewRouter(app.RouterParams{
		Logger:             logger,
		Config:             cfg,
		Access:             guard,
		AuthHandler:        authHandler,
		MeHandler:          meHandler,
		RolesHandler:       rolesHandler,
		PermissionsHandler: permissionsHandler,
		UsersHandler:       usersHandler,
		OrgsHandler:        orgsHandler,
		AuditHandler:       auditHandler,
		JobHandler:         jobHandler,
		Metrics:            metrics,
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	go func() {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown", slog.Any("error", err))
	}
}

// runCommand executes `odyssey access ...` or `odyssey jobs ...` and returns the exit code.
func runCommand(ctx context.Context, args []string, redisOpts cache.Options, accounts cli.Accounts, reporter cli.Reporter, rbacService *rbac.Service) int {
	switch args[0] {
	case "access":
		accessCLI, err := cli.NewAccessCLI(accounts, reporter, rbacService, rbacService)
		if err != nil {
			slog.Default().Error("init access cli", slog.Any("error", err))
			return 1
		}
		return accessCLI.Run(ctx, args[1:], os.Stdout, os.Stderr)
	case "jobs":
		jobsCLI := cli.NewJobsCLI(cache.AsynqOpt(redisOpts))
		defer func() { _ = jobsCLI.Close() }()
		return jobsCLI.Run(ctx, args[1:], os.Stdout, os.Stderr)
	default:
		_, _ = os.Stderr.WriteString("usage: odyssey [access|jobs] ...\n")
		return 2
	}
}
