// Command portal-server serves the document portal HTTP API and the admin
// gRPC health endpoint.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/and161185/docportal/internal/access"
	"github.com/and161185/docportal/internal/config"
	"github.com/and161185/docportal/internal/errs"
	"github.com/and161185/docportal/internal/limiter"
	"github.com/and161185/docportal/internal/migrate"
	"github.com/and161185/docportal/internal/obs"
	"github.com/and161185/docportal/internal/registry"
	"github.com/and161185/docportal/internal/repository"
	"github.com/and161185/docportal/internal/repository/memory"
	"github.com/and161185/docportal/internal/repository/postgres"
	grpcserver "github.com/and161185/docportal/internal/server/grpc"
	"github.com/and161185/docportal/internal/server/httpapi"
	"github.com/and161185/docportal/internal/service"
	"github.com/and161185/docportal/internal/tokens"
)

var (
	version   = "dev"
	buildDate = "unknown"
)

func main() {
	cfg, err := config.Load(os.Args[1:])
	if errors.Is(err, flag.ErrHelp) {
		return
	}
	if err != nil {
		os.Exit(2)
	}

	logger := newLogger(cfg.Dev)
	defer func() { _ = logger.Sync() }()

	if err := cfg.Validate(); err != nil {
		logger.Fatal("invalid configuration", zap.Error(err))
	}
	logger.Info("starting",
		zap.String("version", version),
		zap.String("buildDate", buildDate),
		zap.String("addr", cfg.Addr),
		zap.String("credentials", cfg.Credentials),
		zap.String("limiter", cfg.Limiter),
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("server error", zap.Error(err))
		os.Exit(1)
	}
	logger.Info("shutdown complete")
}

func newLogger(dev bool) *zap.Logger {
	var (
		l   *zap.Logger
		err error
	)
	if dev {
		l, err = zap.NewDevelopment()
	} else {
		l, err = zap.NewProduction()
	}
	if err != nil {
		return zap.NewNop()
	}
	return l
}

func run(ctx context.Context, cfg config.Config, logger *zap.Logger) error {
	if cfg.Migrate {
		if err := migrate.Up(ctx, cfg.DSN); err != nil {
			return fmt.Errorf("migrate up: %w", err)
		}
	}

	db, err := postgres.New(ctx, cfg.DSN, int32(cfg.MaxConns))
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	users, err := buildUsers(ctx, cfg, db, logger)
	if err != nil {
		return err
	}
	docRepo := postgres.NewDocumentRepo(db)

	var lim limiter.Limiter
	switch cfg.Limiter {
	case config.BackendPostgres:
		lim = limiter.NewPG(db.Pool, cfg.LoginWindow, cfg.LoginMaxFails, cfg.LoginBlockFor)
	default:
		lim = limiter.NewMemory(cfg.LoginWindow, cfg.LoginMaxFails, cfg.LoginBlockFor)
	}

	reg := registry.NewMemory()
	signer := tokens.NewSigner([]byte(cfg.JWTKey), cfg.SessionTTL, cfg.ResourceTTL)
	sessions := service.NewSessionService(users, signer, reg, lim)
	docs := service.NewDocumentService(docRepo, users, access.NewPolicy(nil), sessions, signer, reg)

	metrics := obs.NewMetrics(reg.Len)
	api := httpapi.New(sessions, docs, docRepo, metrics, logger, httpapi.Options{
		AllowedOrigins: cfg.AllowedOrigins,
		MaxBodyBytes:   cfg.MaxBodyBytes,
		Version:        version,
	})

	go registry.RunSweeper(ctx, reg, cfg.SweepInterval, func(n int) {
		logger.Debug("registry sweep", zap.Int("removed", n))
	})

	httpSrv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           api.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	errCh := make(chan error, 2)
	go func() {
		logger.Info("http listening", zap.String("addr", cfg.Addr))
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("http: %w", err)
		}
	}()

	var admin *grpcserver.Admin
	if cfg.AdminAddr != "" {
		lis, err := net.Listen("tcp", cfg.AdminAddr)
		if err != nil {
			return fmt.Errorf("admin listen: %w", err)
		}
		admin = grpcserver.NewAdmin(db, logger, cfg.Dev)
		go admin.RunProber(ctx, 10*time.Second)
		go func() {
			logger.Info("admin grpc listening", zap.String("addr", cfg.AdminAddr))
			if err := admin.Serve(lis); err != nil {
				errCh <- fmt.Errorf("admin grpc: %w", err)
			}
		}()
	}

	var runErr error
	select {
	case <-ctx.Done():
	case runErr = <-errCh:
	}

	shCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownPeriod)
	defer cancel()
	if err := httpSrv.Shutdown(shCtx); err != nil {
		logger.Warn("http shutdown", zap.Error(err))
	}
	if admin != nil {
		admin.Shutdown(cfg.ShutdownPeriod)
	}
	return runErr
}

// buildUsers returns the configured credential store. Static accounts are
// hashed in memory; with -seed-users they are also written to portal_users.
func buildUsers(ctx context.Context, cfg config.Config, db *postgres.DB, logger *zap.Logger) (repository.UserRepository, error) {
	var static *memory.Users
	if cfg.Credentials == config.BackendStatic || cfg.SeedUsers {
		creds, err := memory.ParseCredentials(cfg.Users)
		if err != nil {
			return nil, fmt.Errorf("users: %w", err)
		}
		if static, err = memory.NewUsers(creds); err != nil {
			return nil, fmt.Errorf("users: %w", err)
		}
	}

	if cfg.Credentials != config.BackendPostgres {
		return static, nil
	}

	repo := postgres.NewUserRepo(db)
	if cfg.SeedUsers {
		for _, u := range static.All() {
			switch err := repo.Create(ctx, &u); {
			case err == nil:
				logger.Info("seeded user", zap.String("username", u.Username))
			case errors.Is(err, errs.ErrAlreadyExists):
				logger.Debug("user exists, not reseeded", zap.String("username", u.Username))
			default:
				return nil, fmt.Errorf("seed user %s: %w", u.Username, err)
			}
		}
	}
	return repo, nil
}
