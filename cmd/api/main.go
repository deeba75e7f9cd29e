package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	_ "github.com/joho/godotenv/autoload"
	"go.uber.org/zap"

	"github.com/fdg312/coach-nutrition/internal/config"
	"github.com/fdg312/coach-nutrition/internal/dbmigrate"
	"github.com/fdg312/coach-nutrition/internal/httpserver"
	"github.com/fdg312/coach-nutrition/internal/logging"
)

const shutdownTimeout = 15 * time.Second

func main() {
	cfg := config.Load()

	logger, err := logging.New(cfg.LogLevel, cfg.Env)
	if err != nil {
		fmt.Fprintf(os.Stderr, "init logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	if err := run(cfg, logger); err != nil {
		logger.Fatal("api stopped", zap.Error(err))
	}
}

func run(cfg *config.Config, logger *zap.Logger) error {
	for _, w := range cfg.Warnings {
		logger.Warn("config fallback", zap.String("detail", w))
	}
	logStartupBanner(cfg, logger)

	if err := validateProductionConfig(cfg); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.RunMigrationsOnStartup {
		target, err := dbmigrate.SelectTarget(cfg, true)
		if err != nil {
			return fmt.Errorf("startup migrations: %w", err)
		}

		logger.Info("startup migrations", zap.String("command", "up"), zap.String("using", target.Source))
		if err := dbmigrate.Run(ctx, logger, "up", target.URL, dbmigrate.DefaultMigrationsDir); err != nil {
			return fmt.Errorf("startup migrations failed: %w", err)
		}
		logger.Info("startup migrations completed")
	}

	server, err := httpserver.New(cfg, logger)
	if err != nil {
		return err
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start()
	}()

	select {
	case err := <-errCh:
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		server.Shutdown(shutdownCtx)
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down", zap.Duration("timeout", shutdownTimeout))
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil && !errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("shutdown: %w", err)
	}
	logger.Info("shutdown complete")
	return nil
}

// logStartupBanner logs a one-time summary of the resolved configuration.
// Secrets are only reported as "set" / "not set".
func logStartupBanner(cfg *config.Config, logger *zap.Logger) {
	logger.Info("coach nutrition api",
		zap.String("env", cfg.Env),
		zap.Int("port", cfg.Port),
		zap.String("log_level", cfg.LogLevel))

	logger.Info("database",
		zap.String("runtime_url", describeDBURL(cfg.DatabaseURL, cfg.DatabaseURLPooled)),
		zap.String("pooled", setOrNot(cfg.DatabaseURLPooled)),
		zap.String("direct", setOrNot(cfg.DatabaseURLDirect)),
		zap.Bool("migrations_on_startup", cfg.RunMigrationsOnStartup))

	logger.Info("auth",
		zap.String("auth_mode", cfg.AuthMode),
		zap.Bool("auth_required", cfg.AuthRequired),
		zap.String("jwt_secret", secretStatus(cfg.JWTSecret, "change_me")),
		zap.Int("jwt_ttl_minutes", cfg.JWTTTLMinutes))

	blobFields := []zap.Field{zap.String("blob_mode", cfg.Blob.Mode)}
	if cfg.Blob.Mode == config.BlobModeLocal {
		blobFields = append(blobFields, zap.String("local_dir", cfg.Blob.LocalDir))
	} else {
		blobFields = append(blobFields, zap.String("s3", cfg.Blob.S3.DiagnosticsSummary()))
	}
	logger.Info("blob", blobFields...)

	logger.Info("nutrition",
		zap.Duration("snapshot_interval", cfg.Nutrition.SnapshotInterval),
		zap.Int("meal_lookup_batch_size", cfg.Nutrition.MealLookupBatchSize),
		zap.Int("meal_lookup_concurrency", cfg.Nutrition.MealLookupConcurrency),
		zap.String("plan_timezone", cfg.Nutrition.PlanTimezone.String()))
}

// validateProductionConfig performs checks that only matter in non-local envs,
// plus S3 completeness when S3 is forced.
func validateProductionConfig(cfg *config.Config) error {
	isProd := cfg.Env == "production" || cfg.Env == "prod" || cfg.Env == "staging"

	if cfg.Blob.Mode == config.BlobModeS3 {
		if missing := cfg.Blob.S3.MissingRequired(); len(missing) > 0 {
			return fmt.Errorf("blob: BLOB_MODE is 's3' but S3 config is incomplete, missing: %s", strings.Join(missing, ", "))
		}
	}

	if isProd && cfg.AuthRequired && cfg.JWTSecret == "change_me" {
		return fmt.Errorf("auth: JWT_SECRET must not be 'change_me' in %s with AUTH_REQUIRED=1", cfg.Env)
	}

	if isProd && cfg.AuthMode == config.AuthModeDev && !cfg.AuthRequired {
		return fmt.Errorf("auth: AUTH_MODE=dev without AUTH_REQUIRED lets any caller act as any client in %s", cfg.Env)
	}

	if isProd && cfg.DatabaseURL == "" {
		return fmt.Errorf("db: no DATABASE_URL configured in %s", cfg.Env)
	}
	return nil
}

// ---- helpers (no secrets) ----

func setOrNot(v string) string {
	if strings.TrimSpace(v) == "" {
		return "not set"
	}
	return "set"
}

func secretStatus(v, insecureDefault string) string {
	v = strings.TrimSpace(v)
	if v == "" {
		return "not set"
	}
	if v == insecureDefault {
		return fmt.Sprintf("set (DEFAULT, insecure '%s')", insecureDefault)
	}
	return "set (custom)"
}

func describeDBURL(runtime, pooled string) string {
	if runtime == "" {
		return "not set (will use in-memory storage)"
	}
	if pooled != "" && runtime == pooled {
		return "set (via DATABASE_URL_POOLED)"
	}
	return "set"
}
