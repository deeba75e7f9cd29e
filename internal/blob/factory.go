package blob

import (
	"context"
	"fmt"
	"strings"

	appcfg "github.com/fdg312/coach-nutrition/internal/config"
	"go.uber.org/zap"
)

// NewBlobStore builds a blob store using mode local|s3|auto. Auto mode falls
// back to the local store when S3 is not configured or fails to initialize.
func NewBlobStore(cfg appcfg.BlobConfig, logger *zap.Logger) (Store, string, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	mode := strings.ToLower(strings.TrimSpace(cfg.Mode))
	if mode == "" {
		mode = appcfg.BlobModeLocal
	}

	switch mode {
	case appcfg.BlobModeLocal:
		logger.Info("blob store selected", zap.String("mode", "local"), zap.String("reason", "forced"))
		return newLocal(cfg)

	case appcfg.BlobModeAuto:
		if !cfg.S3.IsConfigured() {
			level, code, msg := cfg.S3.Diagnostics()
			fields := []zap.Field{zap.String("code", code), zap.String("summary", cfg.S3.DiagnosticsSummary())}
			if level == "warn" {
				logger.Warn("blob.s3 "+msg, fields...)
			} else {
				logger.Info("blob.s3 "+msg, fields...)
			}
			logger.Info("blob store selected", zap.String("mode", "local"), zap.String("reason", "auto, S3 not configured"))
			return newLocal(cfg)
		}

		store, err := NewS3Store(context.Background(), cfg.S3)
		if err != nil {
			logger.Warn("blob.s3 init failed, fallback to local", zap.Error(err))
			return newLocal(cfg)
		}

		logger.Info("blob store selected", zap.String("mode", "s3"), zap.String("reason", "auto, configured"),
			zap.String("summary", cfg.S3.DiagnosticsSummary()))
		return store, appcfg.BlobModeS3, nil

	case appcfg.BlobModeS3:
		if !cfg.S3.IsConfigured() {
			missing := cfg.S3.MissingRequired()
			logger.Error("blob.s3 config incomplete",
				zap.String("code", "s3_config_incomplete"),
				zap.Strings("missing", missing),
				zap.String("summary", cfg.S3.DiagnosticsSummary()))
			return nil, "", fmt.Errorf("BLOB_MODE=s3 requested but missing required config: %s", strings.Join(missing, ", "))
		}

		store, err := NewS3Store(context.Background(), cfg.S3)
		if err != nil {
			return nil, "", fmt.Errorf("BLOB_MODE=s3 init failed: %w", err)
		}

		logger.Info("blob store selected", zap.String("mode", "s3"), zap.String("reason", "forced"),
			zap.String("summary", cfg.S3.DiagnosticsSummary()))
		return store, appcfg.BlobModeS3, nil

	default:
		return nil, "", fmt.Errorf("unsupported blob mode: %s", mode)
	}
}

func newLocal(cfg appcfg.BlobConfig) (Store, string, error) {
	store, err := NewLocalStore(cfg.LocalDir)
	if err != nil {
		return nil, "", err
	}
	return store, appcfg.BlobModeLocal, nil
}
