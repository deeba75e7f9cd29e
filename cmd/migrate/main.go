package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	_ "github.com/joho/godotenv/autoload"
	"go.uber.org/zap"

	"github.com/fdg312/coach-nutrition/internal/config"
	"github.com/fdg312/coach-nutrition/internal/dbmigrate"
	"github.com/fdg312/coach-nutrition/internal/logging"
)

func main() {
	if len(os.Args) < 2 {
		fmt.Fprintf(os.Stderr, "usage: go run ./cmd/migrate [%s]\n", strings.Join(dbmigrate.Commands, "|"))
		os.Exit(2)
	}
	command := os.Args[1]

	cfg := config.Load()
	logger, err := logging.New(cfg.LogLevel, cfg.Env)
	if err != nil {
		fmt.Fprintf(os.Stderr, "init logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	if !dbmigrate.ValidCommand(command) {
		logger.Fatal("unsupported command", zap.String("command", command), zap.Strings("allowed", dbmigrate.Commands))
	}

	target, err := dbmigrate.SelectTarget(cfg, false)
	if err != nil {
		logger.Fatal("select database url", zap.Error(err))
	}
	if target.Warning != "" {
		logger.Warn("migrate", zap.String("warning", target.Warning))
	}
	logger.Info("migrate", zap.String("command", command), zap.String("using", target.Source))

	if err := dbmigrate.Run(context.Background(), logger, command, target.URL, dbmigrate.DefaultMigrationsDir); err != nil {
		logger.Fatal("migrate failed", zap.Error(err))
	}

	logger.Info("migrate completed", zap.String("command", command))
}
