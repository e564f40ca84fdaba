package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	_ "time/tzdata"

	"seva-invoicing/internal/adapters/cli"
	"seva-invoicing/internal/bootstrap"
	"seva-invoicing/internal/config"
	"seva-invoicing/internal/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "config:", err)
		os.Exit(1)
	}
	// Command output goes to stdout; keep logs out of it.
	logCfg := cfg.GetLoggerConfig()
	if logCfg.Output == "stdout" {
		logCfg.Output = "stderr"
	}
	if err := logger.Setup(logCfg); err != nil {
		fmt.Fprintln(os.Stderr, "logger:", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	var rt *bootstrap.Runtime
	root := cli.NewLazyRootCommand(func(ctx context.Context, runMigrations bool) (*cli.Deps, error) {
		opened, err := bootstrap.Open(ctx, cfg, !runMigrations)
		if err != nil {
			return nil, fmt.Errorf("startup failed: %w", err)
		}
		rt = opened
		return &cli.Deps{Service: rt.Service, Migrate: rt.Migrate}, nil
	})

	err = root.ExecuteContext(ctx)
	if rt != nil {
		rt.Close()
	}
	if err != nil {
		os.Exit(1)
	}
}
