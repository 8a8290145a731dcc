package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/sz-labs/randombark/internal/app"
	"github.com/sz-labs/randombark/internal/config"
	"github.com/sz-labs/randombark/internal/httpserver"
	"github.com/sz-labs/randombark/internal/logger"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "randombark-server start failed: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	log, err := logger.Init(cfg)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer logger.Close()

	logger.InfoObj("randombark-server starting", "config", cfg)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	screen, err := app.NewScreen(ctx, cfg, log)
	if err != nil {
		logger.ErrorObj("failed to initialize screen", "error", err)
		return err
	}
	if err := screen.Attach(ctx); err != nil {
		return errors.Join(fmt.Errorf("attach screen: %w", err), screen.Close())
	}

	srv := httpserver.NewServer(cfg.APIAddr, screen, log)
	if err := srv.Start(); err != nil {
		return errors.Join(fmt.Errorf("start api server: %w", err), screen.Close())
	}

	<-ctx.Done()
	logger.InfoObj("randombark-server shutting down", "reason", context.Cause(ctx))

	if err := srv.Stop(context.Background()); err != nil {
		logger.WarnObj("stop api server", "error", err)
	}
	// Let in-flight fetches land so their terminal states reach the sinks.
	screen.Wait()
	var errs []error
	if err := screen.Detach(); err != nil {
		errs = append(errs, fmt.Errorf("detach screen: %w", err))
	}
	if err := screen.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close screen: %w", err))
	}
	return errors.Join(errs...)
}
