package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/sz-labs/randombark/internal/app"
	"github.com/sz-labs/randombark/internal/config"
	"github.com/sz-labs/randombark/internal/httpserver"
	"github.com/sz-labs/randombark/internal/logger"
	"github.com/sz-labs/randombark/internal/tui"
	"golang.org/x/sync/errgroup"
)

// tuiLogFile receives logs while the terminal belongs to the UI.
const tuiLogFile = "randombark.log"

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "randombark failed: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if cfg.LogOutput == "" || cfg.LogOutput == "stdout" {
		cfg.LogOutput = tuiLogFile
	}

	log, err := logger.Init(cfg)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer logger.Close()

	logger.InfoObj("randombark starting", "config", cfg)

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
	defer func() {
		if err := screen.Detach(); err != nil {
			logger.WarnObj("detach screen", "error", err)
		}
		if err := screen.Close(); err != nil {
			logger.WarnObj("close screen", "error", err)
		}
	}()

	model, err := tui.NewModel(screen)
	if err != nil {
		return fmt.Errorf("subscribe terminal view: %w", err)
	}
	defer model.Close()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	g, gctx := errgroup.WithContext(ctx)

	if cfg.APIAddr != "" {
		srv := httpserver.NewServer(cfg.APIAddr, screen, log)
		if err := srv.Start(); err != nil {
			return fmt.Errorf("start api server: %w", err)
		}
		g.Go(func() error {
			<-gctx.Done()
			return srv.Stop(context.Background())
		})
	}

	g.Go(func() error {
		defer cancel()
		program := tea.NewProgram(model, tea.WithAltScreen(), tea.WithContext(gctx))
		if _, err := program.Run(); err != nil && !errors.Is(err, tea.ErrProgramKilled) {
			return fmt.Errorf("run terminal view: %w", err)
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		return err
	}
	logger.InfoObj("randombark stopped", "reason", context.Cause(ctx))
	return nil
}
