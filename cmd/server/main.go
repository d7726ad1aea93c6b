package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/DoyleJ11/franchise-auction/internal/config"
	"github.com/DoyleJ11/franchise-auction/internal/engine"
	"github.com/DoyleJ11/franchise-auction/internal/httpapi"
	"github.com/DoyleJ11/franchise-auction/internal/hub"
	"github.com/DoyleJ11/franchise-auction/internal/logging"
	"github.com/DoyleJ11/franchise-auction/internal/roster"
	"github.com/DoyleJ11/franchise-auction/internal/session"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 10 * time.Second

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	rules, err := cfg.Rules()
	if err != nil {
		return err
	}

	log, err := logging.New(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	catalog, err := roster.LoadFile(cfg.RosterPath)
	if catalog == nil {
		return fmt.Errorf("roster %s: %w", cfg.RosterPath, err)
	}
	for _, bad := range multierr.Errors(err) {
		log.Warn("roster record skipped", zap.Error(bad))
	}
	log.Info("roster loaded", zap.String("path", cfg.RosterPath), zap.Int("players", catalog.Len()))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// The hub outlives the signal context; it is stopped after the server drains.
	h := hub.NewHub(context.Background(), hub.Config{
		Engine: engine.New(engine.Deps{Roster: catalog, Timing: cfg.Timing()}),
		Logger: log,
	})

	// Build the router *with* the hub injected
	srv := &http.Server{
		Addr: cfg.Addr,
		Handler: httpapi.SetupRoutes(httpapi.Deps{
			Hub:    h,
			Issuer: session.NewIssuer(cfg.SessionSecret, cfg.SessionTTL),
			Rules:  rules,
			Logger: log,
		}),
		ReadHeaderTimeout: 5 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("listening", zap.String("addr", cfg.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return multierr.Combine(
			srv.Shutdown(shutdownCtx),
			h.Shutdown(shutdownCtx),
		)
	})
	return g.Wait()
}
