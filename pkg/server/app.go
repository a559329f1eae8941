package server

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"SonicTrader/pkg/config"
	xhttp "SonicTrader/pkg/http"
	applogger "SonicTrader/pkg/logger"
)

// Session is the trading session driven by the app lifecycle.
type Session interface {
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
}

// App encapsulates the process lifecycle: HTTP API, trading session and shutdown.
type App struct {
	cfg        *config.Config
	log        *applogger.Logger
	session    Session
	httpServer *xhttp.Server
}

// New creates a new App instance with all dependencies.
func New(cfg *config.Config, l *applogger.Logger, session Session, httpServer *xhttp.Server) *App {
	return &App{cfg: cfg, log: l, session: session, httpServer: httpServer}
}

// Run starts the application and blocks until ctx is done or a signal arrives.
func (a *App) Run(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := a.httpServer.Start(); err != nil {
		return err
	}

	if a.cfg.Trading.ManualStart {
		a.log.Info("trading session waits for POST /api/v1/session/start")
	} else if err := a.session.Start(ctx); err != nil {
		a.log.Error("trading session start failed", applogger.Error(err))
		return errors.Join(fmt.Errorf("start session: %w", err), a.shutdown())
	}

	<-ctx.Done()
	a.log.Info("shutdown signal received")
	return a.shutdown()
}

// shutdown stops the session first so no trade starts while the API goes away.
func (a *App) shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), a.shutdownTimeout())
	defer cancel()

	var errs []error
	if err := a.session.Stop(ctx); err != nil {
		a.log.Warn("trading session stop error", applogger.Error(err))
		errs = append(errs, err)
	}
	if err := a.httpServer.Stop(ctx); err != nil {
		a.log.Error("http shutdown error", applogger.Error(err))
		errs = append(errs, err)
	}

	a.log.Info("shutdown complete")
	return errors.Join(errs...)
}

func (a *App) shutdownTimeout() time.Duration {
	if d := a.cfg.Server.ShutdownTimeout; d > 0 {
		return d
	}
	return 15 * time.Second
}
