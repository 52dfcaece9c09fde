package server

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"FlareCast/internal/handler/api"
	internalrepo "FlareCast/internal/repository"
	pkgch "FlareCast/pkg/clickhouse"
	"FlareCast/pkg/config"
	xhttp "FlareCast/pkg/http"
	applogger "FlareCast/pkg/logger"
)

// App encapsulates the entire application lifecycle.
type App struct {
	cfg        *config.Config
	l          *applogger.Logger
	handler    *api.FlareHandler
	live       *api.LiveHub
	alerts     *internalrepo.KafkaAlertPublisher
	chClient   *pkgch.Client
	httpServer *xhttp.Server
}

// New creates a new App instance with all dependencies.
func New(
	cfg *config.Config,
	l *applogger.Logger,
	handler *api.FlareHandler,
	live *api.LiveHub,
	alerts *internalrepo.KafkaAlertPublisher,
	chClient *pkgch.Client,
) *App {
	return &App{
		cfg:      cfg,
		l:        l,
		handler:  handler,
		live:     live,
		alerts:   alerts,
		chClient: chClient,
	}
}

// Run starts the HTTP server and blocks until interrupted.
func (a *App) Run() error {
	a.httpServer = xhttp.NewServer(a.handler,
		xhttp.WithPort(a.cfg.Server.Port),
		xhttp.WithTimeouts(a.cfg.Server.ReadTimeout, a.cfg.Server.WriteTimeout, a.cfg.Server.ShutdownTimeout),
		xhttp.WithCORSOrigins(a.cfg.API.CORSOrigins),
	)

	if err := a.httpServer.Start(); err != nil {
		a.l.Error("http server start error", applogger.Error(err))
		return err
	}
	a.l.Info("server started",
		applogger.Int("port", a.cfg.Server.Port),
		applogger.String("environment", a.cfg.Environment),
		applogger.String("auth_mode", a.cfg.Auth.Mode),
	)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	a.l.Info("shutdown signal received")
	return a.shutdown()
}

// shutdown gracefully stops all services.
func (a *App) shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), a.cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := a.httpServer.Stop(ctx); err != nil {
		a.l.Error("http shutdown error", applogger.Error(err))
	}

	if a.live != nil {
		if err := a.live.Close(); err != nil {
			a.l.Warn("live hub close error", applogger.Error(err))
		}
	}

	if a.alerts != nil {
		if err := a.alerts.Close(); err != nil {
			a.l.Warn("kafka publisher close error", applogger.Error(err))
		}
	}

	if a.chClient != nil {
		if err := a.chClient.Close(); err != nil {
			a.l.Warn("clickhouse close error", applogger.Error(err))
		}
	}

	a.l.Info("shutdown complete")
	return nil
}
