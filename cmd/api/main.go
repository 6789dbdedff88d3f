package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/automaxprocs/maxprocs"
	"go.uber.org/zap"

	"printshop/internal/app"
	"printshop/internal/config"
	"printshop/internal/httpapi"
	"printshop/internal/logger"
	"printshop/internal/queue"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}
	log, err := logger.New(cfg.Env, cfg.LogLevel)
	if err != nil {
		panic(err)
	}
	defer func() { _ = log.Sync() }()

	if _, err := maxprocs.Set(maxprocs.Logger(log.Sugar().Infof)); err != nil {
		log.Warn("failed to set GOMAXPROCS", zap.Error(err))
	}

	if cfg.Production() {
		gin.SetMode(gin.ReleaseMode)
	}

	if err := runHTTP(cfg, log); err != nil {
		log.Fatal("http server failed", zap.Error(err))
	}
}

func runHTTP(cfg config.App, log *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	startCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	a, err := app.Open(startCtx, cfg, log)
	cancel()
	if err != nil {
		return err
	}
	defer a.Close()

	publisher, inProcess, err := a.Publisher()
	if err != nil {
		return err
	}
	if inProcess != nil {
		// With the in-memory queue there is no separate worker, so archive
		// requests are handled here or not at all.
		archivist, err := a.Archivist(ctx)
		if err != nil {
			log.Warn("report archiving disabled", zap.Error(err))
			publisher = nil
		} else {
			mux := queue.Mux{queue.TypeArchiveReport: archivist.HandleMessage}
			go func() {
				if err := queue.Drain(ctx, inProcess, mux.Handle, logger.Component(log, "queue")); err != nil {
					log.Error("in-process queue stopped", zap.Error(err))
				}
			}()
		}
	}

	r := httpapi.NewRouter(httpapi.Deps{
		Config:       cfg,
		Logger:       log,
		Metrics:      a.Metrics,
		Gatherer:     a.Registry,
		Certificates: a.Certificates,
		Careers:      a.Careers,
		Shop:         a.Shop,
		Auth:         a.Auth,
		Renderer:     a.Renderer,
		Archive:      publisher,
		Health:       a.HealthChecks(),
	})

	srv := &http.Server{
		Addr:        ":" + cfg.HTTPPort,
		Handler:     r,
		ReadTimeout: 15 * time.Second,
		// No write timeout: the certificate stream stays open.
		IdleTimeout: 60 * time.Second,
		// Requests inherit the signal context so open streams end on shutdown.
		BaseContext: func(net.Listener) context.Context { return ctx },
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("starting server", zap.String("addr", srv.Addr), zap.String("store", cfg.StoreBackend),
			zap.String("counter", cfg.CounterBackend), zap.String("queue", cfg.QueueBackend))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	log.Info("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Warn("server forced shutdown", zap.Error(err))
	}
	log.Info("server exited")
	return nil
}
