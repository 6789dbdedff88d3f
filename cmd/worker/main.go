package main

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"
	"go.uber.org/automaxprocs/maxprocs"
	"go.uber.org/zap"

	"printshop/internal/app"
	"printshop/internal/config"
	"printshop/internal/logger"
	"printshop/internal/queue"
)

// Worker consumes report archive requests, renders the PDF and stores it in
// the report bucket.
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

	if err := run(cfg, log); err != nil {
		log.Fatal("worker failed", zap.Error(err))
	}
	log.Info("worker stopped")
}

func run(cfg config.App, log *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	startCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	a, err := app.Open(startCtx, cfg, log)
	if err != nil {
		cancel()
		return err
	}
	defer a.Close()
	archivist, err := a.Archivist(startCtx)
	cancel()
	if err != nil {
		return err
	}
	mux := queue.Mux{queue.TypeArchiveReport: archivist.HandleMessage}

	if cfg.QueueBackend == "asynq" {
		srv := asynq.NewServer(a.AsynqRedis(), asynq.Config{
			Concurrency: cfg.WorkerPool,
			Logger:      logger.Component(log, "asynq").Sugar(),
			ErrorHandler: asynq.ErrorHandlerFunc(func(ctx context.Context, task *asynq.Task, err error) {
				log.Warn("task failed", zap.String("type", task.Type()), zap.Error(err))
			}),
		})
		if err := srv.Start(queue.NewServeMux(mux)); err != nil {
			return err
		}
		log.Info("worker started", zap.String("queue", "asynq"), zap.Int("concurrency", cfg.WorkerPool))
		<-ctx.Done()
		srv.Shutdown()
		return nil
	}

	consumer, err := a.Consumer()
	if err != nil {
		return err
	}
	log.Info("worker started, waiting for messages", zap.String("queue", cfg.QueueBackend))
	return queue.Drain(ctx, consumer, mux.Handle, logger.Component(log, "queue"))
}
