package server

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"HistPull/internal/domain/repository"
	"HistPull/internal/scheduler"
	"HistPull/internal/service/archiver"
	"HistPull/pkg/cache"
	pkgch "HistPull/pkg/clickhouse"
	"HistPull/pkg/config"
	xhttp "HistPull/pkg/http"
	pkgkafka "HistPull/pkg/kafka"
	"HistPull/pkg/logger"
	"HistPull/pkg/queue"
)

// App encapsulates the server lifecycle: job queue, scheduler and HTTP
// listener on the way up, the reverse on the way down, infrastructure
// clients closed last.
type App struct {
	cfg     *config.Config
	log     *logger.Logger
	handler xhttp.Handler
	server  *xhttp.Server

	queue *queue.RedisQueue
	sched *scheduler.Scheduler

	archive  *archiver.Client
	chClient *pkgch.Client
	producer *pkgkafka.Producer
	store    cache.Service
	recorder repository.Recorder
}

// New creates the application. queue, sched, chClient and producer may
// be nil when the matching subsystem is disabled.
func New(
	cfg *config.Config,
	log *logger.Logger,
	handler xhttp.Handler,
	q *queue.RedisQueue,
	sched *scheduler.Scheduler,
	archive *archiver.Client,
	chClient *pkgch.Client,
	producer *pkgkafka.Producer,
	store cache.Service,
	recorder repository.Recorder,
) *App {
	return &App{
		cfg:      cfg,
		log:      log,
		handler:  handler,
		queue:    q,
		sched:    sched,
		archive:  archive,
		chClient: chClient,
		producer: producer,
		store:    store,
		recorder: recorder,
	}
}

// Run starts the application and blocks until interrupted.
func (a *App) Run() error {
	a.server = xhttp.NewServer(a.handler,
		xhttp.WithPort(a.cfg.Server.Port),
		xhttp.WithTimeouts(a.cfg.Server.ReadTimeout, a.cfg.Server.WriteTimeout, a.cfg.Server.ShutdownTimeout),
		xhttp.WithMetrics(a.cfg.Metrics.Enabled, a.cfg.Metrics.Path),
		xhttp.WithLogger(a.log),
	)

	if a.producer != nil && a.cfg.Kafka.LogTopic != "" {
		a.log.AddCollector(&logger.CollectionConfig{
			TimeInterval:   30 * time.Second,
			CountThreshold: 100,
			Topic:          a.cfg.Kafka.LogTopic,
			Publisher:      a.producer,
		})
		a.log.Info("log digests enabled", logger.String("topic", a.cfg.Kafka.LogTopic))
	}

	if a.queue != nil {
		if err := a.queue.Start(); err != nil {
			return fmt.Errorf("job queue: %w", err)
		}
		a.log.Info("job queue started", logger.Int("workers", a.cfg.Jobs.Workers))
	}

	if a.sched != nil {
		a.sched.Start()
		a.log.Info("scheduler started", logger.Int("jobs", len(a.cfg.Scheduler.Jobs)))
	}

	if err := a.server.Start(); err != nil {
		return fmt.Errorf("http server: %w", err)
	}
	a.log.Info("http server listening",
		logger.Int("port", a.cfg.Server.Port),
		logger.String("env", a.cfg.Environment),
	)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	a.log.Info("shutdown signal received")
	return a.shutdown()
}

// shutdown stops accepting new work first, drains what is running, and
// only then closes the infrastructure clients.
func (a *App) shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), a.cfg.Server.ShutdownTimeout)
	defer cancel()

	if a.sched != nil {
		if err := a.sched.Stop(ctx); err != nil {
			a.log.Warn("scheduler stop", logger.Error(err))
		}
	}

	if a.queue != nil {
		if err := a.queue.Stop(ctx); err != nil {
			a.log.Warn("job queue stop", logger.Error(err))
		}
	}

	if err := a.server.Stop(ctx); err != nil {
		a.log.Error("http shutdown", logger.Error(err))
	}

	a.closeClients()
	a.log.Info("shutdown complete")
	return nil
}

func (a *App) closeClients() {
	// Flush pending log digests while the producer is still open.
	a.log.RemoveCollector()

	if a.archive != nil {
		if err := a.archive.Close(); err != nil {
			a.log.Warn("archive client close", logger.Error(err))
		}
	}
	if a.chClient != nil {
		if err := a.chClient.Close(); err != nil {
			a.log.Warn("clickhouse close", logger.Error(err))
		}
	}
	if a.producer != nil {
		if err := a.producer.Close(); err != nil {
			a.log.Warn("kafka producer close", logger.Error(err))
		}
	}
	if a.recorder != nil {
		if err := a.recorder.Close(); err != nil {
			a.log.Warn("recorder close", logger.Error(err))
		}
	}
	if c, ok := a.store.(io.Closer); ok {
		if err := c.Close(); err != nil {
			a.log.Warn("cache close", logger.Error(err))
		}
	}
}
