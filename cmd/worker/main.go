package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/jwalitptl/physio-api/internal/config"
	"github.com/jwalitptl/physio-api/internal/handler/health"
	promhandler "github.com/jwalitptl/physio-api/internal/handler/prometheus"
	"github.com/jwalitptl/physio-api/internal/repository/postgres"
	"github.com/jwalitptl/physio-api/internal/service/audit"
	"github.com/jwalitptl/physio-api/internal/service/event"
	internalworker "github.com/jwalitptl/physio-api/internal/worker"
	"github.com/jwalitptl/physio-api/pkg/logger"
	"github.com/jwalitptl/physio-api/pkg/messaging/redis"
	"github.com/jwalitptl/physio-api/pkg/metrics"
	"github.com/jwalitptl/physio-api/pkg/worker"
)

func main() {
	var configPath, healthAddr string

	cmd := &cobra.Command{
		Use:           "physio-worker",
		Short:         "Relay outbox events to Redis and enforce audit retention",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd.Context(), configPath, healthAddr)
		},
	}
	cmd.Flags().StringVar(&configPath, "config", "", "path to config file")
	cmd.Flags().StringVar(&healthAddr, "health-addr", ":8081", "address for health and metrics endpoints")

	if err := cmd.Execute(); err != nil {
		log.Error().Err(err).Msg("worker failed")
		os.Exit(1)
	}
}

func run(ctx context.Context, configPath, healthAddr string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	l := logger.New(logger.Config{Level: cfg.Log.Level, Pretty: cfg.Log.Pretty, Service: "physio-worker"})
	hostname, _ := os.Hostname()
	l = l.WithFields(map[string]interface{}{"worker_id": fmt.Sprintf("%s-%d", hostname, os.Getpid())})

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := postgres.NewDB(ctx, cfg.Database.ToPostgresConfig())
	if err != nil {
		return err
	}
	defer db.Close()

	broker, err := redis.NewRedisBroker(ctx, cfg.Redis.ToBrokerConfig(), l.ZL)
	if err != nil {
		return err
	}
	defer broker.Close()

	reg := prometheus.NewRegistry()
	m := metrics.NewMetrics(reg, "physio")

	base := postgres.NewBaseRepository(db)
	outboxRepo := postgres.NewOutboxRepository(base)

	processor := worker.NewOutboxProcessor(outboxRepo, broker, cfg.Outbox.ToWorkerConfig(cfg.Redis.Channel), l, m)
	cleanup := internalworker.NewAuditCleanupWorker(
		audit.NewService(postgres.NewAuditRepository(base)),
		event.NewEventService(outboxRepo),
		cfg.Audit.RetentionDays,
		cfg.Audit.CleanupInterval,
		l.ZL,
		m,
	)

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	engine := gin.New()
	health.NewHandler(db).RegisterRoutes(engine)
	engine.GET("/metrics", promhandler.New(reg, "physio_worker").Handler())
	srv := &http.Server{Addr: healthAddr, Handler: engine, ReadHeaderTimeout: 5 * time.Second}

	var wg sync.WaitGroup
	wg.Add(3)
	go func() {
		defer wg.Done()
		processor.Start(ctx)
	}()
	go func() {
		defer wg.Done()
		cleanup.Start(ctx)
	}()
	go func() {
		defer wg.Done()
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			l.Error(err, "health server failed")
			stop()
		}
	}()

	<-ctx.Done()
	l.Info("shutting down worker")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = srv.Shutdown(shutdownCtx)
	wg.Wait()
	return nil
}
