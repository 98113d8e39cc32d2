package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/aeroreserva/flighthub/internal/config"
	"github.com/aeroreserva/flighthub/internal/db"
	"github.com/aeroreserva/flighthub/internal/notifications"
	"github.com/aeroreserva/flighthub/internal/observability"
	"github.com/aeroreserva/flighthub/internal/queue/redisclient"
	"github.com/aeroreserva/flighthub/internal/queue/worker"
	"github.com/aeroreserva/flighthub/internal/repo/postgres"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func main() {
	cfg := config.Load()

	log := observability.NewLogger(cfg.Env)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pool, err := db.NewPool(ctx, log, cfg.DBURL)

	if err != nil {
		log.Error("db connect failed", "err", err)
		os.Exit(1)
	}

	defer pool.Close()

	promReg := prometheus.NewRegistry()
	prom := observability.NewProm(promReg)

	jobsRepo := postgres.NewJobsRepo(pool, prom)
	notifier := notifications.NewLogNotifier()

	host, _ := os.Hostname()
	workerID := host + "-" + strconv.Itoa(os.Getpid())

	w := worker.New(worker.Config{
		PollInterval:  500 * time.Millisecond,
		WorkerID:      workerID,
		ShutdownGrace: 10 * time.Second,
	}, jobsRepo, notifier, log).WithMetrics(prom)

	// redis wake lets the worker pick up fresh jobs without waiting out the
	// poll interval; without redis it degrades to plain polling
	redis := redisclient.New(redisclient.Config{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	defer redis.Close()

	if err := redis.Ping(ctx); err != nil {
		log.Warn("redis unavailable, falling back to polling", "err", err)
	} else {
		w = w.WithWakeWaiter(redis)
	}

	// health and metrics on a side port
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(promReg, promhttp.HandlerOpts{}))
	mux.Handle("/", w.HealthHandler())

	healthSrv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		if err := healthSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("worker health server failed", "err", err)
		}
	}()

	log.Info("worker starting", "worker_id", workerID)

	if err := w.Run(ctx); err != nil {
		log.Error("worker stopped with error", "err", err)
	}

	shCtx, cancel := config.WithTimeout(5 * time.Second)
	defer cancel()
	_ = healthSrv.Shutdown(shCtx)

	log.Info("worker shutdown complete")
}
