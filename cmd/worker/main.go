package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"

	"rollcall/internal/attendance"
	"rollcall/internal/config"
	"rollcall/internal/logging"
	"rollcall/internal/metrics"
	"rollcall/internal/queue"
	"rollcall/internal/sheetsync"
	"rollcall/internal/store"
)

// Worker consumes sheet sync jobs from redis and delivers them to the webhook.
func main() {
	config.LoadDotEnv()
	cfg := config.Load()
	log := logging.New(os.Stdout, cfg.LogFormat, cfg.LogLevel).With("component", "worker")

	if cfg.QueueBackend == "memory" || cfg.StoreBackend == "memory" {
		log.Error("worker needs STORE_BACKEND=postgres and QUEUE_BACKEND=redis; the api runs jobs in-process otherwise")
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := store.NewDB(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Error("db connect failed", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	redisClient := store.NewRedis(cfg.RedisAddr)
	defer redisClient.Close()

	m := metrics.New(prometheus.DefaultRegisterer)
	bus := queue.NewRedisBus(redisClient.Client, "rollcall:changes:")
	svc := attendance.NewService(attendance.NewRepository(db.Client), bus, nil, m, log)
	w := sheetsync.NewWorker(svc, sheetsync.NewClient(cfg.SyncWebhookURL), m, log)

	log.Info("worker started, waiting for jobs")
	err = w.Run(ctx, queue.NewRedisQueue(redisClient.Client, "rollcall:jobs"))
	if err != nil && !errors.Is(err, context.Canceled) {
		log.Error("worker failed", "error", err)
		os.Exit(1)
	}
	log.Info("worker stopped")
}
