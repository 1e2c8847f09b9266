package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"rollcall/internal/attendance"
	"rollcall/internal/auth"
	"rollcall/internal/cloudinary"
	"rollcall/internal/config"
	"rollcall/internal/faceclient"
	"rollcall/internal/handler"
	"rollcall/internal/httpmiddleware"
	"rollcall/internal/logging"
	"rollcall/internal/metrics"
	"rollcall/internal/queue"
	"rollcall/internal/report"
	"rollcall/internal/sheetsync"
	"rollcall/internal/store"
)

func main() {
	config.LoadDotEnv()
	cfg := config.Load()
	log := logging.New(os.Stdout, cfg.LogFormat, cfg.LogLevel)

	if err := cfg.Validate(); err != nil {
		log.Error("invalid config", "error", err)
		os.Exit(1)
	}
	if cfg.Production() {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.Error("http server failed", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config.App, log *slog.Logger) error {
	m := metrics.New(prometheus.DefaultRegisterer)

	var (
		st attendance.Store
		db *store.DB
	)
	switch cfg.StoreBackend {
	case "memory":
		st = attendance.NewMemoryStore()
		log.Warn("using in-memory store; data is lost on restart")
	default:
		var err error
		db, err = store.NewDB(ctx, cfg.DatabaseURL)
		if db != nil {
			defer db.Close()
		}
		if err != nil {
			return err
		}
		if err := db.Migrate(ctx); err != nil {
			return err
		}
		st = attendance.NewRepository(db.Client)
	}

	var (
		redisClient *store.Redis
		bus         queue.Bus
		q           queue.Queue
	)
	if cfg.QueueBackend == "memory" {
		bus = queue.NewMemoryBus()
		q = queue.NewInMemory(64)
	} else {
		redisClient = store.NewRedis(cfg.RedisAddr)
		defer redisClient.Close()
		bus = queue.NewRedisBus(redisClient.Client, "rollcall:changes:")
		q = queue.NewRedisQueue(redisClient.Client, "rollcall:jobs")
	}

	face := faceclient.New(cfg.FaceServiceURL, cfg.FaceSkip)
	if !cfg.FaceSkip {
		if err := face.Health(ctx); err != nil {
			log.Warn("recognition service not available", "error", err)
		}
	}

	svc := attendance.NewService(st, bus, face, m, log).WithConcurrency(cfg.WriteConcurrency)
	cdn := cloudinary.New(cfg.CloudinaryCloudName, cfg.CloudinaryAPIKey, cfg.CloudinaryAPISecret, cfg.CloudinaryFolder)
	if cdn.Configured() {
		svc.WithPhotos(cdn)
		log.Info("reference images mirrored", "cloud", cfg.CloudinaryCloudName)
	}
	exporter := report.NewExporter(svc, report.HTMLRenderer{}, m, log)

	if cfg.QueueBackend == "memory" {
		w := sheetsync.NewWorker(svc, sheetsync.NewClient(cfg.SyncWebhookURL), m, log)
		go func() {
			if err := w.Run(ctx, q); err != nil && !errors.Is(err, context.Canceled) {
				log.Error("sync worker stopped", "error", err)
			}
		}()
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(gin.LoggerWithConfig(gin.LoggerConfig{
		SkipPaths: []string{"/healthz", "/metrics"},
	}))
	r.Use(cors.New(cors.Config{
		AllowAllOrigins: true,
		AllowMethods:    []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:    []string{"Origin", "Content-Type", "Accept", "Authorization"},
		ExposeHeaders:   []string{"Content-Disposition", "Retry-After"},
		MaxAge:          24 * time.Hour,
	}))
	r.Use(securityHeaders())

	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	r.GET("/healthz", func(c *gin.Context) {
		dbHealthy := cfg.StoreBackend == "memory" || db.Healthy(c.Request.Context())
		redisHealthy := cfg.QueueBackend == "memory" || redisClient.Healthy(c.Request.Context())
		status := http.StatusOK
		if !dbHealthy || !redisHealthy {
			status = http.StatusServiceUnavailable
		}
		c.JSON(status, gin.H{"status": "ok", "db": dbHealthy, "redis": redisHealthy})
	})

	limiter := httpmiddleware.NewSimpleTokenBucket(cfg.RateLimitPerMin, cfg.RateLimitPerMin)
	v1 := r.Group("/v1",
		auth.OwnerAuth(cfg.JWTSigningKey, cfg.JWTIssuer),
		limiter.GinMiddleware(func(c *gin.Context) string {
			if sub := auth.ClaimsFrom(c).Subject; sub != "" {
				return "owner:" + sub
			}
			return httpmiddleware.ClientIP(c)
		}),
	)
	handler.New(handler.Deps{
		Service:  svc,
		Exporter: exporter,
		Queue:    q,
		SyncURL:  cfg.SyncWebhookURL,
		Log:      log,
	}).Register(v1)

	// WriteTimeout stays zero so /v1/stream connections are not cut.
	srv := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("starting server", "port", cfg.HTTPPort, "store", cfg.StoreBackend, "queue", cfg.QueueBackend)
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
		log.Warn("server forced shutdown", "error", err)
	}
	log.Info("server exited")
	return nil
}

func securityHeaders() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("X-Content-Type-Options", "nosniff")
		c.Header("X-Frame-Options", "DENY")
		c.Header("Referrer-Policy", "strict-origin-when-cross-origin")
		if gin.Mode() == gin.ReleaseMode {
			c.Header("Strict-Transport-Security", "max-age=31536000; includeSubDomains")
		}
		c.Next()
	}
}
