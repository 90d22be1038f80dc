package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	cors "github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/sparklab/sparklab-api/pkg/config"
	"github.com/sparklab/sparklab-api/pkg/db"
	"github.com/sparklab/sparklab-api/pkg/db/queries"
	"github.com/sparklab/sparklab-api/pkg/engines"
	"github.com/sparklab/sparklab-api/pkg/handlers"
	"github.com/sparklab/sparklab-api/pkg/middleware"
	"github.com/sparklab/sparklab-api/pkg/services"
	"github.com/sparklab/sparklab-api/pkg/worker"
	log "github.com/sirupsen/logrus"
)

func main() {
	log.SetOutput(gin.DefaultWriter)
	log.SetFormatter(&log.JSONFormatter{})
	log.Info("Starting SparkLab API...")

	cfg := config.LoadConfig()
	log.SetLevel(cfg.Level())

	if err := db.InitDB(cfg.DatabaseURL); err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	defer db.CloseDB()

	if cfg.RunMigrations {
		if err := db.RunMigrations(); err != nil {
			log.Fatalf("Failed to run migrations: %v", err)
		}
	}

	store := queries.NewStore(db.DB)
	tokens := services.NewTokenService(cfg.JwtSecret, cfg.JwtTTL)
	profiles := services.NewProfileService(store)
	generations := services.NewGenerationService(store, profiles)
	apiHandlers := handlers.NewHandlers(
		services.NewAuthService(store, tokens),
		profiles,
		generations,
		services.NewEngineService(store),
	)

	var limiter middleware.Limiter
	if cfg.RedisURL != "" {
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			log.Fatalf("Invalid REDIS_URL: %v", err)
		}
		redisClient := redis.NewClient(opts)
		defer redisClient.Close()

		pingCtx, pingCancel := context.WithTimeout(context.Background(), 3*time.Second)
		if err := redisClient.Ping(pingCtx).Err(); err != nil {
			log.Warnf("Redis not reachable, rate limiting will fail open: %v", err)
		}
		pingCancel()

		limiter = middleware.NewRedisLimiter(redisClient, cfg.RateLimitPerMinute, time.Minute)
		log.Infof("Rate limiting enabled: %d requests/minute", cfg.RateLimitPerMinute)
	} else {
		log.Info("REDIS_URL not set, rate limiting disabled")
	}

	workerCtx, stopWorkers := context.WithCancel(context.Background())
	jobWorker := worker.New(store, generations, engines.NewSimulator(cfg.EngineDelay), worker.Options{
		Concurrency:  cfg.WorkerConcurrency,
		PollInterval: cfg.WorkerPollInterval,
		MaxAttempts:  cfg.JobMaxAttempts,
		StaleAfter:   cfg.JobStaleAfter,
	})
	jobWorker.Start(workerCtx)

	router := gin.Default()
	router.Use(middleware.Metrics())

	router.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.CorsOrigins,
		AllowMethods:     []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	apiHandlers.RegisterRoutes(router, tokens, limiter)

	srv := &http.Server{
		Addr:    cfg.Host + ":" + cfg.Port,
		Handler: router,
	}

	go func() {
		log.Infof("Server listening on %s:%s", cfg.Host, cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Errorf("Server forced to shutdown: %v", err)
	}

	// In-flight jobs keep their lock and are reclaimed once it goes stale.
	stopWorkers()
	jobWorker.Wait()

	log.Info("Server exited gracefully.")
}
