package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"

	"exam_review_backend/config"
	"exam_review_backend/db"
	"exam_review_backend/events"
	"exam_review_backend/logger"
	"exam_review_backend/middleware"
	"exam_review_backend/pages"
	"exam_review_backend/routes"
	"exam_review_backend/scores"
	"exam_review_backend/storage"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
)

func main() {
	envErr := godotenv.Load()

	cfg := config.Load()
	log := logger.Init(cfg.Log.Level, cfg.Log.Format)
	if envErr != nil {
		log.Warn(".env file not found") // Non-fatal in production
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	database, err := db.Connect(ctx, cfg.Database)
	if err != nil {
		log.Fatalf("Error connecting to the database: %v", err)
	}
	defer database.Close()

	if err := db.InitSchema(database); err != nil {
		log.Fatalf("Error initializing database schema: %v", err)
	}
	if cfg.Admin.Enabled() {
		hash, err := middleware.HashPassword(cfg.Admin.Password)
		if err != nil {
			log.Fatalf("Error hashing admin password: %v", err)
		}
		if err := db.SeedAdmin(database, cfg.Admin.Email, hash); err != nil {
			log.Warnf("Error seeding admin account: %v", err)
		}
	}

	bucket, err := storage.New(cfg.Storage)
	if err != nil {
		log.Fatalf("Error initializing %s storage: %v", cfg.Storage.Driver, err)
	}

	var results scores.Store = scores.NewDevStore()
	if cfg.Redis.Addr != "" {
		client, err := scores.Connect(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			log.Fatalf("Error connecting to Redis: %v", err)
		}
		defer client.Close()
		results = scores.NewRedisStore(client, cfg.Redis.ScoreTTL)
	} else {
		log.Warn("REDIS_ADDR not set, using in-memory dev results store")
	}

	var publisher events.Publisher = events.NopPublisher{}
	if cfg.RabbitMQ.URI != "" {
		rabbit, err := events.NewRabbitPublisher(cfg.RabbitMQ.URI, cfg.RabbitMQ.Exchange)
		if err != nil {
			log.Fatalf("Error connecting event publisher: %v", err)
		}
		defer rabbit.Close()
		publisher = rabbit

		consumer, err := events.NewScoreConsumer(cfg.RabbitMQ.URI, cfg.RabbitMQ.Exchange, cfg.RabbitMQ.ScoreQueue, results)
		if err != nil {
			log.Fatalf("Error connecting score consumer: %v", err)
		}
		defer consumer.Close()
		go func() {
			if err := consumer.Run(ctx); err != nil {
				log.WithError(err).Error("score consumer stopped")
			}
		}()
	} else {
		log.Warn("RABBITMQ_URI not set, events will only be logged")
	}

	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(gin.Recovery(), logger.RequestLogger(log), middleware.Metrics())

	corsConfig := cors.DefaultConfig()
	corsConfig.AllowAllOrigins = true
	corsConfig.AllowHeaders = []string{
		"Origin",
		"Content-Length",
		"Content-Type",
		"Authorization",
		logger.RequestIDHeader,
	}
	corsConfig.AllowMethods = []string{
		"GET",
		"POST",
		"PUT",
		"DELETE",
		"PATCH",
	}
	r.Use(cors.New(corsConfig))

	routes.SetupRoutes(r, routes.Dependencies{
		DB:             database,
		JWTSecret:      []byte(cfg.JWT.Secret),
		AccessTokenTTL: cfg.JWT.AccessTokenTTL,
		Pages:          pages.NewResolver(bucket),
		Publisher:      publisher,
		Scores:         results,
	})

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		log.WithField("port", cfg.Server.Port).Info("server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("listen: %s", err)
		}
	}()

	<-ctx.Done()
	log.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Fatalf("Server forced to shutdown: %v", err)
	}
}
