package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/rekognition"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/joho/godotenv"

	"github.com/roomquest/idverify/internal/cloudbeds"
	"github.com/roomquest/idverify/internal/face"
	"github.com/roomquest/idverify/internal/http/handlers"
	httpmw "github.com/roomquest/idverify/internal/http/middleware"
	"github.com/roomquest/idverify/internal/notify"
	"github.com/roomquest/idverify/internal/platform/mailer"
	"github.com/roomquest/idverify/internal/repo/postgres"
	"github.com/roomquest/idverify/internal/repo/redisrepo"
	"github.com/roomquest/idverify/internal/service"
	"github.com/roomquest/idverify/internal/storage"
	"github.com/roomquest/idverify/pkg/config"
	"github.com/roomquest/idverify/pkg/database"
	"github.com/roomquest/idverify/pkg/events"
	"github.com/roomquest/idverify/pkg/logger"
	mw "github.com/roomquest/idverify/pkg/middleware"
)

func main() {
	_ = godotenv.Load()
	cfg := config.Load()

	ctx := context.Background()

	// Database
	pool, err := database.Connect(ctx, cfg.Database)
	if err != nil {
		logger.Error("Failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	// Event bus
	eventBus, err := events.NewNATSEventBus(cfg.NATS.URL)
	if err != nil {
		logger.Error("Failed to connect to NATS", "error", err)
		os.Exit(1)
	}
	defer eventBus.Close()

	// Redis (rate limiting)
	rdb, err := redisrepo.NewClient(cfg.Redis)
	if err != nil {
		logger.Error("Invalid redis configuration", "error", err)
		os.Exit(1)
	}
	defer rdb.Close()

	// AWS (image storage + face analysis)
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.AWS.Region))
	if err != nil {
		logger.Error("Failed to load AWS configuration", "error", err)
		os.Exit(1)
	}
	blobs := storage.NewS3Store(s3.NewFromConfig(awsCfg), cfg.AWS.Bucket)
	faces := face.NewRekognitionAnalyzer(rekognition.NewFromConfig(awsCfg))

	// Cloudbeds integration
	cbClient := cloudbeds.NewClient(cfg.Cloudbeds)
	sessionRepo := postgres.NewSessionRepo(pool)
	credRepo := postgres.NewCredentialRepo(pool)
	vault := cloudbeds.NewVault(credRepo, cbClient)
	resolver := cloudbeds.NewResolver(cbClient, vault)

	// Core service
	verification := service.NewVerificationService(sessionRepo, blobs, faces, resolver, eventBus)

	// Front desk notifications
	mail := mailer.FromConfig(cfg.Email)
	notifier := notify.New(mail, cfg.Email.FrontDeskEmail)
	if err := notifier.Start(eventBus); err != nil {
		logger.Error("Failed to start notifier", "error", err)
		os.Exit(1)
	}

	// Handlers
	verifyHandler := handlers.NewVerifyHandler(verification)
	cbHandler := handlers.NewCloudbedsHandler(cbClient, vault, resolver, cfg.Cloudbeds)

	// Rate limiter for the public verification endpoint
	limiter := httpmw.NewRateLimiter(redisrepo.NewRateLimiter(rdb), httpmw.RateLimitConfig{
		Requests: cfg.RateLimit.Requests,
		Window:   cfg.RateLimit.Window,
	})

	// Router
	r := chi.NewRouter()
	r.Use(mw.RequestID)
	r.Use(mw.ServiceName("idverify"))
	r.Use(mw.Logging)
	r.Use(mw.Recover)
	r.Use(mw.Health)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type", "X-Request-ID"},
		MaxAge:         300,
	}))

	r.Route("/api", func(r chi.Router) {
		r.With(limiter.Middleware()).Mount("/verify", verifyHandler.Routes())
		r.Mount("/cloudbeds", cbHandler.Routes())
	})

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	// Graceful shutdown
	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		<-sigChan

		logger.Info("Shutting down idverify service...")

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := srv.Shutdown(ctx); err != nil {
			logger.Error("Shutdown error", "error", err)
		}
	}()

	logger.Info("Identity verification service starting", "port", cfg.Server.Port)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error("Server error", "error", err)
		os.Exit(1)
	}
}
