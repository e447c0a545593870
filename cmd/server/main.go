package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"

	"maskan/docs"
	"maskan/internal/auth"
	"maskan/internal/cache"
	"maskan/internal/config"
	"maskan/internal/db"
	"maskan/internal/handler"
	"maskan/internal/logger"
	"maskan/internal/middleware"
	"maskan/internal/notify"
	"maskan/internal/repository"
	"maskan/internal/router"
	"maskan/internal/service"
	"maskan/internal/storage"
)

const shutdownTimeout = 15 * time.Second

// @title Maskan Property Listings API
// @version 1.0
// @description Property listing API with JWT authentication, image uploads and email and WhatsApp notifications.
// @host localhost:5000
// @BasePath /api
// @schemes http https
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description Type "Bearer" followed by a space and JWT token.
func main() {
	cfg := config.Load()

	log, err := logger.New(cfg.Env)
	if err != nil {
		panic(err)
	}
	defer func() { _ = log.Sync() }()

	if err := cfg.Validate(); err != nil {
		log.Fatal("invalid configuration", zap.Error(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	mongoClient, mongoDB, err := db.NewMongo(ctx, cfg.MongoURI, cfg.MongoDatabase)
	if err != nil {
		log.Fatal("database init", zap.Error(err))
	}
	defer func() { _ = mongoClient.Disconnect(context.Background()) }()

	for name, ensure := range map[string]func(context.Context, *mongo.Database) error{
		"users":    repository.EnsureUserIndexes,
		"listings": repository.EnsureListingIndexes,
		"agents":   repository.EnsureAgentIndexes,
	} {
		if err := ensure(ctx, mongoDB); err != nil {
			log.Fatal("ensure indexes", zap.String("collection", name), zap.Error(err))
		}
	}

	tx := repository.NewDirectTransactor()
	if cfg.MongoTransactions {
		tx = repository.NewMongoTransactor(mongoClient)
	}

	cacheClient := cache.New(cfg.RedisAddr, cfg.RedisPass, cfg.RedisDB)
	defer func() { _ = cacheClient.Close() }()
	if err := cacheClient.Ping(ctx); err != nil {
		log.Warn("redis unavailable, caching and token revocation disabled until it recovers", zap.Error(err))
	}

	// The notification log is optional; without MySQL deliveries are only logged.
	var logRepo repository.NotificationLogRepository
	if cfg.MySQLDSN != "" {
		gormDB, err := db.NewMySQL(cfg.MySQLDSN)
		if err != nil {
			log.Fatal("notification log init", zap.Error(err))
		}
		logRepo = repository.NewNotificationLogRepository(gormDB)
	}

	store, err := storage.NewS3Store(ctx, storage.S3Options{
		Region:        cfg.S3Region,
		Bucket:        cfg.S3Bucket,
		Endpoint:      cfg.S3Endpoint,
		UsePathStyle:  cfg.S3UsePathStyle,
		PublicBaseURL: cfg.S3PublicBaseURL,
	})
	if err != nil {
		log.Fatal("object storage init", zap.Error(err))
	}

	gateway := notify.NewGateway(logRepo, log,
		notify.NewEmailSender(cfg.BrevoAPIKey, cfg.EmailFrom, cfg.EmailFromName),
		notify.NewWhatsAppSender(cfg.TwilioAccountSID, cfg.TwilioAuthToken, cfg.TwilioWhatsAppFrom),
	)
	defer gateway.Close()

	// Initialize repositories
	userRepo := repository.NewUserRepository(mongoDB)
	listingRepo := repository.NewListingRepository(mongoDB)
	agentRepo := repository.NewAgentRepository(mongoDB)
	brokerRepo := repository.NewBrokerRepository(mongoDB)

	// Initialize auth components
	jwtService := auth.NewJWTService(cfg.JWTSecret)
	tokenStore := auth.NewTokenStore(cacheClient)

	// Initialize services
	uploads := service.NewUploadService(store, cfg.UploadMaxFileSize, log)
	authService := service.NewAuthService(userRepo, jwtService, tokenStore, gateway, cfg.FrontendURL, log)
	listingService := service.NewListingService(listingRepo, userRepo, tx, uploads, cacheClient,
		service.ListingServiceConfig{CacheTTL: cfg.ListingCacheTTL, MaxImages: cfg.UploadMaxImages}, log)
	profileService := service.NewProfileService(agentRepo, brokerRepo, uploads, log)
	notificationService := service.NewNotificationService(gateway, gateway)

	metrics, err := middleware.NewHTTPMetrics(middleware.HTTPMetricsOptions{})
	if err != nil {
		log.Fatal("metrics init", zap.Error(err))
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	router.Register(e, cfg, router.Dependencies{
		Logger:  log,
		Tokens:  jwtService,
		Users:   authService,
		Metrics: metrics,
	}, router.Handlers{
		Auth:         handler.NewAuthHandler(authService),
		Account:      handler.NewAccountHandler(authService, cfg.FrontendURL),
		Listing:      handler.NewListingHandler(listingService),
		Profile:      handler.NewProfileHandler(profileService),
		Notification: handler.NewNotificationHandler(notificationService),
	})

	log.Info("swagger documentation available", zap.String("url", swaggerURL(cfg.SwaggerHost)))

	addr := ":" + cfg.ServerPort
	go func() {
		log.Info("server listening", zap.String("addr", addr), zap.String("env", cfg.Env))
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("server start", zap.Error(err))
		}
	}()

	<-ctx.Done()
	log.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		log.Error("server shutdown", zap.Error(err))
	}
}

// swaggerURL points the served document at host and returns the UI address.
// host may carry a scheme.
func swaggerURL(host string) string {
	if host == "" {
		// docker-compose maps the container port to 5000
		return "http://localhost:5000/swagger/index.html"
	}

	scheme := "http"
	switch {
	case strings.HasPrefix(host, "https://"):
		scheme = "https"
		host = strings.TrimPrefix(host, "https://")
	case strings.HasPrefix(host, "http://"):
		host = strings.TrimPrefix(host, "http://")
	}
	docs.SwaggerInfo.Host = host
	docs.SwaggerInfo.Schemes = []string{scheme}
	return scheme + "://" + host + "/swagger/index.html"
}
