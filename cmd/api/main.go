//	@title			Media Service API
//	@version		1.0
//	@description	Upload, retrieval and management of media objects in S3-compatible storage.
//
//	@host		localhost:8080
//	@BasePath	/api/v1
//
//	@securityDefinitions.apikey	BearerAuth
//	@in							header
//	@name						Authorization
//	@description				JWT Bearer token. Format: **Bearer {token}**

package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	httpSwagger "github.com/swaggo/http-swagger/v2"

	"github.com/radif/mediaservice/internal/apperror"
	"github.com/radif/mediaservice/internal/config"
	"github.com/radif/mediaservice/internal/media"
	appMiddleware "github.com/radif/mediaservice/internal/middleware"
	"github.com/radif/mediaservice/internal/response"
	"github.com/radif/mediaservice/internal/storage"

	_ "github.com/radif/mediaservice/docs/swagger"
)

// backend is what the service needs from object storage at startup and at runtime.
type backend interface {
	storage.Storage
	storage.Bucket
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		bootLogger := zerolog.New(os.Stderr)
		bootLogger.Fatal().Err(err).Msg("invalid configuration")
	}
	logger := newLogger(cfg)

	store, err := newStorage(cfg, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("object storage init failed")
	}

	bootCtx, cancelBoot := context.WithTimeout(context.Background(), 30*time.Second)
	if err := store.EnsureBucket(bootCtx); err != nil {
		cancelBoot()
		logger.Fatal().Err(err).Str("bucket", cfg.StorageBucket).Msg("bucket bootstrap failed")
	}
	cancelBoot()

	appCtx, stopApp := context.WithCancel(context.Background())
	defer stopApp()

	auth, err := newAuthenticator(appCtx, cfg, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("token verifier init failed")
	}

	// Wire dependencies: storage → service → handler
	mediaSvc := media.NewService(store, media.Options{
		AllowedTypes:  cfg.AllowedMIMETypes,
		MaxUploadSize: cfg.MaxUploadSize,
		PresignTTL:    cfg.PresignTTL(),
		DirectURLs:    cfg.DirectURLsEnabled,
	}, logger)
	mediaHandler := media.NewHandler(mediaSvc, logger)

	// Router
	r := chi.NewRouter()
	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(appMiddleware.Logger(logger))
	r.Use(appMiddleware.Metrics)
	r.Use(chiMiddleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type", "X-Request-ID", media.MetadataHeader},
		MaxAge:         300,
	}))

	// Health check
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		response.OK(w, map[string]string{"status": "ok"})
	})

	// Readiness: the bucket must answer.
	r.Get("/ready", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()
		if err := store.Ping(ctx); err != nil {
			response.Fail(w, r, logger, apperror.Storage("ping bucket", err))
			return
		}
		response.OK(w, map[string]string{"status": "ready"})
	})

	r.Handle("/metrics", promhttp.Handler())

	// Swagger UI at /swagger/
	r.Get("/swagger/*", httpSwagger.Handler(
		httpSwagger.URL("/swagger/doc.json"),
	))

	// API v1
	r.Route("/api/v1", func(r chi.Router) {
		r.Mount("/media", mediaHandler.Routes(auth, cfg.DeletePermission))
	})

	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: r,
		// Uploads stream for as long as the client sends, so only headers are timed.
		ReadHeaderTimeout: 15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	// Start server in goroutine; wait for shutdown signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		logger.Info().
			Str("port", cfg.Port).
			Str("env", cfg.AppEnv).
			Str("backend", cfg.StorageBackend).
			Str("bucket", cfg.StorageBucket).
			Msg("server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("server error")
		}
	}()

	<-quit
	logger.Info().Msg("shutting down gracefully")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Error().Err(err).Msg("forced shutdown")
		os.Exit(1)
	}

	logger.Info().Msg("server stopped")
}

func newLogger(cfg *config.Config) zerolog.Logger {
	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}
	zerolog.TimeFieldFormat = time.RFC3339Nano

	var logger zerolog.Logger
	if cfg.IsProduction() {
		logger = zerolog.New(os.Stdout)
	} else {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339})
	}
	return logger.Level(level).With().Timestamp().Str("service", "media").Logger()
}

func newStorage(cfg *config.Config, logger zerolog.Logger) (backend, error) {
	if cfg.StorageBackend == config.BackendMemory {
		logger.Warn().Msg("using in-memory storage; objects are lost on restart")
		return storage.NewMemoryStorage(cfg.StoragePublicBase), nil
	}
	store, err := storage.NewMinioStorage(storage.MinioOptions{
		Endpoint:   cfg.StorageAddr(),
		AccessKey:  cfg.StorageAccessKey,
		SecretKey:  cfg.StorageSecretKey,
		Region:     cfg.StorageRegion,
		Bucket:     cfg.StorageBucket,
		PublicBase: cfg.StoragePublicBase,
		UseSSL:     cfg.StorageUseSSL,
	}, logger)
	if err != nil {
		return nil, err
	}
	return store, nil
}

func newAuthenticator(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (*appMiddleware.Authenticator, error) {
	if cfg.AuthJWKSURL != "" {
		return appMiddleware.NewJWKSAuthenticator(ctx, cfg.AuthJWKSURL, logger)
	}
	return appMiddleware.NewHMACAuthenticator(cfg.JWTSecret, logger), nil
}
