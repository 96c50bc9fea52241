// Package main is the entry point for the Casebook server, the backend for
// clinical case management.
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/prn-tf/casebook/internal/auth"
	"github.com/prn-tf/casebook/internal/blobstore"
	"github.com/prn-tf/casebook/internal/cache"
	memcache "github.com/prn-tf/casebook/internal/cache/memory"
	rediscache "github.com/prn-tf/casebook/internal/cache/redis"
	"github.com/prn-tf/casebook/internal/config"
	"github.com/prn-tf/casebook/internal/handler"
	"github.com/prn-tf/casebook/internal/lock"
	"github.com/prn-tf/casebook/internal/mailer"
	"github.com/prn-tf/casebook/internal/metrics"
	"github.com/prn-tf/casebook/internal/repository"
	"github.com/prn-tf/casebook/internal/repository/postgres"
	"github.com/prn-tf/casebook/internal/repository/sqlite"
	"github.com/prn-tf/casebook/internal/service"
)

// Version information (set at build time)
var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

func main() {
	configPath := flag.String("config", "", "path to configuration file")
	flag.Parse()

	cfg := config.MustLoad(*configPath)
	logger := newLogger(cfg.Logging)

	logger.Info().
		Str("version", Version).
		Str("build_time", BuildTime).
		Str("git_commit", GitCommit).
		Msg("starting Casebook server")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Fatal().Err(err).Msg("server exited with error")
	}
}

func run(ctx context.Context, cfg *config.Config, logger zerolog.Logger) error {
	// Database
	repos, db, err := openDatabase(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer db.Close()

	// Redis-backed cache and submission lock, with in-memory fallbacks for
	// single-instance deployments.
	var (
		treeCache cache.Cache
		locker    lock.Locker
	)
	if cfg.Redis.Enabled {
		client := redis.NewClient(&redis.Options{
			Addr:        cfg.Redis.Addr(),
			Password:    cfg.Redis.Password,
			DB:          cfg.Redis.DB,
			PoolSize:    cfg.Redis.PoolSize,
			DialTimeout: cfg.Redis.DialTimeout,
		})
		if err := client.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("failed to connect to redis: %w", err)
		}
		defer client.Close()
		treeCache = rediscache.NewCache(client)
		locker = lock.NewRedisLocker(client)
		logger.Info().Str("addr", cfg.Redis.Addr()).Msg("connected to Redis")
	} else {
		mc := memcache.NewCache()
		defer mc.Stop()
		treeCache = mc
		locker = lock.NewMemoryLocker()
	}

	// Object storage for case images.
	var store blobstore.Store = blobstore.NewMemoryStore()
	bucket := "casebook"
	if cfg.Spaces.Endpoint != "" && cfg.Spaces.Bucket != "" {
		s3, err := blobstore.NewS3Store(ctx, blobstore.S3Config{
			Endpoint:        cfg.Spaces.Endpoint,
			Region:          cfg.Spaces.Region,
			Bucket:          cfg.Spaces.Bucket,
			AccessKeyID:     cfg.Spaces.AccessKeyID,
			SecretAccessKey: cfg.Spaces.SecretAccessKey,
			PublicBaseURL:   cfg.Spaces.PublicBaseURL,
		}, logger)
		if err != nil {
			return fmt.Errorf("failed to initialize object storage: %w", err)
		}
		store = s3
		bucket = cfg.Spaces.Bucket
	} else {
		logger.Warn().Msg("object storage not configured, using in-memory store")
	}

	// Outbound mail for password resets.
	var mail mailer.Mailer
	if cfg.SMTP.Enabled {
		mail = mailer.NewSMTPMailer(cfg.SMTP, logger)
	} else {
		mail = mailer.NewNoopMailer(logger)
	}

	var m *metrics.Metrics
	if cfg.Metrics.Enabled {
		m = metrics.Default()
		go serveMetrics(cfg.Metrics, logger)
	}

	// Services
	tokens := auth.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL)
	dedupSvc := service.NewDedupService(repos.Cases, cfg.Cases.DuplicateWindowMonths, m, logger)
	imageSvc := service.NewImageService(repos.Images, store, bucket, m, logger)
	caseSvc := service.NewCaseService(repos, dedupSvc, imageSvc, locker,
		cfg.Cases.SubmitLockTTL, cfg.Cases.MaxImagesPerUpload, m, logger)
	userSvc := service.NewUserService(repos.Users, repos.ResetToken, tokens, mail,
		cfg.Auth.BcryptCost, cfg.Auth.ResetTokenTTL, logger)
	taxonomySvc := service.NewTaxonomyService(repos.Taxonomy, treeCache, logger)
	favoriteSvc := service.NewFavoriteService(repos.Favorites, repos.Images, repos.Cases, logger)

	// HTTP
	router := handler.NewRouter(handler.RouterConfig{
		AuthHandler:     handler.NewAuthHandler(userSvc, logger),
		CaseHandler:     handler.NewCaseHandler(caseSvc, cfg.Server.MaxUploadSize, logger),
		TaxonomyHandler: handler.NewTaxonomyHandler(taxonomySvc, logger),
		FavoriteHandler: handler.NewFavoriteHandler(favoriteSvc, logger),
		AuthMiddleware:  auth.Middleware(tokens, logger),
		DB:              db,
		Logger:          logger,
	})

	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      router.Handler(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info().Str("addr", server.Addr).Msg("HTTP server listening")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("http server failed: %w", err)
	case <-ctx.Done():
	}

	logger.Info().Msg("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("graceful shutdown failed: %w", err)
	}
	return nil
}

// openDatabase connects to the configured backend and runs pending
// migrations. SQLite migrates on every start since embedded deployments have
// no separate migration step.
func openDatabase(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (*repository.Repositories, repository.DatabaseHealth, error) {
	if cfg.Database.IsEmbedded() {
		db, err := sqlite.NewDB(ctx, sqlite.Config{
			Path:            cfg.Database.Path,
			MaxOpenConns:    1,
			JournalMode:     cfg.Database.JournalMode,
			BusyTimeout:     cfg.Database.BusyTimeout,
			SynchronousMode: cfg.Database.SynchronousMode,
		}, logger)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to open sqlite database: %w", err)
		}
		if err := db.Migrate(ctx); err != nil {
			db.Close()
			return nil, nil, fmt.Errorf("failed to migrate sqlite database: %w", err)
		}
		return sqlite.NewRepositories(db), db, nil
	}

	db, err := postgres.NewDB(ctx, cfg.Database, logger)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to postgres: %w", err)
	}
	return postgres.NewRepositories(db), db, nil
}

// serveMetrics runs the Prometheus endpoint on its own port.
func serveMetrics(cfg config.MetricsConfig, logger zerolog.Logger) {
	mux := http.NewServeMux()
	mux.Handle(cfg.Path, metrics.Handler())

	addr := fmt.Sprintf(":%d", cfg.Port)
	logger.Info().Str("addr", addr).Str("path", cfg.Path).Msg("metrics server listening")
	if err := http.ListenAndServe(addr, mux); err != nil {
		logger.Error().Err(err).Msg("metrics server failed")
	}
}

// newLogger builds the root logger from configuration.
func newLogger(cfg config.LoggingConfig) zerolog.Logger {
	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil {
		level = zerolog.InfoLevel
	}

	var out = os.Stdout
	if cfg.Output == "stderr" {
		out = os.Stderr
	}

	zerolog.TimeFieldFormat = time.RFC3339Nano

	var logger zerolog.Logger
	if cfg.Format == "console" {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: out, TimeFormat: time.RFC3339})
	} else {
		logger = zerolog.New(out)
	}
	logger = logger.Level(level).With().Timestamp().Logger()
	log.Logger = logger
	return logger
}
