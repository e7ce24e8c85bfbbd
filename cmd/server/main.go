package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/diewo77/go-archive/auth"
	"github.com/diewo77/go-archive/internal/config"
	"github.com/diewo77/go-archive/internal/db"
	"github.com/diewo77/go-archive/internal/logging"
	"github.com/diewo77/go-archive/internal/metrics"
	"github.com/diewo77/go-archive/internal/middleware"
	"github.com/diewo77/go-archive/internal/models"
	"github.com/diewo77/go-archive/internal/policy"
	"github.com/diewo77/go-archive/internal/services"
	"github.com/diewo77/go-archive/internal/storage"
	"github.com/diewo77/go-archive/internal/workflow"
)

var (
	migrateOnlyFlag = flag.Bool("migrate-only", false, "Run DB migrations and exit")
	seedOnlyFlag    = flag.Bool("seed-only", false, "Run DB seed and exit")
)

func main() {
	flag.Parse()

	// Load environment variables from .env file
	_ = godotenv.Load()

	cfg := config.Load()
	log := logging.New(os.Stdout, cfg.Log.Level, cfg.Log.Format)
	if err := cfg.Validate(); err != nil {
		log.WithError(err).Fatal("invalid configuration")
	}

	if cfg.App.SentryDSN != "" {
		if err := sentry.Init(sentry.ClientOptions{Dsn: cfg.App.SentryDSN, AttachStacktrace: true}); err != nil {
			log.WithError(err).Warn("sentry disabled")
		} else {
			sentry.ConfigureScope(func(scope *sentry.Scope) {
				scope.SetTag("service", "go-archive")
			})
			defer sentry.Flush(2 * time.Second)
		}
	}

	resolver, err := workflow.NewResolver(cfg.App.ProgressFloor)
	if err != nil {
		log.WithError(err).Fatal("invalid workflow settings")
	}
	models.UseProgressResolver(resolver)

	dbConn, err := db.Open(cfg.Database, db.Options{
		Logger:  logging.NewGormLogger(log, 200*time.Millisecond),
		Retries: 5,
		Backoff: 2 * time.Second,
	})
	if err != nil {
		log.WithError(err).Fatal("failed to connect to database")
	}

	if *migrateOnlyFlag {
		setup := *cfg
		setup.App.Seed = false
		if err := db.Setup(dbConn, &setup); err != nil {
			log.WithError(err).Fatal("migration failed")
		}
		log.Info("migrations completed successfully")
		return
	}

	if *seedOnlyFlag {
		if err := db.Seed(dbConn, db.SeedOptions{AdminEmail: cfg.App.SeedAdminEmail, AdminPassword: cfg.App.SeedAdminPassword}); err != nil {
			log.WithError(err).Fatal("seeding failed")
		}
		log.Info("seeding completed successfully")
		return
	}

	if err := db.Setup(dbConn, cfg); err != nil {
		log.WithError(err).Fatal("database setup failed")
	}

	issuer, err := auth.NewIssuer(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL)
	if err != nil {
		log.WithError(err).Fatal("token issuer")
	}
	revoker := newRevoker(cfg.Redis, log)

	var store storage.FileStore = storage.Disabled{}
	if cfg.Storage.Bucket != "" {
		s3Store, err := storage.NewS3Store(context.Background(), cfg.Storage.Bucket, storage.S3Options{
			Region:   cfg.Storage.Region,
			Endpoint: cfg.Storage.Endpoint,
			Expiry:   cfg.Storage.URLExpiry,
		})
		if err != nil {
			log.WithError(err).Fatal("s3 storage")
		}
		store = s3Store
	}

	m := metrics.New()
	g := policy.NewAuthGate(dbConn, cfg.Auth.CacheTTL, m, log)
	svc := services.New(services.Deps{DB: dbConn, Gate: g, Log: log, Metrics: m, Store: store})
	limiter := middleware.PerMinute(cfg.Server.LoginRatePerMinute)

	app := NewApp(AppDeps{
		DB:            dbConn,
		Services:      svc,
		Gate:          g,
		Authenticator: auth.NewAuthenticator(issuer, revoker, svc.Users.Exists),
		Issuer:        issuer,
		Revoker:       revoker,
		Metrics:       m,
		Log:           log,
		LoginLimiter:  limiter,
	})

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      app,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
		IdleTimeout:  time.Duration(cfg.Server.IdleTimeout) * time.Second,
	}

	stop := make(chan struct{})
	go func() {
		ticker := time.NewTicker(5 * time.Minute)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				if n := limiter.Cleanup(10 * time.Minute); n > 0 {
					log.WithField("removed", n).Debug("login limiter cleanup")
				}
			case <-stop:
				return
			}
		}
	}()

	go func() {
		log.WithFields(logrus.Fields{"port": cfg.Server.Port, "dev": cfg.App.Dev}).Info("server starting")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.WithError(err).Fatal("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("shutdown signal received")
	close(stop)

	// Graceful shutdown with timeout
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.WithError(err).Error("error during shutdown")
	}
	log.Info("server stopped gracefully")
}

// newRevoker shares revocations through Redis when configured and keeps them
// in process otherwise.
func newRevoker(cfg config.RedisConfig, log logrus.FieldLogger) auth.Revoker {
	if cfg.Addr == "" {
		return auth.NewMemoryRevoker()
	}
	client := redis.NewClient(&redis.Options{Addr: cfg.Addr, Password: cfg.Password, DB: cfg.DB})
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		log.WithError(err).WithField("addr", cfg.Addr).Warn("redis unreachable, revocations stay in memory")
		_ = client.Close()
		return auth.NewMemoryRevoker()
	}
	return auth.NewRedisRevoker(client)
}
