// Package db opens the database, applies the schema and seeds defaults.
package db

import (
	"errors"
	"fmt"
	"time"

	migrate "github.com/golang-migrate/migrate/v4"
	// The following blank imports register the postgres driver and file source for golang-migrate.
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/sirupsen/logrus"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/diewo77/go-archive/internal/config"
	"github.com/diewo77/go-archive/internal/models"
)

// Options tune Open.
type Options struct {
	Logger  logger.Interface
	Retries int
	Backoff time.Duration
}

// Open connects with the configured driver, retrying while the server starts.
func Open(cfg config.DatabaseConfig, opts Options) (*gorm.DB, error) {
	var dialector gorm.Dialector
	switch cfg.Driver {
	case "sqlite":
		dialector = sqlite.Open(cfg.SQLitePath)
	case "postgres", "":
		dsn := NormalizeDSN(cfg.DSN())
		if dsn == "" {
			return nil, errors.New("database DSN is empty")
		}
		dialector = postgres.Open(dsn)
	default:
		return nil, fmt.Errorf("unsupported database driver %q", cfg.Driver)
	}
	if opts.Logger == nil {
		opts.Logger = logger.Default.LogMode(logger.Silent)
	}
	if opts.Retries <= 0 {
		opts.Retries = 1
	}

	var (
		db  *gorm.DB
		err error
	)
	for i := 0; i < opts.Retries; i++ {
		db, err = gorm.Open(dialector, &gorm.Config{Logger: opts.Logger})
		if err == nil {
			break
		}
		logrus.WithError(err).Warnf("database connection attempt %d/%d failed", i+1, opts.Retries)
		time.Sleep(opts.Backoff)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to connect database after retries: %w", err)
	}
	if err := db.Exec("SELECT 1").Error; err != nil {
		return nil, fmt.Errorf("db ping failed: %w", err)
	}
	if cfg.Driver != "sqlite" {
		logrus.WithField("dsn", MaskDSN(cfg.DSN())).Info("database connected")
	}
	return db, nil
}

// AllModels lists every persisted type in dependency order.
func AllModels() []interface{} {
	return []interface{}{
		&models.Plan{},
		&models.Company{},
		&models.ClientPlan{},
		&models.Client{},
		&models.User{},
		&models.Document{},
		&models.Dispute{},
		&models.Invoice{},
		&models.InvoiceItem{},
		&models.ActivityLog{},
	}
}

// Migrate applies the schema with gorm AutoMigrate.
func Migrate(db *gorm.DB) error {
	for _, m := range AllModels() {
		if err := db.AutoMigrate(m); err != nil {
			return fmt.Errorf("automigrate %T: %w", m, err)
		}
	}
	return nil
}

// RunSQLMigrations executes the versioned migrations in dir with golang-migrate.
func RunSQLMigrations(dir, url string) error {
	m, err := migrate.New("file://"+dir, url)
	if err != nil {
		return err
	}
	defer m.Close()
	if err = m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return err
	}
	return nil
}

// Setup applies the schema the configured way and seeds when asked.
func Setup(db *gorm.DB, cfg *config.Config) error {
	if cfg.Database.Migrations && cfg.Database.Driver == "postgres" {
		if err := RunSQLMigrations(cfg.Database.MigrationsDir, cfg.Database.MigrateURL()); err != nil {
			return fmt.Errorf("sql migrations failed: %w", err)
		}
	} else if err := Migrate(db); err != nil {
		return err
	}
	for _, table := range []string{"users", "companies", "documents", "invoices"} {
		if !db.Migrator().HasTable(table) {
			return errors.New("missing table after migration: " + table)
		}
	}
	if cfg.App.Seed {
		return Seed(db, SeedOptions{AdminEmail: cfg.App.SeedAdminEmail, AdminPassword: cfg.App.SeedAdminPassword})
	}
	return nil
}
