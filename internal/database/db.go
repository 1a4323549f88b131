package database

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/JustJay7/eviction-hearing-parser/internal/config"
	"github.com/JustJay7/eviction-hearing-parser/pkg/logger"
	"github.com/cenkalti/backoff/v4"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

const (
	maxConnectRetries    = 5
	connectRetryInterval = 2 * time.Second
)

// Initialize opens the store selected by the configuration and migrates it.
// Local development uses a SQLite file; everything else connects to PostgreSQL.
func Initialize(cfg *config.Config, log *logger.Logger) (*gorm.DB, error) {
	var (
		db  *gorm.DB
		err error
	)
	if cfg.LocalDev {
		db, err = OpenSQLite(cfg.DatabasePath)
	} else {
		db, err = OpenPostgres(cfg.DatabaseURL, log)
	}
	if err != nil {
		return nil, err
	}

	if err := Migrate(db); err != nil {
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return db, nil
}

// OpenSQLite opens (creating if needed) a SQLite database with foreign keys enforced.
func OpenSQLite(dbPath string) (*gorm.DB, error) {
	if dbPath != ":memory:" {
		dir := filepath.Dir(dbPath)
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	dsn := dbPath
	if !strings.Contains(dsn, "?") {
		dsn += "?_foreign_keys=on&_busy_timeout=5000"
	}

	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get sql.DB: %w", err)
	}
	// SQLite allows a single writer.
	sqlDB.SetMaxOpenConns(1)

	return db, nil
}

// OpenPostgres connects to PostgreSQL, retrying while the server comes up.
func OpenPostgres(dsn string, log *logger.Logger) (*gorm.DB, error) {
	return retryConnect(func() (*gorm.DB, error) {
		return connectPostgres(dsn)
	}, newConnectBackOff(), log)
}

func newConnectBackOff() backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = connectRetryInterval
	b.MaxElapsedTime = 0
	b.Reset()
	return backoff.WithMaxRetries(b, maxConnectRetries)
}

func retryConnect(connect func() (*gorm.DB, error), policy backoff.BackOff, log *logger.Logger) (*gorm.DB, error) {
	var (
		db       *gorm.DB
		attempts int
	)

	operation := func() error {
		attempts++
		d, err := connect()
		if err != nil {
			return err
		}
		db = d
		return nil
	}

	notify := func(err error, wait time.Duration) {
		log.Warn("Database not ready, retrying",
			"attempt", attempts,
			"max_retries", maxConnectRetries,
			"wait", wait,
			"error", err,
		)
	}

	if err := backoff.RetryNotify(operation, policy, notify); err != nil {
		return nil, fmt.Errorf("failed to connect to database after %d attempts: %w", attempts, err)
	}
	return db, nil
}

func connectPostgres(dsn string) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	if err := sqlDB.Ping(); err != nil {
		sqlDB.Close()
		return nil, err
	}

	sqlDB.SetMaxOpenConns(25)
	sqlDB.SetMaxIdleConns(5)
	sqlDB.SetConnMaxLifetime(30 * time.Minute)
	return db, nil
}

// Migrate creates the four tables, their keys and the read views.
func Migrate(db *gorm.DB) error {
	// Views pin column types in PostgreSQL, so they go before any ALTER.
	if err := dropViews(db); err != nil {
		return err
	}
	if err := db.AutoMigrate(
		&CaseDetail{},
		&Disposition{},
		&Event{},
		&Setting{},
	); err != nil {
		return err
	}
	return RunMigrations(db)
}
