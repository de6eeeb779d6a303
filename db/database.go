package db

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	_ "github.com/ncruces/go-sqlite3/embed"
	"github.com/ncruces/go-sqlite3/gormlite"
	"go.uber.org/zap"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

const openMaxElapsed = 10 * time.Second

func newOpenBackoff() backoff.BackOff {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = 100 * time.Millisecond
	bo.MaxElapsedTime = openMaxElapsed
	return bo
}

// isRetryableError reports errors another process holding the database can cause.
func isRetryableError(err error) bool {
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "database is locked") || strings.Contains(msg, "busy")
}

// gormWriter routes gorm's log lines into zap.
type gormWriter struct {
	log *zap.SugaredLogger
}

func (w gormWriter) Printf(format string, args ...any) {
	w.log.Warnf(strings.TrimSpace(format), args...)
}

// Open opens the SQLite database at dbPath, creating it if needed, and
// migrates the schema. Lock contention is retried with exponential backoff.
func Open(ctx context.Context, dbPath string, log *zap.SugaredLogger) (*gorm.DB, error) {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	newLogger := gormlogger.New(
		gormWriter{log: log},
		gormlogger.Config{
			SlowThreshold:             time.Second,
			LogLevel:                  gormlogger.Warn,
			IgnoreRecordNotFoundError: true,
			Colorful:                  false,
		},
	)

	var database *gorm.DB
	err := backoff.Retry(func() error {
		db, err := open(dbPath, newLogger)
		if err != nil {
			if isRetryableError(err) {
				log.Infow("Database busy, retrying", zap.String("path", dbPath), zap.Error(err))
				return err
			}
			return backoff.Permanent(err)
		}
		database = db
		return nil
	}, backoff.WithContext(newOpenBackoff(), ctx))
	if err != nil {
		return nil, fmt.Errorf("open database %s: %w", dbPath, err)
	}
	return database, nil
}

func open(dbPath string, newLogger gormlogger.Interface) (*gorm.DB, error) {
	db, err := gorm.Open(gormlite.Open(dbPath), &gorm.Config{Logger: newLogger})
	if err != nil {
		return nil, err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	// A single connection keeps per-connection pragmas in effect.
	sqlDB.SetMaxOpenConns(1)

	if err := db.Exec("PRAGMA busy_timeout = 5000").Error; err != nil {
		sqlDB.Close()
		return nil, err
	}
	if err := db.AutoMigrate(Models...); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("migrate schema: %w", err)
	}
	return db, nil
}

// Close releases the database connection.
func Close(db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
