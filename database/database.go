package database

import (
	"errors"
	"fmt"
	stdlog "log"
	"strings"
	"time"

	"tariconnect/internal/domain/billing"
	"tariconnect/internal/domain/outbox"
	"tariconnect/internal/domain/plans"
	"tariconnect/internal/domain/settings"
	"tariconnect/internal/domain/subscriptions"
	"tariconnect/internal/domain/trials"
	"tariconnect/internal/domain/users"

	"github.com/glebarez/sqlite"
	"github.com/rs/zerolog/log"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Open connects to Postgres, or to SQLite when the DSN starts with
// "sqlite:" or "file:" (local development and tests). Driver errors are
// translated so duplicate keys surface as gorm.ErrDuplicatedKey. SQL
// warnings go to the global zerolog logger.
func Open(dsn string) (*gorm.DB, error) {
	dsn = strings.TrimSpace(dsn)
	if dsn == "" {
		return nil, errors.New("DB_URL not set")
	}

	cfg := &gorm.Config{
		Logger: logger.New(stdlog.New(log.Logger.With().Str("component", "gorm").Logger(), "", 0), logger.Config{
			SlowThreshold:             200 * time.Millisecond,
			LogLevel:                  logger.Warn,
			IgnoreRecordNotFoundError: true,
			Colorful:                  false,
		}),
		TranslateError: true,
	}

	var (
		db  *gorm.DB
		err error
	)
	switch {
	case strings.HasPrefix(dsn, "sqlite:"):
		db, err = openSQLite(strings.TrimPrefix(dsn, "sqlite:"), cfg)
	case strings.HasPrefix(dsn, "file:"):
		db, err = openSQLite(dsn, cfg)
	default:
		db, err = gorm.Open(postgres.Open(dsn), cfg)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	return db, nil
}

func openSQLite(dsn string, cfg *gorm.Config) (*gorm.DB, error) {
	db, err := gorm.Open(sqlite.Open(dsn), cfg)
	if err != nil {
		return nil, err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	// One connection keeps in-memory databases shared and serializes writers.
	sqlDB.SetMaxOpenConns(1)
	return db, nil
}

// Models lists every table owned by this service.
func Models() []any {
	return []any{
		&users.User{},
		&plans.Plan{},
		&subscriptions.Subscription{},
		&billing.Payment{},
		&billing.Invoice{},
		&trials.Trial{},
		&settings.MetaSettings{},
		&outbox.Entry{},
	}
}

func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(Models()...); err != nil {
		return fmt.Errorf("AutoMigrate error: %w", err)
	}
	return nil
}
