package database

import (
	"fmt"
	"time"

	"github.com/SlpAus/trailhead-backend/internal/platform/config"
	"github.com/SlpAus/trailhead-backend/internal/platform/logging"
	"github.com/sirupsen/logrus"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

// sqliteParams turns on WAL and waits for locks instead of failing at once.
const sqliteParams = "?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on"

// OpenRemoteSQL opens the remote SQL backend named by cfg.Driver.
func OpenRemoteSQL(cfg config.RemoteConfig, log *logrus.Logger) (*gorm.DB, error) {
	var dialector gorm.Dialector
	switch cfg.Driver {
	case config.DriverPostgres:
		dialector = postgres.Open(cfg.Postgres.DSN)
	case config.DriverSQLite:
		dialector = sqlite.Open(cfg.SQLite.Path + sqliteParams)
	default:
		return nil, fmt.Errorf("driver %q is not a SQL backend", cfg.Driver)
	}

	db, err := gorm.Open(dialector, &gorm.Config{Logger: logging.Gorm(log)})
	if err != nil {
		return nil, fmt.Errorf("open remote %s: %w", cfg.Driver, err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	if cfg.Driver == config.DriverSQLite {
		sqlDB.SetMaxOpenConns(1)
	} else {
		sqlDB.SetMaxOpenConns(20)
		sqlDB.SetConnMaxIdleTime(5 * time.Minute)
	}
	log.WithField("driver", cfg.Driver).Info("remote database opened")
	return db, nil
}

// OpenLocal opens the device-local SQLite file.
func OpenLocal(cfg config.LocalConfig, log *logrus.Logger) (*gorm.DB, error) {
	db, err := gorm.Open(sqlite.Open(cfg.Path+sqliteParams), &gorm.Config{Logger: logging.Gorm(log)})
	if err != nil {
		return nil, fmt.Errorf("open local store %s: %w", cfg.Path, err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(1)
	log.WithField("path", cfg.Path).Info("local database opened")
	return db, nil
}

// Close closes the pool behind a GORM handle.
func Close(db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
