package database

import (
	"context"
	"fmt"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"
)

type ConnectionConfig struct {
	Driver          string
	Host            string
	Port            string
	User            string
	Password        string
	Name            string
	SSLMode         string
	SQLitePath      string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// DSN renders the driver specific connection string.
func (c ConnectionConfig) DSN() string {
	if FlavorForDriver(c.Driver) == FlavorForDriver(DriverSQLite) {
		path := c.SQLitePath
		if path == "" {
			path = ":memory:"
		}
		return fmt.Sprintf("file:%s?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)", path)
	}
	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Name, c.SSLMode)
}

// Open connects and pings the configured database.
func Open(ctx context.Context, cfg ConnectionConfig, logger ectologger.Logger) (DB, error) {
	driverName := DriverPostgres
	if FlavorForDriver(cfg.Driver) == FlavorForDriver(DriverSQLite) {
		driverName = DriverSQLite
	}

	db, err := sqlx.ConnectContext(ctx, driverName, cfg.DSN())
	if err != nil {
		logger.WithContext(ctx).WithError(err).WithField("driver", driverName).Error("Failed to connect to database")
		return nil, err
	}

	if driverName == DriverSQLite {
		// one writer; also keeps an in-memory database alive across calls
		db.SetMaxOpenConns(1)
	} else {
		if cfg.MaxOpenConns > 0 {
			db.SetMaxOpenConns(cfg.MaxOpenConns)
		}
		if cfg.MaxIdleConns > 0 {
			db.SetMaxIdleConns(cfg.MaxIdleConns)
		}
		if cfg.ConnMaxLifetime > 0 {
			db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
		}
	}

	logger.WithContext(ctx).WithField("driver", driverName).Info("Connected to database")
	return NewDatabaseInstance(db, logger), nil
}
