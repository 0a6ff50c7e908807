package main

import (
	"context"

	"github.com/Gobusters/ectologger"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/mathew-h/experiment-tracking-sub000/config"
	"github.com/mathew-h/experiment-tracking-sub000/db"
	"github.com/mathew-h/experiment-tracking-sub000/internal/app"
	"github.com/mathew-h/experiment-tracking-sub000/pkg/database"
	"github.com/mathew-h/experiment-tracking-sub000/pkg/logging"
)

// runtime is the state shared by every command.
type runtime struct {
	cfg    *config.Config
	zap    *zap.Logger
	logger ectologger.Logger
	rules  config.InheritanceRules
}

func newRuntime() (*runtime, error) {
	cfg, err := config.Load(envFiles...)
	if err != nil {
		return nil, err
	}

	zl, err := logging.NewZap(cfg.LogLevel, cfg.PrettyLogs)
	if err != nil {
		return nil, errors.Wrap(err, "failed to build logger")
	}

	rules := config.DefaultInheritanceRules()
	if cfg.ConditionsInheritanceFile != "" {
		if rules, err = config.LoadInheritanceRules(cfg.ConditionsInheritanceFile); err != nil {
			return nil, err
		}
	}

	return &runtime{
		cfg:    cfg,
		zap:    zl,
		logger: logging.New(zl.With(zap.String("app", cfg.AppName))),
		rules:  rules,
	}, nil
}

func (r *runtime) connectionConfig() database.ConnectionConfig {
	return database.ConnectionConfig{
		Driver:          r.cfg.DatabaseDriver,
		Host:            r.cfg.DatabaseHost,
		Port:            r.cfg.DatabasePort,
		User:            r.cfg.DatabaseUserName,
		Password:        r.cfg.DatabasePassword,
		Name:            r.cfg.DatabaseName,
		SSLMode:         r.cfg.DatabaseSSLMode,
		SQLitePath:      r.cfg.DatabaseSQLitePath,
		MaxOpenConns:    r.cfg.DatabaseMaxOpenConns,
		MaxIdleConns:    r.cfg.DatabaseMaxIdleConns,
		ConnMaxLifetime: r.cfg.DatabaseConnMaxLifetime,
	}
}

func (r *runtime) migrations() *database.MigrationService {
	return database.NewMigrationService(r.logger, &database.MigrationConfig{
		Source:       db.Migrations,
		Version:      uint(r.cfg.DatabaseMigrationVersion),
		Force:        r.cfg.DatabaseMigrationForce,
		AutoRollback: r.cfg.DatabaseMigrationAutoRollback,
	})
}

// open connects to the database for a one-shot command and builds the services without
// locking or publishing.
func (r *runtime) open(ctx context.Context) (database.DB, *app.Services, error) {
	conn, err := database.Open(ctx, r.connectionConfig(), r.logger)
	if err != nil {
		return nil, nil, err
	}
	services := app.NewServices(conn, r.logger, app.Options{
		LegacyRawMatch: r.cfg.TimepointLegacyRawMatch,
		Rules:          r.rules,
	})
	return conn, services, nil
}
