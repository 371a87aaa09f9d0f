// Package bootstrap brings up shared infrastructure before the bot starts:
// logging first, then the optional database and its migrations.
package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"

	"github.com/jmoiron/sqlx"

	coreconfig "github.com/m3rciful/encoderbot/core/config"
	coredatabase "github.com/m3rciful/encoderbot/core/database"
	"github.com/m3rciful/encoderbot/core/logger"
)

// Options control the bootstrap pipeline. Nil hooks select the defaults.
type Options struct {
	Config   *coreconfig.Config
	Database coredatabase.Config
	// Migrations holds the *.sql files applied after connecting.
	Migrations fs.FS

	LoggerInit func(*coreconfig.Config) error
	Connect    func(context.Context, coredatabase.Config) (*sqlx.DB, error)
	Migrate    func(context.Context, coredatabase.Config, fs.FS) error
}

// Result exposes the initialized infrastructure. DB is nil when no database
// is configured.
type Result struct {
	DB *sqlx.DB
}

// Close releases the database pool.
func (r *Result) Close() error {
	if r == nil || r.DB == nil {
		return nil
	}
	return r.DB.Close()
}

// Run initializes the logger, then connects and migrates the database when
// one is configured.
func Run(ctx context.Context, opts Options) (*Result, error) {
	if opts.Config == nil {
		return nil, errors.New("bootstrap: nil config provided")
	}

	loggerInit := opts.LoggerInit
	if loggerInit == nil {
		loggerInit = logger.InitLogger
	}
	if err := loggerInit(opts.Config); err != nil {
		return nil, fmt.Errorf("bootstrap: logger init failed: %w", err)
	}

	if !opts.Database.Enabled() {
		logger.Info(ctx, "db", "db.disabled", slog.String("reason", "no host configured"))
		return &Result{}, nil
	}

	connect := opts.Connect
	if connect == nil {
		connect = coredatabase.Connect
	}
	db, err := connect(ctx, opts.Database)
	if err != nil {
		return nil, fmt.Errorf("bootstrap: database initialization failed: %w", err)
	}

	if opts.Migrations != nil {
		migrate := opts.Migrate
		if migrate == nil {
			migrate = coredatabase.RunMigrations
		}
		if err := migrate(ctx, opts.Database, opts.Migrations); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("bootstrap: migrations failed: %w", err)
		}
	}
	return &Result{DB: db}, nil
}
