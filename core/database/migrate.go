package database

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"

	"github.com/m3rciful/encoderbot/core/logger"
)

const migrateComponent = "db.migrate"

// RunMigrations applies every pending up migration found at the root of fsys.
func RunMigrations(ctx context.Context, cfg Config, fsys fs.FS) error {
	if err := WaitForPostgres(ctx, cfg.KeywordDSN(), 30*time.Second); err != nil {
		logger.Error(ctx, migrateComponent, "db.wait", slog.String("err", err.Error()))
		return fmt.Errorf("database not ready: %w", err)
	}

	files := listMigrationFiles(fsys)
	preview, truncated := logger.SummarizeStrings(files, 6)
	attrs := []slog.Attr{slog.Int("files_total", len(files))}
	if preview != "" {
		attrs = append(attrs, slog.String("files_preview", preview))
	}
	if truncated {
		attrs = append(attrs, slog.Bool("files_truncated", true))
	}
	logger.Debug(ctx, migrateComponent, "resolve", attrs...)

	src, err := iofs.New(fsys, ".")
	if err != nil {
		return fmt.Errorf("open migrations source: %w", err)
	}
	m, err := migrate.NewWithSourceInstance("iofs", src, cfg.URL())
	if err != nil {
		logger.Error(ctx, migrateComponent, "init", slog.String("err", err.Error()))
		return fmt.Errorf("failed to initialize migrations: %w", err)
	}
	defer func() {
		if srcErr, dbErr := m.Close(); srcErr != nil || dbErr != nil {
			logger.Warn(ctx, migrateComponent, "close", slog.Any("err", errors.Join(srcErr, dbErr)))
		}
	}()

	fromVer, _, _ := m.Version()

	start := time.Now()
	upErr := m.Up()
	took := time.Since(start)

	switch {
	case upErr == nil:
	case errors.Is(upErr, migrate.ErrNoChange):
		logger.Info(ctx, migrateComponent, "summary",
			slog.Uint64("from_ver", uint64(fromVer)),
			slog.Uint64("to_ver", uint64(fromVer)),
			slog.Int("files", 0),
			slog.Duration("duration", took),
		)
		return nil
	default:
		logger.Error(ctx, migrateComponent, "apply",
			slog.String("err", upErr.Error()),
			slog.Duration("duration", took),
		)
		return fmt.Errorf("migration execution failed: %w", upErr)
	}

	toVer, _, _ := m.Version()
	if names := selectApplied(files, uint64(fromVer), uint64(toVer)); len(names) > 0 {
		p, tr := logger.SummarizeStrings(names, 6)
		logger.Debug(ctx, migrateComponent, "apply",
			slog.Int("files_total", len(names)),
			slog.String("files_preview", p),
			slog.Bool("files_truncated", tr),
		)
	}

	logger.Info(ctx, migrateComponent, "summary",
		slog.Uint64("from_ver", uint64(fromVer)),
		slog.Uint64("to_ver", uint64(toVer)),
		slog.Int("files", countApplied(files, uint64(fromVer), uint64(toVer))),
		slog.Duration("duration", took),
	)
	return nil
}

func listMigrationFiles(fsys fs.FS) []string {
	entries, err := fs.ReadDir(fsys, ".")
	if err != nil {
		return nil
	}
	var names []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), ".up.sql") {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)
	return names
}

func parseVersion(name string) uint64 {
	head, _, _ := strings.Cut(name, "_")
	v, _ := strconv.ParseUint(head, 10, 64)
	return v
}

func countApplied(files []string, from, to uint64) int {
	if to <= from {
		return 0
	}
	return len(selectApplied(files, from, to))
}

func selectApplied(files []string, from, to uint64) []string {
	var out []string
	for _, f := range files {
		if v := parseVersion(f); v > from && v <= to {
			out = append(out, f)
		}
	}
	return out
}
