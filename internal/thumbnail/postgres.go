package thumbnail

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/m3rciful/encoderbot/core/logger"
	"github.com/m3rciful/encoderbot/internal/metrics"
)

const component = "service.thumbnails"

type record struct {
	UserID    int64     `db:"user_id"`
	FileID    string    `db:"file_id"`
	UpdatedAt time.Time `db:"updated_at"`
}

// PostgresStore persists thumbnails in the thumbnails table.
type PostgresStore struct {
	db      *sqlx.DB
	metrics *metrics.Metrics
}

// NewPostgresStore wraps an open database handle. m may be nil.
func NewPostgresStore(db *sqlx.DB, m *metrics.Metrics) *PostgresStore {
	return &PostgresStore{db: db, metrics: m}
}

// Get implements Store.
func (s *PostgresStore) Get(ctx context.Context, userID int64) (string, bool, error) {
	s.metrics.Thumbnail("get")
	var rec record
	err := s.db.GetContext(ctx, &rec,
		`SELECT user_id, file_id, updated_at FROM thumbnails WHERE user_id = $1`, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		logger.Error(ctx, component, "thumbnail.get",
			slog.String("status", "fail"),
			slog.Int64("user_id", userID),
			slog.String("err", err.Error()),
		)
		return "", false, fmt.Errorf("thumbnail: get %d: %w", userID, err)
	}
	return rec.FileID, true, nil
}

// Set implements Store.
func (s *PostgresStore) Set(ctx context.Context, userID int64, fileID *string) error {
	start := time.Now()
	if fileID == nil {
		s.metrics.Thumbnail("delete")
		if _, err := s.db.ExecContext(ctx, `DELETE FROM thumbnails WHERE user_id = $1`, userID); err != nil {
			return fmt.Errorf("thumbnail: delete %d: %w", userID, err)
		}
		logger.Info(ctx, component, "thumbnail.delete",
			slog.String("status", "ok"),
			slog.Int64("user_id", userID),
			slog.Duration("duration", logger.Took(start)),
		)
		return nil
	}

	s.metrics.Thumbnail("set")
	rec := record{UserID: userID, FileID: *fileID, UpdatedAt: time.Now().UTC()}
	_, err := s.db.NamedExecContext(ctx, `
		INSERT INTO thumbnails (user_id, file_id, updated_at)
		VALUES (:user_id, :file_id, :updated_at)
		ON CONFLICT (user_id) DO UPDATE
		SET file_id = EXCLUDED.file_id, updated_at = EXCLUDED.updated_at`, rec)
	if err != nil {
		return fmt.Errorf("thumbnail: set %d: %w", userID, err)
	}
	logger.Info(ctx, component, "thumbnail.set",
		slog.String("status", "ok"),
		slog.Int64("user_id", userID),
		slog.Duration("duration", logger.Took(start)),
	)
	return nil
}
