package thumbnail

import (
	"context"
	"os"
	"testing"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
)

func exerciseStore(t *testing.T, s Store) {
	t.Helper()
	ctx := context.Background()

	if _, ok, err := s.Get(ctx, 7); err != nil || ok {
		t.Fatalf("Get on empty store = %v, %v", ok, err)
	}

	first, second := "file-a", "file-b"
	if err := s.Set(ctx, 7, &first); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if err := s.Set(ctx, 7, &second); err != nil {
		t.Fatalf("Set replace: %v", err)
	}
	got, ok, err := s.Get(ctx, 7)
	if err != nil || !ok || got != second {
		t.Fatalf("Get = %q, %v, %v; want %q", got, ok, err, second)
	}
	if _, ok, _ := s.Get(ctx, 8); ok {
		t.Fatal("other user must not see the thumbnail")
	}

	if err := s.Set(ctx, 7, nil); err != nil {
		t.Fatalf("Set(nil): %v", err)
	}
	if _, ok, err := s.Get(ctx, 7); err != nil || ok {
		t.Fatalf("Get after delete = %v, %v", ok, err)
	}
	if err := s.Set(ctx, 7, nil); err != nil {
		t.Fatalf("deleting a missing record must succeed: %v", err)
	}
}

func TestMemoryStore(t *testing.T) {
	exerciseStore(t, NewMemoryStore())
}

// TestPostgresStore runs against a migrated database given by ENCODERBOT_TEST_DSN.
func TestPostgresStore(t *testing.T) {
	dsn := os.Getenv("ENCODERBOT_TEST_DSN")
	if dsn == "" {
		t.Skip("ENCODERBOT_TEST_DSN not set")
	}
	db, err := sqlx.Connect("postgres", dsn)
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	defer db.Close()
	if _, err := db.Exec(`DELETE FROM thumbnails WHERE user_id IN (7, 8)`); err != nil {
		t.Fatalf("cleanup: %v", err)
	}
	exerciseStore(t, NewPostgresStore(db, nil))
}
