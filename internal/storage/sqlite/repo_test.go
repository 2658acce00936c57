package sqlite

import (
	"context"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"csvbatch/internal/batch"
	"csvbatch/internal/storage"
)

func openTemp(t *testing.T) storage.Repository {
	t.Helper()
	dsn := filepath.Join(t.TempDir(), "manifests.db")
	repo, err := storage.New(context.Background(), storage.Config{
		Kind:    Kind,
		DSN:     dsn,
		Table:   "manifests",
		Columns: storage.ManifestColumns(),
	})
	if err != nil {
		t.Fatalf("storage.New error: %v", err)
	}
	t.Cleanup(repo.Close)
	return repo
}

func TestManifestRoundTrip(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	repo := openTemp(t)
	if err := storage.EnsureTable(ctx, Kind, repo, "manifests"); err != nil {
		t.Fatalf("EnsureTable error: %v", err)
	}
	// idempotent
	if err := storage.EnsureTable(ctx, Kind, repo, "manifests"); err != nil {
		t.Fatalf("second EnsureTable error: %v", err)
	}

	var rows [][]any
	for seq := 1; seq <= 3; seq++ {
		m := batch.Manifest{
			RunID: "run1", Tap: "tap", Stream: "users", Seq: seq,
			Files: []batch.FileInfo{{URL: "file:///x", Records: seq * 10, Checksum: "abc"}},
		}
		rows = append(rows, storage.ManifestRows(m, time.Now())...)
	}
	n, err := repo.CopyFrom(ctx, storage.ManifestColumns(), rows)
	if err != nil {
		t.Fatalf("CopyFrom error: %v", err)
	}
	if n != 3 {
		t.Fatalf("CopyFrom inserted %d, want 3", n)
	}

	inner := repo.(*wrappedRepo).Repository
	var count, records int64
	if err := inner.db.QueryRowContext(ctx, `SELECT COUNT(*), SUM(records) FROM manifests WHERE run_id = ?`, "run1").Scan(&count, &records); err != nil {
		t.Fatalf("query error: %v", err)
	}
	if count != 3 || records != 60 {
		t.Fatalf("count=%d records=%d, want 3 and 60", count, records)
	}

	// primary key rejects a duplicate chunk and rolls back the batch
	if _, err := repo.CopyFrom(ctx, storage.ManifestColumns(), rows[:1]); err == nil {
		t.Fatal("expected primary key violation")
	}
}

func TestCopyFrom_Validation(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	repo := openTemp(t)

	if _, err := repo.CopyFrom(ctx, nil, [][]any{{1}}); err == nil {
		t.Fatal("expected error for empty columns")
	}
	if n, err := repo.CopyFrom(ctx, []string{"a"}, nil); err != nil || n != 0 {
		t.Fatalf("CopyFrom(no rows) = %d, %v", n, err)
	}
	if err := repo.Exec(ctx, `CREATE TABLE manifests (a TEXT, b TEXT)`); err != nil {
		t.Fatalf("Exec error: %v", err)
	}
	_, err := repo.CopyFrom(ctx, []string{"a", "b"}, [][]any{{"x"}})
	if err == nil || !strings.Contains(err.Error(), "row length") {
		t.Fatalf("expected row length error, got %v", err)
	}
}

func TestNewRepository_EmptyDSN(t *testing.T) {
	t.Parallel()

	if _, _, err := NewRepository(context.Background(), Config{}); err == nil {
		t.Fatal("expected error for empty DSN")
	}
}
