package journal

import (
	"path/filepath"
	"testing"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "journal.db"))
	if err != nil {
		t.Fatalf("failed to open journal: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestStartFinishRecent(t *testing.T) {
	db := openTestDB(t)

	id, err := db.Start("full-backup")
	if err != nil {
		t.Fatalf("start failed: %v", err)
	}
	if id == "" {
		t.Fatal("expected non-empty operation id")
	}

	if err := db.Finish(id, StatusOK, "archive: /opt/relayx/backups/relayx_full_latest.tar.gz"); err != nil {
		t.Fatalf("finish failed: %v", err)
	}

	ops, err := db.Recent(10)
	if err != nil {
		t.Fatalf("recent failed: %v", err)
	}
	if len(ops) != 1 {
		t.Fatalf("expected 1 operation, got %d", len(ops))
	}
	op := ops[0]
	if op.ID != id || op.Action != "full-backup" || op.Status != StatusOK {
		t.Errorf("unexpected operation: %+v", op)
	}
	if op.FinishedAt == nil {
		t.Error("expected finished_at to be set")
	}
}

func TestRecent_NewestFirstAndLimited(t *testing.T) {
	db := openTestDB(t)

	for _, action := range []string{"a", "b", "c"} {
		id, err := db.Start(action)
		if err != nil {
			t.Fatalf("start failed: %v", err)
		}
		if err := db.Finish(id, StatusFailed, ""); err != nil {
			t.Fatalf("finish failed: %v", err)
		}
	}

	ops, err := db.Recent(2)
	if err != nil {
		t.Fatalf("recent failed: %v", err)
	}
	if len(ops) != 2 {
		t.Fatalf("expected 2 operations, got %d", len(ops))
	}
}

func TestOpen_CreatesParentDirectory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "dir", "journal.db")
	db, err := Open(path)
	if err != nil {
		t.Fatalf("open should create parent dirs: %v", err)
	}
	_ = db.Close()
}
