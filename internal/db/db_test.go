package db

import (
	"path/filepath"
	"testing"
)

func TestOpenMigrates(t *testing.T) {
	gdb, err := Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer func() { _ = Close(gdb) }()

	if !gdb.Migrator().HasTable(&TransferRecord{}) {
		t.Error("expected transfer_records table")
	}
	if !gdb.Migrator().HasColumn(&TransferRecord{}, "sid") {
		t.Error("expected sid column")
	}
}

func TestOpenBadPath(t *testing.T) {
	if _, err := Open(filepath.Join(t.TempDir(), "missing", "dir", "test.db")); err == nil {
		t.Error("expected error for unwritable path")
	}
}
