package sqlite

import (
	"path/filepath"
	"sync"
	"testing"
)

func TestNewDB_InMemory(t *testing.T) {
	t.Parallel()

	db, err := NewDB(":memory:")
	if err != nil {
		t.Fatalf("NewDB failed: %v", err)
	}
	defer db.Close() //nolint:errcheck

	var fk int
	if scanErr := db.QueryRow("PRAGMA foreign_keys").Scan(&fk); scanErr != nil {
		t.Fatalf("pragma query failed: %v", scanErr)
	}
	if fk != 1 {
		t.Errorf("expected foreign_keys=1, got %d", fk)
	}
}

func TestNewDB_InMemorySingleConnection(t *testing.T) {
	t.Parallel()

	db, err := NewDB(":memory:")
	if err != nil {
		t.Fatalf("NewDB failed: %v", err)
	}
	defer db.Close() //nolint:errcheck

	// Each pooled connection to ":memory:" gets its own private database;
	// a second connection would see none of the schema.
	if got := db.Stats().MaxOpenConnections; got != 1 {
		t.Fatalf("expected a single connection for in-memory databases, got %d", got)
	}

	if _, execErr := db.Exec("CREATE TABLE t (x INTEGER)"); execErr != nil {
		t.Fatalf("create table failed: %v", execErr)
	}
	if _, execErr := db.Exec("INSERT INTO t (x) VALUES (1)"); execErr != nil {
		t.Fatalf("insert failed: %v", execErr)
	}

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			var n int
			if scanErr := db.QueryRow("SELECT COUNT(*) FROM t").Scan(&n); scanErr != nil {
				t.Errorf("count query failed: %v", scanErr)
				return
			}
			if n != 1 {
				t.Errorf("expected every connection to see the row, got count=%d", n)
			}
		}()
	}
	wg.Wait()
}

func TestNewDB_FileCreated(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "chatd.db")
	db, err := NewDB(path)
	if err != nil {
		t.Fatalf("NewDB failed: %v", err)
	}
	defer db.Close() //nolint:errcheck

	if _, execErr := db.Exec("CREATE TABLE t (x INTEGER)"); execErr != nil {
		t.Errorf("expected writable database: %v", execErr)
	}
}

func TestNewDB_MissingParentDir_ReturnsError(t *testing.T) {
	t.Parallel()

	if _, err := NewDB("/no/such/dir/chatd.db"); err == nil {
		t.Error("expected error for missing parent directory")
	}
}
