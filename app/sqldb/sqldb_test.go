package sqldb

import (
	"context"
	"path/filepath"
	"testing"
)

func TestRebind(t *testing.T) {
	pg := &DB{Dialect: Postgres}
	if got := pg.Rebind("SELECT a FROM t WHERE b = ? AND c = ?"); got != "SELECT a FROM t WHERE b = $1 AND c = $2" {
		t.Fatalf("postgres rebind = %q", got)
	}
	lite := &DB{Dialect: SQLite}
	if got := lite.Rebind("x = ?"); got != "x = ?" {
		t.Fatalf("sqlite rebind = %q", got)
	}
}

func TestOpenSQLite(t *testing.T) {
	db, err := Open(context.Background(), Config{DSN: filepath.Join(t.TempDir(), "t.db")})
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer db.Close()
	if db.Dialect != SQLite || db.BlobType() != "BLOB" {
		t.Fatalf("unexpected dialect %s", db.Dialect)
	}
	if _, err := db.Exec("CREATE TABLE x (a TEXT)"); err != nil {
		t.Fatalf("exec: %v", err)
	}
}

func TestOpenErrors(t *testing.T) {
	if _, err := Open(context.Background(), Config{Type: "postgres"}); err == nil {
		t.Fatal("expected error for missing postgres dsn")
	}
	if _, err := Open(context.Background(), Config{Type: "oracle", DSN: "x"}); err == nil {
		t.Fatal("expected error for unsupported type")
	}
}
