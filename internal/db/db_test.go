package db

import (
	"path/filepath"
	"testing"
)

func TestOpenMemory(t *testing.T) {
	d, err := OpenMemory()
	if err != nil {
		t.Fatalf("OpenMemory() error: %v", err)
	}
	defer d.Close()

	for _, table := range []string{"jobs", "job_files", "chunks"} {
		var count int
		err := d.QueryRow("SELECT COUNT(*) FROM " + table).Scan(&count)
		if err != nil {
			t.Errorf("table %s: %v", table, err)
		}
	}
}

func TestOpenFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "automigrate.db")
	d, err := Open(path)
	if err != nil {
		t.Fatalf("Open() error: %v", err)
	}
	defer d.Close()

	if d.Dialect() != SQLite {
		t.Errorf("dialect: got %q, want %q", d.Dialect(), SQLite)
	}
}

func TestMigrateIdempotent(t *testing.T) {
	d, err := OpenMemory()
	if err != nil {
		t.Fatalf("OpenMemory() error: %v", err)
	}
	defer d.Close()

	if err := d.migrate(); err != nil {
		t.Fatalf("second migrate() error: %v", err)
	}
}

func TestRebind(t *testing.T) {
	q := "SELECT * FROM chunks WHERE job_id = ? AND file_path = ?"

	sqlite := &DB{dialect: SQLite}
	if got := sqlite.Rebind(q); got != q {
		t.Errorf("sqlite rebind changed query: %q", got)
	}

	pg := &DB{dialect: Postgres}
	want := "SELECT * FROM chunks WHERE job_id = $1 AND file_path = $2"
	if got := pg.Rebind(q); got != want {
		t.Errorf("postgres rebind: got %q, want %q", got, want)
	}
}
