package postgres

import (
	"strings"
	"testing"
)

func TestLoadMigrations(t *testing.T) {
	migrations, err := loadMigrations()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(migrations) == 0 {
		t.Fatal("expected embedded migrations")
	}
	if migrations[0].version != "001_swap_faces.sql" {
		t.Errorf("expected first migration 001_swap_faces.sql, got %s", migrations[0].version)
	}
	if !strings.Contains(migrations[0].sql, "swap_faces") {
		t.Error("expected first migration to create swap_faces")
	}
	for i := 1; i < len(migrations); i++ {
		if migrations[i-1].version >= migrations[i].version {
			t.Errorf("migrations out of order: %s before %s", migrations[i-1].version, migrations[i].version)
		}
	}
}
