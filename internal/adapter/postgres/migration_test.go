package postgres_test

import (
	"context"
	"os"
	"testing"

	"github.com/Strob0t/tasktimer/internal/adapter/postgres"
)

const totalMigrations = 2

// TestMigrationUpDown applies all migrations, rolls them all back, then re-applies.
// This verifies that every migration's Down section works correctly.
func TestMigrationUpDown(t *testing.T) {
	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		t.Skip("requires DATABASE_URL")
	}
	ctx := context.Background()

	steps := []struct {
		name string
		run  func() error
		want int64
	}{
		{"up", func() error { return postgres.RunMigrations(ctx, dsn) }, totalMigrations},
		{"down one", func() error { return postgres.RollbackMigrations(ctx, dsn, 1) }, totalMigrations - 1},
		{"down rest", func() error { return postgres.RollbackMigrations(ctx, dsn, totalMigrations-1) }, 0},
		{"re-up", func() error { return postgres.RunMigrations(ctx, dsn) }, totalMigrations},
	}
	for _, st := range steps {
		if err := st.run(); err != nil {
			t.Fatalf("%s: %v", st.name, err)
		}
		v, err := postgres.MigrationVersion(ctx, dsn)
		if err != nil {
			t.Fatalf("version after %s: %v", st.name, err)
		}
		if v != st.want {
			t.Fatalf("expected version %d after %s, got %d", st.want, st.name, v)
		}
	}
}
