package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/better-wallet/seedless/internal/logger"
)

type migration struct {
	version string
	path    string
}

func main() {
	var (
		dsn       = flag.String("dsn", os.Getenv("POSTGRES_DSN"), "PostgreSQL connection string")
		dir       = flag.String("dir", "migrations", "Directory holding NNN_name.up.sql / .down.sql files")
		direction = flag.String("direction", "up", "Migration direction: up or down")
		steps     = flag.Int("steps", 0, "Number of migrations to run (0 = all)")
	)
	flag.Parse()

	if err := logger.Init(); err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	if *dsn == "" {
		log.Fatal("POSTGRES_DSN is required")
	}
	if *direction != "up" && *direction != "down" {
		log.Fatalf("direction must be up or down, got %q", *direction)
	}

	ctx := context.Background()
	pool, err := pgxpool.New(ctx, *dsn)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer pool.Close()

	applied, err := appliedVersions(ctx, pool)
	if err != nil {
		slog.Error("failed to read applied migrations", "error", err)
		os.Exit(1)
	}

	pending, err := pendingMigrations(resolveDir(*dir), *direction, applied)
	if err != nil {
		slog.Error("failed to list migrations", "error", err)
		os.Exit(1)
	}
	if *steps > 0 && len(pending) > *steps {
		pending = pending[:*steps]
	}

	for _, mig := range pending {
		if err := apply(ctx, pool, mig, *direction); err != nil {
			slog.Error("migration failed", "version", mig.version, "error", err)
			os.Exit(1)
		}
		slog.Info("applied migration", "version", mig.version, "direction", *direction)
	}

	if len(pending) == 0 {
		slog.Info("no migrations to apply")
	} else {
		slog.Info("migrations complete", "count", len(pending))
	}
}

func appliedVersions(ctx context.Context, pool *pgxpool.Pool) (map[string]bool, error) {
	if _, err := pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version TEXT PRIMARY KEY,
			applied_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)
	`); err != nil {
		return nil, fmt.Errorf("failed to create migrations table: %w", err)
	}

	rows, err := pool.Query(ctx, "SELECT version FROM schema_migrations ORDER BY version")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	applied := make(map[string]bool)
	for rows.Next() {
		var version string
		if err := rows.Scan(&version); err != nil {
			return nil, err
		}
		applied[version] = true
	}
	return applied, rows.Err()
}

// resolveDir falls back to a migrations directory next to the executable
func resolveDir(dir string) string {
	if _, err := os.Stat(dir); err == nil || filepath.IsAbs(dir) {
		return dir
	}
	execPath, _ := os.Executable()
	return filepath.Join(filepath.Dir(execPath), dir)
}

// pendingMigrations lists unapplied up migrations in order, or applied down
// migrations in reverse order
func pendingMigrations(dir, direction string, applied map[string]bool) ([]migration, error) {
	suffix := "." + direction + ".sql"
	files, err := filepath.Glob(filepath.Join(dir, "*"+suffix))
	if err != nil {
		return nil, err
	}
	sort.Strings(files)
	if direction == "down" {
		for i, j := 0, len(files)-1; i < j; i, j = i+1, j-1 {
			files[i], files[j] = files[j], files[i]
		}
	}

	var out []migration
	for _, file := range files {
		version := strings.TrimSuffix(filepath.Base(file), suffix)
		if applied[version] == (direction == "up") {
			continue
		}
		out = append(out, migration{version: version, path: file})
	}
	return out, nil
}

func apply(ctx context.Context, pool *pgxpool.Pool, mig migration, direction string) error {
	content, err := os.ReadFile(mig.path)
	if err != nil {
		return err
	}

	tx, err := pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, string(content)); err != nil {
		return err
	}

	bookkeeping := "INSERT INTO schema_migrations (version) VALUES ($1)"
	if direction == "down" {
		bookkeeping = "DELETE FROM schema_migrations WHERE version = $1"
	}
	if _, err := tx.Exec(ctx, bookkeeping, mig.version); err != nil {
		return fmt.Errorf("failed to update migrations table: %w", err)
	}

	return tx.Commit(ctx)
}
