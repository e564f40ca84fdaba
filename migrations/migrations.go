// Package migrations holds the SQL schema for the invoices store.
package migrations

import (
	"context"
	"crypto/sha256"
	"embed"
	"encoding/hex"
	"errors"
	"fmt"
	"io/fs"
	"sort"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

//go:embed *.sql
var files embed.FS

// advisoryLockKey serializes migrators across processes.
const advisoryLockKey = 7462839

// ErrLocked is returned when another process is migrating.
var ErrLocked = errors.New("another migrator is currently running")

// Apply runs every embedded migration not yet recorded in schema_migrations,
// in file name order, and returns the file names it applied. A recorded
// migration whose file has since changed is an error.
func Apply(ctx context.Context, pool *pgxpool.Pool) ([]string, error) {
	conn, err := pool.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to acquire connection for lock: %w", err)
	}
	defer conn.Release()

	var locked bool
	if err := conn.QueryRow(ctx, "SELECT pg_try_advisory_lock($1)", advisoryLockKey).Scan(&locked); err != nil {
		return nil, fmt.Errorf("failed to query advisory lock: %w", err)
	}
	if !locked {
		return nil, ErrLocked
	}
	defer conn.Exec(context.Background(), "SELECT pg_advisory_unlock($1)", advisoryLockKey) //nolint:errcheck

	if _, err := conn.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version    TEXT PRIMARY KEY,
			filename   TEXT NOT NULL,
			checksum   TEXT NOT NULL,
			applied_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`); err != nil {
		return nil, fmt.Errorf("failed to create schema_migrations: %w", err)
	}

	names, err := discover()
	if err != nil {
		return nil, err
	}

	var applied []string
	for _, name := range names {
		done, err := apply(ctx, conn.Conn(), name)
		if err != nil {
			return applied, err
		}
		if done {
			applied = append(applied, name)
		}
	}
	return applied, nil
}

// discover lists the embedded migrations, rejecting duplicate versions.
func discover() ([]string, error) {
	names, err := fs.Glob(files, "*.sql")
	if err != nil {
		return nil, fmt.Errorf("failed to list migrations: %w", err)
	}
	sort.Strings(names)

	seen := make(map[string]string, len(names))
	for _, name := range names {
		version, err := versionOf(name)
		if err != nil {
			return nil, err
		}
		if prev, ok := seen[version]; ok {
			return nil, fmt.Errorf("duplicate migration version %s: %s and %s", version, prev, name)
		}
		seen[version] = name
	}
	return names, nil
}

func versionOf(name string) (string, error) {
	version, _, ok := strings.Cut(name, "_")
	if !ok || version == "" {
		return "", fmt.Errorf("invalid migration file name %s, expected NNN_description.sql", name)
	}
	return version, nil
}

func checksum(sqlText []byte) string {
	sum := sha256.Sum256(sqlText)
	return hex.EncodeToString(sum[:])
}

// apply runs one migration in a transaction. It reports false when the
// migration was already recorded.
func apply(ctx context.Context, conn *pgx.Conn, name string) (bool, error) {
	version, err := versionOf(name)
	if err != nil {
		return false, err
	}
	sqlText, err := files.ReadFile(name)
	if err != nil {
		return false, fmt.Errorf("failed to read migration %s: %w", name, err)
	}
	sum := checksum(sqlText)

	var recorded string
	err = conn.QueryRow(ctx, "SELECT checksum FROM schema_migrations WHERE version = $1", version).Scan(&recorded)
	switch {
	case err == nil && recorded == sum:
		return false, nil
	case err == nil:
		return false, fmt.Errorf("checksum mismatch for %s: recorded %s, file %s", name, recorded, sum)
	case !errors.Is(err, pgx.ErrNoRows):
		return false, fmt.Errorf("failed to check migration %s: %w", name, err)
	}

	tx, err := conn.Begin(ctx)
	if err != nil {
		return false, fmt.Errorf("failed to begin transaction for %s: %w", name, err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	if _, err := tx.Exec(ctx, string(sqlText)); err != nil {
		return false, fmt.Errorf("migration %s failed: %w", name, err)
	}
	if _, err := tx.Exec(ctx,
		"INSERT INTO schema_migrations (version, filename, checksum) VALUES ($1, $2, $3)",
		version, name, sum,
	); err != nil {
		return false, fmt.Errorf("failed to record migration %s: %w", name, err)
	}
	if err := tx.Commit(ctx); err != nil {
		return false, fmt.Errorf("failed to commit migration %s: %w", name, err)
	}
	return true, nil
}
