package migrations

import (
	"context"
	"fmt"
	"io/fs"
	"strings"
)

const (
	DialectPostgres = "postgres"
	DialectSQLite   = "sqlite"

	sourceRoot = "data/sql/migrations"
)

// ApplyFunc runs the migration files of one dialect.
type ApplyFunc func(ctx context.Context, dialect string, fsys fs.FS) error

// DialectFor maps a database driver name onto its migration dialect.
func DialectFor(driver string) (string, error) {
	switch strings.TrimSpace(strings.ToLower(driver)) {
	case "sqlite", "sqlite3":
		return DialectSQLite, nil
	case "postgres", "postgresql", "pg":
		return DialectPostgres, nil
	default:
		return "", fmt.Errorf("migrations: no dialect for driver %q", driver)
	}
}

// Source returns the migration files for dialect. Postgres files live at the
// root of data/sql/migrations; SQLite alternatives live in its sqlite folder.
func Source(root fs.FS, dialect string) (fs.FS, error) {
	if root == nil {
		return nil, fmt.Errorf("migrations: source filesystem is required")
	}
	dir := sourceRoot
	switch dialect {
	case DialectPostgres:
	case DialectSQLite:
		dir += "/sqlite"
	default:
		return nil, fmt.Errorf("migrations: unsupported dialect %q", dialect)
	}
	sub, err := fs.Sub(root, dir)
	if err != nil {
		return nil, fmt.Errorf("migrations: resolve %s: %w", dir, err)
	}
	matches, err := fs.Glob(sub, "*.up.sql")
	if err != nil {
		return nil, fmt.Errorf("migrations: glob %s: %w", dir, err)
	}
	if len(matches) == 0 {
		return nil, fmt.Errorf("migrations: %s has no *.up.sql files", dir)
	}
	return sub, nil
}

// Apply resolves the dialect's migrations from root and hands them to apply.
func Apply(ctx context.Context, root fs.FS, dialect string, apply ApplyFunc) error {
	if apply == nil {
		return fmt.Errorf("migrations: apply function is required")
	}
	source, err := Source(root, dialect)
	if err != nil {
		return err
	}
	if err := apply(ctx, dialect, source); err != nil {
		return fmt.Errorf("migrations: apply %s: %w", dialect, err)
	}
	return nil
}
