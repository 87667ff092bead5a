package sheets

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
)

//go:embed schema.sql
var schemaSQL string

// workbookVersion is stored in SQLite's user_version pragma. Bump it when
// schema.sql changes; a workbook at any other non-zero version is refused.
const workbookVersion = 1

// ErrSchemaMismatch reports a workbook written by an incompatible release.
var ErrSchemaMismatch = errors.New("schema version mismatch")

func (d *Database) initSchema(ctx context.Context) error {
	var version int
	if err := d.db.QueryRowContext(ctx, "PRAGMA user_version").Scan(&version); err != nil {
		return fmt.Errorf("read workbook version: %w", err)
	}
	switch version {
	case workbookVersion:
		return nil
	case 0:
		return d.createSchema(ctx)
	default:
		return fmt.Errorf("%w: workbook %s is at version %d, this build expects %d",
			ErrSchemaMismatch, d.path, version, workbookVersion)
	}
}

// createSchema creates the tables and stamps the version in one transaction,
// so a crash never leaves a stamped but empty workbook.
func (d *Database) createSchema(ctx context.Context) error {
	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin schema tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, schemaSQL); err != nil {
		return fmt.Errorf("create workbook tables: %w", err)
	}
	// PRAGMA does not accept bound parameters.
	if _, err := tx.ExecContext(ctx, fmt.Sprintf("PRAGMA user_version = %d", workbookVersion)); err != nil {
		return fmt.Errorf("stamp workbook version: %w", err)
	}
	return tx.Commit()
}
