package sheets

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

// Database stores sheets as JSON-encoded rows in SQLite. Each statement runs
// in autocommit mode so a returned call is durable.
type Database struct {
	db   *sql.DB
	path string
}

const (
	sqliteBusyCode          = 5
	busyRetryAttempts       = 5
	busyRetryInitialBackoff = 10 * time.Millisecond
	busyRetryMaxBackoff     = 200 * time.Millisecond
)

// OpenDatabase initializes or connects to the ledger database at path.
func OpenDatabase(ctx context.Context, path string) (*Database, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("ensure ledger directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	db.SetMaxOpenConns(1)

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=FULL",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.ExecContext(ctx, pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	store := &Database{db: db, path: path}
	if err := store.initSchema(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

// Close closes the underlying database connection.
func (d *Database) Close() error {
	if d == nil || d.db == nil {
		return nil
	}
	return d.db.Close()
}

// Sheet returns the named sheet, registering it on first use.
func (d *Database) Sheet(ctx context.Context, name string) (Sheet, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, errors.New("sheet name is required")
	}
	err := d.execWithRetry(ctx,
		"INSERT OR IGNORE INTO sheets (name, created_at) VALUES (?, ?)",
		name, time.Now().UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return nil, fmt.Errorf("register sheet %q: %w", name, err)
	}
	return &sqliteSheet{db: d, name: name}, nil
}

func isSQLiteBusy(err error) bool {
	if err == nil {
		return false
	}
	var coder interface{ Code() int }
	if errors.As(err, &coder) && coder.Code() == sqliteBusyCode {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "SQLITE_BUSY") || strings.Contains(msg, "database is locked")
}

func retryOnBusy(ctx context.Context, op func() error) error {
	delay := busyRetryInitialBackoff
	var lastErr error
	for attempt := 0; attempt < busyRetryAttempts; attempt++ {
		lastErr = op()
		if lastErr == nil {
			return nil
		}
		if !isSQLiteBusy(lastErr) || attempt == busyRetryAttempts-1 {
			break
		}
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}
		if next := delay * 2; next <= busyRetryMaxBackoff {
			delay = next
		}
	}
	return lastErr
}

func (d *Database) execWithRetry(ctx context.Context, query string, args ...any) error {
	return retryOnBusy(ctx, func() error {
		_, err := d.db.ExecContext(ctx, query, args...)
		return err
	})
}

type sqliteSheet struct {
	db   *Database
	name string
}

func (s *sqliteSheet) Name() string { return s.name }

func (s *sqliteSheet) Header(ctx context.Context) ([]string, error) {
	rows, err := s.ReadRange(ctx, 1, 1)
	if err != nil || len(rows) == 0 {
		return nil, err
	}
	return rows[0], nil
}

func (s *sqliteSheet) EnsureHeader(ctx context.Context, columns []string) ([]string, error) {
	existing, err := s.Header(ctx)
	if err != nil {
		return nil, err
	}
	merged, added := mergeHeader(existing, columns)
	if len(added) == 0 {
		return merged, nil
	}
	if err := s.putRow(ctx, 1, merged); err != nil {
		return nil, err
	}
	return merged, nil
}

func (s *sqliteSheet) AppendRow(ctx context.Context, values []string) (int, error) {
	encoded, err := json.Marshal(nonNil(values))
	if err != nil {
		return 0, fmt.Errorf("encode row: %w", err)
	}
	var row int
	err = retryOnBusy(ctx, func() error {
		return s.db.db.QueryRowContext(ctx, `
INSERT INTO sheet_rows (sheet, row_num, cells, updated_at)
SELECT ?, COALESCE(MAX(row_num), 0) + 1, ?, ? FROM sheet_rows WHERE sheet = ?
RETURNING row_num`,
			s.name, string(encoded), now(), s.name,
		).Scan(&row)
	})
	if err != nil {
		return 0, fmt.Errorf("append row to %q: %w", s.name, err)
	}
	return row, nil
}

func (s *sqliteSheet) ReadRange(ctx context.Context, first, last int) ([][]string, error) {
	if first < 1 {
		return nil, fmt.Errorf("%w: first row %d", ErrOutOfRange, first)
	}
	upper := last
	if upper <= 0 {
		upper = int(^uint32(0) >> 1)
	}
	rows, err := s.db.db.QueryContext(ctx,
		"SELECT row_num, cells FROM sheet_rows WHERE sheet = ? AND row_num BETWEEN ? AND ? ORDER BY row_num",
		s.name, first, upper,
	)
	if err != nil {
		return nil, fmt.Errorf("read %q: %w", s.name, err)
	}
	defer rows.Close()

	out := [][]string{}
	expected := first
	for rows.Next() {
		var (
			num     int
			encoded string
		)
		if err := rows.Scan(&num, &encoded); err != nil {
			return nil, fmt.Errorf("scan %q row: %w", s.name, err)
		}
		// gaps read back as empty rows, matching spreadsheet semantics
		for ; expected < num; expected++ {
			out = append(out, []string{})
		}
		var cells []string
		if err := json.Unmarshal([]byte(encoded), &cells); err != nil {
			return nil, fmt.Errorf("decode %q row %d: %w", s.name, num, err)
		}
		out = append(out, cells)
		expected = num + 1
	}
	return out, rows.Err()
}

func (s *sqliteSheet) UpdateCell(ctx context.Context, row, col int, value string) error {
	if row < 1 || col < 1 {
		return fmt.Errorf("%w: row %d col %d", ErrOutOfRange, row, col)
	}
	rows, err := s.ReadRange(ctx, row, row)
	if err != nil {
		return err
	}
	var cells []string
	if len(rows) > 0 {
		cells = rows[0]
	}
	for len(cells) < col {
		cells = append(cells, "")
	}
	cells[col-1] = value
	return s.putRow(ctx, row, cells)
}

func (s *sqliteSheet) putRow(ctx context.Context, row int, cells []string) error {
	encoded, err := json.Marshal(nonNil(cells))
	if err != nil {
		return fmt.Errorf("encode row: %w", err)
	}
	err = s.db.execWithRetry(ctx, `
INSERT INTO sheet_rows (sheet, row_num, cells, updated_at) VALUES (?, ?, ?, ?)
ON CONFLICT (sheet, row_num) DO UPDATE SET cells = excluded.cells, updated_at = excluded.updated_at`,
		s.name, row, string(encoded), now(),
	)
	if err != nil {
		return fmt.Errorf("write %q row %d: %w", s.name, row, err)
	}
	return nil
}

func nonNil(values []string) []string {
	if values == nil {
		return []string{}
	}
	return values
}

func now() string {
	return time.Now().UTC().Format(time.RFC3339Nano)
}
