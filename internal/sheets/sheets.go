package sheets

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// ErrOutOfRange reports a row or column outside the sheet.
var ErrOutOfRange = errors.New("cell out of range")

// Sheet is a single tab of a ledger workbook. Rows and columns are 1-based and
// row 1 holds the header. Every mutation is durable when the call returns.
type Sheet interface {
	Name() string
	Header(ctx context.Context) ([]string, error)
	// EnsureHeader writes columns as the header of an empty sheet and appends
	// any missing columns to an existing header. It returns the header in
	// effect afterwards.
	EnsureHeader(ctx context.Context, columns []string) ([]string, error)
	// AppendRow writes values after the last used row and returns its number.
	AppendRow(ctx context.Context, values []string) (int, error)
	// ReadRange returns rows first..last inclusive. last <= 0 reads to the end.
	ReadRange(ctx context.Context, first, last int) ([][]string, error)
	UpdateCell(ctx context.Context, row, col int, value string) error
}

// Book opens sheets by name, creating them on first use.
type Book interface {
	Sheet(ctx context.Context, name string) (Sheet, error)
	Close() error
}

// Open returns the workbook backend selected by name.
func Open(ctx context.Context, backend, path string) (Book, error) {
	switch strings.ToLower(strings.TrimSpace(backend)) {
	case "xlsx", "":
		return OpenWorkbook(path)
	case "sqlite":
		return OpenDatabase(ctx, path)
	default:
		return nil, fmt.Errorf("sheets: unsupported backend %q", backend)
	}
}

// Columns resolves header names to 0-based indices. Lookups ignore case,
// spaces and underscores so "Student_ID", "student id" and "StudentID" match.
type Columns map[string]int

// ColumnMap builds a Columns index from a header row. The first occurrence of
// a name wins.
func ColumnMap(header []string) Columns {
	cols := make(Columns, len(header))
	for i, name := range header {
		key := columnKey(name)
		if key == "" {
			continue
		}
		if _, ok := cols[key]; !ok {
			cols[key] = i
		}
	}
	return cols
}

// Index returns the 0-based index of the first matching name.
func (c Columns) Index(names ...string) (int, bool) {
	for _, name := range names {
		if idx, ok := c[columnKey(name)]; ok {
			return idx, true
		}
	}
	return 0, false
}

// Value returns the cell under the first matching column, or "".
func (c Columns) Value(row []string, names ...string) string {
	idx, ok := c.Index(names...)
	if !ok || idx >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[idx])
}

// Require returns an error naming every column missing from the header.
func (c Columns) Require(names ...string) error {
	var missing []string
	for _, name := range names {
		if _, ok := c.Index(name); !ok {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("sheet header missing columns: %s", strings.Join(missing, ", "))
	}
	return nil
}

func columnKey(name string) string {
	name = strings.ToLower(strings.TrimSpace(name))
	return strings.NewReplacer(" ", "", "_", "", "-", "").Replace(name)
}

// Rows reads every data row below the header.
func Rows(ctx context.Context, sheet Sheet) ([][]string, error) {
	return sheet.ReadRange(ctx, 2, 0)
}

func mergeHeader(existing, columns []string) ([]string, []string) {
	cols := ColumnMap(existing)
	merged := append([]string(nil), existing...)
	var added []string
	for _, name := range columns {
		if _, ok := cols.Index(name); ok {
			continue
		}
		merged = append(merged, name)
		added = append(added, name)
		cols[columnKey(name)] = len(merged) - 1
	}
	return merged, added
}

func sliceRange(rows [][]string, first, last int) ([][]string, error) {
	if first < 1 {
		return nil, fmt.Errorf("%w: first row %d", ErrOutOfRange, first)
	}
	if last <= 0 || last > len(rows) {
		last = len(rows)
	}
	if first > last {
		return [][]string{}, nil
	}
	out := make([][]string, 0, last-first+1)
	for _, row := range rows[first-1 : last] {
		out = append(out, append([]string(nil), row...))
	}
	return out, nil
}
