package tracking

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"coachflow/internal/sheets"
)

// ErrUnknownRow is returned when an update targets a record that was never appended.
var ErrUnknownRow = errors.New("tracking record has no ledger row")

// Ledger reads and writes JobRecords on the tracking sheet. Columns are
// resolved from the header so extra operator columns are preserved.
type Ledger struct {
	sheet sheets.Sheet
	cols  sheets.Columns
}

// OpenLedger ensures the tracking header exists and returns the ledger.
func OpenLedger(ctx context.Context, sheet sheets.Sheet) (*Ledger, error) {
	header, err := sheet.EnsureHeader(ctx, Columns)
	if err != nil {
		return nil, fmt.Errorf("prepare tracking sheet: %w", err)
	}
	cols := sheets.ColumnMap(header)
	if err := cols.Require(Columns...); err != nil {
		return nil, err
	}
	return &Ledger{sheet: sheet, cols: cols}, nil
}

// Records returns every job record in sheet order. Rows with no file name are skipped.
func (l *Ledger) Records(ctx context.Context) ([]JobRecord, error) {
	rows, err := sheets.Rows(ctx, l.sheet)
	if err != nil {
		return nil, fmt.Errorf("read tracking rows: %w", err)
	}
	records := make([]JobRecord, 0, len(rows))
	for i, row := range rows {
		name := l.cols.Value(row, "FileName")
		if name == "" {
			continue
		}
		status, _ := ParseStatus(l.cols.Value(row, "Status"))
		if status == "" {
			status = Status(strings.ToLower(l.cols.Value(row, "Status")))
		}
		records = append(records, JobRecord{
			Row:       i + 2,
			FileName:  name,
			JobID:     l.cols.Value(row, "JobID"),
			Status:    status,
			Timestamp: parseTimestamp(l.cols.Value(row, "Timestamp")),
		})
	}
	return records, nil
}

// FileNames returns the set of file names already tracked.
func (l *Ledger) FileNames(ctx context.Context) (map[string]struct{}, error) {
	records, err := l.Records(ctx)
	if err != nil {
		return nil, err
	}
	names := make(map[string]struct{}, len(records))
	for _, rec := range records {
		names[rec.FileName] = struct{}{}
	}
	return names, nil
}

// Append writes rec as a new row and returns it with Row populated.
func (l *Ledger) Append(ctx context.Context, rec JobRecord) (JobRecord, error) {
	row, err := l.sheet.AppendRow(ctx, l.rowValues(map[string]string{
		"FileName":  rec.FileName,
		"JobID":     rec.JobID,
		"Status":    string(rec.Status),
		"Timestamp": formatTimestamp(rec.Timestamp),
	}))
	if err != nil {
		return rec, fmt.Errorf("append tracking row for %s: %w", rec.FileName, err)
	}
	rec.Row = row
	return rec, nil
}

func (l *Ledger) rowValues(cells map[string]string) []string {
	width := 0
	for column := range cells {
		if idx, ok := l.cols.Index(column); ok && idx+1 > width {
			width = idx + 1
		}
	}
	values := make([]string, width)
	for column, value := range cells {
		if idx, ok := l.cols.Index(column); ok {
			values[idx] = value
		}
	}
	return values
}

// Update rewrites the JobID, Status and Timestamp cells of rec's row.
func (l *Ledger) Update(ctx context.Context, rec JobRecord) error {
	if rec.Row < 2 {
		return fmt.Errorf("%w: %s", ErrUnknownRow, rec.FileName)
	}
	for _, cell := range []struct {
		column string
		value  string
	}{
		{"JobID", rec.JobID},
		{"Status", string(rec.Status)},
		{"Timestamp", formatTimestamp(rec.Timestamp)},
	} {
		idx, _ := l.cols.Index(cell.column)
		if err := l.sheet.UpdateCell(ctx, rec.Row, idx+1, cell.value); err != nil {
			return fmt.Errorf("update %s of %s: %w", cell.column, rec.FileName, err)
		}
	}
	return nil
}
