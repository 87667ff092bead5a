package homework

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"coachflow/internal/sheets"
)

// Columns is the homework ledger schema.
var Columns = []string{
	"Student_ID",
	"Student_Name",
	"Student_Email",
	"HW_ID",
	"PromptFileID",
	"Token",
	"AssignedAt",
	"CompletedAt",
	"Token_Status",
	"Turns_Used",
}

// TokenActive is the status of a freshly issued portal token.
const TokenActive = "Active"

// Assignment is one homework ledger row.
type Assignment struct {
	Row          int
	StudentID    string
	StudentName  string
	StudentEmail string
	HWID         string
	PromptFileID string
	Token        string
	AssignedAt   time.Time
	CompletedAt  string
	TokenStatus  string
	TurnsUsed    int
	// Transcripts and Notified are not persisted.
	Transcripts []string
	Notified    bool
}

// Ledger appends and reads homework assignments.
type Ledger struct {
	sheet sheets.Sheet
	cols  sheets.Columns
}

// OpenLedger ensures the homework header exists.
func OpenLedger(ctx context.Context, sheet sheets.Sheet) (*Ledger, error) {
	header, err := sheet.EnsureHeader(ctx, Columns)
	if err != nil {
		return nil, fmt.Errorf("prepare homework sheet: %w", err)
	}
	cols := sheets.ColumnMap(header)
	if err := cols.Require(Columns...); err != nil {
		return nil, err
	}
	return &Ledger{sheet: sheet, cols: cols}, nil
}

// Assignments returns every row in sheet order.
func (l *Ledger) Assignments(ctx context.Context) ([]Assignment, error) {
	rows, err := sheets.Rows(ctx, l.sheet)
	if err != nil {
		return nil, fmt.Errorf("read homework rows: %w", err)
	}
	out := make([]Assignment, 0, len(rows))
	for i, row := range rows {
		hwID := l.cols.Value(row, "HW_ID")
		if hwID == "" {
			continue
		}
		turns, _ := strconv.Atoi(l.cols.Value(row, "Turns_Used"))
		assigned, _ := time.Parse(time.RFC3339, l.cols.Value(row, "AssignedAt"))
		out = append(out, Assignment{
			Row:          i + 2,
			StudentID:    l.cols.Value(row, "Student_ID"),
			StudentName:  l.cols.Value(row, "Student_Name"),
			StudentEmail: l.cols.Value(row, "Student_Email"),
			HWID:         hwID,
			PromptFileID: l.cols.Value(row, "PromptFileID"),
			Token:        l.cols.Value(row, "Token"),
			AssignedAt:   assigned,
			CompletedAt:  l.cols.Value(row, "CompletedAt"),
			TokenStatus:  l.cols.Value(row, "Token_Status"),
			TurnsUsed:    turns,
		})
	}
	return out, nil
}

// HWIDs returns the set of identifiers already assigned.
func (l *Ledger) HWIDs(ctx context.Context) (map[string]struct{}, error) {
	assignments, err := l.Assignments(ctx)
	if err != nil {
		return nil, err
	}
	ids := make(map[string]struct{}, len(assignments))
	for _, a := range assignments {
		ids[strings.TrimSpace(a.HWID)] = struct{}{}
	}
	return ids, nil
}

// Append writes a as a new row.
func (l *Ledger) Append(ctx context.Context, a Assignment) (Assignment, error) {
	cells := map[string]string{
		"Student_ID":    a.StudentID,
		"Student_Name":  a.StudentName,
		"Student_Email": a.StudentEmail,
		"HW_ID":         a.HWID,
		"PromptFileID":  a.PromptFileID,
		"Token":         a.Token,
		"AssignedAt":    a.AssignedAt.UTC().Format(time.RFC3339),
		"CompletedAt":   a.CompletedAt,
		"Token_Status":  a.TokenStatus,
		"Turns_Used":    strconv.Itoa(a.TurnsUsed),
	}
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
	row, err := l.sheet.AppendRow(ctx, values)
	if err != nil {
		return a, fmt.Errorf("append homework row %s: %w", a.HWID, err)
	}
	a.Row = row
	return a, nil
}
