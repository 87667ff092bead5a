// Package roster loads the read-only student roster and matches parsed
// transcript names against it.
package roster

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"

	"coachflow/internal/logging"
	"coachflow/internal/naming"
	"coachflow/internal/sheets"
)

// Entry is one student row.
type Entry struct {
	// Row is the 1-based sheet row the entry was read from.
	Row              int
	StudentID        string
	Name             string `validate:"required"`
	Email            string `validate:"omitempty,email"`
	FolderID         string
	LifestyleProfile string
}

// Key identifies the student within a run: the lower-cased email, or the
// roster row when no email is on file.
func (e Entry) Key() string {
	if email := strings.ToLower(strings.TrimSpace(e.Email)); email != "" {
		return email
	}
	return "row:" + strconv.Itoa(e.Row)
}

// ID is the value written to the homework ledger's Student_ID column.
func (e Entry) ID() string {
	if id := strings.TrimSpace(e.StudentID); id != "" {
		return id
	}
	if email := strings.TrimSpace(e.Email); email != "" {
		return email
	}
	return "R" + strconv.Itoa(e.Row)
}

// Roster indexes entries by normalized name. On duplicate names the first
// entry wins.
type Roster struct {
	entries    []Entry
	byName     map[string]int
	duplicates []string
}

var validate = validator.New()

// New indexes entries in order.
func New(entries []Entry) *Roster {
	r := &Roster{byName: make(map[string]int, len(entries))}
	for _, entry := range entries {
		key := naming.NormalizeKey(entry.Name)
		if key == "" {
			continue
		}
		if _, exists := r.byName[key]; exists {
			r.duplicates = append(r.duplicates, entry.Name)
			continue
		}
		r.entries = append(r.entries, entry)
		r.byName[key] = len(r.entries) - 1
	}
	return r
}

// Load reads the roster sheet. Rows without a name are ignored; rows with an
// invalid email keep their place with the email cleared so consolidation
// reports them as missing.
func Load(ctx context.Context, sheet sheets.Sheet, logger *slog.Logger) (*Roster, error) {
	logger = logging.NewComponentLogger(logger, "roster")

	header, err := sheet.Header(ctx)
	if err != nil {
		return nil, fmt.Errorf("read roster header: %w", err)
	}
	cols := sheets.ColumnMap(header)
	if _, ok := cols.Index("Name", "Student_Name", "Student"); !ok {
		return nil, fmt.Errorf("roster sheet %q has no Name column", sheet.Name())
	}

	rows, err := sheets.Rows(ctx, sheet)
	if err != nil {
		return nil, fmt.Errorf("read roster rows: %w", err)
	}

	entries := make([]Entry, 0, len(rows))
	for i, row := range rows {
		entry := Entry{
			Row:              i + 2,
			StudentID:        cols.Value(row, "Student_ID", "ID"),
			Name:             cols.Value(row, "Name", "Student_Name", "Student"),
			Email:            cols.Value(row, "Email", "Student_Email"),
			FolderID:         cols.Value(row, "DriveFolderID", "FolderID", "Folder"),
			LifestyleProfile: cols.Value(row, "LifestyleProfile", "Lifestyle", "Profile"),
		}
		if entry.Name == "" {
			continue
		}
		if err := validate.Struct(entry); err != nil {
			logging.WarnWithContext(logger, "roster entry has invalid email", "roster_invalid_email",
				logging.Int("row", entry.Row),
				logging.String(logging.FieldStudent, entry.Name),
				logging.String("email", entry.Email),
				logging.String(logging.FieldErrorHint, "correct the email in the roster sheet"),
				logging.String(logging.FieldImpact, "student will not receive homework notifications"),
			)
			entry.Email = ""
		}
		entries = append(entries, entry)
	}

	r := New(entries)
	for _, name := range r.duplicates {
		logging.WarnWithContext(logger, "duplicate roster name; first entry wins", "roster_duplicate_name",
			logging.String(logging.FieldStudent, name),
			logging.String(logging.FieldErrorHint, "make roster names unique"),
			logging.String(logging.FieldImpact, "later entries never receive transcripts"),
		)
	}
	logger.Debug("roster loaded", logging.Int("students", len(r.entries)))
	return r, nil
}

// Lookup returns the entry whose normalized name equals name.
func (r *Roster) Lookup(name string) (Entry, bool) {
	if r == nil {
		return Entry{}, false
	}
	idx, ok := r.byName[naming.NormalizeKey(name)]
	if !ok {
		return Entry{}, false
	}
	return r.entries[idx], true
}

// Entries returns the indexed entries in sheet order.
func (r *Roster) Entries() []Entry {
	out := make([]Entry, len(r.entries))
	copy(out, r.entries)
	return out
}

// Duplicates lists names that were shadowed by an earlier entry.
func (r *Roster) Duplicates() []string {
	return append([]string(nil), r.duplicates...)
}
