package sheets

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"sync"

	"github.com/xuri/excelize/v2"
)

const defaultXLSXSheet = "Sheet1"

// Workbook is an xlsx file on disk. The file is saved after every mutation.
type Workbook struct {
	mu    sync.Mutex
	file  *excelize.File
	path  string
	fresh bool
}

// OpenWorkbook opens path, or prepares a new workbook that is written on the
// first mutation.
func OpenWorkbook(path string) (*Workbook, error) {
	if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
		return &Workbook{file: excelize.NewFile(), path: path, fresh: true}, nil
	}
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("open workbook %s: %w", path, err)
	}
	return &Workbook{file: f, path: path}, nil
}

// Sheet returns the named tab, creating it when absent.
func (w *Workbook) Sheet(_ context.Context, name string) (Sheet, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	idx, err := w.file.GetSheetIndex(name)
	if err != nil {
		return nil, fmt.Errorf("lookup sheet %q: %w", name, err)
	}
	if idx < 0 {
		if _, err := w.file.NewSheet(name); err != nil {
			return nil, fmt.Errorf("create sheet %q: %w", name, err)
		}
		if w.fresh && name != defaultXLSXSheet {
			if err := w.file.DeleteSheet(defaultXLSXSheet); err != nil {
				return nil, fmt.Errorf("drop default sheet: %w", err)
			}
			w.fresh = false
		}
		if err := w.saveLocked(); err != nil {
			return nil, err
		}
	}
	return &xlsxSheet{book: w, name: name}, nil
}

// Close releases the workbook.
func (w *Workbook) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.file.Close()
}

func (w *Workbook) saveLocked() error {
	if err := w.file.SaveAs(w.path); err != nil {
		return fmt.Errorf("save workbook %s: %w", w.path, err)
	}
	return nil
}

func (w *Workbook) rowsLocked(name string) ([][]string, error) {
	rows, err := w.file.GetRows(name)
	if err != nil {
		return nil, fmt.Errorf("read sheet %q: %w", name, err)
	}
	return rows, nil
}

type xlsxSheet struct {
	book *Workbook
	name string
}

func (s *xlsxSheet) Name() string { return s.name }

func (s *xlsxSheet) Header(context.Context) ([]string, error) {
	s.book.mu.Lock()
	defer s.book.mu.Unlock()
	rows, err := s.book.rowsLocked(s.name)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return append([]string(nil), rows[0]...), nil
}

func (s *xlsxSheet) EnsureHeader(_ context.Context, columns []string) ([]string, error) {
	s.book.mu.Lock()
	defer s.book.mu.Unlock()
	rows, err := s.book.rowsLocked(s.name)
	if err != nil {
		return nil, err
	}
	var existing []string
	if len(rows) > 0 {
		existing = rows[0]
	}
	merged, added := mergeHeader(existing, columns)
	if len(added) == 0 {
		return merged, nil
	}
	if err := s.writeRowLocked(1, merged); err != nil {
		return nil, err
	}
	return merged, s.book.saveLocked()
}

func (s *xlsxSheet) AppendRow(_ context.Context, values []string) (int, error) {
	s.book.mu.Lock()
	defer s.book.mu.Unlock()
	rows, err := s.book.rowsLocked(s.name)
	if err != nil {
		return 0, err
	}
	row := len(rows) + 1
	if err := s.writeRowLocked(row, values); err != nil {
		return 0, err
	}
	if err := s.book.saveLocked(); err != nil {
		return 0, err
	}
	return row, nil
}

func (s *xlsxSheet) ReadRange(_ context.Context, first, last int) ([][]string, error) {
	s.book.mu.Lock()
	defer s.book.mu.Unlock()
	rows, err := s.book.rowsLocked(s.name)
	if err != nil {
		return nil, err
	}
	return sliceRange(rows, first, last)
}

func (s *xlsxSheet) UpdateCell(_ context.Context, row, col int, value string) error {
	if row < 1 || col < 1 {
		return fmt.Errorf("%w: row %d col %d", ErrOutOfRange, row, col)
	}
	s.book.mu.Lock()
	defer s.book.mu.Unlock()
	cell, err := excelize.CoordinatesToCellName(col, row)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrOutOfRange, err)
	}
	if err := s.book.file.SetCellStr(s.name, cell, value); err != nil {
		return fmt.Errorf("update %s!%s: %w", s.name, cell, err)
	}
	return s.book.saveLocked()
}

func (s *xlsxSheet) writeRowLocked(row int, values []string) error {
	cell, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrOutOfRange, err)
	}
	cells := make([]interface{}, len(values))
	for i, v := range values {
		cells[i] = v
	}
	if err := s.book.file.SetSheetRow(s.name, cell, &cells); err != nil {
		return fmt.Errorf("write %s row %d: %w", s.name, row, err)
	}
	return nil
}
