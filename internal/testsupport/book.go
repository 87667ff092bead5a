package testsupport

import (
	"context"
	"path/filepath"
	"testing"

	"coachflow/internal/sheets"
)

// NewBook opens a sqlite-backed ledger in a temp dir and registers cleanup.
func NewBook(t testing.TB) sheets.Book {
	t.Helper()

	book, err := sheets.OpenDatabase(context.Background(), filepath.Join(t.TempDir(), "ledger.db"))
	if err != nil {
		t.Fatalf("sheets.OpenDatabase: %v", err)
	}
	t.Cleanup(func() {
		_ = book.Close()
	})
	return book
}

// MustSheet opens (or creates) a sheet, failing the test on error.
func MustSheet(t testing.TB, book sheets.Book, name string) sheets.Sheet {
	t.Helper()

	sheet, err := book.Sheet(context.Background(), name)
	if err != nil {
		t.Fatalf("open sheet %s: %v", name, err)
	}
	return sheet
}

// SeedSheet writes a header and rows into sheet.
func SeedSheet(t testing.TB, sheet sheets.Sheet, header []string, rows ...[]string) {
	t.Helper()

	ctx := context.Background()
	if _, err := sheet.EnsureHeader(ctx, header); err != nil {
		t.Fatalf("seed header: %v", err)
	}
	for _, row := range rows {
		if _, err := sheet.AppendRow(ctx, row); err != nil {
			t.Fatalf("seed row: %v", err)
		}
	}
}
