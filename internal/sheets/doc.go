// Package sheets provides the tabular ledger store: named sheets with a
// header row, append-row, read-range and update-cell operations.
//
// Two backends implement Book. Workbook keeps an xlsx file (excelize) and
// saves it after every mutation; Database keeps rows in SQLite. Callers
// resolve columns by header name through ColumnMap rather than by position,
// so operators may reorder or extend the sheets.
package sheets
