// Package ledger owns the fixed detail-row region of the 立替経費精算書
// workbook: a header block, sixteen detail rows, and a totals row, with
// merged column groups for date, payee, content and amount.
package ledger

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/tnishida/keihi-scan/internal/expense"
)

// Row/column geometry of the expense-report template. These are a contract
// with one specific workbook, not configuration; a workbook laid out
// differently will silently produce wrong results.
const (
	HeaderRow    = 10
	DataStartRow = 11
	DataEndRow   = 26
	TotalRow     = 27

	// Leftmost column of each merged cell group.
	ColDate    = 1  // A
	ColPayee   = 5  // E
	ColContent = 13 // M
	ColAmount  = 23 // W
)

// Capacity is the number of detail rows the template holds.
const Capacity = DataEndRow - DataStartRow + 1

// ErrTableFull is returned by AppendEntry when all detail rows are occupied.
var ErrTableFull = errors.New("detail rows are full (max 16 entries)")

// Entry is the read-back projection of an occupied detail row.
type Entry struct {
	Row     int     `json:"row"`
	Date    string  `json:"date"`
	Payee   string  `json:"payee"`
	Content string  `json:"content"`
	Amount  float64 `json:"amount"`
}

// Table is an open expense-report workbook. It mutates cell values only and
// never touches formatting, formulas or styling. Single writer, single
// session; nothing here is safe for concurrent use.
type Table struct {
	path  string
	file  *excelize.File
	sheet string
}

// Open loads a workbook into memory. The file must already exist; the table
// never creates its own layout.
func Open(path string) (*Table, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("opening workbook: %w", err)
	}
	sheet := f.GetSheetName(0)
	if sheet == "" {
		f.Close()
		return nil, fmt.Errorf("workbook has no sheets: %s", path)
	}
	return &Table{path: path, file: f, sheet: sheet}, nil
}

// FindNextEmptyRow scans the detail range top to bottom and returns the
// first row whose date cell is blank. ok is false when the table is full.
func (t *Table) FindNextEmptyRow() (row int, ok bool) {
	for row := DataStartRow; row <= DataEndRow; row++ {
		if strings.TrimSpace(t.cellValue(ColDate, row)) == "" {
			return row, true
		}
	}
	return 0, false
}

// AppendEntry writes a record into the next empty detail row and returns the
// row used. Capacity is the only invariant checked here; callers run the
// strict field validation before committing.
func (t *Table) AppendEntry(rec expense.Record) (int, error) {
	row, ok := t.FindNextEmptyRow()
	if !ok {
		return 0, ErrTableFull
	}

	if err := t.setCell(ColDate, row, rec.Date); err != nil {
		return 0, err
	}
	if err := t.setCell(ColPayee, row, rec.Payee); err != nil {
		return 0, err
	}
	if err := t.setCell(ColContent, row, rec.Content); err != nil {
		return 0, err
	}
	if err := t.setCell(ColAmount, row, rec.Amount); err != nil {
		return 0, err
	}
	return row, nil
}

// ListEntries returns the occupied detail rows in row order. Rows with a
// blank date cell are skipped; missing payee/content read back as empty
// strings and an unparseable amount as zero. Pre-existing workbooks are not
// trusted to keep rows fully populated.
func (t *Table) ListEntries() []Entry {
	entries := make([]Entry, 0, Capacity)
	for row := DataStartRow; row <= DataEndRow; row++ {
		date := t.cellValue(ColDate, row)
		if strings.TrimSpace(date) == "" {
			continue
		}
		entries = append(entries, Entry{
			Row:     row,
			Date:    date,
			Payee:   t.cellValue(ColPayee, row),
			Content: t.cellValue(ColContent, row),
			Amount:  parseAmount(t.cellValue(ColAmount, row)),
		})
	}
	return entries
}

// TotalAmount returns the value of the totals cell. The workbook engine does
// not evaluate formulas on load, so when the cell holds a formula the total
// is recomputed from the detail rows instead of trusting stale text.
func (t *Table) TotalAmount() float64 {
	cell := cellName(ColAmount, TotalRow)
	if formula, _ := t.file.GetCellFormula(t.sheet, cell); formula != "" {
		return t.sumEntries()
	}
	value, _ := t.file.GetCellValue(t.sheet, cell)
	if strings.HasPrefix(strings.TrimSpace(value), "=") {
		return t.sumEntries()
	}
	return parseAmount(value)
}

func (t *Table) sumEntries() float64 {
	var total float64
	for _, entry := range t.ListEntries() {
		total += entry.Amount
	}
	return total
}

// Save persists the in-memory workbook. An empty path overwrites the file
// the table was opened from.
func (t *Table) Save(path string) error {
	if path == "" {
		path = t.path
	}
	if err := t.file.SaveAs(path); err != nil {
		return fmt.Errorf("saving workbook: %w", err)
	}
	return nil
}

// Close releases the in-memory workbook without persisting; unsaved edits
// are discarded.
func (t *Table) Close() error {
	return t.file.Close()
}

func (t *Table) cellValue(col, row int) string {
	value, _ := t.file.GetCellValue(t.sheet, cellName(col, row))
	return value
}

func (t *Table) setCell(col, row int, value any) error {
	cell := cellName(col, row)
	if err := t.file.SetCellValue(t.sheet, cell, value); err != nil {
		return fmt.Errorf("writing cell %s: %w", cell, err)
	}
	return nil
}

func cellName(col, row int) string {
	name, err := excelize.CoordinatesToCellName(col, row)
	if err != nil {
		// Only reachable with a non-positive coordinate, which the fixed
		// geometry constants never produce.
		panic(err)
	}
	return name
}

// parseAmount reads a cell value as a number, tolerating thousands
// separators. Anything unparseable reads as zero.
func parseAmount(s string) float64 {
	s = strings.ReplaceAll(strings.TrimSpace(s), ",", "")
	if s == "" {
		return 0
	}
	amount, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	return amount
}
