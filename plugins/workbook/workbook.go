// Package workbook reads spreadsheet data cell by cell, keeping enough type
// information (text, number, date-formatted number) for the importer to decide
// how each value is interpreted.
package workbook

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"time"
)

var (
	ErrSourceNotFound = errors.New("workbook: source file not found")
	ErrSheetNotFound  = errors.New("workbook: sheet not found")
	ErrNoSheets       = errors.New("workbook: workbook has no sheets")
)

// CellKind is the interpreted type of a cell.
type CellKind int

const (
	CellEmpty CellKind = iota
	CellText
	CellNumber
	CellDate // a numeric cell carrying a date or time number format
	CellBool
	CellError
)

type Cell struct {
	Kind   CellKind
	Text   string    // raw text for CellText, CellBool and CellError
	Number float64   // CellNumber and CellDate
	Time   time.Time // CellDate only
}

// Int returns the cell as an integer, truncating like a spreadsheet cast.
func (c Cell) Int() (int, bool) {
	if c.Kind != CellNumber && c.Kind != CellDate {
		return 0, false
	}
	return int(c.Number), true
}

// String renders numbers in their shortest decimal form (1984, not 1984.0).
// Databases seeded by older tools may hold "1984.0" for the same cell, and
// exact-title operations will not treat the two as equal.
func (c Cell) String() string {
	switch c.Kind {
	case CellNumber, CellDate:
		return strconv.FormatFloat(c.Number, 'f', -1, 64)
	}
	return c.Text
}

type Row []Cell

// Cell returns the i-th cell of the row, or an empty cell past its end.
func (r Row) Cell(i int) Cell {
	if i < 0 || i >= len(r) {
		return Cell{}
	}
	return r[i]
}

// Workbook is an opened spreadsheet. Rows includes the header row at index 0.
type Workbook interface {
	SheetNames() []string
	Rows(ctx context.Context, sheet string) ([]Row, error)
	Close() error
}

// Source opens a workbook on demand, so nothing is read when an import is skipped.
type Source interface {
	Open(ctx context.Context) (Workbook, error)
	String() string
}

// FindSheet returns the first sheet whose name equals name, ignoring case.
func FindSheet(wb Workbook, name string) (string, bool) {
	for _, s := range wb.SheetNames() {
		if strings.EqualFold(s, name) {
			return s, true
		}
	}
	return "", false
}

// isDateFormat reports whether a number format code renders dates or times.
func isDateFormat(code string) bool {
	var b strings.Builder
	inQuote, inBracket, escaped := false, false, false
	for _, r := range code {
		switch {
		case escaped:
			escaped = false
		case r == '\\':
			escaped = true
		case r == '"':
			inQuote = !inQuote
		case inQuote:
		case r == '[':
			inBracket = true
		case r == ']':
			inBracket = false
		case inBracket:
		default:
			b.WriteRune(r)
		}
	}
	s := strings.ToLower(b.String())
	if strings.Contains(s, "general") {
		s = strings.ReplaceAll(s, "general", "")
	}
	return strings.ContainsAny(s, "ymdhs")
}

// builtinDateFormats lists the built-in SpreadsheetML number format ids that
// render dates or times.
var builtinDateFormats = map[int]bool{
	14: true, 15: true, 16: true, 17: true, 18: true, 19: true, 20: true, 21: true, 22: true,
	27: true, 28: true, 29: true, 30: true, 31: true, 32: true, 33: true, 34: true, 35: true, 36: true,
	45: true, 46: true, 47: true,
	50: true, 51: true, 52: true, 53: true, 54: true, 55: true, 56: true, 57: true, 58: true,
}
