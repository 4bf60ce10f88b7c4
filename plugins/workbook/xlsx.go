package workbook

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/xuri/excelize/v2"
)

// DefaultFileName is the dataset looked up when no file is configured.
const DefaultFileName = "reading_habits_dataset.xlsx"

// DefaultCandidates returns the ordered locations searched for name: the
// working directory first, then the parent directory, data/ and testdata/.
// A name that already carries a directory is used as is.
func DefaultCandidates(name string) []string {
	if name == "" {
		name = DefaultFileName
	}
	if filepath.IsAbs(name) || filepath.Base(name) != name {
		return []string{name}
	}
	return []string{
		name,
		filepath.Join("..", name),
		filepath.Join("data", name),
		filepath.Join("testdata", name),
	}
}

// Locate returns the first candidate that exists as a regular file.
func Locate(candidates []string) (string, error) {
	for _, c := range candidates {
		info, err := os.Stat(c)
		if err == nil && info.Mode().IsRegular() {
			return c, nil
		}
	}
	return "", fmt.Errorf("%w: tried %v", ErrSourceNotFound, candidates)
}

// FileSource is an .xlsx file found through a candidate path search.
type FileSource struct {
	Candidates []string
}

func NewFileSource(name string) *FileSource {
	return &FileSource{Candidates: DefaultCandidates(name)}
}

func (s *FileSource) Open(ctx context.Context) (Workbook, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	path, err := Locate(s.Candidates)
	if err != nil {
		return nil, err
	}
	return OpenFile(path)
}

func (s *FileSource) String() string {
	if len(s.Candidates) == 0 {
		return "xlsx:" + DefaultFileName
	}
	return "xlsx:" + s.Candidates[0]
}

type xlsxWorkbook struct {
	f        *excelize.File
	date1904 bool
	dateFmt  map[int]bool // style index -> renders a date
}

// OpenFile opens the .xlsx file at path.
func OpenFile(path string) (Workbook, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("open workbook %s: %w", path, err)
	}
	wb := &xlsxWorkbook{f: f, dateFmt: make(map[int]bool)}
	if props, err := f.GetWorkbookProps(); err == nil && props.Date1904 != nil {
		wb.date1904 = *props.Date1904
	}
	return wb, nil
}

func (w *xlsxWorkbook) SheetNames() []string {
	return w.f.GetSheetList()
}

func (w *xlsxWorkbook) Close() error {
	return w.f.Close()
}

func (w *xlsxWorkbook) Rows(ctx context.Context, sheet string) ([]Row, error) {
	if idx, err := w.f.GetSheetIndex(sheet); err != nil || idx < 0 {
		return nil, fmt.Errorf("%w: %s", ErrSheetNotFound, sheet)
	}
	raw, err := w.f.GetRows(sheet, excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, fmt.Errorf("read sheet %s: %w", sheet, err)
	}

	rows := make([]Row, 0, len(raw))
	for r, values := range raw {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		row := make(Row, len(values))
		for c, v := range values {
			axis, err := excelize.CoordinatesToCellName(c+1, r+1)
			if err != nil {
				return nil, err
			}
			cell, err := w.cell(sheet, axis, v)
			if err != nil {
				return nil, fmt.Errorf("read %s!%s: %w", sheet, axis, err)
			}
			row[c] = cell
		}
		rows = append(rows, row)
	}
	return rows, nil
}

func (w *xlsxWorkbook) cell(sheet, axis, value string) (Cell, error) {
	typ, err := w.f.GetCellType(sheet, axis)
	if err != nil {
		return Cell{}, err
	}
	switch typ {
	case excelize.CellTypeSharedString, excelize.CellTypeInlineString, excelize.CellTypeFormula:
		if value == "" {
			return Cell{}, nil
		}
		return Cell{Kind: CellText, Text: value}, nil
	case excelize.CellTypeBool:
		return Cell{Kind: CellBool, Text: value}, nil
	case excelize.CellTypeError:
		return Cell{Kind: CellError, Text: value}, nil
	case excelize.CellTypeDate:
		// ISO 8601 value of a t="d" cell.
		for _, layout := range []string{time.RFC3339Nano, "2006-01-02T15:04:05", "2006-01-02"} {
			if t, err := time.Parse(layout, value); err == nil {
				return Cell{Kind: CellDate, Time: t}, nil
			}
		}
		return Cell{Kind: CellText, Text: value}, nil
	}

	if value == "" {
		return Cell{}, nil
	}
	n, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return Cell{Kind: CellText, Text: value}, nil
	}
	isDate, err := w.hasDateFormat(sheet, axis)
	if err != nil {
		return Cell{}, err
	}
	if !isDate {
		return Cell{Kind: CellNumber, Number: n}, nil
	}
	t, err := excelize.ExcelDateToTime(n, w.date1904)
	if err != nil {
		return Cell{Kind: CellNumber, Number: n}, nil
	}
	return Cell{Kind: CellDate, Number: n, Time: t}, nil
}

func (w *xlsxWorkbook) hasDateFormat(sheet, axis string) (bool, error) {
	idx, err := w.f.GetCellStyle(sheet, axis)
	if err != nil {
		return false, err
	}
	if idx == 0 {
		return false, nil
	}
	if isDate, ok := w.dateFmt[idx]; ok {
		return isDate, nil
	}
	style, err := w.f.GetStyle(idx)
	if err != nil {
		return false, err
	}
	isDate := builtinDateFormats[style.NumFmt]
	if style.CustomNumFmt != nil {
		isDate = isDateFormat(*style.CustomNumFmt)
	}
	w.dateFmt[idx] = isDate
	return isDate, nil
}
