package workbook

import (
	"context"
	"fmt"
	"strings"

	"github.com/xuri/excelize/v2"
	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"
)

// SheetsSource is a Google Sheets spreadsheet laid out like the .xlsx dataset.
// It is read once with grid data so cell types and number formats are kept.
type SheetsSource struct {
	SpreadsheetID   string
	CredentialsFile string
}

func (s *SheetsSource) Open(ctx context.Context) (Workbook, error) {
	srv, err := sheets.NewService(
		ctx,
		option.WithCredentialsFile(s.CredentialsFile),
		option.WithScopes(sheets.SpreadsheetsReadonlyScope),
	)
	if err != nil {
		return nil, fmt.Errorf("workbook: unable to create Sheets client: %w", err)
	}
	resp, err := srv.Spreadsheets.Get(s.SpreadsheetID).
		IncludeGridData(true).
		Context(ctx).
		Do()
	if err != nil {
		return nil, fmt.Errorf("workbook: using %s unable to retrieve spreadsheet: %w", s.SpreadsheetID, err)
	}
	return newGridWorkbook(resp), nil
}

func (s *SheetsSource) String() string {
	return "gsheets:" + s.SpreadsheetID
}

// gridWorkbook holds a fully fetched spreadsheet in memory.
type gridWorkbook struct {
	names []string
	rows  map[string][]Row
}

func newGridWorkbook(ss *sheets.Spreadsheet) *gridWorkbook {
	wb := &gridWorkbook{rows: make(map[string][]Row)}
	if ss == nil {
		return wb
	}
	for _, sh := range ss.Sheets {
		if sh == nil || sh.Properties == nil {
			continue
		}
		title := sh.Properties.Title
		wb.names = append(wb.names, title)
		wb.rows[title] = gridRows(sh)
	}
	return wb
}

func (w *gridWorkbook) SheetNames() []string { return w.names }

func (w *gridWorkbook) Rows(ctx context.Context, sheet string) ([]Row, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	rows, ok := w.rows[sheet]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrSheetNotFound, sheet)
	}
	return rows, nil
}

func (w *gridWorkbook) Close() error { return nil }

// gridRows flattens the grid data of a sheet into rows indexed from the first
// sheet row, so row 0 is always the header.
func gridRows(sh *sheets.Sheet) []Row {
	var rows []Row
	for _, gd := range sh.Data {
		if gd == nil {
			continue
		}
		for i, rd := range gd.RowData {
			r := int(gd.StartRow) + i
			for len(rows) <= r {
				rows = append(rows, nil)
			}
			if rd == nil {
				continue
			}
			row := make(Row, int(gd.StartColumn)+len(rd.Values))
			for j, cd := range rd.Values {
				row[int(gd.StartColumn)+j] = gridCell(cd)
			}
			rows[r] = row
		}
	}
	return rows
}

func gridCell(cd *sheets.CellData) Cell {
	if cd == nil || cd.EffectiveValue == nil {
		return Cell{}
	}
	v := cd.EffectiveValue
	switch {
	case v.StringValue != nil:
		if *v.StringValue == "" {
			return Cell{}
		}
		return Cell{Kind: CellText, Text: *v.StringValue}
	case v.BoolValue != nil:
		return Cell{Kind: CellBool, Text: fmt.Sprint(*v.BoolValue)}
	case v.ErrorValue != nil:
		return Cell{Kind: CellError, Text: v.ErrorValue.Type}
	case v.NumberValue != nil:
		n := *v.NumberValue
		if !isGridDate(cd.EffectiveFormat) {
			return Cell{Kind: CellNumber, Number: n}
		}
		// Sheets serial numbers share the 1899-12-30 epoch of the 1900 date system.
		t, err := excelize.ExcelDateToTime(n, false)
		if err != nil {
			return Cell{Kind: CellNumber, Number: n}
		}
		return Cell{Kind: CellDate, Number: n, Time: t}
	}
	return Cell{}
}

func isGridDate(f *sheets.CellFormat) bool {
	if f == nil || f.NumberFormat == nil {
		return false
	}
	switch strings.ToUpper(f.NumberFormat.Type) {
	case "DATE", "DATE_TIME", "TIME":
		return true
	}
	return false
}
