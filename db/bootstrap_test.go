package db

import (
	"context"
	"errors"
	"math/rand/v2"
	"path/filepath"
	"testing"
	"time"

	"booktracker/model"
	"booktracker/plugins/workbook"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
	"gorm.io/gorm"
)

type memWorkbook struct {
	names  []string
	sheets map[string][]workbook.Row
	failOn string
	closed bool
}

func (w *memWorkbook) SheetNames() []string { return w.names }

func (w *memWorkbook) Rows(_ context.Context, sheet string) ([]workbook.Row, error) {
	if sheet == w.failOn {
		return nil, errors.New("sheet is corrupt")
	}
	rows, ok := w.sheets[sheet]
	if !ok {
		return nil, workbook.ErrSheetNotFound
	}
	return rows, nil
}

func (w *memWorkbook) Close() error {
	w.closed = true
	return nil
}

type memSource struct {
	wb     *memWorkbook
	err    error
	opened int
}

func (s *memSource) Open(context.Context) (workbook.Workbook, error) {
	s.opened++
	if s.err != nil {
		return nil, s.err
	}
	return s.wb, nil
}

func (s *memSource) String() string { return "memory" }

func num(n float64) workbook.Cell { return workbook.Cell{Kind: workbook.CellNumber, Number: n} }
func text(s string) workbook.Cell { return workbook.Cell{Kind: workbook.CellText, Text: s} }
func date(t time.Time) workbook.Cell {
	return workbook.Cell{Kind: workbook.CellDate, Number: 45000, Time: t}
}

var (
	habitHeader = workbook.Row{text("habitID"), text("user"), text("pagesRead"), text("book"), text("submissionMoment")}
	userHeader  = workbook.Row{text("userID"), text("age"), text("gender")}
	submitted   = time.Date(2023, 5, 6, 7, 8, 9, 0, time.UTC)
	fixedNow    = time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC)
)

func newTestImporter(gdb *gorm.DB) *Importer {
	return NewImporter(gdb, nil,
		WithRand(rand.New(rand.NewPCG(1, 2))),
		WithClock(func() time.Time { return fixedNow }),
	)
}

func habitsOf(t *testing.T, gdb *gorm.DB) []model.ReadingHabit {
	t.Helper()
	var hs []model.ReadingHabit
	require.NoError(t, gdb.Order("habitID").Find(&hs).Error)
	return hs
}

func usersOf(t *testing.T, gdb *gorm.DB) map[int]model.User {
	t.Helper()
	var us []model.User
	require.NoError(t, gdb.Find(&us).Error)
	out := make(map[int]model.User, len(us))
	for _, u := range us {
		out[u.ID] = u
	}
	return out
}

func TestImportTwoSheets(t *testing.T) {
	gdb := setupTestDB(t)
	wb := &memWorkbook{
		names: []string{"Habits", "user"},
		sheets: map[string][]workbook.Row{
			"Habits": {
				habitHeader,
				{num(1), num(5), num(120), text(" Dune "), date(submitted)},
				{num(2), num(5), num(30), text("Emma"), date(submitted)},
				{num(3), num(8), num(10), num(1984), date(submitted)},
				{},
				{num(4), num(9), num(12.9), text("Ulysses"), date(submitted)},
			},
			"user": {
				userHeader,
				{num(5), num(41), text("female")},
				{num(8), num(19), text("M")},
				{num(11), num(70), text("nonbinary")},
			},
		},
	}
	src := &memSource{wb: wb}

	res, err := newTestImporter(gdb).Import(context.Background(), src)
	require.NoError(t, err)
	assert.True(t, wb.closed)
	assert.NotEmpty(t, res.RunID)
	assert.Equal(t, "memory", res.Source)
	assert.False(t, res.AlreadyPopulated)
	assert.Equal(t, 4, res.HabitsImported)
	assert.Equal(t, 4, res.UsersCreated, "5, 8, 9 from habits and 11 from the user sheet")
	assert.Equal(t, 2, res.UsersUpdated)
	assert.Zero(t, res.RowsSkipped)
	assert.Empty(t, res.Warnings)

	hs := habitsOf(t, gdb)
	require.Len(t, hs, 4)
	assert.Equal(t, "Dune", hs[0].Book)
	assert.Equal(t, "1984", hs[2].Book)
	assert.Equal(t, 12, hs[3].PagesRead)
	assert.True(t, hs[0].SubmissionMoment.Equal(submitted))

	users := usersOf(t, gdb)
	require.Len(t, users, 4)
	assert.Equal(t, model.User{ID: 5, Age: 41, Gender: model.GenderFemale, Name: "User 5"}, users[5])
	assert.Equal(t, model.User{ID: 8, Age: 19, Gender: model.GenderMale, Name: "User 8"}, users[8])
	assert.Equal(t, model.User{ID: 11, Age: 70, Gender: model.GenderOther, Name: "User 11"}, users[11])

	generated := users[9]
	assert.Equal(t, "User 9", generated.Name)
	assert.GreaterOrEqual(t, generated.Age, 18)
	assert.LessOrEqual(t, generated.Age, 65)
	assert.Contains(t, []string{model.GenderMale, model.GenderFemale}, generated.Gender)
}

func TestImportSkipsWhenPopulated(t *testing.T) {
	gdb := setupTestDB(t)
	seedTestData(t, gdb)
	src := &memSource{err: errors.New("must not be opened")}

	res, err := newTestImporter(gdb).Import(context.Background(), src)
	require.NoError(t, err)
	assert.True(t, res.AlreadyPopulated)
	assert.Zero(t, src.opened)
	assert.Len(t, habitsOf(t, gdb), 4)
}

func TestImportRowFailures(t *testing.T) {
	gdb := setupTestDB(t)
	wb := &memWorkbook{
		names: []string{"Sheet1", "User"},
		sheets: map[string][]workbook.Row{
			"Sheet1": {
				habitHeader,
				{text("x"), num(1), num(10), text("A"), date(submitted)},
				{num(1), num(1), num(-5), text("A"), date(submitted)},
				{num(2), num(0), num(5), text("A"), date(submitted)},
				{num(3), num(1), num(5), text("A"), date(submitted)},
				{num(3), num(2), num(5), text("B"), date(submitted)}, // duplicate habit id
				{num(4), num(2), num(7), text("C"), date(submitted)},
				{num(5), num(1), text("many"), text("A"), date(submitted)},
			},
			"User": {
				userHeader,
				{num(1), num(200), text("F")},
				{text("id"), num(20), text("F")},
				{num(2), text("old"), text("F")},
			},
		},
	}

	res, err := newTestImporter(gdb).Import(context.Background(), &memSource{wb: wb})
	require.NoError(t, err)
	assert.Equal(t, 2, res.HabitsImported)
	assert.Equal(t, 2, res.UsersCreated)
	assert.Zero(t, res.UsersUpdated)
	assert.Equal(t, 8, res.RowsSkipped)

	var skippedRows []int
	for _, w := range res.Warnings {
		require.True(t, w.Skipped)
		if w.Sheet == "Sheet1" {
			skippedRows = append(skippedRows, w.Row)
		}
	}
	assert.Equal(t, []int{2, 3, 4, 6, 8}, skippedRows)

	hs := habitsOf(t, gdb)
	require.Len(t, hs, 2)
	assert.Equal(t, 3, hs[0].ID)
	assert.Equal(t, 1, hs[0].UserID)
	assert.Equal(t, 4, hs[1].ID)
	assert.Equal(t, 2, hs[1].UserID, "user 2 is created by the later row after the duplicate rolled back")
}

func TestImportFallbacks(t *testing.T) {
	gdb := setupTestDB(t)
	wb := &memWorkbook{
		names: []string{"Sheet1"},
		sheets: map[string][]workbook.Row{
			"Sheet1": {
				habitHeader,
				{num(1), num(1), num(10), text("   "), text("yesterday")},
				{num(2), num(1), num(10)},
			},
		},
	}

	res, err := newTestImporter(gdb).Import(context.Background(), &memSource{wb: wb})
	require.NoError(t, err)
	assert.Equal(t, 2, res.HabitsImported)
	assert.Zero(t, res.RowsSkipped)
	assert.Len(t, res.Warnings, 4)
	for _, w := range res.Warnings {
		assert.False(t, w.Skipped)
	}

	for _, h := range habitsOf(t, gdb) {
		assert.Equal(t, model.BookUnknown, h.Book)
		assert.True(t, h.SubmissionMoment.Equal(fixedNow))
	}
}

func TestImportFailures(t *testing.T) {
	ctx := context.Background()

	t.Run("source cannot be opened", func(t *testing.T) {
		gdb := setupTestDB(t)
		_, err := newTestImporter(gdb).Import(ctx, &memSource{err: workbook.ErrSourceNotFound})
		require.Error(t, err)
		assert.True(t, IsKind(err, KindImport))
		assert.ErrorIs(t, err, workbook.ErrSourceNotFound)
	})

	t.Run("workbook without sheets", func(t *testing.T) {
		gdb := setupTestDB(t)
		_, err := newTestImporter(gdb).Import(ctx, &memSource{wb: &memWorkbook{}})
		assert.True(t, IsKind(err, KindImport))
		assert.ErrorIs(t, err, workbook.ErrNoSheets)
	})

	t.Run("unreadable user sheet rolls everything back", func(t *testing.T) {
		gdb := setupTestDB(t)
		wb := &memWorkbook{
			names:  []string{"Sheet1", "User"},
			failOn: "User",
			sheets: map[string][]workbook.Row{
				"Sheet1": {habitHeader, {num(1), num(1), num(10), text("A"), date(submitted)}},
			},
		}
		_, err := newTestImporter(gdb).Import(ctx, &memSource{wb: wb})
		assert.True(t, IsKind(err, KindImport))
		assert.True(t, wb.closed)
		assert.Empty(t, habitsOf(t, gdb))
		assert.Empty(t, usersOf(t, gdb))
	})

	t.Run("cancelled context", func(t *testing.T) {
		gdb := setupTestDB(t)
		wb := &memWorkbook{
			names:  []string{"Sheet1"},
			sheets: map[string][]workbook.Row{"Sheet1": {habitHeader, {num(1), num(1), num(1)}}},
		}
		cctx, cancel := context.WithCancel(ctx)
		cancel()
		_, err := newTestImporter(gdb).Import(cctx, &memSource{wb: wb})
		assert.Error(t, err)
	})
}

func TestImportFromXLSX(t *testing.T) {
	path := filepath.Join(t.TempDir(), workbook.DefaultFileName)
	f := excelize.NewFile()
	require.NoError(t, f.SetSheetRow("Sheet1", "A1", &[]any{"habitID", "user", "pagesRead", "book", "submissionMoment"}))
	require.NoError(t, f.SetSheetRow("Sheet1", "A2", &[]any{1, 3, 250, "The Hobbit", submitted}))
	require.NoError(t, f.SetSheetRow("Sheet1", "A3", &[]any{2, 4, 80, 1984, submitted}))
	_, err := f.NewSheet("User")
	require.NoError(t, err)
	require.NoError(t, f.SetSheetRow("User", "A1", &[]any{"userID", "age", "gender"}))
	require.NoError(t, f.SetSheetRow("User", "A2", &[]any{3, 52, "Female"}))
	require.NoError(t, f.SaveAs(path))
	require.NoError(t, f.Close())

	gdb := setupTestDB(t)
	res, err := newTestImporter(gdb).Import(context.Background(), workbook.NewFileSource(path))
	require.NoError(t, err)
	assert.Equal(t, 2, res.HabitsImported)
	assert.Equal(t, 1, res.UsersUpdated)
	assert.Empty(t, res.Warnings)

	hs := habitsOf(t, gdb)
	require.Len(t, hs, 2)
	assert.Equal(t, "The Hobbit", hs[0].Book)
	assert.Equal(t, "1984", hs[1].Book)
	assert.WithinDuration(t, submitted, hs[0].SubmissionMoment, time.Second)

	users := usersOf(t, gdb)
	assert.Equal(t, model.User{ID: 3, Age: 52, Gender: model.GenderFemale, Name: "User 3"}, users[3])

	// a second start finds data and leaves it alone
	res, err = newTestImporter(gdb).Import(context.Background(), workbook.NewFileSource(path))
	require.NoError(t, err)
	assert.True(t, res.AlreadyPopulated)
	assert.Len(t, habitsOf(t, gdb), 2)
}

func TestImportUserSheetOverridesGeneratedUser(t *testing.T) {
	gdb := setupTestDB(t)
	wb := &memWorkbook{
		names: []string{"Sheet1"},
		sheets: map[string][]workbook.Row{
			"Sheet1": {habitHeader, {num(1), num(42), num(15), text("Dune"), date(submitted)}},
		},
	}
	_, err := newTestImporter(gdb).Import(context.Background(), &memSource{wb: wb})
	require.NoError(t, err)

	generated := usersOf(t, gdb)
	require.Len(t, generated, 1)
	assert.Equal(t, "User 42", generated[42].Name)
	assert.GreaterOrEqual(t, generated[42].Age, 18)
	assert.LessOrEqual(t, generated[42].Age, 65)
	assert.Contains(t, []string{model.GenderMale, model.GenderFemale}, generated[42].Gender)

	// same data with the User sheet present overwrites the generated values
	gdb = setupTestDB(t)
	wb.names = append(wb.names, "User")
	wb.sheets["User"] = []workbook.Row{userHeader, {num(42), num(30), text("Female")}}
	res, err := newTestImporter(gdb).Import(context.Background(), &memSource{wb: wb})
	require.NoError(t, err)
	assert.Equal(t, 1, res.UsersCreated)
	assert.Equal(t, 1, res.UsersUpdated)
	assert.Equal(t, map[int]model.User{
		42: {ID: 42, Age: 30, Gender: model.GenderFemale, Name: "User 42"},
	}, usersOf(t, gdb))
}

func TestImportEndToEnd(t *testing.T) {
	ctx := context.Background()
	gdb := setupTestDB(t)
	wb := &memWorkbook{
		names: []string{"Sheet1"},
		sheets: map[string][]workbook.Row{
			"Sheet1": {
				habitHeader,
				{num(1), num(1), num(100), text("Dune"), date(submitted)},
				{num(2), num(1), num(20), text("Emma"), date(submitted)},
				{num(3), num(2), num(7), text("Dune"), date(submitted)},
			},
		},
	}
	_, err := newTestImporter(gdb).Import(ctx, &memSource{wb: wb})
	require.NoError(t, err)

	store := NewSQLStore(gdb, nil)
	users, err := store.ListUsers(ctx)
	require.NoError(t, err)
	require.Len(t, users, 2)
	assert.Len(t, habitsOf(t, gdb), 3)

	avg, err := store.MeanUserAge(ctx)
	require.NoError(t, err)
	require.True(t, avg.Valid)
	assert.GreaterOrEqual(t, avg.Float64, 18.0)
	assert.LessOrEqual(t, avg.Float64, 65.0)

	total, err := store.TotalPagesRead(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 127, total)

	// second run writes nothing
	res, err := newTestImporter(gdb).Import(ctx, &memSource{wb: wb})
	require.NoError(t, err)
	assert.True(t, res.AlreadyPopulated)
	assert.Len(t, habitsOf(t, gdb), 3)
}
