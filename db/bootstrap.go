package db

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"strings"
	"time"

	"booktracker/model"
	"booktracker/plugins/workbook"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Column positions of the reading habit sheet (first sheet).
const (
	habitIDCol = iota
	habitUserCol
	habitPagesCol
	habitBookCol
	habitMomentCol
)

// Column positions of the optional User sheet.
const (
	userIDCol = iota
	userAgeCol
	userGenderCol
)

const (
	UserSheetName   = "User"
	minImportAge    = 18
	maxImportAge    = 65
	maxAge          = 150
	headerRowOffset = 1
)

// RowWarning describes something that happened to a single spreadsheet row.
// Skipped rows wrote nothing; other warnings record a lossy fallback.
type RowWarning struct {
	Sheet   string
	Row     int // 1-based, as shown by a spreadsheet application
	Reason  string
	Skipped bool
}

// ImportResult is the outcome of one import run.
type ImportResult struct {
	RunID            string
	Source           string
	AlreadyPopulated bool
	HabitsImported   int
	UsersCreated     int
	UsersUpdated     int
	RowsSkipped      int
	Warnings         []RowWarning
}

func (r *ImportResult) warn(sheet string, row int, reason string) {
	r.Warnings = append(r.Warnings, RowWarning{Sheet: sheet, Row: row, Reason: reason})
}

func (r *ImportResult) skip(sheet string, row int, err error) {
	r.RowsSkipped++
	r.Warnings = append(r.Warnings, RowWarning{Sheet: sheet, Row: row, Reason: err.Error(), Skipped: true})
}

// idSet holds the user ids materialised so far in one import run. Both sheet
// passes consult it to choose between insert and update.
type idSet map[int]struct{}

func (s idSet) has(id int) bool { _, ok := s[id]; return ok }
func (s idSet) add(id int)      { s[id] = struct{}{} }

// Importer seeds an empty database from a workbook.
type Importer struct {
	db   *gorm.DB
	log  *zap.SugaredLogger
	rand *rand.Rand
	now  func() time.Time
}

type ImporterOption func(*Importer)

// WithRand sets the source used for generated user attributes.
func WithRand(r *rand.Rand) ImporterOption {
	return func(im *Importer) { im.rand = r }
}

// WithClock sets the clock used when a row carries no usable date.
func WithClock(now func() time.Time) ImporterOption {
	return func(im *Importer) { im.now = now }
}

func NewImporter(gdb *gorm.DB, log *zap.SugaredLogger, opts ...ImporterOption) *Importer {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	now := time.Now()
	im := &Importer{
		db:   gdb,
		log:  log,
		rand: rand.New(rand.NewPCG(uint64(now.UnixNano()), uint64(now.Unix()))),
		now:  time.Now,
	}
	for _, opt := range opts {
		opt(im)
	}
	return im
}

// Import loads src into the database when the User table is empty. Both sheet
// passes share one transaction: row failures are skipped and reported in the
// result, anything else rolls the whole import back.
func (im *Importer) Import(ctx context.Context, src workbook.Source) (*ImportResult, error) {
	const op = "Import"
	res := &ImportResult{RunID: uuid.NewString(), Source: src.String()}
	log := im.log.With("run", res.RunID, "source", res.Source)

	var users int64
	if err := im.db.WithContext(ctx).Model(&model.User{}).Count(&users).Error; err != nil {
		return nil, storageErr(op, "failed to check database state", err)
	}
	if users > 0 {
		log.Infow("database already contains data, skipping import", "users", users)
		res.AlreadyPopulated = true
		return res, nil
	}

	log.Infow("database is empty, importing workbook")
	wb, err := src.Open(ctx)
	if err != nil {
		return nil, importErr(op, "failed to open workbook", err)
	}
	defer func() {
		if err := wb.Close(); err != nil {
			log.Warnw("failed to close workbook", "error", err)
		}
	}()

	names := wb.SheetNames()
	if len(names) == 0 {
		return nil, importErr(op, "", workbook.ErrNoSheets)
	}

	seen := make(idSet)
	err = im.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := im.importHabits(ctx, tx, wb, names[0], seen, res, log); err != nil {
			return err
		}
		userSheet, ok := workbook.FindSheet(wb, UserSheetName)
		if !ok {
			log.Warnw("no User sheet found, imported users keep generated attributes")
			return nil
		}
		return im.importUsers(ctx, tx, wb, userSheet, seen, res, log)
	})
	if err != nil {
		log.Errorw("import rolled back", "error", err)
		return nil, importErr(op, "import rolled back", err)
	}

	log.Infow("import completed",
		"habits", res.HabitsImported,
		"users_created", res.UsersCreated,
		"users_updated", res.UsersUpdated,
		"rows_skipped", res.RowsSkipped,
	)
	return res, nil
}

func (im *Importer) importHabits(ctx context.Context, tx *gorm.DB, wb workbook.Workbook, sheet string,
	seen idSet, res *ImportResult, log *zap.SugaredLogger) error {

	rows, err := wb.Rows(ctx, sheet)
	if err != nil {
		return fmt.Errorf("read reading habit sheet: %w", err)
	}
	log.Infow("reading habit sheet loaded", "sheet", sheet, "rows", max(len(rows)-headerRowOffset, 0))

	for i := headerRowOffset; i < len(rows); i++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		if len(rows[i]) == 0 {
			continue
		}
		line := i + 1

		habit, warnings, err := im.parseHabitRow(rows[i])
		if err != nil {
			log.Warnw("row skipped", "sheet", sheet, "row", line, "error", err)
			res.skip(sheet, line, err)
			continue
		}

		created := false
		err = tx.Transaction(func(rowTx *gorm.DB) error {
			if !seen.has(habit.UserID) {
				u := im.generatedUser(habit.UserID)
				if err := rowTx.Create(&u).Error; err != nil {
					return fmt.Errorf("insert user %d: %w", habit.UserID, err)
				}
				created = true
			}
			if err := rowTx.Omit(clause.Associations).Create(&habit).Error; err != nil {
				return fmt.Errorf("insert reading habit %d: %w", habit.ID, err)
			}
			return nil
		})
		if err != nil {
			log.Warnw("row skipped", "sheet", sheet, "row", line, "error", err)
			res.skip(sheet, line, err)
			continue
		}

		for _, w := range warnings {
			log.Warnw(w, "sheet", sheet, "row", line, "habit", habit.ID)
			res.warn(sheet, line, w)
		}
		if created {
			seen.add(habit.UserID)
			res.UsersCreated++
		}
		res.HabitsImported++
	}
	return nil
}

func (im *Importer) importUsers(ctx context.Context, tx *gorm.DB, wb workbook.Workbook, sheet string,
	seen idSet, res *ImportResult, log *zap.SugaredLogger) error {

	rows, err := wb.Rows(ctx, sheet)
	if err != nil {
		return fmt.Errorf("read user sheet: %w", err)
	}
	log.Infow("user sheet loaded", "sheet", sheet, "rows", max(len(rows)-headerRowOffset, 0))

	for i := headerRowOffset; i < len(rows); i++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		if len(rows[i]) == 0 {
			continue
		}
		line := i + 1

		u, err := im.parseUserRow(rows[i])
		if err != nil {
			log.Warnw("row skipped", "sheet", sheet, "row", line, "error", err)
			res.skip(sheet, line, err)
			continue
		}

		update := seen.has(u.ID)
		err = tx.Transaction(func(rowTx *gorm.DB) error {
			if update {
				return rowTx.Model(&model.User{}).
					Where("userID = ?", u.ID).
					Updates(map[string]any{"age": u.Age, "gender": u.Gender, "name": u.Name}).Error
			}
			return rowTx.Create(&u).Error
		})
		if err != nil {
			log.Warnw("row skipped", "sheet", sheet, "row", line, "user", u.ID, "error", err)
			res.skip(sheet, line, err)
			continue
		}
		if update {
			res.UsersUpdated++
			continue
		}
		seen.add(u.ID)
		res.UsersCreated++
	}
	return nil
}

func (im *Importer) parseHabitRow(row workbook.Row) (model.ReadingHabit, []string, error) {
	var h model.ReadingHabit
	var err error
	if h.ID, err = positiveInt(row.Cell(habitIDCol), "habitID"); err != nil {
		return h, nil, err
	}
	if h.UserID, err = positiveInt(row.Cell(habitUserCol), "userID"); err != nil {
		return h, nil, err
	}
	pages, ok := row.Cell(habitPagesCol).Int()
	if !ok {
		return h, nil, errors.New("pagesRead is not numeric")
	}
	if pages < 0 {
		return h, nil, fmt.Errorf("pagesRead %d is negative", pages)
	}
	h.PagesRead = pages

	var warnings []string
	switch c := row.Cell(habitBookCol); c.Kind {
	case workbook.CellText:
		h.Book = strings.TrimSpace(c.Text)
	case workbook.CellNumber, workbook.CellDate:
		h.Book = c.String()
	}
	if h.Book == "" {
		h.Book = model.BookUnknown
		warnings = append(warnings, fmt.Sprintf("invalid book title format, using %q", model.BookUnknown))
	}

	if c := row.Cell(habitMomentCol); c.Kind == workbook.CellDate {
		h.SubmissionMoment = c.Time
	} else {
		h.SubmissionMoment = im.now()
		warnings = append(warnings, "submission moment is not a date, using current time")
	}
	return h, warnings, nil
}

func (im *Importer) parseUserRow(row workbook.Row) (model.User, error) {
	var u model.User
	var err error
	if u.ID, err = positiveInt(row.Cell(userIDCol), "userID"); err != nil {
		return u, err
	}
	age, ok := row.Cell(userAgeCol).Int()
	if !ok {
		return u, errors.New("age is not numeric")
	}
	if age < 0 || age > maxAge {
		return u, fmt.Errorf("age %d is outside [0,%d]", age, maxAge)
	}
	u.Age = age

	if c := row.Cell(userGenderCol); c.Kind == workbook.CellText {
		u.Gender = model.GenderFromText(c.Text)
	} else {
		u.Gender = im.randomGender()
	}
	u.Name = model.ImportedUserName(u.ID)
	return u, nil
}

// generatedUser is the stand-in for a user referenced before the User sheet
// describes it.
func (im *Importer) generatedUser(id int) model.User {
	return model.User{
		ID:     id,
		Age:    minImportAge + im.rand.IntN(maxImportAge-minImportAge+1),
		Gender: im.randomGender(),
		Name:   model.ImportedUserName(id),
	}
}

func (im *Importer) randomGender() string {
	if im.rand.IntN(2) == 0 {
		return model.GenderMale
	}
	return model.GenderFemale
}

func positiveInt(c workbook.Cell, field string) (int, error) {
	v, ok := c.Int()
	if !ok {
		return 0, fmt.Errorf("%s is not numeric", field)
	}
	if v <= 0 {
		return 0, fmt.Errorf("%s %d is not positive", field, v)
	}
	return v, nil
}
