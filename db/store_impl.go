package db

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"booktracker/model"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

type SQLStore struct {
	db  *gorm.DB
	log *zap.SugaredLogger
}

func NewSQLStore(db *gorm.DB, log *zap.SugaredLogger) *SQLStore {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &SQLStore{db: db, log: log}
}

// Ping verifies the underlying database connection is healthy.
func (s *SQLStore) Ping(ctx context.Context) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("sql store is not initialized")
	}
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	return sqlDB.PingContext(ctx)
}

func (s *SQLStore) Close() error {
	return Close(s.db)
}

// AddUser validates and stores a new user; the database assigns the id.
func (s *SQLStore) AddUser(ctx context.Context, name string, age int, gender string) (*model.User, error) {
	const op = "AddUser"
	name, gender = strings.TrimSpace(name), strings.TrimSpace(gender)
	switch {
	case name == "":
		return nil, validationErr(op, "name must not be empty")
	case gender == "":
		return nil, validationErr(op, "gender must not be empty")
	case age < 0 || age > maxAge:
		return nil, validationErr(op, "age %d is outside [0,%d]", age, maxAge)
	}

	u := model.User{Name: name, Age: age, Gender: gender}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return tx.Create(&u).Error
	})
	if err != nil {
		return nil, storageErr(op, "failed to add user", err)
	}
	s.log.Infow("user added", "user", u.ID)
	return &u, nil
}

func (s *SQLStore) GetUser(ctx context.Context, id int) (*model.User, error) {
	const op = "GetUser"
	if id <= 0 {
		return nil, validationErr(op, "user id must be positive, got %d", id)
	}
	var u model.User
	err := s.db.WithContext(ctx).First(&u, "userID = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, notFoundErr(op, "no user with id %d", id)
	}
	if err != nil {
		return nil, storageErr(op, "failed to load user", err)
	}
	return &u, nil
}

// GetReadingHabitsForUser returns the habits of the user with the given id
// when input is all digits, otherwise of every user whose name contains input
// ignoring ASCII case. Results are ordered by habit id.
func (s *SQLStore) GetReadingHabitsForUser(ctx context.Context, input string) ([]model.ReadingHabit, error) {
	const op = "GetReadingHabitsForUser"
	input = strings.TrimSpace(input)
	if input == "" {
		return nil, validationErr(op, "user id or name must not be empty")
	}

	q := s.db.WithContext(ctx).Model(&model.ReadingHabit{})
	if isDigits(input) {
		id, err := strconv.Atoi(input)
		if err != nil || id <= 0 {
			return nil, validationErr(op, "invalid user id %q", input)
		}
		q = q.Where("userID = ?", id)
	} else {
		// LIKE folds ASCII case only; other letters must match as typed.
		pattern := "%" + escapeLike(input) + "%"
		names := s.db.WithContext(ctx).Model(&model.User{}).
			Select("userID").
			Where(`name LIKE ? ESCAPE '\'`, pattern)
		q = q.Where("userID IN (?)", names)
	}

	var habits []model.ReadingHabit
	if err := q.Order("habitID").Find(&habits).Error; err != nil {
		return nil, storageErr(op, "failed to load reading habits", err)
	}
	if len(habits) == 0 {
		return nil, notFoundErr(op, "no reading habits found for %q", input)
	}
	return habits, nil
}

// ChangeBookTitle renames every habit whose book equals oldTitle exactly and
// returns the number of rows changed.
func (s *SQLStore) ChangeBookTitle(ctx context.Context, oldTitle, newTitle string) (int64, error) {
	const op = "ChangeBookTitle"
	oldTitle, newTitle = strings.TrimSpace(oldTitle), strings.TrimSpace(newTitle)
	if oldTitle == "" || newTitle == "" {
		return 0, validationErr(op, "book titles must not be empty")
	}

	var affected int64
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&model.ReadingHabit{}).
			Where("book = ?", oldTitle).
			Update("book", newTitle)
		affected = res.RowsAffected
		return res.Error
	})
	if err != nil {
		return 0, storageErr(op, "failed to rename book", err)
	}
	s.log.Infow("book renamed", "from", oldTitle, "to", newTitle, "rows", affected)
	return affected, nil
}

// DeleteReadingHabit removes one habit and returns 1, or 0 when it does not exist.
func (s *SQLStore) DeleteReadingHabit(ctx context.Context, habitID int) (int64, error) {
	const op = "DeleteReadingHabit"
	if habitID <= 0 {
		return 0, validationErr(op, "habit id must be positive, got %d", habitID)
	}

	var affected int64
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Delete(&model.ReadingHabit{}, "habitID = ?", habitID)
		affected = res.RowsAffected
		return res.Error
	})
	if err != nil {
		return 0, storageErr(op, "failed to delete reading habit", err)
	}
	s.log.Infow("reading habit deleted", "habit", habitID, "rows", affected)
	return affected, nil
}

func isDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return s != ""
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}
