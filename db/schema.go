package db

import (
	"context"
	"strings"

	"booktracker/model"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// EnsureSchema creates the User and ReadingHabit tables when they are missing
// and adds the name column to a User table created without it. Existing rows
// are never touched, so it is safe to call on every start.
func EnsureSchema(ctx context.Context, gdb *gorm.DB, log *zap.SugaredLogger) error {
	const op = "EnsureSchema"
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	m := gdb.WithContext(ctx).Migrator()

	if !m.HasTable(&model.User{}) {
		if err := m.CreateTable(&model.User{}); err != nil {
			return storageErr(op, "failed to create User table", err)
		}
		log.Infow("created table", "table", model.User{}.TableName())
	} else {
		hasName, err := hasColumn(m, &model.User{}, "name")
		if err != nil {
			return storageErr(op, "failed to inspect User columns", err)
		}
		if !hasName {
			if err := m.AddColumn(&model.User{}, "Name"); err != nil {
				return storageErr(op, "failed to add name column", err)
			}
			log.Infow("added name column", "table", model.User{}.TableName())
		}
	}

	if !m.HasTable(&model.ReadingHabit{}) {
		if err := m.CreateTable(&model.ReadingHabit{}); err != nil {
			return storageErr(op, "failed to create ReadingHabit table", err)
		}
		log.Infow("created table", "table", model.ReadingHabit{}.TableName())
	}
	return nil
}

func hasColumn(m gorm.Migrator, value any, column string) (bool, error) {
	cols, err := m.ColumnTypes(value)
	if err != nil {
		return false, err
	}
	for _, c := range cols {
		if strings.EqualFold(c.Name(), column) {
			return true, nil
		}
	}
	return false, nil
}
