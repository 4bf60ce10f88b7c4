package db

import (
	"context"
	"database/sql"

	"booktracker/model"
)

// Store is the record store and report engine used by the dispatcher.
type Store interface {
	AddUser(ctx context.Context, name string, age int, gender string) (*model.User, error)
	GetUser(ctx context.Context, id int) (*model.User, error)
	GetReadingHabitsForUser(ctx context.Context, input string) ([]model.ReadingHabit, error)
	ChangeBookTitle(ctx context.Context, oldTitle, newTitle string) (int64, error)
	DeleteReadingHabit(ctx context.Context, habitID int) (int64, error)

	MeanUserAge(ctx context.Context) (sql.NullFloat64, error)
	UserCountForBook(ctx context.Context, title string) (int64, error)
	TotalPagesRead(ctx context.Context) (int64, error)
	UsersWithMultipleBooks(ctx context.Context) (int64, error)
	ListUsers(ctx context.Context) ([]model.User, error)
	BookStatistics(ctx context.Context) ([]model.BookStats, error)
	UsersWithoutHabits(ctx context.Context) ([]model.User, error)
	Summary(ctx context.Context) (*model.Summary, error)

	Ping(ctx context.Context) error
	Close() error
}

var _ Store = (*SQLStore)(nil)
