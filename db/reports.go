package db

import (
	"context"
	"database/sql"
	"strings"

	"booktracker/model"
)

// MeanUserAge is the average age over all users; Valid is false when there
// are none.
func (s *SQLStore) MeanUserAge(ctx context.Context) (sql.NullFloat64, error) {
	var avg sql.NullFloat64
	err := s.db.WithContext(ctx).
		Model(&model.User{}).
		Select("AVG(age)").
		Scan(&avg).Error
	if err != nil {
		return sql.NullFloat64{}, storageErr("MeanUserAge", "failed to compute mean age", err)
	}
	return avg, nil
}

// UserCountForBook counts the distinct users with at least one habit for title.
func (s *SQLStore) UserCountForBook(ctx context.Context, title string) (int64, error) {
	const op = "UserCountForBook"
	title = strings.TrimSpace(title)
	if title == "" {
		return 0, validationErr(op, "book title must not be empty")
	}
	var n int64
	err := s.db.WithContext(ctx).
		Model(&model.ReadingHabit{}).
		Where("book = ?", title).
		Distinct("userID").
		Count(&n).Error
	if err != nil {
		return 0, storageErr(op, "failed to count readers", err)
	}
	return n, nil
}

func (s *SQLStore) TotalPagesRead(ctx context.Context) (int64, error) {
	var total int64
	err := s.db.WithContext(ctx).
		Model(&model.ReadingHabit{}).
		Select("COALESCE(SUM(pagesRead), 0)").
		Scan(&total).Error
	if err != nil {
		return 0, storageErr("TotalPagesRead", "failed to sum pages", err)
	}
	return total, nil
}

// UsersWithMultipleBooks counts users who have read more than one distinct book.
func (s *SQLStore) UsersWithMultipleBooks(ctx context.Context) (int64, error) {
	readers := s.db.WithContext(ctx).Model(&model.ReadingHabit{}).
		Select("userID").
		Group("userID").
		Having("COUNT(DISTINCT book) > 1")

	var n int64
	err := s.db.WithContext(ctx).Table("(?) AS readers", readers).Count(&n).Error
	if err != nil {
		return 0, storageErr("UsersWithMultipleBooks", "failed to count readers", err)
	}
	return n, nil
}

func (s *SQLStore) ListUsers(ctx context.Context) ([]model.User, error) {
	var users []model.User
	if err := s.db.WithContext(ctx).Order("userID").Find(&users).Error; err != nil {
		return nil, storageErr("ListUsers", "failed to list users", err)
	}
	return users, nil
}

// BookStatistics returns one row per distinct book, most read first.
func (s *SQLStore) BookStatistics(ctx context.Context) ([]model.BookStats, error) {
	var stats []model.BookStats
	err := s.db.WithContext(ctx).
		Model(&model.ReadingHabit{}).
		Select("book, COUNT(*) AS read_count, SUM(pagesRead) AS total_pages, COUNT(DISTINCT userID) AS unique_readers").
		Group("book").
		Order("read_count DESC, book ASC").
		Scan(&stats).Error
	if err != nil {
		return nil, storageErr("BookStatistics", "failed to compute book statistics", err)
	}
	return stats, nil
}

func (s *SQLStore) UsersWithoutHabits(ctx context.Context) ([]model.User, error) {
	var users []model.User
	err := s.db.WithContext(ctx).
		Joins(`LEFT JOIN "ReadingHabit" rh ON rh.userID = "User".userID`).
		Where("rh.habitID IS NULL").
		Order(`"User".userID`).
		Find(&users).Error
	if err != nil {
		return nil, storageErr("UsersWithoutHabits", "failed to list users without habits", err)
	}
	return users, nil
}

const summaryQuery = `
SELECT
	COUNT(DISTINCT u.userID)       AS total_users,
	COUNT(DISTINCT rh.userID)      AS users_with_habits,
	COUNT(DISTINCT rh.book)        AS total_books,
	COUNT(rh.habitID)              AS total_reading_records,
	COALESCE(SUM(rh.pagesRead), 0) AS total_pages_read
FROM "User" u
LEFT JOIN "ReadingHabit" rh ON rh.userID = u.userID`

func (s *SQLStore) Summary(ctx context.Context) (*model.Summary, error) {
	var sum model.Summary
	if err := s.db.WithContext(ctx).Raw(summaryQuery).Scan(&sum).Error; err != nil {
		return nil, storageErr("Summary", "failed to compute summary", err)
	}
	sum.UsersWithoutHabits = sum.TotalUsers - sum.UsersWithHabits
	return &sum, nil
}
