package model

import (
	"fmt"
	"strings"
	"time"
)

// Canonical gender values produced by the importer. Operators may store any
// other non-empty value through AddUser.
const (
	GenderMale   = "Male"
	GenderFemale = "Female"
	GenderOther  = "Other"
)

// BookUnknown is stored when a spreadsheet row carries no usable title.
const BookUnknown = "Unknown"

// A User is a reader. The id is assigned once and never changes.
//
// Users are created by an operator or by the spreadsheet import; the import
// names the users it creates "User {id}".
type User struct {
	ID     int    `gorm:"column:userID;primaryKey"`
	Age    int    `gorm:"column:age"`
	Gender string `gorm:"column:gender"`
	Name   string `gorm:"column:name"`
}

func (User) TableName() string { return "User" }

func (u User) String() string {
	return fmt.Sprintf("ID: %d | Name: %s | Age: %d | Gender: %s", u.ID, u.Name, u.Age, u.Gender)
}

// ImportedUserName is the name given to users materialised by the import.
func ImportedUserName(id int) string {
	return fmt.Sprintf("User %d", id)
}

// GenderFromText maps free-form spreadsheet text onto the canonical values:
// anything starting with m is Male, f is Female, everything else Other.
func GenderFromText(raw string) string {
	s := strings.ToLower(strings.TrimSpace(raw))
	switch {
	case strings.HasPrefix(s, "m"):
		return GenderMale
	case strings.HasPrefix(s, "f"):
		return GenderFemale
	}
	return GenderOther
}

// A ReadingHabit is one submitted reading event. SubmissionMoment is set at
// creation and never updated; Book may be renamed in bulk.
type ReadingHabit struct {
	ID               int       `gorm:"column:habitID;primaryKey"`
	Book             string    `gorm:"column:book"`
	PagesRead        int       `gorm:"column:pagesRead"`
	SubmissionMoment time.Time `gorm:"column:submissionMoment;type:DATETIME"`
	UserID           int       `gorm:"column:userID;index"`
	User             User      `gorm:"foreignKey:UserID;references:ID"`
}

func (ReadingHabit) TableName() string { return "ReadingHabit" }

func (h ReadingHabit) String() string {
	return fmt.Sprintf("Book: %s, Pages Read: %d, Date: %s",
		h.Book, h.PagesRead, h.SubmissionMoment.Format(time.DateTime))
}

// BookStats aggregates every reading record of a single title.
type BookStats struct {
	Book          string `gorm:"column:book"`
	ReadCount     int64  `gorm:"column:read_count"`
	TotalPages    int64  `gorm:"column:total_pages"`
	UniqueReaders int64  `gorm:"column:unique_readers"`
}

// Summary is the one-row overview of the whole database.
type Summary struct {
	TotalUsers          int64 `gorm:"column:total_users"`
	UsersWithHabits     int64 `gorm:"column:users_with_habits"`
	UsersWithoutHabits  int64 `gorm:"-"`
	TotalBooks          int64 `gorm:"column:total_books"`
	TotalReadingRecords int64 `gorm:"column:total_reading_records"`
	TotalPagesRead      int64 `gorm:"column:total_pages_read"`
}
