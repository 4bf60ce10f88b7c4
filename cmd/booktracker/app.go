package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"text/tabwriter"

	"booktracker/db"
)

var errInvalidNumber = errors.New("invalid number")

// app prints the result of each store operation for a human reader.
type app struct {
	store db.Store
	out   io.Writer
}

func parseNumber(s string) (int, error) {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 0, errInvalidNumber
	}
	return n, nil
}

// message renders err as the single line shown to the operator.
func message(err error) string {
	if errors.Is(err, errInvalidNumber) {
		return "Please enter a valid number."
	}
	var dbErr *db.Error
	if errors.As(err, &dbErr) && dbErr.Msg != "" {
		if dbErr.Kind == db.KindStorage && dbErr.Err != nil {
			return fmt.Sprintf("%s: %v", dbErr.Msg, dbErr.Err)
		}
		return dbErr.Msg
	}
	return err.Error()
}

func (a *app) addUser(ctx context.Context, name string, age int, gender string) error {
	u, err := a.store.AddUser(ctx, name, age, gender)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "User added successfully: %s\n", u)
	return nil
}

func (a *app) showUser(ctx context.Context, id int) error {
	u, err := a.store.GetUser(ctx, id)
	if err != nil {
		return err
	}
	fmt.Fprintln(a.out, u)
	return nil
}

func (a *app) readingHabits(ctx context.Context, input string) error {
	habits, err := a.store.GetReadingHabitsForUser(ctx, input)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Reading habits for %q:\n", strings.TrimSpace(input))
	for _, h := range habits {
		fmt.Fprintf(a.out, "[%d] User %d | %s\n", h.ID, h.UserID, h)
	}
	return nil
}

func (a *app) renameBook(ctx context.Context, oldTitle, newTitle string) error {
	n, err := a.store.ChangeBookTitle(ctx, oldTitle, newTitle)
	if err != nil {
		return err
	}
	if n == 0 {
		fmt.Fprintf(a.out, "No records found with book title %q.\n", strings.TrimSpace(oldTitle))
		return nil
	}
	fmt.Fprintf(a.out, "Book title updated in %d record(s).\n", n)
	return nil
}

func (a *app) deleteHabit(ctx context.Context, habitID int) error {
	n, err := a.store.DeleteReadingHabit(ctx, habitID)
	if err != nil {
		return err
	}
	if n == 0 {
		fmt.Fprintf(a.out, "No reading habit found with ID %d.\n", habitID)
		return nil
	}
	fmt.Fprintf(a.out, "Reading habit %d deleted.\n", habitID)
	return nil
}

func (a *app) meanAge(ctx context.Context) error {
	avg, err := a.store.MeanUserAge(ctx)
	if err != nil {
		return err
	}
	if !avg.Valid {
		fmt.Fprintln(a.out, "No users found.")
		return nil
	}
	fmt.Fprintf(a.out, "Mean age of users: %.2f\n", avg.Float64)
	return nil
}

func (a *app) bookReaders(ctx context.Context, title string) error {
	n, err := a.store.UserCountForBook(ctx, title)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Number of users who read %q: %d\n", strings.TrimSpace(title), n)
	return nil
}

func (a *app) totalPages(ctx context.Context) error {
	n, err := a.store.TotalPagesRead(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Total pages read by all users: %d\n", n)
	return nil
}

func (a *app) multiBookReaders(ctx context.Context) error {
	n, err := a.store.UsersWithMultipleBooks(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Number of users who read more than one book: %d\n", n)
	return nil
}

// structure prints every user, per-book statistics, users without habits and
// the overall summary.
func (a *app) structure(ctx context.Context) error {
	users, err := a.store.ListUsers(ctx)
	if err != nil {
		return err
	}
	stats, err := a.store.BookStatistics(ctx)
	if err != nil {
		return err
	}
	idle, err := a.store.UsersWithoutHabits(ctx)
	if err != nil {
		return err
	}
	sum, err := a.store.Summary(ctx)
	if err != nil {
		return err
	}

	fmt.Fprintln(a.out, "=== Users ===")
	for _, u := range users {
		fmt.Fprintln(a.out, u)
	}

	fmt.Fprintln(a.out, "\n=== Book statistics ===")
	tw := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "Book\tTimes read\tTotal pages\tUnique readers")
	for _, s := range stats {
		fmt.Fprintf(tw, "%s\t%d\t%d\t%d\n", s.Book, s.ReadCount, s.TotalPages, s.UniqueReaders)
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	fmt.Fprintln(a.out, "\n=== Users without reading habits ===")
	if len(idle) == 0 {
		fmt.Fprintln(a.out, "(none)")
	}
	for _, u := range idle {
		fmt.Fprintln(a.out, u)
	}

	fmt.Fprintln(a.out, "\n=== Summary ===")
	fmt.Fprintf(a.out, "Total users: %d\n", sum.TotalUsers)
	fmt.Fprintf(a.out, "Users with reading habits: %d\n", sum.UsersWithHabits)
	fmt.Fprintf(a.out, "Users without reading habits: %d\n", sum.UsersWithoutHabits)
	fmt.Fprintf(a.out, "Distinct books: %d\n", sum.TotalBooks)
	fmt.Fprintf(a.out, "Reading records: %d\n", sum.TotalReadingRecords)
	fmt.Fprintf(a.out, "Total pages read: %d\n", sum.TotalPagesRead)
	return nil
}

func (a *app) printImport(res *db.ImportResult) {
	if res.AlreadyPopulated {
		fmt.Fprintln(a.out, "Database already contains data, import skipped.")
		return
	}
	fmt.Fprintf(a.out, "Imported %d reading habit(s) from %s: %d user(s) created, %d updated, %d row(s) skipped.\n",
		res.HabitsImported, res.Source, res.UsersCreated, res.UsersUpdated, res.RowsSkipped)
	for _, w := range res.Warnings {
		state := "warning"
		if w.Skipped {
			state = "skipped"
		}
		fmt.Fprintf(a.out, "  %s row %d (%s): %s\n", w.Sheet, w.Row, state, w.Reason)
	}
}
