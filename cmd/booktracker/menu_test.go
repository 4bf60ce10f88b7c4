package main

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"booktracker/db"
	"booktracker/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func newTestApp(t *testing.T) (*app, *bytes.Buffer) {
	t.Helper()
	gdb, err := db.Open(db.MemoryPath, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close(gdb) })
	require.NoError(t, db.EnsureSchema(context.Background(), gdb, nil))

	require.NoError(t, gdb.Create(&model.User{ID: 1, Name: "Alice", Age: 30, Gender: model.GenderFemale}).Error)
	require.NoError(t, gdb.Create(&model.User{ID: 2, Name: "Bob", Age: 41, Gender: model.GenderMale}).Error)
	for _, h := range []model.ReadingHabit{
		{ID: 1, UserID: 1, Book: "Dune", PagesRead: 40},
		{ID: 2, UserID: 1, Book: "Emma", PagesRead: 10},
	} {
		require.NoError(t, gdb.Omit("User").Create(&h).Error)
	}

	var out bytes.Buffer
	return &app{store: db.NewSQLStore(gdb, nil), out: &out}, &out
}

func runMenu(t *testing.T, input string) string {
	t.Helper()
	a, out := newTestApp(t)
	m := newMenu(a, strings.NewReader(input), zap.NewNop().Sugar())
	require.NoError(t, m.run(context.Background()))
	return out.String()
}

func TestMenuReports(t *testing.T) {
	out := runMenu(t, "5\n6\nDune\n7\n8\n10\n")
	assert.Contains(t, out, "Mean age of users: 35.50")
	assert.Contains(t, out, `Number of users who read "Dune": 1`)
	assert.Contains(t, out, "Total pages read by all users: 50")
	assert.Contains(t, out, "Number of users who read more than one book: 1")
	assert.True(t, strings.HasSuffix(out, "Exiting the application...\n"))
}

func TestMenuMutations(t *testing.T) {
	out := runMenu(t, strings.Join([]string{
		"1", "Carol", "22", "Female",
		"2", "ali",
		"3", "Dune", "Dune Messiah",
		"4", "2",
		"4", "2",
		"9",
		"10",
	}, "\n")+"\n")

	assert.Contains(t, out, "User added successfully: ID: 3 | Name: Carol | Age: 22 | Gender: Female")
	assert.Contains(t, out, "[1] User 1 | Book: Dune, Pages Read: 40")
	assert.Contains(t, out, "Book title updated in 1 record(s).")
	assert.Contains(t, out, "Reading habit 2 deleted.")
	assert.Contains(t, out, "No reading habit found with ID 2.")
	assert.Contains(t, out, "=== Book statistics ===")
	assert.Contains(t, out, "Dune Messiah")
	assert.Contains(t, out, "Users without reading habits: 2")
}

func TestMenuErrorsReturnToPrompt(t *testing.T) {
	out := runMenu(t, strings.Join([]string{
		"1", "Dan", "old", // bad age
		"4", "x",
		"1", "", "20", "Male",
		"2", "nobody",
		"42",
		"5",
	}, "\n")+"\n")

	assert.Equal(t, 2, strings.Count(out, "Error: Please enter a valid number."))
	assert.Contains(t, out, "Error: name must not be empty")
	assert.Contains(t, out, `Error: no reading habits found for "nobody"`)
	assert.Contains(t, out, "Invalid choice. Please try again.")
	assert.Contains(t, out, "Mean age of users: 35.50", "loop keeps going after errors")
	assert.True(t, strings.HasSuffix(out, "Exiting the application...\n"), "end of input exits")
}

func TestMenuEndOfInputMidPrompt(t *testing.T) {
	out := runMenu(t, "1\nEve\n")
	assert.Contains(t, out, "Enter age: ")
	assert.True(t, strings.HasSuffix(out, "Exiting the application...\n"))
}

func TestMessage(t *testing.T) {
	assert.Equal(t, "Please enter a valid number.", message(errInvalidNumber))

	_, err := parseNumber(" 12 ")
	assert.NoError(t, err)
	_, err = parseNumber("1.5")
	assert.ErrorIs(t, err, errInvalidNumber)

	storage := &db.Error{Kind: db.KindStorage, Op: "AddUser", Msg: "failed to add user", Err: assert.AnError}
	assert.Equal(t, "failed to add user: "+assert.AnError.Error(), message(storage))
}

func TestMenuLogsOnlyFailures(t *testing.T) {
	a, _ := newTestApp(t)
	core, logs := observer.New(zapcore.WarnLevel)
	m := newMenu(a, strings.NewReader("2\nnobody\n1\n\n20\nMale\n4\nx\n10\n"), zap.New(core).Sugar())
	require.NoError(t, m.run(context.Background()))
	assert.Zero(t, logs.Len(), "not found and invalid input are not logged")

	storage := &db.Error{Kind: db.KindStorage, Op: "AddUser", Msg: "failed to add user", Err: assert.AnError}
	assert.False(t, operatorError(storage))
	assert.True(t, operatorError(&db.Error{Kind: db.KindNotFound, Op: "GetUser"}))
}
