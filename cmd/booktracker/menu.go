package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"booktracker/db"

	"go.uber.org/zap"
)

const menuText = `
Please select an option:
1. Add a new user
2. View reading habits for a user
3. Change a book title
4. Delete a reading habit record
5. Get mean age of users
6. Get user count for a specific book
7. Get total pages read by all users
8. Get number of users who read multiple books
9. View database structure
10. Exit`

const exitChoice = "10"

// menu is the line-oriented interactive loop. Every failure prints one line
// and returns to the prompt; end of input exits like option 10.
type menu struct {
	app *app
	in  *bufio.Scanner
	out io.Writer
	log *zap.SugaredLogger
}

func newMenu(a *app, in io.Reader, log *zap.SugaredLogger) *menu {
	return &menu{app: a, in: bufio.NewScanner(in), out: a.out, log: log}
}

func (m *menu) run(ctx context.Context) error {
	fmt.Fprintln(m.out, "Welcome to BookTracker")
	for {
		fmt.Fprintln(m.out, menuText)
		choice, err := m.prompt("\nEnter your choice (1-10): ")
		if errors.Is(err, io.EOF) || strings.TrimSpace(choice) == exitChoice {
			fmt.Fprintln(m.out, "Exiting the application...")
			return nil
		}
		if err != nil {
			return err
		}

		err = m.dispatch(ctx, strings.TrimSpace(choice))
		switch {
		case errors.Is(err, io.EOF):
			fmt.Fprintln(m.out, "\nExiting the application...")
			return nil
		case err != nil:
			if !operatorError(err) {
				m.log.Warnw("menu operation failed", "choice", choice, "error", err)
			}
			fmt.Fprintf(m.out, "Error: %s\n", message(err))
		}
		if err := ctx.Err(); err != nil {
			return err
		}
	}
}

// operatorError reports whether err is caused by the operator's input or is
// an expected empty result rather than a failure worth logging.
func operatorError(err error) bool {
	return db.IsKind(err, db.KindValidation) ||
		db.IsKind(err, db.KindNotFound) ||
		errors.Is(err, errInvalidNumber)
}

// prompt prints p and reads one line. io.EOF is returned once input ends.
func (m *menu) prompt(p string) (string, error) {
	fmt.Fprint(m.out, p)
	if !m.in.Scan() {
		if err := m.in.Err(); err != nil {
			return "", err
		}
		return "", io.EOF
	}
	return m.in.Text(), nil
}

func (m *menu) promptNumber(p string) (int, error) {
	s, err := m.prompt(p)
	if err != nil {
		return 0, err
	}
	return parseNumber(s)
}

func (m *menu) dispatch(ctx context.Context, choice string) error {
	switch choice {
	case "1":
		name, err := m.prompt("Enter user name: ")
		if err != nil {
			return err
		}
		age, err := m.promptNumber("Enter age: ")
		if err != nil {
			return err
		}
		gender, err := m.prompt("Enter gender (Male/Female): ")
		if err != nil {
			return err
		}
		return m.app.addUser(ctx, name, age, gender)

	case "2":
		input, err := m.prompt("Enter user ID or name (partial names work): ")
		if err != nil {
			return err
		}
		return m.app.readingHabits(ctx, input)

	case "3":
		oldTitle, err := m.prompt("Enter current book title: ")
		if err != nil {
			return err
		}
		newTitle, err := m.prompt("Enter new book title: ")
		if err != nil {
			return err
		}
		return m.app.renameBook(ctx, oldTitle, newTitle)

	case "4":
		id, err := m.promptNumber("Enter habit ID to delete: ")
		if err != nil {
			return err
		}
		return m.app.deleteHabit(ctx, id)

	case "5":
		return m.app.meanAge(ctx)

	case "6":
		title, err := m.prompt("Enter book title: ")
		if err != nil {
			return err
		}
		return m.app.bookReaders(ctx, title)

	case "7":
		return m.app.totalPages(ctx)

	case "8":
		return m.app.multiBookReaders(ctx)

	case "9":
		return m.app.structure(ctx)
	}
	fmt.Fprintln(m.out, "Invalid choice. Please try again.")
	return nil
}
