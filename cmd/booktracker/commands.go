package main

import (
	"context"
	"fmt"
	"strings"

	"booktracker/config"
	"booktracker/db"
	"booktracker/plugins/workbook"

	"github.com/spf13/cobra"
)

func newRootCmd(rt *runtime) *cobra.Command {
	root := &cobra.Command{
		Use:   "booktracker",
		Short: "Track users and their reading habits in SQLite",
		Long: "booktracker keeps users and reading habits in a SQLite database. An empty\n" +
			"database is seeded once from a spreadsheet; afterwards the data is managed\n" +
			"through the interactive menu or the subcommands below.",
		Args:              cobra.NoArgs,
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: rt.setup,
		RunE:              rt.runMenu,
	}

	pf := root.PersistentFlags()
	pf.String(config.KeyDB, config.DefaultDBPath, "Path to SQLite database file")
	pf.String(config.KeyImportFile, workbook.DefaultFileName, "Spreadsheet imported into an empty database")
	pf.String(config.KeySpreadsheetID, "", "Google Sheets spreadsheet to import instead of the .xlsx file")
	pf.String(config.KeyCredentialsFile, "", "Google service account credentials file")
	pf.String(config.KeyLogLevel, config.DefaultLogLevel, "Log level (debug, info, warn, error)")
	pf.String(config.KeyLogFile, "", "Also write JSON logs to this rotating file")
	pf.Bool(config.KeyDebug, false, "Enable debug logging")

	root.AddCommand(
		&cobra.Command{
			Use:   "menu",
			Short: "Run the interactive menu (default)",
			Args:  cobra.NoArgs,
			RunE:  rt.runMenu,
		},
		rt.initCmd(),
		rt.importCmd(),
		rt.userCmd(),
		rt.storeCmd("habits <user-id-or-name>", "Show the reading habits of a user", cobra.MinimumNArgs(1),
			func(ctx context.Context, a *app, args []string) error {
				return a.readingHabits(ctx, strings.Join(args, " "))
			}),
		rt.bookCmd(),
		rt.habitCmd(),
		rt.reportCmd(),
		rt.backupCmd(),
	)
	return root
}

func (rt *runtime) runMenu(cmd *cobra.Command, _ []string) error {
	a, err := rt.open(cmd, true)
	if err != nil {
		return err
	}
	return newMenu(a, cmd.InOrStdin(), rt.log).run(cmd.Context())
}

// storeCmd builds a leaf command that runs against an opened, seeded database.
func (rt *runtime) storeCmd(use, short string, args cobra.PositionalArgs,
	run func(ctx context.Context, a *app, args []string) error) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  args,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := rt.open(cmd, true)
			if err != nil {
				return err
			}
			return run(cmd.Context(), a, args)
		},
	}
}

func (rt *runtime) initCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Create the database schema without importing data",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if _, err := rt.open(cmd, false); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Database schema ready at %s\n", rt.cfg.DBPath)
			return nil
		},
	}
}

func (rt *runtime) importCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "import",
		Short: "Seed an empty database from the configured spreadsheet",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := rt.open(cmd, false)
			if err != nil {
				return err
			}
			res, err := db.NewImporter(rt.gdb, rt.log).Import(cmd.Context(), rt.cfg.ImportSource())
			if err != nil {
				return err
			}
			a.printImport(res)
			return nil
		},
	}
}

func (rt *runtime) userCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "user", Short: "Manage users"}
	cmd.AddCommand(
		rt.storeCmd("add <name> <age> <gender>", "Add a new user", cobra.ExactArgs(3),
			func(ctx context.Context, a *app, args []string) error {
				age, err := parseNumber(args[1])
				if err != nil {
					return err
				}
				return a.addUser(ctx, args[0], age, args[2])
			}),
		rt.storeCmd("show <user-id>", "Show a single user", cobra.ExactArgs(1),
			func(ctx context.Context, a *app, args []string) error {
				id, err := parseNumber(args[0])
				if err != nil {
					return err
				}
				return a.showUser(ctx, id)
			}),
	)
	return cmd
}

func (rt *runtime) bookCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "book", Short: "Manage book titles"}
	cmd.AddCommand(rt.storeCmd("rename <old-title> <new-title>", "Rename a book in every reading habit", cobra.ExactArgs(2),
		func(ctx context.Context, a *app, args []string) error {
			return a.renameBook(ctx, args[0], args[1])
		}))
	return cmd
}

func (rt *runtime) habitCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "habit", Short: "Manage reading habit records"}
	cmd.AddCommand(rt.storeCmd("delete <habit-id>", "Delete a reading habit record", cobra.ExactArgs(1),
		func(ctx context.Context, a *app, args []string) error {
			id, err := parseNumber(args[0])
			if err != nil {
				return err
			}
			return a.deleteHabit(ctx, id)
		}))
	return cmd
}

func (rt *runtime) reportCmd() *cobra.Command {
	noArgs := func(fn func(a *app, ctx context.Context) error) func(context.Context, *app, []string) error {
		return func(ctx context.Context, a *app, _ []string) error { return fn(a, ctx) }
	}
	cmd := &cobra.Command{Use: "report", Short: "Aggregate reports"}
	cmd.AddCommand(
		rt.storeCmd("mean-age", "Mean age of all users", cobra.NoArgs, noArgs((*app).meanAge)),
		rt.storeCmd("book-readers <title>", "Number of users who read a book", cobra.MinimumNArgs(1),
			func(ctx context.Context, a *app, args []string) error {
				return a.bookReaders(ctx, strings.Join(args, " "))
			}),
		rt.storeCmd("total-pages", "Total pages read by all users", cobra.NoArgs, noArgs((*app).totalPages)),
		rt.storeCmd("multi-book", "Number of users who read more than one book", cobra.NoArgs, noArgs((*app).multiBookReaders)),
		rt.storeCmd("structure", "Dump users, book statistics and a summary", cobra.NoArgs, noArgs((*app).structure)),
	)
	return cmd
}

func (rt *runtime) backupCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "backup",
		Short: "Copy the database file to a timestamped backup",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			path, err := db.Backup(rt.cfg.DBPath, rt.cfg.MaxBackups, rt.log)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Database backed up to %s\n", path)
			return nil
		},
	}
	cmd.Flags().Int(config.KeyMaxBackups, config.DefaultMaxBackups, "Maximum number of backups to retain")
	return cmd
}
