package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"booktracker/config"
	"booktracker/db"
	"booktracker/logging"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func main() {
	if err := config.LoadDotEnv(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := execute(ctx, os.Stdin, os.Stdout, os.Stderr, os.Args[1:])
	stop()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", message(err))
		os.Exit(1)
	}
}

// execute runs one command line and releases the database and log sinks it
// opened, whatever the outcome.
func execute(ctx context.Context, in io.Reader, out, errOut io.Writer, args []string) error {
	rt := &runtime{v: viper.New()}
	defer rt.shutdown()

	root := newRootCmd(rt)
	root.SetIn(in)
	root.SetOut(out)
	root.SetErr(errOut)
	root.SetArgs(args)
	return root.ExecuteContext(ctx)
}

// runtime carries what the persistent pre-run resolves for the command
// being executed.
type runtime struct {
	v        *viper.Viper
	cfg      *config.Config
	log      *zap.SugaredLogger
	closeLog func()
	gdb      *gorm.DB
}

func (rt *runtime) setup(cmd *cobra.Command, _ []string) error {
	if err := rt.v.BindPFlags(cmd.Flags()); err != nil {
		return fmt.Errorf("failed to bind flags: %w", err)
	}
	cfg, err := config.Load(rt.v)
	if err != nil {
		return err
	}
	opts := cfg.LogOptions()
	opts.Console = cmd.ErrOrStderr()
	log, closeLog, err := logging.New(opts)
	if err != nil {
		return err
	}
	rt.cfg, rt.log, rt.closeLog = cfg, log, closeLog
	return nil
}

// open connects to the configured database and makes sure the schema exists.
// With autoImport set an empty database is seeded first; an import failure is
// logged and the command carries on with whatever data is present.
func (rt *runtime) open(cmd *cobra.Command, autoImport bool) (*app, error) {
	ctx := cmd.Context()
	gdb, err := db.Open(rt.cfg.DBPath, rt.log)
	if err != nil {
		return nil, err
	}
	rt.gdb = gdb
	if err := db.EnsureSchema(ctx, gdb, rt.log); err != nil {
		return nil, err
	}

	if autoImport {
		if _, err := db.NewImporter(gdb, rt.log).Import(ctx, rt.cfg.ImportSource()); err != nil {
			rt.log.Errorw("import failed, continuing with existing data", "error", err)
		}
	}
	return &app{store: db.NewSQLStore(gdb, rt.log), out: cmd.OutOrStdout()}, nil
}

func (rt *runtime) shutdown() {
	if rt.gdb != nil {
		if err := db.Close(rt.gdb); err != nil && rt.log != nil {
			rt.log.Warnw("failed to close database", "error", err)
		}
		rt.gdb = nil
	}
	if rt.closeLog != nil {
		rt.closeLog()
		rt.closeLog = nil
	}
}
