package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/tinytelemetry/chanlog/internal/duckdb"
	"github.com/tinytelemetry/chanlog/internal/logging"
	"github.com/tinytelemetry/chanlog/internal/model"
	"github.com/tinytelemetry/chanlog/internal/timestamp"
)

// Build variables - set by ldflags during build.
var (
	version   = "dev"
	commit    = "unknown"
	buildTime = "unknown"
	goVersion = "unknown"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

// app carries state shared by every subcommand once flags and config are
// resolved.
type app struct {
	configPath string
	debug      bool

	cfg       appConfig
	loc       *time.Location
	diag      *slog.Logger
	closeDiag func()
}

func newRootCmd() *cobra.Command {
	a := &app{closeDiag: func() {}}

	root := &cobra.Command{
		Use:           "chanlog",
		Short:         "Channel logging with a DuckDB record store",
		Long:          "chanlog writes leveled log records per channel into an embedded DuckDB table and lets you list, inspect and purge them.",
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.init(cmd)
		},
		PersistentPostRun: func(*cobra.Command, []string) {
			a.closeDiag()
		},
	}

	pf := root.PersistentFlags()
	pf.StringVar(&a.configPath, "config", "", "config file (default is $HOME/.config/chanlog/config.yml)")
	pf.String("db-path", "", "DuckDB database file")
	pf.String("timezone", "", "repository timezone (default Etc/UTC)")
	pf.BoolVar(&a.debug, "debug", false, "print every record on the console and debug diagnostics")

	root.AddCommand(
		newInstallCmd(a),
		newListChannelsCmd(a),
		newListCmd(a),
		newGetCmd(a),
		newPurgeCmd(a),
		newLogCmd(a),
		newServeCmd(a),
		newBackupCmd(a),
		newPipeCmd(a),
		newVersionCmd(),
	)
	return root
}

func (a *app) init(cmd *cobra.Command) error {
	cfg, err := loadConfig(a.configPath, cmd.Flags())
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	if a.debug {
		cfg.consoleLevel = model.LevelDebug
		cfg.DiagnosticsLevel = "debug"
	}
	a.cfg = cfg
	a.loc = timestamp.LoadLocation(cfg.Timezone)

	w, closeFn, err := logging.Open(cfg.DiagnosticsPath, cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	a.closeDiag = closeFn
	a.diag = logging.New(w, cfg.DiagnosticsFormat, logging.ParseLevel(cfg.DiagnosticsLevel))
	return nil
}

// openStore opens the configured database. Callers close the store.
func (a *app) openStore() (*duckdb.Store, error) {
	store, err := duckdb.NewStore(a.cfg.DBPath, duckdb.StoreConfig{
		QueryTimeout: a.cfg.QueryTimeout,
		Location:     a.loc,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open DuckDB: %w", err)
	}
	return store, nil
}

// openReadyStore opens the database and brings the schema up to date.
func (a *app) openReadyStore(ctx context.Context) (*duckdb.Store, error) {
	store, err := a.openStore()
	if err != nil {
		return nil, err
	}
	if err := store.EnsureSchema(ctx); err != nil {
		store.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}
	return store, nil
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		// Runs without loading config.
		PersistentPreRunE: func(*cobra.Command, []string) error { return nil },
		Run: func(cmd *cobra.Command, _ []string) {
			printVersion(cmd.OutOrStdout())
		},
	}
}

func printVersion(w io.Writer) {
	fmt.Fprintf(w, "chanlog - Channel Log Store\n")
	fmt.Fprintf(w, "  Version:    %s\n", version)
	fmt.Fprintf(w, "  Commit:     %s\n", commit)
	fmt.Fprintf(w, "  Built:      %s\n", buildTime)
	fmt.Fprintf(w, "  Go version: %s\n", goVersion)
}
