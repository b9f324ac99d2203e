package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"slices"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/changeset/internal/config"
	"github.com/roach88/changeset/internal/logging"
	"github.com/roach88/changeset/internal/tracker"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Verbose    bool
	Format     string // "json" | "text"
	ConfigFile string

	// CycleIDs overrides the apply-cycle id generator (for testing).
	// If nil, defaults to tracker.UUIDv7Generator.
	CycleIDs tracker.CycleIDGenerator

	// Clock overrides the applier clock (for testing).
	Clock func() time.Time
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the root command for the changeset CLI.
func NewRootCommand() *cobra.Command {
	return newRootCommand(&RootOptions{})
}

func newRootCommand(opts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "changeset",
		Short: "Stage and apply row changesets",
		Long: `Apply inserts, updates and deletes described in YAML changeset files
to a SQL database.

Inserts and updates of one file are merged in a single transaction; a
failing merge rolls the whole file back. Deletes are attempted one by one
and a failing delete is reported without affecting the others.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !slices.Contains(ValidFormats, opts.Format) {
				return NewExitError(ExitCommandError,
					fmt.Sprintf("invalid format %q: must be one of %v", opts.Format, ValidFormats))
			}
			return nil
		},
	}

	// Global flags
	pf := cmd.PersistentFlags()
	pf.BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output (debug logging)")
	pf.StringVar(&opts.Format, "format", "text", "output format (json|text)")
	pf.StringVarP(&opts.ConfigFile, "config", "c", "", "config file (default ./"+config.DefaultFile+" if present)")

	// Config overrides; names map onto config keys (database-dsn -> database.dsn).
	pf.String("database-driver", "", "database driver (sqlite3|sqlite|pgx)")
	pf.String("database-dsn", "", "database file or connection string")
	pf.String("log-level", "", "log level (debug|info|warn|error)")
	pf.String("log-file", "", "also write debug logs to this file")
	pf.Int("retry-attempts", 0, "apply attempts per changeset, including the first")
	pf.Duration("retry-delay", 0, "wait after the first rolled-back attempt")

	cmd.AddCommand(newApplyCommand(opts))
	cmd.AddCommand(newValidateCommand(opts))
	cmd.AddCommand(newConfigCommand(opts))

	return cmd
}

// env is what a command needs once configuration is loaded.
type env struct {
	cfg    *config.Config
	logger *slog.Logger
	closer io.Closer
}

func (e *env) Close() {
	if e.closer != nil {
		_ = e.closer.Close()
	}
}

// load reads the configuration and builds the logger. Logs go to the
// command's stderr so JSON on stdout stays clean.
func (o *RootOptions) load(cmd *cobra.Command, f *OutputFormatter) (*env, error) {
	cfg, err := config.Load(o.ConfigFile, cmd.Flags())
	if err != nil {
		return nil, f.commandError(ErrCodeConfig, "failed to load config", err)
	}
	if o.Verbose {
		cfg.Log.Level = "debug"
	}

	lo := cfg.LogOptions()
	lo.Writer = cmd.ErrOrStderr()
	logger, closer, err := logging.New(lo)
	if err != nil {
		return nil, f.commandError(ErrCodeConfig, "failed to set up logging", err)
	}
	return &env{cfg: cfg, logger: logger, closer: closer}, nil
}

func (o *RootOptions) formatter(cmd *cobra.Command) *OutputFormatter {
	return &OutputFormatter{Format: o.Format, Writer: cmd.OutOrStdout()}
}

func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
