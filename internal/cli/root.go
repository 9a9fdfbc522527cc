package cli

import (
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/contract/internal/config"
	"github.com/roach88/contract/internal/store"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Verbose    bool
	Format     string // "json" | "text"
	Owner      string
	Database   string
	ConfigPath string

	// Config is the resolved configuration: file values with explicit flags
	// applied on top. Set before any subcommand runs.
	Config config.Config

	// Now and RunID override the clock and migration run ids (for testing).
	// Nil means wall clock and UUIDv7.
	Now   func() time.Time
	RunID func() string
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the root command for the contract CLI.
func NewRootCommand() *cobra.Command {
	return newRootCommand(&RootOptions{})
}

func newRootCommand(opts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "contract",
		Short: "Single-owner ledger with tracked migrations",
		Long: `contract keeps a balance per owner in a SQLite database, logs every
deposit and withdrawal, and applies ordered, tracked schema and data
migrations.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			// Validate format flag
			if !isValidFormat(opts.Format) {
				return WrapExitError(ExitCommandError, "invalid flags",
					fmt.Errorf("invalid format %q: must be one of %v", opts.Format, ValidFormats))
			}
			return resolveConfig(opts, cmd)
		},
	}

	// Global flags
	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")
	cmd.PersistentFlags().StringVar(&opts.Owner, "owner", config.DefaultOwner, "account owner")
	cmd.PersistentFlags().StringVar(&opts.Database, "db", config.DefaultDatabase, "path to SQLite database")
	cmd.PersistentFlags().StringVar(&opts.ConfigPath, "config", "", "path to YAML config file")

	cmd.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return WrapExitError(ExitCommandError, "invalid flags", err)
	})

	// Add subcommands
	cmd.AddCommand(NewStatusCommand(opts))
	cmd.AddCommand(NewDepositCommand(opts))
	cmd.AddCommand(NewWithdrawCommand(opts))
	cmd.AddCommand(NewHistoryCommand(opts))
	cmd.AddCommand(NewMigrateCommand(opts))

	return cmd
}

// resolveConfig loads --config (if given) and lets explicitly set flags win.
func resolveConfig(opts *RootOptions, cmd *cobra.Command) error {
	cfg := config.Default()
	if opts.ConfigPath != "" {
		loaded, err := config.Load(opts.ConfigPath)
		if err != nil {
			formatter := newFormatter(opts, cmd)
			return reportError(formatter, ExitCommandError, ErrCodeConfig, "cannot load config", err)
		}
		cfg = loaded
	}

	flags := cmd.Flags()
	if flags.Changed("owner") {
		cfg.Owner = opts.Owner
	}
	if flags.Changed("db") {
		cfg.Database = opts.Database
	}
	opts.Owner = cfg.Owner
	opts.Database = cfg.Database
	opts.Config = cfg
	return nil
}

// isValidFormat checks if the format is one of the allowed values.
func isValidFormat(format string) bool {
	for _, f := range ValidFormats {
		if f == format {
			return true
		}
	}
	return false
}

// newLogger builds the structured logger for a command run: text records on
// w, Debug level with --verbose and Info otherwise.
func newLogger(w io.Writer, verbose bool) *slog.Logger {
	logLevel := slog.LevelInfo
	if verbose {
		logLevel = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: logLevel}))
}

func newFormatter(opts *RootOptions, cmd *cobra.Command) *OutputFormatter {
	return &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(), // Logs go to stderr to avoid corrupting JSON
		Verbose:   opts.Verbose,
	}
}

// session is the per-command state shared by every subcommand that touches
// the database.
type session struct {
	opts   *RootOptions
	st     *store.Store
	out    *OutputFormatter
	logger *slog.Logger
}

func openSession(opts *RootOptions, cmd *cobra.Command) (*session, error) {
	formatter := newFormatter(opts, cmd)
	logger := newLogger(formatter.GetErrWriter(), opts.Verbose)

	logger.Debug("opening database", "path", opts.Database)
	st, err := store.Open(opts.Database)
	if err != nil {
		return nil, reportError(formatter, ExitFailure, ErrCodeDatabase, "cannot open database", err)
	}

	return &session{opts: opts, st: st, out: formatter, logger: logger}, nil
}

func (s *session) now() func() time.Time {
	if s.opts.Now != nil {
		return s.opts.Now
	}
	return time.Now
}

func (s *session) Close() {
	if err := s.st.Close(); err != nil {
		s.logger.Error("error closing database", "error", err)
	}
}
