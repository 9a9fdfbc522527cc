package cli

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/contract/internal/migrate"
	"github.com/roach88/contract/internal/model"
)

// MigrateOptions holds flags for the migrate command and its subcommands.
type MigrateOptions struct {
	*RootOptions
	Filenames []string
	Manifest  string
}

// ResetResult is the JSON payload of migrate reset.
type ResetResult struct {
	Units   []string `json:"units"`
	Deleted int      `json:"deleted"`
}

// NewMigrateCommand creates the migrate command.
func NewMigrateCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &MigrateOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending migrations",
		Long: `Apply pending migration units in manifest order.

Units already recorded in the migrations table (whatever their status) are
not attempted again; use "migrate reset" to allow a retry. A failing unit is
recorded and the remaining units still run.

The command exits 1 if any unit failed, after the full report is printed.
This holds even though a unit failure is isolated and the run itself
completes; exit 0 means every attempted unit succeeded or was skipped.

Without --manifest the built-in manifest is used.

Example:
  contract migrate
  contract migrate --filename 20240414_002_data_transform
  contract migrate --manifest ./migrations/manifest.cue`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMigrate(opts, cmd)
		},
	}

	cmd.PersistentFlags().StringVar(&opts.Manifest, "manifest", "", "migration manifest (.yaml or .cue)")
	cmd.Flags().StringSliceVar(&opts.Filenames, "filename", nil, "apply only these units (repeatable)")

	cmd.AddCommand(newMigrateResetCommand(opts))
	cmd.AddCommand(newMigrateListCommand(opts))

	return cmd
}

func newMigrateResetCommand(opts *MigrateOptions) *cobra.Command {
	var filenames []string

	cmd := &cobra.Command{
		Use:   "reset",
		Short: "Forget recorded migration outcomes",
		Long: `Delete the tracking rows of the named units so the next "migrate"
attempts them again. Schema and data changes are not reverted.

Example:
  contract migrate reset --filename 20240414_002_data_transform`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(filenames) == 0 {
				return reportError(newFormatter(opts.RootOptions, cmd), ExitCommandError, ErrCodeFlags,
					"--filename is required", nil)
			}
			return runMigrateReset(opts, filenames, cmd)
		},
	}

	cmd.Flags().StringSliceVar(&filenames, "filename", nil, "units to reset (repeatable, required)")

	return cmd
}

func newMigrateListCommand(opts *MigrateOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "list",
		Short:         "List recorded migration outcomes",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMigrateList(opts, cmd)
		},
	}
}

// loadManifest picks --manifest, then the config file's manifest, then the
// built-in one.
func loadManifest(opts *MigrateOptions) (*migrate.Manifest, string, error) {
	path := opts.Manifest
	if path == "" {
		path = opts.Config.Manifest
	}
	if path == "" {
		m, err := migrate.BuiltinManifest()
		return m, "built-in", err
	}
	m, err := migrate.LoadManifestFile(path)
	return m, path, err
}

func newEngine(opts *MigrateOptions, s *session, m *migrate.Manifest) *migrate.Engine {
	engineOpts := []migrate.Option{
		migrate.WithClock(s.now()),
		migrate.WithLogger(s.logger),
	}
	if opts.RunID != nil {
		engineOpts = append(engineOpts, migrate.WithRunID(opts.RunID))
	}
	return migrate.NewEngine(s.st, m, migrate.DefaultRegistry(s.logger, s.now()), engineOpts...)
}

func runMigrate(opts *MigrateOptions, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd)
	m, source, err := loadManifest(opts)
	if err != nil {
		return reportError(formatter, ExitCommandError, ErrCodeManifest, "cannot load manifest", err)
	}

	s, err := openSession(opts.RootOptions, cmd)
	if err != nil {
		return err
	}
	defer s.Close()
	s.logger.Debug("manifest loaded", "source", source, "units", len(m.Units))

	eng := newEngine(opts, s, m)
	ctx := commandContext(cmd)

	var report migrate.Report
	if len(opts.Filenames) > 0 {
		report, err = eng.ApplyNamed(ctx, opts.Filenames...)
	} else {
		report, err = eng.Apply(ctx)
	}
	if errors.Is(err, migrate.ErrUnknownUnit) {
		return reportError(s.out, ExitCommandError, ErrCodeUnknownUnit, "unknown migration", err)
	}
	if err != nil {
		return reportError(s.out, ExitFailure, ErrCodeTracking, "cannot record migrations", err)
	}

	if s.out.Format == "json" {
		if err := s.out.Success(report); err != nil {
			return err
		}
	} else {
		printReport(s.out, report)
	}

	if failed := report.Failed(); len(failed) > 0 {
		exitErr := NewExitError(ExitFailure, fmt.Sprintf("%s: %d migration unit(s) failed", ErrCodeUnitFailed, len(failed)))
		exitErr.Reported = true
		return exitErr
	}
	return nil
}

func printReport(f *OutputFormatter, report migrate.Report) {
	if len(report.Results) == 0 {
		fmt.Fprintln(f.Writer, "no migration units")
		return
	}
	for _, res := range report.Results {
		switch {
		case res.AlreadyApplied:
			fmt.Fprintf(f.Writer, "- %s (already %s)\n", res.Unit, res.Status)
		case res.Status == model.MigrationSuccess:
			f.Line(levelOK, "✓ %s (%dms)", res.Unit, res.DurationMS)
		case res.Status == model.MigrationSkipped:
			f.Line(levelWarn, "~ %s skipped: unsupported kind %q", res.Unit, res.Kind)
		default:
			f.Line(levelFail, "✗ %s: %s", res.Unit, res.Error)
		}
	}
	fmt.Fprintf(f.Writer, "applied %d, skipped %d, failed %d\n",
		report.Count(model.MigrationSuccess),
		report.Count(model.MigrationSkipped),
		report.Count(model.MigrationFailed))
}

func runMigrateReset(opts *MigrateOptions, filenames []string, cmd *cobra.Command) error {
	s, err := openSession(opts.RootOptions, cmd)
	if err != nil {
		return err
	}
	defer s.Close()

	// Reset works on tracking rows only, so no manifest is needed.
	eng := newEngine(opts, s, &migrate.Manifest{})
	n, err := eng.Reset(commandContext(cmd), filenames...)
	if err != nil {
		return reportError(s.out, ExitFailure, ErrCodeTracking, "cannot reset migrations", err)
	}

	if s.out.Format == "json" {
		return s.out.Success(ResetResult{Units: filenames, Deleted: n})
	}
	fmt.Fprintf(s.out.Writer, "reset %d migration record(s)\n", n)
	return nil
}

func runMigrateList(opts *MigrateOptions, cmd *cobra.Command) error {
	s, err := openSession(opts.RootOptions, cmd)
	if err != nil {
		return err
	}
	defer s.Close()

	recs, err := newEngine(opts, s, &migrate.Manifest{}).Records(commandContext(cmd))
	if err != nil {
		return reportError(s.out, ExitFailure, ErrCodeTracking, "cannot read migrations", err)
	}

	if s.out.Format == "json" {
		return s.out.Success(recs)
	}
	if len(recs) == 0 {
		fmt.Fprintln(s.out.Writer, "no recorded migrations")
		return nil
	}
	for _, rec := range recs {
		line := fmt.Sprintf("%-8s %s  %s  %dms", rec.Status, rec.AppliedAt.UTC().Format(time.RFC3339), rec.Filename, rec.Duration)
		if rec.Error != nil {
			line += "  " + *rec.Error
		}
		fmt.Fprintln(s.out.Writer, line)
	}
	return nil
}
