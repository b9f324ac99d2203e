package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/roach88/changeset/internal/changeset"
	"github.com/roach88/changeset/internal/logging"
	"github.com/roach88/changeset/internal/model"
	"github.com/roach88/changeset/internal/retry"
	"github.com/roach88/changeset/internal/store"
	"github.com/roach88/changeset/internal/tracker"
)

// ApplyOptions holds flags for the apply command.
type ApplyOptions struct {
	*RootOptions
	DryRun bool
}

// FailedDelete is one delete that did not go through.
type FailedDelete struct {
	Identity string `json:"identity"`
	Error    string `json:"error"`
}

// FileReport is the outcome of applying one changeset file.
type FileReport struct {
	File             string         `json:"file"`
	Table            string         `json:"table"`
	CycleID          string         `json:"cycle_id,omitempty"`
	Status           string         `json:"status"`
	Attempts         int            `json:"attempts,omitempty"`
	Staged           tracker.Counts `json:"staged"`
	Merged           int            `json:"merged"`
	DeletesAttempted int            `json:"deletes_attempted"`
	DeletesConfirmed int            `json:"deletes_confirmed"`
	DeletesFailed    int            `json:"deletes_failed"`
	FailedDeletes    []FailedDelete `json:"failed_deletes,omitempty"`
	Rows             *int64         `json:"rows,omitempty"`
	ElapsedMS        int64          `json:"elapsed_ms"`
	Error            string         `json:"error,omitempty"`
}

// ApplyReport is the outcome of an apply run.
type ApplyReport struct {
	DryRun     bool         `json:"dry_run,omitempty"`
	Files      []FileReport `json:"files"`
	Committed  int          `json:"committed"`
	RolledBack int          `json:"rolled_back"`
}

// statusDryRun marks files that were staged but not applied.
const statusDryRun = "dry_run"

func newApplyCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ApplyOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "apply <file>...",
		Short: "Apply changeset files to the database",
		Long: `Apply changeset files to the configured database, one transaction per file.

All files are validated before anything is written. Files are then applied
in the order given. A file whose cycle rolls back is staged again and
retried according to the retry settings.

Example:
  changeset apply widgets.yaml
  changeset apply --database-dsn ./app.db --format json a.yaml b.yaml
  changeset apply --dry-run widgets.yaml`,
		Args:          cobra.MinimumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runApply(opts, args, cmd)
		},
	}

	cmd.Flags().BoolVar(&opts.DryRun, "dry-run", false, "validate and stage only; do not touch the database")

	return cmd
}

func runApply(opts *ApplyOptions, paths []string, cmd *cobra.Command) error {
	f := opts.formatter(cmd)

	e, err := opts.load(cmd, f)
	if err != nil {
		return err
	}
	defer e.Close()

	sets, validation := loadChangesets(paths)
	if !validation.Valid {
		return outputValidationErrors(f, validation)
	}
	warnRepeats(e.logger, sets)

	if opts.DryRun {
		return outputApplyReport(f, dryRun(sets, e.logger))
	}

	ctx, stop := signal.NotifyContext(commandContext(cmd), os.Interrupt, syscall.SIGTERM)
	defer stop()

	e.logger.Info("opening database", "driver", e.cfg.Database.Driver, "dsn", e.cfg.Database.DSN)
	st, err := store.Open(ctx, e.cfg.StoreConfig())
	if err != nil {
		return f.commandError(ErrCodeDatabase, "failed to open database", err)
	}
	defer func() {
		if closeErr := st.Close(); closeErr != nil {
			e.logger.Error("error closing database", "error", closeErr)
		}
	}()

	applierOpts := []tracker.Option{tracker.WithLogger(e.logger)}
	if opts.CycleIDs != nil {
		applierOpts = append(applierOpts, tracker.WithCycleIDs(opts.CycleIDs))
	}
	if opts.Clock != nil {
		applierOpts = append(applierOpts, tracker.WithClock(opts.Clock))
	}
	a := &fileApplier{
		store:   st,
		applier: tracker.NewBulkApplier[model.Row](applierOpts...),
		policy:  e.cfg.RetryPolicy(),
		logger:  e.logger,
	}

	report := ApplyReport{Files: make([]FileReport, 0, len(sets))}
	for _, cs := range sets {
		fr := a.apply(ctx, cs)
		if fr.Status == string(tracker.StatusCommitted) {
			report.Committed++
		} else {
			report.RolledBack++
		}
		report.Files = append(report.Files, fr)
	}
	return outputApplyReport(f, report)
}

// fileApplier applies whole changeset files with retry.
type fileApplier struct {
	store   *store.Store
	applier *tracker.BulkApplier[model.Row]
	policy  retry.Policy
	logger  *slog.Logger
}

func (a *fileApplier) apply(ctx context.Context, cs *changeset.Changeset) FileReport {
	logger := a.logger.With("file", cs.Path, "table", cs.Table)
	defer logging.Timer(logger, "apply "+cs.Path)()

	buf := tracker.NewStagingBuffer[model.Row]()
	var (
		res      tracker.ApplyResult
		attempts int
	)
	err := retry.Do(ctx, a.policy, logger, "apply "+cs.Path, func(ctx context.Context) error {
		attempts++
		buf.ClearPending()
		cs.Stage(buf)
		res = a.applier.Apply(store.NewSession(ctx, a.store, cs.Schema(), logger), buf)
		switch {
		case res.Committed():
			return nil
		case retriable(res.Err):
			return retry.Retryable(res.Err)
		default:
			return res.Err
		}
	})

	fr := FileReport{
		File:             cs.Path,
		Table:            cs.Table,
		CycleID:          res.CycleID,
		Status:           string(res.Status),
		Attempts:         attempts,
		Staged:           res.Staged,
		Merged:           res.Merged,
		DeletesAttempted: res.DeletesAttempted,
		DeletesConfirmed: res.DeletesConfirmed,
		DeletesFailed:    res.DeletesFailed,
		ElapsedMS:        res.Elapsed.Milliseconds(),
	}
	for _, d := range res.FailedDeletes() {
		fr.FailedDeletes = append(fr.FailedDeletes, FailedDelete{Identity: d.Identity, Error: d.Err.Error()})
	}
	if err != nil {
		if fr.Status == "" {
			fr.Status = string(tracker.StatusRolledBack)
		}
		fr.Error = err.Error()
		return fr
	}

	if n, countErr := a.store.Count(ctx, cs.Schema().Table); countErr == nil {
		fr.Rows = &n
	} else {
		logger.Warn("row count failed", "error", countErr)
	}
	return fr
}

// retriable reports whether a rolled-back cycle may commit when run again:
// commit failures and lock contention qualify, constraint or schema errors
// do not.
func retriable(err error) bool {
	return tracker.IsCommitFailure(err) || store.IsTransient(err)
}

// warnRepeats logs rows that reuse a key within one section. They are
// staged in file order, so the later row's values win.
func warnRepeats(logger *slog.Logger, sets []*changeset.Changeset) {
	for _, cs := range sets {
		for _, r := range cs.Repeats() {
			logger.Warn("repeated row key", "file", cs.Path, "row", r.String())
		}
	}
}

func dryRun(sets []*changeset.Changeset, logger *slog.Logger) ApplyReport {
	report := ApplyReport{DryRun: true, Files: make([]FileReport, 0, len(sets))}
	for _, cs := range sets {
		buf := tracker.NewStagingBuffer[model.Row]()
		cs.Stage(buf)
		staged := buf.PendingCounts()
		logger.Info("staged", "file", cs.Path, "table", cs.Table, "pending", staged.String())
		report.Files = append(report.Files, FileReport{
			File:   cs.Path,
			Table:  cs.Table,
			Status: statusDryRun,
			Staged: staged,
		})
	}
	return report
}

func outputApplyReport(f *OutputFormatter, report ApplyReport) error {
	var failure error
	if report.RolledBack > 0 {
		failure = NewExitError(ExitFailure,
			fmt.Sprintf("%d of %d changeset(s) rolled back", report.RolledBack, len(report.Files)))
	}

	if f.JSON() {
		if failure != nil {
			if err := f.Failure(ErrCodeRolledBack, failure.Error(), report); err != nil {
				return err
			}
			return failure
		}
		if err := f.Success(report); err != nil {
			return err
		}
		return nil
	}

	writeApplyText(f.Writer, report)
	return failure
}

func writeApplyText(w io.Writer, report ApplyReport) {
	for _, fr := range report.Files {
		switch fr.Status {
		case statusDryRun:
			fmt.Fprintf(w, "• %s: %s %s (dry run)\n", fr.File, fr.Table, fr.Staged)
			continue
		case string(tracker.StatusCommitted):
			fmt.Fprintf(w, "✓ %s: committed (cycle %s, attempts %d)\n", fr.File, fr.CycleID, fr.Attempts)
		default:
			fmt.Fprintf(w, "✗ %s: rolled back (cycle %s, attempts %d)\n", fr.File, fr.CycleID, fr.Attempts)
		}

		fmt.Fprintf(w, "  merged %d, deleted %d of %d", fr.Merged, fr.DeletesConfirmed, fr.DeletesAttempted)
		if fr.Rows != nil {
			fmt.Fprintf(w, ", %s now has %d row(s)", fr.Table, *fr.Rows)
		}
		fmt.Fprintln(w)
		for _, d := range fr.FailedDeletes {
			fmt.Fprintf(w, "  ✗ %s: %s\n", d.Identity, d.Error)
		}
		if fr.Error != "" {
			fmt.Fprintf(w, "  error: %s\n", fr.Error)
		}
	}

	if !report.DryRun {
		fmt.Fprintf(w, "%d committed, %d rolled back\n", report.Committed, report.RolledBack)
	}
}
