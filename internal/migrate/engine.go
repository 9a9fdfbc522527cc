package migrate

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/roach88/contract/internal/model"
	"github.com/roach88/contract/internal/store"
)

var (
	// ErrUnknownHandler means a native unit names a key missing from the registry.
	ErrUnknownHandler = errors.New("unknown handler")

	// ErrUnknownUnit means a requested unit name is not in the manifest.
	ErrUnknownUnit = errors.New("unknown migration unit")
)

// UnitError is the failure of a single unit. It is recorded and reported but
// never stops the remaining units.
type UnitError struct {
	Unit string
	Kind Kind
	Err  error
}

func (e *UnitError) Error() string {
	return fmt.Sprintf("migration %s (%s): %v", e.Unit, e.Kind, e.Err)
}

func (e *UnitError) Unwrap() error {
	return e.Err
}

// Result is the outcome of one unit in an apply run.
type Result struct {
	Unit           string                `json:"unit"`
	Kind           Kind                  `json:"kind"`
	Status         model.MigrationStatus `json:"status"`
	AlreadyApplied bool                  `json:"already_applied,omitempty"` // Row existed before this run
	DurationMS     int64                 `json:"duration_ms"`
	Error          string                `json:"error,omitempty"`
	Err            *UnitError            `json:"-"`
}

// Report summarizes an apply run.
type Report struct {
	RunID   string   `json:"run_id"`
	Results []Result `json:"results"`
}

// Failed returns the results of units that failed in this run.
func (r Report) Failed() []Result {
	var out []Result
	for _, res := range r.Results {
		if res.Err != nil {
			out = append(out, res)
		}
	}
	return out
}

// Count returns how many units attempted in this run ended with status.
func (r Report) Count(status model.MigrationStatus) int {
	n := 0
	for _, res := range r.Results {
		if !res.AlreadyApplied && res.Status == status {
			n++
		}
	}
	return n
}

// Engine applies manifest units against a store.
type Engine struct {
	st       *store.Store
	manifest *Manifest
	registry *Registry
	now      func() time.Time
	runID    func() string
	logger   *slog.Logger
}

// Option configures an Engine.
type Option func(*Engine)

// WithClock sets the clock used for applied_at and durations.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// WithRunID sets the run id generator. The default is UUIDv7.
func WithRunID(gen func() string) Option {
	return func(e *Engine) { e.runID = gen }
}

// WithLogger sets the logger. The default discards all output.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) { e.logger = logger }
}

// NewEngine creates an engine over the store for the given manifest.
func NewEngine(st *store.Store, manifest *Manifest, registry *Registry, opts ...Option) *Engine {
	e := &Engine{
		st:       st,
		manifest: manifest,
		registry: registry,
		now:      time.Now,
		runID:    func() string { return uuid.Must(uuid.NewV7()).String() },
		logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Manifest returns the engine's manifest.
func (e *Engine) Manifest() *Manifest { return e.manifest }

// Apply runs every pending unit in manifest order.
//
// Unit failures are recorded and reported in the Report. The returned error
// is non-nil only when the tracking table itself cannot be read or written.
func (e *Engine) Apply(ctx context.Context) (Report, error) {
	return e.run(ctx, e.manifest.Units)
}

// ApplyNamed runs only the named units, still in manifest order. Every name
// must appear in the manifest; otherwise nothing runs and the error wraps
// ErrUnknownUnit.
func (e *Engine) ApplyNamed(ctx context.Context, names ...string) (Report, error) {
	want := make(map[string]bool, len(names))
	for _, name := range names {
		if _, ok := e.manifest.Lookup(name); !ok {
			return Report{}, fmt.Errorf("%w: %s", ErrUnknownUnit, name)
		}
		want[name] = true
	}

	var units []Unit
	for _, u := range e.manifest.Units {
		if want[u.Name] {
			units = append(units, u)
		}
	}
	return e.run(ctx, units)
}

// Reset deletes the tracking rows for the named units so the next apply
// attempts them again. Effects of earlier runs are not reverted.
// Returns the number of rows deleted.
func (e *Engine) Reset(ctx context.Context, names ...string) (int, error) {
	n, err := e.st.DeleteMigrations(ctx, names...)
	if err != nil {
		return 0, err
	}
	e.logger.Info("migration tracking reset", "units", names, "deleted", n)
	return int(n), nil
}

// Records returns every tracking row.
func (e *Engine) Records(ctx context.Context) ([]model.MigrationRecord, error) {
	return e.st.ReadMigrations(ctx)
}

func (e *Engine) run(ctx context.Context, units []Unit) (Report, error) {
	report := Report{RunID: e.runID(), Results: []Result{}}
	logger := e.logger.With("run_id", report.RunID)

	for _, u := range units {
		existing, err := e.st.ReadMigration(ctx, u.Name)
		switch {
		case err == nil:
			logger.Debug("migration already recorded", "unit", u.Name, "status", existing.Status)
			report.Results = append(report.Results, Result{
				Unit:           u.Name,
				Kind:           u.Kind,
				Status:         existing.Status,
				AlreadyApplied: true,
			})
			continue
		case !errors.Is(err, store.ErrNotFound):
			return report, fmt.Errorf("apply migrations: %w", err)
		}

		res := e.applyUnit(ctx, u)

		rec := model.MigrationRecord{
			Filename:  u.Name,
			AppliedAt: res.startedAt,
			Status:    res.Status,
			Duration:  res.DurationMS,
			RunID:     report.RunID,
		}
		if res.Err != nil {
			msg := res.Err.Err.Error()
			rec.Error = &msg
			res.Error = msg
		}
		if err := e.st.WriteMigration(ctx, rec); err != nil {
			return report, fmt.Errorf("apply migrations: %w", err)
		}

		if res.Err != nil {
			logger.Error("migration failed", "unit", u.Name, "kind", u.Kind, "duration_ms", res.DurationMS, "error", res.Error)
		} else {
			logger.Info("migration recorded", "unit", u.Name, "kind", u.Kind, "status", res.Status, "duration_ms", res.DurationMS)
		}
		report.Results = append(report.Results, res.Result)
	}

	return report, nil
}

type unitRun struct {
	Result
	startedAt time.Time
}

// applyUnit executes one unit and reports its outcome. It never writes the
// tracking row.
func (e *Engine) applyUnit(ctx context.Context, u Unit) unitRun {
	start := e.now()
	run := unitRun{Result: Result{Unit: u.Name, Kind: u.Kind}, startedAt: start}

	var err error
	switch u.Kind {
	case KindScript:
		err = e.st.ExecScript(ctx, u.Script)
	case KindNative:
		h, ok := e.registry.Lookup(u.Handler)
		if !ok {
			err = fmt.Errorf("%w %q", ErrUnknownHandler, u.Handler)
			break
		}
		err = h(ctx, e.st)
	default:
		run.Status = model.MigrationSkipped
		run.DurationMS = e.now().Sub(start).Milliseconds()
		return run
	}

	run.DurationMS = e.now().Sub(start).Milliseconds()
	if err != nil {
		run.Status = model.MigrationFailed
		run.Err = &UnitError{Unit: u.Name, Kind: u.Kind, Err: err}
		return run
	}
	run.Status = model.MigrationSuccess
	return run
}
