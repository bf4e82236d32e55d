// Package controller implements the experiment control plane: a
// single-writer state machine that owns the mutable grid handle, tracks the
// active experiment's lifecycle, and enforces the blast-radius guardrail.
package controller

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/gridsentry/gridchaos/internal/logging"
	"github.com/gridsentry/gridchaos/powergrid"
)

var (
	// ErrExperimentActive indicates a new experiment cannot begin while
	// another is active.
	ErrExperimentActive = errors.New("an experiment is already active; end it before starting a new one")
	// ErrInvalidExecutionMode indicates an unrecognized execution mode.
	ErrInvalidExecutionMode = errors.New("invalid execution mode")
	// ErrInvalidLossThreshold indicates a guardrail threshold outside [0,1].
	ErrInvalidLossThreshold = errors.New("max load loss must be within [0,1]")
)

// Engine is the simulation collaborator. Build constructs a fresh baseline
// network; Solve computes a snapshot from the given handle without taking
// ownership of it. Divergence is reported inside the Snapshot, never as an
// error.
type Engine interface {
	Build() *powergrid.Grid
	Solve(*powergrid.Grid) powergrid.Snapshot
}

// MetricsRecorder receives controller-level measurements. Implementations
// must be non-blocking; they are invoked while the controller lock is held.
type MetricsRecorder interface {
	ObserveSolve(snap powergrid.Snapshot)
	RecordGridRebuild(source string)
	RecordBlastRadiusTrip()
}

// MutationFunc mutates a grid handle in place. It either fully succeeds or
// leaves the grid as before the call. Implementations must not retain the
// handle past return and must not block indefinitely; the controller invokes
// them under its exclusive lock.
type MutationFunc func(*powergrid.Grid) error

// GridController serializes every operation that touches shared network
// state behind one exclusive lock. There is no separate read path: even a
// status read may need to perform containment, which is a write. Concurrent
// callers serialize entirely behind whichever operation holds the lock,
// including a slow solve. That is deliberate: no caller ever observes a torn
// intermediate grid.
type GridController struct {
	mu sync.Mutex

	engine Engine
	grid   *powergrid.Grid

	active       *Experiment
	lineageID    string
	lastMutation MutationSource

	defaultMaxLoss float64
	log            logging.Logger
	metrics        MetricsRecorder
}

// Option customises GridController construction.
type Option func(*GridController)

// WithMetricsRecorder attaches an optional metrics recorder.
func WithMetricsRecorder(m MetricsRecorder) Option {
	return func(c *GridController) {
		c.metrics = m
	}
}

// WithDefaultMaxLoadLoss overrides the guardrail threshold used when an
// experiment does not specify one.
func WithDefaultMaxLoadLoss(pct float64) Option {
	return func(c *GridController) {
		if pct > 0 && pct <= 1 {
			c.defaultMaxLoss = pct
		}
	}
}

// New builds a controller owning a freshly built baseline grid.
func New(engine Engine, log logging.Logger, opts ...Option) *GridController {
	if log == nil {
		log = logging.Noop()
	}
	c := &GridController{
		engine:         engine,
		grid:           engine.Build(),
		lineageID:      uuid.NewString(),
		lastMutation:   SourceInit,
		defaultMaxLoss: DefaultMaxLoadLossPct,
		log:            log,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}
	return c
}

// Reset unconditionally replaces the grid with a fresh baseline, generates a
// new lineage id, and discards any experiment record. It always succeeds.
func (c *GridController) Reset(ctx context.Context) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.rebuildLocked(SourceReset)
	c.active = nil
	c.log.Info(ctx, "grid reset to baseline", logging.String("lineage_id", c.lineageID))
}

// BeginParams carries the inputs to BeginExperiment.
type BeginParams struct {
	Scenario       string
	Notes          string
	Mode           ExecutionMode
	MaxLoadLossPct float64
}

// BeginExperiment creates a new experiment in phase baseline and installs it
// as the sole active experiment. It fails with ErrExperimentActive while
// another experiment is active and with a validation error for an
// unrecognized mode or an out-of-range threshold. A zero threshold selects
// the configured default.
func (c *GridController) BeginExperiment(ctx context.Context, p BeginParams) (Experiment, error) {
	if p.Mode != ModeSandbox && p.Mode != ModeGuardrailed {
		return Experiment{}, fmt.Errorf("%w: %q", ErrInvalidExecutionMode, p.Mode)
	}
	maxLoss := p.MaxLoadLossPct
	if maxLoss == 0 {
		maxLoss = c.defaultMaxLoss
	}
	if maxLoss < 0 || maxLoss > 1 {
		return Experiment{}, fmt.Errorf("%w: %v", ErrInvalidLossThreshold, p.MaxLoadLossPct)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.active != nil && c.active.Status == StatusActive {
		return Experiment{}, ErrExperimentActive
	}

	exp := &Experiment{
		ID:             uuid.NewString(),
		Scenario:       p.Scenario,
		Phase:          PhaseBaseline,
		Status:         StatusActive,
		ExecutionMode:  p.Mode,
		MaxLoadLossPct: maxLoss,
		Notes:          p.Notes,
		StartedAt:      time.Now().UTC(),
	}
	c.active = exp
	c.lastMutation = SourceScenario

	c.log.Info(ctx, "experiment started",
		logging.String("experiment_id", exp.ID),
		logging.String("scenario", exp.Scenario),
		logging.String("execution_mode", string(exp.ExecutionMode)),
		logging.Float64("max_load_loss_pct", exp.MaxLoadLossPct),
	)
	return *exp, nil
}

// SetPhase overwrites the active experiment's phase. It is a no-op when no
// experiment is active; any caller-declared phase is accepted.
func (c *GridController) SetPhase(ctx context.Context, phase Phase) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.active == nil || c.active.Status != StatusActive {
		return
	}
	c.active.Phase = phase
}

// EndExperiment ends the active experiment, moving it to the recovery phase.
// It is a no-op when none is active and never touches the grid.
func (c *GridController) EndExperiment(ctx context.Context) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.active == nil || c.active.Status != StatusActive {
		return
	}
	c.active.Status = StatusEnded
	c.active.Phase = PhaseRecovery
	c.lastMutation = SourceEndExperiment
	c.log.Info(ctx, "experiment ended", logging.String("experiment_id", c.active.ID))
}

// Mutate applies fn to the grid under the exclusive lock, tagging the
// mutation source on success. A failure from fn propagates to the caller
// unchanged and leaves the controller's bookkeeping untouched; fn guarantees
// the grid itself is unmodified on failure. This is the sole path by which
// scenario and manual fault injections reach the network.
func (c *GridController) Mutate(ctx context.Context, source MutationSource, fn MutationFunc) error {
	if fn == nil {
		return nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if err := fn(c.grid); err != nil {
		return err
	}
	c.lastMutation = source
	c.log.Debug(ctx, "grid mutated", logging.String("source", string(source)))
	return nil
}

// Context derives the read-only correlation projection for the current
// state.
func (c *GridController) Context() Context {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.contextLocked()
}

// contextLocked is the lock-free derivation used by operations that already
// hold the lock. It must not mutate state.
func (c *GridController) contextLocked() Context {
	if c.active == nil {
		return Context{
			ExperimentID:   "none",
			Scenario:       "none",
			Phase:          PhaseBaseline,
			LineageID:      c.lineageID,
			MutationSource: c.lastMutation,
		}
	}
	return Context{
		ExperimentID:   c.active.ID,
		Scenario:       c.active.Scenario,
		Phase:          c.active.Phase,
		LineageID:      c.lineageID,
		MutationSource: c.lastMutation,
	}
}

// rebuildLocked replaces the grid wholesale and regenerates the lineage id.
// Callers must hold the lock.
func (c *GridController) rebuildLocked(source MutationSource) {
	c.grid = c.engine.Build()
	c.lineageID = uuid.NewString()
	c.lastMutation = source
	if c.metrics != nil {
		c.metrics.RecordGridRebuild(string(source))
	}
}
