package controller

import (
	"context"
	"fmt"
	"math"

	"github.com/gridsentry/gridchaos/internal/logging"
	"github.com/gridsentry/gridchaos/powergrid"
)

// StatusReport is the outcome of one status read: the solve result plus the
// experiment and guardrail state it was produced under. Divergence and
// containment are data here, never transport failures.
type StatusReport struct {
	Converged    bool    `json:"converged"`
	MinVoltagePu float64 `json:"min_voltage_pu"`
	TotalLoadMw  float64 `json:"total_load_mw"`
	GenerationMw float64 `json:"generation_mw"`
	SolveTimeMs  float64 `json:"solve_time_ms"`
	Error        string  `json:"error,omitempty"`

	// EstimatedLoadLossPct is attached only while a guardrailed experiment
	// is active; otherwise it is absent.
	EstimatedLoadLossPct *float64 `json:"estimated_load_loss_pct,omitempty"`

	BlastRadiusTriggered bool             `json:"blast_radius_triggered"`
	BlastRadiusReason    string           `json:"blast_radius_reason,omitempty"`
	ContainmentAction    string           `json:"containment_action,omitempty"`
	ExperimentStatus     ExperimentStatus `json:"experiment_status"`
	ExperimentPhase      Phase            `json:"experiment_phase"`
	Context              Context          `json:"context"`
}

// Status solves the grid and evaluates guardrail policy, entirely under the
// exclusive lock.
//
// In sandbox mode, or with no experiment, a diverged solve is simply
// reported: the operator is allowed to observe a genuine blackout. Under a
// guardrailed experiment any unsafe outcome - divergence, or estimated load
// loss at or beyond the experiment's threshold - trips the blast radius:
// the experiment is ended, the grid is rolled back to a fresh baseline, and
// the grid is re-solved once so the caller observes the contained,
// post-rollback state rather than a stale divergent one.
func (c *GridController) Status(ctx context.Context) StatusReport {
	c.mu.Lock()
	defer c.mu.Unlock()

	exp := c.active
	mode := ModeSandbox
	maxLoss := c.defaultMaxLoss
	guarded := exp != nil && exp.Status == StatusActive
	if guarded {
		mode = exp.ExecutionMode
		maxLoss = exp.MaxLoadLossPct
	}
	guarded = guarded && mode == ModeGuardrailed

	snap := c.solveLocked(ctx)

	if !snap.Converged {
		if !guarded {
			return c.reportLocked(snap, nil)
		}

		c.tripLocked(ctx, exp, fmt.Sprintf("power flow diverged during guardrailed experiment: %s", snap.Err))
		// Re-solve against the rolled-back grid so the caller never
		// observes a stale divergent result once containment has fired.
		// If the rollback somehow failed to restore a solvable grid the
		// divergence is reported with the post-rollback context instead.
		post := c.solveLocked(ctx)
		return c.reportLocked(post, nil)
	}

	loss := 0.0
	if snap.TotalLoadMw > 0 {
		loss = math.Max(0, (snap.TotalLoadMw-snap.GenerationMw)/snap.TotalLoadMw)
	}

	if !guarded {
		return c.reportLocked(snap, nil)
	}

	if loss >= maxLoss {
		c.tripLocked(ctx, exp, fmt.Sprintf(
			"estimated load loss %.1f%% breached guardrail threshold %.1f%%",
			loss*100, maxLoss*100,
		))
		post := c.solveLocked(ctx)
		// Post-rollback there is no active guardrailed experiment, so no
		// loss estimate is attached; the pre-rollback figure survives in
		// the blast radius reason.
		return c.reportLocked(post, nil)
	}

	return c.reportLocked(snap, &loss)
}

// solveLocked invokes the engine against the owned grid and records solver
// metrics. Callers must hold the lock.
func (c *GridController) solveLocked(ctx context.Context) powergrid.Snapshot {
	snap := c.engine.Solve(c.grid)
	if c.metrics != nil {
		c.metrics.ObserveSolve(snap)
	}
	if !snap.Converged {
		c.log.Warn(ctx, "power flow diverged",
			logging.String("reason", snap.Err),
			logging.String("lineage_id", c.lineageID),
		)
	}
	return snap
}

// tripLocked marks the blast radius on the experiment and performs
// containment: the record is ended (but survives for audit), the grid is
// replaced with a fresh baseline, and the lineage id is regenerated.
// Callers must hold the lock.
func (c *GridController) tripLocked(ctx context.Context, exp *Experiment, reason string) {
	exp.BlastRadiusTriggered = true
	exp.BlastRadiusReason = reason
	exp.ContainmentAction = ContainmentAutoAbortRollback
	exp.Status = StatusEnded
	exp.Phase = PhaseRecovery

	c.rebuildLocked(SourceRollback)
	if c.metrics != nil {
		c.metrics.RecordBlastRadiusTrip()
	}

	c.log.Warn(ctx, "blast radius triggered; experiment contained",
		logging.String("experiment_id", exp.ID),
		logging.String("scenario", exp.Scenario),
		logging.String("reason", reason),
		logging.String("lineage_id", c.lineageID),
	)
}

// reportLocked assembles a StatusReport from a snapshot and the current
// experiment record, applying defaults when no experiment exists. Callers
// must hold the lock.
func (c *GridController) reportLocked(snap powergrid.Snapshot, loss *float64) StatusReport {
	rep := StatusReport{
		Converged:            snap.Converged,
		MinVoltagePu:         snap.MinVoltagePu,
		TotalLoadMw:          snap.TotalLoadMw,
		GenerationMw:         snap.GenerationMw,
		SolveTimeMs:          snap.SolveTimeMs,
		Error:                snap.Err,
		EstimatedLoadLossPct: loss,
		ExperimentStatus:     StatusActive,
		ExperimentPhase:      PhaseBaseline,
		Context:              c.contextLocked(),
	}
	if c.active != nil {
		rep.BlastRadiusTriggered = c.active.BlastRadiusTriggered
		rep.BlastRadiusReason = c.active.BlastRadiusReason
		rep.ContainmentAction = c.active.ContainmentAction
		rep.ExperimentStatus = c.active.Status
		rep.ExperimentPhase = c.active.Phase
	}
	return rep
}
