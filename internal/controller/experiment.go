package controller

import "time"

// Phase is the lifecycle stage of an experiment.
type Phase string

const (
	PhaseBaseline Phase = "baseline"
	PhaseChaos    Phase = "chaos"
	PhaseRecovery Phase = "recovery"
)

// ExperimentStatus marks whether an experiment is still running. Ended is
// terminal.
type ExperimentStatus string

const (
	StatusActive ExperimentStatus = "active"
	StatusEnded  ExperimentStatus = "ended"
)

// ExecutionMode selects between unconstrained and auto-contained execution.
type ExecutionMode string

const (
	// ModeSandbox lets an experiment run unconstrained: a blackout is
	// allowed to persist so the operator can study it.
	ModeSandbox ExecutionMode = "sandbox"
	// ModeGuardrailed bounds an experiment's blast radius: unsafe
	// divergence triggers automatic rollback to baseline.
	ModeGuardrailed ExecutionMode = "guardrailed"
)

// MutationSource tags which kind of operation last touched the grid handle.
type MutationSource string

const (
	SourceInit          MutationSource = "init"
	SourceScenario      MutationSource = "scenario"
	SourceManual        MutationSource = "manual"
	SourceReset         MutationSource = "reset"
	SourceRollback      MutationSource = "rollback"
	SourceEndExperiment MutationSource = "end_experiment"
)

// ContainmentAutoAbortRollback marks that guardrail policy ended an
// experiment and rolled the grid back to baseline.
const ContainmentAutoAbortRollback = "AUTO_ABORT_ROLLBACK"

// DefaultMaxLoadLossPct is the guardrail threshold used when a guardrailed
// experiment does not specify one.
const DefaultMaxLoadLossPct = 0.20

// Experiment is one fault-injection trial. Once Status is ended the record
// is inert history: it stays readable for audit until the next reset or
// experiment replaces it, but no further transitions are attributed to it.
type Experiment struct {
	ID             string           `json:"experiment_id"`
	Scenario       string           `json:"scenario"`
	Phase          Phase            `json:"phase"`
	Status         ExperimentStatus `json:"status"`
	ExecutionMode  ExecutionMode    `json:"execution_mode"`
	MaxLoadLossPct float64          `json:"max_load_loss_pct"`

	// BlastRadiusTriggered is set once by guardrail policy and never
	// cleared for the life of the record.
	BlastRadiusTriggered bool   `json:"blast_radius_triggered"`
	BlastRadiusReason    string `json:"blast_radius_reason,omitempty"`
	// ContainmentAction records that an automatic rollback occurred. It
	// persists through recovery so observers can see it after the fact.
	ContainmentAction string `json:"containment_action,omitempty"`

	Notes     string    `json:"notes,omitempty"`
	StartedAt time.Time `json:"started_at"`
}

// Context correlates an observation with the experiment and the grid
// instance that produced it. Sentinel values ("none", baseline) stand in
// when no experiment exists.
type Context struct {
	ExperimentID   string         `json:"experiment_id"`
	Scenario       string         `json:"scenario"`
	Phase          Phase          `json:"phase"`
	LineageID      string         `json:"lineage_id"`
	MutationSource MutationSource `json:"mutation_source"`
}
