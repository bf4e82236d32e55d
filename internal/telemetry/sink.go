// Package telemetry forwards correlated grid observations to a time-series
// store. Emission is strictly best-effort: a sink failure must never fail
// the operation that produced the observation, and sinks never touch the
// controller's lock.
package telemetry

import (
	"context"

	"github.com/gridsentry/gridchaos/internal/controller"
)

// Observation is one correlated grid health measurement.
type Observation struct {
	Status       string
	Converged    bool
	MinVoltagePu float64
	TotalLoadMw  float64
	GenerationMw float64
	Context      controller.Context
}

// Sink accepts observations for later analysis.
type Sink interface {
	RecordGridState(ctx context.Context, obs Observation)
	Close()
}

// Noop is a Sink that drops every observation. Used in tests and when
// telemetry is disabled.
type Noop struct{}

func (Noop) RecordGridState(context.Context, Observation) {}
func (Noop) Close()                                       {}
