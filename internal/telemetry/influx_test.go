package telemetry

import (
	"testing"
	"time"

	"github.com/gridsentry/gridchaos/internal/controller"
)

var _ Sink = Noop{}
var _ Sink = (*InfluxSink)(nil)

func TestPointFromEncodesContextAsTags(t *testing.T) {
	obs := Observation{
		Status:       "UNSTABLE",
		Converged:    true,
		MinVoltagePu: 0.93,
		TotalLoadMw:  310.8,
		GenerationMw: 325.1,
		Context: controller.Context{
			ExperimentID:   "exp-42",
			Scenario:       "heatwave_2023",
			Phase:          controller.PhaseChaos,
			LineageID:      "lineage-7",
			MutationSource: controller.SourceScenario,
		},
	}
	ts := time.Date(2026, 8, 27, 12, 0, 0, 0, time.UTC)

	p := pointFrom(obs, ts)

	if got := p.Name(); got != "grid_health" {
		t.Fatalf("measurement = %q, want grid_health", got)
	}
	if got := p.Time(); !got.Equal(ts) {
		t.Fatalf("timestamp = %v, want %v", got, ts)
	}

	tags := map[string]string{}
	for _, tag := range p.TagList() {
		tags[tag.Key] = tag.Value
	}
	wantTags := map[string]string{
		"status":          "UNSTABLE",
		"experiment_id":   "exp-42",
		"scenario":        "heatwave_2023",
		"phase":           "chaos",
		"lineage_id":      "lineage-7",
		"mutation_source": "scenario",
	}
	for k, want := range wantTags {
		if tags[k] != want {
			t.Fatalf("tag %s = %q, want %q", k, tags[k], want)
		}
	}

	fields := map[string]interface{}{}
	for _, f := range p.FieldList() {
		fields[f.Key] = f.Value
	}
	if got := fields["converged"]; got != true {
		t.Fatalf("field converged = %v, want true", got)
	}
	if got := fields["min_voltage"]; got != 0.93 {
		t.Fatalf("field min_voltage = %v, want 0.93", got)
	}
	if got := fields["total_load"]; got != 310.8 {
		t.Fatalf("field total_load = %v, want 310.8", got)
	}
	if got := fields["total_generation"]; got != 325.1 {
		t.Fatalf("field total_generation = %v, want 325.1", got)
	}
}

func TestPointFromKeepsSentinelContext(t *testing.T) {
	obs := Observation{
		Status:    "HEALTHY",
		Converged: true,
		Context: controller.Context{
			ExperimentID:   "none",
			Scenario:       "none",
			Phase:          controller.PhaseBaseline,
			LineageID:      "lineage-1",
			MutationSource: controller.SourceInit,
		},
	}

	p := pointFrom(obs, time.Now())
	for _, tag := range p.TagList() {
		if tag.Value == "" {
			t.Fatalf("tag %s is empty; sentinel values must be written literally", tag.Key)
		}
	}
}
