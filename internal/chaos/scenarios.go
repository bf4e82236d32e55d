// Package chaos is the fault-injection scenario library. Each scenario is a
// named mutation applied to a grid handle by the controller, modeled on real
// utility incidents. Scenarios that compound load multipliers refuse to be
// applied twice to the same grid instance.
package chaos

import (
	"errors"
	"fmt"
	"sort"

	"github.com/gridsentry/gridchaos/powergrid"
)

var (
	// ErrScenarioNotFound indicates a lookup for an unregistered scenario key.
	ErrScenarioNotFound = errors.New("scenario not found")
	// ErrAlreadyApplied indicates a scenario was already applied to this
	// grid instance.
	ErrAlreadyApplied = errors.New("scenario already applied to this grid instance")
)

// Target labels the outcome a scenario is designed to drive.
type Target string

const (
	TargetBrownout Target = "BROWNOUT"
	TargetBlackout Target = "BLACKOUT"
)

// Spec describes one registered scenario.
type Spec struct {
	Key         string
	DisplayName string
	Target      Target
	Reversible  bool
	// Apply mutates the grid in place. It must not retain the handle past
	// return; the controller invokes it under its exclusive lock.
	Apply func(*powergrid.Grid) error
}

var registry = map[string]Spec{
	"hurricane_ida": {
		Key:         "hurricane_ida",
		DisplayName: "Hurricane Ida (2021)",
		Target:      TargetBlackout,
		Reversible:  true,
		Apply:       hurricaneIdaFlashFlood,
	},
	"heatwave_2023": {
		Key:         "heatwave_2023",
		DisplayName: "Heatwave (2023)",
		Target:      TargetBrownout,
		Reversible:  true,
		Apply:       heatwaveVoltageCollapse,
	},
	"ev_fleet_spike": {
		Key:         "ev_fleet_spike",
		DisplayName: "EV Fleet Spike (2024)",
		Target:      TargetBrownout,
		Reversible:  true,
		Apply:       evFleetSpike,
	},
	"sandy_2012": {
		Key:         "sandy_2012",
		DisplayName: "Superstorm Sandy (2012)",
		Target:      TargetBlackout,
		Reversible:  true,
		Apply:       sandyProtectionMiscoordination,
	},
	"blackout_2003": {
		Key:         "blackout_2003",
		DisplayName: "Northeast Blackout (2003)",
		Target:      TargetBlackout,
		Reversible:  true,
		Apply:       blackoutCascade,
	},
}

// Lookup returns the scenario registered under key.
func Lookup(key string) (Spec, error) {
	spec, ok := registry[key]
	if !ok {
		return Spec{}, fmt.Errorf("%w: %q", ErrScenarioNotFound, key)
	}
	return spec, nil
}

// Scenarios lists all registered scenarios in key order.
func Scenarios() []Spec {
	specs := make([]Spec, 0, len(registry))
	for _, spec := range registry {
		specs = append(specs, spec)
	}
	sort.Slice(specs, func(i, j int) bool { return specs[i].Key < specs[j].Key })
	return specs
}

func ensureSingleApply(g *powergrid.Grid, key string) error {
	if !g.FirstApplication(key) {
		return fmt.Errorf("%w: %q", ErrAlreadyApplied, key)
	}
	return nil
}

// hurricaneIdaFlashFlood disconnects the external interconnection and spikes
// demand: flood protection trips the grid tie while pumps run flat out.
func hurricaneIdaFlashFlood(g *powergrid.Grid) error {
	if err := ensureSingleApply(g, "hurricane_ida"); err != nil {
		return err
	}
	for i := range g.ExtGrids {
		g.ExtGrids[i].InService = false
	}
	g.ScaleLoads(3.0)
	return nil
}

// heatwaveVoltageCollapse sags the interconnection voltage, spikes load, and
// halves generator reactive headroom.
func heatwaveVoltageCollapse(g *powergrid.Grid) error {
	if err := ensureSingleApply(g, "heatwave_2023"); err != nil {
		return err
	}
	if len(g.ExtGrids) > 0 {
		g.ExtGrids[0].VmPu = 0.92
	}
	g.ScaleLoads(2.1)
	for i := range g.Generators {
		g.Generators[i].MaxQMvar *= 0.5
	}
	return nil
}

// evFleetSpike models a synchronized charging step-change: mild voltage sag
// plus a large load spike.
func evFleetSpike(g *powergrid.Grid) error {
	if err := ensureSingleApply(g, "ev_fleet_spike"); err != nil {
		return err
	}
	if len(g.ExtGrids) > 0 {
		g.ExtGrids[0].VmPu = 0.94
	}
	g.ScaleLoads(3.5)
	return nil
}

// sandyProtectionMiscoordination trips every generator and spikes load,
// leaving the interconnection to carry the whole system.
func sandyProtectionMiscoordination(g *powergrid.Grid) error {
	if err := ensureSingleApply(g, "sandy_2012"); err != nil {
		return err
	}
	for i := range g.Generators {
		g.Generators[i].InService = false
	}
	g.ScaleLoads(5.0)
	return nil
}

// blackoutCascade trips two parallel transmission corridors and spikes load,
// the vegetation-contact cascade pattern.
func blackoutCascade(g *powergrid.Grid) error {
	if err := ensureSingleApply(g, "blackout_2003"); err != nil {
		return err
	}
	if br := g.BranchByID(3); br != nil {
		br.InService = false
	}
	if br := g.BranchByID(4); br != nil {
		br.InService = false
	}
	g.ScaleLoads(10.0)
	return nil
}
