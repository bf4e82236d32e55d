package chaos

import (
	"errors"
	"math"
	"testing"

	"github.com/gridsentry/gridchaos/powergrid"
)

func TestLookupKnownScenarios(t *testing.T) {
	for _, key := range []string{"hurricane_ida", "heatwave_2023", "ev_fleet_spike", "sandy_2012", "blackout_2003"} {
		spec, err := Lookup(key)
		if err != nil {
			t.Fatalf("Lookup(%q): %v", key, err)
		}
		if spec.Key != key {
			t.Fatalf("Lookup(%q) returned key %q", key, spec.Key)
		}
		if spec.DisplayName == "" || spec.Apply == nil {
			t.Fatalf("scenario %q is incomplete: %+v", key, spec)
		}
	}
}

func TestLookupUnknownScenario(t *testing.T) {
	_, err := Lookup("solar_storm_1859")
	if !errors.Is(err, ErrScenarioNotFound) {
		t.Fatalf("expected ErrScenarioNotFound, got %v", err)
	}
}

func TestScenariosListedInKeyOrder(t *testing.T) {
	specs := Scenarios()
	if len(specs) != 5 {
		t.Fatalf("expected 5 scenarios, got %d", len(specs))
	}
	for i := 1; i < len(specs); i++ {
		if specs[i-1].Key >= specs[i].Key {
			t.Fatalf("scenarios out of order: %q before %q", specs[i-1].Key, specs[i].Key)
		}
	}
}

func TestSingleApplicationGuard(t *testing.T) {
	g := powergrid.NewIEEE14()
	spec, err := Lookup("hurricane_ida")
	if err != nil {
		t.Fatal(err)
	}

	if err := spec.Apply(g); err != nil {
		t.Fatalf("first application failed: %v", err)
	}
	loadAfterFirst := g.TotalLoadMw()

	err = spec.Apply(g)
	if !errors.Is(err, ErrAlreadyApplied) {
		t.Fatalf("expected ErrAlreadyApplied on re-application, got %v", err)
	}
	if got := g.TotalLoadMw(); got != loadAfterFirst {
		t.Fatalf("rejected re-application still mutated the grid: %v -> %v", loadAfterFirst, got)
	}
}

func TestHurricaneIdaDisconnectsInterconnection(t *testing.T) {
	g := powergrid.NewIEEE14()
	baseLoad := g.TotalLoadMw()

	spec, _ := Lookup("hurricane_ida")
	if err := spec.Apply(g); err != nil {
		t.Fatal(err)
	}

	for _, eg := range g.ExtGrids {
		if eg.InService {
			t.Fatal("external grid still in service after hurricane_ida")
		}
	}
	if got := g.TotalLoadMw(); math.Abs(got-baseLoad*3.0) > 1e-9 {
		t.Fatalf("load = %v, want %v", got, baseLoad*3.0)
	}
}

func TestHeatwaveSagsVoltageAndHalvesReactiveHeadroom(t *testing.T) {
	g := powergrid.NewIEEE14()
	origMaxQ := make([]float64, len(g.Generators))
	for i, gen := range g.Generators {
		origMaxQ[i] = gen.MaxQMvar
	}

	spec, _ := Lookup("heatwave_2023")
	if err := spec.Apply(g); err != nil {
		t.Fatal(err)
	}

	if g.ExtGrids[0].VmPu != 0.92 {
		t.Fatalf("interconnection voltage = %v, want 0.92", g.ExtGrids[0].VmPu)
	}
	for i, gen := range g.Generators {
		if gen.MaxQMvar != origMaxQ[i]*0.5 {
			t.Fatalf("generator %d max Q = %v, want %v", gen.ID, gen.MaxQMvar, origMaxQ[i]*0.5)
		}
	}
}

func TestSandyTripsAllGenerators(t *testing.T) {
	g := powergrid.NewIEEE14()
	spec, _ := Lookup("sandy_2012")
	if err := spec.Apply(g); err != nil {
		t.Fatal(err)
	}
	for _, gen := range g.Generators {
		if gen.InService {
			t.Fatalf("generator %d still in service after sandy_2012", gen.ID)
		}
	}
}

func TestBlackoutCascadeTripsCorridors(t *testing.T) {
	g := powergrid.NewIEEE14()
	spec, _ := Lookup("blackout_2003")
	if err := spec.Apply(g); err != nil {
		t.Fatal(err)
	}
	for _, id := range []int{3, 4} {
		br := g.BranchByID(id)
		if br == nil {
			t.Fatalf("branch %d missing", id)
		}
		if br.InService {
			t.Fatalf("branch %d still in service after blackout_2003", id)
		}
	}
}

func TestTripLineUnknownIDIsNoOp(t *testing.T) {
	g := powergrid.NewIEEE14()
	before := make([]bool, len(g.Branches))
	for i, br := range g.Branches {
		before[i] = br.InService
	}

	if err := TripLine(g, 9999); err != nil {
		t.Fatalf("tripping a nonexistent line must not error: %v", err)
	}
	for i, br := range g.Branches {
		if br.InService != before[i] {
			t.Fatalf("branch %d service state changed", br.ID)
		}
	}
}

func TestTripLineTakesBranchOutOfService(t *testing.T) {
	g := powergrid.NewIEEE14()
	if err := TripLine(g, 6); err != nil {
		t.Fatal(err)
	}
	if g.BranchByID(6).InService {
		t.Fatal("branch 6 still in service after trip")
	}
}

func TestLoadSpikeCompounds(t *testing.T) {
	g := powergrid.NewIEEE14()
	base := g.TotalLoadMw()

	if err := LoadSpike(g, 2.0); err != nil {
		t.Fatal(err)
	}
	if err := LoadSpike(g, 1.5); err != nil {
		t.Fatal(err)
	}
	if got, want := g.TotalLoadMw(), base*3.0; math.Abs(got-want) > 1e-9 {
		t.Fatalf("load = %v, want %v", got, want)
	}
}
