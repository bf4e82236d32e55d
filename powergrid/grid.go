// Package powergrid models a transmission network and solves its AC power
// flow. It is the simulation engine behind the chaos control plane: the
// controller owns a *Grid handle, mutates it through fault-injection
// functions, and asks the engine for a Snapshot of the resulting physics.
package powergrid

// Bus is a network node. Buses are identified by their 1-based number, the
// convention used by the IEEE test cases.
type Bus struct {
	Number int
	Name   string
}

// Branch is a transmission line or transformer between two buses.
// Impedances are per-unit on the system base; B is the total line charging
// susceptance. A zero Tap means no off-nominal turns ratio.
type Branch struct {
	ID        int
	FromBus   int
	ToBus     int
	R         float64
	X         float64
	B         float64
	Tap       float64
	InService bool
}

// Load is a constant-power demand attached to a bus.
type Load struct {
	ID        int
	Bus       int
	PMw       float64
	QMvar     float64
	InService bool
}

// Generator is a PV machine: it injects PMw and regulates its bus voltage to
// VmPu while reactive output stays inside [MinQMvar, MaxQMvar].
type Generator struct {
	ID        int
	Bus       int
	PMw       float64
	VmPu      float64
	MinQMvar  float64
	MaxQMvar  float64
	InService bool
}

// ExtGrid is the external interconnection. It acts as the slack bus: it
// holds its voltage setpoint and absorbs the system power imbalance.
type ExtGrid struct {
	Bus       int
	VmPu      float64
	InService bool
}

// Grid is the mutable network state handle. It is not safe for concurrent
// use; the controller serializes all access behind its own lock.
type Grid struct {
	BaseMVA    float64
	Buses      []Bus
	Branches   []Branch
	Loads      []Load
	Generators []Generator
	ExtGrids   []ExtGrid

	applied map[string]bool
}

// FirstApplication records key against this grid instance and reports
// whether this is the first time it has been applied. Scenarios that
// compound multipliers use it to refuse re-application.
func (g *Grid) FirstApplication(key string) bool {
	if g.applied == nil {
		g.applied = make(map[string]bool)
	}
	if g.applied[key] {
		return false
	}
	g.applied[key] = true
	return true
}

// BranchByID returns the branch with the given ID, or nil.
func (g *Grid) BranchByID(id int) *Branch {
	for i := range g.Branches {
		if g.Branches[i].ID == id {
			return &g.Branches[i]
		}
	}
	return nil
}

// ScaleLoads multiplies the active power of every load by mult.
func (g *Grid) ScaleLoads(mult float64) {
	for i := range g.Loads {
		g.Loads[i].PMw *= mult
	}
}

// TotalLoadMw sums the active power demand of all in-service loads.
func (g *Grid) TotalLoadMw() float64 {
	total := 0.0
	for _, l := range g.Loads {
		if l.InService {
			total += l.PMw
		}
	}
	return total
}

// loadAtBus sums in-service demand at one bus, in MW / Mvar.
func (g *Grid) loadAtBus(bus int) (pMw, qMvar float64) {
	for _, l := range g.Loads {
		if l.InService && l.Bus == bus {
			pMw += l.PMw
			qMvar += l.QMvar
		}
	}
	return pMw, qMvar
}
