package powergrid

import (
	"fmt"
	"math"
	"time"

	"gonum.org/v1/gonum/mat"
)

// Snapshot is the result of one solve attempt. Divergence is a first-class
// outcome, never an error: a collapsed grid reports Converged=false with an
// explanation in Err.
type Snapshot struct {
	Converged    bool
	MinVoltagePu float64
	TotalLoadMw  float64
	GenerationMw float64
	SolveTimeMs  float64
	Err          string
}

// Engine solves the AC power flow for a Grid using Newton-Raphson in polar
// form, with generator reactive limits enforced by PV/PQ bus switching.
type Engine struct {
	// MaxIterations bounds the inner Newton loop. Exceeding it is reported
	// as divergence.
	MaxIterations int
	// Tolerance is the per-unit mismatch threshold for convergence.
	Tolerance float64
}

// NewEngine returns an Engine with standard solver settings.
func NewEngine() *Engine {
	return &Engine{
		MaxIterations: 30,
		Tolerance:     1e-8,
	}
}

// Build constructs a fresh baseline network.
func (e *Engine) Build() *Grid {
	return NewIEEE14()
}

// Solve runs the power flow against g and returns a Snapshot. g is read but
// not modified; result quantities are derived from the converged solution.
func (e *Engine) Solve(g *Grid) Snapshot {
	start := time.Now()
	snap := e.solve(g)
	snap.SolveTimeMs = float64(time.Since(start).Microseconds()) / 1000.0
	return snap
}

type busKind int

const (
	busPQ busKind = iota
	busPV
	busSlack
)

// solution holds the working state of one power flow computation.
type solution struct {
	n     int
	index map[int]int // bus number -> matrix index
	kind  []busKind
	vm    []float64
	va    []float64
	pSpec []float64 // per-unit net injection targets
	qSpec []float64
	ybus  []complex128 // dense n*n admittance matrix
}

func (e *Engine) solve(g *Grid) Snapshot {
	diverged := func(reason string) Snapshot {
		return Snapshot{
			Converged:   false,
			TotalLoadMw: g.TotalLoadMw(),
			Err:         reason,
		}
	}

	if len(g.Buses) == 0 {
		return diverged("network has no buses")
	}

	slackBus := -1
	slackVm := 1.0
	for _, eg := range g.ExtGrids {
		if eg.InService {
			slackBus = eg.Bus
			slackVm = eg.VmPu
			break
		}
	}
	if slackBus == -1 {
		return diverged("no in-service external grid: network has lost its slack bus")
	}

	s, err := newSolution(g, slackBus, slackVm)
	if err != nil {
		return diverged(err.Error())
	}

	// Outer loop: re-run Newton after enforcing generator reactive limits.
	// PV buses whose machines would exceed their Q range are pinned at the
	// violated limit and treated as PQ.
	const maxQLimitRounds = 5
	for round := 0; round < maxQLimitRounds; round++ {
		if err := e.newton(s); err != nil {
			return diverged(err.Error())
		}
		if !enforceQLimits(g, s) {
			break
		}
	}

	minV := math.Inf(1)
	for i := 0; i < s.n; i++ {
		if s.vm[i] < minV {
			minV = s.vm[i]
		}
	}
	if !isFinite(minV) {
		return diverged("power flow produced a non-finite voltage solution")
	}

	// Slack generation covers whatever the rest of the system cannot: the
	// computed injection at the slack bus plus the local demand there.
	slackIdx := s.index[slackBus]
	pSlack, _ := s.calcInjection(slackIdx)
	slackLoadP, _ := g.loadAtBus(slackBus)
	generation := pSlack*g.BaseMVA + slackLoadP
	for _, gen := range g.Generators {
		if gen.InService {
			generation += gen.PMw
		}
	}

	return Snapshot{
		Converged:    true,
		MinVoltagePu: minV,
		TotalLoadMw:  g.TotalLoadMw(),
		GenerationMw: generation,
	}
}

func newSolution(g *Grid, slackBus int, slackVm float64) (*solution, error) {
	n := len(g.Buses)
	s := &solution{
		n:     n,
		index: make(map[int]int, n),
		kind:  make([]busKind, n),
		vm:    make([]float64, n),
		va:    make([]float64, n),
		pSpec: make([]float64, n),
		qSpec: make([]float64, n),
		ybus:  make([]complex128, n*n),
	}
	for i, b := range g.Buses {
		if _, dup := s.index[b.Number]; dup {
			return nil, fmt.Errorf("duplicate bus number %d", b.Number)
		}
		s.index[b.Number] = i
		s.vm[i] = 1.0
	}

	si, ok := s.index[slackBus]
	if !ok {
		return nil, fmt.Errorf("external grid references unknown bus %d", slackBus)
	}
	s.kind[si] = busSlack
	s.vm[si] = slackVm

	for _, gen := range g.Generators {
		if !gen.InService {
			continue
		}
		i, ok := s.index[gen.Bus]
		if !ok {
			return nil, fmt.Errorf("generator %d references unknown bus %d", gen.ID, gen.Bus)
		}
		if s.kind[i] == busSlack {
			continue
		}
		s.kind[i] = busPV
		s.vm[i] = gen.VmPu
		s.pSpec[i] += gen.PMw / g.BaseMVA
	}

	for _, l := range g.Loads {
		if !l.InService {
			continue
		}
		i, ok := s.index[l.Bus]
		if !ok {
			return nil, fmt.Errorf("load %d references unknown bus %d", l.ID, l.Bus)
		}
		s.pSpec[i] -= l.PMw / g.BaseMVA
		s.qSpec[i] -= l.QMvar / g.BaseMVA
	}

	for _, br := range g.Branches {
		if !br.InService {
			continue
		}
		f, ok := s.index[br.FromBus]
		if !ok {
			return nil, fmt.Errorf("branch %d references unknown bus %d", br.ID, br.FromBus)
		}
		t, ok := s.index[br.ToBus]
		if !ok {
			return nil, fmt.Errorf("branch %d references unknown bus %d", br.ID, br.ToBus)
		}
		if br.R == 0 && br.X == 0 {
			return nil, fmt.Errorf("branch %d has zero impedance", br.ID)
		}
		ys := 1 / complex(br.R, br.X)
		sh := complex(0, br.B/2)
		tap := br.Tap
		if tap == 0 {
			tap = 1
		}
		ct := complex(tap, 0)
		s.ybus[f*n+f] += (ys + sh) / (ct * ct)
		s.ybus[t*n+t] += ys + sh
		s.ybus[f*n+t] -= ys / ct
		s.ybus[t*n+f] -= ys / ct
	}

	return s, nil
}

// calcInjection computes the per-unit active and reactive injection at bus i
// implied by the current voltage solution.
func (s *solution) calcInjection(i int) (p, q float64) {
	for j := 0; j < s.n; j++ {
		y := s.ybus[i*s.n+j]
		gij, bij := real(y), imag(y)
		if gij == 0 && bij == 0 {
			continue
		}
		dth := s.va[i] - s.va[j]
		cos, sin := math.Cos(dth), math.Sin(dth)
		vv := s.vm[i] * s.vm[j]
		p += vv * (gij*cos + bij*sin)
		q += vv * (gij*sin - bij*cos)
	}
	return p, q
}

// newton iterates the polar-form Newton-Raphson update until the largest
// mismatch drops below tolerance.
func (e *Engine) newton(s *solution) error {
	// Unknown ordering: angles for every non-slack bus, then voltage
	// magnitudes for every PQ bus.
	var angIdx, magIdx []int
	for i := 0; i < s.n; i++ {
		if s.kind[i] != busSlack {
			angIdx = append(angIdx, i)
		}
	}
	for i := 0; i < s.n; i++ {
		if s.kind[i] == busPQ {
			magIdx = append(magIdx, i)
		}
	}
	m := len(angIdx) + len(magIdx)
	if m == 0 {
		return nil
	}

	jac := mat.NewDense(m, m, nil)
	rhs := mat.NewVecDense(m, nil)
	var dx mat.VecDense

	for iter := 0; iter < e.MaxIterations; iter++ {
		pCalc := make([]float64, s.n)
		qCalc := make([]float64, s.n)
		for i := 0; i < s.n; i++ {
			pCalc[i], qCalc[i] = s.calcInjection(i)
		}

		maxMismatch := 0.0
		for r, i := range angIdx {
			d := s.pSpec[i] - pCalc[i]
			rhs.SetVec(r, d)
			if math.Abs(d) > maxMismatch {
				maxMismatch = math.Abs(d)
			}
		}
		for r, i := range magIdx {
			d := s.qSpec[i] - qCalc[i]
			rhs.SetVec(len(angIdx)+r, d)
			if math.Abs(d) > maxMismatch {
				maxMismatch = math.Abs(d)
			}
		}
		if !isFinite(maxMismatch) {
			return fmt.Errorf("power flow diverged: non-finite mismatch at iteration %d", iter)
		}
		if maxMismatch < e.Tolerance {
			return nil
		}

		s.fillJacobian(jac, angIdx, magIdx, pCalc, qCalc)
		if err := dx.SolveVec(jac, rhs); err != nil {
			return fmt.Errorf("power flow diverged: singular Jacobian (islanded or degenerate network)")
		}

		for r, i := range angIdx {
			s.va[i] += dx.AtVec(r)
		}
		for r, i := range magIdx {
			s.vm[i] += dx.AtVec(len(angIdx) + r)
			if s.vm[i] <= 0 || !isFinite(s.vm[i]) {
				return fmt.Errorf("power flow diverged: voltage collapse at bus index %d", i)
			}
		}
	}
	return fmt.Errorf("power flow did not converge within %d iterations", e.MaxIterations)
}

func (s *solution) fillJacobian(jac *mat.Dense, angIdx, magIdx []int, pCalc, qCalc []float64) {
	na := len(angIdx)
	for r, i := range angIdx {
		for c, j := range angIdx {
			jac.Set(r, c, s.dPdTheta(i, j, pCalc, qCalc))
		}
		for c, j := range magIdx {
			jac.Set(r, na+c, s.dPdV(i, j, pCalc))
		}
	}
	for r, i := range magIdx {
		for c, j := range angIdx {
			jac.Set(na+r, c, s.dQdTheta(i, j, pCalc))
		}
		for c, j := range magIdx {
			jac.Set(na+r, na+c, s.dQdV(i, j, qCalc))
		}
	}
}

func (s *solution) dPdTheta(i, j int, pCalc, qCalc []float64) float64 {
	y := s.ybus[i*s.n+j]
	gij, bij := real(y), imag(y)
	if i == j {
		return -qCalc[i] - bij*s.vm[i]*s.vm[i]
	}
	dth := s.va[i] - s.va[j]
	return s.vm[i] * s.vm[j] * (gij*math.Sin(dth) - bij*math.Cos(dth))
}

func (s *solution) dPdV(i, j int, pCalc []float64) float64 {
	y := s.ybus[i*s.n+j]
	gij, bij := real(y), imag(y)
	if i == j {
		return pCalc[i]/s.vm[i] + gij*s.vm[i]
	}
	dth := s.va[i] - s.va[j]
	return s.vm[i] * (gij*math.Cos(dth) + bij*math.Sin(dth))
}

func (s *solution) dQdTheta(i, j int, pCalc []float64) float64 {
	y := s.ybus[i*s.n+j]
	gij, bij := real(y), imag(y)
	if i == j {
		return pCalc[i] - gij*s.vm[i]*s.vm[i]
	}
	dth := s.va[i] - s.va[j]
	return -s.vm[i] * s.vm[j] * (gij*math.Cos(dth) + bij*math.Sin(dth))
}

func (s *solution) dQdV(i, j int, qCalc []float64) float64 {
	y := s.ybus[i*s.n+j]
	gij, bij := real(y), imag(y)
	if i == j {
		return qCalc[i]/s.vm[i] - bij*s.vm[i]
	}
	dth := s.va[i] - s.va[j]
	return s.vm[i] * (gij*math.Sin(dth) - bij*math.Cos(dth))
}

// enforceQLimits checks reactive output at PV buses against aggregate
// generator limits and converts violating buses to PQ with the reactive
// injection pinned at the limit. Reports whether another Newton round is
// needed.
func enforceQLimits(g *Grid, s *solution) bool {
	changed := false
	for i := 0; i < s.n; i++ {
		if s.kind[i] != busPV {
			continue
		}
		busNo := g.Buses[i].Number
		qMin, qMax, any := aggregateQLimits(g, busNo)
		if !any {
			continue
		}
		_, qInj := s.calcInjection(i)
		_, loadQ := g.loadAtBus(busNo)
		qGen := qInj*g.BaseMVA + loadQ

		const slackMvar = 1e-6
		switch {
		case qGen > qMax+slackMvar:
			s.kind[i] = busPQ
			s.qSpec[i] = (qMax - loadQ) / g.BaseMVA
			changed = true
		case qGen < qMin-slackMvar:
			s.kind[i] = busPQ
			s.qSpec[i] = (qMin - loadQ) / g.BaseMVA
			changed = true
		}
	}
	return changed
}

func aggregateQLimits(g *Grid, bus int) (qMin, qMax float64, any bool) {
	for _, gen := range g.Generators {
		if gen.InService && gen.Bus == bus {
			qMin += gen.MinQMvar
			qMax += gen.MaxQMvar
			any = true
		}
	}
	return qMin, qMax, any
}

func isFinite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}
