/*
objective.go Reduces a decision vector to one fitness scalar: levelized cost plus deficit and
hydro penalties. Each call decodes and dispatches into fresh state, so one Evaluator may be
shared by any number of goroutines.
*/

package objective

import (
	"errors"
	"fmt"
	"log"
	"math"

	"github.com/ohowland/firm_ce/internal/pkg/dispatch"
	"github.com/ohowland/firm_ce/internal/pkg/scenario"
	"github.com/ohowland/firm_ce/internal/pkg/solution"
	"github.com/ohowland/firm_ce/internal/pkg/transmission"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// ErrInfeasible is returned by CheckLimits when load cannot be met at the build limits.
var ErrInfeasible = errors.New("load cannot be met with current build limits")

// Breakdown holds every term of one evaluation.
type Breakdown struct {
	Solution *solution.Solution

	// Unconstrained is the pass with no flexible supply; its deficit is the hydro and bio
	// generation required. Bounded is the pass with all peak capacity available.
	Unconstrained dispatch.State
	Bounded       dispatch.State

	Flexible   float64 // MWh p.a.
	Hydro      float64 // MWh p.a.
	PenHydro   float64
	PenDeficit float64 // MWh

	Flows *mat.Dense // [T,L] MW, nil without lines
	CDC   []float64  // GW per line

	Cost    float64
	Loss    float64 // PWh p.a.
	Energy  float64 // PWh p.a.
	LCOE    float64
	Fitness float64
}

// Evaluator computes the objective against one scenario.
type Evaluator struct {
	scenario *scenario.Scenario
	solver   transmission.Solver
}

// New returns an Evaluator. The solver is consulted only for multi-node scenarios; nil
// means no inter-node flow.
func New(s *scenario.Scenario, solver transmission.Solver) *Evaluator {
	if solver == nil {
		solver = transmission.Zero{}
	}
	return &Evaluator{scenario: s, solver: solver}
}

// Scenario is the scenario candidates are evaluated against.
func (e *Evaluator) Scenario() *scenario.Scenario { return e.scenario }

// Evaluate returns the fitness of x. Lower is better.
func (e *Evaluator) Evaluate(x []float64) (float64, error) {
	b, err := e.Breakdown(x)
	if err != nil {
		return 0, err
	}
	return b.Fitness, nil
}

// Breakdown evaluates x and returns all intermediate terms.
func (e *Evaluator) Breakdown(x []float64) (Breakdown, error) {
	s := e.scenario
	sol, err := solution.Decode(x, s)
	if err != nil {
		return Breakdown{}, err
	}
	b := Breakdown{Solution: sol, Energy: s.Energy()}

	res := s.Resolution()
	years := float64(s.Years())

	b.Unconstrained, err = dispatch.Reliability(sol, make([]float64, s.Intervals()))
	if err != nil {
		return Breakdown{}, err
	}
	b.Flexible = b.Unconstrained.DeficitSum() * res / years / s.Efficiency()
	b.Hydro = b.Flexible * res / years
	b.PenHydro = math.Max(0, b.Hydro-s.HydroCeiling())

	b.Bounded, err = dispatch.Reliability(sol, peakSupply(s))
	if err != nil {
		return Breakdown{}, err
	}
	b.PenDeficit = math.Max(0, b.Bounded.DeficitSum()*res)

	if err := e.transmission(&b); err != nil {
		return Breakdown{}, err
	}

	b.Cost = floats.Dot(s.Factor(), costVector(sol, b.CDC, b.Hydro))

	denom := math.Abs(b.Energy - b.Loss)
	if denom == 0 || math.IsNaN(denom) {
		return Breakdown{}, fmt.Errorf("net delivered energy is %v: %w", b.Energy-b.Loss, scenario.ErrDegenerate)
	}
	b.LCOE = b.Cost / denom
	b.Fitness = b.LCOE + b.PenDeficit + b.PenHydro
	return b, nil
}

// transmission fills flows, line capacities and losses.
func (e *Evaluator) transmission(b *Breakdown) error {
	s := e.scenario
	b.CDC = make([]float64, s.Lines())
	if s.MultiNode() {
		flows, err := e.solver.Flows(b.Solution)
		if err != nil {
			return err
		}
		b.Flows = flows
	}
	if b.Flows == nil {
		return nil
	}

	var loss float64
	abs := make([]float64, s.Intervals())
	for k, coeff := range s.DCLoss() {
		mat.Col(abs, k, b.Flows)
		for i, f := range abs {
			abs[i] = math.Abs(f)
		}
		b.CDC[k] = floats.Max(abs) * 0.001
		loss += floats.Sum(abs) * coeff
	}
	b.Loss = loss * 1e-9 * s.Resolution() / float64(s.Years())
	return nil
}

// peakSupply is the flexible override with all dispatchable capacity online, MW.
func peakSupply(s *scenario.Scenario) []float64 {
	flexible := make([]float64, s.Intervals())
	floats.AddConst(floats.Sum(s.CPeak())*1000, flexible)
	return flexible
}

// costVector lines capacities up with the cost factors:
// [PV, wind, storage power, storage energy, lines..., PV, wind, hydro TWh, -1, -1].
func costVector(sol *solution.Solution, cdc []float64, hydro float64) []float64 {
	s := sol.Scenario()
	pv, wind, php := sol.PVAdditions(), sol.WindAdditions(), sol.PHPAdditions()
	if s.CostBasis() == scenario.Cumulative {
		pv, wind, php = sol.CPV(), sol.CWind(), sol.CPHP()
	}
	steps := s.Steps()
	cpv := floats.Sum(solution.FinalStep(pv, steps))
	cwind := floats.Sum(solution.FinalStep(wind, steps))
	cphp := floats.Sum(solution.FinalStep(php, steps))

	v := make([]float64, 0, 9+len(cdc))
	v = append(v, cpv, cwind, cphp, sol.CPHS())
	v = append(v, cdc...)
	return append(v, cpv, cwind, hydro*1e-6, -1, -1)
}

// CheckLimits runs the bounded pass once with every variable at its upper bound. A
// positive deficit there means no candidate can meet load and the search should not start.
func (e *Evaluator) CheckLimits() error {
	s := e.scenario
	sol, err := solution.Decode(solution.Upper(s), s)
	if err != nil {
		return err
	}
	st, err := dispatch.Reliability(sol, peakSupply(s))
	if err != nil {
		return err
	}
	if deficit := st.DeficitSum() * s.Resolution(); deficit > 0 {
		return fmt.Errorf("%.1f MWh unmet at the upper bounds: %w", deficit, ErrInfeasible)
	}
	log.Println("[Objective] optimisation possible with specified build limits and growth multiplier")
	return nil
}
