/*
solution.go Decodes a flat decision vector into staged capacities and generation
trajectories. Decoding is pure: the input vector is never modified and the returned
Solution is never mutated, so decoded solutions are safe to share between goroutines.
*/

package solution

import (
	"fmt"

	"github.com/ohowland/firm_ce/internal/pkg/capacity"
	"github.com/ohowland/firm_ce/internal/pkg/scenario"
	"gonum.org/v1/gonum/mat"
)

// Solution is a candidate capacity plan: CPV(i), CWind(j), CPHP(k) per step and CPHS.
type Solution struct {
	scenario *scenario.Scenario
	x        []float64

	pvAdd   []float64 // GW, as decided
	windAdd []float64
	phpAdd  []float64

	cpv   []float64 // GW, cumulative by step
	cwind []float64
	cphp  []float64
	cphs  float64 // GWh

	gpv   *mat.Dense // [T,P] MW
	gwind *mat.Dense // [T,W] MW
}

// Decode slices x into its blocks, accumulates each block across steps and tiles the
// cumulative capacities over the interval timeline.
func Decode(x []float64, s *scenario.Scenario) (*Solution, error) {
	l := NewLayout(s)
	if len(x) != l.Len {
		return nil, fmt.Errorf("decision vector has %d entries, want %d (pv %d, wind %d, storage power %d, storage energy 1): %w",
			len(x), l.Len, l.PIdx, l.WIdx-l.PIdx, l.SIdx-l.WIdx, scenario.ErrShape)
	}

	sol := &Solution{
		scenario: s,
		x:        append([]float64(nil), x...),
		pvAdd:    append([]float64(nil), x[:l.PIdx]...),
		windAdd:  append([]float64(nil), x[l.PIdx:l.WIdx]...),
		phpAdd:   append([]float64(nil), x[l.WIdx:l.SIdx]...),
		cphs:     x[l.SIdx],
	}

	steps := s.Steps()
	sol.cpv = Cumulative(sol.pvAdd, steps)
	sol.cwind = Cumulative(sol.windAdd, steps)
	sol.cphp = Cumulative(sol.phpAdd, steps)

	sol.gpv = generation(s.TSPV(), sol.cpv, s.PVZones(), s.IntervalsPerStep())
	sol.gwind = generation(s.TSWind(), sol.cwind, s.WindZones(), s.IntervalsPerStep())
	return sol, nil
}

// Cumulative returns the running total of step-major blocks: block i of the result is
// the sum of blocks 0..i of additions. Block 0 is copied unchanged.
func Cumulative(additions []float64, steps int) []float64 {
	out := append([]float64(nil), additions...)
	split := len(out) / steps
	for i := 1; i < steps; i++ {
		for j := 0; j < split; j++ {
			out[split*i+j] += out[split*(i-1)+j]
		}
	}
	return out
}

// generation multiplies the tiled cumulative capacity of each zone by its capacity
// factor series. Interval t uses the capacities of step t/perStep.
func generation(cf mat.Matrix, cumulative []float64, zones, perStep int) *mat.Dense {
	if zones == 0 {
		return nil
	}
	intervals, _ := cf.Dims()
	g := mat.NewDense(intervals, zones, nil)
	for t := 0; t < intervals; t++ {
		step := t / perStep
		for j := 0; j < zones; j++ {
			g.Set(t, j, cf.At(t, j)*cumulative[j+step*zones]*capacity.GWToMW)
		}
	}
	return g
}

// Scenario is the context the solution was decoded against.
func (sol *Solution) Scenario() *scenario.Scenario { return sol.scenario }

// X is a copy of the decision vector.
func (sol *Solution) X() []float64 { return append([]float64(nil), sol.x...) }

// CPV is the cumulative PV capacity per step and zone, step-major, GW.
func (sol *Solution) CPV() []float64 { return append([]float64(nil), sol.cpv...) }

// CWind is the cumulative wind capacity per step and zone, step-major, GW.
func (sol *Solution) CWind() []float64 { return append([]float64(nil), sol.cwind...) }

// CPHP is the cumulative storage power per step and node, step-major, GW.
func (sol *Solution) CPHP() []float64 { return append([]float64(nil), sol.cphp...) }

// CPHS is the storage energy capacity, GWh.
func (sol *Solution) CPHS() float64 { return sol.cphs }

// PVAdditions are the PV additions as decided, GW.
func (sol *Solution) PVAdditions() []float64 { return append([]float64(nil), sol.pvAdd...) }

// WindAdditions are the wind additions as decided, GW.
func (sol *Solution) WindAdditions() []float64 { return append([]float64(nil), sol.windAdd...) }

// PHPAdditions are the storage power additions as decided, GW.
func (sol *Solution) PHPAdditions() []float64 { return append([]float64(nil), sol.phpAdd...) }

// GPV is PV generation [T,P] in MW, nil when there are no PV zones.
func (sol *Solution) GPV() mat.Matrix {
	if sol.gpv == nil {
		return nil
	}
	return sol.gpv
}

// GWind is wind generation [T,W] in MW, nil when there are no wind zones.
func (sol *Solution) GWind() mat.Matrix {
	if sol.gwind == nil {
		return nil
	}
	return sol.gwind
}

// StoragePower is the storage power capacity per interval in MW.
func (sol *Solution) StoragePower() []float64 {
	s := sol.scenario
	return capacity.TilePower(sol.cphp, s.Steps(), s.Intervals())
}

// StorageEnergy is the storage energy capacity in MWh.
func (sol *Solution) StorageEnergy() float64 {
	return sol.cphs * capacity.GWToMW
}

// FinalStep returns the last step's block of v.
func FinalStep(v []float64, steps int) []float64 {
	split := len(v) / steps
	return v[len(v)-split:]
}
