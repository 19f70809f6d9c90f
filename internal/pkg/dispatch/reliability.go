/*
reliability.go Sequential storage dispatch. Each interval's storage level depends on the
previous interval's, so a pass is a single scan over the timeline and is never split
across goroutines. Independent candidates may run passes concurrently.
*/

package dispatch

import (
	"fmt"
	"math"

	"github.com/ohowland/firm_ce/internal/pkg/scenario"
	"github.com/ohowland/firm_ce/internal/pkg/solution"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// InitialFill is the fraction of energy capacity held before the first interval.
const InitialFill = 0.5

// State holds the per-interval trajectories of one pass. Power in MW, energy in MWh.
type State struct {
	Flexible  []float64
	Netload   []float64
	Storage   []float64
	Discharge []float64
	Charge    []float64
	Deficit   []float64
	Spillage  []float64
	Scapacity float64
}

// PriorStorage is the storage level entering interval t. Interval 0 starts at half capacity.
func (s State) PriorStorage(t int) float64 {
	if t == 0 {
		return InitialFill * s.Scapacity
	}
	return s.Storage[t-1]
}

// DeficitSum is the total unmet demand, summed over intervals (MW-intervals).
func (s State) DeficitSum() float64 {
	return floats.Sum(s.Deficit)
}

// Netload returns total load less PV, wind, baseload and the flexible override, per interval.
func Netload(sol *solution.Solution, flexible []float64) []float64 {
	sc := sol.Scenario()
	out := make([]float64, sc.Intervals())
	for t := range out {
		out[t] = rowSum(sc.MLoad(), t) -
			rowSum(sol.GPV(), t) -
			rowSum(sol.GWind(), t) -
			rowSum(sc.GBaseload(), t) -
			flexible[t]
	}
	return out
}

func rowSum(m mat.Matrix, t int) float64 {
	if m == nil {
		return 0
	}
	_, cols := m.Dims()
	var sum float64
	for j := 0; j < cols; j++ {
		sum += m.At(t, j)
	}
	return sum
}

// Reliability runs the storage state machine over the whole timeline with flexible as the
// dispatchable supply override (MW per interval).
func Reliability(sol *solution.Solution, flexible []float64) (State, error) {
	sc := sol.Scenario()
	if len(flexible) != sc.Intervals() {
		return State{}, fmt.Errorf("flexible supply has %d intervals, want %d: %w",
			len(flexible), sc.Intervals(), scenario.ErrShape)
	}

	scapacity := sol.StorageEnergy()
	if scapacity < 0 || math.IsNaN(scapacity) || math.IsInf(scapacity, 0) {
		return State{}, fmt.Errorf("storage energy capacity %v: %w", scapacity, scenario.ErrDegenerate)
	}
	power := sol.StoragePower()
	for t, p := range power {
		if p < 0 || math.IsNaN(p) {
			return State{}, fmt.Errorf("storage power %v at interval %d: %w", p, t, scenario.ErrDegenerate)
		}
	}

	netload := Netload(sol, flexible)
	st := newState(flexible, netload, scapacity)

	unit := storage{
		level:      InitialFill * scapacity,
		capacity:   scapacity,
		efficiency: sc.Efficiency(),
		resolution: sc.Resolution(),
	}
	for t, nl := range netload {
		iv := unit.step(nl, power[t])
		st.Discharge[t] = iv.discharge
		st.Charge[t] = iv.charge
		st.Storage[t] = iv.level
		st.Deficit[t] = math.Max(nl-iv.discharge, 0)
		st.Spillage[t] = math.Max(-(nl + iv.charge), 0)
	}
	return st, nil
}

func newState(flexible, netload []float64, scapacity float64) State {
	n := len(netload)
	return State{
		Flexible:  append([]float64(nil), flexible...),
		Netload:   netload,
		Storage:   make([]float64, n),
		Discharge: make([]float64, n),
		Charge:    make([]float64, n),
		Deficit:   make([]float64, n),
		Spillage:  make([]float64, n),
		Scapacity: scapacity,
	}
}

// storage carries the level between intervals.
type storage struct {
	level      float64
	capacity   float64
	efficiency float64
	resolution float64
}

type interval struct {
	discharge float64
	charge    float64
	level     float64
}

// step discharges into positive net load and charges from surplus, limited by the power
// rating and by the energy available or the headroom left this interval.
func (s *storage) step(netload, power float64) interval {
	prior := s.level
	discharge := math.Min(math.Min(math.Max(0, netload), power), prior/s.resolution)
	charge := math.Min(math.Min(math.Max(0, -netload), power), (s.capacity-prior)/s.efficiency/s.resolution)
	level := prior - discharge*s.resolution + charge*s.resolution*s.efficiency
	// clamp rounding drift at the bounds
	s.level = math.Min(math.Max(level, 0), s.capacity)
	return interval{discharge, charge, s.level}
}
