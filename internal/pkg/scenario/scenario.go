/*
scenario.go The read-only scenario context shared by every evaluation. A Scenario is built
once from loaded data and never mutated afterwards, so it may be shared across workers.
*/

package scenario

import (
	"errors"
	"fmt"
	"math"
	"strings"

	"gonum.org/v1/gonum/mat"
)

// ErrShape marks a caller contract violation: inconsistent dimensions or vector lengths.
var ErrShape = errors.New("shape mismatch")

// ErrDegenerate marks a numeric configuration that would divide by zero or propagate NaN.
var ErrDegenerate = errors.New("degenerate scenario")

const hoursPerYear = 8760

// CostBasis selects which capacity figure is charged capital cost.
type CostBasis string

const (
	// Marginal charges the additions made in the final step.
	Marginal CostBasis = "marginal"
	// Cumulative charges the cumulative fleet installed by the final step.
	Cumulative CostBasis = "cumulative"
)

// Limits bounds the decision vector. Power in GW per step, energy in GWh.
type Limits struct {
	PV                  float64 `json:"PV" yaml:"pv"`
	Wind                float64 `json:"Wind" yaml:"wind"`
	StoragePower        float64 `json:"StoragePower" yaml:"storage_power"`
	StoragePowerInitial float64 `json:"StoragePowerInitial" yaml:"storage_power_initial"`
	StorageEnergy       float64 `json:"StorageEnergy" yaml:"storage_energy"`
}

// DefaultLimits are the build limits used when a config leaves them unset.
func DefaultLimits() Limits {
	return Limits{
		PV:                  100,
		Wind:                100,
		StoragePower:        50,
		StoragePowerInitial: 50,
		StorageEnergy:       5000,
	}
}

// withDefaults fills every unset limit from DefaultLimits.
func (l Limits) withDefaults() Limits {
	def := DefaultLimits()
	for _, f := range []struct{ v, d *float64 }{
		{&l.PV, &def.PV},
		{&l.Wind, &def.Wind},
		{&l.StoragePower, &def.StoragePower},
		{&l.StoragePowerInitial, &def.StoragePowerInitial},
		{&l.StorageEnergy, &def.StorageEnergy},
	} {
		if *f.v == 0 {
			*f.v = *f.d
		}
	}
	return l
}

// Line is a transmission line between two node indices.
type Line struct {
	From int `json:"From" yaml:"from"`
	To   int `json:"To" yaml:"to"`
}

// Data is the raw material a Scenario is built from. Matrices are interval-major:
// row t is interval t. Capacities are GW, time series MW (load) or per-unit (PV, wind).
type Data struct {
	Node       string
	NodeLabels []string
	Steps      int
	Resolution float64 // hours per interval
	Years      int     // 0 derives floor(Resolution*T/8760)
	Efficiency float64
	Growth     float64 // load multiplier per step, 0 means 1

	MLoad     *mat.Dense // [T,N] MW
	TSPV      *mat.Dense // [T,P] capacity factor
	TSWind    *mat.Dense // [T,W] capacity factor
	GBaseload *mat.Dense // [T,N] MW, nil means zero

	PVNodes   []int // zone -> node index, len P
	WindNodes []int // zone -> node index, len W

	CHydro    []float64 // GW per node
	CBio      []float64 // GW per node
	CBaseload []float64 // GW per node

	DCLoss []float64 // per line loss coefficient
	Lines  []Line    // len(DCLoss) when multi-node
	Factor []float64 // cost factors, len 9+L

	Limits       Limits
	HydroCeiling float64 // MWh p.a., 0 means 20 TWh
	CostBasis    CostBasis
}

// Scenario is the immutable configuration consumed by the decoder, the dispatch simulator
// and the objective evaluator.
type Scenario struct {
	node       string
	nodeLabels []string
	multiNode  bool

	nodes     int
	pvZones   int
	windZones int
	steps     int
	intervals int
	lines     int

	resolution float64
	years      int
	efficiency float64

	mLoad     *mat.Dense
	tsPV      *mat.Dense
	tsWind    *mat.Dense
	gBaseload *mat.Dense

	pvNodes   []int
	windNodes []int

	cHydro []float64
	cPeak  []float64

	dcLoss      []float64
	topology    []Line
	factor      []float64
	limits      Limits
	hydroCeil   float64
	costBasis   CostBasis
	energy      float64
	contingency []float64
}

// Build validates d and returns the Scenario. d's matrices are copied.
func Build(d Data) (*Scenario, error) {
	if d.MLoad == nil {
		return nil, fmt.Errorf("load series is required: %w", ErrShape)
	}

	intervals, nodes := d.MLoad.Dims()
	if d.Steps <= 0 {
		return nil, fmt.Errorf("steps must be positive, got %d: %w", d.Steps, ErrShape)
	}
	if intervals == 0 || intervals%d.Steps != 0 {
		return nil, fmt.Errorf("interval count %d is not divisible by step count %d: %w",
			intervals, d.Steps, ErrShape)
	}
	if err := positive("resolution", d.Resolution); err != nil {
		return nil, err
	}
	if err := positive("efficiency", d.Efficiency); err != nil {
		return nil, err
	}

	pvZones, err := columns("pv", d.TSPV, intervals)
	if err != nil {
		return nil, err
	}
	windZones, err := columns("wind", d.TSWind, intervals)
	if err != nil {
		return nil, err
	}

	baseload := mat.NewDense(intervals, nodes, nil)
	if d.GBaseload != nil {
		r, c := d.GBaseload.Dims()
		if r != intervals || c != nodes {
			return nil, fmt.Errorf("baseload is %dx%d, want %dx%d: %w", r, c, intervals, nodes, ErrShape)
		}
		baseload.Copy(d.GBaseload)
	}

	if err := zoneMap("pv", d.PVNodes, pvZones, nodes); err != nil {
		return nil, err
	}
	if err := zoneMap("wind", d.WindNodes, windZones, nodes); err != nil {
		return nil, err
	}

	for name, v := range map[string][]float64{"hydro": d.CHydro, "bio": d.CBio} {
		if len(v) != nodes {
			return nil, fmt.Errorf("%s capacities have %d entries, want %d: %w", name, len(v), nodes, ErrShape)
		}
	}
	cBaseload := d.CBaseload
	if cBaseload == nil {
		cBaseload = make([]float64, nodes)
	}
	if len(cBaseload) != nodes {
		return nil, fmt.Errorf("baseload capacities have %d entries, want %d: %w", len(cBaseload), nodes, ErrShape)
	}

	lines := len(d.DCLoss)
	if len(d.Factor) != 9+lines {
		return nil, fmt.Errorf("cost factors have %d entries, want %d: %w", len(d.Factor), 9+lines, ErrShape)
	}

	multiNode := strings.HasPrefix(d.Node, "Super")
	if multiNode {
		if len(d.Lines) != lines {
			return nil, fmt.Errorf("topology has %d lines, loss table %d: %w", len(d.Lines), lines, ErrShape)
		}
		for _, l := range d.Lines {
			if l.From < 0 || l.From >= nodes || l.To < 0 || l.To >= nodes {
				return nil, fmt.Errorf("line %v references a node outside [0,%d): %w", l, nodes, ErrShape)
			}
		}
	}

	years := d.Years
	if years == 0 {
		years = int(d.Resolution * float64(intervals) / hoursPerYear)
	}
	if years <= 0 {
		return nil, fmt.Errorf("record of %d intervals is shorter than one year: %w", intervals, ErrDegenerate)
	}

	mLoad := mat.DenseCopyOf(d.MLoad)
	applyGrowth(mLoad, d.Steps, d.Growth)

	cPeak := make([]float64, nodes)
	for i := range cPeak {
		cPeak[i] = d.CHydro[i] + d.CBio[i] - cBaseload[i]
	}

	contingency := make([]float64, nodes)
	for j := 0; j < nodes; j++ {
		contingency[j] = 0.25 * mat.Max(mLoad.ColView(j)) * 1e-3
	}

	limits := d.Limits.withDefaults()
	hydroCeil := d.HydroCeiling
	if hydroCeil == 0 {
		hydroCeil = 20 * 1e6
	}
	basis := d.CostBasis
	switch basis {
	case "":
		basis = Marginal
	case Marginal, Cumulative:
	default:
		return nil, fmt.Errorf("unknown cost basis %q: %w", basis, ErrShape)
	}

	s := &Scenario{
		node:        d.Node,
		nodeLabels:  append([]string(nil), d.NodeLabels...),
		multiNode:   multiNode,
		nodes:       nodes,
		pvZones:     pvZones,
		windZones:   windZones,
		steps:       d.Steps,
		intervals:   intervals,
		lines:       lines,
		resolution:  d.Resolution,
		years:       years,
		efficiency:  d.Efficiency,
		mLoad:       mLoad,
		tsPV:        copyOrNil(d.TSPV),
		tsWind:      copyOrNil(d.TSWind),
		gBaseload:   baseload,
		pvNodes:     append([]int(nil), d.PVNodes...),
		windNodes:   append([]int(nil), d.WindNodes...),
		cHydro:      append([]float64(nil), d.CHydro...),
		cPeak:       cPeak,
		dcLoss:      append([]float64(nil), d.DCLoss...),
		topology:    append([]Line(nil), d.Lines...),
		factor:      append([]float64(nil), d.Factor...),
		limits:      limits,
		hydroCeil:   hydroCeil,
		costBasis:   basis,
		contingency: contingency,
	}
	s.energy = mat.Sum(mLoad) * 1e-9 * d.Resolution / float64(years)
	return s, nil
}

func positive(name string, v float64) error {
	if v <= 0 || math.IsNaN(v) || math.IsInf(v, 0) {
		return fmt.Errorf("%s must be positive and finite, got %v: %w", name, v, ErrDegenerate)
	}
	return nil
}

// columns returns the zone count of a capacity factor series; nil means no zones.
func columns(kind string, m *mat.Dense, intervals int) (int, error) {
	if m == nil {
		return 0, nil
	}
	r, c := m.Dims()
	if r != intervals {
		return 0, fmt.Errorf("%s series has %d intervals, load has %d: %w", kind, r, intervals, ErrShape)
	}
	return c, nil
}

func copyOrNil(m *mat.Dense) *mat.Dense {
	if m == nil {
		return nil
	}
	return mat.DenseCopyOf(m)
}

func zoneMap(kind string, m []int, zones, nodes int) error {
	if m == nil && nodes == 1 {
		return nil
	}
	if len(m) != zones {
		return fmt.Errorf("%s zone map has %d entries, want %d: %w", kind, len(m), zones, ErrShape)
	}
	for _, n := range m {
		if n < 0 || n >= nodes {
			return fmt.Errorf("%s zone mapped to node %d outside [0,%d): %w", kind, n, nodes, ErrShape)
		}
	}
	return nil
}

// applyGrowth scales the interval block of step i by growth^i.
func applyGrowth(m *mat.Dense, steps int, growth float64) {
	if growth == 0 || growth == 1 {
		return
	}
	rows, cols := m.Dims()
	split := rows / steps
	for i := 1; i < steps; i++ {
		block := m.Slice(split*i, split*(i+1), 0, cols).(*mat.Dense)
		block.Scale(math.Pow(growth, float64(i)), block)
	}
}

// Node is the configured node selection, e.g. "Super1" or "NSW".
func (s *Scenario) Node() string { return s.node }

// NodeLabels are the labels of the covered nodes.
func (s *Scenario) NodeLabels() []string { return append([]string(nil), s.nodeLabels...) }

// MultiNode reports whether inter-node transmission is simulated.
func (s *Scenario) MultiNode() bool { return s.multiNode }

// Nodes is N.
func (s *Scenario) Nodes() int { return s.nodes }

// PVZones is P.
func (s *Scenario) PVZones() int { return s.pvZones }

// WindZones is W.
func (s *Scenario) WindZones() int { return s.windZones }

// Steps is S.
func (s *Scenario) Steps() int { return s.steps }

// Intervals is T.
func (s *Scenario) Intervals() int { return s.intervals }

// IntervalsPerStep is T/S.
func (s *Scenario) IntervalsPerStep() int { return s.intervals / s.steps }

// Lines is L, the number of transmission lines.
func (s *Scenario) Lines() int { return s.lines }

// Resolution is hours per interval.
func (s *Scenario) Resolution() float64 { return s.resolution }

// Years is the number of whole years in the record.
func (s *Scenario) Years() int { return s.years }

// Efficiency is the storage round-trip efficiency applied on charge.
func (s *Scenario) Efficiency() float64 { return s.efficiency }

// MLoad is the per-node load [T,N] in MW, demand growth applied. Callers must not modify it.
func (s *Scenario) MLoad() mat.Matrix { return s.mLoad }

// TSPV is the PV capacity factor series [T,P], nil when there are no PV zones.
func (s *Scenario) TSPV() mat.Matrix {
	if s.tsPV == nil {
		return nil
	}
	return s.tsPV
}

// TSWind is the wind capacity factor series [T,W], nil when there are no wind zones.
func (s *Scenario) TSWind() mat.Matrix {
	if s.tsWind == nil {
		return nil
	}
	return s.tsWind
}

// GBaseload is the baseload generation [T,N] in MW.
func (s *Scenario) GBaseload() mat.Matrix { return s.gBaseload }

// PVNode returns the node index PV zone z is located in.
func (s *Scenario) PVNode(z int) int {
	if s.pvNodes == nil {
		return 0
	}
	return s.pvNodes[z]
}

// WindNode returns the node index wind zone z is located in.
func (s *Scenario) WindNode(z int) int {
	if s.windNodes == nil {
		return 0
	}
	return s.windNodes[z]
}

// CPeak is the dispatchable (hydro + bio - baseload) capacity per node in GW.
func (s *Scenario) CPeak() []float64 { return clone(s.cPeak) }

// CHydro is the hydro capacity per node in GW.
func (s *Scenario) CHydro() []float64 { return clone(s.cHydro) }

// DCLoss is the loss coefficient per transmission line.
func (s *Scenario) DCLoss() []float64 { return clone(s.dcLoss) }

// Topology is the list of transmission lines.
func (s *Scenario) Topology() []Line { return append([]Line(nil), s.topology...) }

// Factor is the cost factor vector.
func (s *Scenario) Factor() []float64 { return clone(s.factor) }

// Limits are the build limits.
func (s *Scenario) Limits() Limits { return s.limits }

// HydroCeiling is the annual hydro energy budget in MWh.
func (s *Scenario) HydroCeiling() float64 { return s.hydroCeil }

// CostBasis is the capital cost convention.
func (s *Scenario) CostBasis() CostBasis { return s.costBasis }

// Energy is the annual demand in PWh.
func (s *Scenario) Energy() float64 { return s.energy }

// Contingency is a quarter of each node's peak load in GW.
func (s *Scenario) Contingency() []float64 { return clone(s.contingency) }

// VectorLen is the decision vector length P*S + W*S + N*S + 1.
func (s *Scenario) VectorLen() int {
	return (s.pvZones+s.windZones+s.nodes)*s.steps + 1
}

func clone(v []float64) []float64 {
	return append([]float64(nil), v...)
}
