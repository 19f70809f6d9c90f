package solution

import "github.com/ohowland/firm_ce/internal/pkg/scenario"

// Layout holds the block boundaries of a decision vector:
// [CPV P*S][CWind W*S][CPHP N*S][CPHS 1].
type Layout struct {
	PIdx int
	WIdx int
	SIdx int
	Len  int
}

// NewLayout derives the block boundaries from the scenario dimensions.
func NewLayout(s *scenario.Scenario) Layout {
	pidx := s.PVZones() * s.Steps()
	widx := pidx + s.WindZones()*s.Steps()
	sidx := widx + s.Nodes()*s.Steps()
	return Layout{pidx, widx, sidx, sidx + 1}
}

// Lower returns the lower bound of every decision variable.
func Lower(s *scenario.Scenario) []float64 {
	return make([]float64, NewLayout(s).Len)
}

// Upper returns the upper bound of every decision variable. Storage power at step 0 has
// its own limit.
func Upper(s *scenario.Scenario) []float64 {
	l := NewLayout(s)
	lim := s.Limits()
	ub := make([]float64, l.Len)

	fill(ub[:l.PIdx], lim.PV)
	fill(ub[l.PIdx:l.WIdx], lim.Wind)
	fill(ub[l.WIdx:l.WIdx+s.Nodes()], lim.StoragePowerInitial)
	fill(ub[l.WIdx+s.Nodes():l.SIdx], lim.StoragePower)
	ub[l.SIdx] = lim.StorageEnergy
	return ub
}

func fill(v []float64, value float64) {
	for i := range v {
		v[i] = value
	}
}
