package scenario

import (
	"fmt"

	"gonum.org/v1/gonum/mat"
)

// DefaultBaseload returns the per-step baseload levels (MW) used when a config gives none.
// The retiring fleet is placed on the first node; remaining nodes carry zero.
func DefaultBaseload(steps, nodes int) [][]float64 {
	var first []float64
	switch steps {
	case 1:
		first = []float64{0}
	case 2:
		first = []float64{2750, 0}
	case 4:
		first = []float64{5465, 2750, 1430, 0}
	case 8:
		first = []float64{8387, 5465, 5465, 2750, 1430, 1430, 1430, 0}
	default:
		first = make([]float64, steps)
	}

	levels := make([][]float64, steps)
	for i := range levels {
		levels[i] = make([]float64, nodes)
		if nodes > 0 {
			levels[i][0] = first[i]
		}
	}
	return levels
}

// TileBaseload expands per-step, per-node baseload levels [S][N] into a [T,N] series
// where every interval of step i holds levels[i].
func TileBaseload(levels [][]float64, intervals int) (*mat.Dense, error) {
	steps := len(levels)
	if steps == 0 || intervals%steps != 0 {
		return nil, fmt.Errorf("cannot tile %d steps over %d intervals: %w", steps, intervals, ErrShape)
	}
	nodes := len(levels[0])
	if nodes == 0 {
		return nil, fmt.Errorf("baseload levels have no nodes: %w", ErrShape)
	}

	split := intervals / steps
	m := mat.NewDense(intervals, nodes, nil)
	for i, row := range levels {
		if len(row) != nodes {
			return nil, fmt.Errorf("step %d has %d baseload levels, want %d: %w", i, len(row), nodes, ErrShape)
		}
		for t := i * split; t < (i+1)*split; t++ {
			m.SetRow(t, row)
		}
	}
	return m, nil
}
