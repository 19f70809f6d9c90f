package solution

import (
	"math/rand"
	"testing"

	"github.com/ohowland/firm_ce/internal/pkg/scenario"
	"gonum.org/v1/gonum/mat"
	"gotest.tools/v3/assert"
)

// newScenario builds a single-node scenario with one PV and one wind zone whose
// capacity factors are 1 and 0.5 throughout.
func newScenario(t *testing.T, intervals, steps int) *scenario.Scenario {
	pv := make([]float64, intervals)
	wind := make([]float64, intervals)
	for i := range pv {
		pv[i] = 1
		wind[i] = 0.5
	}
	s, err := scenario.Build(scenario.Data{
		Node:       "NSW",
		Steps:      steps,
		Resolution: 1,
		Years:      1,
		Efficiency: 0.8,
		MLoad:      mat.NewDense(intervals, 1, nil),
		TSPV:       mat.NewDense(intervals, 1, pv),
		TSWind:     mat.NewDense(intervals, 1, wind),
		CHydro:     []float64{0},
		CBio:       []float64{0},
		DCLoss:     []float64{0},
		Factor:     make([]float64, 10),
	})
	assert.NilError(t, err)
	return s
}

func TestDecodeTwoStepExpansion(t *testing.T) {
	s := newScenario(t, 4, 2)
	// pv [2,3], wind [1,1], storage power [4,1], storage energy 10
	x := []float64{2, 3, 1, 1, 4, 1, 10}

	sol, err := Decode(x, s)
	assert.NilError(t, err)

	assert.DeepEqual(t, sol.CPV(), []float64{2, 5})
	assert.DeepEqual(t, sol.CWind(), []float64{1, 2})
	assert.DeepEqual(t, sol.CPHP(), []float64{4, 5})
	assert.DeepEqual(t, sol.PVAdditions(), []float64{2, 3})
	assert.Equal(t, sol.CPHS(), 10.0)
	assert.Equal(t, sol.StorageEnergy(), 10000.0)

	wantPV := []float64{2000, 2000, 5000, 5000}
	wantWind := []float64{500, 500, 1000, 1000}
	for i := range wantPV {
		assert.Equal(t, sol.GPV().At(i, 0), wantPV[i])
		assert.Equal(t, sol.GWind().At(i, 0), wantWind[i])
	}
	assert.DeepEqual(t, sol.StoragePower(), []float64{4000, 4000, 5000, 5000})
}

func TestDecodeDoesNotMutateInput(t *testing.T) {
	s := newScenario(t, 4, 2)
	x := []float64{2, 3, 1, 1, 4, 1, 10}
	orig := append([]float64(nil), x...)

	_, err := Decode(x, s)
	assert.NilError(t, err)
	assert.DeepEqual(t, x, orig)
}

func TestAccessorsReturnCopies(t *testing.T) {
	s := newScenario(t, 4, 2)
	sol, err := Decode([]float64{2, 3, 1, 1, 4, 1, 10}, s)
	assert.NilError(t, err)

	sol.CPV()[1] = 0
	sol.CPHP()[0] = 0
	sol.PVAdditions()[0] = 0
	assert.DeepEqual(t, sol.CPV(), []float64{2, 5})
	assert.DeepEqual(t, sol.CPHP(), []float64{4, 5})
	assert.DeepEqual(t, sol.PVAdditions(), []float64{2, 3})
	assert.DeepEqual(t, sol.StoragePower(), []float64{4000, 4000, 5000, 5000})
}

func TestDecodeIdempotent(t *testing.T) {
	s := newScenario(t, 8, 4)
	x := randomVector(rand.New(rand.NewSource(3)), NewLayout(s).Len)

	a, err := Decode(x, s)
	assert.NilError(t, err)
	b, err := Decode(x, s)
	assert.NilError(t, err)

	assert.DeepEqual(t, a.CPV(), b.CPV())
	assert.DeepEqual(t, a.CWind(), b.CWind())
	assert.DeepEqual(t, a.CPHP(), b.CPHP())
	assert.Assert(t, mat.Equal(a.GPV(), b.GPV()))
	assert.Assert(t, mat.Equal(a.GWind(), b.GWind()))
}

func TestDecodeCumulativeMonotonic(t *testing.T) {
	s := newScenario(t, 16, 8)
	rng := rand.New(rand.NewSource(11))
	for trial := 0; trial < 20; trial++ {
		sol, err := Decode(randomVector(rng, NewLayout(s).Len), s)
		assert.NilError(t, err)

		for _, cum := range [][]float64{sol.CPV(), sol.CWind(), sol.CPHP()} {
			for i := 1; i < len(cum); i++ {
				assert.Assert(t, cum[i] >= cum[i-1], "step %d: %v < %v", i, cum[i], cum[i-1])
			}
		}
	}
}

func TestDecodeShapeMismatch(t *testing.T) {
	s := newScenario(t, 4, 2)
	_, err := Decode([]float64{1, 2, 3}, s)
	assert.ErrorIs(t, err, scenario.ErrShape)
	assert.ErrorContains(t, err, "want 7")
}

func TestCumulativeBlocks(t *testing.T) {
	// two zones per step, three steps
	got := Cumulative([]float64{1, 10, 2, 20, 3, 30}, 3)
	assert.DeepEqual(t, got, []float64{1, 10, 3, 30, 6, 60})
	assert.DeepEqual(t, FinalStep(got, 3), []float64{6, 60})
}

func TestBounds(t *testing.T) {
	s := newScenario(t, 4, 2)
	assert.DeepEqual(t, Lower(s), make([]float64, 7))
	assert.DeepEqual(t, Upper(s), []float64{100, 100, 100, 100, 50, 50, 5000})

	l := NewLayout(s)
	assert.Equal(t, l, Layout{PIdx: 2, WIdx: 4, SIdx: 6, Len: 7})
}

func randomVector(rng *rand.Rand, n int) []float64 {
	x := make([]float64, n)
	for i := range x {
		x[i] = rng.Float64() * 10
	}
	return x
}
