package scenario

import (
	"math"
	"os"
	"path/filepath"
	"testing"

	"gonum.org/v1/gonum/mat"
	"gotest.tools/v3/assert"
)

func singleNodeData(intervals, steps int) Data {
	load := make([]float64, intervals)
	for i := range load {
		load[i] = 10
	}
	return Data{
		Node:       "NSW",
		NodeLabels: []string{"NSW"},
		Steps:      steps,
		Resolution: 1,
		Years:      1,
		Efficiency: 0.8,
		MLoad:      mat.NewDense(intervals, 1, load),
		TSPV:       mat.NewDense(intervals, 1, nil),
		TSWind:     mat.NewDense(intervals, 1, nil),
		CHydro:     []float64{1},
		CBio:       []float64{0.5},
		DCLoss:     []float64{0.01},
		Factor:     make([]float64, 10),
	}
}

func TestBuild(t *testing.T) {
	s, err := Build(singleNodeData(4, 2))
	assert.NilError(t, err)

	assert.Equal(t, s.Intervals(), 4)
	assert.Equal(t, s.IntervalsPerStep(), 2)
	assert.Equal(t, s.VectorLen(), 7)
	assert.Equal(t, s.CostBasis(), Marginal)
	assert.Equal(t, s.HydroCeiling(), 20e6)
	assert.Equal(t, s.Limits(), DefaultLimits())
	assert.Assert(t, !s.MultiNode())
	assert.Equal(t, s.CPeak()[0], 1.5)
	assert.Assert(t, math.Abs(s.Energy()-4e-8) < 1e-20)
}

func TestBuildCopiesInput(t *testing.T) {
	d := singleNodeData(4, 1)
	s, err := Build(d)
	assert.NilError(t, err)

	d.MLoad.Set(0, 0, 999)
	assert.Equal(t, s.MLoad().At(0, 0), 10.0)
}

func TestBuildPartialLimits(t *testing.T) {
	d := singleNodeData(4, 1)
	d.Limits = Limits{PV: 25}
	s, err := Build(d)
	assert.NilError(t, err)

	want := DefaultLimits()
	want.PV = 25
	assert.Equal(t, s.Limits(), want)
}

func TestGettersReturnCopies(t *testing.T) {
	s, err := Build(singleNodeData(4, 1))
	assert.NilError(t, err)

	s.CPeak()[0] = -1
	s.Factor()[0] = -1
	s.DCLoss()[0] = -1
	s.NodeLabels()[0] = "X"
	assert.Equal(t, s.CPeak()[0], 1.5)
	assert.Equal(t, s.Factor()[0], 0.0)
	assert.Equal(t, s.DCLoss()[0], 0.01)
	assert.Equal(t, s.NodeLabels()[0], "NSW")
}

func TestBuildIndivisibleSteps(t *testing.T) {
	_, err := Build(singleNodeData(5, 2))
	assert.ErrorIs(t, err, ErrShape)
}

func TestBuildMismatchedSeries(t *testing.T) {
	d := singleNodeData(4, 1)
	d.TSPV = mat.NewDense(3, 1, nil)
	_, err := Build(d)
	assert.ErrorIs(t, err, ErrShape)
}

func TestBuildFactorLength(t *testing.T) {
	d := singleNodeData(4, 1)
	d.Factor = make([]float64, 9)
	_, err := Build(d)
	assert.ErrorIs(t, err, ErrShape)
}

func TestBuildDegenerate(t *testing.T) {
	d := singleNodeData(4, 1)
	d.Efficiency = 0
	_, err := Build(d)
	assert.ErrorIs(t, err, ErrDegenerate)

	d = singleNodeData(4, 1)
	d.Resolution = 0
	_, err = Build(d)
	assert.ErrorIs(t, err, ErrDegenerate)

	d = singleNodeData(4, 1)
	d.Years = 0
	_, err = Build(d)
	assert.ErrorIs(t, err, ErrDegenerate)
}

func TestBuildDemandGrowth(t *testing.T) {
	d := singleNodeData(4, 2)
	d.Growth = 2
	s, err := Build(d)
	assert.NilError(t, err)

	assert.Equal(t, s.MLoad().At(0, 0), 10.0)
	assert.Equal(t, s.MLoad().At(1, 0), 10.0)
	assert.Equal(t, s.MLoad().At(2, 0), 20.0)
	assert.Equal(t, s.MLoad().At(3, 0), 20.0)
}

func TestBuildMultiNodeTopology(t *testing.T) {
	d := singleNodeData(4, 1)
	d.Node = "Super1"
	d.MLoad = mat.NewDense(4, 2, nil)
	d.GBaseload = nil
	d.CHydro = []float64{1, 1}
	d.CBio = []float64{0, 0}
	d.PVNodes = []int{1}
	d.WindNodes = []int{0}
	d.Lines = []Line{{0, 5}}
	_, err := Build(d)
	assert.ErrorIs(t, err, ErrShape)

	d.Lines = []Line{{1, 0}}
	s, err := Build(d)
	assert.NilError(t, err)
	assert.Assert(t, s.MultiNode())
	assert.Equal(t, s.PVNode(0), 1)
}

func TestTileBaseload(t *testing.T) {
	m, err := TileBaseload(DefaultBaseload(2, 1), 4)
	assert.NilError(t, err)

	want := []float64{2750, 2750, 0, 0}
	for i, v := range want {
		assert.Equal(t, m.At(i, 0), v)
	}

	_, err = TileBaseload(DefaultBaseload(3, 1), 4)
	assert.ErrorIs(t, err, ErrShape)
}

func TestDefaultBaseloadUnknownSteps(t *testing.T) {
	levels := DefaultBaseload(3, 2)
	assert.Equal(t, len(levels), 3)
	for _, row := range levels {
		assert.DeepEqual(t, row, []float64{0, 0})
	}
}

func TestReadConfig(t *testing.T) {
	dir := t.TempDir()

	jsonPath := filepath.Join(dir, "scenario.json")
	assert.NilError(t, os.WriteFile(jsonPath, []byte(`{"Node": "NSW", "Steps": 4, "Limits": {"PV": 25}}`), 0644))
	cfg, err := New(jsonPath)
	assert.NilError(t, err)
	assert.Equal(t, cfg.Node, "NSW")
	assert.Equal(t, cfg.Steps, 4)
	assert.Equal(t, cfg.Limits.PV, 25.0)
	assert.Equal(t, cfg.Limits.Wind, 100.0)
	assert.Equal(t, cfg.Resolution, 0.5)

	yamlPath := filepath.Join(dir, "scenario.yaml")
	assert.NilError(t, os.WriteFile(yamlPath, []byte("node: QLD\nsteps: 2\ncost_basis: cumulative\n"), 0644))
	cfg, err = New(yamlPath)
	assert.NilError(t, err)
	assert.Equal(t, cfg.Node, "QLD")
	assert.Equal(t, cfg.CostBasis, Cumulative)

	_, err = New(filepath.Join(dir, "scenario.toml"))
	assert.Assert(t, err != nil)
}

func TestDefaultConfigZones(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, len(cfg.PVZones), 22)
	assert.Equal(t, len(cfg.WindZones), 33)
	assert.Equal(t, len(cfg.Lines), len(cfg.DCLoss))
}
