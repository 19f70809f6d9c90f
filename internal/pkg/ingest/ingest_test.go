package ingest

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/ohowland/firm_ce/internal/pkg/scenario"
	"gonum.org/v1/gonum/mat"
	"gotest.tools/v3/assert"
)

func init() {
	Progress = false
}

func writeFile(t *testing.T, dir, name, content string) {
	assert.NilError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
}

// twoNodes writes a two-node, four-interval data set: node A has two PV zones, node B one
// PV zone and one wind zone.
func twoNodes(t *testing.T) scenario.Config {
	dir := t.TempDir()
	writeFile(t, dir, "load.csv", `Year,Month,Day,Interval,A,B
2020,1,1,1,100,200
2020,1,1,2,110,210
2020,1,1,3,120,220
2020,1,1,4,130,230
`)
	writeFile(t, dir, "pv.csv", `Year,Month,Day,Interval,A1,A2,B1
2020,1,1,1,0.1,0.2,0.3
2020,1,1,2,0.1,0.2,0.3
2020,1,1,3,0.1,0.2,0.3
2020,1,1,4,0.1,0.2,0.3
`)
	writeFile(t, dir, "wind.csv", `Year,Month,Day,Interval,B1
2020,1,1,1,0.5
2020,1,1,2,0.5
2020,1,1,3,0.5
2020,1,1,4,0.5
`)
	writeFile(t, dir, "hydrobio.csv", `Node,Hydro,Bio
A,1000,500
B,2000,0
`)
	writeFile(t, dir, "factor.csv", `Name,Value
pv,1
wind,2
php,3
phs,4
dc,5
pvfom,6
windfom,7
hydro,8
x,9
y,10
`)

	return scenario.Config{
		Node:       "Super1",
		Nodes:      []string{"A", "B"},
		PVZones:    []string{"A", "A", "B"},
		WindZones:  []string{"B"},
		Steps:      1,
		Resolution: 2190,
		Efficiency: 0.8,
		DCLoss:     []float64{0.03},
		Lines:      []scenario.Line{{From: 0, To: 1}},
		Root:       "B",
		Data: scenario.DataFiles{
			Dir:      dir,
			Load:     "load.csv",
			PV:       "pv.csv",
			Wind:     "wind.csv",
			HydroBio: "hydrobio.csv",
			Factor:   "factor.csv",
		},
	}
}

func TestReadSeries(t *testing.T) {
	cfg := twoNodes(t)
	m, err := ReadSeries(cfg.Path("load.csv"), 2)
	assert.NilError(t, err)

	r, c := m.Dims()
	assert.Equal(t, r, 4)
	assert.Equal(t, c, 2)
	assert.Equal(t, m.At(3, 1), 230.0)

	_, err = ReadSeries(cfg.Path("load.csv"), 3)
	assert.ErrorIs(t, err, scenario.ErrShape)
}

func TestReadHydroBio(t *testing.T) {
	cfg := twoNodes(t)
	hydro, bio, err := ReadHydroBio(cfg.Path("hydrobio.csv"), 2)
	assert.NilError(t, err)
	assert.DeepEqual(t, hydro, []float64{1, 2})
	assert.DeepEqual(t, bio, []float64{0.5, 0})

	_, _, err = ReadHydroBio(cfg.Path("hydrobio.csv"), 3)
	assert.ErrorIs(t, err, scenario.ErrShape)
}

func TestReadFactor(t *testing.T) {
	cfg := twoNodes(t)
	f, err := ReadFactor(cfg.Path("factor.csv"))
	assert.NilError(t, err)
	assert.DeepEqual(t, f, []float64{1, 2, 3, 4, 5, 6, 7, 8, 9, 10})
}

func TestLoadAllNodes(t *testing.T) {
	cfg := twoNodes(t)
	d, err := Load(cfg)
	assert.NilError(t, err)

	assert.DeepEqual(t, d.NodeLabels, []string{"A", "B"})
	assert.DeepEqual(t, d.PVNodes, []int{0, 0, 1})
	assert.DeepEqual(t, d.WindNodes, []int{1})

	s, err := scenario.Build(d)
	assert.NilError(t, err)
	assert.Assert(t, s.MultiNode())
	assert.Equal(t, s.Years(), 1)
	assert.Equal(t, s.PVZones(), 3)
	assert.Equal(t, s.VectorLen(), 3+1+2+1)
	assert.DeepEqual(t, s.CPeak(), []float64{1.5, 2})
}

func TestLoadSingleNode(t *testing.T) {
	cfg := twoNodes(t)
	cfg.Node = "A"
	d, err := Load(cfg)
	assert.NilError(t, err)

	assert.DeepEqual(t, d.NodeLabels, []string{"A"})
	assert.Assert(t, d.TSWind == nil)
	assert.DeepEqual(t, d.PVNodes, []int{0, 0})
	assert.Assert(t, mat.Equal(d.MLoad, mat.NewDense(4, 1, []float64{100, 110, 120, 130})))

	s, err := scenario.Build(d)
	assert.NilError(t, err)
	assert.Assert(t, !s.MultiNode())
	assert.Equal(t, s.WindZones(), 0)
	assert.Equal(t, s.VectorLen(), 2+0+1+1)
}

func TestLoadSingleNodeNetworkBaseload(t *testing.T) {
	cfg := twoNodes(t)
	cfg.Node = "B"
	cfg.Steps = 2
	cfg.Baseload = [][]float64{{10, 20}, {30, 40}}
	d, err := Load(cfg)
	assert.NilError(t, err)

	assert.Assert(t, mat.Equal(d.GBaseload, mat.NewDense(4, 1, []float64{20, 20, 40, 40})))
	_, err = scenario.Build(d)
	assert.NilError(t, err)
}

func TestSelectBaseload(t *testing.T) {
	levels := [][]float64{{1, 2, 3}}
	assert.DeepEqual(t, selectBaseload(levels, []string{"A", "B", "C"}, []string{"C", "A"}),
		[][]float64{{3, 1}})
	// already narrowed to the covered node
	assert.DeepEqual(t, selectBaseload([][]float64{{5}}, []string{"A", "B"}, []string{"B"}),
		[][]float64{{5}})
	assert.Assert(t, selectBaseload(nil, []string{"A", "B"}, []string{"B"}) == nil)
}

func TestCoverageUnknownNode(t *testing.T) {
	cfg := twoNodes(t)
	cfg.Node = "C"
	_, err := Coverage(cfg)
	assert.ErrorIs(t, err, scenario.ErrShape)
}

func TestLoadMissingFile(t *testing.T) {
	cfg := twoNodes(t)
	cfg.Data.Wind = "missing.csv"
	_, err := Load(cfg)
	assert.Assert(t, os.IsNotExist(err))
}
