/*
ingest.go Loads the input series named by a scenario config and assembles scenario.Data.
Time series files carry a header row and four leading date columns; data columns follow in
the order of the config's label lists.
*/

package ingest

import (
	"encoding/csv"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"

	"github.com/ohowland/firm_ce/internal/pkg/scenario"
	"gonum.org/v1/gonum/mat"
	"gopkg.in/cheggaaa/pb.v1"
)

// DateColumns is the number of leading date columns in a time series file.
const DateColumns = 4

// Progress toggles the per-file progress bars.
var Progress = true

func readRecords(path string) ([][]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	return r.ReadAll()
}

func parse(path string, row, col int, s string) (float64, error) {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0, fmt.Errorf("%s row %d column %d: %w", path, row, col, err)
	}
	return v, nil
}

// ReadSeries reads cols data columns after the date columns of every row below the header.
func ReadSeries(path string, cols int) (*mat.Dense, error) {
	raw, err := readRecords(path)
	if err != nil {
		return nil, err
	}
	rows := len(raw) - 1
	if rows < 1 || cols < 1 {
		return nil, fmt.Errorf("%s: %d rows and %d columns requested: %w", path, rows, cols, scenario.ErrShape)
	}

	var bar *pb.ProgressBar
	if Progress {
		bar = pb.StartNew(rows)
		bar.ShowTimeLeft = false
	}

	m := mat.NewDense(rows, cols, nil)
	for i := 1; i <= rows; i++ {
		rec := raw[i]
		if len(rec) < DateColumns+cols {
			return nil, fmt.Errorf("%s row %d has %d fields, want %d: %w", path, i, len(rec), DateColumns+cols, scenario.ErrShape)
		}
		for j := 0; j < cols; j++ {
			v, err := parse(path, i, DateColumns+j, rec[DateColumns+j])
			if err != nil {
				return nil, err
			}
			m.Set(i-1, j, v)
		}
		if bar != nil {
			bar.Increment()
		}
	}
	if bar != nil {
		bar.FinishPrint("\t" + path + " loaded")
	}
	return m, nil
}

// ReadHydroBio reads per-node hydro and bio capacities in MW from the second and third
// columns below the header and returns them in GW.
func ReadHydroBio(path string, nodes int) (hydro, bio []float64, err error) {
	raw, err := readRecords(path)
	if err != nil {
		return nil, nil, err
	}
	if len(raw)-1 != nodes {
		return nil, nil, fmt.Errorf("%s has %d node rows, want %d: %w", path, len(raw)-1, nodes, scenario.ErrShape)
	}
	hydro, bio = make([]float64, nodes), make([]float64, nodes)
	for i := 1; i < len(raw); i++ {
		if len(raw[i]) < 3 {
			return nil, nil, fmt.Errorf("%s row %d has %d fields, want 3: %w", path, i, len(raw[i]), scenario.ErrShape)
		}
		if hydro[i-1], err = parse(path, i, 1, raw[i][1]); err != nil {
			return nil, nil, err
		}
		if bio[i-1], err = parse(path, i, 2, raw[i][2]); err != nil {
			return nil, nil, err
		}
		hydro[i-1] *= 1e-3
		bio[i-1] *= 1e-3
	}
	return hydro, bio, nil
}

// ReadFactor reads the second column of every row. A first row that does not parse is
// taken as a header.
func ReadFactor(path string) ([]float64, error) {
	raw, err := readRecords(path)
	if err != nil {
		return nil, err
	}
	out := make([]float64, 0, len(raw))
	for i, rec := range raw {
		if len(rec) < 2 {
			return nil, fmt.Errorf("%s row %d has no value column: %w", path, i, scenario.ErrShape)
		}
		v, err := parse(path, i, 1, rec[1])
		if err != nil {
			if i == 0 {
				continue
			}
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

// Coverage returns the node labels a node selection keeps. Any selection starting with
// "Super" keeps every node.
func Coverage(cfg scenario.Config) ([]string, error) {
	if strings.HasPrefix(cfg.Node, "Super") {
		return append([]string(nil), cfg.Nodes...), nil
	}
	if NodeIndex(cfg.Nodes, cfg.Node) < 0 {
		return nil, fmt.Errorf("node %q is not one of %v: %w", cfg.Node, cfg.Nodes, scenario.ErrShape)
	}
	return []string{cfg.Node}, nil
}

// NodeIndex is the position of label in labels, or -1.
func NodeIndex(labels []string, label string) int {
	for i, l := range labels {
		if l == label {
			return i
		}
	}
	return -1
}

// selectColumns keeps the columns whose label is covered and maps each kept column to its
// node index within coverage. No kept columns gives a nil matrix.
func selectColumns(m *mat.Dense, labels, coverage []string) (*mat.Dense, []int) {
	var keep, nodes []int
	for j, l := range labels {
		if n := NodeIndex(coverage, l); n >= 0 {
			keep = append(keep, j)
			nodes = append(nodes, n)
		}
	}
	if len(keep) == 0 {
		return nil, []int{}
	}
	rows, _ := m.Dims()
	out := mat.NewDense(rows, len(keep), nil)
	col := make([]float64, rows)
	for k, j := range keep {
		mat.Col(col, j, m)
		out.SetCol(k, col)
	}
	return out, nodes
}

// Load reads every file named in cfg and returns the data for the covered nodes.
func Load(cfg scenario.Config) (scenario.Data, error) {
	coverage, err := Coverage(cfg)
	if err != nil {
		return scenario.Data{}, err
	}

	log.Println("[Ingest] loading", cfg.Data.Dir)
	load, err := ReadSeries(cfg.Path(cfg.Data.Load), len(cfg.Nodes))
	if err != nil {
		return scenario.Data{}, err
	}
	pv, err := ReadSeries(cfg.Path(cfg.Data.PV), len(cfg.PVZones))
	if err != nil {
		return scenario.Data{}, err
	}
	wind, err := ReadSeries(cfg.Path(cfg.Data.Wind), len(cfg.WindZones))
	if err != nil {
		return scenario.Data{}, err
	}
	hydro, bio, err := ReadHydroBio(cfg.Path(cfg.Data.HydroBio), len(cfg.Nodes))
	if err != nil {
		return scenario.Data{}, err
	}
	factor, err := ReadFactor(cfg.Path(cfg.Data.Factor))
	if err != nil {
		return scenario.Data{}, err
	}

	return Assemble(cfg, coverage, load, pv, wind, hydro, bio, factor)
}

// Assemble restricts full-system inputs to coverage and fills the remaining scenario fields
// from cfg.
func Assemble(cfg scenario.Config, coverage []string, load, pv, wind *mat.Dense,
	hydro, bio, factor []float64) (scenario.Data, error) {
	mLoad, _ := selectColumns(load, cfg.Nodes, coverage)
	if mLoad == nil {
		return scenario.Data{}, fmt.Errorf("no load columns for %v: %w", coverage, scenario.ErrShape)
	}
	tsPV, pvNodes := selectColumns(pv, cfg.PVZones, coverage)
	tsWind, windNodes := selectColumns(wind, cfg.WindZones, coverage)

	cHydro := make([]float64, len(coverage))
	cBio := make([]float64, len(coverage))
	for i, label := range coverage {
		n := NodeIndex(cfg.Nodes, label)
		cHydro[i], cBio[i] = hydro[n], bio[n]
	}

	intervals, _ := mLoad.Dims()
	levels := selectBaseload(cfg.Baseload, cfg.Nodes, coverage)
	if len(levels) == 0 {
		levels = scenario.DefaultBaseload(cfg.Steps, len(coverage))
	}
	baseload, err := scenario.TileBaseload(levels, intervals)
	if err != nil {
		return scenario.Data{}, err
	}

	return scenario.Data{
		Node:         cfg.Node,
		NodeLabels:   coverage,
		Steps:        cfg.Steps,
		Resolution:   cfg.Resolution,
		Efficiency:   cfg.Efficiency,
		Growth:       cfg.Growth,
		MLoad:        mLoad,
		TSPV:         tsPV,
		TSWind:       tsWind,
		GBaseload:    baseload,
		PVNodes:      pvNodes,
		WindNodes:    windNodes,
		CHydro:       cHydro,
		CBio:         cBio,
		DCLoss:       cfg.DCLoss,
		Lines:        cfg.Lines,
		Factor:       factor,
		Limits:       cfg.Limits,
		HydroCeiling: cfg.HydroCeiling,
		CostBasis:    cfg.CostBasis,
	}, nil
}

// selectBaseload keeps the coverage columns of a per-step baseload table given for every
// node. Tables of any other width pass through unchanged.
func selectBaseload(levels [][]float64, labels, coverage []string) [][]float64 {
	if len(levels) == 0 || len(coverage) == len(labels) {
		return levels
	}
	out := make([][]float64, len(levels))
	for i, row := range levels {
		if len(row) != len(labels) {
			return levels
		}
		out[i] = make([]float64, len(coverage))
		for j, label := range coverage {
			out[i][j] = row[NodeIndex(labels, label)]
		}
	}
	return out
}
