package scenario

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config is the on-disk description of a scenario. Paths are relative to the data directory.
type Config struct {
	Node       string   `json:"Node" yaml:"node"`
	Nodes      []string `json:"Nodes" yaml:"nodes"`
	PVZones    []string `json:"PVZones" yaml:"pv_zones"`
	WindZones  []string `json:"WindZones" yaml:"wind_zones"`
	Steps      int      `json:"Steps" yaml:"steps"`
	Resolution float64  `json:"Resolution" yaml:"resolution"`
	Growth     float64  `json:"DemandGrowth" yaml:"demand_growth"`
	Efficiency float64  `json:"Efficiency" yaml:"efficiency"`

	Limits       Limits    `json:"Limits" yaml:"limits"`
	HydroCeiling float64   `json:"HydroCeiling" yaml:"hydro_ceiling"`
	CostBasis    CostBasis `json:"CostBasis" yaml:"cost_basis"`

	DCLoss []float64 `json:"DCLoss" yaml:"dc_loss"`
	Lines  []Line    `json:"Lines" yaml:"lines"`
	// Root is the node radial flows drain towards.
	Root string `json:"Root" yaml:"root"`

	// Baseload holds per-step, per-node MW levels; empty selects DefaultBaseload.
	Baseload [][]float64 `json:"Baseload" yaml:"baseload"`

	Data DataFiles `json:"Data" yaml:"data"`
}

// DataFiles locates the input series.
type DataFiles struct {
	Dir      string `json:"Dir" yaml:"dir"`
	Load     string `json:"Load" yaml:"load"`
	PV       string `json:"PV" yaml:"pv"`
	Wind     string `json:"Wind" yaml:"wind"`
	HydroBio string `json:"HydroBio" yaml:"hydro_bio"`
	Factor   string `json:"Factor" yaml:"factor"`
}

// DefaultConfig mirrors the eight-node reference system.
func DefaultConfig() Config {
	nodes := []string{"FNQ", "NSW", "NT", "QLD", "SA", "TAS", "VIC", "WA"}
	pv := repeat(
		"NSW", 7, "FNQ", 1, "QLD", 2, "FNQ", 3, "SA", 6, "TAS", 0, "VIC", 1, "WA", 1, "NT", 1)
	wind := repeat(
		"NSW", 8, "FNQ", 1, "QLD", 2, "FNQ", 2, "SA", 8, "TAS", 4, "VIC", 4, "WA", 3, "NT", 1)

	loss := []float64{1500, 1000, 1000, 800, 1200, 2400, 400}
	for i := range loss {
		loss[i] *= 0.03 * 1e-3
	}

	return Config{
		Node:       "Super1",
		Nodes:      nodes,
		PVZones:    pv,
		WindZones:  wind,
		Steps:      1,
		Resolution: 0.5,
		Growth:     1,
		Efficiency: 0.8,
		Limits:     DefaultLimits(),
		CostBasis:  Marginal,
		DCLoss:     loss,
		// FNQ-QLD, NSW-QLD, NSW-SA, NSW-VIC, NT-SA, SA-WA, TAS-VIC
		Lines: []Line{{0, 3}, {1, 3}, {4, 1}, {6, 1}, {2, 4}, {7, 4}, {5, 6}},
		Root:  "NSW",
		Data: DataFiles{
			Dir:      "Data",
			Load:     "electricity16year.csv",
			PV:       "pv16year.csv",
			Wind:     "wind16year.csv",
			HydroBio: "hydrobio.csv",
			Factor:   "factor.csv",
		},
	}
}

func repeat(pairs ...interface{}) []string {
	out := make([]string, 0)
	for i := 0; i+1 < len(pairs); i += 2 {
		label := pairs[i].(string)
		for n := 0; n < pairs[i+1].(int); n++ {
			out = append(out, label)
		}
	}
	return out
}

// New reads a JSON or YAML scenario config over DefaultConfig. The format follows the
// file extension.
func New(configPath string) (Config, error) {
	raw, err := os.ReadFile(configPath)
	if err != nil {
		return Config{}, err
	}

	cfg := DefaultConfig()
	switch strings.ToLower(filepath.Ext(configPath)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(raw, &cfg)
	case ".json":
		err = json.Unmarshal(raw, &cfg)
	default:
		return Config{}, fmt.Errorf("unsupported config format %q", filepath.Ext(configPath))
	}
	if err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Path joins a data file name onto the data directory.
func (c Config) Path(name string) string {
	return filepath.Join(c.Data.Dir, name)
}
