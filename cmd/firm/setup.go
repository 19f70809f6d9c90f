package main

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/ohowland/firm_ce/internal/pkg/ingest"
	"github.com/ohowland/firm_ce/internal/pkg/objective"
	"github.com/ohowland/firm_ce/internal/pkg/scenario"
	"github.com/ohowland/firm_ce/internal/pkg/search"
	"github.com/ohowland/firm_ce/internal/pkg/transmission"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

func loadScenarioConfig() (scenario.Config, error) {
	cfg := scenario.DefaultConfig()
	if scenarioPath != "" {
		var err error
		if cfg, err = scenario.New(scenarioPath); err != nil {
			return cfg, err
		}
	}
	if node != "" {
		cfg.Node = node
	}
	if steps > 0 {
		cfg.Steps = steps
	}
	return cfg, nil
}

// buildEvaluator loads the data for cfg and returns the objective over it.
func buildEvaluator(cfg scenario.Config) (*objective.Evaluator, error) {
	data, err := ingest.Load(cfg)
	if err != nil {
		return nil, err
	}
	sc, err := scenario.Build(data)
	if err != nil {
		return nil, err
	}
	log.Printf("[Main] scenario %s: %d nodes, %d intervals, %d steps, %d years\n",
		sc.Node(), sc.Nodes(), sc.Intervals(), sc.Steps(), sc.Years())

	var solver transmission.Solver = transmission.Zero{}
	if sc.MultiNode() {
		root := ingest.NodeIndex(sc.NodeLabels(), cfg.Root)
		if root < 0 {
			return nil, fmt.Errorf("root node %q is not one of %v: %w", cfg.Root, sc.NodeLabels(), scenario.ErrShape)
		}
		radial, err := transmission.NewRadial(sc, root)
		if err != nil {
			return nil, err
		}
		solver = radial
	}
	return objective.New(sc, solver), nil
}

// searchConfig reads --config if given, then applies the flags set on cmd.
func searchConfig(cmd *cobra.Command) (search.Config, error) {
	cfg := search.DefaultConfig()
	if searchPath != "" {
		raw, err := os.ReadFile(searchPath)
		if err != nil {
			return cfg, err
		}
		switch strings.ToLower(filepath.Ext(searchPath)) {
		case ".yaml", ".yml":
			err = yaml.Unmarshal(raw, &cfg)
		default:
			err = json.Unmarshal(raw, &cfg)
		}
		if err != nil {
			return cfg, fmt.Errorf("%s: %w", searchPath, err)
		}
	}

	f := cmd.Flags()
	if searchPath == "" || f.Changed("maxiter") {
		cfg.MaxIter = maxIter
	}
	if searchPath == "" || f.Changed("popsize") {
		cfg.PopSize = popSize
	}
	if searchPath == "" || f.Changed("mutation") {
		cfg.Mutation = mutation
	}
	if searchPath == "" || f.Changed("recombination") {
		cfg.Recombination = recombination
	}
	if searchPath == "" || f.Changed("seed") {
		cfg.Seed = seed
	}
	return cfg, nil
}
