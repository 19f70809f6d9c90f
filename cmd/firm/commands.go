package main

import (
	"github.com/ohowland/firm_ce/internal/pkg/search"
	"github.com/spf13/cobra"
)

var (
	maxIter       int
	popSize       int
	mutation      float64
	recombination float64
	seed          int64
	scenarioPath  string
	searchPath    string
	node          string
	steps         int
	workers       int
	initPath      string
	resultsDir    string
	listenAddr    string
	sinkSpecs     []string
	vectorPath    string

	rootCmd = &cobra.Command{
		Use:   "firm",
		Short: "Least-cost capacity expansion of a renewable grid",
		Long: `firm searches for PV, wind and pumped hydro capacities that meet load over
a historical record at the lowest levelised cost.`,
		SilenceUsage: true,
	}

	optimiseCmd = &cobra.Command{
		Use:     "optimise",
		Short:   "Run differential evolution over the build plan",
		Aliases: []string{"optimize"},
		Args:    cobra.NoArgs,
		RunE:    runOptimise,
	}

	evaluateCmd = &cobra.Command{
		Use:   "evaluate",
		Short: "Print the objective breakdown of one decision vector",
		Args:  cobra.NoArgs,
		RunE:  runEvaluate,
	}
)

func init() {
	defaults := search.DefaultConfig()

	for _, cmd := range []*cobra.Command{optimiseCmd, evaluateCmd} {
		cmd.Flags().StringVarP(&scenarioPath, "scenario", "s", "", "scenario config file, JSON or YAML (default: built-in eight node system)")
		cmd.Flags().StringVarP(&node, "node", "n", "", "node to model, or Super1 for the whole network")
		cmd.Flags().IntVar(&steps, "steps", 0, "number of build steps")
		cmd.Flags().StringVar(&resultsDir, "results", "Results", "directory of result files")
	}

	f := optimiseCmd.Flags()
	f.IntVarP(&maxIter, "maxiter", "i", defaults.MaxIter, "maximum generations")
	f.IntVarP(&popSize, "popsize", "p", defaults.PopSize, "population multiplier")
	f.Float64VarP(&mutation, "mutation", "m", defaults.Mutation, "upper end of the dithered mutation factor")
	f.Float64VarP(&recombination, "recombination", "r", defaults.Recombination, "crossover probability")
	f.Int64Var(&seed, "seed", defaults.Seed, "random seed")
	f.StringVar(&searchPath, "config", "", "search config file, JSON or YAML; flags given explicitly override it")
	f.IntVarP(&workers, "workers", "w", 0, "parallel evaluations (default: GOMAXPROCS)")
	f.StringVar(&initPath, "init", "", "previous result file to warm start from")
	f.StringVar(&listenAddr, "listen", "", "address of the status webservice, e.g. :8080")
	f.StringArrayVar(&sinkSpecs, "sink", nil, "persistence sink as kind=config.json; kind is mongodb, mqtt, nats, sql or influx")

	evaluateCmd.Flags().StringVarP(&vectorPath, "x", "x", "", "CSV file whose last row is the decision vector (default: the stored result)")

	rootCmd.AddCommand(optimiseCmd, evaluateCmd)
}
