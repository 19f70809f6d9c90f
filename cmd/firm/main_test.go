package main

import (
	"bytes"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/ohowland/firm_ce/internal/pkg/msg"
	"github.com/ohowland/firm_ce/internal/pkg/objective"
	"github.com/ohowland/firm_ce/internal/pkg/scenario"
	"github.com/ohowland/firm_ce/internal/pkg/solution"
	"github.com/spf13/cobra"
	"gonum.org/v1/gonum/mat"
	"gotest.tools/v3/assert"
)

func TestParseSink(t *testing.T) {
	kind, path, err := parseSink("MongoDB=./config/mongo.json")
	assert.NilError(t, err)
	assert.Equal(t, kind, "mongodb")
	assert.Equal(t, path, "./config/mongo.json")

	for _, bad := range []string{"mongodb", "=x.json", "nats="} {
		_, _, err := parseSink(bad)
		assert.ErrorContains(t, err, "want kind=config.json")
	}
}

func TestNewSinkUnknownKind(t *testing.T) {
	_, err := newSink("kafka=x.json", msg.NewPublisher(uuid.New()))
	assert.ErrorContains(t, err, "unknown kind")
}

func TestNewSink(t *testing.T) {
	pub := msg.NewPublisher(uuid.New())
	sink, err := newSink("nats=../../internal/pkg/datastreams/natshandler/testdata/nats_config_test.json", pub)
	assert.NilError(t, err)
	sink.Stop()
}

func TestSearchConfigFlags(t *testing.T) {
	cmd := &cobra.Command{}
	cmd.Flags().IntVarP(&maxIter, "maxiter", "i", 1000, "")
	cmd.Flags().IntVarP(&popSize, "popsize", "p", 100, "")
	cmd.Flags().Float64VarP(&mutation, "mutation", "m", 0.6, "")
	cmd.Flags().Float64VarP(&recombination, "recombination", "r", 0.3, "")
	cmd.Flags().Int64Var(&seed, "seed", 1, "")
	assert.NilError(t, cmd.Flags().Parse([]string{"-i", "20", "-m", "0.9"}))

	searchPath = ""
	cfg, err := searchConfig(cmd)
	assert.NilError(t, err)
	assert.Equal(t, cfg.MaxIter, 20)
	assert.Equal(t, cfg.PopSize, 100)
	assert.Equal(t, cfg.Mutation, 0.9)
	assert.Equal(t, cfg.Recombination, 0.3)
}

func TestPrintBreakdown(t *testing.T) {
	s, err := scenario.Build(scenario.Data{
		Node:       "NSW",
		Steps:      1,
		Resolution: 1,
		Years:      1,
		Efficiency: 0.8,
		MLoad:      mat.NewDense(2, 1, []float64{100, 100}),
		TSPV:       mat.NewDense(2, 1, []float64{1, 1}),
		CHydro:     []float64{0},
		CBio:       []float64{0},
		DCLoss:     []float64{0},
		Factor:     make([]float64, 10),
	})
	assert.NilError(t, err)

	b, err := objective.New(s, nil).Breakdown(make([]float64, solution.NewLayout(s).Len))
	assert.NilError(t, err)

	var out bytes.Buffer
	assert.NilError(t, printBreakdown(&out, b))
	assert.Assert(t, strings.Contains(out.String(), "Fitness"))
	assert.Assert(t, strings.Contains(out.String(), "Storage energy (GWh)"))
}
