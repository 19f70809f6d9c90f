package main

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/ohowland/firm_ce/internal/pkg/datastreams/csvlog"
	"github.com/ohowland/firm_ce/internal/pkg/objective"
	"github.com/ohowland/firm_ce/internal/pkg/warmstart"
	"github.com/spf13/cobra"
)

func runEvaluate(cmd *cobra.Command, args []string) error {
	cfg, err := loadScenarioConfig()
	if err != nil {
		return err
	}
	ev, err := buildEvaluator(cfg)
	if err != nil {
		return err
	}

	path := vectorPath
	if path == "" {
		path = csvlog.ResultPath(resultsDir, cfg.Node, cfg.Steps)
	}
	x, err := warmstart.Load(path, ev.Scenario().VectorLen())
	if err != nil {
		return err
	}
	b, err := ev.Breakdown(x)
	if err != nil {
		return err
	}
	return printBreakdown(cmd.OutOrStdout(), b)
}

func printBreakdown(out io.Writer, b objective.Breakdown) error {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	sol := b.Solution
	rows := []struct {
		name  string
		value interface{}
	}{
		{"Fitness", b.Fitness},
		{"LCOE ($/MWh)", b.LCOE},
		{"Cost", b.Cost},
		{"Energy (PWh p.a.)", b.Energy},
		{"Loss (PWh p.a.)", b.Loss},
		{"Hydro & bio (MWh p.a.)", b.Hydro},
		{"Hydro penalty", b.PenHydro},
		{"Deficit penalty (MWh)", b.PenDeficit},
		{"PV (GW)", sol.CPV()},
		{"Wind (GW)", sol.CWind()},
		{"Storage power (GW)", sol.CPHP()},
		{"Storage energy (GWh)", sol.CPHS()},
		{"Lines (GW)", b.CDC},
	}
	for _, r := range rows {
		if _, err := fmt.Fprintf(w, "%s\t%v\n", r.name, r.value); err != nil {
			return err
		}
	}
	return w.Flush()
}
