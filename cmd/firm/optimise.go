package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/ohowland/firm_ce/internal/pkg/batch"
	"github.com/ohowland/firm_ce/internal/pkg/datastreams/csvlog"
	"github.com/ohowland/firm_ce/internal/pkg/msg"
	"github.com/ohowland/firm_ce/internal/pkg/objective"
	"github.com/ohowland/firm_ce/internal/pkg/search"
	"github.com/ohowland/firm_ce/internal/pkg/solution"
	"github.com/ohowland/firm_ce/internal/pkg/warmstart"
	"github.com/ohowland/firm_ce/internal/pkg/webservice"
	"github.com/spf13/cobra"
)

func runOptimise(cmd *cobra.Command, args []string) error {
	cfg, err := loadScenarioConfig()
	if err != nil {
		return err
	}
	searchCfg, err := searchConfig(cmd)
	if err != nil {
		return err
	}

	log.Println("[Main] Building Scenario")
	ev, err := buildEvaluator(cfg)
	if err != nil {
		return err
	}
	if err := ev.CheckLimits(); err != nil {
		if errors.Is(err, objective.ErrInfeasible) {
			log.Println("[Main] optimisation not possible:", err)
		}
		return err
	}
	sc := ev.Scenario()

	run, err := uuid.NewUUID()
	if err != nil {
		return err
	}
	pub := msg.NewPublisher(run)
	var wg sync.WaitGroup
	var srv *http.Server
	defer func() {
		if srv != nil {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			if err := srv.Shutdown(ctx); err != nil {
				log.Println("[Main] webservice shutdown:", err)
			}
			cancel()
		}
		pub.Close()
		wg.Wait()
		log.Println("[Main] Stopped run", run)
	}()
	launch := func(process func()) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			process()
		}()
	}

	log.Println("[Main] Linking Sinks")
	stamp := time.Now().Format("20060102T150405")
	csvHandler, err := csvlog.New(resultsDir, cfg.Node, cfg.Steps, stamp, pub)
	if err != nil {
		return err
	}
	launch(csvHandler.Process)
	for _, spec := range sinkSpecs {
		sink, err := newSink(spec, pub)
		if err != nil {
			return err
		}
		launch(sink.Process)
	}

	if listenAddr != "" {
		app, err := webservice.New(run, pub)
		if err != nil {
			return err
		}
		launch(app.Process)
		srv = &http.Server{Addr: listenAddr, Handler: app.Router()}
		go func() {
			log.Println("[Main] Starting webservice on", listenAddr)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Println("[Main] webservice:", err)
			}
		}()
	}

	lower, upper := solution.Lower(sc), solution.Upper(sc)
	de, err := search.New(searchCfg, batch.New(ev, len(lower), workers), lower, upper, pub)
	if err != nil {
		return err
	}

	var initial []float64
	if initPath != "" {
		initial, err = warmstart.Load(initPath, len(lower))
		if err != nil {
			log.Printf("[Main] starting without a previous result: %v\n", err)
			initial = nil
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	log.Printf("[Main] Starting search: population %d, dimension %d\n", de.Size(), len(lower))
	res, err := de.Run(ctx, initial)
	switch {
	case errors.Is(err, context.Canceled):
		log.Printf("[Main] search interrupted after %d generations, best f(x)= %g\n", res.Iterations, res.Fitness)
		return nil
	case err != nil:
		return err
	}
	log.Printf("[Main] search finished after %d generations in %v: f(x)= %g, converged %v\n",
		res.Iterations, res.Elapsed, res.Fitness, res.Converged)
	return nil
}
