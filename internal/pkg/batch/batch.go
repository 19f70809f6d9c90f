/*
batch.go Population evaluation. Candidates are the columns of a [K, M] matrix and are scored
independently on a bounded set of goroutines; they share nothing but the read-only scenario.
*/

package batch

import (
	"context"
	"fmt"
	"runtime"
	"time"

	"github.com/ohowland/firm_ce/internal/pkg/scenario"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/mat"
)

var (
	evaluationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "firm_evaluations_total",
		Help: "Objective evaluations by result",
	}, []string{"result"})

	evaluationDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "firm_evaluation_duration_seconds",
		Help:    "Duration of a single objective evaluation",
		Buckets: prometheus.ExponentialBuckets(0.0005, 2, 14),
	})

	batchSize = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "firm_batch_candidates",
		Help:    "Candidates per batch",
		Buckets: []float64{1, 10, 100, 1000, 10000},
	})
)

// Objective scores one decision vector. Implementations must be safe for concurrent use.
type Objective interface {
	Evaluate(x []float64) (float64, error)
}

// Evaluator applies an Objective across a population.
type Evaluator struct {
	objective Objective
	dim       int
	workers   int
}

// New returns an Evaluator for vectors of length dim. workers <= 0 uses GOMAXPROCS.
func New(obj Objective, dim, workers int) *Evaluator {
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	return &Evaluator{objective: obj, dim: dim, workers: workers}
}

// Dim is K, the decision vector length.
func (e *Evaluator) Dim() int { return e.dim }

// Evaluate returns one fitness per column of xs. The first error cancels the remaining
// candidates and is returned.
func (e *Evaluator) Evaluate(ctx context.Context, xs mat.Matrix) ([]float64, error) {
	k, m := xs.Dims()
	if k != e.dim {
		return nil, fmt.Errorf("batch has %d rows, want %d: %w", k, e.dim, scenario.ErrShape)
	}
	batchSize.Observe(float64(m))

	fitness := make([]float64, m)
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(e.workers)
	for j := 0; j < m; j++ {
		j := j
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			x := mat.Col(nil, j, xs)

			start := time.Now()
			f, err := e.objective.Evaluate(x)
			evaluationDuration.Observe(time.Since(start).Seconds())
			if err != nil {
				evaluationsTotal.WithLabelValues("error").Inc()
				return fmt.Errorf("candidate %d: %w", j, err)
			}
			evaluationsTotal.WithLabelValues("ok").Inc()
			fitness[j] = f
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return fitness, nil
}
