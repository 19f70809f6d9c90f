/*
search.go Differential evolution over the box-bounded decision space. Every generation is
scored as one batch, and selection happens only after the whole batch returns, so the
objective may be evaluated on many goroutines.
*/

package search

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math"
	"math/rand"
	"time"

	"github.com/ohowland/firm_ce/internal/pkg/batch"
	"github.com/ohowland/firm_ce/internal/pkg/msg"
	"github.com/ohowland/firm_ce/internal/pkg/scenario"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

// MutationFloor is the lower end of the dithered mutation factor.
const MutationFloor = 0.2

const minPopulation = 5

// Config holds the search parameters.
type Config struct {
	MaxIter       int     `json:"MaxIter" yaml:"max_iter"`
	PopSize       int     `json:"PopSize" yaml:"pop_size"` // population = PopSize * K
	Mutation      float64 `json:"Mutation" yaml:"mutation"`
	Recombination float64 `json:"Recombination" yaml:"recombination"`
	Seed          int64   `json:"Seed" yaml:"seed"`
}

// DefaultConfig matches the command line defaults.
func DefaultConfig() Config {
	return Config{
		MaxIter:       1000,
		PopSize:       100,
		Mutation:      0.6,
		Recombination: 0.3,
		Seed:          1,
	}
}

func (c Config) validate() error {
	switch {
	case c.MaxIter <= 0:
		return fmt.Errorf("maxiter must be positive, got %d", c.MaxIter)
	case c.PopSize <= 0:
		return fmt.Errorf("popsize must be positive, got %d", c.PopSize)
	case c.Mutation < 0 || c.Mutation > 2:
		return fmt.Errorf("mutation must lie in [0,2], got %v", c.Mutation)
	case c.Recombination < 0 || c.Recombination > 1:
		return fmt.Errorf("recombination must lie in [0,1], got %v", c.Recombination)
	}
	return nil
}

// Iteration is published once per generation.
type Iteration struct {
	Iteration int           `json:"iteration"`
	Elapsed   time.Duration `json:"elapsed"`
	Fitness   float64       `json:"fitness"`
	X         []float64     `json:"x"`
}

// Result is published once when a run ends.
type Result struct {
	Iterations int           `json:"iterations"`
	Elapsed    time.Duration `json:"elapsed"`
	Fitness    float64       `json:"fitness"`
	X          []float64     `json:"x"`
	Converged  bool          `json:"converged"`
}

// Publisher receives progress. *msg.PubSub satisfies it.
type Publisher interface {
	Publish(msg.Topic, interface{})
}

// DE is a differential evolution driver using the best/1/bin strategy.
type DE struct {
	config    Config
	evaluator *batch.Evaluator
	lower     []float64
	upper     []float64
	publisher Publisher
	rng       *rand.Rand
}

// New validates the configuration and bounds. publisher may be nil.
func New(cfg Config, ev *batch.Evaluator, lower, upper []float64, publisher Publisher) (*DE, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	if len(lower) != ev.Dim() || len(upper) != ev.Dim() {
		return nil, fmt.Errorf("bounds have %d and %d entries, want %d: %w",
			len(lower), len(upper), ev.Dim(), scenario.ErrShape)
	}
	for i := range lower {
		if lower[i] > upper[i] {
			return nil, fmt.Errorf("bound %d: lower %v above upper %v: %w", i, lower[i], upper[i], scenario.ErrShape)
		}
	}
	return &DE{
		config:    cfg,
		evaluator: ev,
		lower:     append([]float64(nil), lower...),
		upper:     append([]float64(nil), upper...),
		publisher: publisher,
		rng:       rand.New(rand.NewSource(cfg.Seed)),
	}, nil
}

// Size is the population size.
func (d *DE) Size() int {
	m := d.config.PopSize * d.evaluator.Dim()
	if m < minPopulation {
		return minPopulation
	}
	return m
}

// Run searches until MaxIter generations have passed, the population has converged or
// ctx is done. initial, when non-nil, replaces the first population member. On
// cancellation the best result so far is returned along with ctx's error.
func (d *DE) Run(ctx context.Context, initial []float64) (Result, error) {
	start := time.Now()
	k, m := d.evaluator.Dim(), d.Size()

	pop := d.initPopulation(m)
	if initial != nil {
		if len(initial) != k {
			return Result{}, fmt.Errorf("initial guess has %d entries, want %d: %w", len(initial), k, scenario.ErrShape)
		}
		x := append([]float64(nil), initial...)
		d.clip(x)
		pop.SetCol(0, x)
	}

	energies, err := d.evaluator.Evaluate(ctx, pop)
	if err != nil {
		return Result{}, err
	}
	best := floats.MinIdx(energies)

	result := Result{}
	trials := mat.NewDense(k, m, nil)
	for gen := 1; gen <= d.config.MaxIter; gen++ {
		f := d.dither()
		for i := 0; i < m; i++ {
			trials.SetCol(i, d.trial(pop, i, best, f))
		}

		trialEnergies, err := d.evaluator.Evaluate(ctx, trials)
		if err != nil {
			result = d.result(pop, energies, best, gen-1, start)
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				log.Printf("[Search] stopped after %d generations: %v\n", gen-1, err)
				d.publish(msg.Result, result)
			}
			return result, err
		}
		for i, e := range trialEnergies {
			if e < energies[i] {
				energies[i] = e
				pop.SetCol(i, mat.Col(nil, i, trials))
			}
		}
		best = floats.MinIdx(energies)

		it := Iteration{
			Iteration: gen,
			Elapsed:   time.Since(start),
			Fitness:   energies[best],
			X:         mat.Col(nil, best, pop),
		}
		log.Printf("[Search] differential_evolution step %d: f(x)= %g\n", gen, it.Fitness)
		d.publish(msg.Iteration, it)

		result = d.result(pop, energies, best, gen, start)
		if stat.StdDev(energies, nil) == 0 {
			result.Converged = true
			break
		}
	}
	d.publish(msg.Result, result)
	return result, nil
}

func (d *DE) result(pop *mat.Dense, energies []float64, best, gen int, start time.Time) Result {
	return Result{
		Iterations: gen,
		Elapsed:    time.Since(start),
		Fitness:    energies[best],
		X:          mat.Col(nil, best, pop),
	}
}

func (d *DE) publish(topic msg.Topic, payload interface{}) {
	if d.publisher != nil {
		d.publisher.Publish(topic, payload)
	}
}

// initPopulation samples a Latin hypercube: each dimension is cut into m strata and every
// stratum holds exactly one member.
func (d *DE) initPopulation(m int) *mat.Dense {
	k := len(d.lower)
	pop := mat.NewDense(k, m, nil)
	for j := 0; j < k; j++ {
		perm := d.rng.Perm(m)
		span := d.upper[j] - d.lower[j]
		for i := 0; i < m; i++ {
			u := (float64(perm[i]) + d.rng.Float64()) / float64(m)
			pop.Set(j, i, d.lower[j]+u*span)
		}
	}
	return pop
}

// dither draws this generation's mutation factor from [MutationFloor, Mutation].
func (d *DE) dither() float64 {
	lo, hi := MutationFloor, d.config.Mutation
	return lo + d.rng.Float64()*(hi-lo)
}

// trial builds best + f*(r1 - r2) and crosses it with member i.
func (d *DE) trial(pop *mat.Dense, i, best int, f float64) []float64 {
	k, m := pop.Dims()
	r1, r2 := d.pick(m, i)

	x := mat.Col(nil, i, pop)
	fill := d.rng.Intn(k)
	for j := 0; j < k; j++ {
		if j == fill || d.rng.Float64() < d.config.Recombination {
			x[j] = pop.At(j, best) + f*(pop.At(j, r1)-pop.At(j, r2))
		}
	}
	d.resample(x)
	return x
}

// pick returns two distinct member indices other than i.
func (d *DE) pick(m, i int) (int, int) {
	r1 := d.rng.Intn(m - 1)
	if r1 >= i {
		r1++
	}
	r2 := d.rng.Intn(m - 2)
	lo, hi := i, r1
	if lo > hi {
		lo, hi = hi, lo
	}
	if r2 >= lo {
		r2++
	}
	if r2 >= hi {
		r2++
	}
	return r1, r2
}

// resample redraws any out-of-bounds entry uniformly inside its bounds.
func (d *DE) resample(x []float64) {
	for j, v := range x {
		if v < d.lower[j] || v > d.upper[j] || math.IsNaN(v) {
			x[j] = d.lower[j] + d.rng.Float64()*(d.upper[j]-d.lower[j])
		}
	}
}

func (d *DE) clip(x []float64) {
	for j := range x {
		x[j] = math.Min(math.Max(x[j], d.lower[j]), d.upper[j])
	}
}
