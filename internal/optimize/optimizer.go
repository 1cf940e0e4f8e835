package optimize

import (
	"context"
	"math"
	"math/rand"
	"sort"

	"github.com/rs/zerolog"

	"wavetrader/internal/backtest"
	"wavetrader/internal/errors"
	"wavetrader/internal/logging"
	"wavetrader/internal/models"
)

// Search method names accepted by Config.Method.
const (
	MethodGenetic  = "genetic_algorithm"
	MethodGrid     = "grid_search"
	MethodRandom   = "random_search"
	MethodBayesian = "bayesian_optimization"
)

// bayesianInitialSamples is the size of the random phase before the
// local search takes over.
const bayesianInitialSamples = 10

// HistorySink receives every evaluated candidate, in order.
type HistorySink interface {
	Record(ctx context.Context, candidate models.OptimizationCandidate) error
}

// Config selects the search method, objective and budgets.
type Config struct {
	Method         string
	Objective      string
	Schema         Schema
	Generations    int // genetic algorithm budget
	PopulationSize int
	MaxIterations  int // random/bayesian budget
	Seed           int64
}

// Result is the outcome of one optimization run. History holds every
// evaluated candidate in evaluation order.
type Result struct {
	BestParameters backtest.Params
	BestScore      float64
	History        []models.OptimizationCandidate
	Iterations     int
}

// Optimizer runs one configured search. Cancellation is cooperative:
// the context is polled once per generation or iteration.
type Optimizer struct {
	cfg  Config
	eval Evaluator
	rng  *rand.Rand
	sink HistorySink
	log  zerolog.Logger
}

// New validates the configuration and creates an optimizer.
func New(cfg Config, eval Evaluator, logger zerolog.Logger) (*Optimizer, error) {
	switch cfg.Method {
	case MethodGenetic, MethodGrid, MethodRandom, MethodBayesian:
	default:
		return nil, errors.NewValidationError("method", cfg.Method, "unknown search method")
	}
	if err := cfg.Schema.Validate(); err != nil {
		return nil, err
	}
	if _, err := ObjectiveFor(cfg.Objective); err != nil {
		return nil, err
	}

	if cfg.Generations <= 0 {
		cfg.Generations = 20
	}
	if cfg.PopulationSize <= 0 {
		cfg.PopulationSize = 20
	}
	if cfg.MaxIterations <= 0 {
		cfg.MaxIterations = 100
	}

	return &Optimizer{
		cfg:  cfg,
		eval: eval,
		rng:  rand.New(rand.NewSource(cfg.Seed)),
		log:  logger,
	}, nil
}

// WithSink attaches a history sink. Every evaluation is forwarded.
func (o *Optimizer) WithSink(sink HistorySink) *Optimizer {
	o.sink = sink
	return o
}

// Run executes the configured search. A cancelled context stops the
// search at the next boundary and returns the best candidate so far.
func (o *Optimizer) Run(ctx context.Context) (*Result, error) {
	switch o.cfg.Method {
	case MethodGenetic:
		return o.runGenetic(ctx)
	case MethodGrid:
		return o.runGrid(ctx)
	case MethodRandom:
		return o.runRandom(ctx)
	default:
		return o.runBayesian(ctx)
	}
}

// search accumulates evaluations and tracks the best candidate.
type search struct {
	best      backtest.Params
	bestScore float64
	history   []models.OptimizationCandidate
}

func newSearch() *search {
	return &search{bestScore: math.Inf(-1)}
}

// evaluate runs one candidate. A failed evaluation scores negative
// infinity so the search continues; cancellation propagates.
func (o *Optimizer) evaluate(ctx context.Context, st *search, params backtest.Params) (float64, error) {
	score, metrics, err := o.eval(ctx, params)
	if err != nil {
		if errors.Is(err, errors.ErrJobCancelled) {
			return 0, err
		}
		o.log.Warn().Err(errors.NewEvaluationError(params, err)).Msg("Candidate evaluation failed")
		score, metrics = math.Inf(-1), nil
	}

	candidate := models.OptimizationCandidate{
		Iteration:  len(st.history),
		Parameters: copyParams(params),
		Score:      score,
		Metrics:    metrics,
	}
	st.history = append(st.history, candidate)

	if o.sink != nil {
		if err := o.sink.Record(ctx, candidate); err != nil {
			o.log.Warn().Err(err).Msg("History sink rejected candidate")
		}
	}

	if score > st.bestScore {
		st.bestScore = score
		st.best = copyParams(params)
	}
	return score, nil
}

func (st *search) result() *Result {
	return &Result{
		BestParameters: st.best,
		BestScore:      st.bestScore,
		History:        st.history,
		Iterations:     len(st.history),
	}
}

// scored pairs an individual with its fitness.
type scored struct {
	params backtest.Params
	score  float64
}

func (o *Optimizer) runGenetic(ctx context.Context) (*Result, error) {
	st := newSearch()

	population := make([]backtest.Params, o.cfg.PopulationSize)
	for i := range population {
		population[i] = o.cfg.Schema.randomParams(o.rng)
	}

	for generation := 0; generation < o.cfg.Generations; generation++ {
		if ctx.Err() != nil {
			break
		}

		evaluated := make([]scored, 0, len(population))
		for _, individual := range population {
			score, err := o.evaluate(ctx, st, individual)
			if err != nil {
				return st.result(), nil
			}
			evaluated = append(evaluated, scored{params: individual, score: score})
		}

		logging.LogOptimization(o.log, o.cfg.Method, generation, meanScore(evaluated), st.bestScore)

		if generation < o.cfg.Generations-1 {
			population = o.nextGeneration(evaluated)
		}
	}

	return st.result(), nil
}

// nextGeneration keeps the top 20% unchanged and fills the remainder
// with tournament-selected, crossed-over, mutated children.
func (o *Optimizer) nextGeneration(evaluated []scored) []backtest.Params {
	sort.SliceStable(evaluated, func(i, j int) bool {
		return evaluated[i].score > evaluated[j].score
	})

	size := o.cfg.PopulationSize
	eliteSize := maxInt(1, size/5)

	next := make([]backtest.Params, 0, size)
	for i := 0; i < eliteSize && i < len(evaluated); i++ {
		next = append(next, copyParams(evaluated[i].params))
	}

	for len(next) < size {
		parent1 := o.tournament(evaluated)
		parent2 := o.tournament(evaluated)
		child := o.crossover(parent1, parent2)
		o.mutate(child)
		next = append(next, child)
	}

	return next
}

// tournament picks the fittest of three random individuals.
func (o *Optimizer) tournament(evaluated []scored) backtest.Params {
	winner := evaluated[o.rng.Intn(len(evaluated))]
	for i := 1; i < 3; i++ {
		contender := evaluated[o.rng.Intn(len(evaluated))]
		if contender.score > winner.score {
			winner = contender
		}
	}
	return winner.params
}

// crossover builds a child taking each gene from either parent with
// equal probability.
func (o *Optimizer) crossover(parent1, parent2 backtest.Params) backtest.Params {
	child := make(backtest.Params, len(o.cfg.Schema))
	for _, spec := range o.cfg.Schema {
		if o.rng.Float64() < 0.5 {
			child[spec.Name] = parent1[spec.Name]
		} else {
			child[spec.Name] = parent2[spec.Name]
		}
	}
	return child
}

// mutate flips each gene with probability 0.1.
func (o *Optimizer) mutate(individual backtest.Params) {
	for _, spec := range o.cfg.Schema {
		if o.rng.Float64() < 0.1 {
			individual[spec.Name] = spec.mutate(individual[spec.Name], o.rng)
		}
	}
}

func (o *Optimizer) runGrid(ctx context.Context) (*Result, error) {
	st := newSearch()

	for i, combo := range o.cfg.Schema.grid() {
		if ctx.Err() != nil {
			break
		}
		if _, err := o.evaluate(ctx, st, combo); err != nil {
			return st.result(), nil
		}
		if (i+1)%10 == 0 {
			logging.LogOptimization(o.log, o.cfg.Method, i+1, 0, st.bestScore)
		}
	}

	return st.result(), nil
}

func (o *Optimizer) runRandom(ctx context.Context) (*Result, error) {
	st := newSearch()

	for iteration := 0; iteration < o.cfg.MaxIterations; iteration++ {
		if ctx.Err() != nil {
			break
		}
		if _, err := o.evaluate(ctx, st, o.cfg.Schema.randomParams(o.rng)); err != nil {
			return st.result(), nil
		}
		if (iteration+1)%10 == 0 {
			logging.LogOptimization(o.log, o.cfg.Method, iteration+1, 0, st.bestScore)
		}
	}

	return st.result(), nil
}

// runBayesian is a local-search surrogate, not a true surrogate-model
// optimizer: a short uniform-sampling phase seeds a best-known point,
// and every following iteration perturbs that point within a small
// neighborhood of each parameter's range.
func (o *Optimizer) runBayesian(ctx context.Context) (*Result, error) {
	st := newSearch()

	initial := minInt(bayesianInitialSamples, o.cfg.MaxIterations)
	for i := 0; i < initial; i++ {
		if ctx.Err() != nil {
			return st.result(), nil
		}
		if _, err := o.evaluate(ctx, st, o.cfg.Schema.randomParams(o.rng)); err != nil {
			return st.result(), nil
		}
	}

	for iteration := initial; iteration < o.cfg.MaxIterations; iteration++ {
		if ctx.Err() != nil {
			break
		}

		next := make(backtest.Params, len(o.cfg.Schema))
		for _, spec := range o.cfg.Schema {
			next[spec.Name] = spec.perturb(st.best[spec.Name], o.rng)
		}

		if _, err := o.evaluate(ctx, st, next); err != nil {
			return st.result(), nil
		}
		if (iteration+1)%10 == 0 {
			logging.LogOptimization(o.log, o.cfg.Method, iteration+1, 0, st.bestScore)
		}
	}

	return st.result(), nil
}

func copyParams(params backtest.Params) backtest.Params {
	copied := make(backtest.Params, len(params))
	for k, v := range params {
		copied[k] = v
	}
	return copied
}

func meanScore(evaluated []scored) float64 {
	if len(evaluated) == 0 {
		return 0
	}
	var total float64
	for _, e := range evaluated {
		total += e.score
	}
	return total / float64(len(evaluated))
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}
