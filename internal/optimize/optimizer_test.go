package optimize

import (
	"context"
	"math"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"wavetrader/internal/backtest"
	"wavetrader/internal/errors"
	"wavetrader/internal/models"
)

func testSchema() Schema {
	return Schema{
		{Name: "entry_threshold", Kind: KindFloat, Min: 30, Max: 80, Step: 10},
		{Name: "rsi_period", Kind: KindInt, Min: 7, Max: 21, Step: 7},
		{Name: "use_trailing_stop", Kind: KindChoice, Choices: []float64{0, 1}},
	}
}

// quadraticEvaluator peaks at entry_threshold == 55.
func quadraticEvaluator(ctx context.Context, params backtest.Params) (float64, map[string]float64, error) {
	x := params["entry_threshold"]
	return -(x - 55) * (x - 55), nil, nil
}

func testOptimizer(t *testing.T, cfg Config, eval Evaluator) *Optimizer {
	t.Helper()
	opt, err := New(cfg, eval, zerolog.Nop())
	require.NoError(t, err)
	return opt
}

func TestSchemaValidate(t *testing.T) {
	tests := []struct {
		name    string
		schema  Schema
		wantErr bool
	}{
		{"valid", testSchema(), false},
		{"empty", Schema{}, true},
		{"empty name", Schema{{Name: "", Kind: KindFloat, Min: 0, Max: 1}}, true},
		{"duplicate name", Schema{
			{Name: "x", Kind: KindFloat, Min: 0, Max: 1},
			{Name: "x", Kind: KindInt, Min: 0, Max: 5},
		}, true},
		{"min above max", Schema{{Name: "x", Kind: KindFloat, Min: 2, Max: 1}}, true},
		{"negative step", Schema{{Name: "x", Kind: KindFloat, Min: 0, Max: 1, Step: -0.1}}, true},
		{"choice without choices", Schema{{Name: "x", Kind: KindChoice}}, true},
		{"unknown kind", Schema{{Name: "x", Kind: "enum", Min: 0, Max: 1}}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.schema.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestGridEnumeration(t *testing.T) {
	schema := testSchema()
	grid := schema.grid()

	// 6 float steps (30..80 by 10) x 3 int steps (7,14,21) x 2 choices.
	assert.Len(t, grid, 6*3*2)

	// Deterministic enumeration order: the first combination is all-min.
	first := grid[0]
	assert.Equal(t, 30.0, first["entry_threshold"])
	assert.Equal(t, 7.0, first["rsi_period"])
	assert.Equal(t, 0.0, first["use_trailing_stop"])

	again := schema.grid()
	assert.Equal(t, grid, again)
}

func TestGridValuesIntDefaultStep(t *testing.T) {
	spec := ParamSpec{Name: "n", Kind: KindInt, Min: 1, Max: 4}
	assert.Equal(t, []float64{1, 2, 3, 4}, spec.gridValues())
}

func TestObjectiveFor(t *testing.T) {
	t.Run("unknown objective", func(t *testing.T) {
		_, err := ObjectiveFor("calmar")
		assert.True(t, errors.Is(err, errors.ErrUnknownObjective))
	})

	t.Run("drawdown is negated", func(t *testing.T) {
		extract, err := ObjectiveFor(ObjectiveMaxDrawdown)
		require.NoError(t, err)
		assert.Equal(t, -12.5, extract(backtest.Report{MaxDrawdown: 12.5}))
	})

	t.Run("undefined sharpe scores zero", func(t *testing.T) {
		extract, err := ObjectiveFor(ObjectiveSharpeRatio)
		require.NoError(t, err)
		assert.Equal(t, 0.0, extract(backtest.Report{}))
	})

	t.Run("undefined profit factor scores zero", func(t *testing.T) {
		extract, err := ObjectiveFor(ObjectiveProfitFactor)
		require.NoError(t, err)
		assert.Equal(t, 0.0, extract(backtest.Report{}))
	})
}

func TestNewRejectsBadConfig(t *testing.T) {
	eval := quadraticEvaluator

	_, err := New(Config{Method: "simulated_annealing", Objective: ObjectiveTotalProfit, Schema: testSchema()}, eval, zerolog.Nop())
	assert.Error(t, err)

	_, err = New(Config{Method: MethodRandom, Objective: "calmar", Schema: testSchema()}, eval, zerolog.Nop())
	assert.True(t, errors.Is(err, errors.ErrUnknownObjective))

	_, err = New(Config{Method: MethodRandom, Objective: ObjectiveTotalProfit, Schema: Schema{}}, eval, zerolog.Nop())
	assert.Error(t, err)
}

func TestRandomSearchIsSeeded(t *testing.T) {
	cfg := Config{
		Method:        MethodRandom,
		Objective:     ObjectiveTotalProfit,
		Schema:        testSchema(),
		MaxIterations: 25,
		Seed:          42,
	}

	first, err := testOptimizer(t, cfg, quadraticEvaluator).Run(context.Background())
	require.NoError(t, err)
	second, err := testOptimizer(t, cfg, quadraticEvaluator).Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, first.History, second.History)
	assert.Equal(t, first.BestParameters, second.BestParameters)
	assert.Equal(t, first.BestScore, second.BestScore)
}

func TestRandomSearchStaysInBounds(t *testing.T) {
	cfg := Config{
		Method:        MethodRandom,
		Objective:     ObjectiveTotalProfit,
		Schema:        testSchema(),
		MaxIterations: 50,
		Seed:          7,
	}

	result, err := testOptimizer(t, cfg, quadraticEvaluator).Run(context.Background())
	require.NoError(t, err)
	require.Len(t, result.History, 50)

	for _, candidate := range result.History {
		assert.GreaterOrEqual(t, candidate.Parameters["entry_threshold"], 30.0)
		assert.LessOrEqual(t, candidate.Parameters["entry_threshold"], 80.0)
		assert.Contains(t, []float64{0, 1}, candidate.Parameters["use_trailing_stop"])

		period := candidate.Parameters["rsi_period"]
		assert.Equal(t, math.Trunc(period), period)
		assert.GreaterOrEqual(t, period, 7.0)
		assert.LessOrEqual(t, period, 21.0)
	}
}

func TestGeneticBestScoreMonotonic(t *testing.T) {
	cfg := Config{
		Method:         MethodGenetic,
		Objective:      ObjectiveTotalProfit,
		Schema:         testSchema(),
		Generations:    8,
		PopulationSize: 10,
		Seed:           3,
	}

	result, err := testOptimizer(t, cfg, quadraticEvaluator).Run(context.Background())
	require.NoError(t, err)
	require.Len(t, result.History, 8*10)

	// Elitism: each generation's best never falls below the previous.
	prevBest := math.Inf(-1)
	for g := 0; g < 8; g++ {
		genBest := math.Inf(-1)
		for _, candidate := range result.History[g*10 : (g+1)*10] {
			if candidate.Score > genBest {
				genBest = candidate.Score
			}
		}
		assert.GreaterOrEqual(t, genBest, prevBest)
		prevBest = genBest
	}

	assert.Equal(t, prevBest, result.BestScore)
}

func TestBayesianRefinesAroundBest(t *testing.T) {
	cfg := Config{
		Method:        MethodBayesian,
		Objective:     ObjectiveTotalProfit,
		Schema:        Schema{{Name: "entry_threshold", Kind: KindFloat, Min: 30, Max: 80}},
		MaxIterations: 60,
		Seed:          11,
	}

	result, err := testOptimizer(t, cfg, quadraticEvaluator).Run(context.Background())
	require.NoError(t, err)
	require.Len(t, result.History, 60)

	// The local phase should close in on the optimum at 55.
	assert.InDelta(t, 55.0, result.BestParameters["entry_threshold"], 5.0)

	// Perturbations after the sampling phase stay within 20% of range
	// of the then-best point, so they never leave the bounds.
	for _, candidate := range result.History[bayesianInitialSamples:] {
		v := candidate.Parameters["entry_threshold"]
		assert.GreaterOrEqual(t, v, 30.0)
		assert.LessOrEqual(t, v, 80.0)
	}
}

func TestFailedCandidateScoresWorst(t *testing.T) {
	calls := 0
	eval := func(ctx context.Context, params backtest.Params) (float64, map[string]float64, error) {
		calls++
		if calls%2 == 1 {
			return 0, nil, errors.New("synthetic failure")
		}
		return 1.0, nil, nil
	}

	cfg := Config{
		Method:        MethodRandom,
		Objective:     ObjectiveTotalProfit,
		Schema:        testSchema(),
		MaxIterations: 10,
		Seed:          5,
	}

	result, err := testOptimizer(t, cfg, eval).Run(context.Background())
	require.NoError(t, err)
	require.Len(t, result.History, 10)

	for i, candidate := range result.History {
		if i%2 == 0 {
			assert.True(t, math.IsInf(candidate.Score, -1))
		} else {
			assert.Equal(t, 1.0, candidate.Score)
		}
	}
	assert.Equal(t, 1.0, result.BestScore)
}

func TestCancellationReturnsPartialResult(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	evaluations := 0
	eval := func(ctx context.Context, params backtest.Params) (float64, map[string]float64, error) {
		evaluations++
		if evaluations == 5 {
			cancel()
		}
		return float64(evaluations), nil, nil
	}

	cfg := Config{
		Method:        MethodRandom,
		Objective:     ObjectiveTotalProfit,
		Schema:        testSchema(),
		MaxIterations: 100,
		Seed:          1,
	}

	result, err := testOptimizer(t, cfg, eval).Run(ctx)
	require.NoError(t, err)

	// The flag is polled once per iteration, so the search stops at the
	// next boundary after the fifth evaluation.
	assert.Equal(t, 5, len(result.History))
	assert.Equal(t, 5.0, result.BestScore)
}

type recordingSink struct {
	candidates []models.OptimizationCandidate
}

func (r *recordingSink) Record(_ context.Context, c models.OptimizationCandidate) error {
	r.candidates = append(r.candidates, c)
	return nil
}

func TestSinkReceivesEveryCandidate(t *testing.T) {
	sink := &recordingSink{}
	cfg := Config{
		Method:        MethodRandom,
		Objective:     ObjectiveTotalProfit,
		Schema:        testSchema(),
		MaxIterations: 15,
		Seed:          9,
	}

	result, err := testOptimizer(t, cfg, quadraticEvaluator).WithSink(sink).Run(context.Background())
	require.NoError(t, err)

	require.Len(t, sink.candidates, 15)
	assert.Equal(t, result.History, sink.candidates)
	for i, candidate := range sink.candidates {
		assert.Equal(t, i, candidate.Iteration)
	}
}
