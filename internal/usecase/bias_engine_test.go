package usecase

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"smartbot/internal/domain"
)

func newTestEngine(venue *mockVenue, feed *mockFeed, repo *mockBiasRepo) *BiasEngine {
	return NewBiasEngine(venue, feed, repo, NewClassifier(DefaultLongProfile), zap.NewNop())
}

func TestSampleStdDev(t *testing.T) {
	assert.InDelta(t, 1.0, sampleStdDev([]float64{1, 2, 3}), 1e-9)
	assert.Equal(t, 0.0, sampleStdDev([]float64{5}))
	assert.Equal(t, 0.0, sampleStdDev(nil))
}

func TestTrendSignalScoring(t *testing.T) {
	tests := []struct {
		name      string
		closes    []float64
		wantScore int
		wantValue string
	}{
		{"up move scores long", []float64{100, 100, 100.4}, 1, "long"},
		{"down move scores short", []float64{100, 100, 99.6}, -1, "short"},
		{"flat scores neutral", []float64{100, 100, 100.1}, 0, "both"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			venue := newMockVenue()
			bars := make([]domain.Bar, len(tt.closes))
			for i, c := range tt.closes {
				bars[i] = domain.Bar{Close: c}
			}
			venue.bars["SPY/5Min"] = bars

			repo := &mockBiasRepo{}
			engine := newTestEngine(venue, &mockFeed{}, repo)
			engine.runTrend(context.Background())

			require.Len(t, repo.components, 1)
			assert.Equal(t, ComponentTrend, repo.components[0].Component)
			assert.Equal(t, tt.wantScore, repo.components[0].Score)
			assert.Equal(t, tt.wantValue, repo.components[0].LastValue)
		})
	}
}

func TestTrendSignalUnavailableLeavesComponentAlone(t *testing.T) {
	venue := newMockVenue() // no SPY bars
	repo := &mockBiasRepo{}
	engine := newTestEngine(venue, &mockFeed{}, repo)

	engine.runTrend(context.Background())
	assert.Empty(t, repo.components, "a failed signal must not overwrite its row")
}

func TestBreadthSignalScoring(t *testing.T) {
	venue := newMockVenue()
	// Three long setups, one short setup -> ratio 3 > 2 -> long.
	for _, sym := range []string{"AAA", "BBB", "CCC"} {
		venue.setDaily(sym, 100, 100, 94)
		venue.prices[sym] = 95 // drop 5, bounce ~1.06
	}
	venue.setDaily("DDD", 100, 100, 95)
	venue.prices["DDD"] = 95 // drop 5, pinned at low

	feed := &mockFeed{results: map[domain.Strategy][]string{
		domain.StrategyBoth: {"AAA", "BBB", "CCC", "DDD"},
	}}
	repo := &mockBiasRepo{}
	engine := newTestEngine(venue, feed, repo)

	engine.runBreadth(context.Background())
	require.Len(t, repo.components, 1)
	assert.Equal(t, ComponentBreadth, repo.components[0].Component)
	assert.Equal(t, 1, repo.components[0].Score)
}

func TestBreadthEmptySampleLeavesComponentAlone(t *testing.T) {
	feed := &mockFeed{results: map[domain.Strategy][]string{}}
	repo := &mockBiasRepo{}
	engine := newTestEngine(newMockVenue(), feed, repo)

	engine.runBreadth(context.Background())
	assert.Empty(t, repo.components)
}

func TestVolatilitySignalNeverFlipsShort(t *testing.T) {
	venue := newMockVenue()
	venue.bars["SPY/15Min"] = []domain.Bar{
		{Close: 100}, {Close: 110}, {Close: 90}, {Close: 105}, {Close: 95},
	}
	repo := &mockBiasRepo{}
	engine := newTestEngine(venue, &mockFeed{}, repo)

	engine.runVolatility(context.Background())
	require.Len(t, repo.components, 1)
	assert.Equal(t, 0, repo.components[0].Score, "high volatility suppresses, never scores -1")

	// Calm tape scores safe-to-trade.
	venue.bars["SPY/15Min"] = []domain.Bar{
		{Close: 100}, {Close: 100.5}, {Close: 100.2}, {Close: 100.1}, {Close: 100.3},
	}
	engine.runVolatility(context.Background())
	assert.Equal(t, 1, repo.components[0].Score)
}

func TestCombineZeroWeightFailsSafe(t *testing.T) {
	repo := &mockBiasRepo{components: []*domain.BiasComponent{
		{Component: ComponentTrend, Score: 1, Weight: 0},
		{Component: ComponentBreadth, Score: 1, Weight: 0},
	}}
	engine := newTestEngine(newMockVenue(), &mockFeed{}, repo)
	assert.Equal(t, domain.StrategyBoth, engine.combine(context.Background()))
}

func TestCombineInsertionOrderInvariant(t *testing.T) {
	forward := &mockBiasRepo{components: []*domain.BiasComponent{
		{Component: ComponentTrend, Score: 1, Weight: 2},
		{Component: ComponentBreadth, Score: -1, Weight: 1},
		{Component: ComponentVolatility, Score: 1, Weight: 1},
	}}
	reversed := &mockBiasRepo{components: []*domain.BiasComponent{
		{Component: ComponentVolatility, Score: 1, Weight: 1},
		{Component: ComponentBreadth, Score: -1, Weight: 1},
		{Component: ComponentTrend, Score: 1, Weight: 2},
	}}

	a := newTestEngine(newMockVenue(), &mockFeed{}, forward).combine(context.Background())
	b := newTestEngine(newMockVenue(), &mockFeed{}, reversed).combine(context.Background())
	assert.Equal(t, a, b)
	// (2 - 1 + 1) / 4 = 0.5 -> long
	assert.Equal(t, domain.StrategyLong, a)
}

func TestCombineThresholds(t *testing.T) {
	tests := []struct {
		name   string
		scores [3]int
		want   domain.Strategy
	}{
		{"all long", [3]int{1, 1, 1}, domain.StrategyLong},
		{"all short-ish", [3]int{-1, -1, 0}, domain.StrategyShort},
		{"mixed stays both", [3]int{1, -1, 0}, domain.StrategyBoth},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := &mockBiasRepo{components: []*domain.BiasComponent{
				{Component: ComponentTrend, Score: tt.scores[0], Weight: 1},
				{Component: ComponentBreadth, Score: tt.scores[1], Weight: 1},
				{Component: ComponentVolatility, Score: tt.scores[2], Weight: 1},
			}}
			engine := newTestEngine(newMockVenue(), &mockFeed{}, repo)
			assert.Equal(t, tt.want, engine.combine(context.Background()))
		})
	}
}

func TestCombineReadFailureDegradesToBoth(t *testing.T) {
	repo := &mockBiasRepo{listErr: domain.ErrNotFound}
	engine := newTestEngine(newMockVenue(), &mockFeed{}, repo)
	assert.Equal(t, domain.StrategyBoth, engine.combine(context.Background()))
}

func TestRecomputeLogsDecisionWithSource(t *testing.T) {
	venue := newMockVenue()
	repo := &mockBiasRepo{}
	feed := &mockFeed{results: map[domain.Strategy][]string{}}
	engine := newTestEngine(venue, feed, repo)

	strategy := engine.Recompute(context.Background(), domain.DecisionSourceOnDemand)
	assert.Equal(t, domain.StrategyBoth, strategy)
	require.Len(t, repo.decisions, 1)
	assert.Equal(t, domain.DecisionSourceOnDemand, repo.decisions[0].Source)
	assert.Equal(t, domain.StrategyBoth, repo.decisions[0].Strategy)
}
