package usecase

import (
	"context"
	"math"
	"time"

	"go.uber.org/zap"

	"smartbot/internal/domain"
	"smartbot/internal/metrics"
)

// Bias component names, one row each in the store.
const (
	ComponentTrend      = "spy_trend"
	ComponentBreadth    = "breadth"
	ComponentVolatility = "volatility"
)

const (
	referenceIndex   = "SPY"
	breadthSampleCap = 20
)

// BiasEngine converts three independent market signals into one recommended
// trading direction. Each recompute overwrites the per-component rows and
// appends one decision row; the combination step never raises, it degrades
// to the neutral default instead.
type BiasEngine struct {
	venue      domain.ExecutionVenue
	feed       domain.CandidateFeed
	repo       domain.BiasRepository
	classifier *Classifier
	logger     *zap.Logger
}

func NewBiasEngine(
	venue domain.ExecutionVenue,
	feed domain.CandidateFeed,
	repo domain.BiasRepository,
	classifier *Classifier,
	logger *zap.Logger,
) *BiasEngine {
	return &BiasEngine{
		venue:      venue,
		feed:       feed,
		repo:       repo,
		classifier: classifier,
		logger:     logger,
	}
}

// Recompute runs every signal, combines the stored components into a
// strategy recommendation and logs the decision under the given source.
func (e *BiasEngine) Recompute(ctx context.Context, source string) domain.Strategy {
	e.runTrend(ctx)
	e.runBreadth(ctx)
	e.runVolatility(ctx)

	strategy := e.combine(ctx)

	if err := e.repo.LogDecision(ctx, &domain.BiasDecision{Strategy: strategy, Source: source, Timestamp: time.Now()}); err != nil {
		e.logger.Error("Failed to log bias decision", zap.Error(err))
	}
	metrics.BiasRecomputesTotal.Inc()

	e.logger.Info("Bias recomputed",
		zap.String("strategy", string(strategy)),
		zap.String("source", source))
	return strategy
}

// runTrend scores the change between the two most recent short-interval
// closes of the reference index.
func (e *BiasEngine) runTrend(ctx context.Context) {
	bars, err := e.venue.GetBars(ctx, referenceIndex, "5Min", 3)
	if err != nil || len(bars) < 2 {
		e.logger.Warn("Trend signal unavailable", zap.Error(err))
		return
	}

	prev := bars[len(bars)-2].Close
	last := bars[len(bars)-1].Close
	change := ((last - prev) / prev) * 100

	signal, score := domain.StrategyBoth, 0
	if change >= 0.3 {
		signal, score = domain.StrategyLong, 1
	} else if change <= -0.3 {
		signal, score = domain.StrategyShort, -1
	}
	e.updateComponent(ctx, ComponentTrend, string(signal), score)
}

// runBreadth classifies a sample of feed candidates in both-mode and
// compares how many qualify long vs short.
func (e *BiasEngine) runBreadth(ctx context.Context) {
	symbols, err := e.feed.FetchCandidates(ctx, domain.StrategyBoth)
	if err != nil || len(symbols) == 0 {
		e.logger.Warn("Breadth signal unavailable", zap.Error(err))
		return
	}
	if len(symbols) > breadthSampleCap {
		symbols = symbols[:breadthSampleCap]
	}

	longCount, shortCount := 0, 0
	for _, symbol := range symbols {
		stats, err := FetchStats(ctx, e.venue, symbol)
		if err != nil {
			continue // one symbol's bad data never aborts the signal
		}
		if e.classifier.IsLongSetup(stats) {
			longCount++
		}
		if e.classifier.IsShortSetup(stats) {
			shortCount++
		}
	}

	ratio := float64(longCount) / math.Max(float64(shortCount), 1)
	signal, score := domain.StrategyBoth, 0
	if ratio > 2 {
		signal, score = domain.StrategyLong, 1
	} else if ratio < 0.5 {
		signal, score = domain.StrategyShort, -1
	}
	e.updateComponent(ctx, ComponentBreadth, string(signal), score)
}

// runVolatility scores calm markets as safe-to-trade. It only ever
// suppresses (score 0), never flips the direction.
func (e *BiasEngine) runVolatility(ctx context.Context) {
	bars, err := e.venue.GetBars(ctx, referenceIndex, "15Min", 10)
	if err != nil || len(bars) < 2 {
		e.logger.Warn("Volatility signal unavailable", zap.Error(err))
		return
	}

	closes := make([]float64, len(bars))
	for i, b := range bars {
		closes[i] = b.Close
	}

	signal, score := domain.StrategyBoth, 0
	if sampleStdDev(closes) <= 2 {
		signal, score = domain.StrategyLong, 1
	}
	e.updateComponent(ctx, ComponentVolatility, string(signal), score)
}

// combine computes the weighted average of all stored component scores.
// Any read failure or a zero total weight fails safe to "both".
func (e *BiasEngine) combine(ctx context.Context) domain.Strategy {
	components, err := e.repo.ListComponents(ctx)
	if err != nil {
		e.logger.Error("Failed to load bias components", zap.Error(err))
		return domain.StrategyBoth
	}

	totalWeight, totalScore := 0.0, 0.0
	for _, c := range components {
		totalScore += float64(c.Score) * c.Weight
		totalWeight += c.Weight
	}
	if totalWeight <= 0 {
		return domain.StrategyBoth
	}

	biasScore := totalScore / totalWeight
	switch {
	case biasScore >= 0.5:
		return domain.StrategyLong
	case biasScore <= -0.5:
		return domain.StrategyShort
	default:
		return domain.StrategyBoth
	}
}

func (e *BiasEngine) updateComponent(ctx context.Context, component, value string, score int) {
	if err := e.repo.UpdateComponent(ctx, component, value, score); err != nil {
		e.logger.Error("Failed to update bias component",
			zap.String("component", component), zap.Error(err))
	}
}

func sampleStdDev(xs []float64) float64 {
	n := float64(len(xs))
	if n < 2 {
		return 0
	}
	mean := 0.0
	for _, x := range xs {
		mean += x
	}
	mean /= n

	variance := 0.0
	for _, x := range xs {
		variance += (x - mean) * (x - mean)
	}
	return math.Sqrt(variance / (n - 1))
}
