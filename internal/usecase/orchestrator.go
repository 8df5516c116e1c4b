package usecase

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"smartbot/internal/domain"
)

const lastRunKey = "last_bot_run"

type OrchestratorConfig struct {
	EntryInterval   time.Duration
	MonitorInterval time.Duration
	BiasInterval    time.Duration
	CloseTime       string // "HH:MM" local, end-of-session liquidation
	MaxCandidates   int
	Concurrency     int
}

func (c *OrchestratorConfig) withDefaults() {
	if c.EntryInterval <= 0 {
		c.EntryInterval = 5 * time.Minute
	}
	if c.MonitorInterval <= 0 {
		c.MonitorInterval = 2 * time.Minute
	}
	if c.BiasInterval <= 0 {
		c.BiasInterval = 15 * time.Minute
	}
	if c.CloseTime == "" {
		c.CloseTime = "15:58"
	}
	if c.MaxCandidates <= 0 {
		c.MaxCandidates = 25
	}
	if c.Concurrency <= 0 {
		c.Concurrency = 5
	}
}

// Orchestrator drives the periodic cadence: scan-and-enter, monitor,
// bias recompute, and the end-of-session liquidation.
type Orchestrator struct {
	cfg        OrchestratorConfig
	classifier *Classifier
	bias       *BiasEngine
	arbiter    *StrategyArbiter
	manager    *PositionManager
	feed       domain.CandidateFeed
	venue      domain.ExecutionVenue
	meta       domain.MetaRepository
	logger     *zap.Logger
}

func NewOrchestrator(
	cfg OrchestratorConfig,
	classifier *Classifier,
	bias *BiasEngine,
	arbiter *StrategyArbiter,
	manager *PositionManager,
	feed domain.CandidateFeed,
	venue domain.ExecutionVenue,
	meta domain.MetaRepository,
	logger *zap.Logger,
) *Orchestrator {
	cfg.withDefaults()
	return &Orchestrator{
		cfg:        cfg,
		classifier: classifier,
		bias:       bias,
		arbiter:    arbiter,
		manager:    manager,
		feed:       feed,
		venue:      venue,
		meta:       meta,
		logger:     logger,
	}
}

// Run blocks until ctx is cancelled or the end-of-session liquidation
// completes. After liquidation no new entries are issued.
func (o *Orchestrator) Run(ctx context.Context) error {
	entryTicker := time.NewTicker(o.cfg.EntryInterval)
	defer entryTicker.Stop()
	monitorTicker := time.NewTicker(o.cfg.MonitorInterval)
	defer monitorTicker.Stop()
	biasTicker := time.NewTicker(o.cfg.BiasInterval)
	defer biasTicker.Stop()

	sessionEnd := o.sessionEndChan()

	o.RunEntryCycle(ctx)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-entryTicker.C:
			o.RunEntryCycle(ctx)
		case <-monitorTicker.C:
			o.RunMonitorCycle(ctx)
		case <-biasTicker.C:
			o.RunBiasCycle(ctx)
		case <-sessionEnd:
			o.logger.Info("End of session, liquidating all positions")
			o.manager.CloseAll(ctx, "End of day")
			return nil
		}
	}
}

// sessionEndChan fires once at the configured local cutoff, or never when
// the cutoff has already passed today.
func (o *Orchestrator) sessionEndChan() <-chan time.Time {
	cutoff, err := time.ParseInLocation("15:04", o.cfg.CloseTime, time.Local)
	if err != nil {
		o.logger.Error("Invalid close time, session liquidation disabled",
			zap.String("close_time", o.cfg.CloseTime), zap.Error(err))
		return nil
	}
	now := time.Now()
	at := time.Date(now.Year(), now.Month(), now.Day(), cutoff.Hour(), cutoff.Minute(), 0, 0, time.Local)
	until := time.Until(at)
	if until <= 0 {
		o.logger.Warn("Close time already passed, session liquidation disabled until restart",
			zap.String("close_time", o.cfg.CloseTime), zap.Duration("past_by", -until))
		return nil
	}
	o.logger.Info("Auto-close scheduled", zap.Duration("in", until))
	return time.After(until)
}

type entryCandidate struct {
	stats domain.CandidateStats
	side  domain.Side
}

// RunEntryCycle fetches candidates for the effective direction, classifies
// and ranks them, and opens up to MaxTrades positions. An empty feed is
// retried once with direction forced to "both"; the fallback never cascades.
// Returns how many positions were entered.
func (o *Orchestrator) RunEntryCycle(ctx context.Context) int {
	if err := o.meta.SetMeta(ctx, lastRunKey, time.Now().Format(time.RFC3339)); err != nil {
		o.logger.Error("Failed to stamp last run", zap.Error(err))
	}

	mode := o.arbiter.Effective()
	symbols := o.fetchCandidates(ctx, mode)
	if len(symbols) == 0 && mode != domain.StrategyBoth {
		o.logger.Warn("No candidates for direction, falling back to both",
			zap.String("direction", string(mode)))
		mode = domain.StrategyBoth
		symbols = o.fetchCandidates(ctx, mode)
	}
	if len(symbols) == 0 {
		o.logger.Info("No candidates this cycle")
		return 0
	}

	candidates := o.evaluate(ctx, mode, symbols)
	ranked := rankCandidates(candidates)

	entered := 0
	for _, c := range ranked {
		if entered >= MaxTrades {
			break
		}
		if o.manager.HasPosition(c.stats.Symbol) {
			continue
		}
		if err := o.manager.Enter(ctx, c.stats.Symbol, c.side); err != nil {
			continue // entry failures are logged and skipped, never retried
		}
		entered++
	}

	o.logger.Info("Entry cycle complete",
		zap.String("direction", string(mode)),
		zap.Int("candidates", len(candidates)),
		zap.Int("entered", entered))
	return entered
}

func (o *Orchestrator) fetchCandidates(ctx context.Context, mode domain.Strategy) []string {
	symbols, err := o.feed.FetchCandidates(ctx, mode)
	if err != nil {
		o.logger.Error("Candidate feed failed", zap.Error(err))
		return nil
	}
	if len(symbols) > o.cfg.MaxCandidates {
		symbols = symbols[:o.cfg.MaxCandidates]
	}
	return symbols
}

// evaluate runs the eligibility pre-filter and the classifier over the
// candidate list with bounded concurrency. One symbol's stall or failure
// never blocks the others.
func (o *Orchestrator) evaluate(ctx context.Context, mode domain.Strategy, symbols []string) []entryCandidate {
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		out       []entryCandidate
		semaphore = make(chan struct{}, o.cfg.Concurrency)
	)

	for _, symbol := range symbols {
		if o.manager.HasPosition(symbol) {
			continue
		}
		wg.Add(1)
		go func(symbol string) {
			defer wg.Done()
			semaphore <- struct{}{}
			defer func() { <-semaphore }()

			c, ok := o.evaluateOne(ctx, mode, symbol)
			if !ok {
				return
			}
			mu.Lock()
			out = append(out, c)
			mu.Unlock()
		}(symbol)
	}
	wg.Wait()
	return out
}

func (o *Orchestrator) evaluateOne(ctx context.Context, mode domain.Strategy, symbol string) (entryCandidate, bool) {
	asset, err := o.venue.GetAsset(ctx, symbol)
	if err != nil || !asset.Tradable {
		// eligibility failure excludes silently, it is not an error
		return entryCandidate{}, false
	}

	stats, err := FetchStats(ctx, o.venue, symbol)
	if err != nil {
		o.logger.Warn("Skipping symbol, no usable data", zap.String("symbol", symbol), zap.Error(err))
		return entryCandidate{}, false
	}

	wantLong := mode == domain.StrategyLong || mode == domain.StrategyBoth
	wantShort := mode == domain.StrategyShort || mode == domain.StrategyBoth

	if wantLong && o.classifier.IsLongSetup(stats) {
		return entryCandidate{stats: stats, side: domain.SideLong}, true
	}
	if wantShort && asset.Shortable && o.classifier.IsShortSetup(stats) {
		return entryCandidate{stats: stats, side: domain.SideShort}, true
	}
	return entryCandidate{}, false
}

// rankCandidates orders longs by descending bounce and shorts by descending
// drop, longs first when both directions are in play.
func rankCandidates(candidates []entryCandidate) []entryCandidate {
	var longs, shorts []domain.CandidateStats
	for _, c := range candidates {
		if c.side == domain.SideLong {
			longs = append(longs, c.stats)
		} else {
			shorts = append(shorts, c.stats)
		}
	}
	RankLongs(longs)
	RankShorts(shorts)

	out := make([]entryCandidate, 0, len(candidates))
	for _, s := range longs {
		out = append(out, entryCandidate{stats: s, side: domain.SideLong})
	}
	for _, s := range shorts {
		out = append(out, entryCandidate{stats: s, side: domain.SideShort})
	}
	return out
}

// RunMonitorCycle walks open positions and the retry queue once.
func (o *Orchestrator) RunMonitorCycle(ctx context.Context) {
	o.manager.MonitorTick(ctx)
}

// RunBiasCycle recomputes the consensus and hands it to the arbiter.
// Skipped entirely while a manual pin is active.
func (o *Orchestrator) RunBiasCycle(ctx context.Context) {
	if o.arbiter.Mode().IsManual() {
		o.logger.Info("Manual mode active, skipping bias recompute")
		return
	}
	recommended := o.bias.Recompute(ctx, domain.DecisionSourceScheduled)
	if err := o.arbiter.ApplyBias(ctx, recommended); err != nil {
		o.logger.Error("Failed to apply bias recommendation", zap.Error(err))
	}
}
