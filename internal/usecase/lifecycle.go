package usecase

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"smartbot/internal/domain"
	"smartbot/internal/metrics"
)

// MaxTrades caps how many entries a single scan cycle may place. This is a
// deliberate exposure cap, not a performance limit.
const MaxTrades = 10

const defaultQty = 1

// sideParams parameterizes the lifecycle per direction so long and short
// share one code path.
type sideParams struct {
	target float64 // take-profit threshold, pnl percent
	stop   float64 // stop-loss threshold, pnl percent
}

func paramsFor(side domain.Side) sideParams {
	if side == domain.SideShort {
		return sideParams{target: 1.0, stop: -0.25}
	}
	return sideParams{target: 1.25, stop: -0.5}
}

// PositionManager owns the open-position table and the exit retry queue.
// It opens positions for qualifying candidates, monitors them against the
// side's profit/stop thresholds and closes them, retrying exits the venue
// transiently rejects.
type PositionManager struct {
	venue    domain.ExecutionVenue
	posRepo  domain.PositionRepository
	trades   domain.TradeRepository
	notifier domain.Notifier
	stream   domain.QuoteStream
	logger   *zap.Logger
	qty      int

	mu         sync.Mutex
	open       map[string]*domain.Position
	retryQueue map[string]struct{}
}

func NewPositionManager(
	venue domain.ExecutionVenue,
	posRepo domain.PositionRepository,
	trades domain.TradeRepository,
	notifier domain.Notifier,
	logger *zap.Logger,
) *PositionManager {
	return &PositionManager{
		venue:      venue,
		posRepo:    posRepo,
		trades:     trades,
		notifier:   notifier,
		logger:     logger,
		qty:        defaultQty,
		open:       make(map[string]*domain.Position),
		retryQueue: make(map[string]struct{}),
	}
}

// AttachStream enables live price subscriptions for tracked symbols.
// Without a stream attached the manager relies on monitor-tick polling only.
func (m *PositionManager) AttachStream(stream domain.QuoteStream) {
	m.stream = stream
}

// Rehydrate reloads the open-position table from the store so a restart
// does not silently lose tracking.
func (m *PositionManager) Rehydrate(ctx context.Context) error {
	positions, err := m.posRepo.ListPositions(ctx)
	if err != nil {
		return fmt.Errorf("failed to rehydrate positions: %w", err)
	}

	m.mu.Lock()
	m.open = make(map[string]*domain.Position, len(positions))
	for _, p := range positions {
		m.open[p.Symbol] = p
	}
	count := len(m.open)
	m.mu.Unlock()

	metrics.OpenPositions.Set(float64(count))
	m.logger.Info("Rehydrated open positions", zap.Int("count", count))
	m.subscribeStream(m.OpenSymbols())
	return nil
}

// subscribeStream points the live price stream at tracked symbols. Stream
// failures degrade to monitor-tick polling, never into the trading path.
func (m *PositionManager) subscribeStream(symbols []string) {
	if m.stream == nil || len(symbols) == 0 {
		return
	}
	if err := m.stream.Subscribe(symbols); err != nil {
		m.logger.Warn("Failed to subscribe price stream",
			zap.Strings("symbols", symbols), zap.Error(err))
	}
}

// HasPosition reports whether a symbol is currently open.
func (m *PositionManager) HasPosition(symbol string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.open[symbol]
	return ok
}

// OpenSymbols returns a snapshot of the currently open symbols.
func (m *PositionManager) OpenSymbols() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	symbols := make([]string, 0, len(m.open))
	for s := range m.open {
		symbols = append(symbols, s)
	}
	sort.Strings(symbols)
	return symbols
}

// RetryPending returns how many symbols are queued for an exit retry.
func (m *PositionManager) RetryPending() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.retryQueue)
}

// Enter opens a position for a classified candidate. Entering a symbol that
// is already open is a no-op; entry rejections are logged and skipped, never
// retried.
func (m *PositionManager) Enter(ctx context.Context, symbol string, side domain.Side) error {
	m.mu.Lock()
	if _, exists := m.open[symbol]; exists {
		m.mu.Unlock()
		return nil
	}
	m.mu.Unlock()

	order := &domain.OrderRequest{
		Symbol:      symbol,
		Qty:         m.qty,
		Side:        side.EntryOrderSide(),
		Type:        "market",
		TimeInForce: "day",
	}
	if err := m.venue.CreateOrder(ctx, order); err != nil {
		metrics.RejectionsTotal.WithLabelValues("entry").Inc()
		m.logger.Error("Entry order rejected",
			zap.String("symbol", symbol), zap.String("side", string(side)), zap.Error(err))
		return err
	}

	price, err := m.venue.GetLatestTrade(ctx, symbol)
	if err != nil {
		// The venue accepted the order; nothing can be undone here. The
		// syncpositions tool rebuilds tracking from the account.
		m.logger.Error("Order accepted but reference price unavailable",
			zap.String("symbol", symbol), zap.Error(err))
		return fmt.Errorf("entry price fetch for %s: %w", symbol, err)
	}

	pos := &domain.Position{
		Symbol:     symbol,
		Side:       side,
		Qty:        m.qty,
		EntryPrice: price,
		EntryTime:  time.Now(),
	}

	m.mu.Lock()
	m.open[symbol] = pos
	count := len(m.open)
	m.mu.Unlock()

	if err := m.posRepo.SavePosition(ctx, pos); err != nil {
		// Venue-side state is the ground truth; keep tracking in memory.
		m.logger.Error("Failed to persist position", zap.String("symbol", symbol), zap.Error(err))
	}

	m.subscribeStream([]string{symbol})

	metrics.EntriesTotal.WithLabelValues(string(side)).Inc()
	metrics.OpenPositions.Set(float64(count))
	m.logger.Info("Entered position",
		zap.String("symbol", symbol),
		zap.String("side", string(side)),
		zap.Float64("price", price))
	m.notifier.Notify(
		fmt.Sprintf("Entered %s %s", side, symbol),
		fmt.Sprintf("Entry at ~$%.2f on %s", price, pos.EntryTime.Format(time.RFC3339)))
	return nil
}

// MonitorTick walks every open position once: refresh the stored price,
// evaluate the exit thresholds, then sweep the retry queue. One symbol's
// failure never aborts the tick for the others.
func (m *PositionManager) MonitorTick(ctx context.Context) {
	for _, symbol := range m.OpenSymbols() {
		m.trackOne(ctx, symbol)
	}
	m.retrySweep(ctx)
}

func (m *PositionManager) trackOne(ctx context.Context, symbol string) {
	m.mu.Lock()
	pos, ok := m.open[symbol]
	m.mu.Unlock()
	if !ok {
		return
	}

	current, err := m.venue.GetLatestTrade(ctx, symbol)
	if err != nil {
		m.logger.Error("Monitor price fetch failed", zap.String("symbol", symbol), zap.Error(err))
		return
	}
	m.UpdateQuote(ctx, symbol, current)

	change := pos.PnLPercent(current)
	params := paramsFor(pos.Side)

	switch {
	case change >= params.target:
		m.exitPosition(ctx, symbol, "Profit target hit")
	case change <= params.stop:
		m.exitPosition(ctx, symbol, "Stop hit")
	default:
		m.logger.Info("Holding",
			zap.String("symbol", symbol),
			zap.String("side", string(pos.Side)),
			zap.Float64("pnl_pct", change))
	}
}

// UpdateQuote writes a fresh price into the tracked position and the store.
// Safe to call from the live price stream; rewriting the same price is
// harmless.
func (m *PositionManager) UpdateQuote(ctx context.Context, symbol string, price float64) {
	now := time.Now()

	m.mu.Lock()
	pos, ok := m.open[symbol]
	if ok {
		pos.CurrentPrice = price
		pos.LastUpdate = now
	}
	m.mu.Unlock()
	if !ok {
		return
	}

	if err := m.posRepo.UpdateCurrentPrice(ctx, symbol, price, now); err != nil {
		m.logger.Error("Failed to update stored price", zap.String("symbol", symbol), zap.Error(err))
	}
}

// retrySweep re-attempts exit for every queued symbol through the normal
// exit path. A retry that hits another transient block stays queued.
func (m *PositionManager) retrySweep(ctx context.Context) {
	m.mu.Lock()
	queued := make([]string, 0, len(m.retryQueue))
	for s := range m.retryQueue {
		queued = append(queued, s)
	}
	m.mu.Unlock()
	if len(queued) == 0 {
		return
	}
	sort.Strings(queued)

	m.logger.Info("Retrying rejected exits", zap.Strings("symbols", queued))
	for _, symbol := range queued {
		m.exitPosition(ctx, symbol, "Retry after rejection")
	}
}

// exitPosition places the closing order and, on acceptance, records the
// trade and removes the position. A retryable rejection queues the symbol
// instead of failing; any other error leaves the position open for the
// next tick.
func (m *PositionManager) exitPosition(ctx context.Context, symbol, reason string) {
	m.mu.Lock()
	pos, ok := m.open[symbol]
	if !ok {
		delete(m.retryQueue, symbol)
		m.mu.Unlock()
		return
	}
	m.mu.Unlock()

	exitPrice, err := m.venue.GetLatestTrade(ctx, symbol)
	if err != nil {
		m.logger.Error("Exit price fetch failed", zap.String("symbol", symbol), zap.Error(err))
		return
	}

	order := &domain.OrderRequest{
		Symbol:      symbol,
		Qty:         pos.Qty,
		Side:        pos.Side.ExitOrderSide(),
		Type:        "market",
		TimeInForce: "day",
	}
	if err := m.venue.CreateOrder(ctx, order); err != nil {
		if domain.IsRetryableRejection(err) {
			m.mu.Lock()
			m.retryQueue[symbol] = struct{}{}
			m.mu.Unlock()
			metrics.RejectionsTotal.WithLabelValues("exit_retryable").Inc()
			m.logger.Warn("Exit blocked by venue, queued for retry",
				zap.String("symbol", symbol), zap.Error(err))
			return
		}
		metrics.RejectionsTotal.WithLabelValues("exit").Inc()
		m.logger.Error("Exit order failed", zap.String("symbol", symbol), zap.Error(err))
		return
	}

	exitTime := time.Now()
	trade := &domain.Trade{
		Symbol:     symbol,
		Side:       pos.Side,
		Qty:        pos.Qty,
		EntryPrice: pos.EntryPrice,
		ExitPrice:  exitPrice,
		EntryTime:  pos.EntryTime,
		ExitTime:   exitTime,
		Reason:     reason,
		Fees:       domain.CalculateFees(pos.Qty, exitPrice),
	}
	if err := m.trades.LogTrade(ctx, trade); err != nil {
		// The closing order already went through; never roll it back.
		m.logger.Error("Failed to log trade", zap.String("symbol", symbol), zap.Error(err))
	}
	if err := m.posRepo.RemovePosition(ctx, symbol); err != nil {
		m.logger.Error("Failed to remove stored position", zap.String("symbol", symbol), zap.Error(err))
	}

	m.mu.Lock()
	delete(m.open, symbol)
	delete(m.retryQueue, symbol)
	count := len(m.open)
	m.mu.Unlock()

	metrics.ExitsTotal.WithLabelValues(string(pos.Side), reason).Inc()
	metrics.OpenPositions.Set(float64(count))
	m.logger.Info("Exited position",
		zap.String("symbol", symbol),
		zap.String("side", string(pos.Side)),
		zap.Float64("exit_price", exitPrice),
		zap.String("reason", reason))
	m.notifier.Notify(
		fmt.Sprintf("Closed %s", symbol),
		fmt.Sprintf("Exit at ~$%.2f | Reason: %s", exitPrice, reason))
}

// CloseAll force-exits every open position regardless of PnL. Used by the
// end-of-session sweep.
func (m *PositionManager) CloseAll(ctx context.Context, reason string) {
	symbols := m.OpenSymbols()
	if len(symbols) == 0 {
		return
	}
	m.logger.Info("Closing all positions", zap.Strings("symbols", symbols), zap.String("reason", reason))
	for _, symbol := range symbols {
		m.exitPosition(ctx, symbol, reason)
	}
}
