package usecase

import (
	"context"
	"fmt"
	"sync"
	"time"

	"smartbot/internal/domain"
)

// mockVenue scripts venue behavior per symbol. Order errors are queued:
// each CreateOrder for a symbol pops the next error (nil = accepted).
type mockVenue struct {
	mu        sync.Mutex
	assets    map[string]domain.Asset
	prices    map[string]float64
	bars      map[string][]domain.Bar // keyed "SYMBOL/timeframe"
	orderErrs map[string][]error
	orders    []*domain.OrderRequest
	account   []*domain.Position
}

func newMockVenue() *mockVenue {
	return &mockVenue{
		assets:    make(map[string]domain.Asset),
		prices:    make(map[string]float64),
		bars:      make(map[string][]domain.Bar),
		orderErrs: make(map[string][]error),
	}
}

func (v *mockVenue) setDaily(symbol string, open, high, low float64) {
	v.bars[symbol+"/1Day"] = []domain.Bar{{Open: open, High: high, Low: low, Close: 0}}
}

func (v *mockVenue) queueOrderErr(symbol string, err error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.orderErrs[symbol] = append(v.orderErrs[symbol], err)
}

func (v *mockVenue) GetAsset(ctx context.Context, symbol string) (*domain.Asset, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if a, ok := v.assets[symbol]; ok {
		return &a, nil
	}
	return &domain.Asset{Symbol: symbol, Tradable: true, Shortable: true}, nil
}

func (v *mockVenue) CreateOrder(ctx context.Context, order *domain.OrderRequest) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	if queue := v.orderErrs[order.Symbol]; len(queue) > 0 {
		err := queue[0]
		v.orderErrs[order.Symbol] = queue[1:]
		if err != nil {
			return err
		}
	}
	v.orders = append(v.orders, order)
	return nil
}

func (v *mockVenue) GetLatestTrade(ctx context.Context, symbol string) (float64, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	price, ok := v.prices[symbol]
	if !ok {
		return 0, fmt.Errorf("no trade for %s", symbol)
	}
	return price, nil
}

func (v *mockVenue) GetBars(ctx context.Context, symbol, timeframe string, limit int) ([]domain.Bar, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	bars, ok := v.bars[symbol+"/"+timeframe]
	if !ok {
		return nil, domain.ErrNoBars
	}
	if len(bars) > limit {
		bars = bars[len(bars)-limit:]
	}
	return bars, nil
}

func (v *mockVenue) GetPositions(ctx context.Context) ([]*domain.Position, error) {
	return v.account, nil
}

func (v *mockVenue) orderCount() int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return len(v.orders)
}

type mockFeed struct {
	results map[domain.Strategy][]string
	err     error
	calls   []domain.Strategy
}

func (f *mockFeed) FetchCandidates(ctx context.Context, direction domain.Strategy) ([]string, error) {
	f.calls = append(f.calls, direction)
	if f.err != nil {
		return nil, f.err
	}
	return f.results[direction], nil
}

type mockBiasRepo struct {
	mu         sync.Mutex
	components []*domain.BiasComponent
	decisions  []*domain.BiasDecision
	listErr    error
}

func (r *mockBiasRepo) UpdateComponent(ctx context.Context, component, lastValue string, score int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, c := range r.components {
		if c.Component == component {
			c.LastValue = lastValue
			c.Score = score
			c.LastUpdated = time.Now()
			return nil
		}
	}
	r.components = append(r.components, &domain.BiasComponent{
		Component: component, LastValue: lastValue, Score: score, Weight: 1, LastUpdated: time.Now(),
	})
	return nil
}

func (r *mockBiasRepo) ListComponents(ctx context.Context) ([]*domain.BiasComponent, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.listErr != nil {
		return nil, r.listErr
	}
	out := make([]*domain.BiasComponent, len(r.components))
	copy(out, r.components)
	return out, nil
}

func (r *mockBiasRepo) LogDecision(ctx context.Context, decision *domain.BiasDecision) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.decisions = append(r.decisions, decision)
	return nil
}

type mockMetaRepo struct {
	mu     sync.Mutex
	values map[string]string
}

func newMockMetaRepo() *mockMetaRepo {
	return &mockMetaRepo{values: make(map[string]string)}
}

func (r *mockMetaRepo) GetMeta(ctx context.Context, key string) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	v, ok := r.values[key]
	if !ok {
		return "", domain.ErrNotFound
	}
	return v, nil
}

func (r *mockMetaRepo) SetMeta(ctx context.Context, key, value string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.values[key] = value
	return nil
}

type mockPositionRepo struct {
	mu        sync.Mutex
	positions map[string]*domain.Position
}

func newMockPositionRepo() *mockPositionRepo {
	return &mockPositionRepo{positions: make(map[string]*domain.Position)}
}

func (r *mockPositionRepo) SavePosition(ctx context.Context, pos *domain.Position) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	copied := *pos
	r.positions[pos.Symbol] = &copied
	return nil
}

func (r *mockPositionRepo) GetPosition(ctx context.Context, symbol string) (*domain.Position, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	pos, ok := r.positions[symbol]
	if !ok {
		return nil, domain.ErrNotFound
	}
	copied := *pos
	return &copied, nil
}

func (r *mockPositionRepo) ListPositions(ctx context.Context) ([]*domain.Position, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*domain.Position, 0, len(r.positions))
	for _, p := range r.positions {
		copied := *p
		out = append(out, &copied)
	}
	return out, nil
}

func (r *mockPositionRepo) UpdateCurrentPrice(ctx context.Context, symbol string, price float64, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if pos, ok := r.positions[symbol]; ok {
		pos.CurrentPrice = price
		pos.LastUpdate = at
	}
	return nil
}

func (r *mockPositionRepo) RemovePosition(ctx context.Context, symbol string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.positions, symbol)
	return nil
}

func (r *mockPositionRepo) ReplacePositions(ctx context.Context, positions []*domain.Position) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.positions = make(map[string]*domain.Position, len(positions))
	for _, p := range positions {
		copied := *p
		r.positions[p.Symbol] = &copied
	}
	return nil
}

func (r *mockPositionRepo) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.positions)
}

type mockTradeRepo struct {
	mu     sync.Mutex
	trades []*domain.Trade
}

func (r *mockTradeRepo) LogTrade(ctx context.Context, trade *domain.Trade) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.trades = append(r.trades, trade)
	return nil
}

func (r *mockTradeRepo) ListTrades(ctx context.Context, limit int) ([]*domain.Trade, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*domain.Trade, len(r.trades))
	copy(out, r.trades)
	return out, nil
}

type mockStream struct {
	mu            sync.Mutex
	subscriptions [][]string
	err           error
}

func (s *mockStream) Subscribe(symbols []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.subscriptions = append(s.subscriptions, symbols)
	return nil
}

func (s *mockStream) subscribed() [][]string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([][]string, len(s.subscriptions))
	copy(out, s.subscriptions)
	return out
}

type mockNotifier struct {
	mu       sync.Mutex
	subjects []string
}

func (n *mockNotifier) Notify(subject, body string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.subjects = append(n.subjects, subject)
}
