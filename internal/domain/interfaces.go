package domain

import (
	"context"
	"time"
)

// Asset is the venue's tradability record for a symbol.
type Asset struct {
	Symbol    string
	Tradable  bool
	Shortable bool
}

// Bar is one OHLC candle, most-recent last in GetBars results.
type Bar struct {
	Open  float64
	High  float64
	Low   float64
	Close float64
}

// OrderRequest is a single-leg market day order.
type OrderRequest struct {
	Symbol        string
	Qty           int
	Side          string // "buy" or "sell"
	Type          string
	TimeInForce   string
	ClientOrderID string
}

// ExecutionVenue is the broker the bot trades through.
type ExecutionVenue interface {
	GetAsset(ctx context.Context, symbol string) (*Asset, error)
	CreateOrder(ctx context.Context, order *OrderRequest) error
	GetLatestTrade(ctx context.Context, symbol string) (float64, error)
	GetBars(ctx context.Context, symbol, timeframe string, limit int) ([]Bar, error)
	GetPositions(ctx context.Context) ([]*Position, error)
}

// CandidateFeed returns symbols passing coarse liquidity/price/change filters.
// Direction "both" must return the de-duplicated union of long and short.
type CandidateFeed interface {
	FetchCandidates(ctx context.Context, direction Strategy) ([]string, error)
}

// PositionRepository defines storage for open positions.
type PositionRepository interface {
	SavePosition(ctx context.Context, pos *Position) error
	GetPosition(ctx context.Context, symbol string) (*Position, error)
	ListPositions(ctx context.Context) ([]*Position, error)
	UpdateCurrentPrice(ctx context.Context, symbol string, price float64, at time.Time) error
	RemovePosition(ctx context.Context, symbol string) error
	ReplacePositions(ctx context.Context, positions []*Position) error
}

// TradeRepository defines storage for completed trades.
type TradeRepository interface {
	LogTrade(ctx context.Context, trade *Trade) error
	ListTrades(ctx context.Context, limit int) ([]*Trade, error)
}

// BiasRepository defines storage for bias components and decision history.
type BiasRepository interface {
	UpdateComponent(ctx context.Context, component, lastValue string, score int) error
	ListComponents(ctx context.Context) ([]*BiasComponent, error)
	LogDecision(ctx context.Context, decision *BiasDecision) error
}

// MetaRepository is a small key/value table for the strategy mode and
// run bookkeeping. GetMeta returns ErrNotFound for absent keys.
type MetaRepository interface {
	GetMeta(ctx context.Context, key string) (string, error)
	SetMeta(ctx context.Context, key, value string) error
}

// RuleRepository holds the configurable screener thresholds.
type RuleRepository interface {
	ListSetupRules(ctx context.Context) (map[string]float64, error)
	SaveSetupRule(ctx context.Context, name string, value float64) error
}

// QuoteStream delivers live trade prints for subscribed symbols.
// Implementations connect lazily on the first subscription.
type QuoteStream interface {
	Subscribe(symbols []string) error
}

// Notifier delivers trade alerts. Fire-and-forget: implementations log
// failures and never propagate them into the decision path.
type Notifier interface {
	Notify(subject, body string)
}
