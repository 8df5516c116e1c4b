package domain

import "time"

type Side string

const (
	SideLong  Side = "long"
	SideShort Side = "short"
)

// EntryOrderSide maps a position side to the venue order side that opens it.
func (s Side) EntryOrderSide() string {
	if s == SideShort {
		return "sell"
	}
	return "buy"
}

// ExitOrderSide maps a position side to the venue order side that closes it.
func (s Side) ExitOrderSide() string {
	if s == SideShort {
		return "buy"
	}
	return "sell"
}

// Position represents an open position tracked by the bot.
// At most one open position exists per symbol; Side never changes
// for the life of the position.
type Position struct {
	Symbol       string
	Side         Side
	Qty          int
	EntryPrice   float64
	EntryTime    time.Time
	CurrentPrice float64
	LastUpdate   time.Time
}

// PnLPercent returns the unrealized change relative to the entry price,
// oriented so that positive is always profit.
func (p *Position) PnLPercent(current float64) float64 {
	if p.EntryPrice == 0 {
		return 0
	}
	if p.Side == SideShort {
		return ((p.EntryPrice - current) / p.EntryPrice) * 100
	}
	return ((current - p.EntryPrice) / p.EntryPrice) * 100
}
