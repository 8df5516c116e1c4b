package domain

import (
	"math"
	"time"
)

// Trade represents a completed round trip. Rows are append-only: created
// exactly once when a position is closed, never mutated afterwards.
type Trade struct {
	ID         int64
	Symbol     string
	Side       Side
	Qty        int
	EntryPrice float64
	ExitPrice  float64
	EntryTime  time.Time
	ExitTime   time.Time
	Reason     string
	Fees       float64
}

// Regulatory fee components applied on the exit order.
const (
	secFeeRate   = 0.000008 // SEC transaction fee, per dollar of sale proceeds
	finraFeeRate = 0.000145 // FINRA TAF, per share
	finraFeeCap  = 7.27     // FINRA TAF maximum per trade
)

// CalculateFees returns the regulatory fees for an exit, rounded to 4 decimals.
func CalculateFees(qty int, exitPrice float64) float64 {
	sec := float64(qty) * exitPrice * secFeeRate
	finra := math.Min(float64(qty)*finraFeeRate, finraFeeCap)
	return math.Round((sec+finra)*10000) / 10000
}

// RealizedPnL returns the gross profit of the trade before fees.
func (t *Trade) RealizedPnL() float64 {
	if t.Side == SideShort {
		return (t.EntryPrice - t.ExitPrice) * float64(t.Qty)
	}
	return (t.ExitPrice - t.EntryPrice) * float64(t.Qty)
}
