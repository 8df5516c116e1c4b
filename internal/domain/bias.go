package domain

import (
	"strings"
	"time"
)

// Strategy is the direction currently allowed for new entries.
type Strategy string

const (
	StrategyLong  Strategy = "long"
	StrategyShort Strategy = "short"
	StrategyBoth  Strategy = "both"
)

const manualPrefix = "manual-"

// StrategyMode is the raw persisted mode: a Strategy value, or the same
// value with a "manual-" prefix when a human pinned it. Manual pins are
// sticky: the automatic bias recompute never overrides them.
type StrategyMode string

func AutoMode(d Strategy) StrategyMode   { return StrategyMode(d) }
func ManualMode(d Strategy) StrategyMode { return StrategyMode(manualPrefix + string(d)) }

// IsManual reports whether the mode was pinned by an explicit override.
func (m StrategyMode) IsManual() bool {
	return strings.HasPrefix(string(m), manualPrefix)
}

// Effective strips the manual marker; this is the direction that gates entries.
func (m StrategyMode) Effective() Strategy {
	return Strategy(strings.TrimPrefix(string(m), manualPrefix))
}

// BiasComponent is one independent market signal's latest contribution.
// One row per component, overwritten in place every recompute cycle.
type BiasComponent struct {
	Component   string
	LastValue   string
	Score       int // -1, 0, or 1
	Weight      float64
	LastUpdated time.Time
}

// BiasDecision is an append-only log entry for a consensus result.
type BiasDecision struct {
	Strategy  Strategy
	Source    string
	Timestamp time.Time
}

// Decision sources distinguishing how a recompute was triggered.
const (
	DecisionSourceOnDemand   = "bias-check"  // explicit one-shot check
	DecisionSourceScheduled  = "scheduled"   // periodic automatic recompute
	DecisionSourceAutoUpdate = "auto-update" // mode actually switched by the arbiter
)
