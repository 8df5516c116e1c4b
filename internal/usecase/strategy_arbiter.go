package usecase

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"smartbot/internal/domain"
)

const strategyModeKey = "strategy_mode"

// StrategyArbiter holds the effective trading mode and reconciles the bias
// engine's recommendations against manual pins. Manual pins are sticky:
// automatic recomputation never overrides them; an explicit Set always wins.
type StrategyArbiter struct {
	meta   domain.MetaRepository
	bias   domain.BiasRepository
	logger *zap.Logger

	mu   sync.RWMutex
	mode domain.StrategyMode
}

func NewStrategyArbiter(meta domain.MetaRepository, bias domain.BiasRepository, logger *zap.Logger) *StrategyArbiter {
	return &StrategyArbiter{
		meta:   meta,
		bias:   bias,
		logger: logger,
		mode:   domain.AutoMode(domain.StrategyBoth),
	}
}

// Load restores the persisted mode; an absent row keeps the neutral default.
func (a *StrategyArbiter) Load(ctx context.Context) error {
	value, err := a.meta.GetMeta(ctx, strategyModeKey)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil
		}
		return err
	}

	a.mu.Lock()
	a.mode = domain.StrategyMode(value)
	a.mu.Unlock()
	return nil
}

// Mode returns the raw mode including any manual marker.
func (a *StrategyArbiter) Mode() domain.StrategyMode {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.mode
}

// Effective returns the direction gating entries, manual marker stripped.
func (a *StrategyArbiter) Effective() domain.Strategy {
	return a.Mode().Effective()
}

// ApplyBias handles the periodic "bias changed" transition. Suppressed while
// manually pinned; a changed auto direction is persisted and logged.
func (a *StrategyArbiter) ApplyBias(ctx context.Context, recommended domain.Strategy) error {
	a.mu.Lock()
	if a.mode.IsManual() {
		a.mu.Unlock()
		a.logger.Info("Manual mode active, bias recommendation suppressed",
			zap.String("recommended", string(recommended)))
		return nil
	}
	if a.mode.Effective() == recommended {
		a.mu.Unlock()
		return nil
	}
	previous := a.mode
	a.mode = domain.AutoMode(recommended)
	a.mu.Unlock()

	a.logger.Info("Bias shift detected",
		zap.String("from", string(previous)),
		zap.String("to", string(recommended)))

	if err := a.meta.SetMeta(ctx, strategyModeKey, string(domain.AutoMode(recommended))); err != nil {
		return err
	}
	if err := a.bias.LogDecision(ctx, &domain.BiasDecision{
		Strategy:  recommended,
		Source:    domain.DecisionSourceAutoUpdate,
		Timestamp: time.Now(),
	}); err != nil {
		a.logger.Error("Failed to log auto-update decision", zap.Error(err))
	}
	return nil
}

// Set is the explicit transition: it always succeeds and overwrites the
// prior mode unconditionally, manual pin or not.
func (a *StrategyArbiter) Set(ctx context.Context, mode domain.StrategyMode) error {
	a.mu.Lock()
	a.mode = mode
	a.mu.Unlock()

	a.logger.Info("Strategy mode set", zap.String("mode", string(mode)))
	return a.meta.SetMeta(ctx, strategyModeKey, string(mode))
}
