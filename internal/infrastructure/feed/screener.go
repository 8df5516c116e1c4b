package feed

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"

	"smartbot/internal/domain"
)

const YahooBaseURL = "https://query1.finance.yahoo.com"

// Screening thresholds, overridable row by row in the setup_rules table.
const (
	defaultMinVolume    = 500000
	defaultMinPrice     = 2.0
	defaultShortDropMin = -2.0
	defaultLongDropMin  = -15.0
	defaultLongDropMax  = -2.0
)

// YahooScreener pulls the day_losers predefined screen and filters it
// down to candidate symbols for the requested direction.
type YahooScreener struct {
	baseURL string
	client  *http.Client
	rules   domain.RuleRepository
	logger  *zap.Logger
}

func NewYahooScreener(baseURL string, rules domain.RuleRepository, logger *zap.Logger) *YahooScreener {
	return &YahooScreener{
		baseURL: baseURL,
		client:  &http.Client{Timeout: 15 * time.Second},
		rules:   rules,
		logger:  logger,
	}
}

type quote struct {
	Symbol        string  `json:"symbol"`
	Price         float64 `json:"regularMarketPrice"`
	ChangePercent float64 `json:"regularMarketChangePercent"`
	Volume        int64   `json:"regularMarketVolume"`
}

func (y *YahooScreener) FetchCandidates(ctx context.Context, direction domain.Strategy) ([]string, error) {
	quotes, err := y.fetchLosers(ctx)
	if err != nil {
		return nil, err
	}

	rules, err := y.rules.ListSetupRules(ctx)
	if err != nil {
		y.logger.Warn("setup rules unavailable, using defaults", zap.Error(err))
		rules = nil
	}

	minVolume := ruleOr(rules, "min_volume", defaultMinVolume)
	minPrice := ruleOr(rules, "min_price", defaultMinPrice)
	shortDropMin := ruleOr(rules, "short_drop_min", defaultShortDropMin)
	longDropMin := ruleOr(rules, "long_drop_min", defaultLongDropMin)
	longDropMax := ruleOr(rules, "long_drop_max", defaultLongDropMax)

	wantLong := direction == domain.StrategyLong || direction == domain.StrategyBoth
	wantShort := direction == domain.StrategyShort || direction == domain.StrategyBoth

	var symbols []string
	seen := make(map[string]bool)
	for _, q := range quotes {
		if q.Symbol == "" || seen[q.Symbol] {
			continue
		}
		if float64(q.Volume) < minVolume || q.Price < minPrice {
			continue
		}

		longFit := q.ChangePercent >= longDropMin && q.ChangePercent <= longDropMax
		shortFit := q.ChangePercent <= shortDropMin

		if (wantLong && longFit) || (wantShort && shortFit) {
			seen[q.Symbol] = true
			symbols = append(symbols, q.Symbol)
		}
	}

	y.logger.Debug("screened candidates",
		zap.String("direction", string(direction)),
		zap.Int("screened", len(quotes)),
		zap.Int("candidates", len(symbols)))
	return symbols, nil
}

func (y *YahooScreener) fetchLosers(ctx context.Context) ([]quote, error) {
	url := y.baseURL + "/v1/finance/screener/predefined/saved?scrIds=day_losers&count=100"
	req, err := http.NewRequestWithContext(ctx, "GET", url, nil)
	if err != nil {
		return nil, err
	}
	// Yahoo rejects requests without a browser-ish agent.
	req.Header.Set("User-Agent", "Mozilla/5.0")

	resp, err := y.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("screener error %d: %s", resp.StatusCode, string(body))
	}

	var result struct {
		Finance struct {
			Result []struct {
				Quotes []quote `json:"quotes"`
			} `json:"result"`
		} `json:"finance"`
	}
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, err
	}
	if len(result.Finance.Result) == 0 {
		return nil, nil
	}
	return result.Finance.Result[0].Quotes, nil
}

func ruleOr(rules map[string]float64, name string, fallback float64) float64 {
	if v, ok := rules[name]; ok {
		return v
	}
	return fallback
}
