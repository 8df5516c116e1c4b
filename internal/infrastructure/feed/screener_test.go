package feed

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"smartbot/internal/domain"
)

type stubRules struct {
	rules map[string]float64
	err   error
}

func (s *stubRules) ListSetupRules(ctx context.Context) (map[string]float64, error) {
	return s.rules, s.err
}

func (s *stubRules) SaveSetupRule(ctx context.Context, name string, value float64) error {
	return nil
}

func screenerResponse(quotes string) string {
	return fmt.Sprintf(`{"finance":{"result":[{"quotes":[%s]}]}}`, quotes)
}

func newTestScreener(t *testing.T, body string, rules *stubRules) *YahooScreener {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("scrIds") != "day_losers" {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	if rules == nil {
		rules = &stubRules{}
	}
	return NewYahooScreener(srv.URL, rules, zap.NewNop())
}

func TestFetchCandidatesLong(t *testing.T) {
	body := screenerResponse(`
		{"symbol":"DEEP","regularMarketPrice":12,"regularMarketChangePercent":-20,"regularMarketVolume":900000},
		{"symbol":"GOOD","regularMarketPrice":15,"regularMarketChangePercent":-5,"regularMarketVolume":900000},
		{"symbol":"MILD","regularMarketPrice":15,"regularMarketChangePercent":-1,"regularMarketVolume":900000}`)
	screener := newTestScreener(t, body, nil)

	symbols, err := screener.FetchCandidates(context.Background(), domain.StrategyLong)
	require.NoError(t, err)
	// -20 is past the long window, -1 has not dropped enough.
	assert.Equal(t, []string{"GOOD"}, symbols)
}

func TestFetchCandidatesShortIncludesDeepLosers(t *testing.T) {
	body := screenerResponse(`
		{"symbol":"DEEP","regularMarketPrice":12,"regularMarketChangePercent":-20,"regularMarketVolume":900000},
		{"symbol":"GOOD","regularMarketPrice":15,"regularMarketChangePercent":-5,"regularMarketVolume":900000},
		{"symbol":"MILD","regularMarketPrice":15,"regularMarketChangePercent":-1,"regularMarketVolume":900000}`)
	screener := newTestScreener(t, body, nil)

	symbols, err := screener.FetchCandidates(context.Background(), domain.StrategyShort)
	require.NoError(t, err)
	assert.Equal(t, []string{"DEEP", "GOOD"}, symbols)
}

func TestFetchCandidatesBothIsDeduplicatedUnion(t *testing.T) {
	body := screenerResponse(`
		{"symbol":"DEEP","regularMarketPrice":12,"regularMarketChangePercent":-20,"regularMarketVolume":900000},
		{"symbol":"GOOD","regularMarketPrice":15,"regularMarketChangePercent":-5,"regularMarketVolume":900000}`)
	screener := newTestScreener(t, body, nil)

	symbols, err := screener.FetchCandidates(context.Background(), domain.StrategyBoth)
	require.NoError(t, err)
	// GOOD qualifies for both directions but appears once.
	assert.Equal(t, []string{"DEEP", "GOOD"}, symbols)
}

func TestFetchCandidatesLiquidityFilters(t *testing.T) {
	body := screenerResponse(`
		{"symbol":"THIN","regularMarketPrice":15,"regularMarketChangePercent":-5,"regularMarketVolume":100000},
		{"symbol":"PENNY","regularMarketPrice":1.5,"regularMarketChangePercent":-5,"regularMarketVolume":900000},
		{"symbol":"GOOD","regularMarketPrice":15,"regularMarketChangePercent":-5,"regularMarketVolume":900000}`)
	screener := newTestScreener(t, body, nil)

	symbols, err := screener.FetchCandidates(context.Background(), domain.StrategyBoth)
	require.NoError(t, err)
	assert.Equal(t, []string{"GOOD"}, symbols)
}

func TestFetchCandidatesStoredRulesOverrideDefaults(t *testing.T) {
	body := screenerResponse(`
		{"symbol":"THIN","regularMarketPrice":15,"regularMarketChangePercent":-5,"regularMarketVolume":100000}`)
	rules := &stubRules{rules: map[string]float64{"min_volume": 50000}}
	screener := newTestScreener(t, body, rules)

	symbols, err := screener.FetchCandidates(context.Background(), domain.StrategyBoth)
	require.NoError(t, err)
	assert.Equal(t, []string{"THIN"}, symbols)
}

func TestFetchCandidatesRuleLookupFailureFallsBackToDefaults(t *testing.T) {
	body := screenerResponse(`
		{"symbol":"GOOD","regularMarketPrice":15,"regularMarketChangePercent":-5,"regularMarketVolume":900000}`)
	rules := &stubRules{err: errors.New("db locked")}
	screener := newTestScreener(t, body, rules)

	symbols, err := screener.FetchCandidates(context.Background(), domain.StrategyBoth)
	require.NoError(t, err)
	assert.Equal(t, []string{"GOOD"}, symbols)
}

func TestFetchCandidatesEmptyScreen(t *testing.T) {
	screener := newTestScreener(t, `{"finance":{"result":[]}}`, nil)

	symbols, err := screener.FetchCandidates(context.Background(), domain.StrategyBoth)
	require.NoError(t, err)
	assert.Empty(t, symbols)
}

func TestFetchCandidatesServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()
	screener := NewYahooScreener(srv.URL, &stubRules{}, zap.NewNop())

	_, err := screener.FetchCandidates(context.Background(), domain.StrategyBoth)
	assert.Error(t, err)
}
