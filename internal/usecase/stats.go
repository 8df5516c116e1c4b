package usecase

import (
	"context"

	"smartbot/internal/domain"
)

const dailyTimeframe = "1Day"

// FetchStats assembles the classifier input for a symbol: the current
// session's daily bar plus the latest trade price.
func FetchStats(ctx context.Context, venue domain.ExecutionVenue, symbol string) (domain.CandidateStats, error) {
	bars, err := venue.GetBars(ctx, symbol, dailyTimeframe, 1)
	if err != nil {
		return domain.CandidateStats{}, err
	}
	if len(bars) == 0 {
		return domain.CandidateStats{}, domain.ErrNoBars
	}

	current, err := venue.GetLatestTrade(ctx, symbol)
	if err != nil {
		return domain.CandidateStats{}, err
	}

	bar := bars[len(bars)-1]
	return domain.CandidateStats{
		Symbol:  symbol,
		Open:    bar.Open,
		High:    bar.High,
		Low:     bar.Low,
		Current: current,
	}, nil
}
