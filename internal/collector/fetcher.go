package collector

import (
	"context"
	"fmt"

	"QuoteWatch/internal/model"
)

// Fetcher is the narrow contract the engines use to reach a quote source.
// Every failure wraps model.ErrFetch; retries, if any, are the adapter's
// business.
type Fetcher interface {
	FetchHistory(ctx context.Context, symbol model.Symbol, period, interval string) (*model.Series, error)
	FetchLatestPrice(ctx context.Context, symbol model.Symbol) (float64, error)
	FetchProfile(ctx context.Context, symbol model.Symbol) (*model.Profile, error)
	Name() string
}

// Periods and Intervals list the values the dashboard offers.
var (
	Periods   = []string{"1d", "5d", "1mo", "3mo", "6mo", "1y", "2y", "5y"}
	Intervals = []string{"1m", "2m", "5m", "15m", "30m", "1h", "1d", "1wk", "1mo"}
)

// ValidateRange rejects periods and intervals the quote source cannot serve.
func ValidateRange(period, interval string) error {
	if !contains(Periods, period) {
		return fmt.Errorf("%w: unsupported period %q", model.ErrInvalidParameter, period)
	}
	if !contains(Intervals, interval) {
		return fmt.Errorf("%w: unsupported interval %q", model.ErrInvalidParameter, interval)
	}
	return nil
}

// DefaultInterval mirrors the dashboard: intraday bars for a one-day
// period, daily bars otherwise.
func DefaultInterval(period string) string {
	if period == "1d" {
		return "30m"
	}
	return "1d"
}

func contains(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}

func fetchErr(format string, args ...any) error {
	return fmt.Errorf("%w: "+format, append([]any{model.ErrFetch}, args...)...)
}
