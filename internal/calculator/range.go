package calculator

import (
	"errors"
	"math"

	"QuoteWatch/internal/model"
)

// HighLow scans bars and returns the highest high and lowest low.
func HighLow(bars []model.Bar) (high, low float64, err error) {
	if len(bars) == 0 {
		return 0, 0, errors.New("no bars provided")
	}
	high = math.Inf(-1)
	low = math.Inf(1)
	for _, b := range bars {
		if b.High > high {
			high = b.High
		}
		if b.Low < low {
			low = b.Low
		}
	}
	return high, low, nil
}

// PercentChanges converts prices into period-over-period changes. Entries
// following a zero price are skipped.
func PercentChanges(prices []float64) []float64 {
	if len(prices) < 2 {
		return nil
	}
	out := make([]float64, 0, len(prices)-1)
	for i := 1; i < len(prices); i++ {
		if prices[i-1] == 0 {
			continue
		}
		out = append(out, (prices[i]-prices[i-1])/prices[i-1])
	}
	return out
}
