package calculator

import (
	"errors"

	"github.com/markcheno/go-talib"
)

// CalculateSMA returns the latest simple moving average of prices over period.
func CalculateSMA(prices []float64, period int) (float64, error) {
	if period <= 0 {
		return 0, errors.New("period must be positive")
	}
	if len(prices) < period {
		return 0, errors.New("not enough data for SMA calculation")
	}
	sma := talib.Sma(prices, period)
	return sma[len(sma)-1], nil
}

// MovingAverage returns the full SMA line aligned with prices. Positions
// before the first full window are zero.
func MovingAverage(prices []float64, period int) []float64 {
	if period <= 0 || len(prices) < period {
		return make([]float64, len(prices))
	}
	return talib.Sma(prices, period)
}
