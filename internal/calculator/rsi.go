package calculator

import (
	"errors"

	"github.com/markcheno/go-talib"
)

// CalculateRSI returns the latest Wilder RSI. Needs at least period+1 prices;
// with less data it reports the neutral 50.
func CalculateRSI(prices []float64, period int) (float64, error) {
	if period <= 0 {
		return 0, errors.New("period must be positive")
	}
	if len(prices) < period+1 {
		return 50.0, nil
	}
	rsi := talib.Rsi(prices, period)
	return rsi[len(rsi)-1], nil
}
