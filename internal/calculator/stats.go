package calculator

import (
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"QuoteWatch/internal/model"
)

// Summary holds descriptive statistics of a close-price series.
type Summary struct {
	Count        int     `json:"count"`
	Last         float64 `json:"last"`
	Mean         float64 `json:"mean"`
	StdDev       float64 `json:"stdDev"`
	Min          float64 `json:"min"`
	Max          float64 `json:"max"`
	High         float64 `json:"high"`
	Low          float64 `json:"low"`
	ChangePct    float64 `json:"changePct"`
	Volatility   float64 `json:"volatilityPct"`
	MA20         float64 `json:"ma20,omitempty"`
	MA50         float64 `json:"ma50,omitempty"`
	RSI14        float64 `json:"rsi14"`
	LastVolume   float64 `json:"lastVolume"`
	DayChange    float64 `json:"dayChange"`
	DayChangePct float64 `json:"dayChangePct"`
}

// Summarize computes the statistics shown on the dashboard and in exports.
// Standard deviations are sample (n-1) deviations. Moving averages that
// need more bars than the series has are left at zero.
func Summarize(s *model.Series) Summary {
	closes := s.Closes()
	sum := Summary{
		Count:      len(closes),
		Last:       s.Last().Close,
		Mean:       stat.Mean(closes, nil),
		Min:        floats.Min(closes),
		Max:        floats.Max(closes),
		LastVolume: s.Last().Volume,
	}
	if len(closes) > 1 {
		sum.StdDev = stat.StdDev(closes, nil)
	}
	if first := s.First().Close; first != 0 {
		sum.ChangePct = (sum.Last/first - 1) * 100
	}
	if changes := PercentChanges(closes); len(changes) > 1 {
		sum.Volatility = stat.StdDev(changes, nil) * 100
	}
	sum.High, sum.Low, _ = HighLow(s.Bars)
	if ma, err := CalculateSMA(closes, 20); err == nil {
		sum.MA20 = ma
	}
	if ma, err := CalculateSMA(closes, 50); err == nil {
		sum.MA50 = ma
	}
	sum.RSI14, _ = CalculateRSI(closes, 14)
	sum.DayChange, sum.DayChangePct = s.Change()
	return sum
}
