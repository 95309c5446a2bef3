package model

import (
	"fmt"
	"time"
)

// Bar is one sampled OHLCV point. Time is stored in UTC.
type Bar struct {
	Time   time.Time `json:"time"`
	Open   float64   `json:"open"`
	High   float64   `json:"high"`
	Low    float64   `json:"low"`
	Close  float64   `json:"close"`
	Volume float64   `json:"volume"`
}

// Series is a non-empty, strictly time-ordered run of bars for one symbol
// at one sampling interval.
type Series struct {
	Symbol   Symbol `json:"symbol"`
	Interval string `json:"interval"`
	Bars     []Bar  `json:"bars"`
}

// NewSeries validates ordering and normalizes every timestamp to UTC.
func NewSeries(symbol Symbol, interval string, bars []Bar) (*Series, error) {
	if len(bars) == 0 {
		return nil, fmt.Errorf("%w: empty series for %s", ErrInvalidParameter, symbol)
	}
	out := make([]Bar, len(bars))
	for i, b := range bars {
		b.Time = b.Time.UTC()
		if i > 0 && !b.Time.After(out[i-1].Time) {
			return nil, fmt.Errorf("%w: bar %d at %s is not after %s", ErrInvalidParameter,
				i, b.Time.Format(time.RFC3339), out[i-1].Time.Format(time.RFC3339))
		}
		out[i] = b
	}
	return &Series{Symbol: symbol, Interval: interval, Bars: out}, nil
}

func (s *Series) Len() int   { return len(s.Bars) }
func (s *Series) First() Bar { return s.Bars[0] }
func (s *Series) Last() Bar  { return s.Bars[len(s.Bars)-1] }

// Closes returns the close prices in time order.
func (s *Series) Closes() []float64 {
	closes := make([]float64, len(s.Bars))
	for i, b := range s.Bars {
		closes[i] = b.Close
	}
	return closes
}

// Change compares the last close with the one before it. A single-bar
// series has no change.
func (s *Series) Change() (abs, pct float64) {
	if len(s.Bars) < 2 {
		return 0, 0
	}
	prev := s.Bars[len(s.Bars)-2].Close
	abs = s.Last().Close - prev
	if prev != 0 {
		pct = abs / prev * 100
	}
	return abs, pct
}

// Profile is descriptive company data. Any field may be missing upstream;
// missing numeric fields are nil.
type Profile struct {
	Symbol        Symbol   `json:"symbol"`
	DisplayName   string   `json:"displayName,omitempty"`
	Sector        string   `json:"sector,omitempty"`
	Industry      string   `json:"industry,omitempty"`
	Currency      string   `json:"currency,omitempty"`
	MarketCap     *float64 `json:"marketCap,omitempty"`
	PERatio       *float64 `json:"peRatio,omitempty"`
	DividendYield *float64 `json:"dividendYield,omitempty"`
	Beta          *float64 `json:"beta,omitempty"`
}
