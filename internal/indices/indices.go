package indices

import (
	"context"
	"fmt"
	"sort"

	"golang.org/x/sync/errgroup"

	"QuoteWatch/internal/calculator"
	"QuoteWatch/internal/collector"
	"QuoteWatch/internal/model"
)

// Index is a tracked benchmark.
type Index struct {
	Symbol model.Symbol `json:"symbol"`
	Label  string       `json:"label"`
}

// FromMap builds the index list from a symbol to label map, sorted by
// symbol. Unparseable symbols are skipped.
func FromMap(m map[string]string) []Index {
	out := make([]Index, 0, len(m))
	for raw, label := range m {
		sym, err := model.ParseSymbol(raw)
		if err != nil {
			continue
		}
		out = append(out, Index{Symbol: sym, Label: label})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Symbol.String() < out[j].Symbol.String() })
	return out
}

// Row is one line of the comparison table.
type Row struct {
	Index
	Value     float64 `json:"value"`
	ChangePct float64 `json:"changePct"` // first to last close over five days
	Direction string  `json:"direction"`
}

type Comparison struct {
	Rows   []Row          `json:"rows"`
	Failed []model.Symbol `json:"failed"`
}

func direction(pct float64) string {
	switch {
	case pct > 0:
		return "up"
	case pct < 0:
		return "down"
	}
	return "flat"
}

// Compare loads five days of history for every index concurrently. An index
// that cannot be loaded is listed in Failed and never aborts the rest.
func Compare(ctx context.Context, f collector.Fetcher, list []Index) *Comparison {
	rows := make([]*Row, len(list))

	var eg errgroup.Group
	eg.SetLimit(4)
	for i, idx := range list {
		i, idx := i, idx
		eg.Go(func() error {
			s, err := f.FetchHistory(ctx, idx.Symbol, "5d", "1d")
			if err != nil {
				return nil
			}
			first, last := s.First().Close, s.Last().Close
			r := &Row{Index: idx, Value: last}
			if first != 0 {
				r.ChangePct = (last - first) / first * 100
			}
			r.Direction = direction(r.ChangePct)
			rows[i] = r
			return nil
		})
	}
	_ = eg.Wait()

	c := &Comparison{Rows: []Row{}, Failed: []model.Symbol{}}
	for i, r := range rows {
		if r == nil {
			c.Failed = append(c.Failed, list[i].Symbol)
			continue
		}
		c.Rows = append(c.Rows, *r)
	}
	return c
}

// Detail is the headline view of a single index.
type Detail struct {
	Symbol     model.Symbol  `json:"symbol"`
	Period     string        `json:"period"`
	Value      float64       `json:"value"`
	Change     float64       `json:"change"`
	ChangePct  float64       `json:"changePct"`
	High       float64       `json:"high"`
	Low        float64       `json:"low"`
	Mean       float64       `json:"mean"`
	Volatility float64       `json:"volatilityPct"`
	Series     *model.Series `json:"series"`
}

// LoadDetail fails when the index cannot be loaded.
func LoadDetail(ctx context.Context, f collector.Fetcher, symbol model.Symbol, period string) (*Detail, error) {
	s, err := f.FetchHistory(ctx, symbol, period, collector.DefaultInterval(period))
	if err != nil {
		return nil, fmt.Errorf("load index %s: %w", symbol, err)
	}
	sum := calculator.Summarize(s)
	return &Detail{
		Symbol:     symbol,
		Period:     period,
		Value:      sum.Last,
		Change:     sum.DayChange,
		ChangePct:  sum.DayChangePct,
		High:       sum.High,
		Low:        sum.Low,
		Mean:       sum.Mean,
		Volatility: sum.Volatility,
		Series:     s,
	}, nil
}
