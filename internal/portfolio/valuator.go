package portfolio

import (
	"context"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"QuoteWatch/internal/model"
	"QuoteWatch/internal/recorder"
)

// PriceFunc looks up the current price of one symbol.
type PriceFunc func(ctx context.Context, symbol model.Symbol) (float64, error)

// Line is the valuation of everything held in one symbol. Shares is the
// total over all lots and BuyPrice the share-weighted average.
type Line struct {
	Symbol       model.Symbol   `json:"symbol"`
	Market       string         `json:"market"`
	Lots         int            `json:"lots"`
	Shares       float64        `json:"shares"`
	BuyPrice     float64        `json:"buyPrice"`
	CurrentPrice float64        `json:"currentPrice"`
	Currency     model.Currency `json:"currency"`
	Cost         float64        `json:"cost"`
	MarketValue  float64        `json:"marketValue"`
	Profit       float64        `json:"profit"`
	ProfitPct    float64        `json:"profitPct"`
}

// Totals are nominal sums within a single currency.
type Totals struct {
	Cost      float64 `json:"cost"`
	Value     float64 `json:"value"`
	Profit    float64 `json:"profit"`
	ProfitPct float64 `json:"profitPct"`
}

// Allocation is the market value held on one exchange.
type Allocation struct {
	Market   string         `json:"market"`
	Currency model.Currency `json:"currency"`
	Value    float64        `json:"value"`
	Weight   float64        `json:"weightPct"` // share of the currency's total value
}

// Report is the outcome of one valuation. Failed symbols have no line and
// do not contribute to any total.
type Report struct {
	AsOf          time.Time                 `json:"asOf"`
	Lines         []Line                    `json:"lines"`
	Totals        map[model.Currency]Totals `json:"totals"`
	FailedSymbols []model.Symbol            `json:"failedSymbols"`
	Distribution  []Allocation              `json:"distribution"`
}

// Valuator prices a portfolio by fanning out one lookup per symbol.
type Valuator struct {
	limit int
	rec   recorder.Recorder
	log   zerolog.Logger
	now   func() time.Time
}

// NewValuator creates a valuator running at most limit lookups at once.
func NewValuator(limit int, rec recorder.Recorder, logger zerolog.Logger) *Valuator {
	if limit < 1 {
		limit = 4
	}
	if rec == nil {
		rec = recorder.NewNoopRecorder()
	}
	return &Valuator{
		limit: limit,
		rec:   rec,
		log:   logger.With().Str("component", "valuator").Logger(),
		now:   time.Now,
	}
}

type priced struct {
	price float64
	err   error
}

// Value prices every symbol in p. A failed lookup only drops that symbol.
func (v *Valuator) Value(ctx context.Context, p *Portfolio, lookup PriceFunc) *Report {
	holdings := p.holdings()
	results := make([]priced, len(holdings))

	var eg errgroup.Group
	eg.SetLimit(v.limit)
	for i, lots := range holdings {
		i := i
		sym := lots[0].Symbol
		eg.Go(func() error {
			price, err := lookup(ctx, sym)
			if err == nil && price <= 0 {
				err = fmt.Errorf("%w: non-positive price %v for %s", model.ErrFetch, price, sym)
			}
			results[i] = priced{price: price, err: err}
			return nil
		})
	}
	_ = eg.Wait()

	report := &Report{
		AsOf:          v.now().UTC(),
		Lines:         []Line{},
		Totals:        make(map[model.Currency]Totals),
		FailedSymbols: []model.Symbol{},
	}
	type bucket struct{ cost, value decimal.Decimal }
	byCurrency := make(map[model.Currency]*bucket)

	for i, lots := range holdings {
		sym := lots[0].Symbol
		if err := results[i].err; err != nil {
			v.log.Warn().Err(err).Str("symbol", sym.String()).Msg("price lookup failed")
			report.FailedSymbols = append(report.FailedSymbols, sym)
			continue
		}
		line, cost, value := valueLine(lots, results[i].price)
		report.Lines = append(report.Lines, line)

		b, ok := byCurrency[line.Currency]
		if !ok {
			b = &bucket{}
			byCurrency[line.Currency] = b
		}
		b.cost = b.cost.Add(cost)
		b.value = b.value.Add(value)
	}

	for cur, b := range byCurrency {
		report.Totals[cur] = totals(b.cost, b.value)
	}
	report.Distribution = distribution(report.Lines, report.Totals)
	v.record(report)
	return report
}

func valueLine(lots []Lot, price float64) (Line, decimal.Decimal, decimal.Decimal) {
	sym := lots[0].Symbol
	px := decimal.NewFromFloat(price)
	var shares, cost decimal.Decimal
	for _, l := range lots {
		s := decimal.NewFromFloat(l.Shares)
		shares = shares.Add(s)
		cost = cost.Add(s.Mul(decimal.NewFromFloat(l.BuyPrice)))
	}
	value := shares.Mul(px)
	t := totals(cost, value)

	avg := decimal.Zero
	if !shares.IsZero() {
		avg = cost.Div(shares)
	}
	return Line{
		Symbol:       sym,
		Market:       sym.Exchange().Label(),
		Lots:         len(lots),
		Shares:       shares.InexactFloat64(),
		BuyPrice:     avg.InexactFloat64(),
		CurrentPrice: price,
		Currency:     sym.Currency(),
		Cost:         t.Cost,
		MarketValue:  t.Value,
		Profit:       t.Profit,
		ProfitPct:    t.ProfitPct,
	}, cost, value
}

// totals derives profit figures. Zero cost reports 0%.
func totals(cost, value decimal.Decimal) Totals {
	profit := value.Sub(cost)
	pct := decimal.Zero
	if !cost.IsZero() {
		pct = profit.Div(cost).Mul(decimal.NewFromInt(100))
	}
	return Totals{
		Cost:      cost.InexactFloat64(),
		Value:     value.InexactFloat64(),
		Profit:    profit.InexactFloat64(),
		ProfitPct: pct.InexactFloat64(),
	}
}

// distribution groups market value by exchange label. Weights are relative
// to the total of the allocation's own currency.
func distribution(lines []Line, totals map[model.Currency]Totals) []Allocation {
	out := []Allocation{}
	index := make(map[string]int)
	for _, l := range lines {
		i, ok := index[l.Market]
		if !ok {
			i = len(out)
			index[l.Market] = i
			out = append(out, Allocation{Market: l.Market, Currency: l.Currency})
		}
		out[i].Value += l.MarketValue
	}
	for i := range out {
		if tv := totals[out[i].Currency].Value; tv > 0 {
			out[i].Weight = out[i].Value / tv * 100
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Currency != out[j].Currency {
			return out[i].Currency < out[j].Currency
		}
		return out[i].Value > out[j].Value
	})
	return out
}

// Consolidate converts every currency total into base. rates gives the
// amount of base per unit of each other currency; base itself needs no
// rate. A missing, non-positive or non-finite rate is an error.
func Consolidate(r *Report, base model.Currency, rates map[model.Currency]float64) (Totals, error) {
	var cost, value decimal.Decimal
	for cur, t := range r.Totals {
		rate := 1.0
		if cur != base {
			var ok bool
			if rate, ok = rates[cur]; !ok {
				return Totals{}, fmt.Errorf("%w: no %s->%s rate", model.ErrInvalidParameter, cur, base)
			}
			if rate <= 0 || math.IsNaN(rate) || math.IsInf(rate, 0) {
				return Totals{}, fmt.Errorf("%w: bad %s->%s rate %v", model.ErrInvalidParameter, cur, base, rate)
			}
		}
		d := decimal.NewFromFloat(rate)
		cost = cost.Add(decimal.NewFromFloat(t.Cost).Mul(d))
		value = value.Add(decimal.NewFromFloat(t.Value).Mul(d))
	}
	return totals(cost, value), nil
}

func (v *Valuator) record(r *Report) {
	failed := len(r.FailedSymbols)
	for cur, t := range r.Totals {
		lines := 0
		for _, l := range r.Lines {
			if l.Currency == cur {
				lines++
			}
		}
		if err := v.rec.RecordValuation(&recorder.ValuationEvent{
			Currency: string(cur),
			Value:    t.Value,
			Cost:     t.Cost,
			PnL:      t.Profit,
			PnLPct:   t.ProfitPct,
			Lines:    lines,
			Failed:   failed,
		}); err != nil {
			v.log.Error().Err(err).Msg("record valuation")
		}
	}
}
