package portfolio

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"math"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"QuoteWatch/internal/model"
	"QuoteWatch/internal/recorder"
)

var day = time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)

func prices(m map[string]float64) PriceFunc {
	return func(_ context.Context, s model.Symbol) (float64, error) {
		p, ok := m[s.String()]
		if !ok {
			return 0, fmt.Errorf("%w: unknown %s", model.ErrFetch, s)
		}
		return p, nil
	}
}

func mustAdd(t *testing.T, p *Portfolio, sym string, shares, price float64) {
	t.Helper()
	_, err := p.Add(model.MustSymbol(sym), shares, price, day)
	require.NoError(t, err)
}

func TestAdd_Validation(t *testing.T) {
	p := New(nil, zerolog.Nop())
	_, err := p.Add(model.MustSymbol("AAPL"), 0, 10, day)
	assert.ErrorIs(t, err, model.ErrInvalidParameter)
	_, err = p.Add(model.MustSymbol("AAPL"), 1, -1, day)
	assert.ErrorIs(t, err, model.ErrInvalidParameter)
	assert.Equal(t, 0, p.Len())

	mustAdd(t, p, "AAPL", 1, 10)
	mustAdd(t, p, "0700.HK", 1, 10)
	mustAdd(t, p, "AAPL", 2, 13)
	assert.Equal(t, []model.Symbol{model.MustSymbol("AAPL"), model.MustSymbol("0700.HK")}, p.Symbols())
	assert.Len(t, p.Lots(model.MustSymbol("AAPL")), 2)

	p.Clear()
	assert.Equal(t, 0, p.Len())
}

func TestValue_LinesAndTotals(t *testing.T) {
	p := New(nil, zerolog.Nop())
	mustAdd(t, p, "AAPL", 10, 100)
	mustAdd(t, p, "AAPL", 10, 120)
	mustAdd(t, p, "MSFT", 5, 200)

	v := NewValuator(2, nil, zerolog.Nop())
	r := v.Value(context.Background(), p, prices(map[string]float64{"AAPL": 121, "MSFT": 180}))

	require.Len(t, r.Lines, 2)
	aapl := r.Lines[0]
	assert.Equal(t, 20.0, aapl.Shares)
	assert.InDelta(t, 110, aapl.BuyPrice, 1e-9)
	assert.InDelta(t, 2200, aapl.Cost, 1e-9)
	assert.InDelta(t, 2420, aapl.MarketValue, 1e-9)
	assert.InDelta(t, 220, aapl.Profit, 1e-9)
	assert.InDelta(t, 10, aapl.ProfitPct, 1e-9)
	assert.Equal(t, model.USD, aapl.Currency)
	assert.Equal(t, "US Listed", aapl.Market)

	usd := r.Totals[model.USD]
	assert.InDelta(t, 3200, usd.Cost, 1e-9)
	assert.InDelta(t, 3320, usd.Value, 1e-9)
	assert.InDelta(t, 120, usd.Profit, 1e-9)
	assert.InDelta(t, 3.75, usd.ProfitPct, 1e-9)
	assert.Empty(t, r.FailedSymbols)
}

func TestValue_OneFailureOfN(t *testing.T) {
	p := New(nil, zerolog.Nop())
	mustAdd(t, p, "AAA", 1, 10)
	mustAdd(t, p, "BBB", 2, 10)
	mustAdd(t, p, "CCC", 3, 10)

	lookup := func(_ context.Context, s model.Symbol) (float64, error) {
		if s.String() == "BBB" {
			return 0, fmt.Errorf("%w: timeout", model.ErrFetch)
		}
		return 20, nil
	}
	r := NewValuator(4, nil, zerolog.Nop()).Value(context.Background(), p, lookup)

	require.Len(t, r.Lines, 2)
	assert.Equal(t, []model.Symbol{model.MustSymbol("BBB")}, r.FailedSymbols)
	usd := r.Totals[model.USD]
	assert.InDelta(t, 40, usd.Cost, 1e-9)
	assert.InDelta(t, 80, usd.Value, 1e-9)
	assert.InDelta(t, 100, usd.ProfitPct, 1e-9)
}

func TestValue_ZeroPriceIsAFailure(t *testing.T) {
	p := New(nil, zerolog.Nop())
	mustAdd(t, p, "AAA", 1, 10)
	r := NewValuator(1, nil, zerolog.Nop()).Value(context.Background(), p, prices(map[string]float64{"AAA": 0}))
	assert.Empty(t, r.Lines)
	assert.Len(t, r.FailedSymbols, 1)
	assert.Empty(t, r.Totals)
}

func TestTotals_ZeroCost(t *testing.T) {
	p := New(nil, zerolog.Nop())
	require.NoError(t, p.Restore(Snapshot{}))
	r := NewValuator(1, nil, zerolog.Nop()).Value(context.Background(), p, prices(nil))
	assert.Empty(t, r.Lines)

	tot, err := Consolidate(r, model.USD, nil)
	require.NoError(t, err)
	assert.Equal(t, 0.0, tot.ProfitPct)

	free := totals(decimal.Zero, decimal.NewFromInt(50))
	assert.Equal(t, 50.0, free.Profit)
	assert.Equal(t, 0.0, free.ProfitPct)
}

func TestValue_CurrencyPartitionAndDistribution(t *testing.T) {
	p := New(nil, zerolog.Nop())
	mustAdd(t, p, "600519.SS", 100, 1500)
	mustAdd(t, p, "000858.SZ", 100, 150)
	mustAdd(t, p, "0700.HK", 100, 300)

	r := NewValuator(3, nil, zerolog.Nop()).Value(context.Background(), p, prices(map[string]float64{
		"600519.SS": 1600, "000858.SZ": 160, "0700.HK": 330,
	}))

	require.Len(t, r.Totals, 2)
	assert.InDelta(t, 176000, r.Totals[model.CNY].Value, 1e-6)
	assert.InDelta(t, 33000, r.Totals[model.HKD].Value, 1e-6)

	require.Len(t, r.Distribution, 3)
	assert.Equal(t, model.CNY, r.Distribution[0].Currency)
	assert.InDelta(t, 160000.0/176000*100, r.Distribution[0].Weight, 1e-9)
	assert.Equal(t, model.HKD, r.Distribution[2].Currency)
	assert.InDelta(t, 100, r.Distribution[2].Weight, 1e-9)

	_, err := Consolidate(r, model.CNY, map[model.Currency]float64{})
	assert.ErrorIs(t, err, model.ErrInvalidParameter)

	for name, rate := range map[string]float64{
		"zero": 0, "negative": -1, "nan": math.NaN(), "+inf": math.Inf(1), "-inf": math.Inf(-1),
	} {
		t.Run(name, func(t *testing.T) {
			_, err := Consolidate(r, model.CNY, map[model.Currency]float64{model.HKD: rate})
			assert.ErrorIs(t, err, model.ErrInvalidParameter)
		})
	}

	tot, err := Consolidate(r, model.CNY, map[model.Currency]float64{model.HKD: 0.9})
	require.NoError(t, err)
	assert.InDelta(t, 176000+33000*0.9, tot.Value, 1e-6)
	assert.InDelta(t, 165000+30000*0.9, tot.Cost, 1e-6)
}

func TestValue_ContextCancelled(t *testing.T) {
	p := New(nil, zerolog.Nop())
	mustAdd(t, p, "AAA", 1, 10)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	lookup := func(ctx context.Context, _ model.Symbol) (float64, error) {
		return 0, ctx.Err()
	}
	r := NewValuator(1, nil, zerolog.Nop()).Value(ctx, p, lookup)
	assert.Len(t, r.FailedSymbols, 1)
	assert.Empty(t, r.Lines)
}

func TestSaveLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "portfolio.json")
	p := New(nil, zerolog.Nop())
	mustAdd(t, p, "0700.HK", 100, 300)
	mustAdd(t, p, "AAPL", 1, 150)
	require.NoError(t, p.SaveFile(path))

	q := New(nil, zerolog.Nop())
	require.NoError(t, q.LoadFile(path))
	assert.Equal(t, p.Symbols(), q.Symbols())
	lots := q.Lots(model.MustSymbol("0700.HK"))
	require.Len(t, lots, 1)
	assert.Equal(t, model.HongKong, lots[0].Symbol.Exchange())
	assert.Equal(t, day, lots[0].BoughtAt)

	missing := New(nil, zerolog.Nop())
	require.NoError(t, missing.LoadFile(filepath.Join(t.TempDir(), "none.json")))
	assert.Equal(t, 0, missing.Len())
}

func TestRestore_RejectsInvalidLot(t *testing.T) {
	p := New(nil, zerolog.Nop())
	mustAdd(t, p, "AAPL", 1, 150)
	err := p.Restore(Snapshot{Lots: []Lot{{Symbol: model.MustSymbol("X"), Shares: -1, BuyPrice: 1}}})
	assert.ErrorIs(t, err, model.ErrInvalidParameter)
	assert.Equal(t, 1, p.Len())
}

type failingLots struct {
	*recorder.NoopRecorder
}

func (failingLots) RecordLot(*recorder.LotEvent) error { return errors.New("disk full") }

func TestPortfolio_RecorderFailureIsLogged(t *testing.T) {
	var buf bytes.Buffer
	p := New(failingLots{recorder.NewNoopRecorder()}, zerolog.New(&buf))

	mustAdd(t, p, "AAPL", 1, 100)
	p.Clear()

	out := buf.String()
	assert.Contains(t, out, `"action":"ADD"`)
	assert.Contains(t, out, `"action":"CLEAR"`)
	assert.Contains(t, out, "disk full")
}
