package collector

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"QuoteWatch/internal/calculator"
	"QuoteWatch/internal/model"
)

// MockFetcher returns controllable fixed data for development and testing.
// Symbols without configured data get a generated series around Price.
type MockFetcher struct {
	Price float64

	mu       sync.Mutex
	series   map[string][]model.Bar
	prices   map[string]float64
	profiles map[string]*model.Profile
	errs     map[string]error
	calls    map[string]int
}

func NewMockFetcher(price float64) *MockFetcher {
	return &MockFetcher{
		Price:    price,
		series:   make(map[string][]model.Bar),
		prices:   make(map[string]float64),
		profiles: make(map[string]*model.Profile),
		errs:     make(map[string]error),
		calls:    make(map[string]int),
	}
}

func (m *MockFetcher) Name() string { return "mock" }

func (m *MockFetcher) SetBars(symbol string, bars []model.Bar) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.series[symbol] = bars
}

func (m *MockFetcher) SetPrice(symbol string, price float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.prices[symbol] = price
}

func (m *MockFetcher) SetProfile(symbol string, p *model.Profile) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.profiles[symbol] = p
}

// SetError makes every call for symbol fail with err wrapped in ErrFetch.
func (m *MockFetcher) SetError(symbol string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errs[symbol] = err
}

// Calls reports how many fetches were made for symbol.
func (m *MockFetcher) Calls(symbol string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls[symbol]
}

func (m *MockFetcher) begin(symbol model.Symbol) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls[symbol.String()]++
	if err := m.errs[symbol.String()]; err != nil {
		return fetchErr("mock %s: %v", symbol, err)
	}
	return nil
}

func (m *MockFetcher) FetchHistory(ctx context.Context, symbol model.Symbol, period, interval string) (*model.Series, error) {
	if err := ValidateRange(period, interval); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, fetchErr("mock: %v", err)
	}
	if err := m.begin(symbol); err != nil {
		return nil, err
	}
	m.mu.Lock()
	bars, ok := m.series[symbol.String()]
	m.mu.Unlock()
	if !ok {
		bars = generateMockBars(m.Price, periodDays[period])
	}
	return model.NewSeries(symbol, interval, bars)
}

func (m *MockFetcher) FetchLatestPrice(ctx context.Context, symbol model.Symbol) (float64, error) {
	if err := ctx.Err(); err != nil {
		return 0, fetchErr("mock: %v", err)
	}
	if err := m.begin(symbol); err != nil {
		return 0, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if p, ok := m.prices[symbol.String()]; ok {
		return p, nil
	}
	if bars := m.series[symbol.String()]; len(bars) > 0 {
		return bars[len(bars)-1].Close, nil
	}
	return m.Price, nil
}

func (m *MockFetcher) FetchProfile(ctx context.Context, symbol model.Symbol) (*model.Profile, error) {
	if err := m.begin(symbol); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if p, ok := m.profiles[symbol.String()]; ok {
		cp := *p
		cp.Symbol = symbol
		return &cp, nil
	}
	return &model.Profile{Symbol: symbol, DisplayName: symbol.String(), Currency: string(symbol.Currency())}, nil
}

func generateMockBars(basePrice float64, count int) []model.Bar {
	if count < 1 {
		count = 1
	}
	end := time.Now().UTC().Truncate(24 * time.Hour)
	bars := make([]model.Bar, count)
	for i := 0; i < count; i++ {
		p := basePrice * (1 + float64(i-count/2)*0.001)
		bars[i] = model.Bar{
			Time:   end.AddDate(0, 0, -(count - 1 - i)),
			Open:   p * 0.999,
			High:   p * 1.005,
			Low:    p * 0.995,
			Close:  p,
			Volume: 1000000,
		}
	}
	return bars
}

// Snapshot is what the dashboard shows for one symbol.
type Snapshot struct {
	Symbol  model.Symbol       `json:"symbol"`
	Price   float64            `json:"price"`
	Display string             `json:"display"`
	Series  *model.Series      `json:"series"`
	Stats   calculator.Summary `json:"stats"`
	Profile *model.Profile     `json:"profile,omitempty"`
}

// Collector orchestrates data fetching and statistics computation.
type Collector struct {
	Fetcher Fetcher
}

// NewCollector creates a new Collector.
func NewCollector(fetcher Fetcher) *Collector {
	return &Collector{Fetcher: fetcher}
}

// Collect fetches history and profile for symbol and summarizes the
// series. A missing profile is logged and left out.
func (c *Collector) Collect(ctx context.Context, symbol model.Symbol, period, interval string) (*Snapshot, error) {
	series, err := c.Fetcher.FetchHistory(ctx, symbol, period, interval)
	if err != nil {
		return nil, fmt.Errorf("fetch history %s: %w", symbol, err)
	}
	snap := &Snapshot{
		Symbol: symbol,
		Price:  series.Last().Close,
		Series: series,
		Stats:  calculator.Summarize(series),
	}
	snap.Display = symbol.FormatMoney(snap.Price)

	profile, err := c.Fetcher.FetchProfile(ctx, symbol)
	if err != nil {
		log.Warn().Err(err).Str("symbol", symbol.String()).Msg("profile unavailable")
	} else {
		snap.Profile = profile
	}
	return snap, nil
}
