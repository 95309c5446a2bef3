package portfolio

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"QuoteWatch/internal/model"
	"QuoteWatch/internal/recorder"
)

// Lot is one recorded purchase. Lots are never edited.
type Lot struct {
	ID       string       `json:"id"`
	Symbol   model.Symbol `json:"symbol"`
	Shares   float64      `json:"shares"`
	BuyPrice float64      `json:"buyPrice"`
	BoughtAt time.Time    `json:"boughtAt"`
}

// Portfolio maps symbols to their lots with concurrency safety. Symbols
// keep the order in which they were first bought.
type Portfolio struct {
	mu    sync.Mutex
	lots  map[model.Symbol][]Lot
	order []model.Symbol
	rec   recorder.Recorder
	log   zerolog.Logger
}

// New creates an empty portfolio. rec may be nil.
func New(rec recorder.Recorder, logger zerolog.Logger) *Portfolio {
	if rec == nil {
		rec = recorder.NewNoopRecorder()
	}
	return &Portfolio{
		lots: make(map[model.Symbol][]Lot),
		rec:  rec,
		log:  logger.With().Str("component", "portfolio").Logger(),
	}
}

func (p *Portfolio) record(ev *recorder.LotEvent) {
	if err := p.rec.RecordLot(ev); err != nil {
		p.log.Error().Err(err).Str("action", ev.Action).Str("symbol", ev.Symbol).Msg("record lot event")
	}
}

func validateLot(symbol model.Symbol, shares, price float64) error {
	if symbol.IsZero() {
		return fmt.Errorf("%w: symbol is required", model.ErrInvalidParameter)
	}
	if shares <= 0 {
		return fmt.Errorf("%w: shares must be positive, got %v", model.ErrInvalidParameter, shares)
	}
	if price <= 0 {
		return fmt.Errorf("%w: buy price must be positive, got %v", model.ErrInvalidParameter, price)
	}
	return nil
}

// Add records a purchase.
func (p *Portfolio) Add(symbol model.Symbol, shares, price float64, at time.Time) (Lot, error) {
	if err := validateLot(symbol, shares, price); err != nil {
		return Lot{}, err
	}
	lot := Lot{ID: uuid.NewString(), Symbol: symbol, Shares: shares, BuyPrice: price, BoughtAt: at.UTC()}

	p.mu.Lock()
	p.appendLocked(lot)
	p.mu.Unlock()

	p.record(&recorder.LotEvent{Action: "ADD", Symbol: symbol.String(), Shares: shares, BuyPrice: price})
	return lot, nil
}

func (p *Portfolio) appendLocked(lot Lot) {
	if _, ok := p.lots[lot.Symbol]; !ok {
		p.order = append(p.order, lot.Symbol)
	}
	p.lots[lot.Symbol] = append(p.lots[lot.Symbol], lot)
}

// Clear removes every lot.
func (p *Portfolio) Clear() {
	p.mu.Lock()
	p.lots = make(map[model.Symbol][]Lot)
	p.order = nil
	p.mu.Unlock()

	p.record(&recorder.LotEvent{Action: "CLEAR"})
}

// Symbols returns held symbols in first-purchase order.
func (p *Portfolio) Symbols() []model.Symbol {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]model.Symbol(nil), p.order...)
}

// Lots returns a copy of the lots held in symbol.
func (p *Portfolio) Lots(symbol model.Symbol) []Lot {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]Lot(nil), p.lots[symbol]...)
}

func (p *Portfolio) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.order)
}

// holdings copies the lots grouped by symbol, in order.
func (p *Portfolio) holdings() [][]Lot {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([][]Lot, len(p.order))
	for i, s := range p.order {
		out[i] = append([]Lot(nil), p.lots[s]...)
	}
	return out
}
