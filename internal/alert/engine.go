package alert

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"QuoteWatch/internal/model"
	"QuoteWatch/internal/recorder"
	"QuoteWatch/internal/session"
)

// Engine owns a collection of alerts. Create, Delete and Evaluate each run
// under one lock, so a one-time alert can fire at most once even when
// evaluations race.
type Engine struct {
	mu     sync.Mutex
	alerts map[string]*Alert

	clock     *session.Service
	sink      Sender
	recipient string
	rec       recorder.Recorder
	log       zerolog.Logger
}

// Config wires the engine's collaborators. Sink and Recorder may be nil.
type Config struct {
	Clock     *session.Service
	Sink      Sender
	Recipient string
	Recorder  recorder.Recorder
	Logger    zerolog.Logger
}

func NewEngine(cfg Config) *Engine {
	rec := cfg.Recorder
	if rec == nil {
		rec = recorder.NewNoopRecorder()
	}
	clock := cfg.Clock
	if clock == nil {
		clock = session.ForExchange(model.Primary, nil, nil)
	}
	return &Engine{
		alerts:    make(map[string]*Alert),
		clock:     clock,
		sink:      cfg.Sink,
		recipient: cfg.Recipient,
		rec:       rec,
		log:       cfg.Logger.With().Str("component", "alert").Logger(),
	}
}

// Create registers a new active alert.
func (e *Engine) Create(symbol model.Symbol, target float64, cond Condition, life Lifetime) (Alert, error) {
	if symbol.IsZero() {
		return Alert{}, fmt.Errorf("%w: symbol is required", model.ErrInvalidParameter)
	}
	if target <= 0 {
		return Alert{}, fmt.Errorf("%w: target price must be positive, got %v", model.ErrInvalidParameter, target)
	}
	if cond != Above && cond != Below {
		return Alert{}, fmt.Errorf("%w: unknown condition %q", model.ErrInvalidParameter, cond)
	}
	if life != OneTime && life != Permanent {
		return Alert{}, fmt.Errorf("%w: unknown lifetime %q", model.ErrInvalidParameter, life)
	}

	a := &Alert{
		ID:        uuid.NewString(),
		Symbol:    symbol,
		Target:    target,
		Condition: cond,
		Lifetime:  life,
		Status:    Active,
		CreatedAt: e.clock.Now().UTC(),
	}

	e.mu.Lock()
	e.alerts[a.ID] = a
	e.mu.Unlock()

	e.log.Info().Str("id", a.ID).Str("alert", a.Describe()).Msg("alert created")
	return *a, nil
}

// Delete removes an alert whatever its status. Unknown ids are ignored.
func (e *Engine) Delete(id string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	_, ok := e.alerts[id]
	delete(e.alerts, id)
	return ok
}

// List returns a copy of every alert, oldest first.
func (e *Engine) List() []Alert {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]Alert, 0, len(e.alerts))
	for _, a := range e.alerts {
		out = append(out, *a)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}

// Symbols lists the distinct symbols that have at least one active alert.
func (e *Engine) Symbols() []model.Symbol {
	e.mu.Lock()
	defer e.mu.Unlock()
	seen := make(map[string]bool)
	var out []model.Symbol
	for _, a := range e.alerts {
		if a.Status == Active && !seen[a.Symbol.String()] {
			seen[a.Symbol.String()] = true
			out = append(out, a.Symbol)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].String() < out[j].String() })
	return out
}

// Evaluate fires every active alert on symbol whose condition holds at
// price. One-time alerts are retired and removed before any notification
// is sent; permanent alerts stay active. The returned alerts reflect their
// post-firing state. A non-nil error only reports delivery failures: the
// state change has already happened.
func (e *Engine) Evaluate(ctx context.Context, symbol model.Symbol, price float64) ([]Alert, error) {
	if price <= 0 {
		return nil, fmt.Errorf("%w: price must be positive, got %v", model.ErrInvalidParameter, price)
	}
	now := e.clock.Now()

	e.mu.Lock()
	var fired []Alert
	for id, a := range e.alerts {
		if a.Status != Active || a.Symbol != symbol || !a.Condition.Met(price, a.Target) {
			continue
		}
		a.FireCount++
		at := now.UTC()
		a.LastFiredAt = &at
		if a.Lifetime == OneTime {
			a.Status = Retired
			delete(e.alerts, id)
		}
		fired = append(fired, *a)
	}
	e.mu.Unlock()

	sort.Slice(fired, func(i, j int) bool { return fired[i].CreatedAt.Before(fired[j].CreatedAt) })

	var errs []error
	for _, a := range fired {
		n := Notification{
			AlertID:   a.ID,
			Symbol:    a.Symbol,
			Price:     price,
			Condition: a.Condition,
			Target:    a.Target,
			FiredAt:   e.clock.FormatDisplay(now),
			Lifetime:  a.Lifetime,
		}
		err := e.notify(ctx, n)
		if err != nil {
			errs = append(errs, err)
		}
		if recErr := e.rec.RecordAlertFired(&recorder.AlertEvent{
			AlertID:   a.ID,
			Symbol:    a.Symbol.String(),
			Condition: string(a.Condition),
			Target:    a.Target,
			Price:     price,
			Lifetime:  string(a.Lifetime),
			Delivered: err == nil,
		}); recErr != nil {
			e.log.Error().Err(recErr).Str("id", a.ID).Msg("record alert firing")
		}
		e.log.Info().Str("id", a.ID).Str("alert", a.Describe()).Float64("price", price).Msg("alert fired")
	}
	return fired, errors.Join(errs...)
}

func (e *Engine) notify(ctx context.Context, n Notification) error {
	if e.sink == nil {
		return nil
	}
	if err := e.sink.Send(ctx, e.recipient, n.Subject(), n.HTML()); err != nil {
		e.log.Warn().Err(err).Str("id", n.AlertID).Msg("alert notification failed")
		return fmt.Errorf("notify %s: %w", n.Symbol, err)
	}
	return nil
}
