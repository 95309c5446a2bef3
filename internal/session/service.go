package session

import (
	"fmt"
	"time"

	"QuoteWatch/internal/model"
)

// State is the trading phase of a market at one instant.
type State string

const (
	PreOpen          State = "PreOpen"
	MorningSession   State = "MorningSession"
	LunchBreak       State = "LunchBreak"
	AfternoonSession State = "AfternoonSession"
	Closed           State = "Closed"
	Weekend          State = "Weekend"
)

// Trading reports whether the phase is an open session.
func (s State) Trading() bool {
	return s == MorningSession || s == AfternoonSession
}

// Clock returns the current instant. Tests inject a fixed one.
type Clock func() time.Time

// Status is the session report handed to the presentation layer.
type Status struct {
	Exchange   string    `json:"exchange"`
	State      State     `json:"state"`
	AsOf       time.Time `json:"asOf"`
	MarketTime time.Time `json:"marketTime"`
}

// Service converts between the market zone and the user's display zone and
// answers session-phase queries. It holds no mutable state.
type Service struct {
	cal     Calendar
	display *time.Location
	now     Clock
}

// NewService builds a Time Service. A nil clock means time.Now; a nil
// display location means UTC.
func NewService(cal Calendar, display *time.Location, now Clock) *Service {
	if now == nil {
		now = time.Now
	}
	if display == nil {
		display = time.UTC
	}
	return &Service{cal: cal, display: display, now: now}
}

// ForExchange is NewService over the built-in calendar of ex.
func ForExchange(ex model.Exchange, display *time.Location, now Clock) *Service {
	return NewService(CalendarFor(ex), display, now)
}

func (s *Service) Calendar() Calendar              { return s.cal }
func (s *Service) DisplayLocation() *time.Location { return s.display }
func (s *Service) Now() time.Time                  { return s.now() }

// ToDisplayTime expresses t in the user's display zone.
func (s *Service) ToDisplayTime(t time.Time) time.Time { return t.In(s.display) }

// ToMarketTime expresses t in the market's zone.
func (s *Service) ToMarketTime(t time.Time) time.Time { return t.In(s.cal.Location) }

// StateAt returns the session phase at t.
func (s *Service) StateAt(t time.Time) State { return s.cal.StateAt(t) }

// CurrentState returns the session phase at the clock's current instant.
func (s *Service) CurrentState() State { return s.cal.StateAt(s.now()) }

// IsTrading reports whether the market is in a morning or afternoon session now.
func (s *Service) IsTrading() bool { return s.CurrentState().Trading() }

// Status snapshots the current phase with a display-zone timestamp.
func (s *Service) Status() Status {
	now := s.now()
	return Status{
		Exchange:   s.cal.Exchange.Label(),
		State:      s.cal.StateAt(now),
		AsOf:       s.ToDisplayTime(now),
		MarketTime: s.ToMarketTime(now),
	}
}

// OffsetHours is the market zone's UTC offset minus the display zone's,
// evaluated now. Fractional-hour zones are truncated.
func (s *Service) OffsetHours() int {
	now := s.now()
	_, marketOff := now.In(s.cal.Location).Zone()
	_, displayOff := now.In(s.display).Zone()
	return (marketOff - displayOff) / 3600
}

// FormatDisplay renders t in the display zone with its zone abbreviation.
func (s *Service) FormatDisplay(t time.Time) string {
	d := s.ToDisplayTime(t)
	name, off := d.Zone()
	return fmt.Sprintf("%s %s (UTC%+d)", d.Format("2006-01-02 15:04:05"), name, off/3600)
}
