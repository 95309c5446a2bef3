package session

import (
	"time"
	_ "time/tzdata"

	"QuoteWatch/internal/model"
)

// Window is a half-open [Start, End) range of minutes since local midnight.
type Window struct {
	Start int
	End   int
}

func hm(h, m int) int { return h*60 + m }

func (w Window) contains(minute int) bool {
	return minute >= w.Start && minute < w.End
}

// Calendar describes one exchange's trading day in its own time zone.
type Calendar struct {
	Exchange  model.Exchange
	Location  *time.Location
	Morning   Window
	Afternoon Window
	// PreOpen is optional; none of the built-in calendars declare one.
	PreOpen *Window
}

var calendars = map[model.Exchange]Calendar{
	model.Shanghai: {
		Exchange:  model.Shanghai,
		Location:  mustLoadLocation("Asia/Shanghai"),
		Morning:   Window{Start: hm(9, 30), End: hm(11, 30)},
		Afternoon: Window{Start: hm(13, 0), End: hm(15, 0)},
	},
	model.Shenzhen: {
		Exchange:  model.Shenzhen,
		Location:  mustLoadLocation("Asia/Shanghai"),
		Morning:   Window{Start: hm(9, 30), End: hm(11, 30)},
		Afternoon: Window{Start: hm(13, 0), End: hm(15, 0)},
	},
	model.HongKong: {
		Exchange:  model.HongKong,
		Location:  mustLoadLocation("Asia/Hong_Kong"),
		Morning:   Window{Start: hm(9, 30), End: hm(12, 0)},
		Afternoon: Window{Start: hm(13, 0), End: hm(16, 0)},
	},
	// No midday break: the two windows touch at 13:00.
	model.Primary: {
		Exchange:  model.Primary,
		Location:  mustLoadLocation("America/New_York"),
		Morning:   Window{Start: hm(9, 30), End: hm(13, 0)},
		Afternoon: Window{Start: hm(13, 0), End: hm(16, 0)},
	},
}

// CalendarFor returns the trading calendar of an exchange.
func CalendarFor(ex model.Exchange) Calendar {
	return calendars[ex]
}

// StateAt classifies t using the calendar's local wall clock. Seconds are
// ignored; only hour and minute matter.
func (c Calendar) StateAt(t time.Time) State {
	local := t.In(c.Location)
	if wd := local.Weekday(); wd == time.Saturday || wd == time.Sunday {
		return Weekend
	}
	minute := hm(local.Hour(), local.Minute())
	switch {
	case c.Morning.contains(minute):
		return MorningSession
	case c.Afternoon.contains(minute):
		return AfternoonSession
	case c.Morning.End < c.Afternoon.Start && minute >= c.Morning.End && minute <= c.Afternoon.Start:
		return LunchBreak
	case c.PreOpen != nil && c.PreOpen.contains(minute):
		return PreOpen
	default:
		return Closed
	}
}

func mustLoadLocation(name string) *time.Location {
	loc, err := time.LoadLocation(name)
	if err != nil {
		panic("failed to load timezone: " + name + ": " + err.Error())
	}
	return loc
}
