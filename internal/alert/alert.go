package alert

import (
	"fmt"
	"strings"
	"time"

	"QuoteWatch/internal/model"
)

type Condition string

const (
	Above Condition = "above"
	Below Condition = "below"
)

// ParseCondition accepts "above" or "below" in any case.
func ParseCondition(s string) (Condition, error) {
	switch c := Condition(strings.ToLower(strings.TrimSpace(s))); c {
	case Above, Below:
		return c, nil
	}
	return "", fmt.Errorf("%w: unknown condition %q", model.ErrInvalidParameter, s)
}

// Met reports whether price satisfies the condition against target.
// Both comparisons are inclusive.
func (c Condition) Met(price, target float64) bool {
	switch c {
	case Above:
		return price >= target
	case Below:
		return price <= target
	}
	return false
}

type Lifetime string

const (
	OneTime   Lifetime = "one_time"
	Permanent Lifetime = "permanent"
)

// ParseLifetime accepts "one_time" or "permanent"; an empty string means
// one_time.
func ParseLifetime(s string) (Lifetime, error) {
	switch l := Lifetime(strings.ToLower(strings.TrimSpace(s))); l {
	case "":
		return OneTime, nil
	case OneTime, Permanent:
		return l, nil
	}
	return "", fmt.Errorf("%w: unknown lifetime %q", model.ErrInvalidParameter, s)
}

type Status string

const (
	Active  Status = "active"
	Retired Status = "retired"
)

// Alert is a price threshold watch on one symbol.
type Alert struct {
	ID          string       `json:"id"`
	Symbol      model.Symbol `json:"symbol"`
	Target      float64      `json:"target"`
	Condition   Condition    `json:"condition"`
	Lifetime    Lifetime     `json:"lifetime"`
	Status      Status       `json:"status"`
	CreatedAt   time.Time    `json:"createdAt"`
	FireCount   int          `json:"fireCount"`
	LastFiredAt *time.Time   `json:"lastFiredAt,omitempty"`
}

// Describe renders the alert the way the dashboard listed it.
func (a Alert) Describe() string {
	return fmt.Sprintf("%s %s %s (%s)", a.Symbol, a.Condition, a.Symbol.FormatMoney(a.Target),
		strings.ReplaceAll(string(a.Lifetime), "_", "-"))
}
