package model

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Exchange is the closed set of listing venues a symbol can belong to.
type Exchange int

const (
	Primary Exchange = iota
	Shanghai
	Shenzhen
	HongKong
)

// Currency is an ISO 4217 code.
type Currency string

const (
	CNY Currency = "CNY"
	HKD Currency = "HKD"
	USD Currency = "USD"
)

type exchangeInfo struct {
	suffix   string
	code     string
	label    string
	currency Currency
	sign     string
}

var exchanges = map[Exchange]exchangeInfo{
	Shanghai: {suffix: ".SS", code: "SS", label: "Shanghai", currency: CNY, sign: "¥"},
	Shenzhen: {suffix: ".SZ", code: "SZ", label: "Shenzhen", currency: CNY, sign: "¥"},
	HongKong: {suffix: ".HK", code: "HK", label: "Hong Kong", currency: HKD, sign: "HK$"},
	Primary:  {suffix: "", code: "US", label: "US Listed", currency: USD, sign: "$"},
}

// Label is the human-readable market name used in allocation reports.
func (e Exchange) Label() string { return exchanges[e].label }

// Code is the short exchange code (the symbol suffix without the dot).
func (e Exchange) Code() string { return exchanges[e].code }

// Currency returns the trading currency of the exchange.
func (e Exchange) Currency() Currency { return exchanges[e].currency }

// Sign returns the currency sign used when formatting prices.
func (e Exchange) Sign() string { return exchanges[e].sign }

func (e Exchange) String() string { return e.Label() }

func (e Exchange) MarshalJSON() ([]byte, error) {
	return json.Marshal(e.Label())
}

// ExchangeFromCode resolves "SS", ".SS", "Shanghai" and friends. Unknown
// input maps to Primary.
func ExchangeFromCode(code string) Exchange {
	c := strings.ToUpper(strings.TrimPrefix(strings.TrimSpace(code), "."))
	for ex, info := range exchanges {
		if c == info.code || strings.EqualFold(code, info.label) {
			return ex
		}
	}
	return Primary
}

// Symbol is an immutable ticker plus the exchange derived from its suffix.
type Symbol struct {
	ticker   string
	exchange Exchange
}

// ParseSymbol normalizes raw input and derives the exchange once.
func ParseSymbol(raw string) (Symbol, error) {
	t := strings.ToUpper(strings.TrimSpace(raw))
	if t == "" {
		return Symbol{}, fmt.Errorf("%w: empty symbol", ErrInvalidParameter)
	}
	if !validTicker(t) {
		return Symbol{}, fmt.Errorf("%w: symbol %q has invalid characters", ErrInvalidParameter, raw)
	}
	ex := Primary
	for e, info := range exchanges {
		if info.suffix != "" && strings.HasSuffix(t, info.suffix) {
			if len(t) == len(info.suffix) {
				return Symbol{}, fmt.Errorf("%w: symbol %q has no ticker", ErrInvalidParameter, raw)
			}
			ex = e
			break
		}
	}
	return Symbol{ticker: t, exchange: ex}, nil
}

// validTicker allows A-Z, 0-9 and . ^ = -
func validTicker(t string) bool {
	for _, r := range t {
		switch {
		case r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
		case r == '.', r == '^', r == '=', r == '-':
		default:
			return false
		}
	}
	return true
}

// MustSymbol is ParseSymbol for constants and tests.
func MustSymbol(raw string) Symbol {
	s, err := ParseSymbol(raw)
	if err != nil {
		panic(err)
	}
	return s
}

func (s Symbol) String() string     { return s.ticker }
func (s Symbol) Exchange() Exchange { return s.exchange }
func (s Symbol) Currency() Currency { return s.exchange.Currency() }
func (s Symbol) IsZero() bool       { return s.ticker == "" }

// FormatMoney renders v with the symbol's currency sign, e.g. "HK$312.40".
func (s Symbol) FormatMoney(v float64) string {
	return fmt.Sprintf("%s%.2f", s.exchange.Sign(), v)
}

func (s Symbol) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.ticker)
}

func (s *Symbol) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	parsed, err := ParseSymbol(raw)
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

// FormatLargeNumber abbreviates market caps and volumes.
func FormatLargeNumber(v float64) string {
	switch {
	case v > 1e12:
		return fmt.Sprintf("%.2f T", v/1e12)
	case v > 1e9:
		return fmt.Sprintf("%.2f B", v/1e9)
	case v > 1e6:
		return fmt.Sprintf("%.2f M", v/1e6)
	default:
		return fmt.Sprintf("%.2f", v)
	}
}
