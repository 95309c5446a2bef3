package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"time"

	"QuoteWatch/internal/calculator"
	"QuoteWatch/internal/model"
)

var csvHeader = []string{"timestamp", "open", "high", "low", "close", "volume"}

func num(v float64) string { return strconv.FormatFloat(v, 'f', -1, 64) }

// WriteCSV writes one row per bar with timestamps rendered in loc.
func WriteCSV(w io.Writer, s *model.Series, loc *time.Location) error {
	if loc == nil {
		loc = time.UTC
	}
	cw := csv.NewWriter(w)
	if err := cw.Write(csvHeader); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}
	for _, b := range s.Bars {
		row := []string{
			b.Time.In(loc).Format(time.RFC3339),
			num(b.Open), num(b.High), num(b.Low), num(b.Close), num(b.Volume),
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("write csv row: %w", err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// FileName is the download name, stamped in loc.
func FileName(symbol model.Symbol, ext string, now time.Time, loc *time.Location) string {
	if loc == nil {
		loc = time.UTC
	}
	return fmt.Sprintf("%s_data_%s.%s", symbol, now.In(loc).Format("20060102_150405"), ext)
}

type Bar struct {
	Timestamp string  `json:"timestamp"`
	Open      float64 `json:"open"`
	High      float64 `json:"high"`
	Low       float64 `json:"low"`
	Close     float64 `json:"close"`
	Volume    float64 `json:"volume"`
}

// Document is the JSON export of a series with its statistics.
type Document struct {
	Symbol       string             `json:"symbol"`
	Exchange     string             `json:"exchange"`
	Currency     model.Currency     `json:"currency"`
	LastUpdate   string             `json:"last_update"`
	Timezone     string             `json:"timezone"`
	CurrentPrice float64            `json:"current_price"`
	Statistics   calculator.Summary `json:"statistics"`
	Data         []Bar              `json:"data"`
}

// BuildJSON assembles the export document. now is rendered in loc.
func BuildJSON(s *model.Series, now time.Time, loc *time.Location) Document {
	if loc == nil {
		loc = time.UTC
	}
	doc := Document{
		Symbol:       s.Symbol.String(),
		Exchange:     s.Symbol.Exchange().Label(),
		Currency:     s.Symbol.Currency(),
		LastUpdate:   now.In(loc).Format(time.RFC3339),
		Timezone:     loc.String(),
		CurrentPrice: s.Last().Close,
		Statistics:   calculator.Summarize(s),
		Data:         make([]Bar, len(s.Bars)),
	}
	for i, b := range s.Bars {
		doc.Data[i] = Bar{
			Timestamp: b.Time.In(loc).Format(time.RFC3339),
			Open:      b.Open,
			High:      b.High,
			Low:       b.Low,
			Close:     b.Close,
			Volume:    b.Volume,
		}
	}
	return doc
}
