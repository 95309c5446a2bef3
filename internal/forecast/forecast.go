package forecast

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"QuoteWatch/internal/model"
	"QuoteWatch/internal/recorder"
)

type Direction string

const (
	Bullish Direction = "Bullish"
	Bearish Direction = "Bearish"
	Neutral Direction = "Neutral"
)

type Strength string

const (
	StrongBullish Strength = "StrongBullish"
	MildBullish   Strength = "MildBullish"
	StrongBearish Strength = "StrongBearish"
	MildBearish   Strength = "MildBearish"
	Sideways      Strength = "Sideways"
)

// Trend thresholds relative to the last observed close.
const (
	strongUp   = 1.05
	strongDown = 0.95
)

type Trend struct {
	Direction Direction `json:"direction"`
	Strength  Strength  `json:"strength"`
}

// Classify compares the final projected value with the last close.
func Classify(lastObserved, lastProjected float64) Trend {
	var t Trend
	switch {
	case lastProjected > lastObserved:
		t.Direction = Bullish
	case lastProjected < lastObserved:
		t.Direction = Bearish
	default:
		t.Direction = Neutral
	}
	switch {
	case lastProjected > lastObserved*strongUp:
		t.Strength = StrongBullish
	case lastProjected > lastObserved:
		t.Strength = MildBullish
	case lastProjected < lastObserved*strongDown:
		t.Strength = StrongBearish
	case lastProjected < lastObserved:
		t.Strength = MildBearish
	default:
		t.Strength = Sideways
	}
	return t
}

// Point is one projected day. Bounds are the prediction plus or minus two
// residual standard deviations: a rough band, not a calibrated interval.
type Point struct {
	DayOffset int       `json:"dayOffset"`
	Date      time.Time `json:"date"`
	Predicted float64   `json:"predictedPrice"`
	Lower     *float64  `json:"lowerBound,omitempty"`
	Upper     *float64  `json:"upperBound,omitempty"`
	ChangePct float64   `json:"changePct"`
}

type Result struct {
	Symbol      model.Symbol `json:"symbol"`
	Degree      int          `json:"degree"`
	HorizonDays int          `json:"horizonDays"`
	LastClose   float64      `json:"lastClose"`
	Sigma       float64      `json:"sigma"`
	Points      []Point      `json:"points"`
	FitMetrics  Metrics      `json:"fitMetrics"`
	Trend       Trend        `json:"trend"`
}

// Options tune a projection.
type Options struct {
	Confidence bool // attach the ±2σ band
}

// ValidateHorizon rejects horizons outside 1..MaxHorizon.
func ValidateHorizon(horizon int) error {
	if horizon < 1 || horizon > MaxHorizon {
		return fmt.Errorf("%w: horizon must be in [1, %d], got %d", model.ErrInvalidParameter, MaxHorizon, horizon)
	}
	return nil
}

// Project evaluates the model on the horizon days following the last
// observed day.
func (m *Model) Project(horizon int, opts Options) (*Result, error) {
	if err := ValidateHorizon(horizon); err != nil {
		return nil, err
	}
	res := &Result{
		Symbol:      m.symbol,
		Degree:      m.degree,
		HorizonDays: horizon,
		LastClose:   m.lastClose,
		Sigma:       m.sigma,
		Points:      make([]Point, horizon),
		FitMetrics:  m.metrics,
	}
	band := 2 * m.sigma
	for i := 1; i <= horizon; i++ {
		off := m.lastOffset + i
		v := m.Predict(off)
		p := Point{
			DayOffset: off,
			Date:      m.lastDate.AddDate(0, 0, i),
			Predicted: v,
		}
		if m.lastClose != 0 {
			p.ChangePct = (v/m.lastClose - 1) * 100
		}
		if opts.Confidence {
			lo, hi := v-band, v+band
			p.Lower, p.Upper = &lo, &hi
		}
		res.Points[i-1] = p
	}
	res.Trend = Classify(m.lastClose, res.Points[horizon-1].Predicted)
	return res, nil
}

// HistoryFunc loads a daily series for a symbol.
type HistoryFunc func(ctx context.Context, symbol model.Symbol, period, interval string) (*model.Series, error)

// Engine fetches history and produces a fresh model for every request.
type Engine struct {
	history HistoryFunc
	rec     recorder.Recorder
	log     zerolog.Logger
}

func NewEngine(history HistoryFunc, rec recorder.Recorder, logger zerolog.Logger) *Engine {
	if rec == nil {
		rec = recorder.NewNoopRecorder()
	}
	return &Engine{history: history, rec: rec, log: logger.With().Str("component", "forecast").Logger()}
}

// Request is one forecast query.
type Request struct {
	Symbol  model.Symbol
	Period  string
	Degree  int
	Horizon int
	Options
}

// Forecast validates the request before fetching anything.
func (e *Engine) Forecast(ctx context.Context, req Request) (*Result, error) {
	if req.Degree < MinDegree || req.Degree > MaxDegree {
		return nil, fmt.Errorf("%w: degree must be in [%d, %d], got %d", model.ErrInvalidParameter, MinDegree, MaxDegree, req.Degree)
	}
	if err := ValidateHorizon(req.Horizon); err != nil {
		return nil, err
	}
	if req.Period == "" {
		req.Period = "1y"
	}

	series, err := e.history(ctx, req.Symbol, req.Period, "1d")
	if err != nil {
		return nil, fmt.Errorf("load history %s: %w", req.Symbol, err)
	}
	m, err := Fit(series, req.Degree)
	if err != nil {
		return nil, err
	}
	res, err := m.Project(req.Horizon, req.Options)
	if err != nil {
		return nil, err
	}

	final := res.Points[len(res.Points)-1].Predicted
	if err := e.rec.RecordForecast(&recorder.ForecastEvent{
		Symbol:    req.Symbol.String(),
		Degree:    req.Degree,
		Horizon:   req.Horizon,
		LastClose: res.LastClose,
		Final:     final,
		Direction: string(res.Trend.Direction),
		Strength:  string(res.Trend.Strength),
		RMSE:      res.FitMetrics.RMSE,
		R2:        res.FitMetrics.R2,
	}); err != nil {
		e.log.Error().Err(err).Msg("record forecast")
	}
	e.log.Debug().
		Str("symbol", req.Symbol.String()).
		Int("degree", req.Degree).
		Int("horizon", req.Horizon).
		Float64("r2", res.FitMetrics.R2).
		Str("trend", string(res.Trend.Strength)).
		Msg("forecast computed")
	return res, nil
}
