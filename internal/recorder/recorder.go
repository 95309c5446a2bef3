package recorder

// AlertEvent records one alert firing.
type AlertEvent struct {
	AlertID   string
	Symbol    string
	Condition string // "above" or "below"
	Target    float64
	Price     float64
	Lifetime  string // "one_time" or "permanent"
	Delivered bool
}

// LotEvent records a change to the holdings.
type LotEvent struct {
	Action   string // "ADD" or "CLEAR"
	Symbol   string
	Shares   float64
	BuyPrice float64
}

// ForecastEvent records the headline numbers of one projection.
type ForecastEvent struct {
	Symbol    string
	Degree    int
	Horizon   int
	LastClose float64
	Final     float64
	Direction string
	Strength  string
	RMSE      float64
	R2        float64
}

// ValuationEvent records one currency bucket of a portfolio valuation.
type ValuationEvent struct {
	Currency string
	Value    float64
	Cost     float64
	PnL      float64
	PnLPct   float64
	Lines    int
	Failed   int
}

// Recorder persists historical data for analysis.
type Recorder interface {
	RecordAlertFired(evt *AlertEvent) error
	RecordLot(evt *LotEvent) error
	RecordForecast(evt *ForecastEvent) error
	RecordValuation(evt *ValuationEvent) error
	Close() error
}
