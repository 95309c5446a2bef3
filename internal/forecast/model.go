package forecast

import (
	"errors"
	"fmt"
	"math"
	"time"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"QuoteWatch/internal/model"
)

const (
	MinBars    = 30
	MinDegree  = 1
	MaxDegree  = 5
	MaxHorizon = 30
)

// Metrics describe the fit over the training set, not out of sample.
type Metrics struct {
	RMSE float64 `json:"rmse"`
	MAE  float64 `json:"mae"`
	R2   float64 `json:"r2"`
}

// Model is a polynomial of close price against whole days since the first
// bar. Coefficients are kept for a rescaled day axis.
type Model struct {
	symbol     model.Symbol
	degree     int
	coef       []float64
	scale      float64
	sigma      float64
	metrics    Metrics
	lastOffset int
	lastDate   time.Time
	lastClose  float64
}

// dayOffsets returns whole days elapsed since the first bar, floored.
func dayOffsets(s *model.Series) []float64 {
	t0 := s.First().Time
	out := make([]float64, s.Len())
	for i, b := range s.Bars {
		out[i] = math.Floor(b.Time.Sub(t0).Hours() / 24)
	}
	return out
}

// Fit runs ordinary least squares on the polynomial expansion of the day
// offsets.
func Fit(s *model.Series, degree int) (*Model, error) {
	if degree < MinDegree || degree > MaxDegree {
		return nil, fmt.Errorf("%w: degree must be in [%d, %d], got %d", model.ErrInvalidParameter, MinDegree, MaxDegree, degree)
	}
	if s == nil || s.Len() < MinBars {
		n := 0
		if s != nil {
			n = s.Len()
		}
		return nil, fmt.Errorf("%w: need at least %d bars, got %d", model.ErrInsufficientData, MinBars, n)
	}

	x := dayOffsets(s)
	y := s.Closes()
	last := x[len(x)-1]
	if distinct(x) <= degree {
		return nil, fmt.Errorf("%w: %d distinct days cannot fit degree %d", model.ErrInsufficientData, distinct(x), degree)
	}

	m := &Model{
		symbol:     s.Symbol,
		degree:     degree,
		scale:      math.Max(last, 1),
		lastOffset: int(last),
		lastDate:   s.Last().Time,
		lastClose:  s.Last().Close,
	}

	X := mat.NewDense(len(x), degree+1, nil)
	for i, xi := range x {
		u := xi / m.scale
		p := 1.0
		for j := 0; j <= degree; j++ {
			X.Set(i, j, p)
			p *= u
		}
	}
	var beta mat.VecDense
	if err := beta.SolveVec(X, mat.NewVecDense(len(y), y)); err != nil {
		// A finite Condition only warns about precision; the solution is set.
		var cond mat.Condition
		if !errors.As(err, &cond) || math.IsInf(float64(cond), 1) {
			return nil, fmt.Errorf("%w: least squares: %v", model.ErrInsufficientData, err)
		}
	}
	m.coef = make([]float64, degree+1)
	for j := range m.coef {
		m.coef[j] = beta.AtVec(j)
	}

	residuals := make([]float64, len(y))
	for i := range y {
		residuals[i] = y[i] - m.at(x[i])
	}
	_, m.sigma = stat.PopMeanStdDev(residuals, nil)
	m.metrics = metrics(y, residuals)
	return m, nil
}

func distinct(x []float64) int {
	seen := make(map[float64]struct{}, len(x))
	for _, v := range x {
		seen[v] = struct{}{}
	}
	return len(seen)
}

func metrics(y, residuals []float64) Metrics {
	n := float64(len(y))
	ssRes := floats.Dot(residuals, residuals)
	var absSum float64
	for _, r := range residuals {
		absSum += math.Abs(r)
	}
	mean := stat.Mean(y, nil)
	var ssTot float64
	for _, v := range y {
		ssTot += (v - mean) * (v - mean)
	}

	r2 := 0.0
	switch {
	case ssTot > 0:
		r2 = 1 - ssRes/ssTot
	case ssRes < 1e-18:
		r2 = 1
	}
	return Metrics{RMSE: math.Sqrt(ssRes / n), MAE: absSum / n, R2: r2}
}

// at evaluates the polynomial at a day offset.
func (m *Model) at(offset float64) float64 {
	u := offset / m.scale
	v := 0.0
	for j := len(m.coef) - 1; j >= 0; j-- {
		v = v*u + m.coef[j]
	}
	return v
}

func (m *Model) Degree() int        { return m.degree }
func (m *Model) Sigma() float64     { return m.sigma }
func (m *Model) Metrics() Metrics   { return m.metrics }
func (m *Model) LastOffset() int    { return m.lastOffset }
func (m *Model) LastClose() float64 { return m.lastClose }

// Predict evaluates the fitted polynomial at a day offset.
func (m *Model) Predict(offset int) float64 { return m.at(float64(offset)) }
