package server

import (
	"errors"
	"fmt"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"QuoteWatch/internal/alert"
	"QuoteWatch/internal/forecast"
	"QuoteWatch/internal/model"
	"QuoteWatch/internal/portfolio"
)

type createAlertRequest struct {
	Symbol    string  `json:"symbol"`
	Price     float64 `json:"price"`
	Condition string  `json:"condition"`
	Lifetime  string  `json:"lifetime"`
}

type evaluateRequest struct {
	Symbol string  `json:"symbol"`
	Price  float64 `json:"price"` // zero means look up the latest price
}

type evaluateResponse struct {
	Symbol        model.Symbol  `json:"symbol"`
	Price         float64       `json:"price"`
	Fired         []alert.Alert `json:"fired"`
	DeliveryError string        `json:"deliveryError,omitempty"`
}

func (s *Server) handleListAlerts(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]any{"alerts": s.cfg.Alerts.List()})
}

func (s *Server) handleCreateAlert(w http.ResponseWriter, r *http.Request) {
	var req createAlertRequest
	if err := s.decode(r, &req); err != nil {
		s.writeError(w, err)
		return
	}
	sym, err := model.ParseSymbol(req.Symbol)
	if err != nil {
		s.writeError(w, err)
		return
	}
	cond, err := alert.ParseCondition(req.Condition)
	if err != nil {
		s.writeError(w, err)
		return
	}
	life, err := alert.ParseLifetime(req.Lifetime)
	if err != nil {
		s.writeError(w, err)
		return
	}
	a, err := s.cfg.Alerts.Create(sym, req.Price, cond, life)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, a)
}

// handleDeleteAlert always answers 204; deleting twice is harmless.
func (s *Server) handleDeleteAlert(w http.ResponseWriter, r *http.Request) {
	s.cfg.Alerts.Delete(chi.URLParam(r, "id"))
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleEvaluateAlerts(w http.ResponseWriter, r *http.Request) {
	var req evaluateRequest
	if err := s.decode(r, &req); err != nil {
		s.writeError(w, err)
		return
	}
	sym, err := model.ParseSymbol(req.Symbol)
	if err != nil {
		s.writeError(w, err)
		return
	}
	price := req.Price
	if price == 0 {
		if price, err = s.cfg.Fetcher.FetchLatestPrice(r.Context(), sym); err != nil {
			s.writeError(w, err)
			return
		}
	}
	fired, err := s.cfg.Alerts.Evaluate(r.Context(), sym, price)
	resp := evaluateResponse{Symbol: sym, Price: price, Fired: fired}
	if resp.Fired == nil {
		resp.Fired = []alert.Alert{}
	}
	if err != nil {
		if len(fired) == 0 && errors.Is(err, model.ErrInvalidParameter) {
			s.writeError(w, err)
			return
		}
		resp.DeliveryError = err.Error()
	}
	s.writeJSON(w, http.StatusOK, resp)
}

type addLotRequest struct {
	Symbol   string     `json:"symbol"`
	Shares   float64    `json:"shares"`
	BuyPrice float64    `json:"buyPrice"`
	BoughtAt *time.Time `json:"boughtAt,omitempty"`
}

func (s *Server) handleGetPortfolio(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, s.cfg.Portfolio.Snapshot())
}

func (s *Server) handleAddLot(w http.ResponseWriter, r *http.Request) {
	var req addLotRequest
	if err := s.decode(r, &req); err != nil {
		s.writeError(w, err)
		return
	}
	sym, err := model.ParseSymbol(req.Symbol)
	if err != nil {
		s.writeError(w, err)
		return
	}
	at := s.cfg.Clock()
	if req.BoughtAt != nil {
		at = *req.BoughtAt
	}
	lot, err := s.cfg.Portfolio.Add(sym, req.Shares, req.BuyPrice, at)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, lot)
}

func (s *Server) handleClearPortfolio(w http.ResponseWriter, r *http.Request) {
	s.cfg.Portfolio.Clear()
	w.WriteHeader(http.StatusNoContent)
}

type reportResponse struct {
	*portfolio.Report
	Consolidated *consolidated `json:"consolidated,omitempty"`
}

type consolidated struct {
	Base model.Currency `json:"base"`
	portfolio.Totals
}

// handlePortfolioReport handles GET /api/portfolio/report?base=CNY&rates=HKD:0.92,USD:7.2
func (s *Server) handlePortfolioReport(w http.ResponseWriter, r *http.Request) {
	report := s.cfg.Valuator.Value(r.Context(), s.cfg.Portfolio, s.cfg.Fetcher.FetchLatestPrice)
	resp := reportResponse{Report: report}

	if base := r.URL.Query().Get("base"); base != "" {
		rates, err := parseRates(r.URL.Query().Get("rates"))
		if err != nil {
			s.writeError(w, err)
			return
		}
		cur := model.Currency(strings.ToUpper(base))
		t, err := portfolio.Consolidate(report, cur, rates)
		if err != nil {
			s.writeError(w, err)
			return
		}
		resp.Consolidated = &consolidated{Base: cur, Totals: t}
	}
	s.writeJSON(w, http.StatusOK, resp)
}

// parseRates reads "HKD:0.92,USD:7.2".
func parseRates(raw string) (map[model.Currency]float64, error) {
	rates := make(map[model.Currency]float64)
	if raw == "" {
		return rates, nil
	}
	for _, pair := range strings.Split(raw, ",") {
		code, val, ok := strings.Cut(pair, ":")
		if !ok {
			return nil, fmt.Errorf("%w: bad rate %q", model.ErrInvalidParameter, pair)
		}
		f, err := strconv.ParseFloat(strings.TrimSpace(val), 64)
		if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
			return nil, fmt.Errorf("%w: bad rate %q", model.ErrInvalidParameter, pair)
		}
		rates[model.Currency(strings.ToUpper(strings.TrimSpace(code)))] = f
	}
	return rates, nil
}

// handleForecast handles GET /api/forecast/{symbol}?degree=2&horizon=7&period=1y&confidence=true
func (s *Server) handleForecast(w http.ResponseWriter, r *http.Request) {
	sym, err := symbolParam(r)
	if err != nil {
		s.writeError(w, err)
		return
	}
	req := forecast.Request{Symbol: sym, Period: r.URL.Query().Get("period")}
	if req.Degree, err = queryInt(r, "degree", 2); err != nil {
		s.writeError(w, err)
		return
	}
	if req.Horizon, err = queryInt(r, "horizon", 7); err != nil {
		s.writeError(w, err)
		return
	}
	if req.Confidence, err = queryBool(r, "confidence", true); err != nil {
		s.writeError(w, err)
		return
	}
	res, err := s.cfg.Forecast.Forecast(r.Context(), req)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, res)
}
