package server

import (
	"fmt"
	"net/http"
	"strconv"

	"QuoteWatch/internal/calculator"
	"QuoteWatch/internal/collector"
	"QuoteWatch/internal/export"
	"QuoteWatch/internal/indices"
	"QuoteWatch/internal/model"
	"QuoteWatch/internal/session"
)

type sessionResponse struct {
	session.Status
	Trading     bool   `json:"trading"`
	OffsetHours int    `json:"offsetHours"`
	Display     string `json:"display"`
}

// handleSession handles GET /api/session?exchange=SS
func (s *Server) handleSession(w http.ResponseWriter, r *http.Request) {
	ex := s.cfg.ReferenceExchange
	if code := r.URL.Query().Get("exchange"); code != "" {
		ex = model.ExchangeFromCode(code)
	}
	svc := session.ForExchange(ex, s.cfg.Display, s.cfg.Clock)
	st := svc.Status()
	s.writeJSON(w, http.StatusOK, sessionResponse{
		Status:      st,
		Trading:     st.State.Trading(),
		OffsetHours: svc.OffsetHours(),
		Display:     svc.FormatDisplay(st.AsOf),
	})
}

type watchlistEntry struct {
	Symbol   model.Symbol   `json:"symbol"`
	Market   string         `json:"market"`
	Currency model.Currency `json:"currency"`
}

func (s *Server) handleWatchlist(w http.ResponseWriter, r *http.Request) {
	out := make([]watchlistEntry, len(s.cfg.Watchlist))
	for i, sym := range s.cfg.Watchlist {
		out[i] = watchlistEntry{Symbol: sym, Market: sym.Exchange().Label(), Currency: sym.Currency()}
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"symbols": out})
}

// historyParams reads period and interval, applying the dashboard defaults.
func historyParams(r *http.Request) (period, interval string, err error) {
	q := r.URL.Query()
	period = q.Get("period")
	if period == "" {
		period = "1mo"
	}
	interval = q.Get("interval")
	if interval == "" {
		interval = collector.DefaultInterval(period)
	}
	return period, interval, collector.ValidateRange(period, interval)
}

func (s *Server) loadSeries(r *http.Request) (*model.Series, error) {
	sym, err := symbolParam(r)
	if err != nil {
		return nil, err
	}
	period, interval, err := historyParams(r)
	if err != nil {
		return nil, err
	}
	return s.cfg.Fetcher.FetchHistory(r.Context(), sym, period, interval)
}

// handleSnapshot handles GET /api/quotes/{symbol}?period=1mo
func (s *Server) handleSnapshot(w http.ResponseWriter, r *http.Request) {
	sym, err := symbolParam(r)
	if err != nil {
		s.writeError(w, err)
		return
	}
	period, interval, err := historyParams(r)
	if err != nil {
		s.writeError(w, err)
		return
	}
	snap, err := s.collector.Collect(r.Context(), sym, period, interval)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, snap)
}

// handleHistory handles GET /api/quotes/{symbol}/history
func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	series, err := s.loadSeries(r)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, series)
}

// handleLatest handles GET /api/quotes/{symbol}/latest
func (s *Server) handleLatest(w http.ResponseWriter, r *http.Request) {
	sym, err := symbolParam(r)
	if err != nil {
		s.writeError(w, err)
		return
	}
	price, err := s.cfg.Fetcher.FetchLatestPrice(r.Context(), sym)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{
		"symbol":   sym,
		"market":   sym.Exchange().Label(),
		"currency": sym.Currency(),
		"price":    price,
		"display":  sym.FormatMoney(price),
	})
}

// handleProfile handles GET /api/quotes/{symbol}/profile
func (s *Server) handleProfile(w http.ResponseWriter, r *http.Request) {
	sym, err := symbolParam(r)
	if err != nil {
		s.writeError(w, err)
		return
	}
	p, err := s.cfg.Fetcher.FetchProfile(r.Context(), sym)
	if err != nil {
		s.writeError(w, err)
		return
	}
	resp := map[string]any{"profile": p}
	if p.MarketCap != nil {
		resp["marketCapDisplay"] = model.FormatLargeNumber(*p.MarketCap)
	}
	s.writeJSON(w, http.StatusOK, resp)
}

// handleStats handles GET /api/quotes/{symbol}/stats
func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	series, err := s.loadSeries(r)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, calculator.Summarize(series))
}

// handleExportCSV handles GET /api/quotes/{symbol}/export.csv
func (s *Server) handleExportCSV(w http.ResponseWriter, r *http.Request) {
	series, err := s.loadSeries(r)
	if err != nil {
		s.writeError(w, err)
		return
	}
	name := export.FileName(series.Symbol, "csv", s.cfg.Clock(), s.cfg.Display)
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
	if err := export.WriteCSV(w, series, s.cfg.Display); err != nil {
		s.log.Error().Err(err).Msg("write csv export")
	}
}

// handleExportJSON handles GET /api/quotes/{symbol}/export.json
func (s *Server) handleExportJSON(w http.ResponseWriter, r *http.Request) {
	series, err := s.loadSeries(r)
	if err != nil {
		s.writeError(w, err)
		return
	}
	name := export.FileName(series.Symbol, "json", s.cfg.Clock(), s.cfg.Display)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
	s.writeJSON(w, http.StatusOK, export.BuildJSON(series, s.cfg.Clock(), s.cfg.Display))
}

// handleCompareIndices handles GET /api/indices
func (s *Server) handleCompareIndices(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, indices.Compare(r.Context(), s.cfg.Fetcher, s.cfg.Indices))
}

// handleIndexDetail handles GET /api/indices/{symbol}?period=1d
func (s *Server) handleIndexDetail(w http.ResponseWriter, r *http.Request) {
	sym, err := symbolParam(r)
	if err != nil {
		s.writeError(w, err)
		return
	}
	period := r.URL.Query().Get("period")
	if period == "" {
		period = "1d"
	}
	if err := collector.ValidateRange(period, collector.DefaultInterval(period)); err != nil {
		s.writeError(w, err)
		return
	}
	d, err := indices.LoadDetail(r.Context(), s.cfg.Fetcher, sym, period)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, d)
}

func queryInt(r *http.Request, key string, def int) (int, error) {
	v := r.URL.Query().Get(key)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%w: %s must be an integer", model.ErrInvalidParameter, key)
	}
	return n, nil
}

func queryBool(r *http.Request, key string, def bool) (bool, error) {
	v := r.URL.Query().Get(key)
	if v == "" {
		return def, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("%w: %s must be a boolean", model.ErrInvalidParameter, key)
	}
	return b, nil
}
