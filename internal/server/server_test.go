package server

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"QuoteWatch/internal/alert"
	"QuoteWatch/internal/collector"
	"QuoteWatch/internal/forecast"
	"QuoteWatch/internal/indices"
	"QuoteWatch/internal/model"
	"QuoteWatch/internal/portfolio"
	"QuoteWatch/internal/session"
)

// Saturday 2024-03-09 12:00 UTC.
var fixed = time.Date(2024, 3, 9, 12, 0, 0, 0, time.UTC)

func newTestServer(t *testing.T) (*httptest.Server, *collector.MockFetcher) {
	t.Helper()
	fetcher := collector.NewMockFetcher(100)
	clock := func() time.Time { return fixed }
	paris, err := time.LoadLocation("Europe/Paris")
	require.NoError(t, err)

	srv := New(Config{
		Log:     zerolog.Nop(),
		Fetcher: fetcher,
		Alerts: alert.NewEngine(alert.Config{
			Clock:  session.ForExchange(model.Shanghai, paris, clock),
			Logger: zerolog.Nop(),
		}),
		Portfolio:         portfolio.New(nil, zerolog.Nop()),
		Valuator:          portfolio.NewValuator(4, nil, zerolog.Nop()),
		Forecast:          forecast.NewEngine(fetcher.FetchHistory, nil, zerolog.Nop()),
		Indices:           indices.FromMap(map[string]string{"000001.SS": "SSE", "^HSI": "Hang Seng"}),
		Watchlist:         []model.Symbol{model.MustSymbol("600519.SS"), model.MustSymbol("BABA")},
		Display:           paris,
		Clock:             clock,
		ReferenceExchange: model.Shanghai,
	})
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return ts, fetcher
}

func do(t *testing.T, method, url, body string) (*http.Response, []byte) {
	t.Helper()
	req, err := http.NewRequest(method, url, strings.NewReader(body))
	require.NoError(t, err)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, data
}

func decodeMap(t *testing.T, data []byte) map[string]any {
	t.Helper()
	var m map[string]any
	require.NoError(t, json.Unmarshal(data, &m))
	return m
}

func TestHealthAndSession(t *testing.T) {
	ts, _ := newTestServer(t)

	resp, _ := do(t, http.MethodGet, ts.URL+"/healthz", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, data := do(t, http.MethodGet, ts.URL+"/api/session", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	m := decodeMap(t, data)
	assert.Equal(t, "Weekend", m["state"])
	assert.Equal(t, "Shanghai", m["exchange"])
	assert.Equal(t, false, m["trading"])
	assert.Equal(t, 7.0, m["offsetHours"])

	_, data = do(t, http.MethodGet, ts.URL+"/api/session?exchange=HK", "")
	assert.Equal(t, "Hong Kong", decodeMap(t, data)["exchange"])

	_, data = do(t, http.MethodGet, ts.URL+"/api/watchlist", "")
	list := decodeMap(t, data)["symbols"].([]any)
	require.Len(t, list, 2)
	assert.Equal(t, "Shanghai", list[0].(map[string]any)["market"])
	assert.Equal(t, "USD", list[1].(map[string]any)["currency"])
}

func TestQuotes(t *testing.T) {
	ts, fetcher := newTestServer(t)
	fetcher.SetPrice("0700.HK", 312.4)

	resp, data := do(t, http.MethodGet, ts.URL+"/api/quotes/0700.HK/latest", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	m := decodeMap(t, data)
	assert.Equal(t, "HK$312.40", m["display"])
	assert.Equal(t, "HKD", m["currency"])

	resp, data = do(t, http.MethodGet, ts.URL+"/api/quotes/0700.HK?period=5d", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	snap := decodeMap(t, data)
	assert.Equal(t, "0700.HK", snap["symbol"])
	assert.Equal(t, 5.0, snap["stats"].(map[string]any)["count"])

	resp, data = do(t, http.MethodGet, ts.URL+"/api/quotes/AAPL/history?period=5d", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Len(t, decodeMap(t, data)["bars"], 5)

	resp, _ = do(t, http.MethodGet, ts.URL+"/api/quotes/AAPL/history?period=9y", "")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, data = do(t, http.MethodGet, ts.URL+"/api/quotes/AAPL/stats?period=3mo", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, 92.0, decodeMap(t, data)["count"])

	resp, data = do(t, http.MethodGet, ts.URL+"/api/quotes/AAPL/export.csv?period=5d", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, resp.Header.Get("Content-Disposition"), "AAPL_data_20240309_130000.csv")
	assert.True(t, strings.HasPrefix(string(data), "timestamp,open,high,low,close,volume\n"))

	resp, data = do(t, http.MethodGet, ts.URL+"/api/quotes/AAPL/export.json?period=5d", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "USD", decodeMap(t, data)["currency"])

	fetcher.SetError("DOWN", errors.New("offline"))
	resp, _ = do(t, http.MethodGet, ts.URL+"/api/quotes/DOWN/latest", "")
	assert.Equal(t, http.StatusBadGateway, resp.StatusCode)

	resp, data = do(t, http.MethodGet, ts.URL+"/api/quotes/AAPL/profile", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.NotNil(t, decodeMap(t, data)["profile"])
}

func TestAlertsFlow(t *testing.T) {
	ts, fetcher := newTestServer(t)

	resp, _ := do(t, http.MethodPost, ts.URL+"/api/alerts", `{"symbol":"X","price":-1,"condition":"above"}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	resp, _ = do(t, http.MethodPost, ts.URL+"/api/alerts", `{"symbol":"X","price":50,"condition":"sideways"}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	resp, _ = do(t, http.MethodPost, ts.URL+"/api/alerts", `{"symbol":"A\r\nBcc: x@y","price":50,"condition":"above"}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, data := do(t, http.MethodPost, ts.URL+"/api/alerts",
		`{"symbol":"x","price":50,"condition":"above","lifetime":"one_time"}`)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	id := decodeMap(t, data)["id"].(string)

	_, data = do(t, http.MethodPost, ts.URL+"/api/alerts/evaluate", `{"symbol":"X","price":45}`)
	assert.Empty(t, decodeMap(t, data)["fired"])

	fetcher.SetPrice("X", 51)
	_, data = do(t, http.MethodPost, ts.URL+"/api/alerts/evaluate", `{"symbol":"X"}`)
	m := decodeMap(t, data)
	require.Len(t, m["fired"], 1)
	assert.Equal(t, 51.0, m["price"])
	fired := m["fired"].([]any)[0].(map[string]any)
	assert.Equal(t, id, fired["id"])
	assert.Equal(t, "retired", fired["status"])

	_, data = do(t, http.MethodGet, ts.URL+"/api/alerts", "")
	assert.Empty(t, decodeMap(t, data)["alerts"])

	resp, _ = do(t, http.MethodDelete, ts.URL+"/api/alerts/"+id, "")
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp, _ = do(t, http.MethodPost, ts.URL+"/api/alerts/evaluate", `{"symbol":"X","price":-3}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestPortfolioFlow(t *testing.T) {
	ts, fetcher := newTestServer(t)
	fetcher.SetPrice("600519.SS", 1600)
	fetcher.SetPrice("0700.HK", 330)
	fetcher.SetError("BAD", errors.New("offline"))

	for _, body := range []string{
		`{"symbol":"600519.SS","shares":10,"buyPrice":1500}`,
		`{"symbol":"0700.HK","shares":100,"buyPrice":300}`,
		`{"symbol":"BAD","shares":1,"buyPrice":1}`,
	} {
		resp, _ := do(t, http.MethodPost, ts.URL+"/api/portfolio/lots", body)
		require.Equal(t, http.StatusCreated, resp.StatusCode)
	}
	resp, _ := do(t, http.MethodPost, ts.URL+"/api/portfolio/lots", `{"symbol":"AAPL","shares":0,"buyPrice":1}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	_, data := do(t, http.MethodGet, ts.URL+"/api/portfolio", "")
	assert.Len(t, decodeMap(t, data)["lots"], 3)

	resp, data = do(t, http.MethodGet, ts.URL+"/api/portfolio/report?base=CNY&rates=HKD:0.9", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	m := decodeMap(t, data)
	assert.Len(t, m["lines"], 2)
	assert.Equal(t, []any{"BAD"}, m["failedSymbols"])
	totals := m["totals"].(map[string]any)
	assert.Contains(t, totals, "CNY")
	assert.Contains(t, totals, "HKD")
	cons := m["consolidated"].(map[string]any)
	assert.InDelta(t, 16000+33000*0.9, cons["value"], 1e-6)

	resp, _ = do(t, http.MethodGet, ts.URL+"/api/portfolio/report?base=USD", "")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	for _, rates := range []string{"HKD:NaN", "HKD:Inf", "HKD:-Inf", "HKD:abc", "HKD"} {
		resp, _ = do(t, http.MethodGet, ts.URL+"/api/portfolio/report?base=CNY&rates="+rates, "")
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode, "rates %s", rates)
	}

	resp, _ = do(t, http.MethodDelete, ts.URL+"/api/portfolio", "")
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	_, data = do(t, http.MethodGet, ts.URL+"/api/portfolio/report", "")
	assert.Empty(t, decodeMap(t, data)["lines"])
}

func TestForecastEndpoint(t *testing.T) {
	ts, fetcher := newTestServer(t)
	bars := make([]model.Bar, 31)
	for i := range bars {
		c := 100 + float64(i)
		bars[i] = model.Bar{Time: fixed.AddDate(0, 0, i-31), Open: c, High: c, Low: c, Close: c}
	}
	fetcher.SetBars("X", bars)
	fetcher.SetBars("SHORT", bars[:10])

	resp, data := do(t, http.MethodGet, ts.URL+"/api/forecast/X?degree=1&horizon=5", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	m := decodeMap(t, data)
	points := m["points"].([]any)
	require.Len(t, points, 5)
	assert.InDelta(t, 135, points[4].(map[string]any)["predictedPrice"], 1e-6)
	assert.Contains(t, points[0], "lowerBound")
	trend := m["trend"].(map[string]any)
	assert.Equal(t, "Bullish", trend["direction"])
	assert.Equal(t, "MildBullish", trend["strength"])

	resp, _ = do(t, http.MethodGet, ts.URL+"/api/forecast/X?degree=6", "")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	resp, _ = do(t, http.MethodGet, ts.URL+"/api/forecast/X?horizon=abc", "")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	resp, _ = do(t, http.MethodGet, ts.URL+"/api/forecast/SHORT", "")
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)

	_, data = do(t, http.MethodGet, ts.URL+"/api/forecast/X?degree=1&horizon=1&confidence=false", "")
	assert.NotContains(t, decodeMap(t, data)["points"].([]any)[0], "lowerBound")
}

func TestIndices(t *testing.T) {
	ts, fetcher := newTestServer(t)
	fetcher.SetError("^HSI", errors.New("offline"))

	resp, data := do(t, http.MethodGet, ts.URL+"/api/indices", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	m := decodeMap(t, data)
	assert.Len(t, m["rows"], 1)
	assert.Equal(t, []any{"^HSI"}, m["failed"])

	resp, _ = do(t, http.MethodGet, ts.URL+"/api/indices/%5EHSI", "")
	assert.Equal(t, http.StatusBadGateway, resp.StatusCode)

	resp, data = do(t, http.MethodGet, ts.URL+"/api/indices/000001.SS?period=1mo", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "1mo", decodeMap(t, data)["period"])
}
