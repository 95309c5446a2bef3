package collector

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"time"

	"github.com/tidwall/gjson"

	"QuoteWatch/internal/model"
)

const (
	yahooChartBase   = "https://query1.finance.yahoo.com/v8/finance/chart/"
	yahooSummaryBase = "https://query2.finance.yahoo.com/v10/finance/quoteSummary/"
)

// YahooFetcher implements Fetcher using Yahoo Finance public endpoints.
type YahooFetcher struct {
	Client     *http.Client
	ChartURL   string
	SummaryURL string
	SymbolMap  map[string]string // internal symbol to Yahoo ticker
	UserAgent  string
}

// NewYahooFetcher creates a new Yahoo Finance fetcher with optional proxy.
func NewYahooFetcher(proxyURL string) *YahooFetcher {
	transport := &http.Transport{}
	if proxyURL != "" {
		if u, err := url.Parse(proxyURL); err == nil {
			transport.Proxy = http.ProxyURL(u)
		}
	}
	return &YahooFetcher{
		Client: &http.Client{
			Timeout:   30 * time.Second,
			Transport: transport,
		},
		ChartURL:   yahooChartBase,
		SummaryURL: yahooSummaryBase,
		SymbolMap:  map[string]string{},
		UserAgent:  "Mozilla/5.0",
	}
}

func (f *YahooFetcher) Name() string { return "yahoo" }

func (f *YahooFetcher) yahooSymbol(symbol model.Symbol) string {
	if mapped, ok := f.SymbolMap[symbol.String()]; ok {
		return mapped
	}
	return symbol.String()
}

// yahooChart is the response structure from Yahoo Finance chart API.
type yahooChart struct {
	Chart struct {
		Result []struct {
			Meta struct {
				RegularMarketPrice float64 `json:"regularMarketPrice"`
			} `json:"meta"`
			Timestamp  []int64 `json:"timestamp"`
			Indicators struct {
				Quote []struct {
					Open   []*float64 `json:"open"`
					High   []*float64 `json:"high"`
					Low    []*float64 `json:"low"`
					Close  []*float64 `json:"close"`
					Volume []*float64 `json:"volume"`
				} `json:"quote"`
			} `json:"indicators"`
		} `json:"result"`
		Error *struct {
			Code        string `json:"code"`
			Description string `json:"description"`
		} `json:"error"`
	} `json:"chart"`
}

func at(vals []*float64, i int) float64 {
	if i >= len(vals) || vals[i] == nil {
		return 0
	}
	return *vals[i]
}

func (f *YahooFetcher) get(ctx context.Context, u string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fetchErr("build request: %v", err)
	}
	req.Header.Set("User-Agent", f.UserAgent)

	resp, err := f.Client.Do(req)
	if err != nil {
		return nil, fetchErr("yahoo: %v", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fetchErr("yahoo read body: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fetchErr("yahoo: status %d, body: %s", resp.StatusCode, string(body))
	}
	return body, nil
}

func (f *YahooFetcher) fetchChart(ctx context.Context, symbol model.Symbol, interval, rng string) (*yahooChart, error) {
	u := fmt.Sprintf("%s%s?interval=%s&range=%s", f.ChartURL,
		url.PathEscape(f.yahooSymbol(symbol)), url.QueryEscape(yahooInterval(interval)), url.QueryEscape(rng))
	body, err := f.get(ctx, u)
	if err != nil {
		return nil, err
	}

	var chart yahooChart
	if err := json.Unmarshal(body, &chart); err != nil {
		return nil, fetchErr("yahoo decode: %v", err)
	}
	if chart.Chart.Error != nil {
		return nil, fetchErr("yahoo api error for %s: %s", symbol, chart.Chart.Error.Description)
	}
	if len(chart.Chart.Result) == 0 {
		return nil, fetchErr("yahoo: no data returned for %s", symbol)
	}
	return &chart, nil
}

// FetchHistory loads OHLCV bars for period at interval.
func (f *YahooFetcher) FetchHistory(ctx context.Context, symbol model.Symbol, period, interval string) (*model.Series, error) {
	if err := ValidateRange(period, interval); err != nil {
		return nil, err
	}
	chart, err := f.fetchChart(ctx, symbol, interval, period)
	if err != nil {
		return nil, err
	}
	result := chart.Chart.Result[0]
	if len(result.Timestamp) == 0 || len(result.Indicators.Quote) == 0 {
		return nil, fetchErr("yahoo: no bars returned for %s", symbol)
	}
	quote := result.Indicators.Quote[0]

	bars := make([]model.Bar, 0, len(result.Timestamp))
	for i, ts := range result.Timestamp {
		o, h, l, c := at(quote.Open, i), at(quote.High, i), at(quote.Low, i), at(quote.Close, i)
		if c <= 0 {
			continue // null or partial bars (holidays, halts, the still-forming bar)
		}
		bars = append(bars, model.Bar{
			Time:   time.Unix(ts, 0).UTC(),
			Open:   o,
			High:   h,
			Low:    l,
			Close:  c,
			Volume: at(quote.Volume, i),
		})
	}
	bars = dedupe(bars)
	if len(bars) == 0 {
		return nil, fetchErr("yahoo: only empty bars for %s", symbol)
	}
	return model.NewSeries(symbol, interval, bars)
}

// FetchLatestPrice returns the close of the most recent bar of the day.
func (f *YahooFetcher) FetchLatestPrice(ctx context.Context, symbol model.Symbol) (float64, error) {
	series, err := f.FetchHistory(ctx, symbol, "1d", "5m")
	if err != nil {
		return 0, err
	}
	return series.Last().Close, nil
}

// FetchProfile reads the quoteSummary modules. Fields Yahoo omits stay
// empty; only transport failures are errors.
func (f *YahooFetcher) FetchProfile(ctx context.Context, symbol model.Symbol) (*model.Profile, error) {
	u := fmt.Sprintf("%s%s?modules=price,summaryProfile,summaryDetail,defaultKeyStatistics",
		f.SummaryURL, url.PathEscape(f.yahooSymbol(symbol)))
	body, err := f.get(ctx, u)
	if err != nil {
		return nil, err
	}
	return parseProfile(symbol, body), nil
}

func parseProfile(symbol model.Symbol, body []byte) *model.Profile {
	res := gjson.GetBytes(body, "quoteSummary.result.0")
	p := &model.Profile{Symbol: symbol}
	if !res.Exists() {
		return p
	}
	p.DisplayName = res.Get("price.longName").String()
	if p.DisplayName == "" {
		p.DisplayName = res.Get("price.shortName").String()
	}
	p.Sector = res.Get("summaryProfile.sector").String()
	p.Industry = res.Get("summaryProfile.industry").String()
	p.Currency = res.Get("price.currency").String()
	p.MarketCap = rawFloat(res, "price.marketCap.raw", "summaryDetail.marketCap.raw")
	p.PERatio = rawFloat(res, "summaryDetail.trailingPE.raw")
	p.DividendYield = rawFloat(res, "summaryDetail.dividendYield.raw")
	p.Beta = rawFloat(res, "summaryDetail.beta.raw", "defaultKeyStatistics.beta.raw")
	return p
}

func rawFloat(res gjson.Result, paths ...string) *float64 {
	for _, path := range paths {
		if v := res.Get(path); v.Exists() && v.Type == gjson.Number {
			f := v.Float()
			return &f
		}
	}
	return nil
}

func yahooInterval(interval string) string {
	if interval == "1h" {
		return "60m"
	}
	return interval
}

// dedupe sorts bars and keeps the later of any two sharing a timestamp.
func dedupe(bars []model.Bar) []model.Bar {
	sort.SliceStable(bars, func(i, j int) bool { return bars[i].Time.Before(bars[j].Time) })
	out := bars[:0]
	for _, b := range bars {
		if n := len(out); n > 0 && out[n-1].Time.Equal(b.Time) {
			out[n-1] = b
			continue
		}
		out = append(out, b)
	}
	return out
}
