package collector

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"QuoteWatch/internal/model"
)

// RESTFetcher implements Fetcher against a generic bars/quote REST API.
//
//	GET {base}/api/v1/bars/{daily|intraday}?symbol=&interval=&limit=
//	GET {base}/api/v1/quote?symbol=
//	GET {base}/api/v1/profile?symbol=
type RESTFetcher struct {
	BaseURL string
	APIKey  string
	Client  *http.Client
}

// NewRESTFetcher creates a new fetcher with optional proxy support.
func NewRESTFetcher(baseURL, apiKey, proxyURL string) *RESTFetcher {
	transport := &http.Transport{}
	if proxyURL != "" {
		if u, err := url.Parse(proxyURL); err == nil {
			transport.Proxy = http.ProxyURL(u)
		}
	}
	return &RESTFetcher{
		BaseURL: baseURL,
		APIKey:  apiKey,
		Client: &http.Client{
			Timeout:   30 * time.Second,
			Transport: transport,
		},
	}
}

func (f *RESTFetcher) Name() string { return "rest" }

// restBar is the expected JSON shape from the bars endpoint.
type restBar struct {
	Timestamp int64   `json:"timestamp"`
	Open      float64 `json:"open"`
	High      float64 `json:"high"`
	Low       float64 `json:"low"`
	Close     float64 `json:"close"`
	Volume    float64 `json:"volume"`
}

// periodDays approximates each period in calendar days.
var periodDays = map[string]int{
	"1d": 1, "5d": 5, "1mo": 31, "3mo": 92, "6mo": 183, "1y": 366, "2y": 731, "5y": 1827,
}

func (f *RESTFetcher) FetchHistory(ctx context.Context, symbol model.Symbol, period, interval string) (*model.Series, error) {
	if err := ValidateRange(period, interval); err != nil {
		return nil, err
	}
	q := url.Values{}
	q.Set("symbol", symbol.String())
	q.Set("limit", fmt.Sprint(periodDays[period]))

	var bars []model.Bar
	var err error
	switch interval {
	case "1d":
		bars, err = f.fetchBars(ctx, "/api/v1/bars/daily", q)
	case "1wk":
		// The API only serves daily bars; weeks are rolled up locally.
		bars, err = f.fetchBars(ctx, "/api/v1/bars/daily", q)
		bars = aggregateDailyToWeekly(bars)
	case "1mo":
		bars, err = f.fetchBars(ctx, "/api/v1/bars/daily", q)
		bars = aggregateDailyToMonthly(bars)
	default:
		q.Set("interval", interval)
		bars, err = f.fetchBars(ctx, "/api/v1/bars/intraday", q)
	}
	if err != nil {
		return nil, err
	}
	if len(bars) == 0 {
		return nil, fetchErr("no bars for %s", symbol)
	}
	return model.NewSeries(symbol, interval, bars)
}

func (f *RESTFetcher) FetchLatestPrice(ctx context.Context, symbol model.Symbol) (float64, error) {
	var result struct {
		Price float64 `json:"price"`
	}
	if err := f.getJSON(ctx, "/api/v1/quote", url.Values{"symbol": {symbol.String()}}, &result); err != nil {
		return 0, err
	}
	if result.Price <= 0 {
		return 0, fetchErr("no price for %s", symbol)
	}
	return result.Price, nil
}

func (f *RESTFetcher) FetchProfile(ctx context.Context, symbol model.Symbol) (*model.Profile, error) {
	p := &model.Profile{}
	if err := f.getJSON(ctx, "/api/v1/profile", url.Values{"symbol": {symbol.String()}}, p); err != nil {
		return nil, err
	}
	p.Symbol = symbol
	return p, nil
}

func (f *RESTFetcher) fetchBars(ctx context.Context, path string, q url.Values) ([]model.Bar, error) {
	var raw []restBar
	if err := f.getJSON(ctx, path, q, &raw); err != nil {
		return nil, err
	}
	bars := make([]model.Bar, len(raw))
	for i, rb := range raw {
		bars[i] = model.Bar{
			Time:   time.Unix(rb.Timestamp, 0).UTC(),
			Open:   rb.Open,
			High:   rb.High,
			Low:    rb.Low,
			Close:  rb.Close,
			Volume: rb.Volume,
		}
	}
	return dedupe(bars), nil
}

func (f *RESTFetcher) getJSON(ctx context.Context, path string, q url.Values, out any) error {
	endpoint := f.BaseURL + path + "?" + q.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return fetchErr("build request: %v", err)
	}
	if f.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+f.APIKey)
	}
	resp, err := f.Client.Do(req)
	if err != nil {
		return fetchErr("%s: %v", path, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return fetchErr("%s: status %d, body: %s", path, resp.StatusCode, string(body))
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fetchErr("decode %s: %v", path, err)
	}
	return nil
}

// aggregateDailyToWeekly converts daily bars into ISO-week bars.
func aggregateDailyToWeekly(daily []model.Bar) []model.Bar {
	return aggregate(daily, func(t time.Time) int {
		y, w := t.ISOWeek()
		return y*100 + w
	})
}

func aggregateDailyToMonthly(daily []model.Bar) []model.Bar {
	return aggregate(daily, func(t time.Time) int {
		return t.Year()*100 + int(t.Month())
	})
}

// aggregate folds consecutive bars sharing a bucket key into one bar
// stamped with the bucket's first timestamp.
func aggregate(daily []model.Bar, key func(time.Time) int) []model.Bar {
	if len(daily) == 0 {
		return nil
	}
	var out []model.Bar
	cur := daily[0]
	curKey := key(cur.Time)
	for _, d := range daily[1:] {
		if k := key(d.Time); k != curKey {
			out = append(out, cur)
			cur, curKey = d, k
			continue
		}
		if d.High > cur.High {
			cur.High = d.High
		}
		if d.Low < cur.Low {
			cur.Low = d.Low
		}
		cur.Close = d.Close
		cur.Volume += d.Volume
	}
	return append(out, cur)
}
