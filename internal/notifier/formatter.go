package notifier

import (
	"fmt"
	"html"
	"sort"
	"strings"

	"QuoteWatch/internal/alert"
	"QuoteWatch/internal/forecast"
	"QuoteWatch/internal/model"
	"QuoteWatch/internal/portfolio"
	"QuoteWatch/internal/session"
)

var stateLabels = map[session.State]string{
	session.PreOpen:          "Pre-open",
	session.MorningSession:   "Morning session",
	session.LunchBreak:       "Lunch break",
	session.AfternoonSession: "Afternoon session",
	session.Closed:           "Closed",
	session.Weekend:          "Weekend",
}

// FormatStatus renders one market's session status.
func FormatStatus(st session.Status) string {
	icon := "🔴"
	if st.State.Trading() {
		icon = "🟢"
	}
	return fmt.Sprintf("%s <b>%s</b>: %s\nMarket time: %s\nAs of: %s",
		icon, html.EscapeString(st.Exchange), stateLabels[st.State],
		st.MarketTime.Format("15:04 MST"), st.AsOf.Format("2006-01-02 15:04 MST"))
}

// FormatPortfolioReport renders a valuation, one block per currency.
func FormatPortfolioReport(r *portfolio.Report) string {
	var b strings.Builder
	b.WriteString(fmt.Sprintf("💼 <b>Portfolio</b> | %s\n\n", r.AsOf.Format("2006-01-02 15:04 MST")))
	if len(r.Lines) == 0 && len(r.FailedSymbols) == 0 {
		b.WriteString("No positions.\n")
		return b.String()
	}

	for _, l := range r.Lines {
		b.WriteString(fmt.Sprintf("%s (%s) %.4g @ %s → %s  %s (%+.2f%%)\n",
			l.Symbol, l.Market, l.Shares,
			l.Symbol.FormatMoney(l.BuyPrice), l.Symbol.FormatMoney(l.CurrentPrice),
			l.Symbol.FormatMoney(l.Profit), l.ProfitPct))
	}

	currencies := make([]model.Currency, 0, len(r.Totals))
	for c := range r.Totals {
		currencies = append(currencies, c)
	}
	sort.Slice(currencies, func(i, j int) bool { return currencies[i] < currencies[j] })
	b.WriteString("\n<b>Totals</b>\n")
	for _, c := range currencies {
		t := r.Totals[c]
		b.WriteString(fmt.Sprintf("  %s: value %.2f, cost %.2f, P/L %+.2f (%+.2f%%)\n",
			c, t.Value, t.Cost, t.Profit, t.ProfitPct))
	}

	if len(r.FailedSymbols) > 0 {
		names := make([]string, len(r.FailedSymbols))
		for i, s := range r.FailedSymbols {
			names[i] = s.String()
		}
		b.WriteString(fmt.Sprintf("\n⚠️ Unpriced: %s\n", strings.Join(names, ", ")))
	}
	return b.String()
}

// FormatAlerts lists alerts for the /alerts command.
func FormatAlerts(alerts []alert.Alert) string {
	if len(alerts) == 0 {
		return "🔔 No active alerts."
	}
	var b strings.Builder
	b.WriteString(fmt.Sprintf("🔔 <b>Alerts</b> (%d)\n", len(alerts)))
	for _, a := range alerts {
		b.WriteString("  • " + html.EscapeString(a.Describe()))
		if a.FireCount > 0 {
			b.WriteString(fmt.Sprintf(" fired %d×", a.FireCount))
		}
		b.WriteString("\n")
	}
	return b.String()
}

// FormatForecast summarizes a projection.
func FormatForecast(r *forecast.Result) string {
	var b strings.Builder
	b.WriteString(fmt.Sprintf("📈 <b>%s</b> degree %d, %d days\n", r.Symbol, r.Degree, r.HorizonDays))
	last := r.Points[len(r.Points)-1]
	b.WriteString(fmt.Sprintf("Last close %s → %s (%+.2f%%)\n",
		r.Symbol.FormatMoney(r.LastClose), r.Symbol.FormatMoney(last.Predicted), last.ChangePct))
	b.WriteString(fmt.Sprintf("Trend: %s / %s\n", r.Trend.Direction, r.Trend.Strength))
	b.WriteString(fmt.Sprintf("RMSE %.2f | MAE %.2f | R² %.3f", r.FitMetrics.RMSE, r.FitMetrics.MAE, r.FitMetrics.R2))
	return b.String()
}
