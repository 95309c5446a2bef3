package alert

import (
	"context"
	"fmt"
	"html"
	"strings"

	"QuoteWatch/internal/model"
)

// Sender delivers a rendered message. A disabled channel returns nil.
type Sender interface {
	Send(ctx context.Context, recipient, subject, bodyHTML string) error
}

// Notification is the payload produced by one firing.
type Notification struct {
	AlertID   string       `json:"alertId"`
	Symbol    model.Symbol `json:"symbol"`
	Price     float64      `json:"price"`
	Condition Condition    `json:"condition"`
	Target    float64      `json:"target"`
	FiredAt   string       `json:"firedAt"`
	Lifetime  Lifetime     `json:"lifetime"`
}

func (n Notification) Subject() string {
	return "Price alert - " + n.Symbol.String()
}

// HTML renders the e-mail body.
func (n Notification) HTML() string {
	var b strings.Builder
	b.WriteString("<html><body>\n")
	b.WriteString(fmt.Sprintf("<h2>Price alert: %s</h2>\n", html.EscapeString(n.Symbol.String())))
	b.WriteString("<table>\n")
	row := func(k, v string) {
		b.WriteString(fmt.Sprintf("<tr><td><b>%s</b></td><td>%s</td></tr>\n", k, html.EscapeString(v)))
	}
	row("Symbol", n.Symbol.String())
	row("Market", n.Symbol.Exchange().Label())
	row("Current price", n.Symbol.FormatMoney(n.Price))
	row("Condition", fmt.Sprintf("%s %s", n.Condition, n.Symbol.FormatMoney(n.Target)))
	row("Time", n.FiredAt)
	b.WriteString("</table>\n")
	if n.Lifetime == OneTime {
		b.WriteString("<p>This one-time alert has been removed.</p>\n")
	}
	b.WriteString("</body></html>\n")
	return b.String()
}
