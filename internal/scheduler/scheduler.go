package scheduler

import (
	"context"
	"fmt"
	"strings"
	"sync/atomic"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"QuoteWatch/internal/alert"
	"QuoteWatch/internal/collector"
	"QuoteWatch/internal/forecast"
	"QuoteWatch/internal/model"
	"QuoteWatch/internal/notifier"
	"QuoteWatch/internal/portfolio"
	"QuoteWatch/internal/session"
)

// ChatSender delivers preformatted chat messages with retries.
type ChatSender interface {
	SendWithRetry(ctx context.Context, text string, maxRetries int) error
}

const reportRetries = 3

// Scheduler manages all cron tasks and chat commands.
type Scheduler struct {
	Cron      *cron.Cron
	Fetcher   collector.Fetcher
	Alerts    *alert.Engine
	Portfolio *portfolio.Portfolio
	Valuator  *portfolio.Valuator
	Forecast  *forecast.Engine
	Sessions  []*session.Service
	Sink      notifier.Sink
	Chat      ChatSender
	Recipient string
	Ctx       context.Context

	log      zerolog.Logger
	sweeping atomic.Bool
}

// Deps groups the collaborators of a Scheduler.
type Deps struct {
	Fetcher   collector.Fetcher
	Alerts    *alert.Engine
	Portfolio *portfolio.Portfolio
	Valuator  *portfolio.Valuator
	Forecast  *forecast.Engine
	Sessions  []*session.Service
	Sink      notifier.Sink
	Chat      ChatSender // optional, receives the scheduled report
	Recipient string
	Logger    zerolog.Logger
}

// NewScheduler creates a new Scheduler.
func NewScheduler(ctx context.Context, d Deps) *Scheduler {
	sink := d.Sink
	if sink == nil {
		sink = notifier.Disabled{}
	}
	return &Scheduler{
		Cron:      cron.New(cron.WithSeconds()),
		Fetcher:   d.Fetcher,
		Alerts:    d.Alerts,
		Portfolio: d.Portfolio,
		Valuator:  d.Valuator,
		Forecast:  d.Forecast,
		Sessions:  d.Sessions,
		Sink:      sink,
		Chat:      d.Chat,
		Recipient: d.Recipient,
		Ctx:       ctx,
		log:       d.Logger.With().Str("component", "scheduler").Logger(),
	}
}

// RegisterAll registers the alert sweep and the portfolio report. An empty
// spec disables that task.
func (s *Scheduler) RegisterAll(sweepCron, reportCron string) error {
	if sweepCron != "" {
		if _, err := s.Cron.AddFunc(sweepCron, s.sweepTask); err != nil {
			return fmt.Errorf("register alert sweep: %w", err)
		}
	}
	if reportCron != "" {
		if _, err := s.Cron.AddFunc(reportCron, s.reportTask); err != nil {
			return fmt.Errorf("register portfolio report: %w", err)
		}
	}
	return nil
}

// Start starts the cron scheduler.
func (s *Scheduler) Start() {
	s.Cron.Start()
	s.log.Info().Msg("scheduler started")
}

// Stop stops the cron scheduler and waits for running jobs.
func (s *Scheduler) Stop() {
	<-s.Cron.Stop().Done()
	s.log.Info().Msg("scheduler stopped")
}

func (s *Scheduler) sweepTask() {
	// One sweep at a time; overlapping ticks are dropped.
	if !s.sweeping.CompareAndSwap(false, true) {
		s.log.Debug().Msg("alert sweep still running, skipping tick")
		return
	}
	defer s.sweeping.Store(false)
	s.RunSweep(s.Ctx)
}

// RunSweep fetches the latest price of every symbol with an active alert
// and evaluates it. It returns the number of firings.
func (s *Scheduler) RunSweep(ctx context.Context) int {
	symbols := s.Alerts.Symbols()
	if len(symbols) == 0 {
		return 0
	}
	prices := make([]float64, len(symbols))

	var eg errgroup.Group
	eg.SetLimit(4)
	for i, sym := range symbols {
		i, sym := i, sym
		eg.Go(func() error {
			p, err := s.Fetcher.FetchLatestPrice(ctx, sym)
			if err != nil {
				s.log.Warn().Err(err).Str("symbol", sym.String()).Msg("sweep price lookup failed")
				return nil
			}
			prices[i] = p
			return nil
		})
	}
	_ = eg.Wait()

	fired := 0
	for i, sym := range symbols {
		if prices[i] <= 0 {
			continue
		}
		got, err := s.Alerts.Evaluate(ctx, sym, prices[i])
		if err != nil {
			s.log.Warn().Err(err).Str("symbol", sym.String()).Msg("alert evaluation reported errors")
		}
		fired += len(got)
	}
	s.log.Debug().Int("symbols", len(symbols)).Int("fired", fired).Msg("alert sweep done")
	return fired
}

func (s *Scheduler) reportTask() {
	if s.Portfolio.Len() == 0 {
		return
	}
	s.log.Info().Msg("running portfolio report")
	text := notifier.FormatPortfolioReport(s.valuate(s.Ctx))
	if s.Chat != nil {
		if err := s.Chat.SendWithRetry(s.Ctx, text, reportRetries); err != nil {
			s.log.Error().Err(err).Msg("send portfolio report to chat")
		}
	}
	if err := s.Sink.Send(s.Ctx, s.Recipient, "Portfolio report", text); err != nil {
		s.log.Error().Err(err).Msg("send portfolio report")
	}
}

func (s *Scheduler) valuate(ctx context.Context) *portfolio.Report {
	return s.Valuator.Value(ctx, s.Portfolio, s.Fetcher.FetchLatestPrice)
}

const helpText = "Available commands:\n• /status\n• /portfolio\n• /alerts\n• /forecast SYMBOL [degree] [days]"

// HandleCommand processes a user command and returns a reply.
func (s *Scheduler) HandleCommand(ctx context.Context, command string) string {
	fields := strings.Fields(command)
	if len(fields) == 0 {
		return helpText
	}
	switch strings.ToLower(fields[0]) {
	case "/status":
		parts := make([]string, len(s.Sessions))
		for i, svc := range s.Sessions {
			parts[i] = notifier.FormatStatus(svc.Status())
		}
		return strings.Join(parts, "\n\n")
	case "/portfolio":
		return notifier.FormatPortfolioReport(s.valuate(ctx))
	case "/alerts":
		return notifier.FormatAlerts(s.Alerts.List())
	case "/forecast":
		return s.forecastCommand(ctx, fields[1:])
	default:
		return helpText
	}
}

func (s *Scheduler) forecastCommand(ctx context.Context, args []string) string {
	if len(args) == 0 {
		return "Usage: /forecast SYMBOL [degree] [days]"
	}
	sym, err := model.ParseSymbol(args[0])
	if err != nil {
		return "❌ " + err.Error()
	}
	req := forecast.Request{Symbol: sym, Degree: 2, Horizon: 7, Options: forecast.Options{Confidence: true}}
	if len(args) > 1 {
		if _, err := fmt.Sscan(args[1], &req.Degree); err != nil {
			return "❌ degree must be a number"
		}
	}
	if len(args) > 2 {
		if _, err := fmt.Sscan(args[2], &req.Horizon); err != nil {
			return "❌ days must be a number"
		}
	}
	res, err := s.Forecast.Forecast(ctx, req)
	if err != nil {
		return "❌ " + err.Error()
	}
	return notifier.FormatForecast(res)
}
