package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"QuoteWatch/internal/alert"
	"QuoteWatch/internal/collector"
	"QuoteWatch/internal/config"
	"QuoteWatch/internal/forecast"
	"QuoteWatch/internal/indices"
	"QuoteWatch/internal/logger"
	"QuoteWatch/internal/model"
	"QuoteWatch/internal/notifier"
	"QuoteWatch/internal/portfolio"
	"QuoteWatch/internal/recorder"
	"QuoteWatch/internal/scheduler"
	"QuoteWatch/internal/server"
	"QuoteWatch/internal/session"
)

func main() {
	cfgPath := "configs/config.yaml"
	if v := os.Getenv("CONFIG_PATH"); v != "" {
		cfgPath = v
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		// logger is not configured yet
		bootLog := zerolog.New(os.Stderr)
		bootLog.Fatal().Err(err).Msg("load config")
	}

	log := logger.New(logger.Config{Level: cfg.Log.Level, Pretty: cfg.Log.Pretty})
	log.Info().Str("config", cfgPath).Msg("QuoteWatch starting")
	if err := cfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("config validation")
	}
	if err := run(cfg, log); err != nil {
		log.Fatal().Err(err).Msg("QuoteWatch failed")
	}
	log.Info().Msg("QuoteWatch stopped")
}

// run wires the components and serves until a signal or a server failure.
func run(cfg *config.Config, log zerolog.Logger) error {
	display, err := time.LoadLocation(cfg.Market.DisplayTimezone)
	if err != nil {
		return fmt.Errorf("load display timezone: %w", err)
	}

	var fetcher collector.Fetcher
	if cfg.DataSource.BaseURL != "" {
		fetcher = collector.NewRESTFetcher(cfg.DataSource.BaseURL, cfg.DataSource.APIKey, cfg.Proxy)
	} else {
		fetcher = collector.NewYahooFetcher(cfg.Proxy)
	}
	log.Info().Str("source", fetcher.Name()).Msg("data source selected")

	var rec recorder.Recorder
	sr, err := recorder.NewSQLiteRecorder(cfg.Database.SQLitePath)
	if err != nil {
		log.Warn().Err(err).Msg("init sqlite recorder failed, using noop")
		rec = recorder.NewNoopRecorder()
	} else {
		rec = sr
	}
	defer rec.Close()

	email := notifier.NewEmailSink(notifier.EmailConfig{
		Enabled:  cfg.Email.Enabled,
		Host:     cfg.Email.SMTPHost,
		Port:     cfg.Email.SMTPPort,
		Username: cfg.Email.Username,
		Password: cfg.Email.Password,
		From:     cfg.Email.From,
	}, log)
	tn := notifier.NewTelegramNotifier(cfg.Telegram.BotToken, cfg.Telegram.ChatID, cfg.Proxy, log)
	tn.Enabled = cfg.Telegram.Enabled
	sink := notifier.MultiSink{email, tn}
	var chat scheduler.ChatSender
	if tn.Enabled {
		chat = tn
	}

	reference := model.ExchangeFromCode(cfg.Market.ReferenceExchange)
	clock := session.ForExchange(reference, display, nil)
	sessions := []*session.Service{
		session.ForExchange(model.Shanghai, display, nil),
		session.ForExchange(model.HongKong, display, nil),
		session.ForExchange(model.Primary, display, nil),
	}

	alerts := alert.NewEngine(alert.Config{
		Clock:     clock,
		Sink:      sink,
		Recipient: cfg.Email.Recipient,
		Recorder:  rec,
		Logger:    log,
	})

	book := portfolio.New(rec, log)
	if path := cfg.Database.PortfolioFile; path != "" {
		if err := book.LoadFile(path); err != nil {
			return fmt.Errorf("load portfolio %s: %w", path, err)
		}
		defer func() {
			if err := book.SaveFile(path); err != nil {
				log.Error().Err(err).Str("path", path).Msg("save portfolio")
			}
		}()
	}
	valuator := portfolio.NewValuator(8, rec, log)
	forecasts := forecast.NewEngine(fetcher.FetchHistory, rec, log)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sched := scheduler.NewScheduler(ctx, scheduler.Deps{
		Fetcher:   fetcher,
		Alerts:    alerts,
		Portfolio: book,
		Valuator:  valuator,
		Forecast:  forecasts,
		Sessions:  sessions,
		Sink:      email,
		Chat:      chat,
		Recipient: cfg.Email.Recipient,
		Logger:    log,
	})
	if err := sched.RegisterAll(cfg.Schedule.AlertSweepCron, cfg.Schedule.ReportCron); err != nil {
		return fmt.Errorf("register cron tasks: %w", err)
	}
	sched.Start()
	defer sched.Stop()

	if cfg.Telegram.Enabled {
		go tn.StartPolling(ctx, sched.HandleCommand)
		log.Info().Msg("telegram polling started")
	}

	var watchlist []model.Symbol
	for _, raw := range cfg.Watchlist {
		sym, err := model.ParseSymbol(raw)
		if err != nil {
			log.Warn().Err(err).Str("symbol", raw).Msg("skipping watchlist entry")
			continue
		}
		watchlist = append(watchlist, sym)
	}

	srv := server.New(server.Config{
		Addr:              cfg.Server.Addr,
		CORSOrigins:       cfg.Server.CORSOrigins,
		Log:               log,
		Fetcher:           fetcher,
		Alerts:            alerts,
		Portfolio:         book,
		Valuator:          valuator,
		Forecast:          forecasts,
		Indices:           indices.FromMap(cfg.Indices),
		Watchlist:         watchlist,
		Display:           display,
		Clock:             clock.Now,
		ReferenceExchange: reference,
	})
	errCh := make(chan error, 1)
	go func() { errCh <- srv.Start() }()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	var runErr error
	select {
	case <-sigCh:
		log.Info().Msg("shutdown signal received, stopping...")
	case err := <-errCh:
		if err != nil {
			runErr = fmt.Errorf("http server: %w", err)
		}
	}

	cancel()
	shutdownCtx, done := context.WithTimeout(context.Background(), 10*time.Second)
	defer done()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("http shutdown")
	}
	return runErr
}
