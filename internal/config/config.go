package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds all application configuration.
type Config struct {
	Server struct {
		Addr        string   `yaml:"addr"`
		CORSOrigins []string `yaml:"cors_origins"`
	} `yaml:"server"`
	Log struct {
		Level  string `yaml:"level"`
		Pretty bool   `yaml:"pretty"`
	} `yaml:"log"`
	Market struct {
		ReferenceExchange string `yaml:"reference_exchange"`
		DisplayTimezone   string `yaml:"display_timezone"`
	} `yaml:"market"`
	DataSource struct {
		BaseURL string `yaml:"base_url"`
		APIKey  string `yaml:"api_key"`
	} `yaml:"data_source"`
	Email struct {
		Enabled   bool   `yaml:"enabled"`
		SMTPHost  string `yaml:"smtp_host"`
		SMTPPort  int    `yaml:"smtp_port"`
		Username  string `yaml:"username"`
		Password  string `yaml:"password"`
		From      string `yaml:"from"`
		Recipient string `yaml:"recipient"`
	} `yaml:"email"`
	Telegram struct {
		Enabled  bool   `yaml:"enabled"`
		BotToken string `yaml:"bot_token"`
		ChatID   string `yaml:"chat_id"`
	} `yaml:"telegram"`
	Schedule struct {
		AlertSweepCron string `yaml:"alert_sweep_cron"`
		ReportCron     string `yaml:"report_cron"`
	} `yaml:"schedule"`
	Database struct {
		SQLitePath    string `yaml:"sqlite_path"`
		PortfolioFile string `yaml:"portfolio_file"`
	} `yaml:"database"`
	Watchlist []string          `yaml:"watchlist"`
	Indices   map[string]string `yaml:"indices"`
	Proxy     string            `yaml:"proxy"`
}

// Load reads config from a YAML file, then .env, then environment overrides.
func Load(path string) (*Config, error) {
	cfg := &Config{}

	data, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("read config: %w", err)
	}
	if len(data) > 0 {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	// .env is optional
	_ = godotenv.Load()

	applyEnv(cfg)
	applyDefaults(cfg)
	return cfg, nil
}

func applyEnv(cfg *Config) {
	if v := os.Getenv("HTTP_ADDR"); v != "" {
		cfg.Server.Addr = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
	if v := os.Getenv("DISPLAY_TZ"); v != "" {
		cfg.Market.DisplayTimezone = v
	}
	if v := os.Getenv("QUOTES_BASE_URL"); v != "" {
		cfg.DataSource.BaseURL = v
	}
	if v := os.Getenv("QUOTES_API_KEY"); v != "" {
		cfg.DataSource.APIKey = v
	}
	if v := os.Getenv("HTTPS_PROXY"); v != "" {
		cfg.Proxy = v
	}
	if v := os.Getenv("SMTP_HOST"); v != "" {
		cfg.Email.SMTPHost = v
	}
	if v := os.Getenv("SMTP_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Email.SMTPPort = port
		}
	}
	if v := os.Getenv("SMTP_USERNAME"); v != "" {
		cfg.Email.Username = v
	}
	if v := os.Getenv("SMTP_PASSWORD"); v != "" {
		cfg.Email.Password = v
	}
	if v := os.Getenv("ALERT_RECIPIENT"); v != "" {
		cfg.Email.Recipient = v
	}
	if v := os.Getenv("EMAIL_ENABLED"); v != "" {
		cfg.Email.Enabled, _ = strconv.ParseBool(v)
	}
	if v := os.Getenv("TELEGRAM_BOT_TOKEN"); v != "" {
		cfg.Telegram.BotToken = v
	}
	if v := os.Getenv("TELEGRAM_CHAT_ID"); v != "" {
		cfg.Telegram.ChatID = v
	}
	if v := os.Getenv("SQLITE_PATH"); v != "" {
		cfg.Database.SQLitePath = v
	}
	if v := os.Getenv("PORTFOLIO_FILE"); v != "" {
		cfg.Database.PortfolioFile = v
	}
	if v := os.Getenv("WATCHLIST"); v != "" {
		cfg.Watchlist = strings.Split(v, ",")
	}
}

func applyDefaults(cfg *Config) {
	if cfg.Server.Addr == "" {
		cfg.Server.Addr = ":8080"
	}
	if len(cfg.Server.CORSOrigins) == 0 {
		cfg.Server.CORSOrigins = []string{"*"}
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Market.ReferenceExchange == "" {
		cfg.Market.ReferenceExchange = "SS"
	}
	if cfg.Market.DisplayTimezone == "" {
		cfg.Market.DisplayTimezone = "Europe/Paris"
	}
	if cfg.Email.SMTPHost == "" {
		cfg.Email.SMTPHost = "smtp.gmail.com"
	}
	if cfg.Email.SMTPPort == 0 {
		cfg.Email.SMTPPort = 587
	}
	if cfg.Email.From == "" {
		cfg.Email.From = cfg.Email.Username
	}
	if cfg.Email.Recipient == "" {
		cfg.Email.Recipient = cfg.Email.Username
	}
	if cfg.Schedule.AlertSweepCron == "" {
		cfg.Schedule.AlertSweepCron = "@every 30s"
	}
	if cfg.Schedule.ReportCron == "" {
		cfg.Schedule.ReportCron = "0 5 15 * * 1-5"
	}
	if cfg.Database.SQLitePath == "" {
		cfg.Database.SQLitePath = ":memory:"
	}
	if len(cfg.Watchlist) == 0 {
		cfg.Watchlist = []string{
			"000858.SZ", "600519.SS", "000333.SZ", "601318.SS",
			"0700.HK", "9988.HK", "BABA", "JD", "BIDU", "NTES",
		}
	}
	if len(cfg.Indices) == 0 {
		cfg.Indices = map[string]string{
			"000001.SS": "Shanghai Composite (SSE)",
			"399001.SZ": "Shenzhen Component (SZSE)",
			"^HSI":      "Hang Seng Index",
			"^HSCE":     "Hang Seng China Enterprises",
			"000300.SS": "CSI 300",
			"399006.SZ": "ChiNext",
		}
	}
}

// Validate checks that the configured values are usable.
func (c *Config) Validate() error {
	if _, err := time.LoadLocation(c.Market.DisplayTimezone); err != nil {
		return fmt.Errorf("market.display_timezone: %w", err)
	}
	if c.Email.Enabled {
		if c.Email.Username == "" || c.Email.Password == "" {
			return fmt.Errorf("email.username and email.password are required when email is enabled")
		}
		if c.Email.SMTPPort <= 0 {
			return fmt.Errorf("email.smtp_port must be positive")
		}
	}
	if c.Telegram.Enabled && (c.Telegram.BotToken == "" || c.Telegram.ChatID == "") {
		return fmt.Errorf("telegram.bot_token and telegram.chat_id are required when telegram is enabled")
	}
	return nil
}
