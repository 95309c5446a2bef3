package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.Server.Addr)
	assert.Equal(t, "SS", cfg.Market.ReferenceExchange)
	assert.Equal(t, "Europe/Paris", cfg.Market.DisplayTimezone)
	assert.Equal(t, 587, cfg.Email.SMTPPort)
	assert.Equal(t, ":memory:", cfg.Database.SQLitePath)
	assert.Equal(t, "@every 30s", cfg.Schedule.AlertSweepCron)
	assert.Len(t, cfg.Watchlist, 10)
	assert.NotEmpty(t, cfg.Indices)
	require.NoError(t, cfg.Validate())
}

func TestLoad_FileThenEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	yml := `
server:
  addr: ":9000"
market:
  display_timezone: "Europe/Berlin"
email:
  enabled: true
  username: "me@example.com"
  password: "secret"
watchlist: ["0700.HK"]
`
	require.NoError(t, os.WriteFile(path, []byte(yml), 0o644))
	t.Setenv("HTTP_ADDR", ":9100")
	t.Setenv("SMTP_PORT", "2525")
	t.Setenv("PORTFOLIO_FILE", "/tmp/lots.json")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, ":9100", cfg.Server.Addr)
	assert.Equal(t, "Europe/Berlin", cfg.Market.DisplayTimezone)
	assert.Equal(t, 2525, cfg.Email.SMTPPort)
	assert.Equal(t, "me@example.com", cfg.Email.From)
	assert.Equal(t, "me@example.com", cfg.Email.Recipient)
	assert.Equal(t, []string{"0700.HK"}, cfg.Watchlist)
	assert.Equal(t, "/tmp/lots.json", cfg.Database.PortfolioFile)
	require.NoError(t, cfg.Validate())
}

func TestLoad_BadYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server: [unterminated"), 0o644))
	_, err := Load(path)
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)

	cfg.Market.DisplayTimezone = "Mars/Olympus"
	assert.Error(t, cfg.Validate())
	cfg.Market.DisplayTimezone = "Europe/Paris"

	cfg.Email.Enabled = true
	assert.Error(t, cfg.Validate(), "email enabled without credentials")
	cfg.Email.Enabled = false

	cfg.Telegram.Enabled = true
	assert.Error(t, cfg.Validate(), "telegram enabled without token")
}
