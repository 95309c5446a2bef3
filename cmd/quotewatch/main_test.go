package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"QuoteWatch/internal/config"
)

func TestRun_BadPortfolioFileReturnsError(t *testing.T) {
	dir := t.TempDir()
	cfg, err := config.Load(filepath.Join(dir, "absent.yaml"))
	require.NoError(t, err)

	cfg.Database.SQLitePath = filepath.Join(dir, "audit.db")
	cfg.Database.PortfolioFile = filepath.Join(dir, "lots.json")
	require.NoError(t, os.WriteFile(cfg.Database.PortfolioFile, []byte("{not json"), 0o644))

	err = run(cfg, zerolog.Nop())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "load portfolio")
}

func TestRun_BadDisplayZone(t *testing.T) {
	cfg, err := config.Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	cfg.Market.DisplayTimezone = "Mars/Olympus"
	assert.Error(t, run(cfg, zerolog.Nop()))
}
