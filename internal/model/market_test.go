package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewSeries_NormalizesToUTC(t *testing.T) {
	sh, err := time.LoadLocation("Asia/Shanghai")
	require.NoError(t, err)

	bars := []Bar{
		{Time: time.Date(2024, 1, 15, 15, 0, 0, 0, sh), Close: 10},
		{Time: time.Date(2024, 1, 16, 15, 0, 0, 0, sh), Close: 11},
	}
	s, err := NewSeries(MustSymbol("600519.SS"), "1d", bars)
	require.NoError(t, err)
	assert.Equal(t, time.UTC, s.First().Time.Location())
	assert.Equal(t, 7, s.First().Time.Hour())
	assert.Equal(t, []float64{10, 11}, s.Closes())

	abs, pct := s.Change()
	assert.InDelta(t, 1.0, abs, 1e-9)
	assert.InDelta(t, 10.0, pct, 1e-9)
}

func TestNewSeries_RejectsBadInput(t *testing.T) {
	sym := MustSymbol("BABA")
	_, err := NewSeries(sym, "1d", nil)
	assert.ErrorIs(t, err, ErrInvalidParameter)

	ts := time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC)
	_, err = NewSeries(sym, "1d", []Bar{{Time: ts}, {Time: ts}})
	assert.ErrorIs(t, err, ErrInvalidParameter, "duplicate timestamps")

	_, err = NewSeries(sym, "1d", []Bar{{Time: ts}, {Time: ts.Add(-time.Hour)}})
	assert.ErrorIs(t, err, ErrInvalidParameter, "out of order")
}

func TestSeries_ChangeSingleBar(t *testing.T) {
	s, err := NewSeries(MustSymbol("JD"), "1d", []Bar{{Time: time.Now(), Close: 30}})
	require.NoError(t, err)
	abs, pct := s.Change()
	assert.Zero(t, abs)
	assert.Zero(t, pct)
}
