package history

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func makeBars(closes []float64) []DailyBar {
	bars := make([]DailyBar, len(closes))
	for i, c := range closes {
		bars[i] = DailyBar{
			Date:     fmt.Sprintf("2024-01-%02d", i+1),
			Open:     c,
			High:     c * 1.01,
			Low:      c * 0.99,
			Close:    c,
			Volume:   1000,
			AdjClose: c,
		}
	}
	return bars
}

func TestComputeStatsRequiresTwoBars(t *testing.T) {
	_, err := ComputeStats("AAPL", nil)
	assert.Error(t, err)

	_, err = ComputeStats("AAPL", makeBars([]float64{100}))
	assert.Error(t, err)
}

func TestComputeStatsFlatSeries(t *testing.T) {
	closes := make([]float64, 30)
	for i := range closes {
		closes[i] = 100
	}

	stats, err := ComputeStats("AAPL", makeBars(closes))
	require.NoError(t, err)

	assert.Equal(t, 30, stats.Bars)
	assert.Equal(t, 100.0, stats.LastClose)
	assert.InDelta(t, 0, stats.MeanReturn, 1e-12)
	assert.InDelta(t, 0, stats.Volatility, 1e-12)
	assert.InDelta(t, 100.0, stats.SMA20, 1e-9)
	assert.Equal(t, 100.0, stats.High52W)
	assert.Equal(t, 100.0, stats.Low52W)
}

func TestComputeStatsKnownReturns(t *testing.T) {
	// 100 -> 110 -> 99: returns +10% and -10%
	stats, err := ComputeStats("AAPL", makeBars([]float64{100, 110, 99}))
	require.NoError(t, err)

	assert.Equal(t, 99.0, stats.LastClose)
	assert.InDelta(t, 0.0, stats.MeanReturn, 1e-12)
	assert.Greater(t, stats.Volatility, 0.0)
	assert.Equal(t, 110.0, stats.High52W)
	assert.Equal(t, 99.0, stats.Low52W)

	// Series too short for SMA20 and RSI14
	assert.Zero(t, stats.SMA20)
	assert.Zero(t, stats.RSI14)
}

func TestComputeStatsIndicatorsOnLongSeries(t *testing.T) {
	closes := make([]float64, 60)
	for i := range closes {
		closes[i] = 100 + float64(i)
	}

	stats, err := ComputeStats("AAPL", makeBars(closes))
	require.NoError(t, err)

	// SMA20 of the last 20 closes of a rising linear series
	assert.InDelta(t, 149.5, stats.SMA20, 1e-9)
	// A monotonically rising series has RSI at the top of the range
	assert.Greater(t, stats.RSI14, 90.0)
	assert.Equal(t, 159.0, stats.High52W)
	assert.Equal(t, 100.0, stats.Low52W)
}
