package alerts

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

const window = 24 * time.Hour

func TestMarginOfSafety(t *testing.T) {
	tests := []struct {
		name      string
		intrinsic float64
		price     float64
		want      float64
	}{
		{
			name:      "price below intrinsic value",
			intrinsic: 100.00,
			price:     80.00,
			want:      20.0,
		},
		{
			name:      "price above intrinsic value",
			intrinsic: 100.00,
			price:     120.00,
			want:      -20.0,
		},
		{
			name:      "price equals intrinsic value",
			intrinsic: 100.00,
			price:     100.00,
			want:      0.0,
		},
		{
			name:      "zero intrinsic value does not divide by zero",
			intrinsic: 0,
			price:     50.00,
			want:      0.0,
		},
		{
			name:      "negative intrinsic value treated as unset",
			intrinsic: -10,
			price:     50.00,
			want:      0.0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := MarginOfSafety(tt.intrinsic, tt.price)
			assert.InDelta(t, tt.want, got, 1e-9)
		})
	}
}

func TestMarginOfSafetyPositiveWheneverUndervalued(t *testing.T) {
	// For all tickers with intrinsic > price, margin of safety must be positive
	for _, price := range []float64{0.01, 1, 50, 99.99} {
		assert.Greater(t, MarginOfSafety(100, price), 0.0, "price %f", price)
	}
}

func TestShouldAlert(t *testing.T) {
	now := time.Date(2026, 2, 10, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name      string
		intrinsic float64
		price     float64
		lastAlert time.Time
		want      bool
	}{
		{
			name:      "undervalued with no prior alert",
			intrinsic: 100.00,
			price:     80.00,
			lastAlert: time.Time{},
			want:      true,
		},
		{
			name:      "undervalued with prior alert older than window",
			intrinsic: 100.00,
			price:     80.00,
			lastAlert: now.Add(-25 * time.Hour),
			want:      true,
		},
		{
			name:      "undervalued with prior alert exactly at window",
			intrinsic: 100.00,
			price:     80.00,
			lastAlert: now.Add(-24 * time.Hour),
			want:      true,
		},
		{
			name:      "undervalued but alerted recently",
			intrinsic: 100.00,
			price:     80.00,
			lastAlert: now.Add(-1 * time.Hour),
			want:      false,
		},
		{
			name:      "overvalued never fires",
			intrinsic: 100.00,
			price:     120.00,
			lastAlert: time.Time{},
			want:      false,
		},
		{
			name:      "price at intrinsic value does not fire",
			intrinsic: 100.00,
			price:     100.00,
			lastAlert: time.Time{},
			want:      false,
		},
		{
			name:      "no intrinsic value disables alerts",
			intrinsic: 0,
			price:     1.00,
			lastAlert: time.Time{},
			want:      false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ShouldAlert(tt.intrinsic, tt.price, tt.lastAlert, now, window)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestShouldAlertSuppressedWithinWindowRegardlessOfPrice(t *testing.T) {
	now := time.Now()
	lastAlert := now.Add(-23 * time.Hour)

	// Any price, however deep the discount, must not re-fire within the window
	for _, price := range []float64{0.01, 10, 50, 99} {
		assert.False(t, ShouldAlert(100, price, lastAlert, now, window), "price %f", price)
	}
}

func TestShouldAlertOnlyFirstOfTwoCloseEvaluations(t *testing.T) {
	// Two evaluations within an hour of each other, both with positive
	// margin of safety: only the first fires.
	state := NewStateStore()
	now := time.Now()

	first := ShouldAlert(100, 80, state.Get("AAPL"), now, window)
	assert.True(t, first)
	state.Set("AAPL", now)

	later := now.Add(time.Hour)
	second := ShouldAlert(100, 75, state.Get("AAPL"), later, window)
	assert.False(t, second)
}
