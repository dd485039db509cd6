package history

import (
	"fmt"
	"math"

	"github.com/markcheno/go-talib"
	"gonum.org/v1/gonum/stat"
)

const (
	smaPeriod = 20
	rsiPeriod = 14
)

// Stats summarizes the stored daily bars for a symbol
type Stats struct {
	Symbol        string  `json:"symbol"`
	Bars          int     `json:"bars"`
	LastClose     float64 `json:"last_close"`
	MeanReturn    float64 `json:"mean_return"`
	Volatility    float64 `json:"volatility"`
	AnnVolatility float64 `json:"annualized_volatility"`
	SMA20         float64 `json:"sma_20"`
	RSI14         float64 `json:"rsi_14"`
	High52W       float64 `json:"high_52w"`
	Low52W        float64 `json:"low_52w"`
}

// ComputeStats derives return and indicator statistics from daily bars.
// Bars must be in ascending date order. At least two bars are required;
// indicator fields stay zero when the series is shorter than their period.
func ComputeStats(symbol string, bars []DailyBar) (*Stats, error) {
	if len(bars) < 2 {
		return nil, fmt.Errorf("need at least 2 bars to compute stats, got %d", len(bars))
	}

	closes := make([]float64, len(bars))
	for i, bar := range bars {
		closes[i] = bar.Close
	}

	returns := make([]float64, 0, len(closes)-1)
	for i := 1; i < len(closes); i++ {
		if closes[i-1] > 0 {
			returns = append(returns, closes[i]/closes[i-1]-1)
		}
	}
	if len(returns) == 0 {
		return nil, fmt.Errorf("no usable returns in series")
	}

	mean, std := stat.MeanStdDev(returns, nil)
	if math.IsNaN(std) {
		std = 0
	}

	s := &Stats{
		Symbol:        symbol,
		Bars:          len(bars),
		LastClose:     closes[len(closes)-1],
		MeanReturn:    mean,
		Volatility:    std,
		AnnVolatility: std * math.Sqrt(252),
	}

	if len(closes) >= smaPeriod {
		sma := talib.Sma(closes, smaPeriod)
		s.SMA20 = sma[len(sma)-1]
	}
	if len(closes) > rsiPeriod {
		rsi := talib.Rsi(closes, rsiPeriod)
		s.RSI14 = rsi[len(rsi)-1]
	}

	// 52-week range over the last 252 trading days
	window := closes
	if len(window) > 252 {
		window = window[len(window)-252:]
	}
	s.High52W = window[0]
	s.Low52W = window[0]
	for _, c := range window[1:] {
		if c > s.High52W {
			s.High52W = c
		}
		if c < s.Low52W {
			s.Low52W = c
		}
	}

	return s, nil
}
