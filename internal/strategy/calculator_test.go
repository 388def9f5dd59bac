package strategy

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/scamps86/sct-binance-bot/internal/models"
)

func TestRoundPriceIdempotent(t *testing.T) {
	values := []float64{0, 0.0000004, 0.0000005, 0.1234564999, 99.9999994, 100, 123456.789123, 0.00000099}
	for _, v := range values {
		once := RoundPrice(v)
		assert.Equal(t, once, RoundPrice(once), "RoundPrice must be idempotent for %v", v)
	}
}

func TestRoundPrice(t *testing.T) {
	assert.Equal(t, 99.0, RoundPrice(99.0000004))
	assert.Equal(t, 99.000001, RoundPrice(99.0000005))
	assert.Equal(t, 0.123457, RoundPrice(0.1234565))
}

func TestRoundToStep(t *testing.T) {
	tests := []struct {
		name     string
		quantity float64
		stepSize string
		want     float64
	}{
		{"truncates to step decimals", 5.6789, "0.00100000", 5.678},
		{"never rounds up", 4.9985, "0.00100000", 4.998},
		{"integer step truncates to whole units", 5.6789, "1.00000000", 5},
		{"integer quantity passes through", 7, "0.00100000", 7},
		{"below one step becomes zero", 0.0009, "0.00100000", 0},
		{"bare step string", 2.34567, "0.001", 2.345},
		{"single decimal step", 12.789, "0.10000000", 12.7},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := RoundToStep(tt.quantity, tt.stepSize)
			assert.Equal(t, tt.want, got)
			assert.LessOrEqual(t, got, tt.quantity, "truncation must never increase the quantity")
		})
	}
}

func TestComputeMethodUp(t *testing.T) {
	cfg := models.BotConfig{
		Pair:           "ETHBTC",
		Currency:       "ETH",
		CandlePeriod:   "1m",
		CandleCount:    10,
		BalancePercent: 50,
		BuyMargin:      1,
		Method:         models.MethodUp,
	}
	constraints := models.QuantityConstraints{StepSize: "0.00100000"}
	summary := models.CandleSummary{High: 120, Low: 90}

	sizing := Compute(100, summary, 1000, constraints, cfg)

	assert.Equal(t, 99.0, sizing.BuyPrice)
	assert.Equal(t, 120.0, sizing.SellPrice)
	assert.Equal(t, 5.0, sizing.Quantity) // 1000 * 50% / 100
}

func TestComputeMethodDown(t *testing.T) {
	cfg := models.BotConfig{
		Pair:           "ETHBTC",
		Currency:       "ETH",
		CandlePeriod:   "1m",
		CandleCount:    10,
		BalancePercent: 50,
		BuyMargin:      1,
		Method:         models.MethodDown,
	}
	constraints := models.QuantityConstraints{StepSize: "0.00100000"}
	summary := models.CandleSummary{High: 120, Low: 90}

	sizing := Compute(100, summary, 1000, constraints, cfg)

	assert.Equal(t, 89.0, sizing.BuyPrice)
	assert.Equal(t, 100.0, sizing.SellPrice)
}

func TestComputeZeroBalance(t *testing.T) {
	cfg := models.BotConfig{BalancePercent: 50, BuyMargin: 0, Method: models.MethodUp}
	constraints := models.QuantityConstraints{StepSize: "0.00100000"}

	sizing := Compute(100, models.CandleSummary{High: 120, Low: 90}, 0, constraints, cfg)

	assert.Equal(t, 0.0, sizing.Quantity)
}

func TestComputeQuantityRespectsStep(t *testing.T) {
	cfg := models.BotConfig{BalancePercent: 100, Method: models.MethodUp}
	constraints := models.QuantityConstraints{StepSize: "0.00100000"}

	// 10 / 3 = 3.3333... which must be truncated, not rounded, to 3.333.
	sizing := Compute(3, models.CandleSummary{High: 4, Low: 2}, 10, constraints, cfg)

	assert.Equal(t, 3.333, sizing.Quantity)
}
