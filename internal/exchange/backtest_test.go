package exchange

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scamps86/sct-binance-bot/internal/models"
)

func newTestGateway() *BacktestGateway {
	constraints := models.QuantityConstraints{
		StepSize: "0.00100000",
		MinQty:   0.001,
		MaxQty:   9000,
	}
	return NewBacktestGateway("ETHBTC", "ETH", "BTC", 1000, 0.001, constraints, 10)
}

func candle(open, high, low, close float64) models.Candle {
	return models.Candle{Open: open, High: high, Low: low, Close: close}
}

func TestBacktestBuyFillsWhenPriceDrops(t *testing.T) {
	gw := newTestGateway()
	gw.ProcessCandle(candle(100, 105, 95, 100))

	order, err := gw.PlaceLimitOrder("ETHBTC", models.SideBuy, 2, 98)
	require.NoError(t, err)

	filled := gw.ProcessCandle(candle(100, 101, 97, 99))
	assert.Equal(t, 1, filled)

	fills, _, err := gw.SubscribeFills()
	require.NoError(t, err)
	ev := <-fills
	assert.Equal(t, order.OrderID, ev.OrderID)
	assert.Equal(t, "FILLED", ev.Status)

	// Quote balance drops by cost, base credited net of the maker fee.
	assert.InDelta(t, 1000-2*98, gw.QuoteBalance(), 1e-9)
	assert.InDelta(t, 2-2*0.001, gw.BaseBalance(), 1e-9)
}

func TestBacktestSellFillsWhenPriceRises(t *testing.T) {
	gw := newTestGateway()
	gw.ProcessCandle(candle(100, 105, 95, 100))

	_, err := gw.PlaceLimitOrder("ETHBTC", models.SideBuy, 2, 98)
	require.NoError(t, err)
	gw.ProcessCandle(candle(100, 101, 97, 99))

	_, err = gw.PlaceLimitOrder("ETHBTC", models.SideSell, 1.998, 110)
	require.NoError(t, err)

	filled := gw.ProcessCandle(candle(99, 112, 98, 111))
	assert.Equal(t, 1, filled)

	proceeds := 1.998 * 110
	fee := proceeds * 0.001
	assert.InDelta(t, 1000-2*98+proceeds-fee, gw.QuoteBalance(), 1e-9)
	assert.InDelta(t, 0, gw.BaseBalance(), 1e-9)
}

func TestBacktestOrderNotCrossedStaysOpen(t *testing.T) {
	gw := newTestGateway()
	gw.ProcessCandle(candle(100, 105, 95, 100))

	_, err := gw.PlaceLimitOrder("ETHBTC", models.SideBuy, 1, 80)
	require.NoError(t, err)

	filled := gw.ProcessCandle(candle(100, 102, 90, 101))
	assert.Equal(t, 0, filled)
	assert.InDelta(t, 1000, gw.QuoteBalance(), 1e-9)
}

func TestBacktestRejectsInsufficientBalance(t *testing.T) {
	gw := newTestGateway()
	gw.ProcessCandle(candle(100, 105, 95, 100))

	_, err := gw.PlaceLimitOrder("ETHBTC", models.SideBuy, 20, 100)
	assert.Error(t, err)

	_, err = gw.PlaceLimitOrder("ETHBTC", models.SideSell, 1, 100)
	assert.Error(t, err)
}

func TestBacktestRejectsQuantityOutsideLimits(t *testing.T) {
	gw := newTestGateway()
	gw.ProcessCandle(candle(100, 105, 95, 100))

	_, err := gw.PlaceLimitOrder("ETHBTC", models.SideBuy, 0.0001, 100)
	assert.Error(t, err)
}

func TestBacktestCancelOrder(t *testing.T) {
	gw := newTestGateway()
	gw.ProcessCandle(candle(100, 105, 95, 100))

	order, err := gw.PlaceLimitOrder("ETHBTC", models.SideBuy, 1, 90)
	require.NoError(t, err)

	require.NoError(t, gw.CancelOrder("ETHBTC", order.OrderID))
	assert.Error(t, gw.CancelOrder("ETHBTC", order.OrderID))

	filled := gw.ProcessCandle(candle(90, 91, 85, 88))
	assert.Equal(t, 0, filled)
}

func TestBacktestCandleSummaryWindow(t *testing.T) {
	gw := newTestGateway()
	gw.ProcessCandle(candle(100, 120, 90, 110))
	gw.ProcessCandle(candle(110, 130, 105, 125))
	gw.ProcessCandle(candle(125, 128, 95, 100))

	summary, err := gw.GetCandleSummary("ETHBTC", "1m", 2)
	require.NoError(t, err)
	assert.Equal(t, 130.0, summary.High)
	assert.Equal(t, 95.0, summary.Low)

	summary, err = gw.GetCandleSummary("ETHBTC", "1m", 10)
	require.NoError(t, err)
	assert.Equal(t, 130.0, summary.High)
	assert.Equal(t, 90.0, summary.Low)
}

func TestBacktestPriceRequiresCandles(t *testing.T) {
	gw := newTestGateway()
	_, err := gw.GetPrice("ETHBTC")
	assert.Error(t, err)

	gw.ProcessCandle(candle(100, 105, 95, 102))
	price, err := gw.GetPrice("ETHBTC")
	require.NoError(t, err)
	assert.Equal(t, 102.0, price)
}
