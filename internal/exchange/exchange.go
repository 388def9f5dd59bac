package exchange

import "github.com/scamps86/sct-binance-bot/internal/models"

// Gateway is the capability surface the cycle controller consumes. It is
// implemented by the live Binance client and by the backtest simulator, so the
// controller can run against either without changes.
type Gateway interface {
	// GetQuantityConstraints returns the LOT_SIZE limits of the pair.
	GetQuantityConstraints(symbol string) (models.QuantityConstraints, error)

	// GetPrice returns the latest traded price of the pair.
	GetPrice(symbol string) (float64, error)

	// GetCandleSummary reduces the last count candles of the given period to
	// their overall high and low.
	GetCandleSummary(symbol, period string, count int) (models.CandleSummary, error)

	// GetFreeBalance returns the free (unlocked) balance of an asset. A balance
	// the account does not hold reads as zero.
	GetFreeBalance(asset string) (float64, error)

	// PlaceLimitOrder places a GTC limit order and returns its identity.
	PlaceLimitOrder(symbol string, side models.Side, quantity, price float64) (*models.Order, error)

	// CancelOrder cancels an open order. Cancelling an order that is unknown or
	// already final is reported as an error the caller may downgrade to a log
	// line.
	CancelOrder(symbol string, orderID int64) error

	// SubscribeFills opens the execution-report stream. Events arrive on the
	// returned channel until the stop function is called. The stream carries
	// every execution report; filtering for FILLED/TRADE is the consumer's job.
	SubscribeFills() (<-chan models.FillEvent, func(), error)
}
