// Package strategy holds the pure sizing calculator: given the market data of
// the moment and the cycle configuration it derives the order quantity and the
// buy/sell limit prices. It keeps no state and performs no I/O.
package strategy

import (
	"math"
	"strconv"
	"strings"

	"github.com/scamps86/sct-binance-bot/internal/models"
)

// Compute derives the quantity and the two limit prices for one cycle.
//
// The quantity is the configured share of the free settlement balance at the
// current price, truncated to the pair's step lattice. Validation of the
// result (positive quantity, buy below sell) is the caller's job: Compute
// returns the raw values even for degenerate inputs.
func Compute(currentPrice float64, summary models.CandleSummary, freeBalance float64, constraints models.QuantityConstraints, cfg models.BotConfig) models.Sizing {
	sizing := models.Sizing{
		Quantity: RoundToStep(freeBalance*cfg.BalancePercent/100/currentPrice, constraints.StepSize),
	}
	switch cfg.Method {
	case models.MethodDown:
		sizing.BuyPrice = RoundPrice(summary.Low - cfg.BuyMargin)
		sizing.SellPrice = RoundPrice(currentPrice)
	default:
		sizing.BuyPrice = RoundPrice(currentPrice - cfg.BuyMargin)
		sizing.SellPrice = RoundPrice(summary.High)
	}
	return sizing
}

// RoundPrice rounds a price to the 1e-6 tick lattice of BTC-quoted pairs.
// Idempotent: applying it twice gives the same result.
func RoundPrice(price float64) float64 {
	return math.Round(price*1e6) / 1e6
}

// RoundToStep truncates a quantity to the decimal places implied by the step
// size: the position of the significant "1" digit in the step string decides
// how many decimals survive ("0.00100000" keeps three). Truncation only, never
// rounding up: the result never claims more than the step lattice allows.
// Integer quantities pass through unchanged.
func RoundToStep(quantity float64, stepSize string) float64 {
	if quantity == math.Trunc(quantity) {
		return quantity
	}
	decimals := strings.Index(stepSize, "1") - 1
	if decimals < 0 {
		decimals = 0
	}
	factor := math.Pow(10, float64(decimals))
	truncated := math.Floor(quantity*factor) / factor

	// Formatting and re-parsing washes out the binary representation error the
	// division can leave behind.
	result, _ := strconv.ParseFloat(strconv.FormatFloat(truncated, 'f', decimals, 64), 64)
	return result
}
