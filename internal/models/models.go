package models

import (
	"fmt"
	"time"
)

// Side is an order direction.
type Side string

const (
	SideBuy  Side = "BUY"
	SideSell Side = "SELL"
)

// Method selects how the prices for a cycle are derived: "up" buys just under
// the current price and sells at the recent high, "down" buys below the recent
// low and sells back at the current price.
type Method string

const (
	MethodUp   Method = "up"
	MethodDown Method = "down"
)

// CycleState is the controller's position in the buy/sell cycle.
type CycleState string

const (
	StateIdle       CycleState = "IDLE"
	StateBuyPlaced  CycleState = "BUY_PLACED"
	StateSellPlaced CycleState = "SELL_PLACED"
)

// BotConfig carries the trading parameters of one cycle. It is supplied fresh
// on every start/check command and does not change while a cycle is running.
type BotConfig struct {
	Pair           string  `json:"pair"`            // e.g. "ETHBTC"
	Currency       string  `json:"currency"`        // base asset of the pair, e.g. "ETH"
	CandlePeriod   string  `json:"candle_period"`   // interval code, e.g. "1m", "4h"
	CandleCount    int     `json:"candle_count"`    // number of candles in the high/low window
	BalancePercent float64 `json:"balance_percent"` // share of the free balance to trade, (0, 100]
	BuyMargin      float64 `json:"buy_margin"`      // subtracted from the buy reference price
	Method         Method  `json:"method"`
}

// Validate rejects parameter values the exchange or the sizing formula cannot
// work with.
func (c BotConfig) Validate() error {
	switch {
	case c.Pair == "":
		return fmt.Errorf("pair must not be empty")
	case c.Currency == "":
		return fmt.Errorf("currency must not be empty")
	case c.CandlePeriod == "":
		return fmt.Errorf("candle period must not be empty")
	case c.CandleCount < 1:
		return fmt.Errorf("candle count must be at least 1, got %d", c.CandleCount)
	case c.BalancePercent <= 0 || c.BalancePercent > 100:
		return fmt.Errorf("balance percent must be in (0, 100], got %v", c.BalancePercent)
	case c.BuyMargin < 0:
		return fmt.Errorf("buy margin must not be negative, got %v", c.BuyMargin)
	case c.Method != MethodUp && c.Method != MethodDown:
		return fmt.Errorf("method must be %q or %q, got %q", MethodUp, MethodDown, c.Method)
	}
	return nil
}

// QuantityConstraints are the LOT_SIZE limits of a pair. Fetched once per
// check/start and read-only for the lifetime of a cycle.
type QuantityConstraints struct {
	StepSize string // kept exactly as reported by the exchange, e.g. "0.00100000"
	MinQty   float64
	MaxQty   float64
}

// CandleSummary is the high/low aggregate over the configured candle window.
type CandleSummary struct {
	High float64
	Low  float64
}

// Candle is a single OHLC bar.
type Candle struct {
	OpenTime time.Time
	Open     float64
	High     float64
	Low      float64
	Close    float64
}

// Order identifies an open exchange order.
type Order struct {
	OrderID int64
	Price   float64
	Side    Side
}

// FillEvent is an execution report pushed by the exchange. Only events with
// Status FILLED and ExecutionType TRADE mark a completely executed order.
type FillEvent struct {
	OrderID       int64
	Status        string
	ExecutionType string
}

// Sizing is the calculator output for one cycle.
type Sizing struct {
	Quantity  float64
	BuyPrice  float64
	SellPrice float64
}

// CompletedCycle records one finished buy/sell pair for reporting.
type CompletedCycle struct {
	Pair      string
	Quantity  float64
	BuyPrice  float64
	SellPrice float64
	Profit    float64 // settlement-asset balance delta since the bot was started
	ClosedAt  time.Time
}

// StatusSnapshot is a point-in-time copy of the controller state.
type StatusSnapshot struct {
	State     CycleState
	Config    BotConfig
	Sizing    Sizing
	BuyOrder  *Order
	SellOrder *Order
}

// Config is the application configuration loaded from the JSON config file.
// API keys and the Telegram token come from the environment instead, so the
// config file can be committed without secrets.
type Config struct {
	IsTestnet       bool           `json:"is_testnet"`
	Pair            string         `json:"pair"`
	Currency        string         `json:"currency"`         // base asset of the pair
	SettlementAsset string         `json:"settlement_asset"` // asset balances and profit are measured in
	WSBaseURL       string         `json:"ws_base_url"`
	LogConfig       LogConfig      `json:"log"`
	Backtest        BacktestConfig `json:"backtest"`
}

// LogConfig defines the logging setup.
type LogConfig struct {
	Level      string `json:"level"`       // "debug", "info", "warn", "error"
	Output     string `json:"output"`      // "console", "file", "both"
	File       string `json:"file"`        // log file path
	MaxSize    int    `json:"max_size"`    // max size of a single log file (MB)
	MaxBackups int    `json:"max_backups"` // rotated files to keep
	MaxAge     int    `json:"max_age"`     // days to keep rotated files
	Compress   bool   `json:"compress"`
}

// BacktestConfig drives the simulated gateway; live runs ignore it.
type BacktestConfig struct {
	InitialBalance float64 `json:"initial_balance"` // settlement asset
	MakerFeeRate   float64 `json:"maker_fee_rate"`
	StepSize       string  `json:"step_size"`
	MinQty         float64 `json:"min_qty"`
	MaxQty         float64 `json:"max_qty"`
	CandleCount    int     `json:"candle_count"`
	BalancePercent float64 `json:"balance_percent"`
	BuyMargin      float64 `json:"buy_margin"`
	Method         string  `json:"method"`
}
