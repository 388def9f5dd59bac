package config

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/scamps86/sct-binance-bot/internal/models"
)

// LoadConfig reads the JSON configuration file, applies defaults and checks
// the fields that have no usable zero value.
func LoadConfig(path string) (*models.Config, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	config := &models.Config{}
	if err := json.NewDecoder(file).Decode(config); err != nil {
		return nil, err
	}

	applyDefaults(config)
	if err := validate(config); err != nil {
		return nil, err
	}
	return config, nil
}

func applyDefaults(cfg *models.Config) {
	if cfg.SettlementAsset == "" {
		cfg.SettlementAsset = "BTC"
	}
	if cfg.WSBaseURL == "" {
		cfg.WSBaseURL = "wss://stream.binance.com:9443"
	}
	if cfg.LogConfig.Level == "" {
		cfg.LogConfig.Level = "info"
	}
	if cfg.LogConfig.Output == "" {
		cfg.LogConfig.Output = "console"
	}
	if cfg.Backtest.StepSize == "" {
		cfg.Backtest.StepSize = "0.00100000"
	}
	if cfg.Backtest.CandleCount == 0 {
		cfg.Backtest.CandleCount = 10
	}
	if cfg.Backtest.BalancePercent == 0 {
		cfg.Backtest.BalancePercent = 50
	}
	if cfg.Backtest.Method == "" {
		cfg.Backtest.Method = string(models.MethodUp)
	}
}

func validate(cfg *models.Config) error {
	if cfg.Pair == "" {
		return fmt.Errorf("config: pair must be set")
	}
	if cfg.Currency == "" {
		return fmt.Errorf("config: currency must be set")
	}
	return nil
}
