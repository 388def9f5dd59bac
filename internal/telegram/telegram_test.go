package telegram

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scamps86/sct-binance-bot/internal/models"
)

func TestParseStartCommand(t *testing.T) {
	command, cfg, err := parseCommand("/start 1m 10 50% 0.001 up", "ETHBTC", "ETH")
	require.NoError(t, err)
	assert.Equal(t, "start", command)
	assert.Equal(t, "ETHBTC", cfg.Pair)
	assert.Equal(t, "ETH", cfg.Currency)
	assert.Equal(t, "1m", cfg.CandlePeriod)
	assert.Equal(t, 10, cfg.CandleCount)
	assert.Equal(t, 50.0, cfg.BalancePercent)
	assert.Equal(t, 0.001, cfg.BuyMargin)
	assert.Equal(t, models.MethodUp, cfg.Method)
}

func TestParseCheckCommand(t *testing.T) {
	command, cfg, err := parseCommand("/check 4h 25 100% 2.5 down", "ETHBTC", "ETH")
	require.NoError(t, err)
	assert.Equal(t, "check", command)
	assert.Equal(t, "4h", cfg.CandlePeriod)
	assert.Equal(t, 25, cfg.CandleCount)
	assert.Equal(t, 100.0, cfg.BalancePercent)
	assert.Equal(t, models.MethodDown, cfg.Method)
}

func TestParseRejectsPercentAboveHundred(t *testing.T) {
	_, _, err := parseCommand("/start 1m 10 150% 0.001 up", "ETHBTC", "ETH")
	assert.Error(t, err)
}

func TestCommandGrammar(t *testing.T) {
	valid := []string{
		"/start 1m 10 50% 0.001 up",
		"/check 1d 999 99% 0 down",
		"/start 5w 1 1% 12.75 up",
	}
	for _, text := range valid {
		assert.True(t, commandRe.MatchString(text), text)
	}

	invalid := []string{
		"/start",
		"/start 1m 10 50 0.001 up",
		"/start 10m 10 50% 0.001 up",
		"/start 1m 0 50% 0.001 up",
		"/start 1m 10 0% 0.001 up",
		"/start 1m 10 50% 0.001 sideways",
		"start 1m 10 50% 0.001 up",
		"/stop 1m 10 50% 0.001 up",
		"/start 1m 10 50% 0.001 up extra",
	}
	for _, text := range invalid {
		assert.False(t, commandRe.MatchString(text), text)
	}
}
