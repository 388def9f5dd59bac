package downloader

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReadCandlesSkipsHeaderAndBadRows(t *testing.T) {
	path := filepath.Join(t.TempDir(), "klines.csv")
	data := "open_time,open,high,low,close,volume\n" +
		"1700000000000,100.5,101,99.5,100.8,12.3\n" +
		"not,a,valid,row,here,0\n" +
		"1700000060000,100.8,102,100.2,101.9,8.1\n"
	require.NoError(t, os.WriteFile(path, []byte(data), 0o644))

	candles, err := ReadCandles(path)
	require.NoError(t, err)
	require.Len(t, candles, 2)

	assert.Equal(t, 100.5, candles[0].Open)
	assert.Equal(t, 101.0, candles[0].High)
	assert.Equal(t, 99.5, candles[0].Low)
	assert.Equal(t, 100.8, candles[0].Close)
	assert.Equal(t, int64(1700000000000), candles[0].OpenTime.UnixMilli())
	assert.Equal(t, 101.9, candles[1].Close)
}

func TestReadCandlesMissingFile(t *testing.T) {
	_, err := ReadCandles(filepath.Join(t.TempDir(), "missing.csv"))
	assert.Error(t, err)
}
