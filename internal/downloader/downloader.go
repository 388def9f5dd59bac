package downloader

import (
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/adshao/go-binance/v2"

	"github.com/scamps86/sct-binance-bot/internal/logger"
	"github.com/scamps86/sct-binance-bot/internal/models"
)

const klinesPerRequest = 1000

// KlineDownloader fetches historical 1m candles from the public REST API and
// caches them as CSV for backtest runs.
type KlineDownloader struct {
	client *binance.Client
}

func NewKlineDownloader() *KlineDownloader {
	return &KlineDownloader{client: binance.NewClient("", "")}
}

// DownloadKlines writes the candles between startTime and endTime to
// filePath. An existing file is treated as a cache hit and left untouched.
func (d *KlineDownloader) DownloadKlines(symbol, filePath string, startTime, endTime time.Time) error {
	if _, err := os.Stat(filePath); err == nil {
		logger.S().Infow("kline data already downloaded", "file", filePath)
		return nil
	}

	file, err := os.Create(filePath)
	if err != nil {
		return fmt.Errorf("could not create data file: %w", err)
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	defer writer.Flush()

	if err := writer.Write([]string{"open_time", "open", "high", "low", "close", "volume"}); err != nil {
		return err
	}

	start := startTime.UnixMilli()
	end := endTime.UnixMilli()
	total := 0

	for start < end {
		klines, err := d.client.NewKlinesService().
			Symbol(symbol).
			Interval("1m").
			StartTime(start).
			EndTime(end).
			Limit(klinesPerRequest).
			Do(context.Background())
		if err != nil {
			return fmt.Errorf("kline download failed: %w", err)
		}
		if len(klines) == 0 {
			break
		}

		for _, k := range klines {
			record := []string{
				strconv.FormatInt(k.OpenTime, 10),
				k.Open, k.High, k.Low, k.Close, k.Volume,
			}
			if err := writer.Write(record); err != nil {
				return err
			}
		}

		total += len(klines)
		logger.S().Infow("downloading klines", "symbol", symbol, "fetched", total)
		start = klines[len(klines)-1].CloseTime + 1
	}

	logger.S().Infow("kline download complete", "symbol", symbol, "candles", total, "file", filePath)
	return nil
}

// ReadCandles loads a CSV file produced by DownloadKlines. Rows that do not
// parse are skipped.
func ReadCandles(path string) ([]models.Candle, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("could not open data file: %w", err)
	}
	defer file.Close()

	records, err := csv.NewReader(file).ReadAll()
	if err != nil {
		return nil, fmt.Errorf("could not parse data file: %w", err)
	}

	candles := make([]models.Candle, 0, len(records))
	for i, record := range records {
		if i == 0 || len(record) < 5 {
			continue
		}
		openTime, err1 := strconv.ParseInt(record[0], 10, 64)
		open, err2 := strconv.ParseFloat(record[1], 64)
		high, err3 := strconv.ParseFloat(record[2], 64)
		low, err4 := strconv.ParseFloat(record[3], 64)
		closePrice, err5 := strconv.ParseFloat(record[4], 64)
		if err1 != nil || err2 != nil || err3 != nil || err4 != nil || err5 != nil {
			logger.S().Warnw("skipping unparsable candle row", "row", i)
			continue
		}
		candles = append(candles, models.Candle{
			OpenTime: time.UnixMilli(openTime),
			Open:     open,
			High:     high,
			Low:      low,
			Close:    closePrice,
		})
	}
	return candles, nil
}
