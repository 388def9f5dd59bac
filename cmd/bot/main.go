package main

import (
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/joho/godotenv"

	"github.com/scamps86/sct-binance-bot/internal/bot"
	"github.com/scamps86/sct-binance-bot/internal/config"
	"github.com/scamps86/sct-binance-bot/internal/downloader"
	"github.com/scamps86/sct-binance-bot/internal/exchange"
	"github.com/scamps86/sct-binance-bot/internal/logger"
	"github.com/scamps86/sct-binance-bot/internal/models"
	"github.com/scamps86/sct-binance-bot/internal/reporter"
	"github.com/scamps86/sct-binance-bot/internal/telegram"
)

func main() {
	configPath := flag.String("config", "config.json", "path to the JSON config file")
	mode := flag.String("mode", "live", "run mode: live or backtest")
	dataPath := flag.String("data", "", "backtest candle CSV file")
	symbol := flag.String("symbol", "", "symbol to download backtest data for")
	startStr := flag.String("start", "", "backtest data start date (YYYY-MM-DD)")
	endStr := flag.String("end", "", "backtest data end date (YYYY-MM-DD)")
	flag.Parse()

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "could not load config: %v\n", err)
		os.Exit(1)
	}
	logger.Init(cfg.LogConfig)

	if err := godotenv.Load(); err != nil {
		logger.S().Info("no .env file found, relying on the environment")
	}

	switch *mode {
	case "live":
		runLive(cfg)
	case "backtest":
		runBacktest(cfg, *dataPath, *symbol, *startStr, *endStr)
	default:
		logger.S().Fatalf("unknown mode %q, expected live or backtest", *mode)
	}
}

func runLive(cfg *models.Config) {
	apiKey := os.Getenv("BINANCE_API_KEY")
	secretKey := os.Getenv("BINANCE_SECRET_KEY")
	token := os.Getenv("TELEGRAM_BOT_TOKEN")
	if apiKey == "" || secretKey == "" {
		logger.S().Fatal("BINANCE_API_KEY and BINANCE_SECRET_KEY must be set")
	}
	if token == "" {
		logger.S().Fatal("TELEGRAM_BOT_TOKEN must be set")
	}

	gateway := exchange.NewBinanceGateway(apiKey, secretKey, cfg.IsTestnet, logger.S())

	feed := exchange.NewPriceFeed(cfg.WSBaseURL, cfg.Pair, logger.S())
	feed.Start()

	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		logger.S().Fatalf("could not connect to telegram: %v", err)
	}
	logger.S().Infow("telegram connected", "account", api.Self.UserName)

	svc := telegram.New(api, cfg.Pair, cfg.Currency, logger.S())

	cycleLog := reporter.NewCycleLog()
	controller := bot.NewController(gateway, svc, cycleLog, cfg.SettlementAsset, logger.S())
	svc.SetController(controller)
	svc.SetStatusRenderer(reporter.NewStatusRenderer(cycleLog, controller.Snapshot, feed.Last))

	go svc.Listen()
	logger.S().Infow("bot running", "pair", cfg.Pair, "testnet", cfg.IsTestnet)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.S().Info("shutting down")
	svc.Close()
	if err := controller.Stop(); err != nil {
		logger.S().Errorw("stop failed during shutdown", "err", err)
	}
	feed.Stop()
}

func resolveBacktestData(dataPath, symbol, startStr, endStr string) (string, time.Time, time.Time) {
	var start, end time.Time
	var err error
	if startStr != "" {
		if start, err = time.Parse("2006-01-02", startStr); err != nil {
			logger.S().Fatalf("invalid start date: %v", err)
		}
	}
	if endStr != "" {
		if end, err = time.Parse("2006-01-02", endStr); err != nil {
			logger.S().Fatalf("invalid end date: %v", err)
		}
	}

	if symbol != "" && !start.IsZero() && !end.IsZero() {
		if dataPath == "" {
			dataPath = fmt.Sprintf("%s_%s_%s.csv", symbol, startStr, endStr)
		}
		d := downloader.NewKlineDownloader()
		if err := d.DownloadKlines(symbol, dataPath, start, end); err != nil {
			logger.S().Fatalf("could not download klines: %v", err)
		}
		return dataPath, start, end
	}

	if dataPath == "" {
		logger.S().Fatal("backtest needs -data, or -symbol with -start and -end")
	}
	return dataPath, start, end
}

func runBacktest(cfg *models.Config, dataPath, symbol, startStr, endStr string) {
	dataPath, start, end := resolveBacktestData(dataPath, symbol, startStr, endStr)

	candles, err := downloader.ReadCandles(dataPath)
	if err != nil {
		logger.S().Fatalf("could not read candles: %v", err)
	}

	bt := cfg.Backtest
	constraints := models.QuantityConstraints{
		StepSize: bt.StepSize,
		MinQty:   bt.MinQty,
		MaxQty:   bt.MaxQty,
	}
	gateway := exchange.NewBacktestGateway(cfg.Pair, cfg.Currency, cfg.SettlementAsset,
		bt.InitialBalance, bt.MakerFeeRate, constraints, bt.CandleCount)

	cycleLog := reporter.NewCycleLog()
	notifier := &bot.LogNotifier{Logger: logger.S()}
	controller := bot.NewController(gateway, notifier, cycleLog, cfg.SettlementAsset, logger.S())

	if len(candles) <= bt.CandleCount {
		logger.S().Fatalf("need more than %d candles, got %d", bt.CandleCount, len(candles))
	}
	for _, c := range candles[:bt.CandleCount] {
		gateway.ProcessCandle(c)
	}

	botCfg := models.BotConfig{
		Pair:           cfg.Pair,
		Currency:       cfg.Currency,
		CandlePeriod:   "1m",
		CandleCount:    bt.CandleCount,
		BalancePercent: bt.BalancePercent,
		BuyMargin:      bt.BuyMargin,
		Method:         models.Method(bt.Method),
	}
	if err := controller.Start(botCfg); err != nil {
		logger.S().Fatalf("could not start the simulated bot: %v", err)
	}

	for _, c := range candles[bt.CandleCount:] {
		// Give the fill loop time to react before the next candle, so a
		// sell placed after a buy fill can still fill inside the run.
		if n := gateway.ProcessCandle(c); n > 0 {
			time.Sleep(20 * time.Millisecond)
		}
	}

	if err := controller.Stop(); err != nil {
		logger.S().Errorw("could not stop the simulated bot", "err", err)
	}

	fmt.Println(reporter.GenerateBacktestReport(gateway, cycleLog, dataPath, start, end))
}
