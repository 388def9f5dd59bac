package exchange

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/adshao/go-binance/v2"
	"github.com/adshao/go-binance/v2/common"
	"github.com/jxskiss/base62"
	"go.uber.org/zap"

	"github.com/scamps86/sct-binance-bot/internal/models"
)

// listenKeyKeepaliveInterval is comfortably below the 60 minute expiry Binance
// applies to idle listen keys.
const listenKeyKeepaliveInterval = 25 * time.Minute

// unknownOrderCode is the Binance error for cancelling an order that does not
// exist anymore (already filled or already cancelled).
const unknownOrderCode = -2011

// BinanceGateway implements Gateway against the Binance spot API.
type BinanceGateway struct {
	client *binance.Client
	logger *zap.SugaredLogger
}

// NewBinanceGateway creates a gateway for the production or test network.
func NewBinanceGateway(apiKey, secretKey string, testnet bool, logger *zap.SugaredLogger) *BinanceGateway {
	binance.UseTestnet = testnet
	return &BinanceGateway{
		client: binance.NewClient(apiKey, secretKey),
		logger: logger,
	}
}

func (g *BinanceGateway) GetQuantityConstraints(symbol string) (models.QuantityConstraints, error) {
	info, err := g.client.NewExchangeInfoService().Symbol(symbol).Do(context.Background())
	if err != nil {
		return models.QuantityConstraints{}, err
	}
	for _, s := range info.Symbols {
		if s.Symbol != symbol {
			continue
		}
		filter := s.LotSizeFilter()
		if filter == nil {
			return models.QuantityConstraints{}, fmt.Errorf("no LOT_SIZE filter for %s", symbol)
		}
		minQty, err := strconv.ParseFloat(filter.MinQuantity, 64)
		if err != nil {
			return models.QuantityConstraints{}, fmt.Errorf("bad min quantity %q: %w", filter.MinQuantity, err)
		}
		maxQty, err := strconv.ParseFloat(filter.MaxQuantity, 64)
		if err != nil {
			return models.QuantityConstraints{}, fmt.Errorf("bad max quantity %q: %w", filter.MaxQuantity, err)
		}
		return models.QuantityConstraints{
			StepSize: filter.StepSize,
			MinQty:   minQty,
			MaxQty:   maxQty,
		}, nil
	}
	return models.QuantityConstraints{}, fmt.Errorf("symbol %s not found in exchange info", symbol)
}

func (g *BinanceGateway) GetPrice(symbol string) (float64, error) {
	prices, err := g.client.NewListPricesService().Symbol(symbol).Do(context.Background())
	if err != nil {
		return 0, err
	}
	if len(prices) == 0 {
		return 0, fmt.Errorf("no price returned for %s", symbol)
	}
	return strconv.ParseFloat(prices[0].Price, 64)
}

func (g *BinanceGateway) GetCandleSummary(symbol, period string, count int) (models.CandleSummary, error) {
	klines, err := g.client.NewKlinesService().
		Symbol(symbol).
		Interval(period).
		Limit(count).
		Do(context.Background())
	if err != nil {
		return models.CandleSummary{}, err
	}
	if len(klines) == 0 {
		return models.CandleSummary{}, fmt.Errorf("no candles returned for %s %s", symbol, period)
	}

	var summary models.CandleSummary
	for i, k := range klines {
		high, err := strconv.ParseFloat(k.High, 64)
		if err != nil {
			return models.CandleSummary{}, fmt.Errorf("bad candle high %q: %w", k.High, err)
		}
		low, err := strconv.ParseFloat(k.Low, 64)
		if err != nil {
			return models.CandleSummary{}, fmt.Errorf("bad candle low %q: %w", k.Low, err)
		}
		if i == 0 || high > summary.High {
			summary.High = high
		}
		if i == 0 || low < summary.Low {
			summary.Low = low
		}
	}
	return summary, nil
}

func (g *BinanceGateway) GetFreeBalance(asset string) (float64, error) {
	account, err := g.client.NewGetAccountService().Do(context.Background())
	if err != nil {
		return 0, err
	}
	for _, b := range account.Balances {
		if b.Asset == asset {
			return strconv.ParseFloat(b.Free, 64)
		}
	}
	return 0, nil
}

func (g *BinanceGateway) PlaceLimitOrder(symbol string, side models.Side, quantity, price float64) (*models.Order, error) {
	res, err := g.client.NewCreateOrderService().
		Symbol(symbol).
		Side(binance.SideType(side)).
		Type(binance.OrderTypeLimit).
		TimeInForce(binance.TimeInForceTypeGTC).
		Quantity(strconv.FormatFloat(quantity, 'f', -1, 64)).
		Price(strconv.FormatFloat(price, 'f', -1, 64)).
		NewClientOrderID(newClientOrderID()).
		Do(context.Background())
	if err != nil {
		return nil, err
	}

	filledPrice, err := strconv.ParseFloat(res.Price, 64)
	if err != nil {
		filledPrice = price
	}
	return &models.Order{OrderID: res.OrderID, Price: filledPrice, Side: side}, nil
}

func (g *BinanceGateway) CancelOrder(symbol string, orderID int64) error {
	_, err := g.client.NewCancelOrderService().
		Symbol(symbol).
		OrderID(orderID).
		Do(context.Background())
	if err != nil {
		var apiErr *common.APIError
		if errors.As(err, &apiErr) && apiErr.Code == unknownOrderCode {
			g.logger.Warnw("cancel skipped, order unknown or already final", "orderID", orderID)
			return nil
		}
		return err
	}
	return nil
}

// SubscribeFills opens the user-data stream and forwards every execution
// report as a FillEvent. The listen key is kept alive in the background until
// the returned stop function runs.
func (g *BinanceGateway) SubscribeFills() (<-chan models.FillEvent, func(), error) {
	listenKey, err := g.client.NewStartUserStreamService().Do(context.Background())
	if err != nil {
		return nil, nil, err
	}

	events := make(chan models.FillEvent, 64)
	quit := make(chan struct{})

	wsHandler := func(event *binance.WsUserDataEvent) {
		if event.Event != binance.UserDataEventTypeExecutionReport {
			return
		}
		update := event.OrderUpdate
		select {
		case events <- models.FillEvent{
			OrderID:       update.Id,
			Status:        update.Status,
			ExecutionType: update.ExecutionType,
		}:
		default:
			g.logger.Warnw("fill event channel full, dropping event", "orderID", update.Id)
		}
	}
	errHandler := func(err error) {
		g.logger.Errorw("user data stream error", "err", err)
	}

	doneC, stopC, err := binance.WsUserDataServe(listenKey, wsHandler, errHandler)
	if err != nil {
		return nil, nil, err
	}

	go func() {
		ticker := time.NewTicker(listenKeyKeepaliveInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				err := g.client.NewKeepaliveUserStreamService().
					ListenKey(listenKey).
					Do(context.Background())
				if err != nil {
					g.logger.Errorw("listen key keepalive failed", "err", err)
				}
			case <-quit:
				return
			case <-doneC:
				return
			}
		}
	}()

	var once sync.Once
	stop := func() {
		once.Do(func() {
			close(quit)
			close(stopC)
			err := g.client.NewCloseUserStreamService().
				ListenKey(listenKey).
				Do(context.Background())
			if err != nil {
				g.logger.Warnw("closing user data stream failed", "err", err)
			}
		})
	}
	return events, stop, nil
}

// newClientOrderID tags orders placed by this bot so they are recognizable in
// the exchange UI and order history.
func newClientOrderID() string {
	return "sct-" + string(base62.FormatInt(time.Now().UnixNano()))
}
