package exchange

import (
	"fmt"
	"sort"
	"sync"

	"github.com/scamps86/sct-binance-bot/internal/models"
)

type btOrder struct {
	models.Order
	Quantity float64
	Status   string
}

// BacktestGateway replays historical candles against a simulated account.
// Orders fill when the candle path crosses their limit price; fills are
// delivered over the same channel contract the live gateway provides, so the
// controller runs unmodified.
type BacktestGateway struct {
	symbol     string
	baseAsset  string
	quoteAsset string

	mu          sync.Mutex
	balances    map[string]float64
	orders      map[int64]*btOrder
	nextOrderID int64
	window      []models.Candle
	windowSize  int
	lastPrice   float64
	totalFees   float64

	initialBalance float64
	makerFeeRate   float64
	constraints    models.QuantityConstraints

	fills chan models.FillEvent
}

func NewBacktestGateway(symbol, baseAsset, quoteAsset string, initialBalance, makerFeeRate float64, constraints models.QuantityConstraints, windowSize int) *BacktestGateway {
	return &BacktestGateway{
		symbol:         symbol,
		baseAsset:      baseAsset,
		quoteAsset:     quoteAsset,
		balances:       map[string]float64{quoteAsset: initialBalance},
		orders:         make(map[int64]*btOrder),
		nextOrderID:    1,
		windowSize:     windowSize,
		initialBalance: initialBalance,
		makerFeeRate:   makerFeeRate,
		constraints:    constraints,
		fills:          make(chan models.FillEvent, 64),
	}
}

// ProcessCandle advances the simulation by one candle and returns how many
// orders filled. The candle path is approximated as open, low, high, close.
func (g *BacktestGateway) ProcessCandle(c models.Candle) int {
	g.mu.Lock()
	defer g.mu.Unlock()

	filled := 0
	for _, price := range []float64{c.Open, c.Low, c.High, c.Close} {
		filled += g.fillCrossedLocked(price)
	}

	g.lastPrice = c.Close
	g.window = append(g.window, c)
	if len(g.window) > g.windowSize {
		g.window = g.window[len(g.window)-g.windowSize:]
	}
	return filled
}

func (g *BacktestGateway) fillCrossedLocked(price float64) int {
	ids := make([]int64, 0, len(g.orders))
	for id, o := range g.orders {
		if o.Status != "NEW" {
			continue
		}
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	filled := 0
	for _, id := range ids {
		o := g.orders[id]
		crossed := (o.Side == models.SideBuy && price <= o.Price) ||
			(o.Side == models.SideSell && price >= o.Price)
		if !crossed {
			continue
		}
		g.settleLocked(o)
		filled++
	}
	return filled
}

func (g *BacktestGateway) settleLocked(o *btOrder) {
	cost := o.Quantity * o.Price
	if o.Side == models.SideBuy {
		fee := o.Quantity * g.makerFeeRate
		g.balances[g.quoteAsset] -= cost
		g.balances[g.baseAsset] += o.Quantity - fee
		g.totalFees += fee * o.Price
	} else {
		fee := cost * g.makerFeeRate
		g.balances[g.baseAsset] -= o.Quantity
		g.balances[g.quoteAsset] += cost - fee
		g.totalFees += fee
	}
	o.Status = "FILLED"
	delete(g.orders, o.OrderID)

	ev := models.FillEvent{OrderID: o.OrderID, Status: "FILLED", ExecutionType: "TRADE"}
	select {
	case g.fills <- ev:
	default:
	}
}

func (g *BacktestGateway) GetQuantityConstraints(symbol string) (models.QuantityConstraints, error) {
	return g.constraints, nil
}

func (g *BacktestGateway) GetPrice(symbol string) (float64, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.lastPrice == 0 {
		return 0, fmt.Errorf("no candles processed yet for %s", symbol)
	}
	return g.lastPrice, nil
}

func (g *BacktestGateway) GetCandleSummary(symbol, period string, count int) (models.CandleSummary, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if len(g.window) == 0 {
		return models.CandleSummary{}, fmt.Errorf("no candles processed yet for %s", symbol)
	}
	start := 0
	if len(g.window) > count {
		start = len(g.window) - count
	}
	var summary models.CandleSummary
	for i, c := range g.window[start:] {
		if i == 0 || c.High > summary.High {
			summary.High = c.High
		}
		if i == 0 || c.Low < summary.Low {
			summary.Low = c.Low
		}
	}
	return summary, nil
}

func (g *BacktestGateway) GetFreeBalance(asset string) (float64, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.balances[asset], nil
}

func (g *BacktestGateway) PlaceLimitOrder(symbol string, side models.Side, quantity, price float64) (*models.Order, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if quantity < g.constraints.MinQty {
		return nil, fmt.Errorf("quantity %v below minimum %v", quantity, g.constraints.MinQty)
	}
	if g.constraints.MaxQty > 0 && quantity > g.constraints.MaxQty {
		return nil, fmt.Errorf("quantity %v above maximum %v", quantity, g.constraints.MaxQty)
	}
	if side == models.SideBuy {
		if cost := quantity * price; cost > g.balances[g.quoteAsset] {
			return nil, fmt.Errorf("insufficient %s balance: need %v, have %v", g.quoteAsset, cost, g.balances[g.quoteAsset])
		}
	} else {
		if quantity > g.balances[g.baseAsset] {
			return nil, fmt.Errorf("insufficient %s balance: need %v, have %v", g.baseAsset, quantity, g.balances[g.baseAsset])
		}
	}

	o := &btOrder{
		Order:    models.Order{OrderID: g.nextOrderID, Price: price, Side: side},
		Quantity: quantity,
		Status:   "NEW",
	}
	g.nextOrderID++
	g.orders[o.OrderID] = o

	order := o.Order
	return &order, nil
}

func (g *BacktestGateway) CancelOrder(symbol string, orderID int64) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if _, ok := g.orders[orderID]; !ok {
		return fmt.Errorf("unknown order %d", orderID)
	}
	delete(g.orders, orderID)
	return nil
}

func (g *BacktestGateway) SubscribeFills() (<-chan models.FillEvent, func(), error) {
	return g.fills, func() {}, nil
}

func (g *BacktestGateway) InitialBalance() float64 { return g.initialBalance }

func (g *BacktestGateway) QuoteBalance() float64 {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.balances[g.quoteAsset]
}

func (g *BacktestGateway) BaseBalance() float64 {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.balances[g.baseAsset]
}

func (g *BacktestGateway) CurrentPrice() float64 {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.lastPrice
}

func (g *BacktestGateway) TotalFees() float64 {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.totalFees
}
