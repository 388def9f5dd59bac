package bot

import (
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/scamps86/sct-binance-bot/internal/exchange"
	"github.com/scamps86/sct-binance-bot/internal/models"
	"github.com/scamps86/sct-binance-bot/internal/strategy"
)

// CycleRecorder receives every completed buy/sell round trip.
type CycleRecorder interface {
	Record(cycle models.CompletedCycle)
}

// Controller runs the single-pair trading cycle: place a limit buy, wait for
// it to fill, place the matching limit sell, and on its fill report the
// profit and start the next cycle with the same parameters. All commands and
// fill events are serialized on one mutex, so at most one order per side is
// open at any time.
type Controller struct {
	gateway    exchange.Gateway
	notifier   Notifier
	recorder   CycleRecorder
	settlement string
	logger     *zap.SugaredLogger

	mu          sync.Mutex
	state       models.CycleState
	cfg         models.BotConfig
	sizing      models.Sizing
	constraints models.QuantityConstraints
	buyOrder    *models.Order
	sellOrder   *models.Order

	// startBalance is the settlement balance captured when the bot went
	// from stopped to started; cumulative profit is measured against it.
	startBalance float64
	baselineSet  bool
	lastBalance  float64

	fills       <-chan models.FillEvent
	unsubscribe func()
	quit        chan struct{}
}

func NewController(gateway exchange.Gateway, notifier Notifier, recorder CycleRecorder, settlementAsset string, logger *zap.SugaredLogger) *Controller {
	return &Controller{
		gateway:    gateway,
		notifier:   notifier,
		recorder:   recorder,
		settlement: settlementAsset,
		logger:     logger,
		state:      models.StateIdle,
	}
}

// Check computes and reports the sizing for the given parameters without
// placing any order.
func (c *Controller) Check(cfg models.BotConfig) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.isStartedLocked() {
		c.notifier.Notify("Bot is already started!")
		return ErrAlreadyStarted
	}
	_, err := c.prepareLocked(cfg)
	return err
}

// Start validates the parameters, places the opening buy order and begins
// reacting to fills.
func (c *Controller) Start(cfg models.BotConfig) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.isStartedLocked() {
		c.notifier.Notify("Bot is already started!")
		return ErrAlreadyStarted
	}

	c.notifier.Notify("- - - - - STARTING BOT - - - - -")
	return c.startCycleLocked(cfg)
}

func (c *Controller) startCycleLocked(cfg models.BotConfig) error {
	sizing, err := c.prepareLocked(cfg)
	if err != nil {
		return err
	}

	if err := validateSizing(sizing); err != nil {
		c.notifier.Notifyf("Bot could not be executed with this configuration: %v. Please review your %s free balance too.", err, c.settlement)
		return err
	}

	if !c.baselineSet {
		c.startBalance = c.lastBalance
		c.baselineSet = true
	}

	if c.fills == nil {
		fills, unsubscribe, err := c.gateway.SubscribeFills()
		if err != nil {
			c.notifier.Notifyf("Bot could not be executed: %v", err)
			return err
		}
		c.fills = fills
		c.unsubscribe = unsubscribe
		c.quit = make(chan struct{})
		go c.fillLoop(fills, c.quit)
	}

	order, err := c.placeLocked(models.SideBuy, sizing.Quantity, sizing.BuyPrice)
	if err != nil {
		return err
	}
	c.buyOrder = order
	c.state = models.StateBuyPlaced
	return nil
}

// prepareLocked fetches market data, computes the sizing and reports it.
func (c *Controller) prepareLocked(cfg models.BotConfig) (models.Sizing, error) {
	if err := cfg.Validate(); err != nil {
		verr := &ValidationError{Reason: err.Error()}
		c.notifier.Notifyf("Bot could not be executed with this configuration: %v. Please review your %s free balance too.", verr, c.settlement)
		return models.Sizing{}, verr
	}

	constraints, err := c.gateway.GetQuantityConstraints(cfg.Pair)
	if err != nil {
		return models.Sizing{}, c.queryFailed("quantity constraints", err)
	}
	price, err := c.gateway.GetPrice(cfg.Pair)
	if err != nil {
		return models.Sizing{}, c.queryFailed("current price", err)
	}
	balance, err := c.gateway.GetFreeBalance(c.settlement)
	if err != nil {
		return models.Sizing{}, c.queryFailed("free balance", err)
	}
	summary, err := c.gateway.GetCandleSummary(cfg.Pair, cfg.CandlePeriod, cfg.CandleCount)
	if err != nil {
		return models.Sizing{}, c.queryFailed("candle summary", err)
	}

	sizing := strategy.Compute(price, summary, balance, constraints, cfg)

	c.cfg = cfg
	c.constraints = constraints
	c.sizing = sizing
	c.lastBalance = balance

	c.notifier.Notifyf("BOT CONFIGURATION quantity: %v, buy price: %v, sell price: %v",
		sizing.Quantity, sizing.BuyPrice, sizing.SellPrice)
	return sizing, nil
}

func (c *Controller) queryFailed(what string, err error) error {
	qerr := &QueryError{What: what, Err: err}
	c.notifier.Notifyf("Bot could not be executed: %v", qerr)
	return qerr
}

func (c *Controller) placeLocked(side models.Side, quantity, price float64) (*models.Order, error) {
	order, err := c.gateway.PlaceLimitOrder(c.cfg.Pair, side, quantity, price)
	if err != nil {
		perr := &PlacementError{Side: side, Quantity: quantity, Price: price, Err: err}
		c.notifier.Notify(perr.Error())
		return nil, perr
	}
	c.notifier.Notifyf("%s ORDER created. Quantity: %v, price: %v", side, quantity, price)
	return order, nil
}

func (c *Controller) fillLoop(fills <-chan models.FillEvent, quit chan struct{}) {
	for {
		select {
		case ev := <-fills:
			c.handleFill(ev)
		case <-quit:
			return
		}
	}
}

func (c *Controller) handleFill(ev models.FillEvent) {
	if ev.Status != "FILLED" || ev.ExecutionType != "TRADE" {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	switch {
	case c.buyOrder != nil && ev.OrderID == c.buyOrder.OrderID:
		c.buyFilledLocked()
	case c.sellOrder != nil && ev.OrderID == c.sellOrder.OrderID:
		c.sellFilledLocked()
	default:
		c.logger.Debugw("ignoring fill for unknown order", "orderID", ev.OrderID)
	}
}

// buyFilledLocked places the sell leg. The sell quantity is clamped to the
// asset actually received, which can be less than the buy quantity after
// exchange fees.
func (c *Controller) buyFilledLocked() {
	c.notifier.Notify("BUY ORDER done!")
	c.buyOrder = nil

	quantity := c.sizing.Quantity
	available, err := c.gateway.GetFreeBalance(c.cfg.Currency)
	if err != nil {
		c.logger.Warnw("could not read balance after buy fill, keeping planned quantity",
			"asset", c.cfg.Currency, "err", err)
	} else if available < quantity {
		quantity = strategy.RoundToStep(available, c.constraints.StepSize)
	}

	order, err := c.placeLocked(models.SideSell, quantity, c.sizing.SellPrice)
	if err != nil {
		// Position is held in the traded asset; the operator decides
		// what to do next.
		return
	}
	c.sizing.Quantity = quantity
	c.sellOrder = order
	c.state = models.StateSellPlaced
}

func (c *Controller) sellFilledLocked() {
	c.notifier.Notify("SELL ORDER done!")
	c.notifier.Notify("- - - - - DEAL ACCOMPLISHED! - - - - -")

	cycle := models.CompletedCycle{
		Pair:      c.cfg.Pair,
		Quantity:  c.sizing.Quantity,
		BuyPrice:  c.sizing.BuyPrice,
		SellPrice: c.sizing.SellPrice,
		ClosedAt:  time.Now(),
	}

	balance, err := c.gateway.GetFreeBalance(c.settlement)
	if err != nil {
		c.logger.Warnw("could not read balance after sell fill", "asset", c.settlement, "err", err)
	} else {
		cycle.Profit = balance - c.startBalance
		c.notifier.Notifyf("You have earned %v %s", cycle.Profit, c.settlement)
	}

	if c.recorder != nil {
		c.recorder.Record(cycle)
	}

	c.sellOrder = nil
	c.state = models.StateIdle

	if err := c.startCycleLocked(c.cfg); err != nil {
		c.notifier.Notifyf("Could not restart the cycle: %v. The bot is idle.", err)
	}
}

// Stop cancels any open order and releases the fill stream.
func (c *Controller) Stop() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.isStartedLocked() && c.fills == nil {
		c.notifier.Notify("Bot is already stopped!")
		return nil
	}

	if c.fills != nil {
		close(c.quit)
		c.unsubscribe()
		c.fills = nil
		c.unsubscribe = nil
		c.quit = nil
	}

	for _, order := range []*models.Order{c.buyOrder, c.sellOrder} {
		if order == nil {
			continue
		}
		if err := c.gateway.CancelOrder(c.cfg.Pair, order.OrderID); err != nil {
			cerr := &CancelError{OrderID: order.OrderID, Err: err}
			c.logger.Warnw("order cancellation failed on stop", "orderID", order.OrderID, "err", err)
			c.notifier.Notify(cerr.Error())
		}
	}
	c.buyOrder = nil
	c.sellOrder = nil
	c.state = models.StateIdle
	c.baselineSet = false

	c.notifier.Notify("- - - - - - BOT STOPPED - - - - - -")
	return nil
}

func (c *Controller) IsStarted() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.isStartedLocked()
}

func (c *Controller) isStartedLocked() bool {
	return c.buyOrder != nil || c.sellOrder != nil
}

// Snapshot returns a copy of the current cycle state for reporting.
func (c *Controller) Snapshot() models.StatusSnapshot {
	c.mu.Lock()
	defer c.mu.Unlock()

	snapshot := models.StatusSnapshot{
		State:  c.state,
		Config: c.cfg,
		Sizing: c.sizing,
	}
	if c.buyOrder != nil {
		order := *c.buyOrder
		snapshot.BuyOrder = &order
	}
	if c.sellOrder != nil {
		order := *c.sellOrder
		snapshot.SellOrder = &order
	}
	return snapshot
}
