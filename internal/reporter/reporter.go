package reporter

import (
	"fmt"
	"sync"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"

	"github.com/scamps86/sct-binance-bot/internal/exchange"
	"github.com/scamps86/sct-binance-bot/internal/models"
)

// CycleLog accumulates completed cycles for reporting.
type CycleLog struct {
	mu     sync.Mutex
	cycles []models.CompletedCycle
}

func NewCycleLog() *CycleLog {
	return &CycleLog{}
}

func (l *CycleLog) Record(cycle models.CompletedCycle) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.cycles = append(l.cycles, cycle)
}

func (l *CycleLog) Cycles() []models.CompletedCycle {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]models.CompletedCycle(nil), l.cycles...)
}

// StatusRenderer renders the current bot state as a text table for the
// /status command.
type StatusRenderer struct {
	log      *CycleLog
	snapshot func() models.StatusSnapshot
	price    func() (float64, time.Time)
}

func NewStatusRenderer(log *CycleLog, snapshot func() models.StatusSnapshot, price func() (float64, time.Time)) *StatusRenderer {
	return &StatusRenderer{log: log, snapshot: snapshot, price: price}
}

func (r *StatusRenderer) RenderStatus() string {
	snap := r.snapshot()
	cycles := r.log.Cycles()

	t := table.NewWriter()
	t.SetStyle(table.StyleLight)
	t.AppendRow(table.Row{"State", string(snap.State)})
	if snap.Config.Pair != "" {
		t.AppendRow(table.Row{"Pair", snap.Config.Pair})
	}
	if price, at := r.price(); !at.IsZero() {
		t.AppendRow(table.Row{"Price", fmt.Sprintf("%v (%s)", price, at.Format("15:04:05"))})
	}
	if snap.Sizing.Quantity > 0 {
		t.AppendRow(table.Row{"Quantity", snap.Sizing.Quantity})
		t.AppendRow(table.Row{"Buy price", snap.Sizing.BuyPrice})
		t.AppendRow(table.Row{"Sell price", snap.Sizing.SellPrice})
	}
	if snap.BuyOrder != nil {
		t.AppendRow(table.Row{"Open buy order", snap.BuyOrder.OrderID})
	}
	if snap.SellOrder != nil {
		t.AppendRow(table.Row{"Open sell order", snap.SellOrder.OrderID})
	}

	// Each cycle records profit against the start-of-run baseline, so the
	// latest entry already carries the cumulative figure.
	var totalProfit float64
	if len(cycles) > 0 {
		totalProfit = cycles[len(cycles)-1].Profit
	}
	t.AppendRow(table.Row{"Completed cycles", len(cycles)})
	t.AppendRow(table.Row{"Cumulative profit", totalProfit})

	return t.Render()
}

// GenerateBacktestReport summarizes a finished simulation run.
func GenerateBacktestReport(gw *exchange.BacktestGateway, log *CycleLog, dataPath string, start, end time.Time) string {
	cycles := log.Cycles()

	wins, losses := 0, 0
	prevProfit := 0.0
	for _, c := range cycles {
		if c.Profit-prevProfit >= 0 {
			wins++
		} else {
			losses++
		}
		prevProfit = c.Profit
	}

	price := gw.CurrentPrice()
	finalEquity := gw.QuoteBalance() + gw.BaseBalance()*price

	t := table.NewWriter()
	t.SetStyle(table.StyleLight)
	t.SetTitle("Backtest Report")
	t.AppendRow(table.Row{"Data", dataPath})
	if !start.IsZero() {
		t.AppendRow(table.Row{"Period", fmt.Sprintf("%s to %s",
			start.Format("2006-01-02"), end.Format("2006-01-02"))})
	}
	t.AppendRow(table.Row{"Initial balance", gw.InitialBalance()})
	t.AppendRow(table.Row{"Final equity", finalEquity})
	t.AppendRow(table.Row{"Net profit", finalEquity - gw.InitialBalance()})
	t.AppendRow(table.Row{"Completed cycles", len(cycles)})
	t.AppendRow(table.Row{"Winning cycles", wins})
	t.AppendRow(table.Row{"Losing cycles", losses})
	t.AppendRow(table.Row{"Total fees paid", gw.TotalFees()})
	t.AppendRow(table.Row{"Final price", price})

	return t.Render()
}
