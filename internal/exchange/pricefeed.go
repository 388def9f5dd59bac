package exchange

import (
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	pongWait       = 60 * time.Second
	pingPeriod     = pongWait * 9 / 10
	reconnectDelay = 5 * time.Second
)

// PriceFeed tracks the latest trade price of a symbol over the public
// aggTrade stream. It exists for status reporting only: the cycle controller
// always asks the gateway for the price it trades on.
type PriceFeed struct {
	url    string
	logger *zap.SugaredLogger

	mu        sync.RWMutex
	price     float64
	updatedAt time.Time

	stop chan struct{}
	done chan struct{}
}

// NewPriceFeed prepares a feed for the given symbol; Start connects it.
func NewPriceFeed(wsBaseURL, symbol string, logger *zap.SugaredLogger) *PriceFeed {
	return &PriceFeed{
		url:    fmt.Sprintf("%s/ws/%s@aggTrade", wsBaseURL, strings.ToLower(symbol)),
		logger: logger,
		stop:   make(chan struct{}),
		done:   make(chan struct{}),
	}
}

// Start runs the connect/reconnect loop in the background.
func (f *PriceFeed) Start() {
	go f.loop()
}

// Stop disconnects and waits for the loop to exit.
func (f *PriceFeed) Stop() {
	close(f.stop)
	<-f.done
}

// Last returns the most recently observed price and its timestamp. The zero
// time means no trade has been seen yet.
func (f *PriceFeed) Last() (float64, time.Time) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.price, f.updatedAt
}

func (f *PriceFeed) loop() {
	defer close(f.done)
	for {
		select {
		case <-f.stop:
			return
		default:
		}

		conn, _, err := websocket.DefaultDialer.Dial(f.url, nil)
		if err != nil {
			f.logger.Warnw("price stream dial failed, retrying", "err", err)
			if !f.wait(reconnectDelay) {
				return
			}
			continue
		}

		if err := f.read(conn); err != nil {
			f.logger.Warnw("price stream disconnected", "err", err)
		}
		conn.Close()

		if !f.wait(reconnectDelay) {
			return
		}
	}
}

func (f *PriceFeed) wait(d time.Duration) bool {
	select {
	case <-f.stop:
		return false
	case <-time.After(d):
		return true
	}
}

// read consumes one connection until it breaks, keeping it alive with pings.
func (f *PriceFeed) read(conn *websocket.Conn) error {
	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	readerDone := make(chan struct{})
	defer close(readerDone)

	go func() {
		ticker := time.NewTicker(pingPeriod)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
					return
				}
			case <-f.stop:
				conn.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				conn.Close()
				return
			case <-readerDone:
				return
			}
		}
	}()

	for {
		_, message, err := conn.ReadMessage()
		if err != nil {
			select {
			case <-f.stop:
				return nil
			default:
			}
			return err
		}

		var trade struct {
			Price json.Number `json:"p"`
		}
		if err := json.Unmarshal(message, &trade); err != nil {
			f.logger.Warnw("could not parse trade message", "err", err)
			continue
		}
		price, err := trade.Price.Float64()
		if err != nil {
			continue
		}

		f.mu.Lock()
		f.price = price
		f.updatedAt = time.Now()
		f.mu.Unlock()
	}
}
