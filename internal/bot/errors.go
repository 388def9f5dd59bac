package bot

import (
	"errors"
	"fmt"

	"github.com/scamps86/sct-binance-bot/internal/models"
)

// ErrAlreadyStarted is returned when a cycle command arrives while orders
// from a previous command are still open.
var ErrAlreadyStarted = errors.New("bot is already started")

// ValidationError reports a cycle configuration or sizing that cannot be
// traded.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string {
	return "invalid cycle configuration: " + e.Reason
}

// QueryError wraps a failed exchange lookup during cycle preparation.
type QueryError struct {
	What string
	Err  error
}

func (e *QueryError) Error() string {
	return fmt.Sprintf("could not fetch %s: %v", e.What, e.Err)
}

func (e *QueryError) Unwrap() error { return e.Err }

// PlacementError wraps a rejected order submission.
type PlacementError struct {
	Side     models.Side
	Quantity float64
	Price    float64
	Err      error
}

func (e *PlacementError) Error() string {
	return fmt.Sprintf("%s ORDER error (quantity %v @ %v): %v", e.Side, e.Quantity, e.Price, e.Err)
}

func (e *PlacementError) Unwrap() error { return e.Err }

// CancelError wraps a failed cancellation during stop.
type CancelError struct {
	OrderID int64
	Err     error
}

func (e *CancelError) Error() string {
	return fmt.Sprintf("could not cancel order %d: %v", e.OrderID, e.Err)
}

func (e *CancelError) Unwrap() error { return e.Err }

func validateSizing(s models.Sizing) error {
	switch {
	case s.Quantity <= 0:
		return &ValidationError{Reason: fmt.Sprintf("quantity %v is not positive", s.Quantity)}
	case s.BuyPrice < 0:
		return &ValidationError{Reason: fmt.Sprintf("buy price %v is negative", s.BuyPrice)}
	case s.SellPrice < 0:
		return &ValidationError{Reason: fmt.Sprintf("sell price %v is negative", s.SellPrice)}
	case s.BuyPrice > s.SellPrice:
		return &ValidationError{Reason: fmt.Sprintf("buy price %v exceeds sell price %v", s.BuyPrice, s.SellPrice)}
	}
	return nil
}
