package domain

import (
	"context"

	"github.com/shopspring/decimal"
)

// SignalPriority orders competing entry signals.
type SignalPriority int

const (
	SignalPriorityLow    SignalPriority = 1
	SignalPriorityNormal SignalPriority = 5
	SignalPriorityHigh   SignalPriority = 10
)

// SignalInfo carries the scanner's view of why an instrument is worth
// trading right now.
type SignalInfo struct {
	Amplitude  decimal.Decimal `json:"amplitude"`
	Volume     decimal.Decimal `json:"volume"`
	InstantBuy bool            `json:"instant_buy"`
	Strategy   string          `json:"strategy,omitempty"`
}

// Signal is one instrument the scanner wants traded.
type Signal struct {
	Priority   SignalPriority
	Instrument Instrument
	Info       SignalInfo
}

// SignalSource is the boundary to the instrument-discovery subsystem. The
// core consumes it only through GetPosition: given a state id it returns the
// instrument that state should trade, or nil when nothing is worth trading.
type SignalSource interface {
	GetPosition(ctx context.Context, stateID string) (*Signal, error)
}
