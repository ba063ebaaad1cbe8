package domain

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// StateStore persists trading states. The core saves at the start and end of
// every pipeline traversal and after every exchange mutation, so a crash
// mid-cycle resumes from the last durable snapshot.
type StateStore interface {
	Save(ctx context.Context, state *TradeState) error
	Get(ctx context.Context, id string) (*TradeState, error)
	GetAll(ctx context.Context) ([]*TradeState, error)
	Delete(ctx context.Context, id string) error
	Clear(ctx context.Context) error
}

// Deal is one realized trade recorded when a sell order fills.
type Deal struct {
	ID          string          `json:"id"`
	Instrument  string          `json:"instrument"`
	Quantity    decimal.Decimal `json:"quantity"`
	SellPrice   decimal.Decimal `json:"sell_price"`
	Profit      decimal.Decimal `json:"profit"`
	TotalProfit decimal.Decimal `json:"total_profit"`
	ClosedAt    time.Time       `json:"closed_at"`
}

// DealStore is the append-only realized-profit history.
type DealStore interface {
	Append(ctx context.Context, deal Deal) error
	Last(ctx context.Context) (*Deal, error)
	ListSince(ctx context.Context, since time.Time) ([]Deal, error)
}

// OrderStatusInfo pairs an order id with its venue-side status.
type OrderStatusInfo struct {
	ID     string
	Status OrderStatus
}

// ExchangeClient is the venue boundary. Fallible operations return an error
// (or a success flag) instead of hanging; retry policy belongs to the
// implementation, never to the core.
type ExchangeClient interface {
	// GetData returns the current market snapshot for the instrument. The
	// tick id lets implementations deduplicate reads within one cycle.
	GetData(ctx context.Context, instrumentID, tickID string) (*MarketSnapshot, error)
	// PlaceOrder submits the order; on success the order's ID is filled in.
	PlaceOrder(ctx context.Context, instrumentID string, order *Order) bool
	// CancelOrder cancels the order, reporting definite success or failure.
	CancelOrder(ctx context.Context, instrumentID string, order *Order) bool
	// UpdateOrders refreshes status and executed quantity of the given
	// active orders in place.
	UpdateOrders(ctx context.Context, instrumentID string, orders Orders, tickID string) bool
	// GetStatuses fetches the venue-side status of the given order ids.
	GetStatuses(ctx context.Context, instrumentID string, orderIDs []string) ([]OrderStatusInfo, error)
}

// AlertKind classifies operator alerts.
type AlertKind string

const (
	AlertInternalError    AlertKind = "internal_error"
	AlertOrderRejected    AlertKind = "order_rejected"
	AlertDealClosed       AlertKind = "deal_closed"
	AlertStateDeactivated AlertKind = "state_deactivated"
)

// Notifier is the operator notification sink. Delivery is best effort; a
// failure must never abort a trading cycle.
type Notifier interface {
	SendAlert(ctx context.Context, kind AlertKind, text string)
	SendInfo(ctx context.Context, text string)
}

// WorkModeProvider reports the venue's session state from its trading
// calendar.
type WorkModeProvider interface {
	Current(now time.Time) WorkMode
}

// RegimeProvider reports the market regime used to pick the rebalancer's
// position margin.
type RegimeProvider interface {
	Current() MarketRegime
}
