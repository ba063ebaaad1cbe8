package domain

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// OrderSide indicates whether this is a buy or sell.
type OrderSide string

const (
	OrderSideBuy  OrderSide = "buy"
	OrderSideSell OrderSide = "sell"
)

// OrderType indicates how the order executes.
type OrderType string

const (
	OrderTypeLimit  OrderType = "limit"
	OrderTypeMarket OrderType = "market"
)

// TimeInForce is the order's lifetime policy.
type TimeInForce string

const (
	TimeInForceGTC TimeInForce = "GTC" // Good-Till-Cancelled
	TimeInForceIOC TimeInForce = "IOC" // Immediate-Or-Cancel
	TimeInForceFOK TimeInForce = "FOK" // Fill-Or-Kill
)

// OrderStatus tracks the order lifecycle on the venue.
type OrderStatus string

const (
	OrderStatusNew             OrderStatus = "new"
	OrderStatusPartiallyFilled OrderStatus = "partially_filled"
	OrderStatusFilled          OrderStatus = "filled"
	OrderStatusCanceled        OrderStatus = "canceled"
	OrderStatusPendingCancel   OrderStatus = "pending_cancel"
	OrderStatusRejected        OrderStatus = "rejected"
	OrderStatusExpired         OrderStatus = "expired"
)

// Order is one venue order. ID stays empty until the venue accepts the
// placement.
type Order struct {
	ID          string          `json:"id"`
	Symbol      string          `json:"symbol"`
	Side        OrderSide       `json:"side"`
	Status      OrderStatus     `json:"status"`
	Type        OrderType       `json:"type"`
	TimeInForce TimeInForce     `json:"time_in_force"`
	Price       decimal.Decimal `json:"price"`
	OriginalQty decimal.Decimal `json:"original_qty"`
	ExecutedQty decimal.Decimal `json:"executed_qty"`
	// FeePercent is the venue commission in whole percent, e.g. 0.05 for
	// 0.05%.
	FeePercent decimal.Decimal `json:"fee_percent"`
}

// ExecutedDeposit is the quote-currency value already executed.
func (o *Order) ExecutedDeposit() decimal.Decimal {
	return o.ExecutedQty.Mul(o.Price)
}

// Fee is the commission charged on the executed part.
func (o *Order) Fee() decimal.Decimal {
	return o.FeePercent.Div(decimal.NewFromInt(100)).Mul(o.ExecutedDeposit())
}

// PriceWithoutProfit strips the given profit percent from the order price.
func (o *Order) PriceWithoutProfit(profit decimal.Decimal) decimal.Decimal {
	one := decimal.NewFromInt(1)
	return o.Price.Div(one.Add(profit.Div(decimal.NewFromInt(100))))
}

// ResetForResubmit prepares a partially executed sell order for re-placement:
// the executed part is removed from the original quantity so that only the
// remainder is resold. Buy orders are never resubmitted this way.
func (o *Order) ResetForResubmit() error {
	if o.Side == OrderSideBuy {
		return fmt.Errorf("%w: only sell orders can be corrected for resubmit", ErrInvariant)
	}
	if o.ExecutedQty.IsZero() {
		return nil
	}
	o.OriginalQty = o.OriginalQty.Sub(o.ExecutedQty)
	o.ExecutedQty = decimal.Zero
	return nil
}

func (o *Order) String() string {
	return fmt.Sprintf("%s: %s : price %s : qty %s", o.Side, o.Status, o.Price, o.OriginalQty)
}

// NewBuyOrder builds a limit buy rounded to the instrument scales.
func NewBuyOrder(inst Instrument, qty, price decimal.Decimal) *Order {
	o := newLimitOrder(inst, qty, price)
	o.Side = OrderSideBuy
	return o
}

// NewSellOrder builds a limit sell rounded to the instrument scales. Any
// carried-over partial quantity is folded into the order size.
func NewSellOrder(inst Instrument, qty, price, partialQty decimal.Decimal) *Order {
	o := newLimitOrder(inst, qty.Add(partialQty), price)
	o.Side = OrderSideSell
	return o
}

// NewMarketSellOrder builds a market sell for the given quantity. The venue
// ignores the price on execution; it carries the current market price as the
// reference for deposit and fee math.
func NewMarketSellOrder(inst Instrument, qty, price decimal.Decimal) *Order {
	o := newLimitOrder(inst, qty, price)
	o.Side = OrderSideSell
	o.Type = OrderTypeMarket
	return o
}

func newLimitOrder(inst Instrument, qty, price decimal.Decimal) *Order {
	return &Order{
		Symbol:      inst.ID,
		Status:      OrderStatusNew,
		Type:        OrderTypeLimit,
		TimeInForce: TimeInForceGTC,
		OriginalQty: inst.RoundQty(qty),
		Price:       inst.RoundPrice(price),
	}
}

// Orders is a filterable order collection.
type Orders []*Order

// Buys returns the buy-side subset.
func (os Orders) Buys() Orders {
	return os.filter(func(o *Order) bool { return o.Side == OrderSideBuy })
}

// Sells returns the sell-side subset.
func (os Orders) Sells() Orders {
	return os.filter(func(o *Order) bool { return o.Side == OrderSideSell })
}

// WithStatus returns the subset in the given status.
func (os Orders) WithStatus(status OrderStatus) Orders {
	return os.filter(func(o *Order) bool { return o.Status == status })
}

// WithoutStatus returns the subset not in the given status.
func (os Orders) WithoutStatus(status OrderStatus) Orders {
	return os.filter(func(o *Order) bool { return o.Status != status })
}

// InDeal reports whether any order has progressed past the new status.
func (os Orders) InDeal() bool {
	for _, o := range os {
		if o.Status != OrderStatusNew {
			return true
		}
	}
	return false
}

// First returns the first order matching the predicate, or nil.
func (os Orders) First(match func(*Order) bool) *Order {
	for _, o := range os {
		if match(o) {
			return o
		}
	}
	return nil
}

func (os Orders) filter(match func(*Order) bool) Orders {
	var out Orders
	for _, o := range os {
		if match(o) {
			out = append(out, o)
		}
	}
	return out
}
