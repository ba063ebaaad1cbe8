package domain

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// TradeState is the full lifecycle state of one managed instrument. An order
// id, once assigned, lives in exactly one of the four order sets at the start
// and end of a cycle: Active (known to exist on the venue), New (to place
// this cycle), ToCancel (to cancel this cycle), Bought (permanently recorded
// filled buys of the current deal).
type TradeState struct {
	ID     string `json:"id"`
	TickID string `json:"tick_id"`

	// Instrument is nil while the state is unassigned.
	Instrument *Instrument `json:"instrument,omitempty"`
	SignalInfo *SignalInfo `json:"signal_info,omitempty"`

	// IsActive is flipped only by the rebalancer.
	IsActive bool `json:"is_active"`

	New      Orders `json:"new_orders"`
	ToCancel Orders `json:"cancel_orders"`
	Active   Orders `json:"active_orders"`
	Bought   Orders `json:"bought_orders"`

	// BuyOrdersPrice is the reference price the current ladder was planned
	// from.
	BuyOrdersPrice decimal.Decimal `json:"buy_orders_price"`
	// PartialCoinsAmount is quantity carried over from a canceled
	// partially-filled buy; it is folded into the next sell exactly once.
	PartialCoinsAmount decimal.Decimal `json:"partial_coins_amount"`
	// CalculatedDepositOrder is the actual quote value of the first rung.
	CalculatedDepositOrder decimal.Decimal `json:"calculated_deposit_order"`
	// LimitDeposit is the budget granted by the rebalancer; everything else
	// only reads it.
	LimitDeposit decimal.Decimal `json:"limit_deposit"`

	MaxBuyDepth        int             `json:"max_buy_depth"`
	MaxOrderCount      int             `json:"max_order_count"`
	TakeProfit         decimal.Decimal `json:"take_profit"`
	FirstStepDeviation decimal.Decimal `json:"first_step_deviation"`
	FeePercent         decimal.Decimal `json:"fee_percent"`

	WorkMode WorkMode `json:"work_mode"`

	LastDealSetTime  *time.Time `json:"last_deal_set_time,omitempty"`
	LastFirstBuyTime *time.Time `json:"last_first_buy_time,omitempty"`
	LastSellTime     *time.Time `json:"last_sell_time,omitempty"`

	// Market is the last snapshot fetched for this instrument; not persisted.
	Market *MarketSnapshot `json:"-"`
}

// InstantFirstBuy reports whether the current signal demands entering without
// any price deviation.
func (s *TradeState) InstantFirstBuy() bool {
	return s.SignalInfo != nil && s.SignalInfo.InstantBuy
}

// AllOrders is the concatenation of new, active, and bought orders.
func (s *TradeState) AllOrders() Orders {
	out := make(Orders, 0, len(s.New)+len(s.Active)+len(s.Bought))
	out = append(out, s.New...)
	out = append(out, s.Active...)
	out = append(out, s.Bought...)
	return out
}

// BuyDepth is the count of non-terminal buy orders across new, active, and
// bought sets. It never exceeds MaxBuyDepth after a full cycle.
func (s *TradeState) BuyDepth() int {
	return len(s.AllOrders().Buys())
}

// BuyOrderCount counts buy orders across new, active, and bought sets.
func (s *TradeState) BuyOrderCount() int {
	return s.BuyDepth()
}

// HasBuyOrders reports whether any buy order exists anywhere in the state.
func (s *TradeState) HasBuyOrders() bool {
	return s.BuyDepth() > 0
}

// SpentDeposit is the quote value spent on bought orders, fees included.
func (s *TradeState) SpentDeposit() decimal.Decimal {
	total := decimal.Zero
	for _, o := range s.Bought {
		total = total.Add(o.ExecutedDeposit()).Add(o.Fee())
	}
	return total
}

// BoughtQuantity is the executed quantity accumulated in the bought ledger.
func (s *TradeState) BoughtQuantity() decimal.Decimal {
	total := decimal.Zero
	for _, o := range s.Bought {
		total = total.Add(o.ExecutedQty)
	}
	return total
}

// InDeal reports whether the state holds at least one bought order.
func (s *TradeState) InDeal() bool {
	return len(s.Bought) > 0
}

// CanBalance reports whether the depth/deposit math has enough inputs.
func (s *TradeState) CanBalance() bool {
	return s.Instrument != nil && s.Market != nil && !s.Market.CurrentPrice.IsZero()
}

// CanChangeInstrument is true only when no orders are outstanding.
func (s *TradeState) CanChangeInstrument() bool {
	return len(s.Active) == 0 && len(s.New) == 0
}

// AssignInstrument re-targets the state to a new instrument. It fails when
// orders are outstanding, and resets the adaptive-tuning timestamps.
func (s *TradeState) AssignInstrument(inst *Instrument, info *SignalInfo) error {
	if !s.CanChangeInstrument() {
		return fmt.Errorf("assign %v: %w", inst, ErrOrdersOutstanding)
	}
	s.Instrument = inst
	s.SignalInfo = info
	s.ResetStatistics()
	return nil
}

// ResetStatistics clears the adaptive-tuning timestamps.
func (s *TradeState) ResetStatistics() {
	s.LastDealSetTime = nil
	s.LastFirstBuyTime = nil
	s.LastSellTime = nil
}

// CanAddNewBuyOrder gates the ladder planner: not-yet-filled buys below the
// order-count limit, buy depth below the computed maximum, a fully open
// session, and an active state.
func (s *TradeState) CanAddNewBuyOrder() bool {
	notFilled := 0
	for _, o := range append(append(Orders{}, s.New...), s.Active...) {
		if o.Side == OrderSideBuy && o.Status != OrderStatusFilled {
			notFilled++
		}
	}
	return notFilled < s.MaxOrderCount &&
		s.BuyDepth() < s.MaxBuyDepth &&
		s.WorkMode == WorkModeFull &&
		s.IsActive
}

// CanPlaceOrder reports whether the session allows placing the order: buys
// only in the full session, sells also in pre-market.
func (s *TradeState) CanPlaceOrder(o *Order) bool {
	switch o.Side {
	case OrderSideBuy:
		return s.WorkMode == WorkModeFull
	case OrderSideSell:
		return s.WorkMode == WorkModeFull || s.WorkMode == WorkModePreMarket
	}
	return false
}

// AddNewBuyOrder queues a buy for placement, clamping its price down to the
// current market price so orders are never floated above market after
// downtime.
func (s *TradeState) AddNewBuyOrder(o *Order) error {
	if o.Side != OrderSideBuy {
		return fmt.Errorf("%w: add buy: order side is %s", ErrInvariant, o.Side)
	}
	if s.Market != nil && o.Price.GreaterThan(s.Market.CurrentPrice) {
		o.Price = s.Market.CurrentPrice
	}
	s.New = append(s.New, o)
	return nil
}

// AddNewSellOrder queues a sell for placement.
func (s *TradeState) AddNewSellOrder(o *Order) error {
	if o.Side != OrderSideSell {
		return fmt.Errorf("%w: add sell: order side is %s", ErrInvariant, o.Side)
	}
	o.Status = OrderStatusNew
	s.New = append(s.New, o)
	return nil
}

// CancelOrder moves an active order into the to-cancel set. Filled orders
// are left alone.
func (s *TradeState) CancelOrder(orderID string) {
	for idx, o := range s.Active {
		if o.ID != orderID {
			continue
		}
		if o.Status == OrderStatusFilled {
			return
		}
		s.Active = append(s.Active[:idx], s.Active[idx+1:]...)
		s.ToCancel = append(s.ToCancel, o)
		return
	}
}

// CancelActiveOrders queues every active order for cancellation, first
// preserving partially-filled quantity into PartialCoinsAmount. When
// clearBought is true the bought ledger is dropped as well, ending the deal.
func (s *TradeState) CancelActiveOrders(clearBought bool) {
	for _, o := range s.Active {
		if o.Status == OrderStatusPartiallyFilled {
			s.PartialCoinsAmount = s.PartialCoinsAmount.Add(o.ExecutedQty)
		}
	}
	for _, o := range append(Orders{}, s.Active...) {
		s.CancelOrder(o.ID)
	}
	if clearBought {
		s.Bought = nil
	}
}

// FirstBuyOrder returns the highest-priced buy order, preferring bought over
// active over new, or nil when no buys exist. The first rung of a ladder is
// always its highest-priced order.
func (s *TradeState) FirstBuyOrder() *Order {
	for _, set := range []Orders{s.Bought, s.Active, s.New} {
		buys := set.Buys()
		if len(buys) == 0 {
			continue
		}
		best := buys[0]
		for _, o := range buys[1:] {
			if o.Price.GreaterThan(best.Price) {
				best = o
			}
		}
		return best
	}
	return nil
}

// LastBuyOrders returns up to count lowest-priced buy orders ordered by
// ascending price.
func (s *TradeState) LastBuyOrders(count int) Orders {
	buys := append(Orders{}, s.AllOrders().Buys()...)
	sort.SliceStable(buys, func(i, j int) bool {
		return buys[i].Price.LessThan(buys[j].Price)
	})
	if len(buys) > count {
		buys = buys[:count]
	}
	return buys
}

// TakeProfitPrice is the sell price realizing the configured margin net of
// buy and sell fees: target revenue = spent (fees in) x (1 + takeProfit%),
// plus the sell fee, divided by the bought quantity, rounded to the price
// scale.
func (s *TradeState) TakeProfitPrice() (decimal.Decimal, error) {
	if s.Instrument == nil {
		return decimal.Zero, ErrNoInstrument
	}
	quantity := s.BoughtQuantity()
	if quantity.IsZero() {
		return decimal.Zero, fmt.Errorf("%w: take-profit price with zero bought quantity", ErrInvariant)
	}
	hundred := decimal.NewFromInt(100)
	spent := s.SpentDeposit()
	spent = spent.Mul(s.TakeProfit.Div(hundred).Add(decimal.NewFromInt(1)))
	spent = spent.Add(spent.Mul(s.FeePercent.Div(hundred)))
	return s.Instrument.RoundPrice(spent.Div(quantity)), nil
}

// AvgBoughtPrice is the volume-weighted average cost of the bought ledger.
func (s *TradeState) AvgBoughtPrice() decimal.Decimal {
	totalQty := decimal.Zero
	totalValue := decimal.Zero
	for _, o := range s.Bought {
		totalQty = totalQty.Add(o.OriginalQty)
		totalValue = totalValue.Add(o.Price.Mul(o.OriginalQty))
	}
	if totalQty.IsZero() {
		return decimal.Zero
	}
	return totalValue.Div(totalQty)
}

// CurrentProfitPercent is the unrealized profit against the average cost.
func (s *TradeState) CurrentProfitPercent() decimal.Decimal {
	avg := s.AvgBoughtPrice()
	if s.Market == nil || avg.IsZero() {
		return decimal.Zero
	}
	hundred := decimal.NewFromInt(100)
	return s.Market.CurrentPrice.Div(avg).Mul(hundred).Sub(hundred)
}

func (s *TradeState) String() string {
	var b strings.Builder
	name := s.ID
	if s.Instrument != nil {
		name = s.Instrument.String()
	}
	fmt.Fprintf(&b, "Name: %s", name)
	if s.SignalInfo != nil && s.SignalInfo.Strategy != "" {
		fmt.Fprintf(&b, " Strategy: %s", s.SignalInfo.Strategy)
	}
	b.WriteByte('\n')
	if s.Market != nil {
		fmt.Fprintf(&b, "Price: %s\n", s.Market.CurrentPrice)
	}
	fmt.Fprintf(&b, "Depth: %d/%d\n", s.BuyDepth(), s.MaxBuyDepth)
	fmt.Fprintf(&b, "Profit: %s%%\n", s.CurrentProfitPercent().Round(2))
	fmt.Fprintf(&b, "Limit: %s Spent: %s\n", s.LimitDeposit, s.SpentDeposit())
	b.WriteString("Orders:\n")
	for _, o := range s.Active {
		b.WriteString(o.String())
		b.WriteByte('\n')
	}
	return b.String()
}
