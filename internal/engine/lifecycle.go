package engine

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"github.com/ivmartynov/ladderbot/internal/domain"
)

// maxReloadDeviation caps the ladder-reload rule: when price jumped more
// than 5% above the ladder anchor the move is treated as a breakout, not a
// stale ladder, and the orders are left in place.
var maxReloadDeviation = decimal.NewFromFloat(0.05)

// Lifecycle is the per-cycle decision engine for one instrument: an ordered
// sequence of guarded transitions, each stopping the sequence when it fires,
// followed by an unconditional depth recomputation and ladder top-up.
type Lifecycle struct {
	params  Params
	depth   *DepthCalculator
	planner *LadderPlanner
	logger  *slog.Logger
}

// NewLifecycle wires the decision engine to its depth math and planner.
func NewLifecycle(params Params, depth *DepthCalculator, planner *LadderPlanner, logger *slog.Logger) *Lifecycle {
	return &Lifecycle{
		params:  params,
		depth:   depth,
		planner: planner,
		logger:  logger.With(slog.String("component", "lifecycle")),
	}
}

func (l *Lifecycle) Name() string { return "lifecycle" }

// lifecycleStep is one guarded transition. It reports whether it consumed
// the cycle, which stops the remaining steps from being evaluated.
type lifecycleStep func(state *domain.TradeState) (bool, error)

func (l *Lifecycle) Process(ctx context.Context, state *domain.TradeState) (Flow, error) {
	if state.Instrument == nil || state.Market == nil {
		return FlowContinue, nil
	}

	steps := []lifecycleStep{
		l.repriceNewSell,
		l.firstSell,
		l.ladderReload,
		l.sellAdjust,
		l.dealComplete,
	}
	for _, step := range steps {
		fired, err := step(state)
		if err != nil {
			return FlowHalt, err
		}
		if fired {
			break
		}
	}

	l.depth.Recalculate(state)
	if err := l.planner.PlaceBuyOrders(state); err != nil {
		return FlowHalt, fmt.Errorf("place buy orders: %w", err)
	}
	return FlowContinue, nil
}

// repriceNewSell clamps a restored, not-yet-placed sell order up to the
// current market price. It never consumes the cycle.
func (l *Lifecycle) repriceNewSell(state *domain.TradeState) (bool, error) {
	sells := state.New.Sells()
	if len(sells) != 1 {
		return false, nil
	}
	if sells[0].Price.LessThan(state.Market.CurrentPrice) {
		sells[0].Price = state.Market.CurrentPrice
	}
	return false, nil
}

// firstSell fires when buys filled and no sell order is active anywhere:
// every filled active order moves to the bought ledger and one consolidated
// take-profit sell is queued for the accumulated quantity.
func (l *Lifecycle) firstSell(state *domain.TradeState) (bool, error) {
	if len(state.Active.Sells()) > 0 {
		return false, nil
	}
	filled := state.Active.WithStatus(domain.OrderStatusFilled)
	if len(filled) == 0 {
		return false, nil
	}

	now := time.Now().UTC()
	state.LastFirstBuyTime = &now

	var sell *domain.Order
	for _, bought := range filled {
		state.Bought = append(state.Bought, bought)
		profitPrice, err := state.TakeProfitPrice()
		if err != nil {
			return true, fmt.Errorf("first sell: %w", err)
		}

		qty := bought.OriginalQty
		if sell != nil {
			qty = qty.Add(sell.OriginalQty)
		}
		sell = l.newSell(state, qty, profitPrice)
	}

	l.logger.Debug("first sell created",
		slog.String("state_id", state.ID),
		slog.String("price", sell.Price.String()),
		slog.String("qty", sell.OriginalQty.String()))
	return true, state.AddNewSellOrder(sell)
}

// ladderReload fires when no sell exists and the market rose above the
// ladder anchor: a rise of at least the reload percent cancels the whole
// ladder so it re-anchors, unless the price jumped past the breakout cap.
func (l *Lifecycle) ladderReload(state *domain.TradeState) (bool, error) {
	if len(state.Active.Sells()) > 0 ||
		len(state.New.Sells()) > 0 ||
		!state.BuyOrdersPrice.LessThan(state.Market.CurrentPrice) {
		return false, nil
	}

	if state.BuyOrdersPrice.IsZero() {
		return true, nil
	}
	deviation := state.Market.CurrentPrice.Div(state.BuyOrdersPrice).
		Round(state.Instrument.PriceScale).Sub(one)
	if deviation.GreaterThan(maxReloadDeviation) {
		return true, nil
	}
	if deviation.GreaterThanOrEqual(l.params.ReloadOrdersPercent.Div(hundred)) {
		l.logger.Debug("ladder reload",
			slog.String("state_id", state.ID),
			slog.String("deviation", deviation.String()))
		state.CancelActiveOrders(true)
	}
	return true, nil
}

// sellAdjust fires when buys filled while a sell order exists: each newly
// filled buy moves to the bought ledger and the sell is replaced by one
// covering the old sell's unexecuted remainder plus the new quantity, at a
// take-profit price recomputed from the grown position.
func (l *Lifecycle) sellAdjust(state *domain.TradeState) (bool, error) {
	filledBuys := state.Active.Buys().WithStatus(domain.OrderStatusFilled)
	if len(filledBuys) == 0 {
		return false, nil
	}
	sell := state.Active.First(func(o *domain.Order) bool { return o.Side == domain.OrderSideSell })
	if sell == nil {
		return true, nil
	}

	var replacement *domain.Order
	for _, bought := range filledBuys {
		state.Bought = append(state.Bought, bought)
		profitPrice, err := state.TakeProfitPrice()
		if err != nil {
			return true, fmt.Errorf("sell adjust: %w", err)
		}

		var qty decimal.Decimal
		switch {
		case replacement != nil:
			qty = replacement.OriginalQty.Add(bought.OriginalQty)
		case sell.Status == domain.OrderStatusFilled:
			// the sell went through before the buy was noticed; resell
			// only the newly bought quantity
			qty = bought.OriginalQty
		case sell.Status == domain.OrderStatusPartiallyFilled:
			qty = bought.OriginalQty.Add(sell.OriginalQty.Sub(sell.ExecutedQty))
		default:
			qty = bought.OriginalQty.Add(sell.OriginalQty)
		}
		replacement = l.newSell(state, qty, profitPrice)
	}

	state.CancelOrder(sell.ID)
	return true, state.AddNewSellOrder(replacement)
}

// dealComplete fires when the active sell filled: everything else is
// canceled, partial buy fills are preserved as carried-over coins, and the
// bought ledger is cleared, ending the deal.
func (l *Lifecycle) dealComplete(state *domain.TradeState) (bool, error) {
	done := state.Active.First(func(o *domain.Order) bool {
		return o.Side == domain.OrderSideSell && o.Status == domain.OrderStatusFilled
	})
	if done == nil {
		return false, nil
	}

	now := time.Now().UTC()
	state.LastSellTime = &now

	l.logger.Info("deal complete",
		slog.String("state_id", state.ID),
		slog.String("sell_price", done.Price.String()),
		slog.String("qty", done.OriginalQty.String()))
	state.CancelActiveOrders(true)
	return true, nil
}

// newSell builds a take-profit sell, folding in the carried-over partial
// quantity exactly once.
func (l *Lifecycle) newSell(state *domain.TradeState, qty, price decimal.Decimal) *domain.Order {
	order := domain.NewSellOrder(*state.Instrument, qty, price, state.PartialCoinsAmount)
	state.PartialCoinsAmount = decimal.Zero
	return order
}
