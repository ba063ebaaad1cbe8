package engine

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/ivmartynov/ladderbot/internal/domain"
)

// LadderPlanner generates the missing buy rungs of the martingale ladder.
// It is re-entrant: each call only adds rungs the state is still allowed to
// hold, so running it every cycle converges instead of duplicating orders.
type LadderPlanner struct {
	params Params
}

// NewLadderPlanner creates a planner over the given strategy params.
func NewLadderPlanner(params Params) *LadderPlanner {
	return &LadderPlanner{params: params}
}

// PlaceBuyOrders tops up the ladder while the state accepts new buys. The
// first rung anchors the ladder at the current price minus the entry
// deviation; later rungs step down from the lowest existing rung and grow
// quantity by the martingale percent.
func (p *LadderPlanner) PlaceBuyOrders(state *domain.TradeState) error {
	currentPrice := state.Market.CurrentPrice
	for state.CanAddNewBuyOrder() {
		var nextPrice, nextQty decimal.Decimal
		if state.HasBuyOrders() {
			nextPrice, nextQty = p.nextRung(state)
		} else {
			// a pending sell means the previous deal is still closing
			if len(state.Active.Sells()) > 0 {
				return nil
			}
			nextPrice, nextQty = p.firstRung(state, currentPrice)
		}

		// after downtime the planned price can sit above the market
		if nextPrice.GreaterThan(currentPrice) {
			nextPrice = currentPrice
		}

		order := domain.NewBuyOrder(*state.Instrument, nextQty, nextPrice)
		if err := state.AddNewBuyOrder(order); err != nil {
			return err
		}
	}
	return nil
}

func (p *LadderPlanner) firstRung(state *domain.TradeState, currentPrice decimal.Decimal) (price, qty decimal.Decimal) {
	state.BuyOrdersPrice = currentPrice

	deviation := state.FirstStepDeviation
	if state.InstantFirstBuy() {
		deviation = decimal.Zero
	}
	price = hundred.Sub(deviation).Div(hundred).Mul(state.BuyOrdersPrice)
	qty = state.CalculatedDepositOrder.Div(currentPrice)

	now := time.Now().UTC()
	state.LastDealSetTime = &now
	return price, qty
}

// nextRung derives the step percent from the spacing of the two lowest
// rungs: before the stretch threshold the flat configured step applies,
// after it the last observed step plus the stretch increment, widening the
// ladder as it deepens.
func (p *LadderPlanner) nextRung(state *domain.TradeState) (price, qty decimal.Decimal) {
	lastOrders := state.LastBuyOrders(2)

	lastPercent := decimal.Zero
	if len(lastOrders) == 2 {
		// LastBuyOrders sorts ascending, so the later element is higher
		higher, lower := lastOrders[1], lastOrders[0]
		lastPercent = higher.Price.Div(lower.Price).Mul(hundred).Sub(hundred)
	}

	lastOrder := lastOrders[0]
	percent := p.params.PercentStep
	if state.BuyOrderCount() >= p.params.StretchStartOrder {
		percent = lastPercent.Add(p.params.PlusStep)
	}

	price = hundred.Sub(percent).Div(hundred).Mul(lastOrder.Price)
	qty = lastOrder.OriginalQty.Add(lastOrder.OriginalQty.Mul(p.params.MartinPercent).Div(hundred))
	return price, qty
}
