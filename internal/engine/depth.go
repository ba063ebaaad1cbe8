package engine

import (
	"github.com/shopspring/decimal"

	"github.com/ivmartynov/ladderbot/internal/domain"
)

// DepthCalculator converts a deposit budget into an achievable martingale
// buy depth and back. Both directions share the same geometric growth rule
// and rounding so they stay mutually consistent.
type DepthCalculator struct {
	params Params
}

// NewDepthCalculator creates a calculator over the given strategy params.
func NewDepthCalculator(params Params) *DepthCalculator {
	return &DepthCalculator{params: params}
}

// CalculateBuyDepth counts how many ladder rungs the state's limit deposit
// fully affords, starting from the base rung and compounding quantity by the
// martingale percent. Zero when the state cannot balance.
func (c *DepthCalculator) CalculateBuyDepth(state *domain.TradeState) int {
	if !state.CanBalance() {
		return 0
	}

	depth := 0
	qty, price, limit := c.baseParameters(state)
	for limit.LessThan(state.LimitDeposit) {
		depth++
		qty = qty.Mul(c.growthFactor(state))
		limit = limit.Add(qty.Mul(price))
	}
	return depth
}

// CalculateLimitDeposit prices a ladder of exactly needDepth rungs: the
// cumulative cost of the base rung plus needDepth compounded rungs. Zero when
// the state cannot balance.
func (c *DepthCalculator) CalculateLimitDeposit(state *domain.TradeState, needDepth int) decimal.Decimal {
	if !state.CanBalance() {
		return decimal.Zero
	}

	qty, price, limit := c.baseParameters(state)
	for i := 1; i <= needDepth; i++ {
		qty = qty.Mul(c.growthFactor(state))
		limit = limit.Add(qty.Mul(price))
	}
	return limit
}

// Recalculate writes the affordable depth back to the state. Called after
// every instrument assignment, every lifecycle pass, and at the end of every
// rebalance.
func (c *DepthCalculator) Recalculate(state *domain.TradeState) {
	state.MaxBuyDepth = c.CalculateBuyDepth(state)
}

// growthFactor is (100+martin)/100 rounded at the instrument's quantity
// scale. The rounding of the factor itself, rather than the product, keeps
// the ladder math identical between the two calculation directions.
func (c *DepthCalculator) growthFactor(state *domain.TradeState) decimal.Decimal {
	f := hundred.Add(c.params.MartinPercent).Div(hundred)
	return f.Round(state.Instrument.QtyScale)
}

// baseParameters derives the base rung. An existing first buy order (the
// highest-priced one, preferring bought over active over new) defines it;
// otherwise it is built from the configured first-order value at the current
// price, and its actual value is stored on the state.
func (c *DepthCalculator) baseParameters(state *domain.TradeState) (qty, price, limit decimal.Decimal) {
	if first := state.FirstBuyOrder(); first != nil {
		return first.OriginalQty, first.Price, first.Price.Mul(first.OriginalQty)
	}

	price = state.Market.CurrentPrice
	qty = state.Instrument.RoundQty(c.params.DepositOrder.Div(price))
	limit = price.Mul(qty)
	state.CalculatedDepositOrder = limit
	return qty, price, limit
}
