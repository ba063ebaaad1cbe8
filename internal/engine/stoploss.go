package engine

import (
	"context"
	"log/slog"

	"github.com/shopspring/decimal"

	"github.com/ivmartynov/ladderbot/internal/domain"
)

var (
	// stoplossZeroProfit is the drawdown at which the position is dumped
	// at market price, accepting zero net profit.
	stoplossZeroProfit = decimal.NewFromFloat(0.05)
	// stoplossBreakEven is the drawdown at which the sell is reanchored to
	// the volume-weighted average cost.
	stoplossBreakEven = decimal.NewFromFloat(0.03)
)

// Stoploss watches a fully consumed ladder for sharp drawdown and reprices
// the open sell to exit the position. It tracks filled buys across cycles
// and forgets them whenever a sell fills.
type Stoploss struct {
	logger *slog.Logger

	// buys are (quantity, price) pairs of filled buys seen so far.
	buys []struct{ Qty, Price decimal.Decimal }
}

// NewStoploss creates the guard.
func NewStoploss(logger *slog.Logger) *Stoploss {
	return &Stoploss{logger: logger.With(slog.String("component", "stoploss"))}
}

func (s *Stoploss) Name() string { return "stoploss" }

func (s *Stoploss) Process(ctx context.Context, state *domain.TradeState) (Flow, error) {
	if state.Instrument == nil || state.Market == nil {
		return FlowContinue, nil
	}

	for _, o := range state.Active.Buys().WithStatus(domain.OrderStatusFilled) {
		s.buys = append(s.buys, struct{ Qty, Price decimal.Decimal }{o.OriginalQty, o.Price})
	}
	if len(state.Active.Sells().WithStatus(domain.OrderStatusFilled)) > 0 {
		s.buys = nil
	}

	if len(s.buys) != state.MaxBuyDepth {
		return FlowContinue, nil
	}
	sell := state.Active.First(func(o *domain.Order) bool { return o.Side == domain.OrderSideSell })
	if sell == nil {
		return FlowContinue, nil
	}

	currentPrice := state.Market.CurrentPrice
	switch {
	case currentPrice.LessThan(sell.Price.Mul(one.Sub(stoplossZeroProfit))):
		state.CancelOrder(sell.ID)
		replacement := domain.NewMarketSellOrder(*state.Instrument, sell.OriginalQty, currentPrice)
		if err := state.AddNewSellOrder(replacement); err != nil {
			return FlowHalt, err
		}
		s.logger.Warn("stoploss exit at market price",
			slog.String("state_id", state.ID),
			slog.String("price", currentPrice.String()))

	case currentPrice.LessThan(sell.Price.Mul(one.Sub(stoplossBreakEven))):
		avg := state.Instrument.RoundPrice(state.AvgBoughtPrice())
		state.CancelOrder(sell.ID)
		replacement := domain.NewSellOrder(*state.Instrument, sell.OriginalQty, avg, decimal.Zero)
		if err := state.AddNewSellOrder(replacement); err != nil {
			return FlowHalt, err
		}
		s.logger.Warn("stoploss break-even exit",
			slog.String("state_id", state.ID),
			slog.String("price", avg.String()))
	}
	return FlowContinue, nil
}
