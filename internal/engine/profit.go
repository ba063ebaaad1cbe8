package engine

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/ivmartynov/ladderbot/internal/domain"
)

// ProfitRecorder appends a realized-profit row to the deal history whenever
// the active sell order fills. The realized profit is the spread between the
// fill price and the same order stripped of its profit margin.
type ProfitRecorder struct {
	deals    domain.DealStore
	notifier domain.Notifier
	logger   *slog.Logger
}

// NewProfitRecorder creates the recorder.
func NewProfitRecorder(deals domain.DealStore, notifier domain.Notifier, logger *slog.Logger) *ProfitRecorder {
	return &ProfitRecorder{
		deals:    deals,
		notifier: notifier,
		logger:   logger.With(slog.String("component", "profit")),
	}
}

func (p *ProfitRecorder) Name() string { return "profit" }

func (p *ProfitRecorder) Process(ctx context.Context, state *domain.TradeState) (Flow, error) {
	sell := state.Active.First(func(o *domain.Order) bool {
		return o.Side == domain.OrderSideSell && o.Status == domain.OrderStatusFilled
	})
	if sell == nil || state.Instrument == nil {
		return FlowContinue, nil
	}

	flatPrice := sell.PriceWithoutProfit(state.TakeProfit)
	profit := sell.OriginalQty.Mul(sell.Price.Sub(flatPrice))
	rounded := state.Instrument.RoundPrice(profit)

	total := rounded
	if last, err := p.deals.Last(ctx); err != nil {
		p.logger.Warn("deal history read failed", slog.String("error", err.Error()))
	} else if last != nil {
		total = last.TotalProfit.Add(rounded)
	}

	deal := domain.Deal{
		ID:          uuid.NewString(),
		Instrument:  state.Instrument.ID,
		Quantity:    sell.OriginalQty,
		SellPrice:   sell.Price,
		Profit:      profit,
		TotalProfit: total,
		ClosedAt:    time.Now().UTC(),
	}
	if err := p.deals.Append(ctx, deal); err != nil {
		p.logger.Error("deal append failed", slog.String("error", err.Error()))
		return FlowContinue, nil
	}

	p.notifier.SendAlert(ctx, domain.AlertDealClosed,
		"deal closed: "+state.Instrument.String()+
			" profit "+rounded.String()+
			" total "+total.String())
	return FlowContinue, nil
}
