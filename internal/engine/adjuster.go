package engine

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/ivmartynov/ladderbot/internal/domain"
)

const (
	// takeProfitBonus is added to the take-profit target for every sell
	// fill landing inside the observation window.
	takeProfitBonus = "0.1"

	reloadWindow     = 2 * time.Minute
	sellWindow       = 5 * time.Minute
	takeProfitWindow = 5 * time.Minute
)

// Adjuster tunes two live parameters from recent fill cadence: the entry
// deviation (dropped to zero while the market keeps taking our ladders) and
// the take-profit target (ratcheted up while sells keep filling quickly).
// All counters reset when the instrument changes.
type Adjuster struct {
	params Params
	now    func() time.Time

	lastInstrument *domain.Instrument
	reloadCount    int
	lastReloadTime *time.Time
	lastSellTime   *time.Time
	lastTakeProfit *decimal.Decimal
}

// NewAdjuster creates an adjuster with the configured defaults.
func NewAdjuster(params Params) *Adjuster {
	return &Adjuster{params: params, now: func() time.Time { return time.Now().UTC() }}
}

func (a *Adjuster) Name() string { return "adjuster" }

func (a *Adjuster) Process(ctx context.Context, state *domain.TradeState) (Flow, error) {
	if state.Instrument == nil {
		return FlowContinue, nil
	}
	if a.lastInstrument == nil || !a.lastInstrument.Equal(*state.Instrument) {
		a.reset(state)
	}

	a.adjustDeviation(state)
	a.adjustTakeProfit(state)
	return FlowContinue, nil
}

func (a *Adjuster) reset(state *domain.TradeState) {
	a.lastInstrument = state.Instrument
	a.reloadCount = 1
	a.lastReloadTime = nil
	a.lastSellTime = nil
	a.lastTakeProfit = nil
	state.FirstStepDeviation = a.params.FirstStepDeviation
	state.TakeProfit = a.params.TakeProfit
}

// adjustDeviation zeroes the entry deviation for five minutes after a sell
// (fast re-entry), and separately relaxes it to zero when the whole ladder
// was placed and entirely canceled three times inside a rolling two-minute
// window.
func (a *Adjuster) adjustDeviation(state *domain.TradeState) {
	now := a.now()

	if state.LastSellTime != nil && now.Sub(*state.LastSellTime) < sellWindow {
		state.FirstStepDeviation = decimal.Zero
	} else {
		state.FirstStepDeviation = a.params.FirstStepDeviation
	}

	if !a.fullLadderReloaded(state) {
		return
	}

	switch {
	case a.lastReloadTime == nil:
		a.reloadCount++
		a.lastReloadTime = &now
	case now.Sub(*a.lastReloadTime) < reloadWindow:
		a.reloadCount++
		if a.reloadCount >= 3 {
			state.FirstStepDeviation = decimal.Zero
		} else {
			state.FirstStepDeviation = a.params.FirstStepDeviation
		}
	default:
		a.reloadCount = 1
		a.lastReloadTime = &now
		state.FirstStepDeviation = a.params.FirstStepDeviation
	}
}

// fullLadderReloaded detects a complete ladder replacement in one cycle:
// every configured rung re-queued while every canceled order is a buy.
func (a *Adjuster) fullLadderReloaded(state *domain.TradeState) bool {
	if len(state.New) != a.params.OrdersCount || len(state.ToCancel) != a.params.OrdersCount {
		return false
	}
	for _, o := range state.ToCancel {
		if o.Side != domain.OrderSideBuy {
			return false
		}
	}
	return true
}

// adjustTakeProfit ratchets the take-profit target by a fixed bonus for
// every sell fill inside the observation window, and resets to the default
// once the window lapses without one.
func (a *Adjuster) adjustTakeProfit(state *domain.TradeState) {
	filledSells := state.Active.Sells().WithStatus(domain.OrderStatusFilled)
	if len(filledSells) == 0 {
		return
	}

	now := a.now()
	if a.lastSellTime == nil {
		a.lastSellTime = &now
		return
	}

	if now.Sub(*a.lastSellTime) <= takeProfitWindow {
		base := a.params.TakeProfit
		if a.lastTakeProfit != nil {
			base = *a.lastTakeProfit
		}
		bonus := decimal.RequireFromString(takeProfitBonus)
		next := base.Add(bonus)
		a.lastTakeProfit = &next
		state.TakeProfit = next
	} else {
		state.TakeProfit = a.params.TakeProfit
		a.lastTakeProfit = nil
	}
}
