// Package trader owns the set of per-instrument trading systems: it builds
// them from restored state at startup and drives rebalancing plus one
// pipeline traversal per system every tick.
package trader

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/ivmartynov/ladderbot/internal/domain"
	"github.com/ivmartynov/ladderbot/internal/engine"
)

// BuildStates tops the restored states up to the configured count. Restored
// states keep their identity and any deal in progress; the missing slots are
// created empty, seeded with pending signals when any are available that do
// not duplicate a restored instrument.
func BuildStates(params engine.Params, restored []*domain.TradeState, signals []domain.Signal) []*domain.TradeState {
	if len(restored) >= params.MaxStateCount {
		return restored
	}

	taken := make(map[string]bool, len(restored))
	for _, s := range restored {
		if s.Instrument != nil {
			taken[s.Instrument.ID] = true
		}
	}
	var fresh []domain.Signal
	for _, sig := range signals {
		if !taken[sig.Instrument.ID] {
			fresh = append(fresh, sig)
		}
	}

	states := append([]*domain.TradeState{}, restored...)
	for i := 0; len(states) < params.MaxStateCount; i++ {
		state := NewState(params)
		if i < len(fresh) {
			inst := fresh[i].Instrument
			info := fresh[i].Info
			state.Instrument = &inst
			state.SignalInfo = &info
		}
		states = append(states, state)
	}
	return states
}

// NewState creates one empty trading state with the configured defaults.
func NewState(params engine.Params) *domain.TradeState {
	return &domain.TradeState{
		ID:                 uuid.NewString(),
		IsActive:           true,
		MaxOrderCount:      params.OrdersCount,
		TakeProfit:         params.TakeProfit,
		FirstStepDeviation: params.FirstStepDeviation,
		FeePercent:         params.FeePercent,
		LimitDeposit:       decimal.Zero,
	}
}
