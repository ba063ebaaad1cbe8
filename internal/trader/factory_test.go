package trader

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ivmartynov/ladderbot/internal/domain"
	"github.com/ivmartynov/ladderbot/internal/engine"
)

func factoryParams() engine.Params {
	return engine.Params{
		OrdersCount:        4,
		TakeProfit:         decimal.NewFromFloat(0.5),
		FirstStepDeviation: decimal.NewFromInt(1),
		FeePercent:         decimal.Zero,
		MaxStateCount:      3,
	}
}

func signalFor(symbol string) domain.Signal {
	return domain.Signal{
		Priority:   domain.SignalPriorityNormal,
		Instrument: domain.NewInstrument(symbol, 2, 2),
	}
}

func TestBuildStates_TopsUpToConfiguredCount(t *testing.T) {
	inst := domain.NewInstrument("BTCUSDT", 2, 2)
	restored := []*domain.TradeState{{ID: "restored", Instrument: &inst, IsActive: true}}

	states := BuildStates(factoryParams(), restored,
		[]domain.Signal{signalFor("ETHUSDT"), signalFor("SOLUSDT")})

	require.Len(t, states, 3)
	assert.Equal(t, "restored", states[0].ID)
	assert.Equal(t, "ETHUSDT", states[1].Instrument.ID)
	assert.Equal(t, "SOLUSDT", states[2].Instrument.ID)
	for _, s := range states[1:] {
		assert.NotEmpty(t, s.ID)
		assert.True(t, s.IsActive)
		assert.Equal(t, 4, s.MaxOrderCount)
		assert.True(t, s.LimitDeposit.IsZero(), "fresh slots start unfunded")
	}
}

func TestBuildStates_SkipsSignalsForRestoredInstruments(t *testing.T) {
	inst := domain.NewInstrument("BTCUSDT", 2, 2)
	restored := []*domain.TradeState{{ID: "restored", Instrument: &inst, IsActive: true}}

	states := BuildStates(factoryParams(), restored,
		[]domain.Signal{signalFor("BTCUSDT"), signalFor("ETHUSDT")})

	require.Len(t, states, 3)
	assert.Equal(t, "ETHUSDT", states[1].Instrument.ID)
	assert.Nil(t, states[2].Instrument, "no signal left for the last slot")
}

func TestBuildStates_MoreRestoredThanSlots(t *testing.T) {
	var restored []*domain.TradeState
	for _, symbol := range []string{"A", "B", "C", "D"} {
		inst := domain.NewInstrument(symbol, 2, 2)
		restored = append(restored, &domain.TradeState{ID: symbol, Instrument: &inst})
	}

	states := BuildStates(factoryParams(), restored, nil)
	assert.Len(t, states, 4, "restored states are never discarded")
}
