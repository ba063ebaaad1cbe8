package engine

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ivmartynov/ladderbot/internal/domain"
)

func TestPostMarket_SkipsOpenSession(t *testing.T) {
	rec := NewPostMarketReconciler(testLogger())
	state := testState(2, 2, 100)
	state.Active = domain.Orders{buyOrder("b1", 99, 10, domain.OrderStatusNew)}

	flow, err := rec.Process(context.Background(), state)
	require.NoError(t, err)
	assert.Equal(t, FlowContinue, flow)
	assert.Len(t, state.Active, 1)
}

func TestPostMarket_Idempotent(t *testing.T) {
	rec := NewPostMarketReconciler(testLogger())
	state := testState(2, 2, 100)
	state.WorkMode = domain.WorkModePostMarket

	for i := 0; i < 3; i++ {
		flow, err := rec.Process(context.Background(), state)
		require.NoError(t, err)
		assert.Equal(t, FlowHalt, flow)
		assert.Empty(t, state.Active)
		assert.Empty(t, state.New)
		assert.Empty(t, state.ToCancel)
	}
	require.NoError(t, rec.Finalize(context.Background(), state))
	assert.Empty(t, state.New)
}

func TestPostMarket_ResubmitsSellAndCancelsRest(t *testing.T) {
	rec := NewPostMarketReconciler(testLogger())
	state := testState(2, 2, 100)
	state.WorkMode = domain.WorkModePostMarket
	state.Bought = domain.Orders{buyOrder("b1", 100, 10, domain.OrderStatusFilled)}

	sell := sellOrder("s1", 100.5, 12, domain.OrderStatusPartiallyFilled)
	sell.ExecutedQty = decimal.NewFromInt(2)
	state.Active = domain.Orders{
		sell,
		buyOrder("b2", 99, 12, domain.OrderStatusNew),
	}

	flow, err := rec.Process(context.Background(), state)
	require.NoError(t, err)
	assert.Equal(t, FlowHalt, flow)

	// the sell comes back as a fresh order for the unexecuted remainder
	sells := state.New.Sells()
	require.Len(t, sells, 1)
	assert.True(t, sells[0].OriginalQty.Equal(decimal.NewFromInt(10)), "got %s", sells[0].OriginalQty)
	assert.True(t, sells[0].ExecutedQty.IsZero())

	assert.Empty(t, state.Active)
	assert.Len(t, state.ToCancel, 2)
	assert.Len(t, state.Bought, 1, "the deal survives the session break")
}

func TestPostMarket_DefersWhileFillsUncovered(t *testing.T) {
	rec := NewPostMarketReconciler(testLogger())
	state := testState(2, 2, 100)
	state.WorkMode = domain.WorkModePostMarket
	state.Active = domain.Orders{buyOrder("b1", 100, 10, domain.OrderStatusFilled)}

	// a filled buy without a covering sell is not stable yet: let the
	// lifecycle create the sell downstream and retry in Finalize
	flow, err := rec.Process(context.Background(), state)
	require.NoError(t, err)
	assert.Equal(t, FlowContinue, flow)
	assert.Empty(t, state.ToCancel)
}
