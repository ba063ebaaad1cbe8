package engine

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ivmartynov/ladderbot/internal/domain"
)

func TestPlaceBuyOrders_MartingaleSteps(t *testing.T) {
	planner := NewLadderPlanner(testParams())
	state := testState(0, 0, 100)
	state.New = domain.Orders{buyOrder("b1", 100, 10, domain.OrderStatusNew)}

	require.NoError(t, planner.PlaceBuyOrders(state))
	require.Len(t, state.New, 3)

	second, third := state.New[1], state.New[2]
	assert.True(t, second.Price.Equal(decimal.NewFromInt(99)), "got %s", second.Price)
	assert.True(t, second.OriginalQty.Equal(decimal.NewFromInt(12)), "got %s", second.OriginalQty)
	assert.True(t, third.Price.Equal(decimal.NewFromInt(98)), "got %s", third.Price)
	assert.True(t, third.OriginalQty.Equal(decimal.NewFromInt(14)), "got %s", third.OriginalQty)
}

func TestPlaceBuyOrders_ClampsToMarket(t *testing.T) {
	planner := NewLadderPlanner(testParams())
	state := testState(0, 0, 95)
	state.MaxBuyDepth = 2
	// the existing rung was planned before a drop to 95
	state.New = domain.Orders{buyOrder("b1", 100, 10, domain.OrderStatusNew)}

	require.NoError(t, planner.PlaceBuyOrders(state))
	require.Len(t, state.New, 2)

	next := state.New[1]
	assert.True(t, next.Price.LessThanOrEqual(decimal.NewFromInt(95)),
		"rung above market: %s", next.Price)
}

func TestPlaceBuyOrders_FirstRungDeviation(t *testing.T) {
	planner := NewLadderPlanner(testParams())
	state := testState(0, 2, 100)
	state.MaxBuyDepth = 1
	state.CalculatedDepositOrder = decimal.NewFromInt(1000)

	require.NoError(t, planner.PlaceBuyOrders(state))
	require.Len(t, state.New, 1)

	first := state.New[0]
	assert.True(t, first.Price.Equal(decimal.NewFromInt(99)), "got %s", first.Price)
	assert.True(t, first.OriginalQty.Equal(decimal.NewFromInt(10)), "got %s", first.OriginalQty)
	assert.True(t, state.BuyOrdersPrice.Equal(decimal.NewFromInt(100)))
	assert.NotNil(t, state.LastDealSetTime)
}

func TestPlaceBuyOrders_InstantBuyEntersAtMarket(t *testing.T) {
	planner := NewLadderPlanner(testParams())
	state := testState(0, 2, 100)
	state.MaxBuyDepth = 1
	state.CalculatedDepositOrder = decimal.NewFromInt(1000)
	state.SignalInfo = &domain.SignalInfo{InstantBuy: true}

	require.NoError(t, planner.PlaceBuyOrders(state))
	require.Len(t, state.New, 1)
	assert.True(t, state.New[0].Price.Equal(decimal.NewFromInt(100)), "got %s", state.New[0].Price)
}

func TestPlaceBuyOrders_RefusesFirstRungDuringOpenSell(t *testing.T) {
	planner := NewLadderPlanner(testParams())
	state := testState(0, 2, 100)
	state.Active = domain.Orders{sellOrder("s1", 105, 10, domain.OrderStatusNew)}

	require.NoError(t, planner.PlaceBuyOrders(state))
	assert.Empty(t, state.New)
}

func TestPlaceBuyOrders_StretchWidensStep(t *testing.T) {
	params := testParams()
	params.PlusStep = decimal.NewFromInt(1)
	params.StretchStartOrder = 2
	planner := NewLadderPlanner(params)

	state := testState(0, 2, 100)
	state.MaxOrderCount = 3
	state.New = domain.Orders{
		buyOrder("b1", 100, 10, domain.OrderStatusNew),
		buyOrder("b2", 99, 12, domain.OrderStatusNew),
	}

	require.NoError(t, planner.PlaceBuyOrders(state))
	require.Len(t, state.New, 3)

	// observed spacing 100/99 ~ 1.0101% plus the stretch increment
	next := state.New[2]
	expected := decimal.NewFromInt(100).
		Sub(decimal.NewFromInt(100).Div(decimal.NewFromInt(99)).Mul(decimal.NewFromInt(100)).Sub(decimal.NewFromInt(100)).Add(decimal.NewFromInt(1))).
		Div(decimal.NewFromInt(100)).Mul(decimal.NewFromInt(99)).Round(2)
	assert.True(t, next.Price.Equal(expected), "got %s want %s", next.Price, expected)
}

func TestPlaceBuyOrders_RespectsDepthCap(t *testing.T) {
	planner := NewLadderPlanner(testParams())
	state := testState(0, 0, 100)
	state.MaxBuyDepth = 1
	state.New = domain.Orders{buyOrder("b1", 100, 10, domain.OrderStatusNew)}

	require.NoError(t, planner.PlaceBuyOrders(state))
	assert.Len(t, state.New, 1)
	assert.LessOrEqual(t, state.BuyDepth(), state.MaxBuyDepth)
}
