package engine

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ivmartynov/ladderbot/internal/domain"
)

func newLifecycle(params Params) *Lifecycle {
	return NewLifecycle(params, NewDepthCalculator(params), NewLadderPlanner(params), testLogger())
}

func TestLifecycle_FirstSell(t *testing.T) {
	lc := newLifecycle(testParams())
	state := testState(2, 2, 100)
	state.LimitDeposit = decimal.Zero // keep the planner quiet
	state.Active = domain.Orders{
		buyOrder("b1", 100, 10, domain.OrderStatusFilled),
		buyOrder("b2", 99, 12, domain.OrderStatusNew),
	}

	flow, err := lc.Process(context.Background(), state)
	require.NoError(t, err)
	assert.Equal(t, FlowContinue, flow)

	require.Len(t, state.Bought, 1)
	assert.NotNil(t, state.LastFirstBuyTime)

	sells := state.New.Sells()
	require.Len(t, sells, 1)
	assert.True(t, sells[0].OriginalQty.Equal(decimal.NewFromInt(10)))
	// spent 1000, takeProfit 0.5%, no fees: 1000 * 1.005 / 10 = 100.5
	assert.True(t, sells[0].Price.Equal(decimal.NewFromFloat(100.5)), "got %s", sells[0].Price)
}

func TestLifecycle_FirstSellConsolidatesFills(t *testing.T) {
	lc := newLifecycle(testParams())
	state := testState(2, 2, 100)
	state.LimitDeposit = decimal.Zero
	state.Active = domain.Orders{
		buyOrder("b1", 100, 10, domain.OrderStatusFilled),
		buyOrder("b2", 99, 12, domain.OrderStatusFilled),
	}

	_, err := lc.Process(context.Background(), state)
	require.NoError(t, err)

	require.Len(t, state.Bought, 2)
	sells := state.New.Sells()
	require.Len(t, sells, 1)
	assert.True(t, sells[0].OriginalQty.Equal(decimal.NewFromInt(22)), "got %s", sells[0].OriginalQty)
}

func TestLifecycle_FirstSellFoldsPartialCoins(t *testing.T) {
	lc := newLifecycle(testParams())
	state := testState(2, 2, 100)
	state.LimitDeposit = decimal.Zero
	state.PartialCoinsAmount = decimal.NewFromInt(3)
	state.Active = domain.Orders{buyOrder("b1", 100, 10, domain.OrderStatusFilled)}

	_, err := lc.Process(context.Background(), state)
	require.NoError(t, err)

	sells := state.New.Sells()
	require.Len(t, sells, 1)
	assert.True(t, sells[0].OriginalQty.Equal(decimal.NewFromInt(13)), "got %s", sells[0].OriginalQty)
	assert.True(t, state.PartialCoinsAmount.IsZero(), "carried quantity must be consumed once")
}

func TestLifecycle_LadderReload(t *testing.T) {
	lc := newLifecycle(testParams())
	state := testState(2, 3, 100.4)
	state.LimitDeposit = decimal.Zero
	state.BuyOrdersPrice = decimal.NewFromInt(100)
	state.Active = domain.Orders{
		buyOrder("b1", 99, 10, domain.OrderStatusNew),
		buyOrder("b2", 98, 12, domain.OrderStatusNew),
	}

	// 0.4% above the anchor, beyond the 0.35% reload threshold
	_, err := lc.Process(context.Background(), state)
	require.NoError(t, err)

	assert.Empty(t, state.Active)
	assert.Len(t, state.ToCancel, 2)
}

func TestLifecycle_LadderReloadSkipsBreakout(t *testing.T) {
	lc := newLifecycle(testParams())
	state := testState(2, 3, 110)
	state.LimitDeposit = decimal.Zero
	state.BuyOrdersPrice = decimal.NewFromInt(100)
	state.Active = domain.Orders{buyOrder("b1", 99, 10, domain.OrderStatusNew)}

	// a 10% jump is a breakout, not a stale ladder
	_, err := lc.Process(context.Background(), state)
	require.NoError(t, err)

	assert.Len(t, state.Active, 1)
	assert.Empty(t, state.ToCancel)
}

func TestLifecycle_SellAdjust(t *testing.T) {
	lc := newLifecycle(testParams())
	state := testState(2, 2, 99)
	state.LimitDeposit = decimal.Zero
	state.Bought = domain.Orders{buyOrder("b1", 100, 10, domain.OrderStatusFilled)}
	state.Active = domain.Orders{
		sellOrder("s1", 100.5, 10, domain.OrderStatusNew),
		buyOrder("b2", 99, 12, domain.OrderStatusFilled),
	}

	_, err := lc.Process(context.Background(), state)
	require.NoError(t, err)

	// the old sell is queued for cancel and replaced by one covering the
	// whole grown position
	assert.Len(t, state.ToCancel, 1)
	require.Len(t, state.Bought, 2)

	sells := state.New.Sells()
	require.Len(t, sells, 1)
	assert.True(t, sells[0].OriginalQty.Equal(decimal.NewFromInt(22)), "got %s", sells[0].OriginalQty)
	// spent 1000 + 1188 = 2188, takeProfit 0.5%: 2188 * 1.005 / 22 = 99.95
	assert.True(t, sells[0].Price.Equal(decimal.NewFromFloat(99.95)), "got %s", sells[0].Price)
}

func TestLifecycle_DealComplete(t *testing.T) {
	lc := newLifecycle(testParams())
	state := testState(2, 2, 101)
	state.LimitDeposit = decimal.Zero
	state.Bought = domain.Orders{buyOrder("b1", 100, 10, domain.OrderStatusFilled)}
	state.Active = domain.Orders{
		sellOrder("s1", 100.5, 10, domain.OrderStatusFilled),
		buyOrder("b2", 99, 12, domain.OrderStatusPartiallyFilled),
	}
	state.Active[1].ExecutedQty = decimal.NewFromInt(5)

	_, err := lc.Process(context.Background(), state)
	require.NoError(t, err)

	assert.NotNil(t, state.LastSellTime)
	assert.Empty(t, state.Bought, "deal must end")
	assert.True(t, state.PartialCoinsAmount.Equal(decimal.NewFromInt(5)),
		"partial fills carry over, got %s", state.PartialCoinsAmount)
	assert.Len(t, state.ToCancel, 1, "filled orders are not canceled")
}

func TestLifecycle_RepricesRestoredSell(t *testing.T) {
	lc := newLifecycle(testParams())
	state := testState(2, 2, 105)
	state.LimitDeposit = decimal.Zero
	state.Bought = domain.Orders{buyOrder("b1", 100, 10, domain.OrderStatusFilled)}
	state.New = domain.Orders{sellOrder("s1", 100.5, 10, domain.OrderStatusNew)}

	_, err := lc.Process(context.Background(), state)
	require.NoError(t, err)

	// a sell restored below market is lifted to market before placement
	assert.True(t, state.New[0].Price.Equal(decimal.NewFromInt(105)), "got %s", state.New[0].Price)
}
