package domain

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newDealState() *TradeState {
	inst := NewInstrument("BTCUSDT", 2, 2)
	return &TradeState{
		ID:            "s1",
		Instrument:    &inst,
		IsActive:      true,
		WorkMode:      WorkModeFull,
		MaxOrderCount: 4,
		MaxBuyDepth:   3,
		TakeProfit:    decimal.NewFromFloat(0.5),
		FeePercent:    decimal.NewFromFloat(0.05),
	}
}

func TestTakeProfitPrice(t *testing.T) {
	state := newDealState()
	state.Bought = Orders{
		{Side: OrderSideBuy, Status: OrderStatusFilled,
			Price:       decimal.NewFromInt(10),
			OriginalQty: decimal.NewFromInt(10),
			ExecutedQty: decimal.NewFromInt(10)},
	}

	// spent 100, margin 0.5%, sell fee 0.05%:
	// 100 * 1.005 * 1.0005 / 10 = 10.055025 -> 10.06
	price, err := state.TakeProfitPrice()
	require.NoError(t, err)
	assert.True(t, price.Equal(decimal.NewFromFloat(10.06)), "got %s", price)
}

func TestTakeProfitPrice_Errors(t *testing.T) {
	state := newDealState()
	_, err := state.TakeProfitPrice()
	assert.ErrorIs(t, err, ErrInvariant)

	state.Instrument = nil
	_, err = state.TakeProfitPrice()
	assert.ErrorIs(t, err, ErrNoInstrument)
}

func TestCancelActiveOrders_PreservesPartialFills(t *testing.T) {
	state := newDealState()
	partial := &Order{ID: "b1", Side: OrderSideBuy, Status: OrderStatusPartiallyFilled,
		Price: decimal.NewFromInt(99), OriginalQty: decimal.NewFromInt(10),
		ExecutedQty: decimal.NewFromInt(4)}
	filled := &Order{ID: "b2", Side: OrderSideBuy, Status: OrderStatusFilled,
		Price: decimal.NewFromInt(100), OriginalQty: decimal.NewFromInt(10),
		ExecutedQty: decimal.NewFromInt(10)}
	state.Active = Orders{partial, filled}
	state.Bought = Orders{filled}

	state.CancelActiveOrders(true)

	assert.True(t, state.PartialCoinsAmount.Equal(decimal.NewFromInt(4)))
	assert.Len(t, state.ToCancel, 1, "filled orders are never canceled")
	assert.Len(t, state.Active, 1)
	assert.Empty(t, state.Bought, "clearBought ends the deal")
}

func TestAssignInstrument(t *testing.T) {
	state := newDealState()
	state.Active = Orders{{ID: "b1", Side: OrderSideBuy, Status: OrderStatusNew}}

	eth := NewInstrument("ETHUSDT", 2, 2)
	err := state.AssignInstrument(&eth, nil)
	assert.ErrorIs(t, err, ErrOrdersOutstanding)

	state.Active = nil
	require.NoError(t, state.AssignInstrument(&eth, &SignalInfo{InstantBuy: true}))
	assert.Equal(t, "ETHUSDT", state.Instrument.ID)
	assert.Nil(t, state.LastDealSetTime)
	assert.True(t, state.InstantFirstBuy())
}

func TestFirstBuyOrder_PrefersBoughtAndHighestPrice(t *testing.T) {
	state := newDealState()
	state.New = Orders{{ID: "n1", Side: OrderSideBuy, Price: decimal.NewFromInt(101)}}
	state.Active = Orders{{ID: "a1", Side: OrderSideBuy, Price: decimal.NewFromInt(102)}}
	state.Bought = Orders{
		{ID: "b1", Side: OrderSideBuy, Price: decimal.NewFromInt(98)},
		{ID: "b2", Side: OrderSideBuy, Price: decimal.NewFromInt(100)},
	}

	first := state.FirstBuyOrder()
	require.NotNil(t, first)
	assert.Equal(t, "b2", first.ID)
}

func TestLastBuyOrders_AscendingLowest(t *testing.T) {
	state := newDealState()
	state.New = Orders{
		{ID: "n1", Side: OrderSideBuy, Price: decimal.NewFromInt(97)},
		{ID: "n2", Side: OrderSideBuy, Price: decimal.NewFromInt(99)},
		{ID: "n3", Side: OrderSideBuy, Price: decimal.NewFromInt(98)},
		{ID: "s1", Side: OrderSideSell, Price: decimal.NewFromInt(90)},
	}

	last := state.LastBuyOrders(2)
	require.Len(t, last, 2)
	assert.Equal(t, "n1", last[0].ID)
	assert.Equal(t, "n3", last[1].ID)
}

func TestCanAddNewBuyOrder(t *testing.T) {
	state := newDealState()
	state.Market = &MarketSnapshot{CurrentPrice: decimal.NewFromInt(100)}
	assert.True(t, state.CanAddNewBuyOrder())

	state.WorkMode = WorkModePostMarket
	assert.False(t, state.CanAddNewBuyOrder(), "buys only in the full session")
	state.WorkMode = WorkModeFull

	state.IsActive = false
	assert.False(t, state.CanAddNewBuyOrder())
	state.IsActive = true

	state.MaxBuyDepth = 0
	assert.False(t, state.CanAddNewBuyOrder())
}

func TestAddNewBuyOrder_ClampsAboveMarket(t *testing.T) {
	state := newDealState()
	state.Market = &MarketSnapshot{CurrentPrice: decimal.NewFromInt(95)}

	order := &Order{Side: OrderSideBuy, Price: decimal.NewFromInt(99),
		OriginalQty: decimal.NewFromInt(10)}
	require.NoError(t, state.AddNewBuyOrder(order))
	assert.True(t, order.Price.Equal(decimal.NewFromInt(95)))

	err := state.AddNewBuyOrder(&Order{Side: OrderSideSell})
	assert.ErrorIs(t, err, ErrInvariant)
}

func TestResetForResubmit(t *testing.T) {
	sell := &Order{Side: OrderSideSell, Status: OrderStatusPartiallyFilled,
		OriginalQty: decimal.NewFromInt(12), ExecutedQty: decimal.NewFromInt(2)}
	require.NoError(t, sell.ResetForResubmit())
	assert.True(t, sell.OriginalQty.Equal(decimal.NewFromInt(10)))
	assert.True(t, sell.ExecutedQty.IsZero())

	buy := &Order{Side: OrderSideBuy}
	assert.ErrorIs(t, buy.ResetForResubmit(), ErrInvariant)
}
