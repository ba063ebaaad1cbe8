package rebalance

import (
	"io"
	"log/slog"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ivmartynov/ladderbot/internal/config"
	"github.com/ivmartynov/ladderbot/internal/domain"
	"github.com/ivmartynov/ladderbot/internal/engine"
)

func testPolicy() Policy {
	return NewPolicy(config.RebalanceConfig{
		Normal:  config.RegimeOptions{PositionMargin: 2},
		RiskOn:  config.RegimeOptions{PositionMargin: 3},
		RiskOff: config.RegimeOptions{PositionMargin: 1},
	})
}

type fixedRegime struct{ regime domain.MarketRegime }

func (f fixedRegime) Current() domain.MarketRegime { return f.regime }

func newTestRebalancer(globalDeposit float64, regime domain.MarketRegime) *Rebalancer {
	params := engine.Params{
		OrdersCount:       4,
		MartinPercent:     decimal.NewFromInt(20),
		DepositOrder:      decimal.NewFromInt(100),
		MaxStateCount:     3,
		StretchStartOrder: 5,
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return New(decimal.NewFromFloat(globalDeposit), testPolicy(), fixedRegime{regime}, engine.NewDepthCalculator(params), logger)
}

func newTradeState(id, symbol string) *domain.TradeState {
	inst := domain.NewInstrument(symbol, 2, 2)
	return &domain.TradeState{
		ID:            id,
		Instrument:    &inst,
		IsActive:      true,
		WorkMode:      domain.WorkModeFull,
		MaxOrderCount: 4,
		Market:        &domain.MarketSnapshot{CurrentPrice: decimal.NewFromInt(100), Available: true},
	}
}

func filledBuy(price, qty float64) *domain.Order {
	p := decimal.NewFromFloat(price)
	q := decimal.NewFromFloat(qty)
	return &domain.Order{
		ID:          "b",
		Side:        domain.OrderSideBuy,
		Status:      domain.OrderStatusFilled,
		Type:        domain.OrderTypeLimit,
		Price:       p,
		OriginalQty: q,
		ExecutedQty: q,
	}
}

func TestRebalance_NeverExceedsGlobalDeposit(t *testing.T) {
	r := newTestRebalancer(1000, domain.RegimeNormal)
	states := []*domain.TradeState{
		newTradeState("s1", "BTCUSDT"),
		newTradeState("s2", "ETHUSDT"),
		newTradeState("s3", "SOLUSDT"),
	}

	r.Rebalance(states)

	granted := decimal.Zero
	for _, s := range states {
		granted = granted.Add(s.LimitDeposit)
	}
	assert.True(t, granted.LessThanOrEqual(decimal.NewFromInt(1000)),
		"granted %s over a budget of 1000", granted)
}

func TestRebalance_InDealServicedFirst(t *testing.T) {
	r := newTestRebalancer(400, domain.RegimeNormal)

	inDeal := newTradeState("s1", "BTCUSDT")
	inDeal.Bought = domain.Orders{filledBuy(100, 1)}
	free := newTradeState("s2", "ETHUSDT")

	r.Rebalance([]*domain.TradeState{free, inDeal})

	// 400 covers the in-deal position's target but nothing more
	assert.True(t, inDeal.LimitDeposit.Equal(decimal.NewFromInt(400)),
		"in-deal state gets the whole remaining budget, got %s", inDeal.LimitDeposit)
	assert.True(t, inDeal.IsActive)

	assert.False(t, free.IsActive, "free state must be deactivated when the budget ran out")
	assert.True(t, free.LimitDeposit.IsZero())
}

func TestRebalance_FreeStateFundedWhenBudgetAllows(t *testing.T) {
	r := newTestRebalancer(1000, domain.RegimeNormal)
	free := newTradeState("s1", "BTCUSDT")

	r.Rebalance([]*domain.TradeState{free})

	// margin 2 prices a three-rung ladder: 100 + 120 + 144
	assert.True(t, free.LimitDeposit.Equal(decimal.NewFromInt(364)),
		"got %s", free.LimitDeposit)
	assert.True(t, free.IsActive)
	assert.Equal(t, 2, free.MaxBuyDepth)
}

func TestRebalance_DeactivatesWhenDepthExhausted(t *testing.T) {
	// a budget below one rung affords zero depth for everyone
	r := newTestRebalancer(50, domain.RegimeNormal)
	free := newTradeState("s1", "BTCUSDT")
	free.Active = domain.Orders{
		{ID: "b1", Side: domain.OrderSideBuy, Status: domain.OrderStatusNew,
			Price: decimal.NewFromInt(99), OriginalQty: decimal.NewFromInt(1)},
	}

	r.Rebalance([]*domain.TradeState{free})

	assert.False(t, free.IsActive)
	assert.Empty(t, free.Active, "deactivation cancels open orders")
	assert.Len(t, free.ToCancel, 1)
}

func TestRebalance_DuplicateFreeInstrumentsCollapse(t *testing.T) {
	r := newTestRebalancer(1000, domain.RegimeNormal)
	first := newTradeState("s1", "BTCUSDT")
	second := newTradeState("s2", "BTCUSDT")

	r.Rebalance([]*domain.TradeState{first, second})

	funded := 0
	for _, s := range []*domain.TradeState{first, second} {
		if !s.LimitDeposit.IsZero() {
			funded++
		}
	}
	assert.Equal(t, 1, funded, "one free slot per instrument")
}

func TestRebalance_SkipsUnassignedStates(t *testing.T) {
	r := newTestRebalancer(1000, domain.RegimeNormal)
	unassigned := &domain.TradeState{ID: "s1", IsActive: true}

	require.NotPanics(t, func() {
		r.Rebalance([]*domain.TradeState{unassigned})
	})
	assert.True(t, unassigned.LimitDeposit.IsZero())
}
