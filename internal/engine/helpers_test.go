package engine

import (
	"io"
	"log/slog"

	"github.com/shopspring/decimal"

	"github.com/ivmartynov/ladderbot/internal/domain"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testParams() Params {
	return Params{
		OrdersCount:         4,
		MartinPercent:       decimal.NewFromInt(20),
		FirstStepDeviation:  decimal.NewFromInt(1),
		PercentStep:         decimal.NewFromInt(1),
		TakeProfit:          decimal.NewFromFloat(0.5),
		ReloadOrdersPercent: decimal.NewFromFloat(0.35),
		DepositOrder:        decimal.NewFromInt(1000),
		LimitDeposit:        decimal.NewFromInt(3000),
		FeePercent:          decimal.Zero,
		MaxStateCount:       3,
		PlusStep:            decimal.Zero,
		StretchStartOrder:   5,
	}
}

// testState builds an active state over an instrument with the given scales,
// sitting at the given market price.
func testState(qtyScale, priceScale int32, price float64) *domain.TradeState {
	inst := domain.NewInstrument("BTCUSDT", qtyScale, priceScale)
	return &domain.TradeState{
		ID:                 "state-1",
		Instrument:         &inst,
		IsActive:           true,
		WorkMode:           domain.WorkModeFull,
		MaxOrderCount:      4,
		MaxBuyDepth:        3,
		TakeProfit:         decimal.NewFromFloat(0.5),
		FirstStepDeviation: decimal.NewFromInt(1),
		FeePercent:         decimal.Zero,
		LimitDeposit:       decimal.NewFromInt(3000),
		Market:             &domain.MarketSnapshot{CurrentPrice: decimal.NewFromFloat(price), Available: true},
	}
}

func buyOrder(id string, price, qty float64, status domain.OrderStatus) *domain.Order {
	o := &domain.Order{
		ID:          id,
		Symbol:      "BTCUSDT",
		Side:        domain.OrderSideBuy,
		Status:      status,
		Type:        domain.OrderTypeLimit,
		TimeInForce: domain.TimeInForceGTC,
		Price:       decimal.NewFromFloat(price),
		OriginalQty: decimal.NewFromFloat(qty),
	}
	if status == domain.OrderStatusFilled {
		o.ExecutedQty = o.OriginalQty
	}
	return o
}

func sellOrder(id string, price, qty float64, status domain.OrderStatus) *domain.Order {
	o := &domain.Order{
		ID:          id,
		Symbol:      "BTCUSDT",
		Side:        domain.OrderSideSell,
		Status:      status,
		Type:        domain.OrderTypeLimit,
		TimeInForce: domain.TimeInForceGTC,
		Price:       decimal.NewFromFloat(price),
		OriginalQty: decimal.NewFromFloat(qty),
	}
	if status == domain.OrderStatusFilled {
		o.ExecutedQty = o.OriginalQty
	}
	return o
}
