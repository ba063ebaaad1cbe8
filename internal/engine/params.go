// Package engine implements the per-instrument trading pipeline: the
// martingale depth and deposit math, the laddered buy planner, the order
// lifecycle decision stages, adaptive parameter tuning, stoploss, session
// handling, exchange synchronization, and persistence checkpoints.
package engine

import (
	"github.com/shopspring/decimal"

	"github.com/ivmartynov/ladderbot/internal/config"
)

// Params carries the strategy configuration as decimals. It is built once at
// startup and shared read-only by every pipeline stage.
type Params struct {
	OrdersCount         int
	MartinPercent       decimal.Decimal
	FirstStepDeviation  decimal.Decimal
	PercentStep         decimal.Decimal
	TakeProfit          decimal.Decimal
	ReloadOrdersPercent decimal.Decimal
	DepositOrder        decimal.Decimal
	LimitDeposit        decimal.Decimal
	FeePercent          decimal.Decimal
	MaxStateCount       int

	// Stretch widens ladder spacing: rungs numbered StretchStartOrder and
	// later step down by the previous step plus PlusStep instead of the
	// flat PercentStep.
	PlusStep          decimal.Decimal
	StretchStartOrder int
}

// ParamsFromConfig converts the float-typed TOML config into decimal
// parameters.
func ParamsFromConfig(cfg config.TradingConfig) Params {
	return Params{
		OrdersCount:         cfg.OrdersCount,
		MartinPercent:       decimal.NewFromInt(int64(cfg.MartinPercent)),
		FirstStepDeviation:  decimal.NewFromFloat(cfg.FirstStepDeviation),
		PercentStep:         decimal.NewFromFloat(cfg.PercentStep),
		TakeProfit:          decimal.NewFromFloat(cfg.TakeProfit),
		ReloadOrdersPercent: decimal.NewFromFloat(cfg.ReloadOrdersPercent),
		DepositOrder:        decimal.NewFromFloat(cfg.DepositOrder),
		LimitDeposit:        decimal.NewFromFloat(cfg.LimitDeposit),
		FeePercent:          decimal.NewFromFloat(cfg.FeePercent),
		MaxStateCount:       cfg.MaxStateCount,
		PlusStep:            decimal.NewFromFloat(cfg.PlusStep),
		StretchStartOrder:   cfg.StretchStartOrder,
	}
}

var (
	one     = decimal.NewFromInt(1)
	hundred = decimal.NewFromInt(100)
)
