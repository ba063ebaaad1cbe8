// Package rebalance implements the cross-instrument resource allocator: it
// partitions the global deposit and the global buy-depth budget among all
// managed states once per cycle, before the pipeline traversals.
package rebalance

import (
	"log/slog"
	"math"
	"sort"

	"github.com/shopspring/decimal"

	"github.com/ivmartynov/ladderbot/internal/config"
	"github.com/ivmartynov/ladderbot/internal/domain"
	"github.com/ivmartynov/ladderbot/internal/engine"
)

// Policy maps the current market regime to the per-position depth margin.
type Policy struct {
	cfg config.RebalanceConfig
}

// NewPolicy creates the policy table from config.
func NewPolicy(cfg config.RebalanceConfig) Policy {
	return Policy{cfg: cfg}
}

// PositionMargin returns the buy-slot target for one position under the
// given regime.
func (p Policy) PositionMargin(regime domain.MarketRegime) int {
	switch regime {
	case domain.RegimeRiskOn:
		return p.cfg.RiskOn.PositionMargin
	case domain.RegimeRiskOff:
		return p.cfg.RiskOff.PositionMargin
	default:
		return p.cfg.Normal.PositionMargin
	}
}

// Rebalancer is the single writer of every state's LimitDeposit and
// IsActive. In-deal states always get first claim on both depth and
// deposit; free states take what remains or are deactivated.
type Rebalancer struct {
	globalDeposit decimal.Decimal
	policy        Policy
	regime        domain.RegimeProvider
	depth         *engine.DepthCalculator
	logger        *slog.Logger
}

// New creates a rebalancer over the global deposit budget.
func New(globalDeposit decimal.Decimal, policy Policy, regime domain.RegimeProvider, depth *engine.DepthCalculator, logger *slog.Logger) *Rebalancer {
	return &Rebalancer{
		globalDeposit: globalDeposit,
		policy:        policy,
		regime:        regime,
		depth:         depth,
		logger:        logger.With(slog.String("component", "rebalance")),
	}
}

// Rebalance distributes the deposit and depth budgets over the given
// states. Every state's MaxBuyDepth is recomputed at the end regardless of
// the branch taken for it.
func (r *Rebalancer) Rebalance(states []*domain.TradeState) {
	ready := make([]*domain.TradeState, 0, len(states))
	for _, s := range states {
		if s.Instrument != nil {
			ready = append(ready, s)
		}
	}
	sort.SliceStable(ready, func(i, j int) bool {
		return ready[i].SpentDeposit().GreaterThan(ready[j].SpentDeposit())
	})

	var inDeal, free []*domain.TradeState
	seen := make(map[string]bool)
	for _, s := range ready {
		if s.InDeal() {
			inDeal = append(inDeal, s)
			continue
		}
		// one free state per instrument is enough
		if seen[s.Instrument.ID] {
			continue
		}
		seen[s.Instrument.ID] = true
		free = append(free, s)
	}

	availableDepth := r.maxDepth(ready)
	availableDeposit := r.globalDeposit
	margin := r.policy.PositionMargin(r.regime.Current())

	availableDepth, availableDeposit = r.allocateInDeal(inDeal, free, availableDepth, availableDeposit, margin)
	r.allocateFree(free, availableDepth, availableDeposit, margin)

	for _, s := range states {
		r.depth.Recalculate(s)
	}
}

// maxDepth is the system-wide depth ceiling: the smallest depth any single
// instrument could reach if granted the whole global budget alone. No state
// may assume more capacity than the worst-case instrument supports.
func (r *Rebalancer) maxDepth(ready []*domain.TradeState) int {
	minDepth := math.MaxInt
	for _, s := range ready {
		s.LimitDeposit = r.globalDeposit
		if d := r.depth.CalculateBuyDepth(s); d < minDepth {
			minDepth = d
		}
		s.LimitDeposit = decimal.Zero
	}
	if minDepth == math.MaxInt {
		return 0
	}
	return minDepth
}

func (r *Rebalancer) allocateInDeal(inDeal, free []*domain.TradeState, availableDepth int, availableDeposit decimal.Decimal, margin int) (int, decimal.Decimal) {
	for _, state := range inDeal {
		executedCount := len(state.Bought)
		buyCount := len(state.Active.Buys())
		needCount := margin - buyCount

		availableDepth -= executedCount

		// reclaim slots from free states when the budget runs short
		if availableDepth-needCount < 0 {
			extraDepth := needCount - availableDepth
			received := 0
			for received < extraDepth {
				extra := firstActive(free)
				if extra == nil {
					break
				}
				received += len(extra.Active.Buys())
				r.deactivate(extra)
			}
			availableDepth += received
		}

		if availableDepth-needCount < 0 {
			needCount = availableDepth
		}

		totalDepth := executedCount + buyCount + needCount
		limitDeposit := r.depth.CalculateLimitDeposit(state, totalDepth)
		if availableDeposit.GreaterThanOrEqual(limitDeposit) {
			state.LimitDeposit = limitDeposit
			availableDeposit = availableDeposit.Sub(limitDeposit)
		} else {
			if availableDeposit.GreaterThanOrEqual(decimal.Zero) {
				state.LimitDeposit = availableDeposit
			}
			availableDeposit = decimal.Zero
		}
	}
	return availableDepth, availableDeposit
}

func (r *Rebalancer) allocateFree(free []*domain.TradeState, availableDepth int, availableDeposit decimal.Decimal, margin int) {
	for _, state := range free {
		if availableDepth-margin < 0 {
			r.deactivate(state)
			continue
		}

		availableDepth -= margin
		limitDeposit := r.depth.CalculateLimitDeposit(state, margin)
		if availableDeposit.GreaterThanOrEqual(limitDeposit) {
			state.LimitDeposit = limitDeposit
			availableDeposit = availableDeposit.Sub(limitDeposit)
			state.IsActive = true
		} else {
			r.deactivate(state)
		}
	}
}

func (r *Rebalancer) deactivate(state *domain.TradeState) {
	r.logger.Info("state deactivated",
		slog.String("state_id", state.ID),
		slog.String("instrument", state.Instrument.String()))
	state.CancelActiveOrders(true)
	state.IsActive = false
}

func firstActive(states []*domain.TradeState) *domain.TradeState {
	for _, s := range states {
		if s.IsActive {
			return s
		}
	}
	return nil
}
