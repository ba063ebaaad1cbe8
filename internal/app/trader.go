package app

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/ivmartynov/ladderbot/internal/engine"
	"github.com/ivmartynov/ladderbot/internal/rebalance"
	"github.com/ivmartynov/ladderbot/internal/trader"
)

// closedBackoff is the pause before re-checking a closed venue.
const closedBackoff = time.Minute

// buildOrchestrator restores persisted trading states, tops them up to the
// configured slot count, and assembles one pipeline system per slot.
func (a *App) buildOrchestrator(ctx context.Context, deps *Dependencies) (*trader.Orchestrator, error) {
	params := engine.ParamsFromConfig(a.cfg.Trading)
	depth := engine.NewDepthCalculator(params)
	planner := engine.NewLadderPlanner(params)

	restored, err := deps.States.GetAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("restore states: %w", err)
	}
	for _, state := range restored {
		if state.Instrument != nil {
			deps.Signals.Claim(state.ID, state.Instrument.ID)
		}
	}

	states := trader.BuildStates(params, restored, deps.Signals.Signals())

	systems := make([]*engine.System, 0, len(states))
	for _, state := range states {
		system := engine.NewSystem(state, a.logger).
			AddPreStart(engine.NewOrdersSync(deps.Exchange, a.logger)).
			Add(engine.NewPersistState(deps.States)).
			Add(engine.NewExchangeSync(deps.Exchange, deps.States, deps.Notifier, a.logger)).
			Add(engine.NewPostMarketReconciler(a.logger)).
			Add(engine.NewWorkModeGate(deps.WorkMode, closedBackoff, a.logger)).
			Add(engine.NewSignalGate(deps.Signals, a.logger)).
			Add(engine.NewLifecycle(params, depth, planner, a.logger)).
			Add(engine.NewAdjuster(params)).
			Add(engine.NewStoploss(a.logger)).
			Add(engine.NewProfitRecorder(deps.Deals, deps.Notifier, a.logger))
		systems = append(systems, system)
	}

	rebalancer := rebalance.New(
		decimal.NewFromFloat(a.cfg.Trading.LimitDeposit),
		rebalance.NewPolicy(a.cfg.Rebalance),
		deps.Regime,
		depth,
		a.logger,
	)

	return trader.New(systems, rebalancer, deps.Notifier, a.cfg.Trading.UpdateRate.Duration, a.logger), nil
}
