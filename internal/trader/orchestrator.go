package trader

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/ivmartynov/ladderbot/internal/domain"
	"github.com/ivmartynov/ladderbot/internal/engine"
	"github.com/ivmartynov/ladderbot/internal/rebalance"
)

// Orchestrator drives the trading loop: once per tick it rebalances the
// shared budgets across all systems, then traverses each system's pipeline
// sequentially. The rebalancer is the only writer of the shared budgets, so
// the strictly sequential traversal order is a correctness requirement, not
// an optimization.
type Orchestrator struct {
	systems    []*engine.System
	rebalancer *rebalance.Rebalancer
	notifier   domain.Notifier
	updateRate time.Duration
	logger     *slog.Logger
}

// New creates the orchestrator over the given systems.
func New(systems []*engine.System, rebalancer *rebalance.Rebalancer, notifier domain.Notifier, updateRate time.Duration, logger *slog.Logger) *Orchestrator {
	return &Orchestrator{
		systems:    systems,
		rebalancer: rebalancer,
		notifier:   notifier,
		updateRate: updateRate,
		logger:     logger.With(slog.String("component", "orchestrator")),
	}
}

// Start runs every system's pre-start reconciliation concurrently; the
// tick loop does not begin until all of them finished.
func (o *Orchestrator) Start(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)
	for _, sys := range o.systems {
		sys := sys
		g.Go(func() error {
			if err := sys.Start(gctx); err != nil {
				return fmt.Errorf("start system %s: %w", sys.State().ID, err)
			}
			return nil
		})
	}
	return g.Wait()
}

// Run starts the systems and ticks until the context is canceled.
func (o *Orchestrator) Run(ctx context.Context) error {
	if err := o.Start(ctx); err != nil {
		return err
	}
	o.notifier.SendInfo(ctx, "trading started")
	o.logger.Info("trading started", slog.Int("systems", len(o.systems)))

	ticker := time.NewTicker(o.updateRate)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			o.notifier.SendInfo(context.WithoutCancel(ctx), "trading stopped")
			o.logger.Info("trading stopped")
			return ctx.Err()
		case <-ticker.C:
			o.Tick(ctx)
		}
	}
}

// Tick runs one full cycle: rebalance, reorder, traverse. A failing system
// is reported and skipped; the remaining systems still run.
func (o *Orchestrator) Tick(ctx context.Context) {
	states := make([]*domain.TradeState, len(o.systems))
	wasActive := make(map[string]bool, len(o.systems))
	for i, sys := range o.systems {
		states[i] = sys.State()
		wasActive[sys.State().ID] = sys.State().IsActive
	}

	o.rebalancer.Rebalance(states)
	for _, state := range states {
		if wasActive[state.ID] && !state.IsActive {
			o.notifier.SendAlert(ctx, domain.AlertStateDeactivated,
				"state deactivated: "+state.String())
		}
	}

	// cheaper syncs go first: fewer pending cancellations, then the
	// bigger budget
	sort.SliceStable(o.systems, func(i, j int) bool {
		a, b := o.systems[i].State(), o.systems[j].State()
		if len(a.ToCancel) != len(b.ToCancel) {
			return len(a.ToCancel) < len(b.ToCancel)
		}
		return a.LimitDeposit.GreaterThan(b.LimitDeposit)
	})

	tickID := uuid.NewString()
	for _, sys := range o.systems {
		if err := sys.Update(ctx, tickID); err != nil {
			o.logger.Error("cycle failed",
				slog.String("state_id", sys.State().ID),
				slog.String("error", err.Error()))
			o.notifier.SendAlert(ctx, domain.AlertInternalError,
				fmt.Sprintf("cycle failed for %s: %v", sys.State().ID, err))
		}
	}
}
