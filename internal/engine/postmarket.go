package engine

import (
	"context"
	"log/slog"

	"github.com/ivmartynov/ladderbot/internal/domain"
)

// PostMarketReconciler cleans a state up when the session is over: the
// active sell order is converted back into a resubmittable new order and the
// remaining active orders are canceled, keeping the bought ledger so the
// next session resumes the deal. When fills happened this cycle but no sell
// exists yet, the stage defers: the rest of the pipeline runs once more to
// reach a stable state and the cleanup retries on the way back out.
type PostMarketReconciler struct {
	logger *slog.Logger
}

// NewPostMarketReconciler creates the reconciler.
func NewPostMarketReconciler(logger *slog.Logger) *PostMarketReconciler {
	return &PostMarketReconciler{logger: logger.With(slog.String("component", "postmarket"))}
}

func (r *PostMarketReconciler) Name() string { return "postmarket" }

func (r *PostMarketReconciler) Process(ctx context.Context, state *domain.TradeState) (Flow, error) {
	if !r.applies(state) {
		return FlowContinue, nil
	}
	if done, err := r.reconcile(state); err != nil {
		return FlowHalt, err
	} else if done {
		return FlowHalt, nil
	}
	return FlowContinue, nil
}

// Finalize retries the cleanup after the downstream stages settled the
// state. A still-unstable state simply waits for the next cycle.
func (r *PostMarketReconciler) Finalize(ctx context.Context, state *domain.TradeState) error {
	if !r.applies(state) {
		return nil
	}
	_, err := r.reconcile(state)
	return err
}

func (r *PostMarketReconciler) applies(state *domain.TradeState) bool {
	return state.WorkMode == domain.WorkModePostMarket || state.WorkMode == domain.WorkModeClosed
}

// reconcile reports whether the state is stable. False means fills are
// pending without a covering sell and another pipeline pass is needed.
func (r *PostMarketReconciler) reconcile(state *domain.TradeState) (bool, error) {
	if len(state.Active) == 0 {
		return true, nil
	}

	// something bought but the covering sell was not created yet
	if state.Active.Buys().InDeal() && len(state.Active.Sells()) == 0 {
		return false, nil
	}

	if sell := state.Active.First(func(o *domain.Order) bool { return o.Side == domain.OrderSideSell }); sell != nil {
		if err := sell.ResetForResubmit(); err != nil {
			return true, err
		}
		if err := state.AddNewSellOrder(sell); err != nil {
			return true, err
		}
	}

	r.logger.Info("post-market cleanup", slog.String("state_id", state.ID))
	state.CancelActiveOrders(false)
	return true, nil
}
