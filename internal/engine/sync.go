package engine

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	"github.com/ivmartynov/ladderbot/internal/domain"
)

// ExchangeSync is the venue boundary stage. On the way in it refreshes the
// market snapshot and the active orders; on the way out it commits the
// cycle's decisions: cancellations first, then placements. A failed
// cancellation rolls the whole cycle back for this instance so a
// half-applied change is never persisted.
type ExchangeSync struct {
	client   domain.ExchangeClient
	store    domain.StateStore
	notifier domain.Notifier
	logger   *slog.Logger
}

// NewExchangeSync creates the sync stage.
func NewExchangeSync(client domain.ExchangeClient, store domain.StateStore, notifier domain.Notifier, logger *slog.Logger) *ExchangeSync {
	return &ExchangeSync{
		client:   client,
		store:    store,
		notifier: notifier,
		logger:   logger.With(slog.String("component", "sync")),
	}
}

func (s *ExchangeSync) Name() string { return "sync" }

// Process pulls reality in: current market data plus the venue-side status
// and executed quantity of every active order.
func (s *ExchangeSync) Process(ctx context.Context, state *domain.TradeState) (Flow, error) {
	if state.Instrument == nil {
		return FlowContinue, nil
	}

	snapshot, err := s.client.GetData(ctx, state.Instrument.ID, state.TickID)
	if err != nil {
		s.logger.Warn("market data fetch failed",
			slog.String("state_id", state.ID),
			slog.String("error", err.Error()))
	} else {
		state.Market = snapshot
	}

	s.client.UpdateOrders(ctx, state.Instrument.ID, state.Active, state.TickID)
	s.logger.Info(state.String())
	return FlowContinue, nil
}

// Finalize pushes the cycle's decisions out. Cancellations run in
// descending price order and fully before any placement; if one fails the
// state is rolled back and the cycle ends without placing anything.
func (s *ExchangeSync) Finalize(ctx context.Context, state *domain.TradeState) error {
	if state.Instrument == nil {
		return nil
	}

	if !s.cancelOrders(ctx, state) {
		s.rollback(state)
		return nil
	}

	state.Active = state.Active.WithoutStatus(domain.OrderStatusFilled)
	s.placeOrders(ctx, state)
	state.ToCancel = nil
	return nil
}

func (s *ExchangeSync) cancelOrders(ctx context.Context, state *domain.TradeState) bool {
	pending := append(domain.Orders{}, state.ToCancel...)
	sort.SliceStable(pending, func(i, j int) bool {
		return pending[i].Price.GreaterThan(pending[j].Price)
	})

	for _, order := range pending {
		if order.Status != domain.OrderStatusCanceled {
			if !s.client.CancelOrder(ctx, state.Instrument.ID, order) {
				return false
			}
		}
		state.ToCancel = removeOrder(state.ToCancel, order)
		s.save(ctx, state)
	}
	return true
}

// rollback restores the pre-decision shape: canceled orders go back to
// active, queued placements are discarded, and the next cycle's
// UpdateOrders resyncs reality.
func (s *ExchangeSync) rollback(state *domain.TradeState) {
	s.logger.Warn("cancel failed, rolling cycle back", slog.String("state_id", state.ID))
	state.Active = state.Active.WithoutStatus(domain.OrderStatusFilled)
	state.Active = append(state.Active, state.ToCancel...)
	state.New = nil
	state.ToCancel = nil
}

func (s *ExchangeSync) placeOrders(ctx context.Context, state *domain.TradeState) {
	// No snapshot yet: the instrument was assigned mid-cycle or the market
	// data fetch failed. Placements stay queued until the next tick fills
	// Market in.
	if state.Market == nil {
		if len(state.New) > 0 {
			s.logger.Warn("no market snapshot, deferring placements",
				slog.String("state_id", state.ID))
		}
		return
	}
	currentPrice := state.Market.CurrentPrice

	for _, order := range append(domain.Orders{}, state.New...) {
		if !state.CanPlaceOrder(order) {
			continue
		}

		// never float a sell below the market
		if order.Side == domain.OrderSideSell && order.Price.LessThan(currentPrice) {
			order.Price = currentPrice
		}

		if !s.client.PlaceOrder(ctx, state.Instrument.ID, order) {
			s.notifier.SendAlert(ctx, domain.AlertOrderRejected,
				fmt.Sprintf("order placement failed:\n%s", order))
			continue
		}
		state.Active = append(state.Active, order)
		state.New = removeOrder(state.New, order)
		s.save(ctx, state)
	}
}

func (s *ExchangeSync) save(ctx context.Context, state *domain.TradeState) {
	if err := s.store.Save(ctx, state); err != nil {
		s.logger.Error("state save failed",
			slog.String("state_id", state.ID),
			slog.String("error", err.Error()))
	}
}

func removeOrder(orders domain.Orders, target *domain.Order) domain.Orders {
	for i, o := range orders {
		if o == target {
			return append(orders[:i], orders[i+1:]...)
		}
	}
	return orders
}
