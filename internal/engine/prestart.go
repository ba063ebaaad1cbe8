package engine

import (
	"context"
	"log/slog"

	"github.com/ivmartynov/ladderbot/internal/domain"
)

// OrdersSync reconciles a restored state against the venue before the first
// tick: orders canceled while the process was down move to the cancel set,
// orders that filled are marked filled with their full quantity executed.
type OrdersSync struct {
	client domain.ExchangeClient
	logger *slog.Logger
}

// NewOrdersSync creates the pre-start reconciliation step.
func NewOrdersSync(client domain.ExchangeClient, logger *slog.Logger) *OrdersSync {
	return &OrdersSync{client: client, logger: logger.With(slog.String("component", "orderssync"))}
}

func (o *OrdersSync) Name() string { return "orderssync" }

func (o *OrdersSync) PreStart(ctx context.Context, state *domain.TradeState) error {
	if state.Instrument == nil || len(state.Active) == 0 {
		return nil
	}

	byID := make(map[string]*domain.Order, len(state.Active))
	ids := make([]string, 0, len(state.Active))
	for _, order := range state.Active {
		byID[order.ID] = order
		ids = append(ids, order.ID)
	}

	statuses, err := o.client.GetStatuses(ctx, state.Instrument.ID, ids)
	if err != nil {
		// restored orders stay as-is; the first cycle's UpdateOrders
		// will resync them
		o.logger.Error("status fetch failed",
			slog.String("state_id", state.ID),
			slog.String("error", err.Error()))
		return nil
	}

	for _, info := range statuses {
		order, ok := byID[info.ID]
		if !ok {
			continue
		}
		switch info.Status {
		case domain.OrderStatusCanceled:
			state.CancelOrder(info.ID)
		case domain.OrderStatusFilled:
			order.Status = domain.OrderStatusFilled
			order.ExecutedQty = order.OriginalQty
		}
	}
	return nil
}
