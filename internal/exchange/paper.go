package exchange

import (
	"context"
	"log/slog"
	"sync"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/ivmartynov/ladderbot/internal/domain"
)

// PaperClient simulates a venue against real market data: placements and
// cancels always succeed and never leave the process, and limit orders fill
// when the streamed price crosses them. Market orders fill immediately at
// the current price.
type PaperClient struct {
	data   domain.ExchangeClient
	logger *slog.Logger

	mu     sync.Mutex
	orders map[string]*paperOrder
	prices map[string]decimal.Decimal
}

type paperOrder struct {
	side   domain.OrderSide
	price  decimal.Decimal
	qty    decimal.Decimal
	status domain.OrderStatus
}

// NewPaperClient wraps the given client for market data only; no order
// leaves the process.
func NewPaperClient(data domain.ExchangeClient, logger *slog.Logger) *PaperClient {
	return &PaperClient{
		data:   data,
		logger: logger.With(slog.String("component", "paper")),
		orders: make(map[string]*paperOrder),
		prices: make(map[string]decimal.Decimal),
	}
}

func (c *PaperClient) GetData(ctx context.Context, instrumentID, tickID string) (*domain.MarketSnapshot, error) {
	snapshot, err := c.data.GetData(ctx, instrumentID, tickID)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	c.prices[instrumentID] = snapshot.CurrentPrice
	c.settle(instrumentID, snapshot.CurrentPrice)
	c.mu.Unlock()

	return snapshot, nil
}

func (c *PaperClient) PlaceOrder(ctx context.Context, instrumentID string, order *domain.Order) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	order.ID = uuid.NewString()
	sim := &paperOrder{
		side:   order.Side,
		price:  order.Price,
		qty:    order.OriginalQty,
		status: domain.OrderStatusNew,
	}
	if order.Type == domain.OrderTypeMarket {
		if price, ok := c.prices[instrumentID]; ok {
			sim.price = price
		}
		sim.status = domain.OrderStatusFilled
	}
	c.orders[order.ID] = sim

	c.logger.Info("paper order placed",
		slog.String("instrument", instrumentID),
		slog.String("order", order.String()))
	return true
}

func (c *PaperClient) CancelOrder(ctx context.Context, instrumentID string, order *domain.Order) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if sim, ok := c.orders[order.ID]; ok && sim.status != domain.OrderStatusFilled {
		sim.status = domain.OrderStatusCanceled
	}
	return true
}

func (c *PaperClient) UpdateOrders(ctx context.Context, instrumentID string, orders domain.Orders, tickID string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, order := range orders {
		sim, ok := c.orders[order.ID]
		if !ok {
			continue
		}
		order.Status = sim.status
		if sim.status == domain.OrderStatusFilled {
			order.ExecutedQty = sim.qty
		}
	}
	return true
}

func (c *PaperClient) GetStatuses(ctx context.Context, instrumentID string, orderIDs []string) ([]domain.OrderStatusInfo, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	infos := make([]domain.OrderStatusInfo, 0, len(orderIDs))
	for _, id := range orderIDs {
		if sim, ok := c.orders[id]; ok {
			infos = append(infos, domain.OrderStatusInfo{ID: id, Status: sim.status})
		}
	}
	return infos, nil
}

// settle fills resting limit orders the current price has crossed. Caller
// holds the mutex.
func (c *PaperClient) settle(instrumentID string, price decimal.Decimal) {
	for _, sim := range c.orders {
		if sim.status != domain.OrderStatusNew {
			continue
		}
		filled := (sim.side == domain.OrderSideBuy && price.LessThanOrEqual(sim.price)) ||
			(sim.side == domain.OrderSideSell && price.GreaterThanOrEqual(sim.price))
		if filled {
			sim.status = domain.OrderStatusFilled
		}
	}
}
