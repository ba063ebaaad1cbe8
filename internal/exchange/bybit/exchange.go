package bybit

import (
	"context"
	"log/slog"
	"net/http"
	"net/url"

	"github.com/shopspring/decimal"

	"github.com/ivmartynov/ladderbot/internal/domain"
)

// GetData returns the current market snapshot: the latest price (websocket
// ticker when hot, REST fallback) plus the top of the orderbook. The tick
// id is unused here; deduplication within a cycle belongs to the caching
// decorator.
func (c *Client) GetData(ctx context.Context, instrumentID, _ string) (*domain.MarketSnapshot, error) {
	price, ok := c.ticker.lastPrice(instrumentID)
	if !ok {
		restPrice, err := c.fetchPrice(ctx, instrumentID)
		if err != nil {
			return nil, err
		}
		price = restPrice
		c.ticker.subscribe(instrumentID)
	}

	bids, asks, err := c.fetchOrderbook(ctx, instrumentID)
	if err != nil {
		c.logger.Warn("orderbook fetch failed",
			slog.String("instrument", instrumentID),
			slog.String("error", err.Error()))
	}

	return &domain.MarketSnapshot{
		CurrentPrice: price,
		Available:    true,
		Bids:         bids,
		Asks:         asks,
	}, nil
}

// PlaceOrder submits the order and fills in the venue-assigned id.
func (c *Client) PlaceOrder(ctx context.Context, instrumentID string, order *domain.Order) bool {
	body := map[string]any{
		"category":    "spot",
		"symbol":      instrumentID,
		"side":        sideToAPI(order.Side),
		"orderType":   typeToAPI(order.Type),
		"qty":         order.OriginalQty.String(),
		"timeInForce": string(order.TimeInForce),
	}
	if order.Type == domain.OrderTypeLimit {
		body["price"] = order.Price.String()
	}

	var resp response[struct {
		OrderID string `json:"orderId"`
	}]
	if err := c.doRequest(ctx, http.MethodPost, "/v5/order/create", nil, body, true, &resp); err != nil {
		c.logger.Error("place order failed",
			slog.String("instrument", instrumentID),
			slog.String("error", err.Error()))
		return false
	}
	order.ID = resp.Result.OrderID
	return true
}

// CancelOrder cancels the order on the venue.
func (c *Client) CancelOrder(ctx context.Context, instrumentID string, order *domain.Order) bool {
	body := map[string]any{
		"category": "spot",
		"symbol":   instrumentID,
		"orderId":  order.ID,
	}
	var resp response[struct{}]
	if err := c.doRequest(ctx, http.MethodPost, "/v5/order/cancel", nil, body, true, &resp); err != nil {
		c.logger.Error("cancel order failed",
			slog.String("instrument", instrumentID),
			slog.String("order_id", order.ID),
			slog.String("error", err.Error()))
		return false
	}
	return true
}

// UpdateOrders refreshes status and executed quantity of the given orders
// in place from the venue's realtime order list.
func (c *Client) UpdateOrders(ctx context.Context, instrumentID string, orders domain.Orders, _ string) bool {
	if len(orders) == 0 {
		return true
	}

	venue, err := c.fetchOrders(ctx, instrumentID)
	if err != nil {
		c.logger.Error("update orders failed",
			slog.String("instrument", instrumentID),
			slog.String("error", err.Error()))
		return false
	}

	for _, order := range orders {
		v, ok := venue[order.ID]
		if !ok {
			continue
		}
		order.Status = v.status
		order.ExecutedQty = v.executedQty
	}
	return true
}

// GetStatuses fetches the venue-side status of the given order ids.
func (c *Client) GetStatuses(ctx context.Context, instrumentID string, orderIDs []string) ([]domain.OrderStatusInfo, error) {
	venue, err := c.fetchOrders(ctx, instrumentID)
	if err != nil {
		return nil, err
	}

	infos := make([]domain.OrderStatusInfo, 0, len(orderIDs))
	for _, id := range orderIDs {
		if v, ok := venue[id]; ok {
			infos = append(infos, domain.OrderStatusInfo{ID: id, Status: v.status})
		}
	}
	return infos, nil
}

type venueOrder struct {
	status      domain.OrderStatus
	executedQty decimal.Decimal
}

// fetchOrders reads recent orders for the symbol keyed by id. The history
// endpoint is included because filled and canceled orders leave the
// realtime list.
func (c *Client) fetchOrders(ctx context.Context, instrumentID string) (map[string]venueOrder, error) {
	out := make(map[string]venueOrder)
	for _, path := range []string{"/v5/order/realtime", "/v5/order/history"} {
		params := url.Values{}
		params.Set("category", "spot")
		params.Set("symbol", instrumentID)

		var resp response[struct {
			List []struct {
				OrderID     string `json:"orderId"`
				OrderStatus string `json:"orderStatus"`
				CumExecQty  string `json:"cumExecQty"`
			} `json:"list"`
		}]
		if err := c.doRequest(ctx, http.MethodGet, path, params, nil, true, &resp); err != nil {
			return nil, err
		}

		for _, item := range resp.Result.List {
			if _, seen := out[item.OrderID]; seen {
				continue
			}
			executed, err := decimal.NewFromString(item.CumExecQty)
			if err != nil {
				executed = decimal.Zero
			}
			out[item.OrderID] = venueOrder{
				status:      statusFromAPI(item.OrderStatus),
				executedQty: executed,
			}
		}
	}
	return out, nil
}

func (c *Client) fetchPrice(ctx context.Context, instrumentID string) (decimal.Decimal, error) {
	params := url.Values{}
	params.Set("category", "spot")
	params.Set("symbol", instrumentID)

	var resp response[struct {
		List []struct {
			LastPrice string `json:"lastPrice"`
		} `json:"list"`
	}]
	if err := c.doRequest(ctx, http.MethodGet, "/v5/market/tickers", params, nil, false, &resp); err != nil {
		return decimal.Zero, err
	}
	if len(resp.Result.List) == 0 {
		return decimal.Zero, domain.ErrNotFound
	}
	return decimal.NewFromString(resp.Result.List[0].LastPrice)
}

func (c *Client) fetchOrderbook(ctx context.Context, instrumentID string) (bids, asks []domain.BookLevel, err error) {
	params := url.Values{}
	params.Set("category", "spot")
	params.Set("symbol", instrumentID)
	params.Set("limit", "25")

	var resp response[struct {
		Bids [][]string `json:"b"`
		Asks [][]string `json:"a"`
	}]
	if err := c.doRequest(ctx, http.MethodGet, "/v5/market/orderbook", params, nil, false, &resp); err != nil {
		return nil, nil, err
	}
	return parseLevels(resp.Result.Bids), parseLevels(resp.Result.Asks), nil
}

func parseLevels(raw [][]string) []domain.BookLevel {
	levels := make([]domain.BookLevel, 0, len(raw))
	for _, pair := range raw {
		if len(pair) < 2 {
			continue
		}
		price, err1 := decimal.NewFromString(pair[0])
		qty, err2 := decimal.NewFromString(pair[1])
		if err1 != nil || err2 != nil {
			continue
		}
		levels = append(levels, domain.BookLevel{Price: price, Qty: qty})
	}
	return levels
}

func sideToAPI(side domain.OrderSide) string {
	if side == domain.OrderSideSell {
		return "Sell"
	}
	return "Buy"
}

func typeToAPI(t domain.OrderType) string {
	if t == domain.OrderTypeMarket {
		return "Market"
	}
	return "Limit"
}

func statusFromAPI(status string) domain.OrderStatus {
	switch status {
	case "New", "Untriggered", "Created":
		return domain.OrderStatusNew
	case "PartiallyFilled":
		return domain.OrderStatusPartiallyFilled
	case "Filled":
		return domain.OrderStatusFilled
	case "Cancelled", "PartiallyFilledCanceled", "Deactivated":
		return domain.OrderStatusCanceled
	case "PendingCancel":
		return domain.OrderStatusPendingCancel
	case "Rejected":
		return domain.OrderStatusRejected
	case "Expired":
		return domain.OrderStatusExpired
	default:
		return domain.OrderStatusNew
	}
}
