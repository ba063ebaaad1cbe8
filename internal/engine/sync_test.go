package engine

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ivmartynov/ladderbot/internal/domain"
	"github.com/ivmartynov/ladderbot/internal/store/memory"
)

// fakeExchange scripts the venue responses and records the call order.
type fakeExchange struct {
	snapshot    *domain.MarketSnapshot
	cancelFails map[string]bool
	placeFails  map[string]bool
	calls       []string
}

func newFakeExchange(price float64) *fakeExchange {
	return &fakeExchange{
		snapshot:    &domain.MarketSnapshot{CurrentPrice: decimal.NewFromFloat(price), Available: true},
		cancelFails: map[string]bool{},
		placeFails:  map[string]bool{},
	}
}

func (f *fakeExchange) GetData(ctx context.Context, instrumentID, tickID string) (*domain.MarketSnapshot, error) {
	f.calls = append(f.calls, "data")
	return f.snapshot, nil
}

func (f *fakeExchange) PlaceOrder(ctx context.Context, instrumentID string, order *domain.Order) bool {
	if f.placeFails[order.ID] {
		f.calls = append(f.calls, "place-fail:"+order.ID)
		return false
	}
	if order.ID == "" {
		order.ID = "venue-" + string(order.Side)
	}
	f.calls = append(f.calls, "place:"+order.ID)
	return true
}

func (f *fakeExchange) CancelOrder(ctx context.Context, instrumentID string, order *domain.Order) bool {
	if f.cancelFails[order.ID] {
		f.calls = append(f.calls, "cancel-fail:"+order.ID)
		return false
	}
	f.calls = append(f.calls, "cancel:"+order.ID)
	return true
}

func (f *fakeExchange) UpdateOrders(ctx context.Context, instrumentID string, orders domain.Orders, tickID string) bool {
	f.calls = append(f.calls, "update")
	return true
}

func (f *fakeExchange) GetStatuses(ctx context.Context, instrumentID string, orderIDs []string) ([]domain.OrderStatusInfo, error) {
	return nil, nil
}

type nopNotifier struct{ alerts []domain.AlertKind }

func (n *nopNotifier) SendAlert(ctx context.Context, kind domain.AlertKind, text string) {
	n.alerts = append(n.alerts, kind)
}
func (n *nopNotifier) SendInfo(ctx context.Context, text string) {}

func TestExchangeSync_CancelsBeforePlacing(t *testing.T) {
	venue := newFakeExchange(100)
	sync := NewExchangeSync(venue, memory.NewStateStore(), &nopNotifier{}, testLogger())

	state := testState(2, 2, 100)
	state.ToCancel = domain.Orders{
		buyOrder("c-low", 97, 10, domain.OrderStatusNew),
		buyOrder("c-high", 99, 10, domain.OrderStatusNew),
	}
	state.New = domain.Orders{buyOrder("n1", 98, 10, domain.OrderStatusNew)}

	require.NoError(t, sync.Finalize(context.Background(), state))

	// cancellations run high to low and fully before any placement
	assert.Equal(t, []string{"cancel:c-high", "cancel:c-low", "place:n1"}, venue.calls)
	assert.Empty(t, state.ToCancel)
	assert.Empty(t, state.New)
	assert.Len(t, state.Active, 1)
}

func TestExchangeSync_RollbackOnCancelFailure(t *testing.T) {
	venue := newFakeExchange(100)
	venue.cancelFails["c1"] = true
	sync := NewExchangeSync(venue, memory.NewStateStore(), &nopNotifier{}, testLogger())

	state := testState(2, 2, 100)
	state.ToCancel = domain.Orders{buyOrder("c1", 99, 10, domain.OrderStatusNew)}
	state.New = domain.Orders{buyOrder("n1", 98, 10, domain.OrderStatusNew)}

	require.NoError(t, sync.Finalize(context.Background(), state))

	// the failed cancel restores the order to active, drops the queued
	// placement, and places nothing this cycle
	assert.Len(t, state.Active, 1)
	assert.Equal(t, "c1", state.Active[0].ID)
	assert.Empty(t, state.New)
	assert.Empty(t, state.ToCancel)
	assert.Equal(t, []string{"cancel-fail:c1"}, venue.calls)
}

func TestExchangeSync_SkipsAlreadyCanceled(t *testing.T) {
	venue := newFakeExchange(100)
	sync := NewExchangeSync(venue, memory.NewStateStore(), &nopNotifier{}, testLogger())

	state := testState(2, 2, 100)
	state.ToCancel = domain.Orders{buyOrder("c1", 99, 10, domain.OrderStatusCanceled)}

	require.NoError(t, sync.Finalize(context.Background(), state))
	assert.Empty(t, venue.calls)
	assert.Empty(t, state.ToCancel)
}

func TestExchangeSync_LiftsSellToMarket(t *testing.T) {
	venue := newFakeExchange(100)
	sync := NewExchangeSync(venue, memory.NewStateStore(), &nopNotifier{}, testLogger())

	state := testState(2, 2, 100)
	state.New = domain.Orders{sellOrder("s1", 98, 10, domain.OrderStatusNew)}

	require.NoError(t, sync.Finalize(context.Background(), state))
	require.Len(t, state.Active, 1)
	assert.True(t, state.Active[0].Price.Equal(decimal.NewFromInt(100)),
		"sell below market must be lifted, got %s", state.Active[0].Price)
}

func TestExchangeSync_RejectedPlacementAlerts(t *testing.T) {
	venue := newFakeExchange(100)
	venue.placeFails["n1"] = true
	notifier := &nopNotifier{}
	sync := NewExchangeSync(venue, memory.NewStateStore(), notifier, testLogger())

	state := testState(2, 2, 100)
	state.New = domain.Orders{buyOrder("n1", 98, 10, domain.OrderStatusNew)}

	require.NoError(t, sync.Finalize(context.Background(), state))

	assert.Len(t, state.New, 1, "a rejected order stays queued for the next cycle")
	assert.Empty(t, state.Active)
	assert.Equal(t, []domain.AlertKind{domain.AlertOrderRejected}, notifier.alerts)
}

func TestExchangeSync_DropsFilledActives(t *testing.T) {
	venue := newFakeExchange(100)
	sync := NewExchangeSync(venue, memory.NewStateStore(), &nopNotifier{}, testLogger())

	state := testState(2, 2, 100)
	state.Active = domain.Orders{
		buyOrder("b1", 100, 10, domain.OrderStatusFilled),
		buyOrder("b2", 99, 10, domain.OrderStatusNew),
	}

	require.NoError(t, sync.Finalize(context.Background(), state))
	require.Len(t, state.Active, 1)
	assert.Equal(t, "b2", state.Active[0].ID)
}

func TestExchangeSync_DefersPlacementWithoutSnapshot(t *testing.T) {
	venue := newFakeExchange(100)
	sync := NewExchangeSync(venue, memory.NewStateStore(), &nopNotifier{}, testLogger())

	// instrument assigned this cycle, no market data fetched yet
	state := testState(2, 2, 100)
	state.Market = nil
	state.ToCancel = domain.Orders{buyOrder("c1", 99, 10, domain.OrderStatusNew)}
	state.New = domain.Orders{buyOrder("n1", 98, 10, domain.OrderStatusNew)}

	require.NotPanics(t, func() {
		require.NoError(t, sync.Finalize(context.Background(), state))
	})

	// cancellations still commit, placements wait for the next tick
	assert.Equal(t, []string{"cancel:c1"}, venue.calls)
	assert.Empty(t, state.ToCancel)
	require.Len(t, state.New, 1)
	assert.Equal(t, "n1", state.New[0].ID)
	assert.Empty(t, state.Active)
}

func TestExchangeSync_SessionGatesPlacement(t *testing.T) {
	venue := newFakeExchange(100)
	sync := NewExchangeSync(venue, memory.NewStateStore(), &nopNotifier{}, testLogger())

	state := testState(2, 2, 100)
	state.WorkMode = domain.WorkModePreMarket
	state.New = domain.Orders{
		buyOrder("b1", 98, 10, domain.OrderStatusNew),
		sellOrder("s1", 102, 10, domain.OrderStatusNew),
	}

	require.NoError(t, sync.Finalize(context.Background(), state))

	// pre-market allows sells but never buys
	require.Len(t, state.Active, 1)
	assert.Equal(t, domain.OrderSideSell, state.Active[0].Side)
	require.Len(t, state.New, 1)
	assert.Equal(t, domain.OrderSideBuy, state.New[0].Side)
}
