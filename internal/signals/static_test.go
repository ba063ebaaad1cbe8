package signals

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ivmartynov/ladderbot/internal/config"
)

func testWatchlist() []config.InstrumentConfig {
	return []config.InstrumentConfig{
		{Symbol: "ETHUSDT", QtyScale: 4, PriceScale: 2, Priority: 5},
		{Symbol: "BTCUSDT", QtyScale: 5, PriceScale: 2, Priority: 10, InstantBuy: true},
	}
}

func TestStaticSource_PriorityOrder(t *testing.T) {
	src := NewStaticSource(testWatchlist())

	pool := src.Signals()
	require.Len(t, pool, 2)
	assert.Equal(t, "BTCUSDT", pool[0].Instrument.ID)
	assert.True(t, pool[0].Info.InstantBuy)
	assert.Equal(t, "ETHUSDT", pool[1].Instrument.ID)
}

func TestStaticSource_StickyAssignment(t *testing.T) {
	ctx := context.Background()
	src := NewStaticSource(testWatchlist())

	first, err := src.GetPosition(ctx, "slot-1")
	require.NoError(t, err)
	require.NotNil(t, first)
	assert.Equal(t, "BTCUSDT", first.Instrument.ID)

	// the same slot keeps getting the same instrument
	again, err := src.GetPosition(ctx, "slot-1")
	require.NoError(t, err)
	require.NotNil(t, again)
	assert.Equal(t, "BTCUSDT", again.Instrument.ID)

	second, err := src.GetPosition(ctx, "slot-2")
	require.NoError(t, err)
	require.NotNil(t, second)
	assert.Equal(t, "ETHUSDT", second.Instrument.ID)

	// the watchlist is exhausted for a third slot
	third, err := src.GetPosition(ctx, "slot-3")
	require.NoError(t, err)
	assert.Nil(t, third)
}

func TestStaticSource_ClaimPinsRestoredStates(t *testing.T) {
	ctx := context.Background()
	src := NewStaticSource(testWatchlist())

	src.Claim("slot-1", "BTCUSDT")

	sig, err := src.GetPosition(ctx, "slot-1")
	require.NoError(t, err)
	require.NotNil(t, sig)
	assert.Equal(t, "BTCUSDT", sig.Instrument.ID)

	other, err := src.GetPosition(ctx, "slot-2")
	require.NoError(t, err)
	require.NotNil(t, other)
	assert.Equal(t, "ETHUSDT", other.Instrument.ID,
		"a claimed instrument never goes to a second slot")
}
