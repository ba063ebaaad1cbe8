// Package signals implements the instrument-discovery boundary. The static
// source hands out instruments from a configured watchlist, keeping each
// trading slot pinned to its instrument until the slot releases it.
package signals

import (
	"context"
	"sort"
	"sync"

	"github.com/shopspring/decimal"

	"github.com/ivmartynov/ladderbot/internal/config"
	"github.com/ivmartynov/ladderbot/internal/domain"
)

// StaticSource serves a fixed watchlist. Each state that asks for a position
// gets the highest-priority instrument no other state currently holds, and
// keeps getting the same answer on every later call. A state that stops
// asking keeps its claim: the watchlist is sized to the slot count, so there
// is no churn to arbitrate.
type StaticSource struct {
	mu       sync.Mutex
	pool     []domain.Signal
	assigned map[string]int // state id -> pool index
	claimed  map[int]bool
}

// NewStaticSource builds the source from the configured watchlist, ordered
// by descending priority.
func NewStaticSource(watchlist []config.InstrumentConfig) *StaticSource {
	pool := make([]domain.Signal, 0, len(watchlist))
	for _, entry := range watchlist {
		pool = append(pool, domain.Signal{
			Priority:   priorityFromConfig(entry.Priority),
			Instrument: domain.NewInstrument(entry.Symbol, entry.QtyScale, entry.PriceScale),
			Info: domain.SignalInfo{
				Amplitude:  decimal.Zero,
				Volume:     decimal.Zero,
				InstantBuy: entry.InstantBuy,
				Strategy:   "static",
			},
		})
	}
	sort.SliceStable(pool, func(i, j int) bool { return pool[i].Priority > pool[j].Priority })

	return &StaticSource{
		pool:     pool,
		assigned: make(map[string]int),
		claimed:  make(map[int]bool),
	}
}

// Signals returns the full watchlist in priority order, used to seed fresh
// trading slots at startup.
func (s *StaticSource) Signals() []domain.Signal {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.Signal, len(s.pool))
	copy(out, s.pool)
	return out
}

// GetPosition returns the instrument the given state should trade, or nil
// when the watchlist is exhausted.
func (s *StaticSource) GetPosition(ctx context.Context, stateID string) (*domain.Signal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if idx, ok := s.assigned[stateID]; ok {
		sig := s.pool[idx]
		return &sig, nil
	}
	for idx := range s.pool {
		if s.claimed[idx] {
			continue
		}
		s.assigned[stateID] = idx
		s.claimed[idx] = true
		sig := s.pool[idx]
		return &sig, nil
	}
	return nil, nil
}

// Claim pins a restored state to the pool entry matching its instrument so
// a restart does not hand the same symbol to two slots.
func (s *StaticSource) Claim(stateID, instrumentID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for idx, sig := range s.pool {
		if sig.Instrument.ID == instrumentID && !s.claimed[idx] {
			s.assigned[stateID] = idx
			s.claimed[idx] = true
			return
		}
	}
}

func priorityFromConfig(p int) domain.SignalPriority {
	switch {
	case p >= int(domain.SignalPriorityHigh):
		return domain.SignalPriorityHigh
	case p <= 0:
		return domain.SignalPriorityLow
	default:
		return domain.SignalPriority(p)
	}
}
