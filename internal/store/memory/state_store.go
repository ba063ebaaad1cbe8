// Package memory provides in-memory store implementations used by paper
// trading mode and tests.
package memory

import (
	"context"
	"encoding/json"
	"sort"
	"sync"
	"time"

	"github.com/ivmartynov/ladderbot/internal/domain"
)

// StateStore is an in-memory domain.StateStore. States are deep-copied
// through JSON on the way in and out so callers cannot alias the stored
// snapshot, matching the isolation a real database gives.
type StateStore struct {
	mu     sync.RWMutex
	states map[string][]byte
}

// NewStateStore creates an empty store.
func NewStateStore() *StateStore {
	return &StateStore{states: make(map[string][]byte)}
}

func (s *StateStore) Save(_ context.Context, state *domain.TradeState) error {
	raw, err := json.Marshal(state)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.states[state.ID] = raw
	return nil
}

func (s *StateStore) Get(_ context.Context, id string) (*domain.TradeState, error) {
	s.mu.RLock()
	raw, ok := s.states[id]
	s.mu.RUnlock()
	if !ok {
		return nil, domain.ErrNotFound
	}
	var state domain.TradeState
	if err := json.Unmarshal(raw, &state); err != nil {
		return nil, err
	}
	return &state, nil
}

func (s *StateStore) GetAll(_ context.Context) ([]*domain.TradeState, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := make([]string, 0, len(s.states))
	for id := range s.states {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	states := make([]*domain.TradeState, 0, len(ids))
	for _, id := range ids {
		var state domain.TradeState
		if err := json.Unmarshal(s.states[id], &state); err != nil {
			return nil, err
		}
		states = append(states, &state)
	}
	return states, nil
}

func (s *StateStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.states[id]; !ok {
		return domain.ErrNotFound
	}
	delete(s.states, id)
	return nil
}

func (s *StateStore) Clear(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.states = make(map[string][]byte)
	return nil
}

// DealStore is an in-memory append-only deal history.
type DealStore struct {
	mu    sync.RWMutex
	deals []domain.Deal
}

// NewDealStore creates an empty history.
func NewDealStore() *DealStore {
	return &DealStore{}
}

func (s *DealStore) Append(_ context.Context, deal domain.Deal) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.deals = append(s.deals, deal)
	return nil
}

func (s *DealStore) Last(_ context.Context) (*domain.Deal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if len(s.deals) == 0 {
		return nil, nil
	}
	deal := s.deals[len(s.deals)-1]
	return &deal, nil
}

func (s *DealStore) ListSince(_ context.Context, since time.Time) ([]domain.Deal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []domain.Deal
	for _, d := range s.deals {
		if !d.ClosedAt.Before(since) {
			out = append(out, d)
		}
	}
	return out, nil
}
