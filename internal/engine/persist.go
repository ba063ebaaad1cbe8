package engine

import (
	"context"
	"fmt"

	"github.com/ivmartynov/ladderbot/internal/domain"
)

// PersistState checkpoints the state at the start and the end of every
// cycle, bracketing the traversal so a crash anywhere inside it resumes
// from a durable snapshot.
type PersistState struct {
	store domain.StateStore
}

// NewPersistState creates the checkpoint stage.
func NewPersistState(store domain.StateStore) *PersistState {
	return &PersistState{store: store}
}

func (p *PersistState) Name() string { return "persist" }

func (p *PersistState) Process(ctx context.Context, state *domain.TradeState) (Flow, error) {
	if err := p.store.Save(ctx, state); err != nil {
		return FlowHalt, fmt.Errorf("checkpoint: %w", err)
	}
	return FlowContinue, nil
}

func (p *PersistState) Finalize(ctx context.Context, state *domain.TradeState) error {
	if err := p.store.Save(ctx, state); err != nil {
		return fmt.Errorf("checkpoint: %w", err)
	}
	return nil
}
