package engine

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/ivmartynov/ladderbot/internal/domain"
)

// Flow tells the pipeline whether to keep traversing stages.
type Flow int

const (
	// FlowContinue proceeds to the next stage.
	FlowContinue Flow = iota
	// FlowHalt stops the forward traversal; finalizers of already-executed
	// stages still run.
	FlowHalt
)

// Module is one pipeline stage. Process runs during the forward traversal;
// stages that also need work after the downstream stages finish implement
// Finalizer.
type Module interface {
	Name() string
	Process(ctx context.Context, state *domain.TradeState) (Flow, error)
}

// Finalizer is implemented by stages with post-traversal work (exchange
// mutations, persistence checkpoints, deferred cleanup). Finalize runs in
// reverse stage order over every stage whose Process executed, whether or
// not the traversal halted early. An error from any stage skips all
// finalizers, so a failed cycle never half-commits.
type Finalizer interface {
	Finalize(ctx context.Context, state *domain.TradeState) error
}

// PreStarter runs once before the first tick, reconciling restored state
// against the venue.
type PreStarter interface {
	Name() string
	PreStart(ctx context.Context, state *domain.TradeState) error
}

// System is one instrument slot: a trading state plus the ordered stage
// list traversed once per tick.
type System struct {
	state    *domain.TradeState
	modules  []Module
	prestart []PreStarter
	started  bool
	logger   *slog.Logger
}

// NewSystem creates a System around the given state.
func NewSystem(state *domain.TradeState, logger *slog.Logger) *System {
	return &System{
		state:  state,
		logger: logger.With(slog.String("component", "system"), slog.String("state_id", state.ID)),
	}
}

// State exposes the owned trading state.
func (s *System) State() *domain.TradeState { return s.state }

// Add appends a stage to the pipeline.
func (s *System) Add(m Module) *System {
	s.modules = append(s.modules, m)
	return s
}

// AddPreStart appends a pre-start reconciliation step.
func (s *System) AddPreStart(p PreStarter) *System {
	s.prestart = append(s.prestart, p)
	return s
}

// Start runs the pre-start steps and marks the system ready for ticks.
func (s *System) Start(ctx context.Context) error {
	for _, p := range s.prestart {
		if err := p.PreStart(ctx, s.state); err != nil {
			return fmt.Errorf("prestart %s: %w", p.Name(), err)
		}
	}
	s.started = true
	return nil
}

// Update runs one full pipeline traversal under the given tick id.
func (s *System) Update(ctx context.Context, tickID string) error {
	if !s.started {
		return domain.ErrNotStarted
	}
	if len(s.modules) == 0 {
		return nil
	}

	s.state.TickID = tickID

	executed := make([]Module, 0, len(s.modules))
	for _, m := range s.modules {
		flow, err := m.Process(ctx, s.state)
		if err != nil {
			return fmt.Errorf("stage %s: %w", m.Name(), err)
		}
		executed = append(executed, m)
		if flow == FlowHalt {
			s.logger.DebugContext(ctx, "pipeline halted", slog.String("stage", m.Name()))
			break
		}
	}

	for i := len(executed) - 1; i >= 0; i-- {
		f, ok := executed[i].(Finalizer)
		if !ok {
			continue
		}
		if err := f.Finalize(ctx, s.state); err != nil {
			return fmt.Errorf("finalize %s: %w", executed[i].Name(), err)
		}
	}
	return nil
}
