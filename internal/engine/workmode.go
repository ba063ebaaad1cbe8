package engine

import (
	"context"
	"log/slog"
	"time"

	"github.com/ivmartynov/ladderbot/internal/domain"
)

// WorkModeGate stamps the state's session mode from the trading calendar
// and halts the pipeline for the cycle while the venue is fully closed,
// backing off so a closed market is not polled at the trading rate.
type WorkModeGate struct {
	provider domain.WorkModeProvider
	backoff  time.Duration
	logger   *slog.Logger
}

// NewWorkModeGate creates the gate. backoff is slept once per halted cycle.
func NewWorkModeGate(provider domain.WorkModeProvider, backoff time.Duration, logger *slog.Logger) *WorkModeGate {
	return &WorkModeGate{
		provider: provider,
		backoff:  backoff,
		logger:   logger.With(slog.String("component", "workmode")),
	}
}

func (g *WorkModeGate) Name() string { return "workmode" }

func (g *WorkModeGate) Process(ctx context.Context, state *domain.TradeState) (Flow, error) {
	state.WorkMode = g.provider.Current(time.Now().UTC())
	if state.WorkMode != domain.WorkModeClosed {
		return FlowContinue, nil
	}

	g.logger.Info("venue closed", slog.String("state_id", state.ID))
	select {
	case <-time.After(g.backoff):
	case <-ctx.Done():
		return FlowHalt, ctx.Err()
	}
	return FlowHalt, nil
}
