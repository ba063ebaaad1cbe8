package engine

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/ivmartynov/ladderbot/internal/domain"
)

// SignalGate keeps the state pointed at whatever instrument the discovery
// subsystem currently wants traded. A state stuck in a deal keeps its
// instrument; an idle state with a stale or missing signal is drained and
// released for reassignment.
type SignalGate struct {
	source domain.SignalSource
	logger *slog.Logger
}

// NewSignalGate creates the gate over the given signal source.
func NewSignalGate(source domain.SignalSource, logger *slog.Logger) *SignalGate {
	return &SignalGate{source: source, logger: logger.With(slog.String("component", "signalgate"))}
}

func (g *SignalGate) Name() string { return "signalgate" }

func (g *SignalGate) Process(ctx context.Context, state *domain.TradeState) (Flow, error) {
	if !state.CanChangeInstrument() {
		return FlowContinue, nil
	}

	sig, err := g.source.GetPosition(ctx, state.ID)
	if err != nil {
		return FlowHalt, fmt.Errorf("get position: %w", err)
	}

	if sig == nil {
		if state.Instrument == nil {
			return FlowHalt, nil
		}
		// nothing worth trading; wind down if the state is idle
		return g.drainIdle(state), nil
	}

	if state.Instrument == nil || !sig.Instrument.Equal(*state.Instrument) {
		if state.CanChangeInstrument() {
			inst := sig.Instrument
			info := sig.Info
			if err := state.AssignInstrument(&inst, &info); err != nil {
				return FlowHalt, err
			}
			g.logger.Info("instrument assigned",
				slog.String("state_id", state.ID),
				slog.String("instrument", inst.String()))
			return FlowHalt, nil
		}
		return g.drainIdle(state), nil
	}

	info := sig.Info
	state.SignalInfo = &info
	return FlowContinue, nil
}

// drainIdle drops the instrument when nothing is at stake: no sells, no
// fills, no carried-over coins, no queued orders. Otherwise the pipeline
// keeps running the current instrument.
func (g *SignalGate) drainIdle(state *domain.TradeState) Flow {
	canCancel := len(state.Active.Sells()) == 0 &&
		!state.Active.InDeal() &&
		state.PartialCoinsAmount.IsZero() &&
		len(state.New) == 0

	if !canCancel {
		return FlowContinue
	}

	g.logger.Info("instrument released",
		slog.String("state_id", state.ID),
		slog.String("instrument", state.Instrument.String()))
	state.CancelActiveOrders(true)
	state.Instrument = nil
	return FlowHalt
}
