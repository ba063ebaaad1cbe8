package engine

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ivmartynov/ladderbot/internal/domain"
)

// recordingModule logs process/finalize calls into a shared trace.
type recordingModule struct {
	name  string
	flow  Flow
	err   error
	trace *[]string
}

func (m *recordingModule) Name() string { return m.name }

func (m *recordingModule) Process(ctx context.Context, state *domain.TradeState) (Flow, error) {
	*m.trace = append(*m.trace, "process:"+m.name)
	return m.flow, m.err
}

func (m *recordingModule) Finalize(ctx context.Context, state *domain.TradeState) error {
	*m.trace = append(*m.trace, "finalize:"+m.name)
	return nil
}

func newTestSystem(t *testing.T, modules ...Module) *System {
	t.Helper()
	sys := NewSystem(&domain.TradeState{ID: "s1"}, testLogger())
	for _, m := range modules {
		sys.Add(m)
	}
	require.NoError(t, sys.Start(context.Background()))
	return sys
}

func TestSystem_FinalizersRunInReverse(t *testing.T) {
	var trace []string
	sys := newTestSystem(t,
		&recordingModule{name: "a", trace: &trace},
		&recordingModule{name: "b", trace: &trace},
		&recordingModule{name: "c", trace: &trace},
	)

	require.NoError(t, sys.Update(context.Background(), "tick-1"))
	assert.Equal(t, []string{
		"process:a", "process:b", "process:c",
		"finalize:c", "finalize:b", "finalize:a",
	}, trace)
	assert.Equal(t, "tick-1", sys.State().TickID)
}

func TestSystem_HaltStillFinalizesExecuted(t *testing.T) {
	var trace []string
	sys := newTestSystem(t,
		&recordingModule{name: "a", trace: &trace},
		&recordingModule{name: "b", flow: FlowHalt, trace: &trace},
		&recordingModule{name: "c", trace: &trace},
	)

	require.NoError(t, sys.Update(context.Background(), "tick-1"))
	assert.Equal(t, []string{
		"process:a", "process:b",
		"finalize:b", "finalize:a",
	}, trace)
}

func TestSystem_ErrorSkipsAllFinalizers(t *testing.T) {
	var trace []string
	boom := errors.New("boom")
	sys := newTestSystem(t,
		&recordingModule{name: "a", trace: &trace},
		&recordingModule{name: "b", err: boom, trace: &trace},
	)

	err := sys.Update(context.Background(), "tick-1")
	require.ErrorIs(t, err, boom)
	assert.Equal(t, []string{"process:a", "process:b"}, trace,
		"a failed cycle must not half-commit")
}

func TestSystem_UpdateBeforeStart(t *testing.T) {
	sys := NewSystem(&domain.TradeState{ID: "s1"}, testLogger())
	sys.Add(&recordingModule{name: "a", trace: new([]string)})

	err := sys.Update(context.Background(), "tick-1")
	assert.ErrorIs(t, err, domain.ErrNotStarted)
}
