package cycle

import (
	"context"
	"errors"
	"testing"
	"time"

	"tradewatch/internal/engine"
	"tradewatch/internal/history"
	"tradewatch/internal/snapshot"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockEngine struct {
	mock.Mock
}

func (m *MockEngine) Name() string { return "mock" }

func (m *MockEngine) Invoke(ctx context.Context, p engine.Prompt) (string, error) {
	args := m.Called(ctx, p)
	return args.String(0), args.Error(1)
}

type MockSink struct {
	mock.Mock
}

func (m *MockSink) RecordCycle(ctx context.Context, snap *snapshot.Snapshot) error {
	args := m.Called(ctx, snap)
	return args.Error(0)
}

const cycleOutput = `{
  "reasoning": "steady as she goes",
  "decisions": [{"symbol": "BTC", "action": "hold", "confidence": "0.9", "quantity": "0"}],
  "history": [{"timestamp": "2026-08-30T12:00:00Z", "value": "10000"}]
}`

func startRunner(t *testing.T, r *Runner) (context.CancelFunc, chan error) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- r.Run(ctx) }()
	return cancel, done
}

func waitResult(t *testing.T, r *Runner) Result {
	t.Helper()
	select {
	case res := <-r.Results():
		return res
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for cycle result")
		return Result{}
	}
}

func TestRunner_FirstCycleImmediate(t *testing.T) {
	eng := new(MockEngine)
	eng.On("Invoke", mock.Anything, mock.Anything).Return(cycleOutput, nil)
	sink := new(MockSink)
	sink.On("RecordCycle", mock.Anything, mock.Anything).Return(nil)

	acc := history.NewAccumulator()
	r := NewRunner(Options{Engine: eng, History: acc, Sinks: []Sink{sink}, Interval: time.Hour})
	cancel, done := startRunner(t, r)
	defer cancel()

	res := waitResult(t, r)
	require.NoError(t, res.Err)
	require.NotNil(t, res.Snapshot)
	assert.NotEmpty(t, res.Trace)
	assert.Equal(t, "json", res.Snapshot.Strategy)

	assert.Equal(t, 1, acc.Len())
	assert.Equal(t, uint64(1), r.Cycles())
	require.NotNil(t, r.CurrentSnapshot())
	assert.Equal(t, "steady as she goes", r.CurrentSnapshot().Reasoning)
	assert.NoError(t, r.LastError())
	sink.AssertCalled(t, "RecordCycle", mock.Anything, mock.Anything)

	cancel()
	assert.ErrorIs(t, <-done, context.Canceled)
}

func TestRunner_TriggerRejectedWhileRunning(t *testing.T) {
	release := make(chan struct{})
	eng := new(MockEngine)
	eng.On("Invoke", mock.Anything, mock.Anything).Run(func(mock.Arguments) {
		<-release
	}).Return(cycleOutput, nil)

	r := NewRunner(Options{Engine: eng, Interval: time.Hour})
	cancel, _ := startRunner(t, r)
	defer cancel()

	require.Eventually(t, r.Running, time.Second, 5*time.Millisecond)
	assert.ErrorIs(t, r.Trigger(), ErrCycleRunning)

	close(release)
	waitResult(t, r)
	assert.False(t, r.Running())
}

func TestRunner_TriggerRunsExtraCycle(t *testing.T) {
	eng := new(MockEngine)
	eng.On("Invoke", mock.Anything, mock.Anything).Return(cycleOutput, nil)

	r := NewRunner(Options{Engine: eng, Interval: time.Hour})
	cancel, _ := startRunner(t, r)
	defer cancel()

	waitResult(t, r)
	require.NoError(t, r.Trigger())
	waitResult(t, r)
	assert.Equal(t, uint64(2), r.Cycles())
}

func TestRunner_EngineFailureKeepsLastSnapshot(t *testing.T) {
	eng := new(MockEngine)
	eng.On("Invoke", mock.Anything, mock.Anything).Return(cycleOutput, nil).Once()
	eng.On("Invoke", mock.Anything, mock.Anything).Return("", errors.New("engine crashed"))

	r := NewRunner(Options{Engine: eng, Interval: time.Hour})
	cancel, _ := startRunner(t, r)
	defer cancel()

	first := waitResult(t, r)
	require.NoError(t, first.Err)

	require.NoError(t, r.Trigger())
	second := waitResult(t, r)
	require.Error(t, second.Err)

	// The failed cycle surfaces its error but does not wipe the last good
	// snapshot.
	require.NotNil(t, r.CurrentSnapshot())
	assert.Equal(t, "steady as she goes", r.CurrentSnapshot().Reasoning)
	assert.ErrorContains(t, r.LastError(), "engine crashed")
}

func TestRunner_SinkErrorDoesNotFailCycle(t *testing.T) {
	eng := new(MockEngine)
	eng.On("Invoke", mock.Anything, mock.Anything).Return(cycleOutput, nil)
	sink := new(MockSink)
	sink.On("RecordCycle", mock.Anything, mock.Anything).Return(errors.New("disk full"))

	r := NewRunner(Options{Engine: eng, Sinks: []Sink{sink}, Interval: time.Hour})
	cancel, _ := startRunner(t, r)
	defer cancel()

	res := waitResult(t, r)
	assert.NoError(t, res.Err)
	assert.NoError(t, r.LastError())
}

func TestRunner_ShutdownDrainsInFlightCycle(t *testing.T) {
	release := make(chan struct{})
	var invokeCtx context.Context
	eng := new(MockEngine)
	eng.On("Invoke", mock.Anything, mock.Anything).Run(func(args mock.Arguments) {
		invokeCtx = args.Get(0).(context.Context)
		<-release
	}).Return(cycleOutput, nil)

	r := NewRunner(Options{Engine: eng, Interval: time.Hour})
	cancel, done := startRunner(t, r)

	require.Eventually(t, r.Running, time.Second, 5*time.Millisecond)
	cancel()
	close(release)

	// Cancelling Run must not reach the in-flight invocation; the cycle
	// finishes and delivers its snapshot before Run returns.
	res := waitResult(t, r)
	require.NoError(t, res.Err)
	require.NotNil(t, res.Snapshot)
	assert.NoError(t, invokeCtx.Err())

	assert.ErrorIs(t, <-done, context.Canceled)
	assert.Equal(t, uint64(1), r.Cycles())
}

func TestRunner_DefaultInterval(t *testing.T) {
	r := NewRunner(Options{Engine: new(MockEngine)})
	assert.Equal(t, DefaultInterval, r.Interval())
}
