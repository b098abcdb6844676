package cycle

import (
	"context"
	"errors"
	"sync"
	"time"

	"tradewatch/internal/engine"
	"tradewatch/internal/history"
	"tradewatch/internal/logger"
	"tradewatch/internal/snapshot"

	"github.com/google/uuid"
)

// DefaultInterval is the completion-to-completion pause between cycles.
const DefaultInterval = 4 * time.Minute

// ErrCycleRunning is returned by Trigger while a cycle is in flight. Cycles
// never overlap; a trigger during one is rejected, not queued.
var ErrCycleRunning = errors.New("cycle already running")

// PromptBuilder assembles the per-cycle prompt. Implementations that let the
// engine build its own context can return an empty prompt.
type PromptBuilder interface {
	Build(ctx context.Context) (engine.Prompt, error)
}

// Sink receives each completed snapshot, typically for persistence. Sink
// errors are logged and do not fail the cycle.
type Sink interface {
	RecordCycle(ctx context.Context, snap *snapshot.Snapshot) error
}

// Result summarizes one finished cycle.
type Result struct {
	Trace    string
	Snapshot *snapshot.Snapshot
	Err      error
	Started  time.Time
	Finished time.Time
}

// Runner drives the invoke-extract-accumulate loop. The first cycle starts
// immediately on Run; each following cycle starts one interval after the
// previous one finished, so a slow engine stretches the schedule instead of
// stacking invocations.
type Runner struct {
	eng      engine.Engine
	prompts  PromptBuilder
	acc      *history.Accumulator
	sinks    []Sink
	interval time.Duration

	trigger chan struct{}
	results chan Result

	mu      sync.RWMutex
	running bool
	current *snapshot.Snapshot
	lastErr error
	lastRun time.Time
	cycles  uint64
}

type Options struct {
	Engine   engine.Engine
	Prompts  PromptBuilder
	History  *history.Accumulator
	Sinks    []Sink
	Interval time.Duration
}

func NewRunner(opts Options) *Runner {
	interval := opts.Interval
	if interval <= 0 {
		interval = DefaultInterval
	}
	acc := opts.History
	if acc == nil {
		acc = history.NewAccumulator()
	}
	return &Runner{
		eng:      opts.Engine,
		prompts:  opts.Prompts,
		acc:      acc,
		sinks:    opts.Sinks,
		interval: interval,
		trigger:  make(chan struct{}, 1),
		results:  make(chan Result, 1),
	}
}

// Run blocks until ctx is cancelled. Cancellation stops further ticks only;
// an in-flight cycle runs to completion on a detached context, so a stop
// never kills the engine mid-invoke.
func (r *Runner) Run(ctx context.Context) error {
	logger.Infof("cycle runner started engine=%s interval=%s", r.eng.Name(), r.interval)
	r.runCycle(ctx)
	for {
		timer := time.NewTimer(r.interval)
		select {
		case <-ctx.Done():
			timer.Stop()
			logger.Infof("cycle runner stopped after %d cycles", r.Cycles())
			return ctx.Err()
		case <-timer.C:
		case <-r.trigger:
			timer.Stop()
			logger.Infof("cycle triggered manually")
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		r.runCycle(ctx)
	}
}

// Trigger requests an immediate cycle. Rejected while one is in flight or
// one is already pending.
func (r *Runner) Trigger() error {
	if r.Running() {
		return ErrCycleRunning
	}
	select {
	case r.trigger <- struct{}{}:
		return nil
	default:
		return ErrCycleRunning
	}
}

// Results delivers the latest completed cycle. The channel holds one entry;
// an unread result is replaced, never blocked on.
func (r *Runner) Results() <-chan Result {
	return r.results
}

func (r *Runner) Running() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.running
}

// CurrentSnapshot returns the snapshot from the most recent successful cycle.
func (r *Runner) CurrentSnapshot() *snapshot.Snapshot {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.current
}

func (r *Runner) LastError() error {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.lastErr
}

func (r *Runner) LastRun() time.Time {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.lastRun
}

func (r *Runner) Cycles() uint64 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.cycles
}

func (r *Runner) Interval() time.Duration { return r.interval }

func (r *Runner) runCycle(ctx context.Context) {
	trace := uuid.NewString()
	started := time.Now()

	r.mu.Lock()
	r.running = true
	r.mu.Unlock()

	// Detached from the loop context: once started, a cycle finishes even
	// when Run is being shut down. The engine keeps its own timeout.
	snap, err := r.executeCycle(context.WithoutCancel(ctx), trace)

	r.mu.Lock()
	r.running = false
	r.lastRun = time.Now()
	r.cycles++
	r.lastErr = err
	if snap != nil {
		r.current = snap
	}
	r.mu.Unlock()

	res := Result{Trace: trace, Snapshot: snap, Err: err, Started: started, Finished: time.Now()}
	select {
	case r.results <- res:
	default:
		select {
		case <-r.results:
		default:
		}
		select {
		case r.results <- res:
		default:
		}
	}

	if err != nil {
		logger.Errorf("cycle %s failed in %s: %v", trace, time.Since(started).Truncate(time.Millisecond), err)
		return
	}
	logger.Infof("cycle %s done in %s strategy=%s degraded=%v decisions=%d history=%d",
		trace, time.Since(started).Truncate(time.Millisecond),
		snap.Strategy, snap.Degraded, len(snap.Decisions), r.acc.Len())
}

func (r *Runner) executeCycle(ctx context.Context, trace string) (*snapshot.Snapshot, error) {
	var p engine.Prompt
	if r.prompts != nil {
		built, err := r.prompts.Build(ctx)
		if err != nil {
			// A prompt failure is survivable: the engine still runs, just
			// without fresh market context.
			logger.Warnf("cycle %s prompt build failed: %v", trace, err)
		} else {
			p = built
		}
	}
	logger.LogEnginePrompt(r.eng.Name(), trace, p.System, p.User)

	raw, err := r.eng.Invoke(ctx, p)
	if err != nil {
		logger.LogEngineFailure(r.eng.Name(), trace, err.Error())
		return nil, err
	}
	logger.LogEngineOutput(r.eng.Name(), trace, raw)

	snap, err := snapshot.Extract(raw)
	if err != nil {
		logger.LogEngineFailure(r.eng.Name(), trace, err.Error())
		return nil, err
	}
	if snap.Degraded {
		logger.Warnf("cycle %s produced a degraded snapshot, keeping raw text only", trace)
	}
	for _, w := range snap.Warnings {
		logger.Warnf("cycle %s shape warning: %s", trace, w)
	}

	r.acc.Append(snap.History)
	for _, sink := range r.sinks {
		if serr := sink.RecordCycle(ctx, snap); serr != nil {
			logger.Errorf("cycle %s sink failed: %v", trace, serr)
		}
	}
	return snap, nil
}
