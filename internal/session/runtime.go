package session

import (
	"context"
	"sync"
	"time"

	"github.com/bhandras/msgsync/internal/actor"
	"github.com/bhandras/msgsync/internal/engine"
)

// Doer executes one fetch request. remote.Client implements it.
type Doer interface {
	Do(ctx context.Context, req engine.FetchRequest) engine.FetchResult
}

// FetchObserver is told how long each fetch took.
type FetchObserver interface {
	FetchDuration(kind engine.FetchKind, d time.Duration)
}

// Runtime executes fetch effects on their own goroutines and emits their
// completions back into the session loop.
type Runtime struct {
	doer     Doer
	clock    actor.Clock
	observer FetchObserver

	mu      sync.Mutex
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	stopped bool
}

var _ actor.Runtime = (*Runtime)(nil)

// NewRuntime returns a runtime fetching through doer. A nil observer is
// allowed.
func NewRuntime(doer Doer, clock actor.Clock, observer FetchObserver) *Runtime {
	if clock == nil {
		clock = actor.RealClock{}
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Runtime{
		doer:     doer,
		clock:    clock,
		observer: observer,
		ctx:      ctx,
		cancel:   cancel,
	}
}

// HandleEffects implements actor.Runtime.
func (r *Runtime) HandleEffects(ctx context.Context, effects []actor.Effect, emit func(actor.Input)) {
	for _, eff := range effects {
		select {
		case <-ctx.Done():
			return
		default:
		}

		switch e := eff.(type) {
		case effFetch:
			r.fetch(ctx, e.Request, emit)
		}
	}
}

func (r *Runtime) fetch(ctx context.Context, req engine.FetchRequest, emit func(actor.Input)) {
	r.mu.Lock()
	if r.stopped {
		r.mu.Unlock()
		return
	}
	r.wg.Add(1)
	r.mu.Unlock()

	go func() {
		defer r.wg.Done()

		fetchCtx, cancel := context.WithCancel(ctx)
		defer cancel()
		stop := context.AfterFunc(r.ctx, cancel)
		defer stop()

		start := r.clock.Now()
		res := r.doer.Do(fetchCtx, req)
		took := r.clock.Now().Sub(start)

		// A stopped session drops late results.
		if fetchCtx.Err() != nil {
			return
		}
		if r.observer != nil {
			r.observer.FetchDuration(req.Kind, took)
		}
		emit(evFetchCompleted{Result: res, Duration: took})
	}()
}

// Stop cancels in-flight fetches and waits for their goroutines.
func (r *Runtime) Stop() {
	r.mu.Lock()
	if r.stopped {
		r.mu.Unlock()
		return
	}
	r.stopped = true
	r.mu.Unlock()

	r.cancel()
	r.wg.Wait()
}
