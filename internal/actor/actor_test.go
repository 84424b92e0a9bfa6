package actor_test

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/bhandras/msgsync/internal/actor"
	"github.com/bhandras/msgsync/internal/actor/actortest"
	"github.com/stretchr/testify/require"
)

type addInput struct {
	actor.InputBase
	n int
}

type doubledInput struct {
	actor.InputBase
	n int
}

type doubleEffect struct {
	actor.EffectBase
	n int
}

func reducer(state int, input actor.Input) (int, []actor.Effect) {
	switch in := input.(type) {
	case addInput:
		return state + in.n, []actor.Effect{doubleEffect{n: in.n}}
	case doubledInput:
		return state + in.n, nil
	}
	return state, nil
}

func TestActorProcessesInputsSequentially(t *testing.T) {
	t.Parallel()

	rt := &actortest.FakeRuntime{}
	a := actor.New[int](0, reducer, rt)
	a.Start()
	defer a.Stop()

	ctx := context.Background()
	for i := 1; i <= 5; i++ {
		require.NoError(t, a.Enqueue(ctx, addInput{n: i}))
	}

	require.Eventually(t, func() bool { return a.State() == 15 }, 2*time.Second, 10*time.Millisecond)
	require.Len(t, rt.Effects(), 5, actortest.Pretty(rt.Effects()))
}

func TestRuntimeResultsReenterTheLoop(t *testing.T) {
	t.Parallel()

	rt := &actortest.FakeRuntime{
		EmitFn: func(_ context.Context, eff actor.Effect, emit func(actor.Input)) {
			if d, ok := eff.(doubleEffect); ok {
				go emit(doubledInput{n: d.n})
			}
		},
	}
	a := actor.New[int](0, reducer, rt)
	a.Start()
	defer a.Stop()

	require.NoError(t, a.Enqueue(context.Background(), addInput{n: 3}))
	require.Eventually(t, func() bool { return a.State() == 6 }, 2*time.Second, 10*time.Millisecond)
}

func TestEnqueueBlocksWhenFull(t *testing.T) {
	t.Parallel()

	// Not started: nothing drains the mailbox.
	a := actor.New[int](0, reducer, nil, actor.WithMailboxSize[int](1))
	defer a.Stop()

	require.NoError(t, a.Enqueue(context.Background(), addInput{n: 1}))
	require.False(t, a.TryEnqueue(addInput{n: 1}))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	require.ErrorIs(t, a.Enqueue(ctx, addInput{n: 1}), context.DeadlineExceeded)
}

func TestEnqueueAfterStop(t *testing.T) {
	t.Parallel()

	rt := &actortest.FakeRuntime{}
	a := actor.New[int](0, reducer, rt)
	a.Start()
	a.Stop()

	<-a.Done()
	require.True(t, rt.Stopped())
	require.ErrorIs(t, a.Enqueue(context.Background(), addInput{n: 1}), actor.ErrStopped)
	require.False(t, a.TryEnqueue(addInput{n: 1}))
}

func TestHooksObserveTransitions(t *testing.T) {
	t.Parallel()

	var inputs, transitions, effects atomic.Int32
	a := actor.New[int](0, reducer, &actortest.FakeRuntime{}, actor.WithHooks(actor.Hooks[int]{
		OnInput:      func(actor.Input) { inputs.Add(1) },
		OnTransition: func(int, int, actor.Input) { transitions.Add(1) },
		OnEffects:    func([]actor.Effect) { effects.Add(1) },
	}))
	a.Start()
	defer a.Stop()

	require.NoError(t, a.Enqueue(context.Background(), addInput{n: 1}))
	require.NoError(t, a.Enqueue(context.Background(), doubledInput{n: 1}))
	require.Eventually(t, func() bool { return transitions.Load() == 2 }, 2*time.Second, 10*time.Millisecond)
	require.Equal(t, int32(2), inputs.Load())
	require.Equal(t, int32(1), effects.Load())
}

func TestPanicHook(t *testing.T) {
	t.Parallel()

	recovered := make(chan any, 1)
	boom := func(int, actor.Input) (int, []actor.Effect) { panic("boom") }
	a := actor.New[int](0, boom, nil, actor.WithHooks(actor.Hooks[int]{
		OnPanic: func(r any) { recovered <- r },
	}))
	a.Start()
	defer a.Stop()

	require.NoError(t, a.Enqueue(context.Background(), addInput{n: 1}))
	require.Equal(t, "boom", <-recovered)
	<-a.Done()
}

func TestStep(t *testing.T) {
	t.Parallel()

	next, effects := actor.Step(1, addInput{n: 2}, reducer)
	require.Equal(t, 3, next)
	require.Equal(t, []actor.Effect{doubleEffect{n: 2}}, effects)

	clock := actortest.NewFakeClock(time.Unix(100, 0))
	clock.Advance(time.Second)
	require.Equal(t, time.Unix(101, 0), clock.Now())
}
