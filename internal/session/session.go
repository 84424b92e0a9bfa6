// Package session runs the reconciliation engine on a single goroutine and
// feeds it server events, fetch completions and user commands.
package session

import (
	"context"
	"errors"

	"github.com/bhandras/msgsync/internal/actor"
	"github.com/bhandras/msgsync/internal/engine"
	"github.com/bhandras/msgsync/internal/filter"
	"github.com/bhandras/msgsync/internal/wire"
	"github.com/bhandras/msgsync/pkg/logger"
)

// ErrClosed is returned by calls made after the session stopped.
var ErrClosed = errors.New("session closed")

// EchoHandle identifies a local echo.
type EchoHandle struct {
	LocalID       string
	ProvisionalID int64
}

// Session owns an engine and serializes every access to it.
type Session struct {
	actor *actor.Actor[*State]
}

// New returns a session that is not yet started.
func New(state *State, runtime *Runtime, hooks actor.Hooks[*State]) *Session {
	return &Session{
		actor: actor.New(state, Reduce, runtime, actor.WithHooks(hooks)),
	}
}

// Start starts the session loop.
func (s *Session) Start() { s.actor.Start() }

// Stop stops the loop and cancels in-flight fetches.
func (s *Session) Stop() { s.actor.Stop() }

// Done is closed once the loop has exited.
func (s *Session) Done() <-chan struct{} { return s.actor.Done() }

// HandleEvents applies a batch of already decoded server events.
func (s *Session) HandleEvents(ctx context.Context, queueID string, events []wire.Event) error {
	if len(events) == 0 {
		return nil
	}
	return s.enqueue(ctx, Events(queueID, events))
}

// HandlePush decodes a pushed "events" payload and applies it. A malformed
// payload is rejected as a whole.
func (s *Session) HandlePush(ctx context.Context, payload any) error {
	events, err := wire.ParseEvents(payload)
	if err != nil {
		logger.Warnf("session: dropping malformed push: %v", err)
		return err
	}
	return s.HandleEvents(ctx, "", events)
}

// SetConnected records the event stream's connection state.
func (s *Session) SetConnected(ctx context.Context, connected bool, reason string) error {
	if connected {
		return s.enqueue(ctx, Connected())
	}
	return s.enqueue(ctx, Disconnected(reason))
}

// Show opens a rendered list and returns its id.
func (s *Session) Show(ctx context.Context, terms []filter.Term, opts engine.ShowOptions) (uint64, error) {
	return call(ctx, s, func(reply chan uint64) actor.Input {
		return Show(terms, opts, false, reply)
	})
}

// ShowHome opens the home list.
func (s *Session) ShowHome(ctx context.Context, terms []filter.Term) (uint64, error) {
	return call(ctx, s, func(reply chan uint64) actor.Input {
		return Show(terms, engine.ShowOptions{Trigger: "home"}, true, reply)
	})
}

// Open adds a live list that is not the current one.
func (s *Session) Open(ctx context.Context, terms []filter.Term) (uint64, error) {
	return call(ctx, s, func(reply chan uint64) actor.Input {
		return Open(terms, reply)
	})
}

// EchoLocal inserts msg optimistically.
func (s *Session) EchoLocal(ctx context.Context, msg engine.LocalMessage) (EchoHandle, error) {
	r, err := call(ctx, s, func(reply chan echoReply) actor.Input {
		return EchoLocal(msg, reply)
	})
	if err != nil {
		return EchoHandle{}, err
	}
	return EchoHandle{LocalID: r.LocalID, ProvisionalID: r.ProvisionalID}, nil
}

// ConfirmEcho reports whether a pending echo was re-keyed to serverID.
func (s *Session) ConfirmEcho(ctx context.Context, localID string, serverID int64) (bool, error) {
	return call(ctx, s, func(reply chan bool) actor.Input {
		return ConfirmEcho(localID, serverID, reply)
	})
}

// FailEcho marks a local echo failed.
func (s *Session) FailEcho(ctx context.Context, localID string) (bool, error) {
	return call(ctx, s, func(reply chan bool) actor.Input {
		return FailEcho(localID, false, reply)
	})
}

// DiscardEcho removes a local echo.
func (s *Session) DiscardEcho(ctx context.Context, localID string) (bool, error) {
	return call(ctx, s, func(reply chan bool) actor.Input {
		return FailEcho(localID, true, reply)
	})
}

// Snapshot returns a copy of the session state.
func (s *Session) Snapshot(ctx context.Context) (Snapshot, error) {
	return call(ctx, s, func(reply chan Snapshot) actor.Input {
		return TakeSnapshot(reply)
	})
}

func (s *Session) enqueue(ctx context.Context, input actor.Input) error {
	err := s.actor.Enqueue(ctx, input)
	if errors.Is(err, actor.ErrStopped) {
		return ErrClosed
	}
	return err
}

// call enqueues the input built by mk and waits for its reply.
func call[T any](ctx context.Context, s *Session, mk func(chan T) actor.Input) (T, error) {
	var zero T
	reply := make(chan T, 1)
	if err := s.enqueue(ctx, mk(reply)); err != nil {
		return zero, err
	}
	select {
	case v := <-reply:
		return v, nil
	case <-ctx.Done():
		return zero, ctx.Err()
	case <-s.actor.Done():
		return zero, ErrClosed
	}
}
