package session

import (
	"github.com/bhandras/msgsync/internal/actor"
	"github.com/bhandras/msgsync/internal/wire"
	"github.com/bhandras/msgsync/pkg/logger"
)

// Reduce applies one input to the session state. Fetches the engine issued
// while applying it are returned as effects.
func Reduce(state *State, input actor.Input) (*State, []actor.Effect) {
	switch in := input.(type) {
	case evEvents:
		reduceEvents(state, in)

	case evFetchCompleted:
		if _, ok := state.Pending[in.Result.Request.ID]; !ok {
			logger.Debugf("session: completion for unknown fetch %s", in.Result.Request.ID)
		}
		delete(state.Pending, in.Result.Request.ID)
		state.Engine.ApplyFetchResult(in.Result)

	case evConnected:
		state.Connected = true

	case evDisconnected:
		state.Connected = false
		logger.Infof("session: disconnected: %s", in.Reason)

	case cmdShow:
		if in.Background {
			reply(in.Reply, state.Engine.Open(in.Terms).ID())
			break
		}
		l := state.Engine.Show(in.Terms, in.Opts)
		if in.Home {
			state.Engine.Deps().Views.SetHome(l)
		}
		reply(in.Reply, l.ID())

	case cmdEchoLocal:
		r := state.Engine.EchoLocalMessage(in.Message)
		reply(in.Reply, echoReply{LocalID: r.LocalID, ProvisionalID: r.ID})

	case cmdConfirmEcho:
		reply(in.Reply, state.Engine.ConfirmEcho(in.LocalID, in.ServerID))

	case cmdFailEcho:
		if in.Discard {
			reply(in.Reply, state.Engine.DiscardEcho(in.LocalID))
		} else {
			reply(in.Reply, state.Engine.FailEcho(in.LocalID))
		}

	case cmdSnapshot:
		reply(in.Reply, snapshot(state))
	}

	return state, drainFetches(state)
}

// reduceEvents applies a pushed batch in server order. Consecutive runs of
// message and update_message events are applied as one batch each.
func reduceEvents(state *State, in evEvents) {
	if in.QueueID != "" {
		state.QueueID = in.QueueID
	}

	var (
		messages []wire.RawMessage
		ownSent  bool
		updates  []wire.UpdateMessageEvent
	)
	flushMessages := func() {
		if len(messages) > 0 {
			state.Engine.InsertNewMessages(messages, ownSent, false)
		}
		messages, ownSent = nil, false
	}
	flushUpdates := func() {
		if len(updates) > 0 {
			state.Engine.UpdateMessages(updates)
		}
		updates = nil
	}

	for _, ev := range in.Events {
		if id := ev.EventID(); id <= state.LastEventID && id != 0 {
			logger.Debugf("session: skipping replayed event %d", id)
			continue
		} else if id > state.LastEventID {
			state.LastEventID = id
		}

		if _, ok := ev.(wire.UpdateMessageEvent); !ok {
			flushUpdates()
		}
		if _, ok := ev.(wire.MessageEvent); !ok {
			flushMessages()
		}

		switch e := ev.(type) {
		case wire.MessageEvent:
			messages = append(messages, e.Message)
			if e.Message.LocalID != "" {
				ownSent = true
			}
		case wire.UpdateMessageEvent:
			updates = append(updates, e)
		case wire.DeleteMessageEvent:
			state.Engine.RemoveMessages(e.IDs())
		case wire.UpdateMessageFlagsEvent:
			state.Engine.UpdateFlags(e)
		case wire.ReactionEvent:
			state.Engine.UpdateReaction(e)
		}
	}
	flushMessages()
	flushUpdates()
}

func drainFetches(state *State) []actor.Effect {
	reqs := state.queue.drain()
	if len(reqs) == 0 {
		return nil
	}
	effects := make([]actor.Effect, 0, len(reqs))
	for _, req := range reqs {
		state.Pending[req.ID] = req
		effects = append(effects, effFetch{Request: req})
	}
	return effects
}

func snapshot(state *State) Snapshot {
	deps := state.Engine.Deps()
	current := deps.Views.Current()

	snap := Snapshot{
		Connected:      state.Connected,
		LastEventID:    state.LastEventID,
		Messages:       deps.Store.Len(),
		PendingFetches: len(state.Pending),
		Unread:         deps.Unread.Counts(),
	}
	for _, l := range deps.Views.AllRendered() {
		status := l.Data().FetchStatus()
		snap.Lists = append(snap.Lists, ListSnapshot{
			ID:          l.ID(),
			Narrow:      l.Filter().String(),
			MessageIDs:  l.Data().IDs(),
			SelectedID:  l.SelectedID(),
			Current:     l == current,
			FoundOldest: status.FoundOldest,
			FoundNewest: status.FoundNewest,
		})
	}
	return snap
}

// reply completes a command without ever blocking the loop.
func reply[T any](ch chan T, v T) {
	if ch == nil {
		return
	}
	select {
	case ch <- v:
	default:
	}
}
