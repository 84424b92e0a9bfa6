package session

import (
	"github.com/bhandras/msgsync/internal/actor"
	"github.com/bhandras/msgsync/internal/engine"
	"github.com/bhandras/msgsync/internal/filter"
	"github.com/bhandras/msgsync/internal/wire"
)

// Events returns an event input carrying one batch of server events.
func Events(queueID string, events []wire.Event) actor.Input {
	return evEvents{QueueID: queueID, Events: events}
}

// Connected returns an event input that indicates the event stream connected.
func Connected() actor.Input {
	return evConnected{}
}

// Disconnected returns an event input that indicates the event stream
// disconnected.
func Disconnected(reason string) actor.Input {
	return evDisconnected{Reason: reason}
}

// Show returns a command input that opens a rendered list for terms. If home
// is set the list becomes the home view. The reply carries the list id.
func Show(terms []filter.Term, opts engine.ShowOptions, home bool, reply chan uint64) actor.Input {
	return cmdShow{Terms: terms, Opts: opts, Home: home, Reply: reply}
}

// Open returns a command input that adds a live list for terms without
// making it current.
func Open(terms []filter.Term, reply chan uint64) actor.Input {
	return cmdShow{Terms: terms, Background: true, Reply: reply}
}

// EchoLocal returns a command input that optimistically inserts a message the
// user just sent.
func EchoLocal(msg engine.LocalMessage, reply chan echoReply) actor.Input {
	return cmdEchoLocal{Message: msg, Reply: reply}
}

// ConfirmEcho returns a command input that re-keys a local echo under the
// id the server assigned.
func ConfirmEcho(localID string, serverID int64, reply chan bool) actor.Input {
	return cmdConfirmEcho{LocalID: localID, ServerID: serverID, Reply: reply}
}

// FailEcho returns a command input that marks a local echo failed, or drops
// it when discard is set.
func FailEcho(localID string, discard bool, reply chan bool) actor.Input {
	return cmdFailEcho{LocalID: localID, Discard: discard, Reply: reply}
}

// TakeSnapshot returns a command input that copies the session state.
func TakeSnapshot(reply chan Snapshot) actor.Input {
	return cmdSnapshot{Reply: reply}
}
