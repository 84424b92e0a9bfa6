package session

import (
	"time"

	"github.com/bhandras/msgsync/internal/actor"
	"github.com/bhandras/msgsync/internal/engine"
	"github.com/bhandras/msgsync/internal/filter"
	"github.com/bhandras/msgsync/internal/index"
	"github.com/bhandras/msgsync/internal/wire"
)

// State is owned by the session loop. The engine and everything it
// reconciles is only ever touched from Reduce.
type State struct {
	Engine *engine.Engine
	// Pending are the fetches issued and not yet completed, by request id.
	Pending map[string]engine.FetchRequest
	// LastEventID is the id of the newest applied server event.
	LastEventID int64
	QueueID     string
	Connected   bool

	queue *queueFetcher
}

// NewState returns a state whose engine reconciles deps. Fetches the engine
// issues are turned into effects by Reduce.
func NewState(cfg engine.Config, deps *engine.Deps, opts ...engine.Option) *State {
	q := &queueFetcher{}
	return &State{
		Engine:  engine.New(cfg, deps, q, opts...),
		Pending: make(map[string]engine.FetchRequest),
		queue:   q,
	}
}

// ListSnapshot describes one rendered list.
type ListSnapshot struct {
	ID          uint64  `json:"id"`
	Narrow      string  `json:"narrow"`
	MessageIDs  []int64 `json:"message_ids"`
	SelectedID  int64   `json:"selected_id,omitempty"`
	Current     bool    `json:"current,omitempty"`
	FoundOldest bool    `json:"found_oldest"`
	FoundNewest bool    `json:"found_newest"`
}

// Snapshot is a copy of the session's state taken on the loop.
type Snapshot struct {
	Connected      bool           `json:"connected"`
	LastEventID    int64          `json:"last_event_id"`
	Messages       int            `json:"messages"`
	PendingFetches int            `json:"pending_fetches"`
	Lists          []ListSnapshot `json:"lists"`
	Unread         index.Counts   `json:"unread"`
}

type evEvents struct {
	actor.InputBase
	QueueID string
	Events  []wire.Event
}

type evFetchCompleted struct {
	actor.InputBase
	Result   engine.FetchResult
	Duration time.Duration
}

type evConnected struct {
	actor.InputBase
}

type evDisconnected struct {
	actor.InputBase
	Reason string
}

type cmdShow struct {
	actor.InputBase
	Terms []filter.Term
	Opts  engine.ShowOptions
	Home  bool
	// Background opens the list without making it current.
	Background bool
	Reply      chan uint64
}

type cmdEchoLocal struct {
	actor.InputBase
	Message engine.LocalMessage
	Reply   chan echoReply
}

type echoReply struct {
	LocalID       string
	ProvisionalID int64
}

type cmdConfirmEcho struct {
	actor.InputBase
	LocalID  string
	ServerID int64
	Reply    chan bool
}

type cmdFailEcho struct {
	actor.InputBase
	LocalID string
	Discard bool
	Reply   chan bool
}

type cmdSnapshot struct {
	actor.InputBase
	Reply chan Snapshot
}

// effFetch asks the runtime to execute a remote fetch.
type effFetch struct {
	actor.EffectBase
	Request engine.FetchRequest
}
