// Package engine implements message event reconciliation: it applies
// server-pushed mutations (new messages, edits, moves, flag and reaction
// changes, deletions) to the shared message records and keeps every live
// view and secondary index consistent with the server.
//
// The engine is single threaded. Every mutation happens synchronously inside
// one of its entry points, either for an inbound event or for a completed
// fetch delivered through ApplyFetchResult. Fetches are requested from a
// Fetcher and their results may arrive after later event batches; every
// transition is idempotent so late or repeated results are safe.
package engine

import (
	"sort"

	"github.com/bhandras/msgsync/internal/compose"
	"github.com/bhandras/msgsync/internal/echo"
	"github.com/bhandras/msgsync/internal/index"
	"github.com/bhandras/msgsync/internal/message"
	"github.com/bhandras/msgsync/internal/view"
	"github.com/bhandras/msgsync/internal/wire"
)

// Deps holds the mutable registries the engine reconciles. It is built once
// per process and handed to New.
type Deps struct {
	Store   *message.Store
	Views   *view.Registry
	Echo    *echo.Tracker
	Compose *compose.State
	Drafts  *compose.Drafts

	TopicHistory  *index.TopicHistory
	RecentSenders *index.RecentSenders
	RecentView    *index.RecentView
	Unread        *index.Unread
	Starred       *index.Starred
	DMGroups      *index.DirectMessageGroups
}

// NewDeps returns empty registries wired to one store.
func NewDeps() *Deps {
	store := message.NewStore()
	return &Deps{
		Store:         store,
		Views:         view.NewRegistry(),
		Echo:          echo.NewTracker(),
		Compose:       &compose.State{},
		Drafts:        compose.NewDrafts(),
		TopicHistory:  index.NewTopicHistory(store),
		RecentSenders: index.NewRecentSenders(),
		RecentView:    index.NewRecentView(store),
		Unread:        index.NewUnread(),
		Starred:       index.NewStarred(),
		DMGroups:      index.NewDirectMessageGroups(),
	}
}

// Config holds organization policy that affects reconciliation.
type Config struct {
	// AllowEditHistory records synthetic edit history entries for content
	// edits and moves.
	AllowEditHistory bool
}

// Engine reconciles server events into the registries in Deps.
type Engine struct {
	cfg     Config
	deps    *Deps
	fetcher Fetcher
	c       Collaborators
	newID   func() string
}

// Option configures an Engine.
type Option func(*Engine)

// WithCollaborators installs notification collaborators.
func WithCollaborators(c Collaborators) Option {
	return func(e *Engine) { e.c = c.withDefaults() }
}

// WithRequestIDs overrides how fetch request ids are generated.
func WithRequestIDs(fn func() string) Option {
	return func(e *Engine) {
		if fn != nil {
			e.newID = fn
		}
	}
}

// New returns an engine over deps. A nil fetcher drops every request.
func New(cfg Config, deps *Deps, fetcher Fetcher, opts ...Option) *Engine {
	if deps == nil {
		deps = NewDeps()
	}
	if fetcher == nil {
		fetcher = nopFetcher{}
	}
	e := &Engine{
		cfg:     cfg,
		deps:    deps,
		fetcher: fetcher,
		c:       Collaborators{}.withDefaults(),
		newID:   newRequestID,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Deps returns the registries the engine reconciles.
func (e *Engine) Deps() *Deps { return e.deps }

// processNewMessage canonicalizes a payload into the store and reports
// whether the record is new.
func (e *Engine) processNewMessage(raw wire.RawMessage, deliverLocally bool) (*message.Record, bool) {
	return e.deps.Store.Process(raw, deliverLocally)
}

// indexNewRecords adds first-seen records to the conversation indices and
// starred tracking.
func (e *Engine) indexNewRecords(records []*message.Record) {
	for _, r := range records {
		if r.Flags.Has(message.FlagStarred) {
			e.deps.Starred.Add([]int64{r.ID})
		}
		if r.IsStream() {
			e.deps.TopicHistory.AddMessage(r.StreamID, r.Topic, r.ID)
			e.deps.RecentSenders.ProcessStreamMessage(r)
		}
	}
	e.deps.RecentView.ProcessMessages(records)
}

// refreshSidebars recomputes unread counts and sidebar aggregates.
func (e *Engine) refreshSidebars() {
	e.c.Sidebar.UpdateUnreadCounts(e.deps.Unread.Counts())
	e.c.Sidebar.UpdateStreams()
	e.c.Sidebar.UpdatePrivateMessages()
}

// rerenderEverywhere redraws records in every rendered list that holds
// them.
func (e *Engine) rerenderEverywhere(records []*message.Record, contentChanged bool) {
	if len(records) == 0 {
		return
	}
	for _, l := range e.deps.Views.AllRendered() {
		l.RerenderMessages(records, contentChanged)
	}
}

func recordIDs(records []*message.Record) []int64 {
	out := make([]int64, 0, len(records))
	for _, r := range records {
		out = append(out, r.ID)
	}
	return out
}

func sortRecords(records []*message.Record) {
	sort.Slice(records, func(i, j int) bool { return records[i].ID < records[j].ID })
}

func containsID(ids []int64, id int64) bool {
	for _, have := range ids {
		if have == id {
			return true
		}
	}
	return false
}
