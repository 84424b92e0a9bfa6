package engine

import (
	"github.com/bhandras/msgsync/internal/filter"
	"github.com/bhandras/msgsync/internal/message"
	"github.com/bhandras/msgsync/internal/view"
	"github.com/bhandras/msgsync/internal/wire"
	"github.com/bhandras/msgsync/pkg/logger"
	"github.com/google/uuid"
)

// FetchKind tells ApplyFetchResult how to resume once a fetch completes.
type FetchKind int

const (
	// FetchForProperty loads records by id so a property change can be
	// re-checked locally.
	FetchForProperty FetchKind = iota
	// FetchNarrowedProperty asks the server which of the changed messages
	// match a non-local narrow.
	FetchNarrowedProperty
	// FetchNarrowMatch asks the server whether messages match a narrow.
	FetchNarrowMatch
	// FetchNarrowWindow loads the initial window of a newly shown list.
	FetchNarrowWindow
)

// String implements fmt.Stringer.
func (k FetchKind) String() string {
	switch k {
	case FetchForProperty:
		return "property"
	case FetchNarrowedProperty:
		return "narrowed_property"
	case FetchNarrowMatch:
		return "narrow_match"
	case FetchNarrowWindow:
		return "narrow_window"
	default:
		return "unknown"
	}
}

// PropertyChange is the input of the property-change view updater.
type PropertyChange struct {
	IDs      []int64
	TermType filter.TermType
	Value    bool
}

// FetchRequest asks the remote fetcher for messages.
type FetchRequest struct {
	ID   string
	Kind FetchKind
	// MessageIDs are the ids to load or to test against Narrow.
	MessageIDs []int64
	// Narrow is nil for id-only fetches.
	Narrow *filter.Filter
	// ListID names the list the result is for, if any.
	ListID uint64
	// Property is set for FetchForProperty.
	Property PropertyChange
	// NewMessages is set for FetchNarrowMatch when the candidates are
	// newly arrived, so they are only appended once the newest end is
	// loaded.
	NewMessages bool
	// Anchor is the message to center a FetchNarrowWindow on; zero means
	// the newest message.
	Anchor int64
}

// FetchResult is the completion of a FetchRequest.
type FetchResult struct {
	Request  FetchRequest
	Messages []wire.RawMessage
	// MatchedIDs is set for FetchNarrowMatch.
	MatchedIDs []int64
	// FetchStatus is set for FetchNarrowWindow.
	FetchStatus view.FetchStatus
	Err         error
}

// Fetcher issues remote fetches. Fetch must not block; the result is
// delivered later through Engine.ApplyFetchResult on the engine's loop.
// Retrying and surfacing failures is the fetcher's job.
type Fetcher interface {
	Fetch(req FetchRequest)
}

// FetcherFunc adapts a function to the Fetcher interface.
type FetcherFunc func(req FetchRequest)

// Fetch implements Fetcher.
func (f FetcherFunc) Fetch(req FetchRequest) { f(req) }

type nopFetcher struct{}

func (nopFetcher) Fetch(FetchRequest) {}

func newRequestID() string { return uuid.NewString() }

func (e *Engine) fetch(req FetchRequest) {
	req.ID = e.newID()
	logger.Tracef("engine: fetch %s id=%s ids=%v list=%d", req.Kind, req.ID, req.MessageIDs, req.ListID)
	e.c.Observer.FetchIssued(req.Kind)
	e.fetcher.Fetch(req)
}

// ApplyFetchResult resumes the work that issued a fetch. Results for lists
// torn down in the meantime are ignored.
func (e *Engine) ApplyFetchResult(res FetchResult) {
	req := res.Request
	e.c.Observer.FetchCompleted(req.Kind, res.Err)
	if res.Err != nil {
		logger.Warnf("engine: fetch %s id=%s failed: %v", req.Kind, req.ID, res.Err)
		return
	}

	switch req.Kind {
	case FetchForProperty:
		e.ingestFetched(res.Messages)
		e.updateViewsFilteredOnMessageProperty(req.Property, req.MessageIDs)

	case FetchNarrowedProperty:
		l, ok := e.deps.Views.Lookup(req.ListID)
		records := e.ingestFetched(res.Messages)
		if !ok {
			return
		}
		returned := make(map[int64]struct{}, len(records))
		for _, r := range records {
			returned[r.ID] = struct{}{}
		}
		var absent []int64
		for _, id := range req.MessageIDs {
			if _, ok := returned[id]; !ok {
				absent = append(absent, id)
			}
		}
		l.Data().Remove(absent)
		l.Data().AddMessages(records)
		l.Rerender()

	case FetchNarrowMatch:
		l, ok := e.deps.Views.Lookup(req.ListID)
		if !ok {
			return
		}
		e.applyNarrowMatch(l, req, res.MatchedIDs)

	case FetchNarrowWindow:
		records := e.ingestFetched(res.Messages)
		l, ok := e.deps.Views.Lookup(req.ListID)
		if !ok {
			return
		}
		added := l.Data().AddFetched(records, res.FetchStatus)
		if l.SelectedID() == 0 && len(added) > 0 {
			l.Select(added[len(added)-1].ID)
		}
		l.Rerender()
	}
}

// ingestFetched canonicalizes fetched payloads and indexes the new ones.
func (e *Engine) ingestFetched(raws []wire.RawMessage) []*message.Record {
	records := make([]*message.Record, 0, len(raws))
	var fresh []*message.Record
	for _, raw := range raws {
		r, isNew := e.processNewMessage(raw, false)
		records = append(records, r)
		if isNew {
			fresh = append(fresh, r)
		}
	}
	if len(fresh) > 0 {
		e.deps.Unread.ProcessLoadedMessages(fresh)
		e.deps.DMGroups.ProcessLoadedMessages(fresh)
		e.indexNewRecords(fresh)
	}
	return records
}

// maybeAddNarrowedMessages asks the server which records match the list's
// narrow. The answer is applied by applyNarrowMatch.
func (e *Engine) maybeAddNarrowedMessages(records []*message.Record, l *view.List, newMessages bool) {
	if len(records) == 0 {
		return
	}
	e.fetch(FetchRequest{
		Kind:        FetchNarrowMatch,
		MessageIDs:  recordIDs(records),
		Narrow:      l.Filter(),
		ListID:      l.ID(),
		NewMessages: newMessages,
	})
}

func (e *Engine) applyNarrowMatch(l *view.List, req FetchRequest, matchedIDs []int64) {
	matched := make(map[int64]struct{}, len(matchedIDs))
	for _, id := range matchedIDs {
		matched[id] = struct{}{}
	}

	var hits, elsewhere []*message.Record
	var misses []int64
	for _, id := range req.MessageIDs {
		r, ok := e.deps.Store.Get(id)
		if !ok {
			continue
		}
		if _, ok := matched[id]; ok {
			hits = append(hits, r)
			continue
		}
		elsewhere = append(elsewhere, r)
		misses = append(misses, id)
	}

	l.RemoveAndRerender(misses)
	if req.NewMessages {
		l.AddNewMessages(hits)
	} else {
		l.AddMessages(hits)
	}
	e.c.Notifier.ProcessVisible()
	if len(elsewhere) > 0 && l == e.deps.Views.Current() {
		e.c.LocalMix.NotifyMessagesOutsideCurrentSearch(elsewhere)
	}
}
