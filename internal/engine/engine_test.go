package engine

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"testing"

	"github.com/bhandras/msgsync/internal/compose"
	"github.com/bhandras/msgsync/internal/filter"
	"github.com/bhandras/msgsync/internal/message"
	"github.com/bhandras/msgsync/internal/view"
	"github.com/bhandras/msgsync/internal/wire"
	"github.com/stretchr/testify/require"
)

const general = int64(1)

type fakeFetcher struct {
	reqs []FetchRequest
}

func (f *fakeFetcher) Fetch(req FetchRequest) { f.reqs = append(f.reqs, req) }

func (f *fakeFetcher) last(t *testing.T) FetchRequest {
	t.Helper()
	require.NotEmpty(t, f.reqs)
	return f.reqs[len(f.reqs)-1]
}

type rerenderCall struct {
	ids            []int64
	contentChanged bool
}

type recordingRenderer struct {
	rerenders int
	calls     []rerenderCall
}

func (r *recordingRenderer) RenderAdded(*view.List, []*message.Record) bool { return false }

func (r *recordingRenderer) Rerender(*view.List) { r.rerenders++ }

func (r *recordingRenderer) RerenderMessages(_ *view.List, records []*message.Record, contentChanged bool) {
	r.calls = append(r.calls, rerenderCall{ids: recordIDs(records), contentChanged: contentChanged})
}

type recordingNavigator struct {
	shown []ShowOptions
}

func (n *recordingNavigator) Shown(_ *view.List, opts ShowOptions) { n.shown = append(n.shown, opts) }

type recordingStarred struct {
	counts []int
}

func (s *recordingStarred) Rerender(count int) { s.counts = append(s.counts, count) }

type streams map[int64]string

func (s streams) Stream(id int64) (string, bool) {
	name, ok := s[id]
	return name, ok
}

func newTestEngine(t *testing.T, c Collaborators) (*Engine, *fakeFetcher) {
	t.Helper()

	if c.Streams == nil {
		c.Streams = streams{general: "general", 2: "design"}
	}
	n := 0
	fetcher := &fakeFetcher{}
	e := New(Config{AllowEditHistory: true}, NewDeps(), fetcher,
		WithCollaborators(c),
		WithRequestIDs(func() string {
			n++
			return fmt.Sprintf("req-%d", n)
		}),
	)
	return e, fetcher
}

// addList registers a fully loaded list for terms. The first list added
// becomes current.
func addList(e *Engine, r view.Renderer, terms ...filter.Term) *view.List {
	if r == nil {
		r = view.NopRenderer{}
	}
	l := view.NewList(filter.New(terms...), r)
	l.Data().SetFetchStatus(view.FetchStatus{FoundOldest: true, FoundNewest: true})
	e.Deps().Views.Add(l)
	if e.Deps().Views.Current() == nil {
		e.Deps().Views.SetCurrent(l)
	}
	return l
}

func streamMsg(id, streamID int64, topic string, flags ...string) wire.RawMessage {
	name, _ := json.Marshal(streams{general: "general", 2: "design"}[streamID])
	return wire.RawMessage{
		ID:               id,
		Type:             wire.MessageTypeStream,
		SenderID:         9,
		StreamID:         streamID,
		DisplayRecipient: name,
		Subject:          topic,
		Content:          "<p>hello</p>",
		Flags:            flags,
		Timestamp:        1000 + id,
	}
}

func is(operand string) filter.Term {
	return filter.Term{Operator: filter.OperatorIs, Operand: operand}
}

func channel(id int64) filter.Term {
	return filter.Term{Operator: filter.OperatorChannel, Operand: fmt.Sprint(id)}
}

func topic(name string) filter.Term {
	return filter.Term{Operator: filter.OperatorTopic, Operand: name}
}

func strPtr(s string) *string { return &s }

func int64Ptr(v int64) *int64 { return &v }

// requireSound checks that every locally evaluable, fully loaded list holds
// exactly the loaded records matching its filter.
func requireSound(t *testing.T, e *Engine) {
	t.Helper()

	for _, l := range e.Deps().Views.AllRendered() {
		f := l.Filter()
		if !f.CanApplyLocally() {
			continue
		}
		var want []int64
		for _, id := range e.Deps().Store.IDs() {
			r, _ := e.Deps().Store.Get(id)
			if f.Predicate(r) {
				want = append(want, id)
			}
		}
		got := l.Data().IDs()
		sort.Slice(got, func(i, j int) bool { return got[i] < got[j] })
		require.Equal(t, want, nilIfEmpty(got), "list %s", f)
	}
}

func nilIfEmpty(ids []int64) []int64 {
	if len(ids) == 0 {
		return nil
	}
	return ids
}

func TestMentionViewFollowsEditThenDelete(t *testing.T) {
	t.Parallel()

	e, _ := newTestEngine(t, Collaborators{})
	mentions := addList(e, nil, is(filter.IsMentioned))

	e.InsertNewMessages([]wire.RawMessage{streamMsg(101, general, "x")}, false, false)
	require.False(t, mentions.Data().Has(101))

	e.UpdateMessages([]wire.UpdateMessageEvent{{
		MessageID:       101,
		Flags:           []string{message.ServerFlagMentioned},
		RenderedContent: strPtr(`<p><span class="user-mention">@me</span></p>`),
		EditTimestamp:   2000,
	}})
	require.True(t, mentions.Data().Has(101))

	r, ok := e.Deps().Store.Get(101)
	require.True(t, ok)
	require.Equal(t, int64(2000), r.LastEditTimestamp)

	e.RemoveMessages([]int64{101})
	require.False(t, mentions.Data().Has(101))
	_, ok = e.Deps().Store.Get(101)
	require.False(t, ok)
}

func TestMentionViewFollowsFlagEvent(t *testing.T) {
	t.Parallel()

	e, _ := newTestEngine(t, Collaborators{})
	mentions := addList(e, nil, is(filter.IsMentioned))

	e.InsertNewMessages([]wire.RawMessage{streamMsg(101, general, "x")}, false, false)
	require.False(t, mentions.Data().Has(101))

	e.UpdateFlags(wire.UpdateMessageFlagsEvent{
		Op:       wire.OpAdd,
		Flag:     message.ServerFlagMentioned,
		Messages: []int64{101},
	})
	require.True(t, mentions.Data().Has(101))

	e.UpdateFlags(wire.UpdateMessageFlagsEvent{
		Op:       wire.OpRemove,
		Flag:     message.ServerFlagMentioned,
		Messages: []int64{101},
	})
	require.False(t, mentions.Data().Has(101))
	requireSound(t, e)
}

func TestMoveIsAtomicAcrossIndices(t *testing.T) {
	t.Parallel()

	e, _ := newTestEngine(t, Collaborators{})
	topicA := addList(e, nil, channel(general), topic("A"))
	topicB := addList(e, nil, channel(general), topic("B"))

	e.InsertNewMessages([]wire.RawMessage{
		streamMsg(3, general, "A"),
		streamMsg(5, general, "A"),
		streamMsg(7, general, "A"),
		streamMsg(9, general, "A"),
	}, false, false)
	history := e.Deps().TopicHistory
	require.Equal(t, 4, history.Count(general, "A"))
	require.Equal(t, 0, history.Count(general, "B"))

	e.UpdateMessages([]wire.UpdateMessageEvent{{
		MessageID:     5,
		MessageIDs:    []int64{9, 5, 7},
		StreamID:      general,
		Subject:       strPtr("B"),
		OrigSubject:   "A",
		PropagateMode: wire.PropagateChangeAll,
		EditTimestamp: 3000,
	}})

	require.Equal(t, 1, history.Count(general, "A"))
	require.Equal(t, 3, history.Count(general, "B"))
	for _, id := range []int64{5, 7, 9} {
		r, ok := e.Deps().Store.Get(id)
		require.True(t, ok)
		require.Equal(t, message.ConversationKey{StreamID: general, Topic: "B"}, r.Key())
		require.Equal(t, int64(3000), r.LastEditTimestamp)
		require.NotEmpty(t, r.EditHistory)
		require.Equal(t, "A", *r.EditHistory[0].PrevTopic)
	}

	require.Equal(t, []int64{3}, topicA.Data().IDs())
	require.Equal(t, []int64{5, 7, 9}, topicB.Data().IDs())
	requireSound(t, e)
}

func TestMoveUsesLargestMovedIDForHistory(t *testing.T) {
	t.Parallel()

	e, _ := newTestEngine(t, Collaborators{})
	e.InsertNewMessages([]wire.RawMessage{
		streamMsg(3, general, "A"),
		streamMsg(5, general, "A"),
		streamMsg(7, general, "A"),
		streamMsg(9, general, "A"),
	}, false, false)

	e.UpdateMessages([]wire.UpdateMessageEvent{{
		MessageID:     9,
		MessageIDs:    []int64{9, 5, 7},
		StreamID:      general,
		Subject:       strPtr("B"),
		OrigSubject:   "A",
		PropagateMode: wire.PropagateChangeAll,
	}})

	// Had 7 been taken as the largest removed id, 9 would linger as the
	// newest message of A.
	a, ok := e.Deps().TopicHistory.Get(general, "A")
	require.True(t, ok)
	require.Equal(t, int64(3), a.MaxID)

	b, ok := e.Deps().TopicHistory.Get(general, "B")
	require.True(t, ok)
	require.Equal(t, int64(9), b.MaxID)
}

func TestMoveFollowsSelectionComposeAndDrafts(t *testing.T) {
	t.Parallel()

	nav := &recordingNavigator{}
	e, fetcher := newTestEngine(t, Collaborators{Navigator: nav})
	current := addList(e, nil, channel(general), topic("A"))

	e.InsertNewMessages([]wire.RawMessage{
		streamMsg(5, general, "A"),
		streamMsg(7, general, "A"),
	}, false, false)
	current.Select(7)

	e.Deps().Compose.Open(general, "A")
	draftID := e.Deps().Drafts.Save(compose.Draft{StreamID: general, Topic: "A", Content: "wip"})

	e.UpdateMessages([]wire.UpdateMessageEvent{{
		MessageID:     7,
		MessageIDs:    []int64{5, 7},
		StreamID:      general,
		NewStreamID:   int64Ptr(2),
		Subject:       strPtr("✔ A"),
		OrigSubject:   "A",
		PropagateMode: wire.PropagateChangeLater,
	}})

	// The current list was replaced by one narrowed to the new location.
	now := e.Deps().Views.Current()
	require.NotSame(t, current, now)
	require.True(t, now.Filter().HasTopic(2, "✔ A"))
	require.Equal(t, int64(7), now.SelectedID())
	_, alive := e.Deps().Views.Lookup(current.ID())
	require.False(t, alive)

	req := fetcher.last(t)
	require.Equal(t, FetchNarrowWindow, req.Kind)
	require.Equal(t, now.ID(), req.ListID)
	require.Equal(t, int64(7), req.Anchor)
	require.Len(t, nav.shown, 1)

	require.Equal(t, int64(2), e.Deps().Compose.StreamID())
	require.Equal(t, "✔ A", e.Deps().Compose.Topic())
	require.True(t, e.Deps().Compose.ResolvedWarning())

	draft, ok := e.Deps().Drafts.Get(draftID)
	require.True(t, ok)
	require.Equal(t, int64(2), draft.StreamID)
	require.Equal(t, "✔ A", draft.Topic)

	r, _ := e.Deps().Store.Get(5)
	require.Equal(t, "design", r.DisplayRecipient)
}

func TestChangeOneMoveDoesNotFollow(t *testing.T) {
	t.Parallel()

	e, _ := newTestEngine(t, Collaborators{})
	current := addList(e, nil, channel(general), topic("A"))
	e.InsertNewMessages([]wire.RawMessage{streamMsg(5, general, "A")}, false, false)
	e.Deps().Compose.Open(general, "A")

	e.UpdateMessages([]wire.UpdateMessageEvent{{
		MessageID:     5,
		MessageIDs:    []int64{5},
		StreamID:      general,
		Subject:       strPtr("B"),
		OrigSubject:   "A",
		PropagateMode: wire.PropagateChangeOne,
	}})

	require.Same(t, current, e.Deps().Views.Current())
	require.Equal(t, "A", e.Deps().Compose.Topic())
	require.Empty(t, current.Data().IDs())
}

func TestMoveOfUnknownMessagesRefreshesCurrentView(t *testing.T) {
	t.Parallel()

	e, fetcher := newTestEngine(t, Collaborators{})
	current := addList(e, nil, channel(general), topic("B"))

	e.UpdateMessages([]wire.UpdateMessageEvent{{
		MessageID:     40,
		MessageIDs:    []int64{40, 41},
		StreamID:      general,
		Subject:       strPtr("B"),
		OrigSubject:   "A",
		PropagateMode: wire.PropagateChangeAll,
	}})

	now := e.Deps().Views.Current()
	require.NotSame(t, current, now)
	require.True(t, now.Filter().Equal(current.Filter()))
	require.Equal(t, FetchNarrowWindow, fetcher.last(t).Kind)
}

func TestStarredViewKeepsUnstarredMessages(t *testing.T) {
	t.Parallel()

	starredUI := &recordingStarred{}
	e, _ := newTestEngine(t, Collaborators{StarredUI: starredUI})
	starred := addList(e, nil, is(filter.IsStarred))
	starredInGeneral := addList(e, nil, is(filter.IsStarred), channel(general))

	e.InsertNewMessages([]wire.RawMessage{
		streamMsg(20, general, "x", message.ServerFlagStarred),
	}, false, false)
	e.UpdateFlags(wire.UpdateMessageFlagsEvent{Op: wire.OpAdd, Flag: message.ServerFlagStarred, Messages: []int64{20}})
	require.True(t, starred.Data().Has(20))
	require.True(t, starredInGeneral.Data().Has(20))

	e.UpdateFlags(wire.UpdateMessageFlagsEvent{Op: wire.OpRemove, Flag: message.ServerFlagStarred, Messages: []int64{20}})
	require.True(t, starred.Data().Has(20))
	require.False(t, starredInGeneral.Data().Has(20))
	require.Equal(t, []int{1, 0}, starredUI.counts)
}

func TestEchoIsConfirmedIntoOneRecord(t *testing.T) {
	t.Parallel()

	e, _ := newTestEngine(t, Collaborators{})
	general1 := addList(e, nil, channel(general))

	echoed := e.EchoLocalMessage(LocalMessage{
		SenderID:  9,
		StreamID:  general,
		Topic:     "t",
		Content:   "<p>hi</p>",
		Timestamp: 5000,
	})
	require.True(t, message.IsProvisionalID(echoed.ID))
	require.True(t, echoed.LocallyEchoed)
	require.True(t, general1.Data().Has(echoed.ID))
	require.True(t, e.Deps().Echo.IsPending(echoed.LocalID))

	raw := streamMsg(300, general, "t", message.ServerFlagRead)
	raw.LocalID = echoed.LocalID
	records := e.InsertNewMessages([]wire.RawMessage{raw}, true, false)
	require.Len(t, records, 1)
	require.Same(t, echoed, records[0])

	require.Equal(t, 1, e.Deps().Store.Len())
	require.Equal(t, int64(300), echoed.ID)
	require.False(t, echoed.LocallyEchoed)
	require.Equal(t, []int64{300}, general1.Data().IDs())
	require.Equal(t, 1, e.Deps().TopicHistory.Count(general, "t"))

	// Confirmed echoes are no longer tracked.
	_, ok := e.Deps().Echo.Get(echoed.LocalID)
	require.False(t, ok)
	require.Empty(t, e.Deps().Echo.Pending())

	// A repeated delivery updates the same record.
	e.InsertNewMessages([]wire.RawMessage{raw}, true, false)
	require.Equal(t, 1, e.Deps().Store.Len())
	require.Equal(t, []int64{300}, general1.Data().IDs())
}

func TestEchoConfirmedAfterServerCopyArrived(t *testing.T) {
	t.Parallel()

	e, _ := newTestEngine(t, Collaborators{})
	general1 := addList(e, nil, channel(general))

	echoed := e.EchoLocalMessage(LocalMessage{StreamID: general, Topic: "t", Content: "<p>hi</p>"})
	provisional := echoed.ID

	e.InsertNewMessages([]wire.RawMessage{streamMsg(300, general, "t")}, false, false)
	require.Equal(t, 2, e.Deps().Store.Len())

	require.True(t, e.ConfirmEcho(echoed.LocalID, 300))
	require.Equal(t, 1, e.Deps().Store.Len())
	require.Equal(t, []int64{300}, general1.Data().IDs())
	_, ok := e.Deps().Store.Get(provisional)
	require.False(t, ok)

	require.False(t, e.ConfirmEcho(echoed.LocalID, 300))
}

func TestFailedEchoCanBeDiscarded(t *testing.T) {
	t.Parallel()

	e, _ := newTestEngine(t, Collaborators{})
	general1 := addList(e, nil, channel(general))

	echoed := e.EchoLocalMessage(LocalMessage{StreamID: general, Topic: "t"})
	require.True(t, e.FailEcho(echoed.LocalID))
	require.True(t, echoed.EchoFailed)
	require.False(t, e.FailEcho(echoed.LocalID))

	require.True(t, e.DiscardEcho(echoed.LocalID))
	require.Empty(t, general1.Data().IDs())
	require.Zero(t, e.Deps().Store.Len())
	require.Zero(t, e.Deps().TopicHistory.Count(general, "t"))
}

func TestInsertIsIdempotent(t *testing.T) {
	t.Parallel()

	e, _ := newTestEngine(t, Collaborators{})
	all := addList(e, nil)
	unread := addList(e, nil, is(filter.IsUnread))

	batch := []wire.RawMessage{
		streamMsg(1, general, "a"),
		streamMsg(2, general, "a", message.ServerFlagRead),
		streamMsg(3, 2, "b"),
	}
	e.InsertNewMessages(batch, false, false)
	ids, unreadIDs := all.Data().IDs(), unread.Data().IDs()
	counts := e.Deps().Unread.Counts()

	e.InsertNewMessages(batch, false, false)
	require.Equal(t, 3, e.Deps().Store.Len())
	require.Equal(t, ids, all.Data().IDs())
	require.Equal(t, unreadIDs, unread.Data().IDs())
	require.Equal(t, counts, e.Deps().Unread.Counts())
	require.Equal(t, 2, e.Deps().TopicHistory.Count(general, "a"))
	requireSound(t, e)
}

func TestListsStaySoundAcrossMutations(t *testing.T) {
	t.Parallel()

	e, _ := newTestEngine(t, Collaborators{})
	addList(e, nil, is(filter.IsStarred))
	addList(e, nil, is(filter.IsUnread))
	addList(e, nil, channel(general), topic("a"))
	addList(e, nil, filter.Term{Operator: filter.OperatorHas, Operand: filter.HasLink})
	addList(e, nil, filter.Term{Operator: filter.OperatorHas, Operand: filter.HasReaction, Negated: true})

	e.InsertNewMessages([]wire.RawMessage{
		streamMsg(1, general, "a"),
		streamMsg(2, general, "a", message.ServerFlagStarred),
		streamMsg(3, general, "b", message.ServerFlagRead),
	}, false, false)
	requireSound(t, e)

	e.UpdateFlags(wire.UpdateMessageFlagsEvent{Op: wire.OpAdd, Flag: message.ServerFlagRead, Messages: []int64{1, 2}})
	requireSound(t, e)

	e.UpdateMessages([]wire.UpdateMessageEvent{{
		MessageID:       3,
		RenderedContent: strPtr(`<p><a href="https://example.com">x</a></p>`),
		OrigContent:     strPtr("x"),
		Content:         strPtr("[x](https://example.com)"),
	}})
	requireSound(t, e)

	e.UpdateMessages([]wire.UpdateMessageEvent{{
		MessageID:     3,
		MessageIDs:    []int64{3},
		StreamID:      general,
		Subject:       strPtr("a"),
		OrigSubject:   "b",
		PropagateMode: wire.PropagateChangeOne,
	}})
	requireSound(t, e)

	e.UpdateReaction(wire.ReactionEvent{
		Op:        wire.OpAdd,
		MessageID: 1,
		Reaction:  wire.Reaction{EmojiName: "tada", EmojiCode: "1f389", UserID: 9},
	})
	requireSound(t, e)

	e.UpdateFlags(wire.UpdateMessageFlagsEvent{Op: wire.OpRemove, Flag: message.ServerFlagRead, Messages: []int64{1}})
	requireSound(t, e)

	e.RemoveMessages([]int64{2, 3})
	requireSound(t, e)
}

func TestNonLocalNarrowAsksServer(t *testing.T) {
	t.Parallel()

	e, fetcher := newTestEngine(t, Collaborators{})
	search := addList(e, nil, filter.Term{Operator: filter.OperatorSearch, Operand: "foo"})
	require.False(t, search.Filter().CanApplyLocally())

	// Local echoes are never sent to the server for matching.
	e.EchoLocalMessage(LocalMessage{StreamID: general, Topic: "t"})
	require.Empty(t, fetcher.reqs)

	e.InsertNewMessages([]wire.RawMessage{streamMsg(40, general, "t"), streamMsg(41, general, "t")}, false, false)
	req := fetcher.last(t)
	require.Equal(t, FetchNarrowMatch, req.Kind)
	require.Equal(t, search.ID(), req.ListID)
	require.Equal(t, []int64{40, 41}, req.MessageIDs)
	require.True(t, req.NewMessages)
	require.Empty(t, search.Data().IDs())

	e.ApplyFetchResult(FetchResult{Request: req, MatchedIDs: []int64{41}})
	require.Equal(t, []int64{41}, search.Data().IDs())

	// The same answer applied again changes nothing.
	e.ApplyFetchResult(FetchResult{Request: req, MatchedIDs: []int64{41}})
	require.Equal(t, []int64{41}, search.Data().IDs())
}

func TestNonLocalPropertyChangeUsesNarrowedFetch(t *testing.T) {
	t.Parallel()

	e, fetcher := newTestEngine(t, Collaborators{})
	list := addList(e, nil, is(filter.IsStarred), filter.Term{Operator: filter.OperatorSearch, Operand: "foo"})

	e.InsertNewMessages([]wire.RawMessage{streamMsg(50, general, "t")}, false, false)
	fetcher.reqs = nil

	e.UpdateFlags(wire.UpdateMessageFlagsEvent{Op: wire.OpAdd, Flag: message.ServerFlagStarred, Messages: []int64{50}})
	req := fetcher.last(t)
	require.Equal(t, FetchNarrowedProperty, req.Kind)
	require.Equal(t, []int64{50}, req.MessageIDs)
	require.True(t, req.Narrow.Equal(list.Filter()))

	e.ApplyFetchResult(FetchResult{
		Request:  req,
		Messages: []wire.RawMessage{streamMsg(50, general, "t", message.ServerFlagStarred)},
	})
	require.Equal(t, []int64{50}, list.Data().IDs())

	// Absent from the answer means no longer matching.
	e.ApplyFetchResult(FetchResult{Request: req})
	require.Empty(t, list.Data().IDs())
}

func TestPropertyChangeFetchesUnknownMessagesOnce(t *testing.T) {
	t.Parallel()

	e, fetcher := newTestEngine(t, Collaborators{})
	first := addList(e, nil, is(filter.IsStarred))
	second := addList(e, nil, is(filter.IsStarred), channel(general))

	e.InsertNewMessages([]wire.RawMessage{
		streamMsg(10, general, "t", message.ServerFlagStarred),
		streamMsg(30, general, "t", message.ServerFlagStarred),
	}, false, false)
	require.Empty(t, fetcher.reqs)

	// Unstarring something we never saw cannot add it anywhere.
	e.UpdateFlags(wire.UpdateMessageFlagsEvent{Op: wire.OpRemove, Flag: message.ServerFlagStarred, Messages: []int64{25}})
	require.Empty(t, fetcher.reqs)

	e.UpdateFlags(wire.UpdateMessageFlagsEvent{Op: wire.OpAdd, Flag: message.ServerFlagStarred, Messages: []int64{20}})
	require.Len(t, fetcher.reqs, 1)
	req := fetcher.reqs[0]
	require.Equal(t, FetchForProperty, req.Kind)
	require.Nil(t, req.Narrow)
	require.Equal(t, []int64{20}, req.MessageIDs)

	e.ApplyFetchResult(FetchResult{
		Request:  req,
		Messages: []wire.RawMessage{streamMsg(20, general, "t", message.ServerFlagStarred)},
	})
	require.Equal(t, []int64{10, 20, 30}, first.Data().IDs())
	require.Equal(t, []int64{10, 20, 30}, second.Data().IDs())

	// The server not returning an id must not cause another round trip.
	e.UpdateFlags(wire.UpdateMessageFlagsEvent{Op: wire.OpAdd, Flag: message.ServerFlagStarred, Messages: []int64{22}})
	req = fetcher.last(t)
	e.ApplyFetchResult(FetchResult{Request: req})
	require.Len(t, fetcher.reqs, 2)
}

func TestFetchResultForTornDownListIsIgnored(t *testing.T) {
	t.Parallel()

	e, fetcher := newTestEngine(t, Collaborators{})
	search := addList(e, nil, filter.Term{Operator: filter.OperatorSearch, Operand: "foo"})

	e.InsertNewMessages([]wire.RawMessage{streamMsg(40, general, "t")}, false, false)
	req := fetcher.last(t)
	e.Deps().Views.Remove(search)

	require.NotPanics(t, func() {
		e.ApplyFetchResult(FetchResult{Request: req, MatchedIDs: []int64{40}})
	})
	require.Empty(t, search.Data().IDs())

	require.NotPanics(t, func() {
		e.ApplyFetchResult(FetchResult{Request: req, Err: errors.New("boom")})
	})
}

func TestBatchRerenderMarksEveryMessageEdited(t *testing.T) {
	t.Parallel()

	e, _ := newTestEngine(t, Collaborators{})
	renderer := &recordingRenderer{}
	addList(e, renderer, channel(general))

	e.InsertNewMessages([]wire.RawMessage{
		streamMsg(1, general, "t"),
		streamMsg(2, general, "t"),
	}, false, false)
	renderer.calls = nil

	e.UpdateMessages([]wire.UpdateMessageEvent{
		{
			MessageID:       1,
			RenderedContent: strPtr("<p>edited</p>"),
			OrigContent:     strPtr("hello"),
			Content:         strPtr("edited"),
		},
		{
			// Only re-rendered by the server, not edited.
			MessageID:       2,
			RenderedContent: strPtr("<p>hello</p>"),
			RenderingOnly:   true,
		},
	})

	require.Equal(t, []rerenderCall{{ids: []int64{1, 2}, contentChanged: true}}, renderer.calls)

	r, _ := e.Deps().Store.Get(1)
	require.Equal(t, "edited", r.RawContent)
	require.Len(t, r.EditHistory, 1)
	require.Equal(t, "hello", *r.EditHistory[0].PrevContent)
}

func TestReactionOnUnknownMessage(t *testing.T) {
	t.Parallel()

	e, fetcher := newTestEngine(t, Collaborators{})
	reacted := addList(e, nil, filter.Term{Operator: filter.OperatorHas, Operand: filter.HasReaction})

	e.UpdateReaction(wire.ReactionEvent{Op: wire.OpRemove, MessageID: 70})
	require.Empty(t, fetcher.reqs)

	e.UpdateReaction(wire.ReactionEvent{
		Op:        wire.OpAdd,
		MessageID: 70,
		Reaction:  wire.Reaction{EmojiName: "tada", EmojiCode: "1f389", UserID: 9},
	})
	req := fetcher.last(t)
	require.Equal(t, FetchForProperty, req.Kind)

	raw := streamMsg(70, general, "t")
	raw.Reactions = []wire.Reaction{{EmojiName: "tada", EmojiCode: "1f389", UserID: 9}}
	e.ApplyFetchResult(FetchResult{Request: req, Messages: []wire.RawMessage{raw}})
	require.Equal(t, []int64{70}, reacted.Data().IDs())
}

func TestRemoveUpdatesIndices(t *testing.T) {
	t.Parallel()

	starredUI := &recordingStarred{}
	e, _ := newTestEngine(t, Collaborators{StarredUI: starredUI})
	e.InsertNewMessages([]wire.RawMessage{
		streamMsg(1, general, "a"),
		streamMsg(2, general, "a", message.ServerFlagStarred),
	}, false, false)

	e.RemoveMessages([]int64{2, 404})

	require.Equal(t, []int{0}, starredUI.counts)
	require.Equal(t, 1, e.Deps().TopicHistory.Count(general, "a"))
	a, _ := e.Deps().TopicHistory.Get(general, "a")
	require.Equal(t, int64(1), a.MaxID)
	require.False(t, e.Deps().Unread.IsUnread(2))
	require.Equal(t, []int64{1}, e.Deps().Store.IDs())
}

func TestOpenKeepsCurrentList(t *testing.T) {
	t.Parallel()

	e, fetcher := newTestEngine(t, Collaborators{})
	home := e.Show([]filter.Term{channel(general)}, ShowOptions{Trigger: "home"})
	e.Deps().Views.SetHome(home)

	starred := e.Open([]filter.Term{is(filter.IsStarred)})
	req := fetcher.last(t)
	require.Equal(t, FetchNarrowWindow, req.Kind)
	require.Equal(t, starred.ID(), req.ListID)
	require.Zero(t, req.Anchor)

	require.Same(t, home, e.Deps().Views.Current())
	require.Len(t, e.Deps().Views.AllRendered(), 2)

	// A starred message arriving later lands in the open list once loaded.
	e.ApplyFetchResult(FetchResult{
		Request:     req,
		FetchStatus: view.FetchStatus{FoundOldest: true, FoundNewest: true},
	})
	e.InsertNewMessages([]wire.RawMessage{streamMsg(30, general, "x", message.ServerFlagStarred)}, false, false)
	require.True(t, starred.Data().Has(30))
}

func TestStaleWindowResultDoesNotUndoMove(t *testing.T) {
	t.Parallel()

	e, fetcher := newTestEngine(t, Collaborators{})
	e.InsertNewMessages([]wire.RawMessage{streamMsg(10, general, "A")}, false, false)

	topicA := e.Show([]filter.Term{channel(general), topic("A")}, ShowOptions{Trigger: "test"})
	req := fetcher.last(t)
	topicB := addList(e, nil, channel(general), topic("B"))

	e.UpdateMessages([]wire.UpdateMessageEvent{{
		MessageID:     10,
		MessageIDs:    []int64{10},
		StreamID:      general,
		Subject:       strPtr("B"),
		OrigSubject:   "A",
		PropagateMode: wire.PropagateChangeAll,
	}})

	// The window was computed by the server before the move.
	e.ApplyFetchResult(FetchResult{
		Request:     req,
		Messages:    []wire.RawMessage{streamMsg(10, general, "A")},
		FetchStatus: view.FetchStatus{FoundOldest: true, FoundNewest: true},
	})

	r, ok := e.Deps().Store.Get(10)
	require.True(t, ok)
	require.Equal(t, "B", r.Topic)
	require.Equal(t, 0, e.Deps().TopicHistory.Count(general, "A"))
	require.Equal(t, 1, e.Deps().TopicHistory.Count(general, "B"))
	require.False(t, topicA.Data().Has(10))
	require.True(t, topicB.Data().Has(10))
	requireSound(t, e)
}

func TestNeedsFetchRespectsLoadedEnds(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		loaded []int64
		status view.FetchStatus
		id     int64
		want   bool
	}{
		{name: "empty list, newest not reached", id: 5},
		{
			name:   "empty list, newest reached",
			status: view.FetchStatus{FoundNewest: true},
			id:     5,
			want:   true,
		},
		{name: "inside loaded range", loaded: []int64{10, 20}, id: 15, want: true},
		{name: "below first, oldest not reached", loaded: []int64{10, 20}, id: 5},
		{
			name:   "below first, oldest reached",
			loaded: []int64{10, 20},
			status: view.FetchStatus{FoundOldest: true},
			id:     5,
			want:   true,
		},
		{name: "above last, newest not reached", loaded: []int64{10, 20}, id: 25},
		{
			name:   "above last, newest reached",
			loaded: []int64{10, 20},
			status: view.FetchStatus{FoundNewest: true},
			id:     25,
			want:   true,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			l := view.NewList(filter.New(), view.NopRenderer{})
			var records []*message.Record
			for _, id := range tc.loaded {
				records = append(records, &message.Record{ID: id, Type: message.TypeStream, StreamID: general})
			}
			l.Data().AddFetched(records, tc.status)
			require.Equal(t, tc.want, needsFetch(l, tc.id))
		})
	}
}

func TestPropertyChangeOnPartlyLoadedList(t *testing.T) {
	t.Parallel()

	e, fetcher := newTestEngine(t, Collaborators{})
	starred := e.Deps().Views.Add(view.NewList(filter.New(is(filter.IsStarred)), view.NopRenderer{}))
	e.ApplyFetchResult(FetchResult{
		Request: FetchRequest{Kind: FetchNarrowWindow, ListID: starred.ID()},
		Messages: []wire.RawMessage{
			streamMsg(10, general, "t", message.ServerFlagStarred),
			streamMsg(20, general, "t", message.ServerFlagStarred),
		},
	})
	require.Equal(t, []int64{10, 20}, starred.Data().IDs())

	// Neither end is loaded, so messages outside 10..20 cannot be placed.
	e.UpdateFlags(wire.UpdateMessageFlagsEvent{Op: wire.OpAdd, Flag: message.ServerFlagStarred, Messages: []int64{5, 25}})
	require.Empty(t, fetcher.reqs)

	e.UpdateFlags(wire.UpdateMessageFlagsEvent{Op: wire.OpAdd, Flag: message.ServerFlagStarred, Messages: []int64{15}})
	req := fetcher.last(t)
	require.Equal(t, FetchForProperty, req.Kind)
	require.Equal(t, []int64{15}, req.MessageIDs)
}

func TestOpenWithoutHomeLeavesCurrentUnset(t *testing.T) {
	t.Parallel()

	e, _ := newTestEngine(t, Collaborators{})
	starred := e.Open([]filter.Term{is(filter.IsStarred)})
	require.Nil(t, e.Deps().Views.Current())

	first := e.Show([]filter.Term{channel(general)}, ShowOptions{Trigger: "test"})
	require.Same(t, first, e.Deps().Views.Current())

	e.Show([]filter.Term{channel(2)}, ShowOptions{Trigger: "test"})
	_, alive := e.Deps().Views.Lookup(first.ID())
	require.False(t, alive)
	_, alive = e.Deps().Views.Lookup(starred.ID())
	require.True(t, alive)
}
