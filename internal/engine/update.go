package engine

import (
	"strconv"

	"github.com/bhandras/msgsync/internal/filter"
	"github.com/bhandras/msgsync/internal/index"
	"github.com/bhandras/msgsync/internal/message"
	"github.com/bhandras/msgsync/internal/view"
	"github.com/bhandras/msgsync/internal/wire"
	"github.com/bhandras/msgsync/pkg/logger"
)

// navigation is a Show deferred until the batch has been fully applied.
type navigation struct {
	terms []filter.Term
	opts  ShowOptions
}

// updateBatch is the state shared by the events of one UpdateMessages call.
type updateBatch struct {
	toRerender       []*message.Record
	changedNarrow    bool
	refreshedCurrent bool
	changedCompose   bool
	anyContentEdited bool
	cacheMissing     bool
	navigations      []navigation
}

// UpdateMessages applies a batch of content edits and topic/stream moves.
func (e *Engine) UpdateMessages(events []wire.UpdateMessageEvent) {
	b := &updateBatch{}

	// Cached list data may no longer match its filter once messages move
	// or change.
	e.deps.Views.CacheClear()

	for i := range events {
		ev := &events[i]
		if err := ev.Validate(); err != nil {
			logger.Warnf("engine: dropping update: %v", err)
			continue
		}
		e.updateMessage(b, ev)
	}
	e.c.Observer.EventsApplied(wire.EventTypeUpdateMessage, len(events))

	// Every rerendered message gets the edited animation if any message in
	// the batch had its content edited. This is coarser than per message.
	if len(b.toRerender) > 0 {
		e.rerenderEverywhere(b.toRerender, b.anyContentEdited)
	}

	if b.changedCompose {
		e.c.Compose.UpdateMessageList()
	}

	e.refreshSidebars()

	// Navigate only once all local data reflects the batch, so the new
	// list never reads half-updated state.
	for _, nav := range b.navigations {
		e.Show(nav.terms, nav.opts)
	}
}

func (e *Engine) updateMessage(b *updateBatch, ev *wire.UpdateMessageEvent) {
	anchor, haveAnchor := e.deps.Store.Get(ev.MessageID)
	if haveAnchor {
		e.applyContentEdit(b, ev, anchor)
	}

	topicEdited := ev.TopicEdited()
	streamChanged := ev.StreamChanged()
	origTopic := ev.OrigTopic()
	if origTopic == "" && haveAnchor && anchor.IsStream() {
		origTopic = anchor.Topic
	}

	if !topicEdited && !streamChanged {
		if haveAnchor {
			b.toRerender = append(b.toRerender, anchor)
		}
	} else {
		e.applyMove(b, ev, origTopic)
	}

	if haveAnchor {
		// rendering_only events come from server-side rendering and are
		// not user edits.
		if !ev.RenderingOnly {
			anchor.LastEditTimestamp = ev.EditTimestamp
		}
		e.c.Notifier.ReceivedMessages([]*message.Record{anchor})
		e.c.AlertWords.ProcessMessage(anchor)
	}

	if topicEdited || streamChanged {
		preTopic, postTopic := origTopic, origTopic
		if topicEdited {
			postTopic = *ev.Subject
		}
		postStreamID := ev.StreamID
		if streamChanged {
			postStreamID = *ev.NewStreamID
		}

		e.deps.RecentSenders.ProcessTopicEdit(index.TopicEdit{
			MessageIDs:  ev.MessageIDs,
			OldStreamID: ev.StreamID,
			OldTopic:    preTopic,
			NewStreamID: postStreamID,
			NewTopic:    postTopic,
		})
		// Moves can change which mentions are current anywhere, not just
		// in this topic.
		e.deps.Unread.ClearAndPopulateUnreadMentionTopics()
		e.deps.RecentView.ProcessTopicEdit(ev.StreamID, preTopic, postTopic, postStreamID)
	}

	if haveAnchor {
		if id, open := e.c.EditHistory.OpenMessageID(); open && id == anchor.ID {
			e.c.EditHistory.Refresh(anchor)
		}
	}

	if ev.RenderedContent != nil {
		ids := []int64{ev.MessageID}
		info := message.ScanContent(*ev.RenderedContent)
		e.UpdateViewsFilteredOnMessageProperty(ids, filter.TermHasImage, info.HasImage)
		e.UpdateViewsFilteredOnMessageProperty(ids, filter.TermHasLink, info.HasLink)
		e.UpdateViewsFilteredOnMessageProperty(ids, filter.TermHasAttachment, info.HasAttachment)

		flags := message.ParseServerFlags(ev.Flags)
		e.UpdateViewsFilteredOnMessageProperty(ids, filter.TermIsMentioned, flags.Mentioned())
		e.UpdateViewsFilteredOnMessageProperty(ids, filter.TermIsAlerted, flags.Has(message.FlagHasAlertWord))
	}
}

// applyContentEdit updates the anchor message of an event we hold locally.
func (e *Engine) applyContentEdit(b *updateBatch, ev *wire.UpdateMessageEvent, anchor *message.Record) {
	anchor.LocalEditTimestamp = 0
	anchor.UpdateBooleans(ev.Flags)

	if ev.RenderedContent != nil {
		anchor.SetContent(*ev.RenderedContent)
	}
	if ev.IsMeMessage != nil {
		anchor.IsMeMessage = *ev.IsMeMessage
	}

	e.c.EditTracker.EndMessageEdit(ev.MessageID)

	// Content history goes in before any move entry so a combined edit
	// logs both.
	if ev.OrigContent != nil {
		if e.cfg.AllowEditHistory {
			anchor.PrependEditHistory(message.EditHistoryEntry{
				UserID:              ev.UserID,
				Timestamp:           ev.EditTimestamp,
				PrevContent:         ev.OrigContent,
				PrevRenderedContent: ev.OrigRenderedContent,
			})
		}
		b.anyContentEdited = true
		if ev.Content != nil {
			anchor.RawContent = *ev.Content
		}
	}

	if e.deps.Unread.UpdateMessageForMention(anchor, b.anyContentEdited) {
		e.c.RecentViewUI.InplaceRerender(anchor.Key())
	}
}

// applyMove handles a topic rename and/or stream move of ev.MessageIDs.
func (e *Engine) applyMove(b *updateBatch, ev *wire.UpdateMessageEvent, origTopic string) {
	topicEdited := ev.TopicEdited()
	streamChanged := ev.StreamChanged()
	goingForward := ev.GoingForward()
	oldStreamID := ev.StreamID
	_, oldStreamKnown := e.c.Streams.Stream(oldStreamID)

	current := e.deps.Views.Current()
	var (
		currentFilter *filter.Filter
		selectedID    int64
	)
	if current != nil {
		currentFilter = current.Filter()
		selectedID = current.SelectedID()
	}
	selectionChangedTopic := current != nil && containsID(ev.MessageIDs, selectedID)

	var moved []*message.Record
	for _, id := range ev.MessageIDs {
		r, ok := e.deps.Store.Get(id)
		if !ok {
			b.cacheMissing = true
			continue
		}
		moved = append(moved, r)
	}
	// The server does not sort message_ids; the last id is used as the
	// maximum removed below.
	sortRecords(moved)

	compose := e.deps.Compose
	switch {
	case !goingForward:
	case !oldStreamKnown:
		logger.Debugf("engine: stream %d no longer accessible, compose not followed", oldStreamID)
	case compose.StreamID() != 0 && compose.StreamID() == oldStreamID && compose.Topic() == origTopic:
		b.changedCompose = true
		if topicEdited {
			compose.SetTopic(*ev.Subject)
		}
		if streamChanged {
			compose.SetStreamID(*ev.NewStreamID)
			e.c.Compose.RecipientChanged(compose.StreamID(), compose.Topic())
		}
		compose.WarnIfTopicResolved()
		e.c.Compose.SetFocusedRecipient()
	}

	if goingForward {
		e.deps.Drafts.RenameStreamRecipient(oldStreamID, origTopic, ev.NewStreamID, ev.Subject)
	}

	// The old topic's history must be trimmed before any record changes.
	if n := len(moved); n > 0 {
		e.deps.TopicHistory.RemoveMessages(index.Removal{
			StreamID:     oldStreamID,
			Topic:        origTopic,
			NumMessages:  n,
			MaxRemovedID: moved[n-1].ID,
			Leaving:      recordIDs(moved),
		})
	}

	var newStreamName string
	if streamChanged {
		newStreamName, _ = e.c.Streams.Stream(*ev.NewStreamID)
	}
	for _, r := range moved {
		if e.cfg.AllowEditHistory {
			entry := message.EditHistoryEntry{UserID: ev.UserID, Timestamp: ev.EditTimestamp}
			if streamChanged {
				prev, next := oldStreamID, *ev.NewStreamID
				entry.PrevStream, entry.Stream = &prev, &next
			}
			if topicEdited {
				prev, next := origTopic, *ev.Subject
				entry.PrevTopic, entry.Topic = &prev, &next
			}
			r.PrependEditHistory(entry)
		}
		r.LastEditTimestamp = ev.EditTimestamp

		// Unread buckets are keyed by the old topic, so this also runs
		// before the record changes.
		e.deps.Unread.UpdateUnreadTopics(r, ev.NewStreamID, ev.Subject)

		if topicEdited {
			r.Topic = *ev.Subject
			r.TopicLinks = ev.TopicLinks
		}
		if streamChanged {
			r.StreamID = *ev.NewStreamID
			if newStreamName != "" {
				r.DisplayRecipient = newStreamName
			}
		}

		e.deps.TopicHistory.AddMessage(r.StreamID, r.Topic, r.ID)
	}

	// Follow the conversation if the user is reading it and enough of it
	// moved that the selected message went along.
	if goingForward && selectionChangedTopic && currentFilter != nil && oldStreamID != 0 &&
		currentFilter.HasTopic(oldStreamID, origTopic) {

		newFilter := currentFilter
		changed := false
		if streamChanged {
			newFilter = newFilter.WithNewParams(filter.Term{
				Operator: filter.OperatorChannel,
				Operand:  strconv.FormatInt(*ev.NewStreamID, 10),
			})
			changed = true
		}
		if topicEdited {
			newFilter = newFilter.WithNewParams(filter.Term{
				Operator: filter.OperatorTopic,
				Operand:  *ev.Subject,
			})
			changed = true
		}
		if changed {
			b.changedNarrow = true
			b.navigations = append(b.navigations, navigation{
				terms: newFilter.Terms(),
				opts:  ShowOptions{Trigger: "stream/topic change", ThenSelectID: selectedID},
			})
		}
	}

	// Messages we never loaded may have moved into the current narrow; only
	// a refetch can show them.
	if !b.changedNarrow && b.cacheMissing && currentFilter != nil {
		streamID := oldStreamID
		if streamChanged {
			streamID = *ev.NewStreamID
		}
		topic := origTopic
		if topicEdited {
			topic = *ev.Subject
		}
		if currentFilter.CanNewlyMatchMovedMessages(streamID, topic) {
			b.refreshedCurrent = true
			b.navigations = append(b.navigations, navigation{
				terms: currentFilter.Terms(),
				opts: ShowOptions{
					Trigger:       "stream/topic change",
					ThenSelectID:  selectedID,
					ForceRerender: true,
				},
			})
		}
	}

	for _, l := range e.deps.Views.AllRendered() {
		if l == current && (b.changedNarrow || b.refreshedCurrent) {
			continue
		}
		e.reconcileMovedInList(l, moved)
	}
}

// reconcileMovedInList drops moved messages that no longer match the list
// and adds those that now do.
func (e *Engine) reconcileMovedInList(l *view.List, moved []*message.Record) {
	f := l.Filter()
	if f.CanApplyLocally() {
		var stale []int64
		for _, r := range moved {
			if !f.Predicate(r) {
				stale = append(stale, r.ID)
			}
		}
		l.RemoveAndRerender(stale)
		// AddMessages filters, so the whole set can be offered.
		l.AddMessages(moved)
		return
	}

	// Remove what the list holds so the server's answer re-adds (and
	// thereby rerenders) whatever still matches.
	var held []int64
	for _, r := range moved {
		if l.Data().Has(r.ID) {
			held = append(held, r.ID)
		}
	}
	l.RemoveAndRerender(held)
	e.maybeAddNarrowedMessages(moved, l, false)
}
