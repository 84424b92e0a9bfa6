package engine

import (
	"github.com/bhandras/msgsync/internal/filter"
	"github.com/bhandras/msgsync/internal/message"
	"github.com/bhandras/msgsync/internal/wire"
	"github.com/bhandras/msgsync/pkg/logger"
)

// UpdateFlags applies an update_message_flags event. Flags of messages not
// loaded locally are not tracked, but views filtered on the flag are still
// brought up to date.
func (e *Engine) UpdateFlags(ev wire.UpdateMessageFlagsEvent) {
	flag, ok := message.FlagFromServer(ev.Flag)
	if !ok {
		logger.Debugf("engine: ignoring unknown flag %q", ev.Flag)
		return
	}
	add := ev.Op == wire.OpAdd

	ids := ev.Messages
	// "all" only exists for marking everything as read.
	if ev.All && flag == message.FlagRead {
		ids = e.deps.Store.IDs()
	}

	var records []*message.Record
	for _, id := range ids {
		if r, ok := e.deps.Store.Get(id); ok {
			r.Flags = r.Flags.Set(flag, add)
			records = append(records, r)
		}
	}
	e.c.Observer.EventsApplied(wire.EventTypeUpdateMessageFlags, len(ids))

	switch flag {
	case message.FlagStarred:
		if add {
			e.deps.Starred.Add(ids)
		} else {
			e.deps.Starred.Remove(ids)
		}
		e.c.StarredUI.Rerender(e.deps.Starred.Count())
		e.rerenderEverywhere(records, false)
		e.UpdateViewsFilteredOnMessageProperty(ids, filter.TermIsStarred, add)

	case message.FlagRead:
		if add {
			e.deps.Unread.MarkRead(ids)
		} else {
			e.deps.Unread.MarkUnread(records)
		}
		e.rerenderEverywhere(records, false)
		e.UpdateViewsFilteredOnMessageProperty(ids, filter.TermIsUnread, !add)

	case message.FlagCollapsed:
		e.rerenderEverywhere(records, false)

	case message.FlagMentioned, message.FlagStreamWildcardMentioned, message.FlagTopicWildcardMentioned:
		for _, r := range records {
			e.deps.Unread.UpdateMessageForMention(r, false)
		}
		e.deps.Unread.ClearAndPopulateUnreadMentionTopics()
		e.rerenderEverywhere(records, false)
		e.UpdateViewsFilteredOnMessageProperty(ids, filter.TermIsMentioned, add)

	case message.FlagHasAlertWord:
		e.rerenderEverywhere(records, false)
		e.UpdateViewsFilteredOnMessageProperty(ids, filter.TermIsAlerted, add)
	}

	e.refreshSidebars()
}

// UpdateReaction applies a reaction event.
func (e *Engine) UpdateReaction(ev wire.ReactionEvent) {
	e.c.Observer.EventsApplied(wire.EventTypeReaction, 1)
	re := message.Reaction{
		EmojiName: ev.EmojiName,
		EmojiCode: ev.EmojiCode,
		UserID:    ev.UserID,
	}

	r, ok := e.deps.Store.Get(ev.MessageID)
	if !ok {
		// A reaction added to a message we do not have may pull it into a
		// has:reaction view. A removal cannot, since the message may still
		// carry other reactions we know nothing about.
		if ev.Op == wire.OpAdd {
			e.UpdateViewsFilteredOnMessageProperty([]int64{ev.MessageID}, filter.TermHasReaction, true)
		}
		return
	}

	var changed bool
	if ev.Op == wire.OpAdd {
		changed = r.AddReaction(re)
	} else {
		changed = r.RemoveReaction(re)
	}
	if !changed {
		return
	}
	e.rerenderEverywhere([]*message.Record{r}, false)
	e.UpdateViewsFilteredOnMessageProperty([]int64{r.ID}, filter.TermHasReaction, r.HasReactions())
}
