package engine

import (
	"github.com/bhandras/msgsync/internal/index"
	"github.com/bhandras/msgsync/internal/message"
	"github.com/bhandras/msgsync/internal/wire"
)

// RemoveMessages deletes ids from every list, index and finally the store.
// Unknown ids are ignored.
func (e *Engine) RemoveMessages(ids []int64) {
	if len(ids) == 0 {
		return
	}

	for _, l := range e.deps.Views.AllRendered() {
		l.RemoveAndRerender(ids)
	}
	for _, d := range e.deps.Views.NonRenderedData() {
		d.Remove(ids)
	}

	// The indices look the records up, so they go before the store.
	e.removeFromTopicHistory(ids)
	e.deps.RecentSenders.UpdateTopicsOfDeletedMessageIDs(ids)
	e.deps.RecentView.UpdateTopicsOfDeletedMessageIDs(ids)

	starredBefore := e.deps.Starred.Count()
	e.deps.Starred.Remove(ids)
	if e.deps.Starred.Count() != starredBefore {
		e.c.StarredUI.Rerender(e.deps.Starred.Count())
	}

	e.deps.Unread.MarkRead(ids)
	e.deps.Store.Remove(ids)

	e.c.Observer.EventsApplied(wire.EventTypeDeleteMessage, len(ids))
	e.refreshSidebars()
}

// removeFromTopicHistory updates topic history once per affected topic.
func (e *Engine) removeFromTopicHistory(ids []int64) {
	byTopic := make(map[message.ConversationKey][]*message.Record)
	var order []message.ConversationKey
	for _, id := range ids {
		r, ok := e.deps.Store.Get(id)
		if !ok || !r.IsStream() {
			continue
		}
		key := r.Key()
		if _, ok := byTopic[key]; !ok {
			order = append(order, key)
		}
		byTopic[key] = append(byTopic[key], r)
	}

	for _, key := range order {
		records := byTopic[key]
		sortRecords(records)
		e.deps.TopicHistory.RemoveMessages(index.Removal{
			StreamID:     key.StreamID,
			Topic:        key.Topic,
			NumMessages:  len(records),
			MaxRemovedID: records[len(records)-1].ID,
			Leaving:      recordIDs(records),
		})
	}
}
