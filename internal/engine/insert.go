package engine

import (
	"github.com/bhandras/msgsync/internal/message"
	"github.com/bhandras/msgsync/internal/view"
	"github.com/bhandras/msgsync/internal/wire"
)

// InsertNewMessages ingests newly arrived payloads into the store and every
// live view and returns their canonical records.
//
// sentByThisClient is true when any of the messages was sent from this
// client. deliverLocally is true for an unconfirmed local echo. Payloads
// carrying the local id of a pending echo confirm that echo instead of
// creating a second record.
func (e *Engine) InsertNewMessages(raws []wire.RawMessage, sentByThisClient, deliverLocally bool) []*message.Record {
	var (
		records   []*message.Record
		confirmed []*message.Record
		fresh     []*message.Record
	)
	for _, raw := range raws {
		if !deliverLocally && raw.LocalID != "" {
			if r, ok := e.confirmFromServer(raw); ok {
				confirmed = append(confirmed, r)
				continue
			}
		}
		r, isNew := e.processNewMessage(raw, deliverLocally)
		records = append(records, r)
		if isNew {
			fresh = append(fresh, r)
		}
	}
	e.c.Observer.EventsApplied(wire.EventTypeMessage, len(raws))
	if len(records) == 0 {
		if len(confirmed) > 0 {
			e.refreshSidebars()
		}
		return confirmed
	}

	anyUntracked := e.deps.Unread.ProcessLoadedMessages(records)
	e.deps.DMGroups.ProcessLoadedMessages(records)

	needUserToScroll := false
	for _, l := range e.deps.Views.AllRendered() {
		if !l.Filter().CanApplyLocally() {
			// A local echo has no final id to ask the server about; the
			// confirmation asks once it arrives.
			if deliverLocally {
				continue
			}
			e.maybeAddNarrowedMessages(records, l, true)
			continue
		}

		info, _ := l.AddNewMessages(records)
		// Scroll position is only meaningful for the list on screen.
		if e.deps.Views.IsCurrentlyVisible(l) && info.NeedUserToScroll {
			needUserToScroll = true
		}
	}

	for _, d := range e.deps.Views.NonRenderedData() {
		if !d.Filter().CanApplyLocally() {
			e.deps.Views.CacheRemove(d.Filter())
			continue
		}
		addNewMessagesData(d, records)
	}

	if sentByThisClient {
		e.c.LocalMix.NotifyLocalMixes(records, needUserToScroll, e.narrowByTopic)
	}

	if anyUntracked {
		e.c.Sidebar.UpdateUnreadCounts(e.deps.Unread.Counts())
	}

	// Echo bookkeeping must exist before the conversation indices see the
	// messages.
	if deliverLocally {
		for _, r := range records {
			e.deps.Echo.Track(r)
		}
	}
	e.indexNewRecords(fresh)

	e.c.Notifier.ProcessVisible()
	e.c.Notifier.ReceivedMessages(records)
	e.c.Sidebar.UpdateStreams()
	e.c.Sidebar.UpdatePrivateMessages()

	return append(confirmed, records...)
}

// addNewMessagesData is the non-rendered counterpart of List.AddNewMessages.
func addNewMessagesData(d *view.ListData, records []*message.Record) {
	if !d.FetchStatus().FoundNewest {
		d.UpdateExpectedMaxID(records)
		return
	}
	d.AddMessages(records)
}
