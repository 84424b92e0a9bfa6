package engine

import (
	"encoding/json"

	"github.com/bhandras/msgsync/internal/message"
	"github.com/bhandras/msgsync/internal/wire"
	"github.com/bhandras/msgsync/pkg/logger"
)

// LocalMessage is a message the user just sent, before the server has
// acknowledged it.
type LocalMessage struct {
	SenderID       int64
	SenderFullName string
	// StreamID and Topic address a stream message; DirectRecipients a
	// direct message.
	StreamID         int64
	Topic            string
	DirectRecipients []int64
	// Content is the locally rendered content.
	Content    string
	RawContent string
	Timestamp  int64
}

// EchoLocalMessage inserts msg optimistically under a provisional id and
// returns the record. Its LocalID correlates it with the server copy.
func (e *Engine) EchoLocalMessage(msg LocalMessage) *message.Record {
	localID, id := e.deps.Echo.NewLocalID()
	raw := wire.RawMessage{
		ID:             id,
		LocalID:        localID,
		SenderID:       msg.SenderID,
		SenderFullName: msg.SenderFullName,
		Content:        msg.Content,
		RawContent:     msg.RawContent,
		Timestamp:      msg.Timestamp,
		// The sender has read their own message.
		Flags: []string{message.ServerFlagRead},
	}
	if len(msg.DirectRecipients) > 0 {
		raw.Type = wire.MessageTypePrivate
		recipients := make([]wire.Recipient, 0, len(msg.DirectRecipients))
		for _, uid := range msg.DirectRecipients {
			recipients = append(recipients, wire.Recipient{ID: uid})
		}
		raw.DisplayRecipient, _ = json.Marshal(recipients)
	} else {
		raw.Type = wire.MessageTypeStream
		raw.StreamID = msg.StreamID
		raw.Subject = msg.Topic
		name, _ := e.c.Streams.Stream(msg.StreamID)
		raw.DisplayRecipient, _ = json.Marshal(name)
	}

	records := e.InsertNewMessages([]wire.RawMessage{raw}, true, true)
	return records[0]
}

// ConfirmEcho re-keys the local echo localID under serverID. Afterwards
// exactly one record exists for the message. It reports whether a pending
// or failed echo was confirmed.
func (e *Engine) ConfirmEcho(localID string, serverID int64) bool {
	_, ok := e.reify(localID, serverID)
	if ok {
		e.refreshSidebars()
	}
	return ok
}

// confirmFromServer handles a message event for one of our echoes: the
// echo is re-keyed and then overwritten with the server's copy.
func (e *Engine) confirmFromServer(raw wire.RawMessage) (*message.Record, bool) {
	r, ok := e.reify(raw.LocalID, raw.ID)
	if !ok {
		return nil, false
	}
	e.deps.Store.Refresh(raw)
	e.deps.Unread.ProcessLoadedMessages([]*message.Record{r})
	e.rerenderEverywhere([]*message.Record{r}, false)
	return r, true
}

func (e *Engine) reify(localID string, serverID int64) (*message.Record, bool) {
	entry, ok := e.deps.Echo.Get(localID)
	if !ok || !e.deps.Echo.IsLocalEcho(entry.ProvisionalID) {
		return nil, false
	}
	oldID := entry.ProvisionalID
	e.deps.Echo.Confirm(localID, serverID)

	// The server copy was already ingested on its own; drop the echo so a
	// single record remains.
	if existing, ok := e.deps.Store.Get(serverID); ok {
		logger.Debugf("engine: echo %s already delivered as %d", localID, serverID)
		e.RemoveMessages([]int64{oldID})
		return existing, true
	}

	r, ok := e.deps.Store.Reify(oldID, serverID)
	if !ok {
		return nil, false
	}

	for _, l := range e.deps.Views.AllRendered() {
		if l.Data().Rekey(oldID, r) {
			if l.SelectedID() == oldID {
				l.Select(serverID)
			}
			l.RerenderMessages([]*message.Record{r}, false)
			continue
		}
		// Non-local narrows skipped the echo; now that the message has a
		// final id the server can tell whether it matches.
		if !l.Filter().CanApplyLocally() {
			e.maybeAddNarrowedMessages([]*message.Record{r}, l, true)
		}
	}
	for _, d := range e.deps.Views.NonRenderedData() {
		d.Rekey(oldID, r)
	}

	e.deps.Unread.Rekey(oldID, serverID)
	e.deps.DMGroups.Rekey(oldID, serverID)
	e.deps.RecentSenders.Rekey(oldID, serverID)
	if r.IsStream() {
		e.deps.TopicHistory.Rekey(r.StreamID, r.Topic, oldID, serverID)
	}
	e.deps.RecentView.Rekey(r)
	return r, true
}

// FailEcho marks the local echo localID as failed. The record stays in
// place, flagged, so the user can retry or discard it.
func (e *Engine) FailEcho(localID string) bool {
	entry, ok := e.deps.Echo.Get(localID)
	if !ok || !e.deps.Echo.Fail(localID) {
		return false
	}
	r, ok := e.deps.Store.Get(entry.ProvisionalID)
	if !ok {
		return true
	}
	r.EchoFailed = true
	e.rerenderEverywhere([]*message.Record{r}, false)
	return true
}

// DiscardEcho removes a failed or pending echo entirely.
func (e *Engine) DiscardEcho(localID string) bool {
	entry, ok := e.deps.Echo.Get(localID)
	if !ok || !e.deps.Echo.IsLocalEcho(entry.ProvisionalID) {
		return false
	}
	e.deps.Echo.Forget(localID)
	e.RemoveMessages([]int64{entry.ProvisionalID})
	return true
}
