package engine

import (
	"github.com/bhandras/msgsync/internal/filter"
	"github.com/bhandras/msgsync/internal/index"
	"github.com/bhandras/msgsync/internal/message"
	"github.com/bhandras/msgsync/internal/view"
)

// Collaborators receive notifications from the engine. Records passed to
// them are read-only snapshots valid until the next reconciliation pass.

// Notifier fans out newly received or edited messages.
type Notifier interface {
	ReceivedMessages(records []*message.Record)
	// ProcessVisible marks messages the user can currently see as read.
	ProcessVisible()
}

// AlertWords scans a message for the user's alert words.
type AlertWords interface {
	ProcessMessage(r *message.Record)
}

// LocalMixNotifier tells the user about messages they sent that landed
// outside the current view.
type LocalMixNotifier interface {
	NotifyLocalMixes(records []*message.Record, needUserToScroll bool, narrowToRecipient func(id int64))
	NotifyMessagesOutsideCurrentSearch(records []*message.Record)
}

// ShowOptions describe a navigation.
type ShowOptions struct {
	Trigger       string
	ThenSelectID  int64
	ForceRerender bool
}

// Navigator is told when the engine switched the current view.
type Navigator interface {
	Shown(l *view.List, opts ShowOptions)
}

// EditHistoryPanel is the message edit history dialog.
type EditHistoryPanel interface {
	// OpenMessageID returns the message whose history is on screen.
	OpenMessageID() (int64, bool)
	Refresh(r *message.Record)
}

// Sidebar shows the stream, direct message and unread aggregates.
type Sidebar interface {
	UpdateStreams()
	UpdatePrivateMessages()
	UpdateUnreadCounts(counts index.Counts)
}

// StarredUI shows the starred message count.
type StarredUI interface {
	Rerender(count int)
}

// RecentViewUI shows the recent conversations index.
type RecentViewUI interface {
	InplaceRerender(key message.ConversationKey)
}

// ComposeUI reflects compose state changes caused by moves.
type ComposeUI interface {
	RecipientChanged(streamID int64, topic string)
	SetFocusedRecipient()
	UpdateMessageList()
}

// StreamResolver looks up streams the user can access.
type StreamResolver interface {
	Stream(id int64) (name string, ok bool)
}

// MessageEditTracker tracks in-progress local edits.
type MessageEditTracker interface {
	EndMessageEdit(id int64)
}

// Observer receives counters about the engine's work.
type Observer interface {
	EventsApplied(kind string, n int)
	FetchIssued(kind FetchKind)
	FetchCompleted(kind FetchKind, err error)
	ViewsUpdated(n int)
}

// Collaborators bundles every collaborator. Nil fields get no-op defaults.
type Collaborators struct {
	Notifier     Notifier
	AlertWords   AlertWords
	LocalMix     LocalMixNotifier
	Navigator    Navigator
	EditHistory  EditHistoryPanel
	Sidebar      Sidebar
	StarredUI    StarredUI
	RecentViewUI RecentViewUI
	Compose      ComposeUI
	Streams      StreamResolver
	EditTracker  MessageEditTracker
	Observer     Observer
	// NewRenderer returns the renderer of a list created by navigation.
	NewRenderer func(f *filter.Filter) view.Renderer
}

type nop struct{}

func (nop) ReceivedMessages([]*message.Record) {}
func (nop) ProcessVisible() {}
func (nop) ProcessMessage(*message.Record) {}
func (nop) NotifyLocalMixes([]*message.Record, bool, func(int64)) {}
func (nop) NotifyMessagesOutsideCurrentSearch([]*message.Record) {}
func (nop) Shown(*view.List, ShowOptions) {}
func (nop) OpenMessageID() (int64, bool) { return 0, false }
func (nop) Refresh(*message.Record) {}
func (nop) UpdateStreams() {}
func (nop) UpdatePrivateMessages() {}
func (nop) UpdateUnreadCounts(index.Counts) {}
func (nop) Rerender(int) {}
func (nop) InplaceRerender(message.ConversationKey) {}
func (nop) RecipientChanged(int64, string) {}
func (nop) SetFocusedRecipient() {}
func (nop) UpdateMessageList() {}
func (nop) EndMessageEdit(int64) {}
func (nop) EventsApplied(string, int) {}
func (nop) FetchIssued(FetchKind) {}
func (nop) FetchCompleted(FetchKind, error) {}
func (nop) ViewsUpdated(int) {}

// anyStream resolves every stream id with an empty name.
type anyStream struct{}

func (anyStream) Stream(int64) (string, bool) { return "", true }

func (c Collaborators) withDefaults() Collaborators {
	if c.Notifier == nil {
		c.Notifier = nop{}
	}
	if c.AlertWords == nil {
		c.AlertWords = nop{}
	}
	if c.LocalMix == nil {
		c.LocalMix = nop{}
	}
	if c.Navigator == nil {
		c.Navigator = nop{}
	}
	if c.EditHistory == nil {
		c.EditHistory = nop{}
	}
	if c.Sidebar == nil {
		c.Sidebar = nop{}
	}
	if c.StarredUI == nil {
		c.StarredUI = nop{}
	}
	if c.RecentViewUI == nil {
		c.RecentViewUI = nop{}
	}
	if c.Compose == nil {
		c.Compose = nop{}
	}
	if c.Streams == nil {
		c.Streams = anyStream{}
	}
	if c.EditTracker == nil {
		c.EditTracker = nop{}
	}
	if c.Observer == nil {
		c.Observer = nop{}
	}
	if c.NewRenderer == nil {
		c.NewRenderer = func(*filter.Filter) view.Renderer { return view.NopRenderer{} }
	}
	return c
}
