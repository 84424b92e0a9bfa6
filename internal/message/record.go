package message

import "github.com/bhandras/msgsync/internal/wire"

// Type is the recipient kind of a message.
type Type string

const (
	// TypeStream is a message sent to a stream topic.
	TypeStream Type = wire.MessageTypeStream
	// TypePrivate is a direct message.
	TypePrivate Type = wire.MessageTypePrivate
)

// ConversationKey groups messages into conversations: a (stream, topic) pair
// for stream messages, a direct message group key otherwise.
type ConversationKey struct {
	StreamID    int64
	Topic       string
	DirectGroup string
}

// EditHistoryEntry is one entry of a message's edit history. Content fields
// are set for content edits; stream/topic fields for moves.
type EditHistoryEntry struct {
	UserID              int64
	Timestamp           int64
	PrevContent         *string
	PrevRenderedContent *string
	PrevTopic           *string
	Topic               *string
	PrevStream          *int64
	Stream              *int64
}

// Reaction is one user's emoji reaction.
type Reaction struct {
	EmojiName string
	EmojiCode string
	UserID    int64
}

// Record is the canonical in-memory form of a message.
//
// Records are shared by pointer between the Store and every view. Only the
// reconciliation engine mutates them.
type Record struct {
	// ID is the server-assigned id, or a provisional id for a local echo.
	ID int64
	// LocalID correlates a locally echoed message with its server copy.
	LocalID string

	Type             Type
	SenderID         int64
	SenderFullName   string
	StreamID         int64
	DisplayRecipient string
	Topic            string
	TopicLinks       []wire.TopicLink
	// DirectRecipients are the sorted participant ids of a direct message.
	DirectRecipients []int64

	Content     string
	RawContent  string
	IsMeMessage bool
	Flags       Flags
	Reactions   []Reaction

	// EditHistory is ordered newest first.
	EditHistory        []EditHistoryEntry
	Timestamp          int64
	LastEditTimestamp  int64
	LocalEditTimestamp int64

	// LocallyEchoed is true until the server confirms the message.
	LocallyEchoed bool
	// EchoFailed marks a local echo whose send failed.
	EchoFailed bool
}

// Key returns the conversation the message belongs to.
func (r *Record) Key() ConversationKey {
	if r.Type == TypePrivate {
		return ConversationKey{DirectGroup: wire.DirectGroupKey(r.DirectRecipients)}
	}
	return ConversationKey{StreamID: r.StreamID, Topic: r.Topic}
}

// IsStream reports whether the record is a stream message.
func (r *Record) IsStream() bool { return r.Type == TypeStream }

// PrependEditHistory adds entry as the newest history entry.
func (r *Record) PrependEditHistory(entry EditHistoryEntry) {
	r.EditHistory = append([]EditHistoryEntry{entry}, r.EditHistory...)
}

// AddReaction records a reaction, ignoring duplicates of the same user and
// emoji. It reports whether the record changed.
func (r *Record) AddReaction(re Reaction) bool {
	for _, existing := range r.Reactions {
		if existing.UserID == re.UserID && existing.EmojiCode == re.EmojiCode {
			return false
		}
	}
	r.Reactions = append(r.Reactions, re)
	return true
}

// RemoveReaction drops a user's reaction. It reports whether the record
// changed.
func (r *Record) RemoveReaction(re Reaction) bool {
	for i, existing := range r.Reactions {
		if existing.UserID == re.UserID && existing.EmojiCode == re.EmojiCode {
			r.Reactions = append(r.Reactions[:i], r.Reactions[i+1:]...)
			return true
		}
	}
	return false
}

// HasReactions reports whether anyone reacted to the message.
func (r *Record) HasReactions() bool { return len(r.Reactions) > 0 }

// SetContent replaces the rendered content and re-derives content flags.
func (r *Record) SetContent(rendered string) {
	r.Content = rendered
	r.Flags = r.Flags.withContentFlags(ScanContent(rendered).Flags())
}

// SetServerFlags replaces the server-owned flags.
func (r *Record) SetServerFlags(names []string) {
	r.Flags = r.Flags.withServerFlags(ParseServerFlags(names))
}

// UpdateBooleans refreshes the content-driven flags (mentions and alert
// words) from an edit event's flag names.
func (r *Record) UpdateBooleans(names []string) {
	r.Flags = r.Flags.withContentDrivenFlags(ParseServerFlags(names))
}
