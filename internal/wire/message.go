package wire

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"
)

const (
	// MessageTypeStream marks a message sent to a stream topic.
	MessageTypeStream = "stream"
	// MessageTypePrivate marks a direct message.
	MessageTypePrivate = "private"
)

// RawMessage is a message payload as sent by the server, both inside
// "message" events and in GET /json/messages responses.
type RawMessage struct {
	// ID is the server-assigned message id.
	ID int64 `json:"id"`
	// LocalID is the client idempotency key echoed back for messages sent by
	// this client; empty otherwise.
	LocalID string `json:"local_message_id,omitempty"`
	// Type is MessageTypeStream or MessageTypePrivate.
	Type string `json:"type"`
	// SenderID is the sending user's id.
	SenderID int64 `json:"sender_id"`
	// SenderFullName is the sender's display name at send time.
	SenderFullName string `json:"sender_full_name,omitempty"`
	// StreamID is set for stream messages.
	StreamID int64 `json:"stream_id,omitempty"`
	// DisplayRecipient is a stream name (string) for stream messages and a
	// list of Recipient objects for direct messages.
	DisplayRecipient json.RawMessage `json:"display_recipient,omitempty"`
	// Subject is the topic name for stream messages.
	Subject string `json:"subject,omitempty"`
	// TopicLinks are the linkified topic fragments.
	TopicLinks []TopicLink `json:"topic_links,omitempty"`
	// Content is the rendered HTML content.
	Content string `json:"content"`
	// RawContent is the markdown source, when requested.
	RawContent string `json:"raw_content,omitempty"`
	// IsMeMessage marks "/me" messages.
	IsMeMessage bool `json:"is_me_message,omitempty"`
	// Flags are the per-user message flags ("read", "starred", ...).
	Flags []string `json:"flags,omitempty"`
	// Reactions are the emoji reactions on the message.
	Reactions []Reaction `json:"reactions,omitempty"`
	// Timestamp is the send time in seconds since epoch.
	Timestamp int64 `json:"timestamp"`
	// LastEditTimestamp is the last edit time in seconds since epoch.
	LastEditTimestamp int64 `json:"last_edit_timestamp,omitempty"`
}

// TopicLink is a linkified fragment of a topic name.
type TopicLink struct {
	Text string `json:"text"`
	URL  string `json:"url"`
}

// Reaction is one user's emoji reaction on a message.
type Reaction struct {
	EmojiName    string `json:"emoji_name"`
	EmojiCode    string `json:"emoji_code"`
	ReactionType string `json:"reaction_type,omitempty"`
	UserID       int64  `json:"user_id"`
}

// Recipient is one participant of a direct message.
type Recipient struct {
	ID       int64  `json:"id"`
	Email    string `json:"email,omitempty"`
	FullName string `json:"full_name,omitempty"`
}

// StreamName returns the display recipient of a stream message.
func (m *RawMessage) StreamName() string {
	if len(m.DisplayRecipient) == 0 {
		return ""
	}
	var name string
	if err := json.Unmarshal(m.DisplayRecipient, &name); err != nil {
		return ""
	}
	return name
}

// Recipients returns the participants of a direct message.
func (m *RawMessage) Recipients() ([]Recipient, error) {
	if len(m.DisplayRecipient) == 0 {
		return nil, nil
	}
	var out []Recipient
	if err := json.Unmarshal(m.DisplayRecipient, &out); err != nil {
		return nil, fmt.Errorf("%w: display_recipient: %v", ErrMalformedEvent, err)
	}
	return out, nil
}

// DirectGroupKey returns the canonical key of a direct message group: the
// sorted participant ids joined with ",".
func DirectGroupKey(userIDs []int64) string {
	ids := append([]int64(nil), userIDs...)
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	parts := make([]string, 0, len(ids))
	var prev int64 = -1
	for _, id := range ids {
		if id == prev {
			continue
		}
		prev = id
		parts = append(parts, strconv.FormatInt(id, 10))
	}
	return strings.Join(parts, ",")
}
