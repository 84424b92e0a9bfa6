package wire

import (
	"encoding/json"
	"errors"
	"fmt"
)

// Event type discriminators carried in the "type" field.
const (
	EventTypeMessage            = "message"
	EventTypeUpdateMessage      = "update_message"
	EventTypeDeleteMessage      = "delete_message"
	EventTypeUpdateMessageFlags = "update_message_flags"
	EventTypeReaction           = "reaction"
)

// Propagation modes of a topic/stream move.
const (
	PropagateChangeOne   = "change_one"
	PropagateChangeLater = "change_later"
	PropagateChangeAll   = "change_all"
)

// Flag and reaction operations.
const (
	OpAdd    = "add"
	OpRemove = "remove"
)

// Event is one typed server event.
type Event interface {
	// EventID returns the server queue id of the event.
	EventID() int64
	// EventType returns the "type" discriminator.
	EventType() string
}

// EventsEnvelope is the payload of an "events" push: an ordered batch.
type EventsEnvelope struct {
	// QueueID identifies the server-side event queue.
	QueueID string `json:"queue_id,omitempty"`
	// Events are the raw events in server order.
	Events []json.RawMessage `json:"events"`
}

type eventHeader struct {
	ID   int64  `json:"id"`
	Type string `json:"type"`
}

// MessageEvent announces a newly sent message.
type MessageEvent struct {
	ID int64 `json:"id"`
	// Message is the message payload.
	Message RawMessage `json:"message"`
	// Flags are the receiving user's flags for the message.
	Flags []string `json:"flags"`
	// LocalMessageID is set when the message was sent by this client.
	LocalMessageID string `json:"local_message_id,omitempty"`
}

// EventID implements Event.
func (e MessageEvent) EventID() int64 { return e.ID }

// EventType implements Event.
func (MessageEvent) EventType() string { return EventTypeMessage }

// UpdateMessageEvent describes a content edit and/or a topic/stream move.
//
// MessageID is the message where the edit was initiated; MessageIDs lists every
// message affected by a move, in no particular order.
type UpdateMessageEvent struct {
	ID         int64    `json:"id"`
	UserID     int64    `json:"user_id"`
	MessageID  int64    `json:"message_id"`
	MessageIDs []int64  `json:"message_ids"`
	Flags      []string `json:"flags"`

	EditTimestamp int64 `json:"edit_timestamp"`
	RenderingOnly bool  `json:"rendering_only,omitempty"`

	// Content edit fields.
	RenderedContent     *string `json:"rendered_content,omitempty"`
	Content             *string `json:"content,omitempty"`
	OrigContent         *string `json:"orig_content,omitempty"`
	OrigRenderedContent *string `json:"orig_rendered_content,omitempty"`
	IsMeMessage         *bool   `json:"is_me_message,omitempty"`

	// Move fields. Subject is nil when the topic is unchanged and NewStreamID
	// is nil when the stream is unchanged.
	StreamID      int64       `json:"stream_id,omitempty"`
	NewStreamID   *int64      `json:"new_stream_id,omitempty"`
	Subject       *string     `json:"subject,omitempty"`
	OrigSubject   string      `json:"orig_subject,omitempty"`
	Topic         string      `json:"topic,omitempty"`
	TopicLinks    []TopicLink `json:"topic_links,omitempty"`
	PropagateMode string      `json:"propagate_mode,omitempty"`
}

// EventID implements Event.
func (e UpdateMessageEvent) EventID() int64 { return e.ID }

// EventType implements Event.
func (UpdateMessageEvent) EventType() string { return EventTypeUpdateMessage }

// TopicEdited reports whether the event renames the topic.
func (e *UpdateMessageEvent) TopicEdited() bool { return e.Subject != nil }

// StreamChanged reports whether the event moves messages to another stream.
func (e *UpdateMessageEvent) StreamChanged() bool { return e.NewStreamID != nil }

// OrigTopic returns the pre-edit topic of the moved messages. Servers that
// only moved the stream send it as topic rather than orig_subject.
func (e *UpdateMessageEvent) OrigTopic() string {
	if e.OrigSubject != "" {
		return e.OrigSubject
	}
	return e.Topic
}

// GoingForward reports whether the propagation mode follows the conversation
// for later messages (change_later or change_all).
func (e *UpdateMessageEvent) GoingForward() bool {
	return e.PropagateMode == PropagateChangeLater || e.PropagateMode == PropagateChangeAll
}

// Validate checks fields a move event must carry.
func (e *UpdateMessageEvent) Validate() error {
	if e.TopicEdited() || e.StreamChanged() {
		if e.StreamID == 0 {
			return fmt.Errorf("%w: update_message %d: move without stream_id", ErrMalformedEvent, e.MessageID)
		}
		if len(e.MessageIDs) == 0 {
			return fmt.Errorf("%w: update_message %d: move without message_ids", ErrMalformedEvent, e.MessageID)
		}
	}
	return nil
}

// DeleteMessageEvent removes one or more messages.
type DeleteMessageEvent struct {
	ID          int64   `json:"id"`
	MessageType string  `json:"message_type,omitempty"`
	MessageIDs  []int64 `json:"message_ids,omitempty"`
	// MessageID is the legacy single-message form.
	MessageID int64 `json:"message_id,omitempty"`
}

// EventID implements Event.
func (e DeleteMessageEvent) EventID() int64 { return e.ID }

// EventType implements Event.
func (DeleteMessageEvent) EventType() string { return EventTypeDeleteMessage }

// IDs returns the deleted ids, normalizing the legacy single-id form.
func (e *DeleteMessageEvent) IDs() []int64 {
	if len(e.MessageIDs) > 0 {
		return e.MessageIDs
	}
	if e.MessageID != 0 {
		return []int64{e.MessageID}
	}
	return nil
}

// UpdateMessageFlagsEvent adds or removes a flag on a set of messages.
type UpdateMessageFlagsEvent struct {
	ID       int64   `json:"id"`
	Op       string  `json:"op"`
	Flag     string  `json:"flag"`
	Messages []int64 `json:"messages"`
	All      bool    `json:"all,omitempty"`
}

// EventID implements Event.
func (e UpdateMessageFlagsEvent) EventID() int64 { return e.ID }

// EventType implements Event.
func (UpdateMessageFlagsEvent) EventType() string { return EventTypeUpdateMessageFlags }

// ReactionEvent adds or removes one user's reaction.
type ReactionEvent struct {
	ID        int64  `json:"id"`
	Op        string `json:"op"`
	MessageID int64  `json:"message_id"`
	Reaction
}

// EventID implements Event.
func (e ReactionEvent) EventID() int64 { return e.ID }

// EventType implements Event.
func (ReactionEvent) EventType() string { return EventTypeReaction }

// ParseEvents parses an "events" push payload (as delivered by the Socket.IO
// client, usually a map[string]any) into typed events, preserving order.
//
// Unknown event types are skipped. A known event that fails to decode makes
// the whole batch fail with ErrMalformedEvent.
func ParseEvents(v any) ([]Event, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var env EventsEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedEvent, err)
	}

	out := make([]Event, 0, len(env.Events))
	for _, rawEvent := range env.Events {
		ev, err := ParseEvent(rawEvent)
		if err != nil {
			if errors.Is(err, ErrUnknownEventType) {
				continue
			}
			return nil, err
		}
		out = append(out, ev)
	}
	return out, nil
}

// ParseEvent decodes a single raw event.
func ParseEvent(raw json.RawMessage) (Event, error) {
	var hdr eventHeader
	if err := json.Unmarshal(raw, &hdr); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedEvent, err)
	}

	switch hdr.Type {
	case EventTypeMessage:
		var ev MessageEvent
		if err := decode(raw, &ev, hdr.Type); err != nil {
			return nil, err
		}
		if ev.Message.ID == 0 {
			return nil, fmt.Errorf("%w: message event without message.id", ErrMalformedEvent)
		}
		if len(ev.Message.Flags) == 0 {
			ev.Message.Flags = ev.Flags
		}
		if ev.Message.LocalID == "" {
			ev.Message.LocalID = ev.LocalMessageID
		}
		return ev, nil
	case EventTypeUpdateMessage:
		var ev UpdateMessageEvent
		if err := decode(raw, &ev, hdr.Type); err != nil {
			return nil, err
		}
		if err := ev.Validate(); err != nil {
			return nil, err
		}
		return ev, nil
	case EventTypeDeleteMessage:
		var ev DeleteMessageEvent
		if err := decode(raw, &ev, hdr.Type); err != nil {
			return nil, err
		}
		return ev, nil
	case EventTypeUpdateMessageFlags:
		var ev UpdateMessageFlagsEvent
		if err := decode(raw, &ev, hdr.Type); err != nil {
			return nil, err
		}
		if ev.Op != OpAdd && ev.Op != OpRemove {
			return nil, fmt.Errorf("%w: update_message_flags op %q", ErrMalformedEvent, ev.Op)
		}
		return ev, nil
	case EventTypeReaction:
		var ev ReactionEvent
		if err := decode(raw, &ev, hdr.Type); err != nil {
			return nil, err
		}
		if ev.Op != OpAdd && ev.Op != OpRemove {
			return nil, fmt.Errorf("%w: reaction op %q", ErrMalformedEvent, ev.Op)
		}
		return ev, nil
	default:
		return nil, ErrUnknownEventType
	}
}

func decode(raw json.RawMessage, dst any, eventType string) error {
	if err := json.Unmarshal(raw, dst); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrMalformedEvent, eventType, err)
	}
	return nil
}

// MessagesResponse is the body of GET /json/messages.
type MessagesResponse struct {
	Result   string       `json:"result"`
	Msg      string       `json:"msg,omitempty"`
	Messages []RawMessage `json:"messages"`
}
