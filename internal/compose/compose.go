// Package compose holds the recipient state of the compose box and the
// user's saved drafts, both of which follow conversations when they move.
package compose

import (
	"sort"
	"strings"

	"github.com/bhandras/msgsync/internal/filter"
	"github.com/google/uuid"
)

// State is the recipient the user is currently composing to.
type State struct {
	active   bool
	streamID int64
	topic    string

	// resolvedWarning is set when the compose topic has been resolved.
	resolvedWarning bool
}

// Open starts composing to streamID/topic.
func (s *State) Open(streamID int64, topic string) {
	s.active = true
	s.streamID = streamID
	s.topic = topic
	s.resolvedWarning = false
}

// Close stops composing.
func (s *State) Close() { *s = State{} }

// Active reports whether the compose box is open.
func (s *State) Active() bool { return s.active }

// StreamID returns the compose stream, or zero when not composing to a
// stream.
func (s *State) StreamID() int64 {
	if !s.active {
		return 0
	}
	return s.streamID
}

// Topic returns the compose topic.
func (s *State) Topic() string { return s.topic }

// SetStreamID changes the compose stream.
func (s *State) SetStreamID(id int64) { s.streamID = id }

// SetTopic changes the compose topic.
func (s *State) SetTopic(topic string) { s.topic = topic }

// WarnIfTopicResolved flags the compose box when its topic is resolved and
// reports whether it did.
func (s *State) WarnIfTopicResolved() bool {
	s.resolvedWarning = s.active && strings.HasPrefix(s.topic, filter.ResolvedTopicPrefix)
	return s.resolvedWarning
}

// ResolvedWarning reports whether the resolved-topic warning is showing.
func (s *State) ResolvedWarning() bool { return s.resolvedWarning }

// Draft is a saved, unsent stream message.
type Draft struct {
	ID       string
	StreamID int64
	Topic    string
	Content  string
}

// Drafts stores saved drafts by id.
type Drafts struct {
	drafts map[string]*Draft
}

// NewDrafts returns an empty draft store.
func NewDrafts() *Drafts {
	return &Drafts{drafts: make(map[string]*Draft)}
}

// Save stores d, assigning an id when it has none, and returns the id.
func (d *Drafts) Save(draft Draft) string {
	if draft.ID == "" {
		draft.ID = uuid.NewString()
	}
	d.drafts[draft.ID] = &draft
	return draft.ID
}

// Get returns the draft with id.
func (d *Drafts) Get(id string) (Draft, bool) {
	draft, ok := d.drafts[id]
	if !ok {
		return Draft{}, false
	}
	return *draft, true
}

// Delete removes the draft with id.
func (d *Drafts) Delete(id string) { delete(d.drafts, id) }

// All returns every draft ordered by id.
func (d *Drafts) All() []Draft {
	out := make([]Draft, 0, len(d.drafts))
	for _, draft := range d.drafts {
		out = append(out, *draft)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// RenameStreamRecipient points drafts addressed to oldStreamID/oldTopic at
// the new location. A nil newStreamID or newTopic leaves that part
// unchanged. It returns the number of drafts updated.
func (d *Drafts) RenameStreamRecipient(oldStreamID int64, oldTopic string, newStreamID *int64, newTopic *string) int {
	n := 0
	for _, draft := range d.drafts {
		if draft.StreamID != oldStreamID || !strings.EqualFold(draft.Topic, oldTopic) {
			continue
		}
		if newStreamID != nil {
			draft.StreamID = *newStreamID
		}
		if newTopic != nil {
			draft.Topic = *newTopic
		}
		n++
	}
	return n
}
