// Package index holds the secondary indices derived from loaded messages:
// conversation history, recent senders, unread and mention tracking, starred
// messages, direct message groups and recent conversations.
//
// Indices are updated only through calls issued by the reconciliation
// engine; none of them observe the message store on their own.
package index

import (
	"sort"
	"strings"

	"github.com/bhandras/msgsync/internal/message"
)

// Source gives indices read access to loaded messages.
type Source interface {
	Get(id int64) (*message.Record, bool)
	InConversation(key message.ConversationKey) []*message.Record
}

// TopicEntry is the history of one stream topic.
type TopicEntry struct {
	Name      string
	Count     int
	MaxID     int64
	StreamID  int64
	lowerName string
}

// TopicHistory counts messages per stream topic and tracks the newest
// message of each topic and stream.
type TopicHistory struct {
	src     Source
	streams map[int64]map[string]*TopicEntry
	maxID   map[int64]int64
}

// NewTopicHistory returns an empty history backed by src.
func NewTopicHistory(src Source) *TopicHistory {
	return &TopicHistory{
		src:     src,
		streams: make(map[int64]map[string]*TopicEntry),
		maxID:   make(map[int64]int64),
	}
}

// AddMessage records a message in streamID/topic.
func (h *TopicHistory) AddMessage(streamID int64, topic string, id int64) {
	topics, ok := h.streams[streamID]
	if !ok {
		topics = make(map[string]*TopicEntry)
		h.streams[streamID] = topics
	}
	key := strings.ToLower(topic)
	e, ok := topics[key]
	if !ok {
		e = &TopicEntry{StreamID: streamID, lowerName: key}
		topics[key] = e
	}
	e.Count++
	if id >= e.MaxID {
		e.MaxID = id
		// The most recent spelling of the topic wins.
		e.Name = topic
	}
	if id > h.maxID[streamID] {
		h.maxID[streamID] = id
	}
}

// Removal describes messages leaving a topic.
type Removal struct {
	StreamID     int64
	Topic        string
	NumMessages  int
	MaxRemovedID int64
	// Leaving lists ids still loaded under the topic that are about to be
	// moved away. They are ignored when recomputing the newest id.
	Leaving []int64
}

// RemoveMessages removes rm.NumMessages messages from a topic. When the
// topic's newest message is among them, the newest id is recomputed from the
// messages still loaded.
func (h *TopicHistory) RemoveMessages(rm Removal) {
	topics, ok := h.streams[rm.StreamID]
	if !ok {
		return
	}
	key := strings.ToLower(rm.Topic)
	e, ok := topics[key]
	if !ok {
		return
	}

	e.Count -= rm.NumMessages
	if e.Count <= 0 {
		delete(topics, key)
	}

	if e.MaxID <= rm.MaxRemovedID {
		e.MaxID = h.loadedMaxID(rm)
	}

	if h.maxID[rm.StreamID] <= rm.MaxRemovedID {
		var streamMax int64
		for _, other := range topics {
			if other.MaxID > streamMax {
				streamMax = other.MaxID
			}
		}
		h.maxID[rm.StreamID] = streamMax
	}
}

func (h *TopicHistory) loadedMaxID(rm Removal) int64 {
	if h.src == nil {
		return 0
	}
	leaving := make(map[int64]struct{}, len(rm.Leaving)+1)
	leaving[rm.MaxRemovedID] = struct{}{}
	for _, id := range rm.Leaving {
		leaving[id] = struct{}{}
	}

	var max int64
	key := message.ConversationKey{StreamID: rm.StreamID, Topic: rm.Topic}
	for _, r := range h.src.InConversation(key) {
		if _, ok := leaving[r.ID]; ok {
			continue
		}
		if r.ID > max {
			max = r.ID
		}
	}
	return max
}

// Get returns the entry for streamID/topic.
func (h *TopicHistory) Get(streamID int64, topic string) (TopicEntry, bool) {
	e, ok := h.streams[streamID][strings.ToLower(topic)]
	if !ok {
		return TopicEntry{}, false
	}
	return *e, true
}

// Count returns the number of messages recorded for streamID/topic.
func (h *TopicHistory) Count(streamID int64, topic string) int {
	e, _ := h.Get(streamID, topic)
	return e.Count
}

// StreamMaxID returns the newest message id seen in streamID.
func (h *TopicHistory) StreamMaxID(streamID int64) int64 { return h.maxID[streamID] }

// Topics returns the topics of streamID, newest first.
func (h *TopicHistory) Topics(streamID int64) []TopicEntry {
	topics := h.streams[streamID]
	out := make([]TopicEntry, 0, len(topics))
	for _, e := range topics {
		out = append(out, *e)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].MaxID != out[j].MaxID {
			return out[i].MaxID > out[j].MaxID
		}
		return out[i].lowerName < out[j].lowerName
	})
	return out
}

// Rekey replaces a provisional id with its confirmed id.
func (h *TopicHistory) Rekey(streamID int64, topic string, oldID, newID int64) {
	e, ok := h.streams[streamID][strings.ToLower(topic)]
	if !ok {
		return
	}
	if e.MaxID == oldID {
		e.MaxID = newID
	}
	if h.maxID[streamID] == oldID {
		h.maxID[streamID] = newID
	}
}
