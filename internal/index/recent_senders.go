package index

import (
	"sort"
	"strings"

	"github.com/bhandras/msgsync/internal/message"
)

type topicKey struct {
	streamID int64
	topic    string
}

func newTopicKey(streamID int64, topic string) topicKey {
	return topicKey{streamID: streamID, topic: strings.ToLower(topic)}
}

type senderEntry struct {
	key      topicKey
	senderID int64
}

// RecentSenders tracks who posted in each stream topic, keyed by message id
// so that moves and deletions can be replayed exactly.
type RecentSenders struct {
	byMessage map[int64]senderEntry
	// topics maps a topic to sender id to the set of that sender's ids.
	topics map[topicKey]map[int64]map[int64]struct{}
}

// NewRecentSenders returns an empty index.
func NewRecentSenders() *RecentSenders {
	return &RecentSenders{
		byMessage: make(map[int64]senderEntry),
		topics:    make(map[topicKey]map[int64]map[int64]struct{}),
	}
}

// ProcessStreamMessage records the sender of a stream message.
func (s *RecentSenders) ProcessStreamMessage(r *message.Record) {
	if !r.IsStream() {
		return
	}
	s.add(r.ID, newTopicKey(r.StreamID, r.Topic), r.SenderID)
}

func (s *RecentSenders) add(id int64, key topicKey, senderID int64) {
	if old, ok := s.byMessage[id]; ok {
		s.remove(id, old)
	}
	s.byMessage[id] = senderEntry{key: key, senderID: senderID}
	senders, ok := s.topics[key]
	if !ok {
		senders = make(map[int64]map[int64]struct{})
		s.topics[key] = senders
	}
	ids, ok := senders[senderID]
	if !ok {
		ids = make(map[int64]struct{})
		senders[senderID] = ids
	}
	ids[id] = struct{}{}
}

func (s *RecentSenders) remove(id int64, e senderEntry) {
	delete(s.byMessage, id)
	senders := s.topics[e.key]
	ids := senders[e.senderID]
	delete(ids, id)
	if len(ids) == 0 {
		delete(senders, e.senderID)
	}
	if len(senders) == 0 {
		delete(s.topics, e.key)
	}
}

// TopicEdit describes a topic rename or stream move.
type TopicEdit struct {
	MessageIDs  []int64
	OldStreamID int64
	OldTopic    string
	NewStreamID int64
	NewTopic    string
}

// ProcessTopicEdit moves the given messages from the old topic to the new
// one. Messages this index never saw are ignored.
func (s *RecentSenders) ProcessTopicEdit(edit TopicEdit) {
	oldKey := newTopicKey(edit.OldStreamID, edit.OldTopic)
	newKey := newTopicKey(edit.NewStreamID, edit.NewTopic)
	for _, id := range edit.MessageIDs {
		e, ok := s.byMessage[id]
		if !ok || e.key != oldKey {
			continue
		}
		s.add(id, newKey, e.senderID)
	}
}

// UpdateTopicsOfDeletedMessageIDs forgets deleted messages.
func (s *RecentSenders) UpdateTopicsOfDeletedMessageIDs(ids []int64) {
	for _, id := range ids {
		if e, ok := s.byMessage[id]; ok {
			s.remove(id, e)
		}
	}
}

// TopicSenders returns the senders of a topic, most recent first.
func (s *RecentSenders) TopicSenders(streamID int64, topic string) []int64 {
	senders := s.topics[newTopicKey(streamID, topic)]
	type latest struct {
		sender int64
		maxID  int64
	}
	list := make([]latest, 0, len(senders))
	for sender, ids := range senders {
		var max int64
		for id := range ids {
			if id > max {
				max = id
			}
		}
		list = append(list, latest{sender: sender, maxID: max})
	}
	sort.Slice(list, func(i, j int) bool { return list[i].maxID > list[j].maxID })

	out := make([]int64, 0, len(list))
	for _, l := range list {
		out = append(out, l.sender)
	}
	return out
}

// Rekey replaces a provisional id with its confirmed id.
func (s *RecentSenders) Rekey(oldID, newID int64) {
	e, ok := s.byMessage[oldID]
	if !ok {
		return
	}
	s.remove(oldID, e)
	s.add(newID, e.key, e.senderID)
}
