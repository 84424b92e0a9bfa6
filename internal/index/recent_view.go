package index

import (
	"sort"
	"strings"

	"github.com/bhandras/msgsync/internal/message"
)

func normalizeTopic(topic string) string { return strings.ToLower(topic) }

// Conversation is one row of the recent conversations index.
type Conversation struct {
	Key          message.ConversationKey
	LastID       int64
	Participants []int64
}

// RecentView indexes recently active conversations. Rows are rebuilt from
// loaded messages, so edits and deletions only need to name the affected
// conversations.
type RecentView struct {
	src   Source
	convs map[message.ConversationKey]*Conversation
}

// NewRecentView returns an empty index backed by src.
func NewRecentView(src Source) *RecentView {
	return &RecentView{
		src:   src,
		convs: make(map[message.ConversationKey]*Conversation),
	}
}

func normalizeKey(key message.ConversationKey) message.ConversationKey {
	key.Topic = normalizeTopic(key.Topic)
	return key
}

// ProcessMessages folds records into their conversations.
func (v *RecentView) ProcessMessages(records []*message.Record) {
	for _, r := range records {
		v.process(r)
	}
}

func (v *RecentView) process(r *message.Record) {
	key := normalizeKey(r.Key())
	c, ok := v.convs[key]
	if !ok {
		c = &Conversation{Key: r.Key()}
		v.convs[key] = c
	}
	if r.ID > c.LastID {
		c.LastID = r.ID
		c.Key = r.Key()
	}
	for _, p := range c.Participants {
		if p == r.SenderID {
			return
		}
	}
	c.Participants = append(c.Participants, r.SenderID)
}

// rebuild recomputes one conversation from the messages still loaded,
// dropping it if none remain.
func (v *RecentView) rebuild(key message.ConversationKey, skip map[int64]struct{}) {
	delete(v.convs, normalizeKey(key))
	if v.src == nil {
		return
	}
	for _, r := range v.src.InConversation(key) {
		if _, ok := skip[r.ID]; ok {
			continue
		}
		v.process(r)
	}
}

// ProcessTopicEdit rebuilds the old and new conversations of a move. Call it
// after the moved records carry their new stream and topic.
func (v *RecentView) ProcessTopicEdit(oldStreamID int64, oldTopic, newTopic string, newStreamID int64) {
	v.rebuild(message.ConversationKey{StreamID: oldStreamID, Topic: oldTopic}, nil)
	v.rebuild(message.ConversationKey{StreamID: newStreamID, Topic: newTopic}, nil)
}

// UpdateTopicsOfDeletedMessageIDs rebuilds the conversations that held the
// deleted messages. Call it while the records are still loaded.
func (v *RecentView) UpdateTopicsOfDeletedMessageIDs(ids []int64) {
	if v.src == nil {
		return
	}
	skip := make(map[int64]struct{}, len(ids))
	keys := make(map[message.ConversationKey]message.ConversationKey)
	for _, id := range ids {
		skip[id] = struct{}{}
		if r, ok := v.src.Get(id); ok {
			keys[normalizeKey(r.Key())] = r.Key()
		}
	}
	for _, key := range keys {
		v.rebuild(key, skip)
	}
}

// Get returns the row for key.
func (v *RecentView) Get(key message.ConversationKey) (Conversation, bool) {
	c, ok := v.convs[normalizeKey(key)]
	if !ok {
		return Conversation{}, false
	}
	return *c, true
}

// Conversations returns every row, most recent first.
func (v *RecentView) Conversations() []Conversation {
	out := make([]Conversation, 0, len(v.convs))
	for _, c := range v.convs {
		out = append(out, *c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].LastID > out[j].LastID })
	return out
}

// Rekey rebuilds the conversation of a record whose provisional id was just
// replaced.
func (v *RecentView) Rekey(r *message.Record) {
	v.rebuild(r.Key(), nil)
}
