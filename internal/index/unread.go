package index

import (
	"sort"

	"github.com/bhandras/msgsync/internal/message"
)

// Counts summarizes unread state for sidebars.
type Counts struct {
	Total          int
	Mentions       int
	DirectMessages int
	Streams        map[int64]int
}

// Unread tracks unread messages by conversation and unread mentions.
type Unread struct {
	byID     map[int64]message.ConversationKey
	mentions map[int64]struct{}
	// mentionTopics holds topics with at least one unread mention.
	mentionTopics map[topicKey]struct{}
}

// NewUnread returns an empty tracker.
func NewUnread() *Unread {
	return &Unread{
		byID:          make(map[int64]message.ConversationKey),
		mentions:      make(map[int64]struct{}),
		mentionTopics: make(map[topicKey]struct{}),
	}
}

// ProcessLoadedMessages starts tracking unread records and reports whether
// any of them was previously untracked.
func (u *Unread) ProcessLoadedMessages(records []*message.Record) bool {
	anyUntracked := false
	for _, r := range records {
		if !r.Flags.Unread() {
			continue
		}
		if _, ok := u.byID[r.ID]; !ok {
			anyUntracked = true
		}
		u.track(r)
	}
	return anyUntracked
}

func (u *Unread) track(r *message.Record) {
	key := r.Key()
	key.Topic = normalizeTopic(key.Topic)
	u.byID[r.ID] = key
	if r.Flags.Mentioned() {
		u.mentions[r.ID] = struct{}{}
		if r.IsStream() {
			u.mentionTopics[newTopicKey(r.StreamID, r.Topic)] = struct{}{}
		}
	}
}

// IsUnread reports whether id is tracked as unread.
func (u *Unread) IsUnread(id int64) bool {
	_, ok := u.byID[id]
	return ok
}

// MarkRead stops tracking ids.
func (u *Unread) MarkRead(ids []int64) {
	for _, id := range ids {
		delete(u.byID, id)
		delete(u.mentions, id)
	}
	u.ClearAndPopulateUnreadMentionTopics()
}

// MarkUnread tracks records again after the read flag was removed.
func (u *Unread) MarkUnread(records []*message.Record) {
	for _, r := range records {
		u.track(r)
	}
}

// UpdateUnreadTopics re-files an unread message under the conversation it is
// being moved to. It must run before the record's topic or stream changes.
func (u *Unread) UpdateUnreadTopics(r *message.Record, newStreamID *int64, newTopic *string) {
	key, ok := u.byID[r.ID]
	if !ok {
		return
	}
	if newStreamID != nil {
		key.StreamID = *newStreamID
	}
	if newTopic != nil {
		key.Topic = normalizeTopic(*newTopic)
	}
	u.byID[r.ID] = key
}

// UpdateMessageForMention refreshes the mention bookkeeping of r. It returns
// true when the content of a stream message changed, which may change
// whether its topic shows an unread mention.
func (u *Unread) UpdateMessageForMention(r *message.Record, contentEdited bool) bool {
	if !r.Flags.Unread() {
		delete(u.mentions, r.ID)
		return false
	}
	if r.Flags.Mentioned() {
		u.mentions[r.ID] = struct{}{}
	} else {
		delete(u.mentions, r.ID)
	}
	return contentEdited && r.IsStream()
}

// ClearAndPopulateUnreadMentionTopics rebuilds the set of topics holding an
// unread mention from scratch.
func (u *Unread) ClearAndPopulateUnreadMentionTopics() {
	u.mentionTopics = make(map[topicKey]struct{})
	for id := range u.mentions {
		key, ok := u.byID[id]
		if !ok || key.DirectGroup != "" {
			continue
		}
		u.mentionTopics[newTopicKey(key.StreamID, key.Topic)] = struct{}{}
	}
}

// TopicHasUnreadMention reports whether streamID/topic holds an unread
// mention.
func (u *Unread) TopicHasUnreadMention(streamID int64, topic string) bool {
	_, ok := u.mentionTopics[newTopicKey(streamID, topic)]
	return ok
}

// MentionIDs returns unread mention ids in ascending order.
func (u *Unread) MentionIDs() []int64 {
	out := make([]int64, 0, len(u.mentions))
	for id := range u.mentions {
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// TopicCount returns the unread count of streamID/topic.
func (u *Unread) TopicCount(streamID int64, topic string) int {
	want := normalizeTopic(topic)
	n := 0
	for _, key := range u.byID {
		if key.DirectGroup == "" && key.StreamID == streamID && key.Topic == want {
			n++
		}
	}
	return n
}

// Counts returns the aggregate unread counts.
func (u *Unread) Counts() Counts {
	c := Counts{Streams: make(map[int64]int)}
	for _, key := range u.byID {
		c.Total++
		if key.DirectGroup != "" {
			c.DirectMessages++
			continue
		}
		c.Streams[key.StreamID]++
	}
	c.Mentions = len(u.mentions)
	return c
}

// Rekey replaces a provisional id with its confirmed id.
func (u *Unread) Rekey(oldID, newID int64) {
	if key, ok := u.byID[oldID]; ok {
		delete(u.byID, oldID)
		u.byID[newID] = key
	}
	if _, ok := u.mentions[oldID]; ok {
		delete(u.mentions, oldID)
		u.mentions[newID] = struct{}{}
	}
}
