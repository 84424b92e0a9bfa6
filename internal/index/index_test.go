package index

import (
	"testing"

	"github.com/bhandras/msgsync/internal/message"
	"github.com/stretchr/testify/require"
)

func streamMsg(id, stream int64, topic string, sender int64, flags message.Flags) *message.Record {
	return &message.Record{
		ID:       id,
		Type:     message.TypeStream,
		StreamID: stream,
		Topic:    topic,
		SenderID: sender,
		Flags:    flags,
	}
}

func storeWith(records ...*message.Record) *message.Store {
	s := message.NewStore()
	for _, r := range records {
		s.Insert(r)
	}
	return s
}

var read = message.Flags(0).With(message.FlagRead)

func TestTopicHistoryRemoveRecomputesMax(t *testing.T) {
	t.Parallel()

	msgs := []*message.Record{
		streamMsg(3, 1, "A", 7, read),
		streamMsg(5, 1, "A", 7, read),
		streamMsg(7, 1, "a", 8, read),
		streamMsg(9, 1, "A", 8, read),
	}
	h := NewTopicHistory(storeWith(msgs...))
	for _, m := range msgs {
		h.AddMessage(m.StreamID, m.Topic, m.ID)
	}

	e, ok := h.Get(1, "a")
	require.True(t, ok)
	require.Equal(t, 4, e.Count)
	require.Equal(t, int64(9), e.MaxID)
	require.Equal(t, "A", e.Name)

	// Moving 5, 7 and 9 away leaves 3 as the newest message.
	h.RemoveMessages(Removal{
		StreamID: 1, Topic: "A", NumMessages: 3, MaxRemovedID: 9,
		Leaving: []int64{5, 7, 9},
	})
	e, ok = h.Get(1, "A")
	require.True(t, ok)
	require.Equal(t, 1, e.Count)
	require.Equal(t, int64(3), e.MaxID)
	require.Equal(t, int64(3), h.StreamMaxID(1))

	h.RemoveMessages(Removal{StreamID: 1, Topic: "A", NumMessages: 1, MaxRemovedID: 3, Leaving: []int64{3}})
	_, ok = h.Get(1, "A")
	require.False(t, ok)
	require.Empty(t, h.Topics(1))
}

func TestTopicHistoryOrdering(t *testing.T) {
	t.Parallel()

	h := NewTopicHistory(nil)
	h.AddMessage(1, "old", 1)
	h.AddMessage(1, "new", 5)
	h.AddMessage(1, "mid", 3)
	topics := h.Topics(1)
	require.Len(t, topics, 3)
	require.Equal(t, "new", topics[0].Name)
	require.Equal(t, "old", topics[2].Name)

	h.Rekey(1, "new", 5, 6)
	require.Equal(t, int64(6), h.StreamMaxID(1))
}

func TestRecentSenders(t *testing.T) {
	t.Parallel()

	s := NewRecentSenders()
	s.ProcessStreamMessage(streamMsg(1, 1, "x", 10, 0))
	s.ProcessStreamMessage(streamMsg(2, 1, "x", 11, 0))
	s.ProcessStreamMessage(streamMsg(3, 1, "X", 10, 0))
	require.Equal(t, []int64{10, 11}, s.TopicSenders(1, "x"))

	s.ProcessTopicEdit(TopicEdit{
		MessageIDs:  []int64{3, 42},
		OldStreamID: 1, OldTopic: "x",
		NewStreamID: 2, NewTopic: "y",
	})
	require.Equal(t, []int64{11, 10}, s.TopicSenders(1, "x"))
	require.Equal(t, []int64{10}, s.TopicSenders(2, "y"))

	s.UpdateTopicsOfDeletedMessageIDs([]int64{1, 2})
	require.Empty(t, s.TopicSenders(1, "x"))

	s.Rekey(3, 4)
	require.Equal(t, []int64{10}, s.TopicSenders(2, "y"))
}

func TestUnreadTracking(t *testing.T) {
	t.Parallel()

	mentioned := message.Flags(0).With(message.FlagMentioned)
	u := NewUnread()
	a := streamMsg(1, 1, "x", 5, mentioned)
	b := streamMsg(2, 1, "x", 5, 0)
	c := streamMsg(3, 1, "x", 5, read)

	require.True(t, u.ProcessLoadedMessages([]*message.Record{a, b, c}))
	require.False(t, u.ProcessLoadedMessages([]*message.Record{a}))
	require.Equal(t, 2, u.TopicCount(1, "X"))
	require.True(t, u.TopicHasUnreadMention(1, "x"))

	// Moving a re-files it before the record changes.
	newTopic := "y"
	u.UpdateUnreadTopics(a, nil, &newTopic)
	a.Topic = newTopic
	u.ClearAndPopulateUnreadMentionTopics()
	require.Equal(t, 1, u.TopicCount(1, "x"))
	require.Equal(t, 1, u.TopicCount(1, "y"))
	require.False(t, u.TopicHasUnreadMention(1, "x"))
	require.True(t, u.TopicHasUnreadMention(1, "y"))

	counts := u.Counts()
	require.Equal(t, 2, counts.Total)
	require.Equal(t, 1, counts.Mentions)
	require.Equal(t, 2, counts.Streams[1])

	// Losing the mention flag on an edit drops the mention.
	a.Flags = 0
	require.True(t, u.UpdateMessageForMention(a, true))
	require.Empty(t, u.MentionIDs())

	u.MarkRead([]int64{1, 2})
	require.Zero(t, u.Counts().Total)

	u.MarkUnread([]*message.Record{b})
	require.True(t, u.IsUnread(2))
}

func TestStarredAndDirectGroups(t *testing.T) {
	t.Parallel()

	s := NewStarred()
	s.Add([]int64{3, 1})
	require.Equal(t, []int64{1, 3}, s.IDs())
	s.Remove([]int64{3})
	require.False(t, s.Has(3))
	require.Equal(t, 1, s.Count())

	d := NewDirectMessageGroups()
	dm := func(id int64, users ...int64) *message.Record {
		return &message.Record{ID: id, Type: message.TypePrivate, DirectRecipients: users}
	}
	d.ProcessLoadedMessages([]*message.Record{dm(1, 1, 2), dm(4, 1, 3), dm(5, 2, 1), dm(5, 2, 1)})
	recent := d.Recent()
	require.Len(t, recent, 2)
	require.Equal(t, "1,2", recent[0].Key)
	require.Equal(t, 2, recent[0].Count)
}

func TestRecentView(t *testing.T) {
	t.Parallel()

	msgs := []*message.Record{
		streamMsg(1, 1, "x", 10, read),
		streamMsg(2, 1, "x", 11, read),
		streamMsg(3, 1, "y", 10, read),
	}
	store := storeWith(msgs...)
	v := NewRecentView(store)
	v.ProcessMessages(msgs)

	c, ok := v.Get(message.ConversationKey{StreamID: 1, Topic: "X"})
	require.True(t, ok)
	require.Equal(t, int64(2), c.LastID)
	require.Equal(t, []int64{10, 11}, c.Participants)

	// Deleting 2 leaves 1 as the newest message in x.
	v.UpdateTopicsOfDeletedMessageIDs([]int64{2})
	c, _ = v.Get(message.ConversationKey{StreamID: 1, Topic: "x"})
	require.Equal(t, int64(1), c.LastID)

	// Move y to z.
	msgs[2].Topic = "z"
	v.ProcessTopicEdit(1, "y", "z", 1)
	_, ok = v.Get(message.ConversationKey{StreamID: 1, Topic: "y"})
	require.False(t, ok)
	c, ok = v.Get(message.ConversationKey{StreamID: 1, Topic: "z"})
	require.True(t, ok)
	require.Equal(t, int64(3), c.LastID)

	require.Equal(t, int64(3), v.Conversations()[0].LastID)
}
