package compose

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestState(t *testing.T) {
	t.Parallel()

	var s State
	require.Zero(t, s.StreamID())

	s.Open(3, "lunch")
	require.True(t, s.Active())
	require.Equal(t, int64(3), s.StreamID())
	require.False(t, s.WarnIfTopicResolved())

	s.SetTopic("✔ lunch")
	require.True(t, s.WarnIfTopicResolved())
	require.True(t, s.ResolvedWarning())

	s.Close()
	require.False(t, s.Active())
	require.Zero(t, s.StreamID())
}

func TestRenameStreamRecipient(t *testing.T) {
	t.Parallel()

	d := NewDrafts()
	a := d.Save(Draft{StreamID: 1, Topic: "Old", Content: "a"})
	b := d.Save(Draft{StreamID: 1, Topic: "other", Content: "b"})
	c := d.Save(Draft{ID: "fixed", StreamID: 2, Topic: "old", Content: "c"})
	require.Equal(t, "fixed", c)

	topic := "new"
	require.Equal(t, 1, d.RenameStreamRecipient(1, "old", nil, &topic))

	got, _ := d.Get(a)
	require.Equal(t, int64(1), got.StreamID)
	require.Equal(t, "new", got.Topic)
	got, _ = d.Get(b)
	require.Equal(t, "other", got.Topic)

	stream := int64(9)
	require.Equal(t, 1, d.RenameStreamRecipient(2, "old", &stream, nil))
	got, _ = d.Get(c)
	require.Equal(t, int64(9), got.StreamID)
	require.Equal(t, "old", got.Topic)

	d.Delete(a)
	require.Len(t, d.All(), 2)
}
