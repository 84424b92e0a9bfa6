package message

import (
	"sort"
	"strings"

	"github.com/bhandras/msgsync/internal/wire"
)

// ProvisionalIDBase is the first id handed to locally echoed messages. Server
// ids stay far below it, so echoes sort after every confirmed message until
// they are re-keyed with their final id.
const ProvisionalIDBase int64 = 1 << 52

// IsProvisionalID reports whether id belongs to an unconfirmed local echo.
func IsProvisionalID(id int64) bool { return id >= ProvisionalIDBase }

// Store maps message ids to mutable records.
//
// Store is not safe for concurrent use; the reconciliation loop owns it.
type Store struct {
	records   map[int64]*Record
	byLocalID map[string]int64
}

// NewStore returns an empty store.
func NewStore() *Store {
	return &Store{
		records:   make(map[int64]*Record),
		byLocalID: make(map[string]int64),
	}
}

// Get returns the record for id.
func (s *Store) Get(id int64) (*Record, bool) {
	r, ok := s.records[id]
	return r, ok
}

// Exists reports whether id is known locally.
func (s *Store) Exists(id int64) bool {
	_, ok := s.records[id]
	return ok
}

// GetByLocalID returns the record echoed under localID.
func (s *Store) GetByLocalID(localID string) (*Record, bool) {
	id, ok := s.byLocalID[localID]
	if !ok {
		return nil, false
	}
	return s.Get(id)
}

// Patch applies fn to the record for id and reports whether it existed.
func (s *Store) Patch(id int64, fn func(*Record)) bool {
	r, ok := s.records[id]
	if !ok {
		return false
	}
	fn(r)
	return true
}

// Remove deletes the given ids. Unknown ids are ignored.
func (s *Store) Remove(ids []int64) {
	for _, id := range ids {
		r, ok := s.records[id]
		if !ok {
			continue
		}
		if r.LocalID != "" && s.byLocalID[r.LocalID] == id {
			delete(s.byLocalID, r.LocalID)
		}
		delete(s.records, id)
	}
}

// Len returns the number of records.
func (s *Store) Len() int { return len(s.records) }

// IDs returns all known ids in ascending order.
func (s *Store) IDs() []int64 {
	ids := make([]int64, 0, len(s.records))
	for id := range s.records {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// Insert stores a record built by the caller (used for local echoes).
func (s *Store) Insert(r *Record) {
	s.records[r.ID] = r
	if r.LocalID != "" {
		s.byLocalID[r.LocalID] = r.ID
	}
}

// Reify re-keys a locally echoed record under its server-assigned id. The
// same *Record is kept so every holder of the pointer sees the change.
func (s *Store) Reify(oldID, newID int64) (*Record, bool) {
	r, ok := s.records[oldID]
	if !ok {
		return nil, false
	}
	delete(s.records, oldID)
	r.ID = newID
	r.LocallyEchoed = false
	r.EchoFailed = false
	s.records[newID] = r
	if r.LocalID != "" {
		s.byLocalID[r.LocalID] = newID
	}
	return r, true
}

// Process converts a server payload into its canonical record and stores it.
//
// Processing is idempotent. A payload for a known id returns the existing
// record and refreshes only its mention and alert word flags: the record
// already reflects every event applied since it was first loaded, and a
// payload fetched earlier must not roll those back. The returned bool
// reports whether the record is new.
func (s *Store) Process(raw wire.RawMessage, deliverLocally bool) (*Record, bool) {
	if existing, ok := s.records[raw.ID]; ok {
		existing.UpdateBooleans(raw.Flags)
		return existing, false
	}

	r := &Record{ID: raw.ID, LocallyEchoed: deliverLocally}
	applyPayload(r, raw)
	s.Insert(r)
	return r, true
}

// Refresh overwrites the server-owned fields of the record for raw.ID with
// raw. It reports false if the id is unknown.
func (s *Store) Refresh(raw wire.RawMessage) (*Record, bool) {
	r, ok := s.records[raw.ID]
	if !ok {
		return nil, false
	}
	applyPayload(r, raw)
	return r, true
}

func applyPayload(r *Record, raw wire.RawMessage) {
	r.Type = Type(raw.Type)
	if raw.LocalID != "" {
		r.LocalID = raw.LocalID
	}
	r.SenderID = raw.SenderID
	r.SenderFullName = raw.SenderFullName
	r.Timestamp = raw.Timestamp
	if raw.LastEditTimestamp > r.LastEditTimestamp {
		r.LastEditTimestamp = raw.LastEditTimestamp
	}

	switch r.Type {
	case TypePrivate:
		recipients, err := raw.Recipients()
		if err == nil {
			ids := make([]int64, 0, len(recipients))
			for _, rc := range recipients {
				ids = append(ids, rc.ID)
			}
			sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
			r.DirectRecipients = ids
		}
	default:
		r.StreamID = raw.StreamID
		r.DisplayRecipient = raw.StreamName()
		r.Topic = raw.Subject
		r.TopicLinks = raw.TopicLinks
	}

	if raw.RawContent != "" {
		r.RawContent = raw.RawContent
	}
	r.IsMeMessage = raw.IsMeMessage
	r.SetContent(raw.Content)
	r.SetServerFlags(raw.Flags)

	r.Reactions = r.Reactions[:0]
	for _, re := range raw.Reactions {
		r.AddReaction(Reaction{EmojiName: re.EmojiName, EmojiCode: re.EmojiCode, UserID: re.UserID})
	}
}

// InConversation returns the loaded records of a conversation in ascending id
// order.
func (s *Store) InConversation(key ConversationKey) []*Record {
	var out []*Record
	for _, r := range s.records {
		if sameConversation(r.Key(), key) {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// sameConversation compares keys with case-insensitive topics.
func sameConversation(a, b ConversationKey) bool {
	return a.StreamID == b.StreamID && a.DirectGroup == b.DirectGroup &&
		strings.EqualFold(a.Topic, b.Topic)
}
