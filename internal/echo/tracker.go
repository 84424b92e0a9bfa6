// Package echo correlates locally sent messages with the server-assigned ids
// they eventually receive.
package echo

import (
	"sort"

	"github.com/bhandras/msgsync/internal/message"
	"github.com/google/uuid"
)

// State is the lifecycle state of an echoed message.
type State int

const (
	// StatePending means the server has not acknowledged the message yet.
	StatePending State = iota
	// StateConfirmed means the message has its final server id.
	StateConfirmed
	// StateFailed means the send failed.
	StateFailed
)

// String implements fmt.Stringer.
func (s State) String() string {
	switch s {
	case StatePending:
		return "pending"
	case StateConfirmed:
		return "confirmed"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Entry is one locally echoed message.
type Entry struct {
	LocalID       string
	ProvisionalID int64
	ServerID      int64
	State         State
}

// Tracker owns echo entries. It is not safe for concurrent use.
type Tracker struct {
	entries map[string]*Entry
	byID    map[int64]string
	nextID  int64
	newUUID func() string
}

// Option configures a Tracker.
type Option func(*Tracker)

// WithLocalIDSource overrides how local ids are generated.
func WithLocalIDSource(fn func() string) Option {
	return func(t *Tracker) {
		if fn != nil {
			t.newUUID = fn
		}
	}
}

// NewTracker returns an empty tracker.
func NewTracker(opts ...Option) *Tracker {
	t := &Tracker{
		entries: make(map[string]*Entry),
		byID:    make(map[int64]string),
		nextID:  message.ProvisionalIDBase,
		newUUID: uuid.NewString,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// NewLocalID returns a fresh local id and a provisional message id that
// sorts after every server id.
func (t *Tracker) NewLocalID() (string, int64) {
	t.nextID++
	return t.newUUID(), t.nextID
}

// Track registers a locally echoed record as pending. Records without a
// local id are ignored.
func (t *Tracker) Track(r *message.Record) {
	if r.LocalID == "" {
		return
	}
	t.entries[r.LocalID] = &Entry{
		LocalID:       r.LocalID,
		ProvisionalID: r.ID,
		State:         StatePending,
	}
	t.byID[r.ID] = r.LocalID
}

// Get returns the entry for localID.
func (t *Tracker) Get(localID string) (Entry, bool) {
	e, ok := t.entries[localID]
	if !ok {
		return Entry{}, false
	}
	return *e, true
}

// IsPending reports whether localID is awaiting confirmation.
func (t *Tracker) IsPending(localID string) bool {
	e, ok := t.entries[localID]
	return ok && e.State == StatePending
}

// IsLocalEcho reports whether id is the provisional id of an unconfirmed
// echo.
func (t *Tracker) IsLocalEcho(id int64) bool {
	localID, ok := t.byID[id]
	if !ok {
		return false
	}
	return t.entries[localID].State != StateConfirmed
}

// Confirm records the server id of localID and stops tracking it. A failed
// send can still be confirmed when the server delivers it late. It returns
// the confirmed entry, or false if localID is unknown.
func (t *Tracker) Confirm(localID string, serverID int64) (Entry, bool) {
	e, ok := t.entries[localID]
	if !ok || e.State == StateConfirmed {
		return Entry{}, false
	}
	t.Forget(localID)
	e.ServerID = serverID
	e.State = StateConfirmed
	return *e, true
}

// Fail marks a pending echo as failed.
func (t *Tracker) Fail(localID string) bool {
	e, ok := t.entries[localID]
	if !ok || e.State != StatePending {
		return false
	}
	e.State = StateFailed
	return true
}

// Forget drops the entry for localID.
func (t *Tracker) Forget(localID string) {
	if e, ok := t.entries[localID]; ok {
		delete(t.byID, e.ProvisionalID)
		delete(t.entries, localID)
	}
}

// Pending returns the unconfirmed entries ordered by provisional id.
func (t *Tracker) Pending() []Entry {
	var out []Entry
	for _, e := range t.entries {
		if e.State != StateConfirmed {
			out = append(out, *e)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ProvisionalID < out[j].ProvisionalID })
	return out
}
