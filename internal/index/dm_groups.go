package index

import (
	"sort"

	"github.com/bhandras/msgsync/internal/message"
)

// DirectMessageGroup is the aggregate of one direct message conversation.
type DirectMessageGroup struct {
	Key   string
	Count int
	MaxID int64
}

// DirectMessageGroups aggregates direct message conversations by recency.
type DirectMessageGroups struct {
	groups map[string]*DirectMessageGroup
	seen   map[int64]struct{}
}

// NewDirectMessageGroups returns an empty aggregate.
func NewDirectMessageGroups() *DirectMessageGroups {
	return &DirectMessageGroups{
		groups: make(map[string]*DirectMessageGroup),
		seen:   make(map[int64]struct{}),
	}
}

// ProcessLoadedMessages folds direct messages into their groups. Records
// already seen are skipped.
func (d *DirectMessageGroups) ProcessLoadedMessages(records []*message.Record) {
	for _, r := range records {
		if r.Type != message.TypePrivate {
			continue
		}
		if _, ok := d.seen[r.ID]; ok {
			continue
		}
		d.seen[r.ID] = struct{}{}

		key := r.Key().DirectGroup
		g, ok := d.groups[key]
		if !ok {
			g = &DirectMessageGroup{Key: key}
			d.groups[key] = g
		}
		g.Count++
		if r.ID > g.MaxID {
			g.MaxID = r.ID
		}
	}
}

// Rekey replaces a provisional id with its confirmed id.
func (d *DirectMessageGroups) Rekey(oldID, newID int64) {
	if _, ok := d.seen[oldID]; !ok {
		return
	}
	delete(d.seen, oldID)
	d.seen[newID] = struct{}{}
}

// Get returns the aggregate of the group with key.
func (d *DirectMessageGroups) Get(key string) (DirectMessageGroup, bool) {
	g, ok := d.groups[key]
	if !ok {
		return DirectMessageGroup{}, false
	}
	return *g, true
}

// Recent returns every group, most recent first.
func (d *DirectMessageGroups) Recent() []DirectMessageGroup {
	out := make([]DirectMessageGroup, 0, len(d.groups))
	for _, g := range d.groups {
		out = append(out, *g)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].MaxID > out[j].MaxID })
	return out
}
