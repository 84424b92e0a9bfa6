// Package view holds the filtered, ordered projections of the message log:
// ListData (ids plus fetch boundaries), List (a rendered ListData with a
// selection) and the Registry of every live view.
package view

import (
	"sort"

	"github.com/bhandras/msgsync/internal/filter"
	"github.com/bhandras/msgsync/internal/message"
)

// FetchStatus records whether the view has reached either end of its
// narrow's history on the server.
type FetchStatus struct {
	FoundOldest bool
	FoundNewest bool
}

// ListData is an ascending, duplicate-free sequence of message records bound
// to one filter.
//
// For a locally evaluable filter the contents equal exactly the matching
// records inside the fetched id range. Otherwise the data is a best-effort
// cache.
type ListData struct {
	filter  *filter.Filter
	fetch   FetchStatus
	ids     []int64
	records map[int64]*message.Record

	// expectedMaxID tracks new messages seen while FoundNewest was false,
	// so a later fetch knows how far it must reach.
	expectedMaxID int64
}

// NewListData returns empty data for f.
func NewListData(f *filter.Filter) *ListData {
	return &ListData{
		filter:  f,
		records: make(map[int64]*message.Record),
	}
}

// Filter returns the list's filter.
func (d *ListData) Filter() *filter.Filter { return d.filter }

// FetchStatus returns the current fetch boundaries.
func (d *ListData) FetchStatus() FetchStatus { return d.fetch }

// SetFetchStatus replaces the fetch boundaries.
func (d *ListData) SetFetchStatus(s FetchStatus) { d.fetch = s }

// ExpectedMaxID returns the highest message id announced while the newest
// end had not been fetched.
func (d *ListData) ExpectedMaxID() int64 { return d.expectedMaxID }

// UpdateExpectedMaxID records ids that arrived before the newest end was
// fetched.
func (d *ListData) UpdateExpectedMaxID(records []*message.Record) {
	for _, r := range records {
		if r.ID > d.expectedMaxID {
			d.expectedMaxID = r.ID
		}
	}
}

// Len returns the number of messages.
func (d *ListData) Len() int { return len(d.ids) }

// Empty reports whether the list holds no messages.
func (d *ListData) Empty() bool { return len(d.ids) == 0 }

// Get returns the record for id if it is in the list.
func (d *ListData) Get(id int64) (*message.Record, bool) {
	r, ok := d.records[id]
	return r, ok
}

// Has reports whether id is in the list.
func (d *ListData) Has(id int64) bool {
	_, ok := d.records[id]
	return ok
}

// IDs returns the list's ids in ascending order.
func (d *ListData) IDs() []int64 {
	out := make([]int64, len(d.ids))
	copy(out, d.ids)
	return out
}

// Records returns the list's records in ascending id order.
func (d *ListData) Records() []*message.Record {
	out := make([]*message.Record, 0, len(d.ids))
	for _, id := range d.ids {
		out = append(out, d.records[id])
	}
	return out
}

// First returns the record with the lowest id.
func (d *ListData) First() (*message.Record, bool) {
	if len(d.ids) == 0 {
		return nil, false
	}
	return d.records[d.ids[0]], true
}

// Last returns the record with the highest id.
func (d *ListData) Last() (*message.Record, bool) {
	if len(d.ids) == 0 {
		return nil, false
	}
	return d.records[d.ids[len(d.ids)-1]], true
}

// Covers reports whether id falls inside the contiguous range the list has
// fetched, extended by whichever ends have been reached.
func (d *ListData) Covers(id int64) bool {
	if len(d.ids) == 0 {
		return d.fetch.FoundNewest
	}
	first, last := d.ids[0], d.ids[len(d.ids)-1]
	switch {
	case id < first:
		return d.fetch.FoundOldest
	case id > last:
		return d.fetch.FoundNewest
	}
	return true
}

// AddMessages adds the records that match the filter, fall inside the
// fetched range and are not yet present. It returns the added records.
func (d *ListData) AddMessages(records []*message.Record) []*message.Record {
	var accepted []*message.Record
	for _, r := range records {
		if r == nil || d.Has(r.ID) || !d.Covers(r.ID) {
			continue
		}
		if !d.filter.Predicate(r) {
			continue
		}
		accepted = append(accepted, r)
	}
	d.insert(accepted)
	return accepted
}

// AddFetched adds records returned by the server for this narrow and
// updates the fetch boundaries. The server has already applied the narrow,
// so only locally evaluable filters re-check the predicate.
func (d *ListData) AddFetched(records []*message.Record, status FetchStatus) []*message.Record {
	var accepted []*message.Record
	for _, r := range records {
		if r == nil || d.Has(r.ID) {
			continue
		}
		if d.filter.CanApplyLocally() && !d.filter.Predicate(r) {
			continue
		}
		accepted = append(accepted, r)
	}
	d.insert(accepted)
	d.fetch.FoundOldest = d.fetch.FoundOldest || status.FoundOldest
	d.fetch.FoundNewest = d.fetch.FoundNewest || status.FoundNewest
	return accepted
}

func (d *ListData) insert(records []*message.Record) {
	if len(records) == 0 {
		return
	}
	for _, r := range records {
		d.records[r.ID] = r
		d.ids = append(d.ids, r.ID)
	}
	sort.Slice(d.ids, func(i, j int) bool { return d.ids[i] < d.ids[j] })
}

// Remove drops the given ids and returns how many were present.
func (d *ListData) Remove(ids []int64) int {
	drop := make(map[int64]struct{}, len(ids))
	for _, id := range ids {
		if _, ok := d.records[id]; ok {
			drop[id] = struct{}{}
			delete(d.records, id)
		}
	}
	if len(drop) == 0 {
		return 0
	}
	kept := d.ids[:0]
	for _, id := range d.ids {
		if _, ok := drop[id]; !ok {
			kept = append(kept, id)
		}
	}
	d.ids = kept
	return len(drop)
}

// Rekey moves a record from oldID to its current r.ID, keeping order.
func (d *ListData) Rekey(oldID int64, r *message.Record) bool {
	if _, ok := d.records[oldID]; !ok {
		return false
	}
	delete(d.records, oldID)
	for i, id := range d.ids {
		if id == oldID {
			d.ids = append(d.ids[:i], d.ids[i+1:]...)
			break
		}
	}
	d.insert([]*message.Record{r})
	return true
}

// Clear drops every message and resets the fetch boundaries.
func (d *ListData) Clear() {
	d.ids = nil
	d.records = make(map[int64]*message.Record)
	d.fetch = FetchStatus{}
}
