package view

import (
	"github.com/bhandras/msgsync/internal/filter"
	"github.com/bhandras/msgsync/internal/message"
)

// Renderer paints a List. Implementations receive records as read-only
// snapshots valid until the next reconciliation pass.
type Renderer interface {
	// RenderAdded draws newly added records and reports whether the user
	// has to scroll to see them.
	RenderAdded(l *List, added []*message.Record) (needUserToScroll bool)
	// Rerender redraws the whole list.
	Rerender(l *List)
	// RerenderMessages redraws the given records in place.
	RerenderMessages(l *List, records []*message.Record, contentChanged bool)
}

// NopRenderer is a Renderer that draws nothing.
type NopRenderer struct{}

// RenderAdded implements Renderer.
func (NopRenderer) RenderAdded(*List, []*message.Record) bool { return false }

// Rerender implements Renderer.
func (NopRenderer) Rerender(*List) {}

// RerenderMessages implements Renderer.
func (NopRenderer) RerenderMessages(*List, []*message.Record, bool) {}

// RenderInfo describes the outcome of adding messages to a rendered list.
type RenderInfo struct {
	Added            []*message.Record
	NeedUserToScroll bool
}

// List is a rendered view: ListData plus a selection and a renderer.
type List struct {
	id         uint64
	data       *ListData
	renderer   Renderer
	selectedID int64
}

// NewList returns a list over f. A nil renderer draws nothing.
func NewList(f *filter.Filter, renderer Renderer) *List {
	if renderer == nil {
		renderer = NopRenderer{}
	}
	return &List{data: NewListData(f), renderer: renderer}
}

// ID returns the registry-assigned id of the list, or zero if the list was
// never registered.
func (l *List) ID() uint64 { return l.id }

// Data returns the list's backing data.
func (l *List) Data() *ListData { return l.data }

// Filter returns the list's filter.
func (l *List) Filter() *filter.Filter { return l.data.filter }

// First returns the record with the lowest id.
func (l *List) First() (*message.Record, bool) { return l.data.First() }

// Last returns the record with the highest id.
func (l *List) Last() (*message.Record, bool) { return l.data.Last() }

// SelectedID returns the selected message id, or zero.
func (l *List) SelectedID() int64 { return l.selectedID }

// Select marks id as selected.
func (l *List) Select(id int64) { l.selectedID = id }

// AddMessages adds matching records and renders the additions.
func (l *List) AddMessages(records []*message.Record) RenderInfo {
	added := l.data.AddMessages(records)
	if len(added) == 0 {
		return RenderInfo{}
	}
	if l.selectedID == 0 {
		l.selectedID = added[0].ID
	}
	return RenderInfo{
		Added:            added,
		NeedUserToScroll: l.renderer.RenderAdded(l, added),
	}
}

// AddNewMessages adds newly arrived records. Nothing is added until the
// newest end of the narrow has been fetched, since the records would
// otherwise be drawn right after stale history.
func (l *List) AddNewMessages(records []*message.Record) (RenderInfo, bool) {
	if !l.data.fetch.FoundNewest {
		l.data.UpdateExpectedMaxID(records)
		return RenderInfo{}, false
	}
	return l.AddMessages(records), true
}

// RemoveAndRerender drops ids and redraws the list when anything changed.
func (l *List) RemoveAndRerender(ids []int64) {
	if l.data.Remove(ids) == 0 {
		return
	}
	if l.selectedID != 0 && !l.data.Has(l.selectedID) {
		l.selectedID = l.closestID(l.selectedID)
	}
	l.renderer.Rerender(l)
}

// Rerender redraws the whole list.
func (l *List) Rerender() { l.renderer.Rerender(l) }

// RerenderMessages redraws the records that are part of the list.
func (l *List) RerenderMessages(records []*message.Record, contentChanged bool) {
	var present []*message.Record
	for _, r := range records {
		if r != nil && l.data.Has(r.ID) {
			present = append(present, r)
		}
	}
	if len(present) == 0 {
		return
	}
	l.renderer.RerenderMessages(l, present, contentChanged)
}

// closestID returns the id nearest to target, preferring the later one.
func (l *List) closestID(target int64) int64 {
	var best int64
	for _, id := range l.data.ids {
		best = id
		if id >= target {
			break
		}
	}
	return best
}
