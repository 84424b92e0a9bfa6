package engine

import (
	"fmt"

	"github.com/bhandras/msgsync/internal/filter"
	"github.com/bhandras/msgsync/internal/message"
	"github.com/bhandras/msgsync/internal/view"
)

// UpdateViewsFilteredOnMessageProperty brings every rendered list whose
// filter depends on termType in line with a property change of ids. Call it
// after the property has been updated on the local records.
//
// termType must be one of filter.PropertyTermTypes in its positive form;
// passing a negated term type is a programming error and panics.
func (e *Engine) UpdateViewsFilteredOnMessageProperty(ids []int64, termType filter.TermType, value bool) {
	e.updateViewsFilteredOnMessageProperty(PropertyChange{IDs: ids, TermType: termType, Value: value}, nil)
}

// updateViewsFilteredOnMessageProperty re-derives everything from the store
// and the change, so it is safe to re-run once a fetch completes. Ids in
// fetched were already requested once and are not requested again.
func (e *Engine) updateViewsFilteredOnMessageProperty(change PropertyChange, fetched []int64) {
	tt := change.TermType
	if tt.IsNegated() {
		panic(fmt.Sprintf("engine: negated term type %q", tt))
	}
	if len(change.IDs) == 0 || !filter.IsPropertyTermType(tt) {
		return
	}

	alreadyFetched := make(map[int64]struct{}, len(fetched))
	for _, id := range fetched {
		alreadyFetched[id] = struct{}{}
	}

	var (
		toFetch   []int64
		wantFetch = make(map[int64]struct{})
		updated   int
	)
	for _, l := range e.deps.Views.AllRendered() {
		f := l.Filter()
		if !f.DependsOn(tt) {
			continue
		}

		var records []*message.Record
		var missing []int64
		for _, id := range change.IDs {
			if r, ok := e.deps.Store.Get(id); ok {
				records = append(records, r)
				continue
			}
			if _, ok := alreadyFetched[id]; ok {
				continue
			}
			// A message we do not have cannot be in the list, and the
			// new value means it still does not belong there.
			if (f.Contains(tt) && !change.Value) || (f.Contains(tt.Negated()) && change.Value) {
				continue
			}
			if needsFetch(l, id) {
				missing = append(missing, id)
			}
		}

		switch {
		case !f.CanApplyLocally():
			e.fetch(FetchRequest{
				Kind:       FetchNarrowedProperty,
				MessageIDs: change.IDs,
				Narrow:     f,
				ListID:     l.ID(),
			})

		case len(missing) > 0:
			// The fetched records update the store for every list, so the
			// request is shared and carries no narrow.
			for _, id := range missing {
				if _, ok := wantFetch[id]; !ok {
					wantFetch[id] = struct{}{}
					toFetch = append(toFetch, id)
				}
			}

		default:
			applyPropertyLocally(l, change, records)
			updated++
		}
	}

	if len(toFetch) > 0 {
		e.fetch(FetchRequest{
			Kind:       FetchForProperty,
			MessageIDs: toFetch,
			Property:   change,
		})
	}
	if updated > 0 {
		e.c.Observer.ViewsUpdated(updated)
	}
}

// needsFetch reports whether an unknown id would land inside the list: in
// the middle of it, or past an end the list has fully loaded.
func needsFetch(l *view.List, id int64) bool {
	first, ok := l.First()
	if !ok {
		return l.Data().FetchStatus().FoundNewest
	}
	last, _ := l.Last()
	status := l.Data().FetchStatus()
	switch {
	case id > first.ID && id < last.ID:
		return true
	case id < first.ID && status.FoundOldest:
		return true
	case id > last.ID && status.FoundNewest:
		return true
	}
	return false
}

func applyPropertyLocally(l *view.List, change PropertyChange, records []*message.Record) {
	f := l.Filter()

	// The starred view keeps messages unstarred while it is open, so an
	// accidental unstar can be undone in place.
	if change.TermType == filter.TermIsStarred && f.IsExactly(filter.TermIsStarred) {
		l.AddMessages(records)
		return
	}

	if len(records) == 1 {
		if f.Predicate(records[0]) {
			l.AddMessages(records)
		} else {
			l.RemoveAndRerender(change.IDs)
		}
		return
	}

	removed := l.Data().Remove(change.IDs)
	added := l.Data().AddMessages(records)
	if removed > 0 || len(added) > 0 {
		l.Rerender()
	}
}
