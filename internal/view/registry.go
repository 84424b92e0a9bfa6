package view

import (
	"sort"

	"github.com/bhandras/msgsync/internal/filter"
)

// Registry tracks every live view: the rendered lists (one of which is
// current) and the cache of maintained-but-not-rendered list data.
//
// Registry is owned by the reconciliation loop and is not safe for
// concurrent use.
type Registry struct {
	nextID      uint64
	lists       []*List
	current     *List
	home        *List
	cache       map[string]*ListData
	feedVisible bool
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		cache:       make(map[string]*ListData),
		feedVisible: true,
	}
}

// Add registers a rendered list and assigns its id. It never changes the
// current list; use SetCurrent for that.
func (r *Registry) Add(l *List) *List {
	r.nextID++
	l.id = r.nextID
	r.lists = append(r.lists, l)
	return l
}

// Remove tears down a rendered list. Later fetch results addressed to it are
// ignored.
func (r *Registry) Remove(l *List) {
	for i, have := range r.lists {
		if have == l {
			r.lists = append(r.lists[:i], r.lists[i+1:]...)
			break
		}
	}
	if r.current == l {
		r.current = nil
	}
	if r.home == l {
		r.home = nil
	}
}

// Lookup returns the live list with id.
func (r *Registry) Lookup(id uint64) (*List, bool) {
	for _, l := range r.lists {
		if l.id == id {
			return l, true
		}
	}
	return nil, false
}

// SetHome registers l as the home list. The home list survives navigation
// away from it.
func (r *Registry) SetHome(l *List) {
	if l.id == 0 {
		r.Add(l)
	}
	r.home = l
}

// Home returns the home list, if any.
func (r *Registry) Home() *List { return r.home }

// Current returns the list the user is looking at, if any.
func (r *Registry) Current() *List { return r.current }

// SetCurrent makes l the current list, registering it if needed.
func (r *Registry) SetCurrent(l *List) {
	if l != nil && l.id == 0 {
		r.Add(l)
	}
	r.current = l
}

// AllRendered returns every rendered list.
func (r *Registry) AllRendered() []*List {
	out := make([]*List, len(r.lists))
	copy(out, r.lists)
	return out
}

// FeedVisible reports whether the message feed is on screen.
func (r *Registry) FeedVisible() bool { return r.feedVisible }

// SetFeedVisible records whether the message feed is on screen.
func (r *Registry) SetFeedVisible(v bool) { r.feedVisible = v }

// IsCurrentlyVisible reports whether l is the list on screen.
func (r *Registry) IsCurrentlyVisible(l *List) bool {
	return r.feedVisible && l != nil && l == r.current
}

// CacheAdd stores non-rendered data under its filter.
func (r *Registry) CacheAdd(d *ListData) { r.cache[d.filter.Key()] = d }

// CacheGet returns cached data for f.
func (r *Registry) CacheGet(f *filter.Filter) (*ListData, bool) {
	d, ok := r.cache[f.Key()]
	return d, ok
}

// CacheRemove drops cached data for f.
func (r *Registry) CacheRemove(f *filter.Filter) { delete(r.cache, f.Key()) }

// CacheClear drops every cached data set.
func (r *Registry) CacheClear() { r.cache = make(map[string]*ListData) }

// NonRenderedData returns the cached data sets ordered by filter key.
func (r *Registry) NonRenderedData() []*ListData {
	keys := make([]string, 0, len(r.cache))
	for k := range r.cache {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make([]*ListData, 0, len(keys))
	for _, k := range keys {
		out = append(out, r.cache[k])
	}
	return out
}
