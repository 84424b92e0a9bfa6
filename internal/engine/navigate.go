package engine

import (
	"strconv"

	"github.com/bhandras/msgsync/internal/filter"
	"github.com/bhandras/msgsync/internal/view"
	"github.com/bhandras/msgsync/pkg/logger"
)

// Show makes a new list for terms the current one and asks the server for
// its initial window, centered on opts.ThenSelectID when set. The previous
// current list is torn down unless it is the home list.
func (e *Engine) Show(terms []filter.Term, opts ShowOptions) *view.List {
	f := filter.New(terms...)
	logger.Debugf("engine: show %s (%s)", f, opts.Trigger)

	prev := e.deps.Views.Current()
	l := view.NewList(f, e.c.NewRenderer(f))
	e.deps.Views.Add(l)
	if opts.ThenSelectID != 0 {
		l.Select(opts.ThenSelectID)
	}
	e.deps.Views.SetCurrent(l)
	if prev != nil && prev != e.deps.Views.Home() {
		e.deps.Views.Remove(prev)
	}

	e.fetch(FetchRequest{
		Kind:   FetchNarrowWindow,
		Narrow: f,
		ListID: l.ID(),
		Anchor: opts.ThenSelectID,
	})
	e.c.Navigator.Shown(l, opts)
	return l
}

// Open adds a rendered list for terms without making it current, and asks
// the server for its newest window. Open lists stay live until closed.
func (e *Engine) Open(terms []filter.Term) *view.List {
	f := filter.New(terms...)
	logger.Debugf("engine: open %s", f)

	l := e.deps.Views.Add(view.NewList(f, e.c.NewRenderer(f)))
	e.fetch(FetchRequest{
		Kind:   FetchNarrowWindow,
		Narrow: f,
		ListID: l.ID(),
	})
	return l
}

// narrowByTopic shows the conversation of message id. It is handed to the
// local mix notifier.
func (e *Engine) narrowByTopic(id int64) {
	r, ok := e.deps.Store.Get(id)
	if !ok {
		return
	}
	var terms []filter.Term
	if r.IsStream() {
		terms = []filter.Term{
			{Operator: filter.OperatorChannel, Operand: strconv.FormatInt(r.StreamID, 10)},
			{Operator: filter.OperatorTopic, Operand: r.Topic},
		}
	} else {
		terms = []filter.Term{
			{Operator: filter.OperatorDM, Operand: r.Key().DirectGroup},
		}
	}
	e.Show(terms, ShowOptions{Trigger: "outside_current_view", ThenSelectID: id})
}
