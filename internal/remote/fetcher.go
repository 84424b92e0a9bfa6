package remote

import (
	"context"

	"github.com/bhandras/msgsync/internal/engine"
	"github.com/bhandras/msgsync/internal/view"
)

// Do executes an engine fetch request and returns its completion. Errors
// are reported in the result, never returned.
func (c *Client) Do(ctx context.Context, req engine.FetchRequest) engine.FetchResult {
	res := engine.FetchResult{Request: req}
	switch req.Kind {
	case engine.FetchForProperty:
		res.Messages, res.Err = c.FetchMessages(ctx, req.MessageIDs, nil)

	case engine.FetchNarrowedProperty:
		res.Messages, res.Err = c.FetchMessages(ctx, req.MessageIDs, req.Narrow)

	case engine.FetchNarrowMatch:
		res.MatchedIDs, res.Err = c.MatchesNarrow(ctx, req.MessageIDs, req.Narrow)

	case engine.FetchNarrowWindow:
		var w Window
		w, res.Err = c.FetchWindow(ctx, req.Anchor, req.Narrow)
		res.Messages = w.Messages
		res.FetchStatus = view.FetchStatus{FoundOldest: w.FoundOldest, FoundNewest: w.FoundNewest}
	}
	return res
}
