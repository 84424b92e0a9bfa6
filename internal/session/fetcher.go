package session

import "github.com/bhandras/msgsync/internal/engine"

// queueFetcher collects the requests the engine issues while reducing one
// input. Reduce drains it into effects, so no I/O happens on the loop.
type queueFetcher struct {
	reqs []engine.FetchRequest
}

// Fetch implements engine.Fetcher.
func (q *queueFetcher) Fetch(req engine.FetchRequest) {
	q.reqs = append(q.reqs, req)
}

func (q *queueFetcher) drain() []engine.FetchRequest {
	reqs := q.reqs
	q.reqs = nil
	return reqs
}
