package actor

// Step applies reducer to one (state, input) pair without running effects.
// Reducer tests use it to drive state transitions synchronously.
func Step[S any](state S, input Input, reducer ReducerFunc[S]) (S, []Effect) {
	return reducer(state, input)
}
