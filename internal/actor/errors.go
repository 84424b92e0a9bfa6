package actor

import "errors"

// ErrStopped is returned by Enqueue once the actor has been stopped.
var ErrStopped = errors.New("actor stopped")
