// Package wire contains the typed server payloads consumed by msgsync: the
// message shape shared by events and fetch responses, and the event batch
// pushed over the update socket.
package wire

import "errors"

var (
	// ErrMalformedEvent is returned when an event lacks fields its declared
	// type requires. A trusted server never produces one; callers log and drop.
	ErrMalformedEvent = errors.New("malformed event")
	// ErrUnknownEventType is returned by ParseEvent for event types msgsync
	// does not reconcile.
	ErrUnknownEventType = errors.New("unknown event type")
)
