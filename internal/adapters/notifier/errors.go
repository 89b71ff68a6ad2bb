package notifier

import "errors"

// Sentinel errors for notification delivery.
var (
	// ErrDropped means the dispatch queue was full or closed.
	ErrDropped = errors.New("notification dropped")
	// ErrUnknownKind means a notification had no routable kind.
	ErrUnknownKind = errors.New("unknown notification kind")
)
