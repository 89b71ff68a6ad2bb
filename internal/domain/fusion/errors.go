package fusion

import "errors"

// ErrProcessing wraps any internal failure while fusing a report.
var ErrProcessing = errors.New("processing failed")

var (
	errInactive        = errors.New("event no longer active")
	errLateDuplicate   = errors.New("reporter already on event")
	errAlreadyResolved = errors.New("event already resolved")
)
