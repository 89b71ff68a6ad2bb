package classifier

import "errors"

// Causes recorded when a call degrades to the fallback verdict.
var (
	ErrNoImage     = errors.New("no image")
	ErrRateLimited = errors.New("classifier rate limited")
	ErrCircuitOpen = errors.New("classifier circuit open")
	ErrBadStatus   = errors.New("classifier returned non-2xx status")
	ErrBadResponse = errors.New("classifier response could not be decoded")
)
