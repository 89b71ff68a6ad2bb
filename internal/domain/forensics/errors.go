package forensics

import "errors"

// ErrCorrupt marks image bytes that are not a recognised image container.
var ErrCorrupt = errors.New("corrupt image data")
