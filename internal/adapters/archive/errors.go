package archive

import "errors"

// Sentinel kinds for archive errors.
var (
	ErrNotFound = errors.New("report not found")
)
