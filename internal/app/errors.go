package app

import "errors"

// Sentinel kinds for service errors.
var (
	ErrArchiveDisabled = errors.New("archive disabled")
)
