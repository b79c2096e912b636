package tracker

import "errors"

// Sentinel kinds for tracker errors.
var (
	// ErrNoPriorStagger reports a purifying removal arriving before any
	// stagger event was accumulated. Non-fatal: the removal is still
	// recorded, only the purify marker is dropped.
	ErrNoPriorStagger = errors.New("no prior stagger event")
)
