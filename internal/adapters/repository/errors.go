package repository

import "errors"

// Sentinel kinds for registry errors.
var (
	ErrNotFound      = errors.New("encounter not found")
	ErrExists        = errors.New("encounter already open")
	ErrLimitExceeded = errors.New("encounter limit exceeded")
)
