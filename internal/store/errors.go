package store

import "errors"

var (
	ErrNotFound    = errors.New("record not found")
	ErrConflict    = errors.New("record conflict")
	ErrWriteFailed = errors.New("store rejected write")
	ErrTimeout     = errors.New("store timeout")
)
