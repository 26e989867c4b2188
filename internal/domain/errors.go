package domain

import "errors"

var (
	ErrNotFound          = errors.New("not found")
	ErrValidation        = errors.New("validation failed")
	ErrInvalidTransition = errors.New("invalid transition")
	ErrAlreadyDecided    = errors.New("already decided")
	ErrQueueFull         = errors.New("generation queue full")
)
