package domain

import "errors"

var (
	ErrInvalidInput      = errors.New("invalid input")
	ErrBusy              = errors.New("a flight search is already in progress")
	ErrInvalidTransition = errors.New("invalid workflow transition")
	ErrNotEligible       = errors.New("claim is not eligible for compensation")
	ErrSessionNotFound   = errors.New("claim session not found")
	ErrNotCached         = errors.New("flight status not cached")
	ErrEmptyResponse     = errors.New("empty response from generation service")
)
