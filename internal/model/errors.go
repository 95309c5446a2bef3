package model

import "errors"

// Error taxonomy shared by every engine. Producers wrap these with context,
// callers match with errors.Is.
var (
	// ErrInvalidParameter marks bad user input; the operation is not attempted.
	ErrInvalidParameter = errors.New("invalid parameter")
	// ErrFetch marks an unavailable quote, profile or notification source.
	ErrFetch = errors.New("fetch error")
	// ErrInsufficientData marks a forecast requested on too short a series.
	ErrInsufficientData = errors.New("insufficient data")
)
