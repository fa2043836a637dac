package core

import "errors"

var (
	// ErrUnknownTrack is returned when the rates document has no entry for the requested track.
	ErrUnknownTrack = errors.New("unknown track")
	// ErrMissingField is returned when a compound entry lacks a required numeric field.
	ErrMissingField = errors.New("missing field")
	// ErrInvalidRates is returned when a compound entry holds an out-of-range value.
	ErrInvalidRates = errors.New("invalid compound rates")
	// ErrInvalidCompound is returned for an empty compound label or one containing whitespace.
	ErrInvalidCompound = errors.New("invalid compound")
	// ErrInvalidStrategy is returned when a strategy violates its structural invariants.
	ErrInvalidStrategy = errors.New("invalid strategy")
)
