package hrtf

import "errors"

var (
	// ErrInvalidMagic indicates the data does not start with the table magic.
	ErrInvalidMagic = errors.New("hrtf: invalid magic")
	// ErrUnsupportedVersion indicates a table version this package cannot read.
	ErrUnsupportedVersion = errors.New("hrtf: unsupported version")
	// ErrKindMismatch indicates a table of a different kind than requested.
	ErrKindMismatch = errors.New("hrtf: table kind mismatch")
	// ErrCorruptedData indicates truncated, oversized or non-finite table data.
	ErrCorruptedData = errors.New("hrtf: corrupted data")
	// ErrInvalidStep indicates a grid step outside [1, 90] degrees.
	ErrInvalidStep = errors.New("hrtf: invalid grid step")
)
