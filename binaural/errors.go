package binaural

import "errors"

var (
	// ErrSampleRateMismatch indicates a table designed for another sample rate.
	ErrSampleRateMismatch = errors.New("binaural: sample rate mismatch")
	// ErrBlockTooLong indicates a block longer than the core block size.
	ErrBlockTooLong = errors.New("binaural: block exceeds core block size")
	// ErrForeignTable indicates tables prepared against a different core.
	ErrForeignTable = errors.New("binaural: table prepared for another core")
)
