package conv

import "errors"

// Errors returned by the kernel and streaming convolution routines.
var (
	ErrEmptyInput       = errors.New("conv: empty input")
	ErrEmptyKernel      = errors.New("conv: empty kernel")
	ErrLengthMismatch   = errors.New("conv: buffer length mismatch")
	ErrInvalidBlockSize = errors.New("conv: invalid block size")
	ErrKernelTooLong    = errors.New("conv: kernel longer than convolver capacity")
	ErrFFTSizeMismatch  = errors.New("conv: kernel FFT size does not match convolver")
)
