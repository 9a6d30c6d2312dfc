package conv

import (
	"fmt"

	algofft "github.com/MeKo-Christian/algo-fft"
)

// Switched is a streaming overlap-add convolver whose kernel may change on
// every block. Blocks may be shorter than the configured capacity, so a host
// that delivers a partial final buffer does not need to pad it.
//
// When the kernel changes, the tail produced by the previous kernel still
// rings out into the following blocks; the new kernel only applies to new
// input. That is the usual behaviour of block-switched HRIR rendering.
type Switched struct {
	blockSize    int
	maxKernelLen int
	fftSize      int

	plan *algofft.Plan[complex128]

	freq   []complex128
	result []float64
	tail   []float64
}

// NewSwitched creates a convolver for blocks of up to blockSize samples and
// kernels of up to maxKernelLen samples.
func NewSwitched(blockSize, maxKernelLen int) (*Switched, error) {
	if blockSize <= 0 {
		return nil, fmt.Errorf("%w: blockSize must be positive, got %d", ErrInvalidBlockSize, blockSize)
	}
	if maxKernelLen <= 0 {
		return nil, ErrEmptyKernel
	}

	fftSize := FFTSize(blockSize, maxKernelLen)
	plan, err := algofft.NewPlan64(fftSize)
	if err != nil {
		return nil, fmt.Errorf("conv: failed to create FFT plan: %w", err)
	}

	return &Switched{
		blockSize:    blockSize,
		maxKernelLen: maxKernelLen,
		fftSize:      fftSize,
		plan:         plan,
		freq:         make([]complex128, fftSize),
		result:       make([]float64, blockSize+maxKernelLen-1),
		tail:         make([]float64, maxKernelLen-1),
	}, nil
}

// BlockSize returns the maximum block length.
func (s *Switched) BlockSize() int { return s.blockSize }

// FFTSize returns the transform size kernels must be built with.
func (s *Switched) FFTSize() int { return s.fftSize }

// MaxKernelLen returns the longest supported kernel.
func (s *Switched) MaxKernelLen() int { return s.maxKernelLen }

// ProcessTo convolves src with k and writes len(src) samples to dst.
func (s *Switched) ProcessTo(dst, src []float64, k *Kernel) error {
	n := len(src)
	if n == 0 {
		return ErrEmptyInput
	}
	if n > s.blockSize {
		return fmt.Errorf("%w: block of %d exceeds capacity %d", ErrLengthMismatch, n, s.blockSize)
	}
	if len(dst) < n {
		return fmt.Errorf("%w: output %d shorter than input %d", ErrLengthMismatch, len(dst), n)
	}
	if k == nil {
		return ErrEmptyKernel
	}
	if k.FFTSize() != s.fftSize {
		return fmt.Errorf("%w: %d != %d", ErrFFTSizeMismatch, k.FFTSize(), s.fftSize)
	}
	if k.Len() > s.maxKernelLen {
		return fmt.Errorf("%w: %d > %d", ErrKernelTooLong, k.Len(), s.maxKernelLen)
	}

	for i := range s.freq {
		s.freq[i] = 0
	}
	for i, v := range src {
		s.freq[i] = complex(v, 0)
	}

	if err := s.plan.Forward(s.freq, s.freq); err != nil {
		return fmt.Errorf("conv: forward FFT failed: %w", err)
	}
	for i := range s.freq {
		s.freq[i] *= k.spectrum[i]
	}
	if err := s.plan.Inverse(s.freq, s.freq); err != nil {
		return fmt.Errorf("conv: inverse FFT failed: %w", err)
	}

	resultLen := n + k.Len() - 1
	for i := 0; i < resultLen; i++ {
		s.result[i] = real(s.freq[i])
	}

	// Output is the head of this block's result plus the pending tail.
	for i := 0; i < n; i++ {
		out := s.result[i]
		if i < len(s.tail) {
			out += s.tail[i]
		}
		dst[i] = out
	}

	// Shift the unconsumed tail forward and fold in the new overhang.
	tailLen := len(s.tail)
	for i := 0; i < tailLen; i++ {
		var v float64
		if i+n < tailLen {
			v = s.tail[i+n]
		}
		if n+i < resultLen {
			v += s.result[n+i]
		}
		s.tail[i] = v
	}

	return nil
}

// Reset clears the overlap tail.
func (s *Switched) Reset() {
	for i := range s.tail {
		s.tail[i] = 0
	}
}
