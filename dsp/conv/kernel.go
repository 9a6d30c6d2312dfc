package conv

import (
	"fmt"

	algofft "github.com/MeKo-Christian/algo-fft"
)

// Kernel is an impulse response held in the frequency domain.
type Kernel struct {
	spectrum []complex128
	length   int
}

// Len returns the time-domain length of the impulse response.
func (k *Kernel) Len() int { return k.length }

// FFTSize returns the length of the stored spectrum.
func (k *Kernel) FFTSize() int { return len(k.spectrum) }

// FFTSize returns the power-of-two transform size needed to convolve blocks
// of blockSize samples with kernels of up to kernelLen samples without
// circular aliasing.
func FFTSize(blockSize, kernelLen int) int {
	return nextPowerOf2(blockSize + kernelLen - 1)
}

// Planner turns impulse responses into kernels of one FFT size. It keeps a
// single FFT plan so that building a table of hundreds of kernels does not
// create hundreds of plans.
type Planner struct {
	fftSize int
	plan    *algofft.Plan[complex128]
	scratch []complex128
}

// NewPlanner creates a planner for the given FFT size, which must be a
// power of two.
func NewPlanner(fftSize int) (*Planner, error) {
	if fftSize <= 0 || fftSize&(fftSize-1) != 0 {
		return nil, fmt.Errorf("%w: fft size must be a positive power of two: %d", ErrInvalidBlockSize, fftSize)
	}

	plan, err := algofft.NewPlan64(fftSize)
	if err != nil {
		return nil, fmt.Errorf("conv: failed to create FFT plan: %w", err)
	}

	return &Planner{
		fftSize: fftSize,
		plan:    plan,
		scratch: make([]complex128, fftSize),
	}, nil
}

// FFTSize returns the planner's transform size.
func (p *Planner) FFTSize() int { return p.fftSize }

// Kernel computes the spectrum of ir.
func (p *Planner) Kernel(ir []float64) (*Kernel, error) {
	if len(ir) == 0 {
		return nil, ErrEmptyKernel
	}
	if len(ir) > p.fftSize {
		return nil, fmt.Errorf("%w: %d > %d", ErrKernelTooLong, len(ir), p.fftSize)
	}

	for i := range p.scratch {
		p.scratch[i] = 0
	}
	for i, v := range ir {
		p.scratch[i] = complex(v, 0)
	}

	k := &Kernel{
		spectrum: make([]complex128, p.fftSize),
		length:   len(ir),
	}
	if err := p.plan.Forward(k.spectrum, p.scratch); err != nil {
		return nil, fmt.Errorf("conv: failed to compute kernel FFT: %w", err)
	}

	return k, nil
}

// Blend writes the weighted sum of kernels into dst, which must share their
// FFT size. Because the transform is linear this equals the spectrum of the
// weighted sum of the impulse responses. dst may be reused across calls.
func Blend(dst *Kernel, kernels []*Kernel, weights []float64) error {
	if len(kernels) == 0 {
		return ErrEmptyKernel
	}
	if len(kernels) != len(weights) {
		return fmt.Errorf("%w: %d kernels, %d weights", ErrLengthMismatch, len(kernels), len(weights))
	}

	size := kernels[0].FFTSize()
	if len(dst.spectrum) != size {
		dst.spectrum = make([]complex128, size)
	}
	for i := range dst.spectrum {
		dst.spectrum[i] = 0
	}

	dst.length = 0
	for n, k := range kernels {
		if k.FFTSize() != size {
			return fmt.Errorf("%w: %d != %d", ErrFFTSizeMismatch, k.FFTSize(), size)
		}
		w := complex(weights[n], 0)
		if weights[n] == 0 {
			continue
		}
		for i, v := range k.spectrum {
			dst.spectrum[i] += w * v
		}
		if k.length > dst.length {
			dst.length = k.length
		}
	}
	if dst.length == 0 {
		dst.length = kernels[0].length
	}

	return nil
}

func nextPowerOf2(n int) int {
	if n <= 1 {
		return 1
	}
	p := 1
	for p < n {
		p <<= 1
	}
	return p
}
