package binaural

import (
	"fmt"

	"github.com/cwbudde/algo-vecmath/cpu"

	"github.com/cwbudde/algo-binaural/dsp/conv"
	"github.com/cwbudde/algo-binaural/hrtf"
)

const (
	MinSampleRate = 8000
	MaxSampleRate = 384000
	MinBlockSize  = 1
	MaxBlockSize  = 65536
)

// Core holds the processing format shared by every source. It is
// immutable; a format change means a new Core.
type Core struct {
	sampleRate int
	blockSize  int
}

// NewCore validates the processing format.
func NewCore(sampleRate, blockSize int) (*Core, error) {
	if sampleRate < MinSampleRate || sampleRate > MaxSampleRate {
		return nil, fmt.Errorf("core sample rate must be in [%d, %d]: %d",
			MinSampleRate, MaxSampleRate, sampleRate)
	}
	if blockSize < MinBlockSize || blockSize > MaxBlockSize {
		return nil, fmt.Errorf("core block size must be in [%d, %d]: %d",
			MinBlockSize, MaxBlockSize, blockSize)
	}
	return &Core{sampleRate: sampleRate, blockSize: blockSize}, nil
}

// SampleRate returns the sample rate in Hz.
func (c *Core) SampleRate() int { return c.sampleRate }

// BlockSize returns the largest block a Source accepts.
func (c *Core) BlockSize() int { return c.blockSize }

// HRTF is a table resampled to a grid with both ears' kernels held in the
// frequency domain, ready for block convolution against one Core.
type HRTF struct {
	Grid  *hrtf.Grid
	Left  []*conv.Kernel
	Right []*conv.Kernel

	core    *Core
	fftSize int
}

// FFTSize returns the transform size of the kernels.
func (h *HRTF) FFTSize() int { return h.fftSize }

// PrepareHRTF resamples t to the given grid step and precomputes the
// kernel spectra for this core's block size.
func (c *Core) PrepareHRTF(t *hrtf.Table, step int) (*HRTF, error) {
	if t.SampleRate != c.sampleRate {
		return nil, fmt.Errorf("%w: table %d Hz, core %d Hz", ErrSampleRateMismatch, t.SampleRate, c.sampleRate)
	}

	grid, err := hrtf.Resample(t, step)
	if err != nil {
		return nil, err
	}

	fftSize := conv.FFTSize(c.blockSize, grid.IRLength)
	planner, err := conv.NewPlanner(fftSize)
	if err != nil {
		return nil, err
	}

	h := &HRTF{
		Grid:    grid,
		Left:    make([]*conv.Kernel, grid.Len()),
		Right:   make([]*conv.Kernel, grid.Len()),
		core:    c,
		fftSize: fftSize,
	}
	for i := range grid.Nodes {
		if h.Left[i], err = planner.Kernel(grid.Nodes[i].Left); err != nil {
			return nil, fmt.Errorf("node %d left: %w", i, err)
		}
		if h.Right[i], err = planner.Kernel(grid.Nodes[i].Right); err != nil {
			return nil, fmt.Errorf("node %d right: %w", i, err)
		}
	}
	return h, nil
}

// CheckILD verifies that t was designed for this core's sample rate.
func (c *Core) CheckILD(t *hrtf.ILDTable) error {
	if t.SampleRate != c.sampleRate {
		return fmt.Errorf("%w: %s table %d Hz, core %d Hz",
			ErrSampleRateMismatch, t.Kind, t.SampleRate, c.sampleRate)
	}
	return nil
}

// CPUSummary describes the vector units the block kernels run on.
func CPUSummary() string {
	f := cpu.DetectFeatures()
	return fmt.Sprintf("arch=%s sse2=%t avx2=%t neon=%t", f.Architecture, f.HasSSE2, f.HasAVX2, f.HasNEON)
}
