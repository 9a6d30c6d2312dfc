// Package conv provides FFT-based block convolution for head-related impulse
// responses.
//
// Impulse responses are transformed once into a [Kernel] (the zero-padded
// spectrum at a fixed FFT size) by a [Planner]. A [Switched] convolver then
// runs streaming overlap-add over fixed-capacity blocks and accepts a
// different kernel on every call, which is what a moving source needs when
// its HRIR pair changes from block to block:
//
//	p, err := conv.NewPlanner(conv.FFTSize(blockSize, irLen))
//	k, err := p.Kernel(hrir)
//	s, err := conv.NewSwitched(blockSize, irLen)
//	err = s.ProcessTo(out, in, k)
//
// Kernels are immutable after construction and may be shared between
// convolvers and goroutines. Planners and convolvers are not safe for
// concurrent use.
package conv
