// Package delay provides a fractional delay line used for interaural time
// differences.
package delay

import (
	"fmt"
	"math"
)

// Line is a circular delay line with cubic Hermite fractional reads.
type Line struct {
	buffer   []float64
	writePos int
	last     float64
}

// New returns a delay line able to delay by up to maxDelay samples.
func New(maxDelay int) (*Line, error) {
	if maxDelay < 0 {
		return nil, fmt.Errorf("delay max delay must be >= 0: %d", maxDelay)
	}
	// Four extra taps keep the Hermite neighbourhood inside the buffer.
	return &Line{buffer: make([]float64, maxDelay+4)}, nil
}

// MaxDelay returns the longest delay in samples the line can produce.
func (d *Line) MaxDelay() float64 {
	return float64(len(d.buffer) - 4)
}

// Delay returns the delay applied at the end of the last processed block.
func (d *Line) Delay() float64 { return d.last }

// Write pushes one sample.
func (d *Line) Write(sample float64) {
	d.buffer[d.writePos] = sample
	d.writePos++
	if d.writePos >= len(d.buffer) {
		d.writePos = 0
	}
}

// Read returns the sample written delay samples before the most recent one.
func (d *Line) Read(delay int) float64 {
	size := len(d.buffer)
	readPos := ((d.writePos-1-delay)%size + size) % size
	return d.buffer[readPos]
}

// ReadFractional reads with cubic Hermite interpolation.
func (d *Line) ReadFractional(delay float64) float64 {
	if delay < 0 || math.IsNaN(delay) {
		delay = 0
	}
	if maxDelay := d.MaxDelay(); delay > maxDelay {
		delay = maxDelay
	}

	p := int(math.Floor(delay))
	t := delay - float64(p)
	if t == 0 {
		return d.Read(p)
	}

	xm1 := d.Read(max(0, p-1))
	x0 := d.Read(p)
	x1 := d.Read(p + 1)
	x2 := d.Read(p + 2)
	return hermite4(t, xm1, x0, x1, x2)
}

// ProcessBlock delays buf in place. The delay ramps linearly from the value
// used by the previous block to target, so ITD changes between blocks do not
// produce discontinuities.
func (d *Line) ProcessBlock(buf []float64, target float64) {
	if target < 0 {
		target = 0
	}
	if maxDelay := d.MaxDelay(); target > maxDelay {
		target = maxDelay
	}

	start := d.last
	n := float64(len(buf))
	for i, x := range buf {
		d.Write(x)
		delay := start + (target-start)*float64(i+1)/n
		buf[i] = d.ReadFractional(delay)
	}
	d.last = target
}

// Reset clears line state.
func (d *Line) Reset() {
	for i := range d.buffer {
		d.buffer[i] = 0
	}
	d.writePos = 0
	d.last = 0
}

// hermite4 is the 4-point, 3rd-order Hermite interpolator between x0 and x1.
func hermite4(t, xm1, x0, x1, x2 float64) float64 {
	c0 := x0
	c1 := 0.5 * (x1 - xm1)
	c2 := xm1 - 2.5*x0 + 2*x1 - 0.5*x2
	c3 := 0.5*(x2-xm1) + 1.5*(x0-x1)
	return ((c3*t+c2)*t+c1)*t + c0
}
