package spatializer

import (
	"fmt"

	"github.com/tphakala/simd/f64"

	"github.com/cwbudde/algo-binaural/binaural"
)

// Status is the result code handed back to the host.
type Status int

const (
	StatusOK Status = iota
	StatusUnsupported
	StatusFailed
)

func (s Status) String() string {
	switch s {
	case StatusOK:
		return "ok"
	case StatusUnsupported:
		return "unsupported"
	case StatusFailed:
		return "failed"
	}
	return fmt.Sprintf("Status(%d)", int(s))
}

// Process renders frames of interleaved input into interleaved stereo
// output. It never takes the State's lock and never returns an error:
//
//   - a closed, released or not yet Ready engine writes silence and
//     returns StatusOK;
//   - a layout other than stereo output, or buffers shorter than frames,
//     writes silence and returns StatusUnsupported;
//   - a failure inside the DSP writes silence and returns StatusFailed.
func (v *Voice) Process(in, out []float32, inChannels, outChannels, frames int) (status Status) {
	defer func() {
		if r := recover(); r != nil {
			silence(out)
			status = StatusFailed
		}
	}()

	if outChannels != 2 || inChannels < 1 || frames < 0 ||
		len(out) < frames*outChannels || len(in) < frames*inChannels {
		silence(out)
		return StatusUnsupported
	}
	out = out[:frames*2]

	snap := v.state.snap.Load()
	if snap == nil || v.released.Load() || snap.readiness != Ready {
		silence(out)
		return StatusOK
	}

	if err := v.bind(snap.core); err != nil {
		silence(out)
		return StatusFailed
	}

	set := v.settings(snap)
	pose := *v.pose.Load()
	block := snap.core.BlockSize()

	for off := 0; off < frames; off += block {
		n := min(block, frames-off)
		v.downmix(in[off*inChannels:(off+n)*inChannels], inChannels, n)

		if err := v.source.Process(v.mono[:n], v.left[:n], v.right[:n], snap.listener, pose, set); err != nil {
			silence(out)
			return StatusFailed
		}

		inter := v.inter[:2*n]
		f64.Interleave2(inter, v.left[:n], v.right[:n])
		dst := out[2*off : 2*(off+n)]
		for i, x := range inter {
			dst[i] = float32(x)
		}
	}

	if snap.limiterOn {
		snap.limiter.ProcessInterleaved(out)
	}
	return StatusOK
}

// bind makes sure the voice's source and buffers match core.
func (v *Voice) bind(core *binaural.Core) error {
	if v.source != nil && v.source.Core() == core {
		return nil
	}
	src, err := binaural.NewSource(core)
	if err != nil {
		return err
	}
	n := core.BlockSize()
	v.source = src
	v.mono = make([]float64, n)
	v.left = make([]float64, n)
	v.right = make([]float64, n)
	v.inter = make([]float64, 2*n)
	return nil
}

// downmix averages the interleaved input channels of one chunk into
// v.mono.
func (v *Voice) downmix(in []float32, channels, n int) {
	mono := v.mono[:n]
	if channels == 1 {
		for i := range mono {
			mono[i] = float64(in[i])
		}
		return
	}

	for i := range mono {
		var sum float64
		frame := in[i*channels : (i+1)*channels]
		for _, x := range frame {
			sum += float64(x)
		}
		mono[i] = sum
	}
	f64.Scale(mono, mono, 1/float64(channels))
}

func silence(out []float32) {
	for i := range out {
		out[i] = 0
	}
}
