package hrtf

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/spatial/r3"
)

// HRIR is one measured head-related impulse response pair. Onset delays are
// stored separately from the (delay-free) impulse responses, in samples.
type HRIR struct {
	Azimuth    float64
	Elevation  float64
	LeftDelay  float64
	RightDelay float64
	Left       []float64
	Right      []float64
}

// Table is a decoded HRTF table.
type Table struct {
	SampleRate int
	IRLength   int
	Entries    []HRIR
}

// Validate checks the structural consistency of t.
func (t *Table) Validate() error {
	if t.SampleRate <= 0 {
		return fmt.Errorf("%w: sample rate %d", ErrCorruptedData, t.SampleRate)
	}
	if t.IRLength <= 0 || t.IRLength > MaxIRLength {
		return fmt.Errorf("%w: ir length %d", ErrCorruptedData, t.IRLength)
	}
	if len(t.Entries) == 0 || len(t.Entries) > MaxEntries {
		return fmt.Errorf("%w: %d entries", ErrCorruptedData, len(t.Entries))
	}
	for i := range t.Entries {
		e := &t.Entries[i]
		if len(e.Left) != t.IRLength || len(e.Right) != t.IRLength {
			return fmt.Errorf("%w: entry %d has ir lengths %d/%d, want %d",
				ErrCorruptedData, i, len(e.Left), len(e.Right), t.IRLength)
		}
		if e.LeftDelay < 0 || e.RightDelay < 0 {
			return fmt.Errorf("%w: entry %d has negative delay", ErrCorruptedData, i)
		}
	}
	return nil
}

// DecodeHRTF parses an HRTF table.
func DecodeHRTF(data []byte) (*Table, error) {
	h, err := ReadHeader(data)
	if err != nil {
		return nil, err
	}
	if err := expectKind(h, KindHRTF); err != nil {
		return nil, err
	}
	if h.Length <= 0 || h.Length > MaxIRLength {
		return nil, fmt.Errorf("%w: ir length %d", ErrCorruptedData, h.Length)
	}
	if err := checkPayload(data, h, 4+2*h.Length); err != nil {
		return nil, err
	}

	t := &Table{
		SampleRate: h.SampleRate,
		IRLength:   h.Length,
		Entries:    make([]HRIR, h.Count),
	}

	r := reader{data: data, off: headerSize}
	for i := range t.Entries {
		e := &t.Entries[i]
		e.Azimuth = r.float()
		e.Elevation = r.float()
		e.LeftDelay = r.float()
		e.RightDelay = r.float()
		e.Left = make([]float64, h.Length)
		e.Right = make([]float64, h.Length)
		r.floats(e.Left)
		r.floats(e.Right)
	}
	if r.err != nil {
		return nil, r.err
	}

	if err := t.Validate(); err != nil {
		return nil, err
	}
	return t, nil
}

// EncodeHRTF serializes t.
func EncodeHRTF(t *Table) ([]byte, error) {
	if err := t.Validate(); err != nil {
		return nil, err
	}

	size := headerSize + len(t.Entries)*(4+2*t.IRLength)*4
	out := make([]byte, 0, size)
	out = appendHeader(out, Header{
		Kind:       KindHRTF,
		SampleRate: t.SampleRate,
		Length:     t.IRLength,
		Count:      len(t.Entries),
	})
	for _, e := range t.Entries {
		out = appendFloat(out, e.Azimuth)
		out = appendFloat(out, e.Elevation)
		out = appendFloat(out, e.LeftDelay)
		out = appendFloat(out, e.RightDelay)
		for _, v := range e.Left {
			out = appendFloat(out, v)
		}
		for _, v := range e.Right {
			out = appendFloat(out, v)
		}
	}
	return out, nil
}

// Direction returns the unit vector for an azimuth/elevation pair:
// x forward, y left, z up.
func Direction(azimuthDeg, elevationDeg float64) r3.Vec {
	az := azimuthDeg * math.Pi / 180
	el := elevationDeg * math.Pi / 180
	return r3.Vec{
		X: math.Cos(el) * math.Cos(az),
		Y: math.Cos(el) * math.Sin(az),
		Z: math.Sin(el),
	}
}

// Angles is the inverse of Direction. The azimuth is wrapped to [0, 360).
// A zero vector yields (0, 0).
func Angles(v r3.Vec) (azimuthDeg, elevationDeg float64) {
	n := r3.Norm(v)
	if n == 0 {
		return 0, 0
	}
	u := r3.Scale(1/n, v)
	elevationDeg = math.Asin(clamp(u.Z, -1, 1)) * 180 / math.Pi
	azimuthDeg = WrapAzimuth(math.Atan2(u.Y, u.X) * 180 / math.Pi)
	return azimuthDeg, elevationDeg
}

// WrapAzimuth maps any angle to [0, 360).
func WrapAzimuth(deg float64) float64 {
	deg = math.Mod(deg, 360)
	if deg < 0 {
		deg += 360
	}
	if deg >= 360 {
		deg = 0
	}
	return deg
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}
