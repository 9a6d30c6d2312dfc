package hrtf

import (
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/spatial/r3"
)

const (
	// MinStep and MaxStep bound the grid step in degrees.
	MinStep = 1
	MaxStep = 90

	resampleNeighbours = 3
	exactMatchCos      = 1 - 1e-9
)

// Grid is an HRTF resampled onto a regular azimuth/elevation lattice.
// Node (ai, ei) is stored at Nodes[ei*len(Azimuths)+ai]. A Grid is never
// mutated after Resample returns.
type Grid struct {
	Step       int
	SampleRate int
	IRLength   int
	Azimuths   []float64
	Elevations []float64
	Nodes      []HRIR
}

// Weight is one grid node taking part in a lookup.
type Weight struct {
	Index  int
	Weight float64
}

// Resample projects t onto a grid with the given step. Each node blends
// the nearest measured responses by inverse angular distance; a measured
// response at the node position is copied unchanged.
func Resample(t *Table, step int) (*Grid, error) {
	if step < MinStep || step > MaxStep {
		return nil, fmt.Errorf("%w: %d", ErrInvalidStep, step)
	}
	if err := t.Validate(); err != nil {
		return nil, err
	}

	g := &Grid{
		Step:       step,
		SampleRate: t.SampleRate,
		IRLength:   t.IRLength,
		Azimuths:   axis(0, 360, step, false),
		Elevations: axis(-90, 90, step, true),
	}

	dirs := make([]r3.Vec, len(t.Entries))
	for i, e := range t.Entries {
		dirs[i] = Direction(e.Azimuth, e.Elevation)
	}

	g.Nodes = make([]HRIR, len(g.Azimuths)*len(g.Elevations))
	cand := make([]neighbour, len(dirs))
	for ei, el := range g.Elevations {
		for ai, az := range g.Azimuths {
			node := &g.Nodes[ei*len(g.Azimuths)+ai]
			node.Azimuth = az
			node.Elevation = el
			blendNearest(node, t, dirs, Direction(az, el), cand)
		}
	}

	return g, nil
}

type neighbour struct {
	index int
	cos   float64
}

func blendNearest(dst *HRIR, t *Table, dirs []r3.Vec, target r3.Vec, cand []neighbour) {
	for i, d := range dirs {
		cand[i] = neighbour{index: i, cos: r3.Dot(d, target)}
	}
	sort.Slice(cand, func(a, b int) bool { return cand[a].cos > cand[b].cos })

	dst.Left = make([]float64, t.IRLength)
	dst.Right = make([]float64, t.IRLength)

	if cand[0].cos >= exactMatchCos {
		src := &t.Entries[cand[0].index]
		copy(dst.Left, src.Left)
		copy(dst.Right, src.Right)
		dst.LeftDelay = src.LeftDelay
		dst.RightDelay = src.RightDelay
		return
	}

	k := min(resampleNeighbours, len(cand))
	var total float64
	weights := make([]float64, k)
	for i := 0; i < k; i++ {
		angle := math.Acos(clamp(cand[i].cos, -1, 1))
		weights[i] = 1 / angle
		total += weights[i]
	}

	for i := 0; i < k; i++ {
		w := weights[i] / total
		src := &t.Entries[cand[i].index]
		for n := range dst.Left {
			dst.Left[n] += w * src.Left[n]
			dst.Right[n] += w * src.Right[n]
		}
		dst.LeftDelay += w * src.LeftDelay
		dst.RightDelay += w * src.RightDelay
	}
}

// axis lists lo, lo+step, ... up to hi. When closed, hi is always included.
func axis(lo, hi float64, step int, closed bool) []float64 {
	var out []float64
	for v := lo; v < hi; v += float64(step) {
		out = append(out, v)
	}
	if closed {
		out = append(out, hi)
	}
	return out
}

// Len returns the number of nodes.
func (g *Grid) Len() int {
	return len(g.Nodes)
}

// Weights returns the grid nodes contributing to direction (az, el). With
// interpolate set, up to four nodes are blended bilinearly; otherwise the
// single nearest node is returned with weight 1. dst is reused when large
// enough.
func (g *Grid) Weights(azimuthDeg, elevationDeg float64, interpolate bool, dst []Weight) []Weight {
	dst = dst[:0]

	az := WrapAzimuth(azimuthDeg)
	el := clamp(elevationDeg, -90, 90)

	a0, a1, fa := bracket(g.Azimuths, az, 360)
	e0, e1, fe := bracket(g.Elevations, el, 0)

	na := len(g.Azimuths)
	corners := [4]Weight{
		{e0*na + a0, (1 - fa) * (1 - fe)},
		{e0*na + a1, fa * (1 - fe)},
		{e1*na + a0, (1 - fa) * fe},
		{e1*na + a1, fa * fe},
	}

	if !interpolate {
		best := corners[0]
		for _, c := range corners[1:] {
			if c.Weight > best.Weight {
				best = c
			}
		}
		return append(dst, Weight{Index: best.Index, Weight: 1})
	}

	for _, c := range corners {
		if c.Weight <= 0 {
			continue
		}
		merged := false
		for i := range dst {
			if dst[i].Index == c.Index {
				dst[i].Weight += c.Weight
				merged = true
				break
			}
		}
		if !merged {
			dst = append(dst, c)
		}
	}
	return dst
}

// Delays returns the weighted onset delays for a set of weights.
func (g *Grid) Delays(weights []Weight) (left, right float64) {
	for _, w := range weights {
		n := &g.Nodes[w.Index]
		left += w.Weight * n.LeftDelay
		right += w.Weight * n.RightDelay
	}
	return left, right
}

// bracket locates v between two axis points. A positive wrap closes the
// axis from its last point back to the first.
func bracket(points []float64, v, wrap float64) (i0, i1 int, frac float64) {
	n := len(points)
	if n == 1 {
		return 0, 0, 0
	}

	i0 = sort.SearchFloat64s(points, v)
	if i0 < n && points[i0] == v {
		return i0, i0, 0
	}
	i0--

	switch {
	case i0 < 0:
		return 0, 0, 0
	case i0 == n-1:
		if wrap <= 0 {
			return n - 1, n - 1, 0
		}
		span := wrap - points[n-1] + points[0]
		return n - 1, 0, (v - points[n-1]) / span
	}

	i1 = i0 + 1
	return i0, i1, (v - points[i0]) / (points[i1] - points[i0])
}
