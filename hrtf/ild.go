package hrtf

import (
	"fmt"
	"math"
	"sort"

	"github.com/cwbudde/algo-binaural/dsp/filter/biquad"
)

const coefficientsPerSection = 5

// ILDEntry holds the per-ear biquad cascades for one distance/azimuth pair.
type ILDEntry struct {
	Distance float64
	Azimuth  float64
	Left     []biquad.Coefficients
	Right    []biquad.Coefficients
}

// ILDTable is a decoded interaural level difference table. Near-field
// tables cover several distances; high-performance tables usually carry a
// single reference distance. Entries are sorted by distance, then azimuth.
type ILDTable struct {
	Kind       Kind
	SampleRate int
	Sections   int
	Entries    []ILDEntry

	distances []float64
	rows      [][]int
}

// NewILDTable validates and indexes entries.
func NewILDTable(kind Kind, sampleRate, sections int, entries []ILDEntry) (*ILDTable, error) {
	if kind != KindNearFieldILD && kind != KindHighPerformanceILD {
		return nil, fmt.Errorf("%w: %s is not an ild kind", ErrKindMismatch, kind)
	}
	if sampleRate <= 0 {
		return nil, fmt.Errorf("%w: sample rate %d", ErrCorruptedData, sampleRate)
	}
	if sections <= 0 || sections > MaxSections {
		return nil, fmt.Errorf("%w: %d sections per ear", ErrCorruptedData, sections)
	}
	if len(entries) == 0 || len(entries) > MaxEntries {
		return nil, fmt.Errorf("%w: %d entries", ErrCorruptedData, len(entries))
	}
	for i, e := range entries {
		if len(e.Left) != sections || len(e.Right) != sections {
			return nil, fmt.Errorf("%w: entry %d has %d/%d sections, want %d",
				ErrCorruptedData, i, len(e.Left), len(e.Right), sections)
		}
		if e.Distance <= 0 {
			return nil, fmt.Errorf("%w: entry %d has distance %v", ErrCorruptedData, i, e.Distance)
		}
	}

	t := &ILDTable{
		Kind:       kind,
		SampleRate: sampleRate,
		Sections:   sections,
		Entries:    append([]ILDEntry(nil), entries...),
	}
	for i := range t.Entries {
		t.Entries[i].Azimuth = WrapAzimuth(t.Entries[i].Azimuth)
	}
	sort.SliceStable(t.Entries, func(a, b int) bool {
		ea, eb := t.Entries[a], t.Entries[b]
		if ea.Distance != eb.Distance {
			return ea.Distance < eb.Distance
		}
		return ea.Azimuth < eb.Azimuth
	})

	for i, e := range t.Entries {
		if n := len(t.distances); n == 0 || t.distances[n-1] != e.Distance {
			t.distances = append(t.distances, e.Distance)
			t.rows = append(t.rows, nil)
		}
		r := len(t.rows) - 1
		t.rows[r] = append(t.rows[r], i)
	}

	return t, nil
}

// Lookup returns the entry nearest to the given distance (meters) and
// azimuth (degrees). Azimuth distance wraps around the circle.
func (t *ILDTable) Lookup(distance, azimuthDeg float64) *ILDEntry {
	row := nearestIndex(t.distances, distance)
	az := WrapAzimuth(azimuthDeg)

	best, bestDiff := -1, math.Inf(1)
	for _, idx := range t.rows[row] {
		d := math.Abs(t.Entries[idx].Azimuth - az)
		d = math.Min(d, 360-d)
		if d < bestDiff {
			best, bestDiff = idx, d
		}
	}
	return &t.Entries[best]
}

// Distances returns the distinct distances covered by the table.
func (t *ILDTable) Distances() []float64 {
	return append([]float64(nil), t.distances...)
}

func nearestIndex(sorted []float64, v float64) int {
	i := sort.SearchFloat64s(sorted, v)
	switch {
	case i == 0:
		return 0
	case i == len(sorted):
		return len(sorted) - 1
	case v-sorted[i-1] <= sorted[i]-v:
		return i - 1
	}
	return i
}

// DecodeILD parses an ILD table of either kind.
func DecodeILD(data []byte) (*ILDTable, error) {
	h, err := ReadHeader(data)
	if err != nil {
		return nil, err
	}
	if err := expectKind(h, KindNearFieldILD, KindHighPerformanceILD); err != nil {
		return nil, err
	}
	if h.Length <= 0 || h.Length > MaxSections {
		return nil, fmt.Errorf("%w: %d sections per ear", ErrCorruptedData, h.Length)
	}
	if err := checkPayload(data, h, 2+2*h.Length*coefficientsPerSection); err != nil {
		return nil, err
	}

	entries := make([]ILDEntry, h.Count)
	r := reader{data: data, off: headerSize}
	for i := range entries {
		e := &entries[i]
		e.Distance = r.float()
		e.Azimuth = r.float()
		e.Left = readSections(&r, h.Length)
		e.Right = readSections(&r, h.Length)
	}
	if r.err != nil {
		return nil, r.err
	}

	return NewILDTable(h.Kind, h.SampleRate, h.Length, entries)
}

// EncodeILD serializes t.
func EncodeILD(t *ILDTable) ([]byte, error) {
	if _, err := NewILDTable(t.Kind, t.SampleRate, t.Sections, t.Entries); err != nil {
		return nil, err
	}

	size := headerSize + len(t.Entries)*(2+2*t.Sections*coefficientsPerSection)*4
	out := make([]byte, 0, size)
	out = appendHeader(out, Header{
		Kind:       t.Kind,
		SampleRate: t.SampleRate,
		Length:     t.Sections,
		Count:      len(t.Entries),
	})
	for _, e := range t.Entries {
		out = appendFloat(out, e.Distance)
		out = appendFloat(out, e.Azimuth)
		out = appendSections(out, e.Left)
		out = appendSections(out, e.Right)
	}
	return out, nil
}

func readSections(r *reader, n int) []biquad.Coefficients {
	out := make([]biquad.Coefficients, n)
	for i := range out {
		out[i] = biquad.Coefficients{
			B0: r.float(),
			B1: r.float(),
			B2: r.float(),
			A1: r.float(),
			A2: r.float(),
		}
	}
	return out
}

func appendSections(dst []byte, cs []biquad.Coefficients) []byte {
	for _, c := range cs {
		dst = appendFloat(dst, c.B0)
		dst = appendFloat(dst, c.B1)
		dst = appendFloat(dst, c.B2)
		dst = appendFloat(dst, c.A1)
		dst = appendFloat(dst, c.A2)
	}
	return dst
}
