package hrtf

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"math"
	"strings"
)

// Magic prefixes every table.
const Magic = "3DTI"

// Version is the only table version understood.
const Version = 1

const (
	headerSize = 24

	// MaxIRLength bounds the impulse response length of an HRTF table.
	MaxIRLength = 1 << 14
	// MaxSections bounds the biquad sections per ear of an ILD table.
	MaxSections = 8
	// MaxEntries bounds the number of entries of any table.
	MaxEntries = 1 << 16
)

// Kind identifies the table type.
type Kind string

const (
	KindHRTF               Kind = "HRTF"
	KindNearFieldILD       Kind = "ILDN"
	KindHighPerformanceILD Kind = "ILDP"
)

// Valid reports whether k is a known kind.
func (k Kind) Valid() bool {
	switch k {
	case KindHRTF, KindNearFieldILD, KindHighPerformanceILD:
		return true
	}
	return false
}

func (k Kind) String() string {
	switch k {
	case KindHRTF:
		return "hrtf"
	case KindNearFieldILD:
		return "near-field ild"
	case KindHighPerformanceILD:
		return "high-performance ild"
	}
	return fmt.Sprintf("kind(%q)", string(k))
}

// FileName returns the conventional file name of a table of kind k built
// for sampleRate, e.g. "hrtf_48000.3dti".
func FileName(k Kind, sampleRate int) string {
	var base string
	switch k {
	case KindHRTF:
		base = "hrtf"
	case KindNearFieldILD:
		base = "ild_nearfield"
	case KindHighPerformanceILD:
		base = "ild_highperformance"
	default:
		base = strings.ToLower(string(k))
	}
	return fmt.Sprintf("%s_%d.3dti", base, sampleRate)
}

// Header is the common table header.
type Header struct {
	Kind       Kind
	Version    uint16
	SampleRate int
	Length     int
	Count      int
}

// HasMagic reports whether data starts with the table magic.
func HasMagic(data []byte) bool {
	return bytes.HasPrefix(data, []byte(Magic))
}

// ReadHeader parses and validates the header of data.
func ReadHeader(data []byte) (Header, error) {
	if !HasMagic(data) {
		return Header{}, ErrInvalidMagic
	}
	if len(data) < headerSize {
		return Header{}, fmt.Errorf("%w: header truncated at %d bytes", ErrCorruptedData, len(data))
	}

	h := Header{
		Kind:       Kind(data[4:8]),
		Version:    binary.LittleEndian.Uint16(data[8:10]),
		SampleRate: int(binary.LittleEndian.Uint32(data[12:16])),
		Length:     int(binary.LittleEndian.Uint32(data[16:20])),
		Count:      int(binary.LittleEndian.Uint32(data[20:24])),
	}

	if h.Version != Version {
		return Header{}, fmt.Errorf("%w: %d", ErrUnsupportedVersion, h.Version)
	}
	if !h.Kind.Valid() {
		return Header{}, fmt.Errorf("%w: unknown kind %q", ErrKindMismatch, string(h.Kind))
	}
	if h.SampleRate <= 0 {
		return Header{}, fmt.Errorf("%w: sample rate %d", ErrCorruptedData, h.SampleRate)
	}
	if h.Count <= 0 || h.Count > MaxEntries {
		return Header{}, fmt.Errorf("%w: entry count %d", ErrCorruptedData, h.Count)
	}

	return h, nil
}

func appendHeader(dst []byte, h Header) []byte {
	dst = append(dst, Magic...)
	dst = append(dst, string(h.Kind)...)
	dst = binary.LittleEndian.AppendUint16(dst, Version)
	dst = binary.LittleEndian.AppendUint16(dst, 0)
	dst = binary.LittleEndian.AppendUint32(dst, uint32(h.SampleRate))
	dst = binary.LittleEndian.AppendUint32(dst, uint32(h.Length))
	dst = binary.LittleEndian.AppendUint32(dst, uint32(h.Count))
	return dst
}

func appendFloat(dst []byte, v float64) []byte {
	return binary.LittleEndian.AppendUint32(dst, math.Float32bits(float32(v)))
}

// reader walks the float32 payload after the header.
type reader struct {
	data []byte
	off  int
	err  error
}

func (r *reader) float() float64 {
	if r.err != nil {
		return 0
	}
	if r.off+4 > len(r.data) {
		r.err = fmt.Errorf("%w: payload truncated", ErrCorruptedData)
		return 0
	}
	v := float64(math.Float32frombits(binary.LittleEndian.Uint32(r.data[r.off:])))
	r.off += 4
	if math.IsNaN(v) || math.IsInf(v, 0) {
		r.err = fmt.Errorf("%w: non-finite value at offset %d", ErrCorruptedData, r.off-4)
		return 0
	}
	return v
}

func (r *reader) floats(dst []float64) {
	for i := range dst {
		dst[i] = r.float()
	}
}

func expectKind(h Header, kinds ...Kind) error {
	for _, k := range kinds {
		if h.Kind == k {
			return nil
		}
	}
	return fmt.Errorf("%w: got %s", ErrKindMismatch, h.Kind)
}

func checkPayload(data []byte, h Header, entryFloats int) error {
	want := headerSize + h.Count*entryFloats*4
	if len(data) != want {
		return fmt.Errorf("%w: payload is %d bytes, want %d", ErrCorruptedData, len(data), want)
	}
	return nil
}
