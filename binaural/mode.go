package binaural

import "fmt"

// Mode selects the rendering quality.
type Mode int

const (
	HighQuality Mode = iota
	HighPerformance
	None
)

// Valid reports whether m is a known mode.
func (m Mode) Valid() bool {
	return m >= HighQuality && m <= None
}

func (m Mode) String() string {
	switch m {
	case HighQuality:
		return "high-quality"
	case HighPerformance:
		return "high-performance"
	case None:
		return "none"
	}
	return fmt.Sprintf("Mode(%d)", int(m))
}
