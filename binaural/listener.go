package binaural

import "github.com/cwbudde/algo-binaural/hrtf"

// Ear indexes per-ear settings.
type Ear int

const (
	Left Ear = iota
	Right
)

// Directionality is the hearing-aid directional attenuation of one ear.
type Directionality struct {
	Enabled  bool
	ExtendDB float64 // attenuation straight behind, in dB
}

// Listener carries everything shared by all sources: head model, global
// acoustic settings and the installed tables. A published Listener is never
// modified; use Clone and replace it.
type Listener struct {
	HeadRadius            float64 // meters
	ScaleFactor           float64 // meters per host unit
	AnechoicAttenuationDB float64 // dB per doubling of distance
	SoundSpeed            float64 // m/s
	CustomITD             bool
	Directionality        [2]Directionality

	HRTF               *HRTF
	NearFieldILD       *hrtf.ILDTable
	HighPerformanceILD *hrtf.ILDTable

	// Epoch changes whenever cached per-source filters must be rebuilt.
	Epoch uint64
}

// DefaultListener returns the listener used before any parameter is set.
func DefaultListener() *Listener {
	return &Listener{
		HeadRadius:            0.0875,
		ScaleFactor:           1,
		AnechoicAttenuationDB: -1,
		SoundSpeed:            343,
		Directionality: [2]Directionality{
			{ExtendDB: 15},
			{ExtendDB: 15},
		},
	}
}

// Clone returns a shallow copy. Tables are shared; they are immutable.
func (l *Listener) Clone() *Listener {
	c := *l
	return &c
}

// WithoutTables returns a copy with all tables removed.
func (l *Listener) WithoutTables() *Listener {
	c := l.Clone()
	c.HRTF = nil
	c.NearFieldILD = nil
	c.HighPerformanceILD = nil
	c.Epoch++
	return c
}
