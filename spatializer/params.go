package spatializer

import (
	"fmt"
	"math"

	"github.com/cwbudde/algo-binaural/binaural"
)

// ParamID indexes the parameter vector.
type ParamID int

const (
	ParamHRTFFileString ParamID = iota
	ParamHeadRadius
	ParamScaleFactor
	ParamSourceID
	ParamCustomITD
	ParamHRTFInterpolation
	ParamModFarLPF
	ParamModDistanceAttenuation
	ParamModNearFieldILD
	ParamModHRTF
	ParamMagAnechoicAttenuation
	ParamMagSoundSpeed
	ParamNearFieldILDFileString
	ParamDebugLog
	ParamHADirectionalityExtendLeft
	ParamHADirectionalityExtendRight
	ParamHADirectionalityOnLeft
	ParamHADirectionalityOnRight
	ParamLimiterSetOn
	ParamLimiterGetCompression
	ParamIsCoreReady
	ParamHRTFStep
	ParamHighPerformanceILDFileString
	ParamSpatializationMode
	ParamBufferSize
	ParamSampleRate
	ParamBufferSizeCore
	ParamSampleRateCore
	ParamHRTFFileLength
	ParamNearFieldILDFileLength
	ParamHighPerformanceILDFileLength

	// NumParams is the size of the parameter vector.
	NumParams = int(iota)
)

// Valid reports whether id is inside the enumeration.
func (id ParamID) Valid() bool {
	return id >= 0 && int(id) < NumParams
}

func (id ParamID) String() string {
	if !id.Valid() {
		return fmt.Sprintf("ParamID(%d)", int(id))
	}
	return specs[id].Name
}

// Class groups parameters by how a write is applied.
type Class int

const (
	ClassScalar Class = iota
	ClassToggle
	ClassResourceByte
	ClassResourceLength
	ClassMode
	ClassCoreReinit
	ClassReadOnly
)

func (c Class) integer() bool {
	switch c {
	case ClassResourceByte, ClassResourceLength, ClassMode, ClassCoreReinit:
		return true
	}
	return false
}

// Spec describes one parameter.
type Spec struct {
	ID       ParamID
	Name     string
	Class    Class
	Min      float64
	Max      float64
	Default  float64
	PerVoice bool
}

// DefaultMaxResourceLength caps an assembled resource, in bytes.
const DefaultMaxResourceLength = 1 << 26

var specs = [NumParams]Spec{
	{ParamHRTFFileString, "HRTFFileString", ClassResourceByte, 0, 255, 0, false},
	{ParamHeadRadius, "HeadRadius", ClassScalar, 0, 1e20, 0.0875, false},
	{ParamScaleFactor, "ScaleFactor", ClassScalar, 1e-20, 1e20, 1, false},
	{ParamSourceID, "SourceID", ClassScalar, -1, 1e9, -1, true},
	{ParamCustomITD, "CustomITD", ClassToggle, 0, 1, 0, false},
	{ParamHRTFInterpolation, "HRTFInterpolation", ClassToggle, 0, 1, 1, true},
	{ParamModFarLPF, "ModFarLPF", ClassToggle, 0, 1, 1, true},
	{ParamModDistanceAttenuation, "ModDistanceAttenuation", ClassToggle, 0, 1, 1, true},
	{ParamModNearFieldILD, "ModNearFieldILD", ClassToggle, 0, 1, 1, true},
	{ParamModHRTF, "ModHRTF", ClassToggle, 0, 1, 1, true},
	{ParamMagAnechoicAttenuation, "MagAnechoicAttenuation", ClassScalar, -30, 0, -1, false},
	{ParamMagSoundSpeed, "MagSoundSpeed", ClassScalar, 10, 1000, 343, false},
	{ParamNearFieldILDFileString, "NearFieldILDFileString", ClassResourceByte, 0, 255, 0, false},
	{ParamDebugLog, "DebugLog", ClassToggle, 0, 1, 0, false},
	{ParamHADirectionalityExtendLeft, "HADirectionalityExtendLeft", ClassScalar, 0, 30, 15, false},
	{ParamHADirectionalityExtendRight, "HADirectionalityExtendRight", ClassScalar, 0, 30, 15, false},
	{ParamHADirectionalityOnLeft, "HADirectionalityOnLeft", ClassToggle, 0, 1, 0, false},
	{ParamHADirectionalityOnRight, "HADirectionalityOnRight", ClassToggle, 0, 1, 0, false},
	{ParamLimiterSetOn, "LimiterSetOn", ClassToggle, 0, 1, 1, false},
	{ParamLimiterGetCompression, "LimiterGetCompression", ClassReadOnly, 0, 1e3, 0, false},
	{ParamIsCoreReady, "IsCoreReady", ClassReadOnly, 0, 1, 0, false},
	{ParamHRTFStep, "HRTFStep", ClassMode, 1, 90, 15, false},
	{ParamHighPerformanceILDFileString, "HighPerformanceILDFileString", ClassResourceByte, 0, 255, 0, false},
	{ParamSpatializationMode, "SpatializationMode", ClassMode, 0, 2, 0, false},
	{ParamBufferSize, "BufferSize", ClassScalar, 0, 1e6, 0, false},
	{ParamSampleRate, "SampleRate", ClassScalar, 0, 1e6, 0, false},
	{ParamBufferSizeCore, "BufferSizeCore", ClassCoreReinit, binaural.MinBlockSize, binaural.MaxBlockSize, 0, false},
	{ParamSampleRateCore, "SampleRateCore", ClassCoreReinit, binaural.MinSampleRate, binaural.MaxSampleRate, 0, false},
	{ParamHRTFFileLength, "HRTFFileLength", ClassResourceLength, 0, DefaultMaxResourceLength, 0, false},
	{ParamNearFieldILDFileLength, "NearFieldILDFileLength", ClassResourceLength, 0, DefaultMaxResourceLength, 0, false},
	{ParamHighPerformanceILDFileLength, "HighPerformanceILDFileLength", ClassResourceLength, 0, DefaultMaxResourceLength, 0, false},
}

// Specs returns the parameter table. The defaults of the core parameters
// are 0 here; a State reports its creation values instead.
func Specs() []Spec {
	out := make([]Spec, NumParams)
	copy(out, specs[:])
	return out
}

// SpecOf returns the description of id.
func SpecOf(id ParamID) (Spec, error) {
	if !id.Valid() {
		return Spec{}, fmt.Errorf("%w: %d", ErrUnknownParameter, int(id))
	}
	return specs[id], nil
}

// normalize validates and clamps a write to spec, returning the value to
// store. Resource lengths above maxLen are rejected rather than clamped.
func normalize(spec Spec, value float64, maxLen int) (float64, error) {
	if math.IsNaN(value) || math.IsInf(value, 0) {
		return 0, fmt.Errorf("%w: %s = %v", ErrInvalidParameterWrite, spec.Name, value)
	}

	hi := spec.Max
	if spec.Class == ClassResourceLength {
		hi = float64(maxLen)
		if math.Round(value) > hi {
			return 0, fmt.Errorf("%w: %s = %v exceeds %d bytes", ErrInvalidParameterWrite, spec.Name, value, maxLen)
		}
	}
	value = math.Max(spec.Min, math.Min(hi, value))

	switch {
	case spec.Class == ClassToggle:
		if value != 0 {
			return 1, nil
		}
		return 0, nil
	case spec.Class.integer():
		value = math.Round(value)
	}

	if spec.ID == ParamSpatializationMode && !binaural.Mode(value).Valid() {
		return 0, fmt.Errorf("%w: %s = %v", ErrInvalidParameterWrite, spec.Name, value)
	}
	return value, nil
}

func toggled(v float64) bool { return v != 0 }
