package spatializer

import (
	"fmt"
	"sync/atomic"

	"github.com/google/uuid"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/cwbudde/algo-binaural/binaural"
)

// voiceParams holds per-voice overrides. Bit i of set marks values[i] as
// overriding the engine value.
type voiceParams struct {
	values [NumParams]float64
	set    uint64
}

func (p *voiceParams) effective(id ParamID, engine *[NumParams]float64) float64 {
	if p != nil && p.set&(1<<uint(id)) != 0 {
		return p.values[id]
	}
	return engine[id]
}

// Voice renders one audio source. Parameter and pose setters may be called
// from any goroutine; Process must not be called concurrently for the same
// voice.
type Voice struct {
	state *State
	tag   uuid.UUID

	params   atomic.Pointer[voiceParams]
	pose     atomic.Pointer[binaural.Pose]
	released atomic.Bool

	// Owned by Process.
	source *binaural.Source
	mono   []float64
	left   []float64
	right  []float64
	inter  []float64
}

// DefaultPose places the source one meter in front of a listener at the
// origin.
func DefaultPose() binaural.Pose {
	return binaural.Pose{Listener: binaural.Identity(), Source: r3.Vec{X: 1}}
}

// NewVoice creates a voice bound to s. Per-voice parameters follow the
// engine values until overridden on the voice.
func (s *State) NewVoice() (*Voice, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, ErrClosed
	}

	v := &Voice{state: s, tag: uuid.New()}
	v.params.Store(&voiceParams{})
	pose := DefaultPose()
	v.pose.Store(&pose)

	s.voices[v] = struct{}{}
	s.debug("voice created", "voice", v.tag, "voices", len(s.voices))
	return v, nil
}

// Release detaches the voice from its State. It renders silence afterwards.
func (v *Voice) Release() error {
	if v.released.Swap(true) {
		return ErrClosed
	}
	sourceID := v.sourceID()

	s := v.state
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.voices != nil {
		delete(s.voices, v)
	}
	s.debug("voice released", "voice", v.tag, "source_id", sourceID)
	return nil
}

// Tag returns the voice's diagnostic identifier.
func (v *Voice) Tag() uuid.UUID { return v.tag }

// SetPose sets listener and source placement for the following blocks.
func (v *Voice) SetPose(p binaural.Pose) {
	v.pose.Store(&p)
}

// Pose returns the current placement.
func (v *Voice) Pose() binaural.Pose {
	return *v.pose.Load()
}

// SetParameter writes a per-voice parameter as an override on this voice.
// Other parameters are forwarded to the State.
func (v *Voice) SetParameter(id ParamID, value float64) error {
	spec, err := SpecOf(id)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidParameterWrite, err)
	}
	if !spec.PerVoice {
		return v.state.SetParameter(id, value)
	}
	if v.released.Load() {
		return ErrClosed
	}

	val, err := normalize(spec, value, v.state.cfg.maxResourceLength)
	if err != nil {
		return err
	}

	for {
		old := v.params.Load()
		next := *old
		next.values[id] = val
		next.set |= 1 << uint(id)
		if v.params.CompareAndSwap(old, &next) {
			break
		}
	}
	v.state.debug("voice parameter", "voice", v.tag, "param", spec.Name, "value", val)
	return nil
}

// ClearParameter drops a per-voice override so the engine value applies.
func (v *Voice) ClearParameter(id ParamID) {
	if !id.Valid() {
		return
	}
	for {
		old := v.params.Load()
		next := *old
		next.set &^= 1 << uint(id)
		if v.params.CompareAndSwap(old, &next) {
			return
		}
	}
}

// GetParameter returns the voice's effective value for per-voice
// parameters and the engine value otherwise.
func (v *Voice) GetParameter(id ParamID) (float64, error) {
	spec, err := SpecOf(id)
	if err != nil {
		return 0, err
	}
	if spec.PerVoice {
		if p := v.params.Load(); p.set&(1<<uint(id)) != 0 {
			return p.values[id], nil
		}
	}
	return v.state.GetParameter(id)
}

func (v *Voice) sourceID() float64 {
	val, err := v.GetParameter(ParamSourceID)
	if err != nil {
		return specs[ParamSourceID].Default
	}
	return val
}

// settings resolves the processing switches against a snapshot.
func (v *Voice) settings(snap *snapshot) binaural.Settings {
	p := v.params.Load()
	on := func(id ParamID) bool { return toggled(p.effective(id, &snap.params)) }
	return binaural.Settings{
		Mode:                snap.mode,
		Interpolation:       on(ParamHRTFInterpolation),
		FarLPF:              on(ParamModFarLPF),
		DistanceAttenuation: on(ParamModDistanceAttenuation),
		NearFieldILD:        on(ParamModNearFieldILD),
		HRTF:                on(ParamModHRTF),
	}
}
