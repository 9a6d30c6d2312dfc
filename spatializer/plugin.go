package spatializer

import (
	"errors"
	"sync"
)

// Plugin is the host-facing lifecycle of one effect instance. The State
// is created with the first voice, using that voice's format.
type Plugin struct {
	mu    sync.Mutex
	opts  []Option
	state *State
}

// NewPlugin returns a plugin that builds its State with opts.
func NewPlugin(opts ...Option) *Plugin {
	return &Plugin{opts: opts}
}

// CreateVoice returns a new voice, creating the State on first use. Later
// calls ignore sampleRate and blockSize; the core format changes only
// through the core parameters.
func (p *Plugin) CreateVoice(sampleRate, blockSize int) (*Voice, Status) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.state == nil {
		s, err := New(sampleRate, blockSize, p.opts...)
		if err != nil {
			return nil, StatusFailed
		}
		p.state = s
	}

	v, err := p.state.NewVoice()
	if err != nil {
		return nil, StatusFailed
	}
	return v, StatusOK
}

// ReleaseVoice detaches v. The State stays alive for the remaining and
// future voices.
func (p *Plugin) ReleaseVoice(v *Voice) Status {
	if v == nil {
		return StatusFailed
	}
	if err := v.Release(); err != nil {
		return StatusFailed
	}
	return StatusOK
}

// SetFloat writes a global parameter. It fails before the first voice
// exists.
func (p *Plugin) SetFloat(id ParamID, value float64) Status {
	s := p.State()
	if s == nil {
		return StatusFailed
	}
	err := s.SetParameter(id, value)
	switch {
	case err == nil:
		return StatusOK
	case errors.Is(err, ErrResourceLoadFailed):
		// The write was stored; only the triggered load failed.
		return StatusOK
	}
	return StatusFailed
}

// GetFloat reads a global parameter. ok is false before the first voice
// exists or for an unknown ID.
func (p *Plugin) GetFloat(id ParamID) (value float64, ok bool) {
	s := p.State()
	if s == nil {
		return 0, false
	}
	v, err := s.GetParameter(id)
	if err != nil {
		return 0, false
	}
	return v, true
}

// IsCreated reports whether the State exists.
func (p *Plugin) IsCreated() bool {
	return p.State() != nil
}

// State returns the engine, nil before the first voice.
func (p *Plugin) State() *State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

// Close tears down the State. A closed plugin creates a fresh State on the
// next CreateVoice.
func (p *Plugin) Close() Status {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.state == nil {
		return StatusOK
	}
	err := p.state.Close()
	p.state = nil
	if err != nil {
		return StatusFailed
	}
	return StatusOK
}
