package spatializer

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/cwbudde/algo-binaural/binaural"
	"github.com/cwbudde/algo-binaural/dsp/dynamics"
)

// Readiness gates spatialized rendering.
type Readiness int

const (
	// NotReady: no HRTF installed.
	NotReady Readiness = iota
	// PartiallyReady: HRTF installed, a table the mode needs is missing.
	PartiallyReady
	// Ready: every table the mode needs is installed.
	Ready
)

func (r Readiness) String() string {
	switch r {
	case NotReady:
		return "not-ready"
	case PartiallyReady:
		return "partially-ready"
	case Ready:
		return "ready"
	}
	return fmt.Sprintf("Readiness(%d)", int(r))
}

// snapshot is everything the render path needs, published after every
// mutation. It is never modified once stored.
type snapshot struct {
	core      *binaural.Core
	listener  *binaural.Listener
	limiter   *dynamics.StereoLimiter
	limiterOn bool
	mode      binaural.Mode
	readiness Readiness
	params    [NumParams]float64
}

// State is the shared engine of one effect instance.
type State struct {
	mu  sync.Mutex
	cfg config

	core      *binaural.Core
	listener  *binaural.Listener
	limiter   *dynamics.StereoLimiter
	mode      binaural.Mode
	readiness Readiness
	params    [NumParams]float64

	loaded        [numResources]bool
	blobs         [numResources][]byte
	assemblers    [numResources]*Assembler
	reinitPending bool

	voices map[*Voice]struct{}
	closed bool

	debugOn atomic.Bool
	snap    atomic.Pointer[snapshot]
}

// New creates the engine for the given processing format.
func New(sampleRate, blockSize int, opts ...Option) (*State, error) {
	cfg := defaultConfig()
	for _, opt := range opts {
		if err := opt(&cfg); err != nil {
			return nil, err
		}
	}

	core, err := binaural.NewCore(sampleRate, blockSize)
	if err != nil {
		return nil, fmt.Errorf("spatializer: %w", err)
	}
	limiter, err := dynamics.NewStereoLimiter(float64(sampleRate), cfg.limiterThresholdDB, cfg.limiterReleaseMs)
	if err != nil {
		return nil, fmt.Errorf("spatializer: %w", err)
	}

	s := &State{
		cfg:      cfg,
		core:     core,
		listener: binaural.DefaultListener(),
		limiter:  limiter,
		mode:     binaural.HighQuality,
		voices:   make(map[*Voice]struct{}),
	}
	for i, sp := range specs {
		s.params[i] = sp.Default
	}
	s.params[ParamBufferSizeCore] = float64(blockSize)
	s.params[ParamSampleRateCore] = float64(sampleRate)
	for i := range s.assemblers {
		s.assemblers[i] = NewAssembler(cfg.maxResourceLength)
	}

	s.mu.Lock()
	s.updateReadiness()
	s.publish()
	s.mu.Unlock()

	return s, nil
}

// Close tears the engine down. Voices render silence afterwards.
func (s *State) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	s.closed = true
	for v := range s.voices {
		v.released.Store(true)
	}
	s.voices = nil
	s.snap.Store(nil)
	s.debug("engine closed")
	return nil
}

// Readiness returns the current readiness.
func (s *State) Readiness() Readiness {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.readiness
}

// Mode returns the spatialization mode.
func (s *State) Mode() binaural.Mode {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.mode
}

// Loaded reports whether table r is installed.
func (s *State) Loaded(r Resource) bool {
	if !r.valid() {
		return false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loaded[r]
}

// Core returns the current processing core.
func (s *State) Core() *binaural.Core {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.core
}

// Parameters returns a copy of the raw parameter vector.
func (s *State) Parameters() [NumParams]float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.params
}

// CheckReady returns nil when spatialized rendering is possible, otherwise
// an error wrapping ErrEngineNotReady, and also ErrReinitRequired when a
// core change dropped the tables.
func (s *State) CheckReady() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch {
	case s.closed:
		return ErrClosed
	case s.readiness == Ready:
		return nil
	case s.reinitPending:
		return fmt.Errorf("%w: %w", ErrEngineNotReady, ErrReinitRequired)
	}
	return fmt.Errorf("%w: %s in %s mode", ErrEngineNotReady, s.readiness, s.mode)
}

// updateReadiness applies the readiness rule. Callers hold s.mu.
func (s *State) updateReadiness() {
	prev := s.readiness
	switch {
	case !s.loaded[ResourceHRTF]:
		s.readiness = NotReady
	case s.mode == binaural.HighQuality && !s.loaded[ResourceNearFieldILD],
		s.mode == binaural.HighPerformance && !s.loaded[ResourceHighPerformanceILD]:
		s.readiness = PartiallyReady
	default:
		s.readiness = Ready
	}
	if prev != s.readiness {
		s.debug("readiness changed", "from", prev, "to", s.readiness)
	}
}

// publish stores a fresh snapshot for the render path. Callers hold s.mu.
func (s *State) publish() {
	if s.closed {
		return
	}
	s.snap.Store(&snapshot{
		core:      s.core,
		listener:  s.listener,
		limiter:   s.limiter,
		limiterOn: toggled(s.params[ParamLimiterSetOn]),
		mode:      s.mode,
		readiness: s.readiness,
		params:    s.params,
	})
}

func (s *State) debug(msg string, args ...any) {
	if s.debugOn.Load() {
		s.cfg.logger.Debug(msg, args...)
	}
}
