package spatializer

import (
	"errors"
	"fmt"

	"github.com/cwbudde/algo-binaural/binaural"
	"github.com/cwbudde/algo-binaural/dsp/dynamics"
	"github.com/cwbudde/algo-binaural/hrtf"
)

// SetParameter validates and applies one parameter write. A load triggered
// by the write may fail with ErrResourceLoadFailed; the write itself is
// stored regardless.
func (s *State) SetParameter(id ParamID, value float64) error {
	spec, err := SpecOf(id)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidParameterWrite, err)
	}
	if spec.Class == ClassReadOnly {
		return fmt.Errorf("%w: %s is read-only", ErrInvalidParameterWrite, spec.Name)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}

	v, err := normalize(spec, value, s.cfg.maxResourceLength)
	if err != nil {
		return err
	}
	prev := s.params[id]
	s.params[id] = v

	err = s.apply(spec, prev, v)
	s.publish()
	return err
}

// GetParameter returns the stored value, or live state for the read-only
// parameters.
func (s *State) GetParameter(id ParamID) (float64, error) {
	if !id.Valid() {
		return 0, fmt.Errorf("%w: %d", ErrUnknownParameter, int(id))
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return 0, ErrClosed
	}

	switch id {
	case ParamLimiterGetCompression:
		return s.limiter.CompressionDB(), nil
	case ParamIsCoreReady:
		if s.readiness == Ready {
			return 1, nil
		}
		return 0, nil
	}
	return s.params[id], nil
}

// apply performs the engine side of a stored write. Callers hold s.mu.
func (s *State) apply(spec Spec, prev, v float64) error {
	switch spec.Class {
	case ClassResourceByte:
		r := resourceForByte(spec.ID)
		if s.assemblers[r].Append(byte(v)) {
			return s.completeAssembly(r)
		}
		return nil
	case ClassResourceLength:
		r := resourceForLength(spec.ID)
		if s.assemblers[r].SetLength(int(v)) {
			return s.completeAssembly(r)
		}
		return nil
	case ClassCoreReinit:
		if prev == v {
			return nil
		}
		return s.reinit(spec.ID, prev)
	}

	switch spec.ID {
	case ParamSpatializationMode:
		s.setMode(binaural.Mode(v))
	case ParamHRTFStep:
		if prev != v {
			return s.resampleHRTF(prev)
		}
	case ParamDebugLog:
		s.debugOn.Store(toggled(v))
		s.debug("debug log enabled", "cpu", binaural.CPUSummary(), "readiness", s.readiness, "mode", s.mode)
	case ParamHRTFInterpolation:
		s.updateListener(func(l *binaural.Listener) { l.Epoch++ })
	case ParamHeadRadius:
		s.updateListener(func(l *binaural.Listener) { l.HeadRadius = v })
	case ParamScaleFactor:
		s.updateListener(func(l *binaural.Listener) { l.ScaleFactor = v })
	case ParamCustomITD:
		s.updateListener(func(l *binaural.Listener) { l.CustomITD = toggled(v) })
	case ParamMagAnechoicAttenuation:
		s.updateListener(func(l *binaural.Listener) { l.AnechoicAttenuationDB = v })
	case ParamMagSoundSpeed:
		s.updateListener(func(l *binaural.Listener) { l.SoundSpeed = v })
	case ParamHADirectionalityExtendLeft:
		s.updateListener(func(l *binaural.Listener) { l.Directionality[binaural.Left].ExtendDB = v })
	case ParamHADirectionalityExtendRight:
		s.updateListener(func(l *binaural.Listener) { l.Directionality[binaural.Right].ExtendDB = v })
	case ParamHADirectionalityOnLeft:
		s.updateListener(func(l *binaural.Listener) { l.Directionality[binaural.Left].Enabled = toggled(v) })
	case ParamHADirectionalityOnRight:
		s.updateListener(func(l *binaural.Listener) { l.Directionality[binaural.Right].Enabled = toggled(v) })
	}
	return nil
}

func (s *State) updateListener(f func(*binaural.Listener)) {
	l := s.listener.Clone()
	f(l)
	s.listener = l
}

func resourceForByte(id ParamID) Resource {
	switch id {
	case ParamNearFieldILDFileString:
		return ResourceNearFieldILD
	case ParamHighPerformanceILDFileString:
		return ResourceHighPerformanceILD
	}
	return ResourceHRTF
}

func resourceForLength(id ParamID) Resource {
	switch id {
	case ParamNearFieldILDFileLength:
		return ResourceNearFieldILD
	case ParamHighPerformanceILDFileLength:
		return ResourceHighPerformanceILD
	}
	return ResourceHRTF
}

func (s *State) completeAssembly(r Resource) error {
	data := s.assemblers[r].Take()
	s.debug("resource assembled", "resource", r, "bytes", len(data))
	_, err := s.load(r, data)
	return err
}

// setMode switches mode, dropping partial uploads of tables the new mode
// does not use. Installed tables stay installed.
func (s *State) setMode(m binaural.Mode) {
	if m == s.mode {
		return
	}
	prev := s.mode
	s.mode = m
	for r := ResourceNearFieldILD; r < numResources; r++ {
		if !r.neededBy(m) && s.assemblers[r].InProgress() {
			s.debug("discarding partial upload", "resource", r, "bytes", s.assemblers[r].Count())
			s.assemblers[r].Reset()
		}
	}
	s.debug("mode changed", "from", prev, "to", m)
	s.updateReadiness()
}

// resampleHRTF rebuilds the installed HRTF on the current step from its
// retained bytes. On failure the previous grid and step stay.
func (s *State) resampleHRTF(prevStep float64) error {
	if !s.loaded[ResourceHRTF] {
		return nil
	}
	tab, err := hrtf.DecodeHRTF(s.blobs[ResourceHRTF])
	if err != nil {
		s.params[ParamHRTFStep] = prevStep
		return s.loadFailed(ResourceHRTF, err)
	}
	h, err := s.core.PrepareHRTF(tab, int(s.params[ParamHRTFStep]))
	if err != nil {
		s.params[ParamHRTFStep] = prevStep
		return s.loadFailed(ResourceHRTF, err)
	}
	s.updateListener(func(l *binaural.Listener) {
		l.HRTF = h
		l.Epoch++
	})
	s.debug("hrtf resampled", "step", h.Grid.Step, "nodes", h.Grid.Len())
	return nil
}

// reinit replaces the core after a sample rate or block size change. All
// tables are dropped and, if configured, every retained table is
// reinstalled whatever the mode, so later mode switches need no upload.
// If no new core can be built, id goes back to prev and nothing changes.
func (s *State) reinit(id ParamID, prev float64) error {
	sr := int(s.params[ParamSampleRateCore])
	bs := int(s.params[ParamBufferSizeCore])

	core, err := binaural.NewCore(sr, bs)
	if err != nil {
		s.params[id] = prev
		return fmt.Errorf("%w: %w", ErrInvalidParameterWrite, err)
	}
	if sr != s.core.SampleRate() {
		limiter, err := dynamics.NewStereoLimiter(float64(sr), s.cfg.limiterThresholdDB, s.cfg.limiterReleaseMs)
		if err != nil {
			s.params[id] = prev
			return fmt.Errorf("%w: %w", ErrInvalidParameterWrite, err)
		}
		s.limiter = limiter
	}

	s.core = core
	s.listener = s.listener.WithoutTables()
	s.loaded = [numResources]bool{}
	s.reinitPending = true
	s.updateReadiness()
	s.publish()
	s.debug("core reinitialised", "sample_rate", sr, "block_size", bs)

	if !s.cfg.reloadOnReinit {
		return nil
	}

	var errs []error
	for r := ResourceHRTF; r < numResources; r++ {
		blob := s.blobs[r]
		if blob == nil {
			continue
		}
		if err := s.install(r, blob); err != nil {
			errs = append(errs, s.loadFailed(r, err))
		}
	}
	return errors.Join(errs...)
}
