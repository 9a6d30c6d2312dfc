package spatializer

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/cwbudde/algo-binaural/binaural"
	"github.com/cwbudde/algo-binaural/hrtf"
)

// Resource identifies one of the three loadable tables.
type Resource int

const (
	ResourceHRTF Resource = iota
	ResourceNearFieldILD
	ResourceHighPerformanceILD

	numResources = 3
)

func (r Resource) String() string {
	switch r {
	case ResourceHRTF:
		return "hrtf"
	case ResourceNearFieldILD:
		return "near-field-ild"
	case ResourceHighPerformanceILD:
		return "high-performance-ild"
	}
	return fmt.Sprintf("Resource(%d)", int(r))
}

func (r Resource) valid() bool {
	return r >= ResourceHRTF && r < numResources
}

// neededBy reports whether mode requires r before the engine is ready.
func (r Resource) neededBy(mode binaural.Mode) bool {
	switch r {
	case ResourceHRTF:
		return true
	case ResourceNearFieldILD:
		return mode == binaural.HighQuality
	case ResourceHighPerformanceILD:
		return mode == binaural.HighPerformance
	}
	return false
}

// LoadResult tells whether a load installed a table.
type LoadResult int

const (
	LoadInstalled LoadResult = iota
	LoadSkipped
	LoadFailed
)

func (r LoadResult) String() string {
	switch r {
	case LoadInstalled:
		return "installed"
	case LoadSkipped:
		return "skipped"
	}
	return "failed"
}

// Resolver turns a path descriptor into table bytes.
type Resolver interface {
	Resolve(descriptor []byte) ([]byte, error)
}

// ResolverFunc adapts a function to Resolver.
type ResolverFunc func(descriptor []byte) ([]byte, error)

// Resolve calls f.
func (f ResolverFunc) Resolve(descriptor []byte) ([]byte, error) { return f(descriptor) }

// FileResolver reads descriptors as UTF-8 file paths, relative to Root
// when set. Trailing NUL bytes are ignored.
type FileResolver struct {
	Root string
}

// Resolve reads the file named by descriptor.
func (r FileResolver) Resolve(descriptor []byte) ([]byte, error) {
	path := strings.TrimRight(string(descriptor), "\x00")
	if path == "" {
		return nil, errors.New("empty path")
	}
	if !utf8.ValidString(path) {
		return nil, errors.New("path is not valid UTF-8")
	}
	if r.Root != "" && !filepath.IsAbs(path) {
		path = filepath.Join(r.Root, path)
	}
	return os.ReadFile(path)
}

// load resolves and installs a resource. Callers hold s.mu.
func (s *State) load(r Resource, descriptor []byte) (LoadResult, error) {
	if !r.neededBy(s.mode) {
		s.debug("load skipped", "resource", r, "mode", s.mode)
		return LoadSkipped, nil
	}

	data := descriptor
	if !hrtf.HasMagic(descriptor) {
		var err error
		if data, err = s.cfg.resolver.Resolve(descriptor); err != nil {
			return LoadFailed, s.loadFailed(r, err)
		}
	}

	if err := s.install(r, data); err != nil {
		return LoadFailed, s.loadFailed(r, err)
	}
	return LoadInstalled, nil
}

// install decodes data, prepares it against the current core and swaps
// it into a new listener. On error nothing changes.
func (s *State) install(r Resource, data []byte) error {
	l := s.listener.Clone()

	switch r {
	case ResourceHRTF:
		tab, err := hrtf.DecodeHRTF(data)
		if err != nil {
			return err
		}
		h, err := s.core.PrepareHRTF(tab, int(s.params[ParamHRTFStep]))
		if err != nil {
			return err
		}
		l.HRTF = h
	case ResourceNearFieldILD, ResourceHighPerformanceILD:
		tab, err := hrtf.DecodeILD(data)
		if err != nil {
			return err
		}
		want := hrtf.KindNearFieldILD
		if r == ResourceHighPerformanceILD {
			want = hrtf.KindHighPerformanceILD
		}
		if tab.Kind != want {
			return fmt.Errorf("%w: got %s, want %s", hrtf.ErrKindMismatch, tab.Kind, want)
		}
		if err := s.core.CheckILD(tab); err != nil {
			return err
		}
		if r == ResourceNearFieldILD {
			l.NearFieldILD = tab
		} else {
			l.HighPerformanceILD = tab
		}
	default:
		return fmt.Errorf("unknown resource %d", int(r))
	}

	l.Epoch++
	s.listener = l
	s.loaded[r] = true
	s.blobs[r] = append([]byte(nil), data...)
	if r == ResourceHRTF {
		s.reinitPending = false
	}
	s.updateReadiness()
	s.publish()
	s.debug("resource installed", "resource", r, "bytes", len(data), "readiness", s.readiness)
	return nil
}

func (s *State) loadFailed(r Resource, err error) error {
	s.cfg.logger.Warn("resource load failed", "resource", r.String(), "error", err)
	return fmt.Errorf("%w: %s: %w", ErrResourceLoadFailed, r, err)
}

// LoadBinary loads a table straight from a file path or inline blob,
// bypassing the parameter channel.
func (s *State) LoadBinary(r Resource, descriptor string) (LoadResult, error) {
	if !r.valid() {
		return LoadFailed, fmt.Errorf("%w: unknown resource %d", ErrResourceLoadFailed, int(r))
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return LoadFailed, ErrClosed
	}
	return s.load(r, []byte(descriptor))
}
