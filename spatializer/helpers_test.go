package spatializer

import (
	"errors"
	"io/fs"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/cwbudde/algo-binaural/hrtf"
)

const (
	testRate  = 48000
	testBlock = 128
)

func testSynthConfig(rate int) hrtf.SynthConfig {
	cfg := hrtf.DefaultSynthConfig()
	cfg.SampleRate = rate
	cfg.IRLength = 8
	cfg.Step = 45
	return cfg
}

type testBlobs struct {
	hrtf, nearField, highPerf []byte
}

func makeBlobs(t *testing.T, rate int) testBlobs {
	t.Helper()
	cfg := testSynthConfig(rate)

	tab, err := hrtf.Synthesize(cfg)
	require.NoError(t, err)
	h, err := hrtf.EncodeHRTF(tab)
	require.NoError(t, err)

	nf, err := hrtf.SynthesizeILD(hrtf.KindNearFieldILD, cfg)
	require.NoError(t, err)
	nfb, err := hrtf.EncodeILD(nf)
	require.NoError(t, err)

	hp, err := hrtf.SynthesizeILD(hrtf.KindHighPerformanceILD, cfg)
	require.NoError(t, err)
	hpb, err := hrtf.EncodeILD(hp)
	require.NoError(t, err)

	return testBlobs{hrtf: h, nearField: nfb, highPerf: hpb}
}

// recorder is a Resolver serving a fixed set of files and recording every
// descriptor it is asked for.
type recorder struct {
	mu    sync.Mutex
	files map[string][]byte
	calls []string
}

func newRecorder(b testBlobs) *recorder {
	return &recorder{files: map[string][]byte{
		"hrtf.3dti": b.hrtf,
		"nf.3dti":   b.nearField,
		"hp.3dti":   b.highPerf,
	}}
}

func (r *recorder) Resolve(descriptor []byte) ([]byte, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, string(descriptor))
	data, ok := r.files[string(descriptor)]
	if !ok {
		return nil, fs.ErrNotExist
	}
	return data, nil
}

func (r *recorder) Calls() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.calls...)
}

func newTestState(t *testing.T, rec *recorder, opts ...Option) *State {
	t.Helper()
	opts = append([]Option{WithResolver(rec)}, opts...)
	s, err := New(testRate, testBlock, opts...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

// sendString writes data one byte per parameter write, followed by the
// length. It returns the error of the write that completed the assembly.
func sendString(s *State, byteID, lengthID ParamID, data []byte) error {
	for _, b := range data {
		if err := s.SetParameter(byteID, float64(b)); err != nil {
			return err
		}
	}
	return s.SetParameter(lengthID, float64(len(data)))
}

func mustLoad(t *testing.T, s *State, r Resource, descriptor string) {
	t.Helper()
	res, err := s.LoadBinary(r, descriptor)
	require.NoError(t, err)
	require.Equal(t, LoadInstalled, res)
}

// readyState returns a State in HighQuality mode with the HRTF and
// near-field tables installed.
func readyState(t *testing.T, opts ...Option) (*State, *recorder) {
	t.Helper()
	rec := newRecorder(makeBlobs(t, testRate))
	s := newTestState(t, rec, opts...)
	mustLoad(t, s, ResourceHRTF, "hrtf.3dti")
	mustLoad(t, s, ResourceNearFieldILD, "nf.3dti")
	require.Equal(t, Ready, s.Readiness())
	return s, rec
}

func isLoadFailure(err error) bool {
	return errors.Is(err, ErrResourceLoadFailed)
}
