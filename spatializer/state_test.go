package spatializer

import (
	"bytes"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cwbudde/algo-binaural/binaural"
	"github.com/cwbudde/algo-binaural/hrtf"
)

func TestNewDefaults(t *testing.T) {
	s := newTestState(t, newRecorder(testBlobs{}))

	assert.Equal(t, NotReady, s.Readiness())
	assert.Equal(t, binaural.HighQuality, s.Mode())
	assert.ErrorIs(t, s.CheckReady(), ErrEngineNotReady)
	assert.NotErrorIs(t, s.CheckReady(), ErrReinitRequired)

	get := func(id ParamID) float64 {
		v, err := s.GetParameter(id)
		require.NoError(t, err)
		return v
	}
	assert.Equal(t, float64(testBlock), get(ParamBufferSizeCore))
	assert.Equal(t, float64(testRate), get(ParamSampleRateCore))
	assert.Equal(t, 0.0, get(ParamIsCoreReady))
	assert.Equal(t, 0.0, get(ParamLimiterGetCompression))
	assert.Equal(t, 15.0, get(ParamHRTFStep))
}

func TestNewRejectsBadFormat(t *testing.T) {
	_, err := New(100, testBlock)
	assert.Error(t, err)
	_, err = New(testRate, 0)
	assert.Error(t, err)
}

func TestOptionValidation(t *testing.T) {
	bad := []Option{
		WithLogger(nil),
		WithResolver(nil),
		WithMaxResourceLength(0),
		WithMaxResourceLength(DefaultMaxResourceLength + 1),
		WithLimiter(1, 100),
		WithLimiter(-1, 0),
	}
	for i, opt := range bad {
		_, err := New(testRate, testBlock, opt)
		assert.Error(t, err, "option %d", i)
	}
}

// Bytes followed by the matching length reach the loader once, intact.
func TestByteChannelDeliversDescriptorOnce(t *testing.T) {
	rec := newRecorder(makeBlobs(t, testRate))
	s := newTestState(t, rec)

	require.NoError(t, sendString(s, ParamHRTFFileString, ParamHRTFFileLength, []byte("hrtf.3dti")))
	assert.Equal(t, []string{"hrtf.3dti"}, rec.Calls())
	assert.True(t, s.Loaded(ResourceHRTF))
	assert.Equal(t, PartiallyReady, s.Readiness())

	// A repeated length write does not reload.
	require.NoError(t, s.SetParameter(ParamHRTFFileLength, 9))
	assert.Len(t, rec.Calls(), 1)
}

func TestByteChannelInlineBlob(t *testing.T) {
	b := makeBlobs(t, testRate)
	rec := newRecorder(b)
	s := newTestState(t, rec)

	require.NoError(t, s.SetParameter(ParamNearFieldILDFileLength, float64(len(b.nearField))))
	for _, c := range b.nearField {
		require.NoError(t, s.SetParameter(ParamNearFieldILDFileString, float64(c)))
	}
	require.NoError(t, sendString(s, ParamHRTFFileString, ParamHRTFFileLength, b.hrtf))

	assert.Empty(t, rec.Calls(), "inline tables bypass the resolver")
	assert.Equal(t, Ready, s.Readiness())
	assert.NoError(t, s.CheckReady())

	v, err := s.GetParameter(ParamIsCoreReady)
	require.NoError(t, err)
	assert.Equal(t, 1.0, v)
}

func TestNeverReadyWithoutHRTF(t *testing.T) {
	rec := newRecorder(makeBlobs(t, testRate))
	s := newTestState(t, rec)

	mustLoad(t, s, ResourceNearFieldILD, "nf.3dti")
	assert.Equal(t, NotReady, s.Readiness())

	require.NoError(t, s.SetParameter(ParamSpatializationMode, float64(binaural.HighPerformance)))
	mustLoad(t, s, ResourceHighPerformanceILD, "hp.3dti")
	assert.Equal(t, NotReady, s.Readiness())

	require.NoError(t, s.SetParameter(ParamSpatializationMode, float64(binaural.None)))
	assert.Equal(t, NotReady, s.Readiness())

	mustLoad(t, s, ResourceHRTF, "hrtf.3dti")
	assert.Equal(t, Ready, s.Readiness())
}

func TestModeRoundTripKeepsTables(t *testing.T) {
	s, rec := readyState(t)

	require.NoError(t, s.SetParameter(ParamSpatializationMode, float64(binaural.HighPerformance)))
	assert.Equal(t, PartiallyReady, s.Readiness())
	mustLoad(t, s, ResourceHighPerformanceILD, "hp.3dti")
	assert.Equal(t, Ready, s.Readiness())

	loads := len(rec.Calls())
	require.NoError(t, s.SetParameter(ParamSpatializationMode, float64(binaural.HighQuality)))
	assert.Equal(t, Ready, s.Readiness())
	require.NoError(t, s.SetParameter(ParamSpatializationMode, float64(binaural.HighPerformance)))
	assert.Equal(t, Ready, s.Readiness())
	assert.Len(t, rec.Calls(), loads, "mode switches must not reload")
}

func TestFailedLoadLeavesStateUnchanged(t *testing.T) {
	s, _ := readyState(t)
	before := s.snap.Load()

	res, err := s.LoadBinary(ResourceHRTF, "missing.3dti")
	assert.Equal(t, LoadFailed, res)
	assert.ErrorIs(t, err, ErrResourceLoadFailed)

	_, err = s.LoadBinary(ResourceHRTF, "3DTI not a table")
	assert.ErrorIs(t, err, ErrResourceLoadFailed)

	assert.Equal(t, Ready, s.Readiness())
	assert.True(t, s.Loaded(ResourceHRTF))
	assert.True(t, s.Loaded(ResourceNearFieldILD))
	assert.Same(t, before.listener, s.snap.Load().listener)
}

func TestUnresolvableStringStaysNotReady(t *testing.T) {
	rec := newRecorder(makeBlobs(t, testRate))
	s := newTestState(t, rec)

	require.NoError(t, s.SetParameter(ParamHRTFFileLength, 4))
	var err error
	for _, c := range []byte("abcd") {
		err = s.SetParameter(ParamHRTFFileString, float64(c))
	}
	assert.True(t, isLoadFailure(err), "got %v", err)
	assert.Equal(t, []string{"abcd"}, rec.Calls())
	assert.Equal(t, NotReady, s.Readiness())
	assert.False(t, s.Loaded(ResourceHRTF))

	// The write itself was stored.
	v, err := s.GetParameter(ParamHRTFFileString)
	require.NoError(t, err)
	assert.Equal(t, float64('d'), v)
}

func TestHighPerformanceReadinessSequence(t *testing.T) {
	rec := newRecorder(makeBlobs(t, testRate))
	s := newTestState(t, rec)

	require.NoError(t, s.SetParameter(ParamSpatializationMode, float64(binaural.HighPerformance)))
	assert.Equal(t, NotReady, s.Readiness())
	mustLoad(t, s, ResourceHRTF, "hrtf.3dti")
	assert.Equal(t, PartiallyReady, s.Readiness())
	mustLoad(t, s, ResourceHighPerformanceILD, "hp.3dti")
	assert.Equal(t, Ready, s.Readiness())
}

func TestLoadSkippedForOtherMode(t *testing.T) {
	rec := newRecorder(makeBlobs(t, testRate))
	s := newTestState(t, rec)

	res, err := s.LoadBinary(ResourceHighPerformanceILD, "hp.3dti")
	require.NoError(t, err)
	assert.Equal(t, LoadSkipped, res)
	assert.Empty(t, rec.Calls())
	assert.False(t, s.Loaded(ResourceHighPerformanceILD))
}

func TestLoadRejectsWrongKind(t *testing.T) {
	rec := newRecorder(makeBlobs(t, testRate))
	s := newTestState(t, rec)
	require.NoError(t, s.SetParameter(ParamSpatializationMode, float64(binaural.HighPerformance)))

	_, err := s.LoadBinary(ResourceHighPerformanceILD, "nf.3dti")
	assert.ErrorIs(t, err, ErrResourceLoadFailed)
	assert.ErrorIs(t, err, hrtf.ErrKindMismatch)

	_, err = s.LoadBinary(ResourceHRTF, "hp.3dti")
	assert.ErrorIs(t, err, ErrResourceLoadFailed)
	assert.False(t, s.Loaded(ResourceHRTF))
}

func TestLoadRejectsOtherSampleRate(t *testing.T) {
	other := makeBlobs(t, 44100)
	s := newTestState(t, newRecorder(other))

	_, err := s.LoadBinary(ResourceHRTF, "hrtf.3dti")
	assert.ErrorIs(t, err, ErrResourceLoadFailed)
	assert.ErrorIs(t, err, binaural.ErrSampleRateMismatch)
	_, err = s.LoadBinary(ResourceNearFieldILD, "nf.3dti")
	assert.ErrorIs(t, err, binaural.ErrSampleRateMismatch)
	assert.Equal(t, NotReady, s.Readiness())
}

func TestLoadBinaryUnknownResource(t *testing.T) {
	s := newTestState(t, newRecorder(testBlobs{}))
	res, err := s.LoadBinary(Resource(7), "x")
	assert.Equal(t, LoadFailed, res)
	assert.ErrorIs(t, err, ErrResourceLoadFailed)
}

func TestModeSwitchDiscardsPartialUpload(t *testing.T) {
	s := newTestState(t, newRecorder(makeBlobs(t, testRate)))

	for _, c := range []byte("nf.") {
		require.NoError(t, s.SetParameter(ParamNearFieldILDFileString, float64(c)))
	}
	require.True(t, s.assemblers[ResourceNearFieldILD].InProgress())

	require.NoError(t, s.SetParameter(ParamSpatializationMode, float64(binaural.HighPerformance)))
	assert.False(t, s.assemblers[ResourceNearFieldILD].InProgress())
	assert.Equal(t, 0, s.assemblers[ResourceNearFieldILD].Count())
}

// A declared length alone is a pending upload: it must not survive a mode
// switch and cut a later upload short.
func TestModeSwitchDiscardsDeclaredLength(t *testing.T) {
	rec := newRecorder(makeBlobs(t, testRate))
	s := newTestState(t, rec)

	require.NoError(t, s.SetParameter(ParamNearFieldILDFileLength, 3))
	require.True(t, s.assemblers[ResourceNearFieldILD].InProgress())

	require.NoError(t, s.SetParameter(ParamSpatializationMode, float64(binaural.HighPerformance)))
	assert.False(t, s.assemblers[ResourceNearFieldILD].InProgress())
	assert.Equal(t, 0, s.assemblers[ResourceNearFieldILD].Length())
	require.NoError(t, s.SetParameter(ParamSpatializationMode, float64(binaural.HighQuality)))

	require.NoError(t, sendString(s, ParamNearFieldILDFileString, ParamNearFieldILDFileLength, []byte("nf.3dti")))
	assert.Equal(t, []string{"nf.3dti"}, rec.Calls())
	assert.True(t, s.Loaded(ResourceNearFieldILD))
}

func TestResourceLengthAboveCapRejected(t *testing.T) {
	rec := newRecorder(makeBlobs(t, testRate))
	s := newTestState(t, rec, WithMaxResourceLength(8))

	before := s.Parameters()
	err := s.SetParameter(ParamHRTFFileLength, 9)
	assert.ErrorIs(t, err, ErrInvalidParameterWrite)
	assert.Equal(t, before, s.Parameters())
	assert.False(t, s.assemblers[ResourceHRTF].InProgress())

	require.NoError(t, sendString(s, ParamNearFieldILDFileString, ParamNearFieldILDFileLength, []byte("nf.3dti")))
	assert.Equal(t, []string{"nf.3dti"}, rec.Calls(), "lengths up to the cap are accepted")
	assert.True(t, s.Loaded(ResourceNearFieldILD))
}

func TestInvalidWrites(t *testing.T) {
	s := newTestState(t, newRecorder(testBlobs{}))

	err := s.SetParameter(ParamIsCoreReady, 1)
	assert.ErrorIs(t, err, ErrInvalidParameterWrite)
	err = s.SetParameter(ParamLimiterGetCompression, 3)
	assert.ErrorIs(t, err, ErrInvalidParameterWrite)

	err = s.SetParameter(ParamID(NumParams), 1)
	assert.ErrorIs(t, err, ErrInvalidParameterWrite)
	assert.ErrorIs(t, err, ErrUnknownParameter)

	_, err = s.GetParameter(ParamID(99))
	assert.ErrorIs(t, err, ErrUnknownParameter)

	before := s.Parameters()
	assert.ErrorIs(t, s.SetParameter(ParamHeadRadius, math.NaN()), ErrInvalidParameterWrite)
	assert.Equal(t, before, s.Parameters())
}

func TestListenerUpdatesAreCopyOnWrite(t *testing.T) {
	s := newTestState(t, newRecorder(testBlobs{}))
	old := s.snap.Load().listener

	require.NoError(t, s.SetParameter(ParamHeadRadius, 0.1))
	require.NoError(t, s.SetParameter(ParamMagSoundSpeed, 340))
	require.NoError(t, s.SetParameter(ParamHADirectionalityOnLeft, 1))
	require.NoError(t, s.SetParameter(ParamHADirectionalityExtendRight, 20))
	require.NoError(t, s.SetParameter(ParamCustomITD, 1))

	l := s.snap.Load().listener
	assert.Equal(t, 0.1, l.HeadRadius)
	assert.Equal(t, 340.0, l.SoundSpeed)
	assert.True(t, l.Directionality[binaural.Left].Enabled)
	assert.Equal(t, 20.0, l.Directionality[binaural.Right].ExtendDB)
	assert.True(t, l.CustomITD)

	assert.Equal(t, 0.0875, old.HeadRadius, "published listeners are never modified")
	assert.False(t, old.Directionality[binaural.Left].Enabled)
}

func TestInterpolationToggleBumpsEpoch(t *testing.T) {
	s := newTestState(t, newRecorder(testBlobs{}))
	epoch := s.snap.Load().listener.Epoch
	require.NoError(t, s.SetParameter(ParamHRTFInterpolation, 0))
	assert.Greater(t, s.snap.Load().listener.Epoch, epoch)
}

func TestHRTFStepResamples(t *testing.T) {
	s, _ := readyState(t)
	require.Equal(t, 15, s.snap.Load().listener.HRTF.Grid.Step)

	require.NoError(t, s.SetParameter(ParamHRTFStep, 30))
	assert.Equal(t, 30, s.snap.Load().listener.HRTF.Grid.Step)
	assert.Equal(t, Ready, s.Readiness())
}

func TestHRTFStepFailureKeepsPreviousStep(t *testing.T) {
	s, _ := readyState(t)
	s.mu.Lock()
	s.blobs[ResourceHRTF] = []byte("3DTI")
	s.mu.Unlock()

	err := s.SetParameter(ParamHRTFStep, 30)
	assert.ErrorIs(t, err, ErrResourceLoadFailed)

	step, err := s.GetParameter(ParamHRTFStep)
	require.NoError(t, err)
	assert.Equal(t, 15.0, step)
	assert.Equal(t, 15, s.snap.Load().listener.HRTF.Grid.Step)
	assert.Equal(t, Ready, s.Readiness())
}

func TestCoreReinitReloadsTables(t *testing.T) {
	s, rec := readyState(t)
	loads := len(rec.Calls())
	require.Equal(t, 256, s.snap.Load().listener.HRTF.FFTSize())

	require.NoError(t, s.SetParameter(ParamBufferSizeCore, 256))
	assert.Equal(t, 256, s.Core().BlockSize())
	assert.Equal(t, Ready, s.Readiness())
	assert.NoError(t, s.CheckReady())
	assert.Equal(t, 512, s.snap.Load().listener.HRTF.FFTSize())
	assert.Len(t, rec.Calls(), loads, "tables come from retained bytes")
}

func TestCoreReinitSameValueIsNoop(t *testing.T) {
	s, _ := readyState(t)
	core := s.Core()
	require.NoError(t, s.SetParameter(ParamBufferSizeCore, testBlock))
	assert.Same(t, core, s.Core())
	assert.Equal(t, Ready, s.Readiness())
}

func TestCoreReinitWithoutReload(t *testing.T) {
	s, _ := readyState(t, WithReloadOnReinit(false))

	require.NoError(t, s.SetParameter(ParamBufferSizeCore, 64))
	assert.Equal(t, NotReady, s.Readiness())
	assert.False(t, s.Loaded(ResourceHRTF))
	assert.Nil(t, s.snap.Load().listener.HRTF)

	err := s.CheckReady()
	assert.ErrorIs(t, err, ErrEngineNotReady)
	assert.ErrorIs(t, err, ErrReinitRequired)

	mustLoad(t, s, ResourceHRTF, "hrtf.3dti")
	err = s.CheckReady()
	assert.ErrorIs(t, err, ErrEngineNotReady)
	assert.NotErrorIs(t, err, ErrReinitRequired)
	assert.Equal(t, PartiallyReady, s.Readiness())
}

func TestCoreReinitReloadFailure(t *testing.T) {
	s, _ := readyState(t)

	// Tables are rate specific, so they cannot follow a new sample rate.
	err := s.SetParameter(ParamSampleRateCore, 44100)
	assert.ErrorIs(t, err, ErrResourceLoadFailed)
	assert.ErrorIs(t, err, binaural.ErrSampleRateMismatch)
	assert.Equal(t, 44100, s.Core().SampleRate())
	assert.Equal(t, NotReady, s.Readiness())
	assert.ErrorIs(t, s.CheckReady(), ErrReinitRequired)
}

func TestCloseState(t *testing.T) {
	s, err := New(testRate, testBlock)
	require.NoError(t, err)

	require.NoError(t, s.Close())
	assert.ErrorIs(t, s.Close(), ErrClosed)
	assert.ErrorIs(t, s.SetParameter(ParamHeadRadius, 0.1), ErrClosed)
	_, err = s.GetParameter(ParamHeadRadius)
	assert.ErrorIs(t, err, ErrClosed)
	assert.ErrorIs(t, s.CheckReady(), ErrClosed)
	_, err = s.LoadBinary(ResourceHRTF, "x")
	assert.ErrorIs(t, err, ErrClosed)
	_, err = s.NewVoice()
	assert.ErrorIs(t, err, ErrClosed)
}

func TestDebugLogging(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	rec := newRecorder(makeBlobs(t, testRate))
	s := newTestState(t, rec, WithLogger(logger))

	mustLoad(t, s, ResourceHRTF, "hrtf.3dti")
	assert.NotContains(t, buf.String(), "resource installed", "quiet until DebugLog is on")

	require.NoError(t, s.SetParameter(ParamDebugLog, 1))
	assert.Contains(t, buf.String(), "debug log enabled")
	mustLoad(t, s, ResourceNearFieldILD, "nf.3dti")
	assert.Contains(t, buf.String(), "resource installed")

	require.NoError(t, s.SetParameter(ParamDebugLog, 0))
	buf.Reset()
	_, err := s.LoadBinary(ResourceHRTF, "missing")
	require.Error(t, err)
	assert.Contains(t, buf.String(), "resource load failed", "failures log at warn")
	assert.Contains(t, buf.String(), "level=WARN")
}

func TestFileResolver(t *testing.T) {
	dir := t.TempDir()
	b := makeBlobs(t, testRate)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "h.3dti"), b.hrtf, 0o600))

	r := FileResolver{Root: dir}
	data, err := r.Resolve([]byte("h.3dti\x00\x00"))
	require.NoError(t, err)
	assert.Equal(t, b.hrtf, data)

	_, err = r.Resolve([]byte("\x00"))
	assert.Error(t, err)
	_, err = r.Resolve([]byte{0xff, 0xfe})
	assert.Error(t, err)
	_, err = r.Resolve([]byte("absent"))
	assert.ErrorIs(t, err, os.ErrNotExist)

	s, err := New(testRate, testBlock, WithResolver(r))
	require.NoError(t, err)
	defer s.Close()
	mustLoad(t, s, ResourceHRTF, "h.3dti")
	mustLoad(t, s, ResourceHRTF, filepath.Join(dir, "h.3dti"))
}
