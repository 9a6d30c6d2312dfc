package binaural

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/cwbudde/algo-binaural/hrtf"
	"github.com/cwbudde/algo-binaural/internal/testutil"
)

const testBlock = 128

func newTestSource(t *testing.T) (*Core, *Source) {
	t.Helper()
	core, err := NewCore(48000, testBlock)
	require.NoError(t, err)
	src, err := NewSource(core)
	require.NoError(t, err)
	return core, src
}

func listenerWithHRTF(t *testing.T, core *Core) *Listener {
	t.Helper()
	h, err := core.PrepareHRTF(synthTable(t, core.SampleRate()), 15)
	require.NoError(t, err)
	l := DefaultListener()
	l.HRTF = h
	return l
}

func argmaxAbs(x []float64) int {
	best := 0
	for i, v := range x {
		if math.Abs(v) > math.Abs(x[best]) {
			best = i
		}
	}
	return best
}

func impulse(n int) []float64 {
	x := make([]float64, n)
	x[0] = 1
	return x
}

func TestSourceNoneModePassesLevelOnly(t *testing.T) {
	_, src := newTestSource(t)

	in := []float64{0.5, -0.25, 0.125, 0}
	left := make([]float64, len(in))
	right := make([]float64, len(in))
	set := Settings{Mode: None}

	pose := Pose{Listener: Identity(), Source: r3.Vec{Y: 5}}
	require.NoError(t, src.Process(in, left, right, DefaultListener(), pose, set))
	assert.Equal(t, in, left)
	assert.Equal(t, in, right)
}

func TestSourceDistanceAttenuation(t *testing.T) {
	_, src := newTestSource(t)

	l := DefaultListener()
	l.AnechoicAttenuationDB = -6
	set := Settings{Mode: None, DistanceAttenuation: true}
	pose := Pose{Listener: Identity(), Source: r3.Vec{X: 4}}

	in := []float64{1, 1, 1, 1}
	left := make([]float64, 4)
	right := make([]float64, 4)
	require.NoError(t, src.Process(in, left, right, l, pose, set))

	want := math.Pow(10, -12.0/20)
	assert.InDeltaSlice(t, []float64{want, want, want, want}, left, 1e-12)
	assert.InDeltaSlice(t, left, right, 0)

	assert.InDelta(t, 0, DistanceGainDB(-6, 1), 1e-12)
	assert.InDelta(t, DistanceGainDB(-6, MinDistance), DistanceGainDB(-6, 0), 1e-12)
}

func TestSourceHighQualityLateralises(t *testing.T) {
	core, src := newTestSource(t)
	l := listenerWithHRTF(t, core)

	set := DefaultSettings()
	set.NearFieldILD = false
	pose := Pose{Listener: Identity(), Source: r3.Vec{Y: 1}}

	left := make([]float64, testBlock)
	right := make([]float64, testBlock)

	// Settle the ITD ramp first.
	require.NoError(t, src.Process(make([]float64, testBlock), left, right, l, pose, set))
	require.NoError(t, src.Process(impulse(testBlock), left, right, l, pose, set))

	assert.InDelta(t, 1, left[0], 1e-9)
	assert.Greater(t, testutil.Energy(left), 4*testutil.Energy(right))

	peak := argmaxAbs(right)
	assert.GreaterOrEqual(t, peak, 30)
	assert.LessOrEqual(t, peak, 33)
}

func TestSourceCustomITD(t *testing.T) {
	core, src := newTestSource(t)
	l := listenerWithHRTF(t, core)
	l.CustomITD = true
	l.HeadRadius = 0.05

	set := DefaultSettings()
	pose := Pose{Listener: Identity(), Source: r3.Vec{Y: -1}}

	left := make([]float64, testBlock)
	right := make([]float64, testBlock)
	require.NoError(t, src.Process(make([]float64, testBlock), left, right, l, pose, set))
	require.NoError(t, src.Process(impulse(testBlock), left, right, l, pose, set))

	want := 0.05 / 343 * (math.Pi/2 + 1) * 48000
	peak := argmaxAbs(left)
	assert.InDelta(t, want, float64(peak), 1.5)
	assert.Equal(t, 0, argmaxAbs(right))
}

func TestSourceHighPerformanceAppliesILD(t *testing.T) {
	core, src := newTestSource(t)
	l := listenerWithHRTF(t, core)

	ild, err := hrtf.SynthesizeILD(hrtf.KindHighPerformanceILD, hrtf.DefaultSynthConfig())
	require.NoError(t, err)
	require.NoError(t, core.CheckILD(ild))
	l.HighPerformanceILD = ild

	set := DefaultSettings()
	set.Mode = HighPerformance
	pose := Pose{Listener: Identity(), Source: r3.Vec{Y: 1}}

	in := make([]float64, testBlock)
	for i := range in {
		in[i] = math.Sin(2 * math.Pi * 5000 * float64(i) / 48000)
	}
	left := make([]float64, testBlock)
	right := make([]float64, testBlock)
	for k := 0; k < 4; k++ {
		require.NoError(t, src.Process(in, left, right, l, pose, set))
	}

	assert.Greater(t, testutil.Energy(left), 4*testutil.Energy(right))
}

func TestSourceFarLowPass(t *testing.T) {
	_, src := newTestSource(t)

	set := Settings{Mode: HighQuality, FarLPF: true}
	pose := Pose{Listener: Identity(), Source: r3.Vec{X: 300}}

	in := make([]float64, testBlock)
	for i := range in {
		in[i] = math.Sin(2 * math.Pi * 12000 * float64(i) / 48000)
	}
	left := make([]float64, testBlock)
	right := make([]float64, testBlock)
	for k := 0; k < 4; k++ {
		require.NoError(t, src.Process(in, left, right, DefaultListener(), pose, set))
	}
	assert.Less(t, testutil.Energy(left), 0.01*testutil.Energy(in))

	assert.Zero(t, FarCutoff(FarDistance))
	assert.InDelta(t, 10000, FarCutoff(2*FarDistance), 1e-9)
	assert.Equal(t, FarMinCutoff, FarCutoff(1e6))
}

func TestSourceDirectionality(t *testing.T) {
	_, src := newTestSource(t)

	l := DefaultListener()
	l.Directionality[Left] = Directionality{Enabled: true, ExtendDB: 20}
	set := Settings{Mode: None}
	pose := Pose{Listener: Identity(), Source: r3.Vec{X: -1}}

	in := []float64{1, 1, 1, 1}
	left := make([]float64, 4)
	right := make([]float64, 4)
	require.NoError(t, src.Process(in, left, right, l, pose, set))
	require.NoError(t, src.Process(in, left, right, l, pose, set))

	assert.InDelta(t, 0.1, left[3], 1e-12)
	assert.Equal(t, 1.0, right[3])

	assert.InDelta(t, 0, DirectionalityGainDB(15, 0), 1e-12)
	assert.InDelta(t, -15, DirectionalityGainDB(15, 180), 1e-12)
	assert.InDelta(t, -7.5, DirectionalityGainDB(15, 90), 1e-12)
}

func TestSourceValidation(t *testing.T) {
	core, src := newTestSource(t)

	long := make([]float64, testBlock+1)
	err := src.Process(long, long, long, DefaultListener(), Pose{Listener: Identity()}, DefaultSettings())
	assert.ErrorIs(t, err, ErrBlockTooLong)

	short := make([]float64, 2)
	err = src.Process(make([]float64, 4), short, short, DefaultListener(), Pose{Listener: Identity()}, DefaultSettings())
	assert.Error(t, err)

	other, err := NewCore(core.SampleRate(), 64)
	require.NoError(t, err)
	l := listenerWithHRTF(t, other)
	buf := make([]float64, 8)
	err = src.Process(buf, buf, buf, l, Pose{Listener: Identity(), Source: r3.Vec{X: 1}}, DefaultSettings())
	assert.ErrorIs(t, err, ErrForeignTable)

	_, err = NewSource(nil)
	assert.Error(t, err)
}

func TestListenerCopyOnWrite(t *testing.T) {
	core, _ := newTestSource(t)
	l := listenerWithHRTF(t, core)

	c := l.Clone()
	c.HeadRadius = 0.1
	assert.Equal(t, 0.0875, l.HeadRadius)
	assert.Same(t, l.HRTF, c.HRTF)

	bare := l.WithoutTables()
	assert.Nil(t, bare.HRTF)
	assert.NotNil(t, l.HRTF)
	assert.Equal(t, l.Epoch+1, bare.Epoch)
}
