package hrtf

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWoodworthDelay(t *testing.T) {
	const r, c = 0.0875, 343.0

	assert.InDelta(t, 0, WoodworthDelay(0, r, c), 1e-12)
	assert.InDelta(t, -r/c, WoodworthDelay(1, r, c), 1e-12)
	assert.InDelta(t, r*math.Pi/2/c, WoodworthDelay(-1, r, c), 1e-12)

	// Interaural difference for a lateral source: r/c * (pi/2 + 1).
	itd := WoodworthDelay(-1, r, c) - WoodworthDelay(1, r, c)
	assert.InDelta(t, r/c*(math.Pi/2+1), itd, 1e-12)
}

func TestSynthesizeShape(t *testing.T) {
	cfg := DefaultSynthConfig()
	tab, err := Synthesize(cfg)
	require.NoError(t, err)
	require.NoError(t, tab.Validate())
	assert.Len(t, tab.Entries, 24*13)

	// Source on the left: louder left ear, later right ear.
	var left *HRIR
	for i := range tab.Entries {
		if tab.Entries[i].Azimuth == 90 && tab.Entries[i].Elevation == 0 {
			left = &tab.Entries[i]
		}
	}
	require.NotNil(t, left)
	assert.Greater(t, left.Left[0], left.Right[0])
	assert.Zero(t, left.LeftDelay)
	assert.Greater(t, left.RightDelay, 20.0)
}

func TestSynthConfigValidation(t *testing.T) {
	bad := []func(*SynthConfig){
		func(c *SynthConfig) { c.SampleRate = 0 },
		func(c *SynthConfig) { c.IRLength = 0 },
		func(c *SynthConfig) { c.Step = 0 },
		func(c *SynthConfig) { c.HeadRadius = -1 },
	}
	for i, mutate := range bad {
		cfg := DefaultSynthConfig()
		mutate(&cfg)
		_, err := Synthesize(cfg)
		assert.Error(t, err, "case %d", i)
	}

	_, err := SynthesizeILD(KindHRTF, DefaultSynthConfig())
	assert.ErrorIs(t, err, ErrKindMismatch)
}
