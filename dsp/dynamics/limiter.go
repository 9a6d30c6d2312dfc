package dynamics

import (
	"fmt"
	"math"
	"sync"
	"sync/atomic"
)

const (
	limiterRatio    = 100.0
	limiterAttackMs = 0.1

	// DefaultLimiterThresholdDB is the ceiling used when none is configured.
	DefaultLimiterThresholdDB = -1.0
	// DefaultLimiterReleaseMs is the release used when none is configured.
	DefaultLimiterReleaseMs = 100.0
)

// StereoLimiter is a hard-knee 100:1 limiter with one detector linked over
// both channels.
//
// ProcessInterleaved may be called from several render goroutines; calls
// are serialized by an internal mutex. CompressionDB never blocks.
type StereoLimiter struct {
	mu   sync.Mutex
	comp *Compressor

	// math.Float64bits of the last block's peak gain reduction in dB.
	compression atomic.Uint64
}

// NewStereoLimiter creates a limiter with the given ceiling and release.
func NewStereoLimiter(sampleRate, thresholdDB, releaseMs float64) (*StereoLimiter, error) {
	c, err := NewCompressor(sampleRate)
	if err != nil {
		return nil, fmt.Errorf("limiter: %w", err)
	}

	steps := []func() error{
		func() error { return c.SetRatio(limiterRatio) },
		func() error { return c.SetAttack(limiterAttackMs) },
		func() error { return c.SetKnee(0) },
		func() error { return c.SetThreshold(thresholdDB) },
		func() error { return c.SetRelease(releaseMs) },
	}
	for _, step := range steps {
		if err := step(); err != nil {
			return nil, fmt.Errorf("limiter: %w", err)
		}
	}

	return &StereoLimiter{comp: c}, nil
}

// ProcessInterleaved limits an interleaved stereo buffer in place.
func (l *StereoLimiter) ProcessInterleaved(buf []float32) {
	l.mu.Lock()
	minGain := 1.0
	for i := 0; i+1 < len(buf); i += 2 {
		lv := math.Abs(float64(buf[i]))
		rv := math.Abs(float64(buf[i+1]))
		g := l.comp.Detect(math.Max(lv, rv))
		buf[i] = float32(float64(buf[i]) * g)
		buf[i+1] = float32(float64(buf[i+1]) * g)
		if g < minGain {
			minGain = g
		}
	}
	l.mu.Unlock()

	l.compression.Store(math.Float64bits(reductionDB(minGain)))
}

// CompressionDB returns the peak gain reduction of the most recent block
// as a non-negative dB value.
func (l *StereoLimiter) CompressionDB() float64 {
	return math.Float64frombits(l.compression.Load())
}

func reductionDB(gain float64) float64 {
	if gain >= 1 || gain <= 0 {
		return 0
	}
	return -20 * math.Log10(gain)
}
