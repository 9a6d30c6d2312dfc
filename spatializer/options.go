package spatializer

import (
	"errors"
	"fmt"
	"log/slog"
	"math"

	"github.com/cwbudde/algo-binaural/dsp/dynamics"
)

type config struct {
	logger             *slog.Logger
	resolver           Resolver
	maxResourceLength  int
	reloadOnReinit     bool
	limiterThresholdDB float64
	limiterReleaseMs   float64
}

func defaultConfig() config {
	return config{
		logger:             slog.New(slog.DiscardHandler),
		resolver:           FileResolver{},
		maxResourceLength:  DefaultMaxResourceLength,
		reloadOnReinit:     true,
		limiterThresholdDB: dynamics.DefaultLimiterThresholdDB,
		limiterReleaseMs:   dynamics.DefaultLimiterReleaseMs,
	}
}

// Option configures a State.
type Option func(*config) error

// WithLogger sets the logger for load failures and, while the DebugLog
// parameter is on, debug output.
func WithLogger(l *slog.Logger) Option {
	return func(c *config) error {
		if l == nil {
			return errors.New("spatializer: nil logger")
		}
		c.logger = l
		return nil
	}
}

// WithResolver sets how path descriptors are turned into bytes.
func WithResolver(r Resolver) Option {
	return func(c *config) error {
		if r == nil {
			return errors.New("spatializer: nil resolver")
		}
		c.resolver = r
		return nil
	}
}

// WithMaxResourceLength caps assembled resources, in bytes.
func WithMaxResourceLength(n int) Option {
	return func(c *config) error {
		if n <= 0 || n > DefaultMaxResourceLength {
			return fmt.Errorf("spatializer: max resource length must be in [1, %d]: %d", DefaultMaxResourceLength, n)
		}
		c.maxResourceLength = n
		return nil
	}
}

// WithReloadOnReinit controls whether tables are reinstalled from their
// retained bytes after a core change. Default true.
func WithReloadOnReinit(reload bool) Option {
	return func(c *config) error {
		c.reloadOnReinit = reload
		return nil
	}
}

// WithLimiter sets the output limiter ceiling and release.
func WithLimiter(thresholdDB, releaseMs float64) Option {
	return func(c *config) error {
		if math.IsNaN(thresholdDB) || math.IsInf(thresholdDB, 0) || thresholdDB > 0 {
			return fmt.Errorf("spatializer: limiter threshold must be finite and <= 0 dB: %v", thresholdDB)
		}
		if math.IsNaN(releaseMs) || releaseMs <= 0 {
			return fmt.Errorf("spatializer: limiter release must be positive: %v", releaseMs)
		}
		c.limiterThresholdDB = thresholdDB
		c.limiterReleaseMs = releaseMs
		return nil
	}
}
