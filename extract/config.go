package extract

import (
	"context"
	"math/rand/v2"
	"time"
)

// Loader defaults.
const (
	DefaultPollInterval   = 500 * time.Millisecond
	DefaultMaxChecks      = 10
	DefaultTriggerTimeout = 5 * time.Second
	DefaultStallThreshold = 3
	DefaultMinGain        = 1
)

// Pacing defaults.
var (
	DefaultPreClick      = Range{Min: 300 * time.Millisecond, Max: 700 * time.Millisecond}
	DefaultPostLoad      = Range{Min: 200 * time.Millisecond, Max: 500 * time.Millisecond}
	DefaultDetailTimeout = 10 * time.Second
)

// LoaderConfig tunes the stall-aware loader.
type LoaderConfig struct {
	// PollInterval is the spacing of container-count checks after a reveal.
	PollInterval time.Duration
	// MaxChecks caps the polls per reveal.
	MaxChecks int
	// TriggerTimeout is the hard deadline for a single reveal to show growth.
	TriggerTimeout time.Duration
	// StallThreshold is the number of consecutive non-progressing reveals
	// after which loading stops.
	StallThreshold int
	// MinGain is the per-reveal growth that counts as real progress.
	MinGain int
	// Now is the clock used for the stall safety valve.
	Now func() time.Time
}

// DefaultLoaderConfig returns the production loader settings.
func DefaultLoaderConfig() LoaderConfig {
	return LoaderConfig{
		PollInterval:   DefaultPollInterval,
		MaxChecks:      DefaultMaxChecks,
		TriggerTimeout: DefaultTriggerTimeout,
		StallThreshold: DefaultStallThreshold,
		MinGain:        DefaultMinGain,
		Now:            time.Now,
	}
}

func (c LoaderConfig) withDefaults() LoaderConfig {
	d := DefaultLoaderConfig()
	if c.PollInterval <= 0 {
		c.PollInterval = d.PollInterval
	}
	if c.MaxChecks <= 0 {
		c.MaxChecks = d.MaxChecks
	}
	if c.TriggerTimeout <= 0 {
		c.TriggerTimeout = d.TriggerTimeout
	}
	if c.StallThreshold <= 0 {
		c.StallThreshold = d.StallThreshold
	}
	if c.MinGain <= 0 {
		c.MinGain = d.MinGain
	}
	if c.Now == nil {
		c.Now = d.Now
	}
	return c
}

// Range is a closed duration interval.
type Range struct {
	Min time.Duration
	Max time.Duration
}

// PacingConfig tunes the walker's humanlike delays.
type PacingConfig struct {
	PreClick      Range
	PostLoad      Range
	DetailTimeout time.Duration
}

// DefaultPacingConfig returns the production pacing settings.
func DefaultPacingConfig() PacingConfig {
	return PacingConfig{
		PreClick:      DefaultPreClick,
		PostLoad:      DefaultPostLoad,
		DetailTimeout: DefaultDetailTimeout,
	}
}

// Jitter picks a delay inside r.
type Jitter func(r Range) time.Duration

// RandomJitter draws uniformly from r.
func RandomJitter(r Range) time.Duration {
	if r.Max <= r.Min {
		return r.Min
	}
	return r.Min + rand.N(r.Max-r.Min+1)
}

// NoJitter never waits.
func NoJitter(Range) time.Duration {
	return 0
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
