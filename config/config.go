// Package config holds the tunable intervals and embedder-supplied options
// that drive the node control plane.
package config

import "time"

// Intervals driving the background task engine (spec.md §4.4). Values are
// the same order of magnitude as production overlay networks; embedders
// that need different cadences construct their own config.Tuning.
const (
	// PingCheckInterval gates the peer-liveness subroutine.
	PingCheckInterval = 20 * time.Second

	// HousekeepingPeriod gates the eviction subroutine.
	HousekeepingPeriod = 2 * time.Minute

	// NetworkAutoconfDelay is the staleness threshold past which a joined
	// network requests a fresh configuration.
	NetworkAutoconfDelay = 90 * time.Second

	// CoreTimerGranularity is the minimum interval the core will ever
	// request before the next background tick.
	CoreTimerGranularity = 100 * time.Millisecond

	// DesperationIncrement scales how quickly desperation escalates once
	// the node has lost contact with every supernode.
	DesperationIncrement = 3

	// inactivityResetFactor: once the gap since start-of-activity exceeds
	// this many ping-check intervals with no supernode contact, the
	// start-of-activity baseline is moved forward so desperation counting
	// restarts fresh.
	inactivityResetFactor = 3
)

// InactivityResetThreshold returns the gap after which the desperation
// baseline is advanced to now.
func InactivityResetThreshold() time.Duration {
	return inactivityResetFactor * PingCheckInterval
}

// Tuning bundles the interval constants so they can be overridden in tests
// without touching the package-level defaults used in production.
type Tuning struct {
	PingCheckInterval      time.Duration
	HousekeepingPeriod     time.Duration
	NetworkAutoconfDelay   time.Duration
	CoreTimerGranularity   time.Duration
	DesperationIncrement   int64
	InactivityResetFactor  int64
}

// Default returns the production tuning.
func Default() Tuning {
	return Tuning{
		PingCheckInterval:     PingCheckInterval,
		HousekeepingPeriod:    HousekeepingPeriod,
		NetworkAutoconfDelay:  NetworkAutoconfDelay,
		CoreTimerGranularity:  CoreTimerGranularity,
		DesperationIncrement:  DesperationIncrement,
		InactivityResetFactor: inactivityResetFactor,
	}
}

// InactivityReset returns the gap, under this tuning, after which the
// desperation baseline is advanced to now.
func (t Tuning) InactivityReset() time.Duration {
	return time.Duration(t.InactivityResetFactor) * t.PingCheckInterval
}

// Options carries embedder-supplied construction-time configuration,
// following the teacher's Options/NewOptions pattern (toxcore.go).
type Options struct {
	// OverrideRootTopology, when non-empty, is trusted without
	// authentication and takes precedence over the store and the
	// compiled-in default (spec.md §3).
	OverrideRootTopology string

	// BootstrapTimeout bounds how long the embedder should wait for the
	// first round of supernode contact before giving up; the core itself
	// does not enforce this, it is advisory for the embedder's own loop.
	BootstrapTimeout time.Duration

	// Tuning overrides the default intervals; zero value means "use
	// config.Default()".
	Tuning Tuning
}

// NewOptions returns the default embedder options.
func NewOptions() *Options {
	return &Options{
		BootstrapTimeout: 5 * time.Second,
		Tuning:           Default(),
	}
}

// resolved returns o.Tuning if it looks populated, else the package default.
func (o *Options) resolved() Tuning {
	if o == nil || o.Tuning.PingCheckInterval == 0 {
		return Default()
	}
	return o.Tuning
}

// Resolved returns the effective tuning for these options.
func (o *Options) Resolved() Tuning {
	return o.resolved()
}
