package background_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zerotau/zerotau/background"
	"github.com/zerotau/zerotau/config"
	"github.com/zerotau/zerotau/identity"
	"github.com/zerotau/zerotau/nodetest"
	"github.com/zerotau/zerotau/registry"
	"github.com/zerotau/zerotau/topology"
)

func newEngine(now time.Time, cb *nodetest.Callbacks, sw *nodetest.Switch) (*background.Engine, *topology.Topology, *registry.Registry) {
	tuning := config.Default()
	topo := topology.New(nil, tuning.HousekeepingPeriod)
	reg := registry.New(nil, cb)
	e := background.New(nil, tuning, background.Deps{
		Topology:  topo,
		Registry:  reg,
		Switch:    sw,
		Callbacks: cb,
	}, now)
	return e, topo, reg
}

func TestTickBelowIntervalIsNoOp(t *testing.T) {
	cb := nodetest.New()
	sw := &nodetest.Switch{}
	e, topo, _ := newEngine(time.UnixMilli(0), cb, sw)
	topo.Apply(topology.Dictionary{Supernodes: []topology.Supernode{{Endpoint: "198.51.100.1:9993"}}})

	// The first tick always runs the ping phase; a second tick 1ms later
	// falls inside PingCheckInterval and must send nothing further.
	_, err := e.Tick(time.UnixMilli(0))
	require.NoError(t, err)
	sent := len(cb.Sent)

	_, err = e.Tick(time.UnixMilli(1))
	require.NoError(t, err)
	assert.Len(t, cb.Sent, sent)
}

func TestTickPingsKnownSupernodes(t *testing.T) {
	cb := nodetest.New()
	sw := &nodetest.Switch{}
	e, topo, _ := newEngine(time.UnixMilli(0), cb, sw)
	topo.Apply(topology.Dictionary{Supernodes: []topology.Supernode{{Endpoint: "198.51.100.1:9993"}}})

	_, err := e.Tick(time.UnixMilli(0).Add(config.PingCheckInterval))
	require.NoError(t, err)
	require.NotEmpty(t, cb.Sent)
	assert.Equal(t, "198.51.100.1:9993", cb.Sent[0].RemoteAddress)
}

func TestTickComputesClampedDeadline(t *testing.T) {
	cb := nodetest.New()
	sw := &nodetest.Switch{Interval: int64(500 * time.Millisecond)}
	e, _, _ := newEngine(time.UnixMilli(0), cb, sw)

	now := time.UnixMilli(0).Add(config.PingCheckInterval)
	deadline, err := e.Tick(now)
	require.NoError(t, err)
	assert.False(t, deadline.Before(now.Add(config.CoreTimerGranularity)))
	assert.False(t, deadline.After(now.Add(config.PingCheckInterval)))
}

func TestDesperationRisesDuringSustainedOutage(t *testing.T) {
	cb := nodetest.New()
	sw := &nodetest.Switch{}
	e, topo, _ := newEngine(time.UnixMilli(0), cb, sw)
	topo.Apply(topology.Dictionary{Supernodes: []topology.Supernode{{Endpoint: "198.51.100.1:9993"}}})

	// Over 3 ping checks (no reset yet, spec.md §4.4) desperation only
	// climbs.
	last := int64(-1)
	now := time.UnixMilli(0)
	for i := 0; i < 3; i++ {
		now = now.Add(config.PingCheckInterval)
		_, err := e.Tick(now)
		require.NoError(t, err)
		d := e.Desperation()
		assert.GreaterOrEqual(t, d, last)
		last = d
	}
	assert.Equal(t, int64(1), last)
}

func TestDesperationBaselineResetsAfterProlongedSilence(t *testing.T) {
	cb := nodetest.New()
	sw := &nodetest.Switch{}
	e, topo, _ := newEngine(time.UnixMilli(0), cb, sw)
	topo.Apply(topology.Dictionary{Supernodes: []topology.Supernode{{Endpoint: "198.51.100.1:9993"}}})

	// With no supernode contact ever, the start-of-activity baseline
	// itself advances once total silence exceeds the reset threshold, so
	// desperation is bounded rather than unbounded: it saws between 0 and
	// 1 instead of climbing forever.
	now := time.UnixMilli(0)
	seenNonZero := false
	for i := 0; i < 8; i++ {
		now = now.Add(config.PingCheckInterval)
		_, err := e.Tick(now)
		require.NoError(t, err)
		d := e.Desperation()
		assert.LessOrEqual(t, d, int64(1))
		if d > 0 {
			seenNonZero = true
		}
	}
	assert.True(t, seenNonZero, "desperation should have risen at least once")
}

func TestDesperationResetsAfterSupernodeContact(t *testing.T) {
	cb := nodetest.New()
	addr := identity.Address{0x01}
	sw := &nodetest.Switch{RecognizeAs: &addr}
	e, topo, _ := newEngine(time.UnixMilli(0), cb, sw)
	topo.Apply(topology.Dictionary{Supernodes: []topology.Supernode{{Endpoint: "198.51.100.1:9993"}}})

	now := time.UnixMilli(0)
	for i := 0; i < 3; i++ {
		now = now.Add(config.PingCheckInterval)
		_, err := e.Tick(now)
		require.NoError(t, err)
	}
	elevated := e.Desperation()
	require.Greater(t, elevated, int64(0))

	topo.RecordReceive(addr, "198.51.100.1:9993", now)
	now = now.Add(config.PingCheckInterval)
	_, err := e.Tick(now)
	require.NoError(t, err)
	assert.Less(t, e.Desperation(), elevated)
}
