package registry_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zerotau/zerotau/callbacks"
	"github.com/zerotau/zerotau/nodetest"
	"github.com/zerotau/zerotau/registry"
)

func TestJoinEmitsConfigUpOnlyOnce(t *testing.T) {
	cb := nodetest.New()
	r := registry.New(nil, cb)

	const nwid = 7
	now := time.UnixMilli(0)
	r.Join(nwid, now)
	r.Join(nwid, now.Add(time.Second))

	ups := 0
	for _, ev := range cb.ConfigEvents {
		if ev.NWID == nwid && ev.Op == callbacks.ConfigUp {
			ups++
		}
	}
	assert.Equal(t, 1, ups)
}

func TestLeaveIsNoOpWhenNotJoined(t *testing.T) {
	cb := nodetest.New()
	r := registry.New(nil, cb)
	r.Leave(999)
	assert.Empty(t, cb.ConfigEvents)
}

func TestMulticastSubscribeIsScopedToNetwork(t *testing.T) {
	cb := nodetest.New()
	r := registry.New(nil, cb)
	now := time.UnixMilli(0)
	r.Join(1, now)

	var mac [6]byte
	mac[0] = 0xab
	r.MulticastSubscribe(1, mac, 4)

	cfg := r.NetworkConfig(1)
	require.NotNil(t, cfg)
	assert.Equal(t, 1, cfg.MulticastSubs)

	r.MulticastUnsubscribe(1, mac, 4)
	cfg = r.NetworkConfig(1)
	assert.Equal(t, 0, cfg.MulticastSubs)
}

func TestMulticastSubscribeOnUnjoinedNetworkIsSilentNoOp(t *testing.T) {
	cb := nodetest.New()
	r := registry.New(nil, cb)
	var mac [6]byte
	assert.NotPanics(t, func() { r.MulticastSubscribe(123, mac, 0) })
}

func TestStaleNetworksHonorsRefreshDelay(t *testing.T) {
	cb := nodetest.New()
	r := registry.New(nil, cb)
	now := time.UnixMilli(0)
	r.Join(5, now)

	delay := 90 * time.Second
	assert.Empty(t, r.StaleNetworks(now.Add(time.Second), delay))

	later := now.Add(delay + time.Second)
	assert.Equal(t, []uint64{5}, r.StaleNetworks(later, delay))

	r.TouchConfig(5, later)
	assert.Empty(t, r.StaleNetworks(later, delay))
}

func TestSnapshotReflectsAllJoinedNetworks(t *testing.T) {
	cb := nodetest.New()
	r := registry.New(nil, cb)
	now := time.UnixMilli(0)
	r.Join(1, now)
	r.Join(2, now)

	snap := r.Snapshot()
	assert.Len(t, snap, 2)
	assert.Equal(t, 2, r.Len())
}
