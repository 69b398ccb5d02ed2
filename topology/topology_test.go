package topology_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zerotau/zerotau/identity"
	"github.com/zerotau/zerotau/nodetest"
	"github.com/zerotau/zerotau/topology"
)

func TestSealVerifyRoundTrip(t *testing.T) {
	plaintext := []byte(`{"supernodes":[{"endpoint":"198.51.100.9:9993"}]}`)
	sealed := topology.Seal(plaintext)

	got, ok := topology.Verify(sealed)
	require.True(t, ok)
	assert.Equal(t, plaintext, got)
}

func TestVerifyRejectsTamperedBlob(t *testing.T) {
	sealed := topology.Seal([]byte(`{"supernodes":[]}`))
	sealed[0] ^= 0xff

	_, ok := topology.Verify(sealed)
	assert.False(t, ok)
}

func TestResolveOverrideTakesPrecedence(t *testing.T) {
	cb := nodetest.New()
	cb.Seed("root-topology", topology.Seal([]byte(`{"supernodes":[{"endpoint":"from-store:1"}]}`)))

	d := topology.Resolve(cb, `{"supernodes":[{"endpoint":"from-override:1"}]}`)
	require.Len(t, d.Supernodes, 1)
	assert.Equal(t, "from-override:1", d.Supernodes[0].Endpoint)
}

func TestResolveFallsBackToCompiledInDefault(t *testing.T) {
	cb := nodetest.New()
	d := topology.Resolve(cb, "")
	assert.NotEmpty(t, d.Supernodes)
}

func TestResolveRejectsUnauthenticatedStoreBlob(t *testing.T) {
	cb := nodetest.New()
	cb.Seed("root-topology", []byte(`{"supernodes":[{"endpoint":"untrusted:1"}]}`))

	d := topology.Resolve(cb, "")
	for _, sn := range d.Supernodes {
		assert.NotEqual(t, "untrusted:1", sn.Endpoint)
	}
}

func TestPeerLivenessAndEviction(t *testing.T) {
	topo := topology.New(nil, 30*time.Second)

	addr := identity.Address{0xaa}
	now := time.UnixMilli(0)
	topo.RecordReceive(addr, "203.0.113.5:1234", now)
	assert.True(t, topo.Alive("203.0.113.5:1234", now))

	later := now.Add(31 * time.Second)
	assert.False(t, topo.Alive("203.0.113.5:1234", later))

	evicted := topo.CleanExpired(later)
	assert.Equal(t, 1, evicted)
}

func TestSupernodesAreNeverEvicted(t *testing.T) {
	topo := topology.New(nil, time.Second)
	topo.Apply(topology.Dictionary{Supernodes: []topology.Supernode{{Endpoint: "198.51.100.1:9993"}}})

	evicted := topo.CleanExpired(time.UnixMilli(1_000_000))
	assert.Equal(t, 0, evicted)
	assert.Len(t, topo.Peers(), 1)
}
