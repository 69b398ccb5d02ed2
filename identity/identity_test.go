package identity_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zerotau/zerotau/identity"
	"github.com/zerotau/zerotau/nodetest"
)

func TestBootstrapGeneratesAndPersistsOnColdStart(t *testing.T) {
	cb := nodetest.New()

	id, err := identity.Bootstrap(cb)
	require.NoError(t, err)
	require.NotNil(t, id)

	secret, ok := cb.Get("identity.secret")
	require.True(t, ok)
	assert.Len(t, secret, 64)

	pub, ok := cb.Get("identity.public")
	require.True(t, ok)
	assert.Equal(t, id.KeyPair.Public[:], pub)
	assert.Equal(t, secret[:32], pub)
}

func TestBootstrapReloadsExistingIdentity(t *testing.T) {
	cb := nodetest.New()
	first, err := identity.Bootstrap(cb)
	require.NoError(t, err)

	second, err := identity.Bootstrap(cb)
	require.NoError(t, err)

	assert.Equal(t, first.KeyPair.Public, second.KeyPair.Public)
	assert.Equal(t, first.Address, second.Address)
}

func TestBootstrapFailsConstructionOnStoreWriteFailure(t *testing.T) {
	cb := nodetest.New()
	cb.FailStorePut = map[string]bool{"identity.secret": true}

	_, err := identity.Bootstrap(cb)
	require.Error(t, err)
}

func TestReservedAddressDetection(t *testing.T) {
	var zero identity.Address
	assert.True(t, zero.IsReserved())

	var allFF identity.Address
	for i := range allFF {
		allFF[i] = 0xff
	}
	assert.True(t, allFF.IsReserved())

	real := identity.Address{0x01, 0x02, 0x03}
	assert.False(t, real.IsReserved())
}
