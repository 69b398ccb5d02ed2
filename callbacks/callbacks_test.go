package callbacks_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zerotau/zerotau/callbacks"
	"github.com/zerotau/zerotau/nodetest"
)

func TestReadAllReturnsFalseForAbsentKey(t *testing.T) {
	cb := nodetest.New()
	_, ok := callbacks.ReadAll(cb, "does-not-exist")
	assert.False(t, ok)
}

func TestReadAllReassemblesChunkedObject(t *testing.T) {
	cb := nodetest.New()
	data := make([]byte, 40*1024)
	for i := range data {
		data[i] = byte(i)
	}
	cb.Seed("big-object", data)

	got, ok := callbacks.ReadAll(cb, "big-object")
	require.True(t, ok)
	assert.Equal(t, data, got)
}

func TestReadAllHandlesEmptyStoredObjectAsAbsent(t *testing.T) {
	cb := nodetest.New()
	cb.Seed("empty", []byte{})
	_, ok := callbacks.ReadAll(cb, "empty")
	assert.False(t, ok)
}

func TestConfigOpAndStatusEventStrings(t *testing.T) {
	assert.Equal(t, "UP", callbacks.ConfigUp.String())
	assert.Equal(t, "DESTROY", callbacks.ConfigDestroy.String())
	assert.Equal(t, "FATAL_ERROR_IDENTITY_COLLISION", callbacks.StatusFatalErrorIdentityCollision.String())
}
