package memacct

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestReserveAndRelease(t *testing.T) {
	a := New(1024)
	assert.NoError(t, a.Reserve(512))
	assert.Equal(t, uint64(512), a.Usage())
	a.Release(512)
	assert.Equal(t, uint64(0), a.Usage())
}

func TestReserveFailsOverCap(t *testing.T) {
	a := New(1024)
	require := assert.New(t)
	require.NoError(a.Reserve(1024))
	err := a.Reserve(1)
	require.ErrorIs(err, ErrOutOfMemory)
	require.Equal(uint64(1024), a.Usage())
}

func TestReleaseClampsAtZero(t *testing.T) {
	a := New(1024)
	a.Release(10)
	assert.Equal(t, uint64(0), a.Usage())
}
