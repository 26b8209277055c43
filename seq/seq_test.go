package seq

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIncreasingWraparound(t *testing.T) {
	assert.True(t, Num(0).Less(Num(1)))
	assert.True(t, Num(65535).Less(Num(0)))
	assert.True(t, Num(65535-3).Less(Num(2)))
	assert.False(t, Num(2).Less(Num(65535-3)))
}

func TestCompare(t *testing.T) {
	assert.Equal(t, 1, Num(0).Compare(Num(65535)))
	assert.Equal(t, -1, Num(65535).Compare(Num(0)))
	assert.Equal(t, 0, Num(10).Compare(Num(10)))
}

func TestDistTo(t *testing.T) {
	assert.Equal(t, int16(1), Num(0).DistTo(Num(1)))
	assert.Equal(t, int16(-1), Num(1).DistTo(Num(0)))
	assert.Equal(t, int16(1), Num(65535).DistTo(Num(0)))
}

func TestWrappingArithmetic(t *testing.T) {
	assert.Equal(t, Num(0), Num(65535).Add(1))
	assert.Equal(t, Num(65535), Num(0).Sub(1))
}

func TestPacketAndMessageAreDistinctTypes(t *testing.T) {
	var p Packet = 5
	var m Message = 5
	// same numeric value, but distinct types: the two never compare equal.
	assert.Equal(t, Packet(5), p)
	assert.Equal(t, Message(5), m)
	assert.NotEqual(t, p, m)
}
