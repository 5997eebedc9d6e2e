package rtp

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestWrapALACPrefixStereo(t *testing.T) {
	pcm := []byte{0x01, 0x02, 0x03, 0x04}
	wrapped := WrapALAC(pcm, 2)

	require := assert.New(t)
	require.Len(wrapped, 3+len(pcm))
	// "00" + channels-1(2 bits)=01 + 19 zero bits + "1" = 0x100001
	require.Equal(byte(0x10), wrapped[0])
	require.Equal(byte(0x00), wrapped[1])
	require.Equal(byte(0x01), wrapped[2])
}

func TestWrapALACByteSwapsSamples(t *testing.T) {
	pcm := []byte{0x01, 0x02, 0x03, 0x04}
	wrapped := WrapALAC(pcm, 2)

	assert.Equal(t, []byte{0x02, 0x01, 0x04, 0x03}, wrapped[3:])
}

func TestWrapALACMonoPrefix(t *testing.T) {
	wrapped := WrapALAC([]byte{0x00, 0x00}, 1)
	// "00" + channels-1(2 bits)=00 + 19 zero bits + "1" = 0x000001
	assert.Equal(t, []byte{0x00, 0x00, 0x01}, wrapped[:3])
}
