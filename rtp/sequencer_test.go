package rtp

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSequencerNextIncrements(t *testing.T) {
	s := NewSequencerFrom(10)
	assert.Equal(t, uint16(10), s.Next())
	assert.Equal(t, uint16(11), s.Next())
	assert.Equal(t, uint16(11), s.Current())
}

func TestSequencerWrapsAroundUint16Boundary(t *testing.T) {
	s := NewSequencerFrom(0xFFFF)
	assert.Equal(t, uint16(0xFFFF), s.Next())
	assert.Equal(t, uint16(0x0000), s.Next())
}
