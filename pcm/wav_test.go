package pcm

import (
	"bytes"
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// buildWAV assembles a minimal PCM WAV file in memory: RIFF/WAVE header,
// a 16-byte "fmt " chunk, and a "data" chunk holding pcm verbatim.
func buildWAV(t *testing.T, sampleRate uint32, channels uint16, bitsPerSample uint16, pcmData []byte) []byte {
	t.Helper()
	var buf bytes.Buffer

	blockAlign := channels * (bitsPerSample / 8)
	byteRate := sampleRate * uint32(blockAlign)

	buf.WriteString("RIFF")
	binary.Write(&buf, binary.LittleEndian, uint32(36+len(pcmData)))
	buf.WriteString("WAVE")

	buf.WriteString("fmt ")
	binary.Write(&buf, binary.LittleEndian, uint32(16))
	binary.Write(&buf, binary.LittleEndian, uint16(1)) // PCM
	binary.Write(&buf, binary.LittleEndian, channels)
	binary.Write(&buf, binary.LittleEndian, sampleRate)
	binary.Write(&buf, binary.LittleEndian, byteRate)
	binary.Write(&buf, binary.LittleEndian, blockAlign)
	binary.Write(&buf, binary.LittleEndian, bitsPerSample)

	buf.WriteString("data")
	binary.Write(&buf, binary.LittleEndian, uint32(len(pcmData)))
	buf.Write(pcmData)

	return buf.Bytes()
}

func TestWavSourceReadsFormatAndFrames(t *testing.T) {
	pcmData := make([]byte, 352*4*2) // two packets' worth, stereo 16-bit
	for i := range pcmData {
		pcmData[i] = byte(i)
	}
	wav := buildWAV(t, 44100, 2, 16, pcmData)

	src, err := NewWavSource(bytes.NewReader(wav))
	require.NoError(t, err)

	assert.Equal(t, uint32(44100), src.SampleRate())
	assert.Equal(t, 2, src.Channels())
	assert.Equal(t, 2, src.BytesPerChannel())

	frame1, err := src.ReadFrames(352)
	require.NoError(t, err)
	assert.Len(t, frame1, 352*4)
	assert.Equal(t, pcmData[:352*4], frame1)

	frame2, err := src.ReadFrames(352)
	require.NoError(t, err)
	assert.Len(t, frame2, 352*4)

	frame3, err := src.ReadFrames(352)
	require.NoError(t, err)
	assert.Empty(t, frame3)
}

func TestWavSourceDuration(t *testing.T) {
	pcmData := make([]byte, 44100*4) // exactly one second, stereo 16-bit
	wav := buildWAV(t, 44100, 2, 16, pcmData)

	src, err := NewWavSource(bytes.NewReader(wav))
	require.NoError(t, err)
	assert.InDelta(t, 1.0, src.Duration(), 0.01)
}
