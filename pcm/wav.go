// Package pcm provides concrete PCM Source implementations backed by
// audio containers. Only WAV is implemented; any other container is left
// to an external decoder behind the same interface.
package pcm

import (
	"fmt"
	"io"

	"github.com/go-audio/riff"
)

// WavSource reads raw PCM frames out of a WAV file's data chunk, built on
// riff.Parser, and reports its format and duration.
type WavSource struct {
	riff.Parser
	chunkData *riff.Chunk

	sampleRate      uint32
	channels        int
	bytesPerChannel int
	frameSize       int
	duration        float64

	eof bool
}

// NewWavSource opens a WAV source reading from r. r must remain valid for
// the lifetime of the returned source.
func NewWavSource(r io.Reader) (*WavSource, error) {
	s := &WavSource{Parser: *riff.New(r)}
	if err := s.readFormat(); err != nil {
		return nil, fmt.Errorf("pcm: read wav header: %w", err)
	}
	if err := s.readDataChunk(); err != nil {
		return nil, fmt.Errorf("pcm: read wav data chunk: %w", err)
	}
	s.frameSize = s.channels * s.bytesPerChannel
	if s.sampleRate > 0 && s.frameSize > 0 {
		totalFrames := float64(s.chunkData.Size) / float64(s.frameSize)
		s.duration = totalFrames / float64(s.sampleRate)
	}
	return s, nil
}

func (s *WavSource) readFormat() error {
	if err := s.ParseHeaders(); err != nil {
		return err
	}
	for {
		chunk, err := s.NextChunk()
		if err != nil {
			return err
		}
		if chunk.ID != riff.FmtID {
			chunk.Drain()
			continue
		}
		if err := chunk.DecodeWavHeader(&s.Parser); err != nil {
			return err
		}
		s.sampleRate = uint32(s.Parser.SampleRate)
		s.channels = int(s.Parser.NumChannels)
		s.bytesPerChannel = int(s.Parser.BitsPerSample) / 8
		return nil
	}
}

func (s *WavSource) readDataChunk() error {
	for {
		chunk, err := s.NextChunk()
		if err != nil {
			return err
		}
		if chunk.ID != riff.DataFormatID {
			chunk.Drain()
			continue
		}
		s.chunkData = chunk
		return nil
	}
}

// SampleRate, Channels and BytesPerChannel report the format read from
// the WAV header. The Orchestrator does not read them: the Session
// Context's format comes from the receiver's advertised "sr"/"ch"/"ss"
// properties.
func (s *WavSource) SampleRate() uint32    { return s.sampleRate }
func (s *WavSource) Channels() int         { return s.channels }
func (s *WavSource) BytesPerChannel() int  { return s.bytesPerChannel }

// ReadFrames reads up to n frames of PCM. It returns fewer than n*frameSize
// bytes, down to zero, at end of stream.
func (s *WavSource) ReadFrames(n int) ([]byte, error) {
	if s.eof || s.frameSize == 0 {
		return nil, nil
	}
	buf := make([]byte, n*s.frameSize)
	read := 0
	for read < len(buf) {
		m, err := s.chunkData.Read(buf[read:])
		read += m
		if err != nil {
			if err == io.EOF {
				s.eof = true
				break
			}
			return nil, fmt.Errorf("pcm: read wav data: %w", err)
		}
		if m == 0 {
			s.eof = true
			break
		}
	}
	// Trim to a whole number of frames; a short final read is allowed by
	// the PCM Source contract but a partial frame is not.
	whole := (read / s.frameSize) * s.frameSize
	return buf[:whole], nil
}

// Duration returns the track length in seconds.
func (s *WavSource) Duration() float64 {
	return s.duration
}
