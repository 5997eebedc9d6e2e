package raop

import (
	"math/rand"
	"sync"
	"time"

	raoprtp "github.com/airraop/raop/rtp"
)

// AudioMetadata carries the currently-playing track's display metadata,
// sent to the receiver via SET_PARAMETER when it advertises Text metadata
// support.
type AudioMetadata struct {
	Title  string
	Artist string
	Album  string
	// Duration is the track length in seconds, used for the Progress
	// metadata's "end" field. Zero means unknown.
	Duration float64
}

// EmptyMetadata is the zero-value AudioMetadata that a new Context holds.
// SendAudio takes no metadata argument, and announceMetadata skips the
// Text SET_PARAMETER while a session's metadata is still EmptyMetadata.
var EmptyMetadata = AudioMetadata{}

// Context is the mutable state shared across every RAOP component for the
// lifetime of one stream: created at construction, populated by the
// Orchestrator during setup, read by the endpoints and streaming loop
// during playback, and discarded at close.
//
// Go's runtime schedules goroutines preemptively, so the fields touched
// from more than one goroutine (rtpseq, head_ts/rtptime and the
// negotiated ports) are guarded by a mutex with deliberately short
// critical sections.
type Context struct {
	mu sync.Mutex

	SampleRate      uint32
	Channels        int
	BytesPerChannel int

	rtpseq  *raoprtp.Sequencer
	headTS  uint32
	startTS uint32

	SessionID uint32
	Latency   uint32

	ControlPort int
	TimingPort  int
	ServerPort  int

	RTSPSession string

	Volume   float64
	Metadata AudioMetadata

	startTime time.Time
}

// DefaultLatency is the receiver buffer depth assumed absent other
// information: 2 seconds at 44.1kHz.
const DefaultLatency = 88200

// NewContext creates a Session Context for one stream. SessionID is
// randomized, serving as the stream's RTP SSRC.
func NewContext() *Context {
	return &Context{
		Latency:   DefaultLatency,
		SessionID: rand.Uint32(),
		Volume:    -20,
		rtpseq:    raoprtp.NewSequencer(),
	}
}

// Reset reinitializes the per-stream clock state. Called once the
// receiver's advertised sample rate/channels/bit depth are known.
func (c *Context) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.headTS = rand.Uint32()
	c.startTS = c.headTS
	c.rtpseq = raoprtp.NewSequencer()
}

// NextAudioPacket advances the sequence number and head timestamp for one
// audio packet and returns the values to stamp onto it. frames is the
// number of PCM frames actually read for this packet (may be less than
// FramesPerPacket at end of stream).
func (c *Context) NextAudioPacket(frames uint32) (seq uint16, timestamp uint32) {
	c.mu.Lock()
	defer c.mu.Unlock()
	seq = c.rtpseq.Next()
	timestamp = c.headTS
	c.headTS += frames
	return seq, timestamp
}

// CurrentSeqAndTimestamp returns the most recently issued sequence number
// and the current head timestamp without advancing either, used by RECORD
// and SET_PARAMETER metadata calls that must reference "now" in the
// stream's clock.
func (c *Context) CurrentSeqAndTimestamp() (seq uint16, timestamp uint32) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.rtpseq.Current(), c.headTS
}

// HeadTimestamp returns the current frame-clock position.
func (c *Context) HeadTimestamp() uint32 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.headTS
}

// StartTimestamp returns the frame-clock position captured when streaming began.
func (c *Context) StartTimestamp() uint32 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.startTS
}

// MarkPlaybackStart records wall-clock "now" as the moment playback began,
// used to derive Position.
func (c *Context) MarkPlaybackStart() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.startTime = time.Now()
}

// Position returns elapsed seconds since playback started.
func (c *Context) Position() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.startTime.IsZero() {
		return 0
	}
	return time.Since(c.startTime).Seconds()
}

// SetRemotePorts records the receiver's negotiated UDP ports and session
// token, parsed from the SETUP response's Transport header.
func (c *Context) SetRemotePorts(controlPort, timingPort, serverPort int, session string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ControlPort = controlPort
	c.TimingPort = timingPort
	c.ServerPort = serverPort
	c.RTSPSession = session
}

// FrameSize returns the byte size of one PCM frame (one sample per channel).
func (c *Context) FrameSize() int {
	return c.Channels * c.BytesPerChannel
}
