// Package raop implements a RAOP (AirPlay v1) streaming engine: session
// orchestration, the three UDP endpoints, the real-time pacing loop, the
// retransmission backlog, and the NTP/RTP timestamp discipline needed to
// stream PCM audio to a receiver once RTSP signalling has handed off.
package raop

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/airraop/raop/config"
	"github.com/airraop/raop/metrics"
	raoprtp "github.com/airraop/raop/rtp"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

// State is a position in the Session lifecycle state machine:
// Created -> Initialized -> Setup -> Streaming -> Stopped.
type State int

const (
	StateCreated State = iota
	StateInitialized
	StateSetup
	StateStreaming
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateCreated:
		return "created"
	case StateInitialized:
		return "initialized"
	case StateSetup:
		return "setup"
	case StateStreaming:
		return "streaming"
	case StateStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// Session owns the lifetime of one RAOP stream: the three UDP endpoints,
// the packet backlog, and the streaming loop. It is driven by an RTSP
// collaborator the caller supplies and never implements itself.
type Session struct {
	rtsp    RTSPCollaborator
	pairing PairingVerifier
	metrics *metrics.Registry
	cfg     config.Config
	log     zerolog.Logger

	listener *ListenerHandle

	mu    sync.Mutex
	state State

	ctx     *Context
	backlog *raoprtp.Backlog

	encryption    EncryptionType
	metadataTypes MetadataType

	timing  *timingEndpoint
	control *controlEndpoint
	sender  *audioSender
}

// SessionOption configures a Session at construction.
type SessionOption func(*Session)

// WithPairingVerifier supplies the legacy-pairing collaborator consulted
// when the receiver does not advertise MFiSAP.
func WithPairingVerifier(p PairingVerifier) SessionOption {
	return func(s *Session) { s.pairing = p }
}

// WithListener registers a lifecycle listener. The Session wraps it in a
// ListenerHandle of its own and does not hand that handle out, so the
// caller cannot invalidate it and the Session keeps the listener
// referenced for its whole lifetime.
func WithListener(l Listener) SessionOption {
	return func(s *Session) { s.listener = NewListenerHandle(l) }
}

// WithMetrics attaches a metrics registry. Without this option the engine
// runs with metrics recording disabled.
func WithMetrics(reg *metrics.Registry) SessionOption {
	return func(s *Session) { s.metrics = reg }
}

// WithConfig overrides the default engine tunables.
func WithConfig(cfg config.Config) SessionOption {
	return func(s *Session) { s.cfg = cfg }
}

// WithLogger overrides the default logger.
func WithLogger(log zerolog.Logger) SessionOption {
	return func(s *Session) { s.log = log }
}

// NewSession creates a Session in the Created state, driven by rtsp.
func NewSession(rtsp RTSPCollaborator, opts ...SessionOption) *Session {
	s := &Session{
		rtsp:  rtsp,
		cfg:   config.Default(),
		log:   zerolog.Nop(),
		state: StateCreated,
		ctx:   NewContext(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.backlog = raoprtp.NewBacklog(s.cfg.BacklogCapacity)
	s.ctx.Latency = s.cfg.DefaultLatencyFrames
	return s
}

// State reports the Session's current lifecycle position.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Session) setState(st State) {
	s.mu.Lock()
	s.state = st
	s.mu.Unlock()
	if s.metrics != nil {
		s.metrics.SessionState.Set(float64(st))
	}
}

// Initialize performs the Created -> Initialized transition: it validates
// the receiver's advertised encryption against what this engine supports,
// derives the audio format, and binds the Control and Timing UDP sockets.
func (s *Session) Initialize(properties map[string]string) error {
	if s.State() != StateCreated {
		return newError(ErrProtocol, "Initialize called outside the Created state", nil)
	}

	enc := ParseEncryptionTypes(properties)
	if enc&SupportedEncryptions == 0 {
		return newError(ErrNotSupported, "receiver advertises no supported encryption type", nil)
	}
	s.encryption = enc
	s.metadataTypes = ParseMetadataTypes(properties)

	sr, ch, bpc := AudioProperties(properties)
	s.ctx.SampleRate = sr
	s.ctx.Channels = ch
	s.ctx.BytesPerChannel = bpc
	s.ctx.Reset()

	localIP := s.rtsp.Connection().LocalIP()
	timing, err := newTimingEndpoint(localIP, s.log)
	if err != nil {
		return newError(ErrProtocol, "bind timing endpoint", err)
	}
	control, err := newControlEndpoint(localIP, s.ctx, s.backlog, s.metrics, s.log)
	if err != nil {
		closeAndLog(s.log, timing, "close timing endpoint after control bind failure")
		return newError(ErrProtocol, "bind control endpoint", err)
	}
	s.timing = timing
	s.control = control

	s.setState(StateInitialized)
	return nil
}

// setup performs the Initialized -> Setup transition: authentication,
// ANNOUNCE, SETUP, and parsing the negotiated Transport header.
func (s *Session) setup(ctx context.Context) error {
	if s.encryption&EncryptionMFiSAP != 0 {
		if err := s.rtsp.AuthSetup(ctx); err != nil {
			return newError(ErrAuthentication, "MFiSAP auth_setup failed", err)
		}
	} else if s.pairing != nil {
		if err := s.pairing.VerifyAuthenticated(ctx); err != nil {
			return newError(ErrAuthentication, "legacy pairing verification failed", err)
		}
	}

	if err := s.rtsp.Announce(ctx); err != nil {
		return newError(ErrProtocol, "ANNOUNCE failed", err)
	}

	resp, err := s.rtsp.Setup(ctx, s.control.Port(), s.timing.Port())
	if err != nil {
		return newError(ErrProtocol, "SETUP failed", err)
	}
	transport := ParseTransportHeader(resp.Headers["Transport"])
	s.ctx.SetRemotePorts(
		transport.IntOption("control_port"),
		transport.IntOption("timing_port"),
		transport.IntOption("server_port"),
		resp.Headers["Session"],
	)

	s.setState(StateSetup)
	return nil
}

// SendAudio drives a Session through Setup and Streaming and back to
// Stopped, streaming source until it is exhausted or the connection is
// lost. Once setup has begun, teardown (backlog clear, socket close,
// keep-alive cancel, control stop, listener notification) runs on every
// return path.
func (s *Session) SendAudio(ctx context.Context, source PCMSource) error {
	if s.State() != StateInitialized {
		return newError(ErrProtocol, "SendAudio called outside the Initialized state", nil)
	}

	if err := s.setup(ctx); err != nil {
		s.teardown(func() {}, new(errgroup.Group))
		return err
	}

	eg, egCtx := errgroup.WithContext(ctx)
	eg.Go(func() error { s.timing.Serve(); return nil })
	eg.Go(func() error { s.control.Serve(); return nil })

	keepAliveCtx, keepAliveCancel := context.WithCancel(egCtx)
	defer keepAliveCancel()

	remoteIP := s.rtsp.Connection().RemoteIP()
	localIP := s.rtsp.Connection().LocalIP()
	sender, err := newAudioSender(localIP, remoteIP, s.ctx.ServerPort, s.log)
	if err != nil {
		s.teardown(keepAliveCancel, eg)
		return newError(ErrProtocol, "bind audio socket", err)
	}
	s.sender = sender

	if err := s.control.StartSync(remoteIP, s.ctx.ControlPort); err != nil {
		s.teardown(keepAliveCancel, eg)
		return newError(ErrProtocol, "start control sync", err)
	}

	if err := s.announceMetadata(ctx, source); err != nil {
		s.teardown(keepAliveCancel, eg)
		return err
	}

	if resp, err := s.rtsp.Feedback(ctx, true); err == nil && resp.Code >= 200 && resp.Code < 300 {
		interval := time.Duration(s.cfg.KeepAliveIntervalSeconds) * time.Second
		eg.Go(func() error { runKeepAlive(keepAliveCtx, s.rtsp, interval, s.metrics, s.log); return nil })
	}

	s.ctx.MarkPlaybackStart()
	if l := s.listener.get(); l != nil {
		l.Playing(PlaybackInfo{Metadata: s.ctx.Metadata, Position: s.ctx.Position()})
	}

	seq, ts := s.ctx.CurrentSeqAndTimestamp()
	if err := s.rtsp.Record(ctx, seq, ts); err != nil {
		s.teardown(keepAliveCancel, eg)
		return newError(ErrProtocol, "RECORD failed", err)
	}

	s.setState(StateStreaming)
	_, streamErr := streamAudio(source, s.sender, s.ctx, s.backlog, s.control, s.metrics, s.log)

	if s.ctx.SampleRate > 0 {
		drain := time.Duration(float64(s.ctx.Latency) / float64(s.ctx.SampleRate) * float64(time.Second))
		time.Sleep(drain)
	}

	s.teardown(keepAliveCancel, eg)
	return wrapProtocolError(streamErr)
}

// announceMetadata issues the Progress/Text/volume SET_PARAMETER calls the
// Setup -> Streaming transition requires. Any error from these calls is
// returned as a Protocol error, which the caller treats as fatal.
func (s *Session) announceMetadata(ctx context.Context, source PCMSource) error {
	if s.metadataTypes&MetadataProgress != 0 {
		start := s.ctx.StartTimestamp()
		_, now := s.ctx.CurrentSeqAndTimestamp()
		end := start + uint32(source.Duration()*float64(s.ctx.SampleRate))
		progress := fmt.Sprintf("%d/%d/%d", start, now, end)
		if err := s.rtsp.SetParameter(ctx, "progress", progress); err != nil {
			return newError(ErrProtocol, "SET_PARAMETER progress failed", err)
		}
	}
	if s.metadataTypes&MetadataText != 0 && s.ctx.Metadata != EmptyMetadata {
		seq, ts := s.ctx.CurrentSeqAndTimestamp()
		if err := s.rtsp.SetMetadata(ctx, seq, ts, s.ctx.Metadata); err != nil {
			return newError(ErrProtocol, "SET_PARAMETER metadata failed", err)
		}
	}
	if err := s.rtsp.SetParameter(ctx, "volume", fmt.Sprintf("%.6f", s.ctx.Volume)); err != nil {
		return newError(ErrProtocol, "SET_PARAMETER volume failed", err)
	}
	return nil
}

// teardown implements the Streaming -> Stopped transition, unconditionally.
func (s *Session) teardown(keepAliveCancel context.CancelFunc, eg *errgroup.Group) {
	s.backlog.Clear()
	if s.sender != nil {
		closeAndLog(s.log, s.sender, "close audio socket")
	}
	keepAliveCancel()
	if s.control != nil {
		closeAndLog(s.log, s.control, "close control endpoint")
	}
	if s.timing != nil {
		closeAndLog(s.log, s.timing, "close timing endpoint")
	}
	_ = eg.Wait()

	if l := s.listener.get(); l != nil {
		l.Stopped()
	}
	s.setState(StateStopped)
}
