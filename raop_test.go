package raop

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeConnection struct {
	localIP, remoteIP string
}

func (c fakeConnection) LocalIP() string  { return c.localIP }
func (c fakeConnection) RemoteIP() string { return c.remoteIP }

type fakeRTSP struct {
	mu sync.Mutex

	announceErr error
	setupErr    error
	recordErr   error

	feedbackCode  int
	feedbackErr   error
	feedbackCalls int

	transport map[string]string
}

func newFakeRTSP() *fakeRTSP {
	return &fakeRTSP{
		feedbackCode: 200,
		transport: map[string]string{
			"control_port": "6001",
			"timing_port":  "6002",
			"server_port":  "6000",
		},
	}
}

func (f *fakeRTSP) Connection() RTSPConnection {
	return fakeConnection{localIP: "127.0.0.1", remoteIP: "127.0.0.1"}
}

func (f *fakeRTSP) AuthSetup(ctx context.Context) error { return nil }

func (f *fakeRTSP) Announce(ctx context.Context) error { return f.announceErr }

func (f *fakeRTSP) Setup(ctx context.Context, localControlPort, localTimingPort int) (RTSPResponse, error) {
	if f.setupErr != nil {
		return RTSPResponse{}, f.setupErr
	}
	header := ""
	for k, v := range f.transport {
		header += k + "=" + v + ";"
	}
	return RTSPResponse{Code: 200, Headers: map[string]string{"Transport": header, "Session": "1"}}, nil
}

func (f *fakeRTSP) Record(ctx context.Context, rtpseq uint16, rtptime uint32) error {
	return f.recordErr
}

func (f *fakeRTSP) SetParameter(ctx context.Context, name, value string) error { return nil }

func (f *fakeRTSP) SetMetadata(ctx context.Context, rtpseq uint16, rtptime uint32, metadata AudioMetadata) error {
	return nil
}

func (f *fakeRTSP) Feedback(ctx context.Context, allowError bool) (RTSPResponse, error) {
	f.mu.Lock()
	f.feedbackCalls++
	f.mu.Unlock()
	if f.feedbackErr != nil {
		return RTSPResponse{}, f.feedbackErr
	}
	return RTSPResponse{Code: f.feedbackCode}, nil
}

func TestInitializeFailsClosedOnUnsupportedEncryption(t *testing.T) {
	s := NewSession(newFakeRTSP())
	err := s.Initialize(map[string]string{"et": "3"}) // FairPlay only, unsupported

	require.Error(t, err)
	var raopErr *Error
	require.ErrorAs(t, err, &raopErr)
	assert.Equal(t, ErrNotSupported, raopErr.Kind)
	assert.Equal(t, StateCreated, s.State())
}

func TestInitializeAcceptsUnencryptedAndTransitions(t *testing.T) {
	s := NewSession(newFakeRTSP())
	err := s.Initialize(map[string]string{"et": "0", "sr": "44100", "ch": "2"})

	require.NoError(t, err)
	assert.Equal(t, StateInitialized, s.State())
	closeAndLog(s.log, s.timing, "close timing in test")
	closeAndLog(s.log, s.control, "close control in test")
}

func TestSendAudioOutsideInitializedStateFails(t *testing.T) {
	s := NewSession(newFakeRTSP())
	err := s.SendAudio(context.Background(), &stubPCMSource{})

	require.Error(t, err)
	var raopErr *Error
	require.ErrorAs(t, err, &raopErr)
	assert.Equal(t, ErrProtocol, raopErr.Kind)
}

func TestSendAudioTeardownAlwaysRunsOnSetupFailure(t *testing.T) {
	rtsp := newFakeRTSP()
	rtsp.announceErr = assertableErr{"announce failed"}
	listener := &recordingListener{}

	s := NewSession(rtsp, WithListener(listener))
	require.NoError(t, s.Initialize(map[string]string{"et": "0", "sr": "44100", "ch": "2"}))

	err := s.SendAudio(context.Background(), &stubPCMSource{})
	require.Error(t, err)
	assert.Equal(t, StateStopped, s.State())
}

func TestSendAudioStreamsAndTearsDownOnSuccess(t *testing.T) {
	rtsp := newFakeRTSP()
	listener := &recordingListener{}

	s := NewSession(rtsp, WithListener(listener))
	require.NoError(t, s.Initialize(map[string]string{"et": "0", "sr": "44100", "ch": "2"}))

	source := &stubPCMSource{frames: [][]byte{make([]byte, FramesPerPacket*4)}}
	err := s.SendAudio(context.Background(), source)

	require.NoError(t, err)
	assert.Equal(t, StateStopped, s.State())
	assert.Equal(t, 1, listener.playing)
	assert.Equal(t, 1, listener.stopped)
}

type assertableErr struct{ msg string }

func (e assertableErr) Error() string { return e.msg }
