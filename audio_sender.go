package raop

import (
	"fmt"
	"net"

	"github.com/rs/zerolog"
)

// audioSender is a UDP "connected" endpoint whose remote address is the
// receiver's server_port. It offers a single non-blocking Send and an
// IsClosing probe: on a send error the socket is closed immediately and the
// streaming loop observes the closure on its next tick rather than
// propagating the error.
type audioSender struct {
	conn   *net.UDPConn
	closed bool
	log    zerolog.Logger
}

func newAudioSender(localIP string, remoteIP string, remotePort int, log zerolog.Logger) (*audioSender, error) {
	raddr, err := net.ResolveUDPAddr("udp", fmt.Sprintf("%s:%d", remoteIP, remotePort))
	if err != nil {
		return nil, fmt.Errorf("raop: resolve audio remote addr: %w", err)
	}
	laddr, err := net.ResolveUDPAddr("udp", fmt.Sprintf("%s:0", localIP))
	if err != nil {
		return nil, fmt.Errorf("raop: resolve audio local addr: %w", err)
	}
	conn, err := net.DialUDP("udp", laddr, raddr)
	if err != nil {
		return nil, fmt.Errorf("raop: dial audio socket: %w", err)
	}
	return &audioSender{conn: conn, log: log}, nil
}

// Send writes an audio packet. On failure the socket is closed so future
// IsClosing calls report true.
func (a *audioSender) Send(data []byte) error {
	if a.closed {
		return net.ErrClosed
	}
	if _, err := a.conn.Write(data); err != nil {
		a.log.Error().Err(err).Msg("audio send failed, closing socket")
		a.closed = true
		a.conn.Close()
		return err
	}
	return nil
}

// IsClosing reports whether the socket has been closed, either explicitly
// or after a send error.
func (a *audioSender) IsClosing() bool {
	return a.closed
}

func (a *audioSender) Close() error {
	if a.closed {
		return nil
	}
	a.closed = true
	return a.conn.Close()
}
