package raop

import (
	"fmt"
	"net"

	raoprtp "github.com/airraop/raop/rtp"
	"github.com/rs/zerolog"
)

// timingEndpoint is a UDP listener bound to an ephemeral local port that
// reflects every inbound timing-request packet with a three-timestamp
// response.
type timingEndpoint struct {
	conn *net.UDPConn
	log  zerolog.Logger
}

func newTimingEndpoint(localIP string, log zerolog.Logger) (*timingEndpoint, error) {
	conn, err := net.ListenUDP("udp", &net.UDPAddr{IP: net.ParseIP(localIP)})
	if err != nil {
		return nil, fmt.Errorf("raop: bind timing socket: %w", err)
	}
	return &timingEndpoint{conn: conn, log: log}, nil
}

// Port returns the bound ephemeral local port, reported to the Orchestrator
// for SETUP.
func (t *timingEndpoint) Port() int {
	return t.conn.LocalAddr().(*net.UDPAddr).Port
}

// Serve reads and reflects timing packets until the socket is closed.
// Malformed inbound packets are dropped silently.
func (t *timingEndpoint) Serve() {
	buf := make([]byte, 64)
	for {
		n, addr, err := t.conn.ReadFromUDP(buf)
		if err != nil {
			if isClosedConnError(err) {
				return
			}
			t.log.Error().Err(err).Msg("timing endpoint read error")
			continue
		}

		req, err := raoprtp.DecodeTimingPacket(buf[:n])
		if err != nil {
			t.log.Debug().Err(err).Msg("dropping malformed timing packet")
			continue
		}

		now := raoprtp.NTPNow()
		resp := raoprtp.ReflectTimingPacket(req, now)
		if _, err := t.conn.WriteToUDP(resp.Encode(), addr); err != nil {
			t.log.Error().Err(err).Msg("timing response send failed")
		}
	}
}

func (t *timingEndpoint) Close() error {
	return t.conn.Close()
}

func isClosedConnError(err error) bool {
	return err != nil && errorIsClosed(err)
}
