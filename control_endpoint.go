package raop

import (
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/airraop/raop/metrics"
	raoprtp "github.com/airraop/raop/rtp"
	"github.com/eclesh/welford"
	"github.com/rs/zerolog"
)

// controlEndpoint is the UDP listener+sender bound to the local control
// port. It emits a sync packet once per second and services retransmit
// requests from the backlog.
type controlEndpoint struct {
	conn    *net.UDPConn
	ctx     *Context
	backlog *raoprtp.Backlog
	metrics *metrics.Registry
	log     zerolog.Logger

	mu          sync.Mutex
	remoteAddr  *net.UDPAddr
	firstSync   bool
	stopSync    chan struct{}
	syncRunning bool
	jitter      *welford.Stats
}

func newControlEndpoint(localIP string, ctx *Context, backlog *raoprtp.Backlog, reg *metrics.Registry, log zerolog.Logger) (*controlEndpoint, error) {
	conn, err := net.ListenUDP("udp", &net.UDPAddr{IP: net.ParseIP(localIP)})
	if err != nil {
		return nil, fmt.Errorf("raop: bind control socket: %w", err)
	}
	return &controlEndpoint{
		conn:    conn,
		ctx:     ctx,
		backlog: backlog,
		metrics: reg,
		log:     log,
		jitter:  welford.New(),
	}, nil
}

// Port returns the bound ephemeral local port, reported to the Orchestrator
// for SETUP.
func (c *controlEndpoint) Port() int {
	return c.conn.LocalAddr().(*net.UDPAddr).Port
}

// StartSync begins the once-per-second sync emission to remoteAddr. It is
// cancellable via StopSync and may be restarted once afterward.
func (c *controlEndpoint) StartSync(remoteIP string, remotePort int) error {
	raddr, err := net.ResolveUDPAddr("udp", fmt.Sprintf("%s:%d", remoteIP, remotePort))
	if err != nil {
		return fmt.Errorf("raop: resolve control remote addr: %w", err)
	}

	c.mu.Lock()
	if c.syncRunning {
		c.mu.Unlock()
		return nil
	}
	c.remoteAddr = raddr
	c.firstSync = true
	c.stopSync = make(chan struct{})
	c.syncRunning = true
	stop := c.stopSync
	c.mu.Unlock()

	go c.runSync(stop)
	return nil
}

// StopSync cancels the periodic sync emission. Safe to call more than once.
func (c *controlEndpoint) StopSync() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.syncRunning {
		return
	}
	close(c.stopSync)
	c.syncRunning = false
}

func (c *controlEndpoint) runSync(stop chan struct{}) {
	c.emitSync()

	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			c.emitSync()
		}
	}
}

func (c *controlEndpoint) emitSync() {
	c.mu.Lock()
	first := c.firstSync
	c.firstSync = false
	raddr := c.remoteAddr
	c.mu.Unlock()

	headTS := c.ctx.HeadTimestamp()
	pkt := raoprtp.SyncPacket{
		FirstPacket:    first,
		TimestampLow:   headTS - c.ctx.Latency,
		CurrentTimeNTP: raoprtp.FramesToNTP(uint64(headTS), c.ctx.SampleRate),
		RTPTimestamp:   headTS,
	}
	if _, err := c.conn.WriteToUDP(pkt.Encode(), raddr); err != nil {
		c.log.Error().Err(err).Msg("sync packet send failed")
		return
	}
	if c.metrics != nil {
		c.metrics.SyncPacketsSent.Inc()
	}
}

// Serve reads retransmit requests until the socket is closed, answering
// each from the backlog.
func (c *controlEndpoint) Serve() {
	buf := make([]byte, 128)
	for {
		n, addr, err := c.conn.ReadFromUDP(buf)
		if err != nil {
			if isClosedConnError(err) {
				return
			}
			c.log.Error().Err(err).Msg("control endpoint read error")
			continue
		}
		if n < 2 || !raoprtp.IsRetransmitRequest(buf[1]) {
			continue
		}
		req, err := raoprtp.DecodeRetransmitRequest(buf[:n])
		if err != nil {
			c.log.Debug().Err(err).Msg("dropping malformed retransmit request")
			continue
		}
		c.serveRetransmit(req, addr)
	}
}

func (c *controlEndpoint) serveRetransmit(req raoprtp.RetransmitRequest, addr *net.UDPAddr) {
	for _, seq := range raoprtp.Seq16Range(req.LostSeqno, req.LostPackets) {
		original, ok := c.backlog.Get(seq)
		if !ok {
			c.log.Debug().Uint16("seq", seq).Msg("retransmit request for a packet no longer in the backlog")
			if c.metrics != nil {
				c.metrics.RetransmitsMissed.Inc()
			}
			continue
		}
		resp, err := raoprtp.EncodeRetransmitResponse(original)
		if err != nil {
			c.log.Error().Err(err).Uint16("seq", seq).Msg("encode retransmit response")
			continue
		}
		if _, err := c.conn.WriteToUDP(resp, addr); err != nil {
			c.log.Error().Err(err).Msg("retransmit response send failed")
			continue
		}
		if c.metrics != nil {
			c.metrics.RetransmitsServed.Inc()
		}
	}
}

// sampleFramesBehind feeds one frames_behind observation into the running
// jitter estimate and the live gauge, called once per streaming loop tick.
func (c *controlEndpoint) sampleFramesBehind(framesBehind float64) {
	c.mu.Lock()
	c.jitter.Add(framesBehind)
	stddev := c.jitter.Stddev()
	c.mu.Unlock()

	if c.metrics != nil {
		c.metrics.FramesBehind.Set(framesBehind)
		c.metrics.FramesBehindJitter.Set(stddev)
	}
}

func (c *controlEndpoint) Close() error {
	c.StopSync()
	return c.conn.Close()
}
