package raop

import (
	"time"

	raoprtp "github.com/airraop/raop/rtp"
	"github.com/airraop/raop/metrics"
	"github.com/rs/zerolog"
)

// FramesPerPacket is the number of PCM frames carried by one audio packet.
const FramesPerPacket = 352

// MaxPacketsCompensate caps how many extra packets a single catch-up burst
// will send when the loop has fallen behind schedule.
const MaxPacketsCompensate = 3

// Statistics tracks the streaming loop's pacing state for one run: total
// frames sent, the running count within the current one-second interval,
// and when that interval began. It is read by the Control Endpoint's
// jitter sampling and by callers wanting a live position/throughput view.
type Statistics struct {
	startTimeNanos  uint64
	totalFrames     uint64
	intervalFrames  uint64
	intervalTimeSec float64
}

func newStatistics() *Statistics {
	return &Statistics{
		startTimeNanos:  raoprtp.MonotonicNowNanos(),
		intervalTimeSec: nanosToSeconds(raoprtp.MonotonicNowNanos()),
	}
}

func nanosToSeconds(n uint64) float64 {
	return float64(n) / 1e9
}

// expectedFrameCount is how many frames should have been sent by now if
// the stream played at exactly sampleRate frames/s since the loop started.
func (s *Statistics) expectedFrameCount(sampleRate uint32) float64 {
	elapsed := nanosToSeconds(raoprtp.MonotonicNowNanos()) - nanosToSeconds(s.startTimeNanos)
	return elapsed * float64(sampleRate)
}

// framesBehind is positive when the loop has sent fewer frames than the
// sample rate implies should have elapsed by now.
func (s *Statistics) framesBehind(sampleRate uint32) float64 {
	return s.expectedFrameCount(sampleRate) - float64(s.totalFrames)
}

func (s *Statistics) recordSent(frames uint32) {
	s.totalFrames += uint64(frames)
	s.intervalFrames += uint64(frames)
}

func (s *Statistics) intervalCompleted(sampleRate uint32) bool {
	return s.intervalFrames >= uint64(sampleRate)
}

func (s *Statistics) resetInterval() {
	s.intervalFrames = 0
	s.intervalTimeSec = nanosToSeconds(raoprtp.MonotonicNowNanos())
}

// TotalFrames returns the cumulative number of PCM frames sent so far.
func (s *Statistics) TotalFrames() uint64 {
	return s.totalFrames
}

// audioDatagramSender is the subset of audioSender the streaming loop
// depends on, narrowed to an interface so the pacing/catch-up logic can be
// exercised against a fake sender in tests without opening real sockets.
type audioDatagramSender interface {
	Send(data []byte) error
	IsClosing() bool
}

// streamAudio runs the pacing/catch-up loop until source is exhausted or
// sender closes. It owns no resources of its own; session, sender, backlog
// and ctrl outlive it and are torn down by the caller.
func streamAudio(source PCMSource, sender audioDatagramSender, session *Context, backlog *raoprtp.Backlog, ctrl *controlEndpoint, reg *metrics.Registry, log zerolog.Logger) (*Statistics, error) {
	stats := newStatistics()
	packetsPerSecond := float64(session.SampleRate) / float64(FramesPerPacket)
	packetInterval := 1.0 / packetsPerSecond

	// first is true only for the very first audio packet of the stream.
	// Compensation packets sent later in the same tick, and every packet
	// on every subsequent tick, always carry the marker bit clear.
	first := true

	for {
		tickStart := raoprtp.MonotonicNowNanos()

		sent, exhausted, err := sendOnePacket(source, sender, session, backlog, reg, first)
		if err != nil {
			return stats, err
		}
		if sent == 0 {
			return stats, nil
		}
		first = false
		stats.recordSent(sent)
		if exhausted {
			return stats, nil
		}

		if sender.IsClosing() {
			return stats, nil
		}

		framesBehind := stats.framesBehind(session.SampleRate)
		if framesBehind >= FramesPerPacket {
			extra := int(framesBehind / FramesPerPacket)
			if extra > MaxPacketsCompensate {
				extra = MaxPacketsCompensate
			}
			for i := 0; i < extra; i++ {
				sent, exhausted, err := sendOnePacket(source, sender, session, backlog, reg, false)
				if err != nil {
					return stats, err
				}
				if sent == 0 {
					return stats, nil
				}
				stats.recordSent(sent)
				if exhausted || sender.IsClosing() {
					return stats, nil
				}
			}
		}

		if ctrl != nil {
			ctrl.sampleFramesBehind(stats.framesBehind(session.SampleRate))
		}

		if stats.intervalCompleted(session.SampleRate) {
			elapsed := nanosToSeconds(raoprtp.MonotonicNowNanos()) - stats.intervalTimeSec
			log.Debug().Float64("elapsed_s", elapsed).Uint32("frames", session.SampleRate).
				Msg("streaming interval completed")
			stats.resetInterval()
		}

		processingTime := nanosToSeconds(raoprtp.MonotonicNowNanos() - tickStart)
		if processingTime < packetInterval {
			sleepFor := packetInterval - 2*processingTime
			if sleepFor > 0 {
				time.Sleep(time.Duration(sleepFor * float64(time.Second)))
			}
		} else {
			seq, _ := session.CurrentSeqAndTimestamp()
			log.Warn().Float64("processing_time_s", processingTime).Uint16("last_seq", seq).
				Msg("streaming loop running too slow to keep pace")
		}
	}
}

// sendOnePacket reads one packet's worth of PCM frames, builds and sends
// the audio packet, and inserts it into the backlog. frames is the number
// of PCM frames actually read (0 at end of stream); exhausted reports
// whether the source has nothing further to offer.
func sendOnePacket(source PCMSource, sender audioDatagramSender, session *Context, backlog *raoprtp.Backlog, reg *metrics.Registry, first bool) (frames uint32, exhausted bool, err error) {
	pcm, err := source.ReadFrames(FramesPerPacket)
	if err != nil {
		return 0, true, wrapProtocolError(err)
	}
	if len(pcm) == 0 {
		return 0, true, nil
	}

	frameSize := session.FrameSize()
	n := uint32(len(pcm) / frameSize)
	seq, timestamp := session.NextAudioPacket(n)

	header, err := raoprtp.EncodeAudioHeader(first, seq, timestamp, session.SessionID)
	if err != nil {
		return 0, false, wrapProtocolError(err)
	}
	packet := append(header, raoprtp.WrapALAC(pcm, session.Channels)...)

	backlog.Insert(seq, packet)
	if reg != nil {
		reg.BacklogSize.Set(float64(backlog.Len()))
	}

	if err := sender.Send(packet); err != nil {
		return n, n < FramesPerPacket, nil
	}
	if reg != nil {
		reg.AudioPacketsSent.Inc()
	}

	return n, n < FramesPerPacket, nil
}
