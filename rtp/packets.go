package rtp

import (
	"encoding/binary"
	"errors"
	"fmt"

	pionrtp "github.com/pion/rtp"
)

// ErrShortPacket is returned when a buffer is too small to hold a packet
// of the expected fixed layout.
var ErrShortPacket = errors.New("raop/rtp: short packet")

const (
	// FirstPacketPayloadType is the RTP payload-type byte (with marker bit
	// set) used on the first audio packet of a stream.
	FirstPacketPayloadType = 0xE0
	// SubsequentPacketPayloadType is the RTP payload-type byte used on
	// every audio packet after the first.
	SubsequentPacketPayloadType = 0x60

	syncPacketType       = 0xD4
	syncPacketLength     = 0x0007
	retransmitType       = 0x55
	retransmitRespPrefix = 0xD6
	timingRespType       = 0x53 | 0x80
	timingPacketLength   = 0x0007
)

// EncodeAudioHeader builds the 12-byte RTP header for a RAOP audio packet.
// The RAOP audio header is byte-for-byte a standard RFC 3550 RTP header
// with no CSRC list and no extension, so it is marshaled with pion/rtp.
func EncodeAudioHeader(firstPacket bool, seq uint16, timestamp uint32, ssrc uint32) ([]byte, error) {
	h := pionrtp.Header{
		Version:        2,
		Marker:         firstPacket,
		PayloadType:    0x60,
		SequenceNumber: seq,
		Timestamp:      timestamp,
		SSRC:           ssrc,
	}
	buf := make([]byte, h.MarshalSize())
	n, err := h.MarshalTo(buf)
	if err != nil {
		return nil, fmt.Errorf("raop/rtp: marshal audio header: %w", err)
	}
	return buf[:n], nil
}

// DecodeAudioHeader parses the 12-byte RTP header from a RAOP audio
// packet, primarily used by tests that round-trip encoded packets.
func DecodeAudioHeader(data []byte) (pionrtp.Header, error) {
	h := pionrtp.Header{}
	if _, err := h.Unmarshal(data); err != nil {
		return h, fmt.Errorf("raop/rtp: unmarshal audio header: %w", err)
	}
	return h, nil
}

// SyncPacket is the 20-byte periodic clock-anchor packet sent on the
// control channel so the receiver can align its render clock.
type SyncPacket struct {
	FirstPacket   bool
	TimestampLow  uint32 // rtptime - latency
	CurrentTimeNTP uint64
	RTPTimestamp  uint32
}

// Encode serializes a SyncPacket into its 20-byte wire form.
func (p SyncPacket) Encode() []byte {
	flags := byte(0x80)
	if p.FirstPacket {
		flags = 0x90
	}
	buf := make([]byte, 20)
	buf[0] = flags
	buf[1] = syncPacketType
	binary.BigEndian.PutUint16(buf[2:4], syncPacketLength)
	binary.BigEndian.PutUint32(buf[4:8], p.TimestampLow)
	binary.BigEndian.PutUint64(buf[8:16], p.CurrentTimeNTP)
	binary.BigEndian.PutUint32(buf[16:20], p.RTPTimestamp)
	return buf
}

// DecodeSyncPacket parses a 20-byte sync packet. Exposed mainly for tests
// verifying round-trip correctness.
func DecodeSyncPacket(data []byte) (SyncPacket, error) {
	if len(data) < 20 {
		return SyncPacket{}, ErrShortPacket
	}
	return SyncPacket{
		FirstPacket:    data[0] == 0x90,
		TimestampLow:   binary.BigEndian.Uint32(data[4:8]),
		CurrentTimeNTP: binary.BigEndian.Uint64(data[8:16]),
		RTPTimestamp:   binary.BigEndian.Uint32(data[16:20]),
	}, nil
}

// TimingPacket is the 32-byte NTP-style timing request/response exchanged
// over the timing channel.
type TimingPacket struct {
	Proto         byte
	Type          byte
	OriginSec     uint32
	OriginFrac    uint32
	ReceiveSec    uint32
	ReceiveFrac   uint32
	TransmitSec   uint32
	TransmitFrac  uint32
}

// DecodeTimingPacket parses a 32-byte timing packet.
func DecodeTimingPacket(data []byte) (TimingPacket, error) {
	if len(data) < 32 {
		return TimingPacket{}, ErrShortPacket
	}
	return TimingPacket{
		Proto:        data[0],
		Type:         data[1],
		OriginSec:    binary.BigEndian.Uint32(data[8:12]),
		OriginFrac:   binary.BigEndian.Uint32(data[12:16]),
		ReceiveSec:   binary.BigEndian.Uint32(data[16:20]),
		ReceiveFrac:  binary.BigEndian.Uint32(data[20:24]),
		TransmitSec:  binary.BigEndian.Uint32(data[24:28]),
		TransmitFrac: binary.BigEndian.Uint32(data[28:32]),
	}, nil
}

// Encode serializes a TimingPacket into its 32-byte wire form.
func (p TimingPacket) Encode() []byte {
	buf := make([]byte, 32)
	buf[0] = p.Proto
	buf[1] = p.Type
	binary.BigEndian.PutUint16(buf[2:4], timingPacketLength)
	binary.BigEndian.PutUint32(buf[4:8], 0)
	binary.BigEndian.PutUint32(buf[8:12], p.OriginSec)
	binary.BigEndian.PutUint32(buf[12:16], p.OriginFrac)
	binary.BigEndian.PutUint32(buf[16:20], p.ReceiveSec)
	binary.BigEndian.PutUint32(buf[20:24], p.ReceiveFrac)
	binary.BigEndian.PutUint32(buf[24:28], p.TransmitSec)
	binary.BigEndian.PutUint32(buf[28:32], p.TransmitFrac)
	return buf
}

// ReflectTimingPacket builds the response to a timing request: the
// client's send timestamp is echoed unmodified into the origin field, and
// a single sampling of "now" fills both the receive and transmit
// timestamps (local processing is sub-microsecond next to >=1ms network
// transit, so a single sample suffices).
func ReflectTimingPacket(req TimingPacket, now uint64) TimingPacket {
	nowSec, nowFrac := NTPParts(now)
	return TimingPacket{
		Proto:        req.Proto,
		Type:         timingRespType,
		OriginSec:    req.TransmitSec,
		OriginFrac:   req.TransmitFrac,
		ReceiveSec:   nowSec,
		ReceiveFrac:  nowFrac,
		TransmitSec:  nowSec,
		TransmitFrac: nowFrac,
	}
}

// RetransmitRequest carries the starting sequence number and count of
// packets the receiver is asking to be resent.
type RetransmitRequest struct {
	LostSeqno    uint16
	LostPackets  uint16
}

// IsRetransmitRequest reports whether a control-channel datagram's type
// byte (after stripping the high marker bit) identifies a retransmit
// request.
func IsRetransmitRequest(typeByte byte) bool {
	return typeByte&0x7F == retransmitType
}

// DecodeRetransmitRequest parses a retransmit-request packet. RAOP places
// the two 16-bit fields at a fixed offset following a small header;
// only the trailing 4 bytes matter to this engine.
func DecodeRetransmitRequest(data []byte) (RetransmitRequest, error) {
	if len(data) < 8 {
		return RetransmitRequest{}, ErrShortPacket
	}
	return RetransmitRequest{
		LostSeqno:   binary.BigEndian.Uint16(data[4:6]),
		LostPackets: binary.BigEndian.Uint16(data[6:8]),
	}, nil
}

// EncodeRetransmitResponse wraps an original audio packet in the
// retransmit-response prefix RAOP specifies: 0x80 0xD6 followed by the
// original packet's 2-byte sequence field (duplicated, by protocol
// design) and then the original packet bytes in full.
func EncodeRetransmitResponse(originalPacket []byte) ([]byte, error) {
	if len(originalPacket) < 4 {
		return nil, ErrShortPacket
	}
	resp := make([]byte, 0, 4+len(originalPacket))
	resp = append(resp, 0x80, retransmitRespPrefix)
	resp = append(resp, originalPacket[2:4]...)
	resp = append(resp, originalPacket...)
	return resp, nil
}

// Seq16Range yields the sequence numbers [start, start+count) reduced
// modulo 2^16, so a request spanning the wraparound boundary (0xFFFF ->
// 0x0000) continues at 0x0000 instead of running past 0xFFFF.
func Seq16Range(start uint16, count uint16) []uint16 {
	out := make([]uint16, count)
	for i := uint16(0); i < count; i++ {
		out[i] = start + i // uint16 addition wraps modulo 2^16 by definition
	}
	return out
}
