// Package rtp implements the RAOP wire-format packet codecs, the packet
// backlog used for retransmission, and the NTP/RTP timestamp conversions
// that tie the streaming loop's frame clock to wall time.
package rtp

import "time"

// ntpEpochOffset is the number of seconds between the Unix epoch
// (1970-01-01) and the NTP epoch (1900-01-01).
const ntpEpochOffset = 2208988800

// NTPNow returns the current wall clock as a 64-bit NTP timestamp:
// the upper 32 bits are seconds since the NTP epoch, the lower 32 bits
// are a binary fraction of a second.
func NTPNow() uint64 {
	return TimeToNTP(time.Now())
}

// TimeToNTP converts a wall-clock time.Time into a 64-bit NTP timestamp.
func TimeToNTP(t time.Time) uint64 {
	seconds := uint64(t.Unix() + ntpEpochOffset)
	frac := uint64((float64(t.Nanosecond()) / 1e9) * (1 << 32))
	return seconds<<32 | frac
}

// NTPToTime converts a 64-bit NTP timestamp back into a wall-clock time.Time.
func NTPToTime(ntp uint64) time.Time {
	seconds, frac := NTPParts(ntp)
	unixSeconds := int64(seconds) - ntpEpochOffset
	nsec := int64((float64(frac) / (1 << 32)) * 1e9)
	return time.Unix(unixSeconds, nsec)
}

// NTPParts splits a 64-bit NTP timestamp into its integer-seconds and
// fractional-seconds halves.
func NTPParts(ntp uint64) (seconds uint32, frac uint32) {
	return uint32(ntp >> 32), uint32(ntp & 0xFFFFFFFF)
}

// FramesToNTP converts an RTP frame count, sampled at sampleRate Hz, into
// an NTP timestamp relative to the NTP epoch. It treats the frame count as
// elapsed playback time: integer seconds are frames/sampleRate, and the
// remainder becomes a 32-bit binary fraction of a second.
func FramesToNTP(frames uint64, sampleRate uint32) uint64 {
	wholeSeconds := frames / uint64(sampleRate)
	remainder := frames % uint64(sampleRate)
	frac := uint64((float64(remainder) / float64(sampleRate)) * (1 << 32))
	return (wholeSeconds+ntpEpochOffset)<<32 | frac
}

// monotonicBase anchors MonotonicNowNanos() to a fixed point captured at
// package load, so successive calls form a monotonic nanosecond counter
// derived from Go's monotonic clock reading (time.Since never observes
// wall-clock/NTP adjustments).
var monotonicBase = time.Now()

// MonotonicNowNanos returns nanoseconds elapsed since the rtp package was
// loaded.
func MonotonicNowNanos() uint64 {
	return uint64(time.Since(monotonicBase).Nanoseconds())
}
