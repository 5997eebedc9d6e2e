package raop

import (
	"context"
	"strconv"
	"strings"
)

// RTSPResponse is the minimal shape of an RTSP response this engine reads
// from its RTSP collaborator: a status code and the response headers it
// needs (Transport, Session).
type RTSPResponse struct {
	Code    int
	Headers map[string]string
}

// RTSPConnection exposes the local/remote addresses of the RTSP
// collaborator's underlying connection, needed to bind the audio,
// control and timing UDP sockets on the right interface and to reach the
// receiver.
type RTSPConnection interface {
	LocalIP() string
	RemoteIP() string
}

// RTSPCollaborator is the external RTSP signalling session this engine
// drives but never implements: ANNOUNCE/SETUP/RECORD/SET_PARAMETER/
// FEEDBACK and the authentication handshakes live outside this module's
// scope.
type RTSPCollaborator interface {
	Connection() RTSPConnection

	AuthSetup(ctx context.Context) error
	Announce(ctx context.Context) error
	Setup(ctx context.Context, localControlPort, localTimingPort int) (RTSPResponse, error)
	Record(ctx context.Context, rtpseq uint16, rtptime uint32) error
	SetParameter(ctx context.Context, name, value string) error
	SetMetadata(ctx context.Context, rtpseq uint16, rtptime uint32, metadata AudioMetadata) error
	// Feedback issues a FEEDBACK request. When allowError is true, a
	// non-2xx response is returned as a normal RTSPResponse rather than
	// an error, so the caller can inspect the status code (used during
	// keep-alive negotiation).
	Feedback(ctx context.Context, allowError bool) (RTSPResponse, error)
}

// PairingVerifier is the external legacy-pairing collaborator consulted
// when the receiver does not advertise MFiSAP but credentials were
// supplied to the engine.
type PairingVerifier interface {
	VerifyAuthenticated(ctx context.Context) error
}

// PCMSource supplies raw PCM frames to the streaming loop. ReadFrames
// returns at most n*channels*bytesPerChannel bytes; a zero-length return
// means end of stream. Duration supports the Progress SET_PARAMETER and
// may be zero if unknown.
type PCMSource interface {
	ReadFrames(n int) ([]byte, error)
	Duration() float64
}

// EncryptionType enumerates the receiver-advertised encryption modes this
// engine recognizes. Only Unencrypted and MFiSAP are accepted; anything
// else makes the intersection test in Initialize fail closed.
type EncryptionType int

const (
	EncryptionUnknown EncryptionType = 0
	EncryptionNone    EncryptionType = 1 << iota
	EncryptionMFiSAP
	EncryptionFairPlay
	EncryptionRSA
)

// SupportedEncryptions is the set of encryption types this engine can
// negotiate.
const SupportedEncryptions = EncryptionNone | EncryptionMFiSAP

// MetadataType enumerates the metadata extensions a receiver may advertise.
type MetadataType int

const (
	MetadataNotSupported MetadataType = 0
	MetadataText         MetadataType = 1 << iota
	MetadataArtwork
	MetadataProgress
)

// ParseEncryptionTypes reads the "et" property (a comma-separated list of
// small integers) from the receiver's advertised properties and returns
// the set of types this engine recognizes. Unrecognized codes are ignored
// rather than rejected outright; Initialize fails if no recognized type is
// one of SupportedEncryptions.
func ParseEncryptionTypes(properties map[string]string) EncryptionType {
	return parseBitfieldProperty(properties, "et", map[string]EncryptionType{
		"0": EncryptionNone,
		"1": EncryptionRSA,
		"3": EncryptionFairPlay,
		"4": EncryptionMFiSAP,
	})
}

// ParseMetadataTypes reads the "md" property the same way.
func ParseMetadataTypes(properties map[string]string) MetadataType {
	return parseBitfieldProperty(properties, "md", map[string]MetadataType{
		"0": MetadataText,
		"1": MetadataArtwork,
		"2": MetadataProgress,
	})
}

func parseBitfieldProperty[T ~int](properties map[string]string, key string, codes map[string]T) T {
	raw, ok := properties[key]
	if !ok {
		return 0
	}
	var out T
	for _, tok := range strings.Split(raw, ",") {
		tok = strings.TrimSpace(tok)
		if v, ok := codes[tok]; ok {
			out |= v
		}
	}
	return out
}

// AudioProperties reads sample rate, channel count and bytes-per-channel
// from the receiver's advertised properties, defaulting to CD-quality
// stereo 16-bit PCM when a property is absent.
func AudioProperties(properties map[string]string) (sampleRate uint32, channels int, bytesPerChannel int) {
	sampleRate = 44100
	channels = 2
	bytesPerChannel = 2

	if v, ok := properties["sr"]; ok {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			sampleRate = uint32(n)
		}
	}
	if v, ok := properties["ch"]; ok {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			channels = n
		}
	}
	if v, ok := properties["ss"]; ok {
		if n, err := strconv.Atoi(v); err == nil && (n == 8 || n == 16) {
			bytesPerChannel = n / 8
		}
	}
	return sampleRate, channels, bytesPerChannel
}

// TransportHeader is the parsed form of a SETUP response's Transport
// header: "token (;token)*" where a token is either "key=value" (stored
// in Options, last write wins on duplicates) or a bare flag (collected in
// Flags).
type TransportHeader struct {
	Flags   []string
	Options map[string]string
}

// ParseTransportHeader parses a semicolon-separated RTSP Transport header
// into key=value options and bare flags.
func ParseTransportHeader(header string) TransportHeader {
	t := TransportHeader{Options: map[string]string{}}
	for _, tok := range strings.Split(header, ";") {
		if key, value, ok := strings.Cut(tok, "="); ok {
			t.Options[key] = value
		} else if tok != "" {
			t.Flags = append(t.Flags, tok)
		}
	}
	return t
}

// IntOption reads an integer-valued Transport option, returning 0 if
// absent or malformed.
func (t TransportHeader) IntOption(key string) int {
	v, ok := t.Options[key]
	if !ok {
		return 0
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0
	}
	return n
}

// PlaybackInfo describes what is currently playing, delivered to the
// Listener's Playing callback.
type PlaybackInfo struct {
	Metadata AudioMetadata
	Position float64
}

// Listener receives lifecycle notifications from the engine. The engine
// holds its listener through a ListenerHandle (see listener.go) rather
// than a weak reference.
type Listener interface {
	Playing(info PlaybackInfo)
	Stopped()
}
