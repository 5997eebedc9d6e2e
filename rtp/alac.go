package rtp

// WrapALAC wraps raw little-endian 16-bit PCM frames in the trivial
// "uncompressed" ALAC frame RAOP receivers expect: a 3-byte bit-prefix
// ("00" + the 2-bit channel count minus one + 19 zero bits + a trailing
// "1"), followed by each PCM sample with its two bytes swapped (an
// little-endian sample becomes a big-endian pair). This is a wire-format
// requirement of the receiver, not a real ALAC encoding, and must be
// preserved exactly.
func WrapALAC(pcm []byte, channels int) []byte {
	out := make([]byte, 3, 3+len(pcm))

	// 24-bit prefix, MSB-first: "00" + channels-1 (2 bits) + 19 zero bits + "1"
	prefix := (uint32(channels-1)&0x3)<<20 | 1
	out[0] = byte(prefix >> 16)
	out[1] = byte(prefix >> 8)
	out[2] = byte(prefix)

	for i := 0; i+1 < len(pcm); i += 2 {
		out = append(out, pcm[i+1], pcm[i])
	}
	return out
}
