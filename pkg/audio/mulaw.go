// Package audio provides the sample-level plumbing for the media relay:
// G.711 mu-law companding, PCM16 byte conversion, and stateful sample-rate
// conversion between the model and telephony legs.
package audio

const (
	// muLawBias is the standard G.711 encoding bias.
	muLawBias = 0x84
	// muLawClip is the largest magnitude representable before companding.
	muLawClip = 32635

	// SilenceByte is the mu-law encoding of a zero-level sample. Fill
	// frames are built from this value.
	SilenceByte byte = 0xFF
)

// EncodeSample compands one signed 16-bit PCM sample to 8-bit mu-law.
// The output is bit-for-bit G.711: bias 0x84, clip at 32635.
func EncodeSample(pcm int16) byte {
	v := int32(pcm)
	sign := byte(0)
	if v < 0 {
		v = -v
		sign = 0x80
	}
	if v > muLawClip {
		v = muLawClip
	}
	v += muLawBias

	exponent := 7
	for mask := int32(0x4000); v&mask == 0 && exponent > 0; mask >>= 1 {
		exponent--
	}
	mantissa := byte((v >> uint(exponent+3)) & 0x0F)

	return ^(sign | byte(exponent)<<4 | mantissa)
}

// DecodeSample expands one mu-law byte back to signed 16-bit PCM.
// DecodeSample(SilenceByte) returns 0, the rest level used for fill frames.
func DecodeSample(b byte) int16 {
	b = ^b
	sign := b & 0x80
	exponent := (b >> 4) & 0x07
	mantissa := b & 0x0F

	v := ((int32(mantissa) << 3) + muLawBias) << exponent
	v -= muLawBias

	if sign != 0 {
		return int16(-v)
	}
	return int16(v)
}

// Encode compands a PCM16 buffer to mu-law.
func Encode(pcm []int16) []byte {
	out := make([]byte, len(pcm))
	for i, s := range pcm {
		out[i] = EncodeSample(s)
	}
	return out
}

// Decode expands a mu-law buffer to PCM16.
func Decode(companded []byte) []int16 {
	out := make([]int16, len(companded))
	for i, b := range companded {
		out[i] = DecodeSample(b)
	}
	return out
}

// SilenceFrame returns a mu-law buffer of n silence samples.
func SilenceFrame(n int) []byte {
	frame := make([]byte, n)
	for i := range frame {
		frame[i] = SilenceByte
	}
	return frame
}
