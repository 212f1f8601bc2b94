package audio

import "testing"

func TestSilenceEncoding(t *testing.T) {
	if got := EncodeSample(0); got != SilenceByte {
		t.Errorf("expected zero sample to encode to 0x%02X, got 0x%02X", SilenceByte, got)
	}

	if got := DecodeSample(SilenceByte); got != 0 {
		t.Errorf("expected 0x%02X to decode to 0, got %d", SilenceByte, got)
	}
}

func TestSilenceFrame(t *testing.T) {
	frame := SilenceFrame(160)
	if len(frame) != 160 {
		t.Fatalf("expected 160 bytes, got %d", len(frame))
	}
	for i, b := range frame {
		if b != SilenceByte {
			t.Fatalf("byte %d: expected 0x%02X, got 0x%02X", i, SilenceByte, b)
		}
	}
}

// Round-tripping any in-range sample must land within the quantization
// step of its segment, 1 << (exponent + 3).
func TestRoundTripErrorBound(t *testing.T) {
	for v := -32768; v <= 32767; v++ {
		pcm := int16(v)
		b := EncodeSample(pcm)
		decoded := DecodeSample(b)

		magnitude := int32(v)
		if magnitude < 0 {
			magnitude = -magnitude
		}
		if magnitude > muLawClip {
			// Clipped inputs are bounded by the clip error instead.
			continue
		}

		exponent := (^b >> 4) & 0x07
		bound := int32(1) << (exponent + 3)
		diff := int32(pcm) - int32(decoded)
		if diff < 0 {
			diff = -diff
		}
		if diff > bound {
			t.Fatalf("sample %d: encoded 0x%02X decoded %d, error %d exceeds segment bound %d",
				pcm, b, decoded, diff, bound)
		}
	}
}

// Every mu-law byte must survive a decode/encode cycle unchanged, except
// the negative-zero code which maps onto positive zero.
func TestCodebookIdempotence(t *testing.T) {
	for c := 0; c < 256; c++ {
		b := byte(c)
		pcm := DecodeSample(b)
		again := EncodeSample(pcm)
		if again == b {
			continue
		}
		if pcm == 0 && again == SilenceByte {
			continue
		}
		t.Errorf("byte 0x%02X decoded to %d but re-encoded as 0x%02X", b, pcm, again)
	}
}

func TestClipBehavior(t *testing.T) {
	maxCode := EncodeSample(32767)
	clipCode := EncodeSample(muLawClip)
	if maxCode != clipCode {
		t.Errorf("expected 32767 and %d to share a code, got 0x%02X and 0x%02X",
			muLawClip, maxCode, clipCode)
	}

	minCode := EncodeSample(-32768)
	negClipCode := EncodeSample(-muLawClip)
	if minCode != negClipCode {
		t.Errorf("expected -32768 and %d to share a code, got 0x%02X and 0x%02X",
			-muLawClip, minCode, negClipCode)
	}

	if DecodeSample(maxCode) < 0 {
		t.Error("positive clip decoded negative")
	}
	if DecodeSample(minCode) > 0 {
		t.Error("negative clip decoded positive")
	}
}

func TestBatchEncodeDecode(t *testing.T) {
	pcm := []int16{0, 100, -100, 32000, -32000, 7, -7}
	encoded := Encode(pcm)
	if len(encoded) != len(pcm) {
		t.Fatalf("expected %d bytes, got %d", len(pcm), len(encoded))
	}
	decoded := Decode(encoded)
	for i := range pcm {
		if encoded[i] != EncodeSample(pcm[i]) {
			t.Errorf("index %d: batch encode mismatch", i)
		}
		if decoded[i] != DecodeSample(encoded[i]) {
			t.Errorf("index %d: batch decode mismatch", i)
		}
	}
}

func TestBytesToSamplesRoundTrip(t *testing.T) {
	samples := []int16{0, 1, -1, 256, -256, 32767, -32768}
	data := SamplesToBytes(samples)
	if len(data) != len(samples)*2 {
		t.Fatalf("expected %d bytes, got %d", len(samples)*2, len(data))
	}
	back := BytesToSamples(data)
	for i := range samples {
		if back[i] != samples[i] {
			t.Errorf("index %d: expected %d, got %d", i, samples[i], back[i])
		}
	}

	// A trailing odd byte is dropped.
	if got := BytesToSamples([]byte{0x01, 0x02, 0x03}); len(got) != 1 {
		t.Errorf("expected odd trailing byte to be ignored, got %d samples", len(got))
	}
}
