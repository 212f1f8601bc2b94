package audio

import (
	"math"
	"testing"
)

func sine(n int, freq, rate float64, amp int16) []int16 {
	out := make([]int16, n)
	for i := range out {
		out[i] = int16(float64(amp) * math.Sin(2*math.Pi*freq*float64(i)/rate))
	}
	return out
}

func TestResamplerPassthrough(t *testing.T) {
	r := NewResampler(8000, 8000)
	in := sine(160, 440, 8000, 10000)
	out := r.Process(in)
	if len(out) != len(in) {
		t.Fatalf("expected %d samples, got %d", len(in), len(out))
	}
	for i := range in {
		if out[i] != in[i] {
			t.Fatalf("sample %d: expected %d, got %d", i, in[i], out[i])
		}
	}
}

func TestResamplerDecimationRatio(t *testing.T) {
	r := NewResampler(24000, 8000)
	in := sine(24000, 300, 24000, 12000)
	out := r.Process(in)

	// One second in should yield one second out, minus the filter delay.
	if len(out) < 7900 || len(out) > 8000 {
		t.Errorf("expected roughly 8000 output samples, got %d", len(out))
	}
}

// Feeding the stream in uneven chunks must produce exactly the same
// output as feeding it whole. Carry-over state makes chunk boundaries
// invisible.
func TestResamplerChunkContinuity(t *testing.T) {
	in := sine(4800, 700, 24000, 15000)

	whole := NewResampler(24000, 8000).Process(in)

	chunked := NewResampler(24000, 8000)
	var got []int16
	sizes := []int{1, 160, 7, 333, 480, 2, 959}
	pos := 0
	for _, sz := range sizes {
		got = append(got, chunked.Process(in[pos:pos+sz])...)
		pos += sz
	}
	got = append(got, chunked.Process(in[pos:])...)

	if len(got) != len(whole) {
		t.Fatalf("chunked output %d samples, whole-stream %d", len(got), len(whole))
	}
	for i := range whole {
		if got[i] != whole[i] {
			t.Fatalf("sample %d: chunked %d, whole-stream %d", i, got[i], whole[i])
		}
	}
}

func TestResamplerUnityGain(t *testing.T) {
	r := NewResampler(16000, 8000)
	in := make([]int16, 1600)
	for i := range in {
		in[i] = 8000
	}
	out := r.Process(in)
	if len(out) == 0 {
		t.Fatal("no output")
	}

	// Skip the filter warmup, then DC must pass through unchanged.
	for i := len(out) / 2; i < len(out); i++ {
		diff := int(out[i]) - 8000
		if diff < 0 {
			diff = -diff
		}
		if diff > 8 {
			t.Fatalf("sample %d: expected ~8000, got %d", i, out[i])
		}
	}
}

func TestResamplerLinearFallback(t *testing.T) {
	r := NewResampler(22050, 8000)
	if r.mode != modeLinear {
		t.Fatalf("expected linear mode for non-integer ratio, got %d", r.mode)
	}

	in := sine(22050, 440, 22050, 10000)
	out := r.Process(in)
	if len(out) < 7998 || len(out) > 8002 {
		t.Errorf("expected roughly 8000 output samples for one second, got %d", len(out))
	}
}

func TestResamplerLinearChunkContinuity(t *testing.T) {
	in := sine(4410, 500, 22050, 9000)

	whole := NewResampler(22050, 8000).Process(in)

	chunked := NewResampler(22050, 8000)
	var got []int16
	for pos := 0; pos < len(in); pos += 441 {
		end := pos + 441
		if end > len(in) {
			end = len(in)
		}
		got = append(got, chunked.Process(in[pos:end])...)
	}

	if len(got) != len(whole) {
		t.Fatalf("chunked output %d samples, whole-stream %d", len(got), len(whole))
	}
	for i := range whole {
		if got[i] != whole[i] {
			t.Fatalf("sample %d: chunked %d, whole-stream %d", i, got[i], whole[i])
		}
	}
}

func TestQuantizeClamp(t *testing.T) {
	if got := quantize(1.5); got != 32767 {
		t.Errorf("expected clamp to 32767, got %d", got)
	}
	if got := quantize(-1.5); got != -32767 {
		t.Errorf("expected clamp to -32767, got %d", got)
	}
	if got := quantize(0); got != 0 {
		t.Errorf("expected 0, got %d", got)
	}
}

func TestResamplerEmptyInput(t *testing.T) {
	for _, rates := range [][2]int{{24000, 8000}, {22050, 8000}, {8000, 8000}} {
		r := NewResampler(rates[0], rates[1])
		if out := r.Process(nil); len(out) != 0 {
			t.Errorf("%d->%d: expected no output for empty input, got %d samples",
				rates[0], rates[1], len(out))
		}
	}
}
