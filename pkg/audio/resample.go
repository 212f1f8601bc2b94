package audio

import (
	"log/slog"
	"math"
)

// firTaps is the length of the anti-alias filter. Odd so the filter has a
// well-defined center tap.
const firTaps = 63

// telephonyCutoffHz keeps the passband inside the usable telephony band
// when converting to or from an 8kHz leg.
const telephonyCutoffHz = 3400.0

type resampleMode int

const (
	modePassthrough resampleMode = iota
	modeFIR
	modeLinear
)

// Resampler converts PCM16 audio between two fixed sample rates. It is
// stateful: the trailing input window persists between Process calls so
// successive chunks form one continuous filtered stream. One Resampler
// serves one direction of one call; it is not safe for concurrent use.
type Resampler struct {
	fromRate int
	toRate   int
	mode     resampleMode

	// FIR decimation state.
	factor int
	taps   []float64
	hist   []float64
	next   int

	// Linear interpolation state.
	step   float64
	pos    float64
	last   float64
	primed bool
}

// NewResampler creates a converter from fromRate to toRate. Integer
// decimation ratios (24k->8k, 16k->8k) take the windowed-sinc FIR path;
// any other ratio falls back to linear interpolation. The selection is
// logged once here, never per frame.
func NewResampler(fromRate, toRate int) *Resampler {
	r := &Resampler{fromRate: fromRate, toRate: toRate}

	switch {
	case fromRate == toRate:
		r.mode = modePassthrough
	case fromRate > toRate && fromRate%toRate == 0:
		r.mode = modeFIR
		r.factor = fromRate / toRate
		cutoff := 0.45 * float64(toRate)
		if toRate == 8000 {
			cutoff = telephonyCutoffHz
		}
		r.taps = designLowPass(firTaps, cutoff, float64(fromRate))
		r.hist = make([]float64, firTaps-1)
		r.next = (firTaps - 1) / 2
		slog.Debug("resampler using FIR decimation",
			slog.Int("from_rate", fromRate),
			slog.Int("to_rate", toRate),
			slog.Int("factor", r.factor),
		)
	default:
		r.mode = modeLinear
		r.step = float64(fromRate) / float64(toRate)
		slog.Warn("resampler falling back to linear interpolation",
			slog.Int("from_rate", fromRate),
			slog.Int("to_rate", toRate),
		)
	}

	return r
}

// Process converts one chunk of input samples. Output length varies
// between calls as carry-over shifts; over a whole stream the rate ratio
// holds exactly.
func (r *Resampler) Process(in []int16) []int16 {
	switch r.mode {
	case modePassthrough:
		out := make([]int16, len(in))
		copy(out, in)
		return out
	case modeFIR:
		return r.processFIR(in)
	default:
		return r.processLinear(in)
	}
}

func (r *Resampler) processFIR(in []int16) []int16 {
	x := make([]float64, 0, len(r.hist)+len(in))
	x = append(x, r.hist...)
	for _, s := range in {
		x = append(x, float64(s)/32768.0)
	}

	half := (firTaps - 1) / 2
	out := make([]int16, 0, len(in)/r.factor+1)

	c := r.next
	for ; c+half < len(x); c += r.factor {
		var acc float64
		base := c - half
		for j, t := range r.taps {
			acc += t * x[base+j]
		}
		out = append(out, quantize(acc))
	}

	keep := len(x) - (firTaps - 1)
	r.hist = append(r.hist[:0], x[keep:]...)
	r.next = c - keep

	return out
}

func (r *Resampler) processLinear(in []int16) []int16 {
	if len(in) == 0 {
		return nil
	}

	var buf []float64
	if r.primed {
		buf = make([]float64, 0, len(in)+1)
		buf = append(buf, r.last)
	} else {
		buf = make([]float64, 0, len(in))
		r.primed = true
	}
	for _, s := range in {
		buf = append(buf, float64(s)/32768.0)
	}

	out := make([]int16, 0, int(float64(len(in))/r.step)+1)
	p := r.pos
	for int(p)+1 < len(buf) {
		i := int(p)
		frac := p - float64(i)
		v := buf[i] + frac*(buf[i+1]-buf[i])
		out = append(out, quantize(v))
		p += r.step
	}

	r.pos = p - float64(len(buf)-1)
	r.last = buf[len(buf)-1]

	return out
}

// quantize converts a normalized sample back to int16 with hard clamping,
// never wraparound.
func quantize(v float64) int16 {
	if v > 1.0 {
		v = 1.0
	}
	if v < -1.0 {
		v = -1.0
	}
	return int16(math.Round(v * 32767.0))
}

// designLowPass builds a Hamming-windowed sinc low-pass filter with unity
// DC gain.
func designLowPass(taps int, cutoffHz, sampleRate float64) []float64 {
	h := make([]float64, taps)
	half := (taps - 1) / 2
	fc := cutoffHz / sampleRate

	var sum float64
	for n := range h {
		k := float64(n - half)
		var v float64
		if k == 0 {
			v = 2 * fc
		} else {
			v = math.Sin(2*math.Pi*fc*k) / (math.Pi * k)
		}
		w := 0.54 - 0.46*math.Cos(2*math.Pi*float64(n)/float64(taps-1))
		h[n] = v * w
		sum += h[n]
	}
	for n := range h {
		h[n] /= sum
	}
	return h
}
