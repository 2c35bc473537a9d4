package equalizer

import (
	"math"

	"github.com/binhminh9527/Equalizer-Agent/internal/gains"
)

// Filter design constants
const (
	DefaultSampleRate = 48000.0

	bandQ = 1.0

	// Bands within this many dB of flat are bypassed.
	bypassDB = 0.01

	// Output of every filter stage is clamped to +/- outputLimit.
	outputLimit = 10.0

	denormal = 1e-15
)

// BandFrequencies are the filter center frequencies in Hz, lowest first.
var BandFrequencies = [gains.NumBands]float64{
	31.25, 62.5, 125, 250, 500, 1000, 2000, 4000, 8000, 16000,
}

// coeffs are normalized biquad coefficients (a0 == 1).
type coeffs struct {
	b0, b1, b2, a1, a2 float64
}

// peaking returns the Audio EQ Cookbook peaking filter for one band.
func peaking(freq, sampleRate, gainDB, q float64) coeffs {
	a := math.Pow(10, gainDB/40)
	w := 2 * math.Pi * freq / sampleRate
	sn, cs := math.Sin(w), math.Cos(w)
	alpha := sn / (2 * q)

	a0 := 1 + alpha/a
	return coeffs{
		b0: (1 + alpha*a) / a0,
		b1: -2 * cs / a0,
		b2: (1 - alpha*a) / a0,
		a1: -2 * cs / a0,
		a2: (1 - alpha/a) / a0,
	}
}

// biquad is one direct form I section with its own history.
type biquad struct {
	c              coeffs
	x1, x2, y1, y2 float64
}

func (f *biquad) process(in float64) float64 {
	if math.Abs(in) < denormal {
		in = 0
	}

	out := f.c.b0*in + f.c.b1*f.x1 + f.c.b2*f.x2 - f.c.a1*f.y1 - f.c.a2*f.y2
	if math.Abs(out) < denormal {
		out = 0
	}
	out = math.Max(-outputLimit, math.Min(outputLimit, out))

	f.x2, f.x1 = f.x1, in
	f.y2, f.y1 = f.y1, out
	return out
}

func (f *biquad) reset() {
	f.x1, f.x2, f.y1, f.y2 = 0, 0, 0, 0
}

// Bank is a cascade of ten peaking filters per channel.
type Bank struct {
	sampleRate float64
	gains      gains.Vector
	active     [gains.NumBands]bool
	filters    [][gains.NumBands]biquad // [channel][band]
}

// NewBank builds a filter bank for the given sample rate and channel count.
// A non-positive sample rate falls back to DefaultSampleRate.
func NewBank(sampleRate float64, channels int, v gains.Vector) *Bank {
	if sampleRate <= 0 {
		sampleRate = DefaultSampleRate
	}
	if channels < 1 {
		channels = 1
	}
	b := &Bank{
		sampleRate: sampleRate,
		filters:    make([][gains.NumBands]biquad, channels),
	}
	b.SetGains(v)
	return b
}

// SetGains recomputes coefficients. Filter history is kept so a change
// mid-stream does not click.
func (b *Bank) SetGains(v gains.Vector) {
	b.gains = v
	for band, g := range v {
		freq := BandFrequencies[band]
		// Bands at or above Nyquist cannot be realized at this rate.
		b.active[band] = math.Abs(g) > bypassDB && freq < b.sampleRate/2

		c := peaking(freq, b.sampleRate, g, bandQ)
		for ch := range b.filters {
			b.filters[ch][band].c = c
		}
	}
}

// Gains returns the vector the bank was last configured with.
func (b *Bank) Gains() gains.Vector { return b.gains }

// SampleRate returns the design sample rate in Hz.
func (b *Bank) SampleRate() float64 { return b.sampleRate }

// Channels returns the number of channels the bank filters.
func (b *Bank) Channels() int { return len(b.filters) }

// ProcessFrame filters one frame in place. Extra samples beyond the bank's
// channel count are left untouched.
func (b *Bank) ProcessFrame(frame []float64) {
	n := len(frame)
	if n > len(b.filters) {
		n = len(b.filters)
	}
	for ch := 0; ch < n; ch++ {
		s := frame[ch]
		for band := range b.filters[ch] {
			if b.active[band] {
				s = b.filters[ch][band].process(s)
			}
		}
		frame[ch] = s
	}
}

// Reset clears all filter history.
func (b *Bank) Reset() {
	for ch := range b.filters {
		for band := range b.filters[ch] {
			b.filters[ch][band].reset()
		}
	}
}
