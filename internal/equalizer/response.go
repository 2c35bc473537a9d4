package equalizer

import (
	"math"

	"github.com/mjibson/go-dsp/fft"

	"github.com/binhminh9527/Equalizer-Agent/internal/gains"
)

// DefaultResponseSize is the impulse length used when Response is given a
// non-positive size.
const DefaultResponseSize = 1 << 15

// ResponsePoint is the measured magnitude at one band center.
type ResponsePoint struct {
	Frequency float64 `json:"frequency_hz"`
	Gain      float64 `json:"gain_db"`
	Measured  float64 `json:"measured_db"`

	// Realizable is false for bands at or above Nyquist; Measured is 0.
	Realizable bool `json:"realizable"`
}

// Response measures the bank's magnitude response at each band center by
// filtering a unit impulse and taking its FFT. The impulse is kept small so
// the output clamp never engages.
func Response(v gains.Vector, sampleRate float64, size int) []ResponsePoint {
	if sampleRate <= 0 {
		sampleRate = DefaultSampleRate
	}
	if size <= 0 {
		size = DefaultResponseSize
	}

	const amplitude = 1e-3

	bank := NewBank(sampleRate, 1, v)
	impulse := make([]float64, size)
	frame := make([]float64, 1)
	for i := range impulse {
		frame[0] = 0
		if i == 0 {
			frame[0] = amplitude
		}
		bank.ProcessFrame(frame)
		impulse[i] = frame[0] / amplitude
	}

	spectrum := fft.FFTReal(impulse)

	points := make([]ResponsePoint, gains.NumBands)
	for band, freq := range BandFrequencies {
		bin := int(math.Round(freq * float64(size) / sampleRate))
		p := ResponsePoint{Frequency: freq, Gain: v[band]}
		if freq < sampleRate/2 && bin < len(spectrum)/2 {
			c := spectrum[bin]
			p.Measured = toDB(math.Hypot(real(c), imag(c)))
			p.Realizable = true
		}
		points[band] = p
	}
	return points
}

// floorDB bounds toDB so results stay finite.
const floorDB = -200.0

func toDB(mag float64) float64 {
	if mag <= 0 {
		return floorDB
	}
	return math.Max(floorDB, 20*math.Log10(mag))
}
