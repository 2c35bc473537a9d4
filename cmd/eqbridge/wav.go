package main

import (
	"errors"
	"fmt"
	"io"

	"github.com/faiface/beep"
	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

// wavFramesPerRead is how many frames one PCMBuffer call pulls from the file.
const wavFramesPerRead = 4096

// wavSource streams integer PCM from a go-audio decoder as beep samples
// normalized to full scale 1<<(bits-1). Mono input is copied to both
// channels; channels past the second are dropped.
type wavSource struct {
	dec      *wav.Decoder
	buf      *audio.IntBuffer
	channels int
	scale    float64

	pos, n int
	eof    bool
	err    error
}

// openWAV reads the header of a PCM WAV and returns a streamer over its
// samples plus the beep format to encode the result with.
func openWAV(r io.ReadSeeker) (*wavSource, beep.Format, error) {
	dec := wav.NewDecoder(r)
	if !dec.IsValidFile() {
		return nil, beep.Format{}, errors.New("not a valid WAV file")
	}
	if dec.WavAudioFormat != 1 {
		return nil, beep.Format{}, fmt.Errorf("unsupported WAV encoding %d (only integer PCM)", dec.WavAudioFormat)
	}

	bits := int(dec.BitDepth)
	if bits != 16 && bits != 24 {
		return nil, beep.Format{}, fmt.Errorf("unsupported bit depth %d (16 or 24)", bits)
	}
	channels := int(dec.NumChans)
	if channels < 1 {
		return nil, beep.Format{}, errors.New("WAV has no channels")
	}

	src := &wavSource{
		dec:      dec,
		channels: channels,
		scale:    float64(int(1) << (bits - 1)),
		buf: &audio.IntBuffer{
			Data:           make([]int, wavFramesPerRead*channels),
			Format:         &audio.Format{NumChannels: channels, SampleRate: int(dec.SampleRate)},
			SourceBitDepth: bits,
		},
	}

	format := beep.Format{
		SampleRate:  beep.SampleRate(dec.SampleRate),
		NumChannels: min(channels, 2),
		Precision:   bits / 8,
	}
	return src, format, nil
}

// Stream implements beep.Streamer.
func (s *wavSource) Stream(samples [][2]float64) (int, bool) {
	i := 0
	for i < len(samples) {
		if s.pos >= s.n {
			if s.eof {
				break
			}
			s.fill()
			if s.n == 0 {
				break
			}
		}

		frame := s.buf.Data[s.pos : s.pos+s.channels]
		left := float64(frame[0]) / s.scale
		right := left
		if s.channels > 1 {
			right = float64(frame[1]) / s.scale
		}
		samples[i] = [2]float64{left, right}
		s.pos += s.channels
		i++
	}
	return i, i > 0
}

// Err implements beep.Streamer.
func (s *wavSource) Err() error {
	return s.err
}

func (s *wavSource) fill() {
	n, err := s.dec.PCMBuffer(s.buf)
	if err != nil && !errors.Is(err, io.EOF) {
		s.err = err
		s.eof = true
	}
	if n == 0 || errors.Is(err, io.EOF) {
		s.eof = true
	}
	// A truncated trailing frame is discarded.
	s.n = n - n%s.channels
	s.pos = 0
}
