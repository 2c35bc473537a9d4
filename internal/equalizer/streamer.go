package equalizer

import (
	"github.com/faiface/beep"
)

// Streamer is a beep.Streamer that runs its source through a stereo filter
// bank configured from a State. Gain changes are picked up between Stream
// calls.
type Streamer struct {
	src     beep.Streamer
	state   *State
	bank    *Bank
	version uint64
	frame   [2]float64
}

// NewStreamer wraps src. A nil state leaves the audio flat.
func NewStreamer(src beep.Streamer, sampleRate beep.SampleRate, state *State) *Streamer {
	s := &Streamer{src: src, state: state}

	var snap Snapshot
	if state != nil {
		snap = state.Snapshot()
	}
	s.bank = NewBank(float64(sampleRate), 2, snap.Gains)
	s.version = snap.Version
	return s
}

// Stream implements beep.Streamer.
func (s *Streamer) Stream(samples [][2]float64) (int, bool) {
	s.refresh()

	n, ok := s.src.Stream(samples)
	for i := 0; i < n; i++ {
		s.frame = samples[i]
		s.bank.ProcessFrame(s.frame[:])
		samples[i] = s.frame
	}
	return n, ok
}

// Err implements beep.Streamer.
func (s *Streamer) Err() error {
	return s.src.Err()
}

func (s *Streamer) refresh() {
	if s.state == nil {
		return
	}
	snap := s.state.Snapshot()
	if snap.Version == s.version {
		return
	}
	s.bank.SetGains(snap.Gains)
	s.version = snap.Version
}
