// Package equalizer holds the live gain configuration of the reference
// server and the audio pipeline that applies it.
package equalizer

import (
	"sync"
	"time"

	"github.com/binhminh9527/Equalizer-Agent/internal/gains"
)

// Snapshot is a point-in-time copy of the active gains.
type Snapshot struct {
	Gains     gains.Vector `json:"gains"`
	Version   uint64       `json:"version"`
	UpdatedAt time.Time    `json:"updated_at"`
}

// State is the process-wide gain configuration. Every Apply replaces the
// whole vector under one lock, so concurrent writers resolve to the last
// one in.
type State struct {
	mu   sync.Mutex
	cur  Snapshot
	subs map[*subscriber]struct{}

	now func() time.Time
}

type subscriber struct {
	ch chan Snapshot
}

// NewState returns a state holding initial at version 0.
func NewState(initial gains.Vector) *State {
	s := &State{
		subs: make(map[*subscriber]struct{}),
		now:  time.Now,
	}
	s.cur = Snapshot{Gains: initial, UpdatedAt: s.now()}
	return s
}

// Apply installs v as the active gains and notifies subscribers.
// It implements ipc.Applier.
func (s *State) Apply(v gains.Vector) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.cur = Snapshot{
		Gains:     v,
		Version:   s.cur.Version + 1,
		UpdatedAt: s.now(),
	}

	for sub := range s.subs {
		// Never block the writer. A full channel drops the oldest update;
		// the newest is always delivered.
		select {
		case sub.ch <- s.cur:
		default:
			select {
			case <-sub.ch:
			default:
			}
			select {
			case sub.ch <- s.cur:
			default:
			}
		}
	}
	return nil
}

// Snapshot returns the active gains.
func (s *State) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cur
}

// Gains returns only the active vector.
func (s *State) Gains() gains.Vector {
	return s.Snapshot().Gains
}

// Subscribe returns a channel receiving every snapshot applied after the
// call, and a cancel func that closes it. buf < 1 is treated as 1.
func (s *State) Subscribe(buf int) (<-chan Snapshot, func()) {
	if buf < 1 {
		buf = 1
	}
	sub := &subscriber{ch: make(chan Snapshot, buf)}

	s.mu.Lock()
	s.subs[sub] = struct{}{}
	s.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.subs, sub)
			s.mu.Unlock()
			close(sub.ch)
		})
	}
	return sub.ch, cancel
}
