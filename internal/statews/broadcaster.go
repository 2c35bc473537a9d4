package statews

import (
	"context"
	"log/slog"
	"time"

	"github.com/binhminh9527/Equalizer-Agent/internal/equalizer"
)

// CoalesceWindow bounds how often gains_changed is emitted during a burst
// of updates. Within a window only the latest snapshot is sent.
const CoalesceWindow = 50 * time.Millisecond

// RunBroadcaster turns state updates into gains_changed frames on hub. The
// first update of a burst is sent at the end of its window, not on
// silence, so a steady stream still produces one frame per window.
// It returns when ctx is canceled or updates is closed, flushing any
// pending snapshot first.
func RunBroadcaster(ctx context.Context, hub *Hub, updates <-chan equalizer.Snapshot, window time.Duration, logger *slog.Logger) {
	if hub == nil || updates == nil {
		return
	}
	if window <= 0 {
		window = CoalesceWindow
	}

	var (
		pending *equalizer.Snapshot
		timer   *time.Timer
		tick    <-chan time.Time
	)

	flush := func() {
		if pending == nil {
			return
		}
		msg, err := marshalGains(TypeGainsChanged, *pending)
		pending = nil
		if err != nil {
			logger.Warn("state feed marshal failed", "error", err, "type", TypeGainsChanged)
			return
		}
		hub.Broadcast(msg)
	}

	stopTimer := func() {
		if timer != nil {
			timer.Stop()
		}
		timer, tick = nil, nil
	}

	for {
		select {
		case <-ctx.Done():
			flush()
			stopTimer()
			return

		case <-tick:
			flush()
			stopTimer()

		case snap, ok := <-updates:
			if !ok {
				flush()
				stopTimer()
				logger.Debug("state feed broadcaster stopping (source ended)")
				return
			}
			pending = &snap
			if timer == nil {
				timer = time.NewTimer(window)
				tick = timer.C
			}
		}
	}
}
