package tool

import (
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/binhminh9527/Equalizer-Agent/internal/config"
	"github.com/binhminh9527/Equalizer-Agent/internal/logging"
)

// OpenInvocationLog opens path for appending and returns a logger writing
// one text line per record, timestamped in UTC. An empty path or an open
// failure yields a discarding logger; the tool never fails because its log
// cannot be written.
func OpenInvocationLog(path string) (*slog.Logger, io.Closer) {
	path = config.ExpandPath(path)
	if path == "" {
		return logging.Discard(), nopCloser{}
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return logging.Discard(), nopCloser{}
	}
	return NewInvocationLogger(f), f
}

// NewInvocationLogger writes invocation records to w. Write errors are
// ignored.
func NewInvocationLogger(w io.Writer) *slog.Logger {
	return slog.New(slog.NewTextHandler(ignoreErrors{w}, &slog.HandlerOptions{
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			switch a.Key {
			case slog.TimeKey:
				return slog.String(slog.TimeKey, a.Value.Time().UTC().Format(time.RFC3339Nano))
			case slog.LevelKey:
				return slog.Attr{}
			}
			return a
		},
	}))
}

type ignoreErrors struct{ w io.Writer }

func (i ignoreErrors) Write(p []byte) (int, error) {
	_, _ = i.w.Write(p)
	return len(p), nil
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
