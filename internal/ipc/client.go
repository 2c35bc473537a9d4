package ipc

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"net"
	"strings"
	"time"

	"github.com/binhminh9527/Equalizer-Agent/internal/gains"
	"github.com/binhminh9527/Equalizer-Agent/internal/logging"
)

// ClientConfig configures the gain IPC client. Zero values take defaults.
type ClientConfig struct {
	Host    string
	Port    int
	Timeout time.Duration // bounds connect + write + read of one Send
}

// Client delivers gain vectors to an equalizer server.
//
// It holds no connection: every Send dials, exchanges one request and
// closes. A Client is safe for concurrent use.
type Client struct {
	cfg    ClientConfig
	logger *slog.Logger
}

// NewClient creates a client. A nil logger discards debug output.
func NewClient(cfg ClientConfig, logger *slog.Logger) *Client {
	if cfg.Host == "" {
		cfg.Host = DefaultHost
	}
	if cfg.Port == 0 {
		cfg.Port = DefaultPort
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if logger == nil {
		logger = logging.Discard()
	}
	return &Client{cfg: cfg, logger: logger}
}

// Addr returns the server address in host:port form.
func (c *Client) Addr() string {
	return joinHostPort(c.cfg.Host, c.cfg.Port)
}

// Timeout returns the per-call socket budget.
func (c *Client) Timeout() time.Duration {
	return c.cfg.Timeout
}

// Send delivers v and returns the server's reply line.
//
// The whole exchange must finish within the configured timeout (or ctx's
// deadline, whichever is sooner). Any failure is a *DeliveryError; no retry
// is attempted.
func (c *Client) Send(ctx context.Context, v gains.Vector) (string, error) {
	addr := c.Addr()

	ctx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return "", &DeliveryError{Op: "dial", Addr: addr, Err: err}
	}
	defer conn.Close()

	// One deadline for the rest of the exchange; cancellation of ctx also
	// unblocks any pending read or write.
	deadline, _ := ctx.Deadline()
	_ = conn.SetDeadline(deadline)
	stop := context.AfterFunc(ctx, func() {
		_ = conn.SetDeadline(time.Now())
	})
	defer stop()

	payload := v.EncodeRequest()
	if _, err := conn.Write(payload); err != nil {
		return "", &DeliveryError{Op: "write", Addr: addr, Err: ctxErr(ctx, err)}
	}

	// Half-close: tell the server no more data is coming, keep reading.
	if cw, ok := conn.(interface{ CloseWrite() error }); ok {
		if err := cw.CloseWrite(); err != nil {
			return "", &DeliveryError{Op: "close-write", Addr: addr, Err: ctxErr(ctx, err)}
		}
	}

	resp, err := readResponse(conn)
	if err != nil {
		return "", &DeliveryError{Op: "read", Addr: addr, Err: ctxErr(ctx, err)}
	}

	c.logger.Debug("gains delivered", "addr", addr, "payload", strings.TrimSpace(string(payload)), "response", resp)
	return resp, nil
}

// readResponse reads until a newline, EOF, or ResponseBufferSize bytes.
func readResponse(r io.Reader) (string, error) {
	buf := make([]byte, ResponseBufferSize)
	n := 0
	for n < len(buf) {
		m, err := r.Read(buf[n:])
		n += m
		if bytes.IndexByte(buf[:n], '\n') >= 0 {
			break
		}
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return "", err
		}
	}
	return decodeResponse(buf[:n]), nil
}

// decodeResponse decodes UTF-8, replacing invalid sequences, and trims
// surrounding whitespace.
func decodeResponse(b []byte) string {
	return strings.TrimSpace(strings.ToValidUTF8(string(b), "\uFFFD"))
}

// ctxErr prefers the context error when the context ended the exchange.
func ctxErr(ctx context.Context, err error) error {
	if cerr := ctx.Err(); cerr != nil {
		return errors.Join(cerr, err)
	}
	return err
}
