package ipc

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"strings"
	"sync"
	"time"

	"github.com/binhminh9527/Equalizer-Agent/internal/gains"
	"github.com/binhminh9527/Equalizer-Agent/internal/logging"
)

// Applier receives every accepted gain vector. Implementations must be safe
// for concurrent use; the server calls Apply from one goroutine per
// connection.
type Applier interface {
	Apply(v gains.Vector) error
}

// ApplierFunc adapts a function to Applier.
type ApplierFunc func(v gains.Vector) error

func (f ApplierFunc) Apply(v gains.Vector) error { return f(v) }

// ServerConfig configures the reference server. Zero values take defaults,
// except Port where 0 asks the kernel for a free port.
type ServerConfig struct {
	ListenHost      string
	Port            int
	ReadTimeout     time.Duration // time allowed to receive one request
	MaxRequestBytes int
	ReusePort       bool // set SO_REUSEPORT on the listening socket
}

var (
	errEmptyRequest    = errors.New("empty request")
	errRequestTooLarge = errors.New("request too large")
)

// Server is the reference gain IPC server: one request per connection,
// one reply line, then close.
type Server struct {
	cfg     ServerConfig
	applier Applier
	logger  *slog.Logger

	mu   sync.Mutex
	addr net.Addr

	wg sync.WaitGroup
}

// NewServer constructs a server that hands accepted vectors to applier.
func NewServer(cfg ServerConfig, applier Applier, logger *slog.Logger) *Server {
	if cfg.ListenHost == "" {
		cfg.ListenHost = DefaultHost
	}
	if cfg.ReadTimeout <= 0 {
		cfg.ReadTimeout = DefaultReadTimeout
	}
	if cfg.MaxRequestBytes <= 0 {
		cfg.MaxRequestBytes = DefaultMaxRequestBytes
	}
	if logger == nil {
		logger = logging.Discard()
	}
	return &Server{cfg: cfg, applier: applier, logger: logger}
}

// Listen opens the TCP listener described by the config.
func (s *Server) Listen(ctx context.Context) (net.Listener, error) {
	addr := joinHostPort(s.cfg.ListenHost, s.cfg.Port)

	lc := net.ListenConfig{}
	if s.cfg.ReusePort {
		lc.Control = reusePortControl
	}

	ln, err := lc.Listen(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("listen on %s: %w", addr, err)
	}
	return ln, nil
}

// Addr returns the address being served, or nil before Serve starts.
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.addr
}

// ListenAndServe listens and serves until ctx is canceled.
func (s *Server) ListenAndServe(ctx context.Context) error {
	ln, err := s.Listen(ctx)
	if err != nil {
		return err
	}
	return s.Serve(ctx, ln)
}

// Serve accepts connections on ln until ctx is canceled, at which point it
// closes the listener, waits for in-flight connections and returns nil.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	defer ln.Close()

	s.mu.Lock()
	s.addr = ln.Addr()
	s.mu.Unlock()

	s.logger.Info("gain IPC listening", "addr", ln.Addr().String())

	// Close the listener on shutdown. This unblocks Accept().
	stop := context.AfterFunc(ctx, func() {
		_ = ln.Close()
	})
	defer stop()

	for {
		conn, err := ln.Accept()
		if err != nil {
			// Exit cleanly on shutdown/close.
			if ctx.Err() != nil {
				s.logger.Debug("gain IPC listener closed (shutdown)")
				s.wg.Wait()
				return nil
			}
			if errors.Is(err, net.ErrClosed) {
				s.logger.Debug("gain IPC listener closed")
				s.wg.Wait()
				return nil
			}

			s.logger.Error("gain IPC accept error", "error", err)
			continue
		}

		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.handleConn(conn)
		}()
	}
}

// handleConn processes a single request and closes the connection.
func (s *Server) handleConn(conn net.Conn) {
	defer conn.Close()

	remote := conn.RemoteAddr().String()
	s.logger.Debug("gain IPC connection", "remote_addr", remote)

	_ = conn.SetReadDeadline(time.Now().Add(s.cfg.ReadTimeout))

	req, err := readRequest(conn, s.cfg.MaxRequestBytes)
	if err != nil {
		s.logger.Warn("gain IPC read failed", "remote_addr", remote, "error", err)
		s.reply(conn, errorLine(err))
		return
	}
	s.logger.Debug("gain IPC received", "remote_addr", remote, "line", string(req))

	v, err := gains.DecodeVector(req)
	if err != nil {
		s.logger.Warn("gain IPC rejected request", "remote_addr", remote, "error", err)
		s.reply(conn, errorLine(err))
		return
	}

	if err := s.applier.Apply(v); err != nil {
		s.logger.Error("gain IPC apply failed", "remote_addr", remote, "error", err)
		s.reply(conn, errorLine(err))
		return
	}

	s.logger.Info("gains applied", "remote_addr", remote, "gains", v.String())
	s.reply(conn, ResponseOK)
}

func (s *Server) reply(conn net.Conn, line string) {
	_ = conn.SetWriteDeadline(time.Now().Add(s.cfg.ReadTimeout))
	if _, err := io.WriteString(conn, line+"\n"); err != nil {
		s.logger.Warn("gain IPC failed to send response", "remote_addr", conn.RemoteAddr().String(), "error", err)
	}
}

func errorLine(err error) string {
	msg := strings.Join(strings.Fields(err.Error()), " ")
	return ResponseErrorPrefix + ": " + msg
}

// readRequest reads one request: everything up to the first newline, or up
// to EOF when the client half-closes without one.
func readRequest(r io.Reader, limit int) ([]byte, error) {
	buf := make([]byte, 0, 256)
	chunk := make([]byte, 512)
	for {
		if i := bytes.IndexByte(buf, '\n'); i >= 0 {
			return checkRequest(buf[:i], limit)
		}
		if len(buf) > limit {
			return nil, errRequestTooLarge
		}

		n, err := r.Read(chunk)
		buf = append(buf, chunk[:n]...)
		if err != nil {
			if !errors.Is(err, io.EOF) {
				return nil, err
			}
			if i := bytes.IndexByte(buf, '\n'); i >= 0 {
				buf = buf[:i]
			}
			return checkRequest(buf, limit)
		}
	}
}

func checkRequest(b []byte, limit int) ([]byte, error) {
	b = bytes.TrimSpace(b)
	if len(b) == 0 {
		return nil, errEmptyRequest
	}
	if len(b) > limit {
		return nil, errRequestTooLarge
	}
	return b, nil
}
