package statews

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/binhminh9527/Equalizer-Agent/internal/equalizer"
)

// Source supplies the gains reported to new subscribers.
type Source interface {
	Snapshot() equalizer.Snapshot
}

// Server serves the websocket feed and the JSON endpoint.
type Server struct {
	logger *slog.Logger
	hub    *Hub
	source Source
	mux    *http.ServeMux
}

// NewServer wires a hub and handlers. Start the hub with Hub().Run(ctx) and
// feed it with RunBroadcaster.
func NewServer(source Source, logger *slog.Logger, cfg HubConfig) *Server {
	s := &Server{
		logger: logger,
		hub:    NewHub(logger, cfg),
		source: source,
		mux:    http.NewServeMux(),
	}
	s.hub.welcome = s.stateInit
	s.mux.HandleFunc(PathWS, s.handleWS)
	s.mux.HandleFunc(PathGains, s.handleGains)
	return s
}

func (s *Server) Hub() *Hub { return s.hub }

// Handler returns the HTTP handler for both paths.
func (s *Server) Handler() http.Handler { return s.mux }

var upgrader = websocket.Upgrader{
	// The feed is read-only and bound to loopback by default.
	CheckOrigin: func(r *http.Request) bool { return true },
}

func (s *Server) stateInit() ([]byte, error) {
	return marshalGains(TypeStateInit, s.source.Snapshot())
}

// handleWS upgrades the connection and registers the peer with the hub,
// which queues state_init as its first frame.
func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("state feed upgrade failed", "error", err)
		return
	}

	p := newPeer(s.hub, conn, r.RemoteAddr)
	if !s.hub.join(p) {
		p.close()
		return
	}

	// Pumps outlive the request; the hub and socket errors end them.
	go p.writePump()
	go p.readPump()
}

func (s *Server) handleGains(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		w.Header().Set("Allow", "GET, HEAD")
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	b, err := json.Marshal(gainsData(s.source.Snapshot()))
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write(append(b, '\n'))
}

// Serve runs the HTTP server on ln and shuts it down gracefully when ctx is
// canceled.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	s.logger.Info("state feed listening", "addr", ln.Addr().String())

	srv := &http.Server{
		Handler:           s.mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("state feed HTTP server: %w", err)
			return
		}
		errCh <- nil
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()

		// Shutdown does not wait for hijacked websocket connections; the hub
		// closes those when its own context ends.
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("state feed HTTP shutdown: %w", err)
		}
		<-errCh
		return nil

	case err := <-errCh:
		return err
	}
}

// ListenAndServe listens on addr and calls Serve.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	var lc net.ListenConfig
	ln, err := lc.Listen(ctx, "tcp", addr)
	if err != nil {
		return fmt.Errorf("state feed listen on %s: %w", addr, err)
	}
	return s.Serve(ctx, ln)
}
