package statews

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// HubConfig sizes the hub queues. Zero values take defaults.
type HubConfig struct {
	SendBuf      int // per-peer outbound queue
	BroadcastBuf int // hub inbound queue
}

// Hub fans serialized frames out to every connected peer. A peer whose
// queue is full is dropped rather than allowed to stall the others.
type Hub struct {
	logger *slog.Logger

	broadcast  chan []byte
	register   chan *peer
	unregister chan *peer
	done       chan struct{} // closed when Run returns

	mu    sync.Mutex
	peers map[*peer]struct{}

	sendBuf int

	// welcome builds the first frame for a new peer. It runs on the hub
	// goroutine, so no broadcast can slip between it and registration.
	welcome func() ([]byte, error)
}

// NewHub constructs a hub. Call Run(ctx) to start it.
func NewHub(logger *slog.Logger, cfg HubConfig) *Hub {
	if cfg.SendBuf <= 0 {
		cfg.SendBuf = 16
	}
	if cfg.BroadcastBuf <= 0 {
		cfg.BroadcastBuf = 64
	}
	return &Hub{
		logger:     logger,
		broadcast:  make(chan []byte, cfg.BroadcastBuf),
		register:   make(chan *peer),
		unregister: make(chan *peer, 16),
		done:       make(chan struct{}),
		peers:      make(map[*peer]struct{}),
		sendBuf:    cfg.SendBuf,
	}
}

// Run processes hub events until ctx is canceled, then disconnects every
// peer.
func (h *Hub) Run(ctx context.Context) {
	h.logger.Debug("state feed hub starting")
	defer close(h.done)

	for {
		select {
		case <-ctx.Done():
			h.logger.Debug("state feed hub stopping")
			h.dropAll()
			return

		case p := <-h.register:
			if !h.greet(p) {
				continue
			}
			h.mu.Lock()
			h.peers[p] = struct{}{}
			n := len(h.peers)
			h.mu.Unlock()
			h.logger.Info("state feed client connected", "remote_addr", p.remoteAddr, "clients", n)

		case p := <-h.unregister:
			h.drop(p, "unregister")

		case msg := <-h.broadcast:
			var slow []*peer

			h.mu.Lock()
			for p := range h.peers {
				select {
				case p.send <- msg:
				default:
					slow = append(slow, p)
				}
			}
			h.mu.Unlock()

			for _, p := range slow {
				h.drop(p, "slow_client")
			}
		}
	}
}

// Clients returns the number of registered peers.
func (h *Hub) Clients() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.peers)
}

// Broadcast enqueues a serialized frame. It never blocks; a full hub
// queue drops the frame.
func (h *Hub) Broadcast(msg []byte) {
	select {
	case h.broadcast <- msg:
	default:
		h.logger.Warn("state feed queue full, dropping message", "bytes", len(msg))
	}
}

// greet queues the welcome frame on a fresh peer.
func (h *Hub) greet(p *peer) bool {
	if h.welcome == nil {
		return true
	}
	msg, err := h.welcome()
	if err != nil {
		h.logger.Warn("state feed welcome failed", "remote_addr", p.remoteAddr, "error", err)
		p.close()
		return false
	}
	select {
	case p.send <- msg:
		return true
	default:
		p.close()
		return false
	}
}

// join hands p to the hub goroutine unless the hub has stopped.
func (h *Hub) join(p *peer) bool {
	select {
	case h.register <- p:
		return true
	case <-h.done:
		return false
	}
}

func (h *Hub) leave(p *peer) {
	select {
	case h.unregister <- p:
	case <-h.done:
	}
}

func (h *Hub) drop(p *peer, reason string) {
	h.mu.Lock()
	_, ok := h.peers[p]
	delete(h.peers, p)
	n := len(h.peers)
	h.mu.Unlock()

	if !ok {
		return
	}
	p.close()
	h.logger.Info("state feed client disconnected", "remote_addr", p.remoteAddr, "reason", reason, "clients", n)
}

func (h *Hub) dropAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for p := range h.peers {
		p.close()
		delete(h.peers, p)
	}
}

// ============================================================================
// Peer
// ============================================================================

const (
	writeWait  = 5 * time.Second
	pongWait   = 30 * time.Second
	pingPeriod = 20 * time.Second
)

// peer is one websocket subscriber. conn may be nil in tests that never
// touch the network.
type peer struct {
	hub  *Hub
	conn *websocket.Conn
	send chan []byte

	remoteAddr string
	logger     *slog.Logger

	closeOnce sync.Once
}

func newPeer(hub *Hub, conn *websocket.Conn, remoteAddr string) *peer {
	return &peer{
		hub:        hub,
		conn:       conn,
		send:       make(chan []byte, hub.sendBuf),
		remoteAddr: remoteAddr,
		logger:     hub.logger,
	}
}

// close shuts the connection and ends writePump. Safe to call repeatedly.
func (p *peer) close() {
	p.closeOnce.Do(func() {
		if p.conn != nil {
			_ = p.conn.Close()
		}
		close(p.send)
	})
}

func closeReason(err error) (int, string, bool) {
	var ce *websocket.CloseError
	if errors.As(err, &ce) {
		return ce.Code, ce.Text, true
	}
	return 0, "", false
}

func (p *peer) logExit(pump string, err error) {
	if errors.Is(err, websocket.ErrCloseSent) {
		return
	}
	if code, text, ok := closeReason(err); ok {
		p.logger.Debug("state feed "+pump+" exiting (close)", "remote_addr", p.remoteAddr, "code", code, "reason", text)
		return
	}
	p.logger.Debug("state feed "+pump+" exiting", "remote_addr", p.remoteAddr, "error", err)
}

// writePump drains the send queue onto the socket and keeps it alive with
// pings. It exits when the queue is closed or a write fails.
func (p *peer) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case msg, ok := <-p.send:
			_ = p.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = p.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}
			if err := p.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				p.logExit("writePump", err)
				return
			}

		case <-ticker.C:
			_ = p.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := p.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				p.logExit("writePump", err)
				return
			}
		}
	}
}

// readPump discards inbound frames so control messages are handled and a
// disconnect is noticed, then unregisters the peer.
func (p *peer) readPump() {
	_ = p.conn.SetReadDeadline(time.Now().Add(pongWait))
	p.conn.SetPongHandler(func(string) error {
		return p.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := p.conn.ReadMessage(); err != nil {
			p.logExit("readPump", err)
			p.hub.leave(p)
			return
		}
	}
}
