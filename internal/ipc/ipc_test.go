package ipc

import (
	"context"
	"errors"
	"io"
	"net"
	"runtime"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/binhminh9527/Equalizer-Agent/internal/gains"
)

// recorder is an Applier that remembers every vector it was given.
type recorder struct {
	mu  sync.Mutex
	got []gains.Vector
}

func (r *recorder) Apply(v gains.Vector) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.got = append(r.got, v)
	return nil
}

func (r *recorder) all() []gains.Vector {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]gains.Vector(nil), r.got...)
}

// startServer runs a reference server on an ephemeral loopback port.
func startServer(t *testing.T, applier Applier, cfg ServerConfig) int {
	t.Helper()

	ctx, cancel := context.WithCancel(context.Background())
	srv := NewServer(cfg, applier, nil)
	ln, err := srv.Listen(ctx)
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() { done <- srv.Serve(ctx, ln) }()

	t.Cleanup(func() {
		cancel()
		select {
		case err := <-done:
			assert.NoError(t, err)
		case <-time.After(2 * time.Second):
			t.Error("server did not stop")
		}
	})

	return ln.Addr().(*net.TCPAddr).Port
}

func newTestClient(port int, timeout time.Duration) *Client {
	return NewClient(ClientConfig{Host: "127.0.0.1", Port: port, Timeout: timeout}, nil)
}

// rawServer accepts one connection and hands it to fn.
func rawServer(t *testing.T, fn func(net.Conn)) int {
	t.Helper()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { _ = ln.Close() })

	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		fn(conn)
	}()

	return ln.Addr().(*net.TCPAddr).Port
}

func TestSend_PresetDelivered(t *testing.T) {
	rec := &recorder{}
	port := startServer(t, rec, ServerConfig{})

	bass, err := gains.ParseCommand("bass")
	require.NoError(t, err)

	resp, err := newTestClient(port, time.Second).Send(context.Background(), bass)
	require.NoError(t, err)
	assert.Equal(t, "OK", resp)
	assert.Equal(t, []gains.Vector{{4, 3, 2, 1, 0, 0, -1, -2, -3, -4}}, rec.all())
}

func TestSend_NumbersDeliveredVerbatim(t *testing.T) {
	rec := &recorder{}
	port := startServer(t, rec, ServerConfig{})

	v, err := gains.ParseCommand("0 3 -2 0 5 0 -3 2 0 1")
	require.NoError(t, err)

	resp, err := newTestClient(port, time.Second).Send(context.Background(), v)
	require.NoError(t, err)
	assert.Equal(t, "OK", resp)
	assert.Equal(t, []gains.Vector{{0, 3, -2, 0, 5, 0, -3, 2, 0, 1}}, rec.all())
}

func TestSend_WirePayloadAndHalfClose(t *testing.T) {
	received := make(chan []byte, 1)
	port := rawServer(t, func(conn net.Conn) {
		// ReadAll only returns once the client has half-closed.
		b, _ := io.ReadAll(conn)
		received <- b
		_, _ = conn.Write([]byte("OK\n"))
	})

	resp, err := newTestClient(port, time.Second).Send(context.Background(), gains.Vector{4, 3, 2, 1, 0, 0, -1, -2, -3, -4})
	require.NoError(t, err)
	assert.Equal(t, "OK", resp)
	assert.Equal(t, "[4,3,2,1,0,0,-1,-2,-3,-4]\n", string(<-received))
}

func TestSend_ResponseIsOpaque(t *testing.T) {
	port := rawServer(t, func(conn net.Conn) {
		_, _ = io.ReadAll(conn)
		_, _ = conn.Write([]byte("  applied \xff preset\r\n"))
	})

	resp, err := newTestClient(port, time.Second).Send(context.Background(), gains.Vector{})
	require.NoError(t, err)
	assert.Equal(t, "applied \uFFFD preset", resp)
}

func TestSend_ResponseWithoutNewlineEndsAtEOF(t *testing.T) {
	port := rawServer(t, func(conn net.Conn) {
		_, _ = io.ReadAll(conn)
		_, _ = conn.Write([]byte("done"))
	})

	resp, err := newTestClient(port, time.Second).Send(context.Background(), gains.Vector{})
	require.NoError(t, err)
	assert.Equal(t, "done", resp)
}

func TestSend_ResponseCappedAtBufferSize(t *testing.T) {
	port := rawServer(t, func(conn net.Conn) {
		_, _ = io.ReadAll(conn)
		_, _ = conn.Write([]byte(strings.Repeat("x", 3*ResponseBufferSize)))
	})

	resp, err := newTestClient(port, time.Second).Send(context.Background(), gains.Vector{})
	require.NoError(t, err)
	assert.Len(t, resp, ResponseBufferSize)
}

func TestSend_SilentServerTimesOut(t *testing.T) {
	port := rawServer(t, func(conn net.Conn) {
		// Read the request but never answer.
		_, _ = io.ReadAll(conn)
		time.Sleep(2 * time.Second)
	})

	timeout := 200 * time.Millisecond
	start := time.Now()
	_, err := newTestClient(port, timeout).Send(context.Background(), gains.Vector{})
	elapsed := time.Since(start)

	require.Error(t, err)
	assert.ErrorIs(t, err, ErrDeliveryFailed)

	var de *DeliveryError
	require.ErrorAs(t, err, &de)
	assert.Equal(t, "read", de.Op)
	assert.True(t, de.Timeout())
	assert.Less(t, elapsed, timeout+500*time.Millisecond)
}

func TestSend_ConnectionRefused(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	port := ln.Addr().(*net.TCPAddr).Port
	require.NoError(t, ln.Close())

	_, err = newTestClient(port, time.Second).Send(context.Background(), gains.Vector{})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrDeliveryFailed)

	var de *DeliveryError
	require.ErrorAs(t, err, &de)
	assert.Equal(t, "dial", de.Op)
	assert.Contains(t, err.Error(), "delivery failed")
}

func TestSend_ContextCanceled(t *testing.T) {
	port := rawServer(t, func(conn net.Conn) {
		_, _ = io.ReadAll(conn)
		time.Sleep(2 * time.Second)
	})

	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(100*time.Millisecond, cancel)

	start := time.Now()
	_, err := newTestClient(port, 5*time.Second).Send(ctx, gains.Vector{})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrDeliveryFailed)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Less(t, time.Since(start), time.Second)
}

func TestSend_Idempotent(t *testing.T) {
	rec := &recorder{}
	port := startServer(t, rec, ServerConfig{})
	client := newTestClient(port, time.Second)

	v := gains.Vector{1, 2, 3, 4, 5, 6, 7, 8, 9, 10}
	for i := 0; i < 3; i++ {
		resp, err := client.Send(context.Background(), v)
		require.NoError(t, err)
		assert.Equal(t, "OK", resp)
	}
	assert.Equal(t, []gains.Vector{v, v, v}, rec.all())
}

func TestServer_ConcurrentRequestsApplyInFull(t *testing.T) {
	rec := &recorder{}
	port := startServer(t, rec, ServerConfig{})
	client := newTestClient(port, 2*time.Second)

	const n = 20
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			var v gains.Vector
			for b := range v {
				v[b] = float64(i)
			}
			resp, err := client.Send(context.Background(), v)
			assert.NoError(t, err)
			assert.Equal(t, "OK", resp)
		}(i)
	}
	wg.Wait()

	got := rec.all()
	require.Len(t, got, n)
	for _, v := range got {
		// Every applied vector is one complete request, never a mix.
		for b := range v {
			assert.Equal(t, v[0], v[b])
		}
	}
}

// exchange writes a raw request, half-closes and returns the reply line.
func exchange(t *testing.T, port int, req string) string {
	t.Helper()

	conn, err := net.DialTimeout("tcp", joinHostPort("127.0.0.1", port), time.Second)
	require.NoError(t, err)
	defer conn.Close()
	_ = conn.SetDeadline(time.Now().Add(2 * time.Second))

	_, err = io.WriteString(conn, req)
	require.NoError(t, err)
	require.NoError(t, conn.(*net.TCPConn).CloseWrite())

	b, err := io.ReadAll(conn)
	require.NoError(t, err)
	return string(b)
}

func TestServer_RejectsMalformedRequests(t *testing.T) {
	rec := &recorder{}
	port := startServer(t, rec, ServerConfig{MaxRequestBytes: 256})

	cases := map[string]string{
		"too few":      "[1,2,3]\n",
		"too many":     "[0,0,0,0,0,0,0,0,0,0,0]\n",
		"string value": "[0,0,0,0,\"5\",0,0,0,0,0]\n",
		"null value":   "[0,0,0,0,null,0,0,0,0,0]\n",
		"not an array": "{\"gains\":[0,0,0,0,0,0,0,0,0,0]}\n",
		"not json":     "bass\n",
		"empty":        "\n",
		"oversized":    "[" + strings.Repeat("0,", 200) + "0]\n",
	}

	for name, req := range cases {
		reply := exchange(t, port, req)
		assert.True(t, strings.HasPrefix(reply, "ERROR: "), "%s: %q", name, reply)
		assert.True(t, strings.HasSuffix(reply, "\n"), name)
		assert.Equal(t, 1, strings.Count(reply, "\n"), name)
	}
	assert.Empty(t, rec.all())
}

func TestServer_AcceptsRequestWithoutNewline(t *testing.T) {
	rec := &recorder{}
	port := startServer(t, rec, ServerConfig{})

	assert.Equal(t, "OK\n", exchange(t, port, "[1,1,1,1,1,1,1,1,1,1]"))
	assert.Equal(t, []gains.Vector{{1, 1, 1, 1, 1, 1, 1, 1, 1, 1}}, rec.all())
}

func TestServer_ApplyErrorReported(t *testing.T) {
	port := startServer(t, ApplierFunc(func(gains.Vector) error {
		return errors.New("pipeline\nnot ready")
	}), ServerConfig{})

	assert.Equal(t, "ERROR: pipeline not ready\n", exchange(t, port, "[0,0,0,0,0,0,0,0,0,0]\n"))
}

func TestServer_ReadTimeout(t *testing.T) {
	port := startServer(t, &recorder{}, ServerConfig{ReadTimeout: 100 * time.Millisecond})

	conn, err := net.Dial("tcp", joinHostPort("127.0.0.1", port))
	require.NoError(t, err)
	defer conn.Close()
	_ = conn.SetDeadline(time.Now().Add(2 * time.Second))

	// Never finish the request; the server must give up and answer.
	_, err = io.WriteString(conn, "[0,0")
	require.NoError(t, err)

	b, err := io.ReadAll(conn)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(b), "ERROR: "), "%q", b)
}

func TestServer_ShutdownReturnsNil(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	srv := NewServer(ServerConfig{}, &recorder{}, nil)
	assert.Nil(t, srv.Addr())

	done := make(chan error, 1)
	go func() { done <- srv.ListenAndServe(ctx) }()

	require.Eventually(t, func() bool { return srv.Addr() != nil }, 2*time.Second, 10*time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("ListenAndServe did not return after cancel")
	}
}

func TestServer_ReusePort(t *testing.T) {
	switch runtime.GOOS {
	case "linux", "darwin", "freebsd", "netbsd", "openbsd", "dragonfly":
	default:
		t.Skip("SO_REUSEPORT not supported on " + runtime.GOOS)
	}

	ctx := context.Background()
	first := NewServer(ServerConfig{ReusePort: true}, &recorder{}, nil)
	ln1, err := first.Listen(ctx)
	require.NoError(t, err)
	defer ln1.Close()

	port := ln1.Addr().(*net.TCPAddr).Port
	second := NewServer(ServerConfig{Port: port, ReusePort: true}, &recorder{}, nil)
	ln2, err := second.Listen(ctx)
	require.NoError(t, err)
	defer ln2.Close()

	// Without the option the port is taken.
	third := NewServer(ServerConfig{Port: port}, &recorder{}, nil)
	_, err = third.Listen(ctx)
	assert.Error(t, err)
}

func TestNewClient_Defaults(t *testing.T) {
	c := NewClient(ClientConfig{}, nil)
	assert.Equal(t, "127.0.0.1:5560", c.Addr())
	assert.Equal(t, 3*time.Second, c.Timeout())
}
