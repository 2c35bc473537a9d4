package statews

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
)

// ErrStop may be returned by a Watch callback to end the watch cleanly.
var ErrStop = errors.New("stop watching")

// Watch connects to a state feed at wsURL and calls fn for every message,
// starting with state_init. It returns nil when ctx is canceled, the
// server closes normally, or fn returns ErrStop.
func Watch(ctx context.Context, wsURL string, fn func(Message) error) error {
	d := websocket.Dialer{HandshakeTimeout: 5 * time.Second}

	conn, _, err := d.DialContext(ctx, wsURL, nil)
	if err != nil {
		return fmt.Errorf("connect to %s: %w", wsURL, err)
	}
	defer conn.Close()

	stop := context.AfterFunc(ctx, func() {
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second))
		_ = conn.Close()
	})
	defer stop()

	// Server pings keep the read deadline moving.
	_ = conn.SetReadDeadline(time.Now().Add(pongWait + pingPeriod))
	conn.SetPingHandler(func(data string) error {
		_ = conn.SetReadDeadline(time.Now().Add(pongWait + pingPeriod))
		return conn.WriteControl(websocket.PongMessage, []byte(data), time.Now().Add(writeWait))
	})

	for {
		typ, raw, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil || websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return nil
			}
			return fmt.Errorf("read state feed: %w", err)
		}
		if typ != websocket.TextMessage {
			continue
		}

		var msg Message
		if err := json.Unmarshal(raw, &msg); err != nil {
			return fmt.Errorf("decode state feed message: %w", err)
		}
		if err := fn(msg); err != nil {
			if errors.Is(err, ErrStop) {
				return nil
			}
			return err
		}
	}
}

// FetchGains reads the active gains from the JSON endpoint at url.
func FetchGains(ctx context.Context, client *http.Client, url string) (GainsData, error) {
	if client == nil {
		client = http.DefaultClient
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return GainsData{}, err
	}
	resp, err := client.Do(req)
	if err != nil {
		return GainsData{}, fmt.Errorf("fetch gains: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return GainsData{}, fmt.Errorf("fetch gains: unexpected status %s", resp.Status)
	}

	var d GainsData
	if err := json.NewDecoder(resp.Body).Decode(&d); err != nil {
		return GainsData{}, fmt.Errorf("decode gains: %w", err)
	}
	return d, nil
}
