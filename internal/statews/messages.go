// Package statews publishes the active equalizer gains over a websocket
// feed and a small JSON HTTP endpoint.
//
// ============================================================================
// Feed protocol
// ============================================================================
//   - Messages are JSON text frames with an envelope: {type, ts, data}
//   - The first message on connect is "state_init" with the current gains
//   - Every accepted gain request yields "gains_changed" (bursts coalesced,
//     latest wins)
//   - GET /api/gains returns the same data object as plain JSON
//
// The feed is read-only: anything a client sends is discarded.
// ============================================================================
package statews

import (
	"encoding/json"
	"time"

	"github.com/binhminh9527/Equalizer-Agent/internal/equalizer"
	"github.com/binhminh9527/Equalizer-Agent/internal/gains"
)

// Message types
const (
	TypeStateInit    = "state_init"
	TypeGainsChanged = "gains_changed"
)

// Default HTTP paths
const (
	PathWS    = "/ws"
	PathGains = "/api/gains"
)

// GainsData is the `data` payload of both message types.
type GainsData struct {
	Gains     gains.Vector `json:"gains"`
	Bands     []string     `json:"bands"`
	Version   uint64       `json:"version"`
	UpdatedAt time.Time    `json:"updated_at"`
}

func gainsData(snap equalizer.Snapshot) GainsData {
	return GainsData{
		Gains:     snap.Gains,
		Bands:     gains.BandLabels[:],
		Version:   snap.Version,
		UpdatedAt: snap.UpdatedAt.UTC(),
	}
}

// envelope is the outbound wire format.
type envelope struct {
	Type string     `json:"type"`
	Ts   *time.Time `json:"ts,omitempty"`
	Data any        `json:"data,omitempty"`
}

// Message is an inbound frame as seen by feed consumers.
type Message struct {
	Type string          `json:"type"`
	Ts   *time.Time      `json:"ts,omitempty"`
	Data json.RawMessage `json:"data,omitempty"`
}

// Gains decodes the payload of a state_init or gains_changed message.
func (m Message) Gains() (GainsData, error) {
	var d GainsData
	err := json.Unmarshal(m.Data, &d)
	return d, err
}

func marshalGains(typ string, snap equalizer.Snapshot) ([]byte, error) {
	now := time.Now().UTC()
	return json.Marshal(envelope{
		Type: typ,
		Ts:   &now,
		Data: gainsData(snap),
	})
}
