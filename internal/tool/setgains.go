package tool

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/binhminh9527/Equalizer-Agent/internal/gains"
	"github.com/binhminh9527/Equalizer-Agent/internal/logging"
)

// Name is the tool name presented to the agent.
const Name = "set_equalizer_gains"

// DefaultCallTimeout bounds one invocation end to end. It must exceed the
// client's socket timeout so the inner deadline fires first.
const DefaultCallTimeout = 5 * time.Second

const description = `Set equalizer band gains. ` +
	`Pass either a preset name (flat, bass, treble, vshape) or exactly 10 ` +
	`space-separated gain values in dB, lowest band first, e.g. "0 3 -2 0 5 0 -3 2 0 1".`

var schema = json.RawMessage(`{
  "type": "object",
  "properties": {
    "gains": {
      "type": "string",
      "description": "Preset name (flat/bass/treble/vshape) or 10 space-separated gains in dB"
    }
  },
  "required": ["gains"]
}`)

// Messages returned to the agent
const (
	msgNeedGains = "ERROR: Need exactly 10 gains or a preset name (flat/bass/treble/vshape)"
	msgSuccess   = "✓ Gains set successfully. Server response: "
	msgSentGains = "\nSent gains: "
	msgFailure   = "✗ Error: "
)

// Deliverer sends a gain vector and returns the server reply.
// *ipc.Client implements it.
type Deliverer interface {
	Send(ctx context.Context, v gains.Vector) (string, error)
}

// SetGains is the set_equalizer_gains tool.
type SetGains struct {
	client      Deliverer
	callTimeout time.Duration
	logger      *slog.Logger
	invocations *slog.Logger // optional invocation log
}

// Option configures SetGains.
type Option func(*SetGains)

// WithCallTimeout overrides DefaultCallTimeout.
func WithCallTimeout(d time.Duration) Option {
	return func(s *SetGains) {
		if d > 0 {
			s.callTimeout = d
		}
	}
}

// WithInvocationLog records every invocation and its result on l.
func WithInvocationLog(l *slog.Logger) Option {
	return func(s *SetGains) { s.invocations = l }
}

// NewSetGains creates the tool around a delivery client.
func NewSetGains(client Deliverer, logger *slog.Logger, opts ...Option) *SetGains {
	s := &SetGains{
		client:      client,
		callTimeout: DefaultCallTimeout,
		logger:      logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = logging.Discard()
	}
	if s.invocations == nil {
		s.invocations = logging.Discard()
	}
	return s
}

// Spec implements Tool.
func (s *SetGains) Spec() (string, string, json.RawMessage) {
	return Name, description, schema
}

// Call implements Tool. args is {"gains": "<command>"}; anything that is
// not a JSON object is taken as the command itself. The error is always
// nil; failures are reported in the returned text.
func (s *SetGains) Call(ctx context.Context, args string) (string, error) {
	return s.Invoke(ctx, commandFromArgs(args)), nil
}

// Invoke runs one command and returns the user-facing result.
func (s *SetGains) Invoke(ctx context.Context, command string) string {
	s.invocations.Info("invoked", "gains", command)
	msg := s.invoke(ctx, command)
	s.invocations.Info(msg)
	return msg
}

func (s *SetGains) invoke(ctx context.Context, command string) string {
	v, err := gains.ParseCommand(command)
	if err != nil {
		s.logger.Debug("tool rejected command", "command", command, "error", err)
		return rejection(err)
	}

	ctx, cancel := context.WithTimeout(ctx, s.callTimeout)
	defer cancel()

	resp, err := s.client.Send(ctx, v)
	if err != nil {
		s.logger.Warn("tool delivery failed", "gains", v.String(), "error", err)
		return msgFailure + err.Error()
	}
	return msgSuccess + resp + msgSentGains + string(v.Encode())
}

func rejection(err error) string {
	if errors.Is(err, gains.ErrWrongCount) || errors.Is(err, gains.ErrUnknownPreset) {
		return msgNeedGains
	}
	return "ERROR: " + err.Error()
}

type callArgs struct {
	Gains json.RawMessage `json:"gains"`
}

// commandFromArgs extracts the command string. A numeric array under
// "gains" is accepted and joined with spaces.
func commandFromArgs(args string) string {
	trimmed := strings.TrimSpace(args)
	if !strings.HasPrefix(trimmed, "{") {
		return trimmed
	}

	var a callArgs
	if err := json.Unmarshal([]byte(trimmed), &a); err != nil || a.Gains == nil {
		return trimmed
	}

	var str string
	if err := json.Unmarshal(a.Gains, &str); err == nil {
		return str
	}

	var nums []json.Number
	if err := json.Unmarshal(a.Gains, &nums); err == nil {
		parts := make([]string, len(nums))
		for i, n := range nums {
			parts[i] = n.String()
		}
		return strings.Join(parts, " ")
	}

	return string(a.Gains)
}
