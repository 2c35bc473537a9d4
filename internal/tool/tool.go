// Package tool exposes gain control as a single agent-callable tool.
package tool

import (
	"context"
	"encoding/json"
)

// Tool is a function an LLM agent can call with a JSON argument string.
type Tool interface {
	Spec() (name, description string, schema json.RawMessage)
	Call(ctx context.Context, args string) (string, error)
}
