// Package gains implements the equalizer gain command codec.
//
// A command is either one of the built-in preset names or exactly ten
// whitespace-separated numbers (one dB value per band). Both resolve to a
// Vector, which is also the payload of the gain IPC protocol.
package gains

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// NumBands is the number of equalizer bands.
const NumBands = 10

// Advisory per-band range in dB. The codec does not enforce it.
const (
	MinDB = -30.0
	MaxDB = 30.0
)

// BandLabels are the nominal band centers, lowest first.
var BandLabels = [NumBands]string{
	"31Hz", "62Hz", "125Hz", "250Hz", "500Hz",
	"1kHz", "2kHz", "4kHz", "8kHz", "16kHz",
}

// Vector is the canonical 10-band gain vector in dB.
//
// It is a value type: copies never share storage, so a Vector handed to the
// client or the server cannot be mutated behind their back.
type Vector [NumBands]float64

// Slice returns the gains as a new slice.
func (v Vector) Slice() []float64 {
	out := make([]float64, NumBands)
	copy(out, v[:])
	return out
}

// OutOfRange returns the indexes of bands outside [MinDB, MaxDB].
func (v Vector) OutOfRange() []int {
	var idx []int
	for i, g := range v {
		if g < MinDB || g > MaxDB {
			idx = append(idx, i)
		}
	}
	return idx
}

// Encode returns the compact JSON array form, e.g. [4,3,2,1,0,0,-1,-2,-3,-4].
func (v Vector) Encode() []byte {
	var b bytes.Buffer
	b.WriteByte('[')
	for i, g := range v {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(strconv.FormatFloat(g, 'g', -1, 64))
	}
	b.WriteByte(']')
	return b.Bytes()
}

// EncodeRequest returns the wire payload: the JSON array followed by a newline.
func (v Vector) EncodeRequest() []byte {
	return append(v.Encode(), '\n')
}

// MarshalJSON encodes the vector as a JSON array of numbers.
func (v Vector) MarshalJSON() ([]byte, error) {
	for i, g := range v {
		if math.IsNaN(g) || math.IsInf(g, 0) {
			return nil, fmt.Errorf("band %d: %v is not representable in JSON", i, g)
		}
	}
	return v.Encode(), nil
}

// UnmarshalJSON decodes a JSON array of exactly NumBands numbers.
func (v *Vector) UnmarshalJSON(data []byte) error {
	dec, err := DecodeVector(data)
	if err != nil {
		return err
	}
	*v = dec
	return nil
}

// String renders the vector for logs: "31Hz:+4.0 62Hz:+3.0 ...".
func (v Vector) String() string {
	parts := make([]string, NumBands)
	for i, g := range v {
		parts[i] = fmt.Sprintf("%s:%+.1f", BandLabels[i], g)
	}
	return strings.Join(parts, " ")
}

// FromFloats builds a Vector from already-typed values.
func FromFloats(values []float64) (Vector, error) {
	var v Vector
	if len(values) != NumBands {
		return v, wrongCount(len(values))
	}
	for i, g := range values {
		if math.IsNaN(g) || math.IsInf(g, 0) {
			return Vector{}, notNumeric(i, strconv.FormatFloat(g, 'g', -1, 64))
		}
		v[i] = g
	}
	return v, nil
}

// ParseGains parses exactly NumBands numeric tokens in band order.
// NaN, infinities and literals that overflow float64 are rejected.
func ParseGains(tokens []string) (Vector, error) {
	var v Vector
	if len(tokens) != NumBands {
		return v, wrongCount(len(tokens))
	}
	for i, tok := range tokens {
		g, ok := parseFinite(tok)
		if !ok {
			return Vector{}, notNumeric(i, tok)
		}
		v[i] = g
	}
	return v, nil
}

// ParseCommand resolves a free-form command.
//
// A command that matches a preset name (case-insensitive, trimmed) always
// resolves to that preset. Anything else is split on whitespace and parsed as
// ten gains. A single non-numeric word reports ErrUnknownPreset; empty input
// reports ErrWrongCount.
func ParseCommand(input string) (Vector, error) {
	name := strings.ToLower(strings.TrimSpace(input))
	if v, ok := presets[name]; ok {
		return v, nil
	}

	tokens := strings.Fields(input)
	if len(tokens) == 1 {
		if _, ok := parseFinite(tokens[0]); !ok {
			return Vector{}, unknownPreset(tokens[0])
		}
	}
	return ParseGains(tokens)
}

// DecodeVector decodes the wire form: a JSON array of exactly NumBands
// numbers. Trailing whitespace is allowed; null, strings and nested values
// are not.
func DecodeVector(data []byte) (Vector, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var raw []any
	if err := dec.Decode(&raw); err != nil {
		return Vector{}, fmt.Errorf("decode gains: %w", err)
	}
	if dec.More() {
		return Vector{}, fmt.Errorf("decode gains: unexpected data after array")
	}
	if raw == nil {
		return Vector{}, fmt.Errorf("decode gains: expected a JSON array")
	}
	if len(raw) != NumBands {
		return Vector{}, wrongCount(len(raw))
	}

	var v Vector
	for i, el := range raw {
		num, ok := el.(json.Number)
		if !ok {
			return Vector{}, notNumeric(i, fmt.Sprintf("%v", el))
		}
		g, ok := parseFinite(num.String())
		if !ok {
			return Vector{}, notNumeric(i, num.String())
		}
		v[i] = g
	}
	return v, nil
}

func parseFinite(tok string) (float64, bool) {
	g, err := strconv.ParseFloat(strings.TrimSpace(tok), 64)
	if err != nil || math.IsNaN(g) || math.IsInf(g, 0) {
		return 0, false
	}
	return g, true
}
