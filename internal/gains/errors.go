package gains

import (
	"errors"
	"fmt"
)

// Codec error sentinels. Use errors.Is to classify a returned *Error.
var (
	ErrUnknownPreset = errors.New("unknown preset")
	ErrWrongCount    = errors.New("wrong number of gains")
	ErrNotNumeric    = errors.New("gain is not a finite number")
)

// Error describes a rejected command.
type Error struct {
	Kind  error  // one of the sentinels above
	Token string // offending token, if any
	Index int    // offending band index for ErrNotNumeric
	Count int    // number of values received for ErrWrongCount
}

func (e *Error) Error() string {
	switch e.Kind {
	case ErrUnknownPreset:
		return fmt.Sprintf("%v: %q (want one of %v or %d numbers)", e.Kind, e.Token, PresetNames(), NumBands)
	case ErrWrongCount:
		return fmt.Sprintf("%v: got %d, want %d", e.Kind, e.Count, NumBands)
	case ErrNotNumeric:
		return fmt.Sprintf("%v: band %d (%s): %q", e.Kind, e.Index, BandLabels[e.Index], e.Token)
	default:
		return fmt.Sprintf("invalid gains: %v", e.Kind)
	}
}

func (e *Error) Unwrap() error { return e.Kind }

func unknownPreset(tok string) error {
	return &Error{Kind: ErrUnknownPreset, Token: tok}
}

func wrongCount(n int) error {
	return &Error{Kind: ErrWrongCount, Count: n}
}

func notNumeric(i int, tok string) error {
	return &Error{Kind: ErrNotNumeric, Index: i, Token: tok}
}
