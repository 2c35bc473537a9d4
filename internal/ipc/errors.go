package ipc

import (
	"context"
	"errors"
	"fmt"
	"net"
)

// ErrDeliveryFailed classifies every network-layer failure of Client.Send.
var ErrDeliveryFailed = errors.New("delivery failed")

// DeliveryError carries the underlying cause of a failed delivery.
type DeliveryError struct {
	Op   string // "dial", "write", "close-write" or "read"
	Addr string
	Err  error
}

func (e *DeliveryError) Error() string {
	return fmt.Sprintf("%v: %s %s: %v", ErrDeliveryFailed, e.Op, e.Addr, e.Err)
}

func (e *DeliveryError) Unwrap() error { return e.Err }

// Is makes errors.Is(err, ErrDeliveryFailed) true for any DeliveryError.
func (e *DeliveryError) Is(target error) bool { return target == ErrDeliveryFailed }

// Timeout reports whether the delivery ran out of time.
func (e *DeliveryError) Timeout() bool {
	var ne net.Error
	if errors.As(e.Err, &ne) && ne.Timeout() {
		return true
	}
	return errors.Is(e.Err, context.DeadlineExceeded)
}
