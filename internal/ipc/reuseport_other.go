//go:build !(linux || darwin || freebsd || netbsd || openbsd || dragonfly)

package ipc

import (
	"errors"
	"syscall"
)

func reusePortControl(network, address string, c syscall.RawConn) error {
	return errors.New("reuse_port is not supported on this platform")
}
