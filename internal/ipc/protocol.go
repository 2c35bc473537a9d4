// Package ipc implements the equalizer gain IPC protocol.
//
// ============================================================================
// Protocol: one request per TCP connection
// ============================================================================
//   - Client sends one gain vector as a JSON array of 10 numbers plus "\n",
//     e.g. [4,3,2,1,0,0,-1,-2,-3,-4]
//   - Client half-closes its write side (or closes the connection)
//   - Server replies with one line of text ("OK" or "ERROR: <reason>") and closes
//
// There is no request id and no pipelining: the connection is the request.
// ============================================================================
package ipc

import (
	"net"
	"strconv"
	"time"
)

// Protocol constants
const (
	DefaultHost = "127.0.0.1"
	DefaultPort = 5560

	DefaultTimeout         = 3 * time.Second // client: connect + write + read
	DefaultReadTimeout     = 5 * time.Second // server: time allowed to receive a request
	DefaultMaxRequestBytes = 4096

	// ResponseBufferSize caps how much of the server reply the client reads.
	ResponseBufferSize = 1024
)

// Server reply lines (without the trailing newline)
const (
	ResponseOK          = "OK"
	ResponseErrorPrefix = "ERROR"
)

func joinHostPort(host string, port int) string {
	return net.JoinHostPort(host, strconv.Itoa(port))
}
