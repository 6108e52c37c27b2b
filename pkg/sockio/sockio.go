// Package sockio provides the low-level socket primitives consumed by the
// scheduling core: a TCP listen helper and a connection wrapper with bounded
// line reads, exact-count reads, and a non-consuming peek.
package sockio

import (
	"fmt"
	"net"
)

// MaxBuf bounds single line reads and peeks. Request lines and header lines
// longer than MaxBuf-1 bytes (terminator included) are truncated.
const MaxBuf = 8192

// Listen opens a TCP listening endpoint on the given port on all interfaces.
// The accept backlog is the kernel's (net.core.somaxconn); Go does not expose
// the backlog parameter.
func Listen(port int) (*net.TCPListener, error) {
	addr := &net.TCPAddr{Port: port}
	listener, err := net.ListenTCP("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("unable to listen on port %d: %w", port, err)
	}
	return listener, nil
}
