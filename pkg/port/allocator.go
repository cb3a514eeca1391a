// Package port provides listen port allocation utilities
package port

import (
	"fmt"
	"net"
)

// Allocate returns a port that is free to listen on. A preferredPort of 0, or
// a preferred port that is already taken, falls back to an OS-chosen free port.
func Allocate(preferredPort int) (int, error) {
	if preferredPort != 0 {
		listener, err := net.Listen("tcp", fmt.Sprintf("127.0.0.1:%d", preferredPort))
		if err == nil {
			listener.Close()
			return preferredPort, nil
		}
		// Preferred port taken, fall through to a random one
	}

	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return 0, fmt.Errorf("failed to allocate random port: %w", err)
	}
	defer listener.Close()

	addr := listener.Addr().(*net.TCPAddr)
	return addr.Port, nil
}

// IsAvailable checks if a port is available for listening
func IsAvailable(port int) bool {
	listener, err := net.Listen("tcp", fmt.Sprintf("127.0.0.1:%d", port))
	if err != nil {
		return false
	}
	listener.Close()
	return true
}
