package transport

import (
	"context"
	"net"
	"time"

	"github.com/kinetic-sim/kinetic-go/pkg/wire"
)

// ServerConnection represents a server-side connection to a client.
// Implemented by ServerConn.
type ServerConnection interface {
	// RemoteAddr returns the remote network address of the client.
	RemoteAddr() net.Addr

	// SessionID returns the transport session identifier.
	SessionID() string

	// Secure reports whether the connection arrived on the TLS listener.
	Secure() bool

	// Send sends a message and optional value to the client.
	Send(msg, value []byte) error

	// Close closes the connection.
	Close() error
}

// ClientConnection represents a client-side connection to a device.
// Implemented by ClientConn.
type ClientConnection interface {
	LocalAddr() net.Addr
	RemoteAddr() net.Addr
	Secure() bool
	Send(msg, value []byte) error
	Receive(timeout time.Duration) (msg, value []byte, err error)
	SendRequest(req *wire.Request) error
	ReceiveResponse(timeout time.Duration) (*wire.Response, error)
	Close() error
}

// TransportServer represents a device server.
// Implemented by Server.
type TransportServer interface {
	Start(ctx context.Context) error
	Stop() error
	Addr() net.Addr
	TLSAddr() net.Addr
	ConnectionCount() int
}

// FrameReadWriter provides framed message I/O.
// Implemented by Framer.
type FrameReadWriter interface {
	ReadFrame() (msg, value []byte, err error)
	WriteFrame(msg, value []byte) error
}

// Compile-time interface satisfaction checks.
var (
	_ ServerConnection = (*ServerConn)(nil)
	_ ClientConnection = (*ClientConn)(nil)
	_ TransportServer  = (*Server)(nil)
	_ FrameReadWriter  = (*Framer)(nil)
)
