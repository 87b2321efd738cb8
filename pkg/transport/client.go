package transport

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/kinetic-sim/kinetic-go/pkg/wire"
)

// ErrConnectionClosed is returned when using a closed connection.
var ErrConnectionClosed = errors.New("connection closed")

// ClientConfig configures a device client.
type ClientConfig struct {
	// TLSConfig enables TLS when non-nil. Nil dials plain TCP.
	TLSConfig *TLSConfig

	// Limits bounds frame sizes (zero fields use defaults).
	Limits Limits

	// ConnectTimeout is the connection timeout (default: 30s).
	ConnectTimeout time.Duration
}

// Client connects to a device. It is used by tests and tooling.
type Client struct {
	config  ClientConfig
	tlsConf *tls.Config
}

// NewClient creates a new client.
func NewClient(config ClientConfig) (*Client, error) {
	config.Limits = config.Limits.withDefaults()
	if config.ConnectTimeout == 0 {
		config.ConnectTimeout = 30 * time.Second
	}

	c := &Client{config: config}
	if config.TLSConfig != nil {
		tlsConf, err := NewClientTLSConfig(config.TLSConfig)
		if err != nil {
			return nil, fmt.Errorf("failed to create TLS config: %w", err)
		}
		c.tlsConf = tlsConf
	}
	return c, nil
}

// Connect establishes a connection to the specified address.
func (c *Client) Connect(ctx context.Context, address string) (*ClientConn, error) {
	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.config.ConnectTimeout)
		defer cancel()
	}

	dialer := &net.Dialer{}
	conn, err := dialer.DialContext(ctx, "tcp", address)
	if err != nil {
		return nil, fmt.Errorf("dial failed: %w", err)
	}

	netConn := conn
	if c.tlsConf != nil {
		tlsConn := tls.Client(conn, c.tlsConf)
		if err := tlsConn.HandshakeContext(ctx); err != nil {
			conn.Close()
			return nil, fmt.Errorf("TLS handshake failed: %w", err)
		}
		if err := VerifyConnection(tlsConn.ConnectionState()); err != nil {
			tlsConn.Close()
			return nil, fmt.Errorf("connection verification failed: %w", err)
		}
		netConn = tlsConn
	}

	return &ClientConn{
		conn:    netConn,
		framer:  NewFramerWithLimits(netConn, c.config.Limits),
		secure:  c.tlsConf != nil,
		closeCh: make(chan struct{}),
	}, nil
}

// ClientConn represents a connection from client to device.
type ClientConn struct {
	conn    net.Conn
	framer  *Framer
	secure  bool
	closeCh chan struct{}

	closeOnce sync.Once
	readMu    sync.Mutex
}

// Secure reports whether the connection uses TLS.
func (c *ClientConn) Secure() bool {
	return c.secure
}

// LocalAddr returns the local network address.
func (c *ClientConn) LocalAddr() net.Addr {
	return c.conn.LocalAddr()
}

// RemoteAddr returns the remote network address.
func (c *ClientConn) RemoteAddr() net.Addr {
	return c.conn.RemoteAddr()
}

// Send sends a message and optional value to the device.
func (c *ClientConn) Send(msg, value []byte) error {
	select {
	case <-c.closeCh:
		return ErrConnectionClosed
	default:
	}
	return c.framer.WriteFrame(msg, value)
}

// Receive receives a frame with timeout. Zero timeout waits indefinitely.
func (c *ClientConn) Receive(timeout time.Duration) (msg, value []byte, err error) {
	c.readMu.Lock()
	defer c.readMu.Unlock()

	select {
	case <-c.closeCh:
		return nil, nil, ErrConnectionClosed
	default:
	}

	if timeout > 0 {
		c.conn.SetReadDeadline(time.Now().Add(timeout))
		defer c.conn.SetReadDeadline(time.Time{})
	}

	return c.framer.ReadFrame()
}

// SendRequest encodes and sends a request. req.Value travels as the frame value.
func (c *ClientConn) SendRequest(req *wire.Request) error {
	data, err := wire.EncodeRequest(req)
	if err != nil {
		return err
	}
	return c.Send(data, req.Value)
}

// ReceiveResponse receives and decodes the next response.
func (c *ClientConn) ReceiveResponse(timeout time.Duration) (*wire.Response, error) {
	msg, value, err := c.Receive(timeout)
	if err != nil {
		return nil, err
	}
	resp, err := wire.DecodeResponse(msg)
	if err != nil {
		return nil, err
	}
	resp.Value = value
	return resp, nil
}

// Close closes the connection.
func (c *ClientConn) Close() error {
	var err error
	c.closeOnce.Do(func() {
		close(c.closeCh)
		err = c.conn.Close()
	})
	return err
}
