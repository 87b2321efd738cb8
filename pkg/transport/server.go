package transport

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/kinetic-sim/kinetic-go/pkg/log"
)

// ServerConfig configures a device server.
type ServerConfig struct {
	// Address is the plain TCP listen address (e.g., ":8123").
	// Empty disables the plain listener.
	Address string

	// TLSAddress is the TLS listen address (e.g., ":8443").
	// Empty disables the TLS listener.
	TLSAddress string

	// TLSConfig contains TLS settings. Required when TLSAddress is set.
	TLSConfig *TLSConfig

	// Limits bounds frame sizes (zero fields use defaults).
	Limits Limits

	// Logger for protocol logging (optional).
	Logger log.Logger

	// OnConnect is called when a new connection is established.
	OnConnect func(conn *ServerConn)

	// OnDisconnect is called when a connection is closed.
	OnDisconnect func(conn *ServerConn)

	// OnMessage is called for every received frame. It runs on the
	// connection's read goroutine and must not block for long.
	OnMessage func(conn *ServerConn, msg, value []byte)

	// OnError is called when an error occurs.
	OnError func(conn *ServerConn, err error)
}

// Server accepts device connections on a plain and/or a TLS listener.
type Server struct {
	config  ServerConfig
	tlsConf *tls.Config

	listener    net.Listener
	tlsListener net.Listener

	// Active connections
	conns   map[*ServerConn]struct{}
	connsMu sync.RWMutex

	// State
	running atomic.Bool
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// NewServer creates a new device server.
func NewServer(config ServerConfig) (*Server, error) {
	if config.Address == "" && config.TLSAddress == "" {
		return nil, fmt.Errorf("at least one of Address and TLSAddress is required")
	}
	config.Limits = config.Limits.withDefaults()

	s := &Server{
		config: config,
		conns:  make(map[*ServerConn]struct{}),
	}

	if config.TLSAddress != "" {
		tlsConf, err := NewServerTLSConfig(config.TLSConfig)
		if err != nil {
			return nil, fmt.Errorf("failed to create TLS config: %w", err)
		}
		s.tlsConf = tlsConf
	}

	return s, nil
}

// Start opens the configured listeners and begins accepting connections.
func (s *Server) Start(ctx context.Context) error {
	if s.running.Load() {
		return fmt.Errorf("server already running")
	}

	s.ctx, s.cancel = context.WithCancel(ctx)

	if s.config.Address != "" {
		l, err := net.Listen("tcp", s.config.Address)
		if err != nil {
			s.cancel()
			return fmt.Errorf("failed to listen: %w", err)
		}
		s.listener = l
	}
	if s.config.TLSAddress != "" {
		l, err := net.Listen("tcp", s.config.TLSAddress)
		if err != nil {
			if s.listener != nil {
				s.listener.Close()
			}
			s.cancel()
			return fmt.Errorf("failed to listen (tls): %w", err)
		}
		s.tlsListener = l
	}

	s.running.Store(true)

	if s.listener != nil {
		s.wg.Add(1)
		go s.acceptLoop(s.listener, false)
	}
	if s.tlsListener != nil {
		s.wg.Add(1)
		go s.acceptLoop(s.tlsListener, true)
	}

	return nil
}

// Stop stops the server and closes all connections.
func (s *Server) Stop() error {
	if !s.running.Load() {
		return nil
	}

	s.running.Store(false)
	s.cancel()

	if s.listener != nil {
		s.listener.Close()
	}
	if s.tlsListener != nil {
		s.tlsListener.Close()
	}

	s.connsMu.Lock()
	for conn := range s.conns {
		conn.Close()
	}
	s.connsMu.Unlock()

	s.wg.Wait()

	return nil
}

// Addr returns the plain listener address, or nil.
func (s *Server) Addr() net.Addr {
	if s.listener != nil {
		return s.listener.Addr()
	}
	return nil
}

// TLSAddr returns the TLS listener address, or nil.
func (s *Server) TLSAddr() net.Addr {
	if s.tlsListener != nil {
		return s.tlsListener.Addr()
	}
	return nil
}

// ConnectionCount returns the number of active connections.
func (s *Server) ConnectionCount() int {
	s.connsMu.RLock()
	defer s.connsMu.RUnlock()
	return len(s.conns)
}

func (s *Server) acceptLoop(listener net.Listener, secure bool) {
	defer s.wg.Done()

	for s.running.Load() {
		conn, err := listener.Accept()
		if err != nil {
			if s.running.Load() && s.config.OnError != nil {
				s.config.OnError(nil, fmt.Errorf("accept error: %w", err))
			}
			if errors.Is(err, net.ErrClosed) {
				return
			}
			continue
		}

		s.wg.Add(1)
		go s.handleConnection(conn, secure)
	}
}

// handleConnection processes a single connection.
func (s *Server) handleConnection(conn net.Conn, secure bool) {
	defer s.wg.Done()

	var (
		netConn  = conn
		tlsState *tls.ConnectionState
	)
	if secure {
		tlsConn := tls.Server(conn, s.tlsConf)
		if err := tlsConn.HandshakeContext(s.ctx); err != nil {
			conn.Close()
			if s.config.OnError != nil {
				s.config.OnError(nil, fmt.Errorf("TLS handshake failed: %w", err))
			}
			return
		}
		state := tlsConn.ConnectionState()
		if err := VerifyConnection(state); err != nil {
			tlsConn.Close()
			if s.config.OnError != nil {
				s.config.OnError(nil, err)
			}
			return
		}
		netConn = tlsConn
		tlsState = &state
	}

	sessionID := uuid.New().String()

	framer := NewFramerWithLimits(netConn, s.config.Limits)
	if s.config.Logger != nil {
		framer.SetLogger(s.config.Logger, sessionID)
	}

	sconn := &ServerConn{
		conn:       netConn,
		framer:     framer,
		secure:     secure,
		tlsState:   tlsState,
		server:     s,
		closeCh:    make(chan struct{}),
		remoteAddr: conn.RemoteAddr(),
		sessionID:  sessionID,
	}

	s.logState(sconn, "", "CONNECTED")

	s.connsMu.Lock()
	s.conns[sconn] = struct{}{}
	s.connsMu.Unlock()

	if s.config.OnConnect != nil {
		s.config.OnConnect(sconn)
	}

	sconn.readLoop()
	sconn.Close()

	s.connsMu.Lock()
	delete(s.conns, sconn)
	s.connsMu.Unlock()

	s.logState(sconn, "CONNECTED", "DISCONNECTED")

	if s.config.OnDisconnect != nil {
		s.config.OnDisconnect(sconn)
	}
}

func (s *Server) logState(c *ServerConn, oldState, newState string) {
	if s.config.Logger == nil {
		return
	}
	s.config.Logger.Log(log.Event{
		Timestamp:  time.Now(),
		SessionID:  c.sessionID,
		Layer:      log.LayerTransport,
		Category:   log.CategoryState,
		RemoteAddr: c.remoteAddr.String(),
		Secure:     c.secure,
		StateChange: &log.StateChangeEvent{
			Entity:   log.StateEntityConnection,
			OldState: oldState,
			NewState: newState,
		},
	})
}

// ServerConn represents a client connection to the server.
type ServerConn struct {
	conn       net.Conn
	framer     *Framer
	secure     bool
	tlsState   *tls.ConnectionState
	server     *Server
	closeCh    chan struct{}
	closeOnce  sync.Once
	remoteAddr net.Addr
	sessionID  string
}

// RemoteAddr returns the remote address of the client.
func (c *ServerConn) RemoteAddr() net.Addr {
	return c.remoteAddr
}

// SessionID returns the unique transport session identifier.
func (c *ServerConn) SessionID() string {
	return c.sessionID
}

// Secure reports whether the connection was accepted on the TLS listener.
// It never changes for the lifetime of the connection.
func (c *ServerConn) Secure() bool {
	return c.secure
}

// TLSState returns the TLS connection state. ok is false for plain connections.
func (c *ServerConn) TLSState() (state tls.ConnectionState, ok bool) {
	if c.tlsState == nil {
		return tls.ConnectionState{}, false
	}
	return *c.tlsState, true
}

// Send sends a message and optional value to the client.
func (c *ServerConn) Send(msg, value []byte) error {
	select {
	case <-c.closeCh:
		return ErrConnectionClosed
	default:
	}
	return c.framer.WriteFrame(msg, value)
}

// Close closes the connection. The read loop exits and OnDisconnect fires.
func (c *ServerConn) Close() error {
	var err error
	c.closeOnce.Do(func() {
		close(c.closeCh)
		err = c.conn.Close()
	})
	return err
}

// Done is closed once the connection has been closed.
func (c *ServerConn) Done() <-chan struct{} {
	return c.closeCh
}

// readLoop reads frames until the connection fails or is closed.
func (c *ServerConn) readLoop() {
	for {
		select {
		case <-c.closeCh:
			return
		case <-c.server.ctx.Done():
			return
		default:
		}

		msg, value, err := c.framer.ReadFrame()
		if err != nil {
			if c.server.config.OnError != nil && c.server.running.Load() && !errors.Is(err, io.EOF) {
				select {
				case <-c.closeCh:
					// Already closing, don't report
				default:
					c.server.config.OnError(c, err)
				}
			}
			return
		}

		if c.server.config.OnMessage != nil {
			c.server.config.OnMessage(c, msg, value)
		}
	}
}
