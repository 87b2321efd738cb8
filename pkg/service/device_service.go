package service

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"github.com/kinetic-sim/kinetic-go/pkg/batch"
	"github.com/kinetic-sim/kinetic-go/pkg/connection"
	"github.com/kinetic-sim/kinetic-go/pkg/discovery"
	"github.com/kinetic-sim/kinetic-go/pkg/log"
	"github.com/kinetic-sim/kinetic-go/pkg/metrics"
	"github.com/kinetic-sim/kinetic-go/pkg/store"
	"github.com/kinetic-sim/kinetic-go/pkg/transport"
	"github.com/kinetic-sim/kinetic-go/pkg/wire"
)

// selfSignedValidity is the lifetime of the generated TLS certificate.
const selfSignedValidity = 365 * 24 * time.Hour

// DeviceService runs a simulated drive: it accepts connections, registers
// them, admits their requests and executes them against the engine.
type DeviceService struct {
	mu sync.RWMutex

	config DeviceConfig
	state  ServiceState

	engine   *Engine
	registry *connection.Registry
	batches  *batch.Manager
	runner   *Runner
	metrics  *metrics.Metrics

	// Created by Start
	server     *transport.Server
	pool       *Pool
	dispatcher *Dispatcher

	advertiser discovery.Advertiser

	// Logger for debug output (optional)
	logger *slog.Logger

	// Protocol logger for structured event capture (optional)
	protocolLogger log.Logger

	ctx    context.Context
	cancel context.CancelFunc
}

// NewDeviceService creates a device service. It prepares the home
// directory, opens the store and loads the persisted device state.
func NewDeviceService(config DeviceConfig) (*DeviceService, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	if err := os.MkdirAll(config.Home, 0o750); err != nil {
		return nil, fmt.Errorf("create home %s: %w", config.Home, err)
	}

	logger := config.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	st, err := openStore(config)
	if err != nil {
		return nil, err
	}

	engine, err := NewEngine(EngineConfig{
		Home:         config.Home,
		Store:        st,
		AuditRawPins: config.AuditRawPins,
		Logger:       logger,
	})
	if err != nil {
		_ = st.Close()
		return nil, err
	}

	m, err := metrics.New(config.MetricsRegisterer)
	if err != nil {
		_ = st.Close()
		return nil, fmt.Errorf("register metrics: %w", err)
	}

	svc := &DeviceService{
		config:         config,
		state:          StateIdle,
		engine:         engine,
		registry:       connection.NewRegistry(),
		batches:        batch.NewManager(logger.With("component", "batch")),
		metrics:        m,
		logger:         config.Logger,
		protocolLogger: config.ProtocolLogger,
	}
	svc.runner = NewRunner(engine, logger.With("component", "runner"), config.ProtocolLogger, m)
	svc.runner.OnClusterChange(svc.updateAdvertisement)
	return svc, nil
}

func openStore(config DeviceConfig) (store.Store, error) {
	switch config.StoreBackend {
	case StoreSQLite:
		st, err := store.NewSQLiteStore(filepath.Join(config.Home, StoreFileName))
		if err != nil {
			return nil, fmt.Errorf("open store: %w", err)
		}
		return st, nil
	default:
		return store.NewMemoryStore(), nil
	}
}

// Engine returns the device engine.
func (s *DeviceService) Engine() *Engine {
	return s.engine
}

// Connections returns the connection registry.
func (s *DeviceService) Connections() *connection.Registry {
	return s.registry
}

// Config returns the service configuration.
func (s *DeviceService) Config() DeviceConfig {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.config
}

// State returns the current service state.
func (s *DeviceService) State() ServiceState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// SetAdvertiser sets the discovery advertiser. Must be called before Start.
func (s *DeviceService) SetAdvertiser(advertiser discovery.Advertiser) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.advertiser = advertiser
}

// SetFaultInjection switches fault injection at runtime.
func (s *DeviceService) SetFaultInjection(on bool) {
	s.mu.Lock()
	s.config.FaultInjectCloseConnection = on
	d := s.dispatcher
	s.mu.Unlock()

	if d != nil {
		d.SetFaultInjection(on)
	}
}

// Start opens the listeners and begins serving. A failed Start closes the
// store, so the service cannot be started again.
func (s *DeviceService) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateIdle {
		return ErrAlreadyStarted
	}
	s.state = StateStarting

	s.ctx, s.cancel = context.WithCancel(ctx)

	serverConfig := transport.ServerConfig{
		Address:      s.config.ListenAddress,
		TLSAddress:   s.config.TLSListenAddress,
		Logger:       s.protocolLogger,
		OnConnect:    s.handleConnect,
		OnDisconnect: s.handleDisconnect,
		OnMessage:    s.handleMessage,
		OnError:      s.handleError,
	}
	if s.config.TLSListenAddress != "" {
		cert, err := s.certificate()
		if err != nil {
			s.fail()
			return err
		}
		serverConfig.TLSConfig = &transport.TLSConfig{Certificate: cert}
	}

	server, err := transport.NewServer(serverConfig)
	if err != nil {
		s.fail()
		return fmt.Errorf("create server: %w", err)
	}

	s.pool = NewPool(s.ctx, s.config.WorkerPoolSize)
	s.dispatcher = NewDispatcher(s.ctx, s.registry, s.batches, s.runner, s.pool, DispatcherConfig{
		EnforceOrdering:   s.config.EnforceOrdering,
		FaultInject:       s.config.FaultInjectCloseConnection,
		OrderedQueueDepth: s.config.OrderedQueueDepth,
		Logger:            s.logger,
		Metrics:           s.metrics,
	})

	if err := server.Start(s.ctx); err != nil {
		s.fail()
		return fmt.Errorf("start server: %w", err)
	}
	s.server = server

	if s.advertiser != nil {
		if err := s.advertiser.Advertise(s.ctx, s.deviceInfo()); err != nil {
			// Discovery is optional; the device still serves.
			s.debugLog("advertise failed", "error", err)
		}
	}

	s.state = StateRunning
	s.debugLog("device service started",
		"addr", addrString(server.Addr()),
		"tlsAddr", addrString(server.TLSAddr()),
		"enforceOrdering", s.config.EnforceOrdering,
		"faultInject", s.config.FaultInjectCloseConnection)
	return nil
}

// fail ends a failed start: the store opened by NewDeviceService is closed
// and the service cannot be started again. Caller holds s.mu.
func (s *DeviceService) fail() {
	s.cancel()
	if err := s.engine.Close(context.Background()); err != nil {
		s.debugLog("close engine after failed start", "error", err)
	}
	s.state = StateStopped
}

func (s *DeviceService) certificate() (tls.Certificate, error) {
	if s.config.TLSCertificate != nil {
		return *s.config.TLSCertificate, nil
	}
	cert, err := transport.GenerateSelfSignedCertificate(s.config.SerialNumber, []string{"localhost", "127.0.0.1"}, selfSignedValidity)
	if err != nil {
		return tls.Certificate{}, fmt.Errorf("generate certificate: %w", err)
	}
	s.debugLog("using self-signed certificate", "cn", s.config.SerialNumber)
	return cert, nil
}

// Stop closes all connections, drains in-flight work and closes the store.
func (s *DeviceService) Stop() error {
	s.mu.Lock()
	if s.state != StateRunning {
		s.mu.Unlock()
		return ErrNotStarted
	}
	s.state = StateStopping
	server, dispatcher, pool, advertiser := s.server, s.dispatcher, s.pool, s.advertiser
	s.mu.Unlock()

	if advertiser != nil {
		advertiser.Stop()
	}

	var errs []error
	if err := server.Stop(); err != nil {
		errs = append(errs, fmt.Errorf("stop server: %w", err))
	}
	dispatcher.Shutdown()
	pool.Wait()
	s.cancel()

	if err := s.engine.Close(context.Background()); err != nil {
		errs = append(errs, fmt.Errorf("close engine: %w", err))
	}

	s.mu.Lock()
	s.state = StateStopped
	s.mu.Unlock()

	s.debugLog("device service stopped")
	return errors.Join(errs...)
}

// Addr returns the plain listener address, or nil.
func (s *DeviceService) Addr() net.Addr {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.server == nil {
		return nil
	}
	return s.server.Addr()
}

// TLSAddr returns the TLS listener address, or nil.
func (s *DeviceService) TLSAddr() net.Addr {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.server == nil {
		return nil
	}
	return s.server.TLSAddr()
}

// Pending returns the number of requests waiting in conn's ordered queue.
func (s *DeviceService) Pending(conn Conn) int {
	s.mu.RLock()
	d := s.dispatcher
	s.mu.RUnlock()
	if d == nil {
		return 0
	}
	return d.Pending(conn)
}

func (s *DeviceService) handleConnect(conn *transport.ServerConn) {
	rec, err := s.registry.Register(conn, conn.Secure())
	if err != nil {
		s.debugLog("register connection failed", "session", conn.SessionID(), "error", err)
		_ = conn.Close()
		return
	}
	s.metrics.ConnectionOpened(rec.Secure)
	s.logState(conn, rec.ID, "", "REGISTERED")

	status := wire.NewUnsolicitedStatus(rec.ID, s.engine.ClusterVersion())
	data, err := wire.EncodeResponse(status)
	if err != nil {
		s.debugLog("encode unsolicited status failed", "connID", rec.ID, "error", err)
		return
	}
	if err := conn.Send(data, nil); err != nil {
		s.debugLog("send unsolicited status failed", "connID", rec.ID, "error", err)
		return
	}
	s.logMessage(conn, rec.ID, log.DirectionOut, &log.MessageEvent{
		Kind:        log.MessageKindUnsolicited,
		MessageType: status.Header.MessageType,
		Status:      &status.Status.Code,
	})
	s.debugLog("connection registered",
		"connID", rec.ID,
		"secure", rec.Secure,
		"remote", conn.RemoteAddr().String())
}

func (s *DeviceService) handleMessage(conn *transport.ServerConn, msg, value []byte) {
	req, err := wire.DecodeRequest(msg)
	if err != nil {
		s.debugLog("dropping undecodable frame", "session", conn.SessionID(), "error", err)
		s.logError(conn, "decode request: "+err.Error())
		return
	}
	req.Value = value

	var connID int64
	if rec, err := s.registry.Lookup(conn); err == nil {
		connID = rec.ID
	}
	s.logMessage(conn, connID, log.DirectionIn, &log.MessageEvent{
		Kind:        log.MessageKindRequest,
		MessageType: req.Header.MessageType,
		Sequence:    req.Header.Sequence,
		BatchID:     req.Header.BatchID,
	})

	s.mu.RLock()
	d := s.dispatcher
	s.mu.RUnlock()

	switch err := d.Admit(conn, req); {
	case err == nil:
	case errors.Is(err, ErrFaultInjected):
		s.debugLog("fault injection: closing connection", "connID", connID)
		_ = conn.Close()
	default:
		s.debugLog("request not admitted", "connID", connID, "error", err)
	}
}

func (s *DeviceService) handleDisconnect(conn *transport.ServerConn) {
	rec, err := s.registry.Remove(conn)
	if err != nil {
		return
	}

	s.mu.RLock()
	d := s.dispatcher
	s.mu.RUnlock()

	discarded := d.Close(conn)
	aborted := s.batches.Drop(rec.ID)
	s.metrics.ConnectionClosed(rec.Secure)
	s.logState(conn, rec.ID, "REGISTERED", "REMOVED")
	s.debugLog("connection removed",
		"connID", rec.ID,
		"discarded", discarded,
		"abortedBatches", aborted)
}

// handleError logs transport errors. conn is nil for failed handshakes.
func (s *DeviceService) handleError(conn *transport.ServerConn, err error) {
	if conn == nil {
		s.debugLog("handshake failed", "error", err)
		return
	}
	s.debugLog("connection error", "session", conn.SessionID(), "error", err)
}

func (s *DeviceService) deviceInfo() *discovery.DeviceInfo {
	info := &discovery.DeviceInfo{
		Serial:         s.config.SerialNumber,
		Model:          s.config.Model,
		ClusterVersion: s.engine.ClusterVersion(),
	}
	if s.server != nil {
		info.Port = addrPort(s.server.Addr())
		info.TLSPort = addrPort(s.server.TLSAddr())
	}
	return info
}

// updateAdvertisement refreshes the announced cluster version.
func (s *DeviceService) updateAdvertisement(clusterVersion int64) {
	s.mu.RLock()
	advertiser := s.advertiser
	var info *discovery.DeviceInfo
	if advertiser != nil && s.state == StateRunning {
		info = s.deviceInfo()
		info.ClusterVersion = clusterVersion
	}
	s.mu.RUnlock()

	if info == nil {
		return
	}
	if err := advertiser.Update(info); err != nil {
		s.debugLog("update advertisement failed", "error", err)
	}
}

func (s *DeviceService) logState(conn *transport.ServerConn, connID int64, oldState, newState string) {
	if s.protocolLogger == nil {
		return
	}
	s.protocolLogger.Log(log.Event{
		Timestamp:    time.Now(),
		SessionID:    conn.SessionID(),
		Direction:    log.DirectionIn,
		Layer:        log.LayerService,
		Category:     log.CategoryState,
		RemoteAddr:   conn.RemoteAddr().String(),
		Secure:       conn.Secure(),
		ConnectionID: connID,
		StateChange: &log.StateChangeEvent{
			Entity:   log.StateEntityConnection,
			OldState: oldState,
			NewState: newState,
		},
	})
}

func (s *DeviceService) logMessage(conn *transport.ServerConn, connID int64, dir log.Direction, msg *log.MessageEvent) {
	if s.protocolLogger == nil {
		return
	}
	s.protocolLogger.Log(log.Event{
		Timestamp:    time.Now(),
		SessionID:    conn.SessionID(),
		Direction:    dir,
		Layer:        log.LayerWire,
		Category:     log.CategoryMessage,
		RemoteAddr:   conn.RemoteAddr().String(),
		Secure:       conn.Secure(),
		ConnectionID: connID,
		Message:      msg,
	})
}

func (s *DeviceService) logError(conn *transport.ServerConn, msg string) {
	if s.protocolLogger == nil {
		return
	}
	s.protocolLogger.Log(log.Event{
		Timestamp:  time.Now(),
		SessionID:  conn.SessionID(),
		Direction:  log.DirectionIn,
		Layer:      log.LayerWire,
		Category:   log.CategoryError,
		RemoteAddr: conn.RemoteAddr().String(),
		Secure:     conn.Secure(),
		Error: &log.ErrorEventData{
			Layer:   log.LayerWire,
			Message: msg,
		},
	})
}

// debugLog logs a debug message if logging is enabled.
func (s *DeviceService) debugLog(msg string, args ...any) {
	if s.logger != nil {
		s.logger.Debug(msg, args...)
	}
}

func addrString(a net.Addr) string {
	if a == nil {
		return ""
	}
	return a.String()
}

// addrPort extracts the port from a listener address.
func addrPort(a net.Addr) uint16 {
	if a == nil {
		return 0
	}
	_, portStr, err := net.SplitHostPort(a.String())
	if err != nil {
		return 0
	}
	port, err := strconv.ParseUint(portStr, 10, 16)
	if err != nil {
		return 0
	}
	return uint16(port)
}
