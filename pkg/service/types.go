package service

import (
	"crypto/tls"
	"errors"
	"fmt"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/kinetic-sim/kinetic-go/pkg/log"
)

// Service errors.
var (
	ErrNotStarted     = errors.New("service not started")
	ErrAlreadyStarted = errors.New("service already started")
	ErrInvalidConfig  = errors.New("invalid configuration")

	// ErrFaultInjected is returned by Admit when fault injection is on.
	// The caller must close the connection.
	ErrFaultInjected = errors.New("fault injected: closing connection")

	// ErrQueueClosed reports a request dropped because its connection's
	// ordered queue was already closed.
	ErrQueueClosed = errors.New("ordered queue closed")

	// ErrQueueFull reports a request rejected by a bounded ordered queue.
	ErrQueueFull = errors.New("ordered queue full")
)

// ServiceState represents the service state.
type ServiceState uint8

const (
	// StateIdle - service created but not started.
	StateIdle ServiceState = iota

	// StateStarting - service is starting up.
	StateStarting

	// StateRunning - service is running normally.
	StateRunning

	// StateStopping - service is shutting down.
	StateStopping

	// StateStopped - service has stopped.
	StateStopped
)

// String returns the state name.
func (s ServiceState) String() string {
	switch s {
	case StateIdle:
		return "IDLE"
	case StateStarting:
		return "STARTING"
	case StateRunning:
		return "RUNNING"
	case StateStopping:
		return "STOPPING"
	case StateStopped:
		return "STOPPED"
	default:
		return "UNKNOWN"
	}
}

// Store backends.
const (
	StoreMemory = "memory"
	StoreSQLite = "sqlite"
)

// StoreFileName is the SQLite database file in the device home.
const StoreFileName = "store.db"

// DeviceConfig configures a DeviceService.
type DeviceConfig struct {
	// ListenAddress is the plain TCP address (e.g., ":8123").
	// Empty disables the plain listener.
	ListenAddress string

	// TLSListenAddress is the TLS address (e.g., ":8443").
	// Empty disables the TLS listener.
	TLSListenAddress string

	// TLSCertificate is the TLS listener certificate.
	// If nil, the service generates a self-signed certificate.
	TLSCertificate *tls.Certificate

	// Home is the device home directory holding .setup, .acl, firmware
	// directories and the SQLite store.
	Home string

	// StoreBackend selects the key-value media (StoreMemory or StoreSQLite).
	StoreBackend string

	// EnforceOrdering enables per-connection ordered execution.
	EnforceOrdering bool

	// FaultInjectCloseConnection closes every connection on its first
	// request. For test harnesses only.
	FaultInjectCloseConnection bool

	// WorkerPoolSize bounds concurrently executing pool requests.
	WorkerPoolSize int

	// OrderedQueueDepth bounds each connection's ordered queue.
	// 0 means unbounded.
	OrderedQueueDepth int

	// AuditRawPins writes rejected pins verbatim to logs and status
	// messages instead of a fingerprint.
	AuditRawPins bool

	// SerialNumber identifies the simulated drive (mDNS, console).
	SerialNumber string

	// Model is the advertised drive model.
	Model string

	// Logger is the optional logger for operational output.
	// If nil, logging is disabled.
	Logger *slog.Logger

	// ProtocolLogger captures protocol events (optional).
	ProtocolLogger log.Logger

	// MetricsRegisterer registers Prometheus collectors (optional).
	MetricsRegisterer prometheus.Registerer
}

// DefaultDeviceConfig returns a DeviceConfig with sensible defaults.
func DefaultDeviceConfig() DeviceConfig {
	return DeviceConfig{
		ListenAddress:    ":8123",
		TLSListenAddress: ":8443",
		StoreBackend:     StoreMemory,
		EnforceOrdering:  true,
		WorkerPoolSize:   16,
		SerialNumber:     "SIM-0000",
		Model:            "kinetic-sim",
	}
}

// Validate checks if the device config is valid.
func (c *DeviceConfig) Validate() error {
	if c.ListenAddress == "" && c.TLSListenAddress == "" {
		return fmt.Errorf("%w: no listen address", ErrInvalidConfig)
	}
	if c.Home == "" {
		return fmt.Errorf("%w: home directory is required", ErrInvalidConfig)
	}
	switch c.StoreBackend {
	case StoreMemory, StoreSQLite:
	default:
		return fmt.Errorf("%w: unknown store backend %q", ErrInvalidConfig, c.StoreBackend)
	}
	if c.WorkerPoolSize < 1 {
		return fmt.Errorf("%w: worker pool size must be positive", ErrInvalidConfig)
	}
	if c.OrderedQueueDepth < 0 {
		return fmt.Errorf("%w: ordered queue depth must not be negative", ErrInvalidConfig)
	}
	return nil
}
