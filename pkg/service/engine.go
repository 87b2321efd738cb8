package service

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"

	"github.com/kinetic-sim/kinetic-go/pkg/persistence"
	"github.com/kinetic-sim/kinetic-go/pkg/pinop"
	"github.com/kinetic-sim/kinetic-go/pkg/security"
	"github.com/kinetic-sim/kinetic-go/pkg/setup"
	"github.com/kinetic-sim/kinetic-go/pkg/store"
)

// EngineConfig configures an Engine.
type EngineConfig struct {
	Home         string
	Store        store.Store
	AuditRawPins bool
	Logger       *slog.Logger
}

// Engine is the device-wide context shared by all handlers: the store, the
// security state and the setup record.
//
// Handlers that mutate security or setup state, or that span several
// subsystems, run under Exclusive. All other handlers run under Shared.
type Engine struct {
	mu sync.RWMutex

	store    store.Store
	security *security.State
	setup    *setup.Manager
	pinops   *pinop.Engine
	logger   *slog.Logger
}

// NewEngine creates an engine and loads the persisted setup and security
// state from cfg.Home.
func NewEngine(cfg EngineConfig) (*Engine, error) {
	if cfg.Store == nil {
		return nil, fmt.Errorf("%w: store is required", ErrInvalidConfig)
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	sec := security.NewState(persistence.NewBackupFile(filepath.Join(cfg.Home, security.ACLFileName)))
	if err := sec.Load(); err != nil {
		return nil, fmt.Errorf("load security state: %w", err)
	}

	sm := setup.NewManager(cfg.Home, logger.With("component", "setup"))
	if err := sm.Load(); err != nil {
		return nil, fmt.Errorf("load setup: %w", err)
	}

	e := &Engine{
		store:    cfg.Store,
		security: sec,
		setup:    sm,
		logger:   logger,
	}
	e.pinops = pinop.NewEngine(cfg.Store, sm, sec, pinop.Config{
		AuditRawPins: cfg.AuditRawPins,
		Logger:       logger.With("component", "pinop"),
	})

	logger.Info("engine loaded",
		"home", cfg.Home,
		"clusterVersion", sm.ClusterVersion(),
		"aclConfigured", sec.Table() != nil)
	return e, nil
}

// Store returns the key-value media.
func (e *Engine) Store() store.Store { return e.store }

// Security returns the security state.
func (e *Engine) Security() *security.State { return e.security }

// Setup returns the setup manager.
func (e *Engine) Setup() *setup.Manager { return e.setup }

// ClusterVersion returns the in-memory cluster version.
func (e *Engine) ClusterVersion() int64 { return e.setup.ClusterVersion() }

// Locked reports whether the device is locked.
func (e *Engine) Locked() bool { return e.security.Locked() }

// Exclusive runs fn while holding the engine write lock.
func (e *Engine) Exclusive(fn func() error) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return fn()
}

// Shared runs fn while holding the engine read lock.
func (e *Engine) Shared(fn func() error) error {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return fn()
}

// Close closes the store.
func (e *Engine) Close(_ context.Context) error {
	return e.store.Close()
}
