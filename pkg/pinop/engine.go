package pinop

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/kinetic-sim/kinetic-go/pkg/security"
	"github.com/kinetic-sim/kinetic-go/pkg/wire"
)

// Status messages.
const (
	MsgTLSRequired = "TLS channel is required for Pin operation"
	msgInvalidPin  = "invalid pin: "
)

// StoreResetter clears the key-value media.
type StoreResetter interface {
	Reset(ctx context.Context) error
}

// SetupResetter resets the setup record to cluster version 0.
type SetupResetter interface {
	Reset() error
}

// SecurityState is the part of security.State the engine needs.
type SecurityState interface {
	Pins() security.Pins
	SetLocked(locked bool)
	Reset() error
}

// Config configures an Engine.
type Config struct {
	// AuditRawPins puts rejected pins verbatim into status messages and
	// logs. By default only a fingerprint is used.
	AuditRawPins bool

	// Logger receives operational logs. Nil disables logging.
	Logger *slog.Logger
}

// Engine authorizes and executes pin operations.
type Engine struct {
	store    StoreResetter
	setup    SetupResetter
	security SecurityState
	auditRaw bool
	logger   *slog.Logger
}

// NewEngine creates an engine over the three subsystems an erase spans.
func NewEngine(store StoreResetter, setup SetupResetter, sec SecurityState, cfg Config) *Engine {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Engine{
		store:    store,
		setup:    setup,
		security: sec,
		auditRaw: cfg.AuditRawPins,
		logger:   logger,
	}
}

// Handle executes the pin operation of req and records the outcome in
// resp.Status. secure reports whether req arrived over TLS. The status is
// left untouched on success, so callers pre-set SUCCESS.
func (e *Engine) Handle(ctx context.Context, req *wire.Request, secure bool, resp *wire.Response) {
	resp.Auth.Type = wire.AuthPIN

	if !secure {
		resp.Status.Set(wire.StatusInvalidRequest, MsgTLSRequired)
		e.logger.Warn("pin operation on insecure channel refused",
			"connID", req.Header.ConnectionID,
			"sequence", req.Header.Sequence)
		return
	}

	opType := wire.PinOpInvalid
	if req.Body.PinOp != nil {
		opType = req.Body.PinOp.Type
	}
	supplied := req.Auth.Pin
	pins := e.security.Pins()

	granted := false
	switch opType {
	case wire.PinOpLock:
		if granted = security.ComparePin(pins.Lock, supplied); granted {
			e.security.SetLocked(true)
			e.logger.Info("device locked", "connID", req.Header.ConnectionID)
		}
	case wire.PinOpUnlock:
		if granted = security.ComparePin(pins.Lock, supplied); granted {
			e.security.SetLocked(false)
			e.logger.Info("device unlocked", "connID", req.Header.ConnectionID)
		}
	case wire.PinOpErase, wire.PinOpSecureErase:
		if granted = security.ComparePin(pins.Erase, supplied); granted {
			e.erase(ctx, opType, resp)
		}
	}

	if !granted {
		shown := e.describePin(supplied)
		resp.Status.Set(wire.StatusNotAuthorized, msgInvalidPin+shown)
		e.logger.Warn("unauthorized pin operation",
			"op", opType.String(),
			"pin", shown,
			"connID", req.Header.ConnectionID)
	}
}

func (e *Engine) erase(ctx context.Context, opType wire.PinOpType, resp *wire.Response) {
	if err := e.store.Reset(ctx); err != nil {
		e.logger.Error("store reset failed during erase", "op", opType.String(), "error", err)
		resp.Status.Set(wire.StatusInternalError, fmt.Sprintf("store reset failed: %v", err))
	}
	if err := e.setup.Reset(); err != nil {
		e.logger.Warn("setup reset failed during erase", "op", opType.String(), "error", err)
	}
	if err := e.security.Reset(); err != nil {
		e.logger.Warn("security reset failed during erase", "op", opType.String(), "error", err)
	}
	e.logger.Info("device erased", "op", opType.String())
}

func (e *Engine) describePin(pin []byte) string {
	if e.auditRaw {
		return string(pin)
	}
	return security.Fingerprint(pin)
}
