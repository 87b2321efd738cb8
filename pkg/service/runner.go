package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/kinetic-sim/kinetic-go/pkg/log"
	"github.com/kinetic-sim/kinetic-go/pkg/metrics"
	"github.com/kinetic-sim/kinetic-go/pkg/wire"
)

// MsgDeviceLocked is the status message for requests refused while the
// device is locked.
const MsgDeviceLocked = "device is locked"

// handlerFunc executes one command and fills resp. A returned error is an
// unexpected failure and becomes INTERNAL_ERROR; expected outcomes are
// status codes set on resp.
type handlerFunc func(ctx context.Context, cmd *Command, resp *wire.Response) error

// Runner executes commands to completion and sends their responses.
type Runner struct {
	engine   *Engine
	handlers map[wire.MessageType]handlerFunc

	logger         *slog.Logger
	protocolLogger log.Logger
	metrics        *metrics.Metrics

	onClusterChange func(clusterVersion int64)
}

// NewRunner creates a runner over engine. logger, protocolLogger and m may
// be nil.
func NewRunner(engine *Engine, logger *slog.Logger, protocolLogger log.Logger, m *metrics.Metrics) *Runner {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	r := &Runner{
		engine:         engine,
		logger:         logger,
		protocolLogger: protocolLogger,
		metrics:        m,
	}
	r.handlers = map[wire.MessageType]handlerFunc{
		wire.MessageTypeGet:           r.handleGet,
		wire.MessageTypePut:           r.handlePut,
		wire.MessageTypeDelete:        r.handleDelete,
		wire.MessageTypeNoop:          r.handleNoop,
		wire.MessageTypeFlushAllData:  r.handleNoop,
		wire.MessageTypeSetup:         r.handleSetup,
		wire.MessageTypeSecurity:      r.handleSecurity,
		wire.MessageTypePinOp:         r.handlePinOp,
		wire.MessageTypeMediaScan:     r.handleMediaScan,
		wire.MessageTypeMediaOptimize: r.handleMediaOptimize,
		wire.MessageTypeEndBatch:      r.handleEndBatch,
	}
	return r
}

// OnClusterChange registers fn to run after a SETUP or PINOP succeeds.
// Must be called before the runner is used.
func (r *Runner) OnClusterChange(fn func(clusterVersion int64)) {
	r.onClusterChange = fn
}

// Run executes cmd and sends its response.
func (r *Runner) Run(ctx context.Context, cmd *Command) {
	resp := wire.NewResponse(cmd.Request)
	r.execute(ctx, cmd, resp)
	r.Respond(cmd, resp)

	switch cmd.Request.Header.MessageType {
	case wire.MessageTypeSetup, wire.MessageTypePinOp:
		if r.onClusterChange != nil && resp.Status.Code.IsSuccess() {
			r.onClusterChange(r.engine.ClusterVersion())
		}
	}
}

func (r *Runner) execute(ctx context.Context, cmd *Command, resp *wire.Response) {
	req := cmd.Request

	if err := req.Validate(); err != nil {
		resp.Status.Set(wire.StatusInvalidRequest, err.Error())
		return
	}
	if req.Header.MessageType != wire.MessageTypePinOp && r.engine.Locked() {
		resp.Status.Set(wire.StatusDeviceLocked, MsgDeviceLocked)
		return
	}

	h, ok := r.handlers[req.Header.MessageType]
	if !ok {
		resp.Status.Set(wire.StatusInvalidRequest, "unsupported message type "+req.Header.MessageType.String())
		return
	}
	if err := h(ctx, cmd, resp); err != nil {
		r.logger.Error("request failed",
			"connID", cmd.ConnID,
			"messageType", req.Header.MessageType.String(),
			"sequence", req.Header.Sequence,
			"error", err)
		resp.Status.Set(wire.StatusInternalError, err.Error())
	}
}

// Respond sends resp for cmd. Send errors are logged and swallowed: the
// connection may already be gone.
func (r *Runner) Respond(cmd *Command, resp *wire.Response) {
	if cmd.ConnID != 0 {
		resp.Header.ConnectionID = cmd.ConnID
	}
	elapsed := time.Since(cmd.Admitted)

	data, err := wire.EncodeResponse(resp)
	if err != nil {
		r.logger.Error("encode response failed", "connID", cmd.ConnID, "error", err)
		return
	}
	if err := cmd.Conn.Send(data, resp.Value); err != nil {
		r.logger.Debug("send response failed", "connID", cmd.ConnID, "error", err)
	} else if cmd.Record != nil {
		cmd.Record.Ack(resp.Header.AckSequence)
	}

	r.metrics.RecordRequest(cmd.Request.Header.MessageType.String(), resp.Status.Code.String(), elapsed)
	if cmd.Request.Header.MessageType == wire.MessageTypePinOp {
		r.metrics.RecordPinOp(pinOpType(cmd.Request).String(), resp.Status.Code.String())
	}
	r.logResponse(cmd, resp, elapsed)
}

func (r *Runner) logResponse(cmd *Command, resp *wire.Response, elapsed time.Duration) {
	if r.protocolLogger == nil {
		return
	}
	status := resp.Status.Code
	r.protocolLogger.Log(log.Event{
		Timestamp:    time.Now(),
		SessionID:    cmd.Conn.SessionID(),
		Direction:    log.DirectionOut,
		Layer:        log.LayerWire,
		Category:     log.CategoryMessage,
		Secure:       cmd.Secure,
		ConnectionID: cmd.ConnID,
		Message: &log.MessageEvent{
			Kind:           log.MessageKindResponse,
			MessageType:    resp.Header.MessageType,
			AckSequence:    resp.Header.AckSequence,
			BatchID:        resp.Header.BatchID,
			Status:         &status,
			StatusMessage:  resp.Status.Message,
			ProcessingTime: &elapsed,
		},
	})
}

// logDeviceState records a device lock transition caused by a pin operation.
func (r *Runner) logDeviceState(cmd *Command, oldState, newState, reason string) {
	if r.protocolLogger == nil {
		return
	}
	r.protocolLogger.Log(log.Event{
		Timestamp:    time.Now(),
		SessionID:    cmd.Conn.SessionID(),
		Direction:    log.DirectionIn,
		Layer:        log.LayerService,
		Category:     log.CategoryState,
		Secure:       cmd.Secure,
		ConnectionID: cmd.ConnID,
		StateChange: &log.StateChangeEvent{
			Entity:   log.StateEntityDevice,
			OldState: oldState,
			NewState: newState,
			Reason:   reason,
		},
	})
}

func lockStateName(locked bool) string {
	if locked {
		return "LOCKED"
	}
	return "UNLOCKED"
}

func pinOpType(req *wire.Request) wire.PinOpType {
	if req.Body.PinOp == nil {
		return wire.PinOpInvalid
	}
	return req.Body.PinOp.Type
}
