package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/kinetic-sim/kinetic-go/pkg/security"
	"github.com/kinetic-sim/kinetic-go/pkg/setup"
	"github.com/kinetic-sim/kinetic-go/pkg/store"
	"github.com/kinetic-sim/kinetic-go/pkg/wire"
)

// authorize checks perm for the request identity once an ACL table exists.
// On denial it sets NOT_AUTHORIZED and returns false.
func (r *Runner) authorize(cmd *Command, perm wire.Permission, resp *wire.Response) bool {
	table := r.engine.security.Table()
	if table == nil {
		return true
	}
	if err := security.CheckPermission(table, cmd.Request.Auth.Identity, perm); err != nil {
		resp.Status.Set(wire.StatusNotAuthorized, fmt.Sprintf("permission %s denied for identity %d",
			perm, cmd.Request.Auth.Identity))
		return false
	}
	return true
}

// storeStatus maps expected store errors to a status. Other errors are
// returned.
func storeStatus(err error, resp *wire.Response) error {
	switch {
	case errors.Is(err, store.ErrNotFound):
		resp.Status.Set(wire.StatusNotFound, err.Error())
	case errors.Is(err, store.ErrVersionMismatch):
		resp.Status.Set(wire.StatusVersionMismatch, err.Error())
	default:
		return err
	}
	return nil
}

func (r *Runner) handleGet(ctx context.Context, cmd *Command, resp *wire.Response) error {
	kv := cmd.Request.Body.KeyValue
	return r.engine.Shared(func() error {
		if !r.authorize(cmd, wire.PermissionRead, resp) {
			return nil
		}
		e, err := r.engine.store.Get(ctx, kv.Key)
		if err != nil {
			return storeStatus(err, resp)
		}
		resp.Body.KeyValue = &wire.KeyValue{Key: e.Key, Version: e.Version}
		resp.Value = e.Value
		return nil
	})
}

func (r *Runner) handlePut(ctx context.Context, cmd *Command, resp *wire.Response) error {
	kv := cmd.Request.Body.KeyValue
	return r.engine.Shared(func() error {
		if !r.authorize(cmd, wire.PermissionWrite, resp) {
			return nil
		}
		entry := store.Entry{Key: kv.Key, Value: cmd.Request.Value, Version: kv.NewVersion}
		if err := r.engine.store.Put(ctx, entry, kv.Version, kv.Force); err != nil {
			return storeStatus(err, resp)
		}
		resp.Body.KeyValue = &wire.KeyValue{Key: kv.Key, Version: kv.NewVersion}
		return nil
	})
}

func (r *Runner) handleDelete(ctx context.Context, cmd *Command, resp *wire.Response) error {
	kv := cmd.Request.Body.KeyValue
	return r.engine.Shared(func() error {
		if !r.authorize(cmd, wire.PermissionDelete, resp) {
			return nil
		}
		if err := r.engine.store.Delete(ctx, kv.Key, kv.Version, kv.Force); err != nil {
			return storeStatus(err, resp)
		}
		return nil
	})
}

// handleNoop serves NOOP and FLUSHALLDATA. Store writes are durable when
// they return, so a flush has nothing left to do.
func (r *Runner) handleNoop(context.Context, *Command, *wire.Response) error {
	return nil
}

func (r *Runner) handleSetup(_ context.Context, cmd *Command, resp *wire.Response) error {
	if cmd.Request.Body.Setup == nil {
		resp.Status.Set(wire.StatusInvalidRequest, "setup body missing")
		return nil
	}
	return r.engine.Exclusive(func() error {
		if err := setup.CheckPermission(r.engine.security.Table(), cmd.Request.Auth.Identity); err != nil {
			resp.Status.Set(wire.StatusNotAuthorized, err.Error())
			return nil
		}
		return r.engine.setup.HandleSetup(cmd.Request, resp)
	})
}

func (r *Runner) handleSecurity(_ context.Context, cmd *Command, resp *wire.Response) error {
	body := cmd.Request.Body.Security
	if body == nil {
		resp.Status.Set(wire.StatusInvalidRequest, "security body missing")
		return nil
	}
	return r.engine.Exclusive(func() error {
		err := r.engine.security.Apply(cmd.Request.Auth.Identity, cmd.Secure, body)
		switch {
		case err == nil:
			r.logger.Info("security updated", "connID", cmd.ConnID, "identity", cmd.Request.Auth.Identity)
		case errors.Is(err, security.ErrSecureChannelRequired):
			resp.Status.Set(wire.StatusInvalidRequest, err.Error())
		case errors.Is(err, security.ErrNotAuthorized), errors.Is(err, security.ErrPinMismatch):
			resp.Status.Set(wire.StatusNotAuthorized, err.Error())
		default:
			return err
		}
		return nil
	})
}

func (r *Runner) handlePinOp(ctx context.Context, cmd *Command, resp *wire.Response) error {
	return r.engine.Exclusive(func() error {
		wasLocked := r.engine.Locked()
		r.engine.pinops.Handle(ctx, cmd.Request, cmd.Secure, resp)
		if resp.Status.Code.IsSuccess() {
			r.logDeviceState(cmd, lockStateName(wasLocked), lockStateName(r.engine.Locked()), pinOpType(cmd.Request).String())
		}
		return nil
	})
}

func (r *Runner) handleMediaScan(ctx context.Context, cmd *Command, resp *wire.Response) error {
	return r.engine.Shared(func() error {
		if !r.authorize(cmd, wire.PermissionRange, resp) {
			return nil
		}
		var n uint64
		err := r.engine.store.Scan(ctx, func(store.Entry) error {
			n++
			return ctx.Err()
		})
		if err != nil {
			return err
		}
		resp.Body.MediaScan = &wire.MediaScan{Keys: n}
		return nil
	})
}

func (r *Runner) handleMediaOptimize(ctx context.Context, cmd *Command, resp *wire.Response) error {
	return r.engine.Shared(func() error {
		if !r.authorize(cmd, wire.PermissionRange, resp) {
			return nil
		}
		return r.engine.store.Optimize(ctx)
	})
}

// handleEndBatch applies the commands collected for the batch as one unit.
func (r *Runner) handleEndBatch(ctx context.Context, cmd *Command, resp *wire.Response) error {
	return r.engine.Exclusive(func() error {
		ops := make([]store.Op, 0, len(cmd.Ops))
		for _, req := range cmd.Ops {
			kv := req.Body.KeyValue
			if kv == nil {
				resp.Status.Set(wire.StatusInvalidBatch,
					fmt.Sprintf("operation with sequence %d has no key", req.Header.Sequence))
				return nil
			}

			op := store.Op{
				Entry:           store.Entry{Key: kv.Key},
				ExpectedVersion: kv.Version,
				Force:           kv.Force,
			}
			perm := wire.PermissionDelete
			if req.Header.MessageType == wire.MessageTypePut {
				op.Type = store.OpPut
				op.Entry.Value = req.Value
				op.Entry.Version = kv.NewVersion
				perm = wire.PermissionWrite
			} else {
				op.Type = store.OpDelete
			}
			if !r.authorize(&Command{Request: req}, perm, resp) {
				return nil
			}
			ops = append(ops, op)
		}

		if err := r.engine.store.Apply(ctx, ops); err != nil {
			if errors.Is(err, store.ErrNotFound) || errors.Is(err, store.ErrVersionMismatch) {
				resp.Status.Set(wire.StatusInvalidBatch, err.Error())
				return nil
			}
			return err
		}
		resp.Body.Batch = &wire.Batch{Count: uint32(len(ops))}
		return nil
	})
}
