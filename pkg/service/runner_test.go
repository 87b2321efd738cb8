package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/kinetic-sim/kinetic-go/pkg/log"
	"github.com/kinetic-sim/kinetic-go/pkg/pinop"
	"github.com/kinetic-sim/kinetic-go/pkg/store"
	"github.com/kinetic-sim/kinetic-go/pkg/store/mocks"
	"github.com/kinetic-sim/kinetic-go/pkg/wire"
)

// run executes req on a fresh command and returns the response sent.
func run(t *testing.T, r *Runner, secure bool, req *wire.Request) *wire.Response {
	t.Helper()
	conn := newFakeConn(secure)
	r.Run(context.Background(), &Command{
		Request:  req,
		Conn:     conn,
		ConnID:   42,
		Secure:   secure,
		Admitted: time.Now(),
	})
	return conn.next(t)
}

func TestRunnerPutGetDelete(t *testing.T) {
	r := NewRunner(newTestEngine(t), nil, nil, nil)

	resp := run(t, r, false, putRequest(1, "k", "hello"))
	require.True(t, resp.Status.Code.IsSuccess(), resp.Status.Message)
	assert.Equal(t, wire.MessageTypePutResponse, resp.Header.MessageType)
	assert.Equal(t, int64(42), resp.Header.ConnectionID)
	assert.Equal(t, int64(1), resp.Header.AckSequence)

	resp = run(t, r, false, getRequest(2, "k"))
	require.True(t, resp.Status.Code.IsSuccess())
	assert.Equal(t, "hello", string(resp.Value))
	require.NotNil(t, resp.Body.KeyValue)
	assert.Equal(t, []byte("v1"), resp.Body.KeyValue.Version)

	stale := putRequest(3, "k", "x")
	stale.Body.KeyValue.Force = false
	stale.Body.KeyValue.Version = []byte("v0")
	resp = run(t, r, false, stale)
	assert.Equal(t, wire.StatusVersionMismatch, resp.Status.Code)

	del := request(wire.MessageTypeDelete, 4)
	del.Body.KeyValue = &wire.KeyValue{Key: []byte("k"), Version: []byte("v1")}
	resp = run(t, r, false, del)
	require.True(t, resp.Status.Code.IsSuccess(), resp.Status.Message)

	resp = run(t, r, false, getRequest(5, "k"))
	assert.Equal(t, wire.StatusNotFound, resp.Status.Code)
}

func TestRunnerRejectsInvalidRequests(t *testing.T) {
	r := NewRunner(newTestEngine(t), nil, nil, nil)

	tests := []struct {
		name string
		req  *wire.Request
		want wire.StatusCode
	}{
		{"missing key value", request(wire.MessageTypeGet, 1), wire.StatusInvalidRequest},
		{"response type", request(wire.MessageTypeGetResponse, 1), wire.StatusInvalidRequest},
		{"batch control outside batch path", request(wire.MessageTypeStartBatch, 1), wire.StatusInvalidRequest},
		{"setup without body", request(wire.MessageTypeSetup, 1), wire.StatusInvalidRequest},
		{"security without body", request(wire.MessageTypeSecurity, 1), wire.StatusInvalidRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := run(t, r, true, tt.req)
			assert.Equal(t, tt.want, resp.Status.Code)
			assert.Equal(t, int64(1), resp.Header.AckSequence)
		})
	}
}

func TestRunnerUnsupportedTypeMessage(t *testing.T) {
	r := NewRunner(newTestEngine(t), nil, nil, nil)
	resp := run(t, r, false, request(wire.MessageTypeAbortBatch, 1))
	assert.Equal(t, wire.StatusInvalidRequest, resp.Status.Code)
	assert.Contains(t, resp.Status.Message, "ABORT_BATCH")
}

func TestRunnerNoopAndFlush(t *testing.T) {
	r := NewRunner(newTestEngine(t), nil, nil, nil)
	for _, mt := range []wire.MessageType{wire.MessageTypeNoop, wire.MessageTypeFlushAllData} {
		resp := run(t, r, false, request(mt, 1))
		assert.True(t, resp.Status.Code.IsSuccess(), mt.String())
	}
}

func TestRunnerLockedDevice(t *testing.T) {
	e := newTestEngine(t)
	r := NewRunner(e, nil, nil, nil)
	e.Security().SetLocked(true)

	resp := run(t, r, false, getRequest(1, "k"))
	assert.Equal(t, wire.StatusDeviceLocked, resp.Status.Code)
	assert.Equal(t, wire.MessageTypeGetResponse, resp.Header.MessageType)

	unlock := request(wire.MessageTypePinOp, 2)
	unlock.Auth = wire.Auth{Type: wire.AuthPIN}
	unlock.Body.PinOp = &wire.PinOp{Type: wire.PinOpUnlock}
	resp = run(t, r, true, unlock)
	require.True(t, resp.Status.Code.IsSuccess(), resp.Status.Message)
	assert.False(t, e.Locked())

	resp = run(t, r, false, getRequest(3, "k"))
	assert.Equal(t, wire.StatusNotFound, resp.Status.Code)
}

type eventRecorder struct {
	mu     sync.Mutex
	events []log.Event
}

func (r *eventRecorder) Log(e log.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

func TestRunnerLogsDeviceLockTransitions(t *testing.T) {
	rec := &eventRecorder{}
	r := NewRunner(newTestEngine(t), nil, rec, nil)

	lock := request(wire.MessageTypePinOp, 1)
	lock.Auth = wire.Auth{Type: wire.AuthPIN}
	lock.Body.PinOp = &wire.PinOp{Type: wire.PinOpLock}
	resp := run(t, r, true, lock)
	require.True(t, resp.Status.Code.IsSuccess(), resp.Status.Message)

	var states []*log.StateChangeEvent
	rec.mu.Lock()
	for _, e := range rec.events {
		if e.StateChange != nil {
			states = append(states, e.StateChange)
		}
	}
	rec.mu.Unlock()

	require.Len(t, states, 1)
	assert.Equal(t, log.StateEntityDevice, states[0].Entity)
	assert.Equal(t, "UNLOCKED", states[0].OldState)
	assert.Equal(t, "LOCKED", states[0].NewState)
	assert.Equal(t, "LOCK_PINOP", states[0].Reason)
}

func TestRunnerPinOpRequiresSecureChannel(t *testing.T) {
	r := NewRunner(newTestEngine(t), nil, nil, nil)

	req := request(wire.MessageTypePinOp, 1)
	req.Body.PinOp = &wire.PinOp{Type: wire.PinOpLock}
	resp := run(t, r, false, req)
	assert.Equal(t, wire.StatusInvalidRequest, resp.Status.Code)
	assert.Equal(t, pinop.MsgTLSRequired, resp.Status.Message)
}

func TestRunnerSetupChangesClusterVersion(t *testing.T) {
	e := newTestEngine(t)
	r := NewRunner(e, nil, nil, nil)

	var notified int64 = -1
	r.OnClusterChange(func(cv int64) { notified = cv })

	cv := int64(12)
	req := request(wire.MessageTypeSetup, 1)
	req.Body.Setup = &wire.Setup{NewClusterVersion: &cv}
	resp := run(t, r, false, req)
	require.True(t, resp.Status.Code.IsSuccess(), resp.Status.Message)
	assert.Equal(t, int64(12), e.ClusterVersion())
	assert.Equal(t, int64(12), notified)
}

func TestRunnerEraseResetsDevice(t *testing.T) {
	e := newTestEngine(t)
	r := NewRunner(e, nil, nil, nil)

	cv := int64(5)
	setupReq := request(wire.MessageTypeSetup, 1)
	setupReq.Body.Setup = &wire.Setup{NewClusterVersion: &cv}
	require.True(t, run(t, r, false, setupReq).Status.Code.IsSuccess())
	require.True(t, run(t, r, false, putRequest(2, "k", "v")).Status.Code.IsSuccess())

	sec := request(wire.MessageTypeSecurity, 3)
	sec.Body.Security = &wire.Security{NewErasePin: []byte("1234")}
	require.True(t, run(t, r, true, sec).Status.Code.IsSuccess())

	erase := request(wire.MessageTypePinOp, 4)
	erase.Auth = wire.Auth{Type: wire.AuthPIN, Pin: []byte("wrongpin")}
	erase.Body.PinOp = &wire.PinOp{Type: wire.PinOpErase}
	resp := run(t, r, true, erase)
	assert.Equal(t, wire.StatusNotAuthorized, resp.Status.Code)
	assert.NotContains(t, resp.Status.Message, "wrongpin")

	erase.Auth.Pin = []byte("1234")
	resp = run(t, r, true, erase)
	require.True(t, resp.Status.Code.IsSuccess(), resp.Status.Message)
	assert.Equal(t, wire.AuthPIN, resp.Auth.Type)
	assert.Zero(t, e.ClusterVersion())
	assert.Empty(t, e.Security().Pins().Erase)

	resp = run(t, r, false, getRequest(5, "k"))
	assert.Equal(t, wire.StatusNotFound, resp.Status.Code)
}

func TestRunnerSecurity(t *testing.T) {
	e := newTestEngine(t)
	r := NewRunner(e, nil, nil, nil)

	pins := request(wire.MessageTypeSecurity, 1)
	pins.Body.Security = &wire.Security{NewLockPin: []byte("1")}
	assert.Equal(t, wire.StatusInvalidRequest, run(t, r, false, pins).Status.Code,
		"pin change needs a secure channel")

	acls := request(wire.MessageTypeSecurity, 2)
	acls.Body.Security = &wire.Security{ACLs: []wire.ACL{
		{Identity: 1, Permissions: []wire.Permission{wire.PermissionRead, wire.PermissionSecurity}},
		{Identity: 2, Permissions: []wire.Permission{wire.PermissionWrite, wire.PermissionRead}},
	}}
	require.True(t, run(t, r, false, acls).Status.Code.IsSuccess())

	// Identity 1 may read but not write.
	assert.Equal(t, wire.StatusNotAuthorized, run(t, r, false, putRequest(3, "k", "v")).Status.Code)
	assert.Equal(t, wire.StatusNotFound, run(t, r, false, getRequest(4, "k")).Status.Code)

	put := putRequest(5, "k", "v")
	put.Auth.Identity = 2
	assert.True(t, run(t, r, false, put).Status.Code.IsSuccess())

	// Identity 2 lacks SECURITY.
	again := request(wire.MessageTypeSecurity, 6)
	again.Auth.Identity = 2
	again.Body.Security = &wire.Security{ACLs: acls.Body.Security.ACLs}
	assert.Equal(t, wire.StatusNotAuthorized, run(t, r, false, again).Status.Code)

	// Nobody holds SETUP.
	cv := int64(1)
	setupReq := request(wire.MessageTypeSetup, 7)
	setupReq.Body.Setup = &wire.Setup{NewClusterVersion: &cv}
	assert.Equal(t, wire.StatusNotAuthorized, run(t, r, false, setupReq).Status.Code)
	assert.Zero(t, e.ClusterVersion())
}

func TestRunnerMediaScanAndOptimize(t *testing.T) {
	r := NewRunner(newTestEngine(t), nil, nil, nil)
	for i, k := range []string{"a", "b", "c"} {
		require.True(t, run(t, r, false, putRequest(int64(i+1), k, k)).Status.Code.IsSuccess())
	}

	resp := run(t, r, false, request(wire.MessageTypeMediaScan, 10))
	require.True(t, resp.Status.Code.IsSuccess())
	require.NotNil(t, resp.Body.MediaScan)
	assert.Equal(t, uint64(3), resp.Body.MediaScan.Keys)

	resp = run(t, r, false, request(wire.MessageTypeMediaOptimize, 11))
	assert.True(t, resp.Status.Code.IsSuccess())
}

func TestRunnerEndBatchVersionMismatch(t *testing.T) {
	r := NewRunner(newTestEngine(t), nil, nil, nil)

	bad := putRequest(1, "k", "v")
	bad.Body.KeyValue.Force = false
	bad.Body.KeyValue.Version = []byte("nope")

	conn := newFakeConn(false)
	end := request(wire.MessageTypeEndBatch, 2)
	end.Header.BatchID = 1
	r.Run(context.Background(), &Command{
		Request:  end,
		Conn:     conn,
		Admitted: time.Now(),
		Ops:      []*wire.Request{putRequest(0, "ok", "v"), bad},
	})
	resp := conn.next(t)
	assert.Equal(t, wire.StatusInvalidBatch, resp.Status.Code)

	// Nothing of the failed batch was applied.
	assert.Equal(t, wire.StatusNotFound, run(t, r, false, getRequest(3, "ok")).Status.Code)
}

func TestRunnerStoreFailureIsInternalError(t *testing.T) {
	st := mocks.NewMockStore(t)
	st.EXPECT().Get(mock.Anything, []byte("k")).Return(store.Entry{}, errors.New("media failure"))

	e, err := NewEngine(EngineConfig{Home: t.TempDir(), Store: st})
	require.NoError(t, err)
	r := NewRunner(e, nil, nil, nil)

	resp := run(t, r, false, getRequest(1, "k"))
	assert.Equal(t, wire.StatusInternalError, resp.Status.Code)
	assert.Contains(t, resp.Status.Message, "media failure")
}

func TestRunnerEraseStoreResetFailure(t *testing.T) {
	st := mocks.NewMockStore(t)
	st.EXPECT().Reset(mock.Anything).Return(errors.New("reset failed"))

	e, err := NewEngine(EngineConfig{Home: t.TempDir(), Store: st})
	require.NoError(t, err)
	r := NewRunner(e, nil, nil, nil)

	erase := request(wire.MessageTypePinOp, 1)
	erase.Auth = wire.Auth{Type: wire.AuthPIN}
	erase.Body.PinOp = &wire.PinOp{Type: wire.PinOpSecureErase}
	resp := run(t, r, true, erase)
	assert.Equal(t, wire.StatusInternalError, resp.Status.Code)
	assert.Zero(t, e.ClusterVersion())
}
