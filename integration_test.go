package kinetic_test

import (
	"context"
	"io"
	"path/filepath"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kinetic-sim/kinetic-go/pkg/log"
	"github.com/kinetic-sim/kinetic-go/pkg/pinop"
	"github.com/kinetic-sim/kinetic-go/pkg/service"
	"github.com/kinetic-sim/kinetic-go/pkg/transport"
	"github.com/kinetic-sim/kinetic-go/pkg/wire"
)

const responseTimeout = 3 * time.Second

// e2eClient is a connected client that tracks its connection id and
// request sequence.
type e2eClient struct {
	t      *testing.T
	conn   *transport.ClientConn
	connID int64
	status *wire.Response
	seq    int64
}

func newDeviceConfig(t *testing.T, home string) service.DeviceConfig {
	t.Helper()
	cfg := service.DefaultDeviceConfig()
	cfg.ListenAddress = "127.0.0.1:0"
	cfg.TLSListenAddress = "127.0.0.1:0"
	cfg.Home = home
	cfg.StoreBackend = service.StoreSQLite
	cfg.MetricsRegisterer = prometheus.NewRegistry()
	return cfg
}

func startDevice(t *testing.T, cfg service.DeviceConfig) *service.DeviceService {
	t.Helper()
	svc, err := service.NewDeviceService(cfg)
	require.NoError(t, err)
	require.NoError(t, svc.Start(context.Background()))
	t.Cleanup(func() {
		if svc.State() == service.StateRunning {
			_ = svc.Stop()
		}
	})
	return svc
}

// connect dials the device and consumes the unsolicited status.
func connect(t *testing.T, svc *service.DeviceService, secure bool) *e2eClient {
	t.Helper()
	cfg := transport.ClientConfig{ConnectTimeout: 2 * time.Second}
	addr := svc.Addr().String()
	if secure {
		cfg.TLSConfig = &transport.TLSConfig{InsecureSkipVerify: true}
		addr = svc.TLSAddr().String()
	}
	client, err := transport.NewClient(cfg)
	require.NoError(t, err)

	conn, err := client.Connect(context.Background(), addr)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })

	status, err := conn.ReceiveResponse(responseTimeout)
	require.NoError(t, err)
	require.Equal(t, wire.AuthUnsolicited, status.Auth.Type)

	return &e2eClient{t: t, conn: conn, connID: status.Header.ConnectionID, status: status}
}

// do sends req with the next sequence and waits for its response.
func (c *e2eClient) do(req *wire.Request) *wire.Response {
	c.t.Helper()
	c.seq++
	req.Header.Sequence = c.seq
	req.Header.ConnectionID = c.connID
	require.NoError(c.t, c.conn.SendRequest(req))

	resp, err := c.conn.ReceiveResponse(responseTimeout)
	require.NoError(c.t, err)
	require.Equal(c.t, c.seq, resp.Header.AckSequence)
	return resp
}

func hmacRequest(mt wire.MessageType) *wire.Request {
	return &wire.Request{
		Auth:   wire.Auth{Type: wire.AuthHMAC, Identity: 1},
		Header: wire.Header{MessageType: mt},
	}
}

func put(key, value, version string) *wire.Request {
	req := hmacRequest(wire.MessageTypePut)
	req.Body.KeyValue = &wire.KeyValue{Key: []byte(key), NewVersion: []byte(version), Force: true}
	req.Value = []byte(value)
	return req
}

func get(key string) *wire.Request {
	req := hmacRequest(wire.MessageTypeGet)
	req.Body.KeyValue = &wire.KeyValue{Key: []byte(key)}
	return req
}

func pinOp(op wire.PinOpType, pin string) *wire.Request {
	return &wire.Request{
		Auth:   wire.Auth{Type: wire.AuthPIN, Pin: []byte(pin)},
		Header: wire.Header{MessageType: wire.MessageTypePinOp},
		Body:   wire.Body{PinOp: &wire.PinOp{Type: op}},
	}
}

func TestE2E_KeyValue(t *testing.T) {
	for _, secure := range []bool{false, true} {
		name := "plain"
		if secure {
			name = "tls"
		}
		t.Run(name, func(t *testing.T) {
			svc := startDevice(t, newDeviceConfig(t, t.TempDir()))
			c := connect(t, svc, secure)

			resp := c.do(put("motor", "running", "v1"))
			require.True(t, resp.Status.Code.IsSuccess(), resp.Status.Message)
			assert.Equal(t, c.connID, resp.Header.ConnectionID)
			assert.Equal(t, wire.MessageTypePutResponse, resp.Header.MessageType)

			resp = c.do(get("motor"))
			require.True(t, resp.Status.Code.IsSuccess(), resp.Status.Message)
			assert.Equal(t, "running", string(resp.Value))
			require.NotNil(t, resp.Body.KeyValue)
			assert.Equal(t, "v1", string(resp.Body.KeyValue.Version))

			stale := put("motor", "stopped", "v2")
			stale.Body.KeyValue.Force = false
			stale.Body.KeyValue.Version = []byte("v0")
			resp = c.do(stale)
			assert.Equal(t, wire.StatusVersionMismatch, resp.Status.Code)

			del := hmacRequest(wire.MessageTypeDelete)
			del.Body.KeyValue = &wire.KeyValue{Key: []byte("motor"), Force: true}
			resp = c.do(del)
			require.True(t, resp.Status.Code.IsSuccess(), resp.Status.Message)

			resp = c.do(get("motor"))
			assert.Equal(t, wire.StatusNotFound, resp.Status.Code)
		})
	}
}

func TestE2E_PipelinedRequestsAnswerInOrder(t *testing.T) {
	svc := startDevice(t, newDeviceConfig(t, t.TempDir()))
	c := connect(t, svc, false)

	const n = 20
	for i := int64(1); i <= n; i++ {
		req := put("counter", "x", "v")
		req.Header.Sequence = i
		req.Header.ConnectionID = c.connID
		require.NoError(t, c.conn.SendRequest(req))
	}
	for i := int64(1); i <= n; i++ {
		resp, err := c.conn.ReceiveResponse(responseTimeout)
		require.NoError(t, err)
		assert.Equal(t, i, resp.Header.AckSequence)
		assert.True(t, resp.Status.Code.IsSuccess(), resp.Status.Message)
	}
}

func TestE2E_LockRequiresTLSAndBlocksRequests(t *testing.T) {
	svc := startDevice(t, newDeviceConfig(t, t.TempDir()))
	secure := connect(t, svc, true)
	plain := connect(t, svc, false)

	sec := hmacRequest(wire.MessageTypeSecurity)
	sec.Body.Security = &wire.Security{NewLockPin: []byte("1234")}
	resp := secure.do(sec)
	require.True(t, resp.Status.Code.IsSuccess(), resp.Status.Message)

	resp = plain.do(pinOp(wire.PinOpLock, "1234"))
	assert.Equal(t, wire.StatusInvalidRequest, resp.Status.Code)
	assert.Equal(t, pinop.MsgTLSRequired, resp.Status.Message)

	resp = secure.do(pinOp(wire.PinOpLock, "9999"))
	assert.Equal(t, wire.StatusNotAuthorized, resp.Status.Code)
	assert.NotContains(t, resp.Status.Message, "9999")

	resp = secure.do(pinOp(wire.PinOpLock, "1234"))
	require.True(t, resp.Status.Code.IsSuccess(), resp.Status.Message)

	resp = plain.do(get("anything"))
	assert.Equal(t, wire.StatusDeviceLocked, resp.Status.Code)

	resp = secure.do(pinOp(wire.PinOpUnlock, "1234"))
	require.True(t, resp.Status.Code.IsSuccess(), resp.Status.Message)

	resp = plain.do(get("anything"))
	assert.Equal(t, wire.StatusNotFound, resp.Status.Code)
}

func TestE2E_SetupSurvivesRestart(t *testing.T) {
	home := t.TempDir()

	svc := startDevice(t, newDeviceConfig(t, home))
	c := connect(t, svc, false)
	assert.Equal(t, int64(0), c.status.Header.ClusterVersion)

	version := int64(7)
	setupReq := hmacRequest(wire.MessageTypeSetup)
	setupReq.Body.Setup = &wire.Setup{NewClusterVersion: &version}
	resp := c.do(setupReq)
	require.True(t, resp.Status.Code.IsSuccess(), resp.Status.Message)

	resp = c.do(put("kept", "yes", "v1"))
	require.True(t, resp.Status.Code.IsSuccess(), resp.Status.Message)
	require.NoError(t, svc.Stop())

	restarted := startDevice(t, newDeviceConfig(t, home))
	c2 := connect(t, restarted, false)
	assert.Equal(t, int64(7), c2.status.Header.ClusterVersion)

	resp = c2.do(get("kept"))
	require.True(t, resp.Status.Code.IsSuccess(), resp.Status.Message)
	assert.Equal(t, "yes", string(resp.Value))
}

func TestE2E_EraseResetsDevice(t *testing.T) {
	home := t.TempDir()
	svc := startDevice(t, newDeviceConfig(t, home))
	c := connect(t, svc, true)

	version := int64(3)
	setupReq := hmacRequest(wire.MessageTypeSetup)
	setupReq.Body.Setup = &wire.Setup{NewClusterVersion: &version}
	require.True(t, c.do(setupReq).Status.Code.IsSuccess())

	sec := hmacRequest(wire.MessageTypeSecurity)
	sec.Body.Security = &wire.Security{NewErasePin: []byte("erase-me")}
	require.True(t, c.do(sec).Status.Code.IsSuccess())
	require.True(t, c.do(put("doomed", "data", "v1")).Status.Code.IsSuccess())

	resp := c.do(pinOp(wire.PinOpSecureErase, "erase-me"))
	require.True(t, resp.Status.Code.IsSuccess(), resp.Status.Message)

	assert.Equal(t, int64(0), svc.Engine().ClusterVersion())
	assert.Equal(t, wire.StatusNotFound, c.do(get("doomed")).Status.Code)

	// The erase pin is gone, so an empty pin authorizes the next erase.
	resp = c.do(pinOp(wire.PinOpErase, ""))
	assert.True(t, resp.Status.Code.IsSuccess(), resp.Status.Message)

	require.NoError(t, svc.Stop())
	restarted := startDevice(t, newDeviceConfig(t, home))
	assert.Equal(t, int64(0), restarted.Engine().ClusterVersion())
}

func TestE2E_BatchCommitsOnEnd(t *testing.T) {
	svc := startDevice(t, newDeviceConfig(t, t.TempDir()))
	c := connect(t, svc, false)
	other := connect(t, svc, false)

	start := hmacRequest(wire.MessageTypeStartBatch)
	start.Header.BatchID = 11
	require.True(t, c.do(start).Status.Code.IsSuccess())

	for i, key := range []string{"a", "b"} {
		req := put(key, key+"-value", "v1")
		req.Header.BatchID = 11
		req.Header.Sequence = c.seq + int64(i) + 1
		req.Header.ConnectionID = c.connID
		require.NoError(t, c.conn.SendRequest(req))
	}
	c.seq += 2

	// Nothing is visible before END_BATCH.
	assert.Equal(t, wire.StatusNotFound, other.do(get("a")).Status.Code)

	end := hmacRequest(wire.MessageTypeEndBatch)
	end.Header.BatchID = 11
	end.Body.Batch = &wire.Batch{Count: 2}
	resp := c.do(end)
	require.True(t, resp.Status.Code.IsSuccess(), resp.Status.Message)
	assert.Equal(t, uint32(11), resp.Header.BatchID)

	resp = other.do(get("b"))
	require.True(t, resp.Status.Code.IsSuccess(), resp.Status.Message)
	assert.Equal(t, "b-value", string(resp.Value))
}

func TestE2E_ProtocolCapture(t *testing.T) {
	path := filepath.Join(t.TempDir(), "device"+log.FileExtension)
	capture, err := log.NewFileLogger(path)
	require.NoError(t, err)

	cfg := newDeviceConfig(t, t.TempDir())
	cfg.ProtocolLogger = capture
	svc := startDevice(t, cfg)

	c := connect(t, svc, false)
	require.True(t, c.do(put("logged", "v", "v1")).Status.Code.IsSuccess())
	require.NoError(t, svc.Stop())
	require.NoError(t, capture.Close())

	mt := wire.MessageTypePut
	reader, err := log.NewFilteredReader(path, log.Filter{ConnectionID: c.connID, MessageType: &mt})
	require.NoError(t, err)
	defer reader.Close()

	event, err := reader.Next()
	require.NoError(t, err)
	require.NotNil(t, event.Message)
	assert.Equal(t, log.MessageKindRequest, event.Message.Kind)
	assert.Equal(t, int64(1), event.Message.Sequence)
	assert.Equal(t, log.DirectionIn, event.Direction)

	_, err = reader.Next()
	assert.ErrorIs(t, err, io.EOF)
}
