package service

import (
	"context"
	"net"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/kinetic-sim/kinetic-go/pkg/discovery"
	"github.com/kinetic-sim/kinetic-go/pkg/discovery/mocks"
	"github.com/kinetic-sim/kinetic-go/pkg/store"
	"github.com/kinetic-sim/kinetic-go/pkg/transport"
	"github.com/kinetic-sim/kinetic-go/pkg/wire"
)

func testDeviceConfig(t *testing.T) DeviceConfig {
	t.Helper()
	cfg := DefaultDeviceConfig()
	cfg.ListenAddress = "127.0.0.1:0"
	cfg.TLSListenAddress = "127.0.0.1:0"
	cfg.Home = t.TempDir()
	cfg.MetricsRegisterer = prometheus.NewRegistry()
	return cfg
}

func startDevice(t *testing.T, cfg DeviceConfig) *DeviceService {
	t.Helper()
	svc, err := NewDeviceService(cfg)
	require.NoError(t, err)
	require.NoError(t, svc.Start(context.Background()))
	t.Cleanup(func() {
		if svc.State() == StateRunning {
			_ = svc.Stop()
		}
	})
	return svc
}

func dial(t *testing.T, svc *DeviceService, secure bool) *transport.ClientConn {
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
	return conn
}

func TestDeviceServiceLifecycle(t *testing.T) {
	svc, err := NewDeviceService(testDeviceConfig(t))
	require.NoError(t, err)
	assert.Equal(t, StateIdle, svc.State())
	assert.ErrorIs(t, svc.Stop(), ErrNotStarted)

	require.NoError(t, svc.Start(context.Background()))
	assert.Equal(t, StateRunning, svc.State())
	assert.NotNil(t, svc.Addr())
	assert.NotNil(t, svc.TLSAddr())
	assert.ErrorIs(t, svc.Start(context.Background()), ErrAlreadyStarted)

	require.NoError(t, svc.Stop())
	assert.Equal(t, StateStopped, svc.State())
}

func TestDeviceServiceFailedStartClosesStore(t *testing.T) {
	taken, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer taken.Close()

	cfg := testDeviceConfig(t)
	cfg.ListenAddress = taken.Addr().String()
	svc, err := NewDeviceService(cfg)
	require.NoError(t, err)

	require.Error(t, svc.Start(context.Background()))
	assert.Equal(t, StateStopped, svc.State())
	_, err = svc.engine.Store().Get(context.Background(), []byte("k"))
	assert.ErrorIs(t, err, store.ErrClosed)
	assert.ErrorIs(t, svc.Start(context.Background()), ErrAlreadyStarted)
}

func TestNewDeviceServiceRejectsInvalidConfig(t *testing.T) {
	cfg := testDeviceConfig(t)
	cfg.StoreBackend = "floppy"
	_, err := NewDeviceService(cfg)
	assert.ErrorIs(t, err, ErrInvalidConfig)
}

func TestDeviceServiceUnsolicitedStatus(t *testing.T) {
	svc := startDevice(t, testDeviceConfig(t))

	first := dial(t, svc, false)
	status, err := first.ReceiveResponse(2 * time.Second)
	require.NoError(t, err)
	assert.Equal(t, wire.AuthUnsolicited, status.Auth.Type)
	assert.Positive(t, status.Header.ConnectionID)

	second := dial(t, svc, true)
	status2, err := second.ReceiveResponse(2 * time.Second)
	require.NoError(t, err)
	assert.Greater(t, status2.Header.ConnectionID, status.Header.ConnectionID)

	require.Eventually(t, func() bool { return svc.Connections().Len() == 2 }, time.Second, 10*time.Millisecond)
	for _, rec := range svc.Connections().Records() {
		assert.Equal(t, rec.ID == status2.Header.ConnectionID, rec.Secure)
	}
}

func TestDeviceServiceRequestResponse(t *testing.T) {
	cfg := testDeviceConfig(t)
	cfg.StoreBackend = StoreSQLite
	svc := startDevice(t, cfg)

	conn := dial(t, svc, false)
	status, err := conn.ReceiveResponse(2 * time.Second)
	require.NoError(t, err)

	require.NoError(t, conn.SendRequest(putRequest(1, "key", "value")))
	require.NoError(t, conn.SendRequest(getRequest(2, "key")))

	put, err := conn.ReceiveResponse(2 * time.Second)
	require.NoError(t, err)
	assert.Equal(t, int64(1), put.Header.AckSequence)
	assert.Equal(t, status.Header.ConnectionID, put.Header.ConnectionID)
	require.True(t, put.Status.Code.IsSuccess(), put.Status.Message)

	get, err := conn.ReceiveResponse(2 * time.Second)
	require.NoError(t, err)
	assert.Equal(t, int64(2), get.Header.AckSequence)
	assert.Equal(t, "value", string(get.Value))
}

func TestDeviceServiceDisconnectRemovesRecord(t *testing.T) {
	svc := startDevice(t, testDeviceConfig(t))

	conn := dial(t, svc, false)
	_, err := conn.ReceiveResponse(2 * time.Second)
	require.NoError(t, err)
	require.Equal(t, 1, svc.Connections().Len())

	require.NoError(t, conn.Close())
	require.Eventually(t, func() bool { return svc.Connections().Len() == 0 }, 2*time.Second, 10*time.Millisecond)
}

func TestDeviceServiceFaultInjectionClosesConnection(t *testing.T) {
	cfg := testDeviceConfig(t)
	cfg.FaultInjectCloseConnection = true
	svc := startDevice(t, cfg)

	conn := dial(t, svc, false)
	_, err := conn.ReceiveResponse(2 * time.Second)
	require.NoError(t, err)

	require.NoError(t, conn.SendRequest(request(wire.MessageTypeNoop, 1)))
	_, err = conn.ReceiveResponse(2 * time.Second)
	assert.Error(t, err, "connection should be closed without a response")

	svc.SetFaultInjection(false)
	conn = dial(t, svc, false)
	_, err = conn.ReceiveResponse(2 * time.Second)
	require.NoError(t, err)
	require.NoError(t, conn.SendRequest(request(wire.MessageTypeNoop, 2)))
	resp, err := conn.ReceiveResponse(2 * time.Second)
	require.NoError(t, err)
	assert.Equal(t, int64(2), resp.Header.AckSequence)
}

func TestDeviceServiceAdvertises(t *testing.T) {
	adv := mocks.NewMockAdvertiser(t)

	cfg := testDeviceConfig(t)
	cfg.SerialNumber = "SIM-7"
	svc, err := NewDeviceService(cfg)
	require.NoError(t, err)
	svc.SetAdvertiser(adv)

	adv.EXPECT().Advertise(mock.Anything, mock.MatchedBy(func(info *discovery.DeviceInfo) bool {
		return info.Serial == "SIM-7" && info.Port != 0 && info.TLSPort != 0
	})).Return(nil).Once()
	var updated atomic.Bool
	adv.EXPECT().Update(mock.MatchedBy(func(info *discovery.DeviceInfo) bool {
		return info.ClusterVersion == 3
	})).Run(func(*discovery.DeviceInfo) { updated.Store(true) }).Return(nil).Once()
	adv.EXPECT().Stop().Return().Once()

	require.NoError(t, svc.Start(context.Background()))

	conn := dial(t, svc, false)
	_, err = conn.ReceiveResponse(2 * time.Second)
	require.NoError(t, err)

	cv := int64(3)
	req := request(wire.MessageTypeSetup, 1)
	req.Body.Setup = &wire.Setup{NewClusterVersion: &cv}
	require.NoError(t, conn.SendRequest(req))
	resp, err := conn.ReceiveResponse(2 * time.Second)
	require.NoError(t, err)
	require.True(t, resp.Status.Code.IsSuccess(), resp.Status.Message)
	require.Eventually(t, updated.Load, time.Second, 10*time.Millisecond)

	require.NoError(t, svc.Stop())
}
