package main

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kinetic-sim/kinetic-go/pkg/service"
)

func noEnv(string) string { return "" }

func TestParseOptionsDefaults(t *testing.T) {
	opts, err := parseOptions(nil, io.Discard, noEnv)
	require.NoError(t, err)
	assert.Equal(t, ":8123", opts.Listen)
	assert.Equal(t, ":8443", opts.TLSListen)
	assert.Equal(t, service.StoreMemory, opts.Store)
	assert.True(t, opts.EnforceOrdering)
	assert.False(t, opts.FaultInject)
}

func TestParseOptionsFileThenFlags(t *testing.T) {
	path := filepath.Join(t.TempDir(), "device.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
listen: ":9000"
store: sqlite
enforceOrdering: false
workerPoolSize: 4
serial: FILE-1
`), 0o600))

	opts, err := parseOptions([]string{"-config", path, "-serial", "FLAG-1"}, io.Discard, noEnv)
	require.NoError(t, err)
	assert.Equal(t, ":9000", opts.Listen)
	assert.Equal(t, service.StoreSQLite, opts.Store)
	assert.False(t, opts.EnforceOrdering)
	assert.Equal(t, 4, opts.WorkerPoolSize)
	assert.Equal(t, "FLAG-1", opts.Serial, "flags override the file")
	assert.Equal(t, ":8443", opts.TLSListen, "unset keys keep defaults")
}

func TestParseOptionsBadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("listen: [unclosed"), 0o600))

	_, err := parseOptions([]string{"-config", path}, io.Discard, noEnv)
	assert.Error(t, err)

	_, err = parseOptions([]string{"-config", filepath.Join(t.TempDir(), "missing.yaml")}, io.Discard, noEnv)
	assert.Error(t, err)
}

func TestParseOptionsFaultInjectEnv(t *testing.T) {
	env := func(k string) string {
		if k == EnvFaultInject {
			return "true"
		}
		return ""
	}
	opts, err := parseOptions(nil, io.Discard, env)
	require.NoError(t, err)
	assert.True(t, opts.FaultInject)

	bad := func(string) string { return "sometimes" }
	_, err = parseOptions(nil, io.Discard, bad)
	assert.Error(t, err)
}

func TestOptionsDeviceConfig(t *testing.T) {
	opts := defaultOptions()
	opts.Home = t.TempDir()
	opts.OrderedQueueDepth = 8
	opts.FaultInject = true

	cfg, err := opts.DeviceConfig()
	require.NoError(t, err)
	assert.Equal(t, 8, cfg.OrderedQueueDepth)
	assert.True(t, cfg.FaultInjectCloseConnection)
	assert.Nil(t, cfg.TLSCertificate)

	opts.Store = "tape"
	_, err = opts.DeviceConfig()
	assert.ErrorIs(t, err, service.ErrInvalidConfig)

	opts = defaultOptions()
	opts.TLSCert = filepath.Join(t.TempDir(), "missing.pem")
	_, err = opts.DeviceConfig()
	assert.Error(t, err)
}

func TestParseLevel(t *testing.T) {
	for in, want := range map[string]slog.Level{
		"debug": slog.LevelDebug,
		"INFO":  slog.LevelInfo,
		"":      slog.LevelInfo,
		"warn":  slog.LevelWarn,
		"error": slog.LevelError,
	} {
		got, err := parseLevel(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}
	_, err := parseLevel("loud")
	assert.Error(t, err)
}

func TestNewProtocolLogger(t *testing.T) {
	logger := slog.New(slog.DiscardHandler)

	pl, closeFn, err := newProtocolLogger("", logger, slog.LevelInfo)
	require.NoError(t, err)
	assert.Nil(t, pl)
	closeFn()

	path := filepath.Join(t.TempDir(), "device.klog")
	pl, closeFn, err = newProtocolLogger(path, logger, slog.LevelDebug)
	require.NoError(t, err)
	require.NotNil(t, pl)
	closeFn()
	_, err = os.Stat(path)
	assert.NoError(t, err)
}
