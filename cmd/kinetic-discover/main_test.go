package main

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kinetic-sim/kinetic-go/pkg/discovery"
)

func TestPrintDevices(t *testing.T) {
	devices := []*discovery.DeviceService{
		{
			DeviceInfo: discovery.DeviceInfo{Serial: "SIM-0002", Model: "kinetic-sim", Port: 8123, ClusterVersion: 4},
			Host:       "b.local.",
			Addresses:  []string{"10.0.0.2"},
		},
		{
			DeviceInfo: discovery.DeviceInfo{Serial: "SIM-0001", Model: "kinetic-sim", Port: 8123, TLSPort: 8443},
			Host:       "a.local.",
			Addresses:  []string{"10.0.0.1", "fe80::1"},
		},
	}

	var buf bytes.Buffer
	printDevices(&buf, devices)

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 3)
	assert.True(t, strings.HasPrefix(lines[0], "SERIAL"))
	assert.True(t, strings.HasPrefix(lines[1], "SIM-0001"))
	assert.Contains(t, lines[1], "8443")
	assert.Contains(t, lines[1], "10.0.0.1,fe80::1")
	assert.True(t, strings.HasPrefix(lines[2], "SIM-0002"))
	assert.Contains(t, lines[2], " - ")
}

func TestRunRejectsBadFlags(t *testing.T) {
	var stdout, stderr bytes.Buffer
	assert.Error(t, run([]string{"-timeout", "0s"}, &stdout, &stderr))
	assert.Error(t, run([]string{"-bogus"}, &stdout, &stderr))
}
