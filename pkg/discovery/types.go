package discovery

import (
	"errors"
	"time"
)

// Service type constants for mDNS.
const (
	// ServiceType is the DNS-SD service type for Kinetic devices.
	ServiceType = "_kinetic._tcp"

	// Domain is the mDNS domain.
	Domain = "local"

	// DefaultPort is the default plain Kinetic port.
	DefaultPort = 8123

	// InstancePrefix prefixes every instance name.
	InstancePrefix = "kinetic-"
)

// TXT record keys.
const (
	TXTKeySerial         = "serial"
	TXTKeyModel          = "model"
	TXTKeyPort           = "port"
	TXTKeyTLSPort        = "tlsPort"
	TXTKeyClusterVersion = "cv"
)

// Limits.
const (
	// MaxInstanceNameLen is the DNS label limit.
	MaxInstanceNameLen = 63

	// BrowseTimeout is the default timeout for Find.
	BrowseTimeout = 5 * time.Second
)

// Discovery errors.
var (
	ErrMissingRequired     = errors.New("missing required field")
	ErrInvalidTXTRecord    = errors.New("invalid TXT record format")
	ErrInstanceNameTooLong = errors.New("instance name exceeds 63 characters")
	ErrNotAdvertising      = errors.New("not advertising")
	ErrNotFound            = errors.New("service not found")
)

// DeviceInfo is what a device announces about itself.
type DeviceInfo struct {
	Serial         string
	Model          string
	Port           uint16
	TLSPort        uint16
	ClusterVersion int64
}

// InstanceName returns the DNS-SD instance name for the device.
func (d *DeviceInfo) InstanceName() string {
	name := InstancePrefix + d.Serial
	if len(name) > MaxInstanceNameLen {
		name = name[:MaxInstanceNameLen]
	}
	return name
}

// DeviceService is a device found while browsing.
type DeviceService struct {
	DeviceInfo

	InstanceName string
	Host         string
	Addresses    []string
}
