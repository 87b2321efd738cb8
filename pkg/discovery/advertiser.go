package discovery

import (
	"context"
	"time"
)

// Advertiser announces a device on the local network.
type Advertiser interface {
	// Advertise starts announcing the device, replacing any earlier
	// announcement.
	Advertise(ctx context.Context, info *DeviceInfo) error

	// Update refreshes the TXT records of the running announcement.
	Update(info *DeviceInfo) error

	// Stop withdraws the announcement. Safe to call when not advertising.
	Stop()
}

// AdvertiserConfig configures advertiser behavior.
type AdvertiserConfig struct {
	// Interface specifies which network interface to use.
	// Empty string means all interfaces.
	Interface string

	// TTL is the DNS record TTL.
	// Default: 120 seconds.
	TTL time.Duration
}

// DefaultAdvertiserConfig returns the default advertiser configuration.
func DefaultAdvertiserConfig() AdvertiserConfig {
	return AdvertiserConfig{
		Interface: "",
		TTL:       120 * time.Second,
	}
}

// BrowserConfig configures browser behavior.
type BrowserConfig struct {
	// Interface restricts browsing to one network interface.
	Interface string

	// Timeout bounds Find. Zero uses BrowseTimeout.
	Timeout time.Duration
}
