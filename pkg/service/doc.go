// Package service ties the device components together.
//
// # DeviceService
//
// DeviceService runs a simulated device. It handles:
//   - Plain and TLS listeners (via pkg/transport)
//   - Connection registration and the unsolicited status on connect
//   - Request admission through the OrderingDispatcher
//   - Request execution through the Runner's handler table
//   - mDNS advertising (optional)
//   - Protocol capture and metrics (optional)
//
// Example usage:
//
//	config := service.DefaultDeviceConfig()
//	config.Home = "/var/lib/kinetic"
//
//	svc, err := service.NewDeviceService(config)
//	svc.Start(ctx)
//	defer svc.Stop()
//
// # Ordering
//
// With ordering enforced, every connection owns one ordered queue drained by
// a single goroutine, so ordered requests complete in arrival order.
// MEDIASCAN and MEDIAOPTIMIZE are order-exempt and run on the shared worker
// pool. Without ordering, every request runs on the pool.
//
// # Engine
//
// The Engine owns the store, the security state and the setup record.
// Privileged mutations (setup, security, pin operations, batch commit) hold
// its write lock; data-path requests hold the read lock.
package service
