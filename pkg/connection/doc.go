// Package connection tracks the live connections of a device.
//
// Each accepted transport gets exactly one Record. The record carries the
// device-assigned connection id, the secure-channel flag fixed by the listener
// that accepted the transport, and the last acknowledged sequence number.
//
// # Connection IDs
//
// IDs are allocated from a counter seeded with the registry start time in
// seconds, so ids grow across device restarts and are never reused within
// one run:
//
//	id = startUnix + n   (n = 1, 2, 3, ...)
//
// # Lookups
//
// A missing record is not an error condition for the device: requests that
// arrive before registration is visible are processed with the connection id
// "not yet set". Lookup and Remove return ErrNotFound for that case.
package connection
