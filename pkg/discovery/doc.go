// Package discovery announces simulated Kinetic devices over mDNS/DNS-SD.
//
// Devices register a single service of type _kinetic._tcp. The instance
// name is derived from the serial number and the TXT records carry:
//
//	serial   device serial number
//	model    device model
//	port     plain TCP port
//	tlsPort  TLS port (optional)
//	cv       current cluster version
//
// Clients browse the same service type with MDNSBrowser and may look a
// device up by serial number.
package discovery
