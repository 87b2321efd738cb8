// Package transport provides the device transport layer.
//
// The transport layer handles:
//   - Plain TCP and TLS 1.3 listeners, each connection tagged with the
//     listener it arrived on (Secure)
//   - Kinetic-style framing: a magic byte, the message length and the
//     value length, followed by the CBOR message and the raw value
//   - Per-session protocol logging of frames and connection state
//
// # Protocol Stack
//
//	┌────────────────────────────────┐
//	│   CBOR Message  │  Raw Value   │
//	├────────────────────────────────┤
//	│ 'F' │ msgLen (4B) │ valLen (4B)│
//	├────────────────────────────────┤
//	│     TLS 1.3 (secure port)      │
//	├────────────────────────────────┤
//	│           TCP                  │
//	└────────────────────────────────┘
//
// Values travel outside the CBOR message so large blobs (stored values,
// firmware images) are never re-encoded and never appear in frame logs.
//
// # Secure Channel
//
// A connection accepted on the TLS listener reports Secure() == true for its
// whole lifetime. Pin operations are refused on connections that are not
// secure.
package transport
