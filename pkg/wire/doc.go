// Package wire defines the CBOR wire format types for the Kinetic-style
// device protocol.
//
// Messages are CBOR (RFC 8949) maps with integer keys. The value blob of a
// key-value command travels outside the CBOR message, in the frame that
// carries it (see package transport).
//
// # Message Types
//
// Every request carries a MessageType in its header. The device answers with
// the paired response type (GET -> GET_RESPONSE, PINOP -> PINOP_RESPONSE, ...)
// and copies the request sequence number into the response ack sequence.
// The pairing is a lookup table, so an unknown type has no response type and
// is rejected with INVALID_REQUEST.
//
// # Authentication
//
// A request is authenticated either by identity (AuthHMAC) or by pin
// (AuthPIN). Pin operations only use AuthPIN. Device-initiated messages,
// such as the status sent when a connection opens, use AuthUnsolicited.
package wire
