package wire

import "errors"

// Message validation errors.
var (
	ErrInvalidMessageType = errors.New("invalid message type")
	ErrMissingKeyValue    = errors.New("key-value body required")
)

// Header is the command header shared by requests and responses.
type Header struct {
	// ClusterVersion is the cluster version the client believes is current.
	ClusterVersion int64 `cbor:"1,keyasint,omitempty"`

	// ConnectionID is the device-assigned connection id.
	ConnectionID int64 `cbor:"2,keyasint,omitempty"`

	// Sequence is the client-chosen request sequence number.
	Sequence int64 `cbor:"3,keyasint,omitempty"`

	// AckSequence echoes the sequence of the request being answered.
	AckSequence int64 `cbor:"4,keyasint,omitempty"`

	MessageType MessageType `cbor:"5,keyasint"`

	// BatchID ties PUT and DELETE commands to an open batch. Zero means none.
	BatchID uint32 `cbor:"6,keyasint,omitempty"`
}

// Auth carries message authentication.
type Auth struct {
	Type AuthType `cbor:"1,keyasint"`

	// Identity is the ACL identity of an HMAC-authenticated request.
	Identity int64 `cbor:"2,keyasint,omitempty"`

	// HMAC is the message HMAC. The device does not verify it.
	HMAC []byte `cbor:"3,keyasint,omitempty"`

	// Pin is the secret of a PIN-authenticated request.
	Pin []byte `cbor:"4,keyasint,omitempty"`
}

// KeyValue is the body of GET, PUT and DELETE.
type KeyValue struct {
	Key []byte `cbor:"1,keyasint,omitempty"`

	// Version is the db version the client expects the entry to have.
	Version []byte `cbor:"2,keyasint,omitempty"`

	// NewVersion is the db version stored with a PUT.
	NewVersion []byte `cbor:"3,keyasint,omitempty"`

	// Force skips the version comparison.
	Force bool `cbor:"4,keyasint,omitempty"`
}

// Setup is the body of SETUP.
type Setup struct {
	// NewClusterVersion replaces the in-memory cluster version when set.
	NewClusterVersion *int64 `cbor:"1,keyasint,omitempty"`

	// FirmwareDownload marks the message value as a firmware image.
	FirmwareDownload bool `cbor:"2,keyasint,omitempty"`
}

// ACL grants permissions to one identity.
type ACL struct {
	Identity    int64        `cbor:"1,keyasint"`
	Key         []byte       `cbor:"2,keyasint,omitempty"`
	Permissions []Permission `cbor:"3,keyasint,omitempty"`
	TLSRequired bool         `cbor:"4,keyasint,omitempty"`
}

// Security is the body of SECURITY. Nil pin fields leave the pin unchanged.
type Security struct {
	ACLs        []ACL  `cbor:"1,keyasint,omitempty"`
	OldLockPin  []byte `cbor:"2,keyasint,omitempty"`
	NewLockPin  []byte `cbor:"3,keyasint,omitempty"`
	OldErasePin []byte `cbor:"4,keyasint,omitempty"`
	NewErasePin []byte `cbor:"5,keyasint,omitempty"`
}

// PinOp is the body of PINOP.
type PinOp struct {
	Type PinOpType `cbor:"1,keyasint"`
}

// Batch is the body of START_BATCH, END_BATCH and ABORT_BATCH.
type Batch struct {
	// Count is the number of operations the client sent in the batch.
	Count uint32 `cbor:"1,keyasint,omitempty"`
}

// MediaScan is the response body of MEDIASCAN.
type MediaScan struct {
	Keys uint64 `cbor:"1,keyasint"`
}

// Body holds the command-specific parts of a message.
// At most one field is expected to be set.
type Body struct {
	KeyValue  *KeyValue  `cbor:"1,keyasint,omitempty"`
	Setup     *Setup     `cbor:"2,keyasint,omitempty"`
	Security  *Security  `cbor:"3,keyasint,omitempty"`
	PinOp     *PinOp     `cbor:"4,keyasint,omitempty"`
	Batch     *Batch     `cbor:"5,keyasint,omitempty"`
	MediaScan *MediaScan `cbor:"6,keyasint,omitempty"`
}

// Request is a command sent by a client.
type Request struct {
	Auth   Auth   `cbor:"1,keyasint"`
	Header Header `cbor:"2,keyasint"`
	Body   Body   `cbor:"3,keyasint,omitempty"`

	// Value travels in the frame, not in the CBOR message.
	Value []byte `cbor:"-"`
}

// Validate checks that the request is structurally sound.
// It does not check authorization.
func (r *Request) Validate() error {
	if !r.Header.MessageType.IsRequest() {
		return ErrInvalidMessageType
	}
	switch r.Header.MessageType {
	case MessageTypeGet, MessageTypePut, MessageTypeDelete:
		if r.Body.KeyValue == nil {
			return ErrMissingKeyValue
		}
	}
	return nil
}

// Response is a command sent by the device, either in answer to a request or
// unsolicited.
type Response struct {
	Auth   Auth   `cbor:"1,keyasint"`
	Header Header `cbor:"2,keyasint"`
	Body   Body   `cbor:"3,keyasint,omitempty"`
	Status Status `cbor:"4,keyasint"`

	Value []byte `cbor:"-"`
}

// NewResponse creates the response container for req: the paired response
// type, the ack sequence set to the request sequence, the batch id, and
// status SUCCESS.
func NewResponse(req *Request) *Response {
	resp := &Response{
		Auth: Auth{Type: req.Auth.Type},
		Header: Header{
			ConnectionID: req.Header.ConnectionID,
			AckSequence:  req.Header.Sequence,
			BatchID:      req.Header.BatchID,
		},
	}
	if rt, ok := req.Header.MessageType.ResponseType(); ok {
		resp.Header.MessageType = rt
	}
	return resp
}

// NewUnsolicitedStatus creates the status message the device sends when a
// connection opens.
func NewUnsolicitedStatus(connID, clusterVersion int64) *Response {
	return &Response{
		Auth: Auth{Type: AuthUnsolicited},
		Header: Header{
			ConnectionID:   connID,
			ClusterVersion: clusterVersion,
		},
	}
}
