package wire

import "strings"

// MessageType identifies the command carried by a message.
type MessageType uint8

const (
	MessageTypeInvalid MessageType = iota
	MessageTypeGet
	MessageTypeGetResponse
	MessageTypePut
	MessageTypePutResponse
	MessageTypeDelete
	MessageTypeDeleteResponse
	MessageTypeSetup
	MessageTypeSetupResponse
	MessageTypeSecurity
	MessageTypeSecurityResponse
	MessageTypePinOp
	MessageTypePinOpResponse
	MessageTypeNoop
	MessageTypeNoopResponse
	MessageTypeFlushAllData
	MessageTypeFlushAllDataResponse
	MessageTypeMediaScan
	MessageTypeMediaScanResponse
	MessageTypeMediaOptimize
	MessageTypeMediaOptimizeResponse
	MessageTypeStartBatch
	MessageTypeStartBatchResponse
	MessageTypeEndBatch
	MessageTypeEndBatchResponse
	MessageTypeAbortBatch
	MessageTypeAbortBatchResponse
)

var messageTypeNames = map[MessageType]string{
	MessageTypeInvalid:               "INVALID",
	MessageTypeGet:                   "GET",
	MessageTypeGetResponse:           "GET_RESPONSE",
	MessageTypePut:                   "PUT",
	MessageTypePutResponse:           "PUT_RESPONSE",
	MessageTypeDelete:                "DELETE",
	MessageTypeDeleteResponse:        "DELETE_RESPONSE",
	MessageTypeSetup:                 "SETUP",
	MessageTypeSetupResponse:         "SETUP_RESPONSE",
	MessageTypeSecurity:              "SECURITY",
	MessageTypeSecurityResponse:      "SECURITY_RESPONSE",
	MessageTypePinOp:                 "PINOP",
	MessageTypePinOpResponse:         "PINOP_RESPONSE",
	MessageTypeNoop:                  "NOOP",
	MessageTypeNoopResponse:          "NOOP_RESPONSE",
	MessageTypeFlushAllData:          "FLUSHALLDATA",
	MessageTypeFlushAllDataResponse:  "FLUSHALLDATA_RESPONSE",
	MessageTypeMediaScan:             "MEDIASCAN",
	MessageTypeMediaScanResponse:     "MEDIASCAN_RESPONSE",
	MessageTypeMediaOptimize:         "MEDIAOPTIMIZE",
	MessageTypeMediaOptimizeResponse: "MEDIAOPTIMIZE_RESPONSE",
	MessageTypeStartBatch:            "START_BATCH",
	MessageTypeStartBatchResponse:    "START_BATCH_RESPONSE",
	MessageTypeEndBatch:              "END_BATCH",
	MessageTypeEndBatchResponse:      "END_BATCH_RESPONSE",
	MessageTypeAbortBatch:            "ABORT_BATCH",
	MessageTypeAbortBatchResponse:    "ABORT_BATCH_RESPONSE",
}

// responseTypes pairs every request type with its response type.
var responseTypes = map[MessageType]MessageType{
	MessageTypeGet:           MessageTypeGetResponse,
	MessageTypePut:           MessageTypePutResponse,
	MessageTypeDelete:        MessageTypeDeleteResponse,
	MessageTypeSetup:         MessageTypeSetupResponse,
	MessageTypeSecurity:      MessageTypeSecurityResponse,
	MessageTypePinOp:         MessageTypePinOpResponse,
	MessageTypeNoop:          MessageTypeNoopResponse,
	MessageTypeFlushAllData:  MessageTypeFlushAllDataResponse,
	MessageTypeMediaScan:     MessageTypeMediaScanResponse,
	MessageTypeMediaOptimize: MessageTypeMediaOptimizeResponse,
	MessageTypeStartBatch:    MessageTypeStartBatchResponse,
	MessageTypeEndBatch:      MessageTypeEndBatchResponse,
	MessageTypeAbortBatch:    MessageTypeAbortBatchResponse,
}

// String returns the message type name.
func (m MessageType) String() string {
	if name, ok := messageTypeNames[m]; ok {
		return name
	}
	return "UNKNOWN"
}

// IsRequest returns true if m is a request type the device accepts.
func (m MessageType) IsRequest() bool {
	_, ok := responseTypes[m]
	return ok
}

// ResponseType returns the response type paired with request type m.
// The second result is false for response types and unknown values.
func (m MessageType) ResponseType() (MessageType, bool) {
	rt, ok := responseTypes[m]
	return rt, ok
}

// RequestTypes returns every request type the device accepts.
func RequestTypes() []MessageType {
	types := make([]MessageType, 0, len(responseTypes))
	for mt := MessageTypeGet; mt <= MessageTypeAbortBatchResponse; mt++ {
		if mt.IsRequest() {
			types = append(types, mt)
		}
	}
	return types
}

// PinOpType selects the privileged operation of a PINOP request.
type PinOpType uint8

const (
	PinOpInvalid PinOpType = iota
	PinOpLock
	PinOpUnlock
	PinOpErase
	PinOpSecureErase
)

// String returns the pin operation name.
func (p PinOpType) String() string {
	switch p {
	case PinOpInvalid:
		return "INVALID_PINOP"
	case PinOpLock:
		return "LOCK_PINOP"
	case PinOpUnlock:
		return "UNLOCK_PINOP"
	case PinOpErase:
		return "ERASE_PINOP"
	case PinOpSecureErase:
		return "SECURE_ERASE_PINOP"
	default:
		return "UNKNOWN"
	}
}

// AuthType describes how a message is authenticated.
type AuthType uint8

const (
	AuthInvalid AuthType = iota
	AuthHMAC
	AuthPIN
	AuthUnsolicited
)

// String returns the auth type name.
func (a AuthType) String() string {
	switch a {
	case AuthHMAC:
		return "HMACAUTH"
	case AuthPIN:
		return "PINAUTH"
	case AuthUnsolicited:
		return "UNSOLICITEDSTATUS"
	default:
		return "INVALID_AUTH_TYPE"
	}
}

// Permission is a capability granted to an identity by an ACL entry.
type Permission uint8

const (
	PermissionInvalid Permission = iota
	PermissionRead
	PermissionWrite
	PermissionDelete
	PermissionRange
	PermissionSetup
	PermissionP2P
	PermissionGetLog
	PermissionSecurity
)

// String returns the permission name.
func (p Permission) String() string {
	switch p {
	case PermissionRead:
		return "READ"
	case PermissionWrite:
		return "WRITE"
	case PermissionDelete:
		return "DELETE"
	case PermissionRange:
		return "RANGE"
	case PermissionSetup:
		return "SETUP"
	case PermissionP2P:
		return "P2POP"
	case PermissionGetLog:
		return "GETLOG"
	case PermissionSecurity:
		return "SECURITY"
	default:
		return "INVALID_PERMISSION"
	}
}

// ParseMessageType returns the message type with the given name.
// Matching is case-insensitive.
func ParseMessageType(name string) (MessageType, bool) {
	name = strings.ToUpper(name)
	for mt, n := range messageTypeNames {
		if n == name {
			return mt, true
		}
	}
	return MessageTypeInvalid, false
}
