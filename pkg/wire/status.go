package wire

// StatusCode represents a response status code.
type StatusCode uint8

const (
	// StatusSuccess indicates the command completed.
	StatusSuccess StatusCode = 0

	// StatusNotAuthorized indicates the caller lacks the permission or secret.
	StatusNotAuthorized StatusCode = 1

	// StatusInvalidRequest indicates a protocol violation, such as a pin
	// operation on a channel without TLS.
	StatusInvalidRequest StatusCode = 2

	// StatusInternalError indicates an unexpected device failure.
	StatusInternalError StatusCode = 3

	// StatusNotFound indicates the key does not exist.
	StatusNotFound StatusCode = 4

	// StatusVersionMismatch indicates the supplied db version does not match.
	StatusVersionMismatch StatusCode = 5

	// StatusServiceBusy indicates the device refused to queue the request.
	StatusServiceBusy StatusCode = 6

	// StatusDeviceLocked indicates the device is locked by a LOCK pin operation.
	StatusDeviceLocked StatusCode = 7

	// StatusInvalidBatch indicates a malformed or unknown batch.
	StatusInvalidBatch StatusCode = 8

	// StatusNotAttempted indicates the command was skipped.
	StatusNotAttempted StatusCode = 9
)

// String returns the status name.
func (s StatusCode) String() string {
	switch s {
	case StatusSuccess:
		return "SUCCESS"
	case StatusNotAuthorized:
		return "NOT_AUTHORIZED"
	case StatusInvalidRequest:
		return "INVALID_REQUEST"
	case StatusInternalError:
		return "INTERNAL_ERROR"
	case StatusNotFound:
		return "NOT_FOUND"
	case StatusVersionMismatch:
		return "VERSION_MISMATCH"
	case StatusServiceBusy:
		return "SERVICE_BUSY"
	case StatusDeviceLocked:
		return "DEVICE_LOCKED"
	case StatusInvalidBatch:
		return "INVALID_BATCH"
	case StatusNotAttempted:
		return "NOT_ATTEMPTED"
	default:
		return "UNKNOWN"
	}
}

// IsSuccess returns true if the status indicates success.
func (s StatusCode) IsSuccess() bool {
	return s == StatusSuccess
}

// Status is the status block of a response.
type Status struct {
	Code    StatusCode `cbor:"1,keyasint"`
	Message string     `cbor:"2,keyasint,omitempty"`
}

// Set replaces the status code and message.
func (s *Status) Set(code StatusCode, message string) {
	s.Code = code
	s.Message = message
}
