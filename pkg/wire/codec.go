package wire

import (
	"errors"
	"fmt"

	"github.com/fxamacker/cbor/v2"
)

// ErrMalformedMessage is returned when a frame's message bytes are not a
// decodable command.
var ErrMalformedMessage = errors.New("malformed message")

// Commands are encoded deterministically with integer keys. Decoding is
// lenient so that fields added by newer clients are ignored.
var (
	encMode = func() cbor.EncMode {
		em, err := cbor.EncOptions{
			Sort:          cbor.SortCanonical,
			IndefLength:   cbor.IndefLengthForbidden,
			NilContainers: cbor.NilContainerAsNull,
			Time:          cbor.TimeUnix,
		}.EncMode()
		if err != nil {
			panic(fmt.Sprintf("wire: CBOR encoder mode: %v", err))
		}
		return em
	}()

	decMode = func() cbor.DecMode {
		dm, err := cbor.DecOptions{
			DupMapKey:   cbor.DupMapKeyQuiet,
			IndefLength: cbor.IndefLengthAllowed,
		}.DecMode()
		if err != nil {
			panic(fmt.Sprintf("wire: CBOR decoder mode: %v", err))
		}
		return dm
	}()
)

// Marshal encodes v with the command encoding. The device also uses it for
// its .setup and .acl files.
func Marshal(v any) ([]byte, error) {
	return encMode.Marshal(v)
}

// Unmarshal decodes data produced by Marshal into v.
func Unmarshal(data []byte, v any) error {
	return decMode.Unmarshal(data, v)
}

// EncodeRequest validates req and encodes it. The value is not included;
// it travels in the frame.
func EncodeRequest(req *Request) ([]byte, error) {
	if err := req.Validate(); err != nil {
		return nil, fmt.Errorf("invalid request: %w", err)
	}
	return Marshal(req)
}

// DecodeRequest decodes a request without validating it. Callers answer
// invalid requests with INVALID_REQUEST, so the decoded header must stay
// available to them.
func DecodeRequest(data []byte) (*Request, error) {
	var req Request
	if err := Unmarshal(data, &req); err != nil {
		return nil, fmt.Errorf("%w: request: %v", ErrMalformedMessage, err)
	}
	return &req, nil
}

// EncodeResponse encodes resp. The value is not included.
func EncodeResponse(resp *Response) ([]byte, error) {
	return Marshal(resp)
}

// DecodeResponse decodes a response or unsolicited status.
func DecodeResponse(data []byte) (*Response, error) {
	var resp Response
	if err := Unmarshal(data, &resp); err != nil {
		return nil, fmt.Errorf("%w: response: %v", ErrMalformedMessage, err)
	}
	return &resp, nil
}
