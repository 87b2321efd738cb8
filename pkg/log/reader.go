package log

import (
	"errors"
	"io"
	"os"
	"time"

	"github.com/fxamacker/cbor/v2"

	"github.com/kinetic-sim/kinetic-go/pkg/wire"
)

// Filter specifies criteria for filtering log events.
// Empty/nil fields match all events for that criterion.
type Filter struct {
	// SessionID filters by exact transport session match.
	SessionID string

	// ConnectionID filters by device connection id.
	ConnectionID int64

	// Direction filters by message direction.
	Direction *Direction

	// Layer filters by protocol layer.
	Layer *Layer

	// Category filters by event category.
	Category *Category

	// TimeStart filters events at or after this time.
	TimeStart *time.Time

	// TimeEnd filters events before this time.
	TimeEnd *time.Time

	// MessageType filters message events by command type.
	MessageType *wire.MessageType
}

// matches returns true if the event matches all filter criteria.
func (f *Filter) matches(event Event) bool {
	if f.SessionID != "" && event.SessionID != f.SessionID {
		return false
	}
	if f.ConnectionID != 0 && event.ConnectionID != f.ConnectionID {
		return false
	}
	if f.Direction != nil && event.Direction != *f.Direction {
		return false
	}
	if f.Layer != nil && event.Layer != *f.Layer {
		return false
	}
	if f.Category != nil && event.Category != *f.Category {
		return false
	}
	if f.TimeStart != nil && event.Timestamp.Before(*f.TimeStart) {
		return false
	}
	if f.TimeEnd != nil && !event.Timestamp.Before(*f.TimeEnd) {
		return false
	}
	if f.MessageType != nil && (event.Message == nil || event.Message.MessageType != *f.MessageType) {
		return false
	}
	return true
}

// Reader streams events from a capture file.
type Reader struct {
	file      *os.File
	decoder   *cbor.Decoder
	filter    Filter
	truncated bool
}

// NewReader creates a Reader that reads all events from the specified log file.
func NewReader(path string) (*Reader, error) {
	return NewFilteredReader(path, Filter{})
}

// NewFilteredReader creates a Reader that reads events matching the filter.
func NewFilteredReader(path string, filter Filter) (*Reader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	return &Reader{
		file:    f,
		decoder: newEventDecoder(f),
		filter:  filter,
	}, nil
}

// Next returns the next event that matches the filter, or io.EOF at the end
// of the capture. A partially written final event, as left by a device that
// was killed mid-write, also ends the capture; Truncated reports it.
func (r *Reader) Next() (Event, error) {
	for {
		var event Event
		err := r.decoder.Decode(&event)
		switch {
		case err == nil:
		case errors.Is(err, io.EOF):
			return Event{}, io.EOF
		case errors.Is(err, io.ErrUnexpectedEOF):
			r.truncated = true
			return Event{}, io.EOF
		default:
			return Event{}, err
		}

		if r.filter.matches(event) {
			return event, nil
		}
	}
}

// Truncated reports whether the capture ended in a partial event.
func (r *Reader) Truncated() bool { return r.truncated }

// Close closes the underlying file.
func (r *Reader) Close() error {
	return r.file.Close()
}
