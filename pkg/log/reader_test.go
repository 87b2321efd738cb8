package log

import (
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/kinetic-sim/kinetic-go/pkg/wire"
)

func createTestLogFile(t *testing.T, events []Event) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "captures", "test"+FileExtension)

	logger, err := NewFileLogger(path)
	if err != nil {
		t.Fatalf("failed to create test log: %v", err)
	}
	for _, e := range events {
		logger.Log(e)
	}
	if err := logger.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	return path
}

func readAll(t *testing.T, r *Reader) []Event {
	t.Helper()
	var read []Event
	for {
		event, err := r.Next()
		if err == io.EOF {
			return read
		}
		if err != nil {
			t.Fatalf("Next failed: %v", err)
		}
		read = append(read, event)
	}
}

func TestReaderIteratesEvents(t *testing.T) {
	ts := time.Date(2026, 1, 2, 3, 4, 5, 123456789, time.UTC)
	events := []Event{
		{Timestamp: ts, SessionID: "s-1", Direction: DirectionIn, Layer: LayerTransport, Category: CategoryMessage},
		{Timestamp: ts, SessionID: "s-2", Direction: DirectionOut, Layer: LayerWire, Category: CategoryMessage},
		{Timestamp: ts, SessionID: "s-3", Direction: DirectionIn, Layer: LayerService, Category: CategoryState},
	}

	reader, err := NewReader(createTestLogFile(t, events))
	if err != nil {
		t.Fatalf("NewReader failed: %v", err)
	}
	defer reader.Close()

	read := readAll(t, reader)
	if len(read) != 3 {
		t.Fatalf("got %d events, want 3", len(read))
	}
	for i := range events {
		if read[i].SessionID != events[i].SessionID {
			t.Errorf("event %d: SessionID = %q, want %q", i, read[i].SessionID, events[i].SessionID)
		}
	}
	if !read[0].Timestamp.Equal(ts) {
		t.Errorf("timestamp lost precision: got %v, want %v", read[0].Timestamp, ts)
	}
}

func TestReaderFiltersByConnectionAndType(t *testing.T) {
	events := []Event{
		{SessionID: "s-1", ConnectionID: 10, Category: CategoryMessage, Message: &MessageEvent{MessageType: wire.MessageTypeGet}},
		{SessionID: "s-1", ConnectionID: 10, Category: CategoryMessage, Message: &MessageEvent{MessageType: wire.MessageTypePut}},
		{SessionID: "s-2", ConnectionID: 11, Category: CategoryMessage, Message: &MessageEvent{MessageType: wire.MessageTypePut}},
		{SessionID: "s-1", ConnectionID: 10, Category: CategoryState, StateChange: &StateChangeEvent{NewState: "CLOSED"}},
	}
	path := createTestLogFile(t, events)

	put := wire.MessageTypePut
	reader, err := NewFilteredReader(path, Filter{ConnectionID: 10, MessageType: &put})
	if err != nil {
		t.Fatalf("NewFilteredReader failed: %v", err)
	}
	defer reader.Close()

	read := readAll(t, reader)
	if len(read) != 1 {
		t.Fatalf("got %d events, want 1", len(read))
	}
	if read[0].Message.MessageType != wire.MessageTypePut {
		t.Errorf("MessageType = %v, want PUT", read[0].Message.MessageType)
	}
}

func TestReaderFiltersByCategory(t *testing.T) {
	events := []Event{
		{SessionID: "s-1", Category: CategoryMessage},
		{SessionID: "s-1", Category: CategoryError, Error: &ErrorEventData{Message: "x"}},
	}
	category := CategoryError
	reader, err := NewFilteredReader(createTestLogFile(t, events), Filter{Category: &category})
	if err != nil {
		t.Fatalf("NewFilteredReader failed: %v", err)
	}
	defer reader.Close()

	if read := readAll(t, reader); len(read) != 1 || read[0].Error == nil {
		t.Fatalf("expected only the error event, got %+v", read)
	}
}

func TestFileLoggerIgnoresLogAfterClose(t *testing.T) {
	path := filepath.Join(t.TempDir(), "closed"+FileExtension)
	logger, err := NewFileLogger(path)
	if err != nil {
		t.Fatalf("NewFileLogger failed: %v", err)
	}
	logger.Log(Event{SessionID: "before"})
	if err := logger.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	logger.Log(Event{SessionID: "after"})
	if err := logger.Close(); err != nil {
		t.Fatalf("second Close failed: %v", err)
	}
	if written, dropped := logger.Counts(); written != 1 || dropped != 1 {
		t.Errorf("Counts() = %d, %d; want 1, 1", written, dropped)
	}
	if logger.Path() != path {
		t.Errorf("Path() = %q, want %q", logger.Path(), path)
	}

	reader, err := NewReader(path)
	if err != nil {
		t.Fatalf("NewReader failed: %v", err)
	}
	defer reader.Close()
	if read := readAll(t, reader); len(read) != 1 {
		t.Fatalf("got %d events, want 1", len(read))
	}
}

func TestEncodeDecodeEvent(t *testing.T) {
	status := wire.StatusSuccess
	in := Event{
		SessionID:    "s-9",
		ConnectionID: 99,
		Message:      &MessageEvent{Kind: MessageKindResponse, MessageType: wire.MessageTypeNoopResponse, Status: &status},
	}
	data, err := EncodeEvent(in)
	if err != nil {
		t.Fatalf("EncodeEvent failed: %v", err)
	}
	out, err := DecodeEvent(data)
	if err != nil {
		t.Fatalf("DecodeEvent failed: %v", err)
	}
	if out.ConnectionID != 99 || out.Message == nil || out.Message.Status == nil || *out.Message.Status != wire.StatusSuccess {
		t.Errorf("round trip mismatch: %+v", out)
	}
}

func TestReaderStopsAtTruncatedTail(t *testing.T) {
	path := createTestLogFile(t, []Event{{SessionID: "a"}, {SessionID: "b"}})

	partial, err := EncodeEvent(Event{SessionID: "interrupted", ConnectionID: 5})
	if err != nil {
		t.Fatalf("EncodeEvent failed: %v", err)
	}
	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0)
	if err != nil {
		t.Fatalf("open failed: %v", err)
	}
	if _, err := f.Write(partial[:len(partial)/2]); err != nil {
		t.Fatalf("write failed: %v", err)
	}
	f.Close()

	reader, err := NewReader(path)
	if err != nil {
		t.Fatalf("NewReader failed: %v", err)
	}
	defer reader.Close()

	if read := readAll(t, reader); len(read) != 2 {
		t.Fatalf("got %d events, want 2", len(read))
	}
	if !reader.Truncated() {
		t.Error("expected Truncated() after a partial final event")
	}
}
