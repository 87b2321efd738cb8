package transport

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/kinetic-sim/kinetic-go/pkg/log"
)

// Framing constants.
const (
	// FrameMagic is the first byte of every frame.
	FrameMagic byte = 'F'

	// HeaderSize is the frame header size: magic, message length, value length.
	HeaderSize = 9

	// DefaultMaxMessageSize is the default maximum message size (1 MB).
	DefaultMaxMessageSize = 1 << 20

	// DefaultMaxValueSize is the default maximum value size (16 MB).
	// Firmware images travel as values, hence the larger bound.
	DefaultMaxValueSize = 16 << 20

	// MaxLogFrameDataSize is the maximum frame data size to include in logs (4 KB).
	MaxLogFrameDataSize = 4096
)

// Framing errors.
var (
	// ErrMessageTooLarge indicates the message exceeds the maximum size.
	ErrMessageTooLarge = errors.New("message too large")

	// ErrValueTooLarge indicates the value exceeds the maximum size.
	ErrValueTooLarge = errors.New("value too large")

	// ErrMessageEmpty indicates an empty message.
	ErrMessageEmpty = errors.New("message is empty")

	// ErrFrameTruncated indicates the frame was truncated.
	ErrFrameTruncated = errors.New("frame truncated")

	// ErrBadMagic indicates the frame did not start with FrameMagic.
	ErrBadMagic = errors.New("bad frame magic")
)

// Limits bounds message and value sizes for a framer.
type Limits struct {
	MaxMessageSize uint32
	MaxValueSize   uint32
}

// DefaultLimits returns the default frame limits.
func DefaultLimits() Limits {
	return Limits{
		MaxMessageSize: DefaultMaxMessageSize,
		MaxValueSize:   DefaultMaxValueSize,
	}
}

func (l Limits) withDefaults() Limits {
	if l.MaxMessageSize == 0 {
		l.MaxMessageSize = DefaultMaxMessageSize
	}
	if l.MaxValueSize == 0 {
		l.MaxValueSize = DefaultMaxValueSize
	}
	return l
}

func (l Limits) check(msgLen, valueLen uint32) error {
	if msgLen == 0 {
		return ErrMessageEmpty
	}
	if msgLen > l.MaxMessageSize {
		return fmt.Errorf("%w: %d > %d", ErrMessageTooLarge, msgLen, l.MaxMessageSize)
	}
	if valueLen > l.MaxValueSize {
		return fmt.Errorf("%w: %d > %d", ErrValueTooLarge, valueLen, l.MaxValueSize)
	}
	return nil
}

// FrameWriter writes frames to an underlying writer.
type FrameWriter struct {
	w      io.Writer
	limits Limits
	mu     sync.Mutex

	// Logging support (optional)
	logger    log.Logger
	sessionID string
}

// NewFrameWriter creates a new frame writer with default limits.
func NewFrameWriter(w io.Writer) *FrameWriter {
	return NewFrameWriterWithLimits(w, DefaultLimits())
}

// NewFrameWriterWithLimits creates a frame writer with custom limits.
func NewFrameWriterWithLimits(w io.Writer, limits Limits) *FrameWriter {
	return &FrameWriter{w: w, limits: limits.withDefaults()}
}

// SetLogger configures logging for this writer.
// Pass nil to disable logging.
func (fw *FrameWriter) SetLogger(logger log.Logger, sessionID string) {
	fw.logger = logger
	fw.sessionID = sessionID
}

// WriteFrame writes one frame carrying msg and an optional value.
// Thread-safe: can be called from multiple goroutines.
func (fw *FrameWriter) WriteFrame(msg, value []byte) error {
	if err := fw.limits.check(uint32(len(msg)), uint32(len(value))); err != nil {
		return err
	}

	fw.mu.Lock()
	defer fw.mu.Unlock()

	var header [HeaderSize]byte
	header[0] = FrameMagic
	binary.BigEndian.PutUint32(header[1:5], uint32(len(msg)))
	binary.BigEndian.PutUint32(header[5:9], uint32(len(value)))

	if _, err := fw.w.Write(header[:]); err != nil {
		return fmt.Errorf("failed to write frame header: %w", err)
	}
	if _, err := fw.w.Write(msg); err != nil {
		return fmt.Errorf("failed to write message: %w", err)
	}
	if len(value) > 0 {
		if _, err := fw.w.Write(value); err != nil {
			return fmt.Errorf("failed to write value: %w", err)
		}
	}

	if fw.logger != nil {
		fw.logger.Log(makeFrameEvent(fw.sessionID, msg, len(value), log.DirectionOut))
	}

	return nil
}

// makeFrameEvent creates a log event for a frame. The value is not logged.
func makeFrameEvent(sessionID string, msg []byte, valueSize int, direction log.Direction) log.Event {
	frameData := msg
	truncated := false

	if len(msg) > MaxLogFrameDataSize {
		frameData = msg[:MaxLogFrameDataSize]
		truncated = true
	}

	return log.Event{
		Timestamp: time.Now(),
		SessionID: sessionID,
		Direction: direction,
		Layer:     log.LayerTransport,
		Category:  log.CategoryMessage,
		Frame: &log.FrameEvent{
			Size:      FrameSize(len(msg), valueSize),
			Data:      frameData,
			ValueSize: valueSize,
			Truncated: truncated,
		},
	}
}

// FrameReader reads frames from an underlying reader.
type FrameReader struct {
	r      io.Reader
	limits Limits
	header [HeaderSize]byte

	// Logging support (optional)
	logger    log.Logger
	sessionID string
}

// NewFrameReader creates a new frame reader with default limits.
func NewFrameReader(r io.Reader) *FrameReader {
	return NewFrameReaderWithLimits(r, DefaultLimits())
}

// NewFrameReaderWithLimits creates a frame reader with custom limits.
func NewFrameReaderWithLimits(r io.Reader, limits Limits) *FrameReader {
	return &FrameReader{r: r, limits: limits.withDefaults()}
}

// SetLogger configures logging for this reader.
// Pass nil to disable logging.
func (fr *FrameReader) SetLogger(logger log.Logger, sessionID string) {
	fr.logger = logger
	fr.sessionID = sessionID
}

// ReadFrame reads one frame and returns its message and value.
// The value is nil when the frame carries none.
func (fr *FrameReader) ReadFrame() (msg, value []byte, err error) {
	if _, err := io.ReadFull(fr.r, fr.header[:]); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, nil, io.EOF
		}
		if errors.Is(err, io.ErrUnexpectedEOF) {
			return nil, nil, ErrFrameTruncated
		}
		return nil, nil, fmt.Errorf("failed to read frame header: %w", err)
	}

	if fr.header[0] != FrameMagic {
		return nil, nil, fmt.Errorf("%w: 0x%02x", ErrBadMagic, fr.header[0])
	}
	msgLen := binary.BigEndian.Uint32(fr.header[1:5])
	valueLen := binary.BigEndian.Uint32(fr.header[5:9])
	if err := fr.limits.check(msgLen, valueLen); err != nil {
		return nil, nil, err
	}

	msg = make([]byte, msgLen)
	if err := readBody(fr.r, msg); err != nil {
		return nil, nil, err
	}
	if valueLen > 0 {
		value = make([]byte, valueLen)
		if err := readBody(fr.r, value); err != nil {
			return nil, nil, err
		}
	}

	if fr.logger != nil {
		fr.logger.Log(makeFrameEvent(fr.sessionID, msg, len(value), log.DirectionIn))
	}

	return msg, value, nil
}

func readBody(r io.Reader, buf []byte) error {
	if _, err := io.ReadFull(r, buf); err != nil {
		if errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, io.EOF) {
			return ErrFrameTruncated
		}
		return fmt.Errorf("failed to read frame body: %w", err)
	}
	return nil
}

// Framer combines frame reading and writing.
type Framer struct {
	*FrameReader
	*FrameWriter
}

// NewFramer creates a new framer for bidirectional communication.
func NewFramer(rw io.ReadWriter) *Framer {
	return NewFramerWithLimits(rw, DefaultLimits())
}

// NewFramerWithLimits creates a framer with custom limits.
func NewFramerWithLimits(rw io.ReadWriter, limits Limits) *Framer {
	return &Framer{
		FrameReader: NewFrameReaderWithLimits(rw, limits),
		FrameWriter: NewFrameWriterWithLimits(rw, limits),
	}
}

// SetLogger configures logging for both reader and writer.
func (f *Framer) SetLogger(logger log.Logger, sessionID string) {
	f.FrameReader.SetLogger(logger, sessionID)
	f.FrameWriter.SetLogger(logger, sessionID)
}

// FrameSize returns the total frame size including the header.
func FrameSize(msgSize, valueSize int) int {
	return HeaderSize + msgSize + valueSize
}
