package log

import (
	"os"
	"path/filepath"
	"sync"

	"github.com/fxamacker/cbor/v2"
)

// FileExtension is the conventional extension for capture files.
const FileExtension = ".klog"

// FileLogger appends protocol events to a CBOR capture file.
// It is safe for concurrent use from multiple goroutines.
type FileLogger struct {
	path string

	mu      sync.Mutex
	file    *os.File
	encoder *cbor.Encoder
	written uint64
	dropped uint64
}

// NewFileLogger opens path for appending, creating the file and any missing
// parent directories.
func NewFileLogger(path string) (*FileLogger, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return nil, err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, err
	}
	return &FileLogger{
		path:    path,
		file:    f,
		encoder: newEventEncoder(f),
	}, nil
}

// Log appends event. Events that cannot be written, including any logged
// after Close, are counted as dropped.
func (l *FileLogger) Log(event Event) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.file == nil {
		l.dropped++
		return
	}
	if err := l.encoder.Encode(event); err != nil {
		l.dropped++
		return
	}
	l.written++
}

// Path returns the capture file path.
func (l *FileLogger) Path() string { return l.path }

// Counts returns the number of events written and dropped so far.
func (l *FileLogger) Counts() (written, dropped uint64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.written, l.dropped
}

// Close closes the capture file. Closing twice is a no-op.
func (l *FileLogger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.file == nil {
		return nil
	}
	err := l.file.Close()
	l.file = nil
	return err
}

var _ Logger = (*FileLogger)(nil)
