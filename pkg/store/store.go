// Package store provides the key-value media of the simulated device.
//
// Entries carry an opaque db version. Writes and deletes compare the
// caller's expected version with the stored one unless forced:
//
//   - PUT of a new key expects an empty version
//   - PUT of an existing key expects the stored version
//   - DELETE of a missing key fails with ErrNotFound
//
// All implementations are safe for concurrent use.
package store

import (
	"bytes"
	"context"
	"errors"
	"fmt"
)

// Store errors.
var (
	ErrNotFound        = errors.New("key not found")
	ErrVersionMismatch = errors.New("version mismatch")
	ErrClosed          = errors.New("store closed")
)

// Entry is one key-value pair.
type Entry struct {
	Key     []byte
	Value   []byte
	Version []byte
}

// OpType is the kind of a batched operation.
type OpType uint8

const (
	OpPut OpType = iota + 1
	OpDelete
)

// String returns the operation name.
func (t OpType) String() string {
	switch t {
	case OpPut:
		return "PUT"
	case OpDelete:
		return "DELETE"
	default:
		return "UNKNOWN"
	}
}

// Op is one operation of an atomic batch.
type Op struct {
	Type OpType

	// Entry is the entry to write. For deletes only Key is used.
	Entry Entry

	// ExpectedVersion is compared with the stored version unless Force.
	ExpectedVersion []byte
	Force           bool
}

// Store is the key-value media.
type Store interface {
	// Get returns the entry for key or ErrNotFound.
	Get(ctx context.Context, key []byte) (Entry, error)

	// Put writes entry after the version check.
	Put(ctx context.Context, entry Entry, expectedVersion []byte, force bool) error

	// Delete removes key after the version check.
	Delete(ctx context.Context, key, expectedVersion []byte, force bool) error

	// Apply runs ops in order as one atomic unit. If any op fails, none is
	// applied and the error names the failing op.
	Apply(ctx context.Context, ops []Op) error

	// Scan calls fn for every entry in key order. It stops at the first
	// error returned by fn. fn must not call back into the store.
	Scan(ctx context.Context, fn func(Entry) error) error

	// Optimize compacts the media.
	Optimize(ctx context.Context) error

	// Reset removes all entries.
	Reset(ctx context.Context) error

	// Close releases the media.
	Close() error
}

// checkVersion applies the version rules to a write or delete of a key
// whose current entry is cur (nil if absent).
func checkVersion(cur *Entry, expected []byte, force bool, op OpType) error {
	if force {
		return nil
	}
	if cur == nil {
		if op == OpDelete {
			return ErrNotFound
		}
		if len(expected) != 0 {
			return fmt.Errorf("%w: key does not exist", ErrVersionMismatch)
		}
		return nil
	}
	if !bytes.Equal(cur.Version, expected) {
		return fmt.Errorf("%w: stored %x, expected %x", ErrVersionMismatch, cur.Version, expected)
	}
	return nil
}

func cloneEntry(e Entry) Entry {
	return Entry{
		Key:     bytes.Clone(e.Key),
		Value:   bytes.Clone(e.Value),
		Version: bytes.Clone(e.Version),
	}
}
