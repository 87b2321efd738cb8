package connection

import (
	"errors"
	"sync"
	"sync/atomic"
	"time"
)

// Registry errors.
var (
	ErrNotFound          = errors.New("connection not found")
	ErrAlreadyRegistered = errors.New("connection already registered")
)

// Handle identifies the transport owning a connection. It must be
// comparable; the device uses its transport.ServerConn values.
type Handle any

// Record is the per-connection state.
type Record struct {
	// ID is the device-assigned connection id.
	ID int64

	// Secure is true if the transport arrived over the TLS listener.
	// It never changes for the lifetime of the connection.
	Secure bool

	// Handle is the owning transport.
	Handle Handle

	// Opened is when the record was registered.
	Opened time.Time

	ackSequence atomic.Int64
}

// AckSequence returns the last acknowledged request sequence.
func (r *Record) AckSequence() int64 {
	return r.ackSequence.Load()
}

// Ack records seq as acknowledged. Lower values than the current one are
// ignored, since exempt requests may complete out of order.
func (r *Record) Ack(seq int64) {
	for {
		cur := r.ackSequence.Load()
		if seq <= cur || r.ackSequence.CompareAndSwap(cur, seq) {
			return
		}
	}
}

// Registry maps live transports to connection records.
type Registry struct {
	mu      sync.RWMutex
	records map[Handle]*Record
	nextID  atomic.Int64
	now     func() time.Time
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return newRegistry(time.Now)
}

func newRegistry(now func() time.Time) *Registry {
	r := &Registry{
		records: make(map[Handle]*Record),
		now:     now,
	}
	r.nextID.Store(now().Unix())
	return r
}

// Register allocates a new connection id for h and stores its record.
// Registering a handle twice returns the existing record and
// ErrAlreadyRegistered.
func (r *Registry) Register(h Handle, secure bool) (*Record, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if existing, ok := r.records[h]; ok {
		return existing, ErrAlreadyRegistered
	}

	rec := &Record{
		ID:     r.nextID.Add(1),
		Secure: secure,
		Handle: h,
		Opened: r.now(),
	}
	r.records[h] = rec
	return rec, nil
}

// Lookup returns the record for h.
func (r *Registry) Lookup(h Handle) (*Record, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	rec, ok := r.records[h]
	if !ok {
		return nil, ErrNotFound
	}
	return rec, nil
}

// Remove deletes and returns the record for h.
func (r *Registry) Remove(h Handle) (*Record, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	rec, ok := r.records[h]
	if !ok {
		return nil, ErrNotFound
	}
	delete(r.records, h)
	return rec, nil
}

// Len returns the number of live connections.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.records)
}

// Records returns a snapshot of all live records, in no particular order.
func (r *Registry) Records() []*Record {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*Record, 0, len(r.records))
	for _, rec := range r.records {
		out = append(out, rec)
	}
	return out
}
