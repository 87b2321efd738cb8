// Package batch implements the batch preprocessor that every request passes
// before ordering dispatch.
//
// A batch is opened by START_BATCH on a connection. PUT and DELETE commands
// carrying its batch id are held back without a response. END_BATCH hands
// the held commands to the caller for atomic execution; ABORT_BATCH drops
// them. Batches are scoped to their connection and vanish when it closes.
package batch

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/kinetic-sim/kinetic-go/pkg/wire"
)

// Result is the outcome of preprocessing one request.
type Result struct {
	// Continue is true if the request must be dispatched as usual.
	Continue bool

	// Response is set when the preprocessor answered the request itself.
	// Absorbed batch commands have neither Continue nor a Response.
	Response *wire.Response

	// Ops holds the commands of a batch closed by END_BATCH.
	Ops []*wire.Request
}

type batchKey struct {
	connID  int64
	batchID uint32
}

type openBatch struct {
	ops     []*wire.Request
	started time.Time
}

// Manager tracks open batches of all connections.
type Manager struct {
	mu     sync.Mutex
	open   map[batchKey]*openBatch
	logger *slog.Logger
}

// NewManager creates a batch manager. A nil logger disables logging.
func NewManager(logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Manager{
		open:   make(map[batchKey]*openBatch),
		logger: logger,
	}
}

// Handles reports whether Process acts on req instead of passing it
// straight through.
func Handles(req *wire.Request) bool {
	switch req.Header.MessageType {
	case wire.MessageTypeStartBatch, wire.MessageTypeEndBatch, wire.MessageTypeAbortBatch:
		return true
	case wire.MessageTypePut, wire.MessageTypeDelete:
		return req.Header.BatchID != 0
	}
	return false
}

// Process preprocesses req received on connection connID.
func (m *Manager) Process(connID int64, req *wire.Request) Result {
	k := batchKey{connID: connID, batchID: req.Header.BatchID}

	switch req.Header.MessageType {
	case wire.MessageTypeStartBatch:
		return m.start(k, req)
	case wire.MessageTypeEndBatch:
		return m.end(k, req)
	case wire.MessageTypeAbortBatch:
		return m.abort(k, req)
	case wire.MessageTypePut, wire.MessageTypeDelete:
		if req.Header.BatchID == 0 {
			return Result{Continue: true}
		}
		return m.absorb(k, req)
	default:
		return Result{Continue: true}
	}
}

func (m *Manager) start(k batchKey, req *wire.Request) Result {
	m.mu.Lock()
	defer m.mu.Unlock()

	if k.batchID == 0 {
		return reject(req, "batch id required")
	}
	if _, ok := m.open[k]; ok {
		return reject(req, fmt.Sprintf("batch %d already started", k.batchID))
	}
	m.open[k] = &openBatch{started: time.Now()}
	m.logger.Debug("batch started", "connID", k.connID, "batchID", k.batchID)
	return Result{Response: wire.NewResponse(req)}
}

func (m *Manager) absorb(k batchKey, req *wire.Request) Result {
	m.mu.Lock()
	defer m.mu.Unlock()

	b, ok := m.open[k]
	if !ok {
		return reject(req, fmt.Sprintf("batch %d not started", k.batchID))
	}
	b.ops = append(b.ops, req)
	return Result{}
}

func (m *Manager) end(k batchKey, req *wire.Request) Result {
	m.mu.Lock()
	b, ok := m.open[k]
	delete(m.open, k)
	m.mu.Unlock()

	if !ok {
		return reject(req, fmt.Sprintf("batch %d not started", k.batchID))
	}
	if req.Body.Batch != nil && int(req.Body.Batch.Count) != len(b.ops) {
		m.logger.Warn("batch count mismatch",
			"connID", k.connID,
			"batchID", k.batchID,
			"expected", req.Body.Batch.Count,
			"received", len(b.ops))
		return reject(req, fmt.Sprintf("batch %d: expected %d operations, received %d",
			k.batchID, req.Body.Batch.Count, len(b.ops)))
	}

	m.logger.Debug("batch ended",
		"connID", k.connID,
		"batchID", k.batchID,
		"ops", len(b.ops),
		"duration", time.Since(b.started))
	return Result{Continue: true, Ops: b.ops}
}

func (m *Manager) abort(k batchKey, req *wire.Request) Result {
	m.mu.Lock()
	_, ok := m.open[k]
	delete(m.open, k)
	m.mu.Unlock()

	if !ok {
		return reject(req, fmt.Sprintf("batch %d not started", k.batchID))
	}
	m.logger.Debug("batch aborted", "connID", k.connID, "batchID", k.batchID)
	return Result{Response: wire.NewResponse(req)}
}

// Drop discards all open batches of connection connID and returns how many
// there were.
func (m *Manager) Drop(connID int64) int {
	m.mu.Lock()
	defer m.mu.Unlock()

	n := 0
	for k := range m.open {
		if k.connID == connID {
			delete(m.open, k)
			n++
		}
	}
	return n
}

// Open returns the number of open batches.
func (m *Manager) Open() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.open)
}

func reject(req *wire.Request, msg string) Result {
	resp := wire.NewResponse(req)
	resp.Status.Set(wire.StatusInvalidBatch, msg)
	return Result{Response: resp}
}
