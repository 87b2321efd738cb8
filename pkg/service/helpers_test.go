package service

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/kinetic-sim/kinetic-go/pkg/batch"
	"github.com/kinetic-sim/kinetic-go/pkg/connection"
	"github.com/kinetic-sim/kinetic-go/pkg/store"
	"github.com/kinetic-sim/kinetic-go/pkg/wire"
)

// fakeConn records responses sent to it. Sends of a message type listed in
// holdTypes block until release is called.
type fakeConn struct {
	id     string
	secure bool

	responses chan *wire.Response
	closed    atomic.Bool

	mu        sync.Mutex
	holdTypes map[wire.MessageType]bool
	held      chan struct{}
	gate      chan struct{}
}

func newFakeConn(secure bool) *fakeConn {
	return &fakeConn{
		id:        uuid.NewString(),
		secure:    secure,
		responses: make(chan *wire.Response, 256),
		holdTypes: make(map[wire.MessageType]bool),
		held:      make(chan struct{}, 16),
		gate:      make(chan struct{}),
	}
}

func (c *fakeConn) SessionID() string { return c.id }
func (c *fakeConn) Secure() bool      { return c.secure }

func (c *fakeConn) Send(msg, value []byte) error {
	resp, err := wire.DecodeResponse(msg)
	if err != nil {
		return err
	}
	resp.Value = value

	c.mu.Lock()
	hold := c.holdTypes[resp.Header.MessageType]
	c.mu.Unlock()
	if hold {
		c.held <- struct{}{}
		<-c.gate
	}

	c.responses <- resp
	return nil
}

func (c *fakeConn) Close() error {
	c.closed.Store(true)
	return nil
}

// hold makes sends of response type mt block until release.
func (c *fakeConn) hold(mt wire.MessageType) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.holdTypes[mt] = true
}

func (c *fakeConn) release() {
	close(c.gate)
}

// waitHeld blocks until a send is held.
func (c *fakeConn) waitHeld(t *testing.T) {
	t.Helper()
	select {
	case <-c.held:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for held send")
	}
}

func (c *fakeConn) next(t *testing.T) *wire.Response {
	t.Helper()
	select {
	case resp := <-c.responses:
		return resp
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for response")
		return nil
	}
}

func (c *fakeConn) expectNone(t *testing.T, wait time.Duration) {
	t.Helper()
	select {
	case resp := <-c.responses:
		t.Fatalf("unexpected response %s (ack %d)", resp.Header.MessageType, resp.Header.AckSequence)
	case <-time.After(wait):
	}
}

func newTestEngine(t *testing.T) *Engine {
	t.Helper()
	st := store.NewMemoryStore()
	e, err := NewEngine(EngineConfig{Home: t.TempDir(), Store: st})
	require.NoError(t, err)
	t.Cleanup(func() { _ = e.Close(context.Background()) })
	return e
}

type testRig struct {
	engine     *Engine
	registry   *connection.Registry
	batches    *batch.Manager
	runner     *Runner
	pool       *Pool
	dispatcher *Dispatcher
}

func newTestRig(t *testing.T, cfg DispatcherConfig) *testRig {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())

	r := &testRig{
		engine:   newTestEngine(t),
		registry: connection.NewRegistry(),
		batches:  batch.NewManager(nil),
	}
	r.runner = NewRunner(r.engine, nil, nil, nil)
	r.pool = NewPool(ctx, 8)
	r.dispatcher = NewDispatcher(ctx, r.registry, r.batches, r.runner, r.pool, cfg)

	t.Cleanup(func() {
		r.dispatcher.Shutdown()
		r.pool.Wait()
		cancel()
	})
	return r
}

func (r *testRig) connect(t *testing.T, secure bool) (*fakeConn, *connection.Record) {
	t.Helper()
	c := newFakeConn(secure)
	rec, err := r.registry.Register(c, secure)
	require.NoError(t, err)
	return c, rec
}

func request(mt wire.MessageType, seq int64) *wire.Request {
	return &wire.Request{
		Auth:   wire.Auth{Type: wire.AuthHMAC, Identity: 1},
		Header: wire.Header{MessageType: mt, Sequence: seq},
	}
}

func putRequest(seq int64, key, value string) *wire.Request {
	req := request(wire.MessageTypePut, seq)
	req.Body.KeyValue = &wire.KeyValue{Key: []byte(key), NewVersion: []byte("v1"), Force: true}
	req.Value = []byte(value)
	return req
}

func getRequest(seq int64, key string) *wire.Request {
	req := request(wire.MessageTypeGet, seq)
	req.Body.KeyValue = &wire.KeyValue{Key: []byte(key)}
	return req
}
