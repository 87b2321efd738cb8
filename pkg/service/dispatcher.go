package service

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/kinetic-sim/kinetic-go/pkg/batch"
	"github.com/kinetic-sim/kinetic-go/pkg/connection"
	"github.com/kinetic-sim/kinetic-go/pkg/metrics"
	"github.com/kinetic-sim/kinetic-go/pkg/wire"
)

// Conn is the transport side of a connection as the dispatcher and runner
// see it. *transport.ServerConn implements it.
type Conn interface {
	SessionID() string
	Secure() bool
	Send(msg, value []byte) error
	Close() error
}

// Command is an admitted request with its connection context. It is not
// modified after admission.
type Command struct {
	Request  *wire.Request
	Conn     Conn
	Record   *connection.Record // nil if the connection was not registered
	ConnID   int64
	Secure   bool
	Admitted time.Time

	// Ops holds the batched commands when Request is an END_BATCH.
	Ops []*wire.Request
}

// orderExempt lists message types that bypass the ordered queue.
var orderExempt = map[wire.MessageType]bool{
	wire.MessageTypeMediaScan:     true,
	wire.MessageTypeMediaOptimize: true,
}

// IsOrderExempt reports whether t runs on the pool even when ordering is
// enforced.
func IsOrderExempt(t wire.MessageType) bool {
	return orderExempt[t]
}

// DispatcherConfig configures a Dispatcher.
type DispatcherConfig struct {
	EnforceOrdering   bool
	FaultInject       bool
	OrderedQueueDepth int
	Logger            *slog.Logger
	Metrics           *metrics.Metrics
}

// Dispatcher admits requests and routes them to a connection's ordered
// queue or to the shared pool.
type Dispatcher struct {
	enforceOrdering bool
	queueDepth      int
	faultInject     atomic.Bool

	registry *connection.Registry
	batches  *batch.Manager
	runner   *Runner
	pool     *Pool

	mu     sync.Mutex
	queues map[Conn]*orderedQueue
	wg     sync.WaitGroup
	ctx    context.Context

	logger  *slog.Logger
	metrics *metrics.Metrics
}

// NewDispatcher creates a dispatcher. Ordered drain goroutines stop when ctx
// is done or their connection closes.
func NewDispatcher(ctx context.Context, registry *connection.Registry, batches *batch.Manager,
	runner *Runner, pool *Pool, cfg DispatcherConfig) *Dispatcher {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	d := &Dispatcher{
		enforceOrdering: cfg.EnforceOrdering,
		queueDepth:      cfg.OrderedQueueDepth,
		registry:        registry,
		batches:         batches,
		runner:          runner,
		pool:            pool,
		queues:          make(map[Conn]*orderedQueue),
		ctx:             ctx,
		logger:          logger,
		metrics:         cfg.Metrics,
	}
	d.faultInject.Store(cfg.FaultInject)
	return d
}

// SetFaultInjection switches fault injection at runtime.
func (d *Dispatcher) SetFaultInjection(on bool) {
	d.faultInject.Store(on)
}

// EnforcesOrdering reports whether ordering is enforced.
func (d *Dispatcher) EnforcesOrdering() bool {
	return d.enforceOrdering
}

// Admit hands req, received on conn, to execution. It never blocks on
// execution. ErrFaultInjected tells the caller to close conn.
func (d *Dispatcher) Admit(conn Conn, req *wire.Request) error {
	if d.faultInject.Load() {
		return ErrFaultInjected
	}

	cmd := &Command{
		Request:  req,
		Conn:     conn,
		Secure:   conn.Secure(),
		Admitted: time.Now(),
	}
	if rec, err := d.registry.Lookup(conn); err == nil {
		cmd.Record = rec
		cmd.ConnID = rec.ID
		cmd.Secure = rec.Secure
	} else {
		d.logger.Warn("connection id not yet set",
			"session", conn.SessionID(),
			"messageType", req.Header.MessageType.String(),
			"sequence", req.Header.Sequence)
	}

	// Batch messages are answered or absorbed here, before the runner's
	// lock check could see them.
	if batch.Handles(req) && d.runner.engine.Locked() {
		d.metrics.RecordAdmitted(metrics.RouteBatch)
		resp := wire.NewResponse(req)
		resp.Status.Set(wire.StatusDeviceLocked, MsgDeviceLocked)
		d.runner.Respond(cmd, resp)
		return nil
	}

	res := d.batches.Process(cmd.ConnID, req)
	if !res.Continue {
		d.metrics.RecordAdmitted(metrics.RouteBatch)
		if res.Response != nil {
			d.runner.Respond(cmd, res.Response)
		}
		return nil
	}
	cmd.Ops = res.Ops

	if !d.enforceOrdering || IsOrderExempt(req.Header.MessageType) {
		d.metrics.RecordAdmitted(metrics.RoutePool)
		d.pool.Submit(func(ctx context.Context) {
			d.runner.Run(ctx, cmd)
		})
		return nil
	}

	return d.enqueue(cmd)
}

func (d *Dispatcher) enqueue(cmd *Command) error {
	q := d.queueFor(cmd.Conn)
	err := q.push(cmd)
	switch {
	case err == nil:
		d.metrics.RecordAdmitted(metrics.RouteOrdered)
		d.metrics.AddQueueDepth(1)
		return nil
	case errors.Is(err, ErrQueueFull):
		d.metrics.RecordDropped(metrics.DropQueueFull)
		resp := wire.NewResponse(cmd.Request)
		resp.Status.Set(wire.StatusServiceBusy, "ordered queue full")
		d.runner.Respond(cmd, resp)
		return nil
	default:
		d.metrics.RecordDropped(metrics.DropQueueClosed)
		d.logger.Debug("request dropped",
			"connID", cmd.ConnID,
			"sequence", cmd.Request.Header.Sequence,
			"error", err)
		return err
	}
}

// queueFor returns conn's ordered queue, starting its drain goroutine on
// first use.
func (d *Dispatcher) queueFor(conn Conn) *orderedQueue {
	d.mu.Lock()
	defer d.mu.Unlock()

	if q, ok := d.queues[conn]; ok {
		return q
	}
	q := newOrderedQueue(d.queueDepth)
	d.queues[conn] = q
	d.wg.Add(1)
	go d.drain(q)
	return q
}

func (d *Dispatcher) drain(q *orderedQueue) {
	defer d.wg.Done()
	for {
		cmd, ok := q.pop()
		if !ok {
			return
		}
		d.metrics.AddQueueDepth(-1)
		d.runner.Run(d.ctx, cmd)
	}
}

// Close tears down conn's ordered queue. Requests still queued are
// discarded without a response.
func (d *Dispatcher) Close(conn Conn) int {
	d.mu.Lock()
	q, ok := d.queues[conn]
	delete(d.queues, conn)
	d.mu.Unlock()

	if !ok {
		return 0
	}
	n := q.close()
	if n > 0 {
		d.metrics.AddQueueDepth(-n)
		for i := 0; i < n; i++ {
			d.metrics.RecordDropped(metrics.DropQueueClosed)
		}
		d.logger.Debug("discarded queued requests", "session", conn.SessionID(), "count", n)
	}
	return n
}

// Pending returns the number of requests waiting in conn's ordered queue.
func (d *Dispatcher) Pending(conn Conn) int {
	d.mu.Lock()
	q, ok := d.queues[conn]
	d.mu.Unlock()
	if !ok {
		return 0
	}
	return q.len()
}

// Shutdown closes every ordered queue and waits for the drain goroutines.
func (d *Dispatcher) Shutdown() {
	d.mu.Lock()
	conns := make([]Conn, 0, len(d.queues))
	for c := range d.queues {
		conns = append(conns, c)
	}
	d.mu.Unlock()

	for _, c := range conns {
		d.Close(c)
	}
	d.wg.Wait()
}
