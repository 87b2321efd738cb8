package service

import "sync"

// orderedQueue is a FIFO of commands drained by exactly one goroutine.
type orderedQueue struct {
	mu       sync.Mutex
	cond     *sync.Cond
	items    []*Command
	closed   bool
	maxDepth int
}

func newOrderedQueue(maxDepth int) *orderedQueue {
	q := &orderedQueue{maxDepth: maxDepth}
	q.cond = sync.NewCond(&q.mu)
	return q
}

// push appends cmd. It never blocks.
func (q *orderedQueue) push(cmd *Command) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return ErrQueueClosed
	}
	if q.maxDepth > 0 && len(q.items) >= q.maxDepth {
		return ErrQueueFull
	}
	q.items = append(q.items, cmd)
	q.cond.Signal()
	return nil
}

// pop blocks until a command is available. It returns false once the queue
// is closed; commands still queued at that point are never returned.
func (q *orderedQueue) pop() (*Command, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	for len(q.items) == 0 && !q.closed {
		q.cond.Wait()
	}
	if q.closed {
		return nil, false
	}
	cmd := q.items[0]
	q.items[0] = nil
	q.items = q.items[1:]
	return cmd, true
}

// close stops the queue and returns the number of discarded commands.
func (q *orderedQueue) close() int {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return 0
	}
	q.closed = true
	n := len(q.items)
	q.items = nil
	q.cond.Broadcast()
	return n
}

func (q *orderedQueue) len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}
