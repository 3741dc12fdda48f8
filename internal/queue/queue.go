// Package queue provides the outbound message handoff between the console
// input loop and the transport pump.
package queue

import (
	"errors"
	"sync"

	"github.com/eapache/queue"
)

var (
	// ErrClosed is returned by Send after the receiving side has gone away.
	ErrClosed = errors.New("queue: receiver closed")

	// ErrSendOnClosed is returned by Send after the producer closed the queue.
	ErrSendOnClosed = errors.New("queue: send on closed queue")
)

// Status is the outcome of TryReceive.
type Status int

const (
	// Received means a message was returned.
	Received Status = iota
	// Empty means nothing is queued but more messages may still arrive.
	Empty
	// Closed means the producer is gone and every message was delivered.
	Closed
)

// String returns the string representation of Status
func (s Status) String() string {
	switch s {
	case Received:
		return "RECEIVED"
	case Empty:
		return "EMPTY"
	case Closed:
		return "CLOSED"
	default:
		return "UNKNOWN"
	}
}

// Queue is an unbounded FIFO with one producer and one consumer.
// Neither Send nor TryReceive ever blocks.
type Queue struct {
	mu         sync.Mutex
	items      *queue.Queue
	sendClosed bool
	recvClosed bool
	ready      chan struct{}
}

// New creates an empty Queue.
func New() *Queue {
	return &Queue{
		items: queue.New(),
		ready: make(chan struct{}, 1),
	}
}

// Send appends msg to the queue.
func (q *Queue) Send(msg string) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.recvClosed {
		return ErrClosed
	}
	if q.sendClosed {
		return ErrSendOnClosed
	}
	q.items.Add(msg)
	q.notify()
	return nil
}

// TryReceive pops the oldest message without waiting for one.
func (q *Queue) TryReceive() (string, Status) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.items.Length() > 0 {
		return q.items.Remove().(string), Received
	}
	if q.sendClosed {
		return "", Closed
	}
	return "", Empty
}

// Close marks the producer side as finished. Messages already queued are
// still delivered. Close is idempotent.
func (q *Queue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.sendClosed = true
	q.notify()
}

// CloseReceive marks the consumer side as gone. Pending messages are dropped
// and every later Send fails with ErrClosed.
func (q *Queue) CloseReceive() {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.recvClosed = true
	for q.items.Length() > 0 {
		q.items.Remove()
	}
}

// Len returns the number of queued messages.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.items.Length()
}

// Ready is signalled after every Send and Close. Signals coalesce, so a
// receiver woken by Ready should drain with TryReceive.
func (q *Queue) Ready() <-chan struct{} {
	return q.ready
}

// notify must be called with mu held.
func (q *Queue) notify() {
	select {
	case q.ready <- struct{}{}:
	default:
	}
}
