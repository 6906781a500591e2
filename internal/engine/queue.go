package engine

import (
	"sync"

	"market_voice/internal/domain"
)

// SpeechQueue is the single serialization point for outgoing speech.
// It is an unbounded FIFO: any number of producers enqueue, exactly one
// worker dequeues. Depth is only bounded by the speech cooldown draining
// slower than producers fill, so Len is exported as a gauge.
type SpeechQueue struct {
	mu     sync.Mutex
	cond   *sync.Cond
	items  []domain.QueuedMessage
	closed bool
}

// NewSpeechQueue creates an empty queue.
func NewSpeechQueue() *SpeechQueue {
	q := &SpeechQueue{}
	q.cond = sync.NewCond(&q.mu)
	return q
}

// Enqueue appends a message and wakes the worker. Messages enqueued
// after Close are dropped.
func (q *SpeechQueue) Enqueue(msg domain.QueuedMessage) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return
	}
	q.items = append(q.items, msg)
	q.cond.Signal()
}

// Dequeue blocks until a message is available or the queue is closed.
// The second return is false only when the queue is closed and drained.
func (q *SpeechQueue) Dequeue() (domain.QueuedMessage, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	for len(q.items) == 0 && !q.closed {
		q.cond.Wait()
	}
	if len(q.items) == 0 {
		return domain.QueuedMessage{}, false
	}
	msg := q.items[0]
	q.items = q.items[1:]
	return msg, true
}

// Len reports the current queue depth.
func (q *SpeechQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// Close stops accepting messages and unblocks the worker once the
// remaining messages are drained.
func (q *SpeechQueue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.closed = true
	q.cond.Broadcast()
}
