package gojob

import (
	"context"
	"fmt"
	"sync"
	"time"

	job "github.com/goliatone/go-job"
	"github.com/goliatone/go-job/queue"
)

// LocalQueue is an in-process queue.Enqueuer and queue.Dequeuer. Messages
// sharing an idempotency key are dropped while one is pending.
type LocalQueue struct {
	ch chan *job.ExecutionMessage

	mu         sync.Mutex
	pending    map[string]struct{}
	deadLetter []*job.ExecutionMessage
	closed     bool
}

func NewLocalQueue(capacity int) *LocalQueue {
	if capacity <= 0 {
		capacity = defaultQueueCapacity
	}
	return &LocalQueue{
		ch:      make(chan *job.ExecutionMessage, capacity),
		pending: map[string]struct{}{},
	}
}

func (q *LocalQueue) Enqueue(ctx context.Context, msg *job.ExecutionMessage) error {
	if msg == nil {
		return fmt.Errorf("gojob: execution message is required")
	}
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return fmt.Errorf("gojob: queue is closed")
	}
	if key := msg.IdempotencyKey; key != "" {
		if _, dup := q.pending[key]; dup {
			q.mu.Unlock()
			return nil
		}
		q.pending[key] = struct{}{}
	}
	q.mu.Unlock()

	select {
	case q.ch <- msg:
		return nil
	case <-ctx.Done():
		q.release(msg)
		return ctx.Err()
	}
}

func (q *LocalQueue) Dequeue(ctx context.Context) (queue.Delivery, error) {
	select {
	case msg := <-q.ch:
		return &localDelivery{queue: q, msg: msg}, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// DeadLetters returns messages nacked without requeue.
func (q *LocalQueue) DeadLetters() []*job.ExecutionMessage {
	q.mu.Lock()
	defer q.mu.Unlock()
	return append([]*job.ExecutionMessage(nil), q.deadLetter...)
}

func (q *LocalQueue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.closed = true
}

func (q *LocalQueue) release(msg *job.ExecutionMessage) {
	q.mu.Lock()
	defer q.mu.Unlock()
	delete(q.pending, msg.IdempotencyKey)
}

func (q *LocalQueue) requeue(msg *job.ExecutionMessage, delay time.Duration) {
	push := func() {
		q.mu.Lock()
		closed := q.closed
		q.mu.Unlock()
		if closed {
			q.release(msg)
			return
		}
		select {
		case q.ch <- msg:
		default:
			q.release(msg)
		}
	}
	if delay <= 0 {
		push()
		return
	}
	time.AfterFunc(delay, push)
}

func (q *LocalQueue) bury(msg *job.ExecutionMessage) {
	q.mu.Lock()
	defer q.mu.Unlock()
	delete(q.pending, msg.IdempotencyKey)
	q.deadLetter = append(q.deadLetter, msg)
}

type localDelivery struct {
	queue *LocalQueue
	msg   *job.ExecutionMessage
	done  bool
}

func (d *localDelivery) Message() *job.ExecutionMessage {
	return d.msg
}

func (d *localDelivery) Ack(context.Context) error {
	if d.done {
		return fmt.Errorf("gojob: delivery already settled")
	}
	d.done = true
	d.queue.release(d.msg)
	return nil
}

func (d *localDelivery) Nack(_ context.Context, opts queue.NackOptions) error {
	if d.done {
		return fmt.Errorf("gojob: delivery already settled")
	}
	d.done = true
	switch {
	case opts.Requeue:
		d.queue.requeue(d.msg, opts.Delay)
	case opts.DeadLetter:
		d.queue.bury(d.msg)
	default:
		d.queue.release(d.msg)
	}
	return nil
}

var (
	_ queue.Enqueuer = (*LocalQueue)(nil)
	_ queue.Dequeuer = (*LocalQueue)(nil)
	_ queue.Delivery = (*localDelivery)(nil)
)
