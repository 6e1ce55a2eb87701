package bot

import "sync"

// ConversationQueue runs submitted jobs one at a time per key in submission
// order. Jobs for different keys run concurrently.
type ConversationQueue struct {
	mu     sync.Mutex
	queues map[string][]func()
	wg     sync.WaitGroup
	closed bool
}

// NewConversationQueue creates an empty queue
func NewConversationQueue() *ConversationQueue {
	return &ConversationQueue{queues: make(map[string][]func())}
}

// Submit enqueues fn under key. It returns false once the queue is closed.
func (q *ConversationQueue) Submit(key string, fn func()) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return false
	}

	// A present key means a drain goroutine owns it
	pending, running := q.queues[key]
	q.queues[key] = append(pending, fn)
	if !running {
		q.wg.Add(1)
		go q.drain(key)
	}
	return true
}

func (q *ConversationQueue) drain(key string) {
	defer q.wg.Done()

	for {
		q.mu.Lock()
		pending := q.queues[key]
		if len(pending) == 0 {
			delete(q.queues, key)
			q.mu.Unlock()
			return
		}
		fn := pending[0]
		q.queues[key] = pending[1:]
		q.mu.Unlock()

		fn()
	}
}

// Pending returns the number of jobs waiting under key, excluding the running one
func (q *ConversationQueue) Pending(key string) int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.queues[key])
}

// Close rejects new jobs and waits for queued ones to finish
func (q *ConversationQueue) Close() {
	q.mu.Lock()
	q.closed = true
	q.mu.Unlock()

	q.wg.Wait()
}
