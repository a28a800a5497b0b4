package core

import (
	"sync"

	"github.com/rs/zerolog/log"
)

// SerialQueue is the single logical event-processing context per call
// manager. Radio notifications, timers and framework calls from
// independent sources are posted here so each runs to completion
// before the next; the interleaving between sources stays
// non-deterministic but mutation is never parallel.
type SerialQueue struct {
	tasks chan func()
	wg    sync.WaitGroup

	mu     sync.Mutex
	closed bool
}

func NewSerialQueue() *SerialQueue {
	q := &SerialQueue{tasks: make(chan func(), 256)}
	q.wg.Add(1)
	go q.run()
	return q
}

func (q *SerialQueue) run() {
	defer q.wg.Done()
	for task := range q.tasks {
		q.exec(task)
	}
}

// exec isolates panics: a bad callback must not stall the whole
// event context, that would stop all call handling.
func (q *SerialQueue) exec(task func()) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().Str("module", "core.queue").Interface("panic", r).Msg("task panicked")
		}
	}()
	task()
}

// Post enqueues a task. Tasks posted after Stop are dropped with a log
// line; late timer callbacks land here during shutdown.
func (q *SerialQueue) Post(task func()) {
	q.post(task)
}

func (q *SerialQueue) post(task func()) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		log.Warn().Str("module", "core.queue").Msg("task posted after stop, dropped")
		return false
	}
	q.tasks <- task
	return true
}

// Sync posts a task and waits for it to finish. Used by the inspection
// API to read consistent state.
func (q *SerialQueue) Sync(task func()) {
	done := make(chan struct{})
	if !q.post(func() {
		defer close(done)
		task()
	}) {
		return
	}
	<-done
}

// Stop drains pending tasks and shuts the worker down.
func (q *SerialQueue) Stop() {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	q.closed = true
	close(q.tasks)
	q.mu.Unlock()
	q.wg.Wait()
}
