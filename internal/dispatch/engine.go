// Package dispatch implements the per-session message scheduling core of a
// chat channel: an engine that fans inbound messages out to a bounded worker
// pool while guaranteeing that each session runs at most N messages
// concurrently, that messages within a session start in FIFO order, and that
// control commands jump ahead of ordinary queued messages.
package dispatch

import (
	"context"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/dayuer/chatgate/internal/bridge"
	"github.com/dayuer/chatgate/internal/dequeue"
)

// Handler processes one dequeued message on a pool worker. ctx is cancelled
// when the message's session is cancelled; handlers doing long I/O should
// pass it down.
type Handler func(ctx context.Context, c *bridge.Context)

// Config holds engine settings.
type Config struct {
	ConcurrencyPerSession int           // max in-flight messages per session (default 4)
	PoolSize              int           // shared worker pool size (default 8)
	CommandPrefix         string        // reserved prefix for control commands (default "#")
	PollInterval          time.Duration // scheduling loop cycle (default 200ms)
}

func (c *Config) applyDefaults() {
	if c.ConcurrencyPerSession <= 0 {
		c.ConcurrencyPerSession = 4
	}
	if c.PoolSize <= 0 {
		c.PoolSize = 8
	}
	if c.CommandPrefix == "" {
		c.CommandPrefix = "#"
	}
	if c.PollInterval <= 0 {
		c.PollInterval = 200 * time.Millisecond
	}
}

// sessionState is the per-session dispatch bookkeeping: the pending queue,
// the permit semaphore bounding in-flight work, and the task handles kept
// for cancellation. inflight mirrors the number of permits currently held
// by running or queued-in-pool tasks; it is guarded by the engine mutex.
type sessionState struct {
	queue    *dequeue.Dequeue[*bridge.Context]
	sem      *semaphore.Weighted
	tasks    []*task
	inflight int
}

// pruneDone drops finished task handles. Caller holds the engine mutex.
func (s *sessionState) pruneDone() {
	kept := s.tasks[:0]
	for _, t := range s.tasks {
		if !t.finished() {
			kept = append(kept, t)
		}
	}
	s.tasks = kept
}

// bookkeepingFault marks a broken permit/queue accounting invariant. It is
// deliberately not recovered by the scheduling loop: silently continuing
// would risk losing messages.
type bookkeepingFault string

func (f bookkeepingFault) Error() string { return string(f) }

// Engine owns the session table, the scheduling loop and the worker pool.
// Engines are plain instances; tests can run several side by side.
type Engine struct {
	cfg     Config
	handler Handler

	mu       sync.Mutex
	sessions map[string]*sessionState

	poolSem *semaphore.Weighted // bounds concurrently running handlers

	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}
}

// NewEngine creates an engine and starts its scheduling loop.
func NewEngine(cfg Config, handler Handler) *Engine {
	cfg.applyDefaults()
	ctx, cancel := context.WithCancel(context.Background())
	e := &Engine{
		cfg:      cfg,
		handler:  handler,
		sessions: make(map[string]*sessionState),
		poolSem:  semaphore.NewWeighted(int64(cfg.PoolSize)),
		ctx:      ctx,
		cancel:   cancel,
		done:     make(chan struct{}),
	}
	go e.consume()
	return e
}

// Stop shuts down the scheduling loop and signals cancellation to all
// in-flight tasks. Pending queued messages are not processed afterwards.
func (e *Engine) Stop() {
	e.cancel()
	<-e.done
}

// Produce enqueues a message for its session, creating the session entry on
// first use. Text messages carrying the command prefix are inserted at the
// front of the session's queue. Never blocks beyond the lock hold time.
func (e *Engine) Produce(c *bridge.Context) {
	if c == nil || c.SessionID == "" {
		log.Println("[Dispatch] dropping message without session id")
		return
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	st, ok := e.sessions[c.SessionID]
	if !ok {
		st = &sessionState{
			queue: dequeue.New[*bridge.Context](0),
			sem:   semaphore.NewWeighted(int64(e.cfg.ConcurrencyPerSession)),
		}
		e.sessions[c.SessionID] = st
	}

	// Session queues are unbounded, so inserting under the table lock
	// cannot block; it also keeps the insert ordered against deletion.
	if c.Kind == bridge.ContextKindText && strings.HasPrefix(c.Content, e.cfg.CommandPrefix) {
		st.queue.PutFront(c)
	} else {
		st.queue.Put(c)
	}
}

// CancelSession cancels every tracked task for the session (only tasks not
// yet started, or handlers honoring their context, actually stop) and
// discards whatever is still waiting in its queue.
func (e *Engine) CancelSession(sessionID string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if st, ok := e.sessions[sessionID]; ok {
		e.cancelLocked(sessionID, st)
	}
}

// CancelAllSessions applies CancelSession semantics to every known session.
func (e *Engine) CancelAllSessions() {
	e.mu.Lock()
	defer e.mu.Unlock()
	for id, st := range e.sessions {
		e.cancelLocked(id, st)
	}
}

func (e *Engine) cancelLocked(sessionID string, st *sessionState) {
	for _, t := range st.tasks {
		t.cancel()
	}
	if n := st.queue.Size(); n > 0 {
		log.Printf("[Dispatch] cancel %d messages in session %s", n, sessionID)
	}
	st.queue = dequeue.New[*bridge.Context](0)
}

// SessionCount returns the number of sessions currently in the table.
func (e *Engine) SessionCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.sessions)
}

// Stats returns a snapshot of the engine state.
func (e *Engine) Stats() map[string]any {
	e.mu.Lock()
	defer e.mu.Unlock()
	pending, inflight := 0, 0
	for _, st := range e.sessions {
		pending += st.queue.Size()
		inflight += st.inflight
	}
	return map[string]any{
		"sessions": len(e.sessions),
		"pending":  pending,
		"inflight": inflight,
	}
}

// consume is the scheduling loop: one pass over all sessions per poll cycle.
// It runs for the lifetime of the engine and never blocks on any single
// session. A bookkeepingFault escapes on purpose; anything else raised by a
// pass is logged and the loop continues.
func (e *Engine) consume() {
	defer close(e.done)
	ticker := time.NewTicker(e.cfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-e.ctx.Done():
			return
		case <-ticker.C:
			e.sweep()
		}
	}
}

// sweep performs one scheduling pass.
func (e *Engine) sweep() {
	defer func() {
		if r := recover(); r != nil {
			if f, ok := r.(bookkeepingFault); ok {
				panic(f)
			}
			log.Printf("[Dispatch] scheduling pass panic recovered: %v", r)
		}
	}()

	e.mu.Lock()
	ids := make([]string, 0, len(e.sessions))
	for id := range e.sessions {
		ids = append(ids, id)
	}
	e.mu.Unlock()

	for _, id := range ids {
		e.mu.Lock()
		st, ok := e.sessions[id]
		var q *dequeue.Dequeue[*bridge.Context]
		if ok {
			q = st.queue
		}
		e.mu.Unlock()
		if !ok {
			continue
		}

		// Non-blocking permit acquisition: a session at its concurrency
		// cap is simply skipped this pass.
		if !st.sem.TryAcquire(1) {
			continue
		}

		if c, got := q.TryGet(); got {
			t := newTask(e.ctx, id, c)
			e.mu.Lock()
			st.inflight++
			st.tasks = append(st.tasks, t)
			e.mu.Unlock()
			go e.run(st, t)
			continue
		}

		e.mu.Lock()
		if st.inflight == 0 && st.queue.Size() == 0 {
			// Queue drained and the permit we hold is the only one out:
			// the session is idle, remove it. The queue size recheck under
			// the lock guards against a produce racing the earlier TryGet.
			// Any task handle that is still unfinished here means permit
			// accounting is broken.
			st.pruneDone()
			if n := len(st.tasks); n != 0 {
				e.mu.Unlock()
				panic(bookkeepingFault(fmt.Sprintf(
					"session %s drained with %d unfinished tasks", id, n)))
			}
			delete(e.sessions, id)
			e.mu.Unlock()
			continue
		}
		e.mu.Unlock()
		// No work to hand out, but other messages for this session are
		// still in flight: give the permit straight back.
		st.sem.Release(1)
	}
}

// run executes one dequeued message on the shared pool and releases the
// session permit exactly once on any terminal outcome.
func (e *Engine) run(st *sessionState, t *task) {
	defer func() {
		r := recover()
		e.mu.Lock()
		t.markDone()
		st.inflight--
		e.mu.Unlock()
		st.sem.Release(1)
		t.cancelFn()

		switch {
		case r != nil:
			log.Printf("[Dispatch] worker panic, session=%s: %v", t.sessionID, r)
		case t.cancelled():
			log.Printf("[Dispatch] worker cancelled, session=%s", t.sessionID)
		}
	}()

	// Wait for a pool slot. Cancellation before a slot is granted means
	// the task never starts.
	if err := e.poolSem.Acquire(t.ctx, 1); err != nil {
		return
	}
	defer e.poolSem.Release(1)

	if t.ctx.Err() != nil {
		return
	}
	t.markStarted()
	e.handler(t.ctx, t.message)
}
