package dispatch

import (
	"context"
	"sync/atomic"

	"github.com/dayuer/chatgate/internal/bridge"
)

// task is the handle for one dequeued message. Cancellation is cooperative:
// a task that has not yet claimed a pool slot is stopped outright, a running
// one only stops if its handler honors the context.
type task struct {
	sessionID string
	message   *bridge.Context

	ctx      context.Context
	cancelFn context.CancelFunc

	started atomic.Bool
	done    atomic.Bool
}

func newTask(parent context.Context, sessionID string, c *bridge.Context) *task {
	ctx, cancel := context.WithCancel(parent)
	return &task{
		sessionID: sessionID,
		message:   c,
		ctx:       ctx,
		cancelFn:  cancel,
	}
}

func (t *task) cancel()      { t.cancelFn() }
func (t *task) markStarted() { t.started.Store(true) }
func (t *task) markDone()    { t.done.Store(true) }

func (t *task) finished() bool { return t.done.Load() }

// cancelled reports whether the task was cancelled before completing its
// handler run.
func (t *task) cancelled() bool {
	return t.ctx.Err() != nil && !t.started.Load()
}
