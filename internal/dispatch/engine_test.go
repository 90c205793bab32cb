package dispatch

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dayuer/chatgate/internal/bridge"
)

func textMsg(session, content string) *bridge.Context {
	c := bridge.NewContext(bridge.ContextKindText, content)
	c.SessionID = session
	return c
}

// recorder collects handler invocations in order.
type recorder struct {
	mu      sync.Mutex
	entries []string
}

func (r *recorder) add(s string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, s)
}

func (r *recorder) snapshot() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.entries...)
}

func (r *recorder) len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}

func TestPerSessionConcurrencyBound(t *testing.T) {
	var current, peak atomic.Int32
	rec := &recorder{}

	e := NewEngine(Config{
		ConcurrencyPerSession: 2,
		PollInterval:          5 * time.Millisecond,
	}, func(_ context.Context, c *bridge.Context) {
		rec.add(c.Content)
		n := current.Add(1)
		for {
			p := peak.Load()
			if n <= p || peak.CompareAndSwap(p, n) {
				break
			}
		}
		time.Sleep(50 * time.Millisecond)
		current.Add(-1)
	})
	defer e.Stop()

	want := []string{"m1", "m2", "m3", "m4", "m5"}
	for _, m := range want {
		e.Produce(textMsg("u1", m))
	}

	require.Eventually(t, func() bool { return rec.len() == 5 }, 3*time.Second, 10*time.Millisecond)
	assert.LessOrEqual(t, peak.Load(), int32(2), "per-session concurrency exceeded")
	assert.Equal(t, want, rec.snapshot(), "messages must start in enqueue order")
}

func TestCommandPreemptsQueuedMessages(t *testing.T) {
	rec := &recorder{}

	e := NewEngine(Config{
		PollInterval: 50 * time.Millisecond,
	}, func(_ context.Context, c *bridge.Context) {
		rec.add(c.Content)
	})
	defer e.Stop()

	// Both land in the queue before the first scheduling pass.
	e.Produce(textMsg("u1", "hello"))
	e.Produce(textMsg("u1", "#清除记忆"))

	require.Eventually(t, func() bool { return rec.len() == 2 }, 3*time.Second, 10*time.Millisecond)
	assert.Equal(t, "#清除记忆", rec.snapshot()[0], "command must jump the queue")
}

func TestSessionIsolation(t *testing.T) {
	gate := make(chan struct{})
	done := make(chan string, 4)

	e := NewEngine(Config{
		ConcurrencyPerSession: 1,
		PollInterval:          5 * time.Millisecond,
	}, func(_ context.Context, c *bridge.Context) {
		if c.SessionID == "slow" {
			<-gate
		}
		done <- c.SessionID
	})
	defer e.Stop()
	defer close(gate)

	e.Produce(textMsg("slow", "blocked"))
	e.Produce(textMsg("fast", "quick"))

	select {
	case id := <-done:
		assert.Equal(t, "fast", id, "saturated session must not block others")
	case <-time.After(2 * time.Second):
		t.Fatal("fast session was delayed by slow session")
	}
}

func TestDrainedSessionRemoved(t *testing.T) {
	e := NewEngine(Config{
		PollInterval: 5 * time.Millisecond,
	}, func(_ context.Context, _ *bridge.Context) {})
	defer e.Stop()

	e.Produce(textMsg("u3", "one"))
	e.Produce(textMsg("u3", "two"))

	require.Eventually(t, func() bool { return e.SessionCount() == 0 },
		3*time.Second, 10*time.Millisecond, "drained session must leave the table")
}

func TestCancelDiscardsPendingOnly(t *testing.T) {
	var ran atomic.Int32
	e := NewEngine(Config{
		PollInterval: 200 * time.Millisecond,
	}, func(_ context.Context, _ *bridge.Context) {
		ran.Add(1)
	})
	defer e.Stop()

	// Cancelled before the scheduler's first pass: must never run.
	e.Produce(textMsg("u2", "doomed"))
	e.CancelSession("u2")

	time.Sleep(500 * time.Millisecond)
	assert.Equal(t, int32(0), ran.Load(), "cancelled pending message must not run")

	require.Eventually(t, func() bool { return e.SessionCount() == 0 },
		3*time.Second, 20*time.Millisecond)
}

func TestCancelKeepsRunningTaskIntact(t *testing.T) {
	gate := make(chan struct{})
	started := make(chan struct{}, 1)
	rec := &recorder{}

	e := NewEngine(Config{
		ConcurrencyPerSession: 1,
		PollInterval:          5 * time.Millisecond,
	}, func(_ context.Context, c *bridge.Context) {
		started <- struct{}{}
		<-gate
		rec.add(c.Content)
	})
	defer e.Stop()

	e.Produce(textMsg("u1", "running"))
	select {
	case <-started:
	case <-time.After(2 * time.Second):
		t.Fatal("first message never started")
	}

	e.Produce(textMsg("u1", "pending1"))
	e.Produce(textMsg("u1", "pending2"))
	e.CancelSession("u1")
	close(gate)

	require.Eventually(t, func() bool { return rec.len() == 1 }, 3*time.Second, 10*time.Millisecond)
	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, []string{"running"}, rec.snapshot(),
		"only the already-dequeued message may complete")
}

func TestCancelAllSessions(t *testing.T) {
	var ran atomic.Int32
	e := NewEngine(Config{
		PollInterval: 200 * time.Millisecond,
	}, func(_ context.Context, _ *bridge.Context) {
		ran.Add(1)
	})
	defer e.Stop()

	e.Produce(textMsg("a", "1"))
	e.Produce(textMsg("b", "2"))
	e.CancelAllSessions()

	time.Sleep(500 * time.Millisecond)
	assert.Equal(t, int32(0), ran.Load())
}

func TestProduceNeverBlocks(t *testing.T) {
	gate := make(chan struct{})
	defer close(gate)

	e := NewEngine(Config{
		PollInterval: 5 * time.Millisecond,
	}, func(_ context.Context, _ *bridge.Context) {
		<-gate
	})
	defer e.Stop()

	start := time.Now()
	for i := 0; i < 200; i++ {
		e.Produce(textMsg("busy", "msg"))
	}
	assert.Less(t, time.Since(start), 200*time.Millisecond,
		"produce must return promptly regardless of queue depth")
}

func TestHandlerPanicIsolated(t *testing.T) {
	rec := &recorder{}
	e := NewEngine(Config{
		PollInterval: 5 * time.Millisecond,
	}, func(_ context.Context, c *bridge.Context) {
		if c.Content == "boom" {
			panic("handler exploded")
		}
		rec.add(c.Content)
	})
	defer e.Stop()

	e.Produce(textMsg("bad", "boom"))
	e.Produce(textMsg("good", "fine"))

	require.Eventually(t, func() bool { return rec.len() == 1 }, 3*time.Second, 10*time.Millisecond)

	// The failed session's permit was released, so its entry drains away.
	require.Eventually(t, func() bool { return e.SessionCount() == 0 },
		3*time.Second, 10*time.Millisecond)

	// And the loop keeps scheduling afterwards.
	e.Produce(textMsg("good", "again"))
	require.Eventually(t, func() bool { return rec.len() == 2 }, 3*time.Second, 10*time.Millisecond)
}

func TestSharedPoolBound(t *testing.T) {
	var current, peak atomic.Int32
	var total atomic.Int32

	e := NewEngine(Config{
		PoolSize:     8,
		PollInterval: 5 * time.Millisecond,
	}, func(_ context.Context, _ *bridge.Context) {
		n := current.Add(1)
		for {
			p := peak.Load()
			if n <= p || peak.CompareAndSwap(p, n) {
				break
			}
		}
		time.Sleep(20 * time.Millisecond)
		current.Add(-1)
		total.Add(1)
	})
	defer e.Stop()

	sessions := []string{"s0", "s1", "s2", "s3", "s4", "s5", "s6", "s7", "s8", "s9",
		"s10", "s11", "s12", "s13", "s14", "s15", "s16", "s17", "s18", "s19"}
	for i := 0; i < 5; i++ {
		for _, s := range sessions {
			e.Produce(textMsg(s, "work"))
		}
	}

	require.Eventually(t, func() bool { return total.Load() == 100 },
		10*time.Second, 20*time.Millisecond, "all messages must complete")
	assert.LessOrEqual(t, peak.Load(), int32(8), "pool size exceeded")
}

func TestStatsSnapshot(t *testing.T) {
	gate := make(chan struct{})
	defer close(gate)

	e := NewEngine(Config{
		PollInterval: 5 * time.Millisecond,
	}, func(_ context.Context, _ *bridge.Context) {
		<-gate
	})
	defer e.Stop()

	e.Produce(textMsg("u1", "a"))
	require.Eventually(t, func() bool {
		return e.Stats()["inflight"].(int) == 1
	}, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, 1, e.Stats()["sessions"])
}

func TestProduceWithoutSessionDropped(t *testing.T) {
	e := NewEngine(Config{PollInterval: 5 * time.Millisecond},
		func(_ context.Context, _ *bridge.Context) {})
	defer e.Stop()

	e.Produce(bridge.NewContext(bridge.ContextKindText, "orphan"))
	e.Produce(nil)
	assert.Equal(t, 0, e.SessionCount())
}
