// Package dequeue implements a thread-safe FIFO queue that also supports
// inserting at the head, so control commands can jump ahead of ordinary
// messages already waiting in the same queue.
package dequeue

import "sync"

// Dequeue is a FIFO queue with head re-insertion. A maxSize of 0 means
// unbounded; when bounded, Put and PutFront block until space is available.
// Safe for many producers and consumers.
type Dequeue[T any] struct {
	mu       sync.Mutex
	notEmpty *sync.Cond
	notFull  *sync.Cond
	items    []T
	maxSize  int
}

// New creates a Dequeue. maxSize <= 0 means unbounded.
func New[T any](maxSize int) *Dequeue[T] {
	d := &Dequeue[T]{maxSize: maxSize}
	d.notEmpty = sync.NewCond(&d.mu)
	d.notFull = sync.NewCond(&d.mu)
	return d
}

// Put appends an item at the tail. Blocks while a bounded queue is full.
func (d *Dequeue[T]) Put(item T) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.waitNotFull()
	d.items = append(d.items, item)
	d.notEmpty.Signal()
}

// PutFront inserts an item at the head. Blocks while a bounded queue is full.
func (d *Dequeue[T]) PutFront(item T) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.waitNotFull()
	d.items = append([]T{item}, d.items...)
	d.notEmpty.Signal()
}

// Get removes and returns the head item, blocking while the queue is empty.
func (d *Dequeue[T]) Get() T {
	d.mu.Lock()
	defer d.mu.Unlock()
	for len(d.items) == 0 {
		d.notEmpty.Wait()
	}
	return d.pop()
}

// TryGet removes and returns the head item without blocking.
// The second return value reports whether an item was available.
func (d *Dequeue[T]) TryGet() (T, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.items) == 0 {
		var zero T
		return zero, false
	}
	return d.pop(), true
}

// Size returns the current number of queued items.
func (d *Dequeue[T]) Size() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.items)
}

func (d *Dequeue[T]) waitNotFull() {
	if d.maxSize <= 0 {
		return
	}
	for len(d.items) >= d.maxSize {
		d.notFull.Wait()
	}
}

func (d *Dequeue[T]) pop() T {
	item := d.items[0]
	var zero T
	d.items[0] = zero // release reference for GC
	d.items = d.items[1:]
	d.notFull.Signal()
	return item
}
