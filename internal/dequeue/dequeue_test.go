package dequeue

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFIFOOrder(t *testing.T) {
	d := New[int](0)
	for i := 0; i < 5; i++ {
		d.Put(i)
	}
	for i := 0; i < 5; i++ {
		v, ok := d.TryGet()
		require.True(t, ok)
		assert.Equal(t, i, v)
	}
	_, ok := d.TryGet()
	assert.False(t, ok)
}

func TestPutFrontJumpsQueue(t *testing.T) {
	d := New[string](0)
	d.Put("a")
	d.Put("b")
	d.PutFront("#cmd")

	v, _ := d.TryGet()
	assert.Equal(t, "#cmd", v)
	v, _ = d.TryGet()
	assert.Equal(t, "a", v)
	v, _ = d.TryGet()
	assert.Equal(t, "b", v)
}

func TestGetBlocksUntilPut(t *testing.T) {
	d := New[int](0)
	got := make(chan int, 1)
	go func() {
		got <- d.Get()
	}()

	select {
	case <-got:
		t.Fatal("Get returned on empty queue")
	case <-time.After(20 * time.Millisecond):
	}

	d.Put(42)
	select {
	case v := <-got:
		assert.Equal(t, 42, v)
	case <-time.After(time.Second):
		t.Fatal("Get did not wake after Put")
	}
}

func TestBoundedPutBlocksUntilGet(t *testing.T) {
	d := New[int](1)
	d.Put(1)

	done := make(chan struct{})
	go func() {
		d.Put(2)
		close(done)
	}()

	select {
	case <-done:
		t.Fatal("Put returned on full queue")
	case <-time.After(20 * time.Millisecond):
	}

	assert.Equal(t, 1, d.Get())
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Put did not wake after Get")
	}
	assert.Equal(t, 2, d.Get())
}

func TestConcurrentProducers(t *testing.T) {
	d := New[int](0)
	var wg sync.WaitGroup
	const producers = 10
	const perProducer = 100

	for p := 0; p < producers; p++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < perProducer; i++ {
				d.Put(i)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, producers*perProducer, d.Size())
}
