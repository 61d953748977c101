package reconcile

import (
	"sync"
	"testing"
)

func TestOrderLocksSerializeSameKey(t *testing.T) {
	locks := newOrderLocks()

	var wg sync.WaitGroup
	counter := 0
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock := locks.Acquire("order-1")
			defer unlock()
			counter++
		}()
	}
	wg.Wait()

	if counter != 50 {
		t.Errorf("expected 50 serialized increments, got %d", counter)
	}
	if len(locks.locks) != 0 {
		t.Errorf("expected lock table drained, got %d entries", len(locks.locks))
	}
}

func TestOrderLocksIndependentKeys(t *testing.T) {
	locks := newOrderLocks()

	release := locks.Acquire("order-1")
	done := make(chan struct{})
	go func() {
		unlock := locks.Acquire("order-2")
		unlock()
		close(done)
	}()
	<-done
	release()
}
