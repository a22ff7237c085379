package profile

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLock_ReleasesIdleEntries(t *testing.T) {
	r := NewRegistry(nil)

	var wg sync.WaitGroup
	for i := range 50 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			id := "p1"
			if i%2 == 0 {
				id = "p2"
			}
			unlock := r.lock(id)
			unlock()
		}()
	}
	wg.Wait()

	r.locksMu.Lock()
	defer r.locksMu.Unlock()
	assert.Empty(t, r.locks)
}

func TestLock_SerializesSameID(t *testing.T) {
	r := NewRegistry(nil)

	unlock := r.lock("p1")
	acquired := make(chan struct{})
	released := make(chan struct{})
	go func() {
		release := r.lock("p1")
		close(acquired)
		release()
		close(released)
	}()

	// A different id is not blocked by p1.
	r.lock("p2")()

	select {
	case <-acquired:
		t.Fatal("second holder acquired p1 while it was locked")
	default:
	}
	unlock()
	<-acquired
	<-released

	r.locksMu.Lock()
	defer r.locksMu.Unlock()
	assert.Empty(t, r.locks)
}
