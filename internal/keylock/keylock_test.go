package keylock

import (
	"sync"
	"testing"
	"time"
)

func TestLock_SameKeySerialized(t *testing.T) {
	l := New()

	var (
		mu      sync.Mutex
		inside  int
		maxSeen int
		wg      sync.WaitGroup
	)

	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock := l.Lock("job-1")
			defer unlock()

			mu.Lock()
			inside++
			if inside > maxSeen {
				maxSeen = inside
			}
			mu.Unlock()

			time.Sleep(time.Millisecond)

			mu.Lock()
			inside--
			mu.Unlock()
		}()
	}
	wg.Wait()

	if maxSeen != 1 {
		t.Errorf("одновременно внутри секции: %d, ожидается 1", maxSeen)
	}
	if l.Len() != 0 {
		t.Errorf("Len() = %d после освобождения, ожидается 0", l.Len())
	}
}

func TestLock_DifferentKeysIndependent(t *testing.T) {
	l := New()

	unlockA := l.Lock("a")
	defer unlockA()

	done := make(chan struct{})
	go func() {
		unlock := l.Lock("b")
		unlock()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("блокировка ключа b зависла при удержании ключа a")
	}
}

func TestLock_UnlockIdempotent(t *testing.T) {
	l := New()

	unlock := l.Lock("a")
	unlock()
	unlock()

	if l.Len() != 0 {
		t.Errorf("Len() = %d, ожидается 0", l.Len())
	}

	// Повторный захват после двойного освобождения не должен зависнуть
	unlock = l.Lock("a")
	unlock()
}
