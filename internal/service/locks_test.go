package service

import (
	"sync"
	"testing"
)

func TestKeyLocks_Serializes(t *testing.T) {
	l := NewKeyLocks()
	var (
		wg      sync.WaitGroup
		inside  int
		maxSeen int
		mu      sync.Mutex
	)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock := l.Lock("group:1")
			mu.Lock()
			inside++
			maxSeen = max(maxSeen, inside)
			mu.Unlock()

			mu.Lock()
			inside--
			mu.Unlock()
			unlock()
		}()
	}
	wg.Wait()
	if maxSeen != 1 {
		t.Fatalf("одновременно внутри: %d", maxSeen)
	}
	if len(l.byKey) != 0 {
		t.Fatalf("освобождённые ключи должны удаляться: %d", len(l.byKey))
	}
}
