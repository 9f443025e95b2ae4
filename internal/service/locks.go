package service

import "sync"

// KeyLocks — мьютекс на ключ ("group:7", "periods"). Сериализует атомарные
// операции одного процесса до входа в транзакцию; между процессами это делает
// advisory-блокировка в БД.
type KeyLocks struct {
	mu    sync.Mutex
	byKey map[string]*keyLock
}

type keyLock struct {
	mu   sync.Mutex
	refs int
}

func NewKeyLocks() *KeyLocks {
	return &KeyLocks{byKey: make(map[string]*keyLock)}
}

// Lock блокирует key и возвращает функцию освобождения.
func (l *KeyLocks) Lock(key string) func() {
	l.mu.Lock()
	m, ok := l.byKey[key]
	if !ok {
		m = &keyLock{}
		l.byKey[key] = m
	}
	m.refs++
	l.mu.Unlock()

	m.mu.Lock()
	return func() {
		m.mu.Unlock()
		l.mu.Lock()
		m.refs--
		if m.refs == 0 {
			delete(l.byKey, key)
		}
		l.mu.Unlock()
	}
}
