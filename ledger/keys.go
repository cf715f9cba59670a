package ledger

import "sync"

// keyedMutex serializes mutations per key so two concurrent invoices cannot
// read-modify-write the same wallet or allocation record independently.
// Keys are holder ids for wallets and "holder/product" for allocations.
//
// Lock ordering: against a store whose WithTx holds a store-level lock,
// keyed locks are acquired inside the transaction (via WithStore), after
// that lock. Nothing may hold a keyed lock while waiting to enter WithTx.
type keyedMutex struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func newKeyedMutex() *keyedMutex {
	return &keyedMutex{locks: make(map[string]*sync.Mutex)}
}

// Lock acquires the mutex for key, creating it on first use.
// Lock entries are never removed; the key space (holders x products) is
// small and bounded by catalog size.
func (k *keyedMutex) Lock(key string) func() {
	k.mu.Lock()
	l, ok := k.locks[key]
	if !ok {
		l = &sync.Mutex{}
		k.locks[key] = l
	}
	k.mu.Unlock()

	l.Lock()
	return l.Unlock
}
