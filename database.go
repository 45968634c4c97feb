package fffc

import "sync"

// MemoKey is the constraint for memo cache keys.
type MemoKey interface {
	comparable
}

// Memo is a generic, write-once-per-key memoized cache. The pipeline
// carries exactly one piece of cross-translation-unit shared mutable
// state through its otherwise single-threaded, run-to-completion
// flow — the compiler→ASan-library path cache — and Memo is that
// cache. This generator has no invalidation story (there is no second
// run over changing inputs within one process), so only
// compute-once-and-remember is provided.
type Memo[K MemoKey, V any] struct {
	mu    sync.Mutex
	cache map[K]memoEntry[V]
}

type memoEntry[V any] struct {
	value V
	err   error
}

// NewMemo creates an empty memoized cache.
func NewMemo[K MemoKey, V any]() *Memo[K, V] {
	return &Memo[K, V]{cache: make(map[K]memoEntry[V])}
}

// GetOrCompute returns the cached value for key if present, otherwise
// calls compute exactly once for that key and caches the result
// (including an error result, so a failing lookup isn't retried on
// every translation unit).
func (m *Memo[K, V]) GetOrCompute(key K, compute func() (V, error)) (V, error) {
	m.mu.Lock()
	if entry, ok := m.cache[key]; ok {
		m.mu.Unlock()
		return entry.value, entry.err
	}
	m.mu.Unlock()

	value, err := compute()

	m.mu.Lock()
	m.cache[key] = memoEntry[V]{value: value, err: err}
	m.mu.Unlock()

	return value, err
}

// Len reports how many keys have been resolved so far (used by tests
// to assert the toolchain was only invoked once per distinct key).
func (m *Memo[K, V]) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.cache)
}
