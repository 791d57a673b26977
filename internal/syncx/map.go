package syncx

import (
	"sync"
	"sync/atomic"
)

// Map is a typed wrapper around sync.Map that also keeps track
// of the number of entries it holds.
type Map[K comparable, V any] struct {
	m sync.Map
	n atomic.Int64
}

func (m *Map[K, V]) Delete(key K) bool {
	_, loaded := m.m.LoadAndDelete(key)
	if loaded {
		m.n.Add(-1)
	}
	return loaded
}

func (m *Map[K, V]) Get(key K) (value V, ok bool) {
	v, ok := m.m.Load(key)
	if !ok {
		return value, ok
	}
	return v.(V), ok
}

func (m *Map[K, V]) Set(key K, value V) {
	if _, loaded := m.m.Swap(key, value); !loaded {
		m.n.Add(1)
	}
}

func (m *Map[K, V]) Len() int {
	return int(m.n.Load())
}

func (m *Map[K, V]) Iterate(f func(key K, value V)) {
	m.m.Range(func(key, value any) bool {
		f(key.(K), value.(V))
		return true
	})
}
