package core

import (
	"sync"
)

// WorkQueue is a FIFO queue keyed by K. Adding a key that is already queued
// keeps its position and replaces its value, so the latest snapshot wins.
type WorkQueue[K comparable, V any] struct {
	mutex  sync.Mutex
	values map[K]V
	keys   []K
}

func NewWorkQueue[K comparable, V any]() *WorkQueue[K, V] {
	return &WorkQueue[K, V]{values: make(map[K]V), keys: make([]K, 0)}
}

func (queue *WorkQueue[K, V]) Add(key K, value V) {
	queue.mutex.Lock()
	defer queue.mutex.Unlock()

	if _, exists := queue.values[key]; !exists {
		queue.keys = append(queue.keys, key)
	}

	queue.values[key] = value
}

func (queue *WorkQueue[K, V]) Get() (K, V, bool) {
	queue.mutex.Lock()
	defer queue.mutex.Unlock()

	var zeroKey K
	var zeroValue V

	if len(queue.keys) == 0 {
		return zeroKey, zeroValue, false
	}

	key := queue.keys[0]
	value := queue.values[key]

	queue.keys = queue.keys[1:]
	delete(queue.values, key)

	return key, value, true
}

func (queue *WorkQueue[K, V]) Len() int {
	queue.mutex.Lock()
	defer queue.mutex.Unlock()

	return len(queue.keys)
}
