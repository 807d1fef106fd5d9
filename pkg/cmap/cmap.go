/*
 * Copyright 2026 The Yorkie Authors. All rights reserved.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

// Package cmap provides a sharded concurrent map keyed by strings.
package cmap

import (
	"hash/fnv"
	"sync"
)

const numShards = 32

type shard[K ~string, V comparable] struct {
	sync.RWMutex
	items map[K]V
}

// Map is a concurrent map that is safe for multiple routines. Keys are spread
// over shards to reduce lock contention between unrelated keys.
type Map[K ~string, V comparable] struct {
	shards [numShards]shard[K, V]
}

// New creates a new Map.
func New[K ~string, V comparable]() *Map[K, V] {
	m := &Map[K, V]{}
	for i := range m.shards {
		m.shards[i].items = make(map[K]V)
	}
	return m
}

func (m *Map[K, V]) shardFor(key K) *shard[K, V] {
	h := fnv.New32a()
	// hash.Hash.Write never returns an error.
	_, _ = h.Write([]byte(key))
	return &m.shards[h.Sum32()%numShards]
}

// GetOrInsert returns the value stored for the key. If there is none, create
// is called exactly once while the key's shard is locked, and its result is
// stored and returned. The boolean reports whether the value was created.
func (m *Map[K, V]) GetOrInsert(key K, create func() V) (V, bool) {
	s := m.shardFor(key)

	s.RLock()
	v, ok := s.items[key]
	s.RUnlock()
	if ok {
		return v, false
	}

	s.Lock()
	defer s.Unlock()

	if v, ok := s.items[key]; ok {
		return v, false
	}
	v = create()
	s.items[key] = v
	return v, true
}

// Get retrieves a value from the map.
func (m *Map[K, V]) Get(key K) (V, bool) {
	s := m.shardFor(key)

	s.RLock()
	defer s.RUnlock()

	v, ok := s.items[key]
	return v, ok
}

// Delete removes the key from the map and returns the removed value.
func (m *Map[K, V]) Delete(key K) (V, bool) {
	s := m.shardFor(key)

	s.Lock()
	defer s.Unlock()

	v, ok := s.items[key]
	if ok {
		delete(s.items, key)
	}
	return v, ok
}

// CompareAndDelete removes the key only if it is still mapped to the given
// value. It reports whether the key was removed.
func (m *Map[K, V]) CompareAndDelete(key K, old V) bool {
	s := m.shardFor(key)

	s.Lock()
	defer s.Unlock()

	if v, ok := s.items[key]; ok && v == old {
		delete(s.items, key)
		return true
	}
	return false
}

// Len returns the number of items in the map.
func (m *Map[K, V]) Len() int {
	count := 0
	for i := range m.shards {
		s := &m.shards[i]
		s.RLock()
		count += len(s.items)
		s.RUnlock()
	}
	return count
}

// Values returns a slice of all values in the map.
func (m *Map[K, V]) Values() []V {
	var values []V
	for i := range m.shards {
		s := &m.shards[i]
		s.RLock()
		for _, v := range s.items {
			values = append(values, v)
		}
		s.RUnlock()
	}
	return values
}
