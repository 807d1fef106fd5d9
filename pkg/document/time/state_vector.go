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

package time

import (
	"sort"
)

// StateVector maps each actor to the number of its operations a document
// has integrated. Operations of an actor are numbered contiguously from 1,
// so the vector fully describes which operations a document knows about.
type StateVector map[ActorID]uint64

// NewStateVector creates a new instance of StateVector.
func NewStateVector() StateVector {
	return make(StateVector)
}

// Get returns the counter of the given actor, 0 if unknown.
func (v StateVector) Get(id ActorID) uint64 {
	return v[id]
}

// Set sets the counter of the given actor.
func (v StateVector) Set(id ActorID, counter uint64) {
	v[id] = counter
}

// Covers returns true if the vector includes the operation of the given
// actor and counter.
func (v StateVector) Covers(id ActorID, counter uint64) bool {
	return counter <= v[id]
}

// Sum returns the total number of operations described by the vector.
func (v StateVector) Sum() uint64 {
	var sum uint64
	for _, c := range v {
		sum += c
	}
	return sum
}

// Actors returns the actors of the vector in ascending order.
func (v StateVector) Actors() []ActorID {
	actors := make([]ActorID, 0, len(v))
	for id := range v {
		actors = append(actors, id)
	}
	sort.Slice(actors, func(i, j int) bool {
		return actors[i].Compare(actors[j]) < 0
	})
	return actors
}

// DeepCopy creates a deep copy of this StateVector.
func (v StateVector) DeepCopy() StateVector {
	copied := make(StateVector, len(v))
	for k, c := range v {
		copied[k] = c
	}
	return copied
}
