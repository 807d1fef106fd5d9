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
 *
 * This file was written with reference to moby/locker.
 *   https://github.com/moby/locker
 */

/*
Package locker provides named mutexes. A lock for a name is created on first
use and released from the table once no caller holds or waits on it, so the
table only grows with the number of names in use at the same time.
*/
package locker

import (
	"errors"
	"sync"
)

// ErrNoSuchLock is returned when unlocking a name that is not locked.
var ErrNoSuchLock = errors.New("no such lock")

// Locker provides a locking mechanism based on the passed in reference name.
type Locker struct {
	mu    sync.Mutex
	locks map[string]*lockCtr
}

// lockCtr is a mutex with the number of callers that hold or wait for it.
// refs is guarded by Locker.mu.
type lockCtr struct {
	mu   sync.Mutex
	refs int
}

// New creates a new Locker.
func New() *Locker {
	return &Locker{
		locks: make(map[string]*lockCtr),
	}
}

func (l *Locker) acquire(name string) *lockCtr {
	l.mu.Lock()
	defer l.mu.Unlock()

	ctr, ok := l.locks[name]
	if !ok {
		ctr = &lockCtr{}
		l.locks[name] = ctr
	}
	ctr.refs++
	return ctr
}

func (l *Locker) release(name string, ctr *lockCtr) {
	l.mu.Lock()
	defer l.mu.Unlock()

	ctr.refs--
	if ctr.refs == 0 {
		delete(l.locks, name)
	}
}

// Lock locks the mutex with the given name, blocking until it is available.
func (l *Locker) Lock(name string) {
	ctr := l.acquire(name)
	ctr.mu.Lock()
}

// TryLock locks the mutex with the given name if nobody holds it. It never
// blocks.
func (l *Locker) TryLock(name string) bool {
	ctr := l.acquire(name)
	if ctr.mu.TryLock() {
		return true
	}
	l.release(name, ctr)
	return false
}

// Unlock unlocks the mutex with the given name.
func (l *Locker) Unlock(name string) error {
	l.mu.Lock()
	ctr, ok := l.locks[name]
	l.mu.Unlock()
	if !ok {
		return ErrNoSuchLock
	}

	ctr.mu.Unlock()
	l.release(name, ctr)
	return nil
}

// Len returns the number of names currently locked or waited on.
func (l *Locker) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()

	return len(l.locks)
}
