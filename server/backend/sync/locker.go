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

// Package sync provides the lockers that serialize work on the same room
// across independent routines of the relay.
package sync

import (
	"errors"
	"fmt"

	"github.com/yorkie-team/relay/pkg/document/key"
	"github.com/yorkie-team/relay/pkg/locker"
)

// ErrAlreadyLocked is returned when the lock is already held.
var ErrAlreadyLocked = errors.New("already locked")

// Key represents key of Locker.
type Key string

// NewKey creates a new instance of Key.
func NewKey(key string) Key {
	return Key(key)
}

// CompactionKey returns the locker key that guards compaction of the room.
func CompactionKey(roomKey key.Key) Key {
	return Key(fmt.Sprintf("compaction/%s", roomKey))
}

// String returns a string representation of this Key.
func (k Key) String() string {
	return string(k)
}

// LockerManager manages Lockers.
type LockerManager struct {
	locks *locker.Locker
}

// New creates a new instance of LockerManager.
func New() *LockerManager {
	return &LockerManager{
		locks: locker.New(),
	}
}

// Locker creates locker of the given key.
func (c *LockerManager) Locker(key Key) Locker {
	return &internalLocker{
		key:   key.String(),
		locks: c.locks,
	}
}

// Held returns the number of keys currently locked or waited on.
func (c *LockerManager) Held() int {
	return c.locks.Len()
}

// A Locker represents an object that can be locked and unlocked.
type Locker interface {
	// Lock locks the mutex, blocking until it is available.
	Lock()

	// TryLock locks the mutex if it is not already locked. It returns
	// ErrAlreadyLocked otherwise.
	TryLock() error

	// Unlock unlocks the mutex.
	Unlock() error
}

type internalLocker struct {
	key   string
	locks *locker.Locker
}

func (il *internalLocker) Lock() {
	il.locks.Lock(il.key)
}

func (il *internalLocker) TryLock() error {
	if !il.locks.TryLock(il.key) {
		return ErrAlreadyLocked
	}
	return nil
}

func (il *internalLocker) Unlock() error {
	return il.locks.Unlock(il.key)
}
