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

package locker

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocker(t *testing.T) {
	t.Run("lock blocks until unlock", func(t *testing.T) {
		l := New()
		l.Lock("room")

		done := make(chan struct{})
		go func() {
			l.Lock("room")
			close(done)
		}()

		select {
		case <-done:
			t.Fatal("lock should not have returned while it was still held")
		case <-time.After(20 * time.Millisecond):
		}

		require.NoError(t, l.Unlock("room"))
		select {
		case <-done:
		case <-time.After(3 * time.Second):
			t.Fatal("lock should have completed")
		}
		require.NoError(t, l.Unlock("room"))
		assert.Equal(t, 0, l.Len())
	})

	t.Run("try lock does not block", func(t *testing.T) {
		l := New()
		assert.True(t, l.TryLock("room"))
		assert.False(t, l.TryLock("room"))
		assert.True(t, l.TryLock("other"))

		require.NoError(t, l.Unlock("room"))
		require.NoError(t, l.Unlock("other"))
		assert.Equal(t, 0, l.Len())

		assert.True(t, l.TryLock("room"))
		require.NoError(t, l.Unlock("room"))
	})

	t.Run("unlock unknown name", func(t *testing.T) {
		l := New()
		assert.ErrorIs(t, l.Unlock("room"), ErrNoSuchLock)
	})
}

func TestLockerConcurrency(t *testing.T) {
	l := New()

	var inside atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			l.Lock("room")
			assert.Equal(t, int32(1), inside.Add(1))
			inside.Add(-1)
			assert.NoError(t, l.Unlock("room"))
		}()
	}
	wg.Wait()

	assert.Equal(t, 0, l.Len())
}

func TestTryLockConcurrency(t *testing.T) {
	l := New()
	require.True(t, l.TryLock("room"))

	var acquired atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if l.TryLock("room") {
				acquired.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(0), acquired.Load())
	require.NoError(t, l.Unlock("room"))
	assert.Equal(t, 0, l.Len())
}
