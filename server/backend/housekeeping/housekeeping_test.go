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

package housekeeping_test

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yorkie-team/relay/server/backend/housekeeping"
)

func TestHousekeeping(t *testing.T) {
	t.Run("runs tasks periodically until stopped", func(t *testing.T) {
		h := housekeeping.New()

		var runs, failures atomic.Int32
		require.NoError(t, h.RegisterTask("count", 5*time.Millisecond, func(ctx context.Context) error {
			runs.Add(1)
			return nil
		}))
		require.NoError(t, h.RegisterTask("fail", 5*time.Millisecond, func(ctx context.Context) error {
			failures.Add(1)
			return errors.New("failed")
		}))
		require.NoError(t, h.Start())

		assert.Eventually(t, func() bool {
			return runs.Load() >= 3 && failures.Load() >= 3
		}, time.Second, 5*time.Millisecond)

		require.NoError(t, h.Stop())
		stopped := runs.Load()
		time.Sleep(20 * time.Millisecond)
		assert.Equal(t, stopped, runs.Load())
	})

	t.Run("register validation", func(t *testing.T) {
		h := housekeeping.New()
		noop := func(ctx context.Context) error { return nil }

		assert.ErrorIs(t, h.RegisterTask("zero", 0, noop), housekeeping.ErrInvalidInterval)
		require.NoError(t, h.Start())
		assert.ErrorIs(t, h.RegisterTask("late", time.Second, noop), housekeeping.ErrAlreadyStarted)
		assert.ErrorIs(t, h.Start(), housekeeping.ErrAlreadyStarted)
		require.NoError(t, h.Stop())
	})
}
