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

package backend_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/yorkie-team/relay/server/backend"
	"github.com/yorkie-team/relay/server/rooms"
)

func newValidBackendConf() backend.Config {
	return backend.Config{
		PersistenceMode:  "log",
		SnapshotDebounce: "1s",
		FlushInterval:    "30s",
		StoreTimeout:     "10s",
	}
}

func TestConfig(t *testing.T) {
	t.Run("validate test", func(t *testing.T) {
		validConf := newValidBackendConf()
		assert.NoError(t, validConf.Validate())

		conf1 := validConf
		conf1.PersistenceMode = "journal"
		assert.Error(t, conf1.Validate())

		conf2 := validConf
		conf2.FlushInterval = "30 seconds"
		assert.Error(t, conf2.Validate())

		conf3 := validConf
		conf3.SnapshotDebounce = "0s"
		assert.Error(t, conf3.Validate())
	})

	t.Run("parse test", func(t *testing.T) {
		validConf := newValidBackendConf()

		assert.Equal(t, "1s", validConf.ParseSnapshotDebounce().String())
		assert.Equal(t, "30s", validConf.ParseFlushInterval().String())
		assert.Equal(t, "10s", validConf.ParseStoreTimeout().String())

		options := validConf.RoomOptions(100)
		assert.Equal(t, rooms.PersistenceModeLog, options.PersistenceMode)
		assert.Equal(t, 100, options.CompactionThreshold)
		assert.NoError(t, options.Validate())
	})
}
