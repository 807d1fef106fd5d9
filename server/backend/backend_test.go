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
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yorkie-team/relay/pkg/document"
	"github.com/yorkie-team/relay/server/backend"
	"github.com/yorkie-team/relay/server/backend/database"
	"github.com/yorkie-team/relay/server/backend/database/fs"
	"github.com/yorkie-team/relay/server/backend/housekeeping"
	"github.com/yorkie-team/relay/server/compaction"
	"github.com/yorkie-team/relay/server/profiling/prometheus"
)

const waitFor = 3 * time.Second

func newBackend(
	t *testing.T,
	conf backend.Config,
	housekeepingConf housekeeping.Config,
	storeConf *backend.StoreConfig,
) *backend.Backend {
	metrics, err := prometheus.NewMetrics()
	require.NoError(t, err)

	be, err := backend.New(&conf, &compaction.Config{
		Threshold:     100,
		SweepInterval: "1m",
	}, &housekeepingConf, storeConf, metrics)
	require.NoError(t, err)
	require.NoError(t, be.Start())
	return be
}

func update(t *testing.T, k, v string) []byte {
	var u []byte
	doc := document.New()
	doc.OnUpdate(func(b []byte, _ document.Origin) { u = b })
	doc.Set(k, []byte(v))
	require.NotNil(t, u)
	return u
}

func TestBackend(t *testing.T) {
	noRetention := housekeeping.Config{RetentionPeriod: "0s", RetentionInterval: "24h"}

	t.Run("periodic flush test", func(t *testing.T) {
		ctx := context.Background()
		conf := newValidBackendConf()
		conf.PersistenceMode = "snapshot"
		conf.SnapshotDebounce = "1h"
		conf.FlushInterval = "20ms"
		be := newBackend(t, conf, noRetention, nil)
		defer func() {
			assert.NoError(t, be.Shutdown(ctx))
		}()

		room := be.Rooms.Get("periodic")
		require.NoError(t, room.WaitLoaded(ctx))
		require.NoError(t, room.ApplyUpdate(update(t, "k", "v"), "a"))

		assert.Eventually(t, func() bool {
			snapshot, _, err := be.DB.LoadRoom(ctx, "periodic")
			return err == nil && snapshot != nil && snapshot.Seq == 1
		}, waitFor, 10*time.Millisecond)
	})

	t.Run("retention purge test", func(t *testing.T) {
		ctx := context.Background()
		be := newBackend(t, newValidBackendConf(), housekeeping.Config{
			RetentionPeriod:   "1h",
			RetentionInterval: "20ms",
		}, nil)
		defer func() {
			assert.NoError(t, be.Shutdown(ctx))
		}()

		stale := database.NewUpdateInfo("abandoned", 1, update(t, "k", "v"))
		stale.CreatedAt = time.Now().Add(-2 * time.Hour)
		require.NoError(t, be.DB.AppendUpdate(ctx, stale))

		fresh := database.NewUpdateInfo("active", 1, update(t, "k", "v"))
		require.NoError(t, be.DB.AppendUpdate(ctx, fresh))

		assert.Eventually(t, func() bool {
			infos, err := be.DB.ListRooms(ctx)
			return err == nil && len(infos) == 1 && infos[0].Key == "active"
		}, waitFor, 10*time.Millisecond)
	})

	t.Run("shutdown flushes rooms to the file system test", func(t *testing.T) {
		ctx := context.Background()
		dir := t.TempDir()

		conf := newValidBackendConf()
		conf.PersistenceMode = "snapshot"
		conf.SnapshotDebounce = "1h"
		be := newBackend(t, conf, noRetention, &backend.StoreConfig{FS: &fs.Config{Dir: dir}})

		room := be.Rooms.Get("doc1")
		require.NoError(t, room.WaitLoaded(ctx))
		require.NoError(t, room.ApplyUpdate(update(t, "title", "hello"), "a"))
		_, state := room.StateSnapshot()
		require.NoError(t, be.Shutdown(ctx))

		db, err := fs.Dial(&fs.Config{Dir: dir})
		require.NoError(t, err)
		defer func() {
			assert.NoError(t, db.Close())
		}()

		snapshot, _, err := db.LoadRoom(ctx, "doc1")
		require.NoError(t, err)
		require.NotNil(t, snapshot)
		assert.Equal(t, state, snapshot.State)
	})

	t.Run("store kind test", func(t *testing.T) {
		var conf *backend.StoreConfig
		assert.Equal(t, "memory", conf.Kind())
		assert.Equal(t, "memory", (&backend.StoreConfig{}).Kind())
		assert.Equal(t, "fs", (&backend.StoreConfig{FS: &fs.Config{Dir: "x"}}).Kind())
	})
}
