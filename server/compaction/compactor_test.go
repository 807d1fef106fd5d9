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

package compaction_test

import (
	"context"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yorkie-team/relay/pkg/document"
	"github.com/yorkie-team/relay/pkg/document/key"
	"github.com/yorkie-team/relay/server/backend/background"
	"github.com/yorkie-team/relay/server/backend/database"
	"github.com/yorkie-team/relay/server/backend/database/memory"
	"github.com/yorkie-team/relay/server/backend/sync"
	"github.com/yorkie-team/relay/server/compaction"
	"github.com/yorkie-team/relay/server/profiling/prometheus"
	"github.com/yorkie-team/relay/server/rooms"
)

const waitFor = 3 * time.Second

// countingDB counts snapshot writes and can hold them until released.
type countingDB struct {
	database.Database
	compactions atomic.Int32
	entered     chan struct{}
	release     chan struct{}
}

func (d *countingDB) CompactRoom(ctx context.Context, snapshot *database.SnapshotInfo) error {
	d.compactions.Add(1)
	if d.release != nil {
		d.entered <- struct{}{}
		<-d.release
	}
	return d.Database.CompactRoom(ctx, snapshot)
}

type env struct {
	db        *countingDB
	registry  *rooms.Registry
	compactor *compaction.Compactor
}

func newEnv(t *testing.T, threshold int, hold bool) *env {
	memdb, err := memory.New()
	require.NoError(t, err)
	db := &countingDB{Database: memdb}
	if hold {
		db.entered = make(chan struct{}, 1)
		db.release = make(chan struct{})
	}

	metrics, err := prometheus.NewMetrics()
	require.NoError(t, err)
	bg := background.New(metrics)

	registry := rooms.NewRegistry(&rooms.Options{
		PersistenceMode:     rooms.PersistenceModeLog,
		CompactionThreshold: threshold,
	}, db, bg, metrics)
	compactor := compaction.New(&compaction.Config{
		Threshold:     threshold,
		SweepInterval: "1m",
	}, registry, db, sync.New(), bg, metrics)
	registry.OnThreshold(compactor.Schedule)

	t.Cleanup(func() {
		registry.Close()
		bg.Close()
		assert.NoError(t, db.Close())
	})
	return &env{db: db, registry: registry, compactor: compactor}
}

func (e *env) room(t *testing.T, roomKey key.Key) *rooms.Room {
	room := e.registry.Get(roomKey)
	ctx, cancel := context.WithTimeout(context.Background(), waitFor)
	defer cancel()
	require.NoError(t, room.WaitLoaded(ctx))
	return room
}

func edit(t *testing.T, doc *document.Doc, k, v string) []byte {
	var update []byte
	unsubscribe := doc.OnUpdate(func(u []byte, _ document.Origin) {
		update = u
	})
	defer unsubscribe()

	doc.Set(k, []byte(v))
	require.NotNil(t, update)
	return update
}

func TestConfig(t *testing.T) {
	conf := compaction.Config{Threshold: 100, SweepInterval: "5m"}
	assert.NoError(t, conf.Validate())

	conf.Threshold = 0
	assert.Error(t, conf.Validate())

	conf.Threshold = 100
	conf.SweepInterval = "soon"
	assert.Error(t, conf.Validate())

	conf.SweepInterval = "0s"
	assert.Error(t, conf.Validate())
}

func TestCompactor(t *testing.T) {
	t.Run("threshold compaction folds the log test", func(t *testing.T) {
		ctx := context.Background()
		e := newEnv(t, 100, false)
		room := e.room(t, "compact-150")

		author := document.New()
		for i := 0; i < 150; i++ {
			update := edit(t, author, fmt.Sprintf("k%d", i%10), fmt.Sprintf("v%d", i))
			require.NoError(t, room.ApplyUpdate(update, "a"))
		}
		require.NoError(t, room.Flush(ctx))

		var snapshot *database.SnapshotInfo
		var updates []*database.UpdateInfo
		assert.Eventually(t, func() bool {
			var err error
			snapshot, updates, err = e.db.LoadRoom(ctx, "compact-150")
			return err == nil && snapshot != nil
		}, waitFor, 10*time.Millisecond)
		require.NotNil(t, snapshot)
		assert.GreaterOrEqual(t, snapshot.Seq, int64(100))
		for _, update := range updates {
			assert.Greater(t, update.Seq, snapshot.Seq)
		}

		replica := document.New()
		require.NoError(t, replica.ApplyUpdate(snapshot.State, document.OriginLoad))
		for _, update := range updates {
			require.NoError(t, replica.ApplyUpdate(update.Payload, document.OriginLoad))
		}
		assert.Equal(t, author.EncodeStateAsUpdate(), replica.EncodeStateAsUpdate())
	})

	t.Run("concurrent compactions write one snapshot test", func(t *testing.T) {
		ctx := context.Background()
		e := newEnv(t, 0, true)
		room := e.room(t, "concurrent")
		require.NoError(t, room.ApplyUpdate(edit(t, document.New(), "k", "v"), "a"))
		require.NoError(t, room.Flush(ctx))

		first := make(chan bool, 1)
		go func() {
			compacted, err := e.compactor.Compact(ctx, room, compaction.TriggerThreshold)
			assert.NoError(t, err)
			first <- compacted
		}()
		<-e.db.entered

		compacted, err := e.compactor.Compact(ctx, room, compaction.TriggerSweep)
		assert.NoError(t, err)
		assert.False(t, compacted)

		close(e.db.release)
		assert.True(t, <-first)
		assert.Equal(t, int32(1), e.db.compactions.Load())

		_, updates, err := e.db.LoadRoom(ctx, "concurrent")
		require.NoError(t, err)
		assert.Empty(t, updates)
	})

	t.Run("many concurrent triggers test", func(t *testing.T) {
		ctx := context.Background()
		e := newEnv(t, 0, false)
		room := e.room(t, "many")
		require.NoError(t, room.ApplyUpdate(edit(t, document.New(), "k", "v"), "a"))

		group := make(chan struct{})
		done := make(chan bool, 8)
		for i := 0; i < 8; i++ {
			go func() {
				<-group
				compacted, err := e.compactor.Compact(ctx, room, compaction.TriggerSweep)
				assert.NoError(t, err)
				done <- compacted
			}()
		}
		close(group)

		succeeded := 0
		for i := 0; i < 8; i++ {
			if <-done {
				succeeded++
			}
		}
		assert.GreaterOrEqual(t, succeeded, 1)
		assert.Equal(t, int32(succeeded), e.db.compactions.Load())
	})

	t.Run("sweep compacts only live rooms test", func(t *testing.T) {
		ctx := context.Background()
		e := newEnv(t, 3, false)

		writer := document.New()
		for i := 1; i <= 3; i++ {
			update := edit(t, writer, "k", fmt.Sprint(i))
			require.NoError(t, e.db.AppendUpdate(ctx, database.NewUpdateInfo("idle", int64(i), update)))
		}

		// The live room stopped receiving updates exactly at the threshold.
		for i := 1; i <= 3; i++ {
			update := edit(t, writer, "live", fmt.Sprint(i))
			require.NoError(t, e.db.AppendUpdate(ctx, database.NewUpdateInfo("live", int64(i), update)))
		}
		live := e.room(t, "live")
		assert.Equal(t, int64(3), live.Seq())

		require.NoError(t, e.compactor.Sweep(ctx))

		snapshot, updates, err := e.db.LoadRoom(ctx, "idle")
		require.NoError(t, err)
		assert.Nil(t, snapshot)
		assert.Len(t, updates, 3)

		snapshot, updates, err = e.db.LoadRoom(ctx, "live")
		require.NoError(t, err)
		require.NotNil(t, snapshot)
		assert.Equal(t, int64(3), snapshot.Seq)
		assert.Empty(t, updates)
	})

	t.Run("rewrite restores purged live rooms test", func(t *testing.T) {
		ctx := context.Background()
		e := newEnv(t, 0, false)
		room := e.room(t, "purged")

		author := document.New()
		require.NoError(t, room.ApplyUpdate(edit(t, author, "k", "v"), "a"))
		require.NoError(t, room.Flush(ctx))

		require.NoError(t, e.db.DeleteRoom(ctx, "purged"))
		require.NoError(t, e.compactor.Rewrite(ctx, []key.Key{"purged", "not-live"}))

		snapshot, _, err := e.db.LoadRoom(ctx, "purged")
		require.NoError(t, err)
		require.NotNil(t, snapshot)
		assert.Equal(t, author.EncodeStateAsUpdate(), snapshot.State)
	})
}
