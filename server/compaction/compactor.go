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

// Package compaction folds the update logs of live rooms into snapshots. A
// compaction is triggered when a room's log reaches the threshold and by a
// periodic sweep; at most one compaction of a room runs at a time.
package compaction

import (
	"context"
	"errors"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/yorkie-team/relay/pkg/document/key"
	"github.com/yorkie-team/relay/server/backend/background"
	"github.com/yorkie-team/relay/server/backend/database"
	"github.com/yorkie-team/relay/server/backend/sync"
	"github.com/yorkie-team/relay/server/logging"
	"github.com/yorkie-team/relay/server/profiling/prometheus"
	"github.com/yorkie-team/relay/server/rooms"
)

// Trigger is what caused a compaction.
type Trigger string

const (
	// TriggerThreshold is a compaction triggered by an append.
	TriggerThreshold Trigger = "threshold"

	// TriggerSweep is a compaction triggered by the periodic sweep.
	TriggerSweep Trigger = "sweep"

	// TriggerRetention is a compaction that rewrites a purged live room.
	TriggerRetention Trigger = "retention"
)

// Compactor compacts the rooms of a registry.
type Compactor struct {
	config   *Config
	registry *rooms.Registry
	db       database.Database
	lockers  *sync.LockerManager
	bg       *background.Background
	metrics  *prometheus.Metrics
	logger   logging.Logger

	// sem bounds the compactions of sweeps and rewrites.
	sem *semaphore.Weighted
}

// New creates a new instance of Compactor.
func New(
	config *Config,
	registry *rooms.Registry,
	db database.Database,
	lockers *sync.LockerManager,
	bg *background.Background,
	metrics *prometheus.Metrics,
) *Compactor {
	return &Compactor{
		config:   config,
		registry: registry,
		db:       db,
		lockers:  lockers,
		bg:       bg,
		metrics:  metrics,
		logger:   logging.New("CMPT"),
		sem:      semaphore.NewWeighted(maxConcurrentCompactions),
	}
}

// Schedule compacts the room in the background. It is the threshold hook of
// the registry and never blocks.
func (c *Compactor) Schedule(room *rooms.Room) {
	c.bg.AttachGoroutine(func(ctx context.Context) {
		ctx = logging.WithRoom(ctx, room.Key().String())
		start := time.Now()
		if _, err := c.Compact(ctx, room, TriggerThreshold); err != nil {
			logging.LogError(logging.From(ctx), "compact "+room.Key().String(), time.Since(start), err)
		}
	}, "compaction")
}

// Compact compacts the room unless a compaction of it is already running.
// It returns false if the compaction was skipped.
func (c *Compactor) Compact(ctx context.Context, room *rooms.Room, trigger Trigger) (bool, error) {
	locker := c.lockers.Locker(sync.CompactionKey(room.Key()))
	if err := locker.TryLock(); err != nil {
		if errors.Is(err, sync.ErrAlreadyLocked) {
			c.metrics.AddCompaction(string(trigger), "skipped")
			c.logger.Debugf("skip %s compaction of %s: already running", trigger, room.Key())
			return false, nil
		}
		return false, err
	}
	defer func() {
		if err := locker.Unlock(); err != nil {
			c.logger.Errorf("unlock compaction of %s: %v", room.Key(), err)
		}
	}()

	start := time.Now()
	seq, err := room.Compact(ctx)
	if errors.Is(err, rooms.ErrRoomLoading) {
		c.metrics.AddCompaction(string(trigger), "skipped")
		return false, nil
	}
	if err != nil {
		c.metrics.AddCompaction(string(trigger), "failure")
		return false, err
	}

	c.metrics.AddCompaction(string(trigger), "success")
	c.metrics.ObserveCompactionDurationSeconds(time.Since(start).Seconds())
	c.logger.Infof("compacted %s at seq %d by %s in %s", room.Key(), seq, trigger, time.Since(start))
	return true, nil
}

// Sweep compacts the live rooms whose log reached the threshold. Rooms
// without a live handle are left to their last compaction.
func (c *Compactor) Sweep(ctx context.Context) error {
	keys, err := c.db.FindRoomsAboveThreshold(ctx, c.config.Threshold)
	if err != nil {
		return err
	}

	return fanOut(ctx, c.sem, c.live(keys), func(ctx context.Context, room *rooms.Room) error {
		_, err := c.Compact(ctx, room, TriggerSweep)
		return err
	})
}

// Rewrite writes a fresh snapshot of each live room among the given keys.
// It is used after the retention purge removed the stored state of rooms
// that are still in memory.
func (c *Compactor) Rewrite(ctx context.Context, keys []key.Key) error {
	return fanOut(ctx, c.sem, c.live(keys), func(ctx context.Context, room *rooms.Room) error {
		_, err := c.Compact(ctx, room, TriggerRetention)
		return err
	})
}

// live returns the rooms of the registry among the given keys.
func (c *Compactor) live(keys []key.Key) []*rooms.Room {
	var live []*rooms.Room
	for _, roomKey := range keys {
		if room, ok := c.registry.Find(roomKey); ok {
			live = append(live, room)
		}
	}
	return live
}
