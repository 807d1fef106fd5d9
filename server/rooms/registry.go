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

package rooms

import (
	"context"
	"errors"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/yorkie-team/relay/pkg/cmap"
	"github.com/yorkie-team/relay/pkg/document/key"
	"github.com/yorkie-team/relay/server/backend/background"
	"github.com/yorkie-team/relay/server/backend/database"
	"github.com/yorkie-team/relay/server/logging"
	"github.com/yorkie-team/relay/server/profiling/prometheus"
)

// flushConcurrency bounds the rooms flushed at the same time by FlushAll.
const flushConcurrency = 16

// Registry holds the live rooms of the relay. At most one Room exists per
// key at a time. Rooms are never evicted.
type Registry struct {
	options *Options
	db      database.Database
	bg      *background.Background
	metrics *prometheus.Metrics
	logger  logging.Logger

	rooms       *cmap.Map[key.Key, *Room]
	onThreshold func(*Room)
}

// NewRegistry creates a new instance of Registry.
func NewRegistry(
	options *Options,
	db database.Database,
	bg *background.Background,
	metrics *prometheus.Metrics,
) *Registry {
	return &Registry{
		options: options,
		db:      db,
		bg:      bg,
		metrics: metrics,
		logger:  logging.New("RGST"),
		rooms:   cmap.New[key.Key, *Room](),
	}
}

// OnThreshold sets the function called when the log of a room reaches the
// compaction threshold. It must be set before the first room is created and
// must not block.
func (r *Registry) OnThreshold(fn func(*Room)) {
	r.onThreshold = fn
}

// Get returns the room of the given key. A room seen for the first time is
// created and loaded from the store in the background; callers wait with
// Room.WaitLoaded.
func (r *Registry) Get(roomKey key.Key) *Room {
	room, created := r.rooms.GetOrInsert(roomKey, func() *Room {
		return newRoom(roomKey, r.options, r.db, r.bg, r.metrics, r.onThreshold)
	})
	if !created {
		return room
	}

	r.metrics.SetRooms(r.rooms.Len())
	if !r.bg.AttachGoroutine(func(ctx context.Context) {
		r.load(ctx, room)
	}, "load-room") {
		room.loadErr = ErrShuttingDown
		close(room.loaded)
		r.remove(room)
	}
	return room
}

func (r *Registry) load(ctx context.Context, room *Room) {
	ctx, cancel := context.WithTimeout(ctx, r.options.storeTimeout())
	defer cancel()

	start := time.Now()
	if err := room.load(ctx); err != nil {
		r.remove(room)
		r.metrics.AddRoomLoad("failure")
		logging.LogError(r.logger, "load "+room.key.String(), time.Since(start), err)
		return
	}
	r.metrics.AddRoomLoad("success")
}

// remove drops the room so that the next access creates a fresh one.
func (r *Registry) remove(room *Room) {
	if r.rooms.CompareAndDelete(room.key, room) {
		room.close()
		r.metrics.SetRooms(r.rooms.Len())
	}
}

// Find returns the live room of the given key without creating it.
func (r *Registry) Find(roomKey key.Key) (*Room, bool) {
	return r.rooms.Get(roomKey)
}

// All returns every live room.
func (r *Registry) All() []*Room {
	return r.rooms.Values()
}

// Len returns the number of live rooms.
func (r *Registry) Len() int {
	return r.rooms.Len()
}

// FlushAll flushes every live room and returns the joined errors of the rooms
// that could not be flushed.
func (r *Registry) FlushAll(ctx context.Context) error {
	var (
		mu   sync.Mutex
		errs []error
	)

	g := errgroup.Group{}
	g.SetLimit(flushConcurrency)
	for _, room := range r.All() {
		room := room
		g.Go(func() error {
			if err := room.Flush(ctx); err != nil {
				mu.Lock()
				errs = append(errs, err)
				mu.Unlock()
			}
			return nil
		})
	}
	_ = g.Wait()

	return errors.Join(errs...)
}

// Close stops the timers of every room.
func (r *Registry) Close() {
	for _, room := range r.All() {
		room.close()
	}
}
