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

// Package backend provides the backend implementation of the relay.
// This package is responsible for managing the store, the rooms and the
// maintenance tasks required to run the relay.
package backend

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/yorkie-team/relay/server/backend/background"
	"github.com/yorkie-team/relay/server/backend/database"
	"github.com/yorkie-team/relay/server/backend/database/fs"
	memdb "github.com/yorkie-team/relay/server/backend/database/memory"
	"github.com/yorkie-team/relay/server/backend/database/mongo"
	"github.com/yorkie-team/relay/server/backend/database/postgres"
	"github.com/yorkie-team/relay/server/backend/database/redis"
	"github.com/yorkie-team/relay/server/backend/housekeeping"
	"github.com/yorkie-team/relay/server/backend/sync"
	"github.com/yorkie-team/relay/server/compaction"
	"github.com/yorkie-team/relay/server/logging"
	"github.com/yorkie-team/relay/server/profiling/prometheus"
	"github.com/yorkie-team/relay/server/rooms"
)

// StoreConfig selects the persistence store. At most one section may be set;
// none means the in-memory store.
type StoreConfig struct {
	FS       *fs.Config
	Mongo    *mongo.Config
	Postgres *postgres.Config
	Redis    *redis.Config
}

// Kind returns the name of the selected store.
func (c *StoreConfig) Kind() string {
	switch {
	case c == nil:
		return "memory"
	case c.FS != nil:
		return "fs"
	case c.Mongo != nil:
		return "mongo"
	case c.Postgres != nil:
		return "postgres"
	case c.Redis != nil:
		return "redis"
	default:
		return "memory"
	}
}

// Dial opens the selected store.
func (c *StoreConfig) Dial() (database.Database, error) {
	switch c.Kind() {
	case "fs":
		return fs.Dial(c.FS)
	case "mongo":
		return mongo.Dial(c.Mongo)
	case "postgres":
		return postgres.Dial(c.Postgres)
	case "redis":
		return redis.Dial(c.Redis)
	default:
		return memdb.New()
	}
}

// Backend manages the relay's backend such as the store and the rooms. It
// also runs the compactor and the periodic maintenance tasks.
type Backend struct {
	Config *Config

	// Lockers is used to guard compactions.
	Lockers *sync.LockerManager
	// Background is used to manage background tasks.
	Background *background.Background
	// Housekeeping is used to run the periodic maintenance tasks.
	Housekeeping *housekeeping.Housekeeping

	// Rooms is the registry of the live rooms.
	Rooms *rooms.Registry
	// Compactor folds the update logs of live rooms into snapshots.
	Compactor *compaction.Compactor

	// Metrics is used to expose metrics.
	Metrics *prometheus.Metrics
	// DB is the persistence store.
	DB database.Database
}

// New creates a new instance of Backend.
func New(
	conf *Config,
	compactionConf *compaction.Config,
	housekeepingConf *housekeeping.Config,
	storeConf *StoreConfig,
	metrics *prometheus.Metrics,
) (*Backend, error) {
	// 01. Resolve the hostname used in logs.
	if conf.Hostname == "" {
		hostname, err := os.Hostname()
		if err != nil {
			return nil, fmt.Errorf("os.Hostname: %w", err)
		}
		conf.Hostname = hostname
	}

	// 02. Create the lockers and the background task manager.
	lockers := sync.New()
	bg := background.New(metrics)

	// 03. Create the store. A store that cannot be reached at boot is fatal.
	db, err := storeConf.Dial()
	if err != nil {
		return nil, err
	}

	// 04. Create the room registry and the compactor.
	registry := rooms.NewRegistry(conf.RoomOptions(compactionConf.Threshold), db, bg, metrics)
	compactor := compaction.New(compactionConf, registry, db, lockers, bg, metrics)
	if conf.PersistenceMode == string(rooms.PersistenceModeLog) {
		registry.OnThreshold(compactor.Schedule)
	}

	// 05. Register the maintenance tasks.
	housekeeper := housekeeping.New()
	if err := registerTasks(housekeeper, conf, compactionConf, housekeepingConf, registry, compactor, db); err != nil {
		return nil, errors.Join(err, db.Close())
	}

	logging.DefaultLogger().Infof(
		"backend created: host: %s, store: %s, mode: %s",
		conf.Hostname,
		storeConf.Kind(),
		conf.PersistenceMode,
	)

	return &Backend{
		Config: conf,

		Lockers:      lockers,
		Background:   bg,
		Housekeeping: housekeeper,

		Rooms:     registry,
		Compactor: compactor,

		Metrics: metrics,
		DB:      db,
	}, nil
}

func registerTasks(
	housekeeper *housekeeping.Housekeeping,
	conf *Config,
	compactionConf *compaction.Config,
	housekeepingConf *housekeeping.Config,
	registry *rooms.Registry,
	compactor *compaction.Compactor,
	db database.Database,
) error {
	if err := housekeeper.RegisterTask("flush", conf.ParseFlushInterval(), registry.FlushAll); err != nil {
		return err
	}

	if conf.PersistenceMode == string(rooms.PersistenceModeLog) {
		interval, err := compactionConf.ParseSweepInterval()
		if err != nil {
			return err
		}
		if err := housekeeper.RegisterTask("compaction-sweep", interval, compactor.Sweep); err != nil {
			return err
		}
	}

	period, err := housekeepingConf.ParseRetentionPeriod()
	if err != nil {
		return err
	}
	if period == 0 {
		return nil
	}
	interval, err := housekeepingConf.ParseRetentionInterval()
	if err != nil {
		return err
	}
	return housekeeper.RegisterTask("retention", interval, func(ctx context.Context) error {
		purged, err := db.PurgeOlderThan(ctx, time.Now().Add(-period))
		if err != nil {
			return err
		}
		if len(purged) > 0 {
			logging.From(ctx).Infof("purged %d rooms untouched for %s", len(purged), period)
		}
		return compactor.Rewrite(ctx, purged)
	})
}

// Start starts the backend.
func (b *Backend) Start() error {
	if err := b.Housekeeping.Start(); err != nil {
		return err
	}

	logging.DefaultLogger().Infof("backend started")
	return nil
}

// Shutdown flushes every room and closes all resources of this instance.
func (b *Backend) Shutdown(ctx context.Context) error {
	var errs []error

	if err := b.Housekeeping.Stop(); err != nil {
		errs = append(errs, err)
	}

	if err := b.Rooms.FlushAll(ctx); err != nil {
		errs = append(errs, fmt.Errorf("flush rooms: %w", err))
	}
	b.Rooms.Close()
	b.Background.Close()

	if err := b.DB.Close(); err != nil {
		errs = append(errs, err)
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}

	logging.DefaultLogger().Infof("backend stopped")
	return nil
}
