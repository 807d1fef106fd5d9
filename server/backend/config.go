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

package backend

import (
	"fmt"
	"os"
	"time"

	"github.com/yorkie-team/relay/internal/validation"
	"github.com/yorkie-team/relay/server/rooms"
)

// Config is the configuration for creating a Backend instance.
type Config struct {
	// PersistenceMode is how rooms are persisted: "log" appends every change
	// and compacts the log, "snapshot" writes debounced full snapshots.
	PersistenceMode string `yaml:"PersistenceMode" validate:"oneof=log snapshot"`

	// SnapshotDebounce is the quiet period before a snapshot is written in
	// snapshot mode.
	SnapshotDebounce string `yaml:"SnapshotDebounce" validate:"required,duration"`

	// FlushInterval is the interval of the periodic flush of every room.
	FlushInterval string `yaml:"FlushInterval" validate:"required,duration"`

	// StoreTimeout bounds every store operation issued by a room.
	StoreTimeout string `yaml:"StoreTimeout" validate:"required,duration"`

	// Hostname is the hostname of the relay. It is used in logs.
	Hostname string `yaml:"Hostname"`
}

// Validate validates this config.
func (c *Config) Validate() error {
	if err := validation.ValidateStruct(c); err != nil {
		return fmt.Errorf("invalid backend config: %w", err)
	}

	for flag, value := range map[string]string{
		"--snapshot-debounce": c.SnapshotDebounce,
		"--flush-interval":    c.FlushInterval,
		"--store-timeout":     c.StoreTimeout,
	} {
		d, err := time.ParseDuration(value)
		if err != nil {
			return fmt.Errorf(`invalid argument "%s" for "%s" flag: %w`, value, flag, err)
		}
		if d <= 0 {
			return fmt.Errorf(`invalid argument "%s" for "%s" flag: must be positive`, value, flag)
		}
	}

	return nil
}

// ParseSnapshotDebounce returns the snapshot debounce.
func (c *Config) ParseSnapshotDebounce() time.Duration {
	result, err := time.ParseDuration(c.SnapshotDebounce)
	if err != nil {
		fmt.Fprintf(os.Stderr, "parse snapshot debounce: %v\n", err)
		os.Exit(1)
	}

	return result
}

// ParseFlushInterval returns the flush interval.
func (c *Config) ParseFlushInterval() time.Duration {
	result, err := time.ParseDuration(c.FlushInterval)
	if err != nil {
		fmt.Fprintf(os.Stderr, "parse flush interval: %v\n", err)
		os.Exit(1)
	}

	return result
}

// ParseStoreTimeout returns the store timeout.
func (c *Config) ParseStoreTimeout() time.Duration {
	result, err := time.ParseDuration(c.StoreTimeout)
	if err != nil {
		fmt.Fprintf(os.Stderr, "parse store timeout: %v\n", err)
		os.Exit(1)
	}

	return result
}

// RoomOptions returns the options of rooms.
func (c *Config) RoomOptions(compactionThreshold int) *rooms.Options {
	return &rooms.Options{
		PersistenceMode:     rooms.PersistenceMode(c.PersistenceMode),
		SnapshotDebounce:    c.ParseSnapshotDebounce(),
		CompactionThreshold: compactionThreshold,
		StoreTimeout:        c.ParseStoreTimeout(),
	}
}
