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

// Package housekeeping is the package for housekeeping service. It runs the
// periodic maintenance tasks of the relay: the compaction sweep, the flush
// of active rooms and the retention purge of abandoned rooms.
package housekeeping

import (
	"fmt"
	"time"
)

// Config is the configuration for the housekeeping service.
type Config struct {
	// RetentionPeriod is how long a room may stay untouched in storage
	// before it is purged. "0s" disables the purge.
	RetentionPeriod string `yaml:"RetentionPeriod"`

	// RetentionInterval is the time between retention purges.
	RetentionInterval string `yaml:"RetentionInterval"`
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	period, err := time.ParseDuration(c.RetentionPeriod)
	if err != nil {
		return fmt.Errorf(
			`invalid argument %s for "--retention-period" flag: %w`,
			c.RetentionPeriod,
			err,
		)
	}
	if period < 0 {
		return fmt.Errorf(`invalid argument %s for "--retention-period" flag`, c.RetentionPeriod)
	}

	interval, err := time.ParseDuration(c.RetentionInterval)
	if err != nil {
		return fmt.Errorf(
			`invalid argument %s for "--retention-interval" flag: %w`,
			c.RetentionInterval,
			err,
		)
	}
	if interval <= 0 {
		return fmt.Errorf(`invalid argument %s for "--retention-interval" flag`, c.RetentionInterval)
	}

	return nil
}

// ParseRetentionPeriod parses the retention period.
func (c *Config) ParseRetentionPeriod() (time.Duration, error) {
	period, err := time.ParseDuration(c.RetentionPeriod)
	if err != nil {
		return 0, fmt.Errorf("parse retention period %s: %w", c.RetentionPeriod, err)
	}

	return period, nil
}

// ParseRetentionInterval parses the retention interval.
func (c *Config) ParseRetentionInterval() (time.Duration, error) {
	interval, err := time.ParseDuration(c.RetentionInterval)
	if err != nil {
		return 0, fmt.Errorf("parse retention interval %s: %w", c.RetentionInterval, err)
	}

	return interval, nil
}
