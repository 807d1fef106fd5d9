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

package compaction

import (
	"fmt"
	"time"

	"github.com/yorkie-team/relay/internal/validation"
)

// Config is the configuration of the compactor.
type Config struct {
	// Threshold is the number of log entries of a room that triggers a
	// compaction.
	Threshold int `yaml:"Threshold" validate:"min=1"`

	// SweepInterval is the time between sweeps of the rooms above the
	// threshold.
	SweepInterval string `yaml:"SweepInterval" validate:"required,duration"`
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if err := validation.ValidateStruct(c); err != nil {
		return fmt.Errorf(`invalid compaction config: %w`, err)
	}

	interval, err := c.ParseSweepInterval()
	if err != nil {
		return fmt.Errorf(`invalid argument %s for "--compaction-sweep-interval" flag: %w`, c.SweepInterval, err)
	}
	if interval <= 0 {
		return fmt.Errorf(`invalid argument %s for "--compaction-sweep-interval" flag`, c.SweepInterval)
	}

	return nil
}

// ParseSweepInterval parses the sweep interval.
func (c *Config) ParseSweepInterval() (time.Duration, error) {
	interval, err := time.ParseDuration(c.SweepInterval)
	if err != nil {
		return 0, fmt.Errorf("parse sweep interval %s: %w", c.SweepInterval, err)
	}

	return interval, nil
}
