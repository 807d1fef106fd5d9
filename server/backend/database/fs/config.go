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

package fs

import (
	"errors"
	"fmt"
)

// ErrEmptyDir is returned when the persistence directory is empty.
var ErrEmptyDir = errors.New("persistence directory is empty")

// Config is the configuration for creating a DB instance.
type Config struct {
	// Dir is the directory holding the files of every room.
	Dir string `yaml:"Dir"`
}

// Validate returns an error if the provided Config is invalidated.
func (c *Config) Validate() error {
	if c.Dir == "" {
		return fmt.Errorf(`invalid argument for "--fs-dir" flag: %w`, ErrEmptyDir)
	}

	return nil
}
