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

// Package profiling provides the profiling server of the relay. It exposes
// the Prometheus metrics and, when enabled, the pprof endpoints.
package profiling

import (
	"errors"
	"fmt"

	"github.com/yorkie-team/relay/internal/validation"
)

// ErrInvalidProfilingPort is returned when the port is out of range.
var ErrInvalidProfilingPort = errors.New("invalid port number for profiling server")

// Config is the configuration of the profiling server.
type Config struct {
	// Port serves /metrics and, if enabled, /debug/pprof.
	Port int `yaml:"Port" validate:"min=1,max=65535"`

	// EnablePprof registers the pprof handlers.
	EnablePprof bool `yaml:"EnablePprof"`
}

// Validate validates the port number.
func (c *Config) Validate() error {
	if err := validation.ValidateStruct(c); err != nil {
		return fmt.Errorf("--profiling-port %d: %w: %w", c.Port, ErrInvalidProfilingPort, err)
	}
	return nil
}

// Addr returns the listen address of the profiling server.
func (c *Config) Addr() string {
	return fmt.Sprintf(":%d", c.Port)
}
