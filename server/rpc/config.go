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

package rpc

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/yorkie-team/relay/internal/validation"
)

var (
	// ErrInvalidRPCPort occurs when the port in the config is invalid.
	ErrInvalidRPCPort = errors.New("invalid port number for RPC server")
	// ErrInvalidCertFile occurs when the certificate file is invalid.
	ErrInvalidCertFile = errors.New("invalid cert file for RPC server")
	// ErrInvalidKeyFile occurs when the key file is invalid.
	ErrInvalidKeyFile = errors.New("invalid key file for RPC server")
	// ErrInvalidPingInterval occurs when the ping interval is invalid.
	ErrInvalidPingInterval = errors.New("invalid ping interval for RPC server")
)

// Config is the configuration for creating a Server instance.
type Config struct {
	// Port is the port number for the RPC server.
	Port int `yaml:"Port"`

	// CertFile is the path to the certificate file.
	CertFile string `yaml:"CertFile"`

	// KeyFile is the path to the key file.
	KeyFile string `yaml:"KeyFile"`

	// MaxConnections is the maximum number of concurrent connections. Zero
	// means unlimited.
	MaxConnections int `yaml:"MaxConnections" validate:"min=0"`

	// MaxMessageSize is the maximum size of a frame in bytes. Larger frames
	// close the connection.
	MaxMessageSize int64 `yaml:"MaxMessageSize" validate:"min=1"`

	// PingInterval is the interval of the pings sent to keep connections
	// alive. A connection that does not answer within two intervals is
	// closed.
	PingInterval string `yaml:"PingInterval"`

	// SendQueueSize is the number of frames buffered for a connection. A
	// connection whose queue is full is dropped. It must hold at least the
	// two handshake frames.
	SendQueueSize int `yaml:"SendQueueSize" validate:"min=2"`

	// AllowedOrigins are the origins allowed to connect. Empty allows every
	// origin.
	AllowedOrigins []string `yaml:"AllowedOrigins"`
}

// Validate validates the port number, the limits and the files for
// certification.
func (c *Config) Validate() error {
	if c.Port < 1 || 65535 < c.Port {
		return fmt.Errorf("must be between 1 and 65535, given %d: %w", c.Port, ErrInvalidRPCPort)
	}

	// when specific cert or key file are configured
	if c.CertFile != "" {
		if _, err := os.Stat(c.CertFile); err != nil {
			return fmt.Errorf("%s: %w", c.CertFile, ErrInvalidCertFile)
		}
	}

	if c.KeyFile != "" {
		if _, err := os.Stat(c.KeyFile); err != nil {
			return fmt.Errorf("%s: %w", c.KeyFile, ErrInvalidKeyFile)
		}
	}

	if interval, err := time.ParseDuration(c.PingInterval); err != nil || interval <= 0 {
		return fmt.Errorf("%s: %w", c.PingInterval, ErrInvalidPingInterval)
	}

	if err := validation.ValidateStruct(c); err != nil {
		return fmt.Errorf("invalid rpc config: %w", err)
	}

	return nil
}

// ParsePingInterval returns the ping interval.
func (c *Config) ParsePingInterval() time.Duration {
	result, err := time.ParseDuration(c.PingInterval)
	if err != nil {
		fmt.Fprintf(os.Stderr, "parse ping interval: %v\n", err)
		os.Exit(1)
	}

	return result
}
