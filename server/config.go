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

package server

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v2"

	"github.com/yorkie-team/relay/server/backend"
	"github.com/yorkie-team/relay/server/backend/database/fs"
	"github.com/yorkie-team/relay/server/backend/database/mongo"
	"github.com/yorkie-team/relay/server/backend/database/postgres"
	"github.com/yorkie-team/relay/server/backend/database/redis"
	"github.com/yorkie-team/relay/server/backend/housekeeping"
	"github.com/yorkie-team/relay/server/compaction"
	"github.com/yorkie-team/relay/server/profiling"
	"github.com/yorkie-team/relay/server/rpc"
)

// Below are the values of the default values of relay config.
const (
	DefaultRPCPort           = 11101
	DefaultRPCMaxConnections = 0
	DefaultRPCMaxMessageSize = 4 << 20
	DefaultRPCPingInterval   = 30 * time.Second
	DefaultRPCSendQueueSize  = 256

	DefaultProfilingPort = 11102

	DefaultPersistenceMode  = "log"
	DefaultSnapshotDebounce = time.Second
	DefaultFlushInterval    = 30 * time.Second
	DefaultStoreTimeout     = 10 * time.Second

	DefaultCompactionThreshold     = 100
	DefaultCompactionSweepInterval = 5 * time.Minute

	DefaultHousekeepingRetentionPeriod   = 720 * time.Hour
	DefaultHousekeepingRetentionInterval = 24 * time.Hour

	DefaultMongoConnectionURI                = "mongodb://localhost:27017"
	DefaultMongoConnectionTimeout            = 5 * time.Second
	DefaultMongoPingTimeout                  = 5 * time.Second
	DefaultMongoRelayDatabase                = "relay"
	DefaultMongoMonitoringSlowQueryThreshold = 100 * time.Millisecond

	DefaultPostgresConnectionTimeout = 5 * time.Second
	DefaultRedisConnectionTimeout    = 5 * time.Second
	DefaultRedisKeyPrefix            = "relay"

	DefaultHostname = ""
)

// Config is the configuration for creating a relay instance.
type Config struct {
	RPC          *rpc.Config          `yaml:"RPC"`
	Profiling    *profiling.Config    `yaml:"Profiling"`
	Housekeeping *housekeeping.Config `yaml:"Housekeeping"`
	Backend      *backend.Config      `yaml:"Backend"`
	Compaction   *compaction.Config   `yaml:"Compaction"`

	// Store sections. At most one is set; none selects the in-memory store.
	FS       *fs.Config       `yaml:"FS"`
	Mongo    *mongo.Config    `yaml:"Mongo"`
	Postgres *postgres.Config `yaml:"Postgres"`
	Redis    *redis.Config    `yaml:"Redis"`
}

// NewConfig returns a Config struct that contains reasonable defaults
// for most of the configurations.
func NewConfig() *Config {
	return newConfig(DefaultRPCPort, DefaultProfilingPort)
}

// NewConfigFromFile returns a Config struct for the given conf file.
func NewConfigFromFile(path string) (*Config, error) {
	conf := &Config{}
	bytes, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	if err = yaml.Unmarshal(bytes, conf); err != nil {
		return nil, fmt.Errorf("unmarshal config file: %w", err)
	}

	conf.ensureDefaultValue()
	return conf, nil
}

// RPCAddr returns the RPC address.
func (c *Config) RPCAddr() string {
	return fmt.Sprintf("localhost:%d", c.RPC.Port)
}

// Store returns the store sections of the config.
func (c *Config) Store() *backend.StoreConfig {
	return &backend.StoreConfig{
		FS:       c.FS,
		Mongo:    c.Mongo,
		Postgres: c.Postgres,
		Redis:    c.Redis,
	}
}

// Validate returns an error if the provided Config is invalidated.
func (c *Config) Validate() error {
	if err := c.RPC.Validate(); err != nil {
		return err
	}

	if err := c.Profiling.Validate(); err != nil {
		return err
	}

	if err := c.Housekeeping.Validate(); err != nil {
		return err
	}

	if err := c.Backend.Validate(); err != nil {
		return err
	}

	if err := c.Compaction.Validate(); err != nil {
		return err
	}

	stores := 0
	for _, section := range []interface{ Validate() error }{c.FS, c.Mongo, c.Postgres, c.Redis} {
		if !isSet(section) {
			continue
		}
		stores++
		if err := section.Validate(); err != nil {
			return err
		}
	}
	if stores > 1 {
		return fmt.Errorf("at most one store can be configured, given %d", stores)
	}

	return nil
}

// isSet reports whether the store section is present. Typed nil pointers
// stored in the interface count as absent.
func isSet(section interface{ Validate() error }) bool {
	switch s := section.(type) {
	case *fs.Config:
		return s != nil
	case *mongo.Config:
		return s != nil
	case *postgres.Config:
		return s != nil
	case *redis.Config:
		return s != nil
	default:
		return section != nil
	}
}

// ensureDefaultValue sets the value of the option to which the default value
// should be applied when the user does not input it.
func (c *Config) ensureDefaultValue() {
	defaults := newConfig(DefaultRPCPort, DefaultProfilingPort)
	if c.RPC == nil {
		c.RPC = defaults.RPC
	}
	if c.Profiling == nil {
		c.Profiling = defaults.Profiling
	}
	if c.Housekeeping == nil {
		c.Housekeeping = defaults.Housekeeping
	}
	if c.Backend == nil {
		c.Backend = defaults.Backend
	}
	if c.Compaction == nil {
		c.Compaction = defaults.Compaction
	}

	if c.RPC.Port == 0 {
		c.RPC.Port = DefaultRPCPort
	}
	if c.RPC.MaxMessageSize == 0 {
		c.RPC.MaxMessageSize = DefaultRPCMaxMessageSize
	}
	if c.RPC.PingInterval == "" {
		c.RPC.PingInterval = DefaultRPCPingInterval.String()
	}
	if c.RPC.SendQueueSize == 0 {
		c.RPC.SendQueueSize = DefaultRPCSendQueueSize
	}

	if c.Profiling.Port == 0 {
		c.Profiling.Port = DefaultProfilingPort
	}

	if c.Housekeeping.RetentionPeriod == "" {
		c.Housekeeping.RetentionPeriod = DefaultHousekeepingRetentionPeriod.String()
	}
	if c.Housekeeping.RetentionInterval == "" {
		c.Housekeeping.RetentionInterval = DefaultHousekeepingRetentionInterval.String()
	}

	if c.Backend.PersistenceMode == "" {
		c.Backend.PersistenceMode = DefaultPersistenceMode
	}
	if c.Backend.SnapshotDebounce == "" {
		c.Backend.SnapshotDebounce = DefaultSnapshotDebounce.String()
	}
	if c.Backend.FlushInterval == "" {
		c.Backend.FlushInterval = DefaultFlushInterval.String()
	}
	if c.Backend.StoreTimeout == "" {
		c.Backend.StoreTimeout = DefaultStoreTimeout.String()
	}

	if c.Compaction.Threshold == 0 {
		c.Compaction.Threshold = DefaultCompactionThreshold
	}
	if c.Compaction.SweepInterval == "" {
		c.Compaction.SweepInterval = DefaultCompactionSweepInterval.String()
	}

	if c.Mongo != nil {
		if c.Mongo.ConnectionURI == "" {
			c.Mongo.ConnectionURI = DefaultMongoConnectionURI
		}
		if c.Mongo.ConnectionTimeout == "" {
			c.Mongo.ConnectionTimeout = DefaultMongoConnectionTimeout.String()
		}
		if c.Mongo.RelayDatabase == "" {
			c.Mongo.RelayDatabase = DefaultMongoRelayDatabase
		}
		if c.Mongo.PingTimeout == "" {
			c.Mongo.PingTimeout = DefaultMongoPingTimeout.String()
		}
		if c.Mongo.MonitoringEnabled && c.Mongo.MonitoringSlowQueryThreshold == "" {
			c.Mongo.MonitoringSlowQueryThreshold = DefaultMongoMonitoringSlowQueryThreshold.String()
		}
	}

	if c.Postgres != nil && c.Postgres.ConnectionTimeout == "" {
		c.Postgres.ConnectionTimeout = DefaultPostgresConnectionTimeout.String()
	}

	if c.Redis != nil {
		if c.Redis.ConnectionTimeout == "" {
			c.Redis.ConnectionTimeout = DefaultRedisConnectionTimeout.String()
		}
		if c.Redis.KeyPrefix == "" {
			c.Redis.KeyPrefix = DefaultRedisKeyPrefix
		}
	}
}

func newConfig(port int, profilingPort int) *Config {
	return &Config{
		RPC: &rpc.Config{
			Port:           port,
			MaxConnections: DefaultRPCMaxConnections,
			MaxMessageSize: DefaultRPCMaxMessageSize,
			PingInterval:   DefaultRPCPingInterval.String(),
			SendQueueSize:  DefaultRPCSendQueueSize,
		},
		Profiling: &profiling.Config{
			Port: profilingPort,
		},
		Housekeeping: &housekeeping.Config{
			RetentionPeriod:   DefaultHousekeepingRetentionPeriod.String(),
			RetentionInterval: DefaultHousekeepingRetentionInterval.String(),
		},
		Backend: &backend.Config{
			PersistenceMode:  DefaultPersistenceMode,
			SnapshotDebounce: DefaultSnapshotDebounce.String(),
			FlushInterval:    DefaultFlushInterval.String(),
			StoreTimeout:     DefaultStoreTimeout.String(),
			Hostname:         DefaultHostname,
		},
		Compaction: &compaction.Config{
			Threshold:     DefaultCompactionThreshold,
			SweepInterval: DefaultCompactionSweepInterval.String(),
		},
	}
}
