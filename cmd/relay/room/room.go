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

// Package room provides the commands that inspect and maintain the rooms
// kept in a store. They work offline, directly against the store.
package room

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/yorkie-team/relay/internal/validation"
	"github.com/yorkie-team/relay/pkg/document/key"
	"github.com/yorkie-team/relay/server"
	"github.com/yorkie-team/relay/server/backend"
	"github.com/yorkie-team/relay/server/backend/database"
	"github.com/yorkie-team/relay/server/backend/database/fs"
	"github.com/yorkie-team/relay/server/backend/database/mongo"
	"github.com/yorkie-team/relay/server/backend/database/postgres"
	"github.com/yorkie-team/relay/server/backend/database/redis"
)

var (
	// SubCmd represents the room command.
	SubCmd = &cobra.Command{
		Use:   "room",
		Short: "Manage stored rooms",
	}

	flagConfPath string
	output       string

	fsDir                 string
	mongoConnectionURI    string
	mongoRelayDatabase    string
	postgresConnectionURI string
	redisConnectionURI    string
)

// storeConfig returns the store selected by the config file or the flags.
func storeConfig() (*backend.StoreConfig, error) {
	if flagConfPath != "" {
		conf, err := server.NewConfigFromFile(flagConfPath)
		if err != nil {
			return nil, err
		}
		return conf.Store(), nil
	}

	conf := &backend.StoreConfig{}
	switch {
	case fsDir != "":
		conf.FS = &fs.Config{Dir: fsDir}
	case mongoConnectionURI != "":
		conf.Mongo = &mongo.Config{
			ConnectionURI:     mongoConnectionURI,
			ConnectionTimeout: server.DefaultMongoConnectionTimeout.String(),
			RelayDatabase:     mongoRelayDatabase,
			PingTimeout:       server.DefaultMongoPingTimeout.String(),
		}
	case postgresConnectionURI != "":
		conf.Postgres = &postgres.Config{
			ConnectionURI:     postgresConnectionURI,
			ConnectionTimeout: server.DefaultPostgresConnectionTimeout.String(),
		}
	case redisConnectionURI != "":
		conf.Redis = &redis.Config{
			ConnectionURI:     redisConnectionURI,
			ConnectionTimeout: server.DefaultRedisConnectionTimeout.String(),
			KeyPrefix:         server.DefaultRedisKeyPrefix,
		}
	}
	return conf, nil
}

// roomArg accepts exactly one argument that is already a sanitized room key,
// so that operators never address a room the relay would not use.
func roomArg(_ *cobra.Command, args []string) error {
	if len(args) != 1 {
		return errors.New("room is required")
	}
	if err := validation.ValidateValue(args[0], "room_key"); err != nil {
		return fmt.Errorf("invalid room %q: the relay stores it as %q", args[0], key.FromPath(args[0]))
	}
	return nil
}

// dial opens the selected store.
func dial() (database.Database, error) {
	conf, err := storeConfig()
	if err != nil {
		return nil, err
	}
	return conf.Dial()
}

func init() {
	SubCmd.PersistentFlags().StringVarP(&flagConfPath, "config", "c", "", "Config path of the relay")
	SubCmd.PersistentFlags().StringVarP(&output, "output", "o", "", "One of 'yaml' or 'json'.")
	SubCmd.PersistentFlags().StringVar(&fsDir, "fs-dir", "", "Directory of the file system store")
	SubCmd.PersistentFlags().StringVar(&mongoConnectionURI, "mongo-connection-uri", "", "MongoDB's connection URI")
	SubCmd.PersistentFlags().StringVar(
		&mongoRelayDatabase,
		"mongo-database",
		server.DefaultMongoRelayDatabase,
		"Relay's database name in MongoDB",
	)
	SubCmd.PersistentFlags().StringVar(&postgresConnectionURI, "postgres-connection-uri", "", "PostgreSQL's connection URI")
	SubCmd.PersistentFlags().StringVar(&redisConnectionURI, "redis-connection-uri", "", "Redis's connection URI")
}
