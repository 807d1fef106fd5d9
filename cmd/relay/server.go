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

package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/yorkie-team/relay/server"
	"github.com/yorkie-team/relay/server/backend/database/fs"
	"github.com/yorkie-team/relay/server/backend/database/mongo"
	"github.com/yorkie-team/relay/server/backend/database/postgres"
	"github.com/yorkie-team/relay/server/backend/database/redis"
	"github.com/yorkie-team/relay/server/logging"
)

var (
	gracefulTimeout = 30 * time.Second
)

var (
	flagConfPath string
	flagLogLevel string

	pingInterval      time.Duration
	snapshotDebounce  time.Duration
	flushInterval     time.Duration
	storeTimeout      time.Duration
	sweepInterval     time.Duration
	retentionPeriod   time.Duration
	retentionInterval time.Duration

	fsDir string

	mongoConnectionURI     string
	mongoConnectionTimeout time.Duration
	mongoRelayDatabase     string
	mongoPingTimeout       time.Duration

	postgresConnectionURI string
	redisConnectionURI    string

	conf = server.NewConfig()
)

func newServerCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "server [options]",
		Short: "Start relay server",
		RunE: func(cmd *cobra.Command, args []string) error {
			conf.RPC.PingInterval = pingInterval.String()
			conf.Backend.SnapshotDebounce = snapshotDebounce.String()
			conf.Backend.FlushInterval = flushInterval.String()
			conf.Backend.StoreTimeout = storeTimeout.String()
			conf.Compaction.SweepInterval = sweepInterval.String()
			conf.Housekeeping.RetentionPeriod = retentionPeriod.String()
			conf.Housekeeping.RetentionInterval = retentionInterval.String()

			if fsDir != "" {
				conf.FS = &fs.Config{Dir: fsDir}
			}
			if mongoConnectionURI != "" {
				conf.Mongo = &mongo.Config{
					ConnectionURI:     mongoConnectionURI,
					ConnectionTimeout: mongoConnectionTimeout.String(),
					RelayDatabase:     mongoRelayDatabase,
					PingTimeout:       mongoPingTimeout.String(),
				}
			}
			if postgresConnectionURI != "" {
				conf.Postgres = &postgres.Config{
					ConnectionURI:     postgresConnectionURI,
					ConnectionTimeout: server.DefaultPostgresConnectionTimeout.String(),
				}
			}
			if redisConnectionURI != "" {
				conf.Redis = &redis.Config{
					ConnectionURI:     redisConnectionURI,
					ConnectionTimeout: server.DefaultRedisConnectionTimeout.String(),
					KeyPrefix:         server.DefaultRedisKeyPrefix,
				}
			}

			// If config file is given, command-line arguments will be overwritten.
			if flagConfPath != "" {
				parsed, err := server.NewConfigFromFile(flagConfPath)
				if err != nil {
					return err
				}
				conf = parsed
			}

			if err := logging.SetLogLevel(flagLogLevel); err != nil {
				return err
			}

			r, err := server.New(conf)
			if err != nil {
				return err
			}

			if err := r.Start(); err != nil {
				return err
			}

			if code := handleSignal(r); code != 0 {
				return fmt.Errorf("exit code: %d", code)
			}

			return nil
		},
	}
}

// handleSignal waits for a signal and shuts the relay down. SIGINT and
// SIGTERM flush every room before the process exits; a second signal exits
// right away.
func handleSignal(r *server.Relay) int {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)

	var sig os.Signal
	select {
	case s := <-sigCh:
		sig = s
	case <-r.ShutdownCh():
		// relay is already shutdown
		return 0
	}

	graceful := false
	if sig == syscall.SIGINT || sig == syscall.SIGTERM {
		graceful = true
	}
	logging.DefaultLogger().Infof("received %s, shutting down", sig)

	errCh := make(chan error, 1)
	go func() {
		errCh <- r.Shutdown(graceful)
	}()

	select {
	case <-sigCh:
		return 1
	case <-time.After(gracefulTimeout):
		logging.DefaultLogger().Errorf("shutdown did not finish in %s", gracefulTimeout)
		return 1
	case err := <-errCh:
		if err != nil {
			logging.DefaultLogger().Errorf("shutdown: %v", err)
			return 1
		}
		return 0
	}
}

func init() {
	cmd := newServerCmd()
	cmd.Flags().StringVarP(
		&flagConfPath,
		"config",
		"c",
		"",
		"Config path",
	)
	cmd.Flags().StringVarP(
		&flagLogLevel,
		"log-level",
		"l",
		"info",
		"Log level: debug, info, warn, error, panic, fatal",
	)
	cmd.Flags().IntVar(
		&conf.RPC.Port,
		"rpc-port",
		server.DefaultRPCPort,
		"RPC port",
	)
	cmd.Flags().StringVar(
		&conf.RPC.CertFile,
		"rpc-cert-file",
		"",
		"RPC certification file's path",
	)
	cmd.Flags().StringVar(
		&conf.RPC.KeyFile,
		"rpc-key-file",
		"",
		"RPC key file's path",
	)
	cmd.Flags().IntVar(
		&conf.RPC.MaxConnections,
		"rpc-max-connections",
		server.DefaultRPCMaxConnections,
		"Maximum number of concurrent connections, 0 is unlimited.",
	)
	cmd.Flags().Int64Var(
		&conf.RPC.MaxMessageSize,
		"rpc-max-message-size",
		server.DefaultRPCMaxMessageSize,
		"Maximum frame size in bytes the server will accept.",
	)
	cmd.Flags().DurationVar(
		&pingInterval,
		"rpc-ping-interval",
		server.DefaultRPCPingInterval,
		"Interval of keepalive pings.",
	)
	cmd.Flags().IntVar(
		&conf.RPC.SendQueueSize,
		"rpc-send-queue-size",
		server.DefaultRPCSendQueueSize,
		"Number of frames buffered per connection before it is dropped.",
	)
	cmd.Flags().StringSliceVar(
		&conf.RPC.AllowedOrigins,
		"rpc-allowed-origins",
		nil,
		"Origins allowed to connect, all when empty.",
	)
	cmd.Flags().IntVar(
		&conf.Profiling.Port,
		"profiling-port",
		server.DefaultProfilingPort,
		"Profiling port",
	)
	cmd.Flags().BoolVar(
		&conf.Profiling.EnablePprof,
		"enable-pprof",
		false,
		"Enable runtime profiling data via HTTP server.",
	)
	cmd.Flags().StringVar(
		&conf.Backend.PersistenceMode,
		"persistence-mode",
		server.DefaultPersistenceMode,
		"Persistence mode: log appends every update, snapshot writes debounced snapshots.",
	)
	cmd.Flags().DurationVar(
		&snapshotDebounce,
		"snapshot-debounce",
		server.DefaultSnapshotDebounce,
		"Quiet period before a snapshot is written in snapshot mode.",
	)
	cmd.Flags().DurationVar(
		&flushInterval,
		"flush-interval",
		server.DefaultFlushInterval,
		"Interval of the periodic flush of every room.",
	)
	cmd.Flags().DurationVar(
		&storeTimeout,
		"store-timeout",
		server.DefaultStoreTimeout,
		"Timeout of every store operation.",
	)
	cmd.Flags().IntVar(
		&conf.Compaction.Threshold,
		"compaction-threshold",
		server.DefaultCompactionThreshold,
		"Number of log entries of a room that triggers a compaction.",
	)
	cmd.Flags().DurationVar(
		&sweepInterval,
		"compaction-sweep-interval",
		server.DefaultCompactionSweepInterval,
		"Interval of the sweep compacting rooms above the threshold.",
	)
	cmd.Flags().DurationVar(
		&retentionPeriod,
		"housekeeping-retention-period",
		server.DefaultHousekeepingRetentionPeriod,
		"Rooms untouched for longer are purged, 0 keeps rooms forever.",
	)
	cmd.Flags().DurationVar(
		&retentionInterval,
		"housekeeping-retention-interval",
		server.DefaultHousekeepingRetentionInterval,
		"Interval of the retention purge.",
	)
	cmd.Flags().StringVar(
		&fsDir,
		"fs-dir",
		"",
		"Directory of the file system store",
	)
	cmd.Flags().StringVar(
		&mongoConnectionURI,
		"mongo-connection-uri",
		"",
		"MongoDB's connection URI",
	)
	cmd.Flags().DurationVar(
		&mongoConnectionTimeout,
		"mongo-connection-timeout",
		server.DefaultMongoConnectionTimeout,
		"Mongo DB's connection timeout",
	)
	cmd.Flags().StringVar(
		&mongoRelayDatabase,
		"mongo-database",
		server.DefaultMongoRelayDatabase,
		"Relay's database name in MongoDB",
	)
	cmd.Flags().DurationVar(
		&mongoPingTimeout,
		"mongo-ping-timeout",
		server.DefaultMongoPingTimeout,
		"Mongo DB's ping timeout",
	)
	cmd.Flags().StringVar(
		&postgresConnectionURI,
		"postgres-connection-uri",
		"",
		"PostgreSQL's connection URI",
	)
	cmd.Flags().StringVar(
		&redisConnectionURI,
		"redis-connection-uri",
		"",
		"Redis's connection URI",
	)
	cmd.Flags().StringVar(
		&conf.Backend.Hostname,
		"hostname",
		server.DefaultHostname,
		"Relay Server Hostname",
	)

	rootCmd.AddCommand(cmd)
}
