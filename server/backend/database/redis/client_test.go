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

package redis_test

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"

	"github.com/yorkie-team/relay/pkg/document/key"
	"github.com/yorkie-team/relay/server/backend/database"
	"github.com/yorkie-team/relay/server/backend/database/redis"
	"github.com/yorkie-team/relay/server/backend/database/testcases"
)

func setupTestClient(t *testing.T) (*redis.Client, *miniredis.Miniredis) {
	s := miniredis.RunT(t)

	config := &redis.Config{
		ConnectionURI:     "redis://" + s.Addr(),
		ConnectionTimeout: "5s",
		KeyPrefix:         "relay-test:",
	}
	assert.NoError(t, config.Validate())

	cli, err := redis.Dial(config)
	assert.NoError(t, err)

	return cli, s
}

func TestConfig(t *testing.T) {
	t.Run("validate test", func(t *testing.T) {
		config := &redis.Config{
			ConnectionURI:     "redis://localhost:6379",
			ConnectionTimeout: "5s",
		}
		assert.NoError(t, config.Validate())

		config.ConnectionTimeout = "5"
		assert.Error(t, config.Validate())

		config.ConnectionTimeout = "5s"
		config.ConnectionURI = ""
		assert.ErrorIs(t, config.Validate(), redis.ErrEmptyConnectionURI)
	})
}

func TestClient(t *testing.T) {
	cli, _ := setupTestClient(t)
	defer func() {
		assert.NoError(t, cli.Close())
	}()

	testcases.RunAll(t, cli)
}

func TestClientLayout(t *testing.T) {
	t.Run("keys are namespaced by the prefix test", func(t *testing.T) {
		cli, s := setupTestClient(t)
		defer func() {
			assert.NoError(t, cli.Close())
		}()

		ctx := context.Background()
		roomKey := key.Key("room-1")
		assert.NoError(t, cli.AppendUpdate(ctx, database.NewUpdateInfo(roomKey, 1, []byte("u1"))))

		assert.True(t, s.Exists("relay-test:rooms"))
		assert.True(t, s.Exists("relay-test:room:room-1:payloads"))
		assert.Equal(t, "u1", s.HGet("relay-test:room:room-1:payloads", "1"))

		assert.NoError(t, cli.DeleteRoom(ctx, roomKey))
		assert.False(t, s.Exists("relay-test:room:room-1:payloads"))
	})

	t.Run("store outage is reported as unavailable test", func(t *testing.T) {
		cli, s := setupTestClient(t)
		defer func() {
			_ = cli.Close()
		}()

		s.Close()

		err := cli.AppendUpdate(context.Background(), database.NewUpdateInfo("room-1", 1, []byte("u1")))
		assert.ErrorIs(t, err, database.ErrStoreUnavailable)
	})
}
