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

package postgres_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/yorkie-team/relay/server/backend/database/postgres"
	"github.com/yorkie-team/relay/server/backend/database/testcases"
	"github.com/yorkie-team/relay/test/helper"
)

func TestConfig(t *testing.T) {
	t.Run("validate test", func(t *testing.T) {
		config := &postgres.Config{
			ConnectionURI:     "postgres://relay@localhost:5432/relay",
			ConnectionTimeout: "5s",
		}
		assert.NoError(t, config.Validate())

		config.ConnectionTimeout = "5"
		assert.Error(t, config.Validate())

		config.ConnectionTimeout = "5s"
		config.MaxConns = -1
		assert.Error(t, config.Validate())

		config.MaxConns = 0
		config.ConnectionURI = ""
		assert.ErrorIs(t, config.Validate(), postgres.ErrEmptyConnectionURI)
	})
}

func TestClient(t *testing.T) {
	if helper.PostgresConnectionURI() == "" {
		t.Skip("RELAY_TEST_POSTGRES_DSN is not set")
	}

	config := &postgres.Config{
		ConnectionURI:     helper.PostgresConnectionURI(),
		ConnectionTimeout: "5s",
	}
	assert.NoError(t, config.Validate())

	cli, err := postgres.Dial(config)
	assert.NoError(t, err)
	defer func() {
		assert.NoError(t, cli.Close())
	}()

	testcases.RunAll(t, cli)
}
