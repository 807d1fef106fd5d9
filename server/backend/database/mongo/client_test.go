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

package mongo_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/yorkie-team/relay/server/backend/database/mongo"
	"github.com/yorkie-team/relay/server/backend/database/testcases"
	"github.com/yorkie-team/relay/test/helper"
)

func setupTestClient(t *testing.T) *mongo.Client {
	if helper.MongoConnectionURI() == "" {
		t.Skip("RELAY_TEST_MONGO_URI is not set")
	}

	config := &mongo.Config{
		ConnectionTimeout: "5s",
		ConnectionURI:     helper.MongoConnectionURI(),
		RelayDatabase:     helper.TestDBName(),
		PingTimeout:       "5s",
	}
	assert.NoError(t, config.Validate())

	cli, err := mongo.Dial(config)
	assert.NoError(t, err)

	return cli
}

func TestClient(t *testing.T) {
	cli := setupTestClient(t)
	defer func() {
		assert.NoError(t, cli.Close())
	}()

	testcases.RunAll(t, cli)
}
