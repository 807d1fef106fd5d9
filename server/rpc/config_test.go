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

package rpc_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/yorkie-team/relay/server/rpc"
)

func TestConfig(t *testing.T) {
	validConf := func() rpc.Config {
		return rpc.Config{
			Port:           11101,
			MaxMessageSize: 4 << 20,
			PingInterval:   "30s",
			SendQueueSize:  256,
		}
	}

	t.Run("valid config test", func(t *testing.T) {
		conf := validConf()
		assert.NoError(t, conf.Validate())
	})

	t.Run("invalid port test", func(t *testing.T) {
		conf := validConf()
		conf.Port = 0
		assert.ErrorIs(t, conf.Validate(), rpc.ErrInvalidRPCPort)

		conf.Port = 65536
		assert.ErrorIs(t, conf.Validate(), rpc.ErrInvalidRPCPort)
	})

	t.Run("invalid cert and key test", func(t *testing.T) {
		conf := validConf()
		conf.CertFile = "noSuchCertFile"
		assert.ErrorIs(t, conf.Validate(), rpc.ErrInvalidCertFile)

		conf = validConf()
		conf.KeyFile = "noSuchKeyFile"
		assert.ErrorIs(t, conf.Validate(), rpc.ErrInvalidKeyFile)
	})

	t.Run("invalid ping interval test", func(t *testing.T) {
		conf := validConf()
		conf.PingInterval = "hour"
		assert.ErrorIs(t, conf.Validate(), rpc.ErrInvalidPingInterval)

		conf.PingInterval = "-1s"
		assert.ErrorIs(t, conf.Validate(), rpc.ErrInvalidPingInterval)
	})

	t.Run("invalid limits test", func(t *testing.T) {
		conf := validConf()
		conf.SendQueueSize = 0
		assert.Error(t, conf.Validate())

		conf = validConf()
		conf.SendQueueSize = 1
		assert.Error(t, conf.Validate())

		conf = validConf()
		conf.SendQueueSize = 2
		assert.NoError(t, conf.Validate())

		conf = validConf()
		conf.MaxMessageSize = 0
		assert.Error(t, conf.Validate())

		conf = validConf()
		conf.MaxConnections = -1
		assert.Error(t, conf.Validate())
	})
}
