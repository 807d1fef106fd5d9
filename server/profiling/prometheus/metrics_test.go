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

package prometheus_test

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yorkie-team/relay/server/profiling/prometheus"
)

func TestMetrics(t *testing.T) {
	metrics, err := prometheus.NewMetrics()
	require.NoError(t, err)

	metrics.AddCompaction("threshold", "success")
	metrics.AddCompaction("threshold", "skipped")
	metrics.AddPersistedUpdates(3, 120)
	metrics.AddBackgroundGoroutines("compaction")

	count, err := testutil.GatherAndCount(
		metrics.Registry(),
		"relay_compaction_runs_total",
		"relay_persistence_updates_total",
		"relay_background_goroutines_total",
		"relay_server_version",
	)
	require.NoError(t, err)
	assert.Equal(t, 5, count)
}
