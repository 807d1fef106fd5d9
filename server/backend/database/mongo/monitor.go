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

package mongo

import (
	"context"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/event"
	"go.uber.org/zap"

	"github.com/yorkie-team/relay/server/logging"
)

// commandMonitor logs the commands the relay issues against its collections.
// Commands slower than the threshold are reported at warn level with the
// collection they touched.
type commandMonitor struct {
	logger    logging.Logger
	threshold time.Duration

	// targets maps the request id of an in-flight command to its collection.
	targets sync.Map
}

func newCommandMonitor(threshold time.Duration) *event.CommandMonitor {
	m := &commandMonitor{
		logger:    logging.New("MNGO"),
		threshold: threshold,
	}

	return &event.CommandMonitor{
		Started:   m.started,
		Succeeded: m.succeeded,
		Failed:    m.failed,
	}
}

func (m *commandMonitor) started(_ context.Context, evt *event.CommandStartedEvent) {
	m.targets.Store(evt.RequestID, collectionOf(evt.CommandName, evt.Command))
	if logging.Enabled(zap.DebugLevel) {
		m.logger.Debugf("start %s %d: %s", evt.CommandName, evt.RequestID, evt.Command)
	}
}

func (m *commandMonitor) succeeded(_ context.Context, evt *event.CommandSucceededEvent) {
	target := m.target(evt.RequestID)
	if m.threshold > 0 && evt.Duration > m.threshold {
		m.logger.Warnf("slow %s on %s: %s", evt.CommandName, target, evt.Duration)
		return
	}
	m.logger.Debugf("done %s on %s: %s", evt.CommandName, target, evt.Duration)
}

func (m *commandMonitor) failed(_ context.Context, evt *event.CommandFailedEvent) {
	m.logger.Warnf("fail %s on %s after %s: %s",
		evt.CommandName, m.target(evt.RequestID), evt.Duration, evt.Failure)
}

func (m *commandMonitor) target(requestID int64) string {
	v, ok := m.targets.LoadAndDelete(requestID)
	if !ok {
		return "-"
	}
	return v.(string)
}

// collectionOf returns the collection a command addresses. Commands such as
// insert or find carry it as the value of their first element.
func collectionOf(name string, cmd bson.Raw) string {
	if v, err := cmd.LookupErr(name); err == nil {
		if coll, ok := v.StringValueOK(); ok {
			return coll
		}
	}
	return "-"
}
