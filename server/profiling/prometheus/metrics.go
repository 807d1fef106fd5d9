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

// Package prometheus provides a Prometheus metrics exporter.
package prometheus

import (
	"fmt"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/yorkie-team/relay/internal/version"
)

const (
	namespace        = "relay"
	taskTypeLabel    = "task_type"
	messageTypeLabel = "message_type"
	reasonLabel      = "reason"
	operationLabel   = "operation"
	triggerLabel     = "trigger"
	resultLabel      = "result"
	codeLabel        = "code"
	methodLabel      = "method"
)

// Metrics manages the metric information that the relay is trying to measure.
type Metrics struct {
	registry *prometheus.Registry

	serverVersion *prometheus.GaugeVec

	httpRequestsTotal          *prometheus.CounterVec
	httpRequestDurationSeconds prometheus.Histogram

	connections              prometheus.Gauge
	framesReceivedTotal      *prometheus.CounterVec
	framesSentTotal          *prometheus.CounterVec
	malformedFramesTotal     *prometheus.CounterVec
	droppedConnectionsTotal  prometheus.Counter
	roomsTotal               prometheus.Gauge
	roomLoadsTotal           *prometheus.CounterVec
	persistedUpdatesTotal    prometheus.Counter
	persistedBytesTotal      prometheus.Counter
	persistenceFailuresTotal *prometheus.CounterVec

	compactionsTotal          *prometheus.CounterVec
	compactionDurationSeconds prometheus.Histogram

	backgroundGoroutinesTotal *prometheus.GaugeVec
}

// NewMetrics creates a new instance of Metrics.
func NewMetrics() (*Metrics, error) {
	reg := prometheus.NewRegistry()

	if err := reg.Register(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{})); err != nil {
		return nil, fmt.Errorf("register process collector: %w", err)
	}
	if err := reg.Register(collectors.NewGoCollector()); err != nil {
		return nil, fmt.Errorf("register go collector: %w", err)
	}

	metrics := &Metrics{
		registry: reg,
		serverVersion: promauto.With(reg).NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "server",
			Name:      "version",
			Help:      "Which version is running. 1 for 'server_version' label with current version.",
		}, []string{"server_version"}),
		httpRequestsTotal: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests completed, including WebSocket upgrades.",
		}, []string{methodLabel, codeLabel}),
		httpRequestDurationSeconds: promauto.With(reg).NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "The duration of HTTP requests. For WebSocket sessions, the session lifetime.",
			Buckets:   prometheus.ExponentialBuckets(0.001, 4, 12),
		}),
		connections: promauto.With(reg).NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "relay",
			Name:      "connections",
			Help:      "The number of open WebSocket connections.",
		}),
		framesReceivedTotal: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "relay",
			Name:      "frames_received_total",
			Help:      "The total count of frames received from clients.",
		}, []string{messageTypeLabel}),
		framesSentTotal: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "relay",
			Name:      "frames_sent_total",
			Help:      "The total count of frames queued for clients.",
		}, []string{messageTypeLabel}),
		malformedFramesTotal: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "relay",
			Name:      "malformed_frames_total",
			Help:      "The total count of dropped frames that could not be decoded or applied.",
		}, []string{reasonLabel}),
		droppedConnectionsTotal: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "relay",
			Name:      "dropped_connections_total",
			Help:      "The total count of connections closed because they could not keep up.",
		}),
		roomsTotal: promauto.With(reg).NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "rooms",
			Name:      "active",
			Help:      "The number of rooms held in memory.",
		}),
		roomLoadsTotal: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "rooms",
			Name:      "loads_total",
			Help:      "The total count of room loads from storage.",
		}, []string{resultLabel}),
		persistedUpdatesTotal: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "persistence",
			Name:      "updates_total",
			Help:      "The total count of updates appended to the log.",
		}),
		persistedBytesTotal: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "persistence",
			Name:      "bytes_total",
			Help:      "The total bytes of updates and snapshots written.",
		}),
		persistenceFailuresTotal: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "persistence",
			Name:      "failures_total",
			Help:      "The total count of failed store operations.",
		}, []string{operationLabel}),
		compactionsTotal: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "compaction",
			Name:      "runs_total",
			Help:      "The total count of compactions by trigger and result.",
		}, []string{triggerLabel, resultLabel}),
		compactionDurationSeconds: promauto.With(reg).NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "compaction",
			Name:      "duration_seconds",
			Help:      "The duration of successful compactions.",
		}),
		backgroundGoroutinesTotal: promauto.With(reg).NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "background",
			Name:      "goroutines_total",
			Help:      "The total number of goroutines attached by a particular background task.",
		}, []string{taskTypeLabel}),
	}

	metrics.serverVersion.With(prometheus.Labels{
		"server_version": version.Version,
	}).Set(1)

	return metrics, nil
}

// AddHTTPRequest records a completed HTTP request.
func (m *Metrics) AddHTTPRequest(method string, code int, seconds float64) {
	m.httpRequestsTotal.With(prometheus.Labels{
		methodLabel: method,
		codeLabel:   strconv.Itoa(code),
	}).Inc()
	m.httpRequestDurationSeconds.Observe(seconds)
}

// AddConnections adds the given number of open connections. Use a negative
// delta for closed connections.
func (m *Metrics) AddConnections(delta int) {
	m.connections.Add(float64(delta))
}

// AddReceivedFrame counts a frame received from a client.
func (m *Metrics) AddReceivedFrame(messageType string) {
	m.framesReceivedTotal.With(prometheus.Labels{messageTypeLabel: messageType}).Inc()
}

// AddSentFrame counts a frame queued for a client.
func (m *Metrics) AddSentFrame(messageType string) {
	m.framesSentTotal.With(prometheus.Labels{messageTypeLabel: messageType}).Inc()
}

// AddMalformedFrame counts a dropped frame.
func (m *Metrics) AddMalformedFrame(reason string) {
	m.malformedFramesTotal.With(prometheus.Labels{reasonLabel: reason}).Inc()
}

// AddDroppedConnection counts a connection closed for being too slow.
func (m *Metrics) AddDroppedConnection() {
	m.droppedConnectionsTotal.Inc()
}

// SetRooms sets the number of rooms held in memory.
func (m *Metrics) SetRooms(count int) {
	m.roomsTotal.Set(float64(count))
}

// AddRoomLoad counts a room load with its result, "success" or "failure".
func (m *Metrics) AddRoomLoad(result string) {
	m.roomLoadsTotal.With(prometheus.Labels{resultLabel: result}).Inc()
}

// AddPersistedUpdates counts updates appended to the log.
func (m *Metrics) AddPersistedUpdates(count int, bytes int) {
	m.persistedUpdatesTotal.Add(float64(count))
	m.persistedBytesTotal.Add(float64(bytes))
}

// AddPersistedSnapshot counts the bytes of a written snapshot.
func (m *Metrics) AddPersistedSnapshot(bytes int) {
	m.persistedBytesTotal.Add(float64(bytes))
}

// AddPersistenceFailure counts a failed store operation.
func (m *Metrics) AddPersistenceFailure(operation string) {
	m.persistenceFailuresTotal.With(prometheus.Labels{operationLabel: operation}).Inc()
}

// AddCompaction counts a compaction by trigger ("threshold", "sweep",
// "manual") and result ("success", "skipped", "failure").
func (m *Metrics) AddCompaction(trigger, result string) {
	m.compactionsTotal.With(prometheus.Labels{
		triggerLabel: trigger,
		resultLabel:  result,
	}).Inc()
}

// ObserveCompactionDurationSeconds observes the duration of a compaction.
func (m *Metrics) ObserveCompactionDurationSeconds(seconds float64) {
	m.compactionDurationSeconds.Observe(seconds)
}

// AddBackgroundGoroutines adds the number of goroutines attached by a particular background task.
func (m *Metrics) AddBackgroundGoroutines(taskType string) {
	m.backgroundGoroutinesTotal.With(prometheus.Labels{
		taskTypeLabel: taskType,
	}).Inc()
}

// RemoveBackgroundGoroutines removes the number of goroutines attached by a particular background task.
func (m *Metrics) RemoveBackgroundGoroutines(taskType string) {
	m.backgroundGoroutinesTotal.With(prometheus.Labels{
		taskTypeLabel: taskType,
	}).Dec()
}

// Registry returns the registry of this metrics.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}
