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

package housekeeping

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/yorkie-team/relay/server/logging"
)

var (
	// ErrAlreadyStarted is returned when registering a task after Start.
	ErrAlreadyStarted = errors.New("housekeeping already started")

	// ErrInvalidInterval is returned when registering a task with a
	// non-positive interval.
	ErrInvalidInterval = errors.New("invalid housekeeping interval")
)

// Task is a periodic maintenance task.
type Task func(ctx context.Context) error

type task struct {
	name     string
	interval time.Duration
	fn       Task
}

// Housekeeping is the housekeeping service. It runs every registered task
// on its own interval until stopped.
type Housekeeping struct {
	mu      sync.Mutex
	tasks   []task
	started bool

	ctx        context.Context
	cancelFunc context.CancelFunc
	wg         sync.WaitGroup
}

// New creates a new housekeeping instance.
func New() *Housekeeping {
	ctx, cancelFunc := context.WithCancel(context.Background())
	return &Housekeeping{
		ctx:        ctx,
		cancelFunc: cancelFunc,
	}
}

// RegisterTask registers a task to run every interval after Start.
func (h *Housekeeping) RegisterTask(name string, interval time.Duration, fn Task) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.started {
		return ErrAlreadyStarted
	}
	if interval <= 0 {
		return ErrInvalidInterval
	}

	h.tasks = append(h.tasks, task{name: name, interval: interval, fn: fn})
	return nil
}

// Start starts the housekeeping service.
func (h *Housekeeping) Start() error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.started {
		return ErrAlreadyStarted
	}
	h.started = true

	for _, t := range h.tasks {
		h.wg.Add(1)
		go h.run(t)
	}
	return nil
}

// Stop stops the housekeeping service and waits for running tasks.
func (h *Housekeeping) Stop() error {
	h.cancelFunc()
	h.wg.Wait()

	return nil
}

func (h *Housekeeping) run(t task) {
	defer h.wg.Done()

	logger := logging.New("HSKP", logging.NewField("task", t.name))
	ctx := logging.With(h.ctx, logger)
	for {
		select {
		case <-time.After(t.interval):
		case <-h.ctx.Done():
			return
		}

		start := time.Now()
		if err := t.fn(ctx); err != nil {
			logging.LogError(logger, t.name, time.Since(start), err)
			continue
		}
		logger.Debugf("%s done in %s", t.name, time.Since(start))
	}
}
