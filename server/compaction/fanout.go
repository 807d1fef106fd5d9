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

package compaction

import (
	"context"
	"errors"
	gosync "sync"

	"golang.org/x/sync/semaphore"

	"github.com/yorkie-team/relay/server/rooms"
)

// maxConcurrentCompactions bounds the compactions a sweep runs at once.
const maxConcurrentCompactions = 8

// fanOut runs fn for each room concurrently. At most the weight of the
// semaphore runs at a time, shared by every caller of the compactor. It
// returns every error joined.
func fanOut(
	ctx context.Context,
	sem *semaphore.Weighted,
	targets []*rooms.Room,
	fn func(ctx context.Context, room *rooms.Room) error,
) error {
	if len(targets) == 0 {
		return nil
	}

	errCh := make(chan error, len(targets))

	var wg gosync.WaitGroup
	for _, room := range targets {
		room := room
		wg.Add(1)
		go func() {
			defer wg.Done()

			if err := sem.Acquire(ctx, 1); err != nil {
				errCh <- err
				return
			}
			defer sem.Release(1)

			errCh <- fn(ctx, room)
		}()
	}

	wg.Wait()
	close(errCh)

	var errs []error
	for err := range errCh {
		if err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
