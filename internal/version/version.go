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

// Package version provides the version of the relay.
package version

import (
	"fmt"
	"runtime"
)

// At build time, the versions are replaced with the current version using the -X linker flag
var (
	// Version is the main version number that is being run at the moment.
	Version = "0.1.0"

	// BuildDate is the date the executable was built.
	BuildDate string

	// GitCommit is the commit the executable was built from.
	GitCommit string
)

// String returns a one-line description of the build.
func String() string {
	s := fmt.Sprintf("relay %s (%s, %s/%s)", Version, runtime.Version(), runtime.GOOS, runtime.GOARCH)
	if GitCommit != "" {
		s += " commit " + GitCommit
	}
	if BuildDate != "" {
		s += " built " + BuildDate
	}
	return s
}
