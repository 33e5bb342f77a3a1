/* Copyright 2025 Leafsync Authors
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

// Package context defines leafsync context
package context

import (
	"net/http"

	"github.com/fasalvaidya/leafsync/pkg/cli/database"
	"github.com/fasalvaidya/leafsync/pkg/clock"
)

// Paths contain directory definitions
type Paths struct {
	Home   string
	Config string
	Data   string
	Cache  string
	Images string
}

// LeafCtx is a context holding the information of the current runtime
type LeafCtx struct {
	Paths       Paths
	APIEndpoint   string
	Version       string
	DB            *database.DB
	DefaultCrop   int
	SyncOnCapture bool
	Clock         clock.Clock
	HTTPClient    *http.Client
}
