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

package dirs

import (
	"path/filepath"
	"testing"

	"github.com/fasalvaidya/leafsync/pkg/assert"
)

func TestDirs(t *testing.T) {
	defer Reload()

	t.Setenv(envConfigHome, "")
	t.Setenv(envDataHome, "")
	t.Setenv(envCacheHome, "")
	Reload()

	home := Home
	assert.NotEqual(t, home, "", "home is empty")

	assert.Equal(t, ConfigHome, filepath.Join(home, ".config"), "ConfigHome mismatch")
	assert.Equal(t, DataHome, filepath.Join(home, ".local/share"), "DataHome mismatch")
	assert.Equal(t, CacheHome, filepath.Join(home, ".cache"), "CacheHome mismatch")
}

func TestCustomDirs(t *testing.T) {
	defer Reload()

	t.Setenv(envConfigHome, "/tmp/custom-config")
	t.Setenv(envDataHome, "/tmp/custom-data")
	t.Setenv(envCacheHome, "/tmp/custom-cache")
	Reload()

	assert.Equal(t, ConfigHome, "/tmp/custom-config", "ConfigHome mismatch")
	assert.Equal(t, DataHome, "/tmp/custom-data", "DataHome mismatch")
	assert.Equal(t, CacheHome, "/tmp/custom-cache", "CacheHome mismatch")
}
