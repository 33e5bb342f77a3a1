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

// Package dirs resolves the user directories in which leafsync
// writes its configuration, data and cache files.
package dirs

import (
	"os"
	"os/user"
	"path/filepath"

	"github.com/pkg/errors"
)

// The environment variable names for the XDG base directory specification
const (
	envConfigHome = "XDG_CONFIG_HOME"
	envDataHome   = "XDG_DATA_HOME"
	envCacheHome  = "XDG_CACHE_HOME"
)

var (
	// Home is the home directory of the user
	Home string
	// ConfigHome is the full path to the directory in which user-specific
	// configurations should be written.
	ConfigHome string
	// DataHome is the full path to the directory in which user-specific data
	// files should be written.
	DataHome string
	// CacheHome is the full path to the directory in which user-specific
	// non-essential cached data should be written.
	CacheHome string
)

func init() {
	Reload()
}

// Reload reloads the directory definitions
func Reload() {
	Home = getHomeDir()
	ConfigHome = readPath(envConfigHome, filepath.Join(Home, ".config"))
	DataHome = readPath(envDataHome, filepath.Join(Home, ".local/share"))
	CacheHome = readPath(envCacheHome, filepath.Join(Home, ".cache"))
}

func getHomeDir() string {
	usr, err := user.Current()
	if err != nil {
		panic(errors.Wrap(err, "getting home dir"))
	}

	return usr.HomeDir
}

func readPath(envName, defaultPath string) string {
	if dir := os.Getenv(envName); dir != "" {
		return dir
	}

	return defaultPath
}
