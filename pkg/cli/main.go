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

package main

import (
	"os"
	"strings"

	"github.com/fasalvaidya/leafsync/pkg/cli/infra"
	"github.com/fasalvaidya/leafsync/pkg/cli/log"
	_ "github.com/mattn/go-sqlite3"
	"github.com/pkg/errors"

	// commands
	"github.com/fasalvaidya/leafsync/pkg/cli/cmd/crops"
	"github.com/fasalvaidya/leafsync/pkg/cli/cmd/diagnose"
	"github.com/fasalvaidya/leafsync/pkg/cli/cmd/ls"
	"github.com/fasalvaidya/leafsync/pkg/cli/cmd/profile"
	"github.com/fasalvaidya/leafsync/pkg/cli/cmd/remove"
	"github.com/fasalvaidya/leafsync/pkg/cli/cmd/reset"
	"github.com/fasalvaidya/leafsync/pkg/cli/cmd/root"
	"github.com/fasalvaidya/leafsync/pkg/cli/cmd/scan"
	"github.com/fasalvaidya/leafsync/pkg/cli/cmd/sync"
	"github.com/fasalvaidya/leafsync/pkg/cli/cmd/version"
	"github.com/fasalvaidya/leafsync/pkg/cli/cmd/watch"
)

// apiEndpoint and versionTag are populated during link time
var apiEndpoint string
var versionTag = "master"

// parseDBPath extracts --dbPath flag value from command line arguments
// regardless of where it appears (before or after subcommand).
// Returns empty string if not found.
func parseDBPath(args []string) string {
	for i, arg := range args {
		if strings.HasPrefix(arg, "--dbPath=") {
			return strings.TrimPrefix(arg, "--dbPath=")
		}
		if arg == "--dbPath" && i+1 < len(args) {
			return args[i+1]
		}
	}
	return ""
}

func main() {
	// --dbPath can appear after the subcommand, so parse it before cobra
	dbPath := parseDBPath(os.Args[1:])

	ctx, err := infra.Init(versionTag, apiEndpoint, dbPath)
	if err != nil {
		panic(errors.Wrap(err, "initializing context"))
	}
	defer ctx.DB.Close()

	root.Register(scan.NewCmd(*ctx))
	root.Register(ls.NewCmd(*ctx))
	root.Register(remove.NewCmd(*ctx))
	root.Register(diagnose.NewCmd(*ctx))
	root.Register(sync.NewCmd(*ctx))
	root.Register(profile.NewCmd(*ctx))
	root.Register(crops.NewCmd(*ctx))
	root.Register(watch.NewCmd(*ctx))
	root.Register(reset.NewCmd(*ctx))
	root.Register(version.NewCmd(*ctx))

	if err := root.Execute(); err != nil {
		log.Error(err.Error() + "\n")
		os.Exit(1)
	}
}
