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

package sync

import (
	"os"
	"os/signal"
	"time"

	"github.com/fasalvaidya/leafsync/pkg/cli/client"
	"github.com/fasalvaidya/leafsync/pkg/cli/context"
	"github.com/fasalvaidya/leafsync/pkg/cli/device"
	"github.com/fasalvaidya/leafsync/pkg/cli/infra"
	"github.com/fasalvaidya/leafsync/pkg/cli/log"
	syncsvc "github.com/fasalvaidya/leafsync/pkg/cli/sync"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

var watchFlag bool
var intervalFlag time.Duration
var apiEndpointFlag string

var example = `
  * Run a single sync cycle
  leafsync sync

  * Keep syncing every five minutes
  leafsync sync --watch --interval 5m`

// NewCmd returns a new sync command
func NewCmd(ctx context.LeafCtx) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "sync",
		Aliases: []string{"s"},
		Short:   "Sync data with the server",
		Example: example,
		RunE:    newRun(ctx),
	}

	f := cmd.Flags()
	f.BoolVarP(&watchFlag, "watch", "w", false, "keep running and sync periodically")
	f.DurationVar(&intervalFlag, "interval", 5*time.Minute, "how often to sync in watch mode")
	f.StringVar(&apiEndpointFlag, "apiEndpoint", "", "API endpoint to connect to (defaults to value in config)")

	return cmd
}

// NewSyncer builds a syncer wired to the runtime context
func NewSyncer(ctx context.LeafCtx) *syncsvc.Syncer {
	if apiEndpointFlag != "" {
		ctx.APIEndpoint = apiEndpointFlag
	}

	dev := device.NewStoreProvider(ctx.DB, ctx.Clock)
	c := client.New(ctx, dev)

	return syncsvc.NewSyncer(ctx.DB, c, dev, ctx.Clock)
}

func newRun(ctx context.LeafCtx) infra.RunEFunc {
	return func(cmd *cobra.Command, args []string) error {
		s := NewSyncer(ctx)

		if watchFlag {
			return runWatch(s)
		}

		log.Infof("syncing with %s\n", ctx.APIEndpoint)

		result, err := s.PerformSync()
		if err != nil {
			if errors.Is(err, syncsvc.ErrVolatileIdentity) {
				return errors.New("device identity could not be saved; refusing to sync")
			}
			return errors.Wrap(err, "syncing")
		}

		log.Successf("%s\n", syncsvc.FormatResult(result))
		for _, recordErr := range result.Errors {
			log.Warnf("record %s failed: %s\n", recordErr.UUID, recordErr.Reason)
		}

		return nil
	}
}

func runWatch(s *syncsvc.Syncer) error {
	scheduler := syncsvc.NewScheduler(s, intervalFlag)
	if err := scheduler.Start(); err != nil {
		return errors.Wrap(err, "starting scheduler")
	}
	defer scheduler.Stop()

	log.Infof("syncing every %s. press ctrl-c to stop\n", intervalFlag)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt)
	<-quit

	return nil
}
