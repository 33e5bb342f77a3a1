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

package watch

import (
	"time"

	"github.com/fasalvaidya/leafsync/pkg/cli/cmd/scan"
	"github.com/fasalvaidya/leafsync/pkg/cli/context"
	"github.com/fasalvaidya/leafsync/pkg/cli/infra"
	"github.com/fasalvaidya/leafsync/pkg/cli/log"
	"github.com/fasalvaidya/leafsync/pkg/cli/utils"
	"github.com/fasalvaidya/leafsync/pkg/crops"
	"github.com/pkg/errors"
	"github.com/radovskyb/watcher"
	"github.com/spf13/cobra"
)

var cropFlag int

var example = `
 * Capture every photo dropped into a directory
 leafsync watch ~/camera-roll --crop 2`

func preRun(cmd *cobra.Command, args []string) error {
	if len(args) != 1 {
		return errors.New("Incorrect number of argument")
	}

	return nil
}

// NewCmd returns a new watch command
func NewCmd(ctx context.LeafCtx) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "watch <dir>",
		Short:   "Capture new photos from a directory as they appear",
		Example: example,
		PreRunE: preRun,
		RunE:    newRun(ctx),
	}

	f := cmd.Flags()
	f.IntVarP(&cropFlag, "crop", "c", 0, "the crop id (defaults to value in config)")

	return cmd
}

func getCropID(ctx context.LeafCtx) int {
	cropID := cropFlag
	if cropID == 0 {
		cropID = ctx.DefaultCrop
	}
	if cropID == 0 {
		cropID = crops.DefaultID
	}

	return cropID
}

func newRun(ctx context.LeafCtx) infra.RunEFunc {
	return func(cmd *cobra.Command, args []string) error {
		dir := args[0]
		cropID := getCropID(ctx)
		if !crops.Valid(cropID) {
			return errors.Errorf("unknown crop id %d", cropID)
		}

		w := watcher.New()
		w.FilterOps(watcher.Create)

		if err := w.Add(dir); err != nil {
			return errors.Wrapf(err, "watching %s", dir)
		}

		go func() {
			for {
				select {
				case event := <-w.Event:
					if event.IsDir() || !utils.IsImageFile(event.Path) {
						continue
					}

					captured, durable, err := scan.Capture(ctx, event.Path, cropID)
					if err != nil {
						log.Errorf("capturing %s: %s\n", event.Path, err)
						continue
					}
					if !durable {
						log.Warnf("%s was not saved and will not sync\n", captured.UUID)
						continue
					}
					log.Successf("captured %s\n", captured.UUID)
				case err := <-w.Error:
					log.Errorf("watcher: %s\n", err)
				case <-w.Closed:
					return
				}
			}
		}()

		log.Infof("watching %s. press ctrl-c to stop\n", dir)

		if err := w.Start(500 * time.Millisecond); err != nil {
			return errors.Wrap(err, "starting watcher")
		}

		return nil
	}
}
