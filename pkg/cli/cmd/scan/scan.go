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

package scan

import (
	"fmt"
	"path/filepath"

	synccmd "github.com/fasalvaidya/leafsync/pkg/cli/cmd/sync"
	"github.com/fasalvaidya/leafsync/pkg/cli/context"
	"github.com/fasalvaidya/leafsync/pkg/cli/database"
	"github.com/fasalvaidya/leafsync/pkg/cli/infra"
	"github.com/fasalvaidya/leafsync/pkg/cli/log"
	syncsvc "github.com/fasalvaidya/leafsync/pkg/cli/sync"
	"github.com/fasalvaidya/leafsync/pkg/cli/utils"
	"github.com/fasalvaidya/leafsync/pkg/crops"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

var cropFlag int
var syncFlag bool

var example = `
 * Capture a leaf photo for the default crop
 leafsync scan ./photos/leaf.jpg

 * Capture for a specific crop
 leafsync scan ./photos/leaf.jpg --crop 2`

func preRun(cmd *cobra.Command, args []string) error {
	if len(args) != 1 {
		return errors.New("Incorrect number of argument")
	}

	return nil
}

// NewCmd returns a new scan command
func NewCmd(ctx context.LeafCtx) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "scan <image>",
		Short:   "Capture a leaf photo for diagnosis",
		Aliases: []string{"capture"},
		Example: example,
		PreRunE: preRun,
		RunE:    newRun(ctx),
	}

	f := cmd.Flags()
	f.IntVarP(&cropFlag, "crop", "c", 0, "the crop id (defaults to value in config)")
	f.BoolVar(&syncFlag, "sync", false, "run a sync cycle after capturing")

	return cmd
}

func getCropID(ctx context.LeafCtx) (int, error) {
	cropID := cropFlag
	if cropID == 0 {
		cropID = ctx.DefaultCrop
	}
	if cropID == 0 {
		cropID = crops.DefaultID
	}

	if !crops.Valid(cropID) {
		return 0, errors.Errorf("unknown crop id %d", cropID)
	}

	return cropID, nil
}

// Capture copies the image into the leafsync image directory and records a
// scan awaiting diagnosis. It works entirely against the local store; no
// network is involved.
//
// Capture succeeds even when the local store is unavailable: the returned
// durable flag is false and the scan exists only for this session. A
// non-durable scan must never be treated as sync-eligible.
func Capture(ctx context.LeafCtx, imagePath string, cropID int) (database.Scan, bool, error) {
	ok, err := utils.FileExists(imagePath)
	if err != nil {
		return database.Scan{}, false, errors.Wrap(err, "checking image file")
	}
	if !ok {
		return database.Scan{}, false, errors.Errorf("no file at %s", imagePath)
	}

	scanUUID := uuid.New().String()
	dest := fmt.Sprintf("%s/%s%s", ctx.Paths.Images, scanUUID, filepath.Ext(imagePath))
	if err := utils.CopyFile(imagePath, dest); err != nil {
		return database.Scan{}, false, errors.Wrap(err, "copying image")
	}

	scan := database.NewScan(scanUUID, cropID, dest, ctx.Clock.Now().UnixNano())
	if _, err := database.PutScan(ctx.DB, scan); err != nil {
		log.Warnf("could not save the scan locally: %s\n", err)
		return scan, false, nil
	}

	return scan, true, nil
}

func newRun(ctx context.LeafCtx) infra.RunEFunc {
	return func(cmd *cobra.Command, args []string) error {
		cropID, err := getCropID(ctx)
		if err != nil {
			return err
		}

		scan, durable, err := Capture(ctx, args[0], cropID)
		if err != nil {
			return errors.Wrap(err, "capturing scan")
		}

		crop, _ := crops.Find(cropID)
		log.Successf("captured %s (%s)\n", scan.UUID, crop.Name)

		if !durable {
			log.Warnf("the scan was not saved and will be lost after this session\n")
			return nil
		}

		if syncFlag || ctx.SyncOnCapture {
			return runSync(ctx)
		}

		log.Plain("run `leafsync sync` to upload and diagnose\n")

		return nil
	}
}

// runSync runs a sync cycle after a capture. It is an ordinary sync caller;
// capture itself has already succeeded by the time it runs.
func runSync(ctx context.LeafCtx) error {
	s := synccmd.NewSyncer(ctx)

	result, err := s.PerformSync()
	if err != nil {
		if errors.Is(err, syncsvc.ErrVolatileIdentity) {
			log.Warnf("device identity could not be saved; skipping sync\n")
			return nil
		}
		return errors.Wrap(err, "syncing after capture")
	}

	log.Successf("%s\n", syncsvc.FormatResult(result))

	return nil
}
