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

package ls

import (
	"database/sql"
	"time"

	"github.com/fasalvaidya/leafsync/pkg/cli/consts"
	"github.com/fasalvaidya/leafsync/pkg/cli/context"
	"github.com/fasalvaidya/leafsync/pkg/cli/database"
	"github.com/fasalvaidya/leafsync/pkg/cli/infra"
	"github.com/fasalvaidya/leafsync/pkg/cli/log"
	"github.com/fasalvaidya/leafsync/pkg/crops"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

var example = `
 leafsync ls`

// NewCmd returns a new ls command
func NewCmd(ctx context.LeafCtx) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "ls",
		Short:   "List captured scans",
		Aliases: []string{"l", "list"},
		Example: example,
		RunE:    newRun(ctx),
	}

	return cmd
}

func formatSyncState(state string) string {
	switch state {
	case consts.SyncStateLocalOnly:
		return "local"
	case consts.SyncStatePushed:
		return "synced"
	case consts.SyncStatePullApplied:
		return "synced"
	}

	return state
}

func formatSeverity(ctx context.LeafCtx, scanUUID string) (string, error) {
	diag, err := database.GetDiagnosis(ctx.DB, scanUUID)
	if err == nil {
		return diag.OverallStatus, nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return "-", nil
	}

	return "", err
}

func newRun(ctx context.LeafCtx) infra.RunEFunc {
	return func(cmd *cobra.Command, args []string) error {
		scans, err := database.ListScans(ctx.DB)
		if err != nil {
			return errors.Wrap(err, "listing scans")
		}

		if len(scans) == 0 {
			log.Plain("no scans. capture one with `leafsync scan <image>`\n")
			return nil
		}

		for _, scan := range scans {
			severity, err := formatSeverity(ctx, scan.UUID)
			if err != nil {
				return errors.Wrap(err, "getting diagnosis")
			}

			cropName := "?"
			if crop, ok := crops.Find(scan.CropID); ok {
				cropName = crop.Name
			}

			capturedAt := time.Unix(0, scan.CreatedAt).Format("2006-01-02 15:04")

			log.Plainf("%s  %-10s %-20s %-10s %s\n",
				scan.UUID, cropName, scan.Status, formatSyncState(scan.SyncState), severity+" "+capturedAt)
		}

		return nil
	}
}
