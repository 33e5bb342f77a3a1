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

package diagnose

import (
	"database/sql"

	"github.com/fasalvaidya/leafsync/pkg/cli/client"
	"github.com/fasalvaidya/leafsync/pkg/cli/consts"
	"github.com/fasalvaidya/leafsync/pkg/cli/context"
	"github.com/fasalvaidya/leafsync/pkg/cli/database"
	"github.com/fasalvaidya/leafsync/pkg/cli/device"
	diagsvc "github.com/fasalvaidya/leafsync/pkg/cli/diagnose"
	"github.com/fasalvaidya/leafsync/pkg/cli/infra"
	"github.com/fasalvaidya/leafsync/pkg/cli/log"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

var example = `
 leafsync diagnose 8f3c2a1e-5b6d-4e7f-9a0b-1c2d3e4f5a6b`

func preRun(cmd *cobra.Command, args []string) error {
	if len(args) != 1 {
		return errors.New("Incorrect number of argument")
	}

	return nil
}

// NewCmd returns a new diagnose command
func NewCmd(ctx context.LeafCtx) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "diagnose <scan uuid>",
		Short:   "Analyze a captured scan",
		Example: example,
		PreRunE: preRun,
		RunE:    newRun(ctx),
	}

	return cmd
}

func newRun(ctx context.LeafCtx) infra.RunEFunc {
	return func(cmd *cobra.Command, args []string) error {
		scanUUID := args[0]

		scan, err := database.GetScan(ctx.DB, scanUUID)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return errors.Errorf("no scan with uuid %s", scanUUID)
			}
			return errors.Wrap(err, "getting scan")
		}
		if scan.SyncState == consts.SyncStateLocalOnly {
			return errors.New("scan has not been synced yet. run `leafsync sync` first")
		}

		dev := device.NewStoreProvider(ctx.DB, ctx.Clock)
		d := diagsvc.RemoteDiagnoser{Client: client.New(ctx, dev)}

		result, err := d.Diagnose(scan)
		if err != nil {
			return errors.Wrap(err, "diagnosing")
		}

		if err := diagsvc.Record(ctx.DB, ctx.Clock, scan, result); err != nil {
			return errors.Wrap(err, "recording diagnosis")
		}

		diag := result.Diagnosis
		log.Successf("diagnosed %s: %s\n", scanUUID, diag.OverallStatus)
		log.Plainf("N %.2f (%s)  P %.2f (%s)  K %.2f (%s)\n",
			diag.NScore, diag.NSeverity, diag.PScore, diag.PSeverity, diag.KScore, diag.KSeverity)

		rec := result.Recommendation
		if rec.AdviceN != "" {
			log.Plainf("N: %s\n", rec.AdviceN)
		}
		if rec.AdviceP != "" {
			log.Plainf("P: %s\n", rec.AdviceP)
		}
		if rec.AdviceK != "" {
			log.Plainf("K: %s\n", rec.AdviceK)
		}

		return nil
	}
}
