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

package remove

import (
	"database/sql"

	"github.com/fasalvaidya/leafsync/pkg/cli/context"
	"github.com/fasalvaidya/leafsync/pkg/cli/database"
	"github.com/fasalvaidya/leafsync/pkg/cli/infra"
	"github.com/fasalvaidya/leafsync/pkg/cli/log"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

var example = `
 leafsync remove 8f3c2a1e-5b6d-4e7f-9a0b-1c2d3e4f5a6b`

func preRun(cmd *cobra.Command, args []string) error {
	if len(args) != 1 {
		return errors.New("Incorrect number of argument")
	}

	return nil
}

// NewCmd returns a new remove command
func NewCmd(ctx context.LeafCtx) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "remove <scan uuid>",
		Short:   "Remove a scan",
		Aliases: []string{"rm", "d", "delete"},
		Example: example,
		PreRunE: preRun,
		RunE:    newRun(ctx),
	}

	return cmd
}

func newRun(ctx context.LeafCtx) infra.RunEFunc {
	return func(cmd *cobra.Command, args []string) error {
		scanUUID := args[0]

		if _, err := database.GetScan(ctx.DB, scanUUID); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return errors.Errorf("no scan with uuid %s", scanUUID)
			}
			return errors.Wrap(err, "getting scan")
		}

		// The record becomes a tombstone so the deletion reaches the
		// server and other devices on the next sync.
		if err := database.SoftDeleteScan(ctx.DB, scanUUID, ctx.Clock.Now().UnixNano()); err != nil {
			return errors.Wrap(err, "removing scan")
		}

		log.Successf("removed %s\n", scanUUID)

		return nil
	}
}
