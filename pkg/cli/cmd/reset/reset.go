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

package reset

import (
	"github.com/fasalvaidya/leafsync/pkg/cli/context"
	"github.com/fasalvaidya/leafsync/pkg/cli/device"
	"github.com/fasalvaidya/leafsync/pkg/cli/infra"
	"github.com/fasalvaidya/leafsync/pkg/cli/log"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

var yesFlag bool

var example = `
 leafsync reset --yes`

// NewCmd returns a new reset command
func NewCmd(ctx context.LeafCtx) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "reset",
		Short:   "Discard the device identity",
		Example: example,
		RunE:    newRun(ctx),
	}

	f := cmd.Flags()
	f.BoolVar(&yesFlag, "yes", false, "skip the confirmation")

	return cmd
}

func newRun(ctx context.LeafCtx) infra.RunEFunc {
	return func(cmd *cobra.Command, args []string) error {
		if !yesFlag {
			return errors.New("resetting discards the device identity; records already pushed stay on the server under the old device. pass --yes to proceed")
		}

		dev := device.NewStoreProvider(ctx.DB, ctx.Clock)
		if err := dev.Reset(); err != nil {
			return errors.Wrap(err, "resetting device identity")
		}

		log.Success("device identity discarded. the next sync registers this installation as a new device\n")

		return nil
	}
}
