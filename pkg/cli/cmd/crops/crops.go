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

package crops

import (
	"github.com/fasalvaidya/leafsync/pkg/cli/context"
	"github.com/fasalvaidya/leafsync/pkg/cli/infra"
	"github.com/fasalvaidya/leafsync/pkg/cli/log"
	"github.com/fasalvaidya/leafsync/pkg/crops"
	"github.com/spf13/cobra"
)

var example = `
 leafsync crops`

// NewCmd returns a new crops command
func NewCmd(ctx context.LeafCtx) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "crops",
		Short:   "List supported crops",
		Example: example,
		RunE:    newRun(ctx),
	}

	return cmd
}

func newRun(ctx context.LeafCtx) infra.RunEFunc {
	return func(cmd *cobra.Command, args []string) error {
		for _, crop := range crops.All() {
			log.Plainf("%2d  %-12s %-12s %s\n", crop.ID, crop.Name, crop.NameHi, crop.Season)
		}

		return nil
	}
}
