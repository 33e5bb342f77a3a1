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

package profile

import (
	"github.com/fasalvaidya/leafsync/pkg/cli/client"
	"github.com/fasalvaidya/leafsync/pkg/cli/consts"
	"github.com/fasalvaidya/leafsync/pkg/cli/context"
	"github.com/fasalvaidya/leafsync/pkg/cli/database"
	"github.com/fasalvaidya/leafsync/pkg/cli/device"
	"github.com/fasalvaidya/leafsync/pkg/cli/infra"
	"github.com/fasalvaidya/leafsync/pkg/cli/log"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

var phoneFlag string
var nameFlag string
var photoFlag string

var example = `
  * Show the profile bound to this device
  leafsync profile

  * Bind a profile
  leafsync profile --phone 9876543210 --name "Asha"`

// NewCmd returns a new profile command
func NewCmd(ctx context.LeafCtx) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "profile",
		Short:   "Show or update the profile bound to this device",
		Example: example,
		RunE:    newRun(ctx),
	}

	f := cmd.Flags()
	f.StringVar(&phoneFlag, "phone", "", "the phone number to bind to this device")
	f.StringVar(&nameFlag, "name", "", "the farmer name")
	f.StringVar(&photoFlag, "photo", "", "the profile photo url")

	return cmd
}

func newRun(ctx context.LeafCtx) infra.RunEFunc {
	return func(cmd *cobra.Command, args []string) error {
		dev := device.NewStoreProvider(ctx.DB, ctx.Clock)
		c := client.New(ctx, dev)

		if phoneFlag == "" && nameFlag == "" && photoFlag == "" {
			return showProfile(ctx, c)
		}

		return updateProfile(ctx, c)
	}
}

func showProfile(ctx context.LeafCtx, c client.Client) error {
	// Prefer the cached copy so the command works offline
	var phone, name string
	cached, err := database.GetSystemOptional(ctx.DB, consts.SystemProfilePhone, &phone)
	if err != nil {
		return errors.Wrap(err, "reading cached profile")
	}
	if _, err := database.GetSystemOptional(ctx.DB, consts.SystemProfileName, &name); err != nil {
		return errors.Wrap(err, "reading cached profile name")
	}

	if !cached {
		resp, err := c.GetProfile()
		if err != nil {
			return errors.Wrap(err, "fetching profile")
		}
		phone = resp.Phone
		name = resp.Name
	}

	if phone == "" {
		log.Plain("no profile. bind one with `leafsync profile --phone <number>`\n")
		return nil
	}

	log.Plainf("phone: %s\n", phone)
	log.Plainf("name:  %s\n", name)

	return nil
}

func updateProfile(ctx context.LeafCtx, c client.Client) error {
	if phoneFlag == "" {
		return errors.New("--phone is required when updating the profile")
	}

	resp, err := c.UpdateProfile(client.UpdateProfilePayload{
		Phone:    phoneFlag,
		Name:     nameFlag,
		PhotoURL: photoFlag,
	})
	if err != nil {
		var httpErr *client.HTTPError
		if errors.As(err, &httpErr) && httpErr.IsConflict() {
			return errors.New("this phone number is already bound to another device")
		}
		return errors.Wrap(err, "updating profile")
	}

	if err := cacheProfile(ctx, resp); err != nil {
		return errors.Wrap(err, "caching profile")
	}

	log.Successf("profile bound to %s\n", resp.Phone)

	return nil
}

func cacheProfile(ctx context.LeafCtx, resp client.ProfileResp) error {
	tx, err := ctx.DB.Begin()
	if err != nil {
		return errors.Wrap(err, "beginning a transaction")
	}

	if err := database.UpsertSystem(tx, consts.SystemProfilePhone, resp.Phone); err != nil {
		tx.Rollback()
		return errors.Wrap(err, "saving phone")
	}
	if err := database.UpsertSystem(tx, consts.SystemProfileName, resp.Name); err != nil {
		tx.Rollback()
		return errors.Wrap(err, "saving name")
	}
	if err := database.UpsertSystem(tx, consts.SystemProfilePhoto, resp.PhotoURL); err != nil {
		tx.Rollback()
		return errors.Wrap(err, "saving photo url")
	}

	if err := tx.Commit(); err != nil {
		return errors.Wrap(err, "committing a transaction")
	}

	return nil
}
