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

package app

import (
	"github.com/fasalvaidya/leafsync/pkg/server/database"
	"github.com/pkg/errors"
	"gorm.io/gorm"
)

// Profile is the farmer profile bound to a device
type Profile struct {
	Phone     string `json:"phone"`
	Name      string `json:"name"`
	PhotoURL  string `json:"photo_url"`
	UpdatedAt int64  `json:"updated_at"`
}

// UpdateProfileParams holds the fields for a profile update. Empty fields
// leave the stored value untouched.
type UpdateProfileParams struct {
	Phone    string `json:"phone"`
	Name     string `json:"name"`
	PhotoURL string `json:"photo_url"`
}

func profileFor(device *database.Device) Profile {
	return Profile{
		Phone:     device.Phone,
		Name:      device.Name,
		PhotoURL:  device.PhotoURL,
		UpdatedAt: device.ProfileUpdatedAt,
	}
}

// GetProfile returns the profile bound to the given device
func (a *App) GetProfile(device *database.Device) Profile {
	return profileFor(device)
}

// UpdateProfile updates the profile bound to the given device. A phone
// number stays bound to the device that first claimed it: an update naming
// a phone that belongs to a different device fails with ErrPhoneTaken.
func (a *App) UpdateProfile(device *database.Device, params UpdateProfileParams) (Profile, error) {
	if params.Phone != "" && params.Phone != device.Phone {
		var owner database.Device
		err := a.DB.Where("phone = ? AND id <> ?", params.Phone, device.ID).First(&owner).Error
		if err == nil {
			return Profile{}, ErrPhoneTaken
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return Profile{}, errors.Wrap(err, "checking phone ownership")
		}

		device.Phone = params.Phone
	}

	if params.Name != "" {
		device.Name = params.Name
	}
	if params.PhotoURL != "" {
		device.PhotoURL = params.PhotoURL
	}
	device.ProfileUpdatedAt = a.Clock.Now().UnixNano()

	if err := a.DB.Save(device).Error; err != nil {
		return Profile{}, errors.Wrap(err, "saving profile")
	}

	return profileFor(device), nil
}
