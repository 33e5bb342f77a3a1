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

package controllers

import (
	"net/http"

	"github.com/fasalvaidya/leafsync/pkg/server/app"
	svrcontext "github.com/fasalvaidya/leafsync/pkg/server/context"
	"github.com/pkg/errors"
)

// NewProfile creates a new Profile controller
func NewProfile(app *app.App) *Profile {
	return &Profile{app: app}
}

// Profile is a controller for the farmer profile bound to a device
type Profile struct {
	app *app.App
}

// Get handles GET /v1/profile
func (p *Profile) Get(w http.ResponseWriter, r *http.Request) {
	device := svrcontext.Device(r.Context())

	respondJSON(w, http.StatusOK, p.app.GetProfile(device))
}

// Update handles POST /v1/profile. Binding a phone number that belongs to
// another device is rejected with a conflict.
func (p *Profile) Update(w http.ResponseWriter, r *http.Request) {
	device := svrcontext.Device(r.Context())

	var params app.UpdateProfileParams
	if err := parseBody(r, &params); err != nil {
		doError(w, "parsing profile payload", err, http.StatusBadRequest)
		return
	}

	profile, err := p.app.UpdateProfile(device, params)
	if errors.Is(err, app.ErrPhoneTaken) {
		doError(w, "binding profile", err, http.StatusConflict)
		return
	}
	if err != nil {
		doError(w, "updating profile", err, http.StatusInternalServerError)
		return
	}

	respondJSON(w, http.StatusOK, profile)
}
